package database

import (
	"database/sql"
	"fmt"
	"strings"

	"github.com/jmoiron/sqlx"

	"github.com/nkolo-transit/booking-backend/internal/models"
)

// CustomerRepository handles customer database operations
type CustomerRepository struct {
	db *sqlx.DB
}

// NewCustomerRepository creates a new CustomerRepository
func NewCustomerRepository(db *sqlx.DB) *CustomerRepository {
	return &CustomerRepository{db: db}
}

// FindOrCreate resolves a customer by email, updating the stored name and
// phone when they changed, or creates a new record. Email matching is
// case-insensitive.
func (r *CustomerRepository) FindOrCreate(details models.CustomerDetails) (*models.Customer, error) {
	email := strings.ToLower(strings.TrimSpace(details.Email))

	var customer models.Customer
	err := r.db.Get(&customer, `SELECT * FROM customers WHERE LOWER(email) = $1`, email)
	if err != nil && err != sql.ErrNoRows {
		return nil, fmt.Errorf("failed to look up customer: %w", err)
	}

	if err == nil {
		if customer.Name != details.Name || customer.Phone != details.Phone {
			_, err = r.db.Exec(`
				UPDATE customers SET name = $1, phone = $2 WHERE id = $3`,
				details.Name, details.Phone, customer.ID)
			if err != nil {
				return nil, fmt.Errorf("failed to update customer: %w", err)
			}
			customer.Name = details.Name
			customer.Phone = details.Phone
		}
		return &customer, nil
	}

	err = r.db.QueryRow(`
		INSERT INTO customers (name, phone, email, created_at)
		VALUES ($1, $2, $3, NOW())
		RETURNING id, created_at`,
		details.Name, details.Phone, email,
	).Scan(&customer.ID, &customer.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to create customer: %w", err)
	}

	customer.Name = details.Name
	customer.Phone = details.Phone
	customer.Email = email
	return &customer, nil
}

// GetByID retrieves a customer by ID
func (r *CustomerRepository) GetByID(customerID int64) (*models.Customer, error) {
	var customer models.Customer
	err := r.db.Get(&customer, `SELECT * FROM customers WHERE id = $1`, customerID)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get customer: %w", err)
	}
	return &customer, nil
}
