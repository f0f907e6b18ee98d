package database

import (
	"database/sql"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/nkolo-transit/booking-backend/internal/models"
)

// TripRepository handles trip database operations
type TripRepository struct {
	db *sqlx.DB
}

// NewTripRepository creates a new TripRepository
func NewTripRepository(db *sqlx.DB) *TripRepository {
	return &TripRepository{db: db}
}

// GetByID retrieves a trip with its route and operator details
func (r *TripRepository) GetByID(tripID int64) (*models.Trip, error) {
	var trip models.Trip
	query := `
		SELECT
			t.id, t.route_id, t.operator_id, t.bus_type_id, t.virtual_bus_id,
			t.departure_time, t.arrival_time, t.seat_price,
			t.available_seats, t.capacity, t.status,
			t.created_at, t.updated_at,
			r.origin AS route_origin, r.destination AS route_destination,
			o.name AS operator_name
		FROM trips t
		JOIN routes r ON r.id = t.route_id
		JOIN operators o ON o.id = t.operator_id
		WHERE t.id = $1`

	err := r.db.Get(&trip, query, tripID)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get trip: %w", err)
	}

	return &trip, nil
}

// GetBusTypeConfig retrieves the seat layout configuration for an operator's
// bus type. Returns nil when the operator has no override for this bus type.
func (r *TripRepository) GetBusTypeConfig(operatorID, busTypeID int64) (*models.BusTypeConfig, error) {
	var cfg models.BusTypeConfig
	query := `
		SELECT operator_id, bus_type_id, capacity, seats_per_row, seat_layout
		FROM operator_bus_types
		WHERE operator_id = $1 AND bus_type_id = $2`

	err := r.db.Get(&cfg, query, operatorID, busTypeID)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get bus type config: %w", err)
	}

	return &cfg, nil
}

// ListUpcoming retrieves bookable trips sorted by departure
func (r *TripRepository) ListUpcoming(limit int) ([]*models.Trip, error) {
	var trips []*models.Trip
	query := `
		SELECT
			t.id, t.route_id, t.operator_id, t.bus_type_id, t.virtual_bus_id,
			t.departure_time, t.arrival_time, t.seat_price,
			t.available_seats, t.capacity, t.status,
			t.created_at, t.updated_at,
			r.origin AS route_origin, r.destination AS route_destination,
			o.name AS operator_name
		FROM trips t
		JOIN routes r ON r.id = t.route_id
		JOIN operators o ON o.id = t.operator_id
		WHERE t.status = $1 AND t.departure_time > NOW()
		ORDER BY t.departure_time ASC
		LIMIT $2`

	err := r.db.Select(&trips, query, models.TripStatusScheduled, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list upcoming trips: %w", err)
	}

	return trips, nil
}
