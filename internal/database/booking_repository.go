package database

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/nkolo-transit/booking-backend/internal/models"
	"github.com/nkolo-transit/booking-backend/pkg/reference"
)

// referenceRetries bounds the collision retry loop for booking references
const referenceRetries = 5

// BookingRepository handles booking database operations
type BookingRepository struct {
	db *sqlx.DB
}

// NewBookingRepository creates a new BookingRepository
func NewBookingRepository(db *sqlx.DB) *BookingRepository {
	return &BookingRepository{db: db}
}

// ============================================================================
// BOOKING CRUD OPERATIONS
// ============================================================================

// CreatePending inserts a booking in the pending/pending state, generating a
// fresh reference and retrying on the rare reference collision. The booking
// row exists BEFORE any gateway call so an operator can always trace a
// charge back to a booking.
func (r *BookingRepository) CreatePending(booking *models.Booking) error {
	query := `
		INSERT INTO bookings (
			booking_reference, trip_id, customer_id, session_id, seat_numbers,
			total_amount, payment_status, booking_status, payment_method,
			created_at, updated_at
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11
		)
		RETURNING id`

	for attempt := 0; attempt < referenceRetries; attempt++ {
		ref, err := reference.NewBookingReference()
		if err != nil {
			return err
		}

		now := time.Now()
		err = r.db.QueryRow(query,
			ref, booking.TripID, booking.CustomerID, booking.SessionID, booking.SeatNumbers,
			booking.TotalAmount, models.PaymentStatusPending, models.BookingStatusPending,
			booking.PaymentMethod, now, now,
		).Scan(&booking.ID)

		if err == nil {
			booking.BookingReference = ref
			booking.PaymentStatus = models.PaymentStatusPending
			booking.BookingStatus = models.BookingStatusPending
			booking.CreatedAt = now
			booking.UpdatedAt = now
			return nil
		}

		if pqErr, ok := err.(*pq.Error); ok && pqErr.Code == "23505" {
			continue // reference collision, draw again
		}
		return fmt.Errorf("failed to create booking: %w", err)
	}

	return fmt.Errorf("failed to create booking: exhausted reference retries")
}

// GetByID retrieves a booking by its primary key
func (r *BookingRepository) GetByID(bookingID int64) (*models.Booking, error) {
	var booking models.Booking
	query := `SELECT * FROM bookings WHERE id = $1`

	err := r.db.Get(&booking, query, bookingID)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get booking: %w", err)
	}

	return &booking, nil
}

// GetByReference retrieves a booking by its customer-facing reference
func (r *BookingRepository) GetByReference(ref string) (*models.Booking, error) {
	var booking models.Booking
	query := `SELECT * FROM bookings WHERE booking_reference = $1`

	err := r.db.Get(&booking, query, ref)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get booking by reference: %w", err)
	}

	return &booking, nil
}

// GetByPaymentReference retrieves a booking by the outbound gateway
// reference (trx_id). Webhooks and status checks correlate through this.
func (r *BookingRepository) GetByPaymentReference(trxID string) (*models.Booking, error) {
	var booking models.Booking
	query := `SELECT * FROM bookings WHERE payment_reference = $1`

	err := r.db.Get(&booking, query, trxID)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get booking by payment reference: %w", err)
	}

	return &booking, nil
}

// SetPaymentReference records the trx_id sent to the gateway for a booking
func (r *BookingRepository) SetPaymentReference(bookingID int64, trxID string) error {
	query := `
		UPDATE bookings
		SET payment_reference = $1, updated_at = NOW()
		WHERE id = $2`

	_, err := r.db.Exec(query, trxID, bookingID)
	if err != nil {
		return fmt.Errorf("failed to set payment reference: %w", err)
	}
	return nil
}

// ============================================================================
// RECONCILIATION TRANSITIONS
// ============================================================================

// ConfirmAndDecrement promotes a booking to paid/confirmed, decrements the
// trip's available seat count and drops the session's hold, all in one
// transaction. The status guard makes it idempotent: a booking already
// confirmed affects zero rows and the inventory is left alone, so SUCCESS
// arriving on several channels decrements exactly once. The guard admits
// bookings previously marked failed, a late provider success re-confirms
// them.
func (r *BookingRepository) ConfirmAndDecrement(bookingID int64, paymentMethod string) (bool, error) {
	tx, err := r.db.Beginx()
	if err != nil {
		return false, fmt.Errorf("failed to begin confirm transaction: %w", err)
	}
	defer tx.Rollback()

	var (
		tripID    int64
		sessionID string
		seats     models.SeatNumbers
	)
	err = tx.QueryRow(`
		UPDATE bookings
		SET payment_status = $1, booking_status = $2,
		    payment_method = COALESCE(NULLIF($4, ''), payment_method),
		    updated_at = NOW()
		WHERE id = $3 AND booking_status <> $2
		RETURNING trip_id, session_id, seat_numbers`,
		models.PaymentStatusPaid, models.BookingStatusConfirmed, bookingID, paymentMethod,
	).Scan(&tripID, &sessionID, &seats)
	if err == sql.ErrNoRows {
		return false, nil // already confirmed
	}
	if err != nil {
		return false, fmt.Errorf("failed to confirm booking: %w", err)
	}

	_, err = tx.Exec(`
		UPDATE trips
		SET available_seats = available_seats - $1, updated_at = NOW()
		WHERE id = $2`,
		len(seats), tripID)
	if err != nil {
		return false, fmt.Errorf("failed to decrement available seats: %w", err)
	}

	if _, err := tx.Exec(`DELETE FROM seat_holds WHERE trip_id = $1 AND session_id = $2`, tripID, sessionID); err != nil {
		return false, fmt.Errorf("failed to release hold on confirm: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return false, fmt.Errorf("failed to commit confirm transaction: %w", err)
	}

	return true, nil
}

// MarkFailed moves a booking to failed/failed unless it is already
// confirmed. Reports whether a row actually changed.
func (r *BookingRepository) MarkFailed(bookingID int64) (bool, error) {
	return r.markTerminal(bookingID, models.PaymentStatusFailed, models.BookingStatusFailed)
}

// MarkUnknown flags a booking whose gateway outcome could not be
// determined. The booking stays pending so a later signal can still
// resolve it.
func (r *BookingRepository) MarkUnknown(bookingID int64) error {
	query := `
		UPDATE bookings
		SET payment_status = $1, updated_at = NOW()
		WHERE id = $2 AND booking_status = $3`

	_, err := r.db.Exec(query, models.PaymentStatusUnknown, bookingID, models.BookingStatusPending)
	if err != nil {
		return fmt.Errorf("failed to mark booking unknown: %w", err)
	}
	return nil
}

func (r *BookingRepository) markTerminal(bookingID int64, payment models.PaymentStatus, status models.BookingStatus) (bool, error) {
	query := `
		UPDATE bookings
		SET payment_status = $1, booking_status = $2, updated_at = NOW()
		WHERE id = $3 AND booking_status NOT IN ($4, $2)`

	result, err := r.db.Exec(query, payment, status, bookingID, models.BookingStatusConfirmed)
	if err != nil {
		return false, fmt.Errorf("failed to mark booking %s: %w", status, err)
	}

	rowsAffected, _ := result.RowsAffected()
	return rowsAffected > 0, nil
}

// ListStalePending retrieves pending bookings older than the given horizon
// that have not yet been surfaced for review, the ones no webhook or poll
// ever resolved
func (r *BookingRepository) ListStalePending(olderThan time.Duration, limit int) ([]*models.Booking, error) {
	var bookings []*models.Booking
	query := `
		SELECT * FROM bookings
		WHERE booking_status = $1
		AND payment_status <> $2
		AND created_at < NOW() - ($3 * INTERVAL '1 second')
		ORDER BY created_at ASC
		LIMIT $4`

	err := r.db.Select(&bookings, query,
		models.BookingStatusPending, models.PaymentStatusUnknown, int(olderThan.Seconds()), limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list stale pending bookings: %w", err)
	}

	return bookings, nil
}
