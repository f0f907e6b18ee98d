package database

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/nkolo-transit/booking-backend/internal/models"
)

// holdLockNamespace separates seat hold advisory locks from any other
// advisory lock user in the same database
const holdLockNamespace = 701

// HoldRepository handles seat hold database operations
type HoldRepository struct {
	db *sqlx.DB
}

// NewHoldRepository creates a new HoldRepository
func NewHoldRepository(db *sqlx.DB) *HoldRepository {
	return &HoldRepository{db: db}
}

// CreateHold atomically creates a seat hold for a session. The whole
// check-then-insert runs under a per-trip advisory lock so two concurrent
// requests for the same trip serialize instead of both passing the
// conflict check. A session re-holding on the same trip supersedes its
// previous hold. Returns *models.SeatConflictError when any requested seat
// is already taken.
func (r *HoldRepository) CreateHold(tripID int64, sessionID string, seats models.SeatNumbers, ttl time.Duration) (*models.SeatHold, error) {
	tx, err := r.db.Beginx()
	if err != nil {
		return nil, fmt.Errorf("failed to begin hold transaction: %w", err)
	}
	defer tx.Rollback()

	// Held until commit or rollback, never across the gateway call
	if _, err := tx.Exec(`SELECT pg_advisory_xact_lock($1, $2)`, holdLockNamespace, tripID); err != nil {
		return nil, fmt.Errorf("failed to acquire trip lock: %w", err)
	}

	// Sweep this trip's expired holds so they stop counting as conflicts
	if _, err := tx.Exec(`DELETE FROM seat_holds WHERE trip_id = $1 AND expires_at < NOW()`, tripID); err != nil {
		return nil, fmt.Errorf("failed to sweep expired holds: %w", err)
	}

	taken, err := unavailableSeatsTx(tx, tripID, sessionID)
	if err != nil {
		return nil, err
	}

	var conflicts models.SeatNumbers
	for _, seat := range seats {
		if taken[seat] {
			conflicts = append(conflicts, seat)
		}
	}
	if len(conflicts) > 0 {
		return nil, &models.SeatConflictError{Seats: conflicts}
	}

	// Supersede any previous hold this session had on the trip
	if _, err := tx.Exec(`DELETE FROM seat_holds WHERE trip_id = $1 AND session_id = $2`, tripID, sessionID); err != nil {
		return nil, fmt.Errorf("failed to supersede previous hold: %w", err)
	}

	hold := &models.SeatHold{
		TripID:      tripID,
		SeatNumbers: seats,
		SessionID:   sessionID,
		BlockedAt:   time.Now(),
		ExpiresAt:   time.Now().Add(ttl),
	}

	err = tx.QueryRow(`
		INSERT INTO seat_holds (trip_id, seat_numbers, session_id, blocked_at, expires_at)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id`,
		hold.TripID, hold.SeatNumbers, hold.SessionID, hold.BlockedAt, hold.ExpiresAt,
	).Scan(&hold.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to insert seat hold: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit seat hold: %w", err)
	}

	return hold, nil
}

// unavailableSeatsTx collects every seat already committed or actively held
// on a trip, excluding holds belonging to the given session
func unavailableSeatsTx(q sqlx.Queryer, tripID int64, excludeSessionID string) (map[string]bool, error) {
	taken := make(map[string]bool)

	var heldRows []models.SeatNumbers
	err := sqlx.Select(q, &heldRows, `
		SELECT seat_numbers FROM seat_holds
		WHERE trip_id = $1 AND session_id <> $2 AND expires_at > NOW()`,
		tripID, excludeSessionID)
	if err != nil {
		return nil, fmt.Errorf("failed to load active holds: %w", err)
	}

	// Pending bookings are protected by their session's hold, only
	// confirmed ones block seats outright
	var bookedRows []models.SeatNumbers
	err = sqlx.Select(q, &bookedRows, `
		SELECT seat_numbers FROM bookings
		WHERE trip_id = $1 AND booking_status = $2`,
		tripID, models.BookingStatusConfirmed)
	if err != nil {
		return nil, fmt.Errorf("failed to load booked seats: %w", err)
	}

	for _, row := range heldRows {
		for _, seat := range row {
			taken[seat] = true
		}
	}
	for _, row := range bookedRows {
		for _, seat := range row {
			taken[seat] = true
		}
	}

	return taken, nil
}

// UnavailableSeats returns the seats a new visitor cannot select on a trip.
// Pass the viewer's session ID so their own hold stays selectable. Expired
// holds are swept before the read so they never count.
func (r *HoldRepository) UnavailableSeats(tripID int64, excludeSessionID string) (models.SeatNumbers, error) {
	if _, err := r.db.Exec(`DELETE FROM seat_holds WHERE trip_id = $1 AND expires_at < NOW()`, tripID); err != nil {
		return nil, fmt.Errorf("failed to sweep expired holds: %w", err)
	}

	taken, err := unavailableSeatsTx(r.db, tripID, excludeSessionID)
	if err != nil {
		return nil, err
	}

	seats := make(models.SeatNumbers, 0, len(taken))
	for seat := range taken {
		seats = append(seats, seat)
	}
	return seats, nil
}

// GetBySession retrieves the active hold a session has on a trip
func (r *HoldRepository) GetBySession(tripID int64, sessionID string) (*models.SeatHold, error) {
	var hold models.SeatHold
	query := `
		SELECT id, trip_id, seat_numbers, session_id, blocked_at, expires_at
		FROM seat_holds
		WHERE trip_id = $1 AND session_id = $2 AND expires_at > NOW()`

	err := r.db.Get(&hold, query, tripID, sessionID)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get seat hold: %w", err)
	}

	return &hold, nil
}

// Release drops a session's hold on a trip. Releasing a hold that does not
// exist is not an error.
func (r *HoldRepository) Release(tripID int64, sessionID string) error {
	_, err := r.db.Exec(`DELETE FROM seat_holds WHERE trip_id = $1 AND session_id = $2`, tripID, sessionID)
	if err != nil {
		return fmt.Errorf("failed to release seat hold: %w", err)
	}
	return nil
}

// DeleteExpired sweeps expired holds across all trips and reports how many
// were removed
func (r *HoldRepository) DeleteExpired() (int, error) {
	result, err := r.db.Exec(`DELETE FROM seat_holds WHERE expires_at < NOW()`)
	if err != nil {
		return 0, fmt.Errorf("failed to delete expired holds: %w", err)
	}
	rowsAffected, _ := result.RowsAffected()
	return int(rowsAffected), nil
}
