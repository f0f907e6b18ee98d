package database

import (
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nkolo-transit/booking-backend/internal/models"
)

func newMockDB(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return sqlx.NewDb(db, "sqlmock"), mock
}

func TestCreateHold_Success(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewHoldRepository(db)

	mock.ExpectBegin()
	mock.ExpectExec(`SELECT pg_advisory_xact_lock`).
		WithArgs(holdLockNamespace, int64(42)).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec(`DELETE FROM seat_holds WHERE trip_id = \$1 AND expires_at < NOW`).
		WithArgs(int64(42)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery(`SELECT seat_numbers FROM seat_holds`).
		WithArgs(int64(42), "session-a").
		WillReturnRows(sqlmock.NewRows([]string{"seat_numbers"}))
	mock.ExpectQuery(`SELECT seat_numbers FROM bookings`).
		WithArgs(int64(42), models.BookingStatusConfirmed).
		WillReturnRows(sqlmock.NewRows([]string{"seat_numbers"}))
	mock.ExpectExec(`DELETE FROM seat_holds WHERE trip_id = \$1 AND session_id = \$2`).
		WithArgs(int64(42), "session-a").
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery(`INSERT INTO seat_holds`).
		WithArgs(int64(42), sqlmock.AnyArg(), "session-a", sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(int64(9)))
	mock.ExpectCommit()

	hold, err := repo.CreateHold(42, "session-a", models.SeatNumbers{"12", "14"}, 6*time.Minute)
	require.NoError(t, err)

	assert.Equal(t, int64(9), hold.ID)
	assert.Equal(t, int64(42), hold.TripID)
	assert.Equal(t, models.SeatNumbers{"12", "14"}, hold.SeatNumbers)
	assert.WithinDuration(t, time.Now().Add(6*time.Minute), hold.ExpiresAt, 2*time.Second)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCreateHold_ConflictWithOtherSession(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewHoldRepository(db)

	mock.ExpectBegin()
	mock.ExpectExec(`SELECT pg_advisory_xact_lock`).
		WithArgs(holdLockNamespace, int64(42)).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec(`DELETE FROM seat_holds WHERE trip_id = \$1 AND expires_at < NOW`).
		WithArgs(int64(42)).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery(`SELECT seat_numbers FROM seat_holds`).
		WithArgs(int64(42), "session-a").
		WillReturnRows(sqlmock.NewRows([]string{"seat_numbers"}).AddRow([]byte(`{"12","13"}`)))
	mock.ExpectQuery(`SELECT seat_numbers FROM bookings`).
		WithArgs(int64(42), models.BookingStatusConfirmed).
		WillReturnRows(sqlmock.NewRows([]string{"seat_numbers"}).AddRow([]byte(`{"20"}`)))
	mock.ExpectRollback()

	_, err := repo.CreateHold(42, "session-a", models.SeatNumbers{"12", "20", "30"}, 6*time.Minute)
	require.Error(t, err)

	conflict, ok := err.(*models.SeatConflictError)
	require.True(t, ok, "expected SeatConflictError, got %T", err)
	assert.Equal(t, models.SeatNumbers{"12", "20"}, conflict.Seats)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCreateHold_OwnHoldDoesNotConflict(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewHoldRepository(db)

	// Re-holding the same seats supersedes, the session's previous hold
	// is excluded from the conflict set by the query itself
	mock.ExpectBegin()
	mock.ExpectExec(`SELECT pg_advisory_xact_lock`).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec(`DELETE FROM seat_holds WHERE trip_id = \$1 AND expires_at < NOW`).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery(`SELECT seat_numbers FROM seat_holds`).
		WithArgs(int64(42), "session-a").
		WillReturnRows(sqlmock.NewRows([]string{"seat_numbers"}))
	mock.ExpectQuery(`SELECT seat_numbers FROM bookings`).
		WillReturnRows(sqlmock.NewRows([]string{"seat_numbers"}))
	mock.ExpectExec(`DELETE FROM seat_holds WHERE trip_id = \$1 AND session_id = \$2`).
		WithArgs(int64(42), "session-a").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery(`INSERT INTO seat_holds`).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(int64(10)))
	mock.ExpectCommit()

	hold, err := repo.CreateHold(42, "session-a", models.SeatNumbers{"12"}, 6*time.Minute)
	require.NoError(t, err)
	assert.Equal(t, int64(10), hold.ID)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUnavailableSeats(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewHoldRepository(db)

	mock.ExpectExec(`DELETE FROM seat_holds WHERE trip_id = \$1 AND expires_at < NOW`).
		WithArgs(int64(42)).
		WillReturnResult(sqlmock.NewResult(0, 2))
	mock.ExpectQuery(`SELECT seat_numbers FROM seat_holds`).
		WithArgs(int64(42), "viewer").
		WillReturnRows(sqlmock.NewRows([]string{"seat_numbers"}).AddRow([]byte(`{"5","6"}`)))
	mock.ExpectQuery(`SELECT seat_numbers FROM bookings`).
		WithArgs(int64(42), models.BookingStatusConfirmed).
		WillReturnRows(sqlmock.NewRows([]string{"seat_numbers"}).AddRow([]byte(`{"1","6"}`)))

	seats, err := repo.UnavailableSeats(42, "viewer")
	require.NoError(t, err)

	assert.ElementsMatch(t, []string{"1", "5", "6"}, []string(seats))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRelease(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewHoldRepository(db)

	mock.ExpectExec(`DELETE FROM seat_holds WHERE trip_id = \$1 AND session_id = \$2`).
		WithArgs(int64(42), "session-a").
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, repo.Release(42, "session-a"))

	// Releasing again is a no-op, not an error
	mock.ExpectExec(`DELETE FROM seat_holds WHERE trip_id = \$1 AND session_id = \$2`).
		WithArgs(int64(42), "session-a").
		WillReturnResult(sqlmock.NewResult(0, 0))

	require.NoError(t, repo.Release(42, "session-a"))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDeleteExpired(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewHoldRepository(db)

	mock.ExpectExec(`DELETE FROM seat_holds WHERE expires_at < NOW`).
		WillReturnResult(sqlmock.NewResult(0, 3))

	removed, err := repo.DeleteExpired()
	require.NoError(t, err)
	assert.Equal(t, 3, removed)
}
