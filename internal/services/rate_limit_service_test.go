package services

import (
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nkolo-transit/booking-backend/internal/database"
)

func newRateLimitFixture(t *testing.T) (*RateLimitService, sqlmock.Sqlmock) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	pg := &database.PostgresDB{DB: sqlx.NewDb(db, "sqlmock")}
	return NewRateLimitService(pg), mock
}

func TestCheckHoldRateLimit_UnderLimit(t *testing.T) {
	svc, mock := newRateLimitFixture(t)

	mock.ExpectQuery(`SELECT COUNT\(\*\)`).
		WithArgs("session-a", "session", sqlmock.AnyArg()).
		WillReturnRows(sqlmock.NewRows([]string{"count", "max"}).AddRow(3, time.Now()))

	err := svc.CheckHoldRateLimit("session-a")
	assert.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCheckHoldRateLimit_AtLimit(t *testing.T) {
	svc, mock := newRateLimitFixture(t)

	lastRequest := time.Now().Add(-time.Minute)
	mock.ExpectQuery(`SELECT COUNT\(\*\)`).
		WithArgs("session-a", "session", sqlmock.AnyArg()).
		WillReturnRows(sqlmock.NewRows([]string{"count", "max"}).AddRow(20, lastRequest))

	err := svc.CheckHoldRateLimit("session-a")
	require.Error(t, err)

	limited, ok := err.(*RateLimitError)
	require.True(t, ok)
	assert.Equal(t, "session", limited.Type)
	assert.WithinDuration(t, lastRequest.Add(5*time.Minute), limited.RetryAfter, time.Second)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCheckCheckoutRateLimit(t *testing.T) {
	svc, mock := newRateLimitFixture(t)

	mock.ExpectQuery(`SELECT COUNT\(\*\)`).
		WithArgs("10.0.0.1", "ip", sqlmock.AnyArg()).
		WillReturnRows(sqlmock.NewRows([]string{"count", "max"}).AddRow(15, time.Now()))

	err := svc.CheckCheckoutRateLimit("10.0.0.1")
	require.Error(t, err)

	limited, ok := err.(*RateLimitError)
	require.True(t, ok)
	assert.Equal(t, "ip", limited.Type)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCheckCheckoutRateLimit_EmptyIPSkipped(t *testing.T) {
	svc, mock := newRateLimitFixture(t)

	assert.NoError(t, svc.CheckCheckoutRateLimit(""))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRecordHoldRequest(t *testing.T) {
	svc, mock := newRateLimitFixture(t)

	mock.ExpectExec(`INSERT INTO request_rate_limits`).
		WithArgs("session-a", "session").
		WillReturnResult(sqlmock.NewResult(1, 1))

	assert.NoError(t, svc.RecordHoldRequest("session-a"))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCleanupExpiredRateLimits(t *testing.T) {
	svc, mock := newRateLimitFixture(t)

	mock.ExpectExec(`DELETE FROM request_rate_limits`).
		WithArgs(sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 7))

	removed, err := svc.CleanupExpiredRateLimits()
	require.NoError(t, err)
	assert.Equal(t, int64(7), removed)
	assert.NoError(t, mock.ExpectationsWereMet())
}
