package database

import (
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nkolo-transit/booking-backend/internal/models"
)

func TestCreatePending(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewBookingRepository(db)

	t.Run("Success", func(t *testing.T) {
		mock.ExpectQuery(`INSERT INTO bookings`).
			WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(int64(11)))

		booking := &models.Booking{
			TripID:      42,
			CustomerID:  7,
			SessionID:   "session-a",
			SeatNumbers: models.SeatNumbers{"12", "14"},
			TotalAmount: 10000,
		}
		require.NoError(t, repo.CreatePending(booking))

		assert.Equal(t, int64(11), booking.ID)
		assert.Regexp(t, `^NKP[A-Z0-9]{6}$`, booking.BookingReference)
		assert.Equal(t, models.BookingStatusPending, booking.BookingStatus)
		assert.Equal(t, models.PaymentStatusPending, booking.PaymentStatus)
	})

	t.Run("Reference collision retried", func(t *testing.T) {
		mock.ExpectQuery(`INSERT INTO bookings`).
			WillReturnError(&pq.Error{Code: "23505"})
		mock.ExpectQuery(`INSERT INTO bookings`).
			WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(int64(12)))

		booking := &models.Booking{TripID: 42, CustomerID: 7, SessionID: "s", SeatNumbers: models.SeatNumbers{"1"}, TotalAmount: 5000}
		require.NoError(t, repo.CreatePending(booking))
		assert.Equal(t, int64(12), booking.ID)
	})

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestConfirmAndDecrement(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewBookingRepository(db)

	t.Run("Confirms, decrements and releases hold once", func(t *testing.T) {
		mock.ExpectBegin()
		mock.ExpectQuery(`UPDATE bookings`).
			WithArgs(models.PaymentStatusPaid, models.BookingStatusConfirmed, int64(11), "MTN").
			WillReturnRows(sqlmock.NewRows([]string{"trip_id", "session_id", "seat_numbers"}).
				AddRow(int64(42), "session-a", []byte(`{"12","14"}`)))
		mock.ExpectExec(`UPDATE trips`).
			WithArgs(2, int64(42)).
			WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectExec(`DELETE FROM seat_holds`).
			WithArgs(int64(42), "session-a").
			WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectCommit()

		confirmed, err := repo.ConfirmAndDecrement(11, "MTN")
		require.NoError(t, err)
		assert.True(t, confirmed)
	})

	t.Run("Already confirmed is a no-op", func(t *testing.T) {
		mock.ExpectBegin()
		mock.ExpectQuery(`UPDATE bookings`).
			WithArgs(models.PaymentStatusPaid, models.BookingStatusConfirmed, int64(11), "MTN").
			WillReturnRows(sqlmock.NewRows([]string{"trip_id", "session_id", "seat_numbers"}))
		mock.ExpectRollback()

		confirmed, err := repo.ConfirmAndDecrement(11, "MTN")
		require.NoError(t, err)
		assert.False(t, confirmed, "second confirmation must not decrement again")
	})

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestMarkFailed(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewBookingRepository(db)

	t.Run("Pending booking fails", func(t *testing.T) {
		mock.ExpectExec(`UPDATE bookings`).
			WithArgs(models.PaymentStatusFailed, models.BookingStatusFailed, int64(11), models.BookingStatusConfirmed).
			WillReturnResult(sqlmock.NewResult(0, 1))

		changed, err := repo.MarkFailed(11)
		require.NoError(t, err)
		assert.True(t, changed)
	})

	t.Run("Confirmed booking never demoted", func(t *testing.T) {
		mock.ExpectExec(`UPDATE bookings`).
			WithArgs(models.PaymentStatusFailed, models.BookingStatusFailed, int64(11), models.BookingStatusConfirmed).
			WillReturnResult(sqlmock.NewResult(0, 0))

		changed, err := repo.MarkFailed(11)
		require.NoError(t, err)
		assert.False(t, changed)
	})

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGetByPaymentReference(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewBookingRepository(db)

	now := time.Now()
	trxID := "BUS20260314092653"

	mock.ExpectQuery(`SELECT \* FROM bookings WHERE payment_reference`).
		WithArgs(trxID).
		WillReturnRows(sqlmock.NewRows([]string{
			"id", "booking_reference", "trip_id", "customer_id", "session_id",
			"seat_numbers", "total_amount", "payment_status", "booking_status",
			"payment_reference", "payment_method", "created_at", "updated_at",
		}).AddRow(
			int64(11), "NKPA3F9Q2", int64(42), int64(7), "session-a",
			[]byte(`{"12","14"}`), 10000.0, "pending", "pending",
			trxID, nil, now, now,
		))

	booking, err := repo.GetByPaymentReference(trxID)
	require.NoError(t, err)
	require.NotNil(t, booking)

	assert.Equal(t, "NKPA3F9Q2", booking.BookingReference)
	assert.Equal(t, models.SeatNumbers{"12", "14"}, booking.SeatNumbers)

	// Unknown reference returns nil, not an error
	mock.ExpectQuery(`SELECT \* FROM bookings WHERE payment_reference`).
		WithArgs("BUS000").
		WillReturnRows(sqlmock.NewRows([]string{"id"}))

	booking, err = repo.GetByPaymentReference("BUS000")
	require.NoError(t, err)
	assert.Nil(t, booking)
}

func TestListStalePending(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewBookingRepository(db)

	now := time.Now()
	mock.ExpectQuery(`SELECT \* FROM bookings`).
		WithArgs(models.BookingStatusPending, models.PaymentStatusUnknown, 1800, 100).
		WillReturnRows(sqlmock.NewRows([]string{
			"id", "booking_reference", "trip_id", "customer_id", "session_id",
			"seat_numbers", "total_amount", "payment_status", "booking_status",
			"payment_reference", "payment_method", "created_at", "updated_at",
		}).AddRow(
			int64(11), "NKPA3F9Q2", int64(42), int64(7), "session-a",
			[]byte(`{"12"}`), 5000.0, "pending", "pending",
			nil, nil, now.Add(-time.Hour), now.Add(-time.Hour),
		))

	stale, err := repo.ListStalePending(30*time.Minute, 100)
	require.NoError(t, err)
	require.Len(t, stale, 1)
	assert.Equal(t, "NKPA3F9Q2", stale[0].BookingReference)

	assert.NoError(t, mock.ExpectationsWereMet())
}
