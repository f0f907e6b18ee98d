package services

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nkolo-transit/booking-backend/internal/config"
	"github.com/nkolo-transit/booking-backend/internal/database"
	"github.com/nkolo-transit/booking-backend/internal/models"
)

func newPollFixture(t *testing.T, gatewayURL string) (*BookingService, sqlmock.Sqlmock, *captureIssuer) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	sqlxDB := sqlx.NewDb(db, "sqlmock")

	logger := logrus.New()
	logger.SetLevel(logrus.PanicLevel)

	cfg := &config.BookingConfig{
		HoldTTL:    6 * time.Minute,
		PollMinAge: 20 * time.Second,
		Currency:   "XAF",
	}

	tripRepo := database.NewTripRepository(sqlxDB)
	holdRepo := database.NewHoldRepository(sqlxDB)
	bookingRepo := database.NewBookingRepository(sqlxDB)
	customerRepo := database.NewCustomerRepository(sqlxDB)
	auditRepo := database.NewPaymentAuditRepository(sqlxDB, logger)

	issuer := &captureIssuer{}
	gateway := newTestMesombService(gatewayURL)
	recon := NewReconciliationService(bookingRepo, tripRepo, customerRepo, auditRepo, issuer, cfg, logger)

	svc := NewBookingService(tripRepo, holdRepo, bookingRepo, customerRepo, auditRepo, gateway, recon, cfg, logger)
	return svc, mock, issuer
}

// pollableBookingRow is old enough for PaymentStatus to consult the gateway
func pollableBookingRow(paymentStatus, bookingStatus string) *sqlmock.Rows {
	created := time.Now().Add(-time.Minute)
	return sqlmock.NewRows([]string{
		"id", "booking_reference", "trip_id", "customer_id", "session_id",
		"seat_numbers", "total_amount", "payment_status", "booking_status",
		"payment_reference", "payment_method", "created_at", "updated_at",
	}).AddRow(
		int64(11), "NKPA3F9Q2", int64(42), int64(7), "session-a",
		[]byte(`{"12","14"}`), 10000.0, paymentStatus, bookingStatus,
		"BUS20260314092653", nil, created, created,
	)
}

func statusGateway(t *testing.T, hits *int32, statuses ...string) *httptest.Server {
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/payment/transactions/", r.URL.Path)
		n := atomic.AddInt32(hits, 1)
		require.LessOrEqual(t, int(n), len(statuses))
		fmt.Fprintf(w, `[{"pk":"tx-123","status":%q,"trxID":"BUS20260314092653","amount":10000,"service":"MTN"}]`, statuses[n-1])
	}))
}

func expectStatusCheck(mock sqlmock.Sqlmock, row *sqlmock.Rows) {
	mock.ExpectQuery(`SELECT \* FROM bookings WHERE id`).WillReturnRows(row)
	mock.ExpectExec(`INSERT INTO payment_audits`).
		WillReturnResult(sqlmock.NewResult(0, 1))
}

func TestPaymentStatus_ConfirmsOnThirdPoll(t *testing.T) {
	var hits int32
	server := statusGateway(t, &hits, "PENDING", "PENDING", "SUCCESS")
	defer server.Close()

	svc, mock, issuer := newPollFixture(t, server.URL)
	ctx := context.Background()

	// First two polls report PENDING and change nothing
	for i := 0; i < 2; i++ {
		expectStatusCheck(mock, pollableBookingRow("pending", "pending"))

		resp, err := svc.PaymentStatus(ctx, 11)
		require.NoError(t, err)
		assert.Equal(t, models.BookingStatusPending, resp.BookingStatus)
		assert.Equal(t, "PENDING", resp.MesombStatus)
		assert.Equal(t, "wait_or_retry", resp.NextAction)
	}

	// Third poll sees SUCCESS and runs the confirm transaction
	expectStatusCheck(mock, pollableBookingRow("pending", "pending"))
	mock.ExpectBegin()
	mock.ExpectQuery(`UPDATE bookings`).
		WillReturnRows(sqlmock.NewRows([]string{"trip_id", "session_id", "seat_numbers"}).
			AddRow(int64(42), "session-a", []byte(`{"12","14"}`)))
	mock.ExpectExec(`UPDATE trips`).
		WithArgs(2, int64(42)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`DELETE FROM seat_holds`).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()
	mock.ExpectExec(`INSERT INTO payment_audits`).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery(`FROM trips t`).
		WillReturnRows(tripRow())
	mock.ExpectQuery(`SELECT \* FROM customers`).
		WillReturnRows(sqlmock.NewRows([]string{"id", "name", "phone", "email", "created_at"}).
			AddRow(int64(7), "Jean Mballa", "671234567", "jean@example.cm", time.Now()))
	mock.ExpectQuery(`SELECT \* FROM bookings WHERE id`).
		WillReturnRows(bookingRow("paid", "confirmed"))

	resp, err := svc.PaymentStatus(ctx, 11)
	require.NoError(t, err)

	assert.True(t, resp.IsConfirmed)
	assert.Equal(t, models.BookingStatusConfirmed, resp.BookingStatus)
	assert.Equal(t, "view_ticket", resp.NextAction)
	assert.Equal(t, int32(3), hits)
	require.Len(t, issuer.records, 1, "ticket must be issued exactly once")

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPaymentStatus_FailedPollMarksBookingFailed(t *testing.T) {
	var hits int32
	server := statusGateway(t, &hits, "FAILED")
	defer server.Close()

	svc, mock, issuer := newPollFixture(t, server.URL)

	expectStatusCheck(mock, pollableBookingRow("pending", "pending"))
	mock.ExpectExec(`UPDATE bookings`).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`INSERT INTO payment_audits`).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery(`SELECT \* FROM bookings WHERE id`).
		WillReturnRows(bookingRow("failed", "failed"))

	resp, err := svc.PaymentStatus(context.Background(), 11)
	require.NoError(t, err)

	// A declined payment seen by a poll settles the booking the same way
	// a webhook would
	assert.Equal(t, models.BookingStatusFailed, resp.BookingStatus)
	assert.Equal(t, "FAILED", resp.MesombStatus)
	assert.Equal(t, "retry_payment", resp.NextAction)
	assert.True(t, resp.CanRetry)
	assert.Empty(t, issuer.records)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPaymentStatus_YoungBookingSkipsGateway(t *testing.T) {
	var hits int32
	server := statusGateway(t, &hits)
	defer server.Close()

	svc, mock, _ := newPollFixture(t, server.URL)

	// created_at is now, below the poll age threshold
	mock.ExpectQuery(`SELECT \* FROM bookings WHERE id`).
		WillReturnRows(bookingRow("pending", "pending"))

	resp, err := svc.PaymentStatus(context.Background(), 11)
	require.NoError(t, err)

	assert.Equal(t, models.BookingStatusPending, resp.BookingStatus)
	assert.Equal(t, "wait_or_retry", resp.NextAction)
	assert.Equal(t, int32(0), hits)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPaymentStatus_GatewayOutageReportsStoredState(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	server.Close()

	svc, mock, issuer := newPollFixture(t, server.URL)

	expectStatusCheck(mock, pollableBookingRow("pending", "pending"))

	resp, err := svc.PaymentStatus(context.Background(), 11)
	require.NoError(t, err)

	// An unreachable gateway must not settle the booking
	assert.Equal(t, models.BookingStatusPending, resp.BookingStatus)
	assert.Equal(t, "PENDING", resp.MesombStatus)
	assert.Equal(t, "wait_or_retry", resp.NextAction)
	assert.Empty(t, issuer.records)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPaymentStatus_UnknownBooking(t *testing.T) {
	svc, mock, _ := newPollFixture(t, "http://unused")

	mock.ExpectQuery(`SELECT \* FROM bookings WHERE id`).
		WillReturnRows(sqlmock.NewRows([]string{"id"}))

	_, err := svc.PaymentStatus(context.Background(), 999)
	assert.ErrorIs(t, err, ErrBookingNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}
