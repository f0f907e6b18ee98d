package database

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/sirupsen/logrus"

	"github.com/nkolo-transit/booking-backend/internal/models"
)

// PaymentAuditRepository handles payment audit operations
type PaymentAuditRepository struct {
	db     *sqlx.DB
	logger *logrus.Logger
}

// NewPaymentAuditRepository creates a new payment audit repository
func NewPaymentAuditRepository(db *sqlx.DB, logger *logrus.Logger) *PaymentAuditRepository {
	return &PaymentAuditRepository{
		db:     db,
		logger: logger,
	}
}

// Log creates a new payment audit entry.
// This should NEVER fail silently, payment events must be logged.
func (r *PaymentAuditRepository) Log(ctx context.Context, audit *models.PaymentAudit) error {
	if audit == nil {
		return fmt.Errorf("audit entry cannot be nil")
	}

	if audit.ID == uuid.Nil {
		audit.ID = uuid.New()
	}
	if audit.CreatedAt.IsZero() {
		audit.CreatedAt = time.Now()
	}

	query := `
		INSERT INTO payment_audits (
			id, booking_id, booking_reference, transaction_id,
			event_type, event_source,
			expected_amount, received_amount, currency, amounts_match,
			gateway_status,
			request_payload, response_payload, raw_body,
			error_message,
			ip_address, user_agent,
			created_at
		) VALUES (
			$1, $2, $3, $4,
			$5, $6,
			$7, $8, $9, $10,
			$11,
			$12, $13, $14,
			$15,
			$16, $17,
			$18
		)`

	_, err := r.db.ExecContext(ctx, query,
		audit.ID, audit.BookingID, audit.BookingReference, audit.TransactionID,
		audit.EventType, audit.EventSource,
		audit.ExpectedAmount, audit.ReceivedAmount, audit.Currency, audit.AmountsMatch,
		audit.GatewayStatus,
		audit.RequestPayload, audit.ResponsePayload, audit.RawBody,
		audit.ErrorMessage,
		audit.IPAddress, audit.UserAgent,
		audit.CreatedAt,
	)

	if err != nil {
		r.logger.WithError(err).WithFields(logrus.Fields{
			"event_type":        audit.EventType,
			"booking_reference": audit.BookingReference,
		}).Error("CRITICAL: Failed to log payment audit - THIS SHOULD NEVER HAPPEN")
		return fmt.Errorf("failed to log payment audit: %w", err)
	}

	r.logger.WithFields(logrus.Fields{
		"audit_id":          audit.ID,
		"event_type":        audit.EventType,
		"booking_reference": audit.BookingReference,
	}).Debug("Payment audit logged")

	return nil
}

// GetByBookingID retrieves all audit entries for a booking
func (r *PaymentAuditRepository) GetByBookingID(ctx context.Context, bookingID int64) ([]*models.PaymentAudit, error) {
	var audits []*models.PaymentAudit
	query := `
		SELECT * FROM payment_audits
		WHERE booking_id = $1
		ORDER BY created_at ASC`

	err := r.db.SelectContext(ctx, &audits, query, bookingID)
	if err != nil {
		return nil, fmt.Errorf("failed to get audits by booking ID: %w", err)
	}

	return audits, nil
}

// GetMismatches retrieves recent entries flagged for operator review, both
// amount mismatches and reconciliation anomalies
func (r *PaymentAuditRepository) GetMismatches(ctx context.Context, limit int) ([]*models.PaymentAudit, error) {
	var audits []*models.PaymentAudit
	query := `
		SELECT * FROM payment_audits
		WHERE amounts_match = FALSE
		   OR event_type IN ($1, $2)
		ORDER BY created_at DESC
		LIMIT $3`

	err := r.db.SelectContext(ctx, &audits, query,
		models.PaymentEventReconciliationMismatch, models.PaymentEventStaleBooking, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to get mismatches: %w", err)
	}

	return audits, nil
}

// GetRecentByEventType retrieves recent events of a specific type
func (r *PaymentAuditRepository) GetRecentByEventType(ctx context.Context, eventType models.PaymentEventType, hours int, limit int) ([]*models.PaymentAudit, error) {
	var audits []*models.PaymentAudit
	query := `
		SELECT * FROM payment_audits
		WHERE event_type = $1
		AND created_at > NOW() - INTERVAL '1 hour' * $2
		ORDER BY created_at DESC
		LIMIT $3`

	err := r.db.SelectContext(ctx, &audits, query, eventType, hours, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to get recent events: %w", err)
	}

	return audits, nil
}
