package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// PaymentEventType represents the type of payment event
type PaymentEventType string

const (
	PaymentEventInitiated              PaymentEventType = "payment_initiated"
	PaymentEventResponse               PaymentEventType = "payment_response"
	PaymentEventWebhookReceived        PaymentEventType = "webhook_received"
	PaymentEventWebhookRejected        PaymentEventType = "webhook_rejected"
	PaymentEventStatusCheckRequest     PaymentEventType = "status_check_request"
	PaymentEventStatusCheckResponse    PaymentEventType = "status_check_response"
	PaymentEventSuccess                PaymentEventType = "payment_success"
	PaymentEventFailed                 PaymentEventType = "payment_failed"
	PaymentEventCancelled              PaymentEventType = "payment_cancelled"
	PaymentEventBookingConfirmed       PaymentEventType = "booking_confirmed"
	PaymentEventBookingConfirmFailed   PaymentEventType = "booking_confirmation_failed"
	PaymentEventStaleBooking           PaymentEventType = "stale_pending_booking"
	PaymentEventReconciliationMismatch PaymentEventType = "reconciliation_mismatch"
	PaymentEventError                  PaymentEventType = "error"
)

// PaymentEventSource identifies where the event originated
type PaymentEventSource string

const (
	PaymentSourceBackend       PaymentEventSource = "backend"
	PaymentSourceMesombWebhook PaymentEventSource = "mesomb_webhook"
	PaymentSourceMesombAPI     PaymentEventSource = "mesomb_api"
	PaymentSourceUser          PaymentEventSource = "user"
	PaymentSourceSystem        PaymentEventSource = "system"
)

// JSONB wraps a map for storage in a Postgres jsonb column
type JSONB map[string]interface{}

// Value implements driver.Valuer
func (j JSONB) Value() (driver.Value, error) {
	if j == nil {
		return nil, nil
	}
	return json.Marshal(j)
}

// Scan implements sql.Scanner
func (j *JSONB) Scan(value interface{}) error {
	if value == nil {
		*j = nil
		return nil
	}
	b, ok := value.([]byte)
	if !ok {
		return fmt.Errorf("unsupported jsonb source type %T", value)
	}
	return json.Unmarshal(b, j)
}

// PaymentAudit represents an immutable audit log entry for payment events
type PaymentAudit struct {
	ID               uuid.UUID `json:"id" db:"id"`
	BookingID        *int64    `json:"booking_id,omitempty" db:"booking_id"`
	BookingReference *string   `json:"booking_reference,omitempty" db:"booking_reference"`
	TransactionID    *string   `json:"transaction_id,omitempty" db:"transaction_id"`

	// Event info
	EventType   PaymentEventType   `json:"event_type" db:"event_type"`
	EventSource PaymentEventSource `json:"event_source" db:"event_source"`

	// Amount tracking for verification
	ExpectedAmount *float64 `json:"expected_amount,omitempty" db:"expected_amount"`
	ReceivedAmount *float64 `json:"received_amount,omitempty" db:"received_amount"`
	Currency       *string  `json:"currency,omitempty" db:"currency"`
	AmountsMatch   *bool    `json:"amounts_match,omitempty" db:"amounts_match"`

	// Status
	GatewayStatus *string `json:"gateway_status,omitempty" db:"gateway_status"`

	// Raw payloads kept for debugging disputed payments
	RequestPayload  JSONB   `json:"request_payload,omitempty" db:"request_payload"`
	ResponsePayload JSONB   `json:"response_payload,omitempty" db:"response_payload"`
	RawBody         *string `json:"raw_body,omitempty" db:"raw_body"`

	// Error tracking
	ErrorMessage *string `json:"error_message,omitempty" db:"error_message"`

	// Metadata
	IPAddress *string `json:"ip_address,omitempty" db:"ip_address"`
	UserAgent *string `json:"user_agent,omitempty" db:"user_agent"`

	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

// NewPaymentAudit creates a new payment audit entry with required fields
func NewPaymentAudit(eventType PaymentEventType, source PaymentEventSource) *PaymentAudit {
	return &PaymentAudit{
		ID:          uuid.New(),
		EventType:   eventType,
		EventSource: source,
		CreatedAt:   time.Now(),
	}
}

// SetBooking links the audit entry to a booking
func (pa *PaymentAudit) SetBooking(id int64, reference string) *PaymentAudit {
	pa.BookingID = &id
	pa.BookingReference = &reference
	return pa
}

// SetTransactionID sets the provider transaction id
func (pa *PaymentAudit) SetTransactionID(id string) *PaymentAudit {
	if id != "" {
		pa.TransactionID = &id
	}
	return pa
}

// SetAmounts sets and verifies amounts, returning whether they match
func (pa *PaymentAudit) SetAmounts(expected, received float64, currency string) bool {
	pa.ExpectedAmount = &expected
	pa.ReceivedAmount = &received
	pa.Currency = &currency

	const tolerance = 0.01
	diff := expected - received
	if diff < 0 {
		diff = -diff
	}
	match := diff < tolerance
	pa.AmountsMatch = &match
	return match
}

// SetGatewayStatus records the normalized gateway status
func (pa *PaymentAudit) SetGatewayStatus(status GatewayStatus) *PaymentAudit {
	s := string(status)
	pa.GatewayStatus = &s
	return pa
}

// SetError sets error information
func (pa *PaymentAudit) SetError(message string) *PaymentAudit {
	pa.ErrorMessage = &message
	return pa
}

// SetRawBody stores the raw body before parsing
func (pa *PaymentAudit) SetRawBody(body string) *PaymentAudit {
	pa.RawBody = &body
	return pa
}

// SetRequestPayload sets the request payload sent
func (pa *PaymentAudit) SetRequestPayload(payload map[string]interface{}) *PaymentAudit {
	pa.RequestPayload = JSONB(payload)
	return pa
}

// SetResponsePayload sets the response payload received
func (pa *PaymentAudit) SetResponsePayload(payload map[string]interface{}) *PaymentAudit {
	pa.ResponsePayload = JSONB(payload)
	return pa
}

// SetMetadata sets request metadata
func (pa *PaymentAudit) SetMetadata(ip, userAgent string) *PaymentAudit {
	if ip != "" {
		pa.IPAddress = &ip
	}
	if userAgent != "" {
		pa.UserAgent = &userAgent
	}
	return pa
}
