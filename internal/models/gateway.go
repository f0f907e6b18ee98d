package models

// GatewayStatus is the closed vocabulary every provider status string is
// mapped onto. SUCCESS, FAILED, CANCELED and ERRORED are terminal from the
// adapter's point of view; PENDING and UNKNOWN only tell the caller to
// retry or escalate.
type GatewayStatus string

const (
	GatewaySuccess  GatewayStatus = "SUCCESS"
	GatewayPending  GatewayStatus = "PENDING"
	GatewayFailed   GatewayStatus = "FAILED"
	GatewayCanceled GatewayStatus = "CANCELED"
	GatewayErrored  GatewayStatus = "ERRORED"
	GatewayUnknown  GatewayStatus = "UNKNOWN"
)

// IsTerminal reports whether no further provider-side change is expected
func (s GatewayStatus) IsTerminal() bool {
	switch s {
	case GatewaySuccess, GatewayFailed, GatewayCanceled, GatewayErrored:
		return true
	}
	return false
}

// IsFailure groups the terminal non-success statuses
func (s GatewayStatus) IsFailure() bool {
	switch s {
	case GatewayFailed, GatewayCanceled, GatewayErrored:
		return true
	}
	return false
}

// MapGatewayStatus normalizes a raw provider status string onto the closed
// set. Unrecognized or empty strings map to UNKNOWN, never guessed into a
// terminal state.
func MapGatewayStatus(raw string) GatewayStatus {
	switch GatewayStatus(raw) {
	case GatewaySuccess, GatewayPending, GatewayFailed, GatewayCanceled, GatewayErrored:
		return GatewayStatus(raw)
	}
	return GatewayUnknown
}

// GatewayResult is the normalized outcome of a collect or status-check call
type GatewayResult struct {
	Status        GatewayStatus `json:"status"`
	TransactionID string        `json:"transaction_id,omitempty"` // provider's opaque pk
	TrxID         string        `json:"trx_id,omitempty"`         // our outbound reference
	Service       string        `json:"service,omitempty"`
	Amount        float64       `json:"amount,omitempty"`
	Fees          float64       `json:"fees,omitempty"`
	Message       string        `json:"message,omitempty"`
}

// WebhookPayload is the inbound MeSomb notification body. The raw bytes,
// not this struct, are the HMAC input.
type WebhookPayload struct {
	Event       string             `json:"event"`
	Transaction WebhookTransaction `json:"transaction"`
}

// WebhookTransaction carries the transaction fields referenced by the
// reconciliation coordinator
type WebhookTransaction struct {
	PK      string  `json:"pk"`
	Status  string  `json:"status"`
	Service string  `json:"service"`
	TrxID   string  `json:"trxID"`
	Amount  float64 `json:"amount"`
}
