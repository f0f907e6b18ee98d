package models

import (
	"fmt"
	"strings"
	"time"
)

// SeatHold is an ephemeral, session-scoped claim on seats for one trip.
// Holds are not tied to a booking; they only stop a second party from
// reserving the same seats while checkout is in flight. At most one live
// hold exists per (trip, session); a new hold supersedes the prior one.
type SeatHold struct {
	ID          int64       `json:"id" db:"id"`
	TripID      int64       `json:"trip_id" db:"trip_id"`
	SeatNumbers SeatNumbers `json:"seat_numbers" db:"seat_numbers"`
	SessionID   string      `json:"session_id" db:"session_id"`
	BlockedAt   time.Time   `json:"blocked_at" db:"blocked_at"`
	ExpiresAt   time.Time   `json:"expires_at" db:"expires_at"`
}

// IsExpired checks if the hold has passed its TTL
func (h *SeatHold) IsExpired(now time.Time) bool {
	return now.After(h.ExpiresAt)
}

// SeatConflictError is returned when a hold request collides with seats
// already confirmed or held by another session. Seats lists exactly the
// conflicting identifiers so the client can retry with a new selection.
type SeatConflictError struct {
	Seats SeatNumbers
}

func (e *SeatConflictError) Error() string {
	return fmt.Sprintf("seats no longer available: %s", strings.Join(e.Seats, ", "))
}

// CreateHoldRequest is the request to hold seats for the caller's session
type CreateHoldRequest struct {
	TripID int64       `json:"trip_id" binding:"required"`
	Seats  interface{} `json:"seats" binding:"required"`
}

// HoldResponse is returned after a successful hold
type HoldResponse struct {
	TripID    int64       `json:"trip_id"`
	Seats     SeatNumbers `json:"seats"`
	Redirect  string      `json:"redirect"`
	ExpiresAt time.Time   `json:"expires_at"`
	Message   string      `json:"message"`
}
