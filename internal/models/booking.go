package models

import (
	"errors"
	"time"
)

// PaymentStatus represents the payment status of a booking
type PaymentStatus string

const (
	PaymentStatusPending PaymentStatus = "pending"
	PaymentStatusPaid    PaymentStatus = "paid"
	PaymentStatusFailed  PaymentStatus = "failed"
	PaymentStatusUnknown PaymentStatus = "unknown"
)

// BookingStatus represents the status of a booking
type BookingStatus string

const (
	BookingStatusPending   BookingStatus = "pending"
	BookingStatusConfirmed BookingStatus = "confirmed"
	BookingStatusFailed    BookingStatus = "failed"
	BookingStatusCancelled BookingStatus = "cancelled"
)

// Booking is the persistent record of a seat purchase attempt. The
// (booking_status, payment_status) pair always transitions together:
// confirmed if and only if paid, flipped in a single guarded UPDATE.
type Booking struct {
	ID               int64         `json:"id" db:"id"`
	BookingReference string        `json:"booking_reference" db:"booking_reference"`
	TripID           int64         `json:"trip_id" db:"trip_id"`
	CustomerID       int64         `json:"customer_id" db:"customer_id"`
	SessionID        string        `json:"session_id" db:"session_id"`
	SeatNumbers      SeatNumbers   `json:"seat_numbers" db:"seat_numbers"`
	TotalAmount      float64       `json:"total_amount" db:"total_amount"`
	PaymentStatus    PaymentStatus `json:"payment_status" db:"payment_status"`
	BookingStatus    BookingStatus `json:"booking_status" db:"booking_status"`
	PaymentReference *string       `json:"payment_reference,omitempty" db:"payment_reference"`
	PaymentMethod    *string       `json:"payment_method,omitempty" db:"payment_method"`
	CreatedAt        time.Time     `json:"created_at" db:"created_at"`
	UpdatedAt        time.Time     `json:"updated_at" db:"updated_at"`
}

// IsConfirmed reports whether the booking reached its paid terminal state
func (b *Booking) IsConfirmed() bool {
	return b.BookingStatus == BookingStatusConfirmed
}

// IsTerminal reports whether no further transition is expected without
// operator intervention
func (b *Booking) IsTerminal() bool {
	return b.BookingStatus == BookingStatusConfirmed ||
		b.BookingStatus == BookingStatusFailed ||
		b.BookingStatus == BookingStatusCancelled
}

// CheckoutRequest starts the payment flow for the seats currently held by
// the caller's session on the trip.
type CheckoutRequest struct {
	TripID         int64           `json:"trip_id" binding:"required"`
	PaymentService string          `json:"payment_service" binding:"required"`
	PaymentPhone   string          `json:"payment_phone"`
	Customer       CustomerDetails `json:"customer" binding:"required"`
}

// CustomerDetails carries the passenger contact info collected at checkout
type CustomerDetails struct {
	Name  string `json:"name" binding:"required"`
	Phone string `json:"phone" binding:"required"`
	Email string `json:"email" binding:"required,email"`
}

// Validate validates the checkout request beyond binding tags
func (r *CheckoutRequest) Validate() error {
	if r.Customer.Name == "" {
		return errors.New("customer name is required")
	}
	if r.Customer.Email == "" {
		return errors.New("customer email is required")
	}
	return nil
}

// CheckoutResponse is returned from the checkout endpoint. Status mirrors
// the synchronous gateway outcome; pending/unknown outcomes tell the client
// to keep polling the payment-status endpoint.
type CheckoutResponse struct {
	BookingID        int64  `json:"booking_id"`
	BookingReference string `json:"booking_reference"`
	Status           string `json:"status"`
	MesombStatus     string `json:"mesomb_status"`
	Message          string `json:"message"`
}

// PaymentStatusResponse is the poll endpoint payload
type PaymentStatusResponse struct {
	BookingID     int64         `json:"booking_id"`
	PaymentStatus PaymentStatus `json:"payment_status"`
	BookingStatus BookingStatus `json:"booking_status"`
	MesombStatus  string        `json:"mesomb_status"`
	StatusMessage string        `json:"status_message"`
	IsConfirmed   bool          `json:"is_confirmed"`
	IsFinal       bool          `json:"is_final"`
	CanRetry      bool          `json:"can_retry"`
	NextAction    string        `json:"next_action"`
	TimeElapsed   int           `json:"time_elapsed"`
}

// TicketRecord is what the core emits on confirmation for the external
// ticket rendering/email collaborator. The core never formats tickets.
type TicketRecord struct {
	BookingReference string      `json:"booking_reference"`
	SeatNumbers      SeatNumbers `json:"seat_numbers"`
	TotalAmount      float64     `json:"total_amount"`
	Currency         string      `json:"currency"`
	TripID           int64       `json:"trip_id"`
	RouteOrigin      string      `json:"route_origin"`
	RouteDestination string      `json:"route_destination"`
	OperatorName     string      `json:"operator_name"`
	DepartureTime    time.Time   `json:"departure_time"`
	CustomerName     string      `json:"customer_name"`
	CustomerEmail    string      `json:"customer_email"`
}
