package models

import (
	"time"
)

// TripStatus represents the lifecycle status of a scheduled departure
type TripStatus string

const (
	TripStatusScheduled TripStatus = "scheduled"
	TripStatusDeparted  TripStatus = "departed"
	TripStatusArrived   TripStatus = "arrived"
	TripStatusCancelled TripStatus = "cancelled"
)

// Trip represents a scheduled departure on a route. Trips are created by the
// external schedule generator; the booking core only ever mutates
// available_seats, and only through the confirmed-payment transition.
type Trip struct {
	ID             int64      `json:"id" db:"id"`
	RouteID        int64      `json:"route_id" db:"route_id"`
	OperatorID     int64      `json:"operator_id" db:"operator_id"`
	BusTypeID      int64      `json:"bus_type_id" db:"bus_type_id"`
	VirtualBusID   *string    `json:"virtual_bus_id,omitempty" db:"virtual_bus_id"`
	DepartureTime  time.Time  `json:"departure_time" db:"departure_time"`
	ArrivalTime    time.Time  `json:"arrival_time" db:"arrival_time"`
	SeatPrice      float64    `json:"seat_price" db:"seat_price"`
	AvailableSeats int        `json:"available_seats" db:"available_seats"`
	Capacity       int        `json:"capacity" db:"capacity"`
	Status         TripStatus `json:"status" db:"status"`
	CreatedAt      time.Time  `json:"created_at" db:"created_at"`
	UpdatedAt      time.Time  `json:"updated_at" db:"updated_at"`

	// Denormalized route/operator fields for ticket emission
	RouteOrigin      string `json:"route_origin,omitempty" db:"route_origin"`
	RouteDestination string `json:"route_destination,omitempty" db:"route_destination"`
	OperatorName     string `json:"operator_name,omitempty" db:"operator_name"`
}

// IsBookable reports whether the trip still accepts new bookings
func (t *Trip) IsBookable(now time.Time) bool {
	return t.Status == TripStatusScheduled && t.DepartureTime.After(now)
}

// BusTypeConfig is the operator's bus-type configuration consumed by the
// seat layout resolver. ExplicitLayout, when present, is the stored seat map
// and wins over generation.
type BusTypeConfig struct {
	OperatorID     int64   `json:"operator_id" db:"operator_id"`
	BusTypeID      int64   `json:"bus_type_id" db:"bus_type_id"`
	Capacity       int     `json:"capacity" db:"capacity"`
	SeatsPerRow    int     `json:"seats_per_row" db:"seats_per_row"`
	ExplicitLayout *string `json:"seat_layout,omitempty" db:"seat_layout"`
}
