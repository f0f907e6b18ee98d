package models

// Seat is a single descriptor in a resolved seat layout
type Seat struct {
	Number   string `json:"number"`
	Position int    `json:"position,omitempty"`
	Type     string `json:"type"`
}

// SeatRow is an ordered row of seats
type SeatRow struct {
	Row   int    `json:"row"`
	Seats []Seat `json:"seats"`
}

// SeatMap is the resolved layout for a trip plus current availability.
// UnavailableSeats is recomputed on every request, never cached.
type SeatMap struct {
	TripID           int64       `json:"trip_id"`
	Rows             []SeatRow   `json:"rows"`
	SeatsPerRow      int         `json:"seats_per_row"`
	TotalSeats       int         `json:"total_seats"`
	UnavailableSeats SeatNumbers `json:"unavailable_seats"`
}
