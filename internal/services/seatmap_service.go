package services

import (
	"encoding/json"
	"fmt"

	"github.com/nkolo-transit/booking-backend/internal/models"
)

// defaultSeatsPerRow is used when an operator has no layout configuration
const defaultSeatsPerRow = 4

// SeatMapService resolves the ordered seat layout for a trip. It is a pure
// resolver, availability is overlaid by the caller.
type SeatMapService struct{}

// NewSeatMapService creates a new seat map service
func NewSeatMapService() *SeatMapService {
	return &SeatMapService{}
}

// explicitLayout is the stored JSON shape for operator-designed layouts
type explicitLayout struct {
	Rows []struct {
		Row   int           `json:"row"`
		Seats []models.Seat `json:"seats"`
	} `json:"rows"`
}

// Resolve derives the seat layout for a trip. An explicit stored layout
// wins; otherwise rows are generated by filling left to right up to
// seats_per_row until the declared capacity is reached. The same
// configuration always yields the same layout.
func (s *SeatMapService) Resolve(trip *models.Trip, cfg *models.BusTypeConfig) (*models.SeatMap, error) {
	capacity := trip.Capacity
	seatsPerRow := defaultSeatsPerRow

	if cfg != nil {
		if cfg.Capacity > 0 {
			capacity = cfg.Capacity
		}
		if cfg.SeatsPerRow > 0 {
			seatsPerRow = cfg.SeatsPerRow
		}
		if cfg.ExplicitLayout != nil && *cfg.ExplicitLayout != "" {
			return s.resolveExplicit(trip.ID, *cfg.ExplicitLayout, seatsPerRow)
		}
	}

	if capacity <= 0 {
		return nil, fmt.Errorf("trip %d has no seat capacity configured", trip.ID)
	}

	return s.generate(trip.ID, capacity, seatsPerRow), nil
}

// SeatExists reports whether a seat number belongs to the layout
func (s *SeatMapService) SeatExists(seatMap *models.SeatMap, seatNumber string) bool {
	for _, row := range seatMap.Rows {
		for _, seat := range row.Seats {
			if seat.Number == seatNumber {
				return true
			}
		}
	}
	return false
}

// ValidateSeats checks every requested seat against the layout and returns
// the ones that do not exist
func (s *SeatMapService) ValidateSeats(seatMap *models.SeatMap, seats models.SeatNumbers) models.SeatNumbers {
	var missing models.SeatNumbers
	for _, seat := range seats {
		if !s.SeatExists(seatMap, seat) {
			missing = append(missing, seat)
		}
	}
	return missing
}

func (s *SeatMapService) resolveExplicit(tripID int64, raw string, seatsPerRow int) (*models.SeatMap, error) {
	var layout explicitLayout
	if err := json.Unmarshal([]byte(raw), &layout); err != nil {
		return nil, fmt.Errorf("invalid explicit layout: %w", err)
	}

	seatMap := &models.SeatMap{
		TripID:      tripID,
		SeatsPerRow: seatsPerRow,
	}
	for _, row := range layout.Rows {
		seatMap.Rows = append(seatMap.Rows, models.SeatRow{Row: row.Row, Seats: row.Seats})
		seatMap.TotalSeats += len(row.Seats)
	}

	return seatMap, nil
}

// generate fills rows left to right. Seats are numbered sequentially from
// 1, the first and last seat of a full row are window seats.
func (s *SeatMapService) generate(tripID int64, capacity, seatsPerRow int) *models.SeatMap {
	seatMap := &models.SeatMap{
		TripID:      tripID,
		SeatsPerRow: seatsPerRow,
		TotalSeats:  capacity,
	}

	seatNumber := 0
	rowNumber := 0
	for seatNumber < capacity {
		rowNumber++
		row := models.SeatRow{Row: rowNumber}

		for pos := 1; pos <= seatsPerRow && seatNumber < capacity; pos++ {
			seatNumber++
			seatType := "standard"
			if pos == 1 || pos == seatsPerRow {
				seatType = "window"
			}
			row.Seats = append(row.Seats, models.Seat{
				Number:   fmt.Sprintf("%d", seatNumber),
				Position: pos,
				Type:     seatType,
			})
		}

		seatMap.Rows = append(seatMap.Rows, row)
	}

	return seatMap
}
