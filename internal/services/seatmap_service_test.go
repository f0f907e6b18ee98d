package services

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nkolo-transit/booking-backend/internal/models"
)

func TestResolve_GeneratedLayout(t *testing.T) {
	svc := NewSeatMapService()
	trip := &models.Trip{ID: 7, Capacity: 10}
	cfg := &models.BusTypeConfig{OperatorID: 1, BusTypeID: 2, Capacity: 10, SeatsPerRow: 4}

	seatMap, err := svc.Resolve(trip, cfg)
	require.NoError(t, err)

	assert.Equal(t, int64(7), seatMap.TripID)
	assert.Equal(t, 10, seatMap.TotalSeats)
	require.Len(t, seatMap.Rows, 3)
	assert.Len(t, seatMap.Rows[0].Seats, 4)
	assert.Len(t, seatMap.Rows[1].Seats, 4)
	assert.Len(t, seatMap.Rows[2].Seats, 2) // overflow row

	assert.Equal(t, "1", seatMap.Rows[0].Seats[0].Number)
	assert.Equal(t, "window", seatMap.Rows[0].Seats[0].Type)
	assert.Equal(t, "standard", seatMap.Rows[0].Seats[1].Type)
	assert.Equal(t, "10", seatMap.Rows[2].Seats[1].Number)
}

func TestResolve_Deterministic(t *testing.T) {
	svc := NewSeatMapService()
	trip := &models.Trip{ID: 3, Capacity: 35}
	cfg := &models.BusTypeConfig{Capacity: 35, SeatsPerRow: 5}

	first, err := svc.Resolve(trip, cfg)
	require.NoError(t, err)
	second, err := svc.Resolve(trip, cfg)
	require.NoError(t, err)

	assert.Equal(t, first, second)
}

func TestResolve_DefaultFallback(t *testing.T) {
	svc := NewSeatMapService()
	trip := &models.Trip{ID: 9, Capacity: 12}

	// No operator configuration at all
	seatMap, err := svc.Resolve(trip, nil)
	require.NoError(t, err)

	assert.Equal(t, 4, seatMap.SeatsPerRow)
	assert.Equal(t, 12, seatMap.TotalSeats)
	assert.Len(t, seatMap.Rows, 3)
}

func TestResolve_ExplicitLayoutWins(t *testing.T) {
	svc := NewSeatMapService()
	layout := `{"rows":[{"row":1,"seats":[{"number":"A1","type":"window"},{"number":"A2","type":"standard"}]},{"row":2,"seats":[{"number":"B1","type":"window"}]}]}`
	trip := &models.Trip{ID: 4, Capacity: 50}
	cfg := &models.BusTypeConfig{Capacity: 50, SeatsPerRow: 4, ExplicitLayout: &layout}

	seatMap, err := svc.Resolve(trip, cfg)
	require.NoError(t, err)

	assert.Equal(t, 3, seatMap.TotalSeats)
	require.Len(t, seatMap.Rows, 2)
	assert.Equal(t, "A1", seatMap.Rows[0].Seats[0].Number)
	assert.Equal(t, "B1", seatMap.Rows[1].Seats[0].Number)
}

func TestResolve_InvalidExplicitLayout(t *testing.T) {
	svc := NewSeatMapService()
	layout := `not json`
	trip := &models.Trip{ID: 4, Capacity: 50}
	cfg := &models.BusTypeConfig{Capacity: 50, SeatsPerRow: 4, ExplicitLayout: &layout}

	_, err := svc.Resolve(trip, cfg)
	assert.Error(t, err)
}

func TestResolve_NoCapacity(t *testing.T) {
	svc := NewSeatMapService()
	trip := &models.Trip{ID: 5}

	_, err := svc.Resolve(trip, nil)
	assert.Error(t, err)
}

func TestValidateSeats(t *testing.T) {
	svc := NewSeatMapService()
	trip := &models.Trip{ID: 1, Capacity: 8}

	seatMap, err := svc.Resolve(trip, nil)
	require.NoError(t, err)

	missing := svc.ValidateSeats(seatMap, models.SeatNumbers{"1", "8"})
	assert.Empty(t, missing)

	missing = svc.ValidateSeats(seatMap, models.SeatNumbers{"1", "9", "99"})
	assert.Equal(t, models.SeatNumbers{"9", "99"}, missing)
}
