package services

import (
	"errors"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/nkolo-transit/booking-backend/internal/config"
	"github.com/nkolo-transit/booking-backend/internal/database"
	"github.com/nkolo-transit/booking-backend/internal/models"
)

var (
	// ErrTripNotFound indicates the trip does not exist
	ErrTripNotFound = errors.New("trip not found")

	// ErrTripNotBookable indicates the trip departed or was cancelled
	ErrTripNotBookable = errors.New("trip is not open for booking")

	// ErrNoSeatsRequested indicates an empty seat selection
	ErrNoSeatsRequested = errors.New("at least one seat must be selected")
)

// UnknownSeatsError is returned when requested seats are not part of the
// trip's layout
type UnknownSeatsError struct {
	Seats models.SeatNumbers
}

func (e *UnknownSeatsError) Error() string {
	return fmt.Sprintf("seats not in trip layout: %v", []string(e.Seats))
}

// HoldService manages session-scoped seat holds
type HoldService struct {
	tripRepo *database.TripRepository
	holdRepo *database.HoldRepository
	seatMaps *SeatMapService
	cfg      *config.BookingConfig
	logger   *logrus.Logger
}

// NewHoldService creates a new hold service
func NewHoldService(
	tripRepo *database.TripRepository,
	holdRepo *database.HoldRepository,
	seatMaps *SeatMapService,
	cfg *config.BookingConfig,
	logger *logrus.Logger,
) *HoldService {
	return &HoldService{
		tripRepo: tripRepo,
		holdRepo: holdRepo,
		seatMaps: seatMaps,
		cfg:      cfg,
		logger:   logger,
	}
}

// Hold places a seat hold for the session. The conflict re-check and the
// insert run atomically in the repository, so two overlapping selections
// can never both succeed. Returns *models.SeatConflictError on collision
// and *UnknownSeatsError when a seat is not in the layout.
func (s *HoldService) Hold(tripID int64, sessionID string, rawSeats interface{}) (*models.SeatHold, error) {
	seats := models.ParseSeatNumbers(rawSeats)
	if len(seats) == 0 {
		return nil, ErrNoSeatsRequested
	}

	trip, seatMap, err := s.resolveTrip(tripID)
	if err != nil {
		return nil, err
	}
	if !trip.IsBookable(time.Now()) {
		return nil, ErrTripNotBookable
	}

	if missing := s.seatMaps.ValidateSeats(seatMap, seats); len(missing) > 0 {
		return nil, &UnknownSeatsError{Seats: missing}
	}

	hold, err := s.holdRepo.CreateHold(tripID, sessionID, seats, s.cfg.HoldTTL)
	if err != nil {
		return nil, err
	}

	s.logger.WithFields(logrus.Fields{
		"trip_id":    tripID,
		"session_id": sessionID,
		"seats":      []string(seats),
		"expires_at": hold.ExpiresAt,
	}).Info("Seat hold placed")

	return hold, nil
}

// Release drops the session's hold on a trip
func (s *HoldService) Release(tripID int64, sessionID string) error {
	if err := s.holdRepo.Release(tripID, sessionID); err != nil {
		return err
	}

	s.logger.WithFields(logrus.Fields{
		"trip_id":    tripID,
		"session_id": sessionID,
	}).Info("Seat hold released")

	return nil
}

// ActiveHold returns the session's live hold on a trip, or nil
func (s *HoldService) ActiveHold(tripID int64, sessionID string) (*models.SeatHold, error) {
	return s.holdRepo.GetBySession(tripID, sessionID)
}

// SeatMap resolves the trip's layout with current availability overlaid.
// The viewer's own hold is excluded so their selection stays visible as
// theirs.
func (s *HoldService) SeatMap(tripID int64, sessionID string) (*models.SeatMap, error) {
	_, seatMap, err := s.resolveTrip(tripID)
	if err != nil {
		return nil, err
	}

	unavailable, err := s.holdRepo.UnavailableSeats(tripID, sessionID)
	if err != nil {
		return nil, err
	}
	seatMap.UnavailableSeats = unavailable

	return seatMap, nil
}

// AvailableCount returns how many layout seats are currently selectable
func (s *HoldService) AvailableCount(tripID int64, sessionID string) (int, error) {
	seatMap, err := s.SeatMap(tripID, sessionID)
	if err != nil {
		return 0, err
	}
	return seatMap.TotalSeats - len(seatMap.UnavailableSeats), nil
}

func (s *HoldService) resolveTrip(tripID int64) (*models.Trip, *models.SeatMap, error) {
	trip, err := s.tripRepo.GetByID(tripID)
	if err != nil {
		return nil, nil, err
	}
	if trip == nil {
		return nil, nil, ErrTripNotFound
	}

	cfg, err := s.tripRepo.GetBusTypeConfig(trip.OperatorID, trip.BusTypeID)
	if err != nil {
		return nil, nil, err
	}

	seatMap, err := s.seatMaps.Resolve(trip, cfg)
	if err != nil {
		return nil, nil, err
	}

	return trip, seatMap, nil
}
