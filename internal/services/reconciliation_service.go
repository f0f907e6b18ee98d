package services

import (
	"context"

	"github.com/sirupsen/logrus"

	"github.com/nkolo-transit/booking-backend/internal/config"
	"github.com/nkolo-transit/booking-backend/internal/database"
	"github.com/nkolo-transit/booking-backend/internal/models"
)

// ReconciliationService is the single reducer for payment outcome signals.
// The synchronous collect result, inbound webhooks and client polls all
// funnel through Apply, so the booking outcome never depends on which
// channel delivered the signal first.
type ReconciliationService struct {
	bookingRepo  *database.BookingRepository
	tripRepo     *database.TripRepository
	customerRepo *database.CustomerRepository
	auditRepo    *database.PaymentAuditRepository
	tickets      TicketIssuer
	cfg          *config.BookingConfig
	logger       *logrus.Logger
}

// NewReconciliationService creates a new reconciliation service
func NewReconciliationService(
	bookingRepo *database.BookingRepository,
	tripRepo *database.TripRepository,
	customerRepo *database.CustomerRepository,
	auditRepo *database.PaymentAuditRepository,
	tickets TicketIssuer,
	cfg *config.BookingConfig,
	logger *logrus.Logger,
) *ReconciliationService {
	return &ReconciliationService{
		bookingRepo:  bookingRepo,
		tripRepo:     tripRepo,
		customerRepo: customerRepo,
		auditRepo:    auditRepo,
		tickets:      tickets,
		cfg:          cfg,
		logger:       logger,
	}
}

// Apply runs one gateway signal through the transition rules and returns
// the booking in its resulting state.
//
//	pending  + SUCCESS                 -> confirmed, decrement, ticket
//	pending  + FAILED/CANCELED/ERRORED -> failed
//	pending  + PENDING                 -> unchanged, keep polling
//	pending  + UNKNOWN                 -> unknown, operator path
//	confirmed + anything               -> no-op
//	failed   + SUCCESS                 -> anomaly: re-confirm and decrement
func (s *ReconciliationService) Apply(ctx context.Context, booking *models.Booking, result *models.GatewayResult, source models.PaymentEventSource) (*models.Booking, error) {
	log := s.logger.WithFields(logrus.Fields{
		"booking_reference": booking.BookingReference,
		"gateway_status":    result.Status,
		"source":            source,
	})

	if booking.BookingStatus == models.BookingStatusConfirmed {
		log.Debug("Signal for already-confirmed booking absorbed")
		return booking, nil
	}

	switch result.Status {
	case models.GatewaySuccess:
		return s.applySuccess(ctx, booking, result, source, log)

	case models.GatewayFailed, models.GatewayCanceled, models.GatewayErrored:
		changed, err := s.bookingRepo.MarkFailed(booking.ID)
		if err != nil {
			return nil, err
		}
		if changed {
			eventType := models.PaymentEventFailed
			if result.Status == models.GatewayCanceled {
				eventType = models.PaymentEventCancelled
			}
			s.audit(ctx, booking, result, source, eventType, "")
			log.Info("Booking marked failed")
		}
		return s.reload(booking)

	case models.GatewayPending:
		log.Debug("Payment still pending, no state change")
		return booking, nil

	default: // UNKNOWN and anything unmapped
		if err := s.bookingRepo.MarkUnknown(booking.ID); err != nil {
			return nil, err
		}
		s.audit(ctx, booking, result, source, models.PaymentEventReconciliationMismatch,
			"gateway outcome indeterminate, parked for manual reconciliation")
		log.Warn("Booking parked as unknown")
		return s.reload(booking)
	}
}

func (s *ReconciliationService) applySuccess(ctx context.Context, booking *models.Booking, result *models.GatewayResult, source models.PaymentEventSource, log *logrus.Entry) (*models.Booking, error) {
	wasFailed := booking.BookingStatus == models.BookingStatusFailed

	confirmed, err := s.bookingRepo.ConfirmAndDecrement(booking.ID, result.Service)
	if err != nil {
		s.audit(ctx, booking, result, source, models.PaymentEventBookingConfirmFailed, err.Error())
		return nil, err
	}
	if !confirmed {
		// Another channel won the race, absorb as a no-op
		log.Debug("Duplicate SUCCESS signal absorbed")
		return s.reload(booking)
	}

	s.audit(ctx, booking, result, source, models.PaymentEventBookingConfirmed, "")

	if wasFailed {
		s.audit(ctx, booking, result, source, models.PaymentEventReconciliationMismatch,
			"provider reported success after booking was classified failed")
		log.Warn("Late provider success re-confirmed a failed booking")
	}

	if result.Amount > 0 {
		audit := models.NewPaymentAudit(models.PaymentEventResponse, source).
			SetBooking(booking.ID, booking.BookingReference).
			SetTransactionID(result.TransactionID).
			SetGatewayStatus(result.Status)
		if !audit.SetAmounts(booking.TotalAmount, result.Amount, s.cfg.Currency) {
			audit.EventType = models.PaymentEventReconciliationMismatch
			audit.SetError("collected amount does not match booking total")
			log.WithFields(logrus.Fields{
				"expected": booking.TotalAmount,
				"received": result.Amount,
			}).Warn("Amount mismatch on confirmed payment")
			if err := s.auditRepo.Log(ctx, audit); err != nil {
				log.WithError(err).Error("Failed to record amount mismatch")
			}
		}
	}

	s.emitTicket(booking, log)
	log.Info("Booking confirmed and inventory decremented")

	return s.reload(booking)
}

// emitTicket hands the confirmed booking to the external ticket collaborator
func (s *ReconciliationService) emitTicket(booking *models.Booking, log *logrus.Entry) {
	trip, err := s.tripRepo.GetByID(booking.TripID)
	if err != nil || trip == nil {
		log.WithError(err).Error("Failed to load trip for ticket emission")
		return
	}
	customer, err := s.customerRepo.GetByID(booking.CustomerID)
	if err != nil || customer == nil {
		log.WithError(err).Error("Failed to load customer for ticket emission")
		return
	}

	s.tickets.Issue(&models.TicketRecord{
		BookingReference: booking.BookingReference,
		SeatNumbers:      booking.SeatNumbers,
		TotalAmount:      booking.TotalAmount,
		Currency:         s.cfg.Currency,
		TripID:           trip.ID,
		RouteOrigin:      trip.RouteOrigin,
		RouteDestination: trip.RouteDestination,
		OperatorName:     trip.OperatorName,
		DepartureTime:    trip.DepartureTime,
		CustomerName:     customer.Name,
		CustomerEmail:    customer.Email,
	})
}

func (s *ReconciliationService) audit(ctx context.Context, booking *models.Booking, result *models.GatewayResult, source models.PaymentEventSource, eventType models.PaymentEventType, errMsg string) {
	audit := models.NewPaymentAudit(eventType, source).
		SetBooking(booking.ID, booking.BookingReference).
		SetTransactionID(result.TransactionID).
		SetGatewayStatus(result.Status)
	if errMsg != "" {
		audit.SetError(errMsg)
	}

	if err := s.auditRepo.Log(ctx, audit); err != nil {
		s.logger.WithError(err).WithField("booking_reference", booking.BookingReference).
			Error("Failed to write payment audit")
	}
}

func (s *ReconciliationService) reload(booking *models.Booking) (*models.Booking, error) {
	fresh, err := s.bookingRepo.GetByID(booking.ID)
	if err != nil {
		return nil, err
	}
	if fresh == nil {
		return booking, nil
	}
	return fresh, nil
}
