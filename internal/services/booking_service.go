package services

import (
	"context"
	"errors"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/nkolo-transit/booking-backend/internal/config"
	"github.com/nkolo-transit/booking-backend/internal/database"
	"github.com/nkolo-transit/booking-backend/internal/models"
	"github.com/nkolo-transit/booking-backend/pkg/reference"
)

var (
	// ErrNoActiveHold indicates checkout was attempted without a live seat hold
	ErrNoActiveHold = errors.New("no active seat hold for this session, select seats first")

	// ErrBookingNotFound indicates the booking does not exist
	ErrBookingNotFound = errors.New("booking not found")
)

// BookingService orchestrates the checkout flow: it turns a session's seat
// hold into a pending booking, fires the gateway collection and hands the
// outcome to the reconciliation reducer.
type BookingService struct {
	tripRepo     *database.TripRepository
	holdRepo     *database.HoldRepository
	bookingRepo  *database.BookingRepository
	customerRepo *database.CustomerRepository
	auditRepo    *database.PaymentAuditRepository
	gateway      *MesombService
	recon        *ReconciliationService
	cfg          *config.BookingConfig
	logger       *logrus.Logger
}

// NewBookingService creates a new booking service
func NewBookingService(
	tripRepo *database.TripRepository,
	holdRepo *database.HoldRepository,
	bookingRepo *database.BookingRepository,
	customerRepo *database.CustomerRepository,
	auditRepo *database.PaymentAuditRepository,
	gateway *MesombService,
	recon *ReconciliationService,
	cfg *config.BookingConfig,
	logger *logrus.Logger,
) *BookingService {
	return &BookingService{
		tripRepo:     tripRepo,
		holdRepo:     holdRepo,
		bookingRepo:  bookingRepo,
		customerRepo: customerRepo,
		auditRepo:    auditRepo,
		gateway:      gateway,
		recon:        recon,
		cfg:          cfg,
		logger:       logger,
	}
}

// Checkout runs the payment flow for the seats the session currently holds.
// All validation happens before anything is persisted; the booking row is
// created pending BEFORE the gateway round-trip so a charge can always be
// traced back, and no database lock is held across the network call.
func (s *BookingService) Checkout(ctx context.Context, sessionID string, req *models.CheckoutRequest, clientIP, userAgent string) (*models.CheckoutResponse, *models.Booking, error) {
	trip, err := s.tripRepo.GetByID(req.TripID)
	if err != nil {
		return nil, nil, err
	}
	if trip == nil {
		return nil, nil, ErrTripNotFound
	}
	if !trip.IsBookable(time.Now()) {
		return nil, nil, ErrTripNotBookable
	}

	hold, err := s.holdRepo.GetBySession(req.TripID, sessionID)
	if err != nil {
		return nil, nil, err
	}
	if hold == nil {
		return nil, nil, ErrNoActiveHold
	}

	totalAmount := float64(len(hold.SeatNumbers)) * trip.SeatPrice

	// Validation errors never produce a booking row
	payerPhone := req.PaymentPhone
	if payerPhone == "" {
		payerPhone = req.Customer.Phone
	}
	normalizedPhone, err := s.gateway.ValidateCollect(totalAmount, req.PaymentService, payerPhone)
	if err != nil {
		return nil, nil, err
	}

	customer, err := s.customerRepo.FindOrCreate(req.Customer)
	if err != nil {
		return nil, nil, err
	}

	booking := &models.Booking{
		TripID:      req.TripID,
		CustomerID:  customer.ID,
		SessionID:   sessionID,
		SeatNumbers: hold.SeatNumbers,
		TotalAmount: totalAmount,
	}
	if err := s.bookingRepo.CreatePending(booking); err != nil {
		return nil, nil, err
	}

	trxID := reference.NewTrxID(time.Now())
	if err := s.bookingRepo.SetPaymentReference(booking.ID, trxID); err != nil {
		return nil, nil, err
	}
	booking.PaymentReference = &trxID

	initAudit := models.NewPaymentAudit(models.PaymentEventInitiated, models.PaymentSourceUser).
		SetBooking(booking.ID, booking.BookingReference).
		SetMetadata(clientIP, userAgent)
	initAudit.SetAmounts(totalAmount, totalAmount, s.cfg.Currency)
	if err := s.auditRepo.Log(ctx, initAudit); err != nil {
		s.logger.WithError(err).Error("Failed to record payment initiation")
	}

	result := s.gateway.Collect(&CollectParams{
		Amount:           totalAmount,
		PayerPhone:       normalizedPhone,
		Service:          req.PaymentService,
		TrxID:            trxID,
		BookingReference: booking.BookingReference,
		CustomerName:     req.Customer.Name,
		CustomerPhone:    req.Customer.Phone,
	})

	booking, err = s.recon.Apply(ctx, booking, result, models.PaymentSourceBackend)
	if err != nil {
		return nil, nil, err
	}

	return s.checkoutResponse(booking, result), booking, nil
}

func (s *BookingService) checkoutResponse(booking *models.Booking, result *models.GatewayResult) *models.CheckoutResponse {
	resp := &models.CheckoutResponse{
		BookingID:        booking.ID,
		BookingReference: booking.BookingReference,
		Status:           string(booking.BookingStatus),
		MesombStatus:     string(result.Status),
	}

	switch result.Status {
	case models.GatewaySuccess:
		resp.Message = "Payment completed successfully"
	case models.GatewayPending:
		resp.Message = "Payment is being processed. Check your phone and approve the transaction."
	case models.GatewayFailed, models.GatewayCanceled, models.GatewayErrored:
		resp.Message = "Payment was not completed. You can retry with a new payment."
		if result.Message != "" {
			resp.Message = result.Message
		}
	default:
		resp.Message = "Payment outcome could not be determined. Contact support with reference " + booking.BookingReference
	}

	return resp
}

// PaymentStatus answers a client poll for a booking. The gateway is only
// consulted when the booking is still pending, has an outbound reference
// and is old enough that the synchronous result has clearly not landed.
// Settled signals from a poll go through the same reducer as webhooks;
// PENDING and a failed read leave the booking untouched.
func (s *BookingService) PaymentStatus(ctx context.Context, bookingID int64) (*models.PaymentStatusResponse, error) {
	booking, err := s.bookingRepo.GetByID(bookingID)
	if err != nil {
		return nil, err
	}
	if booking == nil {
		return nil, ErrBookingNotFound
	}

	mesombStatus := models.GatewayUnknown
	switch booking.BookingStatus {
	case models.BookingStatusConfirmed:
		mesombStatus = models.GatewaySuccess
	case models.BookingStatusFailed, models.BookingStatusCancelled:
		mesombStatus = models.GatewayFailed
	default:
		mesombStatus = models.GatewayPending
	}

	shouldCheck := booking.BookingStatus == models.BookingStatusPending &&
		booking.PaymentReference != nil &&
		time.Since(booking.CreatedAt) >= s.cfg.PollMinAge

	if shouldCheck {
		checkAudit := models.NewPaymentAudit(models.PaymentEventStatusCheckRequest, models.PaymentSourceSystem).
			SetBooking(booking.ID, booking.BookingReference)
		if err := s.auditRepo.Log(ctx, checkAudit); err != nil {
			s.logger.WithError(err).Error("Failed to record status check")
		}

		result := s.gateway.CheckStatus(*booking.PaymentReference)
		switch result.Status {
		case models.GatewayPending:
			mesombStatus = result.Status
		case models.GatewayErrored:
			// A failed read surfaces as ERRORED and says nothing about the
			// transaction itself. Report the stored state and let the
			// webhook or the next poll settle it.
			s.logger.WithField("booking_reference", booking.BookingReference).
				WithField("gateway_message", result.Message).
				Warn("Gateway status check errored, reporting stored state")
		default:
			mesombStatus = result.Status
			booking, err = s.recon.Apply(ctx, booking, result, models.PaymentSourceMesombAPI)
			if err != nil {
				return nil, err
			}
		}
	}

	return s.statusResponse(booking, mesombStatus), nil
}

func (s *BookingService) statusResponse(booking *models.Booking, mesombStatus models.GatewayStatus) *models.PaymentStatusResponse {
	resp := &models.PaymentStatusResponse{
		BookingID:     booking.ID,
		PaymentStatus: booking.PaymentStatus,
		BookingStatus: booking.BookingStatus,
		MesombStatus:  string(mesombStatus),
		IsConfirmed:   booking.IsConfirmed(),
		IsFinal:       booking.IsTerminal(),
		TimeElapsed:   int(time.Since(booking.CreatedAt).Seconds()),
	}

	switch booking.BookingStatus {
	case models.BookingStatusConfirmed:
		resp.NextAction = "view_ticket"
		resp.StatusMessage = "Payment confirmed. Your seats are secured."
	case models.BookingStatusFailed, models.BookingStatusCancelled:
		resp.NextAction = "retry_payment"
		resp.CanRetry = true
		resp.StatusMessage = "Payment was not completed. You can retry with a new payment."
	default:
		if booking.PaymentStatus == models.PaymentStatusUnknown {
			resp.NextAction = "contact_support"
			resp.StatusMessage = "Payment outcome could not be determined. Contact support with reference " + booking.BookingReference
		} else {
			resp.NextAction = "wait_or_retry"
			resp.CanRetry = true
			resp.StatusMessage = "Payment pending. Reopen your payment app and approve the transaction."
		}
	}

	return resp
}

// GetByReference looks up a booking by its customer-facing reference
func (s *BookingService) GetByReference(ref string) (*models.Booking, error) {
	booking, err := s.bookingRepo.GetByReference(ref)
	if err != nil {
		return nil, err
	}
	if booking == nil {
		return nil, ErrBookingNotFound
	}
	return booking, nil
}

// GetByPaymentReference correlates an inbound gateway reference to a booking
func (s *BookingService) GetByPaymentReference(trxID string) (*models.Booking, error) {
	return s.bookingRepo.GetByPaymentReference(trxID)
}
