package handlers

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/nkolo-transit/booking-backend/internal/database"
	"github.com/nkolo-transit/booking-backend/internal/models"
	"github.com/nkolo-transit/booking-backend/internal/services"
	"github.com/nkolo-transit/booking-backend/internal/utils"
)

// SignatureHeader carries the webhook HMAC over the raw body
const SignatureHeader = "X-Mesomb-Signature"

// PaymentHandler handles gateway webhooks and client status polls
type PaymentHandler struct {
	bookingService *services.BookingService
	gateway        *services.MesombService
	recon          *services.ReconciliationService
	auditRepo      *database.PaymentAuditRepository
	logger         *logrus.Logger
}

// NewPaymentHandler creates a new PaymentHandler
func NewPaymentHandler(
	bookingService *services.BookingService,
	gateway *services.MesombService,
	recon *services.ReconciliationService,
	auditRepo *database.PaymentAuditRepository,
	logger *logrus.Logger,
) *PaymentHandler {
	return &PaymentHandler{
		bookingService: bookingService,
		gateway:        gateway,
		recon:          recon,
		auditRepo:      auditRepo,
		logger:         logger,
	}
}

// ============================================================================
// WEBHOOK - POST /api/v1/payments/webhook
// ============================================================================

// Webhook receives MeSomb transaction notifications. The signature is
// verified over the raw, unparsed body; an invalid signature is rejected
// with 401 and mutates nothing.
// @Summary MeSomb payment webhook
// @Tags Payments
// @Accept json
// @Produce json
// @Param X-Mesomb-Signature header string true "sha256=<hex> HMAC over raw body"
// @Success 200 {object} map[string]interface{}
// @Failure 401 {object} map[string]interface{} "Invalid signature"
// @Router /payments/webhook [post]
func (h *PaymentHandler) Webhook(c *gin.Context) {
	rawBody, err := c.GetRawData()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "unreadable body"})
		return
	}

	signature := c.GetHeader(SignatureHeader)
	if !h.gateway.VerifyWebhook(rawBody, signature) {
		audit := models.NewPaymentAudit(models.PaymentEventWebhookRejected, models.PaymentSourceMesombWebhook).
			SetError("invalid webhook signature").
			SetMetadata(utils.GetRealIP(c), c.Request.UserAgent())
		if logErr := h.auditRepo.Log(c.Request.Context(), audit); logErr != nil {
			h.logger.WithError(logErr).Error("Failed to record rejected webhook")
		}

		h.logger.WithField("ip", utils.GetRealIP(c)).Warn("Webhook rejected: invalid signature")
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid signature"})
		return
	}

	payload, err := h.gateway.ParseWebhook(rawBody)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	audit := models.NewPaymentAudit(models.PaymentEventWebhookReceived, models.PaymentSourceMesombWebhook).
		SetTransactionID(payload.Transaction.PK).
		SetRawBody(string(rawBody)).
		SetMetadata(utils.GetRealIP(c), c.Request.UserAgent())
	if err := h.auditRepo.Log(c.Request.Context(), audit); err != nil {
		h.logger.WithError(err).Error("Failed to record webhook")
	}

	if payload.Event != "transaction.updated" {
		c.JSON(http.StatusOK, gin.H{"message": "event ignored"})
		return
	}

	booking, err := h.bookingService.GetByPaymentReference(payload.Transaction.TrxID)
	if err != nil {
		h.logger.WithError(err).Error("Webhook booking lookup failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "lookup failed"})
		return
	}
	if booking == nil {
		h.logger.WithField("trx_id", payload.Transaction.TrxID).Warn("Webhook for unknown transaction")
		c.JSON(http.StatusOK, gin.H{"message": "no matching booking"})
		return
	}

	result := &models.GatewayResult{
		Status:        models.MapGatewayStatus(strings.ToUpper(payload.Transaction.Status)),
		TransactionID: payload.Transaction.PK,
		TrxID:         payload.Transaction.TrxID,
		Service:       payload.Transaction.Service,
		Amount:        payload.Transaction.Amount,
	}

	booking, err = h.recon.Apply(c.Request.Context(), booking, result, models.PaymentSourceMesombWebhook)
	if err != nil {
		h.logger.WithError(err).WithField("booking_reference", booking.BookingReference).
			Error("Webhook reconciliation failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "reconciliation failed"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message":        "processed",
		"booking_status": booking.BookingStatus,
	})
}

// ============================================================================
// STATUS POLL - GET /api/v1/bookings/:booking_id/payment-status
// ============================================================================

// PaymentStatus answers a client poll for a booking's payment outcome
// @Summary Poll payment status
// @Tags Payments
// @Produce json
// @Param booking_id path int true "Booking ID"
// @Success 200 {object} models.PaymentStatusResponse
// @Failure 404 {object} map[string]interface{} "Booking not found"
// @Router /bookings/{booking_id}/payment-status [get]
func (h *PaymentHandler) PaymentStatus(c *gin.Context) {
	bookingID, err := strconv.ParseInt(c.Param("booking_id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid booking_id"})
		return
	}

	resp, err := h.bookingService.PaymentStatus(c.Request.Context(), bookingID)
	if err != nil {
		if err == services.ErrBookingNotFound {
			c.JSON(http.StatusNotFound, gin.H{"error": "booking not found"})
			return
		}
		h.logger.WithError(err).WithField("booking_id", bookingID).Error("Status poll failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "status check failed"})
		return
	}

	c.JSON(http.StatusOK, resp)
}
