package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/nkolo-transit/booking-backend/internal/middleware"
	"github.com/nkolo-transit/booking-backend/internal/models"
	"github.com/nkolo-transit/booking-backend/internal/services"
	"github.com/nkolo-transit/booking-backend/internal/utils"
)

// CheckoutHandler turns a session's seat hold into a paid booking
type CheckoutHandler struct {
	bookingService *services.BookingService
	rateLimiter    *services.RateLimitService
	logger         *logrus.Logger
}

// NewCheckoutHandler creates a new CheckoutHandler
func NewCheckoutHandler(bookingService *services.BookingService, rateLimiter *services.RateLimitService, logger *logrus.Logger) *CheckoutHandler {
	return &CheckoutHandler{
		bookingService: bookingService,
		rateLimiter:    rateLimiter,
		logger:         logger,
	}
}

// Checkout initiates the mobile money collection for the held seats.
// 200 means the payment confirmed synchronously, 202 means the outcome
// is still open and the client should poll payment-status, 400 means
// the collection was declined.
// @Summary Checkout held seats
// @Description Creates a pending booking and collects payment via mobile money
// @Tags Checkout
// @Accept json
// @Produce json
// @Param request body models.CheckoutRequest true "Checkout request"
// @Success 200 {object} models.CheckoutResponse "Payment confirmed"
// @Success 202 {object} models.CheckoutResponse "Payment pending, keep polling"
// @Failure 400 {object} map[string]interface{} "Validation error or declined payment"
// @Router /checkout [post]
func (h *CheckoutHandler) Checkout(c *gin.Context) {
	sessionID, ok := middleware.GetSessionID(c)
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{"error": "missing session"})
		return
	}

	var req models.CheckoutRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request: " + err.Error()})
		return
	}
	if err := req.Validate(); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	clientIP := utils.GetRealIP(c)
	if err := h.rateLimiter.CheckCheckoutRateLimit(clientIP); err != nil {
		if limited, ok := err.(*services.RateLimitError); ok {
			c.JSON(http.StatusTooManyRequests, gin.H{
				"error":       "rate_limited",
				"message":     limited.Message,
				"retry_after": limited.RetryAfter,
			})
			return
		}
		h.logger.WithError(err).Error("Checkout rate limit check failed")
	}
	if err := h.rateLimiter.RecordCheckoutRequest(clientIP); err != nil {
		h.logger.WithError(err).Error("Failed to record checkout attempt")
	}

	resp, booking, err := h.bookingService.Checkout(c.Request.Context(), sessionID, &req, clientIP, c.Request.UserAgent())
	if err != nil {
		switch err {
		case services.ErrTripNotFound:
			c.JSON(http.StatusNotFound, gin.H{"error": "trip not found"})
		case services.ErrTripNotBookable, services.ErrNoActiveHold,
			services.ErrAmountTooSmall, services.ErrInvalidService, services.ErrInvalidPhone:
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		default:
			h.logger.WithError(err).WithField("trip_id", req.TripID).Error("Checkout failed")
			c.JSON(http.StatusInternalServerError, gin.H{"error": "checkout failed"})
		}
		return
	}

	// 200 settled, 202 still in flight, 400 payment did not go through
	status := http.StatusAccepted
	switch booking.BookingStatus {
	case models.BookingStatusConfirmed:
		status = http.StatusOK
	case models.BookingStatusFailed, models.BookingStatusCancelled:
		status = http.StatusBadRequest
	}
	c.JSON(status, resp)
}
