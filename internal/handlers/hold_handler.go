package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/nkolo-transit/booking-backend/internal/middleware"
	"github.com/nkolo-transit/booking-backend/internal/models"
	"github.com/nkolo-transit/booking-backend/internal/services"
)

// HoldHandler handles seat hold creation and release
type HoldHandler struct {
	holdService *services.HoldService
	rateLimiter *services.RateLimitService
	logger      *logrus.Logger
}

// NewHoldHandler creates a new HoldHandler
func NewHoldHandler(holdService *services.HoldService, rateLimiter *services.RateLimitService, logger *logrus.Logger) *HoldHandler {
	return &HoldHandler{
		holdService: holdService,
		rateLimiter: rateLimiter,
		logger:      logger,
	}
}

// ============================================================================
// CREATE HOLD - POST /api/v1/holds
// ============================================================================

// CreateHold places a TTL-bound hold on the requested seats
// @Summary Hold seats
// @Description Holds the requested seats for the caller's session until the hold expires
// @Tags Holds
// @Accept json
// @Produce json
// @Param request body models.CreateHoldRequest true "Hold request"
// @Success 201 {object} models.HoldResponse
// @Failure 400 {object} map[string]interface{} "Validation error or seats unavailable"
// @Router /holds [post]
func (h *HoldHandler) CreateHold(c *gin.Context) {
	sessionID, ok := middleware.GetSessionID(c)
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{"error": "missing session"})
		return
	}

	var req models.CreateHoldRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request: " + err.Error()})
		return
	}

	if err := h.rateLimiter.CheckHoldRateLimit(sessionID); err != nil {
		if limited, ok := err.(*services.RateLimitError); ok {
			c.JSON(http.StatusTooManyRequests, gin.H{
				"error":       "rate_limited",
				"message":     limited.Message,
				"retry_after": limited.RetryAfter,
			})
			return
		}
		h.logger.WithError(err).Error("Hold rate limit check failed")
	}
	if err := h.rateLimiter.RecordHoldRequest(sessionID); err != nil {
		h.logger.WithError(err).Error("Failed to record hold attempt")
	}

	hold, err := h.holdService.Hold(req.TripID, sessionID, req.Seats)
	if err != nil {
		// Conflicts carry the exact seats so the client can reselect
		if conflict, ok := err.(*models.SeatConflictError); ok {
			c.JSON(http.StatusBadRequest, gin.H{
				"error":             "seats_unavailable",
				"conflicting_seats": conflict.Seats,
				"message":           conflict.Error(),
			})
			return
		}
		if unknown, ok := err.(*services.UnknownSeatsError); ok {
			c.JSON(http.StatusBadRequest, gin.H{
				"error":         "unknown_seats",
				"unknown_seats": unknown.Seats,
				"message":       unknown.Error(),
			})
			return
		}
		switch err {
		case services.ErrTripNotFound:
			c.JSON(http.StatusNotFound, gin.H{"error": "trip not found"})
		case services.ErrTripNotBookable, services.ErrNoSeatsRequested:
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		default:
			h.logger.WithError(err).WithField("trip_id", req.TripID).Error("Failed to create hold")
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to hold seats"})
		}
		return
	}

	c.JSON(http.StatusCreated, models.HoldResponse{
		TripID:    hold.TripID,
		Seats:     hold.SeatNumbers,
		Redirect:  "/checkout",
		ExpiresAt: hold.ExpiresAt,
		Message:   "Seats held. Complete payment before the hold expires.",
	})
}

// ============================================================================
// RELEASE HOLD - DELETE /api/v1/holds/:trip_id
// ============================================================================

// ReleaseHold drops the session's hold on a trip. Called on explicit
// back-navigation; abandoned holds simply expire.
// @Summary Release held seats
// @Tags Holds
// @Produce json
// @Param trip_id path int true "Trip ID"
// @Success 200 {object} map[string]interface{}
// @Router /holds/{trip_id} [delete]
func (h *HoldHandler) ReleaseHold(c *gin.Context) {
	sessionID, ok := middleware.GetSessionID(c)
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{"error": "missing session"})
		return
	}

	tripID, err := strconv.ParseInt(c.Param("trip_id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid trip_id"})
		return
	}

	if err := h.holdService.Release(tripID, sessionID); err != nil {
		h.logger.WithError(err).WithField("trip_id", tripID).Error("Failed to release hold")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to release hold"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "hold released"})
}
