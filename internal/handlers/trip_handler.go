package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/nkolo-transit/booking-backend/internal/middleware"
	"github.com/nkolo-transit/booking-backend/internal/services"
)

// TripHandler serves trip listings and per-trip seat maps
type TripHandler struct {
	holdService *services.HoldService
	logger      *logrus.Logger
}

// NewTripHandler creates a new TripHandler
func NewTripHandler(holdService *services.HoldService, logger *logrus.Logger) *TripHandler {
	return &TripHandler{
		holdService: holdService,
		logger:      logger,
	}
}

// GetSeatMap returns the resolved layout for a trip with current
// availability overlaid
// @Summary Get trip seat map
// @Description Returns the seat layout with currently unavailable seats
// @Tags Trips
// @Produce json
// @Param trip_id path int true "Trip ID"
// @Success 200 {object} models.SeatMap
// @Failure 404 {object} map[string]interface{} "Trip not found"
// @Router /trips/{trip_id}/seatmap [get]
func (h *TripHandler) GetSeatMap(c *gin.Context) {
	tripID, err := strconv.ParseInt(c.Param("trip_id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid trip_id"})
		return
	}

	sessionID, _ := middleware.GetSessionID(c)

	seatMap, err := h.holdService.SeatMap(tripID, sessionID)
	if err != nil {
		if err == services.ErrTripNotFound {
			c.JSON(http.StatusNotFound, gin.H{"error": "trip not found"})
			return
		}
		h.logger.WithError(err).WithField("trip_id", tripID).Error("Failed to resolve seat map")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load seat map"})
		return
	}

	c.JSON(http.StatusOK, seatMap)
}
