package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/nkolo-transit/booking-backend/internal/database"
)

// ReviewHandler exposes the operator review queue: amount mismatches,
// reconciliation anomalies and stale pending bookings
type ReviewHandler struct {
	auditRepo *database.PaymentAuditRepository
	logger    *logrus.Logger
}

// NewReviewHandler creates a new ReviewHandler
func NewReviewHandler(auditRepo *database.PaymentAuditRepository, logger *logrus.Logger) *ReviewHandler {
	return &ReviewHandler{
		auditRepo: auditRepo,
		logger:    logger,
	}
}

// ReviewQueue lists entries awaiting operator follow-up
// @Summary Operator review queue
// @Tags Admin
// @Produce json
// @Param limit query int false "Max entries (default 50)"
// @Success 200 {object} map[string]interface{}
// @Router /admin/review-queue [get]
func (h *ReviewHandler) ReviewQueue(c *gin.Context) {
	limit := 50
	if raw := c.Query("limit"); raw != "" {
		if parsed, err := strconv.Atoi(raw); err == nil && parsed > 0 && parsed <= 500 {
			limit = parsed
		}
	}

	entries, err := h.auditRepo.GetMismatches(c.Request.Context(), limit)
	if err != nil {
		h.logger.WithError(err).Error("Failed to load review queue")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load review queue"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"count":   len(entries),
		"entries": entries,
	})
}
