package handlers

import (
	"errors"
	"net/http"

	"github.com/josh-segal/text-me-assistant/internal/db"
	"github.com/josh-segal/text-me-assistant/internal/models"
	"github.com/josh-segal/text-me-assistant/internal/services"
	"github.com/josh-segal/text-me-assistant/pkg/logger"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// respondError writes the JSON error response for err. Internal errors are
// logged and reported without detail.
func respondError(c *gin.Context, err error) {
	var verr *models.ValidationError
	switch {
	case errors.As(err, &verr):
		c.JSON(http.StatusBadRequest, gin.H{
			"error":  verr.Error(),
			"field":  verr.Field,
			"reason": verr.Reason,
		})
	case errors.Is(err, db.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "Not found"})
	case errors.Is(err, services.ErrEscalationCooldown):
		c.JSON(http.StatusTooManyRequests, gin.H{"error": "Sender was escalated recently"})
	default:
		logger.Error("Request failed",
			zap.String("path", c.FullPath()),
			zap.Error(err),
		)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
	}
}
