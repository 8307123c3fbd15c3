package handlers

import (
	"net/http"
	"strconv"

	"github.com/josh-segal/text-me-assistant/internal/models"

	"github.com/gin-gonic/gin"
)

const maxRecentEscalations = 100

// EscalationHandler lets operators page the manager and review escalations
type EscalationHandler struct {
	escalations EscalationServiceInterface
}

func NewEscalationHandler(escalations EscalationServiceInterface) *EscalationHandler {
	return &EscalationHandler{escalations: escalations}
}

// Create sends an escalation from a JSON EscalationRequest
func (h *EscalationHandler) Create(c *gin.Context) {
	var req models.EscalationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
		return
	}

	resp, err := h.escalations.Escalate(c.Request.Context(), &req)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, resp)
}

// Recent lists recent escalation IDs, newest first
func (h *EscalationHandler) Recent(c *gin.Context) {
	limit := 20
	if limitStr := c.Query("limit"); limitStr != "" {
		l, err := strconv.Atoi(limitStr)
		if err != nil || l <= 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid limit value"})
			return
		}
		limit = min(l, maxRecentEscalations)
	}

	ids, err := h.escalations.Recent(c.Request.Context(), limit)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"escalations": ids})
}
