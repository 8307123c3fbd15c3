package handlers

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/josh-segal/text-me-assistant/internal/db"
	"github.com/josh-segal/text-me-assistant/internal/services"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// ClassifyRequest asks for a classification without sending anything
type ClassifyRequest struct {
	MessageID string `json:"message_id"`
	Body      string `json:"body"`
}

// MessageHandler exposes the message log and the classifier to operators
type MessageHandler struct {
	messages   MessageServiceInterface
	classifier services.Classifier
}

func NewMessageHandler(messages MessageServiceInterface, classifier services.Classifier) *MessageHandler {
	return &MessageHandler{messages: messages, classifier: classifier}
}

// List returns message log entries, newest first
func (h *MessageHandler) List(c *gin.Context) {
	filter := db.LogFilter{
		FromNumber: c.Query("from"),
		Limit:      db.DefaultLimit,
	}

	if escalatedStr := c.Query("escalated"); escalatedStr != "" {
		escalated, err := strconv.ParseBool(escalatedStr)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid escalated value"})
			return
		}
		filter.Escalated = &escalated
	}

	if limitStr := c.Query("limit"); limitStr != "" {
		l, err := strconv.Atoi(limitStr)
		if err != nil || l <= 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid limit value"})
			return
		}
		filter.Limit = min(l, db.DefaultLimit)
	}

	if offsetStr := c.Query("offset"); offsetStr != "" {
		o, err := strconv.Atoi(offsetStr)
		if err != nil || o < 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid offset value"})
			return
		}
		filter.Offset = o
	}

	logs, err := h.messages.ListLogs(c.Request.Context(), filter)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, logs)
}

// Get returns one message log entry
func (h *MessageHandler) Get(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid message ID"})
		return
	}

	entry, err := h.messages.GetLog(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, entry)
}

// Classify scores a message body without replying or escalating
func (h *MessageHandler) Classify(c *gin.Context) {
	var req ClassifyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
		return
	}

	if strings.TrimSpace(req.Body) == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "body: field required", "field": "body"})
		return
	}
	if req.MessageID == "" {
		req.MessageID = uuid.NewString()
	}

	result, err := h.classifier.Classify(c.Request.Context(), req.MessageID, req.Body)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, result)
}
