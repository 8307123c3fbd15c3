package handlers

import (
	"errors"
	"net/http"

	"github.com/josh-segal/text-me-assistant/internal/models"
	"github.com/josh-segal/text-me-assistant/internal/sms"
	"github.com/josh-segal/text-me-assistant/pkg/logger"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"go.uber.org/zap"
)

// ErrorReply is sent to the texter when their message cannot be processed
const ErrorReply = "Sorry, I couldn't process your message. Please try again."

const contentTypeXML = "application/xml"

// SMSHandler answers the provider's inbound SMS webhook
type SMSHandler struct {
	messages  MessageServiceInterface
	verifier  SignatureVerifier
	publicURL string
}

// NewSMSHandler creates the webhook handler. A nil verifier disables the
// signature check; publicURL is the base URL the provider signs against.
func NewSMSHandler(messages MessageServiceInterface, verifier SignatureVerifier, publicURL string) *SMSHandler {
	return &SMSHandler{
		messages:  messages,
		verifier:  verifier,
		publicURL: publicURL,
	}
}

// Webhook handles a form-encoded inbound SMS and replies with TwiML
func (h *SMSHandler) Webhook(c *gin.Context) {
	if h.verifier != nil {
		if err := c.Request.ParseForm(); err != nil {
			h.reply(c, http.StatusBadRequest, ErrorReply)
			return
		}
		fullURL := h.publicURL + c.Request.URL.RequestURI()
		if !h.verifier.Valid(fullURL, c.Request.PostForm, c.GetHeader(sms.SignatureHeader)) {
			logger.Warn("Rejected webhook with invalid signature",
				zap.String("client_ip", c.ClientIP()),
			)
			c.JSON(http.StatusForbidden, gin.H{"error": "Invalid signature"})
			return
		}
	}

	var msg models.IncomingMessage
	if err := c.ShouldBindWith(&msg, binding.Form); err != nil {
		logger.Warn("Invalid webhook payload", zap.Error(err))
		h.reply(c, http.StatusBadRequest, ErrorReply)
		return
	}

	logger.Info("Received SMS", zap.String("from", msg.From))

	out, err := h.messages.HandleIncoming(c.Request.Context(), &msg)
	if err != nil {
		if errors.Is(err, models.ErrValidation) {
			logger.Warn("Rejected inbound SMS", zap.String("from", msg.From), zap.Error(err))
			h.reply(c, http.StatusBadRequest, ErrorReply)
			return
		}
		logger.Error("Error processing message", zap.String("from", msg.From), zap.Error(err))
		h.reply(c, http.StatusInternalServerError, ErrorReply)
		return
	}

	h.reply(c, http.StatusOK, out.Message)
}

func (h *SMSHandler) reply(c *gin.Context, status int, message string) {
	body, err := sms.TwiML(message)
	if err != nil {
		logger.Error("Failed to render TwiML", zap.Error(err))
		c.Status(http.StatusInternalServerError)
		return
	}
	c.Data(status, contentTypeXML, []byte(body))
}
