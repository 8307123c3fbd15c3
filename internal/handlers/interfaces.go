package handlers

import (
	"context"
	"net/url"

	"github.com/josh-segal/text-me-assistant/internal/db"
	"github.com/josh-segal/text-me-assistant/internal/models"
)

// MessageServiceInterface defines the contract for inbound message handling
// This interface is used for dependency injection and testing
type MessageServiceInterface interface {
	HandleIncoming(ctx context.Context, msg *models.IncomingMessage) (*models.OutgoingMessage, error)
	GetLog(ctx context.Context, id int64) (*models.MessageLogEntry, error)
	ListLogs(ctx context.Context, filter db.LogFilter) ([]*models.MessageLogEntry, error)
}

// EscalationServiceInterface defines the contract for manager escalations
type EscalationServiceInterface interface {
	Escalate(ctx context.Context, req *models.EscalationRequest) (*models.EscalationResponse, error)
	Recent(ctx context.Context, limit int) ([]string, error)
}

// AuthServiceInterface defines the contract for admin authentication
type AuthServiceInterface interface {
	Authenticate(username, password, totpCode string) error
}

// SignatureVerifier checks the provider signature on webhook requests
type SignatureVerifier interface {
	Valid(fullURL string, form url.Values, signature string) bool
}
