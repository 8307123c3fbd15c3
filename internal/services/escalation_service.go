package services

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/josh-segal/text-me-assistant/internal/cache"
	"github.com/josh-segal/text-me-assistant/internal/models"
	"github.com/josh-segal/text-me-assistant/internal/sms"
	"github.com/josh-segal/text-me-assistant/pkg/logger"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// EscalationSentMessage is the status reported for a delivered escalation
const EscalationSentMessage = "Escalation sent successfully"

var (
	// ErrEscalationCooldown is returned when the sender was escalated recently
	ErrEscalationCooldown = errors.New("sender was escalated recently")
	// ErrNoManagerNumber is returned when no manager phone number is configured
	ErrNoManagerNumber = errors.New("manager phone number is not configured")
)

// Escalator forwards messages to a manager
type Escalator interface {
	Escalate(ctx context.Context, req *models.EscalationRequest) (*models.EscalationResponse, error)
}

// EscalationService pages the manager by SMS
type EscalationService struct {
	sender        sms.Sender
	cache         cache.EscalationCache
	managerNumber string
	cooldown      time.Duration
	newID         func() string
}

// NewEscalationService creates the service. A zero cooldown disables the
// per-sender cooldown.
func NewEscalationService(sender sms.Sender, c cache.EscalationCache, managerNumber string, cooldown time.Duration) *EscalationService {
	if c == nil {
		c = cache.NewMemoryEscalationCache()
	}
	return &EscalationService{
		sender:        sender,
		cache:         c,
		managerNumber: managerNumber,
		cooldown:      cooldown,
		newID:         uuid.NewString,
	}
}

// FormatEscalationMessage builds the SMS sent to the manager. The importance
// is omitted when the score is absent or zero.
func FormatEscalationMessage(originalMessage, fromNumber string, importanceScore *float64) string {
	scoreText := ""
	if importanceScore != nil && *importanceScore != 0 {
		scoreText = fmt.Sprintf(" (Importance: %d%%)", int(math.Round(*importanceScore*100)))
	}
	return fmt.Sprintf("🚨 ESCALATION ALERT%s\n\nFrom: %s\nMessage: %s", scoreText, fromNumber, originalMessage)
}

// Escalate validates req, enforces the sender cooldown and sends the alert
func (s *EscalationService) Escalate(ctx context.Context, req *models.EscalationRequest) (*models.EscalationResponse, error) {
	if req == nil {
		return nil, errors.New("escalation request cannot be nil")
	}
	if err := req.Validate(); err != nil {
		return nil, err
	}
	if s.managerNumber == "" {
		return nil, ErrNoManagerNumber
	}

	id := s.newID()
	stored, err := s.cache.Remember(ctx, req.FromNumber, id, s.cooldown)
	if err != nil {
		return nil, fmt.Errorf("failed to record escalation: %w", err)
	}
	if !stored {
		logger.Info("Escalation suppressed by cooldown",
			zap.String("from_number", req.FromNumber),
			zap.Duration("cooldown", s.cooldown),
		)
		return nil, ErrEscalationCooldown
	}

	body := FormatEscalationMessage(req.OriginalMessage, req.FromNumber, req.ImportanceScore)
	sid, err := s.sender.Send(ctx, s.managerNumber, body)
	if err != nil {
		if forgetErr := s.cache.Forget(ctx, req.FromNumber, id); forgetErr != nil {
			logger.Warn("Failed to release escalation cooldown", zap.Error(forgetErr))
		}
		logger.Error("Escalation error",
			zap.String("from_number", req.FromNumber),
			zap.Error(err),
		)
		return nil, err
	}

	fields := []zap.Field{
		zap.String("escalation_id", id),
		zap.String("from_number", req.FromNumber),
		zap.String("sid", sid),
	}
	if req.ImportanceScore != nil {
		fields = append(fields, zap.Float64("importance_score", *req.ImportanceScore))
	}
	logger.Info("Escalation sent successfully", fields...)

	return models.NewEscalationResponse(models.EscalationResponse{
		Message:      EscalationSentMessage,
		EscalationID: models.String(id),
	})
}

// Recent returns the most recent escalation IDs, newest first
func (s *EscalationService) Recent(ctx context.Context, limit int) ([]string, error) {
	if limit <= 0 {
		limit = 20
	}
	return s.cache.Recent(ctx, limit)
}
