package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/josh-segal/text-me-assistant/internal/db"
	"github.com/josh-segal/text-me-assistant/internal/models"
	"github.com/josh-segal/text-me-assistant/pkg/logger"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// unknownRecipient is logged when neither the webhook nor config names the recipient
const unknownRecipient = "unknown"

// MessageService handles inbound SMS: classify, reply, escalate, log
type MessageService struct {
	store       db.LogStore
	classifier  Classifier
	responder   Responder
	escalator   Escalator
	assistantNo string
}

// NewMessageService wires the collaborators. assistantNumber is logged as the
// recipient when the webhook omits To.
func NewMessageService(store db.LogStore, classifier Classifier, responder Responder, escalator Escalator, assistantNumber string) *MessageService {
	return &MessageService{
		store:       store,
		classifier:  classifier,
		responder:   responder,
		escalator:   escalator,
		assistantNo: assistantNumber,
	}
}

// HandleIncoming processes one inbound message and returns the reply to send.
// The log entry is written before any escalation, so it exists even when the
// escalation fails, and is flagged once the manager alert has gone out.
func (s *MessageService) HandleIncoming(ctx context.Context, msg *models.IncomingMessage) (*models.OutgoingMessage, error) {
	if msg == nil {
		return nil, errors.New("message cannot be nil")
	}
	if err := msg.Validate(); err != nil {
		return nil, err
	}

	messageID := uuid.NewString()
	if msg.MessageSid != nil && *msg.MessageSid != "" {
		messageID = *msg.MessageSid
	}

	var score *float64
	classification, err := s.classifier.Classify(ctx, messageID, msg.Body)
	if err != nil {
		logger.Warn("Classification failed", zap.String("message_id", messageID), zap.Error(err))
	} else {
		score = models.Float(classification.ImportanceScore)
		logger.Debug("Message classified",
			zap.String("message_id", messageID),
			zap.Float64("importance_score", classification.ImportanceScore),
			zap.Strings("categories", classification.Categories),
		)
	}

	reply, err := s.responder.Respond(ctx, msg.Body, classification)
	if err != nil {
		return nil, fmt.Errorf("failed to build reply: %w", err)
	}

	entry := &models.MessageLogEntry{
		MessageContent:  msg.Body,
		FromNumber:      msg.From,
		ToNumber:        s.recipient(msg),
		ImportanceScore: score,
		ResponseContent: models.String(reply),
		MessageSid:      msg.MessageSid,
	}
	logID, err := s.store.AddLog(ctx, entry)
	if err != nil {
		logger.Error("Failed to save message log", zap.String("message_id", messageID), zap.Error(err))
		return nil, fmt.Errorf("failed to save message log: %w", err)
	}

	if reply == HandoffPhrase {
		logger.Info("ESCALATION NEEDED",
			zap.String("from", msg.From),
			zap.String("message_id", messageID),
			zap.Int64("log_id", logID),
		)
		escalated, err := s.escalate(ctx, msg, score)
		if err != nil {
			return nil, err
		}
		if escalated {
			// alert already sent, the reply still goes out
			if err := s.store.MarkEscalated(ctx, logID); err != nil {
				logger.Error("Failed to mark message log escalated", zap.Int64("log_id", logID), zap.Error(err))
			} else {
				entry.WasEscalated = true
			}
		}
	}

	return models.NewOutgoingMessage(models.OutgoingMessage{
		Message:   reply,
		MessageID: msg.MessageSid,
	})
}

// escalate forwards msg to the manager. A sender still inside the cooldown is
// not an error: the manager already has the earlier alert.
func (s *MessageService) escalate(ctx context.Context, msg *models.IncomingMessage, score *float64) (bool, error) {
	req, err := models.NewEscalationRequest(models.EscalationRequest{
		OriginalMessage: msg.Body,
		FromNumber:      msg.From,
		ImportanceScore: clampScore(score),
	})
	if err != nil {
		return false, err
	}

	if _, err := s.escalator.Escalate(ctx, req); err != nil {
		if errors.Is(err, ErrEscalationCooldown) {
			return false, nil
		}
		return false, fmt.Errorf("failed to escalate message: %w", err)
	}
	return true, nil
}

func (s *MessageService) recipient(msg *models.IncomingMessage) string {
	if msg.To != nil && *msg.To != "" {
		return *msg.To
	}
	if s.assistantNo != "" {
		return s.assistantNo
	}
	return unknownRecipient
}

// GetLog returns one log entry
func (s *MessageService) GetLog(ctx context.Context, id int64) (*models.MessageLogEntry, error) {
	return s.store.GetLog(ctx, id)
}

// ListLogs returns log entries, newest first
func (s *MessageService) ListLogs(ctx context.Context, filter db.LogFilter) ([]*models.MessageLogEntry, error) {
	if filter.Limit <= 0 {
		filter.Limit = db.DefaultLimit
	}
	if filter.Offset < 0 {
		filter.Offset = 0
	}
	return s.store.ListLogs(ctx, filter)
}

// clampScore keeps classifier output inside the range escalation requests accept
func clampScore(score *float64) *float64 {
	if score == nil {
		return nil
	}
	v := *score
	if v < 0 {
		v = 0
	}
	if v > 1 {
		v = 1
	}
	return &v
}
