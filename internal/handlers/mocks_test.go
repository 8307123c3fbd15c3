package handlers

import (
	"context"
	"net/url"

	"github.com/josh-segal/text-me-assistant/internal/db"
	"github.com/josh-segal/text-me-assistant/internal/models"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/mock"
)

func init() {
	gin.SetMode(gin.TestMode)
}

// MockMessageService is a mock implementation of MessageServiceInterface for testing
type MockMessageService struct {
	mock.Mock
}

func (m *MockMessageService) HandleIncoming(ctx context.Context, msg *models.IncomingMessage) (*models.OutgoingMessage, error) {
	args := m.Called(msg)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.OutgoingMessage), args.Error(1)
}

func (m *MockMessageService) GetLog(ctx context.Context, id int64) (*models.MessageLogEntry, error) {
	args := m.Called(id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.MessageLogEntry), args.Error(1)
}

func (m *MockMessageService) ListLogs(ctx context.Context, filter db.LogFilter) ([]*models.MessageLogEntry, error) {
	args := m.Called(filter)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.MessageLogEntry), args.Error(1)
}

// MockEscalationService is a mock implementation of EscalationServiceInterface for testing
type MockEscalationService struct {
	mock.Mock
}

func (m *MockEscalationService) Escalate(ctx context.Context, req *models.EscalationRequest) (*models.EscalationResponse, error) {
	args := m.Called(req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.EscalationResponse), args.Error(1)
}

func (m *MockEscalationService) Recent(ctx context.Context, limit int) ([]string, error) {
	args := m.Called(limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]string), args.Error(1)
}

// MockAuthService is a mock implementation of AuthServiceInterface for testing
type MockAuthService struct {
	mock.Mock
}

func (m *MockAuthService) Authenticate(username, password, totpCode string) error {
	return m.Called(username, password, totpCode).Error(0)
}

// MockVerifier is a mock implementation of SignatureVerifier for testing
type MockVerifier struct {
	mock.Mock
}

func (m *MockVerifier) Valid(fullURL string, form url.Values, signature string) bool {
	return m.Called(fullURL, form, signature).Bool(0)
}

// MockClassifier is a mock implementation of services.Classifier for testing
type MockClassifier struct {
	mock.Mock
}

func (m *MockClassifier) Classify(ctx context.Context, messageID, body string) (*models.ClassificationResult, error) {
	args := m.Called(messageID, body)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.ClassificationResult), args.Error(1)
}
