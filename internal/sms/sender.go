package sms

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/josh-segal/text-me-assistant/pkg/logger"

	"github.com/twilio/twilio-go"
	twilioApi "github.com/twilio/twilio-go/rest/api/v2010"
	"go.uber.org/zap"
)

// MockMessageSid is returned by MockSender for every send
const MockMessageSid = "mock_message_sid"

// ErrSendFailed wraps provider failures
var ErrSendFailed = errors.New("failed to send SMS")

// Sender delivers an SMS and returns the provider's message SID
type Sender interface {
	Send(ctx context.Context, to, body string) (string, error)
}

// messageCreator is the part of the Twilio REST API the sender uses
type messageCreator interface {
	CreateMessage(params *twilioApi.CreateMessageParams) (*twilioApi.ApiV2010Message, error)
}

// TwilioSender sends SMS through the Twilio REST API
type TwilioSender struct {
	api  messageCreator
	from string
}

// NewTwilioSender creates a sender for the given account, sending from fromNumber
func NewTwilioSender(accountSID, authToken, fromNumber string) (*TwilioSender, error) {
	if accountSID == "" || authToken == "" {
		return nil, errors.New("twilio account SID and auth token are required")
	}
	if !strings.HasPrefix(fromNumber, "+") {
		return nil, errors.New("twilio phone number must start with +")
	}

	client := twilio.NewRestClientWithParams(twilio.ClientParams{
		Username: accountSID,
		Password: authToken,
	})

	return &TwilioSender{api: client.Api, from: fromNumber}, nil
}

func (s *TwilioSender) Send(ctx context.Context, to, body string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	params := &twilioApi.CreateMessageParams{}
	params.SetTo(to)
	params.SetFrom(s.from)
	params.SetBody(body)

	resp, err := s.api.CreateMessage(params)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrSendFailed, err)
	}

	sid := ""
	if resp != nil && resp.Sid != nil {
		sid = *resp.Sid
	}

	logger.Info("SMS sent", zap.String("to", to), zap.String("sid", sid))
	return sid, nil
}

// SentMessage is one send recorded by MockSender
type SentMessage struct {
	To   string
	Body string
}

// MockSender logs messages instead of sending them. Used when the service
// runs in development mode.
type MockSender struct {
	mu   sync.Mutex
	sent []SentMessage
}

func NewMockSender() *MockSender {
	return &MockSender{}
}

func (m *MockSender) Send(ctx context.Context, to, body string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	m.mu.Lock()
	m.sent = append(m.sent, SentMessage{To: to, Body: body})
	m.mu.Unlock()

	logger.Info("Mock SMS", zap.String("to", to), zap.String("body", body))
	return MockMessageSid, nil
}

// Sent returns a copy of the messages sent so far
func (m *MockSender) Sent() []SentMessage {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]SentMessage, len(m.sent))
	copy(out, m.sent)
	return out
}
