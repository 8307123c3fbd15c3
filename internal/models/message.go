package models

import "time"

// IncomingMessage is an inbound SMS as posted by the Twilio webhook.
// Field names match the webhook's form parameters.
type IncomingMessage struct {
	// Body is empty for media-only MMS
	Body       string  `json:"Body" form:"Body"`
	From       string  `json:"From" form:"From" validate:"required,phoneprefix"`
	To         *string `json:"To,omitempty" form:"To"`
	MessageSid *string `json:"MessageSid,omitempty" form:"MessageSid"`
	AccountSid *string `json:"AccountSid,omitempty" form:"AccountSid"`
}

// NewIncomingMessage validates m and returns a copy of it
func NewIncomingMessage(m IncomingMessage) (*IncomingMessage, error) {
	if err := m.Validate(); err != nil {
		return nil, err
	}
	return &m, nil
}

// Validate checks that From starts with "+"
func (m *IncomingMessage) Validate() error {
	return validateStruct(m)
}

// OutgoingMessage is the reply sent back to the sender
type OutgoingMessage struct {
	Message   string    `json:"message" validate:"required"`
	Timestamp time.Time `json:"timestamp"`
	MessageID *string   `json:"message_id,omitempty"`
}

// NewOutgoingMessage stamps m with the current UTC time when no timestamp is
// set, then validates it
func NewOutgoingMessage(m OutgoingMessage) (*OutgoingMessage, error) {
	m.ApplyDefaults()
	if err := m.Validate(); err != nil {
		return nil, err
	}
	return &m, nil
}

func (m *OutgoingMessage) ApplyDefaults() {
	if m.Timestamp.IsZero() {
		m.Timestamp = now()
	}
}

func (m *OutgoingMessage) Validate() error {
	return validateStruct(m)
}
