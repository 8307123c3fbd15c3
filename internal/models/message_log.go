package models

import "time"

// MessageLogEntry is the persisted record of one inbound message and the
// assistant's handling of it. ID is assigned by the store.
type MessageLogEntry struct {
	ID              *int64    `json:"id,omitempty"`
	MessageContent  string    `json:"message_content"`
	FromNumber      string    `json:"from_number" validate:"required"`
	ToNumber        string    `json:"to_number"`
	Timestamp       time.Time `json:"timestamp"`
	ImportanceScore *float64  `json:"importance_score,omitempty"`
	WasEscalated    bool      `json:"was_escalated"`
	ResponseContent *string   `json:"response_content,omitempty"`
	MessageSid      *string   `json:"message_sid,omitempty"`
}

func NewMessageLogEntry(e MessageLogEntry) (*MessageLogEntry, error) {
	e.ApplyDefaults()
	if err := e.Validate(); err != nil {
		return nil, err
	}
	return &e, nil
}

func (e *MessageLogEntry) ApplyDefaults() {
	if e.Timestamp.IsZero() {
		e.Timestamp = now()
	}
}

func (e *MessageLogEntry) Validate() error {
	return validateStruct(e)
}
