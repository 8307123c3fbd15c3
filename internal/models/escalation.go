package models

import "time"

// EscalationRequest asks for a message to be forwarded to a manager
type EscalationRequest struct {
	OriginalMessage string   `json:"original_message"`
	FromNumber      string   `json:"from_number" validate:"required,phoneprefix"`
	ImportanceScore *float64 `json:"importance_score,omitempty" validate:"omitempty,gte=0,lte=1"`
}

// NewEscalationRequest validates r and returns a copy of it.
// ImportanceScore is optional but must lie in [0,1] when set.
func NewEscalationRequest(r EscalationRequest) (*EscalationRequest, error) {
	if err := r.Validate(); err != nil {
		return nil, err
	}
	return &r, nil
}

func (r *EscalationRequest) Validate() error {
	return validateStruct(r)
}

// EscalationResponse reports the outcome of an escalation
type EscalationResponse struct {
	Message      string    `json:"message" validate:"required"`
	Timestamp    time.Time `json:"timestamp"`
	EscalationID *string   `json:"escalation_id,omitempty"`
}

func NewEscalationResponse(r EscalationResponse) (*EscalationResponse, error) {
	r.ApplyDefaults()
	if err := r.Validate(); err != nil {
		return nil, err
	}
	return &r, nil
}

func (r *EscalationResponse) ApplyDefaults() {
	if r.Timestamp.IsZero() {
		r.Timestamp = now()
	}
}

func (r *EscalationResponse) Validate() error {
	return validateStruct(r)
}
