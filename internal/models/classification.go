package models

import "time"

// ClassificationResult is the classifier's verdict on a message.
// Scores carry no range check here, unlike EscalationRequest.
type ClassificationResult struct {
	MessageID       string    `json:"message_id" validate:"required"`
	ImportanceScore float64   `json:"importance_score"`
	Confidence      float64   `json:"confidence"`
	Categories      []string  `json:"categories"`
	Timestamp       time.Time `json:"timestamp"`
}

func NewClassificationResult(r ClassificationResult) (*ClassificationResult, error) {
	r.ApplyDefaults()
	if err := r.Validate(); err != nil {
		return nil, err
	}
	return &r, nil
}

// ApplyDefaults sets an empty category list and the current timestamp
func (r *ClassificationResult) ApplyDefaults() {
	if r.Categories == nil {
		r.Categories = []string{}
	}
	if r.Timestamp.IsZero() {
		r.Timestamp = now()
	}
}

func (r *ClassificationResult) Validate() error {
	return validateStruct(r)
}

// HasCategory reports whether the result was tagged with category
func (r *ClassificationResult) HasCategory(category string) bool {
	for _, c := range r.Categories {
		if c == category {
			return true
		}
	}
	return false
}
