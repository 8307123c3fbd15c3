package services

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKeywordClassifier_Classify(t *testing.T) {
	tests := []struct {
		name           string
		body           string
		wantScore      float64
		wantConfidence float64
		wantCategories []string
	}{
		{
			name:           "no keywords",
			body:           "hello there",
			wantScore:      0.1,
			wantConfidence: 0.5,
			wantCategories: []string{},
		},
		{
			name:           "hours question",
			body:           "What are your hours?",
			wantScore:      0.1,
			wantConfidence: 0.65,
			wantCategories: []string{CategoryHours},
		},
		{
			name:           "safety and urgency with exclamation",
			body:           "urgent! someone is hurt",
			wantScore:      1,
			wantConfidence: 0.8,
			wantCategories: []string{CategorySafety, CategoryUrgent},
		},
		{
			name:           "shouting raises score",
			body:           "I WANT A REFUND",
			wantScore:      0.75,
			wantConfidence: 0.65,
			wantCategories: []string{CategoryRefund},
		},
		{
			name:           "phrase keyword",
			body:           "I was charged twice for my order",
			wantScore:      0.7,
			wantConfidence: 0.8,
			wantCategories: []string{CategoryRefund, CategoryOrder},
		},
		{
			name:           "keywords match whole words only",
			body:           "the firework show was nice",
			wantScore:      0.1,
			wantConfidence: 0.5,
			wantCategories: []string{},
		},
	}

	c := NewKeywordClassifier(nil)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := c.Classify(context.Background(), "msg-1", tt.body)
			require.NoError(t, err)

			assert.Equal(t, "msg-1", result.MessageID)
			assert.InDelta(t, tt.wantScore, result.ImportanceScore, 0.001)
			assert.InDelta(t, tt.wantConfidence, result.Confidence, 0.001)
			assert.Equal(t, tt.wantCategories, result.Categories)
			assert.False(t, result.Timestamp.IsZero())
		})
	}
}

func TestKeywordClassifier_CustomRules(t *testing.T) {
	c := NewKeywordClassifier([]CategoryRule{
		{Category: "billing", Weight: 0.5, Keywords: []string{"invoice"}},
	})

	result, err := c.Classify(context.Background(), "msg-2", "Where is my invoice")
	require.NoError(t, err)
	assert.Equal(t, []string{"billing"}, result.Categories)
	assert.InDelta(t, 0.5, result.ImportanceScore, 0.001)

	result, err = c.Classify(context.Background(), "msg-3", "someone is hurt")
	require.NoError(t, err)
	assert.Empty(t, result.Categories, "default rules are replaced")
}

func TestKeywordClassifier_Errors(t *testing.T) {
	c := NewKeywordClassifier(nil)

	_, err := c.Classify(context.Background(), "", "hello")
	assert.Error(t, err, "message ID is required")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = c.Classify(ctx, "msg-1", "hello")
	assert.ErrorIs(t, err, context.Canceled)
}

func TestIsShouting(t *testing.T) {
	assert.True(t, isShouting("HELP ME"))
	assert.False(t, isShouting("Help me"))
	assert.False(t, isShouting("OK!"), "too short")
	assert.False(t, isShouting("123"))
}
