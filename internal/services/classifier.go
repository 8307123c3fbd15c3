package services

import (
	"context"
	"math"
	"strings"
	"unicode"

	"github.com/josh-segal/text-me-assistant/internal/models"
)

// Message categories produced by KeywordClassifier
const (
	CategorySafety    = "safety"
	CategoryUrgent    = "urgent"
	CategoryComplaint = "complaint"
	CategoryRefund    = "refund"
	CategoryStaff     = "staff"
	CategoryOrder     = "order"
	CategoryHours     = "hours"
	CategoryMenu      = "menu"
)

// baselineScore is the importance of a message that matches no category
const baselineScore = 0.1

// Classifier scores the importance of an inbound message
type Classifier interface {
	Classify(ctx context.Context, messageID, body string) (*models.ClassificationResult, error)
}

// CategoryRule tags a message with Category when any keyword appears in it.
// Keywords containing a space are matched as phrases, others as whole words.
type CategoryRule struct {
	Category string
	Weight   float64
	Keywords []string
}

// DefaultRules is the keyword table used by NewKeywordClassifier
var DefaultRules = []CategoryRule{
	{Category: CategorySafety, Weight: 0.95, Keywords: []string{"fire", "injury", "injured", "hurt", "allergic", "allergy", "ambulance", "police", "leak", "flood", "smoke"}},
	{Category: CategoryUrgent, Weight: 0.9, Keywords: []string{"urgent", "emergency", "asap", "immediately", "right now"}},
	{Category: CategoryComplaint, Weight: 0.75, Keywords: []string{"complaint", "complain", "terrible", "awful", "rude", "disappointed", "unacceptable", "disgusting", "worst"}},
	{Category: CategoryRefund, Weight: 0.7, Keywords: []string{"refund", "overcharged", "charged twice", "money back"}},
	{Category: CategoryStaff, Weight: 0.6, Keywords: []string{"shift", "schedule", "sick day", "call out", "payroll"}},
	{Category: CategoryOrder, Weight: 0.4, Keywords: []string{"order", "delivery", "pickup", "catering"}},
	{Category: CategoryHours, Weight: 0.1, Keywords: []string{"hours", "open", "close", "closing", "opening"}},
	{Category: CategoryMenu, Weight: 0.1, Keywords: []string{"gelato", "waffle", "waffles", "vegan", "coffee", "menu", "popular"}},
}

// KeywordClassifier scores messages from a keyword table
type KeywordClassifier struct {
	rules []CategoryRule
}

func NewKeywordClassifier(rules []CategoryRule) *KeywordClassifier {
	if rules == nil {
		rules = DefaultRules
	}
	return &KeywordClassifier{rules: rules}
}

// Classify tags body with every matching category. The importance score is the
// highest matching weight, raised slightly for shouting (exclamation marks or
// an all-caps message). Confidence grows with the number of keyword hits.
func (c *KeywordClassifier) Classify(ctx context.Context, messageID, body string) (*models.ClassificationResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	lower := strings.ToLower(body)
	words := make(map[string]bool)
	for _, w := range strings.FieldsFunc(lower, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r) && r != '-'
	}) {
		words[w] = true
	}

	score := 0.0
	hits := 0
	categories := []string{}
	for _, rule := range c.rules {
		matched := 0
		for _, kw := range rule.Keywords {
			if strings.Contains(kw, " ") {
				if strings.Contains(lower, kw) {
					matched++
				}
			} else if words[kw] {
				matched++
			}
		}
		if matched == 0 {
			continue
		}
		hits += matched
		categories = append(categories, rule.Category)
		score = math.Max(score, rule.Weight)
	}

	confidence := 0.5
	if hits == 0 {
		score = baselineScore
	} else {
		confidence = math.Min(0.5+0.15*float64(hits), 0.99)
	}

	if strings.Contains(body, "!") {
		score += 0.05
	}
	if isShouting(body) {
		score += 0.05
	}
	score = math.Min(score, 1)

	return models.NewClassificationResult(models.ClassificationResult{
		MessageID:       messageID,
		ImportanceScore: round2(score),
		Confidence:      round2(confidence),
		Categories:      categories,
	})
}

// isShouting reports whether body has at least four letters, all upper case
func isShouting(body string) bool {
	letters := 0
	for _, r := range body {
		if !unicode.IsLetter(r) {
			continue
		}
		if !unicode.IsUpper(r) {
			return false
		}
		letters++
	}
	return letters >= 4
}

func round2(f float64) float64 {
	return math.Round(f*100) / 100
}
