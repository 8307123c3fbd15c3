package services

import (
	"context"
	"strings"

	"github.com/josh-segal/text-me-assistant/internal/models"
)

// HandoffPhrase is the reply given when a message must go to a manager
const HandoffPhrase = "Let me forward this to a manager."

// Responder produces the reply to an inbound message. Returning HandoffPhrase
// asks the caller to escalate.
type Responder interface {
	Respond(ctx context.Context, body string, classification *models.ClassificationResult) (string, error)
}

// FAQEntry answers a message containing any of its keywords
type FAQEntry struct {
	Keywords []string
	Answer   string
}

// DefaultFAQ holds the business information the assistant may answer from.
// More specific entries come first.
var DefaultFAQ = []FAQEntry{
	{Keywords: []string{"steamer", "steam"}, Answer: "Clean the steamer tip thoroughly, dry it, and try again."},
	{Keywords: []string{"coffee machine", "espresso machine"}, Answer: "Check the on/off button under the machine. If it doesn't work, unplug the machine, press the reset button on the outlet, plug it back in, and try again."},
	{Keywords: []string{"opening procedure", "opening checklist", "open the store", "opening the store"}, Answer: "Turn on the lights, waffle makers and music, make the shopping list, get the prep unit ready, restock the gelato and all the paper goods."},
	{Keywords: []string{"closing procedure", "closing checklist", "close the store", "closing the store"}, Answer: "Restock gelato, clean the coffee machine, sandwich and waffle units, turn off waffle makers, check the freezers, clean tables and chairs, sweep, take out the trash, turn off music and lights, and lock the door."},
	{Keywords: []string{"vegan", "dairy-free", "dairy free"}, Answer: "Yes, we offer vegan and dairy-free gelato options."},
	{Keywords: []string{"popular", "recommend", "best seller", "bestseller"}, Answer: `Our most popular items include "The Da Vinci" waffle, "The Tiramisu," and our signature gelato.`},
	{Keywords: []string{"order online", "website", "online"}, Answer: "Yes, order directly from our website to save on fees and earn rewards."},
	{Keywords: []string{"hours", "open", "close", "closing time", "opening time"}, Answer: "We're open daily from 08:00 to 23:00."},
	{Keywords: []string{"address", "where are you", "located", "location", "directions"}, Answer: "We're at 297 Huntington Avenue, Boston, MA 02115."},
	{Keywords: []string{"phone number", "contact", "call you"}, Answer: "You can reach us at +1 617-977-0011."},
	{Keywords: []string{"gelato", "ice cream"}, Answer: "Yes, we offer a wide variety of delicious gelato, including dairy-free and vegan options."},
	{Keywords: []string{"waffle", "waffles"}, Answer: "Yes, we serve both sweet and savory waffles."},
}

// DefaultOutOfScope lists categories the FAQ never answers
var DefaultOutOfScope = []string{CategorySafety, CategoryUrgent, CategoryComplaint, CategoryRefund, CategoryStaff}

// FAQResponder answers from a fixed FAQ and hands off everything else
type FAQResponder struct {
	entries    []FAQEntry
	outOfScope []string
}

func NewFAQResponder(entries []FAQEntry, outOfScope []string) *FAQResponder {
	if entries == nil {
		entries = DefaultFAQ
	}
	if outOfScope == nil {
		outOfScope = DefaultOutOfScope
	}
	return &FAQResponder{entries: entries, outOfScope: outOfScope}
}

// Respond returns the first FAQ answer whose keyword occurs in body. Messages
// tagged with an out-of-scope category, or matching nothing, get HandoffPhrase.
func (r *FAQResponder) Respond(ctx context.Context, body string, classification *models.ClassificationResult) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	if classification != nil {
		for _, c := range r.outOfScope {
			if classification.HasCategory(c) {
				return HandoffPhrase, nil
			}
		}
	}

	lower := strings.ToLower(body)
	for _, entry := range r.entries {
		for _, kw := range entry.Keywords {
			if containsWord(lower, kw) {
				return entry.Answer, nil
			}
		}
	}

	return HandoffPhrase, nil
}

// containsWord reports whether phrase occurs in text on word boundaries
func containsWord(text, phrase string) bool {
	for start := 0; ; {
		i := strings.Index(text[start:], phrase)
		if i < 0 {
			return false
		}
		i += start
		end := i + len(phrase)
		if (i == 0 || !isWordByte(text[i-1])) && (end == len(text) || !isWordByte(text[end])) {
			return true
		}
		start = i + 1
	}
}

func isWordByte(b byte) bool {
	return b >= 'a' && b <= 'z' || b >= '0' && b <= '9' || b == '-'
}
