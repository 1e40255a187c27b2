// Package intent classifies the latest user utterance into one fixed
// category. It is a leaf component: no calendar or persistence side effects.
package intent

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/raphaelgruber/secretary-go/internal/models"
)

// Intent is one of the fixed conversation intent categories.
type Intent string

const (
	Create     Intent = "CREATE"
	Query      Intent = "QUERY"
	Cancel     Intent = "CANCEL"
	Reschedule Intent = "RESCHEDULE"
	Human      Intent = "HUMAN"
	// Other is the fail-safe default for ambiguous or unparseable output.
	Other Intent = "OTHER"
)

// classifierModel is the slice of llm.Model the classifier needs.
type classifierModel interface {
	Classify(ctx context.Context, systemPrompt, userPrompt string) (string, error)
}

// Classifier maps an utterance plus short context to an Intent.
type Classifier struct {
	model  classifierModel
	window int
	logger *slog.Logger
}

// NewClassifier creates a classifier that includes the last window transcript
// entries as context.
func NewClassifier(model classifierModel, window int, logger *slog.Logger) *Classifier {
	if window <= 0 {
		window = 6
	}
	return &Classifier{model: model, window: window, logger: logger}
}

const systemPrompt = `You classify a patient message for a medical clinic scheduling assistant.
Answer with exactly one word from this list and nothing else:

CREATE - the patient wants to book a new appointment
QUERY - the patient asks about availability or their existing appointments
CANCEL - the patient wants to cancel an appointment
RESCHEDULE - the patient wants to move an existing appointment
HUMAN - the patient asks to talk to a human attendant
OTHER - greetings, questions about the clinic, anything else

If the message is ambiguous, answer OTHER.`

// Classify returns the intent for the utterance given recent transcript
// context. Ambiguous or unparseable model output defaults to Other rather
// than guessing a riskier category.
func (c *Classifier) Classify(ctx context.Context, utterance string, history []models.Message) (Intent, error) {
	var b strings.Builder
	start := 0
	if len(history) > c.window {
		start = len(history) - c.window
	}
	for _, msg := range history[start:] {
		// Cross-role audit entries are not conversation context.
		if msg.Role != models.RoleUser && msg.Role != models.RoleAssistant {
			continue
		}
		fmt.Fprintf(&b, "%s: %s\n", msg.Role, msg.Content)
	}
	fmt.Fprintf(&b, "\nLatest patient message: %s", utterance)

	raw, err := c.model.Classify(ctx, systemPrompt, b.String())
	if err != nil {
		return Other, fmt.Errorf("classify intent: %w", err)
	}

	it := Parse(raw)
	if c.logger != nil {
		c.logger.Debug("intent classified", "intent", string(it), "raw", strings.TrimSpace(raw))
	}
	return it, nil
}

// Parse extracts an Intent from raw model output. Anything that is not
// exactly one known category yields Other.
func Parse(raw string) Intent {
	switch Intent(strings.ToUpper(strings.TrimSpace(raw))) {
	case Create:
		return Create
	case Query:
		return Query
	case Cancel:
		return Cancel
	case Reschedule:
		return Reschedule
	case Human:
		return Human
	default:
		return Other
	}
}
