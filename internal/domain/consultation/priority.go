package consultation

import (
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// Priority is the urgency label derived from a consultation's free text. It
// is never stored.
type Priority string

const (
	PriorityUrgent    Priority = "Urgente"
	PriorityImportant Priority = "Importante"
	PriorityNormal    Priority = "Normale"
)

func IsPriorityLabel(label string) bool {
	switch Priority(label) {
	case PriorityUrgent, PriorityImportant, PriorityNormal:
		return true
	}
	return false
}

// Rule assigns Label when any keyword occurs in the text.
type Rule struct {
	Label    Priority
	Keywords []string
}

// DefaultRules builds the urgent-then-important rule list.
func DefaultRules(urgent, important []string) []Rule {
	return []Rule{
		{Label: PriorityUrgent, Keywords: urgent},
		{Label: PriorityImportant, Keywords: important},
	}
}

// PriorityRecorder is satisfied by *telemetry.Provider.
type PriorityRecorder interface {
	RecordPriority(label string)
}

// Classifier evaluates rules in order; the first rule with a matching
// keyword wins and Normale applies when none match.
type Classifier struct {
	rules   []Rule
	metrics PriorityRecorder
}

func lower(s string) string {
	// cases.Caser holds state and is not shared between goroutines.
	return cases.Lower(language.French).String(s)
}

func NewClassifier(rules []Rule, metrics PriorityRecorder) *Classifier {
	normalized := make([]Rule, 0, len(rules))
	for _, r := range rules {
		nr := Rule{Label: r.Label}
		for _, kw := range r.Keywords {
			if kw = strings.TrimSpace(kw); kw != "" {
				nr.Keywords = append(nr.Keywords, lower(kw))
			}
		}
		normalized = append(normalized, nr)
	}
	return &Classifier{rules: normalized, metrics: metrics}
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

// Classify lower-cases diagnosis, observations and motive, joins them with
// single spaces in that order and scans for keywords. Missing fields count
// as empty.
func (c *Classifier) Classify(diagnosis, observations, motive *string) Priority {
	text := lower(deref(diagnosis) + " " + deref(observations) + " " + deref(motive))
	p := c.match(text)
	if c.metrics != nil {
		c.metrics.RecordPriority(string(p))
	}
	return p
}

func (c *Classifier) match(text string) Priority {
	for _, r := range c.rules {
		for _, kw := range r.Keywords {
			if strings.Contains(text, kw) {
				return r.Label
			}
		}
	}
	return PriorityNormal
}
