package models

import (
	"fmt"
	"strings"
	"time"
)

// MessageType distinguishes literal templates from generation prompts.
type MessageType string

const (
	MessageTypeTemplate MessageType = "template"
	MessageTypePrompt   MessageType = "prompt"
)

// ParseMessageType validates a message type. "freeform-prompt" is accepted as an alias.
func ParseMessageType(value string) (MessageType, error) {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "template":
		return MessageTypeTemplate, nil
	case "prompt", "freeform-prompt":
		return MessageTypePrompt, nil
	default:
		return "", fmt.Errorf("unsupported message type %q", value)
	}
}

// Condition is an optional eligibility tag on a message.
type Condition string

const (
	ConditionNone         Condition = ""
	ConditionSlotsUnknown Condition = "slots_unknown"
	ConditionComing       Condition = "coming"
	ConditionNotComing    Condition = "not_coming"
	ConditionNewToFishy   Condition = "new_to_fishy"
	ConditionKnowsFishy   Condition = "knows_fishy"
	ConditionGerman       Condition = "de"
	ConditionEnglish      Condition = "en"
)

// TagNewToFishy is the recipient tag tested by the new_to_fishy and knows_fishy conditions.
const TagNewToFishy = "new_to_fishy"

// Conditions lists every accepted condition except ConditionNone.
var Conditions = []Condition{
	ConditionSlotsUnknown,
	ConditionComing,
	ConditionNotComing,
	ConditionNewToFishy,
	ConditionKnowsFishy,
	ConditionGerman,
	ConditionEnglish,
}

// ParseCondition validates a condition tag. Blank maps to ConditionNone.
// Comma-joined lists are rejected: a message carries at most one condition.
func ParseCondition(value string) (Condition, error) {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return ConditionNone, nil
	}
	for _, c := range Conditions {
		if Condition(trimmed) == c {
			return c, nil
		}
	}
	return "", fmt.Errorf("unknown condition %q", value)
}

// Message is one catalog entry.
type Message struct {
	// Handle identifies the message variant in logs and recipient state.
	Handle string `json:"handle"`

	// Content is a template string or a generation prompt.
	Content string `json:"content"`

	// Type selects template substitution or generation.
	Type MessageType `json:"type"`

	// Wave orders the catalog and gates eligibility.
	Wave int `json:"wave"`

	// HighPriority messages go to every recipient, not only high-intensity ones.
	HighPriority bool `json:"high_priority"`

	// SendAfter is the optional activation time.
	SendAfter *time.Time `json:"send_after,omitempty"`

	// SendAfterInvalid marks a sendAfter cell that could not be parsed.
	SendAfterInvalid bool `json:"send_after_invalid,omitempty"`

	// Condition is the optional eligibility tag.
	Condition Condition `json:"condition,omitempty"`

	// Active marks messages that may be sent.
	Active bool `json:"active"`
}

// ActiveAt reports whether the activation time has passed. A message with an unreadable
// activation time is never active.
func (m Message) ActiveAt(now time.Time) bool {
	if m.SendAfterInvalid {
		return false
	}
	return m.SendAfter == nil || !now.Before(*m.SendAfter)
}
