// Package models defines the core data types for wavecast campaigns.
package models

import (
	"fmt"
	"strconv"
	"strings"
)

// Language is a recipient's preferred language code.
type Language string

const (
	LanguageEnglish Language = "en"
	LanguageGerman  Language = "de"
	LanguageFrench  Language = "fr"
	LanguageItalian Language = "it"
	LanguageSpanish Language = "es"
)

// ParseLanguage validates a language code against the supported set.
func ParseLanguage(value string) (Language, error) {
	switch lang := Language(strings.ToLower(strings.TrimSpace(value))); lang {
	case LanguageEnglish, LanguageGerman, LanguageFrench, LanguageItalian, LanguageSpanish:
		return lang, nil
	default:
		return "", fmt.Errorf("unsupported language %q", value)
	}
}

// Channel is the delivery channel chosen by a recipient.
type Channel string

const (
	ChannelSMS    Channel = "sms"
	ChannelSignal Channel = "signal"
)

// ParseChannel validates a delivery channel name.
func ParseChannel(value string) (Channel, error) {
	switch ch := Channel(strings.ToLower(strings.TrimSpace(value))); ch {
	case ChannelSMS, ChannelSignal:
		return ch, nil
	default:
		return "", fmt.Errorf("unsupported channel %q", value)
	}
}

// SlotsUnknownValue is the store value marking an unknown slot count.
const SlotsUnknownValue = "unknown"

// Slots is a recipient's capacity count. The zero value is a known count of zero;
// use UnknownSlots for the unknown sentinel.
type Slots struct {
	count   int
	unknown bool
}

// KnownSlots returns a known slot count.
func KnownSlots(count int) Slots {
	if count < 0 {
		count = 0
	}
	return Slots{count: count}
}

// UnknownSlots returns the unknown sentinel.
func UnknownSlots() Slots {
	return Slots{unknown: true}
}

// ParseSlots parses a store value. Blank and "unknown" both map to the unknown sentinel.
func ParseSlots(value string) (Slots, error) {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" || strings.EqualFold(trimmed, SlotsUnknownValue) {
		return UnknownSlots(), nil
	}
	count, err := strconv.Atoi(trimmed)
	if err != nil {
		return Slots{}, fmt.Errorf("invalid slot count %q", value)
	}
	if count < 0 {
		return Slots{}, fmt.Errorf("slot count must be non-negative, got %d", count)
	}
	return KnownSlots(count), nil
}

// Unknown reports whether the count is the unknown sentinel.
func (s Slots) Unknown() bool {
	return s.unknown
}

// Count returns the known count and whether it is known.
func (s Slots) Count() (int, bool) {
	if s.unknown {
		return 0, false
	}
	return s.count, true
}

// String renders the count, or "unknown".
func (s Slots) String() string {
	if s.unknown {
		return SlotsUnknownValue
	}
	return strconv.Itoa(s.count)
}

// Recipient is one roster row.
type Recipient struct {
	// RowIndex is the zero-based position in the recipients tab, used for row updates.
	RowIndex int `json:"row_index"`

	// Number is the phone number normalized to "+" followed by digits.
	Number string `json:"number"`

	// Name is the display name used in templates.
	Name string `json:"name"`

	// Slots is the capacity count, possibly unknown.
	Slots Slots `json:"-"`

	// Active marks rows that take part in campaigns.
	Active bool `json:"active"`

	// LastWave is the highest wave already delivered.
	LastWave int `json:"last_wave"`

	// Language is the preferred language.
	Language Language `json:"language"`

	// Channel selects SMS or Signal delivery.
	Channel Channel `json:"channel"`

	// Tags are free-form labels.
	Tags []string `json:"tags,omitempty"`

	// HighIntensity opts the recipient into non-priority messages.
	HighIntensity bool `json:"high_intensity"`
}

// HasTag reports whether the recipient carries the tag.
func (r Recipient) HasTag(tag string) bool {
	for _, t := range r.Tags {
		if t == tag {
			return true
		}
	}
	return false
}

// NormalizeNumber strips everything but digits and prefixes "+".
func NormalizeNumber(raw string) string {
	var b strings.Builder
	b.Grow(len(raw) + 1)
	b.WriteByte('+')
	for _, r := range raw {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// SplitTags splits a comma-separated tag list, dropping blanks.
func SplitTags(raw string) []string {
	parts := strings.Split(raw, ",")
	tags := make([]string, 0, len(parts))
	for _, part := range parts {
		if tag := strings.TrimSpace(part); tag != "" {
			tags = append(tags, tag)
		}
	}
	return tags
}
