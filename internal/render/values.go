package render

import (
	"math"
	"regexp"
	"strconv"
	"strings"
	"time"

	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/opencode-ai/wavecast/internal/models"
)

var (
	placeholderPattern = regexp.MustCompile(`\{([a-z_]+)\}`)
	numberPrinter      = message.NewPrinter(language.AmericanEnglish)
)

const week = 7 * 24 * time.Hour

// valueInput is everything a placeholder may read.
type valueInput struct {
	recipient models.Recipient
	vars      models.VariableSet
	remaining time.Duration
}

// placeholders is the closed registry of substitutable keys.
var placeholders = map[string]func(in valueInput) string{
	"name": func(in valueInput) string { return in.recipient.Name },
	"tags": func(in valueInput) string { return strings.Join(in.recipient.Tags, ",") },
	"slots_recipient": func(in valueInput) string {
		count, known := in.recipient.Slots.Count()
		if !known {
			return models.SlotsUnknownValue
		}
		return formatNumber(int64(count))
	},
	"additional_slots_recipient": func(in valueInput) string {
		count, known := in.recipient.Slots.Count()
		if !known {
			return models.SlotsUnknownValue
		}
		return formatNumber(int64(max(0, count-1)))
	},
	"weeks":           func(in valueInput) string { return countdown(in.remaining, week) },
	"days":            func(in valueInput) string { return countdown(in.remaining, 24*time.Hour) },
	"hours":           func(in valueInput) string { return countdown(in.remaining, time.Hour) },
	"seconds":         func(in valueInput) string { return countdown(in.remaining, time.Second) },
	"slots_left":      func(in valueInput) string { return strconv.Itoa(in.vars.SlotsLeft) },
	"slots_confirmed": func(in valueInput) string { return strconv.Itoa(in.vars.SlotsConfirmed) },
	"slots_unknown":   func(in valueInput) string { return strconv.Itoa(in.vars.SlotsUnknown) },
}

// Placeholders lists the recognized keys.
func Placeholders() []string {
	keys := make([]string, 0, len(placeholders))
	for key := range placeholders {
		keys = append(keys, key)
	}
	return keys
}

// Values builds a fresh value map for one render.
func Values(recipient models.Recipient, vars models.VariableSet, target, now time.Time) map[string]string {
	in := valueInput{recipient: recipient, vars: vars, remaining: target.Sub(now)}
	values := make(map[string]string, len(placeholders))
	for key, fn := range placeholders {
		values[key] = fn(in)
	}
	return values
}

// Substitute replaces every {key} with its value in one pass. Unknown keys are left as-is and
// substituted text is never expanded again.
func Substitute(text string, values map[string]string) string {
	return placeholderPattern.ReplaceAllStringFunc(text, func(token string) string {
		if value, ok := values[token[1:len(token)-1]]; ok {
			return value
		}
		return token
	})
}

// countdown rounds half up, so -2.5 becomes -2.
func countdown(remaining, unit time.Duration) string {
	return formatNumber(int64(math.Floor(float64(remaining)/float64(unit) + 0.5)))
}

func formatNumber(n int64) string {
	return numberPrinter.Sprintf("%d", n)
}
