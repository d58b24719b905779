package catalog

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/opencode-ai/wavecast/internal/logging"
	"github.com/opencode-ai/wavecast/internal/models"
	"github.com/opencode-ai/wavecast/internal/sheet"
)

const (
	TabRecipients = "recipients"
	TabMessages   = "messages"
	TabVariables  = "variables"

	storeTrue = "TRUE"
	levelHigh = "high"
)

var sendAfterLayouts = []string{
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

// ParseRecipients converts recipient rows. Inactive rows are skipped silently; active rows
// that cannot be parsed are dropped and reported.
func ParseRecipients(rows []sheet.Row) ([]models.Recipient, []*ValidationError) {
	logger := logging.Component("catalog")
	recipients := make([]models.Recipient, 0, len(rows))
	var issues []*ValidationError

	for i, row := range rows {
		rawNumber := row.Trimmed("number")
		if rawNumber == "" || row.Trimmed("active") != storeTrue {
			continue
		}

		invalid := func(field, reason string) {
			issues = append(issues, &ValidationError{
				Tab:    TabRecipients,
				Row:    i,
				Field:  field,
				Value:  row.String(field),
				Reason: reason,
			})
		}

		name := row.Trimmed("name")
		if name == "" {
			logger.Warn().Int("row", i).Str("full_name", row.Trimmed("fullName")).Msg("recipient has no name")
		}

		slots, err := models.ParseSlots(row.String("slots"))
		if err != nil {
			invalid("slots", err.Error())
			continue
		}

		lastWave := 0
		if raw := row.Trimmed("lastWave"); raw != "" {
			lastWave, err = strconv.Atoi(raw)
			if err != nil {
				invalid("lastWave", "last wave is not an integer")
				continue
			}
		}

		language, err := models.ParseLanguage(row.String("language"))
		if err != nil {
			invalid("language", err.Error())
			continue
		}

		channel, err := models.ParseChannel(row.String("messenger"))
		if err != nil {
			invalid("messenger", err.Error())
			continue
		}

		recipients = append(recipients, models.Recipient{
			RowIndex:      i,
			Number:        models.NormalizeNumber(rawNumber),
			Name:          name,
			Slots:         slots,
			Active:        true,
			LastWave:      lastWave,
			Language:      language,
			Channel:       channel,
			Tags:          models.SplitTags(row.String("tags")),
			HighIntensity: row.Trimmed("intensity") == levelHigh,
		})
	}

	return recipients, issues
}

// ParseMessages converts message rows, keeps the active ones, and sorts them by wave.
// Equal waves keep their store order.
func ParseMessages(rows []sheet.Row) ([]models.Message, []*ValidationError) {
	messages := make([]models.Message, 0, len(rows))
	var issues []*ValidationError

	for i, row := range rows {
		if row.Trimmed("active") != storeTrue {
			continue
		}

		invalid := func(field, reason string) {
			issues = append(issues, &ValidationError{
				Tab:    TabMessages,
				Row:    i,
				Field:  field,
				Value:  row.String(field),
				Reason: reason,
			})
		}

		wave, err := strconv.Atoi(row.Trimmed("wave"))
		if err != nil {
			invalid("wave", "wave is not an integer")
			continue
		}
		if wave <= 0 {
			continue
		}

		handle := row.Trimmed("handle")
		if handle == "" {
			invalid("handle", "handle is required")
			continue
		}

		msgType, err := models.ParseMessageType(row.String("type"))
		if err != nil {
			invalid("type", err.Error())
			continue
		}

		condition, err := models.ParseCondition(row.String("condition"))
		if err != nil {
			invalid("condition", err.Error())
			continue
		}

		// An unreadable sendAfter keeps the message; only the activation filter excludes it.
		var sendAfter *time.Time
		sendAfterInvalid := false
		if raw := row.Trimmed("sendAfter"); raw != "" {
			parsed, err := parseSendAfter(raw)
			if err != nil {
				invalid("sendAfter", err.Error())
				issues[len(issues)-1].Kept = true
				sendAfterInvalid = true
			} else {
				sendAfter = &parsed
			}
		}

		messages = append(messages, models.Message{
			Handle:           handle,
			Content:          row.String("content"),
			Type:             msgType,
			Wave:             wave,
			HighPriority:     row.Trimmed("priority") == levelHigh,
			SendAfter:        sendAfter,
			SendAfterInvalid: sendAfterInvalid,
			Condition:        condition,
			Active:           true,
		})
	}

	sort.SliceStable(messages, func(a, b int) bool {
		return messages[a].Wave < messages[b].Wave
	})

	return messages, issues
}

func parseSendAfter(raw string) (time.Time, error) {
	for _, layout := range sendAfterLayouts {
		if t, err := time.ParseInLocation(layout, raw, time.Local); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized time %q", raw)
}

// ParseVariables reads the run-shared values. Every variable is required.
func ParseVariables(rows []sheet.Row) (models.VariableSet, error) {
	values := make(map[string]string, len(rows))
	for _, row := range rows {
		if name := row.Trimmed("name"); name != "" {
			values[name] = row.String("content")
		}
	}

	var vars models.VariableSet
	prompt, ok := values[models.VariableSystemPrompt]
	if !ok {
		return vars, &ValidationError{Tab: TabVariables, Row: -1, Field: models.VariableSystemPrompt, Reason: "variable is missing"}
	}
	vars.SystemPrompt = prompt

	counters := []struct {
		name string
		dst  *int
	}{
		{models.VariableSlotsLeft, &vars.SlotsLeft},
		{models.VariableSlotsConfirmed, &vars.SlotsConfirmed},
		{models.VariableSlotsUnknown, &vars.SlotsUnknown},
	}
	for _, counter := range counters {
		raw, ok := values[counter.name]
		if !ok {
			return vars, &ValidationError{Tab: TabVariables, Row: -1, Field: counter.name, Reason: "variable is missing"}
		}
		n, err := strconv.Atoi(strings.TrimSpace(raw))
		if err != nil {
			return vars, &ValidationError{Tab: TabVariables, Row: -1, Field: counter.name, Value: raw, Reason: "variable is not an integer"}
		}
		*counter.dst = n
	}

	return vars, nil
}

// ParseAuthors returns the non-blank author names.
func ParseAuthors(rows []sheet.Row) []string {
	authors := make([]string, 0, len(rows))
	for _, row := range rows {
		if name := row.Trimmed("name"); name != "" {
			authors = append(authors, name)
		}
	}
	return authors
}
