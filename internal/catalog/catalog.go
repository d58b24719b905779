// Package catalog loads and filters the recipients, messages, and variables for a run.
package catalog

import (
	"context"
	"fmt"
	"time"

	"github.com/opencode-ai/wavecast/internal/logging"
	"github.com/opencode-ai/wavecast/internal/models"
	"github.com/opencode-ai/wavecast/internal/sheet"
)

// Source provides raw rows from the record store.
type Source interface {
	Recipients(ctx context.Context) ([]sheet.Row, error)
	Messages(ctx context.Context) ([]sheet.Row, error)
	Variables(ctx context.Context) ([]sheet.Row, error)
	Authors(ctx context.Context) ([]sheet.Row, error)
}

// Catalog is the per-run snapshot of campaign data.
type Catalog struct {
	// Recipients are the active roster rows in store order.
	Recipients []models.Recipient

	// Messages are active catalog entries sorted ascending by wave.
	Messages []models.Message

	// Variables are the run-shared values.
	Variables models.VariableSet

	// Authors are signature names, possibly empty.
	Authors []string

	// Issues are the rows dropped or flagged during parsing.
	Issues []*ValidationError
}

// Load fetches every tab once and parses it. Any fetch failure is returned; row-level
// problems are collected in Issues and logged.
func Load(ctx context.Context, src Source) (*Catalog, error) {
	logger := logging.Component("catalog")

	variableRows, err := src.Variables(ctx)
	if err != nil {
		return nil, fmt.Errorf("fetch variables: %w", err)
	}
	variables, err := ParseVariables(variableRows)
	if err != nil {
		return nil, err
	}

	recipientRows, err := src.Recipients(ctx)
	if err != nil {
		return nil, fmt.Errorf("fetch recipients: %w", err)
	}
	messageRows, err := src.Messages(ctx)
	if err != nil {
		return nil, fmt.Errorf("fetch messages: %w", err)
	}
	authorRows, err := src.Authors(ctx)
	if err != nil {
		return nil, fmt.Errorf("fetch authors: %w", err)
	}

	recipients, recipientIssues := ParseRecipients(recipientRows)
	messages, messageIssues := ParseMessages(messageRows)

	cat := &Catalog{
		Recipients: recipients,
		Messages:   messages,
		Variables:  variables,
		Authors:    ParseAuthors(authorRows),
		Issues:     append(recipientIssues, messageIssues...),
	}

	for _, issue := range cat.Issues {
		logger.Warn().
			Str("tab", issue.Tab).
			Int("row", issue.Row).
			Str("field", issue.Field).
			Str("value", issue.Value).
			Bool("kept", issue.Kept).
			Msg(issue.Reason)
	}

	logger.Info().
		Int("recipients", len(cat.Recipients)).
		Int("messages", len(cat.Messages)).
		Int("authors", len(cat.Authors)).
		Int("issues", len(cat.Issues)).
		Msg("catalog loaded")

	return cat, nil
}

// Filter restricts a catalog for testing and operations.
type Filter struct {
	// Canary restricts the roster to this number when set.
	Canary string

	// RecipientCap truncates the roster when positive.
	RecipientCap int

	// MaxWave drops messages above this wave when set.
	MaxWave *int

	// ActiveAt drops messages whose activation time is later, when set.
	ActiveAt *time.Time
}

// Apply returns a filtered copy. The receiver is not modified.
func (c *Catalog) Apply(f Filter) *Catalog {
	out := &Catalog{
		Variables: c.Variables,
		Authors:   append([]string(nil), c.Authors...),
		Issues:    c.Issues,
	}

	canary := ""
	if f.Canary != "" {
		canary = models.NormalizeNumber(f.Canary)
	}

	for _, r := range c.Recipients {
		if canary != "" && r.Number != canary {
			continue
		}
		r.Tags = append([]string(nil), r.Tags...)
		out.Recipients = append(out.Recipients, r)
	}
	if f.RecipientCap > 0 && len(out.Recipients) > f.RecipientCap {
		out.Recipients = out.Recipients[:f.RecipientCap]
	}

	for _, m := range c.Messages {
		if f.MaxWave != nil && m.Wave > *f.MaxWave {
			continue
		}
		if f.ActiveAt != nil && !m.ActiveAt(*f.ActiveAt) {
			continue
		}
		out.Messages = append(out.Messages, m)
	}

	return out
}
