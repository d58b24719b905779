// Package events writes per-recipient dispatch outcomes to the local journal.
package events

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/opencode-ai/wavecast/internal/logging"
	"github.com/opencode-ai/wavecast/internal/models"
)

// Repository is the minimal interface needed to write journal records.
type Repository interface {
	Create(ctx context.Context, record *models.DispatchRecord) error
}

// RecordDispatch writes one outcome to the journal.
func RecordDispatch(ctx context.Context, repo Repository, record models.DispatchRecord) error {
	if repo == nil {
		return fmt.Errorf("journal repository is required")
	}
	if record.RunID == "" {
		return fmt.Errorf("run id is required")
	}
	if err := repo.Create(ctx, &record); err != nil {
		return fmt.Errorf("failed to journal dispatch for %s: %w", record.Number, err)
	}
	return nil
}

// Journal records outcomes and logs unrecorded sends so operators can reconcile the store.
type Journal struct {
	repo   Repository
	logger zerolog.Logger
}

// NewJournal creates a Journal backed by repo.
func NewJournal(repo Repository) *Journal {
	return &Journal{repo: repo, logger: logging.Component("journal")}
}

// Record implements the controller's journal hook.
func (j *Journal) Record(ctx context.Context, record models.DispatchRecord) error {
	if err := RecordDispatch(ctx, j.repo, record); err != nil {
		return err
	}
	if record.Status == models.DispatchStatusUnrecorded {
		j.logger.Error().
			Str("run_id", record.RunID).
			Str("number", record.Number).
			Str("handle", record.Handle).
			Int("wave", record.Wave).
			Msg("delivered message missing from record store; reconcile manually")
	}
	return nil
}
