// Package dispatch runs campaign passes: select, render, deliver, and persist per recipient.
package dispatch

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/opencode-ai/wavecast/internal/catalog"
	"github.com/opencode-ai/wavecast/internal/eligibility"
	"github.com/opencode-ai/wavecast/internal/guard"
	"github.com/opencode-ai/wavecast/internal/logging"
	"github.com/opencode-ai/wavecast/internal/models"
)

// ErrNoSource is returned when the controller has no catalog source.
var ErrNoSource = errors.New("catalog source is required")

// ErrNoRenderer is returned by Run when the controller has no renderer.
var ErrNoRenderer = errors.New("renderer is required")

// Options is the immutable run configuration.
type Options struct {
	// Repeat is the number of passes over the roster. Values below 1 mean 1.
	Repeat int

	// Wait is the pause between passes.
	Wait time.Duration

	// Canary restricts the roster to one number.
	Canary string

	// RecipientCap truncates the roster when positive.
	RecipientCap int

	// MaxWave drops messages above this wave when set.
	MaxWave *int

	// HotSend enables real delivery.
	HotSend bool

	// HotUpdate enables writing progression state and the audit log.
	HotUpdate bool

	// RespectSendAfter drops messages whose activation time has not passed.
	RespectSendAfter bool

	// RunID labels journal records. Generated when empty.
	RunID string
}

// Renderer produces recipient content.
type Renderer interface {
	Render(ctx context.Context, msg models.Message, r models.Recipient, vars models.VariableSet) (string, error)
	Sign(content, handle string, authors []string) string
}

// Deliverer sends content over a channel.
type Deliverer interface {
	Deliver(ctx context.Context, channel models.Channel, number, content string) error
}

// Store persists recipient progression and the audit log.
type Store interface {
	UpdateRecipient(ctx context.Context, rowIndex int, update models.RecipientUpdate) error
	AppendLog(ctx context.Context, entry models.LogEntry) error
}

// Journal mirrors outcomes locally.
type Journal interface {
	Record(ctx context.Context, record models.DispatchRecord) error
}

// Deps are the controller's collaborators. Guard and Journal are optional.
type Deps struct {
	Source    catalog.Source
	Renderer  Renderer
	Deliverer Deliverer
	Store     Store
	Guard     guard.Guard
	Journal   Journal

	// Now overrides the clock.
	Now func() time.Time

	// Sleep overrides the inter-pass wait.
	Sleep func(ctx context.Context, d time.Duration) error
}

// Controller runs campaign passes.
type Controller struct {
	opts   Options
	deps   Deps
	logger zerolog.Logger
}

// New creates a Controller.
func New(opts Options, deps Deps) (*Controller, error) {
	if deps.Source == nil {
		return nil, ErrNoSource
	}
	if opts.HotSend && deps.Deliverer == nil {
		return nil, errors.New("deliverer is required when hot-send is on")
	}
	if opts.HotUpdate && deps.Store == nil {
		return nil, errors.New("store is required when hot-update is on")
	}
	if opts.Repeat < 1 {
		opts.Repeat = 1
	}
	if opts.Wait < 0 {
		opts.Wait = 0
	}
	if opts.RunID == "" {
		opts.RunID = uuid.New().String()
	}
	if deps.Guard == nil {
		deps.Guard = guard.Noop{}
	}
	if deps.Now == nil {
		deps.Now = time.Now
	}
	if deps.Sleep == nil {
		deps.Sleep = sleep
	}
	return &Controller{
		opts:   opts,
		deps:   deps,
		logger: logging.Component("dispatch").With().Str("run_id", opts.RunID).Logger(),
	}, nil
}

// RunID returns the label used for this controller's journal records.
func (c *Controller) RunID() string {
	return c.opts.RunID
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// Load fetches the catalog and applies the configured filters.
func (c *Controller) Load(ctx context.Context) (*catalog.Catalog, error) {
	cat, err := catalog.Load(ctx, c.deps.Source)
	if err != nil {
		return nil, fmt.Errorf("load catalog: %w", err)
	}

	filter := catalog.Filter{
		Canary:       c.opts.Canary,
		RecipientCap: c.opts.RecipientCap,
		MaxWave:      c.opts.MaxWave,
	}
	if c.opts.RespectSendAfter {
		now := c.deps.Now()
		filter.ActiveAt = &now
	}
	filtered := cat.Apply(filter)

	c.logger.Info().
		Int("recipients", len(filtered.Recipients)).
		Int("messages", len(filtered.Messages)).
		Bool("canary", c.opts.Canary != "").
		Msg("catalog ready")

	return filtered, nil
}

// Run executes every pass. A catalog failure aborts before any send; per-recipient failures
// are recorded in the summary. Cancellation is observed between recipients and during the
// wait, never inside a recipient step.
func (c *Controller) Run(ctx context.Context) (*Summary, error) {
	if c.deps.Renderer == nil {
		return nil, ErrNoRenderer
	}
	cat, err := c.Load(ctx)
	if err != nil {
		return nil, err
	}

	summary := &Summary{RunID: c.opts.RunID, HotSend: c.opts.HotSend, HotUpdate: c.opts.HotUpdate}
	recipients := append([]models.Recipient(nil), cat.Recipients...)
	held := make(map[int]struct{})

	c.logger.Info().
		Int("repeat", c.opts.Repeat).
		Dur("wait", c.opts.Wait).
		Bool("hot_send", c.opts.HotSend).
		Bool("hot_update", c.opts.HotUpdate).
		Msg("campaign starting")

	// A started recipient step runs to completion; cancellation stops the pass between
	// recipients and at the wait.
	stepCtx := context.WithoutCancel(ctx)

	for iteration := 0; iteration < c.opts.Repeat; iteration++ {
		for i := range recipients {
			if err := ctx.Err(); err != nil {
				c.logger.Warn().Err(err).Int("iteration", iteration).Int("remaining", len(recipients)-i).Msg("campaign interrupted")
				return summary, err
			}
			if _, ok := held[i]; ok {
				c.logger.Debug().Int("iteration", iteration).Str("number", recipients[i].Number).Msg("recipient held; not offered")
				continue
			}
			result := c.processRecipient(stepCtx, cat, &recipients[i], iteration)
			if result.Outcome == OutcomeHeld {
				held[i] = struct{}{}
			}
			summary.add(result)
		}
		summary.Iterations++

		if iteration < c.opts.Repeat-1 {
			c.logger.Debug().Int("iteration", iteration).Dur("wait", c.opts.Wait).Msg("waiting before next pass")
			if err := c.deps.Sleep(ctx, c.opts.Wait); err != nil {
				c.logger.Warn().Err(err).Msg("campaign interrupted")
				return summary, err
			}
		}
	}

	c.logger.Info().
		Int("sent", summary.Sent).
		Int("simulated", summary.Simulated).
		Int("skipped", summary.Skipped).
		Int("held", summary.Held).
		Int("failed", summary.Failed).
		Msg("campaign finished")

	return summary, nil
}

// processRecipient runs one recipient step. It advances r.LastWave only after every gated
// step succeeded.
func (c *Controller) processRecipient(ctx context.Context, cat *catalog.Catalog, r *models.Recipient, iteration int) Result {
	logger := c.logger.With().
		Int("iteration", iteration).
		Str("recipient", r.Name).
		Str("number", r.Number).
		Str("channel", string(r.Channel)).
		Logger()

	result := Result{Iteration: iteration, Recipient: *r}

	msg, ok := eligibility.Select(cat.Messages, *r)
	if !ok {
		logger.Info().Msg("nothing to send")
		result.Outcome = OutcomeSkipped
		result.Err = eligibility.ErrNothingToSend
		return c.finish(ctx, result, logger)
	}
	result.Message = &msg
	logger = logger.With().Str("handle", msg.Handle).Int("wave", msg.Wave).Logger()

	content, err := c.deps.Renderer.Render(ctx, msg, *r, cat.Variables)
	if err != nil {
		return c.fail(ctx, result, StageRender, err, logger)
	}
	content = c.deps.Renderer.Sign(content, msg.Handle, cat.Authors)
	result.Content = content

	if c.opts.HotSend {
		claimed, err := c.deps.Guard.Claim(ctx, r.Number, msg.Handle)
		if err != nil {
			return c.fail(ctx, result, StageGuard, err, logger)
		}
		if !claimed {
			logger.Warn().Msg("already delivered in an earlier run; skipping")
			result.Outcome = OutcomeSkipped
			result.Stage = StageGuard
			result.Err = ErrAlreadyClaimed
			return c.finish(ctx, result, logger)
		}

		logger.Info().Msg("sending message")
		if err := c.deps.Deliverer.Deliver(ctx, r.Channel, r.Number, content); err != nil {
			if releaseErr := c.deps.Guard.Release(ctx, r.Number, msg.Handle); releaseErr != nil {
				logger.Warn().Err(releaseErr).Msg("failed to release send claim")
			}
			return c.fail(ctx, result, StageDeliver, err, logger)
		}
		result.Delivered = true
	} else {
		logger.Info().Msg("not sending message (hot-send off)")
	}

	if c.opts.HotUpdate {
		if err := c.persist(ctx, r, msg, content); err != nil {
			var perr *PersistenceError
			errors.As(err, &perr)
			perr.Delivered = result.Delivered
			if result.Delivered {
				logger.Error().Err(err).Str("stage", perr.Stage).Msg("delivered but not recorded; holding recipient for this run")
				result.Outcome = OutcomeHeld
				result.Stage = perr.Stage
				result.Err = perr
				return c.finish(ctx, result, logger)
			}
			return c.fail(ctx, result, perr.Stage, perr, logger)
		}
		r.LastWave = msg.Wave
	}

	if result.Delivered {
		result.Outcome = OutcomeSent
	} else {
		result.Outcome = OutcomeSimulated
	}
	return c.finish(ctx, result, logger)
}

// persist writes the row update, then the log entry.
func (c *Controller) persist(ctx context.Context, r *models.Recipient, msg models.Message, content string) error {
	update := models.RecipientUpdate{LastWave: msg.Wave, LastHandle: msg.Handle, LastContent: content}
	if err := c.deps.Store.UpdateRecipient(ctx, r.RowIndex, update); err != nil {
		return &PersistenceError{Stage: StageUpdate, Err: err}
	}
	entry := models.LogEntry{
		Name:      r.Name,
		Number:    r.Number,
		Timestamp: c.deps.Now(),
		Handle:    msg.Handle,
		Message:   content,
	}
	if err := c.deps.Store.AppendLog(ctx, entry); err != nil {
		return &PersistenceError{Stage: StageLog, Err: err}
	}
	return nil
}

func (c *Controller) fail(ctx context.Context, result Result, stage string, err error, logger zerolog.Logger) Result {
	logger.Error().Err(err).Str("stage", stage).Msg("recipient failed")
	result.Outcome = OutcomeFailed
	result.Stage = stage
	result.Err = err
	return c.finish(ctx, result, logger)
}

func (c *Controller) finish(ctx context.Context, result Result, logger zerolog.Logger) Result {
	result.Timestamp = c.deps.Now()
	if c.deps.Journal == nil {
		return result
	}
	if err := c.deps.Journal.Record(ctx, result.Record(c.opts.RunID)); err != nil {
		logger.Warn().Err(err).Msg("failed to journal outcome")
	}
	return result
}
