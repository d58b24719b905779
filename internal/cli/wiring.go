package cli

import (
	"context"
	"fmt"

	"github.com/opencode-ai/wavecast/internal/config"
	"github.com/opencode-ai/wavecast/internal/db"
	"github.com/opencode-ai/wavecast/internal/delivery"
	"github.com/opencode-ai/wavecast/internal/dispatch"
	"github.com/opencode-ai/wavecast/internal/events"
	"github.com/opencode-ai/wavecast/internal/generate"
	"github.com/opencode-ai/wavecast/internal/guard"
	"github.com/opencode-ai/wavecast/internal/logging"
	"github.com/opencode-ai/wavecast/internal/models"
	"github.com/opencode-ai/wavecast/internal/render"
	"github.com/opencode-ai/wavecast/internal/sheet"
)

func requireConfig() (*config.Config, error) {
	cfg := GetConfig()
	if cfg == nil {
		return nil, fmt.Errorf("configuration not loaded")
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

func dispatchOptions(cfg *config.Config) dispatch.Options {
	return dispatch.Options{
		Repeat:           cfg.Loop.Repeat,
		Wait:             cfg.Loop.Wait,
		Canary:           cfg.Filters.Canary,
		RecipientCap:     cfg.Filters.RecipientCap,
		MaxWave:          cfg.Filters.MaxWave,
		HotSend:          cfg.Gates.HotSend,
		HotUpdate:        cfg.Gates.HotUpdate,
		RespectSendAfter: cfg.Filters.RespectSendAfter,
	}
}

func newStoreClient(cfg *config.Config) (*sheet.Client, error) {
	return sheet.NewClient(sheet.Options{
		BaseURL: cfg.Store.URL,
		Timeout: cfg.Store.Timeout,
		Tabs: sheet.Tabs{
			Recipients: cfg.Store.Tabs.Recipients,
			Messages:   cfg.Store.Tabs.Messages,
			Variables:  cfg.Store.Tabs.Variables,
			Authors:    cfg.Store.Tabs.Authors,
			Log:        cfg.Store.Tabs.Log,
		},
	})
}

// newRenderer builds the renderer. A generator that cannot be built only affects prompt
// messages, which then fail per recipient.
func newRenderer(ctx context.Context, cfg *config.Config) (*render.Renderer, error) {
	target, err := cfg.CountdownTarget()
	if err != nil {
		return nil, err
	}

	var gen render.Generator
	g, err := generate.New(ctx, generate.Config{
		Provider: cfg.Generation.Provider,
		Model:    cfg.Generation.Model,
		APIKey:   cfg.Generation.APIKey,
		BaseURL:  cfg.Generation.BaseURL,
		Timeout:  cfg.Generation.Timeout,
	})
	if err != nil {
		logging.Component("cli").Warn().Err(err).Msg("generation unavailable; prompt messages will fail")
	} else {
		gen = g
	}

	return render.New(gen, render.Options{
		CountdownTarget: target,
		SignWithAuthor:  cfg.Render.SignWithAuthor,
		UnsignedHandles: cfg.Render.UnsignedHandles,
	}), nil
}

func newDeliverer(cfg *config.Config) (*delivery.Router, error) {
	var sms delivery.Sender
	if cfg.SMS.URL != "" {
		client, err := delivery.NewSMSClient(delivery.SMSOptions{
			URL:     cfg.SMS.URL,
			Token:   cfg.SMS.Token,
			Sender:  cfg.SMS.Sender,
			Timeout: cfg.SMS.Timeout,
		})
		if err != nil {
			return nil, err
		}
		sms = client
	}

	command, prefix, err := cfg.SignalArgs()
	if err != nil {
		return nil, err
	}
	signal := delivery.NewSignalClient(delivery.ExecExecutor{}, command, prefix, delivery.ParseBenignLines(cfg.Signal.BenignStderr))

	limiter := delivery.NewRateLimiter(
		delivery.WithChannelLimit(models.ChannelSMS, delivery.RateLimitConfig{PerSecond: cfg.SMS.Rate.PerSecond, Burst: cfg.SMS.Rate.Burst}),
		delivery.WithChannelLimit(models.ChannelSignal, delivery.RateLimitConfig{PerSecond: cfg.Signal.Rate.PerSecond, Burst: cfg.Signal.Rate.Burst}),
	)
	return delivery.NewRouter(sms, signal, delivery.WithRateLimiter(limiter)), nil
}

func newGuard(ctx context.Context, cfg *config.Config) (guard.Guard, func() error, error) {
	if cfg.Guard.RedisURL == "" {
		return guard.Noop{}, func() error { return nil }, nil
	}
	g, err := guard.NewRedis(ctx, cfg.Guard.RedisURL, cfg.Guard.TTL)
	if err != nil {
		return nil, nil, err
	}
	return g, g.Close, nil
}

// openJournal returns nil when the journal is disabled.
func openJournal(ctx context.Context, cfg *config.Config) (*db.DB, error) {
	if cfg.Journal.Path == "" {
		return nil, nil
	}
	database, err := db.Open(cfg.Journal.Path)
	if err != nil {
		return nil, err
	}
	if _, err := database.MigrateUp(ctx); err != nil {
		_ = database.Close()
		return nil, err
	}
	return database, nil
}

func newJournal(database *db.DB) dispatch.Journal {
	if database == nil {
		return nil
	}
	return events.NewJournal(db.NewDispatchRepository(database))
}
