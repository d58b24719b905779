// Package generate wraps an eino chat model behind a single-turn text generation call.
package generate

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cloudwego/eino-ext/components/model/ark"
	"github.com/cloudwego/eino-ext/components/model/deepseek"
	"github.com/cloudwego/eino-ext/components/model/ollama"
	"github.com/cloudwego/eino-ext/components/model/openai"
	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
	"github.com/rs/zerolog"

	"github.com/opencode-ai/wavecast/internal/config"
	"github.com/opencode-ai/wavecast/internal/logging"
)

// ErrNoModel is returned when a Generator has no chat model.
var ErrNoModel = errors.New("chat model is required")

// Config selects and configures the chat model.
type Config struct {
	Provider string
	Model    string
	APIKey   string
	BaseURL  string

	// Timeout bounds a single Generate call. Zero means no extra bound.
	Timeout time.Duration
}

// Generator produces completions from a system prompt and a user prompt.
type Generator struct {
	model   model.BaseChatModel
	timeout time.Duration
	logger  zerolog.Logger
}

// New builds the chat model for cfg.Provider and wraps it.
func New(ctx context.Context, cfg Config) (*Generator, error) {
	chatModel, err := newChatModel(ctx, cfg)
	if err != nil {
		return nil, err
	}
	gen, err := NewWithModel(chatModel, cfg.Timeout)
	if err != nil {
		return nil, err
	}
	gen.logger = gen.logger.With().Str("provider", cfg.Provider).Str("model", cfg.Model).Logger()
	return gen, nil
}

// NewWithModel wraps an existing chat model.
func NewWithModel(chatModel model.BaseChatModel, timeout time.Duration) (*Generator, error) {
	if chatModel == nil {
		return nil, ErrNoModel
	}
	return &Generator{
		model:   chatModel,
		timeout: timeout,
		logger:  logging.Component("generate"),
	}, nil
}

func newChatModel(ctx context.Context, cfg Config) (model.BaseChatModel, error) {
	switch cfg.Provider {
	case config.ProviderOpenAI, "":
		m, err := openai.NewChatModel(ctx, &openai.ChatModelConfig{
			APIKey:  cfg.APIKey,
			BaseURL: cfg.BaseURL,
			Model:   cfg.Model,
		})
		if err != nil {
			return nil, fmt.Errorf("create openai chat model: %w", err)
		}
		return m, nil
	case config.ProviderOllama:
		m, err := ollama.NewChatModel(ctx, &ollama.ChatModelConfig{
			BaseURL: cfg.BaseURL,
			Model:   cfg.Model,
		})
		if err != nil {
			return nil, fmt.Errorf("create ollama chat model: %w", err)
		}
		return m, nil
	case config.ProviderDeepSeek:
		m, err := deepseek.NewChatModel(ctx, &deepseek.ChatModelConfig{
			APIKey:  cfg.APIKey,
			BaseURL: cfg.BaseURL,
			Model:   cfg.Model,
		})
		if err != nil {
			return nil, fmt.Errorf("create deepseek chat model: %w", err)
		}
		return m, nil
	case config.ProviderArk:
		m, err := ark.NewChatModel(ctx, &ark.ChatModelConfig{
			APIKey:  cfg.APIKey,
			BaseURL: cfg.BaseURL,
			Model:   cfg.Model,
		})
		if err != nil {
			return nil, fmt.Errorf("create ark chat model: %w", err)
		}
		return m, nil
	default:
		return nil, fmt.Errorf("unknown generation provider %q", cfg.Provider)
	}
}

// Generate sends one system message and one user message and returns the reply text.
// An empty reply is returned as-is; callers decide whether that is an error.
func (g *Generator) Generate(ctx context.Context, system, prompt string) (string, error) {
	if g.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, g.timeout)
		defer cancel()
	}

	messages := []*schema.Message{
		schema.SystemMessage(system),
		schema.UserMessage(prompt),
	}

	start := time.Now()
	reply, err := g.model.Generate(ctx, messages)
	if err != nil {
		return "", fmt.Errorf("generate completion: %w", err)
	}
	if reply == nil {
		return "", nil
	}

	g.logger.Debug().
		Int("prompt_len", len(prompt)).
		Int("reply_len", len(reply.Content)).
		Dur("took", time.Since(start)).
		Msg("completion generated")

	return reply.Content, nil
}
