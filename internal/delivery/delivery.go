// Package delivery sends rendered content over SMS or the Signal CLI.
package delivery

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/opencode-ai/wavecast/internal/logging"
	"github.com/opencode-ai/wavecast/internal/models"
)

// DeliveryError reports a failed send. Stderr is set for Signal failures.
type DeliveryError struct {
	Channel models.Channel
	Stderr  string
	Err     error
}

func (e *DeliveryError) Error() string {
	if e.Stderr != "" {
		return fmt.Sprintf("%s delivery failed: %v: %s", e.Channel, e.Err, e.Stderr)
	}
	return fmt.Sprintf("%s delivery failed: %v", e.Channel, e.Err)
}

func (e *DeliveryError) Unwrap() error {
	return e.Err
}

// Sender delivers one message on a single channel.
type Sender interface {
	Send(ctx context.Context, number, content string) error
}

// Router picks the sender for a recipient's channel.
type Router struct {
	senders map[models.Channel]Sender
	limiter *RateLimiter
	logger  zerolog.Logger
}

// RouterOption configures a Router.
type RouterOption func(*Router)

// WithRateLimiter paces sends per channel.
func WithRateLimiter(limiter *RateLimiter) RouterOption {
	return func(r *Router) {
		r.limiter = limiter
	}
}

// NewRouter creates a router. A nil sender leaves that channel unavailable.
func NewRouter(sms, signal Sender, opts ...RouterOption) *Router {
	senders := make(map[models.Channel]Sender, 2)
	if sms != nil {
		senders[models.ChannelSMS] = sms
	}
	if signal != nil {
		senders[models.ChannelSignal] = signal
	}
	r := &Router{senders: senders, logger: logging.Component("delivery")}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Deliver sends content to number over channel.
func (r *Router) Deliver(ctx context.Context, channel models.Channel, number, content string) error {
	sender, ok := r.senders[channel]
	if !ok {
		return &DeliveryError{Channel: channel, Err: fmt.Errorf("channel %q is not configured", channel)}
	}
	if r.limiter != nil {
		if err := r.limiter.Wait(ctx, channel); err != nil {
			return &DeliveryError{Channel: channel, Err: err}
		}
	}
	if err := sender.Send(ctx, number, content); err != nil {
		return err
	}
	r.logger.Info().Str("channel", string(channel)).Str("number", number).Msg("message delivered")
	return nil
}
