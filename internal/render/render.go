// Package render turns a catalog message into the final text for one recipient.
package render

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/opencode-ai/wavecast/internal/logging"
	"github.com/opencode-ai/wavecast/internal/models"
)

// ErrEmptyCompletion is returned when generation yields blank text.
var ErrEmptyCompletion = errors.New("empty completion")

// RenderError reports why content could not be produced for a recipient.
type RenderError struct {
	Handle string
	Number string
	Err    error
}

func (e *RenderError) Error() string {
	return fmt.Sprintf("render %s for %s: %v", e.Handle, e.Number, e.Err)
}

func (e *RenderError) Unwrap() error {
	return e.Err
}

// Generator produces free text from a system prompt and a user prompt.
type Generator interface {
	Generate(ctx context.Context, system, prompt string) (string, error)
}

// SignatureMark opens every signed message.
const SignatureMark = "🐙"

// Options configures a Renderer.
type Options struct {
	// CountdownTarget is the instant the weeks/days/hours/seconds placeholders count down to.
	CountdownTarget time.Time

	// SignWithAuthor enables the signature wrapper in Sign.
	SignWithAuthor bool

	// UnsignedHandles get the mark but no author line.
	UnsignedHandles []string

	// Now overrides the clock.
	Now func() time.Time

	// Pick overrides the random author choice. It returns an index in [0, n).
	Pick func(n int) int
}

// Renderer substitutes placeholders and, for prompt messages, calls the generator.
type Renderer struct {
	gen      Generator
	opts     Options
	unsigned map[string]struct{}
	logger   zerolog.Logger
}

// New creates a Renderer. gen may be nil when the catalog has no prompt messages.
func New(gen Generator, opts Options) *Renderer {
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.Pick == nil {
		opts.Pick = rand.IntN
	}
	unsigned := make(map[string]struct{}, len(opts.UnsignedHandles))
	for _, handle := range opts.UnsignedHandles {
		unsigned[handle] = struct{}{}
	}
	return &Renderer{
		gen:      gen,
		opts:     opts,
		unsigned: unsigned,
		logger:   logging.Component("render"),
	}
}

var languageInstructions = map[models.Language]string{
	models.LanguageGerman:  "You respond in German. ",
	models.LanguageItalian: "You respond in Italian. ",
	models.LanguageFrench:  "You respond in French. ",
	models.LanguageSpanish: "You respond in Spanish. ",
}

// LanguageInstruction returns the prefix that asks the model to answer in the recipient's
// language. English has none.
func LanguageInstruction(lang models.Language) string {
	return languageInstructions[lang]
}

// Render produces the content for msg addressed to r.
func (r *Renderer) Render(ctx context.Context, msg models.Message, recipient models.Recipient, vars models.VariableSet) (string, error) {
	text := Substitute(msg.Content, Values(recipient, vars, r.opts.CountdownTarget, r.opts.Now()))

	if msg.Type == models.MessageTypeTemplate {
		return text, nil
	}

	if r.gen == nil {
		return "", &RenderError{Handle: msg.Handle, Number: recipient.Number, Err: errors.New("no generator configured")}
	}

	prompt := LanguageInstruction(recipient.Language) + text
	completion, err := r.gen.Generate(ctx, vars.SystemPrompt, prompt)
	if err != nil {
		return "", &RenderError{Handle: msg.Handle, Number: recipient.Number, Err: err}
	}
	if strings.TrimSpace(completion) == "" {
		r.logger.Warn().Str("handle", msg.Handle).Str("number", recipient.Number).Msg("generation returned no text")
		return "", &RenderError{Handle: msg.Handle, Number: recipient.Number, Err: ErrEmptyCompletion}
	}
	return completion, nil
}

// Sign applies the author signature when enabled. Content is prefixed with the mark; unless
// the handle is unsigned, a random author is appended.
func (r *Renderer) Sign(content, handle string, authors []string) string {
	if !r.opts.SignWithAuthor {
		return content
	}
	content = SignatureMark + "\n" + content
	if _, ok := r.unsigned[handle]; ok || len(authors) == 0 {
		return content
	}
	return content + "\n\n" + authors[r.opts.Pick(len(authors))]
}
