package render

import (
	"context"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/opencode-ai/wavecast/internal/models"
)

type fakeGenerator struct {
	calls  int
	system string
	prompt string
	reply  string
	err    error
}

func (f *fakeGenerator) Generate(ctx context.Context, system, prompt string) (string, error) {
	f.calls++
	f.system = system
	f.prompt = prompt
	return f.reply, f.err
}

var (
	fixedNow = time.Date(2024, 11, 20, 12, 0, 0, 0, time.UTC)
	target   = time.Date(2024, 12, 7, 12, 0, 0, 0, time.UTC)
)

func newRenderer(gen Generator, opts Options) *Renderer {
	if opts.CountdownTarget.IsZero() {
		opts.CountdownTarget = target
	}
	opts.Now = func() time.Time { return fixedNow }
	return New(gen, opts)
}

func TestRenderTemplateSkipsGeneration(t *testing.T) {
	gen := &fakeGenerator{}
	r := newRenderer(gen, Options{})
	recipient := models.Recipient{Name: "Jonas", LastWave: 1, Slots: models.KnownSlots(0), Language: models.LanguageGerman}
	msg := models.Message{Handle: "nudge", Wave: 2, Type: models.MessageTypeTemplate, Content: "Hallo {name}", Condition: models.ConditionNotComing}

	out, err := r.Render(context.Background(), msg, recipient, models.VariableSet{})
	require.NoError(t, err)
	require.Equal(t, "Hallo Jonas", out)
	require.Zero(t, gen.calls)
}

func TestRenderAllPlaceholders(t *testing.T) {
	r := newRenderer(nil, Options{})
	recipient := models.Recipient{Name: "Ada", Tags: []string{"a", "b"}, Slots: models.KnownSlots(1234)}
	vars := models.VariableSet{SlotsLeft: 12, SlotsConfirmed: 30, SlotsUnknown: 4}

	content := "{name}|{tags}|{slots_recipient}|{additional_slots_recipient}|{weeks}|{days}|{hours}|{seconds}|{slots_left}|{slots_confirmed}|{slots_unknown}"
	out, err := r.Render(context.Background(), models.Message{Type: models.MessageTypeTemplate, Content: content}, recipient, vars)
	require.NoError(t, err)
	require.Equal(t, "Ada|a,b|1,234|1,233|2|17|408|1,468,800|12|30|4", out)
	require.False(t, regexp.MustCompile(`\{[a-z_]+\}`).MatchString(out))
}

func TestRenderUnknownSlots(t *testing.T) {
	r := newRenderer(nil, Options{})
	recipient := models.Recipient{Slots: models.UnknownSlots()}
	out, err := r.Render(context.Background(), models.Message{Type: models.MessageTypeTemplate, Content: "{slots_recipient}/{additional_slots_recipient}"}, recipient, models.VariableSet{})
	require.NoError(t, err)
	require.Equal(t, "unknown/unknown", out)

	zero := models.Recipient{Slots: models.KnownSlots(0)}
	out, err = r.Render(context.Background(), models.Message{Type: models.MessageTypeTemplate, Content: "{additional_slots_recipient}"}, zero, models.VariableSet{})
	require.NoError(t, err)
	require.Equal(t, "0", out)
}

func TestSubstituteSinglePass(t *testing.T) {
	values := map[string]string{"name": "{tags}", "tags": "x"}
	require.Equal(t, "Hi {tags} {unknown} {Name}", Substitute("Hi {name} {unknown} {Name}", values))
}

func TestCountdownRoundsHalfUp(t *testing.T) {
	require.Equal(t, "3", countdown(150*time.Minute, time.Hour))
	require.Equal(t, "2", countdown(149*time.Minute, time.Hour))
	require.Equal(t, "-2", countdown(-150*time.Minute, time.Hour))
	require.Equal(t, "-3", countdown(-151*time.Minute, time.Hour))
}

func TestRenderPromptAddsLanguageInstruction(t *testing.T) {
	tests := []struct {
		lang   models.Language
		prefix string
	}{
		{models.LanguageGerman, "You respond in German. "},
		{models.LanguageItalian, "You respond in Italian. "},
		{models.LanguageFrench, "You respond in French. "},
		{models.LanguageSpanish, "You respond in Spanish. "},
		{models.LanguageEnglish, ""},
	}
	for _, tt := range tests {
		t.Run(string(tt.lang), func(t *testing.T) {
			gen := &fakeGenerator{reply: "generated"}
			r := newRenderer(gen, Options{})
			recipient := models.Recipient{Name: "Ada", Language: tt.lang}
			msg := models.Message{Type: models.MessageTypePrompt, Content: "Invite {name}."}

			out, err := r.Render(context.Background(), msg, recipient, models.VariableSet{SystemPrompt: "sys"})
			require.NoError(t, err)
			require.Equal(t, "generated", out)
			require.Equal(t, 1, gen.calls)
			require.Equal(t, "sys", gen.system)
			require.Equal(t, tt.prefix+"Invite Ada.", gen.prompt)
		})
	}
}

func TestRenderEmptyCompletion(t *testing.T) {
	r := newRenderer(&fakeGenerator{reply: "  \n"}, Options{})
	_, err := r.Render(context.Background(), models.Message{Handle: "h", Type: models.MessageTypePrompt}, models.Recipient{Number: "+1"}, models.VariableSet{})

	var renderErr *RenderError
	require.ErrorAs(t, err, &renderErr)
	require.ErrorIs(t, err, ErrEmptyCompletion)
	require.Equal(t, "h", renderErr.Handle)
}

func TestRenderKeepsCompletionAsGenerated(t *testing.T) {
	r := newRenderer(&fakeGenerator{reply: "Hallo Ada!\n\nBis bald."}, Options{})
	out, err := r.Render(context.Background(), models.Message{Handle: "h", Type: models.MessageTypePrompt}, models.Recipient{Number: "+1"}, models.VariableSet{})
	require.NoError(t, err)
	require.Equal(t, "Hallo Ada!\n\nBis bald.", out)
}

func TestRenderGenerationFailure(t *testing.T) {
	boom := errors.New("timeout")
	r := newRenderer(&fakeGenerator{err: boom}, Options{})
	_, err := r.Render(context.Background(), models.Message{Type: models.MessageTypePrompt}, models.Recipient{}, models.VariableSet{})
	require.ErrorIs(t, err, boom)

	r = newRenderer(nil, Options{})
	_, err = r.Render(context.Background(), models.Message{Type: models.MessageTypePrompt}, models.Recipient{}, models.VariableSet{})
	var renderErr *RenderError
	require.ErrorAs(t, err, &renderErr)
}

func TestSign(t *testing.T) {
	authors := []string{"Kai", "Mia"}

	off := newRenderer(nil, Options{})
	require.Equal(t, "hello", off.Sign("hello", "update", authors))

	on := newRenderer(nil, Options{
		SignWithAuthor:  true,
		UnsignedHandles: []string{"invite", "bot-intro"},
		Pick:            func(n int) int { return n - 1 },
	})
	require.Equal(t, "🐙\nhello\n\nMia", on.Sign("hello", "update", authors))
	require.Equal(t, "🐙\nhello", on.Sign("hello", "invite", authors))
	require.Equal(t, "🐙\nhello", on.Sign("hello", "update", nil))
}
