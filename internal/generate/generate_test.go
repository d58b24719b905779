package generate

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
	"github.com/stretchr/testify/require"
)

type fakeChatModel struct {
	reply    *schema.Message
	err      error
	input    []*schema.Message
	deadline bool
}

func (f *fakeChatModel) Generate(ctx context.Context, input []*schema.Message, opts ...model.Option) (*schema.Message, error) {
	f.input = input
	_, f.deadline = ctx.Deadline()
	return f.reply, f.err
}

func (f *fakeChatModel) Stream(ctx context.Context, input []*schema.Message, opts ...model.Option) (*schema.StreamReader[*schema.Message], error) {
	return nil, errors.New("streaming not supported")
}

func TestGenerateSendsSystemAndUser(t *testing.T) {
	fake := &fakeChatModel{reply: schema.AssistantMessage("  Hallo Ada!\n", nil)}
	gen, err := NewWithModel(fake, 0)
	require.NoError(t, err)

	out, err := gen.Generate(context.Background(), "You are the bot.", "You respond in German. Greet Ada.")
	require.NoError(t, err)
	require.Equal(t, "  Hallo Ada!\n", out, "completion is returned unmodified")

	require.Len(t, fake.input, 2)
	require.Equal(t, schema.System, fake.input[0].Role)
	require.Equal(t, "You are the bot.", fake.input[0].Content)
	require.Equal(t, schema.User, fake.input[1].Role)
	require.Equal(t, "You respond in German. Greet Ada.", fake.input[1].Content)
	require.False(t, fake.deadline)
}

func TestGenerateAppliesTimeout(t *testing.T) {
	fake := &fakeChatModel{reply: schema.AssistantMessage("ok", nil)}
	gen, err := NewWithModel(fake, time.Minute)
	require.NoError(t, err)

	_, err = gen.Generate(context.Background(), "sys", "prompt")
	require.NoError(t, err)
	require.True(t, fake.deadline)
}

func TestGenerateWrapsModelError(t *testing.T) {
	boom := errors.New("rate limited")
	gen, err := NewWithModel(&fakeChatModel{err: boom}, 0)
	require.NoError(t, err)

	_, err = gen.Generate(context.Background(), "sys", "prompt")
	require.ErrorIs(t, err, boom)
}

func TestGenerateNilReply(t *testing.T) {
	gen, err := NewWithModel(&fakeChatModel{}, 0)
	require.NoError(t, err)

	out, err := gen.Generate(context.Background(), "sys", "prompt")
	require.NoError(t, err)
	require.Empty(t, out)
}

func TestNewRejectsUnknownProvider(t *testing.T) {
	_, err := New(context.Background(), Config{Provider: "carrier-pigeon"})
	require.Error(t, err)

	_, err = NewWithModel(nil, 0)
	require.ErrorIs(t, err, ErrNoModel)
}
