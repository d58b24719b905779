package delivery

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strings"

	"github.com/opencode-ai/wavecast/internal/models"
)

// Executor runs a program with arguments and no shell.
type Executor interface {
	Run(ctx context.Context, name string, args ...string) (stdout, stderr []byte, err error)
}

// ExecExecutor runs programs on the local machine.
type ExecExecutor struct{}

// Run starts name with args and waits for it to exit.
func (ExecExecutor) Run(ctx context.Context, name string, args ...string) ([]byte, []byte, error) {
	var stdout, stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	err := cmd.Run()
	return stdout.Bytes(), stderr.Bytes(), err
}

// BenignLine is one harmless stderr line. Prefix entries match any line that starts with Text.
type BenignLine struct {
	Text   string
	Prefix bool
}

// DefaultBenignStderr lists the lines signal-cli prints on successful sends.
var DefaultBenignStderr = []BenignLine{
	{Text: "SLF4J(I): Connected with provider of type [ch.qos.logback.classic.spi.LogbackServiceProvider]"},
	{Text: "INFO  AccountHelper - The Signal protocol expects that incoming messages are regularly received."},
	{Text: "WARN  RefreshRecipientsJob - Full CDSI recipients refresh failed, ignoring: org.signal.libsignal.net.NetworkProtocolException: HTTP error: 404 Not Found (IOException)"},
}

// ParseBenignLines converts configured entries. A trailing "*" marks a prefix entry.
func ParseBenignLines(entries []string) []BenignLine {
	lines := make([]BenignLine, 0, len(entries))
	for _, entry := range entries {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}
		if text, ok := strings.CutSuffix(entry, "*"); ok {
			lines = append(lines, BenignLine{Text: text, Prefix: true})
			continue
		}
		lines = append(lines, BenignLine{Text: entry})
	}
	return lines
}

// SignalClient sends through the Signal CLI.
type SignalClient struct {
	exec    Executor
	command string
	prefix  []string
	benign  []BenignLine
}

// NewSignalClient creates a client that runs command with the leading args in prefix.
// extra is appended to DefaultBenignStderr.
func NewSignalClient(exec Executor, command string, prefix []string, extra []BenignLine) *SignalClient {
	benign := make([]BenignLine, 0, len(DefaultBenignStderr)+len(extra))
	benign = append(benign, DefaultBenignStderr...)
	benign = append(benign, extra...)
	return &SignalClient{
		exec:    exec,
		command: command,
		prefix:  append([]string(nil), prefix...),
		benign:  benign,
	}
}

// Args returns the argument vector for one send.
func (c *SignalClient) Args(number, content string) []string {
	args := make([]string, 0, len(c.prefix)+4)
	args = append(args, c.prefix...)
	return append(args, "send", number, "-m", content)
}

// Send runs the CLI and inspects its exit status and stderr.
func (c *SignalClient) Send(ctx context.Context, number, content string) error {
	_, stderr, err := c.exec.Run(ctx, c.command, c.Args(number, content)...)
	text := string(stderr)
	if err != nil {
		return &DeliveryError{Channel: models.ChannelSignal, Stderr: text, Err: fmt.Errorf("signal-cli: %w", err)}
	}
	if line, ok := c.firstUnexpected(text); !ok {
		return &DeliveryError{Channel: models.ChannelSignal, Stderr: text, Err: fmt.Errorf("unexpected stderr line %q", line)}
	}
	return nil
}

func (c *SignalClient) firstUnexpected(stderr string) (string, bool) {
	for _, line := range strings.Split(stderr, "\n") {
		line = strings.TrimRight(line, "\r")
		if strings.TrimSpace(line) == "" {
			continue
		}
		if !c.isBenign(line) {
			return line, false
		}
	}
	return "", true
}

func (c *SignalClient) isBenign(line string) bool {
	for _, b := range c.benign {
		if b.Prefix && strings.HasPrefix(line, b.Text) {
			return true
		}
		if !b.Prefix && line == b.Text {
			return true
		}
	}
	return false
}
