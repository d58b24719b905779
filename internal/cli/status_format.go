package cli

import (
	"os"

	"github.com/charmbracelet/lipgloss"
	"golang.org/x/term"

	"github.com/opencode-ai/wavecast/internal/dispatch"
	"github.com/opencode-ai/wavecast/internal/models"
)

var (
	styleOK   = lipgloss.NewStyle().Foreground(lipgloss.Color("2")).Bold(true)
	styleInfo = lipgloss.NewStyle().Foreground(lipgloss.Color("6"))
	styleWarn = lipgloss.NewStyle().Foreground(lipgloss.Color("3"))
	styleErr  = lipgloss.NewStyle().Foreground(lipgloss.Color("1")).Bold(true)
	styleDim  = lipgloss.NewStyle().Faint(true)
)

// colorEnabled is evaluated per call so tests and pipes get plain text.
var colorEnabled = func() bool {
	if _, ok := os.LookupEnv("NO_COLOR"); ok {
		return false
	}
	return !IsJSONOutput() && term.IsTerminal(int(os.Stdout.Fd()))
}

func hasTTY() bool {
	return term.IsTerminal(int(os.Stdin.Fd())) && term.IsTerminal(int(os.Stderr.Fd()))
}

func styled(style lipgloss.Style, text string) string {
	if !colorEnabled() {
		return text
	}
	return style.Render(text)
}

func formatOutcome(outcome dispatch.Outcome) string {
	return styled(styleForOutcome(outcome), string(outcome))
}

func styleForOutcome(outcome dispatch.Outcome) lipgloss.Style {
	switch outcome {
	case dispatch.OutcomeSent:
		return styleOK
	case dispatch.OutcomeSimulated:
		return styleInfo
	case dispatch.OutcomeSkipped:
		return styleDim
	case dispatch.OutcomeHeld:
		return styleWarn
	default:
		return styleErr
	}
}

func formatDispatchStatus(status models.DispatchStatus) string {
	switch status {
	case models.DispatchStatusSent:
		return styled(styleOK, string(status))
	case models.DispatchStatusSimulated:
		return styled(styleInfo, string(status))
	case models.DispatchStatusSkipped:
		return styled(styleDim, string(status))
	case models.DispatchStatusUnrecorded:
		return styled(styleWarn, string(status))
	default:
		return styled(styleErr, string(status))
	}
}
