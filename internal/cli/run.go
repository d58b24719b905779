package cli

import (
	"errors"
	"fmt"
	"os"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/opencode-ai/wavecast/internal/dispatch"
)

// ErrRecipientFailures is returned when a run finished but some recipients failed.
var ErrRecipientFailures = errors.New("some recipients failed")

var (
	runRepeat    int
	runWait      string
	runCanary    string
	runCap       int
	runMaxWave   string
	runHotSend   bool
	runHotUpdate bool
)

func init() {
	rootCmd.AddCommand(runCmd)

	flags := runCmd.Flags()
	flags.IntVar(&runRepeat, "repeat", 1, "number of passes over the roster")
	flags.StringVar(&runWait, "wait", "0", "pause between passes (duration, or bare milliseconds)")
	flags.StringVar(&runCanary, "canary", "", "only process this phone number")
	flags.IntVar(&runCap, "cap", 0, "only process the first N recipients (0 = all)")
	flags.StringVar(&runMaxWave, "max-wave", "", "ignore messages above this wave")
	flags.BoolVar(&runHotSend, "hot-send", false, "actually deliver messages")
	flags.BoolVar(&runHotUpdate, "hot-update", false, "write recipient progress and the audit log")
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run a campaign pass",
	Long: `Load the catalog, pick the next eligible message for every recipient, render it,
and (with --hot-send) deliver it. With --hot-update each recipient's progress and an
audit log row are written back to the record store.`,
	Example: `  # Dry run: show what would be sent
  wavecast run

  # Send to a single test number
  wavecast run --canary +491701234567 --hot-send --hot-update

  # Three passes, five minutes apart
  wavecast run --repeat 3 --wait 5m --hot-send --hot-update`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		cfg, err := requireConfig()
		if err != nil {
			return err
		}

		store, err := newStoreClient(cfg)
		if err != nil {
			return err
		}
		renderer, err := newRenderer(ctx, cfg)
		if err != nil {
			return err
		}
		deliverer, err := newDeliverer(cfg)
		if err != nil {
			return err
		}

		deps := dispatch.Deps{
			Source:    store,
			Renderer:  renderer,
			Deliverer: deliverer,
			Store:     store,
		}

		if cfg.Gates.HotSend {
			g, closeGuard, err := newGuard(ctx, cfg)
			if err != nil {
				return err
			}
			defer closeGuard()
			deps.Guard = g
		}

		database, err := openJournal(ctx, cfg)
		if err != nil {
			return err
		}
		if database != nil {
			defer database.Close()
		}
		deps.Journal = newJournal(database)

		controller, err := dispatch.New(dispatchOptions(cfg), deps)
		if err != nil {
			return err
		}

		summary, runErr := controller.Run(ctx)
		if summary == nil {
			return runErr
		}

		if IsJSONOutput() {
			if err := WriteOutput(os.Stdout, newRunReport(summary)); err != nil {
				return err
			}
		} else if err := printSummary(summary); err != nil {
			return err
		}

		if runErr != nil {
			return runErr
		}
		if summary.HasFailures() {
			return fmt.Errorf("%w: %d failed, %d held", ErrRecipientFailures, summary.Failed, summary.Held)
		}
		return nil
	},
}

// runReport is the JSON form of a run summary.
type runReport struct {
	RunID      string      `json:"run_id"`
	HotSend    bool        `json:"hot_send"`
	HotUpdate  bool        `json:"hot_update"`
	Iterations int         `json:"iterations"`
	Sent       int         `json:"sent"`
	Simulated  int         `json:"simulated"`
	Skipped    int         `json:"skipped"`
	Held       int         `json:"held"`
	Failed     int         `json:"failed"`
	Results    []runResult `json:"results"`
}

type runResult struct {
	Iteration int    `json:"iteration"`
	Name      string `json:"name"`
	Number    string `json:"number"`
	Channel   string `json:"channel"`
	Handle    string `json:"handle,omitempty"`
	Wave      int    `json:"wave,omitempty"`
	Outcome   string `json:"outcome"`
	Stage     string `json:"stage,omitempty"`
	Content   string `json:"content,omitempty"`
	Error     string `json:"error,omitempty"`
}

func newRunReport(s *dispatch.Summary) runReport {
	report := runReport{
		RunID:      s.RunID,
		HotSend:    s.HotSend,
		HotUpdate:  s.HotUpdate,
		Iterations: s.Iterations,
		Sent:       s.Sent,
		Simulated:  s.Simulated,
		Skipped:    s.Skipped,
		Held:       s.Held,
		Failed:     s.Failed,
		Results:    make([]runResult, 0, len(s.Results)),
	}
	for _, r := range s.Results {
		item := runResult{
			Iteration: r.Iteration,
			Name:      r.Recipient.Name,
			Number:    r.Recipient.Number,
			Channel:   string(r.Recipient.Channel),
			Outcome:   string(r.Outcome),
			Stage:     r.Stage,
			Content:   r.Content,
		}
		if r.Message != nil {
			item.Handle = r.Message.Handle
			item.Wave = r.Message.Wave
		}
		if r.Err != nil {
			item.Error = r.Err.Error()
		}
		report.Results = append(report.Results, item)
	}
	return report
}

func summaryRows(s *dispatch.Summary) [][]string {
	rows := make([][]string, 0, len(s.Results))
	for _, r := range s.Results {
		handle, wave := "-", "-"
		if r.Message != nil {
			handle = r.Message.Handle
			wave = strconv.Itoa(r.Message.Wave)
		}
		detail := r.Stage
		if r.Err != nil && r.Outcome != dispatch.OutcomeSkipped {
			detail = truncate(r.Err.Error(), 60)
		}
		rows = append(rows, []string{
			strconv.Itoa(r.Iteration + 1),
			r.Recipient.Name,
			r.Recipient.Number,
			string(r.Recipient.Channel),
			wave,
			handle,
			detail,
			formatOutcome(r.Outcome),
		})
	}
	return rows
}

func printSummary(s *dispatch.Summary) error {
	headers := []string{"PASS", "NAME", "NUMBER", "CHANNEL", "WAVE", "HANDLE", "DETAIL", "OUTCOME"}
	if err := writeTable(os.Stdout, headers, summaryRows(s)); err != nil {
		return err
	}
	fmt.Fprintln(os.Stdout)
	return writeTable(os.Stdout, nil, [][]string{
		{"Run:", s.RunID},
		{"Hot send:", formatYesNo(s.HotSend)},
		{"Hot update:", formatYesNo(s.HotUpdate)},
		{"Passes:", strconv.Itoa(s.Iterations)},
		{"Sent:", strconv.Itoa(s.Sent)},
		{"Simulated:", strconv.Itoa(s.Simulated)},
		{"Skipped:", strconv.Itoa(s.Skipped)},
		{"Held:", strconv.Itoa(s.Held)},
		{"Failed:", strconv.Itoa(s.Failed)},
	})
}
