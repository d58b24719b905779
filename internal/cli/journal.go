package cli

import (
	"errors"
	"os"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/opencode-ai/wavecast/internal/db"
	"github.com/opencode-ai/wavecast/internal/models"
)

var (
	journalRun        string
	journalNumber     string
	journalStatus     string
	journalSince      string
	journalUnrecorded bool
	journalLimit      int
)

func init() {
	rootCmd.AddCommand(journalCmd)

	flags := journalCmd.Flags()
	flags.StringVar(&journalRun, "run", "", "only show this run")
	flags.StringVar(&journalNumber, "number", "", "only show this phone number")
	flags.StringVar(&journalStatus, "status", "", "only show this status (sent, simulated, skipped, failed, unrecorded)")
	flags.StringVar(&journalSince, "since", "", "only show records newer than this duration (e.g. 24h)")
	flags.BoolVar(&journalUnrecorded, "unrecorded", false, "only show sends that are missing from the record store")
	flags.IntVar(&journalLimit, "limit", 100, "maximum number of records")
}

var journalCmd = &cobra.Command{
	Use:   "journal",
	Short: "List local dispatch records",
	Long:  "List the local journal of per-recipient outcomes. Use --unrecorded to find deliveries that never reached the record store.",
	Example: `  wavecast journal --unrecorded
  wavecast journal --number +491701234567 --since 72h`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		cfg := GetConfig()
		if cfg == nil || cfg.Journal.Path == "" {
			return errors.New("journal is disabled (journal.path is empty)")
		}

		query, err := buildJournalQuery(time.Now())
		if err != nil {
			return err
		}

		database, err := openJournal(ctx, cfg)
		if err != nil {
			return err
		}
		defer database.Close()

		records, err := db.NewDispatchRepository(database).Query(ctx, query)
		if err != nil {
			return err
		}

		if IsJSONOutput() {
			if records == nil {
				records = []*models.DispatchRecord{}
			}
			return WriteOutput(os.Stdout, records)
		}
		return writeTable(os.Stdout, []string{"TIME", "RUN", "PASS", "NAME", "NUMBER", "HANDLE", "WAVE", "STAGE", "STATUS"}, journalRows(records))
	},
}

func buildJournalQuery(now time.Time) (db.DispatchQuery, error) {
	query := db.DispatchQuery{RunID: journalRun, Limit: journalLimit}
	if journalNumber != "" {
		query.Number = models.NormalizeNumber(journalNumber)
	}

	status := models.DispatchStatus(journalStatus)
	if journalUnrecorded {
		status = models.DispatchStatusUnrecorded
	}
	if status != "" {
		probe := models.DispatchRecord{RunID: "-", Number: "-", Status: status}
		if err := probe.Validate(); err != nil {
			return query, err
		}
		query.Status = &status
	}

	if journalSince != "" {
		d, err := time.ParseDuration(journalSince)
		if err != nil {
			return query, err
		}
		since := now.Add(-d)
		query.Since = &since
	}
	return query, nil
}

func journalRows(records []*models.DispatchRecord) [][]string {
	rows := make([][]string, 0, len(records))
	for _, r := range records {
		runID := r.RunID
		if len(runID) > 8 {
			runID = runID[:8]
		}
		rows = append(rows, []string{
			r.Timestamp.Local().Format("2006-01-02 15:04:05"),
			runID,
			strconv.Itoa(r.Iteration + 1),
			r.Name,
			r.Number,
			r.Handle,
			strconv.Itoa(r.Wave),
			r.Stage,
			formatDispatchStatus(r.Status),
		})
	}
	return rows
}
