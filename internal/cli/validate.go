package cli

import (
	"fmt"
	"os"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/opencode-ai/wavecast/internal/catalog"
)

func init() {
	rootCmd.AddCommand(validateCmd)
}

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Check the record store for malformed rows",
	Long:  "Load every tab and report rows that would be dropped. Exits non-zero when any row is invalid.",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := requireConfig()
		if err != nil {
			return err
		}
		store, err := newStoreClient(cfg)
		if err != nil {
			return err
		}

		step := startProgress("Loading catalog")
		cat, err := catalog.Load(cmd.Context(), store)
		if err != nil {
			step.Fail(err)
			return err
		}
		step.Done()

		if IsJSONOutput() {
			if err := WriteOutput(os.Stdout, newValidateReport(cat)); err != nil {
				return err
			}
		} else {
			if len(cat.Issues) > 0 {
				if err := writeTable(os.Stdout, []string{"TAB", "ROW", "FIELD", "VALUE", "REASON"}, issueRows(cat.Issues)); err != nil {
					return err
				}
				fmt.Fprintln(os.Stdout)
			}
			fmt.Fprintf(os.Stdout, "%d recipients, %d messages, %d authors, %d invalid rows\n",
				len(cat.Recipients), len(cat.Messages), len(cat.Authors), len(cat.Issues))
		}

		if len(cat.Issues) > 0 {
			return fmt.Errorf("%d invalid rows", len(cat.Issues))
		}
		return nil
	},
}

type validateReport struct {
	Recipients int                       `json:"recipients"`
	Messages   int                       `json:"messages"`
	Authors    int                       `json:"authors"`
	Issues     []*catalog.ValidationError `json:"issues"`
}

func newValidateReport(cat *catalog.Catalog) validateReport {
	issues := cat.Issues
	if issues == nil {
		issues = []*catalog.ValidationError{}
	}
	return validateReport{
		Recipients: len(cat.Recipients),
		Messages:   len(cat.Messages),
		Authors:    len(cat.Authors),
		Issues:     issues,
	}
}

func issueRows(issues []*catalog.ValidationError) [][]string {
	rows := make([][]string, 0, len(issues))
	for _, issue := range issues {
		reason := issue.Reason
		if issue.Kept {
			reason += " (row kept)"
		}
		rows = append(rows, []string{issue.Tab, strconv.Itoa(issue.Row), issue.Field, truncate(issue.Value, 30), reason})
	}
	return rows
}
