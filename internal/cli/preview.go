package cli

import (
	"os"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/opencode-ai/wavecast/internal/dispatch"
	"github.com/opencode-ai/wavecast/internal/models"
)

var (
	previewCanary  string
	previewCap     int
	previewMaxWave string
)

func init() {
	rootCmd.AddCommand(previewCmd)

	flags := previewCmd.Flags()
	flags.StringVar(&previewCanary, "canary", "", "only show this phone number")
	flags.IntVar(&previewCap, "cap", 0, "only show the first N recipients (0 = all)")
	flags.StringVar(&previewMaxWave, "max-wave", "", "ignore messages above this wave")
}

var previewCmd = &cobra.Command{
	Use:   "preview",
	Short: "Show the next message for every recipient",
	Long:  "Load the catalog, apply filters, and show which message each recipient would receive next. Nothing is rendered or sent.",
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
		controller, err := dispatch.New(dispatchOptions(cfg), dispatch.Deps{Source: store})
		if err != nil {
			return err
		}

		step := startProgress("Loading catalog")
		cat, err := controller.Load(ctx)
		if err != nil {
			step.Fail(err)
			return err
		}
		step.Done()

		selections := dispatch.Preview(cat)
		if IsJSONOutput() {
			return WriteOutput(os.Stdout, newPreviewReport(selections))
		}
		return writeTable(os.Stdout, []string{"NAME", "NUMBER", "CHANNEL", "LANG", "SLOTS", "LAST", "WAVE", "HANDLE", "TYPE", "CONDITION"}, previewRows(selections))
	},
}

type previewItem struct {
	Name      string `json:"name"`
	Number    string `json:"number"`
	Channel   string `json:"channel"`
	Language  string `json:"language"`
	Slots     string `json:"slots"`
	LastWave  int    `json:"last_wave"`
	Handle    string `json:"handle,omitempty"`
	Wave      int    `json:"wave,omitempty"`
	Type      string `json:"type,omitempty"`
	Condition string `json:"condition,omitempty"`
}

func newPreviewReport(selections []dispatch.Selection) []previewItem {
	items := make([]previewItem, 0, len(selections))
	for _, sel := range selections {
		r := sel.Recipient
		item := previewItem{
			Name:     r.Name,
			Number:   r.Number,
			Channel:  string(r.Channel),
			Language: string(r.Language),
			Slots:    r.Slots.String(),
			LastWave: r.LastWave,
		}
		if sel.Message != nil {
			item.Handle = sel.Message.Handle
			item.Wave = sel.Message.Wave
			item.Type = string(sel.Message.Type)
			item.Condition = string(sel.Message.Condition)
		}
		items = append(items, item)
	}
	return items
}

func previewRows(selections []dispatch.Selection) [][]string {
	rows := make([][]string, 0, len(selections))
	for _, sel := range selections {
		r := sel.Recipient
		wave, handle, msgType, condition := "-", "nothing to send", "-", "-"
		if m := sel.Message; m != nil {
			wave = strconv.Itoa(m.Wave)
			handle = m.Handle
			msgType = string(m.Type)
			if m.Condition != models.ConditionNone {
				condition = string(m.Condition)
			}
		}
		rows = append(rows, []string{
			r.Name, r.Number, string(r.Channel), string(r.Language), r.Slots.String(),
			strconv.Itoa(r.LastWave), wave, handle, msgType, condition,
		})
	}
	return rows
}
