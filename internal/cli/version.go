package cli

import (
	"fmt"
	"os"
	"runtime"

	"github.com/spf13/cobra"
)

func init() {
	rootCmd.AddCommand(versionCmd)
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		return nil
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		info := map[string]string{
			"version": Version,
			"commit":  Commit,
			"date":    Date,
			"go":      runtime.Version(),
		}
		if IsJSONOutput() {
			return WriteOutput(os.Stdout, info)
		}
		fmt.Fprintf(os.Stdout, "wavecast %s (commit %s, built %s, %s)\n", Version, Commit, Date, runtime.Version())
		return nil
	},
}
