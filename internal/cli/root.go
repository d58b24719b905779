// Package cli implements the wavecast command-line interface.
package cli

import (
	"context"
	"os"

	"github.com/spf13/cobra"

	"github.com/opencode-ai/wavecast/internal/config"
	"github.com/opencode-ai/wavecast/internal/logging"
)

// Version information, set at build time.
var (
	Version = "dev"
	Commit  = "none"
	Date    = "unknown"
)

var (
	cfgFile    string
	envFiles   []string
	logLevel   string
	logFormat  string
	jsonOutput bool
	noProgress bool
	journalArg string

	appConfig *config.Config
)

var rootCmd = &cobra.Command{
	Use:   "wavecast",
	Short: "Wave-ordered outbound campaign dispatcher",
	Long: `wavecast sends the next eligible message of a wave-ordered catalog to every active
recipient of a roster, over SMS or Signal, and records each recipient's progress in the
record store.

Nothing is delivered unless --hot-send is set, and nothing is written back unless
--hot-update is set.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		return initConfig(cmd)
	},
}

func init() {
	flags := rootCmd.PersistentFlags()
	flags.StringVar(&cfgFile, "config", "", "config file (default ./wavecast.yaml or ~/.config/wavecast/wavecast.yaml)")
	flags.StringSliceVar(&envFiles, "env-file", []string{".env"}, "dotenv files to load before reading the environment")
	flags.StringVar(&logLevel, "log-level", "", "log level (debug, info, warn, error)")
	flags.StringVar(&logFormat, "log-format", "", "log format (console, json)")
	flags.BoolVar(&jsonOutput, "json", false, "write machine-readable JSON to stdout")
	flags.BoolVar(&noProgress, "no-progress", false, "disable progress output")
	flags.StringVar(&journalArg, "journal", "", "journal database path (empty config value disables the journal)")
}

// Execute runs the root command.
func Execute(ctx context.Context) error {
	return rootCmd.ExecuteContext(ctx)
}

func initConfig(cmd *cobra.Command) error {
	cfg, err := config.Load(config.LoadOptions{
		ConfigFile: cfgFile,
		EnvFiles:   envFiles,
		Flags:      cmd.Flags(),
	})
	if err != nil {
		return err
	}

	if err := logging.Init(logging.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Output: os.Stderr,
	}); err != nil {
		return err
	}

	appConfig = cfg
	return nil
}

// GetConfig returns the loaded configuration, or nil before a command runs.
func GetConfig() *config.Config {
	return appConfig
}

// IsJSONOutput reports whether --json was requested.
func IsJSONOutput() bool {
	return jsonOutput
}
