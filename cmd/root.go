package cmd

import (
	"os"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"shiftcast/internal/config"
	"shiftcast/internal/observability"
	"shiftcast/internal/ui"
	"shiftcast/pkg/models"
)

// rootOptions holds the persistent flags.
type rootOptions struct {
	configFile string
	logMode    string
	verbose    bool
}

// NewRootCmd builds the full command tree.
func NewRootCmd() *cobra.Command {
	opts := &rootOptions{}

	rootCmd := &cobra.Command{
		Use:   "shiftcast",
		Short: "Predict food truck shift sales by location",
		Long: `shiftcast reads historical shift sales for a city, builds model features for
its next unobserved shift and asks a regression model which locations will sell most.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if opts.configFile != "" {
				return os.Setenv(config.EnvConfigFile, opts.configFile)
			}
			return nil
		},
	}

	flags := rootCmd.PersistentFlags()
	flags.StringVar(&opts.configFile, "config", "", "config file (default ~/.shiftcast/config.yaml)")
	flags.StringVar(&opts.logMode, "log-mode", "", "log format: development or production")
	flags.BoolVarP(&opts.verbose, "verbose", "v", false, "enable debug logging")

	rootCmd.AddCommand(
		newVersionCmd(),
		newSetupCmd(),
		newEncryptConfigCmd(),
		newCitiesCmd(opts),
		newFeaturesCmd(opts),
		newPredictCmd(opts),
		newServeCmd(opts),
	)
	return rootCmd
}

// Execute runs the CLI and exits non-zero on failure.
func Execute() {
	if err := NewRootCmd().Execute(); err != nil {
		ui.ShowError(err)
		os.Exit(1)
	}
}

// loadConfig reads the config with the command's flags bound over file and
// environment values.
func loadConfig(cmd *cobra.Command) (*models.Config, error) {
	v := viper.New()
	bindings := map[string]string{
		"logging.mode": "log-mode",
		"server.addr":  "addr",
	}
	for key, flag := range bindings {
		if f := cmd.Flags().Lookup(flag); f != nil {
			if err := v.BindPFlag(key, f); err != nil {
				return nil, err
			}
		}
	}
	return config.Load(v)
}

func newLogger(cfg *models.Config, opts *rootOptions) *observability.Logger {
	level := observability.InfoLevel
	if opts.verbose {
		level = observability.DebugLevel
	}
	return observability.NewLogger(observability.LoggerConfig{
		Level:   level,
		Mode:    cfg.Logging.Mode,
		Service: "shiftcast",
		Version: Version,
	}).WithField("run_id", uuid.NewString())
}
