package cli

import (
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/Seancheey/linea-game-ai/internal/buildinfo"
	"github.com/Seancheey/linea-game-ai/pkg/config"
	"github.com/Seancheey/linea-game-ai/pkg/logging"
)

// App exposes the configuration and logging facilities shared by the
// subcommands, initialised once per invocation.
type App struct {
	Config config.Config
	Logger *slog.Logger
}

// NewRootCmd constructs the CLI command tree.
func NewRootCmd() *cobra.Command {
	app := &App{}
	var configPath, logLevel, logFormat string

	rootCmd := &cobra.Command{
		Use:           "recorder",
		Short:         "Record gameplay frames and key state into training datasets",
		Long:          "Captures screen frames and keyboard transitions concurrently,\nfuses them into causally-ordered dataset rows, and exports each\nsession as stacked arrays plus a video preview.",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(configPath)
			if err != nil {
				return err
			}
			if logLevel != "" {
				lvl, err := config.NormalizeLogLevel(logLevel)
				if err != nil {
					return err
				}
				cfg.Logging.Level = lvl
			}
			if logFormat != "" {
				format, err := config.NormalizeFormat(logFormat)
				if err != nil {
					return err
				}
				cfg.Logging.Format = format
			}

			logger, err := logging.New(logging.Options{
				Level:  cfg.Logging.Level,
				Format: cfg.Logging.Format,
				Output: cmd.ErrOrStderr(),
			})
			if err != nil {
				return err
			}
			logger.Info("configuration loaded", "source", cfg.Source, "data_dir", cfg.Paths.DataDir)

			app.Config = cfg
			app.Logger = logger
			return nil
		},
	}

	rootCmd.Version = buildinfo.Version()
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Path to config file (default: ./config.yaml if present)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "Override log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().StringVar(&logFormat, "log-format", "", "Override log output format (json, console)")

	rootCmd.AddCommand(newRecordCmd(app))
	rootCmd.AddCommand(newSessionsCmd(app))
	rootCmd.AddCommand(newDoctorCmd(app))
	rootCmd.AddCommand(newVersionCmd())

	return rootCmd
}
