package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"quotechart/internal/app"
	"quotechart/internal/config"
	"quotechart/internal/logging"
)

var (
	cfgFile   string
	logLevel  string
	appHandle *app.App
)

var rootCmd = &cobra.Command{
	Use:           "quotechart",
	Short:         "Chart quote snapshot prices from the local quote store",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		a, err := buildApp(cfgFile, logLevel)
		if err != nil {
			return err
		}
		appHandle = a
		return nil
	},
	RunE: runPlot,
}

// buildApp loads configuration and applies flag overrides. It runs before
// every command, so each execution sees its own --config.
func buildApp(path, level string) (*app.App, error) {
	cfg, err := config.Load(path)
	if err != nil {
		return nil, err
	}
	if level != "" {
		cfg.Logging.Level = level
	}

	logger := logging.NewLogger(cfg.Logging)
	logger.Debug().
		Str("config", path).
		Str("database", cfg.Database.Path).
		Bool("postgres", cfg.Database.DSN != "").
		Msg("configuration loaded")
	return app.NewApp(cfg, logger), nil
}

// Execute runs the root command and returns the process exit code.
func Execute() int {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "quotechart:", err)
		return 1
	}
	return 0
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "Path to configuration file")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "Override log level defined in config")

	rootCmd.AddCommand(plotCmd, showCmd, versionCmd)
}

func getApp() *app.App {
	if appHandle == nil {
		panic("application not initialized; PersistentPreRunE not executed")
	}
	return appHandle
}
