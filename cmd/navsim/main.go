// Command navsim runs multi-agent navigation episodes over procedurally
// generated scenarios.
package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/ethanmclark1/conav-suite/internal/config"
)

var (
	configPath string
	logLevel   string
)

func main() {
	if err := config.LoadDotEnv(".env", "../../.env"); err != nil {
		fmt.Fprintln(os.Stderr, err)
	}

	rootCmd := &cobra.Command{
		Use:           "navsim",
		Short:         "navsim runs turn-based multi-agent navigation episodes with scripted hazards.",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "path to a YAML config file")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "override the log level (debug, info, warn, error)")

	rootCmd.AddCommand(newRunCmd(), newScenariosCmd(), newEpisodesCmd(), newValidateCmd())

	if err := rootCmd.Execute(); err != nil {
		slog.Error("navsim failed", "error", err)
		os.Exit(1)
	}
}

// loadConfig reads the config, installs the logger and registers custom
// scenarios.
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}
	if logLevel != "" {
		cfg.Server.LogLevel = config.LogLevel(logLevel)
		if !cfg.Server.LogLevel.IsValid() {
			return nil, fmt.Errorf("invalid --log-level %q", logLevel)
		}
	}

	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: cfg.Server.LogLevel.Level(),
	}))
	slog.SetDefault(logger)

	if err := cfg.RegisterScenarios(); err != nil {
		return nil, fmt.Errorf("register scenarios: %w", err)
	}
	return cfg, nil
}
