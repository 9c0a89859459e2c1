package main

import (
	"Go2NetIngest/internal/config"
	"Go2NetIngest/internal/logging"
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var cfgFile string

var rootCmd = &cobra.Command{
	Use:   "ns-ingest",
	Short: "Load goflow2 JSON flow records into a database",
	Long: `ns-ingest reads newline-delimited JSON flow records, normalizes them
into typed rows and commits them to PostgreSQL or ClickHouse in fixed-size
transactions.`,
	SilenceUsage: true,
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: built-in defaults)")
	rootCmd.AddCommand(newRunCmd(), newTablesCmd(), newMigrateCmd(), newPublishCmd())
}

// loadConfig reads --config, or returns the defaults when it is unset.
func loadConfig() (*config.Config, error) {
	if cfgFile == "" {
		return config.Default(), nil
	}
	cfg, err := config.LoadConfig(cfgFile)
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	return cfg, nil
}

func newLogger(cfg *config.Config) (*zap.Logger, error) {
	logger, err := logging.New(cfg.Logging.Level, cfg.Logging.Format)
	if err != nil {
		return nil, fmt.Errorf("failed to create logger: %w", err)
	}
	return logger, nil
}
