package main

import (
	"Go2NetIngest/internal/store"

	"github.com/spf13/cobra"
)

func newMigrateCmd() *cobra.Command {
	var (
		dsn  string
		down bool
	)
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Apply or revert the PostgreSQL schema migrations",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("dsn") {
				cfg.Store.Postgres.DSN = dsn
			}
			logger, err := newLogger(cfg)
			if err != nil {
				return err
			}
			defer logger.Sync()
			return store.Migrate(cfg.Store.Postgres.DSN, down, logger.Named("migrate"))
		},
	}
	cmd.Flags().StringVar(&dsn, "dsn", "", "PostgreSQL connection string (default: store.postgres.dsn)")
	cmd.Flags().BoolVar(&down, "down", false, "revert all migrations")
	return cmd
}
