package main

import (
	"Go2NetIngest/internal/api"
	"Go2NetIngest/internal/config"
	"Go2NetIngest/internal/ingest"
	"Go2NetIngest/internal/normalizer"
	"Go2NetIngest/internal/source"
	"Go2NetIngest/internal/store"
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

type runOptions struct {
	input            string
	batchSize        int
	storeType        string
	dsn              string
	keepUnknownProto bool
	dropUnknownEType bool
	dryRun           bool
}

func newRunCmd() *cobra.Command {
	var opts runOptions
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Ingest flow records from a file, stdin or NATS",
		Example: `  ns-ingest run --input goflow2.log --dsn postgres://localhost/flows
  zcat flows.jsonl.gz | ns-ingest run --input - --batch-size 10000
  ns-ingest run --config configs/config.yaml --dry-run`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			applyRunFlags(cmd, cfg, &opts)
			if err := cfg.Validate(); err != nil {
				return err
			}
			return runIngest(cmd.Context(), cfg)
		},
	}

	f := cmd.Flags()
	f.StringVarP(&opts.input, "input", "i", "", "input file, '-' for stdin, '.gz' is decompressed (overrides source)")
	f.IntVarP(&opts.batchSize, "batch-size", "b", config.DefaultBatchSize, "records per transaction")
	f.StringVar(&opts.storeType, "store", "", "store type: postgres, clickhouse or memory")
	f.StringVar(&opts.dsn, "dsn", "", "PostgreSQL connection string")
	f.BoolVar(&opts.keepUnknownProto, "keep-unknown-proto", false, "store records whose protocol name is unknown")
	f.BoolVar(&opts.dropUnknownEType, "drop-unknown-etype", false, "drop records whose ethertype name is unknown")
	f.BoolVar(&opts.dryRun, "dry-run", false, "normalize and batch into memory without touching a database")
	return cmd
}

// applyRunFlags overrides cfg with the flags set on the command line.
func applyRunFlags(cmd *cobra.Command, cfg *config.Config, opts *runOptions) {
	flags := cmd.Flags()
	if flags.Changed("input") {
		cfg.Source.Type = "file"
		cfg.Source.Path = opts.input
	}
	if flags.Changed("batch-size") {
		cfg.Ingest.BatchSize = opts.batchSize
	}
	if flags.Changed("store") {
		cfg.Store.Type = opts.storeType
	}
	if flags.Changed("dsn") {
		cfg.Store.Postgres.DSN = opts.dsn
	}
	if flags.Changed("keep-unknown-proto") {
		cfg.Ingest.DropUnknownProtocol = !opts.keepUnknownProto
	}
	if flags.Changed("drop-unknown-etype") {
		cfg.Ingest.DropUnknownEtherType = opts.dropUnknownEType
	}
	if opts.dryRun {
		cfg.Store.Type = "memory"
	}
}

func runIngest(parent context.Context, cfg *config.Config) error {
	logger, err := newLogger(cfg)
	if err != nil {
		return err
	}
	defer logger.Sync()

	tables, err := normalizer.BuildTables()
	if err != nil {
		logger.Error("failed to build name tables", zap.Error(err))
		return err
	}

	ctx, stop := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
	defer stop()

	src, err := source.Open(cfg.Source, logger.Named("source"))
	if err != nil {
		logger.Error("failed to open source", zap.Error(err))
		return err
	}
	defer src.Close()

	st, err := store.Open(ctx, cfg.Store, logger.Named("store"))
	if err != nil {
		logger.Error("failed to open store", zap.Error(err))
		return err
	}
	defer st.Close()

	ctrl := ingest.New(st, tables, ingest.OptionsFromConfig(cfg.Ingest), logger.Named("ingest"))

	if cfg.API.ListenAddr != "" {
		srv := api.NewServer(cfg.API.ListenAddr, ctrl.Progress(), logger.Named("api"))
		srv.Start()
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := srv.Shutdown(shutdownCtx); err != nil {
				logger.Warn("status API forced to shut down", zap.Error(err))
			}
		}()
	}
	if cfg.API.GRPCAddr != "" {
		hs, err := api.NewHealthServer(cfg.API.GRPCAddr, logger.Named("health"))
		if err != nil {
			logger.Error("failed to start gRPC health server", zap.Error(err))
			return err
		}
		hs.Start()
		hs.SetServing(true)
		defer hs.Stop()
		defer hs.SetServing(false)
	}

	sum, err := ctrl.Run(ctx, src)
	if errors.Is(err, context.Canceled) {
		logger.Warn("ingest interrupted",
			zap.String("run_id", sum.RunID),
			zap.Int64("committed", sum.Committed),
			zap.Int64("commits", sum.Commits))
		return nil
	}
	if err != nil {
		logger.Error("ingest failed",
			zap.String("run_id", sum.RunID),
			zap.Int64("lines_read", sum.LinesRead),
			zap.Int64("committed", sum.Committed),
			zap.Error(err))
		return err
	}

	if mem, ok := st.(*store.MemoryStore); ok {
		fmt.Fprintf(os.Stdout, "dry run: %d records in %d batches\n", len(mem.Rows()), len(mem.Batches()))
	}
	return nil
}
