package store

import (
	"Go2NetIngest/internal/config"
	"Go2NetIngest/internal/model"
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"
)

func init() {
	Register("postgres", func(ctx context.Context, cfg config.StoreConfig, logger *zap.Logger) (model.Store, error) {
		return NewPostgresStore(ctx, cfg.Postgres, logger)
	})
}

// PostgresStore writes batches into PostgreSQL. Each transaction is loaded
// with a single COPY when it commits.
type PostgresStore struct {
	pool   *pgxpool.Pool
	table  string
	logger *zap.Logger
}

// NewPostgresStore connects to PostgreSQL and, if configured, migrates the schema.
func NewPostgresStore(ctx context.Context, cfg config.PostgresConfig, logger *zap.Logger) (*PostgresStore, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	if cfg.MigrateOnStart {
		if cfg.Table == MigratedTable {
			if err := Migrate(cfg.DSN, false, logger); err != nil {
				return nil, err
			}
		} else {
			logger.Warn("skipping migrations for custom table", zap.String("table", cfg.Table))
		}
	}

	poolCfg, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("failed to parse database config: %w", err)
	}
	if cfg.MaxConns > 0 {
		poolCfg.MaxConns = cfg.MaxConns
	}
	poolCfg.MaxConnIdleTime = time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}
	logger.Info("connected to PostgreSQL", zap.String("table", cfg.Table))

	return &PostgresStore{pool: pool, table: cfg.Table, logger: logger}, nil
}

// Begin opens a database transaction.
func (s *PostgresStore) Begin(ctx context.Context) (model.Transaction, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	return &postgresTx{tx: tx, table: s.table}, nil
}

// Close closes the connection pool.
func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}

type postgresTx struct {
	tx    pgx.Tx
	table string
	rows  [][]any
}

func (t *postgresTx) Insert(_ context.Context, rec *model.CanonicalFlowRecord) error {
	t.rows = append(t.rows, rec.Values())
	return nil
}

// Commit copies the buffered rows and commits. On failure nothing of the
// batch is persisted.
func (t *postgresTx) Commit(ctx context.Context) error {
	n, err := t.tx.CopyFrom(ctx, pgx.Identifier{t.table}, model.Columns, pgx.CopyFromRows(t.rows))
	if err != nil {
		_ = t.tx.Rollback(ctx)
		return fmt.Errorf("failed to copy %d rows: %w", len(t.rows), err)
	}
	if n != int64(len(t.rows)) {
		_ = t.tx.Rollback(ctx)
		return fmt.Errorf("copied %d of %d rows", n, len(t.rows))
	}
	if err := t.tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	t.rows = nil
	return nil
}

func (t *postgresTx) Rollback(ctx context.Context) error {
	t.rows = nil
	if err := t.tx.Rollback(ctx); err != nil && !errors.Is(err, pgx.ErrTxClosed) {
		return fmt.Errorf("failed to roll back transaction: %w", err)
	}
	return nil
}
