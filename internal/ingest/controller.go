// Package ingest drives raw lines through normalization into the store in
// fixed-size transactions.
package ingest

import (
	"Go2NetIngest/internal/config"
	"Go2NetIngest/internal/metrics"
	"Go2NetIngest/internal/model"
	"Go2NetIngest/internal/normalizer"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// maxExcerpt bounds how much of an unparsable line is copied into a log entry.
const maxExcerpt = 256

// Options controls batching and the filtering policy.
type Options struct {
	// BatchSize is the number of records per transaction.
	BatchSize int
	// DropUnknownProtocol discards records whose protocol name did not resolve.
	DropUnknownProtocol bool
	// DropUnknownEtherType discards records whose ethertype name did not resolve.
	DropUnknownEtherType bool
}

// DefaultOptions commits every 50,000 records and drops records whose
// protocol name is unknown.
func DefaultOptions() Options {
	return Options{
		BatchSize:           config.DefaultBatchSize,
		DropUnknownProtocol: true,
	}
}

// OptionsFromConfig maps the ingest section of the configuration.
func OptionsFromConfig(cfg config.IngestConfig) Options {
	return Options{
		BatchSize:            cfg.BatchSize,
		DropUnknownProtocol:  cfg.DropUnknownProtocol,
		DropUnknownEtherType: cfg.DropUnknownEtherType,
	}
}

// Summary counts what happened to every line of a run.
type Summary struct {
	RunID             string
	LinesRead         int64
	Inserted          int64
	Committed         int64
	BlankLines        int64
	ParseErrors       int64
	NormalizeErrors   int64
	Filtered          int64
	UnknownProtocols  int64
	UnknownEtherTypes int64
	Commits           int64
	Duration          time.Duration
}

// StoreError wraps a failed store operation. It always ends the run.
type StoreError struct {
	Op  string
	Err error
}

func (e *StoreError) Error() string {
	return fmt.Sprintf("store %s failed: %v", e.Op, e.Err)
}

func (e *StoreError) Unwrap() error { return e.Err }

// Controller reads lines, normalizes them and commits them in batches.
type Controller struct {
	store      model.Store
	normalizer *normalizer.Normalizer
	opts       Options
	logger     *zap.Logger
	progress   *Progress
}

// New creates a Controller. A non-positive BatchSize falls back to the default.
func New(store model.Store, tables normalizer.Tables, opts Options, logger *zap.Logger) *Controller {
	if logger == nil {
		logger = zap.NewNop()
	}
	if opts.BatchSize <= 0 {
		opts.BatchSize = config.DefaultBatchSize
	}
	return &Controller{
		store:      store,
		normalizer: normalizer.New(tables, logger.Named("normalizer")),
		opts:       opts,
		logger:     logger,
		progress:   &Progress{},
	}
}

// Progress returns the tracker updated at every commit.
func (c *Controller) Progress() *Progress {
	return c.progress
}

// Run consumes src until it returns io.EOF, committing every BatchSize
// records and once more for a final partial batch. Malformed lines are
// logged and skipped. A store error rolls back the open batch and ends the
// run. Cancellation of ctx is only observed between batches; when it is,
// Run returns the summary so far and an error wrapping ctx.Err().
func (c *Controller) Run(ctx context.Context, src model.LineSource) (Summary, error) {
	start := time.Now()
	sum := Summary{RunID: uuid.NewString()}
	logger := c.logger.With(zap.String("run_id", sum.RunID))

	c.progress.start(sum.RunID, c.opts.BatchSize)
	defer c.progress.finish()

	logger.Info("ingest run started",
		zap.Int("batch_size", c.opts.BatchSize),
		zap.Bool("drop_unknown_protocol", c.opts.DropUnknownProtocol),
		zap.Bool("drop_unknown_ethertype", c.opts.DropUnknownEtherType))

	// A batch in flight is finished even if ctx is cancelled meanwhile.
	storeCtx := context.WithoutCancel(ctx)

	var (
		tx      model.Transaction
		pending int
		lineNo  int64
	)
	abort := func(cause error) (Summary, error) {
		if tx != nil {
			if err := tx.Rollback(storeCtx); err != nil {
				metrics.StoreErrors.WithLabelValues("rollback").Inc()
				logger.Error("rollback failed", zap.Error(err), zap.Int("discarded", pending))
			} else {
				logger.Warn("open batch rolled back", zap.Int("discarded", pending))
			}
		}
		sum.Duration = time.Since(start)
		return sum, cause
	}

	if err := ctx.Err(); err != nil {
		return abort(fmt.Errorf("ingest cancelled before start: %w", err))
	}

	for {
		line, err := src.Next(ctx)
		if errors.Is(err, io.EOF) {
			break
		}
		tooLong := errors.Is(err, model.ErrLineTooLong)
		if err != nil && !tooLong {
			return abort(fmt.Errorf("failed to read line %d: %w", lineNo+1, err))
		}
		lineNo++
		sum.LinesRead++
		metrics.LinesRead.Inc()

		if tooLong {
			sum.ParseErrors++
			metrics.RecordsSkipped.WithLabelValues(metrics.ReasonParse).Inc()
			logger.Warn("skipping line: too long", zap.Int64("line", lineNo), zap.Error(err))
			continue
		}

		rec, ok := c.process(logger, lineNo, line, &sum)
		if !ok {
			continue
		}

		if tx == nil {
			tx, err = c.store.Begin(storeCtx)
			if err != nil {
				tx = nil
				metrics.StoreErrors.WithLabelValues("begin").Inc()
				return abort(&StoreError{Op: "begin", Err: err})
			}
		}
		if err := tx.Insert(storeCtx, rec); err != nil {
			metrics.StoreErrors.WithLabelValues("insert").Inc()
			return abort(&StoreError{Op: "insert", Err: err})
		}
		pending++
		sum.Inserted++
		metrics.RecordsInserted.Inc()

		if pending < c.opts.BatchSize {
			continue
		}
		if err := c.commit(storeCtx, logger, tx, pending, &sum); err != nil {
			return abort(err)
		}
		tx, pending = nil, 0

		if err := ctx.Err(); err != nil {
			logger.Info("ingest cancelled at batch boundary", zap.Int64("line", lineNo))
			sum.Duration = time.Since(start)
			return sum, fmt.Errorf("ingest cancelled after %d commits: %w", sum.Commits, err)
		}
	}

	if tx != nil {
		if err := c.commit(storeCtx, logger, tx, pending, &sum); err != nil {
			return abort(err)
		}
	}

	sum.Duration = time.Since(start)
	logger.Info("ingest run finished",
		zap.Int64("lines_read", sum.LinesRead),
		zap.Int64("committed", sum.Committed),
		zap.Int64("commits", sum.Commits),
		zap.Int64("blank_lines", sum.BlankLines),
		zap.Int64("parse_errors", sum.ParseErrors),
		zap.Int64("normalize_errors", sum.NormalizeErrors),
		zap.Int64("filtered", sum.Filtered),
		zap.Int64("unknown_protocols", sum.UnknownProtocols),
		zap.Int64("unknown_ethertypes", sum.UnknownEtherTypes),
		zap.Duration("duration", sum.Duration))
	return sum, nil
}

// process decodes and normalizes one line. It returns false when the line
// must not be stored; every such case is logged and counted.
func (c *Controller) process(logger *zap.Logger, lineNo int64, line []byte, sum *Summary) (*model.CanonicalFlowRecord, bool) {
	if len(bytes.TrimSpace(line)) == 0 {
		sum.BlankLines++
		metrics.RecordsSkipped.WithLabelValues(metrics.ReasonBlank).Inc()
		logger.Debug("skipping blank line", zap.Int64("line", lineNo))
		return nil, false
	}

	var raw model.RawFlowRecord
	if err := json.Unmarshal(line, &raw); err != nil {
		sum.ParseErrors++
		metrics.RecordsSkipped.WithLabelValues(metrics.ReasonParse).Inc()
		logger.Warn("skipping line: invalid JSON",
			zap.Int64("line", lineNo),
			zap.ByteString("excerpt", excerpt(line)),
			zap.Error(err))
		return nil, false
	}

	rec, res, err := c.normalizer.Normalize(&raw)
	if err != nil {
		sum.NormalizeErrors++
		metrics.RecordsSkipped.WithLabelValues(metrics.ReasonNormalize).Inc()
		logger.Warn("skipping record: normalization failed",
			normalizer.FlowFields(&raw, zap.Int64("line", lineNo), zap.Error(err))...)
		return nil, false
	}

	if res.UnknownProtocol {
		sum.UnknownProtocols++
		metrics.UnknownNames.WithLabelValues("protocol").Inc()
	}
	if res.UnknownEtherType {
		sum.UnknownEtherTypes++
		metrics.UnknownNames.WithLabelValues("ethertype").Inc()
	}

	// The normalizer already warned about the name itself.
	switch {
	case res.UnknownProtocol && c.opts.DropUnknownProtocol:
		sum.Filtered++
		metrics.RecordsSkipped.WithLabelValues(metrics.ReasonFiltered).Inc()
		logger.Debug("dropping record: unknown protocol",
			normalizer.FlowFields(&raw, zap.Int64("line", lineNo))...)
		return nil, false
	case res.UnknownEtherType && c.opts.DropUnknownEtherType:
		sum.Filtered++
		metrics.RecordsSkipped.WithLabelValues(metrics.ReasonFiltered).Inc()
		logger.Debug("dropping record: unknown ethertype",
			normalizer.FlowFields(&raw, zap.Int64("line", lineNo))...)
		return nil, false
	}
	return rec, true
}

func (c *Controller) commit(ctx context.Context, logger *zap.Logger, tx model.Transaction, records int, sum *Summary) error {
	started := time.Now()
	if err := tx.Commit(ctx); err != nil {
		metrics.StoreErrors.WithLabelValues("commit").Inc()
		logger.Error("commit failed", zap.Int("discarded", records), zap.Error(err))
		return &StoreError{Op: "commit", Err: err}
	}
	elapsed := time.Since(started)

	sum.Commits++
	sum.Committed += int64(records)
	c.progress.commit(records)
	metrics.Commits.Inc()
	metrics.RecordsCommitted.Add(float64(records))
	metrics.CommitDuration.Observe(elapsed.Seconds())

	logger.Info("batch committed",
		zap.Int("records", records),
		zap.Int64("committed_total", sum.Committed),
		zap.Int64("commits", sum.Commits),
		zap.Int64("lines_read", sum.LinesRead),
		zap.Duration("commit_duration", elapsed))
	return nil
}

func excerpt(line []byte) []byte {
	if len(line) > maxExcerpt {
		return line[:maxExcerpt]
	}
	return line
}
