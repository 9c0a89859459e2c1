package model

import (
	"context"
	"errors"
)

// ErrLineTooLong is returned by a LineSource for a line exceeding its size
// limit. The line is discarded and the source stays usable.
var ErrLineTooLong = errors.New("line too long")

// Store is a destination that accepts canonical records in transactions.
type Store interface {
	// Begin opens a new transaction. The ingestion path never holds more than one.
	Begin(ctx context.Context) (Transaction, error)

	// Close releases the connection to the backend.
	Close() error
}

// Transaction collects records until Commit or Rollback.
// A transaction must not be used after either call returns.
type Transaction interface {
	Insert(ctx context.Context, rec *CanonicalFlowRecord) error
	Commit(ctx context.Context) error
	Rollback(ctx context.Context) error
}

// LineSource yields raw input lines in order. Next returns io.EOF at the end of
// input; the returned slice is only valid until the following call.
type LineSource interface {
	Next(ctx context.Context) ([]byte, error)
	Close() error
}
