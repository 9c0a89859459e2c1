package store

import (
	"Go2NetIngest/internal/config"
	"Go2NetIngest/internal/model"
	"context"
	"errors"
	"sync"

	"go.uber.org/zap"
)

// ErrTxDone is returned when a transaction is used after Commit or Rollback.
var ErrTxDone = errors.New("transaction already committed or rolled back")

func init() {
	Register("memory", func(_ context.Context, _ config.StoreConfig, _ *zap.Logger) (model.Store, error) {
		return NewMemoryStore(), nil
	})
}

// MemoryStore keeps committed records in memory. It backs dry runs and tests.
type MemoryStore struct {
	mu      sync.Mutex
	rows    []model.CanonicalFlowRecord
	batches []int
	closed  bool
}

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

// Begin opens a transaction whose records become visible on Commit.
func (s *MemoryStore) Begin(_ context.Context) (model.Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil, errors.New("memory store is closed")
	}
	return &memoryTx{store: s}, nil
}

// Close marks the store closed. Committed rows stay readable.
func (s *MemoryStore) Close() error {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()
	return nil
}

// Rows returns a copy of all committed records in commit order.
func (s *MemoryStore) Rows() []model.CanonicalFlowRecord {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]model.CanonicalFlowRecord, len(s.rows))
	copy(out, s.rows)
	return out
}

// Batches returns the size of every committed transaction.
func (s *MemoryStore) Batches() []int {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]int, len(s.batches))
	copy(out, s.batches)
	return out
}

type memoryTx struct {
	store   *MemoryStore
	pending []model.CanonicalFlowRecord
	done    bool
}

func (t *memoryTx) Insert(_ context.Context, rec *model.CanonicalFlowRecord) error {
	if t.done {
		return ErrTxDone
	}
	t.pending = append(t.pending, *rec)
	return nil
}

func (t *memoryTx) Commit(_ context.Context) error {
	if t.done {
		return ErrTxDone
	}
	t.done = true

	t.store.mu.Lock()
	defer t.store.mu.Unlock()
	t.store.rows = append(t.store.rows, t.pending...)
	t.store.batches = append(t.store.batches, len(t.pending))
	t.pending = nil
	return nil
}

func (t *memoryTx) Rollback(_ context.Context) error {
	if t.done {
		return nil
	}
	t.done = true
	t.pending = nil
	return nil
}
