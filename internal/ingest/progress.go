package ingest

import (
	"sync"
	"sync/atomic"
	"time"
)

// Progress tracks committed work of the current run. It is written by the
// controller and may be read concurrently, e.g. by the status API.
type Progress struct {
	committed atomic.Uint64
	commits   atomic.Uint64
	running   atomic.Bool

	mu        sync.Mutex
	runID     string
	startedAt time.Time
	batchSize int
}

// ProgressSnapshot is a point-in-time copy of Progress.
type ProgressSnapshot struct {
	RunID     string    `json:"run_id"`
	StartedAt time.Time `json:"started_at"`
	BatchSize int       `json:"batch_size"`
	Committed uint64    `json:"committed"`
	Commits   uint64    `json:"commits"`
	Running   bool      `json:"running"`
}

func (p *Progress) start(runID string, batchSize int) {
	p.mu.Lock()
	p.runID = runID
	p.startedAt = time.Now()
	p.batchSize = batchSize
	p.mu.Unlock()

	p.committed.Store(0)
	p.commits.Store(0)
	p.running.Store(true)
}

func (p *Progress) commit(records int) {
	p.committed.Add(uint64(records))
	p.commits.Add(1)
}

func (p *Progress) finish() {
	p.running.Store(false)
}

// Snapshot returns the current state.
func (p *Progress) Snapshot() ProgressSnapshot {
	p.mu.Lock()
	snap := ProgressSnapshot{
		RunID:     p.runID,
		StartedAt: p.startedAt,
		BatchSize: p.batchSize,
	}
	p.mu.Unlock()

	snap.Committed = p.committed.Load()
	snap.Commits = p.commits.Load()
	snap.Running = p.running.Load()
	return snap
}
