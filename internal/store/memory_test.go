package store

import (
	"Go2NetIngest/internal/config"
	"Go2NetIngest/internal/model"
	"context"
	"net/netip"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testRecord(seq uint64) *model.CanonicalFlowRecord {
	return &model.CanonicalFlowRecord{
		TimeReceived: time.Date(2024, 2, 29, 14, 0, 0, 0, time.UTC),
		SequenceNum:  seq,
		Bytes:        1500,
		Packets:      1,
		SrcAddr:      netip.MustParseAddr("10.0.0.1"),
		DstAddr:      netip.MustParseAddr("10.0.0.2"),
		SrcPort:      443,
		DstPort:      51000,
		EType:        0x0800,
		Proto:        6,
	}
}

func TestMemoryStoreCommitMakesRowsVisible(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	tx, err := s.Begin(ctx)
	require.NoError(t, err)
	require.NoError(t, tx.Insert(ctx, testRecord(1)))
	require.NoError(t, tx.Insert(ctx, testRecord(2)))
	assert.Empty(t, s.Rows(), "uncommitted rows must not be visible")

	require.NoError(t, tx.Commit(ctx))
	rows := s.Rows()
	require.Len(t, rows, 2)
	assert.Equal(t, uint64(1), rows[0].SequenceNum)
	assert.Equal(t, uint64(2), rows[1].SequenceNum)
	assert.Equal(t, []int{2}, s.Batches())

	assert.ErrorIs(t, tx.Insert(ctx, testRecord(3)), ErrTxDone)
	assert.ErrorIs(t, tx.Commit(ctx), ErrTxDone)
	assert.NoError(t, tx.Rollback(ctx))
}

func TestMemoryStoreRollbackDiscards(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	tx, err := s.Begin(ctx)
	require.NoError(t, err)
	require.NoError(t, tx.Insert(ctx, testRecord(1)))
	require.NoError(t, tx.Rollback(ctx))

	assert.Empty(t, s.Rows())
	assert.Empty(t, s.Batches())
	assert.ErrorIs(t, tx.Commit(ctx), ErrTxDone)
}

func TestMemoryStoreCopiesRecords(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	rec := testRecord(7)
	tx, err := s.Begin(ctx)
	require.NoError(t, err)
	require.NoError(t, tx.Insert(ctx, rec))
	rec.SequenceNum = 99
	require.NoError(t, tx.Commit(ctx))

	assert.Equal(t, uint64(7), s.Rows()[0].SequenceNum)
}

func TestMemoryStoreClosed(t *testing.T) {
	s := NewMemoryStore()
	require.NoError(t, s.Close())
	_, err := s.Begin(context.Background())
	assert.Error(t, err)
}

func TestOpen(t *testing.T) {
	s, err := Open(context.Background(), config.StoreConfig{Type: "memory"}, nil)
	require.NoError(t, err)
	assert.IsType(t, &MemoryStore{}, s)

	_, err = Open(context.Background(), config.StoreConfig{Type: "oracle"}, nil)
	assert.ErrorContains(t, err, "unknown store type")

	assert.Equal(t, []string{"clickhouse", "memory", "postgres"}, Types())
}

func TestRegisterDuplicatePanics(t *testing.T) {
	assert.Panics(t, func() { Register("memory", nil) })
}
