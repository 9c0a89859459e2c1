package source

import (
	"Go2NetIngest/internal/config"
	"Go2NetIngest/internal/metrics"
	"context"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestNATSSourceDeliversPayloads(t *testing.T) {
	ch := make(chan *nats.Msg, 2)
	ch <- &nats.Msg{Data: []byte("one")}
	ch <- &nats.Msg{Data: []byte("two")}
	close(ch)

	src := newChanSource(ch, 0, nil)
	assert.Equal(t, []string{"one", "two"}, drain(t, src.Next))
	assert.NoError(t, src.Close())
}

func TestNATSSourceIdleTimeout(t *testing.T) {
	ch := make(chan *nats.Msg)
	src := newChanSource(ch, 20*time.Millisecond, nil)

	start := time.Now()
	_, err := src.Next(context.Background())
	assert.ErrorIs(t, err, io.EOF)
	assert.GreaterOrEqual(t, time.Since(start), 20*time.Millisecond)
}

func TestNATSSourceCancelled(t *testing.T) {
	ch := make(chan *nats.Msg)
	src := newChanSource(ch, 0, nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := src.Next(ctx)
	assert.ErrorIs(t, err, io.EOF)
}

func TestNATSSourceReportsDroppedMessages(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	src := newChanSource(make(chan *nats.Msg), 0, zap.New(core))
	src.subject = "flows"

	dropped := metrics.RecordsSkipped.WithLabelValues(metrics.ReasonDropped)
	before := testutil.ToFloat64(dropped)

	assert.Equal(t, 5, src.reportDropped(5))
	assert.Equal(t, 3, src.reportDropped(8))
	assert.Zero(t, src.reportDropped(8), "an unchanged total is not counted twice")
	assert.Equal(t, before+8, testutil.ToFloat64(dropped))

	entries := logs.FilterMessage("NATS slow consumer, messages dropped").All()
	require.Len(t, entries, 2)
	assert.Equal(t, zapcore.WarnLevel, entries[1].Level)
	assert.Equal(t, "flows", entries[1].ContextMap()["subject"])
	assert.Equal(t, int64(3), entries[1].ContextMap()["dropped"])
	assert.Equal(t, int64(8), entries[1].ContextMap()["dropped_total"])
}

func TestNATSSourceInstallsErrorHandler(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	src := newChanSource(make(chan *nats.Msg), 0, zap.New(core))
	src.subject = "flows"

	opts := nats.GetDefaultOptions()
	for _, opt := range src.connectOptions() {
		require.NoError(t, opt(&opts))
	}
	assert.Equal(t, "ns-ingest", opts.Name)
	require.NotNil(t, opts.AsyncErrorCB)

	opts.AsyncErrorCB(nil, nil, nats.ErrSlowConsumer)
	assert.Equal(t, 1, logs.FilterMessage("NATS slow consumer, messages dropped").Len())

	opts.AsyncErrorCB(nil, nil, errors.New("permissions violation"))
	assert.Equal(t, 1, logs.FilterMessage("NATS async error").Len())
}

func TestNATSSourceConnectFailure(t *testing.T) {
	_, err := NewNATSSource(config.NATSConfig{
		URL:     "nats://127.0.0.1:1",
		Subject: "flows",
	}, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to connect to NATS")
}

func TestOpenUnknownType(t *testing.T) {
	_, err := Open(config.SourceConfig{Type: "kafka"}, nil)
	assert.ErrorContains(t, err, "unknown source type")
}
