package source

import (
	"Go2NetIngest/internal/config"
	"Go2NetIngest/internal/metrics"
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/nats-io/nats.go"
	"go.uber.org/zap"
)

// NATSSource reads one record per message from a NATS subject. The stream
// ends when ctx is cancelled or no message arrives within the idle timeout.
// Messages the client discards as a slow consumer are logged and counted.
type NATSSource struct {
	nc      *nats.Conn
	sub     *nats.Subscription
	msgs    <-chan *nats.Msg
	idle    time.Duration
	subject string
	logger  *zap.Logger

	mu      sync.Mutex
	dropped int
}

// NewNATSSource connects to NATS and subscribes to the configured subject,
// joining the queue group when one is set.
func NewNATSSource(cfg config.NATSConfig, logger *zap.Logger) (*NATSSource, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	idle, err := cfg.IdleTimeoutDuration()
	if err != nil {
		return nil, err
	}

	bufSize := cfg.BufferSize
	if bufSize <= 0 {
		bufSize = 65536
	}
	ch := make(chan *nats.Msg, bufSize)
	s := newChanSource(ch, idle, logger)
	s.subject = cfg.Subject

	nc, err := nats.Connect(cfg.URL, s.connectOptions()...)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS: %w", err)
	}
	logger.Info("connected to NATS server", zap.String("url", cfg.URL))

	var sub *nats.Subscription
	if cfg.Queue != "" {
		sub, err = nc.ChanQueueSubscribe(cfg.Subject, cfg.Queue, ch)
	} else {
		sub, err = nc.ChanSubscribe(cfg.Subject, ch)
	}
	if err != nil {
		nc.Close()
		return nil, fmt.Errorf("failed to subscribe to '%s': %w", cfg.Subject, err)
	}
	logger.Info("subscribed, waiting for messages",
		zap.String("subject", cfg.Subject),
		zap.String("queue", cfg.Queue),
		zap.Duration("idle_timeout", idle))

	s.nc = nc
	s.sub = sub
	return s, nil
}

func (s *NATSSource) connectOptions() []nats.Option {
	return []nats.Option{
		nats.Name("ns-ingest"),
		nats.ErrorHandler(s.handleAsyncError),
	}
}

// handleAsyncError receives errors the client raises outside of a call,
// notably nats.ErrSlowConsumer when the message channel was full.
func (s *NATSSource) handleAsyncError(_ *nats.Conn, sub *nats.Subscription, err error) {
	if !errors.Is(err, nats.ErrSlowConsumer) {
		s.logger.Error("NATS async error", zap.String("subject", s.subject), zap.Error(err))
		return
	}
	if sub == nil {
		s.logger.Warn("NATS slow consumer, messages dropped", zap.String("subject", s.subject))
		return
	}
	total, derr := sub.Dropped()
	if derr != nil {
		s.logger.Warn("NATS slow consumer, messages dropped",
			zap.String("subject", s.subject), zap.NamedError("dropped_error", derr))
		return
	}
	s.reportDropped(total)
}

// reportDropped logs and counts the growth of the subscription's dropped
// counter since the last report. It returns the number of newly dropped
// messages.
func (s *NATSSource) reportDropped(total int) int {
	s.mu.Lock()
	delta := total - s.dropped
	if delta > 0 {
		s.dropped = total
	}
	s.mu.Unlock()
	if delta <= 0 {
		return 0
	}

	metrics.RecordsSkipped.WithLabelValues(metrics.ReasonDropped).Add(float64(delta))
	s.logger.Warn("NATS slow consumer, messages dropped",
		zap.String("subject", s.subject),
		zap.Int("dropped", delta),
		zap.Int("dropped_total", total))
	return delta
}

func newChanSource(ch <-chan *nats.Msg, idle time.Duration, logger *zap.Logger) *NATSSource {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &NATSSource{msgs: ch, idle: idle, logger: logger}
}

// Next returns the payload of the next message, or io.EOF once the stream ends.
func (s *NATSSource) Next(ctx context.Context) ([]byte, error) {
	var timeout <-chan time.Time
	if s.idle > 0 {
		timer := time.NewTimer(s.idle)
		defer timer.Stop()
		timeout = timer.C
	}

	select {
	case msg, ok := <-s.msgs:
		if !ok {
			return nil, io.EOF
		}
		return msg.Data, nil
	case <-timeout:
		s.logger.Info("no message within idle timeout, ending stream", zap.Duration("idle_timeout", s.idle))
		return nil, io.EOF
	case <-ctx.Done():
		s.logger.Info("context cancelled, ending stream")
		return nil, io.EOF
	}
}

// Close unsubscribes and closes the NATS connection.
func (s *NATSSource) Close() error {
	if s.sub != nil {
		if total, err := s.sub.Dropped(); err == nil {
			s.reportDropped(total)
		}
		if err := s.sub.Unsubscribe(); err != nil {
			s.logger.Warn("failed to unsubscribe", zap.String("subject", s.subject), zap.Error(err))
		}
	}
	if s.nc != nil {
		s.nc.Close()
		s.mu.Lock()
		dropped := s.dropped
		s.mu.Unlock()
		s.logger.Info("NATS connection closed", zap.Int("dropped_total", dropped))
	}
	return nil
}
