package source

import (
	"Go2NetIngest/internal/config"
	"Go2NetIngest/internal/model"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/nats-io/nats.go"
	"go.uber.org/zap"
)

// Publisher replays raw lines onto a NATS subject, one message per line,
// in the form NATSSource consumes.
type Publisher struct {
	nc      *nats.Conn
	subject string
	logger  *zap.Logger
}

// NewPublisher creates a new NATS publisher.
func NewPublisher(cfg config.NATSConfig, logger *zap.Logger) (*Publisher, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	nc, err := nats.Connect(cfg.URL, nats.Name("ns-ingest-publisher"))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS: %w", err)
	}
	logger.Info("connected to NATS server", zap.String("url", cfg.URL))
	return &Publisher{nc: nc, subject: cfg.Subject, logger: logger}, nil
}

// Publish sends one line. The payload is copied, so the caller may reuse it.
func (p *Publisher) Publish(line []byte) error {
	return p.nc.Publish(p.subject, bytes.Clone(line))
}

// Replay publishes every non-blank line of src and flushes. Lines over the
// source's size limit are logged and skipped. It returns the number of
// messages published.
func (p *Publisher) Replay(ctx context.Context, src model.LineSource) (int, error) {
	published := 0
	for {
		if err := ctx.Err(); err != nil {
			return published, err
		}
		line, err := src.Next(ctx)
		if errors.Is(err, io.EOF) {
			break
		}
		if errors.Is(err, model.ErrLineTooLong) {
			p.logger.Warn("skipping line: too long", zap.Int("published", published), zap.Error(err))
			continue
		}
		if err != nil {
			return published, err
		}
		if len(bytes.TrimSpace(line)) == 0 {
			continue
		}
		if err := p.Publish(line); err != nil {
			return published, fmt.Errorf("failed to publish message %d: %w", published+1, err)
		}
		published++
		if published%10000 == 0 {
			p.logger.Info("replay progress", zap.Int("published", published))
		}
	}

	if err := p.nc.FlushWithContext(ctx); err != nil {
		return published, fmt.Errorf("failed to flush NATS connection: %w", err)
	}
	p.logger.Info("replay finished", zap.String("subject", p.subject), zap.Int("published", published))
	return published, nil
}

// Close drains and closes the NATS connection.
func (p *Publisher) Close() error {
	if p.nc == nil {
		return nil
	}
	if err := p.nc.Drain(); err != nil {
		return fmt.Errorf("failed to drain NATS connection: %w", err)
	}
	p.logger.Info("NATS connection drained and closed")
	return nil
}
