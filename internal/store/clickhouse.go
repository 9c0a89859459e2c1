package store

import (
	"Go2NetIngest/internal/config"
	"Go2NetIngest/internal/model"
	"context"
	"fmt"
	"net/netip"

	"github.com/ClickHouse/clickhouse-go/v2"
	"github.com/ClickHouse/clickhouse-go/v2/lib/driver"
	"go.uber.org/zap"
)

const createTableStatement = `
CREATE TABLE IF NOT EXISTS %s (
    time_received                DateTime64(9, 'UTC'),
    sequence_num                 Int64,
    time_flow_start_ns           Int64,
    time_flow_end_ns             Int64,
    bytes                        Int64,
    packets                      Int64,
    src_addr                     String,
    dst_addr                     String,
    src_port                     Int32,
    dst_port                     Int32,
    etype                        Int32,
    proto                        Int32,
    post_nat_src_ipv4_address    Nullable(String),
    post_nat_dst_ipv4_address    Nullable(String),
    post_napt_src_transport_port Nullable(Int32),
    post_napt_dst_transport_port Nullable(Int32)
) ENGINE = MergeTree()
PARTITION BY toYYYYMM(time_received)
ORDER BY (time_received, src_addr, dst_addr);
`

func init() {
	Register("clickhouse", func(ctx context.Context, cfg config.StoreConfig, logger *zap.Logger) (model.Store, error) {
		return NewClickHouseStore(ctx, cfg.ClickHouse, logger)
	})
}

// ClickHouseStore writes each transaction as one ClickHouse insert batch.
// A batch is sent on Commit and aborted on Rollback.
type ClickHouseStore struct {
	conn   driver.Conn
	table  string
	logger *zap.Logger
}

// NewClickHouseStore connects to ClickHouse and ensures the table exists.
func NewClickHouseStore(ctx context.Context, cfg config.ClickHouseConfig, logger *zap.Logger) (*ClickHouseStore, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	conn, err := connect(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to clickhouse: %w", err)
	}

	if err := conn.Exec(ctx, fmt.Sprintf(createTableStatement, cfg.Table)); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to create table: %w", err)
	}
	logger.Info("connected to ClickHouse and ensured table exists", zap.String("table", cfg.Table))

	return &ClickHouseStore{conn: conn, table: cfg.Table, logger: logger}, nil
}

func connect(ctx context.Context, cfg config.ClickHouseConfig) (driver.Conn, error) {
	addr := fmt.Sprintf("%s:%d", cfg.Host, cfg.Port)

	conn, err := clickhouse.Open(&clickhouse.Options{
		Addr: []string{addr},
		Auth: clickhouse.Auth{
			Database: cfg.Database,
			Username: cfg.Username,
			Password: cfg.Password,
		},
		Compression: &clickhouse.Compression{
			Method: clickhouse.CompressionLZ4,
		},
	})
	if err != nil {
		return nil, err
	}

	if err := conn.Ping(ctx); err != nil {
		return nil, fmt.Errorf("failed to ping clickhouse: %w", err)
	}
	return conn, nil
}

// Begin prepares an insert batch.
func (s *ClickHouseStore) Begin(ctx context.Context) (model.Transaction, error) {
	batch, err := s.conn.PrepareBatch(ctx, "INSERT INTO "+s.table)
	if err != nil {
		return nil, fmt.Errorf("failed to prepare batch: %w", err)
	}
	return &clickhouseTx{batch: batch}, nil
}

// Close closes the connection.
func (s *ClickHouseStore) Close() error {
	return s.conn.Close()
}

type clickhouseTx struct {
	batch driver.Batch
}

func (t *clickhouseTx) Insert(_ context.Context, rec *model.CanonicalFlowRecord) error {
	if err := t.batch.Append(clickhouseRow(rec)...); err != nil {
		return fmt.Errorf("failed to append flow to batch: %w", err)
	}
	return nil
}

func (t *clickhouseTx) Commit(_ context.Context) error {
	if err := t.batch.Send(); err != nil {
		return fmt.Errorf("failed to send batch: %w", err)
	}
	return nil
}

func (t *clickhouseTx) Rollback(_ context.Context) error {
	if t.batch.IsSent() {
		return nil
	}
	return t.batch.Abort()
}

// clickhouseRow converts a record to the column types of createTableStatement.
func clickhouseRow(rec *model.CanonicalFlowRecord) []any {
	return []any{
		rec.TimeReceived,
		int64(rec.SequenceNum),
		int64(rec.TimeFlowStartNs),
		int64(rec.TimeFlowEndNs),
		int64(rec.Bytes),
		int64(rec.Packets),
		rec.SrcAddr.String(),
		rec.DstAddr.String(),
		int32(rec.SrcPort),
		int32(rec.DstPort),
		int32(rec.EType),
		int32(rec.Proto),
		nullableAddr(rec.PostNatSrcIPv4Address),
		nullableAddr(rec.PostNatDstIPv4Address),
		nullablePort(rec.PostNaptSrcTransportPort),
		nullablePort(rec.PostNaptDstTransportPort),
	}
}

func nullableAddr(a *netip.Addr) *string {
	if a == nil {
		return nil
	}
	s := a.String()
	return &s
}

func nullablePort(p *uint16) *int32 {
	if p == nil {
		return nil
	}
	v := int32(*p)
	return &v
}
