package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestLoadConfigKeepsDefaults(t *testing.T) {
	path := writeConfig(t, `
ingest:
  batch_size: 1000
store:
  type: clickhouse
  clickhouse:
    host: ch.internal
`)

	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, 1000, cfg.Ingest.BatchSize)
	assert.True(t, cfg.Ingest.DropUnknownProtocol)
	assert.False(t, cfg.Ingest.DropUnknownEtherType)
	assert.Equal(t, "clickhouse", cfg.Store.Type)
	assert.Equal(t, "ch.internal", cfg.Store.ClickHouse.Host)
	assert.Equal(t, 9000, cfg.Store.ClickHouse.Port)
	assert.Equal(t, "flows", cfg.Store.ClickHouse.Table)
	assert.Equal(t, "file", cfg.Source.Type)
	assert.Equal(t, "-", cfg.Source.Path)
}

func TestLoadConfigPolicyOverride(t *testing.T) {
	path := writeConfig(t, `
ingest:
  drop_unknown_protocol: false
  drop_unknown_ethertype: true
`)

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	assert.False(t, cfg.Ingest.DropUnknownProtocol)
	assert.True(t, cfg.Ingest.DropUnknownEtherType)
	assert.Equal(t, DefaultBatchSize, cfg.Ingest.BatchSize)
}

func TestLoadConfigErrors(t *testing.T) {
	_, err := LoadConfig(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.ErrorContains(t, err, "failed to read config file")

	_, err = LoadConfig(writeConfig(t, "ingest: [unterminated"))
	assert.ErrorContains(t, err, "failed to unmarshal config YAML")

	_, err = LoadConfig(writeConfig(t, "ingest:\n  batch_size: 0\n"))
	assert.ErrorContains(t, err, "batch_size")
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr string
	}{
		{name: "defaults", mutate: func(c *Config) {}},
		{name: "negative batch", mutate: func(c *Config) { c.Ingest.BatchSize = -1 }, wantErr: "batch_size"},
		{name: "unknown source", mutate: func(c *Config) { c.Source.Type = "kafka" }, wantErr: "unknown source type"},
		{name: "empty path", mutate: func(c *Config) { c.Source.Path = "" }, wantErr: "source.path"},
		{
			name: "nats without subject",
			mutate: func(c *Config) {
				c.Source.Type = "nats"
				c.Source.NATS.Subject = ""
			},
			wantErr: "subject",
		},
		{
			name: "nats bad timeout",
			mutate: func(c *Config) {
				c.Source.Type = "nats"
				c.Source.NATS.IdleTimeout = "soon"
			},
			wantErr: "idle_timeout",
		},
		{name: "bad table", mutate: func(c *Config) { c.Store.Postgres.Table = "flows; drop table x" }, wantErr: "store.postgres.table"},
		{
			name: "bad clickhouse table",
			mutate: func(c *Config) {
				c.Store.Type = "clickhouse"
				c.Store.ClickHouse.Table = "1flows"
			},
			wantErr: "store.clickhouse.table",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			assert.ErrorContains(t, err, tt.wantErr)
		})
	}
}

func TestIdleTimeoutDuration(t *testing.T) {
	d, err := NATSConfig{IdleTimeout: "1m30s"}.IdleTimeoutDuration()
	require.NoError(t, err)
	assert.Equal(t, 90*time.Second, d)

	d, err = NATSConfig{}.IdleTimeoutDuration()
	require.NoError(t, err)
	assert.Zero(t, d)

	_, err = NATSConfig{IdleTimeout: "-1s"}.IdleTimeoutDuration()
	assert.Error(t, err)
}

func TestSampleConfig(t *testing.T) {
	cfg, err := LoadConfig("../../configs/config.yaml")
	require.NoError(t, err)
	assert.Equal(t, DefaultBatchSize, cfg.Ingest.BatchSize)
	assert.Equal(t, "ns-ingest", cfg.Source.NATS.Queue)
	assert.Equal(t, ":8080", cfg.API.ListenAddr)
}
