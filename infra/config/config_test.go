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

func TestLoadDefaultsWithoutFile(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "BTC-USD", cfg.Instrument.Symbol)
	assert.Equal(t, ":50051", cfg.Server.GRPCAddr)
	assert.Equal(t, 5*time.Second, cfg.Engine.ReplyTimeout)
	assert.False(t, cfg.Broker.Enabled)
	assert.True(t, cfg.WAL.Sync)
}

func TestLoadFileThenEnvironment(t *testing.T) {
	path := writeConfig(t, `
instrument:
  symbol: ETH-USD
  price_scale: 2
engine:
  inbox_size: 16
  reply_timeout: 750ms
broker:
  enabled: true
  client: kafka-go
  brokers: [a:9092]
  topic: trades
`)
	t.Setenv("CROSS_SERVER_GRPC_ADDR", "127.0.0.1:6000")
	t.Setenv("CROSS_BROKER_BROKERS", "k1:9092,k2:9092")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "ETH-USD", cfg.Instrument.Symbol)
	assert.EqualValues(t, 2, cfg.Instrument.PriceScale)
	assert.Equal(t, 16, cfg.Engine.InboxSize)
	assert.Equal(t, 750*time.Millisecond, cfg.Engine.ReplyTimeout)
	assert.Equal(t, "127.0.0.1:6000", cfg.Server.GRPCAddr)
	assert.Equal(t, []string{"k1:9092", "k2:9092"}, cfg.Broker.Brokers)
	assert.Equal(t, "kafka-go", cfg.Broker.Client)
	// untouched sections keep defaults
	assert.Equal(t, "./data/history.db", cfg.Storage.Path)
}

func TestValidateRejects(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"empty symbol", func(c *Config) { c.Instrument.Symbol = " " }},
		{"inbox", func(c *Config) { c.Engine.InboxSize = 0 }},
		{"wal dir", func(c *Config) { c.WAL.Dir = "" }},
		{"broker client", func(c *Config) { c.Broker.Enabled = true; c.Broker.Client = "franz" }},
		{"broker topic", func(c *Config) { c.Broker.Enabled = true; c.Broker.Topic = "" }},
		{"scale", func(c *Config) { c.Instrument.PriceScale = 40 }},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			cfg := Default()
			tc.mutate(&cfg)
			assert.Error(t, cfg.Validate())
		})
	}

	cfg := Default()
	assert.NoError(t, cfg.Validate())
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.Error(t, err)
}

func TestWALSyncOverrides(t *testing.T) {
	path := writeConfig(t, `
wal:
  sync: false
`)
	cfg, err := Load(path)
	require.NoError(t, err)
	assert.False(t, cfg.WAL.Sync)

	t.Setenv("CROSS_WAL_SYNC", "true")
	cfg, err = Load(path)
	require.NoError(t, err)
	assert.True(t, cfg.WAL.Sync)
}
