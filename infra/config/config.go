package config

import (
	"os"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/cockroachdb/errors"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// EnvPrefix scopes every environment override, e.g. CROSS_SERVER_GRPC_ADDR.
const EnvPrefix = "CROSS_"

// Config holds every setting of the venue. Load applies, in order: built-in
// defaults, the YAML file, a .env file, then process environment.
type Config struct {
	Instrument InstrumentConfig `yaml:"instrument" envPrefix:"INSTRUMENT_"`
	Server     ServerConfig     `yaml:"server" envPrefix:"SERVER_"`
	Engine     EngineConfig     `yaml:"engine" envPrefix:"ENGINE_"`
	WAL        WALConfig        `yaml:"wal" envPrefix:"WAL_"`
	Snapshot   SnapshotConfig   `yaml:"snapshot" envPrefix:"SNAPSHOT_"`
	Outbox     OutboxConfig     `yaml:"outbox" envPrefix:"OUTBOX_"`
	Storage    StorageConfig    `yaml:"storage" envPrefix:"STORAGE_"`
	Broker     BrokerConfig     `yaml:"broker" envPrefix:"BROKER_"`
	Log        LogConfig        `yaml:"log" envPrefix:"LOG_"`
	Metrics    MetricsConfig    `yaml:"metrics" envPrefix:"METRICS_"`
}

type InstrumentConfig struct {
	Symbol string `yaml:"symbol" env:"SYMBOL"`
	// PriceScale is the number of decimal places in one price tick.
	PriceScale int32 `yaml:"price_scale" env:"PRICE_SCALE"`
}

type ServerConfig struct {
	GRPCAddr string `yaml:"grpc_addr" env:"GRPC_ADDR"`
	HTTPAddr string `yaml:"http_addr" env:"HTTP_ADDR"`
}

type EngineConfig struct {
	InboxSize    int           `yaml:"inbox_size" env:"INBOX_SIZE"`
	ReplyTimeout time.Duration `yaml:"reply_timeout" env:"REPLY_TIMEOUT"`
}

type WALConfig struct {
	Enabled         bool          `yaml:"enabled" env:"ENABLED"`
	Dir             string        `yaml:"dir" env:"DIR"`
	SegmentSize     int64         `yaml:"segment_size" env:"SEGMENT_SIZE"`
	SegmentDuration time.Duration `yaml:"segment_duration" env:"SEGMENT_DURATION"`
	// Sync fsyncs every journaled command before it is applied.
	Sync            bool          `yaml:"sync" env:"SYNC"`
}

type SnapshotConfig struct {
	Dir      string        `yaml:"dir" env:"DIR"`
	Interval time.Duration `yaml:"interval" env:"INTERVAL"`
}

type OutboxConfig struct {
	Dir string `yaml:"dir" env:"DIR"`
}

type StorageConfig struct {
	Path string `yaml:"path" env:"PATH"`
}

type BrokerConfig struct {
	Enabled bool `yaml:"enabled" env:"ENABLED"`
	// Client selects the Kafka client library: "sarama" or "kafka-go".
	Client        string        `yaml:"client" env:"CLIENT"`
	Brokers       []string      `yaml:"brokers" env:"BROKERS" envSeparator:","`
	Topic         string        `yaml:"topic" env:"TOPIC"`
	FlushInterval time.Duration `yaml:"flush_interval" env:"FLUSH_INTERVAL"`
	MaxRetries    uint32        `yaml:"max_retries" env:"MAX_RETRIES"`
}

type LogConfig struct {
	Level      string `yaml:"level" env:"LEVEL"`
	File       string `yaml:"file" env:"FILE"`
	MaxSizeMB  int    `yaml:"max_size_mb" env:"MAX_SIZE_MB"`
	MaxBackups int    `yaml:"max_backups" env:"MAX_BACKUPS"`
	MaxAgeDays int    `yaml:"max_age_days" env:"MAX_AGE_DAYS"`
	Compress   bool   `yaml:"compress" env:"COMPRESS"`
}

type MetricsConfig struct {
	Enabled bool `yaml:"enabled" env:"ENABLED"`
}

// Default returns a configuration that runs a local venue with no broker.
func Default() Config {
	return Config{
		Instrument: InstrumentConfig{Symbol: "BTC-USD", PriceScale: 3},
		Server:     ServerConfig{GRPCAddr: ":50051", HTTPAddr: ":8080"},
		Engine:     EngineConfig{InboxSize: 4096, ReplyTimeout: 5 * time.Second},
		WAL: WALConfig{
			Enabled:         true,
			Dir:             "./data/wal_entry",
			SegmentSize:     2 << 20,
			SegmentDuration: time.Minute,
			Sync:            true,
		},
		Snapshot: SnapshotConfig{Dir: "./data/snapshot", Interval: 30 * time.Second},
		Outbox:   OutboxConfig{Dir: "./data/wal_exit"},
		Storage:  StorageConfig{Path: "./data/history.db"},
		Broker: BrokerConfig{
			Client:        "sarama",
			Brokers:       []string{"localhost:9092"},
			Topic:         "cross.trades",
			FlushInterval: 250 * time.Millisecond,
			MaxRetries:    5,
		},
		Log:     LogConfig{Level: "info", File: "logs/cross.log", MaxSizeMB: 10, MaxBackups: 3, MaxAgeDays: 28, Compress: true},
		Metrics: MetricsConfig{Enabled: true},
	}
}

// Load reads path (optional, empty skips the file) and applies overrides.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, errors.Wrapf(err, "read config %s", path)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, errors.Wrapf(err, "parse config %s", path)
		}
	}

	// .env is optional
	_ = godotenv.Load()

	if err := env.ParseWithOptions(&cfg, env.Options{Prefix: EnvPrefix}); err != nil {
		return nil, errors.Wrap(err, "environment overrides")
	}

	if err := cfg.Validate(); err != nil {
		return nil, errors.Wrap(err, "invalid configuration")
	}
	return &cfg, nil
}

func (c *Config) Validate() error {
	if strings.TrimSpace(c.Instrument.Symbol) == "" {
		return errors.New("instrument symbol is required")
	}
	if c.Instrument.PriceScale < 0 || c.Instrument.PriceScale > 18 {
		return errors.Newf("price scale %d out of range [0,18]", c.Instrument.PriceScale)
	}
	if c.Server.GRPCAddr == "" {
		return errors.New("server grpc_addr is required")
	}
	if c.Engine.InboxSize <= 0 {
		return errors.Newf("engine inbox_size must be positive, got %d", c.Engine.InboxSize)
	}
	if c.Engine.ReplyTimeout <= 0 {
		return errors.New("engine reply_timeout must be positive")
	}
	if c.WAL.Enabled {
		if c.WAL.Dir == "" {
			return errors.New("wal dir is required when the wal is enabled")
		}
		if c.WAL.SegmentSize <= 0 {
			return errors.Newf("wal segment_size must be positive, got %d", c.WAL.SegmentSize)
		}
		if c.Snapshot.Dir == "" || c.Snapshot.Interval <= 0 {
			return errors.New("snapshot dir and interval are required when the wal is enabled")
		}
	}
	if c.Outbox.Dir == "" {
		return errors.New("outbox dir is required")
	}
	if c.Storage.Path == "" {
		return errors.New("storage path is required")
	}
	if c.Broker.Enabled {
		switch c.Broker.Client {
		case "sarama", "kafka-go":
		default:
			return errors.Newf("unknown broker client %q", c.Broker.Client)
		}
		if len(c.Broker.Brokers) == 0 || c.Broker.Topic == "" {
			return errors.New("broker brokers and topic are required when the broker is enabled")
		}
		if c.Broker.FlushInterval <= 0 {
			return errors.New("broker flush_interval must be positive")
		}
	}
	return nil
}
