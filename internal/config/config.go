package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"

	pebblestore "github.com/rzbill/logkv/internal/storage/pebble"
)

// Log backends.
const (
	LogBackendEmbedded = "embedded"
	LogBackendKafka    = "kafka"
)

// Coordination backends. "log" keeps consumer offsets next to the log
// itself (Pebble cursors for the embedded log, group offsets for Kafka).
const (
	CoordinationLog   = "log"
	CoordinationEtcd  = "etcd"
	CoordinationRedis = "redis"
)

// Store backends.
const (
	StoreMemory = "memory"
	StorePebble = "pebble"
)

// Config is the top-level configuration loaded from file/env.
type Config struct {
	DataDir            string             `json:"dataDir" yaml:"dataDir"`
	Topic              string             `json:"topic" yaml:"topic"`
	GroupID            string             `json:"groupId" yaml:"groupId"`
	NoopKey            string             `json:"noopKey" yaml:"noopKey"`
	CommitIntervalMs   int                `json:"commitIntervalMs" yaml:"commitIntervalMs"`
	WriteTimeoutMs     int                `json:"writeTimeoutMs" yaml:"writeTimeoutMs"`
	HaltOnStoreFailure bool               `json:"haltOnStoreFailure" yaml:"haltOnStoreFailure"`
	Log                LogConfig          `json:"log" yaml:"log"`
	Kafka              KafkaConfig        `json:"kafka" yaml:"kafka"`
	Coordination       CoordinationConfig `json:"coordination" yaml:"coordination"`
	Store              StoreConfig        `json:"store" yaml:"store"`
	Logging            LoggingConfig      `json:"logging" yaml:"logging"`
	OpsAddr            string             `json:"opsAddr" yaml:"opsAddr"`
	GRPCAddr           string             `json:"grpcAddr" yaml:"grpcAddr"`
}

// LogConfig selects and tunes the commit log.
type LogConfig struct {
	Backend           string `json:"backend" yaml:"backend"`
	MaxMessageBytes   int    `json:"maxMessageBytes" yaml:"maxMessageBytes"`
	ConsumerTimeoutMs int    `json:"consumerTimeoutMs" yaml:"consumerTimeoutMs"`
}

// KafkaConfig is used when Log.Backend is "kafka".
type KafkaConfig struct {
	Brokers  []string `json:"brokers" yaml:"brokers"`
	ClientID string   `json:"clientId" yaml:"clientId"`
}

// CoordinationConfig selects where consumer offsets are committed.
type CoordinationConfig struct {
	Backend string      `json:"backend" yaml:"backend"`
	Etcd    EtcdConfig  `json:"etcd" yaml:"etcd"`
	Redis   RedisConfig `json:"redis" yaml:"redis"`
}

type EtcdConfig struct {
	Endpoints     []string `json:"endpoints" yaml:"endpoints"`
	DialTimeoutMs int      `json:"dialTimeoutMs" yaml:"dialTimeoutMs"`
	Prefix        string   `json:"prefix" yaml:"prefix"`
}

type RedisConfig struct {
	Addr      string `json:"addr" yaml:"addr"`
	Password  string `json:"password" yaml:"password"`
	DB        int    `json:"db" yaml:"db"`
	KeyPrefix string `json:"keyPrefix" yaml:"keyPrefix"`
}

// StoreConfig selects the materialized local store.
type StoreConfig struct {
	Backend string `json:"backend" yaml:"backend"`
	Fsync   string `json:"fsync" yaml:"fsync"`
}

type LoggingConfig struct {
	Level  string `json:"level" yaml:"level"`
	Format string `json:"format" yaml:"format"`
}

// Default returns built-in defaults.
func Default() Config {
	return Config{
		DataDir:          DefaultDataDir(),
		Topic:            "_kvlog",
		GroupID:          "logkv",
		NoopKey:          "__noop__",
		CommitIntervalMs: 5000,
		WriteTimeoutMs:   500,
		Log: LogConfig{
			Backend:           LogBackendEmbedded,
			MaxMessageBytes:   1 << 20,
			ConsumerTimeoutMs: 0,
		},
		Kafka: KafkaConfig{
			Brokers:  []string{"localhost:9092"},
			ClientID: "logkv",
		},
		Coordination: CoordinationConfig{
			Backend: CoordinationLog,
			Etcd: EtcdConfig{
				Endpoints:     []string{"localhost:2379"},
				DialTimeoutMs: 5000,
				Prefix:        "/logkv",
			},
			Redis: RedisConfig{
				Addr:      "localhost:6379",
				KeyPrefix: "logkv:",
			},
		},
		Store: StoreConfig{
			Backend: StoreMemory,
			Fsync:   "always",
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
		OpsAddr:  ":9464",
		GRPCAddr: ":9465",
	}
}

// CommitInterval returns CommitIntervalMs as a duration. Zero or negative
// disables periodic commits.
func (c Config) CommitInterval() time.Duration {
	return time.Duration(c.CommitIntervalMs) * time.Millisecond
}

func (c Config) WriteTimeout() time.Duration {
	return time.Duration(c.WriteTimeoutMs) * time.Millisecond
}

func (c Config) ConsumerTimeout() time.Duration {
	return time.Duration(c.Log.ConsumerTimeoutMs) * time.Millisecond
}

// Validate reports every invalid field at once.
func (c Config) Validate() error {
	var errs []error
	if c.DataDir == "" {
		errs = append(errs, errors.New("dataDir is required"))
	}
	if c.Topic == "" {
		errs = append(errs, errors.New("topic is required"))
	}
	if c.GroupID == "" {
		errs = append(errs, errors.New("groupId is required"))
	}
	if c.NoopKey == "" {
		errs = append(errs, errors.New("noopKey is required"))
	}
	if c.WriteTimeoutMs < 0 {
		errs = append(errs, errors.New("writeTimeoutMs must not be negative"))
	}
	if c.Log.MaxMessageBytes <= 0 {
		errs = append(errs, errors.New("log.maxMessageBytes must be positive"))
	}
	if c.Log.ConsumerTimeoutMs < 0 {
		errs = append(errs, errors.New("log.consumerTimeoutMs must not be negative"))
	}
	switch c.Log.Backend {
	case LogBackendEmbedded:
	case LogBackendKafka:
		if len(c.Kafka.Brokers) == 0 {
			errs = append(errs, errors.New("kafka.brokers is required for the kafka log backend"))
		}
	default:
		errs = append(errs, fmt.Errorf("log.backend: unknown backend %q", c.Log.Backend))
	}
	switch c.Coordination.Backend {
	case CoordinationLog:
	case CoordinationEtcd:
		if len(c.Coordination.Etcd.Endpoints) == 0 {
			errs = append(errs, errors.New("coordination.etcd.endpoints is required"))
		}
	case CoordinationRedis:
		if c.Coordination.Redis.Addr == "" {
			errs = append(errs, errors.New("coordination.redis.addr is required"))
		}
	default:
		errs = append(errs, fmt.Errorf("coordination.backend: unknown backend %q", c.Coordination.Backend))
	}
	switch c.Store.Backend {
	case StoreMemory, StorePebble:
	default:
		errs = append(errs, fmt.Errorf("store.backend: unknown backend %q", c.Store.Backend))
	}
	if _, err := pebblestore.ParseFsyncMode(c.Store.Fsync); err != nil {
		errs = append(errs, fmt.Errorf("store.fsync: %w", err))
	}
	if err := errors.Join(errs...); err != nil {
		return fmt.Errorf("config: %w", err)
	}
	return nil
}

// Load reads configuration from a JSON or YAML file (by extension) on top of
// the defaults. If path is empty, returns defaults.
func Load(path string) (Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return Config{}, err
	}
	switch filepath.Ext(path) {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(b, &cfg); err != nil {
			return Config{}, fmt.Errorf("config: %s: %w", path, err)
		}
	default:
		if err := json.Unmarshal(b, &cfg); err != nil {
			return Config{}, fmt.Errorf("config: %s: %w", path, err)
		}
	}
	return cfg, nil
}
