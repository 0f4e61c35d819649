package config

import (
	"os"
	"strconv"
	"strings"
)

// FromEnv overlays LOGKV_* environment variables onto cfg. Malformed
// numbers and booleans are ignored.
func FromEnv(cfg *Config) {
	setString("LOGKV_DATA_DIR", &cfg.DataDir)
	setString("LOGKV_TOPIC", &cfg.Topic)
	setString("LOGKV_GROUP_ID", &cfg.GroupID)
	setString("LOGKV_NOOP_KEY", &cfg.NoopKey)
	setInt("LOGKV_COMMIT_INTERVAL_MS", &cfg.CommitIntervalMs)
	setInt("LOGKV_WRITE_TIMEOUT_MS", &cfg.WriteTimeoutMs)
	setBool("LOGKV_HALT_ON_STORE_FAILURE", &cfg.HaltOnStoreFailure)

	setString("LOGKV_LOG_BACKEND", &cfg.Log.Backend)
	setInt("LOGKV_LOG_MAX_MESSAGE_BYTES", &cfg.Log.MaxMessageBytes)
	setInt("LOGKV_LOG_CONSUMER_TIMEOUT_MS", &cfg.Log.ConsumerTimeoutMs)

	setList("LOGKV_KAFKA_BROKERS", &cfg.Kafka.Brokers)
	setString("LOGKV_KAFKA_CLIENT_ID", &cfg.Kafka.ClientID)

	setString("LOGKV_COORDINATION_BACKEND", &cfg.Coordination.Backend)
	setList("LOGKV_ETCD_ENDPOINTS", &cfg.Coordination.Etcd.Endpoints)
	setInt("LOGKV_ETCD_DIAL_TIMEOUT_MS", &cfg.Coordination.Etcd.DialTimeoutMs)
	setString("LOGKV_ETCD_PREFIX", &cfg.Coordination.Etcd.Prefix)
	setString("LOGKV_REDIS_ADDR", &cfg.Coordination.Redis.Addr)
	setString("LOGKV_REDIS_PASSWORD", &cfg.Coordination.Redis.Password)
	setInt("LOGKV_REDIS_DB", &cfg.Coordination.Redis.DB)
	setString("LOGKV_REDIS_KEY_PREFIX", &cfg.Coordination.Redis.KeyPrefix)

	setString("LOGKV_STORE_BACKEND", &cfg.Store.Backend)
	setString("LOGKV_STORE_FSYNC", &cfg.Store.Fsync)

	setString("LOGKV_LOG_LEVEL", &cfg.Logging.Level)
	setString("LOGKV_LOG_FORMAT", &cfg.Logging.Format)

	setString("LOGKV_OPS_ADDR", &cfg.OpsAddr)
	setString("LOGKV_GRPC_ADDR", &cfg.GRPCAddr)
}

func setString(key string, dst *string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func setInt(key string, dst *int) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func setBool(key string, dst *bool) {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			*dst = b
		}
	}
}

// setList splits a comma separated value, dropping empty entries.
func setList(key string, dst *[]string) {
	v := os.Getenv(key)
	if v == "" {
		return
	}
	var out []string
	for _, p := range strings.Split(v, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	*dst = out
}
