package runtime

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	cfgpkg "github.com/rzbill/logkv/internal/config"
	"github.com/rzbill/logkv/internal/coordination"
	"github.com/rzbill/logkv/internal/eventlog"
	"github.com/rzbill/logkv/internal/kafkalog"
	"github.com/rzbill/logkv/internal/logclient"
	pebblestore "github.com/rzbill/logkv/internal/storage/pebble"
	"github.com/rzbill/logkv/internal/topic"
	logpkg "github.com/rzbill/logkv/pkg/log"
)

// Backend is the commit log selected by Config.Log.Backend: the embedded
// Pebble log or a Kafka cluster.
type Backend struct {
	cfg    cfgpkg.Config
	logger logpkg.Logger

	db      *pebblestore.DB
	broker  *eventlog.Broker
	cluster *kafkalog.Cluster
}

// OpenBackend opens the configured commit log. clientID names Kafka
// clients; hook observes the embedded log database and may be nil.
func OpenBackend(cfg cfgpkg.Config, clientID string, logger logpkg.Logger, hook pebblestore.MetricsHook) (*Backend, error) {
	if logger == nil {
		logger = logpkg.NewNop()
	}
	b := &Backend{cfg: cfg, logger: logger}
	switch cfg.Log.Backend {
	case cfgpkg.LogBackendEmbedded:
		fsync, err := pebblestore.ParseFsyncMode(cfg.Store.Fsync)
		if err != nil {
			return nil, err
		}
		db, err := pebblestore.Open(pebblestore.Options{
			DataDir: cfg.Layout().LogDir(),
			Fsync:   fsync,
			Metrics: hook,
			Logger:  logger,
		})
		if err != nil {
			return nil, fmt.Errorf("runtime: open log db: %w", err)
		}
		b.db = db
		b.broker = eventlog.NewBroker(db, logger)
	case cfgpkg.LogBackendKafka:
		cluster, err := kafkalog.Dial(kafkalog.Config{
			Brokers:         cfg.Kafka.Brokers,
			ClientID:        clientID,
			MaxMessageBytes: cfg.Log.MaxMessageBytes,
			Logger:          logger.Zap(),
		})
		if err != nil {
			return nil, err
		}
		b.cluster = cluster
	default:
		return nil, fmt.Errorf("runtime: unknown log backend %q", cfg.Log.Backend)
	}
	return b, nil
}

// Name returns the backend name from the configuration.
func (b *Backend) Name() string { return b.cfg.Log.Backend }

// EnsureTopic creates topic with the given partition count if absent.
func (b *Backend) EnsureTopic(ctx context.Context, name string, partitions int) error {
	if b.broker != nil {
		_, err := topic.Create(b.db, topic.Meta{
			Name:            name,
			Partitions:      partitions,
			MaxMessageBytes: b.cfg.Log.MaxMessageBytes,
		})
		return err
	}
	return b.cluster.CreateTopic(ctx, name, int32(partitions), 1)
}

// Produce implements logclient.Producer.
func (b *Backend) Produce(ctx context.Context, topicName string, key, value []byte) (int64, error) {
	if b.broker != nil {
		return b.broker.Produce(ctx, topicName, key, value)
	}
	return b.cluster.Produce(ctx, topicName, key, value)
}

// Offsets returns the offset store that lives next to the log.
func (b *Backend) Offsets() logclient.OffsetStore {
	if b.broker != nil {
		return b.broker.Cursors()
	}
	return b.cluster.Offsets()
}

// NewConsumer returns an unsubscribed client for group. A nil offsets
// commits next to the log.
func (b *Backend) NewConsumer(group string, offsets logclient.OffsetStore) logclient.Client {
	if b.broker != nil {
		return b.broker.NewConsumer(eventlog.ConsumerOptions{
			Group:           group,
			MaxMessageBytes: b.cfg.Log.MaxMessageBytes,
			ConsumerTimeout: b.cfg.ConsumerTimeout(),
			Offsets:         offsets,
		})
	}
	return b.cluster.NewConsumer(kafkalog.ConsumerOptions{
		Group:           group,
		MaxMessageBytes: b.cfg.Log.MaxMessageBytes,
		ConsumerTimeout: b.cfg.ConsumerTimeout(),
		Offsets:         offsets,
	})
}

// CheckHealth verifies the log is reachable.
func (b *Backend) CheckHealth(ctx context.Context) error {
	if b.broker != nil {
		if b.db.Closed() {
			return errors.New("runtime: log db closed")
		}
		it, err := b.db.NewIter(nil)
		if err != nil {
			return err
		}
		return it.Close()
	}
	return b.cluster.Ping(ctx)
}

// Close releases the log. Consumers must be closed first.
func (b *Backend) Close() error {
	if b.cluster != nil {
		b.cluster.Close()
		return nil
	}
	return b.db.Close()
}

// offsetStore is a logclient.OffsetStore that may hold a connection.
type offsetStore struct {
	logclient.OffsetStore
	close func() error
}

func openOffsetStore(ctx context.Context, cfg cfgpkg.Config, b *Backend, zl *zap.Logger) (offsetStore, error) {
	switch cfg.Coordination.Backend {
	case cfgpkg.CoordinationLog:
		return offsetStore{OffsetStore: b.Offsets(), close: func() error { return nil }}, nil
	case cfgpkg.CoordinationEtcd:
		ec := cfg.Coordination.Etcd
		e, err := coordination.DialEtcd(coordination.EtcdConfig{
			Endpoints:   ec.Endpoints,
			DialTimeout: msDuration(ec.DialTimeoutMs),
			Prefix:      ec.Prefix,
			Logger:      zl,
		})
		if err != nil {
			return offsetStore{}, err
		}
		return offsetStore{OffsetStore: e, close: e.Close}, nil
	case cfgpkg.CoordinationRedis:
		rc := cfg.Coordination.Redis
		r, err := coordination.DialRedis(ctx, coordination.RedisConfig{
			Addr:      rc.Addr,
			Password:  rc.Password,
			DB:        rc.DB,
			KeyPrefix: rc.KeyPrefix,
		})
		if err != nil {
			return offsetStore{}, err
		}
		return offsetStore{OffsetStore: r, close: r.Close}, nil
	default:
		return offsetStore{}, fmt.Errorf("runtime: unknown coordination backend %q", cfg.Coordination.Backend)
	}
}
