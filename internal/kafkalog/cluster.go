package kafkalog

import (
	"context"
	"errors"
	"fmt"

	"github.com/twmb/franz-go/pkg/kadm"
	"github.com/twmb/franz-go/pkg/kerr"
	"github.com/twmb/franz-go/pkg/kgo"
	"github.com/twmb/franz-go/plugin/kzap"
	"go.uber.org/zap"

	"github.com/rzbill/logkv/internal/logclient"
)

// Config configures Dial.
type Config struct {
	Brokers  []string
	ClientID string
	// MaxMessageBytes caps produced batches. Zero keeps the franz-go default.
	MaxMessageBytes int
	Logger          *zap.Logger
}

func (cfg Config) validate() error {
	if len(cfg.Brokers) == 0 {
		return errors.New("kafkalog: at least one broker is required")
	}
	return nil
}

func (cfg Config) clientOpts() []kgo.Opt {
	opts := []kgo.Opt{kgo.SeedBrokers(cfg.Brokers...)}
	if cfg.ClientID != "" {
		opts = append(opts, kgo.ClientID(cfg.ClientID))
	}
	if cfg.Logger != nil {
		opts = append(opts, kgo.WithLogger(kzap.New(cfg.Logger)))
	}
	return opts
}

// Cluster holds the client used for producing and admin requests.
// Consumers get their own client so that closing one does not affect the
// rest.
type Cluster struct {
	cfg Config
	cl  *kgo.Client
	adm *kadm.Client
}

// Dial creates a client for the cluster. Connections are opened lazily.
func Dial(cfg Config) (*Cluster, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	opts := append(cfg.clientOpts(),
		kgo.RecordPartitioner(kgo.ManualPartitioner()),
		kgo.ProducerBatchCompression(kgo.NoCompression()),
	)
	if cfg.MaxMessageBytes > 0 {
		opts = append(opts, kgo.ProducerBatchMaxBytes(int32(cfg.MaxMessageBytes)))
	}
	cl, err := kgo.NewClient(opts...)
	if err != nil {
		return nil, fmt.Errorf("kafkalog: new client: %w", err)
	}
	return &Cluster{cfg: cfg, cl: cl, adm: kadm.NewClient(cl)}, nil
}

// Ping checks that a broker is reachable.
func (c *Cluster) Ping(ctx context.Context) error { return c.cl.Ping(ctx) }

// CreateTopic creates topic. An existing topic is not an error.
func (c *Cluster) CreateTopic(ctx context.Context, topic string, partitions int32, replicationFactor int16) error {
	resp, err := c.adm.CreateTopic(ctx, partitions, replicationFactor, nil, topic)
	if err == nil {
		err = resp.Err
	}
	if err != nil && !errors.Is(err, kerr.TopicAlreadyExists) {
		return fmt.Errorf("kafkalog: create topic %s: %w", topic, err)
	}
	return nil
}

// Produce implements logclient.Producer. Records always go to partition 0.
func (c *Cluster) Produce(ctx context.Context, topic string, key, value []byte) (int64, error) {
	rec, err := c.cl.ProduceSync(ctx, &kgo.Record{Topic: topic, Partition: 0, Key: key, Value: value}).First()
	if err != nil {
		if tooLarge(err) {
			return 0, fmt.Errorf("%w: %v", logclient.ErrMessageTooLarge, err)
		}
		return 0, fmt.Errorf("kafkalog: produce to %s: %w", topic, err)
	}
	return rec.Offset, nil
}

// Offsets returns the consumer-group offset store of this cluster.
func (c *Cluster) Offsets() *Offsets { return &Offsets{adm: c.adm} }

// partitionCount returns the number of partitions of topic.
func (c *Cluster) partitionCount(ctx context.Context, topic string) (int, error) {
	details, err := c.adm.ListTopics(ctx, topic)
	if err != nil {
		return 0, fmt.Errorf("kafkalog: describe %s: %w", topic, err)
	}
	d, ok := details[topic]
	if !ok || errors.Is(d.Err, kerr.UnknownTopicOrPartition) {
		return 0, fmt.Errorf("%w: %s", logclient.ErrTopicNotFound, topic)
	}
	if d.Err != nil {
		return 0, fmt.Errorf("kafkalog: describe %s: %w", topic, d.Err)
	}
	return len(d.Partitions), nil
}

// Close closes the producer/admin client.
func (c *Cluster) Close() { c.cl.Close() }

func tooLarge(err error) bool {
	return errors.Is(err, kerr.MessageTooLarge) || errors.Is(err, kerr.RecordListTooLarge)
}

var _ logclient.Producer = (*Cluster)(nil)
