package coordination

import (
	"context"
	"fmt"
	"strconv"
	"time"

	clientv3 "go.etcd.io/etcd/client/v3"
	"go.uber.org/zap"

	"github.com/rzbill/logkv/internal/logclient"
)

// EtcdConfig configures DialEtcd.
type EtcdConfig struct {
	Endpoints   []string
	DialTimeout time.Duration
	// Prefix is prepended to every key, e.g. "/logkv".
	Prefix string
	Logger *zap.Logger
}

// Etcd keeps offsets at {prefix}/consumers/{group}/offsets/{topic}/{partition}.
type Etcd struct {
	kv     clientv3.KV
	prefix string
	client *clientv3.Client
}

// DialEtcd connects to an etcd cluster.
func DialEtcd(cfg EtcdConfig) (*Etcd, error) {
	if len(cfg.Endpoints) == 0 {
		return nil, fmt.Errorf("coordination: etcd endpoints are required")
	}
	if cfg.DialTimeout <= 0 {
		cfg.DialTimeout = 5 * time.Second
	}
	cli, err := clientv3.New(clientv3.Config{
		Endpoints:   cfg.Endpoints,
		DialTimeout: cfg.DialTimeout,
		Logger:      cfg.Logger,
	})
	if err != nil {
		return nil, fmt.Errorf("coordination: dial etcd: %w", err)
	}
	e := NewEtcd(cli, cfg.Prefix)
	e.client = cli
	return e, nil
}

// NewEtcd returns an offset store over kv. Close does not close kv.
func NewEtcd(kv clientv3.KV, prefix string) *Etcd {
	return &Etcd{kv: kv, prefix: prefix}
}

func (e *Etcd) key(group, topic string, partition int32) string {
	return fmt.Sprintf("%s/consumers/%s/offsets/%s/%d", e.prefix, group, topic, partition)
}

func (e *Etcd) get(ctx context.Context, key string) (next int64, modRev int64, found bool, err error) {
	resp, err := e.kv.Get(ctx, key)
	if err != nil {
		return 0, 0, false, fmt.Errorf("coordination: get %s: %w", key, err)
	}
	if len(resp.Kvs) == 0 {
		return 0, 0, false, nil
	}
	kv := resp.Kvs[0]
	next, err = strconv.ParseInt(string(kv.Value), 10, 64)
	if err != nil {
		return 0, 0, false, fmt.Errorf("coordination: %s holds invalid offset %q: %w", key, kv.Value, err)
	}
	return next, kv.ModRevision, true, nil
}

// CommittedOffset implements logclient.OffsetStore.
func (e *Etcd) CommittedOffset(ctx context.Context, group, topic string, partition int32) (int64, bool, error) {
	next, _, found, err := e.get(ctx, e.key(group, topic, partition))
	return next, found, err
}

// CommitOffset implements logclient.OffsetStore. The write is a
// compare-and-swap on the key's revision, retried until it succeeds or the
// stored offset is already at least next.
func (e *Etcd) CommitOffset(ctx context.Context, group, topic string, partition int32, next int64) error {
	key := e.key(group, topic, partition)
	for {
		cur, rev, found, err := e.get(ctx, key)
		if err != nil {
			return err
		}
		if found && cur >= next {
			return nil
		}
		cmp := clientv3.Compare(clientv3.CreateRevision(key), "=", 0)
		if found {
			cmp = clientv3.Compare(clientv3.ModRevision(key), "=", rev)
		}
		resp, err := e.kv.Txn(ctx).
			If(cmp).
			Then(clientv3.OpPut(key, strconv.FormatInt(next, 10))).
			Commit()
		if err != nil {
			return fmt.Errorf("coordination: commit %s: %w", key, err)
		}
		if resp.Succeeded {
			return nil
		}
		if err := ctx.Err(); err != nil {
			return err
		}
	}
}

// Close closes the client if DialEtcd created it.
func (e *Etcd) Close() error {
	if e.client == nil {
		return nil
	}
	return e.client.Close()
}

var _ logclient.OffsetStore = (*Etcd)(nil)
