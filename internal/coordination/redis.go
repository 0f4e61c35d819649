package coordination

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/redis/go-redis/v9"

	"github.com/rzbill/logkv/internal/logclient"
)

// RedisConfig configures DialRedis.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
	// KeyPrefix namespaces keys, e.g. "logkv:".
	KeyPrefix string
}

// commitScript sets the field only when it moves the offset forward.
var commitScript = redis.NewScript(`
local cur = redis.call('HGET', KEYS[1], ARGV[1])
if cur and tonumber(cur) >= tonumber(ARGV[2]) then
  return 0
end
redis.call('HSET', KEYS[1], ARGV[1], ARGV[2])
return 1
`)

// Redis keeps the offsets of a group in the hash {prefix}consumers:{group},
// one field per {topic}:{partition}.
type Redis struct {
	client    redis.UniversalClient
	keyPrefix string
}

// DialRedis connects and pings the server.
func DialRedis(ctx context.Context, cfg RedisConfig) (*Redis, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("coordination: redis ping failed: %w", err)
	}
	return NewRedis(client, cfg.KeyPrefix), nil
}

// NewRedis returns an offset store over client. Close closes client.
func NewRedis(client redis.UniversalClient, keyPrefix string) *Redis {
	if keyPrefix == "" {
		keyPrefix = "logkv:"
	}
	return &Redis{client: client, keyPrefix: keyPrefix}
}

func (r *Redis) hashKey(group string) string {
	return fmt.Sprintf("%sconsumers:%s", r.keyPrefix, group)
}

func field(topic string, partition int32) string {
	return fmt.Sprintf("%s:%d", topic, partition)
}

// CommittedOffset implements logclient.OffsetStore.
func (r *Redis) CommittedOffset(ctx context.Context, group, topic string, partition int32) (int64, bool, error) {
	s, err := r.client.HGet(ctx, r.hashKey(group), field(topic, partition)).Result()
	if errors.Is(err, redis.Nil) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("coordination: redis hget: %w", err)
	}
	next, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0, false, fmt.Errorf("coordination: invalid offset %q for %s/%s: %w", s, group, topic, err)
	}
	return next, true, nil
}

// CommitOffset implements logclient.OffsetStore.
func (r *Redis) CommitOffset(ctx context.Context, group, topic string, partition int32, next int64) error {
	err := commitScript.Run(ctx, r.client, []string{r.hashKey(group)}, field(topic, partition), next).Err()
	if err != nil {
		return fmt.Errorf("coordination: redis commit: %w", err)
	}
	return nil
}

func (r *Redis) Close() error { return r.client.Close() }

var _ logclient.OffsetStore = (*Redis)(nil)
