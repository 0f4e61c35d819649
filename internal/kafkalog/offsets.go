package kafkalog

import (
	"context"
	"errors"
	"fmt"

	"github.com/twmb/franz-go/pkg/kadm"
	"github.com/twmb/franz-go/pkg/kerr"

	"github.com/rzbill/logkv/internal/logclient"
)

// Offsets stores consumer-group offsets in Kafka with simple (memberless)
// offset commits.
type Offsets struct {
	adm *kadm.Client
}

// CommittedOffset implements logclient.OffsetStore.
func (o *Offsets) CommittedOffset(ctx context.Context, group, topic string, partition int32) (int64, bool, error) {
	resps, err := o.adm.FetchOffsets(ctx, group)
	if errors.Is(err, kerr.GroupIDNotFound) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("kafkalog: fetch offsets for %s: %w", group, err)
	}
	resp, ok := resps.Lookup(topic, partition)
	if !ok {
		return 0, false, nil
	}
	if resp.Err != nil {
		return 0, false, fmt.Errorf("kafkalog: fetch offset %s/%d for %s: %w", topic, partition, group, resp.Err)
	}
	if resp.At < 0 {
		return 0, false, nil
	}
	return resp.At, true, nil
}

// CommitOffset implements logclient.OffsetStore. A commit at or below the
// stored offset is skipped. The check and the commit are not atomic; each
// group is expected to have a single committer.
func (o *Offsets) CommitOffset(ctx context.Context, group, topic string, partition int32, next int64) error {
	cur, found, err := o.CommittedOffset(ctx, group, topic, partition)
	if err != nil {
		return err
	}
	if found && cur >= next {
		return nil
	}
	var offsets kadm.Offsets
	offsets.Add(kadm.Offset{Topic: topic, Partition: partition, At: next, LeaderEpoch: -1})
	resps, err := o.adm.CommitOffsets(ctx, group, offsets)
	if err != nil {
		return fmt.Errorf("kafkalog: commit offsets for %s: %w", group, err)
	}
	if err := resps.Error(); err != nil {
		return fmt.Errorf("kafkalog: commit %s/%d for %s: %w", topic, partition, group, err)
	}
	return nil
}

var _ logclient.OffsetStore = (*Offsets)(nil)
