package eventlog

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rzbill/logkv/internal/logclient"
	"github.com/rzbill/logkv/internal/topic"
)

func newTestBroker(t *testing.T, topicName string) *Broker {
	t.Helper()
	db := openTestDB(t, t.TempDir())
	t.Cleanup(func() { _ = db.Close() })
	if _, err := topic.Ensure(db, topicName); err != nil {
		t.Fatalf("ensure topic: %v", err)
	}
	return NewBroker(db, nil)
}

func TestConsumerDeliversInOffsetOrder(t *testing.T) {
	b := newTestBroker(t, "t")
	ctx := context.Background()
	for _, k := range []string{"a", "b", "c"} {
		if _, err := b.Produce(ctx, "t", []byte(k), []byte("v-"+k)); err != nil {
			t.Fatalf("produce: %v", err)
		}
	}

	c := b.NewConsumer(ConsumerOptions{Group: "g", BatchSize: 2})
	defer c.Close()
	if err := c.Subscribe(ctx, "t", 1); err != nil {
		t.Fatalf("subscribe: %v", err)
	}
	for want := int64(1); want <= 2; want++ {
		rec, err := c.Next(ctx)
		if err != nil {
			t.Fatalf("next: %v", err)
		}
		if rec.Offset != want {
			t.Fatalf("want offset %d, got %d", want, rec.Offset)
		}
		if rec.Topic != "t" || rec.Partition != 0 {
			t.Fatalf("unexpected origin %s/%d", rec.Topic, rec.Partition)
		}
	}
	if c.Position() != 3 {
		t.Fatalf("position: %d", c.Position())
	}
}

func TestConsumerNextBeforeSubscribe(t *testing.T) {
	b := newTestBroker(t, "t")
	c := b.NewConsumer(ConsumerOptions{Group: "g"})
	if _, err := c.Next(context.Background()); !errors.Is(err, logclient.ErrNotSubscribed) {
		t.Fatalf("want ErrNotSubscribed, got %v", err)
	}
}

func TestConsumerNextWakesOnProduce(t *testing.T) {
	b := newTestBroker(t, "t")
	c := b.NewConsumer(ConsumerOptions{Group: "g"})
	defer c.Close()
	if err := c.Subscribe(context.Background(), "t", 0); err != nil {
		t.Fatalf("subscribe: %v", err)
	}

	got := make(chan logclient.Record, 1)
	errc := make(chan error, 1)
	go func() {
		rec, err := c.Next(context.Background())
		if err != nil {
			errc <- err
			return
		}
		got <- rec
	}()

	time.Sleep(50 * time.Millisecond)
	if _, err := b.Produce(context.Background(), "t", []byte("k"), nil); err != nil {
		t.Fatalf("produce: %v", err)
	}

	select {
	case rec := <-got:
		if !rec.Tombstone() || string(rec.Key) != "k" {
			t.Fatalf("unexpected record: %+v", rec)
		}
	case err := <-errc:
		t.Fatalf("next: %v", err)
	case <-time.After(time.Second):
		t.Fatalf("consumer was not woken by produce")
	}
}

func TestConsumerCloseUnblocksNext(t *testing.T) {
	b := newTestBroker(t, "t")
	c := b.NewConsumer(ConsumerOptions{Group: "g"})
	if err := c.Subscribe(context.Background(), "t", 0); err != nil {
		t.Fatalf("subscribe: %v", err)
	}
	errc := make(chan error, 1)
	go func() {
		_, err := c.Next(context.Background())
		errc <- err
	}()
	time.Sleep(20 * time.Millisecond)
	_ = c.Close()
	_ = c.Close()

	select {
	case err := <-errc:
		if !errors.Is(err, logclient.ErrClosed) {
			t.Fatalf("want ErrClosed, got %v", err)
		}
	case <-time.After(time.Second):
		t.Fatalf("close did not unblock next")
	}
}

func TestConsumerTimeout(t *testing.T) {
	b := newTestBroker(t, "t")
	c := b.NewConsumer(ConsumerOptions{Group: "g", ConsumerTimeout: 30 * time.Millisecond})
	defer c.Close()
	if err := c.Subscribe(context.Background(), "t", 0); err != nil {
		t.Fatalf("subscribe: %v", err)
	}
	if _, err := c.Next(context.Background()); !errors.Is(err, logclient.ErrConsumerTimeout) {
		t.Fatalf("want ErrConsumerTimeout, got %v", err)
	}
}

func TestConsumerMessageTooLarge(t *testing.T) {
	b := newTestBroker(t, "t")
	ctx := context.Background()
	if _, err := b.Produce(ctx, "t", []byte("k"), make([]byte, 64)); err != nil {
		t.Fatalf("produce: %v", err)
	}
	c := b.NewConsumer(ConsumerOptions{Group: "g", MaxMessageBytes: 16})
	defer c.Close()
	if err := c.Subscribe(ctx, "t", 0); err != nil {
		t.Fatalf("subscribe: %v", err)
	}
	if _, err := c.Next(ctx); !errors.Is(err, logclient.ErrMessageTooLarge) {
		t.Fatalf("want ErrMessageTooLarge, got %v", err)
	}
	if c.Position() != 0 {
		t.Fatalf("oversized record must not be consumed, position=%d", c.Position())
	}
}

func TestSubscribeRejectsMultiPartitionTopic(t *testing.T) {
	b := newTestBroker(t, "t")
	if _, err := topic.Create(b.db, topic.Meta{Name: "wide", Partitions: 2}); err != nil {
		t.Fatalf("create: %v", err)
	}
	c := b.NewConsumer(ConsumerOptions{Group: "g"})
	if err := c.Subscribe(context.Background(), "wide", 0); !errors.Is(err, logclient.ErrPartitionCount) {
		t.Fatalf("want ErrPartitionCount, got %v", err)
	}
	if err := c.Subscribe(context.Background(), "missing", 0); !errors.Is(err, logclient.ErrTopicNotFound) {
		t.Fatalf("want ErrTopicNotFound, got %v", err)
	}
}

func TestConsumerCommitOffsets(t *testing.T) {
	b := newTestBroker(t, "t")
	ctx := context.Background()
	for i := 0; i < 3; i++ {
		if _, err := b.Produce(ctx, "t", []byte("k"), []byte("v")); err != nil {
			t.Fatalf("produce: %v", err)
		}
	}
	c := b.NewConsumer(ConsumerOptions{Group: "g"})
	defer c.Close()
	if err := c.Subscribe(ctx, "t", 0); err != nil {
		t.Fatalf("subscribe: %v", err)
	}
	if err := c.CommitOffsets(ctx); err != nil {
		t.Fatalf("empty commit: %v", err)
	}
	if _, found, _ := b.Cursors().CommittedOffset(ctx, "g", "t", 0); found {
		t.Fatalf("nothing consumed, nothing should be committed")
	}
	for i := 0; i < 2; i++ {
		if _, err := c.Next(ctx); err != nil {
			t.Fatalf("next: %v", err)
		}
	}
	if err := c.CommitOffsets(ctx); err != nil {
		t.Fatalf("commit: %v", err)
	}
	next, found, err := b.Cursors().CommittedOffset(ctx, "g", "t", 0)
	if err != nil || !found || next != 2 {
		t.Fatalf("committed next=%d found=%v err=%v", next, found, err)
	}
}

func TestProduceRejectsOversizedRecord(t *testing.T) {
	b := newTestBroker(t, "t")
	_, err := b.Produce(context.Background(), "t", []byte("k"), make([]byte, topic.Defaults().MaxMessageBytes))
	if !errors.Is(err, logclient.ErrMessageTooLarge) {
		t.Fatalf("want ErrMessageTooLarge, got %v", err)
	}
}
