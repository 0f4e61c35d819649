package storereader

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/rzbill/logkv/internal/logclient"
)

// events records the order of lifecycle calls across fakes.
type events struct {
	mu  sync.Mutex
	seq []string
}

func (e *events) add(s string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.seq = append(e.seq, s)
}

func (e *events) list() []string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]string(nil), e.seq...)
}

type fakeClient struct {
	ev *events

	recs   chan logclient.Record
	errs   chan error
	closed chan struct{}
	once   sync.Once

	mu           sync.Mutex
	subscribedAt int64
	topic        string
	commits      int
	subscribeErr error
	commitErr    error
}

func newFakeClient(ev *events) *fakeClient {
	return &fakeClient{
		ev:           ev,
		recs:         make(chan logclient.Record, 64),
		errs:         make(chan error, 1),
		closed:       make(chan struct{}),
		subscribedAt: -1,
	}
}

func (c *fakeClient) Subscribe(_ context.Context, topic string, start int64) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.subscribeErr != nil {
		return c.subscribeErr
	}
	c.topic = topic
	c.subscribedAt = start
	return nil
}

func (c *fakeClient) Next(ctx context.Context) (logclient.Record, error) {
	select {
	case <-c.closed:
		return logclient.Record{}, logclient.ErrClosed
	default:
	}
	select {
	case r := <-c.recs:
		return r, nil
	case err := <-c.errs:
		return logclient.Record{}, err
	case <-c.closed:
		return logclient.Record{}, logclient.ErrClosed
	case <-ctx.Done():
		return logclient.Record{}, ctx.Err()
	}
}

func (c *fakeClient) CommitOffsets(context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.commits++
	return c.commitErr
}

func (c *fakeClient) Close() error {
	c.once.Do(func() {
		if c.ev != nil {
			c.ev.add("client.close")
		}
		close(c.closed)
	})
	return nil
}

func (c *fakeClient) commitCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.commits
}

func (c *fakeClient) startOffset() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.subscribedAt
}

func (c *fakeClient) put(offset int64, key, value string) {
	c.recs <- logclient.Record{Topic: "_kvlog", Offset: offset, Key: []byte(key), Value: []byte(value)}
}

func (c *fakeClient) del(offset int64, key string) {
	c.recs <- logclient.Record{Topic: "_kvlog", Offset: offset, Key: []byte(key)}
}

type fakeOffsets struct {
	next  int64
	found bool
	err   error
}

func (f fakeOffsets) CommittedOffset(context.Context, string, string, int32) (int64, bool, error) {
	return f.next, f.found, f.err
}

func (f fakeOffsets) CommitOffset(context.Context, string, string, int32, int64) error { return nil }

// blockingOffsets holds CommittedOffset until release is closed.
type blockingOffsets struct {
	entered chan struct{}
	release chan struct{}
}

func newBlockingOffsets() blockingOffsets {
	return blockingOffsets{entered: make(chan struct{}, 1), release: make(chan struct{})}
}

func (b blockingOffsets) CommittedOffset(ctx context.Context, _, _ string, _ int32) (int64, bool, error) {
	b.entered <- struct{}{}
	select {
	case <-b.release:
		return 0, false, nil
	case <-ctx.Done():
		return 0, false, ctx.Err()
	}
}

func (blockingOffsets) CommitOffset(context.Context, string, string, int32, int64) error { return nil }

var errStoreClosed = errors.New("store closed")

// mapStore is a map-backed Store that can be told to fail.
type mapStore struct {
	ev *events

	// blockPut, when set before Start, makes Put report on entered and then
	// wait for blockPut to close.
	blockPut chan struct{}
	entered  chan struct{}

	mu      sync.Mutex
	data    map[string]string
	failKey string
	closed  bool
}

func newMapStore(ev *events) *mapStore {
	return &mapStore{ev: ev, data: make(map[string]string)}
}

func (s *mapStore) Put(key, value string) error {
	if s.blockPut != nil {
		s.entered <- struct{}{}
		<-s.blockPut
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return errStoreClosed
	}
	if key == s.failKey {
		return errors.New("disk full")
	}
	s.data[key] = value
	return nil
}

func (s *mapStore) Delete(key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return errStoreClosed
	}
	if key == s.failKey {
		return errors.New("disk full")
	}
	delete(s.data, key)
	return nil
}

func (s *mapStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ev != nil {
		s.ev.add("store.close")
	}
	s.closed = true
	return nil
}

func (s *mapStore) get(key string) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.data[key]
	return v, ok
}

func (s *mapStore) snapshot() map[string]string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[string]string, len(s.data))
	for k, v := range s.data {
		out[k] = v
	}
	return out
}

// stringSerde rejects keys starting with "!" and values starting with "?".
type stringSerde struct{}

func (stringSerde) DeserializeKey(b []byte) (string, error) {
	if strings.HasPrefix(string(b), "!") {
		return "", errors.New("bad key")
	}
	return string(b), nil
}

func (stringSerde) DeserializeValue(_ string, b []byte) (string, error) {
	if strings.HasPrefix(string(b), "?") {
		return "", errors.New("bad value")
	}
	return string(b), nil
}

type update struct {
	key     string
	value   string
	present bool
}

type recordingHandler struct {
	mu      sync.Mutex
	updates []update
}

func (h *recordingHandler) HandleUpdate(key string, value Optional[string]) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	v, ok := value.Get()
	h.updates = append(h.updates, update{key: key, value: v, present: ok})
	return nil
}

func (h *recordingHandler) list() []update {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]update(nil), h.updates...)
}

type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func newFakeClock() *fakeClock { return &fakeClock{t: time.Unix(1_700_000_000, 0)} }

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}
