package storereader

import (
	"context"

	"github.com/rzbill/logkv/internal/logclient"
)

// ResolveStartOffset returns the highest offset the group has already
// applied on partition 0 of topic, or -1 if it never committed. Committed
// offsets are "next to read", hence the minus one. Lookup errors are
// returned as KindFatal without retrying.
func ResolveStartOffset(ctx context.Context, offsets logclient.OffsetStore, group, topic string) (int64, error) {
	next, found, err := offsets.CommittedOffset(ctx, group, topic, 0)
	if err != nil {
		return 0, newError(KindFatal, "bootstrap", err)
	}
	if !found || next <= 0 {
		return -1, nil
	}
	return next - 1, nil
}
