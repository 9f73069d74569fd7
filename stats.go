package coordcache

import (
	"context"
	"strconv"

	"github.com/coordcache/coordcache/internal/util"
	"github.com/coordcache/coordcache/store"
)

// Statistics is a point-in-time snapshot of one cache's counters. Counters
// live in the remote store and accumulate across processes; they only go
// down on an explicit reset.
type Statistics struct {
	CacheName string
	Hits      int64
	Misses    int64
	Evictions int64
	// HitRate is Hits / (Hits + Misses); 0 when both are zero.
	HitRate float64
}

const (
	statsFieldHits      = "hits"
	statsFieldMisses    = "misses"
	statsFieldEvictions = "evictions"
)

// tracker maintains per-cache hit/miss/eviction counters as a hash in the
// remote store. Recording is best effort: counter failures are logged and
// never affect the cache operation that triggered them.
type tracker struct {
	store store.Store
	ns    string
	log   Logger
	hooks Hooks
}

func (t *tracker) recordHit(ctx context.Context, cacheName string) {
	t.record(ctx, cacheName, statsFieldHits)
}

func (t *tracker) recordMiss(ctx context.Context, cacheName string) {
	t.record(ctx, cacheName, statsFieldMisses)
}

func (t *tracker) recordEviction(ctx context.Context, cacheName string) {
	t.record(ctx, cacheName, statsFieldEvictions)
}

func (t *tracker) record(ctx context.Context, cacheName, field string) {
	key := util.StatsKey(t.ns, cacheName)
	if _, err := t.store.HashIncrement(ctx, key, field, 1); err != nil {
		t.log.Debug("stats increment failed", Fields{"cache": cacheName, "field": field, "err": err})
		t.hooks.BackendError("stats", key, err)
	}
}

// snapshot reads the accumulated counters. Returns zeroed statistics (never
// an error) when none exist yet or the backend is unavailable.
func (t *tracker) snapshot(ctx context.Context, cacheName string) Statistics {
	s := Statistics{CacheName: cacheName}
	key := util.StatsKey(t.ns, cacheName)
	fields, err := t.store.HashGetAll(ctx, key)
	if err != nil {
		t.log.Warn("stats read failed", Fields{"cache": cacheName, "err": err})
		t.hooks.BackendError("stats", key, err)
		return s
	}
	s.Hits = parseCounter(fields, statsFieldHits)
	s.Misses = parseCounter(fields, statsFieldMisses)
	s.Evictions = parseCounter(fields, statsFieldEvictions)
	if total := s.Hits + s.Misses; total > 0 {
		s.HitRate = float64(s.Hits) / float64(total)
	}
	return s
}

func (t *tracker) reset(ctx context.Context, cacheName string) error {
	return t.store.Delete(ctx, util.StatsKey(t.ns, cacheName))
}

func parseCounter(fields map[string]string, name string) int64 {
	v, ok := fields[name]
	if !ok {
		return 0
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return 0
	}
	return n
}
