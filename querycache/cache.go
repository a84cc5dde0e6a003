package querycache

import (
	"context"
	"strings"
	"sync"
	"sync/atomic"
	"time"
)

// Status of a cached entry.
type Status uint8

const (
	// StatusIdle means the key has never resolved.
	StatusIdle Status = iota
	// StatusPending means the first fetch for the key is in flight.
	StatusPending
	// StatusSuccess means the entry holds resolved data.
	StatusSuccess
	// StatusError means every fetch so far has failed.
	StatusError
)

// FetchFunc loads the value for a key. Within one in-flight window per key
// it is invoked exactly once, no matter how many callers joined.
type FetchFunc func(ctx context.Context) (any, error)

// Result is a point-in-time view of one cache entry.
type Result struct {
	Key         string
	Status      Status
	Data        any
	Err         error
	Stale       bool
	LastFetched time.Time
}

// Stats are cumulative cache counters.
type Stats struct {
	Hits          uint64
	Misses        uint64
	DedupJoins    uint64
	StaleDiscards uint64
	Refetches     uint64
	Invalidations uint64
	Purges        uint64
}

type flight struct {
	done  chan struct{}
	data  any
	err   error
	seq   uint64
	epoch uint64
}

type entry struct {
	status      Status
	data        any
	err         error
	stale       bool
	lastFetched time.Time

	// seq is the sequence of the last issued fetch for this key; applied is
	// the sequence of the last response written back. A completing flight
	// with seq <= applied lost the race and is discarded. invalid is the
	// value of seq at the last invalidation: a flight issued at or before it
	// predates the invalidation and cannot clear the stale mark.
	seq      uint64
	applied  uint64
	invalid  uint64
	inflight *flight
}

// Cache implements the keyed request cache. The zero value is not usable;
// call [New].
type Cache struct {
	mu       sync.Mutex
	entries  map[string]*entry
	watchers map[string]map[chan struct{}]struct{}
	epoch    uint64

	hits          atomic.Uint64
	misses        atomic.Uint64
	dedupJoins    atomic.Uint64
	staleDiscards atomic.Uint64
	refetches     atomic.Uint64
	invalidations atomic.Uint64
	purges        atomic.Uint64
}

func New() *Cache {
	return &Cache{
		entries:  make(map[string]*entry),
		watchers: make(map[string]map[chan struct{}]struct{}),
	}
}

// Key joins parts into a cache key. Families share a common first part, so
// InvalidatePrefix(Key("printers")+"/") reaches every filtered variant.
func Key(parts ...string) string {
	return strings.Join(parts, "/")
}

// Fetch returns the cached value for key when it is fresh, joins the
// in-flight call when one exists, and otherwise invokes fn in the calling
// goroutine. Concurrent callers for the same key share one underlying call
// and receive the same resolved value.
func (c *Cache) Fetch(ctx context.Context, key string, fn FetchFunc) (any, error) {
	c.mu.Lock()
	e := c.ensureLocked(key)
	if e.status == StatusSuccess && !e.stale {
		data := e.data
		c.mu.Unlock()
		c.hits.Add(1)
		return data, nil
	}
	if f := e.inflight; f != nil {
		c.mu.Unlock()
		c.dedupJoins.Add(1)
		return wait(ctx, f)
	}
	f := c.beginLocked(e)
	c.mu.Unlock()

	c.misses.Add(1)
	return c.run(ctx, key, e, f, fn)
}

// Refetch always issues a new call for key, superseding any in-flight one;
// the superseded call's late response is discarded. Previously cached data
// stays visible until the new response lands.
func (c *Cache) Refetch(ctx context.Context, key string, fn FetchFunc) (any, error) {
	c.mu.Lock()
	e := c.ensureLocked(key)
	f := c.beginLocked(e)
	c.mu.Unlock()

	c.refetches.Add(1)
	return c.run(ctx, key, e, f, fn)
}

// Invalidate marks key stale and nudges active subscribers: the next read
// refetches instead of serving the cached value. A fetch already in flight
// when Invalidate runs cannot un-mark the key; only a fetch issued afterwards
// clears it.
func (c *Cache) Invalidate(key string) {
	c.mu.Lock()
	if e, ok := c.entries[key]; ok {
		e.stale = true
		e.invalid = e.seq
	}
	c.notifyLocked(key)
	c.mu.Unlock()
	c.invalidations.Add(1)
}

// InvalidatePrefix marks every key sharing prefix stale, e.g. all filtered
// variants of one list.
func (c *Cache) InvalidatePrefix(prefix string) {
	c.mu.Lock()
	for key, e := range c.entries {
		if strings.HasPrefix(key, prefix) {
			e.stale = true
			e.invalid = e.seq
			c.notifyLocked(key)
		}
	}
	c.mu.Unlock()
	c.invalidations.Add(1)
}

// Purge drops every entry. In-flight calls are not aborted; their eventual
// results belong to a previous epoch and are ignored. Subscriptions survive
// a purge and repopulate on their next cycle.
func (c *Cache) Purge() {
	c.mu.Lock()
	c.epoch++
	c.entries = make(map[string]*entry)
	c.mu.Unlock()
	c.purges.Add(1)
}

// Peek returns the current view of key without fetching. The second return
// is false when the key holds no entry.
func (c *Cache) Peek(key string) (Result, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.entries[key]
	if !ok {
		return Result{Key: key, Status: StatusIdle}, false
	}
	return Result{
		Key:         key,
		Status:      e.status,
		Data:        e.data,
		Err:         e.err,
		Stale:       e.stale,
		LastFetched: e.lastFetched,
	}, true
}

// Len reports how many keys hold entries.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

func (c *Cache) Stats() Stats {
	return Stats{
		Hits:          c.hits.Load(),
		Misses:        c.misses.Load(),
		DedupJoins:    c.dedupJoins.Load(),
		StaleDiscards: c.staleDiscards.Load(),
		Refetches:     c.refetches.Load(),
		Invalidations: c.invalidations.Load(),
		Purges:        c.purges.Load(),
	}
}

func (c *Cache) ensureLocked(key string) *entry {
	e, ok := c.entries[key]
	if !ok {
		e = &entry{}
		c.entries[key] = e
	}
	return e
}

func (c *Cache) beginLocked(e *entry) *flight {
	e.seq++
	f := &flight{done: make(chan struct{}), seq: e.seq, epoch: c.epoch}
	e.inflight = f
	if e.status != StatusSuccess {
		e.status = StatusPending
	}
	return f
}

func (c *Cache) run(ctx context.Context, key string, e *entry, f *flight, fn FetchFunc) (any, error) {
	data, err := fn(ctx)

	c.mu.Lock()
	f.data, f.err = data, err
	close(f.done)

	current := c.entries[key] == e && c.epoch == f.epoch
	if current && f.seq > e.applied {
		e.applied = f.seq
		e.lastFetched = time.Now()
		if err == nil {
			e.status = StatusSuccess
			e.data = data
			e.err = nil
			// A response from a flight that predates the last invalidation
			// carries possibly outdated data; it stays marked stale.
			e.stale = f.seq <= e.invalid
		} else {
			// Keep previously resolved data visible; the error rides along.
			e.err = err
			if e.status != StatusSuccess {
				e.status = StatusError
			}
		}
	} else {
		c.staleDiscards.Add(1)
	}
	if e.inflight == f {
		e.inflight = nil
	}
	c.mu.Unlock()

	return data, err
}

func (c *Cache) notifyLocked(key string) {
	for ch := range c.watchers[key] {
		select {
		case ch <- struct{}{}:
		default:
		}
	}
}

func (c *Cache) addWatcher(key string, ch chan struct{}) {
	c.mu.Lock()
	defer c.mu.Unlock()
	m, ok := c.watchers[key]
	if !ok {
		m = make(map[chan struct{}]struct{})
		c.watchers[key] = m
	}
	m[ch] = struct{}{}
}

func (c *Cache) removeWatcher(key string, ch chan struct{}) {
	c.mu.Lock()
	defer c.mu.Unlock()
	m, ok := c.watchers[key]
	if !ok {
		return
	}
	delete(m, ch)
	if len(m) == 0 {
		delete(c.watchers, key)
	}
}

func wait(ctx context.Context, f *flight) (any, error) {
	select {
	case <-f.done:
		return f.data, f.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}
