package querycache

import (
	"context"
	"sync"
	"time"
)

// Subscription drives a scheduled refetch loop for one key and delivers the
// latest Result to its consumer. Between refetches the previous value stays
// visible; a background refresh never flashes the key back to pending.
type Subscription struct {
	cache    *Cache
	key      string
	fn       FetchFunc
	interval time.Duration

	updates  chan Result
	nudge    chan struct{}
	stop     chan struct{}
	stopOnce sync.Once
}

// Subscribe starts a refetch loop for key. An interval <= 0 disables the
// timer; the subscription then refetches only when the key is invalidated.
// Callers must release the loop with [Subscription.Stop].
func (c *Cache) Subscribe(key string, fn FetchFunc, interval time.Duration) *Subscription {
	s := &Subscription{
		cache:    c,
		key:      key,
		fn:       fn,
		interval: interval,
		updates:  make(chan Result, 1),
		nudge:    make(chan struct{}, 1),
		stop:     make(chan struct{}),
	}
	c.addWatcher(key, s.nudge)
	go s.loop()
	return s
}

// Updates delivers the most recent Result for the key. Intermediate results
// may be dropped under a slow consumer; the latest is never lost.
func (s *Subscription) Updates() <-chan Result {
	return s.updates
}

// Key reports which cache key this subscription follows.
func (s *Subscription) Key() string {
	return s.key
}

// Stop ends the refetch loop. An in-flight fetch is not aborted; its result
// is simply no longer delivered here.
func (s *Subscription) Stop() {
	s.stopOnce.Do(func() {
		close(s.stop)
		s.cache.removeWatcher(s.key, s.nudge)
	})
}

func (s *Subscription) loop() {
	// The initial load dedupes with any other caller already fetching the
	// key; only later cycles force a refetch.
	s.refresh(false)

	var tick <-chan time.Time
	if s.interval > 0 {
		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()
		tick = ticker.C
	}

	for {
		select {
		case <-s.stop:
			return
		case <-tick:
			s.refresh(true)
		case <-s.nudge:
			s.refresh(true)
		}
	}
}

func (s *Subscription) refresh(force bool) {
	ctx := context.Background()
	if force {
		_, _ = s.cache.Refetch(ctx, s.key, s.fn)
	} else {
		_, _ = s.cache.Fetch(ctx, s.key, s.fn)
	}

	// Publish the applied view, which is the old data when this response
	// lost the sequence race.
	r, ok := s.cache.Peek(s.key)
	if !ok {
		r = Result{Key: s.key, Status: StatusIdle}
	}
	s.publish(r)
}

// publish keeps only the latest value in the buffer. Single producer: the
// loop goroutine.
func (s *Subscription) publish(r Result) {
	for {
		select {
		case s.updates <- r:
			return
		default:
			select {
			case <-s.updates:
			default:
			}
		}
	}
}
