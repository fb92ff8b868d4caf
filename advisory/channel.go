package advisory

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/mdobak/go-xerrors"

	"coach/log"
)

// Origin says where a Channel result came from.
type Origin int

const (
	FromCache Origin = iota
	Throttled
	FromService
	Failed
	// CachedFallback is a cache hit on a value that came from the fallback.
	CachedFallback
)

func (o Origin) String() string {
	switch o {
	case FromCache:
		return "cache"
	case Throttled:
		return "throttled"
	case FromService:
		return "service"
	case Failed:
		return "failed"
	case CachedFallback:
		return "cache_fallback"
	}
	return "unknown"
}

type Config struct {
	Name        string
	TTL         time.Duration
	MinInterval time.Duration
	MaxEntries  int
}

var (
	ClassifyConfig = Config{Name: "classify", TTL: 2 * time.Second, MinInterval: time.Second, MaxEntries: 50}
	TipConfig      = Config{Name: "tip", TTL: 3 * time.Second, MinInterval: 2 * time.Second, MaxEntries: 30}
)

type Stats struct {
	Hits      int
	Throttled int
	Calls     int
	Failures  int
	Entries   int
}

type entry[T any] struct {
	value    T
	cachedAt time.Time
	fallback bool
}

// Channel is a signature-keyed TTL cache combined with a minimum interval
// between service invocations. Results that bypass the service (throttled or
// failed calls) are cached like real ones.
type Channel[T any] struct {
	cfg Config

	mu             sync.Mutex
	entries        map[string]entry[T]
	lastInvocation time.Time
	stats          Stats
}

func NewChannel[T any](cfg Config) *Channel[T] {
	return &Channel[T]{cfg: cfg, entries: make(map[string]entry[T])}
}

func (c *Channel[T]) Name() string { return c.cfg.Name }

// Do resolves sig from the cache, the fallback, or the service, in that
// order. The service is invoked without holding the lock.
func (c *Channel[T]) Do(ctx context.Context, now time.Time, sig string, call func(context.Context) (T, error), fallback func() T) (T, Origin) {
	c.mu.Lock()
	if e, ok := c.entries[sig]; ok && now.Sub(e.cachedAt) < c.cfg.TTL {
		c.stats.Hits++
		c.mu.Unlock()
		origin := FromCache
		if e.fallback {
			origin = CachedFallback
		}
		c.trace(sig, origin, 0)
		return e.value, origin
	}
	if !c.lastInvocation.IsZero() && now.Sub(c.lastInvocation) < c.cfg.MinInterval {
		v := fallback()
		c.storeLocked(now, sig, v, true)
		c.stats.Throttled++
		c.mu.Unlock()
		c.trace(sig, Throttled, 0)
		return v, Throttled
	}
	c.lastInvocation = now
	c.stats.Calls++
	c.mu.Unlock()

	start := time.Now()
	v, err := call(ctx)
	origin := FromService
	if err != nil {
		err = xerrors.New(fmt.Errorf("%s call: %w", c.cfg.Name, err))
		log.AdvisoryFailure(c.cfg.Name, err, fmt.Sprint(xerrors.StackTrace(err)))
		v = fallback()
		origin = Failed
	}
	latency := float64(time.Since(start).Microseconds()) / 1000

	c.mu.Lock()
	if origin == Failed {
		c.stats.Failures++
	}
	c.storeLocked(now, sig, v, origin == Failed)
	c.mu.Unlock()
	c.trace(sig, origin, latency)
	return v, origin
}

func (c *Channel[T]) storeLocked(now time.Time, sig string, v T, fallback bool) {
	c.entries[sig] = entry[T]{value: v, cachedAt: now, fallback: fallback}
	if len(c.entries) <= c.cfg.MaxEntries {
		return
	}
	for k, e := range c.entries {
		if now.Sub(e.cachedAt) > 2*c.cfg.TTL {
			delete(c.entries, k)
		}
	}
}

func (c *Channel[T]) trace(sig string, o Origin, latencyMs float64) {
	log.AdvisoryCall(log.AdvisoryData{
		Channel:   c.cfg.Name,
		Origin:    o.String(),
		Signature: sig,
		LatencyMs: latencyMs,
	})
}

// ResetGate forgets the last invocation so the next miss may call the service.
func (c *Channel[T]) ResetGate() {
	c.mu.Lock()
	c.lastInvocation = time.Time{}
	c.mu.Unlock()
}

func (c *Channel[T]) Purge() {
	c.mu.Lock()
	clear(c.entries)
	c.mu.Unlock()
}

func (c *Channel[T]) Stats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()
	s := c.stats
	s.Entries = len(c.entries)
	return s
}

func (c *Channel[T]) LastInvocation() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastInvocation
}
