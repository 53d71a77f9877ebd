// Package patterncache contains the cache of compiled rule patterns.  Patterns
// are compiled lazily on the first match attempt and can be evicted after a
// period of inactivity.
package patterncache

import (
	"context"
	"log/slog"
	"regexp"
	"sync"
	"time"

	"github.com/AdguardTeam/blockengine/rules"
	"github.com/AdguardTeam/golibs/logutil/slogutil"
	"github.com/AdguardTeam/golibs/service"
	"github.com/AdguardTeam/golibs/timeutil"
)

// DiscardPolicy defines when the unused compiled patterns are evicted.
type DiscardPolicy struct {
	// CleanupInterval is the period of the background cleanup.  Zero means
	// that there is no background cleanup.
	CleanupInterval time.Duration

	// DiscardUnusedAfter is the duration after the last use after which an
	// entry is evicted.  Zero means that entries are never evicted by the
	// cleanup.
	DiscardUnusedAfter time.Duration
}

// Config is the configuration of a pattern cache.
type Config struct {
	// Logger is used for logging the operation of the cache.  It must not be
	// nil.
	Logger *slog.Logger

	// Clock is used to get the time of use of the entries.  It must not be
	// nil.
	Clock timeutil.Clock

	// Metrics are the metrics of the cache.  It must not be nil.
	Metrics Metrics

	// Policy is the initial discard policy.
	Policy DiscardPolicy

	// KeepPatterns makes [Cache.DebugSnapshot] include the pattern texts.
	KeepPatterns bool
}

// entry is a single compiled pattern.
type entry struct {
	// re is the compiled pattern.  It is nil if the pattern is invalid.
	re *regexp.Regexp

	// lastUse is the time of the last lookup of the entry.
	lastUse time.Time

	// pattern is the text of the pattern.
	pattern string

	// usage is the number of lookups of the entry.
	usage uint64
}

// Cache is a cache of compiled rule patterns keyed by rule IDs.  A single
// coarse lock protects the table; compilation happens outside of it.
type Cache struct {
	logger  *slog.Logger
	clock   timeutil.Clock
	metrics Metrics

	// mu protects entries, policy, started, stopWorker, and workerDone.
	mu *sync.Mutex

	entries map[uint64]*entry
	policy  DiscardPolicy

	// stopWorker stops the current cleanup worker, if any.
	stopWorker context.CancelFunc

	// workerDone is closed when the current cleanup worker exits.
	workerDone chan struct{}

	started      bool
	keepPatterns bool
}

// New returns a new pattern cache.  c must not be nil.  The background cleanup
// does not run until [Cache.Start] is called.
func New(c *Config) (cache *Cache) {
	return &Cache{
		logger:       c.Logger,
		clock:        c.Clock,
		metrics:      c.Metrics,
		mu:           &sync.Mutex{},
		entries:      map[uint64]*entry{},
		policy:       c.Policy,
		keepPatterns: c.KeepPatterns,
	}
}

// type check
var _ rules.RegexpCache = (*Cache)(nil)

// GetOrCompile implements the [rules.RegexpCache] interface for *Cache.  An
// invalid pattern is cached as well, so that it is compiled only once.
func (c *Cache) GetOrCompile(id uint64, expr string) (re *regexp.Regexp, ok bool) {
	now := c.clock.Now()
	if re, ok = c.lookup(id, expr, now); ok {
		return re, re != nil
	}

	re, err := regexp.Compile(expr)
	c.metrics.ObserveCompilation(c.clock.Now().Sub(now), err == nil)
	if err != nil {
		c.logger.Debug("compiling pattern", "id", id, slogutil.KeyError, err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	// Another goroutine could have compiled the same pattern meanwhile.
	if e, has := c.entries[id]; has && e.pattern == expr {
		e.lastUse = now
		e.usage++

		return e.re, e.re != nil
	}

	c.entries[id] = &entry{
		re:      re,
		lastUse: now,
		pattern: expr,
		usage:   1,
	}
	c.metrics.SetEntries(len(c.entries))

	return re, re != nil
}

// lookup returns the cached entry for id and updates its usage.  ok is false
// if there is no entry with the same pattern.
func (c *Cache) lookup(id uint64, expr string, now time.Time) (re *regexp.Regexp, ok bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[id]
	if !ok || e.pattern != expr {
		return nil, false
	}

	e.lastUse = now
	e.usage++

	return e.re, true
}

// Discard removes the entry for id, if any.  The pattern is compiled again on
// the next use.
func (c *Cache) Discard(id uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, ok := c.entries[id]; !ok {
		return
	}

	delete(c.entries, id)
	c.metrics.IncrementDiscarded(1)
	c.metrics.SetEntries(len(c.entries))
}

// Clear removes all entries.
func (c *Cache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()

	n := len(c.entries)
	clear(c.entries)

	c.metrics.IncrementDiscarded(n)
	c.metrics.SetEntries(0)
}

// Len returns the number of cached entries.
func (c *Cache) Len() (n int) {
	c.mu.Lock()
	defer c.mu.Unlock()

	return len(c.entries)
}

// Policy returns the current discard policy.
func (c *Cache) Policy() (p DiscardPolicy) {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.policy
}

// Cleanup evicts the entries that haven't been used for longer than the
// current policy allows and returns the number of evicted entries.
func (c *Cache) Cleanup() (n int) {
	now := c.clock.Now()

	c.mu.Lock()
	defer c.mu.Unlock()

	ttl := c.policy.DiscardUnusedAfter
	if ttl <= 0 {
		return 0
	}

	for id, e := range c.entries {
		if now.Sub(e.lastUse) >= ttl {
			delete(c.entries, id)
			n++
		}
	}

	if n > 0 {
		c.metrics.IncrementDiscarded(n)
		c.metrics.SetEntries(len(c.entries))
	}

	return n
}

// type check
var _ service.Refresher = (*Cache)(nil)

// Refresh implements the [service.Refresher] interface for *Cache.  It runs a
// single cleanup and never returns an error.
func (c *Cache) Refresh(ctx context.Context) (err error) {
	n := c.Cleanup()
	c.logger.Log(ctx, slogutil.LevelTrace, "cleanup finished", "evicted", n)

	return nil
}
