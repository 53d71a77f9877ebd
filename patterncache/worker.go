package patterncache

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/AdguardTeam/golibs/errors"
	"github.com/AdguardTeam/golibs/logutil/slogutil"
	"github.com/AdguardTeam/golibs/service"
)

// type check
var _ service.Interface = (*Cache)(nil)

// Start implements the [service.Interface] interface for *Cache.  It starts the
// background cleanup if the policy has a cleanup interval.
func (c *Cache) Start(ctx context.Context) (err error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.started {
		return errors.Error("pattern cache already started")
	}

	c.started = true
	c.restartWorkerLocked()

	return nil
}

// Shutdown implements the [service.Interface] interface for *Cache.  It stops
// the background cleanup and waits for it to exit.
func (c *Cache) Shutdown(ctx context.Context) (err error) {
	c.mu.Lock()
	c.started = false
	done := c.stopWorkerLocked()
	c.mu.Unlock()

	if done == nil {
		return nil
	}

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("waiting for cleanup worker: %w", ctx.Err())
	}
}

// SetDiscardPolicy sets a new discard policy.  The running cleanup worker, if
// any, is replaced by one with the new interval; a zero interval leaves no
// worker running.  The new eviction duration applies from the next cleanup.
func (c *Cache) SetDiscardPolicy(p DiscardPolicy) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.policy = p
	if c.started {
		c.restartWorkerLocked()
	}

	c.logger.Debug(
		"discard policy set",
		"cleanup_interval", p.CleanupInterval,
		"discard_unused_after", p.DiscardUnusedAfter,
	)
}

// restartWorkerLocked stops the current worker and starts a new one if the
// policy requires it.  c.mu must be locked.
func (c *Cache) restartWorkerLocked() {
	_ = c.stopWorkerLocked()

	ivl := c.policy.CleanupInterval
	if ivl <= 0 {
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})

	c.stopWorker = cancel
	c.workerDone = done

	go c.cleanupLoop(ctx, ivl, done)
}

// stopWorkerLocked cancels the current worker, if any, and returns the channel
// closed on its exit.  c.mu must be locked.
func (c *Cache) stopWorkerLocked() (done <-chan struct{}) {
	if c.stopWorker == nil {
		return nil
	}

	c.stopWorker()
	done = c.workerDone

	c.stopWorker, c.workerDone = nil, nil

	return done
}

// cleanupLoop runs [Cache.Refresh] every ivl until ctx is canceled.  It is
// intended to be used as a goroutine.
func (c *Cache) cleanupLoop(ctx context.Context, ivl time.Duration, done chan<- struct{}) {
	defer close(done)
	defer func() {
		err := errors.FromRecovered(recover())
		if err == nil {
			return
		}

		c.logger.ErrorContext(ctx, "recovered panic", slogutil.KeyError, err)
		slogutil.PrintStack(ctx, c.logger, slog.LevelError)
	}()

	ticker := time.NewTicker(ivl)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			_ = c.Refresh(ctx)
		}
	}
}
