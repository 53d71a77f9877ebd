package patterncache

import "time"

// Metrics is an interface for collection of the statistics of a pattern cache.
// Implementations must be safe for concurrent use.
type Metrics interface {
	// ObserveCompilation records a single compilation of a pattern, which took
	// dur.  ok is false if the pattern could not be compiled.
	ObserveCompilation(dur time.Duration, ok bool)

	// IncrementDiscarded adds n to the number of evicted entries.
	IncrementDiscarded(n int)

	// SetEntries sets the current number of cached entries.
	SetEntries(n int)
}

// EmptyMetrics is the implementation of the [Metrics] interface that does
// nothing.
type EmptyMetrics struct{}

// type check
var _ Metrics = EmptyMetrics{}

// ObserveCompilation implements the [Metrics] interface for EmptyMetrics.
func (EmptyMetrics) ObserveCompilation(_ time.Duration, _ bool) {}

// IncrementDiscarded implements the [Metrics] interface for EmptyMetrics.
func (EmptyMetrics) IncrementDiscarded(_ int) {}

// SetEntries implements the [Metrics] interface for EmptyMetrics.
func (EmptyMetrics) SetEntries(_ int) {}
