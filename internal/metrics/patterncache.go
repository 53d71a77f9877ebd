package metrics

import (
	"strconv"
	"time"

	"github.com/AdguardTeam/blockengine/patterncache"
	"github.com/prometheus/client_golang/prometheus"
)

// PatternCache is the Prometheus-based implementation of the
// [patterncache.Metrics] interface.
type PatternCache struct {
	// compileDuration is a histogram of pattern compilation durations labeled
	// by the result.
	compileDuration *prometheus.HistogramVec

	// discarded is the total number of evicted patterns.
	discarded prometheus.Counter

	// entries is the current number of cached patterns.
	entries prometheus.Gauge
}

// NewPatternCache registers the pattern cache metrics in reg and returns a
// properly initialized *PatternCache.
func NewPatternCache(namespace string, reg prometheus.Registerer) (m *PatternCache, err error) {
	const (
		compileDuration = "compile_duration_seconds"
		discarded       = "discarded_total"
		entries         = "entries"
	)

	m = &PatternCache{
		compileDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:      compileDuration,
			Subsystem: subsystemPatternCache,
			Namespace: namespace,
			Help:      "Time elapsed on compiling rule patterns.",
			Buckets:   []float64{0.00001, 0.0001, 0.001, 0.01, 0.1},
		}, []string{"valid"}),
		discarded: prometheus.NewCounter(prometheus.CounterOpts{
			Name:      discarded,
			Subsystem: subsystemPatternCache,
			Namespace: namespace,
			Help:      "The total number of compiled patterns evicted from the cache.",
		}),
		entries: prometheus.NewGauge(prometheus.GaugeOpts{
			Name:      entries,
			Subsystem: subsystemPatternCache,
			Namespace: namespace,
			Help:      "The number of compiled patterns in the cache.",
		}),
	}

	err = registerAll(reg, map[string]prometheus.Collector{
		compileDuration: m.compileDuration,
		discarded:       m.discarded,
		entries:         m.entries,
	})
	if err != nil {
		return nil, err
	}

	return m, nil
}

// type check
var _ patterncache.Metrics = (*PatternCache)(nil)

// ObserveCompilation implements the [patterncache.Metrics] interface for
// *PatternCache.
func (m *PatternCache) ObserveCompilation(dur time.Duration, ok bool) {
	m.compileDuration.WithLabelValues(strconv.FormatBool(ok)).Observe(dur.Seconds())
}

// IncrementDiscarded implements the [patterncache.Metrics] interface for
// *PatternCache.
func (m *PatternCache) IncrementDiscarded(n int) {
	m.discarded.Add(float64(n))
}

// SetEntries implements the [patterncache.Metrics] interface for
// *PatternCache.
func (m *PatternCache) SetEntries(n int) {
	m.entries.Set(float64(n))
}
