package metrics_test

import (
	"strings"
	"testing"
	"time"

	"github.com/AdguardTeam/blockengine/internal/metrics"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPatternCache(t *testing.T) {
	t.Parallel()

	reg := prometheus.NewRegistry()
	m, err := metrics.NewPatternCache(metrics.Namespace, reg)
	require.NoError(t, err)

	m.ObserveCompilation(time.Millisecond, true)
	m.ObserveCompilation(time.Millisecond, false)
	m.IncrementDiscarded(3)
	m.IncrementDiscarded(0)
	m.SetEntries(5)

	const want = `
# HELP blockengine_pattern_cache_discarded_total The total number of compiled patterns evicted from the cache.
# TYPE blockengine_pattern_cache_discarded_total counter
blockengine_pattern_cache_discarded_total 3
# HELP blockengine_pattern_cache_entries The number of compiled patterns in the cache.
# TYPE blockengine_pattern_cache_entries gauge
blockengine_pattern_cache_entries 5
`

	err = testutil.GatherAndCompare(
		reg,
		strings.NewReader(want),
		"blockengine_pattern_cache_discarded_total",
		"blockengine_pattern_cache_entries",
	)
	assert.NoError(t, err)

	n, err := testutil.GatherAndCount(reg, "blockengine_pattern_cache_compile_duration_seconds")
	require.NoError(t, err)

	assert.Equal(t, 2, n)

	t.Run("duplicate", func(t *testing.T) {
		_, err = metrics.NewPatternCache(metrics.Namespace, reg)
		assert.Error(t, err)
	})
}

func TestSetUpGauge(t *testing.T) {
	t.Parallel()

	reg := prometheus.NewRegistry()
	err := metrics.SetUpGauge(metrics.Namespace, reg, "v1.0.0")
	require.NoError(t, err)

	const want = `
# HELP blockengine_up A metric with a constant '1' value labeled by the version of the program.
# TYPE blockengine_up gauge
blockengine_up{version="v1.0.0"} 1
`

	err = testutil.GatherAndCompare(reg, strings.NewReader(want), "blockengine_up")
	assert.NoError(t, err)
}
