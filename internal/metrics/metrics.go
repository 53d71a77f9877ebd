// Package metrics contains the Prometheus implementations of the metrics
// interfaces of the engine.
package metrics

import (
	"fmt"

	"github.com/AdguardTeam/golibs/errors"
	"github.com/prometheus/client_golang/prometheus"
)

// Namespace is the default namespace of the metrics.
const Namespace = "blockengine"

// subsystemPatternCache is the subsystem of the pattern cache metrics.
const subsystemPatternCache = "pattern_cache"

// SetUpGauge signals that the program has started.
func SetUpGauge(namespace string, reg prometheus.Registerer, version string) (err error) {
	g := prometheus.NewGauge(prometheus.GaugeOpts{
		Name:        "up",
		Namespace:   namespace,
		Help:        "A metric with a constant '1' value labeled by the version of the program.",
		ConstLabels: prometheus.Labels{"version": version},
	})

	err = reg.Register(g)
	if err != nil {
		return fmt.Errorf("registering up gauge: %w", err)
	}

	g.Set(1)

	return nil
}

// registerAll registers every collector in collectors and returns the joined
// errors, if any.
func registerAll(reg prometheus.Registerer, collectors map[string]prometheus.Collector) (err error) {
	var errs []error
	for key, c := range collectors {
		err = reg.Register(c)
		if err != nil {
			errs = append(errs, fmt.Errorf("registering metrics %q: %w", key, err))
		}
	}

	return errors.Join(errs...)
}
