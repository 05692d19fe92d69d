package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	once sync.Once

	RegimesEmitted = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "volregime",
			Subsystem: "classifier",
			Name:      "regimes_total",
			Help:      "Regime labels emitted by DetectRegime",
		},
		[]string{"regime"},
	)

	DetectLatency = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "volregime",
			Subsystem: "classifier",
			Name:      "detect_seconds",
			Help:      "Latency of DetectRegime",
			Buckets:   []float64{.0005, .001, .0025, .005, .01, .025, .05, .1, .25, .5, 1},
		},
	)

	ComponentFaults = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "volregime",
			Subsystem: "classifier",
			Name:      "component_faults_total",
			Help:      "Recovered panics or degraded results per component",
		},
		[]string{"component"},
	)

	StoreErrors = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "volregime",
			Subsystem: "breakout_store",
			Name:      "errors_total",
			Help:      "Breakout store failures by operation",
		},
		[]string{"op"},
	)

	BreakoutsRecorded = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "volregime",
			Subsystem: "breakout_store",
			Name:      "recorded_total",
			Help:      "Breakout events recorded by type",
		},
		[]string{"type"},
	)

	CacheLookups = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "volregime",
			Subsystem: "breakout_store",
			Name:      "cache_lookups_total",
			Help:      "Breakout cache lookups by result",
		},
		[]string{"result"},
	)

	BreakerState = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "volregime",
			Subsystem: "breakout_store",
			Name:      "breaker_state",
			Help:      "Store circuit breaker state (0 closed, 1 half-open, 2 open)",
		},
	)

	TrackedPairs = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "volregime",
			Subsystem: "tracking",
			Name:      "pairs",
			Help:      "Symbol x timeframe pairs with live metric histories",
		},
	)
)

// Register adds all collectors to the default registry once
func Register() {
	once.Do(func() {
		prometheus.MustRegister(
			RegimesEmitted,
			DetectLatency,
			ComponentFaults,
			StoreErrors,
			BreakoutsRecorded,
			CacheLookups,
			BreakerState,
			TrackedPairs,
		)
	})
}
