// Package metrics exposes Prometheus collectors for compilation and execution.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Registry holds every graph compiler collector. Callers may serve it or gather it
// into their own registry.
var Registry = prometheus.NewRegistry()

var (
	// CompileDuration tracks the latency of whole compilations in seconds.
	CompileDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "graphc_compile_duration_seconds",
			Help:    "Duration of program compilation in seconds",
			Buckets: prometheus.ExponentialBuckets(1e-5, 4, 10), // 10us to ~2.6s
		},
	)

	// KernelCache counts kernel cache lookups by result (hit/miss).
	KernelCache = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "graphc_kernel_cache_total",
			Help: "Kernel cache lookups by result",
		},
		[]string{"result"},
	)

	// Fusions counts graph rewrites by pass.
	Fusions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "graphc_fusions_total",
			Help: "Nodes eliminated by optimization passes",
		},
		[]string{"pass"},
	)

	// ExecuteDuration tracks the latency of network executions in seconds.
	ExecuteDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "graphc_execute_duration_seconds",
			Help:    "Duration of network execution in seconds",
			Buckets: prometheus.ExponentialBuckets(1e-6, 4, 12), // 1us to ~4s
		},
	)

	// Executions counts network executions by result (success/failure).
	Executions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "graphc_execute_total",
			Help: "Network executions by result",
		},
		[]string{"result"},
	)

	// AllocatedBytes reports the bytes currently held by engines.
	AllocatedBytes = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "graphc_allocated_bytes",
			Help: "Bytes currently allocated by engines",
		},
	)
)

func init() {
	Registry.MustRegister(
		CompileDuration,
		KernelCache,
		Fusions,
		ExecuteDuration,
		Executions,
		AllocatedBytes,
	)
}

// ObserveCompile records one compilation.
func ObserveCompile(elapsed time.Duration) {
	CompileDuration.Observe(elapsed.Seconds())
}

// RecordCacheHit increments the kernel cache hit counter.
func RecordCacheHit() {
	KernelCache.WithLabelValues("hit").Inc()
}

// RecordCacheMiss increments the kernel cache miss counter.
func RecordCacheMiss() {
	KernelCache.WithLabelValues("miss").Inc()
}

// RecordRewrites adds n eliminated nodes for pass.
func RecordRewrites(pass string, n int) {
	if n > 0 {
		Fusions.WithLabelValues(pass).Add(float64(n))
	}
}

// ObserveExecute records one execution and its outcome.
func ObserveExecute(elapsed time.Duration, err error) {
	ExecuteDuration.Observe(elapsed.Seconds())
	if err != nil {
		Executions.WithLabelValues("failure").Inc()
		return
	}
	Executions.WithLabelValues("success").Inc()
}
