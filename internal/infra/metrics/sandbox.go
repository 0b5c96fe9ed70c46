package metrics

import "github.com/prometheus/client_golang/prometheus"

func init() { register(sandboxAcquireSeconds, sandboxReleasesTotal) }

var sandboxAcquireSeconds = prometheus.NewHistogramVec(
	prometheus.HistogramOpts{
		Name:    "sandbox_acquire_seconds",
		Help:    "Sandbox provisioning latency, including cold starts.",
		Buckets: []float64{0.5, 1, 2, 5, 10, 20, 40, 80, 120},
	},
	[]string{"success"},
)

var sandboxReleasesTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "sandbox_releases_total",
		Help: "Sandbox teardown attempts by outcome.",
	},
	[]string{"outcome"}, // 'released', 'noop', 'error'
)

func ObserveSandboxAcquire(seconds float64, success bool) {
	label := "false"
	if success {
		label = "true"
	}
	sandboxAcquireSeconds.WithLabelValues(label).Observe(seconds)
}

func IncSandboxRelease(outcome string) {
	sandboxReleasesTotal.WithLabelValues(norm(outcome)).Inc()
}
