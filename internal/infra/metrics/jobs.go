package metrics

import "github.com/prometheus/client_golang/prometheus"

func init() { register(jobsSubmittedTotal, jobsProcessedTotal, jobDurationSeconds) }

var jobsSubmittedTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "jobs_submitted_total",
		Help: "Total number of jobs accepted for dispatch, labeled by mode.",
	},
	[]string{"mode"},
)

var jobsProcessedTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "jobs_processed_total",
		Help: "Total number of jobs driven to a terminal state, labeled by mode and status.",
	},
	[]string{"mode", "status"}, // 'completed', 'failed'
)

var jobDurationSeconds = prometheus.NewHistogramVec(
	prometheus.HistogramOpts{
		Name:    "job_duration_seconds",
		Help:    "End-to-end execution-path duration per job.",
		Buckets: []float64{0.5, 1, 2, 5, 10, 20, 40, 80, 160},
	},
	[]string{"mode"},
)

func IncJobSubmitted(mode string) {
	jobsSubmittedTotal.WithLabelValues(norm(mode)).Inc()
}

func ObserveJob(mode, status string, seconds float64) {
	jobsProcessedTotal.WithLabelValues(norm(mode), norm(status)).Inc()
	jobDurationSeconds.WithLabelValues(norm(mode)).Observe(seconds)
}
