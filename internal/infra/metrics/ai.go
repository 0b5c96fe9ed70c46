package metrics

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
)

func init() { register(aiPromptTokens, aiCallsLatencyMs) }

var aiPromptTokens = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "ai_prompt_tokens",
		Help: "Sum of prompt tokens sent per provider/model (local runner only).",
	},
	[]string{"provider", "model"},
)

var aiCallsLatencyMs = prometheus.NewHistogramVec(
	prometheus.HistogramOpts{
		Name:    "ai_calls_latency_ms",
		Help:    "AI call latency distribution in milliseconds.",
		Buckets: []float64{100, 250, 500, 1000, 2000, 4000, 8000, 16000, 32000, 64000},
	},
	[]string{"provider", "model", "success"},
)

func ObserveAICall(provider, model string, promptTokens int, latencyMs int, success bool) {
	aiPromptTokens.WithLabelValues(norm(provider), norm(model)).Add(float64(promptTokens))
	aiCallsLatencyMs.WithLabelValues(norm(provider), norm(model), strconv.FormatBool(success)).
		Observe(float64(latencyMs))
}
