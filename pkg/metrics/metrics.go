// Package metrics provides Prometheus metrics instrumentation.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// RequestDuration tracks HTTP request duration.
	RequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "api_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10, 30, 60},
		},
		[]string{"method", "path", "status"},
	)

	// RequestsTotal tracks total HTTP requests.
	RequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "api_requests_total",
			Help: "Total HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	// CompletionDuration tracks LLM completion latency.
	CompletionDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "llm_completion_duration_seconds",
			Help:    "LLM completion request duration",
			Buckets: []float64{.25, .5, 1, 2, 5, 10, 20, 30, 60},
		},
		[]string{"provider", "status"},
	)

	// LLMTokensTotal tracks total LLM tokens processed.
	LLMTokensTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "llm_tokens_total",
			Help: "Total LLM tokens processed",
		},
		[]string{"model", "direction"},
	)

	// ChatPlatformCallsTotal tracks calls made to the chat platform.
	ChatPlatformCallsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chat_platform_calls_total",
			Help: "Total chat platform API calls",
		},
		[]string{"operation", "status"},
	)

	// RunsTotal tracks finished conversation runs.
	RunsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "conversation_runs_total",
			Help: "Total conversation runs by outcome",
		},
		[]string{"status", "code"},
	)

	// RunsInFlight tracks conversation runs currently executing.
	RunsInFlight = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "conversation_runs_in_flight",
			Help: "Number of conversation runs in progress",
		},
	)

	// TurnsTotal tracks delivered turns per persona.
	TurnsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "conversation_turns_total",
			Help: "Total conversation turns delivered",
		},
		[]string{"speaker"},
	)

	// UsersProvisionedTotal tracks create_user calls that issued a token.
	UsersProvisionedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "users_provisioned_total",
			Help: "Total users upserted with an issued token",
		},
	)

	// ChannelsCreatedTotal tracks create_chat calls.
	ChannelsCreatedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "channels_created_total",
			Help: "Total two-party channels created",
		},
	)
)

// RecordRequest records metrics for an HTTP request.
func RecordRequest(method, path, status string, duration float64) {
	RequestDuration.WithLabelValues(method, path, status).Observe(duration)
	RequestsTotal.WithLabelValues(method, path, status).Inc()
}

// RecordCompletion records metrics for a single LLM completion.
func RecordCompletion(provider, model, status string, duration float64, tokensIn, tokensOut int) {
	CompletionDuration.WithLabelValues(provider, status).Observe(duration)
	if model == "" {
		return
	}
	LLMTokensTotal.WithLabelValues(model, "in").Add(float64(tokensIn))
	LLMTokensTotal.WithLabelValues(model, "out").Add(float64(tokensOut))
}

// RecordPlatformCall records the outcome of a chat platform call.
func RecordPlatformCall(operation string, err error) {
	status := "ok"
	if err != nil {
		status = "error"
	}
	ChatPlatformCallsTotal.WithLabelValues(operation, status).Inc()
}

// RecordRun records the outcome of a finished conversation run.
func RecordRun(status, code string) {
	RunsTotal.WithLabelValues(status, code).Inc()
}
