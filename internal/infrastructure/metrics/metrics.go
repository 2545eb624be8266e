package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Chat API metrics
var (
	// Request counters
	RequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "convo",
			Subsystem: "chat_api",
			Name:      "requests_total",
			Help:      "Total number of HTTP requests",
		},
		[]string{"method", "endpoint", "status", "model"},
	)

	// Request duration histogram
	RequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "convo",
			Subsystem: "chat_api",
			Name:      "request_duration_seconds",
			Help:      "HTTP request duration in seconds",
			Buckets:   []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60},
		},
		[]string{"method", "endpoint", "status"},
	)

	// Chats
	ChatsCreatedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: "convo",
			Subsystem: "chat_api",
			Name:      "chats_created_total",
			Help:      "Total chats created",
		},
	)

	// Quota rejections
	QuotaRejectionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "convo",
			Subsystem: "chat_api",
			Name:      "quota_rejections_total",
			Help:      "Requests rejected for exceeding the message quota",
		},
		[]string{"user_type"},
	)

	// Fired operation budgets
	BudgetTimeoutsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "convo",
			Subsystem: "chat_api",
			Name:      "budget_timeouts_total",
			Help:      "Guarded operations abandoned after their budget fired",
		},
		[]string{"operation"},
	)

	// Provider errors
	ProviderErrorsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "convo",
			Subsystem: "chat_api",
			Name:      "provider_errors_total",
			Help:      "Total provider call failures",
		},
		[]string{"provider", "error_type"},
	)

	// Token counters
	TokensPromptTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "convo",
			Subsystem: "chat_api",
			Name:      "tokens_prompt_total",
			Help:      "Total prompt tokens consumed",
		},
		[]string{"model", "provider"},
	)

	TokensCompletionTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "convo",
			Subsystem: "chat_api",
			Name:      "tokens_completion_total",
			Help:      "Total completion tokens generated",
		},
		[]string{"model", "provider"},
	)

	// Time to first token (streaming)
	FirstTokenDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "convo",
			Subsystem: "chat_api",
			Name:      "first_token_seconds",
			Help:      "Time to first token for streaming requests",
			Buckets:   []float64{0.1, 0.25, 0.5, 1, 2, 5},
		},
		[]string{"model", "provider"},
	)

	// Active streaming connections gauge
	ActiveStreams = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: "convo",
			Subsystem: "chat_api",
			Name:      "active_streams",
			Help:      "Currently active streaming connections",
		},
		[]string{"model"},
	)

	// Tool execution
	ToolCallsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "convo",
			Subsystem: "chat_api",
			Name:      "tool_calls_total",
			Help:      "Tool executions by tool name and outcome",
		},
		[]string{"tool", "status"},
	)

	// Post-stream persistence outcomes
	PersistenceFailuresTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "convo",
			Subsystem: "chat_api",
			Name:      "persistence_failures_total",
			Help:      "Best-effort persistence tasks that failed after streaming",
		},
		[]string{"task"},
	)

	// Stream marker pruning
	StreamMarkersPrunedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: "convo",
			Subsystem: "chat_api",
			Name:      "stream_markers_pruned_total",
			Help:      "Resumption markers removed by the pruning job",
		},
	)
)

// RecordRequest records an HTTP request with all relevant labels
func RecordRequest(method, endpoint, status, model string, durationSec float64) {
	RequestsTotal.WithLabelValues(method, endpoint, status, model).Inc()
	RequestDuration.WithLabelValues(method, endpoint, status).Observe(durationSec)
}

// RecordTokens records token usage for a completion request
func RecordTokens(model, provider string, promptTokens, completionTokens int) {
	TokensPromptTotal.WithLabelValues(model, provider).Add(float64(promptTokens))
	TokensCompletionTotal.WithLabelValues(model, provider).Add(float64(completionTokens))
}

// RecordToolCall records one tool execution outcome
func RecordToolCall(tool string, err error) {
	status := "ok"
	if err != nil {
		status = "error"
	}
	ToolCallsTotal.WithLabelValues(tool, status).Inc()
}
