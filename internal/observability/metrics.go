package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics collects the Prometheus counters and histograms the Agent loop,
// LLM providers, and Tool Registry emit: loop iterations, LLM request
// latency/tokens, tool execution latency, compaction runs, and errors by
// component.
type Metrics struct {
	// LoopIterations counts Agent loop iterations by outcome
	// (tool_use|end_turn|iteration_cap|error).
	LoopIterations *prometheus.CounterVec

	// LLMRequestDuration measures provider Stream/Complete call latency.
	// Labels: provider, model.
	LLMRequestDuration *prometheus.HistogramVec

	// LLMRequestCounter counts provider calls by status (success|error).
	// Labels: provider, model, status.
	LLMRequestCounter *prometheus.CounterVec

	// LLMTokensUsed tracks token consumption by type (input|output).
	// Labels: provider, model, type.
	LLMTokensUsed *prometheus.CounterVec

	// ToolExecutionCounter counts tool invocations by status.
	// Labels: tool_name, status (success|error).
	ToolExecutionCounter *prometheus.CounterVec

	// ToolExecutionDuration measures Registry.Execute latency.
	// Labels: tool_name.
	ToolExecutionDuration *prometheus.HistogramVec

	// CompactionCounter counts Compactor runs by phase (1|2|none).
	CompactionCounter *prometheus.CounterVec

	// ContextWindowUsage observes the Token Counter's usage fraction after
	// every assistant turn.
	ContextWindowUsage prometheus.Histogram

	// ErrorCounter tracks errors by component and error kind.
	// Labels: component (provider|tool|event_store), error_kind.
	ErrorCounter *prometheus.CounterVec
}

// NewMetrics creates and registers every metric with Prometheus's default
// registry. Call once per process.
func NewMetrics() *Metrics {
	return &Metrics{
		LoopIterations: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "agentrt_loop_iterations_total",
				Help: "Agent loop iterations by outcome",
			},
			[]string{"outcome"},
		),
		LLMRequestDuration: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "agentrt_llm_request_duration_seconds",
				Help:    "Duration of LLM provider requests in seconds",
				Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60, 120},
			},
			[]string{"provider", "model"},
		),
		LLMRequestCounter: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "agentrt_llm_requests_total",
				Help: "Total LLM provider requests by status",
			},
			[]string{"provider", "model", "status"},
		),
		LLMTokensUsed: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "agentrt_llm_tokens_total",
				Help: "Tokens consumed by provider, model, and type",
			},
			[]string{"provider", "model", "type"},
		),
		ToolExecutionCounter: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "agentrt_tool_executions_total",
				Help: "Total tool executions by tool name and status",
			},
			[]string{"tool_name", "status"},
		),
		ToolExecutionDuration: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "agentrt_tool_execution_duration_seconds",
				Help:    "Duration of tool executions in seconds",
				Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1, 5, 10, 30, 60},
			},
			[]string{"tool_name"},
		),
		CompactionCounter: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "agentrt_compactions_total",
				Help: "Compactor runs by phase",
			},
			[]string{"phase"},
		),
		ContextWindowUsage: promauto.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "agentrt_context_window_usage_fraction",
				Help:    "Usage fraction of the model context window after each assistant turn",
				Buckets: []float64{0.1, 0.25, 0.5, 0.7, 0.8, 0.9, 0.95, 1.0},
			},
		),
		ErrorCounter: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "agentrt_errors_total",
				Help: "Total errors by component and error kind",
			},
			[]string{"component", "error_kind"},
		),
	}
}

// RecordLLMRequest records the outcome of one provider call.
func (m *Metrics) RecordLLMRequest(provider, model, status string, durationSeconds float64, inputTokens, outputTokens int) {
	if m == nil {
		return
	}
	m.LLMRequestCounter.WithLabelValues(provider, model, status).Inc()
	m.LLMRequestDuration.WithLabelValues(provider, model).Observe(durationSeconds)
	if inputTokens > 0 {
		m.LLMTokensUsed.WithLabelValues(provider, model, "input").Add(float64(inputTokens))
	}
	if outputTokens > 0 {
		m.LLMTokensUsed.WithLabelValues(provider, model, "output").Add(float64(outputTokens))
	}
}

// RecordToolExecution records the outcome of one Registry.Execute call.
func (m *Metrics) RecordToolExecution(toolName, status string, durationSeconds float64) {
	if m == nil {
		return
	}
	m.ToolExecutionCounter.WithLabelValues(toolName, status).Inc()
	m.ToolExecutionDuration.WithLabelValues(toolName).Observe(durationSeconds)
}

// RecordCompaction records one Compactor.Compact call's outcome. phase is
// 0 (no-op), 1, or 2.
func (m *Metrics) RecordCompaction(phase int) {
	if m == nil {
		return
	}
	label := "none"
	switch phase {
	case 1:
		label = "1"
	case 2:
		label = "2"
	}
	m.CompactionCounter.WithLabelValues(label).Inc()
}

// RecordContextWindowUsage observes a usage fraction sample.
func (m *Metrics) RecordContextWindowUsage(fraction float64) {
	if m == nil {
		return
	}
	m.ContextWindowUsage.Observe(fraction)
}

// RecordError increments the error counter for a component and error kind.
func (m *Metrics) RecordError(component, errorKind string) {
	if m == nil {
		return
	}
	m.ErrorCounter.WithLabelValues(component, errorKind).Inc()
}

// RecordLoopIteration increments the loop-iteration counter for an outcome.
func (m *Metrics) RecordLoopIteration(outcome string) {
	if m == nil {
		return
	}
	m.LoopIterations.WithLabelValues(outcome).Inc()
}
