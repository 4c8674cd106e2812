package metrics

import "github.com/prometheus/client_golang/prometheus"

const namespace = "coach"

// CoachMetrics exposes counters/histograms for the chat pipeline and the demo gate.
type CoachMetrics struct {
	attemptsTotal    *prometheus.CounterVec
	retriesTotal     *prometheus.CounterVec
	responsesTotal   *prometheus.CounterVec
	suggestionsTotal *prometheus.CounterVec
	gateTotal        *prometheus.CounterVec
	exchangeLatency  *prometheus.HistogramVec
}

func NewCoachMetrics(reg prometheus.Registerer) *CoachMetrics {
	m := &CoachMetrics{
		attemptsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "pipeline",
			Name:      "completion_attempts_total",
			Help:      "Completion attempts by outcome (ok or error kind)",
		}, []string{"category", "outcome"}),
		retriesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "pipeline",
			Name:      "completion_retries_total",
			Help:      "Retries scheduled after a transient completion failure",
		}, []string{"kind"}),
		responsesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "pipeline",
			Name:      "responses_total",
			Help:      "Orchestrated calls by final status",
		}, []string{"category", "status"}),
		suggestionsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "pipeline",
			Name:      "suggestions_total",
			Help:      "Follow-up suggestions produced, by extraction path",
		}, []string{"source"}),
		gateTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "demo",
			Name:      "gate_decisions_total",
			Help:      "Interaction-budget decisions for demo sessions",
		}, []string{"decision"}),
		exchangeLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "pipeline",
			Name:      "response_latency_seconds",
			Help:      "End-to-end latency of orchestrated calls including retries",
			Buckets:   []float64{0.25, 0.5, 1, 2, 4, 8, 16, 32},
		}, []string{"category", "status"}),
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	reg.MustRegister(m.attemptsTotal, m.retriesTotal, m.responsesTotal, m.suggestionsTotal, m.gateTotal, m.exchangeLatency)
	return m
}

func (m *CoachMetrics) ObserveAttempt(category, outcome string) {
	if m == nil {
		return
	}
	m.attemptsTotal.WithLabelValues(category, outcome).Inc()
}

func (m *CoachMetrics) ObserveRetry(kind string) {
	if m == nil {
		return
	}
	m.retriesTotal.WithLabelValues(kind).Inc()
}

func (m *CoachMetrics) ObserveResponse(category, status string, seconds float64) {
	if m == nil {
		return
	}
	m.responsesTotal.WithLabelValues(category, status).Inc()
	m.exchangeLatency.WithLabelValues(category, status).Observe(seconds)
}

func (m *CoachMetrics) ObserveSuggestions(source string, count int) {
	if m == nil || count <= 0 {
		return
	}
	m.suggestionsTotal.WithLabelValues(source).Add(float64(count))
}

// ObserveGate records a gate decision: "allowed", "suggestions_hidden" or "signup_required".
func (m *CoachMetrics) ObserveGate(decision string) {
	if m == nil {
		return
	}
	m.gateTotal.WithLabelValues(decision).Inc()
}

// LLMMetrics tracks vendor completion latency and token usage.
type LLMMetrics struct {
	latency *prometheus.HistogramVec
	tokens  *prometheus.CounterVec
}

func NewLLMMetrics(reg prometheus.Registerer) *LLMMetrics {
	m := &LLMMetrics{
		latency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "llm",
			Name:      "latency_seconds",
			Help:      "Latency of LLM completions",
			Buckets:   prometheus.DefBuckets,
		}, []string{"model", "status"}),
		tokens: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "llm",
			Name:      "tokens_total",
			Help:      "Tokens consumed by LLM completions",
		}, []string{"model", "type"}),
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	reg.MustRegister(m.latency, m.tokens)
	return m
}

func (m *LLMMetrics) ObserveLatency(model, status string, seconds float64) {
	if m == nil {
		return
	}
	m.latency.WithLabelValues(model, status).Observe(seconds)
}

func (m *LLMMetrics) ObserveTokens(model string, input, output, total int32) {
	if m == nil {
		return
	}
	if input > 0 {
		m.tokens.WithLabelValues(model, "input").Add(float64(input))
	}
	if output > 0 {
		m.tokens.WithLabelValues(model, "output").Add(float64(output))
	}
	if total > 0 {
		m.tokens.WithLabelValues(model, "total").Add(float64(total))
	}
}
