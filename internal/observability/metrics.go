package observability

import (
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "haven"

// CostRates are USD per 1000 tokens.
type CostRates struct {
	InputPer1K  float64
	OutputPer1K float64
}

func (r CostRates) Cost(inputTokens, outputTokens int) float64 {
	cost := 0.0
	if inputTokens > 0 && r.InputPer1K > 0 {
		cost += float64(inputTokens) / 1000.0 * r.InputPer1K
	}
	if outputTokens > 0 && r.OutputPer1K > 0 {
		cost += float64(outputTokens) / 1000.0 * r.OutputPer1K
	}
	return cost
}

func CostRatesFromEnv() CostRates {
	return CostRates{
		InputPer1K:  parseFloatEnv("LLM_COST_INPUT_PER_1K", 0),
		OutputPer1K: parseFloatEnv("LLM_COST_OUTPUT_PER_1K", 0),
	}
}

// Metrics owns a private registry so tests can build as many as they like.
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	reg   *prometheus.Registry
	rates CostRates

	apiRequests    *prometheus.CounterVec
	apiLatency     *prometheus.HistogramVec
	apiInflight    prometheus.Gauge
	riskTiers      *prometheus.CounterVec
	gateRejections *prometheus.CounterVec
	stageLatency   *prometheus.HistogramVec
	llmRequests    *prometheus.CounterVec
	llmLatency     *prometheus.HistogramVec
	llmTokens      *prometheus.CounterVec
	llmCost        *prometheus.CounterVec
	retrievalHits  *prometheus.CounterVec
	confidenceGate *prometheus.CounterVec
	bgFailures     *prometheus.CounterVec
}

func NewMetrics(rates CostRates) *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	f := promauto.With(reg)

	return &Metrics{
		reg:   reg,
		rates: rates,
		apiRequests: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "api_requests_total",
			Help: "HTTP requests by method, route and status.",
		}, []string{"method", "route", "status"}),
		apiLatency: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace, Name: "api_request_duration_seconds",
			Help:    "HTTP request latency.",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "route", "status"}),
		apiInflight: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace, Name: "api_inflight_requests",
			Help: "HTTP requests currently being served.",
		}),
		riskTiers: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "risk_tier_total",
			Help: "Classified turns by tier and deciding source.",
		}, []string{"tier", "source"}),
		gateRejections: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "gate_rejections_total",
			Help: "Requests rejected before the model, by gate and code.",
		}, []string{"gate", "code"}),
		stageLatency: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace, Name: "pipeline_stage_duration_seconds",
			Help:    "Latency of each chat pipeline stage.",
			Buckets: []float64{.001, .005, .01, .05, .1, .25, .5, 1, 2.5, 5, 10, 30},
		}, []string{"stage"}),
		llmRequests: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "llm_requests_total",
			Help: "Model calls by model, purpose and status.",
		}, []string{"model", "purpose", "status"}),
		llmLatency: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace, Name: "llm_request_duration_seconds",
			Help:    "Model call latency.",
			Buckets: []float64{.1, .25, .5, 1, 2, 4, 8, 16, 32, 64},
		}, []string{"model", "purpose"}),
		llmTokens: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "llm_tokens_total",
			Help: "Model tokens by direction.",
		}, []string{"model", "kind"}),
		llmCost: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "llm_cost_usd_total",
			Help: "Estimated model spend in USD.",
		}, []string{"model", "kind"}),
		retrievalHits: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "retrieval_hits_total",
			Help: "Documents surviving each retrieval stage.",
		}, []string{"stage"}),
		confidenceGate: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "confidence_gate_total",
			Help: "Confidence gate outcomes.",
		}, []string{"outcome"}),
		bgFailures: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "background_task_failures_total",
			Help: "Failed fire-and-forget tasks by name.",
		}, []string{"task"}),
	}
}

func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.reg
}

func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.reg, promhttp.HandlerOpts{})
}

func (m *Metrics) ObserveAPI(method, route, status string, dur time.Duration) {
	if m == nil {
		return
	}
	m.apiRequests.WithLabelValues(method, route, status).Inc()
	m.apiLatency.WithLabelValues(method, route, status).Observe(dur.Seconds())
}

func (m *Metrics) ApiInflightInc() {
	if m == nil {
		return
	}
	m.apiInflight.Inc()
}

func (m *Metrics) ApiInflightDec() {
	if m == nil {
		return
	}
	m.apiInflight.Dec()
}

func (m *Metrics) IncRiskTier(tier, source string) {
	if m == nil {
		return
	}
	m.riskTiers.WithLabelValues(orUnknown(tier), orUnknown(source)).Inc()
}

func (m *Metrics) IncGateRejection(gate, code string) {
	if m == nil {
		return
	}
	m.gateRejections.WithLabelValues(orUnknown(gate), orUnknown(code)).Inc()
}

func (m *Metrics) ObserveStage(stage string, dur time.Duration) {
	if m == nil {
		return
	}
	m.stageLatency.WithLabelValues(orUnknown(stage)).Observe(dur.Seconds())
}

// ObserveLLMRequest records one model call and returns its estimated cost.
func (m *Metrics) ObserveLLMRequest(model, purpose, status string, dur time.Duration, inputTokens, outputTokens int) float64 {
	if m == nil {
		return 0
	}
	model = orUnknown(model)
	m.llmRequests.WithLabelValues(model, orUnknown(purpose), orUnknown(status)).Inc()
	if dur > 0 {
		m.llmLatency.WithLabelValues(model, orUnknown(purpose)).Observe(dur.Seconds())
	}
	if inputTokens > 0 {
		m.llmTokens.WithLabelValues(model, "input").Add(float64(inputTokens))
	}
	if outputTokens > 0 {
		m.llmTokens.WithLabelValues(model, "output").Add(float64(outputTokens))
	}
	in := m.rates.Cost(inputTokens, 0)
	out := m.rates.Cost(0, outputTokens)
	if in > 0 {
		m.llmCost.WithLabelValues(model, "input").Add(in)
	}
	if out > 0 {
		m.llmCost.WithLabelValues(model, "output").Add(out)
	}
	return in + out
}

func (m *Metrics) AddRetrievalHits(stage string, n int) {
	if m == nil || n <= 0 {
		return
	}
	m.retrievalHits.WithLabelValues(orUnknown(stage)).Add(float64(n))
}

func (m *Metrics) IncConfidenceGate(outcome string) {
	if m == nil {
		return
	}
	m.confidenceGate.WithLabelValues(orUnknown(outcome)).Inc()
}

func (m *Metrics) IncBackgroundFailure(task string) {
	if m == nil {
		return
	}
	m.bgFailures.WithLabelValues(orUnknown(task)).Inc()
}

func orUnknown(v string) string {
	v = strings.TrimSpace(v)
	if v == "" {
		return "unknown"
	}
	return v
}

func parseFloatEnv(key string, fallback float64) float64 {
	val := strings.TrimSpace(os.Getenv(key))
	if val == "" {
		return fallback
	}
	f, err := strconv.ParseFloat(val, 64)
	if err != nil {
		return fallback
	}
	return f
}
