package observability

import (
	"fmt"
	"runtime/debug"
	"sync"
	"time"

	"github.com/yungbote/haven-backend/internal/domain/chat"
	"github.com/yungbote/haven-backend/internal/platform/llm"
	"github.com/yungbote/haven-backend/internal/platform/logger"
)

const maxStackBytes = 2048

// ModelCall describes one upstream completion.
type ModelCall struct {
	Purpose  string
	Model    string
	Usage    llm.Usage
	Duration time.Duration
	Err      error
}

// Trace collects what happened to one chat request. Every log line carries
// the trace id; message text only reaches the logger under scrubbed keys.
// A nil *Trace is valid and does nothing.
type Trace struct {
	ID string

	log     *logger.Logger
	metrics *Metrics
	start   time.Time

	mu     sync.Mutex
	calls  int
	usage  llm.Usage
	cost   float64
	stages map[string]time.Duration
}

func NewTrace(id string, log *logger.Logger, metrics *Metrics) *Trace {
	return &Trace{
		ID:      id,
		log:     log.With("trace_id", id),
		metrics: metrics,
		start:   time.Now(),
		stages:  map[string]time.Duration{},
	}
}

func (t *Trace) Log(stage string, keysAndValues ...interface{}) {
	if t == nil {
		return
	}
	t.log.Info(stage, keysAndValues...)
}

// Stage starts timing a pipeline stage; call the returned func when it ends.
func (t *Trace) Stage(name string) func() {
	if t == nil {
		return func() {}
	}
	begin := time.Now()
	return func() {
		d := time.Since(begin)
		t.mu.Lock()
		t.stages[name] += d
		t.mu.Unlock()
		t.metrics.ObserveStage(name, d)
	}
}

func (t *Trace) LogModelCall(c ModelCall) {
	if t == nil {
		return
	}
	status := "ok"
	if c.Err != nil {
		status = "error"
	}
	cost := t.metrics.ObserveLLMRequest(c.Model, c.Purpose, status, c.Duration, c.Usage.InputTokens, c.Usage.OutputTokens)
	if t.metrics == nil {
		cost = CostRatesFromEnv().Cost(c.Usage.InputTokens, c.Usage.OutputTokens)
	}

	t.mu.Lock()
	t.calls++
	t.usage = t.usage.Add(c.Usage)
	t.cost += cost
	t.mu.Unlock()

	kv := []interface{}{
		"purpose", c.Purpose,
		"model", c.Model,
		"input_tokens", c.Usage.InputTokens,
		"output_tokens", c.Usage.OutputTokens,
		"estimated_tokens", c.Usage.Estimated,
		"latency_ms", c.Duration.Milliseconds(),
		"cost_usd", cost,
	}
	if c.Err != nil {
		t.log.Warn("model call failed", append(kv, "error", c.Err)...)
		return
	}
	t.log.Info("model call", kv...)
}

func (t *Trace) LogResponse(resp *chat.Response, keysAndValues ...interface{}) {
	if t == nil || resp == nil {
		return
	}
	t.mu.Lock()
	kv := []interface{}{
		"risk_level", resp.RiskLevel,
		"confidence", resp.Confidence,
		"emotion", resp.Emotion,
		"actions", len(resp.Actions),
		"preview", previewOf(resp.Reply),
		"model_calls", t.calls,
		"input_tokens", t.usage.InputTokens,
		"output_tokens", t.usage.OutputTokens,
		"cost_usd", t.cost,
		"elapsed_ms", time.Since(t.start).Milliseconds(),
	}
	for name, d := range t.stages {
		kv = append(kv, "stage_"+name+"_ms", d.Milliseconds())
	}
	t.mu.Unlock()
	t.log.Info("chat response", append(kv, keysAndValues...)...)
}

// LogError logs err with a truncated stack of the calling goroutine.
func (t *Trace) LogError(stage string, err error) {
	if t == nil || err == nil {
		return
	}
	stack := debug.Stack()
	if len(stack) > maxStackBytes {
		stack = stack[:maxStackBytes]
	}
	t.log.Error("chat pipeline error",
		"stage", stage,
		"error", fmt.Sprint(err),
		"stack", string(stack),
	)
}

func (t *Trace) ModelCalls() int {
	if t == nil {
		return 0
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.calls
}

func (t *Trace) Usage() llm.Usage {
	if t == nil {
		return llm.Usage{}
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.usage
}

func (t *Trace) Cost() float64 {
	if t == nil {
		return 0
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.cost
}

func (t *Trace) Elapsed() time.Duration {
	if t == nil {
		return 0
	}
	return time.Since(t.start)
}

func previewOf(s string) string {
	r := []rune(s)
	if len(r) > 80 {
		return string(r[:80]) + "…"
	}
	return s
}
