// Package orchestrator runs one chat turn through the safety gates, the
// context builders and the model, for both JSON and streamed replies.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"

	"github.com/yungbote/haven-backend/internal/domain/chat"
	"github.com/yungbote/haven-backend/internal/domain/memory"
	"github.com/yungbote/haven-backend/internal/domain/usage"
	"github.com/yungbote/haven-backend/internal/modules/gate"
	memmod "github.com/yungbote/haven-backend/internal/modules/memory"
	"github.com/yungbote/haven-backend/internal/modules/retrieval"
	"github.com/yungbote/haven-backend/internal/modules/safety"
	"github.com/yungbote/haven-backend/internal/observability"
	"github.com/yungbote/haven-backend/internal/platform/apierr"
	"github.com/yungbote/haven-backend/internal/platform/bgtask"
	"github.com/yungbote/haven-backend/internal/platform/ctxutil"
	"github.com/yungbote/haven-backend/internal/platform/llm"
	"github.com/yungbote/haven-backend/internal/platform/logger"
)

type Retriever interface {
	Retrieve(ctx context.Context, query string) retrieval.Outcome
}

type MemoryService interface {
	Load(ctx context.Context, userID string) (*memory.UserMemory, error)
	Update(ctx context.Context, turn memmod.Turn) error
}

type Config struct {
	ConfidenceThreshold float64
	HistoryTurns        int
	Temperature         float64
	MaxTokens           int
	ChatClass           gate.Class
}

func (c Config) withDefaults() Config {
	if c.ConfidenceThreshold <= 0 {
		c.ConfidenceThreshold = 0.6
	}
	if c.HistoryTurns <= 0 {
		c.HistoryTurns = 8
	}
	if c.ChatClass.Name == "" {
		c.ChatClass = gate.Class{Name: "chat", Window: time.Minute, Max: 30}
	}
	return c
}

type Deps struct {
	Log        *logger.Logger
	Metrics    *observability.Metrics
	Tables     *safety.Tables
	Sanitizer  *safety.Sanitizer
	Classifier *safety.Classifier
	Limiter    *gate.RateLimiter
	Budget     *gate.TokenBudget
	Retrieval  Retriever
	Memory     MemoryService
	Engine     llm.Engine
	Background *bgtask.Runner
}

type Orchestrator struct {
	cfg        Config
	log        *logger.Logger
	metrics    *observability.Metrics
	tables     *safety.Tables
	sanitizer  *safety.Sanitizer
	classifier *safety.Classifier
	limiter    *gate.RateLimiter
	budget     *gate.TokenBudget
	retrieval  Retriever
	memory     MemoryService
	engine     llm.Engine
	bg         *bgtask.Runner
	now        func() time.Time
}

func New(cfg Config, d Deps) (*Orchestrator, error) {
	if d.Log == nil || d.Tables == nil || d.Engine == nil || d.Background == nil {
		return nil, fmt.Errorf("orchestrator: missing deps")
	}
	o := &Orchestrator{
		cfg:        cfg.withDefaults(),
		log:        d.Log.With("module", "orchestrator"),
		metrics:    d.Metrics,
		tables:     d.Tables,
		sanitizer:  d.Sanitizer,
		classifier: d.Classifier,
		limiter:    d.Limiter,
		budget:     d.Budget,
		retrieval:  d.Retrieval,
		memory:     d.Memory,
		engine:     d.Engine,
		bg:         d.Background,
		now:        time.Now,
	}
	if o.sanitizer == nil {
		o.sanitizer = safety.NewSanitizer(d.Tables)
	}
	if o.classifier == nil {
		o.classifier = safety.NewClassifier(d.Tables)
	}
	return o, nil
}

// Result is a finished non-streamed turn.
type Result struct {
	TraceID       string
	Response      *chat.Response
	BudgetWarning bool
}

// turn is the per-request state carried between stages.
type turn struct {
	traceID  string
	identity ctxutil.Identity
	userID   string
	message  string
	req      chat.Request
	tier     chat.RiskTier
	crisis   bool
	monthKey string
	warning  bool
	messages []llm.Message
}

// Respond handles one non-streamed turn. Returned errors are *apierr.Error.
func (o *Orchestrator) Respond(ctx context.Context, id ctxutil.Identity, req chat.Request) (*Result, error) {
	tr := o.newTrace(ctx)
	ctx, span := observability.StartSpan(ctx, "chat.respond", attribute.String("trace_id", tr.ID))
	defer span.End()

	t, err := o.admit(ctx, tr, id, req)
	if err != nil {
		return nil, err
	}
	if t.crisis {
		resp := o.tables.CrisisResponse()
		tr.LogResponse(resp, "path", "crisis")
		return &Result{TraceID: tr.ID, Response: resp}, nil
	}

	o.augment(ctx, tr, t, false)

	out, err := o.runPasses(ctx, tr, t)
	if err != nil {
		tr.LogError("model", err)
		return nil, apierr.UpstreamModel("upstream_model_error", err)
	}
	o.metrics.IncConfidenceGate(out.Outcome)
	resp := out.Response
	if resp.RiskLevel == chat.RiskRed {
		resp.Hotlines = o.tables.CrisisResponse().Hotlines
	}
	span.SetAttributes(
		attribute.String("risk_level", string(resp.RiskLevel)),
		attribute.String("confidence_gate", out.Outcome),
	)

	o.afterReply(ctx, tr, t, resp.MemoryUpdate, out.Usage)
	tr.LogResponse(resp, "confidence_gate", out.Outcome)
	return &Result{TraceID: tr.ID, Response: resp, BudgetWarning: t.warning}, nil
}

func (o *Orchestrator) newTrace(ctx context.Context) *observability.Trace {
	id := ctxutil.TraceID(ctx)
	if id == "" {
		id = uuid.NewString()
	}
	return observability.NewTrace(id, o.log, o.metrics)
}

// admit runs the gates that must finish before any model call: sanitize,
// classify, then rate and budget checks for non-crisis turns.
func (o *Orchestrator) admit(ctx context.Context, tr *observability.Trace, id ctxutil.Identity, req chat.Request) (*turn, error) {
	// Memory is keyed by the authenticated subject only. A body userId from
	// an anonymous or different caller is ignored.
	t := &turn{traceID: tr.ID, identity: id, req: req, userID: id.UserID}

	done := tr.Stage("sanitize")
	clean, err := o.sanitizer.Validate(req.Message)
	done()
	if err != nil {
		code := sanitizeCode(err)
		o.metrics.IncGateRejection("sanitizer", code)
		tr.Log("sanitizer rejected", "code", code)
		return nil, apierr.ClientInput(code, err)
	}
	t.message = clean

	done = tr.Stage("classify")
	cls := o.classifier.Explain(clean, req.History)
	done()
	t.tier = cls.Tier
	o.metrics.IncRiskTier(string(cls.Tier), cls.Source)
	tr.Log("risk classified", "risk_level", cls.Tier, "rule", cls.Rule, "source", cls.Source, "tables_version", cls.Version)
	if cls.Tier == chat.RiskRed {
		t.crisis = true
		return t, nil
	}

	if o.limiter != nil {
		d, err := o.limiter.CheckClass(ctx, id.Key(), o.cfg.ChatClass)
		switch {
		case err != nil:
			tr.Log("rate limit check failed, admitting", "error", err)
		case !d.Allowed:
			o.metrics.IncGateRejection("rate", "rate_limited")
			return nil, apierr.RateExceeded("rate_limited", d.ResetAt, gate.ErrRateLimited)
		}
	}

	t.monthKey = usage.MonthKey(o.now())
	if o.budget != nil {
		st, err := o.budget.Check(ctx, t.monthKey)
		switch {
		case err != nil:
			tr.Log("budget check failed, admitting", "error", err)
		case !st.Allowed:
			o.metrics.IncGateRejection("budget", "budget_exceeded")
			return nil, apierr.BudgetExceeded("budget_exceeded", st.ResetAt, gate.ErrBudgetExceeded)
		default:
			t.warning = st.Warning
			if st.Warning {
				tr.Log("token budget warning", "percentage", st.Percentage)
			}
		}
	}
	return t, nil
}

func sanitizeCode(err error) string {
	switch {
	case errors.Is(err, safety.ErrEmptyInput):
		return "empty_input"
	case errors.Is(err, safety.ErrInjectionDetected):
		return "injection_detected"
	case errors.Is(err, safety.ErrProfanityDetected):
		return "profanity_detected"
	default:
		return "invalid_request"
	}
}

// augment loads retrieval context and memory and builds the prompt. Neither
// source can fail the turn.
func (o *Orchestrator) augment(ctx context.Context, tr *observability.Trace, t *turn, stream bool) {
	in := promptInput{Message: t.message, History: t.req.History, Stream: stream}

	if o.retrieval != nil {
		rctx, span := observability.StartSpan(ctx, "chat.retrieval")
		done := tr.Stage("retrieval")
		out := o.retrieval.Retrieve(rctx, t.message)
		done()
		span.End()
		in.Retrieval = out.Context
		o.metrics.AddRetrievalHits("lexical", out.LexicalHits)
		o.metrics.AddRetrievalHits("dense", out.DenseHits)
		o.metrics.AddRetrievalHits("final", len(out.Results))
		if out.Usage.Total() > 0 {
			tr.LogModelCall(observability.ModelCall{Purpose: "retrieval", Model: o.engine.Name(), Usage: out.Usage})
		}
		tr.Log("retrieval",
			"documents", out.Documents,
			"lexical_hits", out.LexicalHits,
			"dense_hits", out.DenseHits,
			"results", len(out.Results),
			"reranked", out.Reranked,
			"degraded", out.Errors,
		)
	}

	if o.memory != nil && t.userID != "" {
		done := tr.Stage("memory_load")
		m, err := o.memory.Load(ctx, t.userID)
		done()
		if err != nil {
			tr.Log("memory load failed", "error", err)
		} else {
			in.MemoryBlock = memmod.Format(m)
		}
	}
	if in.MemoryBlock == "" {
		in.ClientSummary = o.clientSummary(t.req.MemorySummary)
	}

	t.messages = buildMessages(in, o.cfg.HistoryTurns)
}

// clientSummary accepts a client-held summary only if it passes the
// sanitizer.
func (o *Orchestrator) clientSummary(s string) string {
	if strings.TrimSpace(s) == "" {
		return ""
	}
	clean, err := o.sanitizer.Validate(s)
	if err != nil {
		return ""
	}
	if r := []rune(clean); len(r) > memory.MaxSummaryChars {
		clean = string(r[:memory.MaxSummaryChars])
	}
	return clean
}

// afterReply schedules memory persistence and usage accounting off the
// reply path.
func (o *Orchestrator) afterReply(ctx context.Context, tr *observability.Trace, t *turn, upd *chat.MemoryUpdate, used llm.Usage) {
	if o.memory != nil && t.userID != "" {
		mt := memmod.Turn{
			UserID:          t.userID,
			Message:         t.message,
			Update:          upd,
			NewConversation: len(t.req.History) == 0,
		}
		o.bg.Go(ctx, "memory_update", t.traceID, func(ctx context.Context) error {
			return o.memory.Update(ctx, mt)
		})
	}
	if o.budget != nil && used.Total() > 0 {
		month, delta := t.monthKey, int64(used.Total())
		o.bg.Go(ctx, "usage_accounting", t.traceID, func(ctx context.Context) error {
			_, err := o.budget.Add(ctx, month, delta)
			return err
		})
	}
	tr.Log("background work scheduled", "tokens", used.Total())
}
