package orchestrator

import (
	"context"
	"errors"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"github.com/yungbote/haven-backend/internal/domain/chat"
	"github.com/yungbote/haven-backend/internal/observability"
	"github.com/yungbote/haven-backend/internal/platform/apierr"
	"github.com/yungbote/haven-backend/internal/platform/ctxutil"
	"github.com/yungbote/haven-backend/internal/platform/llm"
)

// Meta opens a stream.
type Meta struct {
	TraceID   string        `json:"trace_id"`
	RiskLevel chat.RiskTier `json:"riskLevel"`
	// BudgetWarning is transport metadata, not part of the meta event.
	BudgetWarning bool `json:"-"`
}

// Sink receives stream frames. A write error means the client is gone and
// stops the stream.
type Sink interface {
	Open(meta Meta) error
	Delta(text string) error
	Done() error
	Error(err *apierr.Error) error
}

// Stream handles one streamed turn. Errors returned before sink.Open are
// *apierr.Error and should be sent as a plain response; once the stream is
// open, failures are reported in-band and Stream returns nil.
func (o *Orchestrator) Stream(ctx context.Context, id ctxutil.Identity, req chat.Request, sink Sink) error {
	tr := o.newTrace(ctx)
	ctx, span := observability.StartSpan(ctx, "chat.stream", attribute.String("trace_id", tr.ID))
	defer span.End()

	t, err := o.admit(ctx, tr, id, req)
	if err != nil {
		return err
	}

	if t.crisis {
		resp := o.tables.CrisisResponse()
		if err := sink.Open(Meta{TraceID: tr.ID, RiskLevel: chat.RiskRed}); err != nil {
			return nil
		}
		if err := sink.Delta(crisisText(resp)); err != nil {
			return nil
		}
		_ = sink.Done()
		tr.LogResponse(resp, "path", "crisis", "stream", true)
		return nil
	}

	o.augment(ctx, tr, t, true)

	if err := sink.Open(Meta{TraceID: tr.ID, RiskLevel: t.tier, BudgetWarning: t.warning}); err != nil {
		tr.Log("stream open failed", "error", err)
		return nil
	}

	text, used, streamErr := o.pipe(ctx, tr, t, sink)

	resp := &chat.Response{RiskLevel: t.tier, Reply: text, Actions: []string{}}
	switch {
	case streamErr == nil:
		_ = sink.Done()
	case ctx.Err() != nil || errors.Is(streamErr, errSinkClosed):
		tr.Log("stream cancelled by client", "received_runes", len([]rune(text)))
	default:
		tr.LogError("model_stream", streamErr)
		_ = sink.Error(apierr.UpstreamModel("upstream_model_error", streamErr))
	}

	// Accounting runs on whatever was produced, even for a cut stream.
	o.afterReply(ctx, tr, t, nil, used)
	tr.LogResponse(resp, "stream", true)
	return nil
}

var errSinkClosed = errors.New("stream sink closed")

// pipe forwards model deltas to sink and returns the accumulated text.
func (o *Orchestrator) pipe(ctx context.Context, tr *observability.Trace, t *turn, sink Sink) (string, llm.Usage, error) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	ctx, span := observability.StartSpan(ctx, "chat.model.stream")
	defer span.End()
	done := tr.Stage("model_stream")
	defer done()

	var acc strings.Builder
	begin := time.Now()
	r, err := o.engine.StreamText(ctx, t.messages, llm.GenerateOptions{
		Temperature: o.cfg.Temperature,
		MaxTokens:   o.cfg.MaxTokens,
	}, func(delta string) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		if delta == "" {
			return nil
		}
		acc.WriteString(delta)
		if err := sink.Delta(delta); err != nil {
			cancel()
			return errSinkClosed
		}
		return nil
	})

	text := acc.String()
	used := r.Usage
	if used.Total() == 0 {
		used = llm.EstimateUsage(t.messages, text)
	}
	model := r.Model
	if model == "" {
		model = o.engine.Name()
	}
	tr.LogModelCall(observability.ModelCall{
		Purpose:  "chat_stream",
		Model:    model,
		Usage:    used,
		Duration: time.Since(begin),
		Err:      err,
	})
	if err != nil {
		span.RecordError(err)
	}
	return text, used, err
}
