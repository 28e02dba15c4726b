package orchestrator

import (
	"context"
	"time"

	"github.com/yungbote/haven-backend/internal/domain/chat"
	"github.com/yungbote/haven-backend/internal/observability"
	"github.com/yungbote/haven-backend/internal/platform/llm"
)

const (
	reaffirmedConfidence = 0.65
	verifyFailConfidence = 0.55
)

type passState int

const (
	stateFirstPass passState = iota
	stateVerify
	stateDone
)

// Gate outcomes, also used as metric labels.
const (
	outcomeSkip       = "skip"
	outcomeReaffirmed = "reaffirmed"
	outcomeRevised    = "revised"
	outcomeFailed     = "verify_failed"
)

type passResult struct {
	Response *chat.Response
	Outcome  string
	Usage    llm.Usage
}

// runPasses is the first-pass / verify-pass machine. Each state runs at most
// once, so a turn makes one or two model calls.
func (o *Orchestrator) runPasses(ctx context.Context, tr *observability.Trace, t *turn) (passResult, error) {
	var (
		res   passResult
		draft *chat.Response
	)
	state := stateFirstPass
	for state != stateDone {
		switch state {
		case stateFirstPass:
			r, err := o.generate(ctx, tr, "chat", t.messages)
			if err != nil {
				return res, err
			}
			res.Usage = res.Usage.Add(r.Usage)
			draft = ParseResponse(r.Text)
			draft.RiskLevel = chat.Max(t.tier, draft.RiskLevel)
			if draft.Confidence >= o.cfg.ConfidenceThreshold {
				res.Response, res.Outcome = draft, outcomeSkip
				state = stateDone
				continue
			}
			state = stateVerify

		case stateVerify:
			r, err := o.generate(ctx, tr, "verify", buildVerifyMessages(t.message, draft))
			res.Usage = res.Usage.Add(r.Usage)
			res.Response, res.Outcome = settleVerification(draft, r.Text, err, t.tier)
			state = stateDone
		}
	}
	return res, nil
}

// settleVerification picks the final response after a verify call.
func settleVerification(draft *chat.Response, raw string, callErr error, ruleTier chat.RiskTier) (*chat.Response, string) {
	if callErr != nil {
		draft.Confidence = verifyFailConfidence
		return draft, outcomeFailed
	}
	checked, ok := parseStructured(raw)
	if !ok {
		draft.Confidence = verifyFailConfidence
		return draft, outcomeFailed
	}
	r, _ := decodeFirstObject(raw)
	if boolField(r.Reaffirmed) {
		if draft.Confidence < reaffirmedConfidence {
			draft.Confidence = reaffirmedConfidence
		}
		if checked.Confidence > draft.Confidence {
			draft.Confidence = checked.Confidence
		}
		return draft, outcomeReaffirmed
	}
	checked.RiskLevel = chat.Max(ruleTier, checked.RiskLevel)
	if checked.MemoryUpdate == nil {
		checked.MemoryUpdate = draft.MemoryUpdate
	}
	return checked, outcomeRevised
}

func (o *Orchestrator) generate(ctx context.Context, tr *observability.Trace, purpose string, msgs []llm.Message) (llm.Result, error) {
	ctx, span := observability.StartSpan(ctx, "chat.model."+purpose)
	defer span.End()
	done := tr.Stage("model_" + purpose)
	defer done()

	begin := time.Now()
	r, err := o.engine.GenerateText(ctx, msgs, llm.GenerateOptions{
		Temperature: o.cfg.Temperature,
		MaxTokens:   o.cfg.MaxTokens,
		JSONObject:  true,
	})
	if err == nil && r.Usage.Total() == 0 {
		r.Usage = llm.EstimateUsage(msgs, r.Text)
	}
	model := r.Model
	if model == "" {
		model = o.engine.Name()
	}
	tr.LogModelCall(observability.ModelCall{
		Purpose:  purpose,
		Model:    model,
		Usage:    r.Usage,
		Duration: time.Since(begin),
		Err:      err,
	})
	if err != nil {
		span.RecordError(err)
	}
	return r, err
}
