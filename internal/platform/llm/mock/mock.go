// Package mock is a deterministic offline engine for local runs.
package mock

import (
	"context"
	"crypto/sha256"
	"encoding/binary"
	"encoding/json"
	"strings"
	"sync/atomic"

	"github.com/yungbote/haven-backend/internal/platform/llm"
)

type Engine struct {
	EmbeddingDims int

	calls atomic.Int64
}

func New() *Engine {
	return &Engine{EmbeddingDims: 16}
}

func (e *Engine) Name() string { return "mock" }

// Calls counts GenerateText and StreamText invocations.
func (e *Engine) Calls() int64 { return e.calls.Load() }

func (e *Engine) Embed(ctx context.Context, inputs []string) ([][]float32, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	out := make([][]float32, len(inputs))
	for i, s := range inputs {
		h := sha256.Sum256([]byte(strings.ToLower(strings.TrimSpace(s))))
		vec := make([]float32, e.EmbeddingDims)
		for j := 0; j < e.EmbeddingDims; j++ {
			u := binary.LittleEndian.Uint32(h[(j*4)%(len(h)-3):])
			vec[j] = float32(u%10_000)/10_000.0 - 0.5
		}
		out[i] = vec
	}
	return out, nil
}

func (e *Engine) GenerateText(ctx context.Context, messages []llm.Message, opts llm.GenerateOptions) (llm.Result, error) {
	e.calls.Add(1)
	if err := ctx.Err(); err != nil {
		return llm.Result{}, err
	}
	text := e.reply(messages, opts)
	return llm.Result{Text: text, Usage: llm.EstimateUsage(messages, text), Model: "mock"}, nil
}

func (e *Engine) StreamText(ctx context.Context, messages []llm.Message, opts llm.GenerateOptions, onDelta llm.DeltaFunc) (llm.Result, error) {
	e.calls.Add(1)
	full := e.reply(messages, opts)
	runes := []rune(full)
	const chunk = 16
	var sent strings.Builder
	for i := 0; i < len(runes); i += chunk {
		select {
		case <-ctx.Done():
			return llm.Result{Text: sent.String()}, ctx.Err()
		default:
		}
		end := i + chunk
		if end > len(runes) {
			end = len(runes)
		}
		part := string(runes[i:end])
		sent.WriteString(part)
		if onDelta != nil {
			if err := onDelta(part); err != nil {
				return llm.Result{Text: sent.String()}, err
			}
		}
	}
	return llm.Result{Text: full, Usage: llm.EstimateUsage(messages, full), Model: "mock"}, nil
}

func (e *Engine) reply(messages []llm.Message, opts llm.GenerateOptions) string {
	var user string
	for i := len(messages) - 1; i >= 0; i-- {
		if strings.EqualFold(messages[i].Role, "user") {
			user = messages[i].Content
			break
		}
	}
	text := "Mình đang nghe đây. Bạn kể thêm cho mình nhé."
	if strings.TrimSpace(user) != "" {
		text = "Mình nghe bạn nói: " + user
	}
	if !opts.JSONObject {
		return text
	}
	b, _ := json.Marshal(map[string]any{
		"riskLevel":    "green",
		"emotion":      "neutral",
		"reply":        text,
		"nextQuestion": "Hôm nay của bạn thế nào?",
		"actions":      []string{},
		"confidence":   0.8,
	})
	return string(b)
}
