// Package llm is the boundary to the text-completion and embedding services.
package llm

import (
	"context"
	"math"
	"strings"
	"time"
)

type Message struct {
	Role    string
	Content string
}

type GenerateOptions struct {
	Temperature float64
	MaxTokens   int
	// JSONObject asks the server for a JSON object response when supported.
	JSONObject bool
}

type Usage struct {
	InputTokens  int
	OutputTokens int
	// Estimated is true when the upstream did not report usage.
	Estimated bool
}

func (u Usage) Total() int { return u.InputTokens + u.OutputTokens }

func (u Usage) Add(o Usage) Usage {
	return Usage{
		InputTokens:  u.InputTokens + o.InputTokens,
		OutputTokens: u.OutputTokens + o.OutputTokens,
		Estimated:    u.Estimated || o.Estimated,
	}
}

type Result struct {
	Text  string
	Usage Usage
	Model string
}

// DeltaFunc receives streamed text. Returning an error stops the stream.
type DeltaFunc func(delta string) error

type Engine interface {
	Name() string
	Embed(ctx context.Context, inputs []string) ([][]float32, error)
	GenerateText(ctx context.Context, messages []Message, opts GenerateOptions) (Result, error)
	StreamText(ctx context.Context, messages []Message, opts GenerateOptions, onDelta DeltaFunc) (Result, error)
}

type Config struct {
	Type          string
	BaseURL       string
	APIKey        string
	ChatModel     string
	EmbedModel    string
	Timeout       time.Duration
	StreamTimeout time.Duration
}

// EstimateTokens approximates token count as ceil(runes/4).
func EstimateTokens(text string) int {
	text = strings.TrimSpace(text)
	if text == "" {
		return 0
	}
	return int(math.Ceil(float64(len([]rune(text))) / 4.0))
}

// EstimateUsage fills usage from the prompt and completion text.
func EstimateUsage(messages []Message, completion string) Usage {
	in := 0
	for _, m := range messages {
		in += EstimateTokens(m.Content)
	}
	return Usage{InputTokens: in, OutputTokens: EstimateTokens(completion), Estimated: true}
}
