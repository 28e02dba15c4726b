// Package openaisdk adapts the go-openai client to llm.Engine.
package openaisdk

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	openai "github.com/sashabaranov/go-openai"

	"github.com/yungbote/haven-backend/internal/platform/llm"
)

type Engine struct {
	client     *openai.Client
	chatModel  string
	embedModel string
	timeout       time.Duration
	streamTimeout time.Duration
}

func New(cfg llm.Config) (*Engine, error) {
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, errors.New("openai: api key required")
	}
	if strings.TrimSpace(cfg.ChatModel) == "" {
		return nil, errors.New("openai: chat model required")
	}
	oc := openai.DefaultConfig(cfg.APIKey)
	if base := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/"); base != "" {
		if !strings.HasSuffix(base, "/v1") {
			base += "/v1"
		}
		oc.BaseURL = base
	}
	return NewWithClientConfig(cfg, oc), nil
}

// NewWithClientConfig lets tests point the SDK at a fake transport.
func NewWithClientConfig(cfg llm.Config, oc openai.ClientConfig) *Engine {
	if oc.HTTPClient == nil {
		oc.HTTPClient = &http.Client{}
	}
	return &Engine{
		client:     openai.NewClientWithConfig(oc),
		chatModel:  strings.TrimSpace(cfg.ChatModel),
		embedModel: strings.TrimSpace(cfg.EmbedModel),
		timeout:       cfg.Timeout,
		streamTimeout: cfg.StreamTimeout,
	}
}

func (e *Engine) Name() string { return "openai" }

func (e *Engine) Embed(ctx context.Context, inputs []string) ([][]float32, error) {
	if len(inputs) == 0 {
		return [][]float32{}, nil
	}
	if e.embedModel == "" {
		return nil, errors.New("openai: embed model not configured")
	}
	ctx, cancel := withTimeout(ctx, e.timeout)
	defer cancel()

	resp, err := e.client.CreateEmbeddings(ctx, openai.EmbeddingRequest{
		Input: inputs,
		Model: openai.EmbeddingModel(e.embedModel),
	})
	if err != nil {
		return nil, fmt.Errorf("openai embeddings: %w", err)
	}
	out := make([][]float32, len(inputs))
	for i, d := range resp.Data {
		idx := d.Index
		if idx < 0 || idx >= len(out) {
			idx = i
		}
		if idx < len(out) {
			out[idx] = d.Embedding
		}
	}
	for i := range out {
		if len(out[i]) == 0 {
			return nil, fmt.Errorf("embeddings missing index=%d (model=%s)", i, e.embedModel)
		}
	}
	return out, nil
}

func (e *Engine) GenerateText(ctx context.Context, messages []llm.Message, opts llm.GenerateOptions) (llm.Result, error) {
	ctx, cancel := withTimeout(ctx, e.timeout)
	defer cancel()

	resp, err := e.client.CreateChatCompletion(ctx, e.request(messages, opts, false))
	if err != nil {
		return llm.Result{}, fmt.Errorf("openai chat: %w", err)
	}
	if len(resp.Choices) == 0 || strings.TrimSpace(resp.Choices[0].Message.Content) == "" {
		return llm.Result{}, errors.New("empty upstream completion")
	}
	text := resp.Choices[0].Message.Content
	usage := llm.Usage{InputTokens: resp.Usage.PromptTokens, OutputTokens: resp.Usage.CompletionTokens}
	if usage.Total() == 0 {
		usage = llm.EstimateUsage(messages, text)
	}
	return llm.Result{Text: text, Usage: usage, Model: resp.Model}, nil
}

func (e *Engine) StreamText(ctx context.Context, messages []llm.Message, opts llm.GenerateOptions, onDelta llm.DeltaFunc) (llm.Result, error) {
	ctx, cancel := withTimeout(ctx, e.streamTimeout)
	defer cancel()

	stream, err := e.client.CreateChatCompletionStream(ctx, e.request(messages, opts, true))
	if err != nil {
		return llm.Result{}, fmt.Errorf("openai stream: %w", err)
	}
	defer stream.Close()

	var (
		full  strings.Builder
		usage llm.Usage
	)
	for {
		chunk, err := stream.Recv()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return llm.Result{Text: full.String(), Usage: llm.EstimateUsage(messages, full.String())}, fmt.Errorf("openai stream: %w", err)
		}
		if chunk.Usage != nil {
			usage = llm.Usage{InputTokens: chunk.Usage.PromptTokens, OutputTokens: chunk.Usage.CompletionTokens}
		}
		for _, c := range chunk.Choices {
			if c.Delta.Content == "" {
				continue
			}
			full.WriteString(c.Delta.Content)
			if onDelta != nil {
				if err := onDelta(c.Delta.Content); err != nil {
					return llm.Result{Text: full.String(), Usage: llm.EstimateUsage(messages, full.String())}, err
				}
			}
		}
	}
	text := full.String()
	if usage.Total() == 0 {
		usage = llm.EstimateUsage(messages, text)
	}
	return llm.Result{Text: text, Usage: usage, Model: e.chatModel}, nil
}

func (e *Engine) request(messages []llm.Message, opts llm.GenerateOptions, stream bool) openai.ChatCompletionRequest {
	req := openai.ChatCompletionRequest{
		Model:       e.chatModel,
		Messages:    make([]openai.ChatCompletionMessage, 0, len(messages)),
		Temperature: float32(opts.Temperature),
		MaxTokens:   opts.MaxTokens,
		Stream:      stream,
	}
	for _, m := range messages {
		if strings.TrimSpace(m.Content) == "" {
			continue
		}
		req.Messages = append(req.Messages, openai.ChatCompletionMessage{Role: m.Role, Content: m.Content})
	}
	if stream {
		req.StreamOptions = &openai.StreamOptions{IncludeUsage: true}
	}
	if opts.JSONObject {
		req.ResponseFormat = &openai.ChatCompletionResponseFormat{Type: openai.ChatCompletionResponseFormatTypeJSONObject}
	}
	return req
}

func withTimeout(ctx context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	if d <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, d)
}
