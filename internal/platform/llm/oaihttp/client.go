// Package oaihttp talks to any OpenAI-compatible chat completions server
// over plain HTTP.
package oaihttp

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/yungbote/haven-backend/internal/platform/llm"
)

type Engine struct {
	baseURL string
	apiKey  string

	chatModel  string
	embedModel string

	chatCompletionsPath string
	embeddingsPath      string

	timeout       time.Duration
	streamTimeout time.Duration
	maxRetries    int

	httpClient *http.Client
}

func New(cfg llm.Config) (*Engine, error) {
	baseURL := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if baseURL == "" {
		return nil, errors.New("oai_http: base_url required")
	}
	if strings.TrimSpace(cfg.ChatModel) == "" {
		return nil, errors.New("oai_http: chat model required")
	}

	tr := &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   10 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		ForceAttemptHTTP2:     true,
		MaxIdleConns:          100,
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   10 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 60 * time.Second
	}

	return &Engine{
		baseURL:             baseURL,
		apiKey:              strings.TrimSpace(cfg.APIKey),
		chatModel:           strings.TrimSpace(cfg.ChatModel),
		embedModel:          strings.TrimSpace(cfg.EmbedModel),
		chatCompletionsPath: "/v1/chat/completions",
		embeddingsPath:      "/v1/embeddings",
		timeout:             timeout,
		streamTimeout:       cfg.StreamTimeout,
		maxRetries:          2,
		httpClient:          &http.Client{Transport: tr},
	}, nil
}

// NewWithHTTPClient is intended for tests; it avoids network access by using a custom RoundTripper.
func NewWithHTTPClient(cfg llm.Config, httpClient *http.Client) (*Engine, error) {
	e, err := New(cfg)
	if err != nil {
		return nil, err
	}
	if httpClient != nil {
		e.httpClient = httpClient
	}
	return e, nil
}

func (e *Engine) Name() string { return "oai_http" }

// ---------------- Embeddings ----------------

type embeddingsRequest struct {
	Model string `json:"model"`
	Input any    `json:"input"`
}

type embeddingsResponse struct {
	Data []struct {
		Embedding []float64 `json:"embedding"`
		Index     int       `json:"index"`
	} `json:"data"`
}

func (e *Engine) Embed(ctx context.Context, inputs []string) ([][]float32, error) {
	if len(inputs) == 0 {
		return [][]float32{}, nil
	}
	if e.embedModel == "" {
		return nil, errors.New("oai_http: embed model not configured")
	}

	var resp embeddingsResponse
	req := embeddingsRequest{Model: e.embedModel, Input: inputs}
	if err := e.doJSON(ctx, e.timeout, e.embeddingsPath, req, &resp); err != nil {
		return nil, err
	}

	out := make([][]float32, len(inputs))
	for i, d := range resp.Data {
		idx := d.Index
		if idx < 0 || idx >= len(out) || out[idx] != nil {
			// some servers omit indices but keep ordering
			idx = i
		}
		if idx >= len(out) {
			continue
		}
		vec := make([]float32, len(d.Embedding))
		for j, f := range d.Embedding {
			vec[j] = float32(f)
		}
		out[idx] = vec
	}
	for i := range out {
		if len(out[i]) == 0 {
			return nil, fmt.Errorf("embeddings missing index=%d (model=%s)", i, e.embedModel)
		}
	}
	return out, nil
}

// ---------------- Chat Completions ----------------

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatCompletionRequest struct {
	Model          string         `json:"model"`
	Messages       []chatMessage  `json:"messages"`
	Temperature    float64        `json:"temperature"`
	MaxTokens      int            `json:"max_tokens,omitempty"`
	Stream         bool           `json:"stream,omitempty"`
	StreamOptions  map[string]any `json:"stream_options,omitempty"`
	ResponseFormat map[string]any `json:"response_format,omitempty"`
}

type usagePayload struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

type chatCompletionResponse struct {
	Model   string `json:"model"`
	Choices []struct {
		Message struct {
			Content string `json:"content,omitempty"`
		} `json:"message,omitempty"`
		Text string `json:"text,omitempty"`
	} `json:"choices"`
	Usage *usagePayload `json:"usage,omitempty"`
}

type chatCompletionStreamChunk struct {
	Choices []struct {
		Delta struct {
			Content string `json:"content,omitempty"`
		} `json:"delta,omitempty"`
		Text string `json:"text,omitempty"`
	} `json:"choices"`
	Usage *usagePayload `json:"usage,omitempty"`
	Error any           `json:"error,omitempty"`
}

func (e *Engine) GenerateText(ctx context.Context, messages []llm.Message, opts llm.GenerateOptions) (llm.Result, error) {
	chatMsgs := toChatMessages(messages)
	if len(chatMsgs) == 0 {
		return llm.Result{}, errors.New("no messages")
	}
	reqBody := e.buildChatRequest(chatMsgs, opts, false)

	var lastErr error
	for attempt := 0; attempt <= e.maxRetries; attempt++ {
		if attempt > 0 {
			if err := sleepBackoff(ctx, attempt); err != nil {
				return llm.Result{}, err
			}
		}
		var resp chatCompletionResponse
		err := e.doJSON(ctx, e.timeout, e.chatCompletionsPath, reqBody, &resp)
		if err != nil {
			lastErr = err
			var he *HTTPError
			if errors.As(err, &he) && !he.Retryable() {
				break
			}
			if ctx.Err() != nil {
				break
			}
			continue
		}
		text := extractChatText(resp)
		if strings.TrimSpace(text) == "" {
			lastErr = errors.New("empty upstream completion")
			continue
		}
		return llm.Result{Text: text, Usage: usageOf(resp.Usage, messages, text), Model: e.chatModel}, nil
	}
	if lastErr == nil {
		lastErr = errors.New("generation failed")
	}
	return llm.Result{}, lastErr
}

func (e *Engine) StreamText(ctx context.Context, messages []llm.Message, opts llm.GenerateOptions, onDelta llm.DeltaFunc) (llm.Result, error) {
	chatMsgs := toChatMessages(messages)
	if len(chatMsgs) == 0 {
		return llm.Result{}, errors.New("no messages")
	}
	reqBody := e.buildChatRequest(chatMsgs, opts, true)

	var buf bytes.Buffer
	if err := json.NewEncoder(&buf).Encode(reqBody); err != nil {
		return llm.Result{}, err
	}

	ctx2 := ctx
	if e.streamTimeout > 0 {
		var cancel context.CancelFunc
		ctx2, cancel = context.WithTimeout(ctx, e.streamTimeout)
		defer cancel()
	}

	req, err := http.NewRequestWithContext(ctx2, http.MethodPost, e.baseURL+e.chatCompletionsPath, &buf)
	if err != nil {
		return llm.Result{}, err
	}
	e.setHeaders(req, "text/event-stream")

	resp, err := e.httpClient.Do(req)
	if err != nil {
		return llm.Result{}, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
		return llm.Result{}, &HTTPError{StatusCode: resp.StatusCode, Body: string(raw)}
	}

	var (
		full  strings.Builder
		usage *usagePayload
	)
	err = streamSSE(resp.Body, func(_ string, data string) error {
		data = strings.TrimSpace(data)
		if data == "" {
			return nil
		}
		if data == "[DONE]" {
			return errStopStream
		}

		var chunk chatCompletionStreamChunk
		if err := json.Unmarshal([]byte(data), &chunk); err != nil {
			return nil
		}
		if chunk.Error != nil {
			b, _ := json.Marshal(chunk.Error)
			return fmt.Errorf("upstream stream error: %s", string(b))
		}
		if chunk.Usage != nil {
			usage = chunk.Usage
		}
		for _, c := range chunk.Choices {
			delta := c.Delta.Content
			if delta == "" {
				delta = c.Text
			}
			if delta == "" {
				continue
			}
			full.WriteString(delta)
			if onDelta != nil {
				if err := onDelta(delta); err != nil {
					return err
				}
			}
		}
		return nil
	})
	if err != nil && !errors.Is(err, errStopStream) {
		return llm.Result{Text: full.String(), Usage: usageOf(usage, messages, full.String()), Model: e.chatModel}, err
	}
	text := full.String()
	return llm.Result{Text: text, Usage: usageOf(usage, messages, text), Model: e.chatModel}, nil
}

func (e *Engine) buildChatRequest(messages []chatMessage, opts llm.GenerateOptions, stream bool) chatCompletionRequest {
	req := chatCompletionRequest{
		Model:       e.chatModel,
		Messages:    messages,
		Temperature: opts.Temperature,
		MaxTokens:   opts.MaxTokens,
		Stream:      stream,
	}
	if stream {
		req.StreamOptions = map[string]any{"include_usage": true}
	}
	if opts.JSONObject {
		req.ResponseFormat = map[string]any{"type": "json_object"}
	}
	return req
}

func toChatMessages(messages []llm.Message) []chatMessage {
	out := make([]chatMessage, 0, len(messages))
	for _, m := range messages {
		role := strings.TrimSpace(m.Role)
		content := strings.TrimSpace(m.Content)
		if role == "" || content == "" {
			continue
		}
		out = append(out, chatMessage{Role: role, Content: content})
	}
	return out
}

func extractChatText(resp chatCompletionResponse) string {
	for _, c := range resp.Choices {
		if strings.TrimSpace(c.Message.Content) != "" {
			return c.Message.Content
		}
		if strings.TrimSpace(c.Text) != "" {
			return c.Text
		}
	}
	return ""
}

func usageOf(u *usagePayload, messages []llm.Message, completion string) llm.Usage {
	if u == nil || (u.PromptTokens == 0 && u.CompletionTokens == 0 && u.TotalTokens == 0) {
		return llm.EstimateUsage(messages, completion)
	}
	if u.PromptTokens == 0 && u.CompletionTokens == 0 {
		return llm.Usage{InputTokens: u.TotalTokens}
	}
	return llm.Usage{InputTokens: u.PromptTokens, OutputTokens: u.CompletionTokens}
}

func sleepBackoff(ctx context.Context, attempt int) error {
	d := time.Duration(attempt*attempt) * 250 * time.Millisecond
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// ---------------- HTTP helpers ----------------

func (e *Engine) setHeaders(req *http.Request, accept string) {
	req.Header.Set("Content-Type", "application/json")
	if strings.TrimSpace(accept) != "" {
		req.Header.Set("Accept", accept)
	}
	if e.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+e.apiKey)
	}
}

func (e *Engine) doJSON(ctx context.Context, timeout time.Duration, path string, body any, out any) error {
	var buf bytes.Buffer
	if err := json.NewEncoder(&buf).Encode(body); err != nil {
		return err
	}

	ctx2 := ctx
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx2, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	req, err := http.NewRequestWithContext(ctx2, http.MethodPost, e.baseURL+path, &buf)
	if err != nil {
		return err
	}
	e.setHeaders(req, "application/json")

	resp, err := e.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
		return &HTTPError{StatusCode: resp.StatusCode, Body: string(raw)}
	}
	if out == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}
