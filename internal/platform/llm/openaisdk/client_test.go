package openaisdk

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	openai "github.com/sashabaranov/go-openai"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yungbote/haven-backend/internal/platform/llm"
)

func newTestEngine(t *testing.T, h http.HandlerFunc) *Engine {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	oc := openai.DefaultConfig("test-key")
	oc.BaseURL = srv.URL + "/v1"
	return NewWithClientConfig(llm.Config{ChatModel: "gpt-test", EmbedModel: "embed-test"}, oc)
}

func TestGenerateText(t *testing.T) {
	e := newTestEngine(t, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/v1/chat/completions", r.URL.Path)
		var req openai.ChatCompletionRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "gpt-test", req.Model)
		require.NotNil(t, req.ResponseFormat)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"model":"gpt-test","choices":[{"index":0,"message":{"role":"assistant","content":"{\"reply\":\"ok\"}"}}],"usage":{"prompt_tokens":7,"completion_tokens":3,"total_tokens":10}}`))
	})

	res, err := e.GenerateText(context.Background(), []llm.Message{{Role: "user", Content: "hi"}}, llm.GenerateOptions{JSONObject: true})
	require.NoError(t, err)
	assert.Equal(t, `{"reply":"ok"}`, res.Text)
	assert.Equal(t, 10, res.Usage.Total())
}

func TestStreamText(t *testing.T) {
	e := newTestEngine(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		_, _ = w.Write([]byte("data: {\"choices\":[{\"index\":0,\"delta\":{\"content\":\"chào \"}}]}\n\n"))
		_, _ = w.Write([]byte("data: {\"choices\":[{\"index\":0,\"delta\":{\"content\":\"bạn\"}}]}\n\n"))
		_, _ = w.Write([]byte("data: [DONE]\n\n"))
	})

	var got []string
	res, err := e.StreamText(context.Background(), []llm.Message{{Role: "user", Content: "hi"}}, llm.GenerateOptions{}, func(d string) error {
		got = append(got, d)
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, "chào bạn", res.Text)
	assert.Equal(t, []string{"chào ", "bạn"}, got)
	assert.True(t, res.Usage.Estimated)
}

func TestEmbed(t *testing.T) {
	e := newTestEngine(t, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/v1/embeddings", r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"object":"list","data":[{"object":"embedding","index":0,"embedding":[1,0]},{"object":"embedding","index":1,"embedding":[0,1]}]}`))
	})
	vecs, err := e.Embed(context.Background(), []string{"a", "b"})
	require.NoError(t, err)
	require.Len(t, vecs, 2)
	assert.Equal(t, []float32{0, 1}, vecs[1])
}
