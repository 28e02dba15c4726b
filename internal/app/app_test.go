package app

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yungbote/haven-backend/internal/platform/logger"
)

func TestLoadConfigDefaults(t *testing.T) {
	cfg, err := LoadConfig(logger.Nop(), filepath.Join(t.TempDir(), "missing.env"))
	require.NoError(t, err)

	assert.Equal(t, ":8080", cfg.Addr)
	assert.Equal(t, "memory", cfg.StoreDriver)
	assert.Equal(t, "mock", cfg.EngineType)
	assert.Equal(t, 30, cfg.ChatRateMax)
	assert.Equal(t, time.Minute, cfg.ChatRateWindow)
	assert.Equal(t, 120, cfg.GeneralRateMax)
	assert.Equal(t, int64(1000000), cfg.MonthlyTokenLimit)
	assert.InDelta(t, 0.8, cfg.BudgetWarnRatio, 1e-9)
	assert.InDelta(t, 0.6, cfg.ConfidenceMinimum, 1e-9)
	assert.Equal(t, "mock", cfg.embedModel())
}

func TestLoadConfigFromDotEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), ".env")
	require.NoError(t, os.WriteFile(path, []byte("RATE_CHAT_MAX=5\nCORS_ORIGINS=https://a.example,https://b.example\nSTORE_DRIVER=sqlite\n"), 0o600))
	// godotenv never overrides variables that are already set
	t.Setenv("STORE_DRIVER", "redis")
	t.Cleanup(func() {
		os.Unsetenv("RATE_CHAT_MAX")
		os.Unsetenv("CORS_ORIGINS")
	})

	cfg, err := LoadConfig(logger.Nop(), path)
	require.NoError(t, err)
	assert.Equal(t, 5, cfg.ChatRateMax)
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.CORSOrigins)
	assert.Equal(t, "redis", cfg.StoreDriver)
}

func TestLoadConfigRejectsBadValues(t *testing.T) {
	cases := []struct {
		key, val, want string
	}{
		{"STORE_DRIVER", "mongo", "STORE_DRIVER"},
		{"LLM_ENGINE", "llama", "LLM_ENGINE"},
		{"LLM_ENGINE", "openai", "LLM_API_KEY"},
		{"RATE_CHAT_MAX", "0", "rate limits"},
	}
	for _, tc := range cases {
		t.Run(tc.key+"="+tc.val, func(t *testing.T) {
			t.Setenv(tc.key, tc.val)
			_, err := LoadConfig(logger.Nop(), filepath.Join(t.TempDir(), "missing.env"))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tc.want)
		})
	}
}

func TestNewWithConfigServesChat(t *testing.T) {
	cfg, err := LoadConfig(logger.Nop(), filepath.Join(t.TempDir(), "missing.env"))
	require.NoError(t, err)

	a, err := NewWithConfig(context.Background(), logger.Nop(), cfg)
	require.NoError(t, err)
	t.Cleanup(a.Close)

	req := httptest.NewRequest(http.MethodPost, "/api/chat", strings.NewReader(`{"message":"chào bạn"}`))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	a.Server.Handler().ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Contains(t, rec.Body.String(), `"riskLevel":"green"`)

	require.NoError(t, a.Services.Background.Close(context.Background()))
}

func TestRunStopsOnCancel(t *testing.T) {
	t.Setenv("HTTP_ADDR", "127.0.0.1:0")
	cfg, err := LoadConfig(logger.Nop(), filepath.Join(t.TempDir(), "missing.env"))
	require.NoError(t, err)
	a, err := NewWithConfig(context.Background(), logger.Nop(), cfg)
	require.NoError(t, err)
	t.Cleanup(a.Close)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- a.Run(ctx) }()
	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatalf("Run did not return after cancel")
	}
}
