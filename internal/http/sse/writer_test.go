package sse

import (
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yungbote/haven-backend/internal/domain/chat"
	"github.com/yungbote/haven-backend/internal/modules/orchestrator"
	"github.com/yungbote/haven-backend/internal/platform/apierr"
)

func TestWriterFrames(t *testing.T) {
	rec := httptest.NewRecorder()
	w, err := NewWriter(rec, "en")
	require.NoError(t, err)

	assert.Error(t, w.Delta("early"), "writes before Open are refused")
	assert.False(t, w.Opened())

	require.NoError(t, w.Open(orchestrator.Meta{TraceID: "t1", RiskLevel: chat.RiskYellow, BudgetWarning: true}))
	require.NoError(t, w.Delta("Xin chào"))
	require.NoError(t, w.Error(apierr.UpstreamModel("upstream_model_error", nil)))
	require.NoError(t, w.Done())

	want := "event: meta\ndata: {\"trace_id\":\"t1\",\"riskLevel\":\"yellow\"}\n\n" +
		"data: {\"type\":\"delta\",\"text\":\"Xin chào\"}\n\n" +
		"data: {\"type\":\"error\",\"code\":\"upstream_model_error\",\"message\":\"The assistant is temporarily unavailable. Please try again later.\"}\n\n" +
		"data: {\"type\":\"done\"}\n\n"
	assert.Equal(t, want, rec.Body.String())
	assert.Equal(t, "text/event-stream", rec.Header().Get("Content-Type"))
	assert.Equal(t, "warning", rec.Header().Get(HeaderTokenBudget))
	assert.True(t, rec.Flushed)
}
