package handlers

import (
	"context"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/yungbote/haven-backend/internal/domain/chat"
	"github.com/yungbote/haven-backend/internal/http/response"
	"github.com/yungbote/haven-backend/internal/http/sse"
	"github.com/yungbote/haven-backend/internal/modules/orchestrator"
	"github.com/yungbote/haven-backend/internal/platform/apierr"
	"github.com/yungbote/haven-backend/internal/platform/ctxutil"
	"github.com/yungbote/haven-backend/internal/platform/logger"
)

type ChatService interface {
	Respond(ctx context.Context, id ctxutil.Identity, req chat.Request) (*orchestrator.Result, error)
	Stream(ctx context.Context, id ctxutil.Identity, req chat.Request, sink orchestrator.Sink) error
}

type ChatHandler struct {
	log  *logger.Logger
	chat ChatService
}

func NewChatHandler(log *logger.Logger, chat ChatService) *ChatHandler {
	return &ChatHandler{log: log.With("Handler", "ChatHandler"), chat: chat}
}

// POST /api/chat
// ?stream=true or Accept: text/event-stream selects the event stream.
func (h *ChatHandler) Chat(c *gin.Context) {
	var req chat.Request
	if err := c.ShouldBindJSON(&req); err != nil {
		response.RespondError(c, apierr.ClientInput("invalid_request", err))
		return
	}
	ctx := c.Request.Context()
	id, ok := ctxutil.GetIdentity(ctx)
	if !ok {
		id = ctxutil.Identity{ClientIP: c.ClientIP()}
	}

	if !wantsStream(c) {
		res, err := h.chat.Respond(ctx, id, req)
		if err != nil {
			h.logFailure(err)
			response.RespondError(c, err)
			return
		}
		if res.BudgetWarning {
			c.Header(sse.HeaderTokenBudget, "warning")
		}
		response.RespondOK(c, res.Response)
		return
	}

	w, err := sse.NewWriter(c.Writer, c.GetHeader("Accept-Language"))
	if err != nil {
		response.RespondError(c, apierr.Internal(err))
		return
	}
	if err := h.chat.Stream(ctx, id, req, w); err != nil {
		h.logFailure(err)
		if !w.Opened() {
			response.RespondError(c, err)
		}
	}
}

func (h *ChatHandler) logFailure(err error) {
	ae := apierr.From(err)
	if ae.Status >= http.StatusInternalServerError {
		h.log.Error("chat failed", "code", ae.Code, "error", err)
	}
}

func wantsStream(c *gin.Context) bool {
	if strings.EqualFold(c.Query("stream"), "true") || c.Query("stream") == "1" {
		return true
	}
	return strings.Contains(strings.ToLower(c.GetHeader("Accept")), "text/event-stream")
}
