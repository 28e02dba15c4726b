package handlers

import (
	"context"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/yungbote/haven-backend/internal/domain/memory"
	"github.com/yungbote/haven-backend/internal/http/response"
	"github.com/yungbote/haven-backend/internal/platform/apierr"
	"github.com/yungbote/haven-backend/internal/platform/ctxutil"
)

type MemoryService interface {
	Load(ctx context.Context, userID string) (*memory.UserMemory, error)
	Delete(ctx context.Context, userID string) error
}

type MemoryHandler struct {
	memory MemoryService
}

func NewMemoryHandler(memory MemoryService) *MemoryHandler {
	return &MemoryHandler{memory: memory}
}

// GET /api/memory
func (h *MemoryHandler) Get(c *gin.Context) {
	userID, ok := h.userID(c)
	if !ok {
		return
	}
	m, err := h.memory.Load(c.Request.Context(), userID)
	if err != nil {
		response.RespondError(c, apierr.Internal(err))
		return
	}
	response.RespondOK(c, gin.H{"memory": m})
}

// DELETE /api/memory
func (h *MemoryHandler) Delete(c *gin.Context) {
	userID, ok := h.userID(c)
	if !ok {
		return
	}
	if err := h.memory.Delete(c.Request.Context(), userID); err != nil {
		response.RespondError(c, apierr.Internal(err))
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *MemoryHandler) userID(c *gin.Context) (string, bool) {
	id, ok := ctxutil.GetIdentity(c.Request.Context())
	if !ok || id.UserID == "" {
		response.RespondError(c, apierr.New(http.StatusUnauthorized, "unauthorized", fmt.Errorf("no user identity")))
		return "", false
	}
	return id.UserID, true
}
