package repos

import (
	"context"

	"github.com/yungbote/haven-backend/internal/domain/memory"
	"github.com/yungbote/haven-backend/internal/platform/kvstore"
	"github.com/yungbote/haven-backend/internal/platform/logger"
)

const collectionUserMemory = "user_memory"

type UserMemoryRepo interface {
	Get(ctx context.Context, userID string) (*memory.UserMemory, error)
	Put(ctx context.Context, m *memory.UserMemory) error
	Delete(ctx context.Context, userID string) error
}

type userMemoryRepo struct {
	docs docRepo[memory.UserMemory]
	log  *logger.Logger
}

func NewUserMemoryRepo(store kvstore.Store, log *logger.Logger) UserMemoryRepo {
	return &userMemoryRepo{
		docs: newDocRepo[memory.UserMemory](store, collectionUserMemory),
		log:  log.With("repo", "UserMemoryRepo"),
	}
}

func (r *userMemoryRepo) Get(ctx context.Context, userID string) (*memory.UserMemory, error) {
	return r.docs.get(ctx, userID)
}

func (r *userMemoryRepo) Put(ctx context.Context, m *memory.UserMemory) error {
	return r.docs.put(ctx, m.UserID, m)
}

func (r *userMemoryRepo) Delete(ctx context.Context, userID string) error {
	if err := r.docs.delete(ctx, userID); err != nil {
		return err
	}
	r.log.Info("user memory deleted", "user_id", userID)
	return nil
}
