package repos

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/yungbote/haven-backend/internal/domain/knowledge"
	"github.com/yungbote/haven-backend/internal/domain/memory"
	"github.com/yungbote/haven-backend/internal/platform/kvstore"
	"github.com/yungbote/haven-backend/internal/platform/logger"
)

func TestUserMemoryRepo(t *testing.T) {
	ctx := context.Background()
	r := NewUserMemoryRepo(kvstore.NewMemoryStore(), logger.Nop())

	got, err := r.Get(ctx, "u1")
	require.NoError(t, err)
	assert.Nil(t, got)

	m := memory.NewUserMemory("u1", time.Date(2026, 1, 2, 0, 0, 0, 0, time.UTC))
	m.KeyTopics = []string{"school"}
	require.NoError(t, r.Put(ctx, m))

	got, err = r.Get(ctx, "u1")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, []string{"school"}, got.KeyTopics)
	assert.Equal(t, memory.TrustNew, got.TrustLevel)

	require.NoError(t, r.Delete(ctx, "u1"))
	got, err = r.Get(ctx, "u1")
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestKnowledgeRepoCategoryFilter(t *testing.T) {
	ctx := context.Background()
	store := kvstore.NewMemoryStore()
	r := NewKnowledgeRepo(store, logger.Nop())

	require.NoError(t, r.Put(ctx, &knowledge.Document{ID: "1", Category: "stress", Content: "a"}))
	require.NoError(t, r.Put(ctx, &knowledge.Document{ID: "2", Category: "sleep", Content: "b"}))
	require.NoError(t, r.Put(ctx, &knowledge.Document{ID: "3", Content: "c"}))
	require.NoError(t, store.Put(ctx, collectionKnowledge, "stress/bad", []byte("not json")))

	all, err := r.List(ctx, "", 0)
	require.NoError(t, err)
	assert.Len(t, all, 3)

	stress, err := r.List(ctx, "stress/", 0)
	require.NoError(t, err)
	require.Len(t, stress, 1)
	assert.Equal(t, "1", stress[0].ID)
}

func TestEmbeddingCacheKeyedByContent(t *testing.T) {
	ctx := context.Background()
	r := NewEmbeddingCacheRepo(kvstore.NewMemoryStore(), "embed-v1")

	require.NoError(t, r.Put(ctx, "doc", "hello", []float32{1, 2}))
	vec, err := r.Get(ctx, "doc", "hello")
	require.NoError(t, err)
	assert.Equal(t, []float32{1, 2}, vec)

	vec, err = r.Get(ctx, "doc", "hello, edited")
	require.NoError(t, err)
	assert.Nil(t, vec)
}

func TestUserMemoryRepoLogsDelete(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	log := &logger.Logger{SugaredLogger: zap.New(core).Sugar()}
	ctx := context.Background()
	r := NewUserMemoryRepo(kvstore.NewMemoryStore(), log)

	require.NoError(t, r.Put(ctx, memory.NewUserMemory("u1", time.Date(2026, 1, 2, 0, 0, 0, 0, time.UTC))))
	require.NoError(t, r.Delete(ctx, "u1"))

	deleted := logs.FilterMessage("user memory deleted").All()
	require.Len(t, deleted, 1)
	fields := deleted[0].ContextMap()
	assert.Equal(t, "UserMemoryRepo", fields["repo"])
	assert.NotEqual(t, "u1", fields["user_id"], "user ids are hashed in logs")
}
