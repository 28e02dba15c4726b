package repos

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"strings"

	"github.com/yungbote/haven-backend/internal/domain/knowledge"
	"github.com/yungbote/haven-backend/internal/platform/kvstore"
	"github.com/yungbote/haven-backend/internal/platform/logger"
)

const (
	collectionKnowledge      = "knowledge_doc"
	collectionEmbeddingCache = "embedding_cache"
)

type KnowledgeRepo interface {
	// List returns documents whose category starts with categoryPrefix.
	List(ctx context.Context, categoryPrefix string, limit int) ([]knowledge.Document, error)
	Put(ctx context.Context, doc *knowledge.Document) error
}

type knowledgeRepo struct {
	docs docRepo[knowledge.Document]
	log  *logger.Logger
}

func NewKnowledgeRepo(store kvstore.Store, log *logger.Logger) KnowledgeRepo {
	return &knowledgeRepo{
		docs: newDocRepo[knowledge.Document](store, collectionKnowledge),
		log:  log.With("repo", "KnowledgeRepo"),
	}
}

// Keys are "<category>/<id>" so a category filter is a prefix scan.
func knowledgeKey(doc *knowledge.Document) string {
	cat := strings.TrimSpace(doc.Category)
	if cat == "" {
		cat = "general"
	}
	return cat + "/" + doc.ID
}

func (r *knowledgeRepo) List(ctx context.Context, categoryPrefix string, limit int) ([]knowledge.Document, error) {
	docs, skipped, err := r.docs.scan(ctx, categoryPrefix, limit)
	if err != nil {
		return nil, err
	}
	if skipped > 0 {
		r.log.Warn("skipped undecodable knowledge documents", "count", skipped)
	}
	return docs, nil
}

func (r *knowledgeRepo) Put(ctx context.Context, doc *knowledge.Document) error {
	return r.docs.put(ctx, knowledgeKey(doc), doc)
}

type EmbeddingCacheRepo interface {
	Get(ctx context.Context, docID, content string) ([]float32, error)
	Put(ctx context.Context, docID, content string, vec []float32) error
}

type embeddingEntry struct {
	DocID     string    `json:"docId"`
	Embedding []float32 `json:"embedding"`
}

type embeddingCacheRepo struct {
	docs docRepo[embeddingEntry]
	ns   string
}

// NewEmbeddingCacheRepo namespaces entries by embedding model so switching
// models never mixes vector spaces.
func NewEmbeddingCacheRepo(store kvstore.Store, model string) EmbeddingCacheRepo {
	return &embeddingCacheRepo{
		docs: newDocRepo[embeddingEntry](store, collectionEmbeddingCache),
		ns:   strings.TrimSpace(model),
	}
}

func (r *embeddingCacheRepo) key(docID, content string) string {
	sum := sha256.Sum256([]byte(content))
	return r.ns + ":" + docID + ":" + hex.EncodeToString(sum[:])[:16]
}

// Get returns nil when nothing is cached for this exact content.
func (r *embeddingCacheRepo) Get(ctx context.Context, docID, content string) ([]float32, error) {
	e, err := r.docs.get(ctx, r.key(docID, content))
	if err != nil || e == nil {
		return nil, err
	}
	return e.Embedding, nil
}

func (r *embeddingCacheRepo) Put(ctx context.Context, docID, content string, vec []float32) error {
	return r.docs.put(ctx, r.key(docID, content), &embeddingEntry{DocID: docID, Embedding: vec})
}
