// Package retrieval implements hybrid lexical and dense search over the
// knowledge documents, with an optional model re-rank.
package retrieval

import (
	"context"
	"time"

	"github.com/yungbote/haven-backend/internal/data/repos"
	"github.com/yungbote/haven-backend/internal/domain/knowledge"
	"github.com/yungbote/haven-backend/internal/platform/llm"
	"github.com/yungbote/haven-backend/internal/platform/logger"
)

type Embedder interface {
	Embed(ctx context.Context, inputs []string) ([][]float32, error)
}

type Completer interface {
	GenerateText(ctx context.Context, messages []llm.Message, opts llm.GenerateOptions) (llm.Result, error)
}

type Config struct {
	Enabled            bool
	Weights            Weights
	TopK               int
	Rerank             bool
	MaxDocuments       int
	MaxDenseCandidates int
	CategoryPrefix     string
	Timeout            time.Duration
}

func (c Config) withDefaults() Config {
	if c.Weights.Lexical == 0 && c.Weights.Dense == 0 {
		c.Weights = Weights{Lexical: 0.4, Dense: 0.6}
	}
	if c.TopK <= 0 {
		c.TopK = 3
	}
	if c.MaxDocuments <= 0 {
		c.MaxDocuments = 500
	}
	if c.MaxDenseCandidates <= 0 {
		c.MaxDenseCandidates = 50
	}
	if c.Timeout <= 0 {
		c.Timeout = 8 * time.Second
	}
	return c
}

type Engine struct {
	cfg       Config
	docs      repos.KnowledgeRepo
	cache     repos.EmbeddingCacheRepo
	embedder  Embedder
	completer Completer
	log       *logger.Logger
}

func NewEngine(cfg Config, docs repos.KnowledgeRepo, cache repos.EmbeddingCacheRepo, embedder Embedder, completer Completer, log *logger.Logger) *Engine {
	return &Engine{
		cfg:       cfg.withDefaults(),
		docs:      docs,
		cache:     cache,
		embedder:  embedder,
		completer: completer,
		log:       log.With("module", "Retrieval"),
	}
}

// Outcome is what one retrieval produced, for the prompt and the trace.
type Outcome struct {
	Results     []knowledge.RetrievalResult
	Context     string
	Documents   int
	LexicalHits int
	DenseHits   int
	Reranked    bool
	Usage       llm.Usage
	// Errors are degraded stages; retrieval never fails a request.
	Errors []string
}

// HybridSearch ranks documents for query. A failing dense stage degrades to
// lexical-only ranking.
func (e *Engine) HybridSearch(ctx context.Context, query string, documents []knowledge.Document, weights Weights, topK int) ([]knowledge.RetrievalResult, error) {
	out := e.search(ctx, query, documents, weights, topK, false)
	return out.Results, nil
}

func (e *Engine) search(ctx context.Context, query string, documents []knowledge.Document, weights Weights, topK int, rerank bool) Outcome {
	out := Outcome{Documents: len(documents)}
	if len(documents) == 0 {
		return out
	}

	lex := lexicalScores(query, documents)
	out.LexicalHits = len(lex)

	var dense map[int]float64
	if e.embedder != nil {
		candidates := denseCandidates(len(documents), lex, e.cfg.MaxDenseCandidates)
		var err error
		dense, err = e.denseScores(ctx, query, documents, candidates)
		if err != nil {
			e.log.Warn("dense retrieval degraded", "error", err)
			out.Errors = append(out.Errors, "dense: "+err.Error())
			dense = nil
		}
	}
	out.DenseHits = len(dense)

	out.Results = fuse(documents, lex, dense, weights, topK)
	if rerank {
		var reranked bool
		out.Results, out.Usage, reranked = e.rerank(ctx, query, out.Results)
		out.Reranked = reranked
	}
	return out
}

// denseCandidates takes lexical hits first, then fills in document order.
func denseCandidates(n int, lex map[int]float64, max int) []int {
	out := make([]int, 0, min(n, max))
	seen := make(map[int]bool, len(lex))
	for i := range lex {
		if len(out) >= max {
			break
		}
		out = append(out, i)
		seen[i] = true
	}
	for i := 0; i < n && len(out) < max; i++ {
		if !seen[i] {
			out = append(out, i)
		}
	}
	return out
}

// Retrieve loads the knowledge documents and runs the configured search.
// It never returns an error; failures are reported in Outcome.Errors.
func (e *Engine) Retrieve(ctx context.Context, query string) Outcome {
	if !e.cfg.Enabled || e.docs == nil {
		return Outcome{}
	}
	ctx, cancel := context.WithTimeout(ctx, e.cfg.Timeout)
	defer cancel()

	docs, err := e.docs.List(ctx, e.cfg.CategoryPrefix, e.cfg.MaxDocuments)
	if err != nil {
		e.log.Warn("knowledge load failed", "error", err)
		return Outcome{Errors: []string{"load: " + err.Error()}}
	}
	out := e.search(ctx, query, docs, e.cfg.Weights, e.cfg.TopK, e.cfg.Rerank)
	out.Context = FormatContext(out.Results)
	return out
}
