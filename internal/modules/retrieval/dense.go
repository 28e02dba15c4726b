package retrieval

import (
	"context"
	"fmt"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/yungbote/haven-backend/internal/domain/knowledge"
)

const (
	embedBatchSize   = 16
	embedConcurrency = 4
)

// denseScores returns cosine similarity between the query and each
// candidate. Document vectors come from the document itself, then the
// cache, then the embedder. Keys are indexes into docs.
func (e *Engine) denseScores(ctx context.Context, query string, docs []knowledge.Document, candidates []int) (map[int]float64, error) {
	if len(candidates) == 0 {
		return nil, nil
	}
	qv, err := e.embedder.Embed(ctx, []string{query})
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}
	if len(qv) != 1 || len(qv[0]) == 0 {
		return nil, fmt.Errorf("embed query: empty vector")
	}

	vecs := make(map[int][]float32, len(candidates))
	var missing []int
	for _, i := range candidates {
		d := docs[i]
		if len(d.Embedding) > 0 {
			vecs[i] = d.Embedding
			continue
		}
		if e.cache != nil {
			v, err := e.cache.Get(ctx, d.ID, d.Content)
			if err != nil {
				e.log.Debug("embedding cache read failed", "doc_id", d.ID, "error", err)
			} else if len(v) > 0 {
				vecs[i] = v
				continue
			}
		}
		missing = append(missing, i)
	}

	if len(missing) > 0 {
		computed, err := e.embedDocs(ctx, docs, missing)
		if err != nil {
			return nil, err
		}
		for i, v := range computed {
			vecs[i] = v
		}
	}

	out := make(map[int]float64, len(vecs))
	for i, v := range vecs {
		out[i] = cosine(qv[0], v)
	}
	return out, nil
}

func (e *Engine) embedDocs(ctx context.Context, docs []knowledge.Document, idxs []int) (map[int][]float32, error) {
	var (
		mu  sync.Mutex
		out = make(map[int][]float32, len(idxs))
	)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(embedConcurrency)

	for start := 0; start < len(idxs); start += embedBatchSize {
		end := start + embedBatchSize
		if end > len(idxs) {
			end = len(idxs)
		}
		batch := idxs[start:end]
		g.Go(func() error {
			inputs := make([]string, len(batch))
			for j, i := range batch {
				inputs[j] = docs[i].Content
			}
			vs, err := e.embedder.Embed(gctx, inputs)
			if err != nil {
				return fmt.Errorf("embed documents: %w", err)
			}
			if len(vs) != len(batch) {
				return fmt.Errorf("embed documents: got %d vectors for %d inputs", len(vs), len(batch))
			}
			mu.Lock()
			for j, i := range batch {
				out[i] = vs[j]
			}
			mu.Unlock()

			if e.cache != nil {
				for j, i := range batch {
					if err := e.cache.Put(gctx, docs[i].ID, docs[i].Content, vs[j]); err != nil {
						e.log.Debug("embedding cache write failed", "doc_id", docs[i].ID, "error", err)
					}
				}
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}
