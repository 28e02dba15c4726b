package retrieval

import (
	"sort"

	"github.com/yungbote/haven-backend/internal/domain/knowledge"
)

type Weights struct {
	Lexical float64
	Dense   float64
}

func (w Weights) clamp() Weights {
	if w.Lexical < 0 {
		w.Lexical = 0
	}
	if w.Dense < 0 {
		w.Dense = 0
	}
	return w
}

// fuse scales each stage into [0, weight] by its own maximum, sums the
// contributions over the union of scored documents, sorts descending and
// keeps topK.
func fuse(docs []knowledge.Document, lexical, dense map[int]float64, w Weights, topK int) []knowledge.RetrievalResult {
	w = w.clamp()
	lexMax := maxScore(lexical)
	denseMax := maxScore(dense)

	union := map[int]struct{}{}
	for i := range lexical {
		union[i] = struct{}{}
	}
	for i := range dense {
		union[i] = struct{}{}
	}

	out := make([]knowledge.RetrievalResult, 0, len(union))
	for i := range union {
		lex := positive(lexical[i])
		den := positive(dense[i])
		var combined float64
		if lexMax > 0 {
			combined += lex / lexMax * w.Lexical
		}
		if denseMax > 0 {
			combined += den / denseMax * w.Dense
		}
		if combined <= 0 {
			continue
		}
		out = append(out, knowledge.RetrievalResult{
			Document:      docs[i],
			LexicalScore:  lex,
			DenseScore:    den,
			CombinedScore: combined,
		})
	}

	sort.Slice(out, func(a, b int) bool {
		if out[a].CombinedScore != out[b].CombinedScore {
			return out[a].CombinedScore > out[b].CombinedScore
		}
		return out[a].Document.ID < out[b].Document.ID
	})
	if topK > 0 && len(out) > topK {
		out = out[:topK]
	}
	return out
}

func maxScore(m map[int]float64) float64 {
	var mx float64
	for _, v := range m {
		if v > mx {
			mx = v
		}
	}
	return mx
}

func positive(v float64) float64 {
	if v < 0 {
		return 0
	}
	return v
}
