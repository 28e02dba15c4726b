package retrieval

import (
	"math"
	"sort"
	"strings"
	"unicode"

	"github.com/yungbote/haven-backend/internal/domain/knowledge"
)

const lexicalTopN = 10

// tokenize splits on whitespace, lowercases, trims edge punctuation and
// drops tokens of one rune or less.
func tokenize(s string) []string {
	fields := strings.Fields(strings.ToLower(s))
	out := fields[:0]
	for _, f := range fields {
		f = strings.TrimFunc(f, func(r rune) bool { return !unicode.IsLetter(r) && !unicode.IsNumber(r) })
		if len([]rune(f)) <= 1 {
			continue
		}
		out = append(out, f)
	}
	return out
}

func docText(d knowledge.Document) string {
	return d.Title + " " + d.Content + " " + strings.Join(d.Tags, " ")
}

type scored struct {
	idx   int
	score float64
}

// lexicalScores scores each document as sum over query terms of
// tf(term, doc) * log(N / (df(term)+1)), drops non-positive scores and
// keeps the best lexicalTopN. Keys are indexes into docs.
func lexicalScores(query string, docs []knowledge.Document) map[int]float64 {
	terms := tokenize(query)
	if len(terms) == 0 || len(docs) == 0 {
		return nil
	}

	tfs := make([]map[string]int, len(docs))
	df := map[string]int{}
	for i, d := range docs {
		counts := map[string]int{}
		for _, tok := range tokenize(docText(d)) {
			counts[tok]++
		}
		tfs[i] = counts
		for tok := range counts {
			df[tok]++
		}
	}

	n := float64(len(docs))
	var hits []scored
	for i := range docs {
		var s float64
		for _, term := range terms {
			tf := tfs[i][term]
			if tf == 0 {
				continue
			}
			s += float64(tf) * math.Log(n/float64(df[term]+1))
		}
		if s > 0 {
			hits = append(hits, scored{idx: i, score: s})
		}
	}

	sort.SliceStable(hits, func(a, b int) bool { return hits[a].score > hits[b].score })
	if len(hits) > lexicalTopN {
		hits = hits[:lexicalTopN]
	}
	out := make(map[int]float64, len(hits))
	for _, h := range hits {
		out[h.idx] = h.score
	}
	return out
}
