package retrieval

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/yungbote/haven-backend/internal/domain/knowledge"
	"github.com/yungbote/haven-backend/internal/platform/llm"
)

const rerankSystemPrompt = `You rank reference passages for a supportive chat assistant.
Return ONLY a JSON array of passage numbers (1-based), most relevant first, e.g. [2,1,3].`

// rerank asks the completion engine for a permutation. The fusion order is
// kept when the call fails or the reply is not an array of indexes.
func (e *Engine) rerank(ctx context.Context, query string, results []knowledge.RetrievalResult) ([]knowledge.RetrievalResult, llm.Usage, bool) {
	if e.completer == nil || len(results) < 2 {
		return results, llm.Usage{}, false
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Question: %s\n\nPassages:\n", trimToChars(query, 500))
	for i, r := range results {
		fmt.Fprintf(&b, "%d. %s\n", i+1, trimToChars(r.Document.Content, 300))
	}

	res, err := e.completer.GenerateText(ctx, []llm.Message{
		{Role: "system", Content: rerankSystemPrompt},
		{Role: "user", Content: b.String()},
	}, llm.GenerateOptions{Temperature: 0, MaxTokens: 64})
	if err != nil {
		e.log.Debug("rerank failed", "error", err)
		return results, llm.Usage{}, false
	}
	order, ok := parseRankArray(res.Text)
	if !ok {
		return results, res.Usage, false
	}
	return applyOrder(results, order), res.Usage, true
}

func parseRankArray(text string) ([]int, bool) {
	start := strings.Index(text, "[")
	end := strings.LastIndex(text, "]")
	if start < 0 || end <= start {
		return nil, false
	}
	var order []int
	if err := json.Unmarshal([]byte(text[start:end+1]), &order); err != nil {
		return nil, false
	}
	return order, true
}

// applyOrder places the listed 1-based indexes first; invalid or repeated
// entries are ignored and unlisted results keep their relative order.
func applyOrder(results []knowledge.RetrievalResult, order []int) []knowledge.RetrievalResult {
	out := make([]knowledge.RetrievalResult, 0, len(results))
	used := make([]bool, len(results))
	for _, n := range order {
		i := n - 1
		if i < 0 || i >= len(results) || used[i] {
			continue
		}
		used[i] = true
		out = append(out, results[i])
	}
	for i, r := range results {
		if !used[i] {
			out = append(out, r)
		}
	}
	return out
}
