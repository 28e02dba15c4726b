package retrieval

import (
	"fmt"
	"strings"

	"github.com/yungbote/haven-backend/internal/domain/knowledge"
)

const contextSnippetChars = 300

// FormatContext renders results as a numbered reference block for the
// system prompt. Empty input yields an empty string.
func FormatContext(results []knowledge.RetrievalResult) string {
	if len(results) == 0 {
		return ""
	}
	var b strings.Builder
	b.WriteString("THÔNG TIN THAM KHẢO (chỉ dùng khi liên quan tới câu hỏi):\n")
	for i, r := range results {
		fmt.Fprintf(&b, "[%d] (Nguồn: %s) %s\n", i+1, r.Document.Label(), trimToChars(r.Document.Content, contextSnippetChars))
	}
	return strings.TrimRight(b.String(), "\n")
}
