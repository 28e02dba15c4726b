package memory

import (
	"strings"

	"github.com/yungbote/haven-backend/internal/domain/memory"
)

const sentenceLookahead = 100

// Compact appends newFacts to existing. When the result is longer than
// memory.MaxSummaryChars it keeps the trailing characters and then skips
// ahead to the first sentence boundary inside the first sentenceLookahead
// characters, if there is one. Without a boundary the cut may land
// mid-sentence.
func Compact(existing, newFacts string) string {
	existing = strings.TrimSpace(existing)
	newFacts = strings.TrimSpace(newFacts)

	combined := existing
	switch {
	case combined == "":
		combined = newFacts
	case newFacts != "":
		combined = combined + " " + newFacts
	}

	r := []rune(combined)
	if len(r) <= memory.MaxSummaryChars {
		return combined
	}
	r = r[len(r)-memory.MaxSummaryChars:]

	limit := sentenceLookahead
	if limit > len(r)-1 {
		limit = len(r) - 1
	}
	for i := 0; i < limit; i++ {
		if isSentenceEnd(r[i]) && (r[i+1] == ' ' || r[i+1] == '\n') {
			return strings.TrimSpace(string(r[i+1:]))
		}
	}
	return strings.TrimSpace(string(r))
}

func isSentenceEnd(c rune) bool {
	return c == '.' || c == '!' || c == '?' || c == '…'
}
