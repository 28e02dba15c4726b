package safety

import (
	"github.com/yungbote/haven-backend/internal/domain/chat"
)

const (
	historyWindow         = 3
	historyYellowMatchMin = 2
)

// Classification explains a tier decision for tracing.
type Classification struct {
	Tier    chat.RiskTier
	Rule    string
	Source  string // "message", "history" or ""
	Version string
}

type Classifier struct {
	tables *Tables
}

func NewClassifier(t *Tables) *Classifier {
	return &Classifier{tables: t}
}

func (c *Classifier) Classify(text string, recentHistory []chat.Message) chat.RiskTier {
	return c.Explain(text, recentHistory).Tier
}

// Explain runs the cascade: red, then yellow, then the history heuristic,
// first match wins.
func (c *Classifier) Explain(text string, recentHistory []chat.Message) Classification {
	out := Classification{Tier: chat.RiskGreen, Version: c.tables.Version}
	lower, stripped := Normalize(text)

	if rule, ok := firstMatch(c.tables.red, lower, stripped); ok {
		out.Tier, out.Rule, out.Source = chat.RiskRed, rule, "message"
		return out
	}
	if rule, ok := firstMatch(c.tables.yellow, lower, stripped); ok {
		out.Tier, out.Rule, out.Source = chat.RiskYellow, rule, "message"
		return out
	}

	hits := 0
	var lastRule string
	for _, m := range lastTurns(recentHistory, historyWindow) {
		hl, hs := Normalize(m.Content)
		if rule, ok := firstMatch(c.tables.yellow, hl, hs); ok {
			hits++
			lastRule = rule
		}
	}
	if hits >= historyYellowMatchMin {
		out.Tier, out.Rule, out.Source = chat.RiskYellow, lastRule, "history"
	}
	return out
}

func firstMatch(ps []pattern, lower, stripped string) (string, bool) {
	for _, p := range ps {
		if p.match(lower, stripped) {
			return p.src, true
		}
	}
	return "", false
}

// lastTurns returns up to n trailing non-system messages.
func lastTurns(history []chat.Message, n int) []chat.Message {
	out := make([]chat.Message, 0, n)
	for i := len(history) - 1; i >= 0 && len(out) < n; i-- {
		if history[i].Role == chat.RoleSystem {
			continue
		}
		out = append(out, history[i])
	}
	return out
}
