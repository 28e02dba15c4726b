package chat

import "strings"

type RiskTier string

const (
	RiskGreen  RiskTier = "green"
	RiskYellow RiskTier = "yellow"
	RiskRed    RiskTier = "red"
)

func (r RiskTier) rank() int {
	switch r {
	case RiskRed:
		return 2
	case RiskYellow:
		return 1
	default:
		return 0
	}
}

// ParseRiskTier maps unknown values to green.
func ParseRiskTier(s string) RiskTier {
	switch RiskTier(strings.ToLower(strings.TrimSpace(s))) {
	case RiskRed:
		return RiskRed
	case RiskYellow:
		return RiskYellow
	default:
		return RiskGreen
	}
}

// Max returns the more severe tier. Rule tiers are floors, so reconciling a
// rule tier with a model tier is Max(rule, model).
func Max(a, b RiskTier) RiskTier {
	if b.rank() > a.rank() {
		return b
	}
	return a
}
