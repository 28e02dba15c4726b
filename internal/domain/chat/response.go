package chat

const MaxActions = 4

type Hotline struct {
	Name        string `json:"name" yaml:"name"`
	Phone       string `json:"phone" yaml:"phone"`
	Description string `json:"description" yaml:"description"`
}

// MemoryUpdate is what the model asks us to remember. Never sent to clients.
type MemoryUpdate struct {
	ShouldRemember  *bool    `json:"shouldRemember,omitempty"`
	DisplayName     string   `json:"displayName,omitempty"`
	NewFacts        string   `json:"newFacts,omitempty"`
	Emotion         string   `json:"emotion,omitempty"`
	Struggles       []string `json:"struggles,omitempty"`
	PositiveAspects []string `json:"positiveAspects,omitempty"`
}

func (u *MemoryUpdate) Remember() bool {
	return u == nil || u.ShouldRemember == nil || *u.ShouldRemember
}

type Response struct {
	RiskLevel    RiskTier      `json:"riskLevel"`
	Emotion      string        `json:"emotion"`
	Reply        string        `json:"reply"`
	NextQuestion string        `json:"nextQuestion"`
	Actions      []string      `json:"actions"`
	Confidence   float64       `json:"confidence"`
	Hotlines     []Hotline     `json:"hotlines,omitempty"`
	MemoryUpdate *MemoryUpdate `json:"-"`
}
