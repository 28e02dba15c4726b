package memory

import "time"

type TrustLevel string

const (
	TrustNew      TrustLevel = "new"
	TrustFamiliar TrustLevel = "familiar"
	TrustTrusted  TrustLevel = "trusted"
)

func (t TrustLevel) Rank() int {
	switch t {
	case TrustTrusted:
		return 2
	case TrustFamiliar:
		return 1
	default:
		return 0
	}
}

const (
	MaxSummaryChars = 500
	MaxTopics       = 15
	MaxEmotions     = 30
	MaxStruggles    = 10
	MaxPositives    = 10
)

type EmotionEntry struct {
	Emotion   string    `json:"emotion"`
	Timestamp time.Time `json:"timestamp"`
}

type UserMemory struct {
	UserID             string         `json:"userId"`
	DisplayName        string         `json:"displayName,omitempty"`
	AgeRange           string         `json:"ageRange,omitempty"`
	MemorySummary      string         `json:"memorySummary"`
	KeyTopics          []string       `json:"keyTopics"`
	KeyEmotions        []EmotionEntry `json:"keyEmotions"`
	CurrentStruggles   []string       `json:"currentStruggles"`
	PositiveAspects    []string       `json:"positiveAspects"`
	TrustLevel         TrustLevel     `json:"trustLevel"`
	TotalConversations int            `json:"totalConversations"`
	TotalMessages      int            `json:"totalMessages"`
	FirstInteractionAt time.Time      `json:"firstInteractionAt"`
	LastInteractionAt  time.Time      `json:"lastInteractionAt"`
}

func NewUserMemory(userID string, now time.Time) *UserMemory {
	return &UserMemory{
		UserID:             userID,
		KeyTopics:          []string{},
		KeyEmotions:        []EmotionEntry{},
		CurrentStruggles:   []string{},
		PositiveAspects:    []string{},
		TrustLevel:         TrustNew,
		FirstInteractionAt: now,
		LastInteractionAt:  now,
	}
}
