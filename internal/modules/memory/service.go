package memory

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/yungbote/haven-backend/internal/data/repos"
	"github.com/yungbote/haven-backend/internal/domain/chat"
	"github.com/yungbote/haven-backend/internal/domain/memory"
	"github.com/yungbote/haven-backend/internal/platform/logger"
)

const (
	familiarAfter = 10
	trustedAfter  = 50
)

// Turn is what the orchestrator hands to Update after a reply went out.
type Turn struct {
	UserID          string
	Message         string
	Update          *chat.MemoryUpdate
	NewConversation bool
}

type Service struct {
	repo repos.UserMemoryRepo
	log  *logger.Logger
	now  func() time.Time
}

func NewService(repo repos.UserMemoryRepo, log *logger.Logger) *Service {
	return &Service{
		repo: repo,
		log:  log.With("module", "memory"),
		now:  time.Now,
	}
}

// Load returns the stored memory for userID or a fresh default one. Defaults
// are not persisted until the first Update.
func (s *Service) Load(ctx context.Context, userID string) (*memory.UserMemory, error) {
	if userID == "" {
		return nil, fmt.Errorf("load memory: empty user id")
	}
	m, err := s.repo.Get(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("load memory: %w", err)
	}
	if m == nil {
		return memory.NewUserMemory(userID, s.now().UTC()), nil
	}
	normalize(m)
	return m, nil
}

// Update applies one turn to the stored memory and writes it back. It is a
// plain read-modify-write; concurrent turns for the same user can lose an
// update.
func (s *Service) Update(ctx context.Context, turn Turn) error {
	m, err := s.Load(ctx, turn.UserID)
	if err != nil {
		return err
	}
	Apply(m, turn, s.now().UTC())
	if err := s.repo.Put(ctx, m); err != nil {
		return fmt.Errorf("save memory: %w", err)
	}
	s.log.Debug("memory updated",
		"user_id", turn.UserID,
		"trust_level", m.TrustLevel,
		"total_messages", m.TotalMessages,
		"topics", len(m.KeyTopics),
	)
	return nil
}

func (s *Service) Delete(ctx context.Context, userID string) error {
	if err := s.repo.Delete(ctx, userID); err != nil {
		return fmt.Errorf("delete memory: %w", err)
	}
	return nil
}

// Apply mutates m for a single turn.
func Apply(m *memory.UserMemory, turn Turn, now time.Time) {
	normalize(m)
	m.TotalMessages++
	m.LastInteractionAt = now
	if turn.NewConversation || m.TotalConversations == 0 {
		m.TotalConversations++
	}
	if next := trustFor(m.TotalMessages); next.Rank() > m.TrustLevel.Rank() {
		m.TrustLevel = next
	}

	u := turn.Update
	if !u.Remember() {
		return
	}

	m.KeyTopics = pushRecent(m.KeyTopics, ExtractTopics(turn.Message), memory.MaxTopics)
	if u == nil {
		return
	}

	if m.DisplayName == "" {
		m.DisplayName = strings.TrimSpace(u.DisplayName)
	}
	if strings.TrimSpace(u.NewFacts) != "" {
		m.MemorySummary = Compact(m.MemorySummary, u.NewFacts)
	}
	if e := strings.TrimSpace(u.Emotion); e != "" {
		m.KeyEmotions = append(m.KeyEmotions, memory.EmotionEntry{Emotion: e, Timestamp: now})
		if len(m.KeyEmotions) > memory.MaxEmotions {
			m.KeyEmotions = m.KeyEmotions[len(m.KeyEmotions)-memory.MaxEmotions:]
		}
	}
	m.CurrentStruggles = appendUnique(m.CurrentStruggles, u.Struggles, memory.MaxStruggles)
	m.PositiveAspects = appendUnique(m.PositiveAspects, u.PositiveAspects, memory.MaxPositives)
}

func trustFor(total int) memory.TrustLevel {
	switch {
	case total >= trustedAfter:
		return memory.TrustTrusted
	case total >= familiarAfter:
		return memory.TrustFamiliar
	default:
		return memory.TrustNew
	}
}

// pushRecent moves each tag to the end of list and keeps the newest max.
func pushRecent(list, tags []string, max int) []string {
	for _, t := range tags {
		out := list[:0:0]
		for _, existing := range list {
			if existing != t {
				out = append(out, existing)
			}
		}
		list = append(out, t)
	}
	if len(list) > max {
		list = list[len(list)-max:]
	}
	return list
}

func appendUnique(list, items []string, max int) []string {
	seen := make(map[string]bool, len(list))
	for _, v := range list {
		seen[strings.ToLower(v)] = true
	}
	for _, it := range items {
		it = strings.TrimSpace(it)
		k := strings.ToLower(it)
		if it == "" || seen[k] {
			continue
		}
		seen[k] = true
		list = append(list, it)
	}
	if len(list) > max {
		list = list[len(list)-max:]
	}
	return list
}

func normalize(m *memory.UserMemory) {
	if m.KeyTopics == nil {
		m.KeyTopics = []string{}
	}
	if m.KeyEmotions == nil {
		m.KeyEmotions = []memory.EmotionEntry{}
	}
	if m.CurrentStruggles == nil {
		m.CurrentStruggles = []string{}
	}
	if m.PositiveAspects == nil {
		m.PositiveAspects = []string{}
	}
	if m.TrustLevel == "" {
		m.TrustLevel = memory.TrustNew
	}
}
