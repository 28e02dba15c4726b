package memory

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yungbote/haven-backend/internal/data/repos"
	"github.com/yungbote/haven-backend/internal/domain/chat"
	"github.com/yungbote/haven-backend/internal/domain/memory"
	"github.com/yungbote/haven-backend/internal/platform/kvstore"
	"github.com/yungbote/haven-backend/internal/platform/logger"
)

var t0 = time.Date(2026, 9, 1, 8, 0, 0, 0, time.UTC)

func boolPtr(b bool) *bool { return &b }

func TestCompact(t *testing.T) {
	if got := Compact("", "Thích vẽ."); got != "Thích vẽ." {
		t.Fatalf("empty existing: got %q", got)
	}
	if got := Compact("Học lớp 9.", "Thích vẽ."); got != "Học lớp 9. Thích vẽ." {
		t.Fatalf("append: got %q", got)
	}
	if got := Compact("Học lớp 9.", "  "); got != "Học lớp 9." {
		t.Fatalf("blank facts: got %q", got)
	}

	long := strings.Repeat("abc. ", 120)
	got := Compact(long, "Tôi thích vẽ.")
	if n := utf8.RuneCountInString(got); n > memory.MaxSummaryChars {
		t.Fatalf("compacted length %d > %d", n, memory.MaxSummaryChars)
	}
	if !strings.HasPrefix(got, "abc.") {
		t.Fatalf("expected sentence-aligned start, got %q", got[:12])
	}
	if !strings.HasSuffix(got, "Tôi thích vẽ.") {
		t.Fatalf("newest facts must survive, got tail %q", got[len(got)-20:])
	}

	noBoundary := Compact(strings.Repeat("x", 700), "")
	if n := utf8.RuneCountInString(noBoundary); n != memory.MaxSummaryChars {
		t.Fatalf("no boundary: got %d runes", n)
	}
}

func TestCompactNeverExceedsLimit(t *testing.T) {
	inputs := []string{
		strings.Repeat("ồ ", 400),
		strings.Repeat("Mình buồn lắm! ", 60),
		strings.Repeat("?", 1000),
		strings.Repeat("a", 499),
	}
	for i, in := range inputs {
		got := Compact(in, strings.Repeat("đ", 30))
		if n := utf8.RuneCountInString(got); n > memory.MaxSummaryChars {
			t.Fatalf("case %d: %d runes", i, n)
		}
	}
}

func TestExtractTopics(t *testing.T) {
	tests := []struct {
		msg  string
		want []string
	}{
		{"Mình lo lắng về kỳ thi sắp tới", []string{"anxiety", "exams"}},
		{"mình thích vẽ", []string{"hobbies"}},
		{"Tối qua mất ngủ vì bố mẹ cãi nhau", []string{"family", "sleep"}},
		{"hôm nay trời đẹp", nil},
	}
	for _, tt := range tests {
		got := ExtractTopics(tt.msg)
		if fmt.Sprint(got) != fmt.Sprint(tt.want) {
			t.Fatalf("ExtractTopics(%q) = %v, want %v", tt.msg, got, tt.want)
		}
	}
}

func TestApplyTrustIsMonotonic(t *testing.T) {
	m := memory.NewUserMemory("u1", t0)
	for i := 1; i <= 60; i++ {
		Apply(m, Turn{UserID: "u1", Message: "chào"}, t0.Add(time.Duration(i)*time.Minute))
		switch i {
		case 9:
			require.Equal(t, memory.TrustNew, m.TrustLevel)
		case 10:
			require.Equal(t, memory.TrustFamiliar, m.TrustLevel)
		case 49:
			require.Equal(t, memory.TrustFamiliar, m.TrustLevel)
		case 50:
			require.Equal(t, memory.TrustTrusted, m.TrustLevel)
		}
	}

	m.TotalMessages = 0
	Apply(m, Turn{UserID: "u1", Message: "chào"}, t0)
	assert.Equal(t, memory.TrustTrusted, m.TrustLevel)
}

func TestApplyRemember(t *testing.T) {
	m := memory.NewUserMemory("u1", t0)
	Apply(m, Turn{
		UserID:          "u1",
		Message:         "Mình bị bắt nạt ở trường",
		NewConversation: true,
		Update: &chat.MemoryUpdate{
			DisplayName:     "Minh",
			NewFacts:        "Học lớp 8.",
			Emotion:         "buồn",
			Struggles:       []string{"bị bắt nạt", "Bị bắt nạt", ""},
			PositiveAspects: []string{"thích vẽ"},
		},
	}, t0)

	assert.Equal(t, 1, m.TotalMessages)
	assert.Equal(t, 1, m.TotalConversations)
	assert.Equal(t, "Minh", m.DisplayName)
	assert.Equal(t, "Học lớp 8.", m.MemorySummary)
	assert.Equal(t, []string{"bullying", "school"}, m.KeyTopics)
	assert.Equal(t, []string{"bị bắt nạt"}, m.CurrentStruggles)
	assert.Equal(t, []string{"thích vẽ"}, m.PositiveAspects)
	require.Len(t, m.KeyEmotions, 1)
	assert.Equal(t, "buồn", m.KeyEmotions[0].Emotion)

	Apply(m, Turn{
		UserID:  "u1",
		Message: "đi học mệt quá",
		Update:  &chat.MemoryUpdate{DisplayName: "Nam", NewFacts: "Hay thức khuya."},
	}, t0.Add(time.Hour))
	assert.Equal(t, "Minh", m.DisplayName, "display name is only set once")
	assert.Equal(t, "Học lớp 8. Hay thức khuya.", m.MemorySummary)
	assert.Equal(t, []string{"bullying", "school"}, m.KeyTopics)
	assert.Equal(t, 1, m.TotalConversations)
}

func TestApplyShouldRememberFalse(t *testing.T) {
	m := memory.NewUserMemory("u1", t0)
	Apply(m, Turn{
		UserID:  "u1",
		Message: "Mình lo lắng về kỳ thi",
		Update:  &chat.MemoryUpdate{ShouldRemember: boolPtr(false), NewFacts: "bí mật", Emotion: "lo"},
	}, t0.Add(time.Minute))

	assert.Equal(t, 1, m.TotalMessages)
	assert.Equal(t, t0.Add(time.Minute), m.LastInteractionAt)
	assert.Empty(t, m.MemorySummary)
	assert.Empty(t, m.KeyTopics)
	assert.Empty(t, m.KeyEmotions)
}

func TestApplyCaps(t *testing.T) {
	m := memory.NewUserMemory("u1", t0)
	for i := 0; i < 40; i++ {
		Apply(m, Turn{
			UserID:  "u1",
			Message: "x",
			Update: &chat.MemoryUpdate{
				Emotion:   fmt.Sprintf("e%d", i),
				Struggles: []string{fmt.Sprintf("s%d", i)},
			},
		}, t0)
	}
	require.Len(t, m.KeyEmotions, memory.MaxEmotions)
	assert.Equal(t, "e39", m.KeyEmotions[len(m.KeyEmotions)-1].Emotion)
	require.Len(t, m.CurrentStruggles, memory.MaxStruggles)
	assert.Equal(t, "s30", m.CurrentStruggles[0])
}

func TestPushRecent(t *testing.T) {
	list := []string{}
	for i := 0; i < memory.MaxTopics; i++ {
		list = append(list, fmt.Sprintf("t%d", i))
	}
	list = pushRecent(list, []string{"t0", "new"}, memory.MaxTopics)
	require.Len(t, list, memory.MaxTopics)
	assert.Equal(t, "t2", list[0])
	assert.Equal(t, []string{"t0", "new"}, list[len(list)-2:])
}

func TestFormat(t *testing.T) {
	m := memory.NewUserMemory("u1", t0)
	m.DisplayName = "Minh"
	m.TotalMessages = 12
	m.TotalConversations = 3
	m.TrustLevel = memory.TrustFamiliar
	m.MemorySummary = "Học lớp 8."
	for _, e := range []string{"vui", "buồn", "lo lắng", "mệt", "giận", "bình tĩnh"} {
		m.KeyEmotions = append(m.KeyEmotions, memory.EmotionEntry{Emotion: e, Timestamp: t0})
	}
	m.PositiveAspects = []string{"p1", "p2", "p3", "p4"}

	out := Format(m)
	assert.Contains(t, out, "12 tin nhắn, 3 cuộc trò chuyện")
	assert.Contains(t, out, "Tên gọi: Minh")
	assert.Contains(t, out, "Cảm xúc gần đây: buồn → lo lắng → mệt → giận → bình tĩnh")
	assert.NotContains(t, out, "vui →")
	assert.Contains(t, out, "Điểm tích cực: p2; p3; p4")
	assert.NotContains(t, out, "Khó khăn hiện tại")
	assert.Contains(t, out, "Tóm tắt: Học lớp 8.")
	assert.Contains(t, out, trustGuidance[memory.TrustFamiliar])

	m.TrustLevel = memory.TrustTrusted
	assert.NotEqual(t, out, Format(m))
	assert.Empty(t, Format(nil))
}

func TestServiceLifecycle(t *testing.T) {
	ctx := context.Background()
	repo := repos.NewUserMemoryRepo(kvstore.NewMemoryStore(), logger.Nop())
	svc := NewService(repo, logger.Nop())
	svc.now = func() time.Time { return t0 }

	m, err := svc.Load(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, 0, m.TotalMessages)
	assert.Equal(t, t0, m.FirstInteractionAt)

	stored, err := repo.Get(ctx, "u1")
	require.NoError(t, err)
	assert.Nil(t, stored, "defaults are not persisted by Load")

	require.NoError(t, svc.Update(ctx, Turn{UserID: "u1", Message: "mất ngủ", NewConversation: true}))
	require.NoError(t, svc.Update(ctx, Turn{UserID: "u1", Message: "vẫn mất ngủ"}))

	m, err = svc.Load(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, 2, m.TotalMessages)
	assert.Equal(t, 1, m.TotalConversations)
	assert.Equal(t, []string{"sleep"}, m.KeyTopics)

	require.NoError(t, svc.Delete(ctx, "u1"))
	m, err = svc.Load(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, 0, m.TotalMessages)

	_, err = svc.Load(ctx, "")
	assert.Error(t, err)
}
