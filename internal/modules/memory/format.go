package memory

import (
	"fmt"
	"strings"

	"github.com/yungbote/haven-backend/internal/domain/memory"
)

const (
	formatTopics    = 8
	formatStruggles = 5
	formatPositives = 3
	formatEmotions  = 5
)

var trustGuidance = map[memory.TrustLevel]string{
	memory.TrustNew:      "Người dùng mới. Hãy ấm áp, kiên nhẫn, không hỏi dồn dập và để bạn ấy tự chia sẻ theo nhịp của mình.",
	memory.TrustFamiliar: "Đã trò chuyện vài lần. Có thể nhắc nhẹ lại những điều bạn ấy từng kể để thể hiện sự lắng nghe.",
	memory.TrustTrusted:  "Đã có sự tin tưởng. Có thể hỏi sâu hơn về cảm xúc và theo dõi tiến triển của những khó khăn trước đó.",
}

// Format renders m as a prompt block. Sections with nothing to show are
// omitted.
func Format(m *memory.UserMemory) string {
	if m == nil {
		return ""
	}
	var b strings.Builder
	b.WriteString("[GHI NHỚ VỀ NGƯỜI DÙNG]\n")
	fmt.Fprintf(&b, "Thống kê: %d tin nhắn, %d cuộc trò chuyện", m.TotalMessages, m.TotalConversations)
	if !m.FirstInteractionAt.IsZero() {
		fmt.Fprintf(&b, ", lần đầu %s", m.FirstInteractionAt.UTC().Format("2006-01-02"))
	}
	b.WriteString(".\n")

	if m.DisplayName != "" {
		fmt.Fprintf(&b, "Tên gọi: %s\n", m.DisplayName)
	}
	if m.AgeRange != "" {
		fmt.Fprintf(&b, "Độ tuổi: %s\n", m.AgeRange)
	}
	writeList(&b, "Chủ đề gần đây", lastN(m.KeyTopics, formatTopics), ", ")
	writeList(&b, "Khó khăn hiện tại", lastN(m.CurrentStruggles, formatStruggles), "; ")
	writeList(&b, "Điểm tích cực", lastN(m.PositiveAspects, formatPositives), "; ")

	emotions := m.KeyEmotions
	if len(emotions) > formatEmotions {
		emotions = emotions[len(emotions)-formatEmotions:]
	}
	trail := make([]string, 0, len(emotions))
	for _, e := range emotions {
		trail = append(trail, e.Emotion)
	}
	writeList(&b, "Cảm xúc gần đây", trail, " → ")

	if s := strings.TrimSpace(m.MemorySummary); s != "" {
		fmt.Fprintf(&b, "Tóm tắt: %s\n", s)
	}
	guidance, ok := trustGuidance[m.TrustLevel]
	if !ok {
		guidance = trustGuidance[memory.TrustNew]
	}
	fmt.Fprintf(&b, "Hướng dẫn: %s", guidance)
	return b.String()
}

func writeList(b *strings.Builder, label string, items []string, sep string) {
	if len(items) == 0 {
		return
	}
	fmt.Fprintf(b, "%s: %s\n", label, strings.Join(items, sep))
}

func lastN(s []string, n int) []string {
	if len(s) > n {
		return s[len(s)-n:]
	}
	return s
}
