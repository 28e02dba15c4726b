package memory

import (
	"regexp"
	"sort"
	"strings"
)

var topicKeywords = map[string][]string{
	"school":        {"học", "đi học", "trường", "lớp", "thầy giáo", "cô giáo", "bài tập", "school", "homework", "class"},
	"exams":         {"thi", "kiểm tra", "điểm số", "điểm kém", "ôn thi", "exam", "test", "grades"},
	"family":        {"bố", "mẹ", "ba mẹ", "bố mẹ", "gia đình", "anh trai", "chị gái", "em trai", "em gái", "ông bà", "family", "parents", "mom", "dad"},
	"friends":       {"bạn bè", "bạn thân", "nhóm bạn", "friend", "friends"},
	"relationships": {"crush", "người yêu", "chia tay", "tỏ tình", "boyfriend", "girlfriend"},
	"bullying":      {"bắt nạt", "trêu chọc", "cô lập", "tẩy chay", "bully", "bullied"},
	"sleep":         {"ngủ", "mất ngủ", "thức khuya", "ác mộng", "sleep", "insomnia"},
	"anxiety":       {"lo lắng", "lo âu", "hồi hộp", "hoảng sợ", "anxious", "anxiety", "worried"},
	"sadness":       {"buồn", "khóc", "chán nản", "sad", "crying"},
	"self_esteem":   {"tự ti", "xấu xí", "vô dụng", "ghét bản thân", "confidence", "ugly"},
	"health":        {"ốm", "bệnh", "đau đầu", "ăn uống", "cân nặng", "sick", "headache"},
	"hobbies":       {"game", "âm nhạc", "vẽ", "đọc sách", "thể thao", "bóng đá", "music", "drawing"},
	"future":        {"tương lai", "nghề nghiệp", "đại học", "ước mơ", "career", "university", "future"},
	"social_media":  {"mạng xã hội", "facebook", "tiktok", "instagram", "social media"},
}

type topicMatcher struct {
	topic string
	re    *regexp.Regexp
}

var topicMatchers = buildTopicMatchers()

func buildTopicMatchers() []topicMatcher {
	topics := make([]string, 0, len(topicKeywords))
	for t := range topicKeywords {
		topics = append(topics, t)
	}
	sort.Strings(topics)

	out := make([]topicMatcher, 0, len(topics))
	for _, t := range topics {
		alts := make([]string, 0, len(topicKeywords[t]))
		for _, kw := range topicKeywords[t] {
			alts = append(alts, regexp.QuoteMeta(kw))
		}
		re := regexp.MustCompile(`(?i)(?:^|[^\p{L}\p{N}])(?:` + strings.Join(alts, "|") + `)(?:$|[^\p{L}\p{N}])`)
		out = append(out, topicMatcher{topic: t, re: re})
	}
	return out
}

// ExtractTopics returns the topic tags whose keywords occur in msg as whole
// words, in a stable order.
func ExtractTopics(msg string) []string {
	msg = strings.ToLower(msg)
	var out []string
	for _, m := range topicMatchers {
		if m.re.MatchString(msg) {
			out = append(out, m.topic)
		}
	}
	return out
}
