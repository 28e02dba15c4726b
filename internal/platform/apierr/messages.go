package apierr

import "strings"

var messages = map[string]map[string]string{
	"vi": {
		"invalid_request":      "Yêu cầu không hợp lệ.",
		"empty_input":          "Bạn chưa nhập nội dung tin nhắn.",
		"injection_detected":   "Tin nhắn chứa nội dung không được phép.",
		"profanity_detected":   "Tin nhắn chứa từ ngữ không phù hợp. Bạn thử diễn đạt lại nhé.",
		"rate_limited":         "Bạn gửi tin nhắn hơi nhanh. Hãy nghỉ một chút rồi thử lại nhé.",
		"budget_exceeded":      "Hệ thống đang quá tải trong tháng này. Vui lòng thử lại sau.",
		"upstream_model_error": "Trợ lý tạm thời không phản hồi được. Vui lòng thử lại sau.",
		"unauthorized":         "Bạn cần đăng nhập để dùng tính năng này.",
		"internal_error":       "Đã có lỗi xảy ra. Vui lòng thử lại sau.",
	},
	"en": {
		"invalid_request":      "The request is invalid.",
		"empty_input":          "Please enter a message.",
		"injection_detected":   "The message contains disallowed content.",
		"profanity_detected":   "The message contains inappropriate language. Please rephrase.",
		"rate_limited":         "You're sending messages too quickly. Please take a short break and try again.",
		"budget_exceeded":      "The service is at capacity for this month. Please try again later.",
		"upstream_model_error": "The assistant is temporarily unavailable. Please try again later.",
		"unauthorized":         "Please sign in to use this feature.",
		"internal_error":       "Something went wrong. Please try again later.",
	},
}

// Message returns the localized user-facing text for code. Vietnamese is the
// default locale; acceptLanguage is an Accept-Language header value.
func Message(code, acceptLanguage string) string {
	lang := "vi"
	al := strings.ToLower(strings.TrimSpace(acceptLanguage))
	if strings.HasPrefix(al, "en") {
		lang = "en"
	}
	if m, ok := messages[lang][code]; ok {
		return m
	}
	return messages[lang]["internal_error"]
}
