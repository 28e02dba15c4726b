package orchestrator

import (
	"encoding/json"
	"strings"

	"github.com/yungbote/haven-backend/internal/domain/chat"
)

const (
	fallbackReplyRunes = 500
	fallbackConfidence = 0.5
)

// ParseResponse turns raw model output into a response. It reads the first
// balanced JSON object in raw and requires a string "reply" field; anything
// else yields a green fallback wrapping the start of raw.
func ParseResponse(raw string) *chat.Response {
	resp, _ := parseStructured(raw)
	return resp
}

type rawResponse struct {
	RiskLevel    json.RawMessage `json:"riskLevel"`
	Emotion      json.RawMessage `json:"emotion"`
	Reply        json.RawMessage `json:"reply"`
	NextQuestion json.RawMessage `json:"nextQuestion"`
	Actions      json.RawMessage `json:"actions"`
	Confidence   json.RawMessage `json:"confidence"`
	MemoryUpdate json.RawMessage `json:"memoryUpdate"`
	Reaffirmed   json.RawMessage `json:"reaffirmed"`
}

// parseStructured reports whether raw carried a usable object.
func parseStructured(raw string) (*chat.Response, bool) {
	r, ok := decodeFirstObject(raw)
	if !ok {
		return fallbackResponse(raw), false
	}
	var reply string
	if len(r.Reply) == 0 || r.Reply[0] != '"' || json.Unmarshal(r.Reply, &reply) != nil {
		return fallbackResponse(raw), false
	}

	resp := &chat.Response{
		RiskLevel:    chat.ParseRiskTier(stringField(r.RiskLevel)),
		Emotion:      stringField(r.Emotion),
		Reply:        strings.TrimSpace(reply),
		NextQuestion: stringField(r.NextQuestion),
		Actions:      actionsField(r.Actions),
		Confidence:   fallbackConfidence,
	}
	var conf float64
	if len(r.Confidence) > 0 && json.Unmarshal(r.Confidence, &conf) == nil {
		resp.Confidence = clamp01(conf)
	}
	if len(r.MemoryUpdate) > 0 {
		var mu chat.MemoryUpdate
		if json.Unmarshal(r.MemoryUpdate, &mu) == nil {
			resp.MemoryUpdate = &mu
		}
	}
	return resp, true
}

func decodeFirstObject(raw string) (rawResponse, bool) {
	var r rawResponse
	obj, ok := firstBalancedObject(raw)
	if !ok {
		return r, false
	}
	if err := json.Unmarshal([]byte(obj), &r); err != nil {
		return r, false
	}
	return r, true
}

// firstBalancedObject returns the first {...} span in s whose braces balance,
// ignoring braces inside JSON strings.
func firstBalancedObject(s string) (string, bool) {
	start := strings.IndexByte(s, '{')
	if start < 0 {
		return "", false
	}
	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(s); i++ {
		c := s[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}
		switch c {
		case '"':
			inString = true
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return s[start : i+1], true
			}
		}
	}
	return "", false
}

func fallbackResponse(raw string) *chat.Response {
	text := strings.TrimSpace(raw)
	if r := []rune(text); len(r) > fallbackReplyRunes {
		text = string(r[:fallbackReplyRunes])
	}
	return &chat.Response{
		RiskLevel:  chat.RiskGreen,
		Reply:      text,
		Actions:    []string{},
		Confidence: fallbackConfidence,
	}
}

func stringField(raw json.RawMessage) string {
	var s string
	if len(raw) == 0 || json.Unmarshal(raw, &s) != nil {
		return ""
	}
	return strings.TrimSpace(s)
}

func actionsField(raw json.RawMessage) []string {
	out := []string{}
	var items []interface{}
	if len(raw) == 0 || json.Unmarshal(raw, &items) != nil {
		return out
	}
	for _, it := range items {
		s, ok := it.(string)
		if !ok || strings.TrimSpace(s) == "" {
			continue
		}
		out = append(out, strings.TrimSpace(s))
		if len(out) == chat.MaxActions {
			break
		}
	}
	return out
}

func boolField(raw json.RawMessage) bool {
	var b bool
	return len(raw) > 0 && json.Unmarshal(raw, &b) == nil && b
}

func clamp01(f float64) float64 {
	switch {
	case f < 0:
		return 0
	case f > 1:
		return 1
	default:
		return f
	}
}
