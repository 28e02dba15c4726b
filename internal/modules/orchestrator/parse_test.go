package orchestrator

import (
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/yungbote/haven-backend/internal/domain/chat"
)

func TestParseResponse(t *testing.T) {
	tests := []struct {
		name       string
		raw        string
		reply      string
		risk       chat.RiskTier
		confidence float64
		actions    int
	}{
		{
			name:       "plain object",
			raw:        `{"riskLevel":"yellow","emotion":"sad","reply":"Mình ở đây.","nextQuestion":"?","actions":["thở sâu"],"confidence":0.82}`,
			reply:      "Mình ở đây.",
			risk:       chat.RiskYellow,
			confidence: 0.82,
			actions:    1,
		},
		{
			name:       "object inside prose with braces in strings",
			raw:        "Đây là câu trả lời:\n```json\n{\"reply\":\"a {b} \\\"c\\\"\",\"confidence\":0.9}\n```\n{\"reply\":\"second\"}",
			reply:      `a {b} "c"`,
			risk:       chat.RiskGreen,
			confidence: 0.9,
		},
		{
			name:       "missing reply",
			raw:        `{"riskLevel":"yellow","confidence":0.9}`,
			reply:      `{"riskLevel":"yellow","confidence":0.9}`,
			risk:       chat.RiskGreen,
			confidence: 0.5,
		},
		{
			name:       "non-string reply",
			raw:        `{"reply":42,"confidence":0.9}`,
			reply:      `{"reply":42,"confidence":0.9}`,
			risk:       chat.RiskGreen,
			confidence: 0.5,
		},
		{
			name:       "null reply",
			raw:        `{"reply":null}`,
			reply:      `{"reply":null}`,
			risk:       chat.RiskGreen,
			confidence: 0.5,
		},
		{
			name:       "unbalanced",
			raw:        `  {"reply":"x"  `,
			reply:      `{"reply":"x"`,
			risk:       chat.RiskGreen,
			confidence: 0.5,
		},
		{
			name:       "only the first object counts",
			raw:        `{not json} {"reply":"x"}`,
			reply:      `{not json} {"reply":"x"}`,
			risk:       chat.RiskGreen,
			confidence: 0.5,
		},
		{
			name:       "clamps and caps",
			raw:        `{"reply":"ok","riskLevel":"purple","confidence":7,"actions":["a","",3,"b","c","d","e"]}`,
			reply:      "ok",
			risk:       chat.RiskGreen,
			confidence: 1,
			actions:    4,
		},
		{
			name:       "missing confidence",
			raw:        `{"reply":"ok","riskLevel":"RED"}`,
			reply:      "ok",
			risk:       chat.RiskRed,
			confidence: 0.5,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ParseResponse(tt.raw)
			if got.Reply != tt.reply {
				t.Fatalf("reply = %q, want %q", got.Reply, tt.reply)
			}
			if got.RiskLevel != tt.risk {
				t.Fatalf("risk = %s, want %s", got.RiskLevel, tt.risk)
			}
			if got.Confidence != tt.confidence {
				t.Fatalf("confidence = %v, want %v", got.Confidence, tt.confidence)
			}
			if len(got.Actions) != tt.actions {
				t.Fatalf("actions = %v, want %d", got.Actions, tt.actions)
			}
			if got.Actions == nil {
				t.Fatalf("actions must be non-nil")
			}
		})
	}
}

func TestParseResponseFallbackTruncates(t *testing.T) {
	raw := strings.Repeat("ế", 700)
	got := ParseResponse(raw)
	if n := utf8.RuneCountInString(got.Reply); n != fallbackReplyRunes {
		t.Fatalf("fallback reply has %d runes", n)
	}
}

func TestParseResponseMemoryUpdate(t *testing.T) {
	got := ParseResponse(`{"reply":"ok","memoryUpdate":{"shouldRemember":false,"newFacts":"x"}}`)
	if got.MemoryUpdate == nil || got.MemoryUpdate.Remember() {
		t.Fatalf("memory update not decoded: %+v", got.MemoryUpdate)
	}
	if got := ParseResponse(`{"reply":"ok","memoryUpdate":"nope"}`); got.MemoryUpdate != nil {
		t.Fatalf("invalid memory update should be dropped")
	}
}

func TestParseResponseNeverPanics(t *testing.T) {
	inputs := []string{"", "{", "}", "{{{{", `{"reply":"\`, `{"reply":"\\"}`, "\x00{\"reply\":\"a\"}", `{"a":{"b":{"c":[}]}}`, "[1,2]"}
	for _, in := range inputs {
		func() {
			defer func() {
				if r := recover(); r != nil {
					t.Fatalf("ParseResponse(%q) panicked: %v", in, r)
				}
			}()
			_ = ParseResponse(in)
		}()
	}
}
