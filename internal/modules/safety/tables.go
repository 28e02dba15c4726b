package safety

import (
	"embed"
	"fmt"
	"regexp"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/yungbote/haven-backend/internal/domain/chat"
)

//go:embed tables/*.yaml
var tableFS embed.FS

const defaultTableFile = "tables/v1.yaml"

type tableFile struct {
	Version   string `yaml:"version"`
	Sanitizer struct {
		Injection      []string `yaml:"injection"`
		ProfanityWords []string `yaml:"profanity_words"`
	} `yaml:"sanitizer"`
	Risk struct {
		Red    []string `yaml:"red"`
		Yellow []string `yaml:"yellow"`
	} `yaml:"risk"`
	Crisis struct {
		Emotion      string         `yaml:"emotion"`
		Reply        string         `yaml:"reply"`
		NextQuestion string         `yaml:"next_question"`
		Actions      []string       `yaml:"actions"`
		Hotlines     []chat.Hotline `yaml:"hotlines"`
	} `yaml:"crisis"`
}

// pattern is one rule compiled against both the lowercased and the
// diacritic-free form of the text.
type pattern struct {
	src      string
	raw      *regexp.Regexp
	stripped *regexp.Regexp
}

func (p pattern) match(lower, stripped string) bool {
	return p.raw.MatchString(lower) ||
		p.stripped.MatchString(stripped) ||
		p.stripped.MatchString(lower)
}

// Tables is the immutable, versioned rule set shared by the sanitizer and
// the classifier. Built once at startup.
type Tables struct {
	Version string

	injection []pattern
	profanity *regexp.Regexp
	red       []pattern
	yellow    []pattern
	crisis    chat.Response
}

// DefaultTables loads the rule set embedded in the binary.
func DefaultTables() (*Tables, error) {
	data, err := tableFS.ReadFile(defaultTableFile)
	if err != nil {
		return nil, err
	}
	return LoadTables(data)
}

// MustDefaultTables panics if the embedded tables are invalid.
func MustDefaultTables() *Tables {
	t, err := DefaultTables()
	if err != nil {
		panic(err)
	}
	return t
}

func LoadTables(data []byte) (*Tables, error) {
	var f tableFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("safety tables: %w", err)
	}
	if strings.TrimSpace(f.Version) == "" {
		return nil, fmt.Errorf("safety tables: missing version")
	}
	if len(f.Risk.Red) == 0 {
		return nil, fmt.Errorf("safety tables %s: empty red set", f.Version)
	}
	if strings.TrimSpace(f.Crisis.Reply) == "" || len(f.Crisis.Hotlines) == 0 {
		return nil, fmt.Errorf("safety tables %s: crisis reply and hotlines required", f.Version)
	}

	t := &Tables{Version: f.Version}
	var err error
	if t.injection, err = compilePatterns(f.Sanitizer.Injection); err != nil {
		return nil, fmt.Errorf("safety tables %s: injection: %w", f.Version, err)
	}
	if t.red, err = compilePatterns(f.Risk.Red); err != nil {
		return nil, fmt.Errorf("safety tables %s: red: %w", f.Version, err)
	}
	if t.yellow, err = compilePatterns(f.Risk.Yellow); err != nil {
		return nil, fmt.Errorf("safety tables %s: yellow: %w", f.Version, err)
	}
	if t.profanity, err = compileWords(f.Sanitizer.ProfanityWords); err != nil {
		return nil, fmt.Errorf("safety tables %s: profanity: %w", f.Version, err)
	}

	actions := f.Crisis.Actions
	if len(actions) > chat.MaxActions {
		actions = actions[:chat.MaxActions]
	}
	t.crisis = chat.Response{
		RiskLevel:    chat.RiskRed,
		Emotion:      f.Crisis.Emotion,
		Reply:        strings.TrimSpace(f.Crisis.Reply),
		NextQuestion: f.Crisis.NextQuestion,
		Actions:      actions,
		Confidence:   1,
		Hotlines:     f.Crisis.Hotlines,
	}
	return t, nil
}

// CrisisResponse returns a fresh copy of the fixed red-tier reply.
func (t *Tables) CrisisResponse() *chat.Response {
	r := t.crisis
	r.Actions = append([]string(nil), t.crisis.Actions...)
	r.Hotlines = append([]chat.Hotline(nil), t.crisis.Hotlines...)
	return &r
}

func compilePatterns(srcs []string) ([]pattern, error) {
	out := make([]pattern, 0, len(srcs))
	for _, src := range srcs {
		src = strings.TrimSpace(src)
		if src == "" {
			continue
		}
		raw, err := regexp.Compile("(?i)" + src)
		if err != nil {
			return nil, fmt.Errorf("%q: %w", src, err)
		}
		stripped, err := regexp.Compile("(?i)" + StripDiacritics(src))
		if err != nil {
			return nil, fmt.Errorf("%q (stripped): %w", src, err)
		}
		out = append(out, pattern{src: src, raw: raw, stripped: stripped})
	}
	return out, nil
}

// compileWords builds one whole-word matcher. RE2's \b is ASCII-only, so
// word edges are spelled out with Unicode letter classes.
func compileWords(words []string) (*regexp.Regexp, error) {
	alts := make([]string, 0, len(words))
	for _, w := range words {
		w = strings.ToLower(strings.TrimSpace(w))
		if w == "" {
			continue
		}
		alts = append(alts, regexp.QuoteMeta(w))
	}
	if len(alts) == 0 {
		return regexp.Compile(`[^\s\S]`)
	}
	return regexp.Compile(`(?i)(?:^|[^\p{L}\p{N}])(?:` + strings.Join(alts, "|") + `)(?:$|[^\p{L}\p{N}])`)
}
