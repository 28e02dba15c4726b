package safety

import (
	"errors"
	"strings"
	"unicode/utf8"
)

const MaxInputRunes = 2000

var (
	ErrEmptyInput        = errors.New("empty input")
	ErrInjectionDetected = errors.New("injection detected")
	ErrProfanityDetected = errors.New("profanity detected")
)

// RejectError carries the rule that rejected a message. It unwraps to one
// of the sentinel errors above.
type RejectError struct {
	Reason error
	Rule   string
}

func (e *RejectError) Error() string { return e.Reason.Error() }

func (e *RejectError) Unwrap() error { return e.Reason }

type Sanitizer struct {
	tables *Tables
}

func NewSanitizer(t *Tables) *Sanitizer {
	return &Sanitizer{tables: t}
}

// Validate trims raw and rejects it on the first injection or profanity
// match. Accepted text longer than MaxInputRunes is cut to that length.
func (s *Sanitizer) Validate(raw string) (string, error) {
	clean := strings.TrimSpace(raw)
	if clean == "" {
		return "", ErrEmptyInput
	}

	lower, stripped := Normalize(clean)
	for _, p := range s.tables.injection {
		if p.match(lower, stripped) {
			return "", &RejectError{Reason: ErrInjectionDetected, Rule: p.src}
		}
	}
	if s.tables.profanity.MatchString(lower) {
		return "", &RejectError{Reason: ErrProfanityDetected, Rule: "profanity_words"}
	}

	return truncateRunes(clean, MaxInputRunes), nil
}

func truncateRunes(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	i := 0
	for pos := range s {
		if i == n {
			return s[:pos]
		}
		i++
	}
	return s
}
