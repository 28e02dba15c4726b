package safety

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

var dStroke = strings.NewReplacer("đ", "d", "Đ", "D")

// StripDiacritics decomposes text, drops combining marks and maps đ to d.
// "em muốn chết" becomes "em muon chet".
func StripDiacritics(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	out, _, err := transform.String(t, s)
	if err != nil {
		out = s
	}
	return dStroke.Replace(out)
}

// Normalize returns the lowercased text and its diacritic-free form.
func Normalize(s string) (lower, stripped string) {
	lower = strings.ToLower(s)
	return lower, StripDiacritics(lower)
}
