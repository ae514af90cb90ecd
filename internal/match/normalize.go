package match

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// stripMarks removes diacritics by decomposing and dropping combining marks.
var stripMarks = transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)

// Tokenize normalizes text into comparable tokens: lower-case, diacritics
// stripped, everything but letters and digits removed, split on whitespace,
// empty tokens dropped.
func Tokenize(text string) []string {
	folded, _, err := transform.String(stripMarks, strings.ToLower(text))
	if err != nil {
		// Transform only fails on malformed input; fall back to the
		// lower-cased original so matching still proceeds.
		folded = strings.ToLower(text)
	}

	var tokens []string
	for _, field := range strings.Fields(folded) {
		var sb strings.Builder
		for _, r := range field {
			if unicode.IsLetter(r) || unicode.IsDigit(r) {
				sb.WriteRune(r)
			}
		}
		if sb.Len() > 0 {
			tokens = append(tokens, sb.String())
		}
	}
	return tokens
}
