// Package slug turns titles into URL slugs and allocates unique ones
// against a content store.
package slug

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

const (
	maxRunes = 80
	fallback = "post"
)

// letters that do not decompose into a base letter plus a mark
var specialLetters = map[rune]string{
	'ß': "ss",
	'æ': "ae",
	'ø': "o",
	'đ': "d",
	'ł': "l",
	'œ': "oe",
	'þ': "th",
	'ð': "d",
	'ı': "i",
}

// Make derives the base slug for title. Titles with nothing usable yield "post".
func Make(title string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	folded, _, err := transform.String(t, strings.ToLower(title))
	if err != nil {
		folded = strings.ToLower(title)
	}

	var b strings.Builder
	pendingDash := false
	for _, r := range folded {
		var chunk string
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			chunk = string(r)
		default:
			if s, ok := specialLetters[r]; ok {
				chunk = s
			}
		}
		if chunk == "" {
			pendingDash = b.Len() > 0
			continue
		}
		if pendingDash {
			b.WriteByte('-')
			pendingDash = false
		}
		b.WriteString(chunk)
	}

	out := truncate(b.String(), maxRunes)
	if out == "" {
		return fallback
	}
	return out
}

// truncate cuts s to at most n runes, backing off to the last separator when
// the cut lands inside a word.
func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	cut := s[:n]
	if s[n] != '-' {
		if i := strings.LastIndexByte(cut, '-'); i > 0 {
			cut = cut[:i]
		}
	}
	return strings.Trim(cut, "-")
}
