package utils

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// FoldAccents removes diacritics and folds compatibility forms:
// "baños" -> "banos", "Sí" -> "Si", "m²" -> "m2".
func FoldAccents(s string) string {
	t := transform.Chain(norm.NFKD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	out, _, err := transform.String(t, s)
	if err != nil {
		return s
	}
	return out
}

// NormalizeKey folds an extraction key to lower-case snake_case without accents,
// so "Área mínima", "area-minima" and "AREA_MINIMA" compare equal.
func NormalizeKey(key string) string {
	key = strings.ToLower(FoldAccents(strings.TrimSpace(key)))

	var b strings.Builder
	lastUnderscore := false
	for _, r := range key {
		switch {
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			b.WriteRune(r)
			lastUnderscore = false
		case !lastUnderscore && b.Len() > 0:
			b.WriteByte('_')
			lastUnderscore = true
		}
	}
	return strings.TrimSuffix(b.String(), "_")
}

// NormalizeToken folds a free-text value for token comparison.
func NormalizeToken(s string) string {
	return strings.ToLower(FoldAccents(strings.TrimSpace(s)))
}
