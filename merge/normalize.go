package merge

import (
	"strings"
	"unicode"
	"unicode/utf8"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// ligatures has no decomposition in Unicode; spell them out before
// non-ASCII runes are dropped.
var ligatures = strings.NewReplacer(
	"Œ", "OE", "œ", "OE",
	"Æ", "AE", "æ", "AE",
	"ß", "SS",
)

// Normalize canonicalizes an agency code or name for fuzzy lookups:
// uppercase, diacritics stripped, runes without an ASCII form dropped,
// whitespace runs collapsed to one space, trimmed.
//
//	Normalize(" Agence   Nord ") == "AGENCE NORD"
//	Normalize("Créteil")        == "CRETEIL"
func Normalize(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return ""
	}
	s = ligatures.Replace(strings.ToUpper(s))

	// A transform chain keeps state, so one is built per call.
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	if stripped, _, err := transform.String(t, s); err == nil {
		s = stripped
	}

	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		switch {
		case unicode.IsSpace(r):
			b.WriteByte(' ')
		case r < utf8.RuneSelf && unicode.IsPrint(r):
			b.WriteRune(unicode.ToUpper(r))
		}
	}
	return strings.Join(strings.Fields(b.String()), " ")
}

// Raw is the exact-match key form: uppercase and trimmed, nothing else.
func Raw(s string) string {
	return strings.ToUpper(strings.TrimSpace(s))
}
