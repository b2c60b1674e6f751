// Package normalize canonicalizes US street addresses so that the same
// address always produces the same text, whether it is being written into
// the local search index or looked up at query time. The two sides must
// agree exactly; every caller goes through Normalize.
package normalize

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// punctReplacer turns the punctuation classes that appear in raw feed
// addresses into spaces. Replacing (rather than deleting) keeps token
// boundaries intact: "SMITH-JONES AVE" tokenizes the same way the index
// analyzer splits it.
var punctReplacer = strings.NewReplacer(
	".", " ",
	",", " ",
	"#", " ",
	"'", " ",
	"/", " ",
	`\`, " ",
	"-", " ",
)

// Normalize canonicalizes arbitrary address text: fold diacritics,
// uppercase, strip punctuation, expand directional and street-type
// abbreviations token by token, collapse whitespace. It is total over any
// input string and idempotent.
func Normalize(s string) string {
	s = foldDiacritics(s)
	s = strings.ToUpper(s)
	s = punctReplacer.Replace(s)

	fields := strings.Fields(s)
	for i, tok := range fields {
		fields[i] = expandToken(tok)
	}
	return strings.Join(fields, " ")
}

// NormalizeStreet combines an optional house number with a street name
// and normalizes the result. An empty street always yields "".
func NormalizeStreet(number, street string) string {
	street = strings.TrimSpace(street)
	if street == "" {
		return ""
	}
	number = strings.TrimSpace(number)
	if number == "" {
		return Normalize(street)
	}
	return Normalize(number + " " + street)
}

// NormalizeState uppercases a two-letter state code unchanged; anything
// else is normalized as ordinary text.
func NormalizeState(s string) string {
	t := strings.TrimSpace(s)
	if len(t) == 2 && isAlpha(t) {
		return strings.ToUpper(t)
	}
	return Normalize(s)
}

// BuildFullAddress joins the non-empty components with spaces and
// normalizes the result. The composite is what the index's fallback
// full_address field stores.
func BuildFullAddress(street, city, state string) string {
	parts := make([]string, 0, 3)
	for _, p := range []string{street, city, state} {
		if p = strings.TrimSpace(p); p != "" {
			parts = append(parts, p)
		}
	}
	return Normalize(strings.Join(parts, " "))
}

// foldDiacritics decomposes and strips combining marks, so "CAFÉ" and
// "CAFE" normalize identically. On transform failure the input is
// returned untouched.
func foldDiacritics(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	out, _, err := transform.String(t, s)
	if err != nil {
		return s
	}
	return out
}

func isAlpha(s string) bool {
	for _, r := range s {
		if !unicode.IsLetter(r) {
			return false
		}
	}
	return true
}

func upperToken(tok string) string {
	return strings.ToUpper(strings.TrimSpace(tok))
}
