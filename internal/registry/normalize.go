package registry

import (
	"strings"
	"unicode"

	"golang.org/x/text/cases"
	"golang.org/x/text/unicode/norm"
)

var legalSuffixes = map[string]struct{}{
	"limited":      {},
	"ltd":          {},
	"inc":          {},
	"incorporated": {},
	"corp":         {},
	"corporation":  {},
	"pvt":          {},
	"private":      {},
	"co":           {},
	"company":      {},
	"plc":          {},
	"llc":          {},
}

// Normalize produces the primary lookup key: NFKC, case folded, hyphens and
// slashes read as spaces, other punctuation dropped, whitespace collapsed.
func Normalize(text string) string {
	folded := cases.Fold().String(norm.NFKC.String(text))

	var b strings.Builder
	b.Grow(len(folded))
	space := true
	for _, r := range folded {
		switch {
		case r == '-' || r == '/' || unicode.IsSpace(r):
			if !space {
				b.WriteByte(' ')
				space = true
			}
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			b.WriteRune(r)
			space = false
		}
	}
	return strings.TrimRight(b.String(), " ")
}

// StripSuffixes removes trailing legal-form tokens from a normalised key. At
// least one token is always kept.
func StripSuffixes(key string) string {
	tokens := strings.Fields(key)
	for len(tokens) > 1 {
		if _, ok := legalSuffixes[tokens[len(tokens)-1]]; !ok {
			break
		}
		tokens = tokens[:len(tokens)-1]
	}
	return strings.Join(tokens, " ")
}
