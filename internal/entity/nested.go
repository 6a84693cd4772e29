package entity

import (
	"strings"

	"newsinsight/internal/registry"
)

// dropNested removes matches whose every occurrence in text lies inside an
// occurrence of a longer span: another accepted match or a blocklisted name.
// "Bank of India" within "State Bank of India" is the same mention, not a
// second company. Matches that cannot be located in text are kept.
func dropNested(text string, matches []Validated, blocked []string) []Validated {
	if len(matches) == 0 {
		return matches
	}

	words := wordsOf(text)
	covers := make([][]string, 0, len(matches)+len(blocked))
	for _, m := range matches {
		covers = append(covers, strings.Fields(registry.Normalize(m.MatchedText)))
	}
	for _, b := range blocked {
		covers = append(covers, strings.Fields(registry.Normalize(b)))
	}

	out := make([]Validated, 0, len(matches))
	for _, m := range matches {
		inner := strings.Fields(registry.Normalize(m.MatchedText))
		if nestedEverywhere(words, inner, covers) {
			continue
		}
		out = append(out, m)
	}
	return out
}

// wordsOf tokenises text the way the scan does. Tokens that clean to nothing
// stay as empty words so no span can run across them.
func wordsOf(text string) []string {
	fields := strings.Fields(text)
	words := make([]string, 0, len(fields))
	for _, f := range fields {
		parts := strings.Fields(registry.Normalize(cleanToken(f)))
		if len(parts) == 0 {
			words = append(words, "")
			continue
		}
		words = append(words, parts...)
	}
	return words
}

func nestedEverywhere(words, inner []string, covers [][]string) bool {
	at := occurrences(words, inner)
	if len(at) == 0 {
		return false
	}
	for _, i := range at {
		if !coveredAt(words, i, len(inner), covers) {
			return false
		}
	}
	return true
}

func coveredAt(words []string, start, n int, covers [][]string) bool {
	for _, c := range covers {
		if len(c) <= n {
			continue
		}
		for _, j := range occurrences(words, c) {
			if j <= start && start+n <= j+len(c) {
				return true
			}
		}
	}
	return false
}

func occurrences(words, seq []string) []int {
	if len(seq) == 0 {
		return nil
	}
	var at []int
outer:
	for i := 0; i+len(seq) <= len(words); i++ {
		for k, w := range seq {
			if words[i+k] != w {
				continue outer
			}
		}
		at = append(at, i)
	}
	return at
}
