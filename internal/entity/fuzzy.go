package entity

import (
	"math"
	"sort"
	"strings"
)

// tokenSet is a processed string split into sorted unique tokens.
type tokenSet []string

// processText lowercases, drops non-ASCII runes and turns every other
// non-alphanumeric rune into a space.
func processText(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		switch {
		case r > 127:
		case r >= 'A' && r <= 'Z':
			b.WriteRune(r + ('a' - 'A'))
		case (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9'):
			b.WriteRune(r)
		default:
			b.WriteByte(' ')
		}
	}
	return strings.TrimSpace(b.String())
}

func newTokenSet(s string) tokenSet {
	fields := strings.Fields(processText(s))
	if len(fields) == 0 {
		return nil
	}
	sort.Strings(fields)
	out := fields[:1]
	for _, f := range fields[1:] {
		if f != out[len(out)-1] {
			out = append(out, f)
		}
	}
	return out
}

// TokenSetRatio scores two strings 0..100, tolerant to word order and to one
// side's tokens being a subset of the other's.
func TokenSetRatio(a, b string) int {
	return tokenSetRatio(newTokenSet(a), newTokenSet(b), 0)
}

// tokenSetRatio skips the LCS pass when the result provably cannot reach
// cutoff, so scores below cutoff may be understated. Scores at or above cutoff
// are exact.
func tokenSetRatio(a, b tokenSet, cutoff int) int {
	if len(a) == 0 || len(b) == 0 {
		return 0
	}

	var sect, onlyA, onlyB []string
	i, j := 0, 0
	for i < len(a) && j < len(b) {
		switch {
		case a[i] == b[j]:
			sect = append(sect, a[i])
			i++
			j++
		case a[i] < b[j]:
			onlyA = append(onlyA, a[i])
			i++
		default:
			onlyB = append(onlyB, b[j])
			j++
		}
	}
	onlyA = append(onlyA, a[i:]...)
	onlyB = append(onlyB, b[j:]...)

	if len(sect) > 0 && (len(onlyA) == 0 || len(onlyB) == 0) {
		return 100
	}

	sectStr := strings.Join(sect, " ")
	aStr := strings.Join(onlyA, " ")
	bStr := strings.Join(onlyB, " ")
	sectLen, aLen, bLen := len(sectStr), len(aStr), len(bStr)

	sep := 0
	if sectLen > 0 {
		sep = 1
	}
	sectALen := sectLen + sep + aLen
	sectBLen := sectLen + sep + bLen

	best := 0.0
	if sectLen > 0 {
		best = math.Max(
			normDistance(sep+aLen, sectLen+sectALen),
			normDistance(sep+bLen, sectLen+sectBLen),
		)
	}

	total := sectALen + sectBLen
	upper := normDistance(absInt(aLen-bLen), total)
	if upper > best && upper >= float64(cutoff) {
		dist := aLen + bLen - 2*lcsLength(aStr, bStr)
		best = math.Max(best, normDistance(dist, total))
	}

	return int(math.RoundToEven(best))
}

func normDistance(dist, lensum int) float64 {
	if lensum == 0 {
		return 100
	}
	return 100 - 100*float64(dist)/float64(lensum)
}

// lcsLength returns the longest common subsequence length of two ASCII strings.
func lcsLength(a, b string) int {
	if len(a) == 0 || len(b) == 0 {
		return 0
	}
	prev := make([]int, len(b)+1)
	curr := make([]int, len(b)+1)
	for i := 1; i <= len(a); i++ {
		for j := 1; j <= len(b); j++ {
			switch {
			case a[i-1] == b[j-1]:
				curr[j] = prev[j-1] + 1
			case prev[j] >= curr[j-1]:
				curr[j] = prev[j]
			default:
				curr[j] = curr[j-1]
			}
		}
		prev, curr = curr, prev
	}
	return prev[len(b)]
}

func absInt(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
