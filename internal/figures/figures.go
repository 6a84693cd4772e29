// Package figures pulls headline numbers (percent moves, rupee and dollar
// amounts) out of article text and files them by what the surrounding words
// say they measure.
package figures

import (
	"regexp"
	"strings"
)

const (
	contextWords = 7
	otherLimit   = 3
)

// KeyFigures is stored alongside each insight as JSON.
type KeyFigures struct {
	ProfitChangePercent  string   `json:"profit_change_percent,omitempty"`
	RevenueChangePercent string   `json:"revenue_change_percent,omitempty"`
	ProfitAmount         string   `json:"profit_amount,omitempty"`
	RevenueAmount        string   `json:"revenue_amount,omitempty"`
	DealSize             string   `json:"deal_size,omitempty"`
	OtherPercents        []string `json:"other_noteworthy_percents,omitempty"`
	OtherFigures         []string `json:"other_noteworthy_figures,omitempty"`
}

// IsEmpty reports whether nothing was extracted.
func (k KeyFigures) IsEmpty() bool {
	return k.ProfitChangePercent == "" && k.RevenueChangePercent == "" &&
		k.ProfitAmount == "" && k.RevenueAmount == "" && k.DealSize == "" &&
		len(k.OtherPercents) == 0 && len(k.OtherFigures) == 0
}

var (
	percentPattern = regexp.MustCompile(`(?i)[-+]?\d+(?:\.\d+)?\s?(?:%|per\s?cent\b|percent\b)`)
	moneyPattern   = regexp.MustCompile(`(?i)(?:₹|\brs\.?|\binr|\$|\busd)\s?\d[\d,]*(?:\.\d+)?(?:\s?(?:lakh crore|crore|cr\b|lakh|million|mn\b|billion|bn\b|trillion))?|\d[\d,]*(?:\.\d+)?\s?(?:lakh crore|crore|billion|million|trillion)\b`)
	wordPattern    = regexp.MustCompile(`\S+`)
)

type kind int

const (
	kindPercent kind = iota
	kindMoney
)

type mention struct {
	text       string
	start, end int
	kind       kind
}

// Extract scans text for percent and money mentions in reading order.
func Extract(text string) KeyFigures {
	var out KeyFigures
	if strings.TrimSpace(text) == "" {
		return out
	}

	words := wordPattern.FindAllStringIndex(text, -1)
	for _, m := range mentions(text) {
		window := contextWindow(text, words, m.start, m.end)
		switch m.kind {
		case kindPercent:
			switch {
			case strings.Contains(window, "profit"):
				out.ProfitChangePercent = m.text
			case strings.Contains(window, "revenue") || strings.Contains(window, "topline"):
				out.RevenueChangePercent = m.text
			case len(out.OtherPercents) < otherLimit:
				out.OtherPercents = append(out.OtherPercents, m.text)
			}
		case kindMoney:
			switch {
			case strings.Contains(window, "profit") || hasWord(window, "pat"):
				out.ProfitAmount = m.text
			case strings.Contains(window, "revenue"):
				out.RevenueAmount = m.text
			case strings.Contains(window, "deal") || strings.Contains(window, "wins"):
				out.DealSize = m.text
			case len(out.OtherFigures) < otherLimit:
				out.OtherFigures = append(out.OtherFigures, m.text)
			}
		}
	}
	return out
}

// mentions returns non-overlapping matches ordered by position; a percent
// match takes precedence over a money match covering the same text.
func mentions(text string) []mention {
	var found []mention
	for _, loc := range percentPattern.FindAllStringIndex(text, -1) {
		found = append(found, mention{text: strings.TrimSpace(text[loc[0]:loc[1]]), start: loc[0], end: loc[1], kind: kindPercent})
	}
	for _, loc := range moneyPattern.FindAllStringIndex(text, -1) {
		overlap := false
		for _, p := range found {
			if loc[0] < p.end && p.start < loc[1] {
				overlap = true
				break
			}
		}
		if !overlap {
			found = append(found, mention{text: strings.TrimSpace(text[loc[0]:loc[1]]), start: loc[0], end: loc[1], kind: kindMoney})
		}
	}
	// 插入排序，按出现位置。
	for i := 1; i < len(found); i++ {
		for j := i; j > 0 && found[j].start < found[j-1].start; j-- {
			found[j], found[j-1] = found[j-1], found[j]
		}
	}
	return found
}

// contextWindow returns the lower-cased words within contextWords of the
// mention on each side, the mention included.
func contextWindow(text string, words [][]int, start, end int) string {
	first, last := -1, -1
	for i, w := range words {
		if w[1] > start && w[0] < end {
			if first < 0 {
				first = i
			}
			last = i
		}
	}
	if first < 0 {
		return ""
	}
	lo := first - contextWords
	if lo < 0 {
		lo = 0
	}
	hi := last + contextWords
	if hi >= len(words) {
		hi = len(words) - 1
	}
	return strings.ToLower(text[words[lo][0]:words[hi][1]])
}

func hasWord(window, word string) bool {
	for _, w := range strings.Fields(window) {
		if strings.Trim(w, ".,;:()\"'") == word {
			return true
		}
	}
	return false
}
