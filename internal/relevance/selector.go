// Package relevance decides which validated companies an article is about.
package relevance

import (
	"context"
	"strings"
	"unicode"
	"unicode/utf8"

	"newsinsight/internal/entity"
	"newsinsight/internal/registry"
)

// Stage names the step of the cascade that produced a selection.
type Stage string

const (
	StageHeadline       Stage = "HEADLINE_CHECK"
	StageContent        Stage = "CONTENT_FALLBACK"
	StageSubjectScoring Stage = "SUBJECT_SCORING"
)

// Outcome classifies how selection ended.
type Outcome string

const (
	OutcomeSelected  Outcome = "selected"
	OutcomeNoEntity  Outcome = "no_entity"
	OutcomeAmbiguous Outcome = "ambiguous_subject"
)

// Resolver yields validated entities for a piece of text.
type Resolver interface {
	Resolve(ctx context.Context, reg *registry.Registry, text string) ([]entity.Validated, bool)
}

// Selection is the result of running the cascade on one article.
type Selection struct {
	Outcome Outcome
	Stage   Stage
	// Entities holds the companies the article is about, ordered by ticker.
	Entities []entity.Validated
	// Headline holds everything validated in the title, even when empty.
	Headline []entity.Validated
	// Scores holds body mention counts when subject scoring ran.
	Scores   map[string]int
	Degraded bool
}

// Selector runs HEADLINE_CHECK, then CONTENT_FALLBACK with subject scoring.
type Selector struct {
	resolver Resolver
}

// NewSelector wires the entity resolver.
func NewSelector(resolver Resolver) *Selector {
	return &Selector{resolver: resolver}
}

// Select applies the cascade to title and content.
func (s *Selector) Select(ctx context.Context, reg *registry.Registry, title, content string) Selection {
	headline, degraded := s.resolver.Resolve(ctx, reg, title)
	if len(headline) > 0 {
		return Selection{
			Outcome:  OutcomeSelected,
			Stage:    StageHeadline,
			Entities: headline,
			Headline: headline,
			Degraded: degraded,
		}
	}

	body, bodyDegraded := s.resolver.Resolve(ctx, reg, content)
	sel := Selection{
		Stage:    StageContent,
		Headline: headline,
		Degraded: degraded || bodyDegraded,
	}
	if len(body) == 0 {
		sel.Outcome = OutcomeNoEntity
		return sel
	}

	sel.Stage = StageSubjectScoring
	sel.Scores = make(map[string]int, len(body))
	lowered := strings.ToLower(content)
	mentions := make([][]mention, len(body))
	for i, ent := range body {
		mentions[i] = findMentions(lowered, ent.MatchedText)
	}
	best, bestScore := -1, 0
	// body 已按 ticker 排序，平分时保留先出现者。
	for i, ent := range body {
		score := 0
		for _, m := range mentions[i] {
			if !insideLonger(m, i, mentions) {
				score++
			}
		}
		sel.Scores[ent.Ticker] = score
		if score > bestScore {
			best, bestScore = i, score
		}
	}

	if best < 0 || bestScore <= 1 {
		sel.Outcome = OutcomeAmbiguous
		return sel
	}
	sel.Outcome = OutcomeSelected
	sel.Entities = []entity.Validated{body[best]}
	return sel
}

// MentionCount counts case-insensitive, non-overlapping whole-word
// occurrences of needle in loweredText, which must already be lower case.
func MentionCount(loweredText, needle string) int {
	return len(findMentions(loweredText, needle))
}

type mention struct {
	start, end int
}

func findMentions(lowered, needle string) []mention {
	needle = strings.ToLower(strings.TrimSpace(needle))
	if needle == "" {
		return nil
	}
	var out []mention
	for from := 0; from+len(needle) <= len(lowered); {
		i := strings.Index(lowered[from:], needle)
		if i < 0 {
			break
		}
		start, end := from+i, from+i+len(needle)
		if !wordBoundary(lowered, start, end) {
			from = start + 1
			continue
		}
		out = append(out, mention{start: start, end: end})
		from = end
	}
	return out
}

func wordBoundary(s string, start, end int) bool {
	if start > 0 {
		if r, _ := utf8.DecodeLastRuneInString(s[:start]); isWordRune(r) {
			return false
		}
	}
	if end < len(s) {
		if r, _ := utf8.DecodeRuneInString(s[end:]); isWordRune(r) {
			return false
		}
	}
	return true
}

func isWordRune(r rune) bool {
	return unicode.IsLetter(r) || unicode.IsDigit(r)
}

// insideLonger reports whether m lies within a longer mention of another
// entity, so "tata" inside "tata motors" is not scored for a second company.
func insideLonger(m mention, self int, all [][]mention) bool {
	for j, others := range all {
		if j == self {
			continue
		}
		for _, o := range others {
			if o.end-o.start > m.end-m.start && o.start <= m.start && m.end <= o.end {
				return true
			}
		}
	}
	return false
}
