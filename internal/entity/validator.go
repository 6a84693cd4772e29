package entity

import (
	"context"
	"sort"
	"strings"
	"unicode/utf8"

	"newsinsight/internal/registry"
)

// DefaultThreshold is the minimum fuzzy score accepted as a match.
const DefaultThreshold = 90

const shortCandidateLen = 5

// Validated is a candidate resolved to exactly one registry record.
type Validated struct {
	OfficialName string
	Ticker       string
	MatchedText  string
	Score        int
}

// Validator resolves candidates against a registry snapshot.
type Validator struct {
	threshold int
}

// NewValidator builds a validator; thresholds outside 0..100 fall back to the default.
func NewValidator(threshold int) *Validator {
	if threshold < 0 || threshold > 100 {
		threshold = DefaultThreshold
	}
	return &Validator{threshold: threshold}
}

// Threshold reports the configured acceptance score.
func (v *Validator) Threshold() int { return v.threshold }

type preparedName struct {
	record registry.TickerRecord
	tokens tokenSet
}

// Validate maps candidates to at most one entity per official name, ordered by
// ticker.
func (v *Validator) Validate(reg *registry.Registry, candidates []Candidate) []Validated {
	if reg.Len() == 0 || len(candidates) == 0 {
		return nil
	}

	var names []preparedName
	byName := make(map[string]Validated)
	for _, c := range candidates {
		if reg.IsBlocked(c.RawText) {
			continue
		}
		rec, score, ok := v.lookupExact(reg, c.RawText)
		if !ok {
			if names == nil {
				names = prepareNames(reg)
			}
			rec, score = v.bestFuzzy(names, c.RawText)
		}
		if score < v.threshold || rec.Ticker == "" {
			continue
		}

		match := Validated{
			OfficialName: rec.OfficialName,
			Ticker:       rec.Ticker,
			MatchedText:  c.RawText,
			Score:        score,
		}
		if prev, seen := byName[rec.OfficialName]; seen && !preferMatch(match, prev) {
			continue
		}
		byName[rec.OfficialName] = match
	}

	out := make([]Validated, 0, len(byName))
	for _, m := range byName {
		out = append(out, m)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Ticker < out[j].Ticker })
	return out
}

func (v *Validator) lookupExact(reg *registry.Registry, text string) (registry.TickerRecord, int, bool) {
	if rec, ok := reg.LookupExact(text); ok {
		return rec, 100, true
	}
	if utf8.RuneCountInString(text) <= shortCandidateLen && isAlphabetic(text) {
		for _, rec := range reg.Records() {
			if strings.EqualFold(rec.OfficialName, text) {
				return rec, 100, true
			}
		}
	}
	return registry.TickerRecord{}, 0, false
}

// bestFuzzy keeps the highest score; ties go to the shorter official name and
// then to registry order, which is lexicographic.
func (v *Validator) bestFuzzy(names []preparedName, text string) (registry.TickerRecord, int) {
	tokens := newTokenSet(text)
	if len(tokens) == 0 {
		return registry.TickerRecord{}, 0
	}

	var best registry.TickerRecord
	bestScore := -1
	for _, name := range names {
		score := tokenSetRatio(tokens, name.tokens, v.threshold)
		switch {
		case score > bestScore:
			best, bestScore = name.record, score
		case score == bestScore && len(name.record.OfficialName) < len(best.OfficialName):
			best = name.record
		}
	}
	if bestScore < 0 {
		return registry.TickerRecord{}, 0
	}
	return best, bestScore
}

func prepareNames(reg *registry.Registry) []preparedName {
	records := reg.Records()
	names := make([]preparedName, 0, len(records))
	for _, rec := range records {
		names = append(names, preparedName{record: rec, tokens: newTokenSet(rec.OfficialName)})
	}
	return names
}

// preferMatch orders two matches of the same company: higher score, then
// longer matched text, then lexicographically smaller text.
func preferMatch(a, b Validated) bool {
	if a.Score != b.Score {
		return a.Score > b.Score
	}
	if len(a.MatchedText) != len(b.MatchedText) {
		return len(a.MatchedText) > len(b.MatchedText)
	}
	return a.MatchedText < b.MatchedText
}

// Resolver runs extraction and validation as one step.
type Resolver struct {
	extractor *Extractor
	validator *Validator
}

// NewResolver combines an extractor and validator.
func NewResolver(extractor *Extractor, validator *Validator) *Resolver {
	return &Resolver{extractor: extractor, validator: validator}
}

// Resolve extracts candidates from text and validates them against reg. A
// match that only occurs inside a longer accepted or blocklisted name is
// dropped.
func (r *Resolver) Resolve(ctx context.Context, reg *registry.Registry, text string) ([]Validated, bool) {
	if reg.Len() == 0 {
		return nil, false
	}
	candidates, blocked, degraded := r.extractor.extract(ctx, text, reg)
	return dropNested(text, r.validator.Validate(reg, candidates), blocked), degraded
}
