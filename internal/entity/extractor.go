// Package entity turns free text into validated company mentions: candidates
// come from an injected labeler plus a deterministic token scan, and are then
// resolved against the ticker registry.
package entity

import (
	"context"
	"regexp"
	"sort"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/rs/zerolog"

	"newsinsight/internal/registry"
)

// Source records which extraction path produced a candidate.
type Source string

const (
	SourceNER     Source = "NER"
	SourcePattern Source = "PATTERN"
)

// Candidate is a raw organisation mention awaiting validation.
type Candidate struct {
	RawText string
	Source  Source
}

// Span is one labelled range returned by an entity recogniser.
type Span struct {
	Text  string `json:"text"`
	Label string `json:"label"`
}

// Labeler tags organisation names in text.
type Labeler interface {
	LabelOrganizations(ctx context.Context, text string) ([]Span, error)
}

var sensiblePattern = regexp.MustCompile(`^[a-zA-Z0-9\s.&-]+$`)

var connectors = map[string]struct{}{
	"of":  {},
	"and": {},
	"&":   {},
	"the": {},
}

const maxNGram = 4

// Extractor produces deduplicated candidates from text.
type Extractor struct {
	labeler Labeler
	ignore  map[string]struct{}
	logger  zerolog.Logger
}

// NewExtractor wires a labeler (may be nil) and the single-word ignore list.
func NewExtractor(labeler Labeler, ignoreWords []string, logger zerolog.Logger) *Extractor {
	ignore := make(map[string]struct{}, len(ignoreWords))
	for _, w := range ignoreWords {
		if key := registry.Normalize(w); key != "" {
			ignore[key] = struct{}{}
		}
	}
	return &Extractor{
		labeler: labeler,
		ignore:  ignore,
		logger:  logger.With().Str("component", "extractor").Logger(),
	}
}

// Extract returns candidates sorted by raw text. degraded is true when the
// labeler failed and only the token scan contributed.
func (e *Extractor) Extract(ctx context.Context, text string, reg *registry.Registry) (candidates []Candidate, degraded bool) {
	candidates, _, degraded = e.extract(ctx, text, reg)
	return candidates, degraded
}

// extract also reports the blocklisted spans it dropped.
func (e *Extractor) extract(ctx context.Context, text string, reg *registry.Registry) (candidates []Candidate, blocked []string, degraded bool) {
	if strings.TrimSpace(text) == "" {
		return nil, nil, false
	}

	found := make(map[string]Source)
	add := func(raw string, src Source) {
		raw = strings.TrimSpace(raw)
		if utf8.RuneCountInString(raw) <= 1 || !sensiblePattern.MatchString(raw) {
			return
		}
		if reg.IsBlocked(raw) {
			blocked = append(blocked, raw)
			return
		}
		if prev, ok := found[raw]; ok && prev == SourceNER {
			return
		}
		found[raw] = src
	}

	if e.labeler != nil {
		spans, err := e.labeler.LabelOrganizations(ctx, text)
		if err != nil {
			degraded = true
			e.logger.Warn().Err(err).Msg("labeler unavailable, falling back to token scan")
		}
		for _, span := range spans {
			if strings.EqualFold(span.Label, "ORG") {
				add(span.Text, SourceNER)
			}
		}
	}

	for _, raw := range e.scan(text) {
		add(raw, SourcePattern)
	}

	candidates = make([]Candidate, 0, len(found))
	for raw, src := range found {
		candidates = append(candidates, Candidate{RawText: raw, Source: src})
	}
	sort.Slice(candidates, func(i, j int) bool { return candidates[i].RawText < candidates[j].RawText })
	return candidates, blocked, degraded
}

// scan collects acronyms, capitalised words and capitalised n-grams.
func (e *Extractor) scan(text string) []string {
	fields := strings.Fields(text)
	tokens := make([]string, len(fields))
	for i, f := range fields {
		tokens[i] = cleanToken(f)
	}

	out := make([]string, 0, len(tokens))
	for _, tok := range tokens {
		if tok == "" {
			continue
		}
		if _, skip := e.ignore[registry.Normalize(tok)]; skip {
			continue
		}
		if isAcronym(tok) || (isCapitalized(tok) && isAlphabetic(tok)) {
			out = append(out, tok)
		}
	}

	for n := 2; n <= maxNGram; n++ {
		for i := 0; i+n <= len(tokens); i++ {
			if gram, ok := nGram(fields[i:i+n], tokens[i:i+n]); ok {
				out = append(out, gram)
			}
		}
	}
	return out
}

func nGram(fields, tokens []string) (string, bool) {
	last := len(tokens) - 1
	for j, tok := range tokens {
		if tok == "" {
			return "", false
		}
		if j < last && endsClause(fields[j], tok) {
			return "", false
		}
		switch j {
		case 0, last:
			if !isCapitalized(tok) {
				return "", false
			}
		default:
			if _, ok := connectors[strings.ToLower(tok)]; !ok && !isCapitalized(tok) {
				return "", false
			}
		}
	}
	return strings.Join(tokens, " "), true
}

// endsClause reports whether the raw field closes a clause, so an n-gram must
// not run across it. Short dotted tokens (Ltd., Co.) are abbreviations.
func endsClause(field, cleaned string) bool {
	r, _ := utf8.DecodeLastRuneInString(field)
	switch r {
	case ',', ';', ':', '!', '?', ')', '"', '”':
		return true
	case '.':
		return utf8.RuneCountInString(cleaned) > 4 && !isAcronym(cleaned)
	}
	return false
}

func cleanToken(field string) string {
	trim := func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r) && r != '&'
	}
	tok := strings.TrimFunc(field, trim)
	for _, suffix := range []string{"'s", "’s"} {
		if strings.HasSuffix(tok, suffix) && len(tok) > len(suffix) {
			tok = strings.TrimFunc(strings.TrimSuffix(tok, suffix), trim)
		}
	}
	return tok
}

func isCapitalized(tok string) bool {
	r, _ := utf8.DecodeRuneInString(tok)
	return unicode.IsUpper(r)
}

func isAlphabetic(tok string) bool {
	for _, r := range tok {
		if !unicode.IsLetter(r) {
			return false
		}
	}
	return tok != ""
}

func isAcronym(tok string) bool {
	letters := 0
	for _, r := range tok {
		switch {
		case unicode.IsLetter(r):
			if !unicode.IsUpper(r) {
				return false
			}
			letters++
		case unicode.IsDigit(r), r == '&', r == '.', r == '-':
		default:
			return false
		}
	}
	return letters >= 2
}
