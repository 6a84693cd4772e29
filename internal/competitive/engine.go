// Package competitive applies the winner/loser override for headlines that
// frame two same-sector companies against each other.
package competitive

import (
	"context"
	"sort"
	"strings"

	"github.com/rs/zerolog"

	"newsinsight/internal/entity"
	"newsinsight/internal/sentiment"
)

// DefaultOverrideConfidence is the confidence given to a forced loser verdict.
const DefaultOverrideConfidence = 0.98

// DefaultKeywords mark zero-sum framing in a headline.
var DefaultKeywords = []string{"beats", "wins", "outperforms", "loses to", "rival"}

// SectorGraph answers same-sector peer queries.
type SectorGraph interface {
	Competitors(ctx context.Context, ticker string) ([]string, error)
}

// Override describes what the engine decided.
type Override struct {
	Triggered bool
	Winner    string
	Loser     string
	Applied   bool
	Degraded  bool
}

// Engine evaluates the rule. A nil graph disables overrides.
type Engine struct {
	keywords   []string
	graph      SectorGraph
	confidence float64
	logger     zerolog.Logger
}

// NewEngine builds an engine; empty keywords and out-of-range confidence use defaults.
func NewEngine(keywords []string, confidence float64, graph SectorGraph, logger zerolog.Logger) *Engine {
	if len(keywords) == 0 {
		keywords = DefaultKeywords
	}
	lowered := make([]string, 0, len(keywords))
	for _, kw := range keywords {
		if kw = strings.ToLower(strings.TrimSpace(kw)); kw != "" {
			lowered = append(lowered, kw)
		}
	}
	if confidence <= 0 || confidence > 1 {
		confidence = DefaultOverrideConfidence
	}
	return &Engine{
		keywords:   lowered,
		graph:      graph,
		confidence: confidence,
		logger:     logger.With().Str("component", "competitive").Logger(),
	}
}

// Triggered reports whether title and its validated entities meet the trigger.
func (e *Engine) Triggered(title string, headline []entity.Validated) bool {
	tickers := make(map[string]struct{}, len(headline))
	for _, ent := range headline {
		tickers[ent.Ticker] = struct{}{}
	}
	if len(tickers) < 2 {
		return false
	}
	lowered := strings.ToLower(title)
	for _, kw := range e.keywords {
		if strings.Contains(lowered, kw) {
			return true
		}
	}
	return false
}

// Apply mutates verdicts in place when exactly one headline peer of the winner
// is found. The winner is the first Positive verdict in ticker order.
func (e *Engine) Apply(ctx context.Context, title string, headline []entity.Validated, verdicts map[string]sentiment.Verdict) Override {
	var out Override
	if !e.Triggered(title, headline) {
		return out
	}
	out.Triggered = true

	tickers := make([]string, 0, len(verdicts))
	for t := range verdicts {
		tickers = append(tickers, t)
	}
	sort.Strings(tickers)
	for _, t := range tickers {
		if verdicts[t].Label == sentiment.Positive {
			out.Winner = t
			break
		}
	}
	if out.Winner == "" || e.graph == nil {
		return out
	}

	peers, err := e.graph.Competitors(ctx, out.Winner)
	if err != nil {
		e.logger.Warn().Err(err).Str("ticker", out.Winner).Msg("sector graph unavailable, skipping override")
		out.Degraded = true
		return out
	}

	inHeadline := make(map[string]struct{}, len(headline))
	for _, ent := range headline {
		inHeadline[ent.Ticker] = struct{}{}
	}
	matches := make(map[string]struct{})
	for _, peer := range peers {
		if peer == out.Winner {
			continue
		}
		if _, ok := inHeadline[peer]; ok {
			matches[peer] = struct{}{}
		}
	}
	if len(matches) != 1 {
		return out
	}
	for loser := range matches {
		out.Loser = loser
	}

	verdicts[out.Loser] = sentiment.Verdict{Label: sentiment.Negative, Confidence: e.confidence}
	out.Applied = true
	e.logger.Info().Str("winner", out.Winner).Str("loser", out.Loser).Msg("competitive override applied")
	return out
}
