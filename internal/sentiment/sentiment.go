// Package sentiment attributes classifier verdicts to individual companies by
// scoring only the sentences that mention them.
package sentiment

import (
	"context"
	"strings"

	"github.com/rs/zerolog"

	"newsinsight/internal/entity"
)

// Label is a sentiment class.
type Label string

const (
	Positive Label = "Positive"
	Negative Label = "Negative"
	Neutral  Label = "Neutral"
)

// ParseLabel maps free-form classifier output onto a Label. Anything
// unrecognised is Neutral.
func ParseLabel(raw string) Label {
	cleaned := strings.ToLower(strings.TrimSpace(raw))
	cleaned = strings.Trim(cleaned, " .!\"'")
	switch {
	case strings.HasPrefix(cleaned, "positive"):
		return Positive
	case strings.HasPrefix(cleaned, "negative"):
		return Negative
	default:
		return Neutral
	}
}

// Verdict is one company's sentiment for one article.
type Verdict struct {
	Label      Label
	Confidence float64
}

// Clamp bounds confidence to [0,1].
func (v Verdict) Clamp() Verdict {
	switch {
	case v.Confidence < 0 || v.Confidence != v.Confidence:
		v.Confidence = 0
	case v.Confidence > 1:
		v.Confidence = 1
	}
	return v
}

// Signed returns +confidence, -confidence or 0 depending on the label.
func (v Verdict) Signed() float64 {
	switch v.Label {
	case Positive:
		return v.Confidence
	case Negative:
		return -v.Confidence
	default:
		return 0
	}
}

// Classifier labels a block of text.
type Classifier interface {
	ClassifySentiment(ctx context.Context, text string) (Verdict, error)
}

// SentenceSplitter breaks text into sentences in reading order.
type SentenceSplitter interface {
	Split(text string) []string
}

// Attribution holds verdicts keyed by ticker.
type Attribution struct {
	Verdicts map[string]Verdict
	// Skipped lists tickers with no sentence mentioning them.
	Skipped  []string
	Degraded bool
}

// Attributor scores entity-relevant sentences only.
type Attributor struct {
	splitter   SentenceSplitter
	classifier Classifier
	logger     zerolog.Logger
}

// NewAttributor wires the sentence splitter and classifier.
func NewAttributor(splitter SentenceSplitter, classifier Classifier, logger zerolog.Logger) *Attributor {
	return &Attributor{
		splitter:   splitter,
		classifier: classifier,
		logger:     logger.With().Str("component", "attributor").Logger(),
	}
}

// Attribute classifies, per entity, the sentences of content that contain the
// entity's matched text.
func (a *Attributor) Attribute(ctx context.Context, content string, entities []entity.Validated) Attribution {
	out := Attribution{Verdicts: make(map[string]Verdict, len(entities))}
	if len(entities) == 0 {
		return out
	}

	sentences := a.splitter.Split(content)
	for _, ent := range entities {
		relevant := RelevantSentences(sentences, ent.MatchedText)
		if len(relevant) == 0 {
			out.Skipped = append(out.Skipped, ent.Ticker)
			continue
		}

		if a.classifier == nil {
			out.Verdicts[ent.Ticker] = Verdict{Label: Neutral}
			out.Degraded = true
			continue
		}
		verdict, err := a.classifier.ClassifySentiment(ctx, strings.Join(relevant, " "))
		if err != nil {
			a.logger.Warn().Err(err).Str("ticker", ent.Ticker).Msg("sentiment classifier failed, defaulting to neutral")
			out.Verdicts[ent.Ticker] = Verdict{Label: Neutral}
			out.Degraded = true
			continue
		}
		out.Verdicts[ent.Ticker] = verdict.Clamp()
	}
	return out
}

// RelevantSentences keeps, in order, the sentences containing needle
// (case-sensitive).
func RelevantSentences(sentences []string, needle string) []string {
	if needle == "" {
		return nil
	}
	var out []string
	for _, s := range sentences {
		if strings.Contains(s, needle) {
			out = append(out, s)
		}
	}
	return out
}
