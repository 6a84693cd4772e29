package sentiment

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"newsinsight/internal/entity"
)

// periodSplitter splits on ". " so tests do not depend on the Punkt model.
type periodSplitter struct{}

func (periodSplitter) Split(text string) []string {
	var out []string
	for _, part := range strings.Split(text, ". ") {
		if s := strings.TrimSpace(part); s != "" {
			out = append(out, s)
		}
	}
	return out
}

type recordingClassifier struct {
	inputs  []string
	verdict Verdict
	err     error
}

func (r *recordingClassifier) ClassifySentiment(_ context.Context, text string) (Verdict, error) {
	r.inputs = append(r.inputs, text)
	return r.verdict, r.err
}

func TestAttributeUsesOnlyRelevantSentences(t *testing.T) {
	clf := &recordingClassifier{verdict: Verdict{Label: Positive, Confidence: 0.9}}
	a := NewAttributor(periodSplitter{}, clf, zerolog.Nop())

	content := "Infosys won a large deal. Markets were mixed. Analysts praised Infosys"
	got := a.Attribute(context.Background(), content, []entity.Validated{{Ticker: "INFY", MatchedText: "Infosys"}})

	require.Len(t, clf.inputs, 1)
	assert.Equal(t, "Infosys won a large deal Analysts praised Infosys", strings.ReplaceAll(clf.inputs[0], ".", ""))
	assert.NotContains(t, clf.inputs[0], "Markets")
	assert.Equal(t, Verdict{Label: Positive, Confidence: 0.9}, got.Verdicts["INFY"])
	assert.False(t, got.Degraded)
}

func TestAttributeSkipsEntityWithoutSentences(t *testing.T) {
	clf := &recordingClassifier{verdict: Verdict{Label: Negative, Confidence: 0.7}}
	a := NewAttributor(periodSplitter{}, clf, zerolog.Nop())

	got := a.Attribute(context.Background(), "Wipro slipped. Nothing else happened", []entity.Validated{
		{Ticker: "INFY", MatchedText: "Infosys"},
		{Ticker: "WIPRO", MatchedText: "Wipro"},
	})

	assert.NotContains(t, got.Verdicts, "INFY")
	assert.Equal(t, []string{"INFY"}, got.Skipped)
	assert.Equal(t, Negative, got.Verdicts["WIPRO"].Label)
	assert.Len(t, clf.inputs, 1)
}

func TestAttributeIsCaseSensitive(t *testing.T) {
	clf := &recordingClassifier{verdict: Verdict{Label: Positive, Confidence: 0.5}}
	a := NewAttributor(periodSplitter{}, clf, zerolog.Nop())

	got := a.Attribute(context.Background(), "INFOSYS rallied", []entity.Validated{{Ticker: "INFY", MatchedText: "Infosys"}})
	assert.Empty(t, got.Verdicts)
	assert.Empty(t, clf.inputs)
}

func TestAttributeClassifierFailureDefaultsNeutral(t *testing.T) {
	clf := &recordingClassifier{err: errors.New("rate limited")}
	a := NewAttributor(periodSplitter{}, clf, zerolog.Nop())

	got := a.Attribute(context.Background(), "Wipro slipped", []entity.Validated{{Ticker: "WIPRO", MatchedText: "Wipro"}})
	assert.Equal(t, Verdict{Label: Neutral, Confidence: 0}, got.Verdicts["WIPRO"])
	assert.True(t, got.Degraded)
}

func TestAttributeClampsConfidence(t *testing.T) {
	clf := &recordingClassifier{verdict: Verdict{Label: Positive, Confidence: 1.7}}
	a := NewAttributor(periodSplitter{}, clf, zerolog.Nop())

	got := a.Attribute(context.Background(), "Wipro soared", []entity.Validated{{Ticker: "WIPRO", MatchedText: "Wipro"}})
	assert.Equal(t, 1.0, got.Verdicts["WIPRO"].Confidence)
}

func TestParseLabel(t *testing.T) {
	assert.Equal(t, Positive, ParseLabel(" positive."))
	assert.Equal(t, Negative, ParseLabel("NEGATIVE"))
	assert.Equal(t, Neutral, ParseLabel("mixed"))
	assert.Equal(t, Neutral, ParseLabel(""))
}

func TestVerdictSigned(t *testing.T) {
	assert.Equal(t, 0.8, Verdict{Label: Positive, Confidence: 0.8}.Signed())
	assert.Equal(t, -0.8, Verdict{Label: Negative, Confidence: 0.8}.Signed())
	assert.Equal(t, 0.0, Verdict{Label: Neutral, Confidence: 0.8}.Signed())
}

func TestPunktSplitter(t *testing.T) {
	splitter, err := NewPunktSplitter()
	require.NoError(t, err)

	got := splitter.Split("Infosys rose sharply on Monday. Wipro fell after results.")
	require.Len(t, got, 2)
	assert.Equal(t, "Infosys rose sharply on Monday.", got[0])
	assert.Equal(t, "Wipro fell after results.", got[1])
	assert.Empty(t, splitter.Split("   "))
}
