package competitive

import (
	"context"
	"errors"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"

	"newsinsight/internal/entity"
	"newsinsight/internal/sentiment"
)

type staticGraph struct {
	peers map[string][]string
	err   error
	calls int
}

func (g *staticGraph) Competitors(_ context.Context, ticker string) ([]string, error) {
	g.calls++
	return g.peers[ticker], g.err
}

const infosysHeadline = "Infosys wins multi-billion dollar AI deal, beats out rival Wipro"

func headlineEntities() []entity.Validated {
	return []entity.Validated{
		{OfficialName: "Infosys Limited", Ticker: "INFY", MatchedText: "Infosys", Score: 100},
		{OfficialName: "Wipro Limited", Ticker: "WIPRO", MatchedText: "Wipro", Score: 100},
	}
}

func itGraph() *staticGraph {
	return &staticGraph{peers: map[string][]string{
		"INFY":  {"WIPRO", "TCS", "HCLTECH"},
		"WIPRO": {"INFY", "TCS", "HCLTECH"},
	}}
}

func TestOverrideForcesLoserNegative(t *testing.T) {
	engine := NewEngine(nil, 0, itGraph(), zerolog.Nop())
	verdicts := map[string]sentiment.Verdict{
		"INFY":  {Label: sentiment.Positive, Confidence: 0.95},
		"WIPRO": {Label: sentiment.Positive, Confidence: 0.6},
	}

	got := engine.Apply(context.Background(), infosysHeadline, headlineEntities(), verdicts)
	assert.True(t, got.Applied)
	assert.Equal(t, "INFY", got.Winner)
	assert.Equal(t, "WIPRO", got.Loser)
	assert.Equal(t, sentiment.Verdict{Label: sentiment.Negative, Confidence: 0.98}, verdicts["WIPRO"])
	assert.Equal(t, sentiment.Positive, verdicts["INFY"].Label)
}

func TestOverrideCreatesMissingLoserVerdict(t *testing.T) {
	engine := NewEngine(nil, 0, itGraph(), zerolog.Nop())
	verdicts := map[string]sentiment.Verdict{"INFY": {Label: sentiment.Positive, Confidence: 0.9}}

	got := engine.Apply(context.Background(), infosysHeadline, headlineEntities(), verdicts)
	assert.True(t, got.Applied)
	assert.Equal(t, sentiment.Negative, verdicts["WIPRO"].Label)
}

func TestWinnerIsFirstPositiveByTicker(t *testing.T) {
	engine := NewEngine(nil, 0, itGraph(), zerolog.Nop())
	verdicts := map[string]sentiment.Verdict{
		"WIPRO": {Label: sentiment.Positive, Confidence: 0.9},
		"INFY":  {Label: sentiment.Positive, Confidence: 0.7},
	}

	for i := 0; i < 10; i++ {
		v := map[string]sentiment.Verdict{"WIPRO": verdicts["WIPRO"], "INFY": verdicts["INFY"]}
		got := engine.Apply(context.Background(), infosysHeadline, headlineEntities(), v)
		assert.Equal(t, "INFY", got.Winner)
		assert.Equal(t, "WIPRO", got.Loser)
	}
}

func TestNoKeywordNoOverride(t *testing.T) {
	graph := itGraph()
	engine := NewEngine(nil, 0, graph, zerolog.Nop())
	verdicts := map[string]sentiment.Verdict{"INFY": {Label: sentiment.Positive, Confidence: 0.9}}

	got := engine.Apply(context.Background(), "Infosys and Wipro report results", headlineEntities(), verdicts)
	assert.False(t, got.Triggered)
	assert.Zero(t, graph.calls)
	assert.NotContains(t, verdicts, "WIPRO")
}

func TestSingleHeadlineTickerNoOverride(t *testing.T) {
	engine := NewEngine(nil, 0, itGraph(), zerolog.Nop())
	got := engine.Apply(context.Background(), "Infosys beats estimates", headlineEntities()[:1],
		map[string]sentiment.Verdict{"INFY": {Label: sentiment.Positive, Confidence: 0.9}})
	assert.False(t, got.Triggered)
}

func TestNoPositiveVerdictNoOverride(t *testing.T) {
	graph := itGraph()
	engine := NewEngine(nil, 0, graph, zerolog.Nop())
	verdicts := map[string]sentiment.Verdict{"INFY": {Label: sentiment.Neutral, Confidence: 0.9}}

	got := engine.Apply(context.Background(), infosysHeadline, headlineEntities(), verdicts)
	assert.True(t, got.Triggered)
	assert.False(t, got.Applied)
	assert.Zero(t, graph.calls)
}

func TestAmbiguousLoserNoOverride(t *testing.T) {
	engine := NewEngine(nil, 0, itGraph(), zerolog.Nop())
	headline := append(headlineEntities(), entity.Validated{Ticker: "TCS", MatchedText: "TCS"})
	verdicts := map[string]sentiment.Verdict{"INFY": {Label: sentiment.Positive, Confidence: 0.9}}

	got := engine.Apply(context.Background(), "Infosys beats TCS and Wipro", headline, verdicts)
	assert.False(t, got.Applied)
	assert.Empty(t, got.Loser)
}

func TestGraphFailureNoOverride(t *testing.T) {
	engine := NewEngine(nil, 0, &staticGraph{err: errors.New("neo4j down")}, zerolog.Nop())
	verdicts := map[string]sentiment.Verdict{"INFY": {Label: sentiment.Positive, Confidence: 0.9}}

	got := engine.Apply(context.Background(), infosysHeadline, headlineEntities(), verdicts)
	assert.True(t, got.Degraded)
	assert.False(t, got.Applied)
	assert.NotContains(t, verdicts, "WIPRO")
}

func TestCustomKeywordsAreCaseInsensitive(t *testing.T) {
	engine := NewEngine([]string{"Trumps"}, 0.9, itGraph(), zerolog.Nop())
	verdicts := map[string]sentiment.Verdict{"INFY": {Label: sentiment.Positive, Confidence: 0.9}}

	got := engine.Apply(context.Background(), "Infosys TRUMPS Wipro", headlineEntities(), verdicts)
	assert.True(t, got.Applied)
	assert.Equal(t, 0.9, verdicts["WIPRO"].Confidence)
}
