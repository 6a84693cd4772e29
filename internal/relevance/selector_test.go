package relevance

import (
	"context"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"newsinsight/internal/config"
	"newsinsight/internal/entity"
	"newsinsight/internal/registry"
)

// countingResolver records the texts it was asked to resolve.
type countingResolver struct {
	inner *entity.Resolver
	calls []string
}

func (c *countingResolver) Resolve(ctx context.Context, reg *registry.Registry, text string) ([]entity.Validated, bool) {
	c.calls = append(c.calls, text)
	return c.inner.Resolve(ctx, reg, text)
}

func setup(t *testing.T) (*registry.Registry, *countingResolver) {
	t.Helper()
	reg, err := registry.New([]registry.TickerRecord{
		{OfficialName: "Infosys Limited", Ticker: "INFY"},
		{OfficialName: "Wipro Limited", Ticker: "WIPRO"},
		{OfficialName: "HCL Technologies Limited", Ticker: "HCLTECH"},
	}, config.DefaultBlocklist)
	require.NoError(t, err)

	inner := entity.NewResolver(
		entity.NewExtractor(nil, config.DefaultIgnoreWords, zerolog.Nop()),
		entity.NewValidator(entity.DefaultThreshold),
	)
	return reg, &countingResolver{inner: inner}
}

func TestHeadlineMatchNeverFallsBack(t *testing.T) {
	reg, res := setup(t)
	sel := NewSelector(res).Select(context.Background(), reg,
		"Infosys and Wipro sign cloud pact",
		"HCL Technologies was not part of it. HCL Technologies said so. HCL Technologies again.")

	assert.Equal(t, OutcomeSelected, sel.Outcome)
	assert.Equal(t, StageHeadline, sel.Stage)
	require.Len(t, sel.Entities, 2)
	assert.Equal(t, "INFY", sel.Entities[0].Ticker)
	assert.Equal(t, "WIPRO", sel.Entities[1].Ticker)
	assert.Equal(t, sel.Entities, sel.Headline)
	assert.Len(t, res.calls, 1, "content must not be resolved when the headline matched")
}

func TestContentFallbackPicksDominantSubject(t *testing.T) {
	reg, res := setup(t)
	body := strings.Repeat("Infosys posted strong numbers. ", 5) + "Wipro was also mentioned."

	sel := NewSelector(res).Select(context.Background(), reg, "IT sector quarterly wrap", body)
	assert.Equal(t, OutcomeSelected, sel.Outcome)
	assert.Equal(t, StageSubjectScoring, sel.Stage)
	require.Len(t, sel.Entities, 1)
	assert.Equal(t, "INFY", sel.Entities[0].Ticker)
	assert.Equal(t, 5, sel.Scores["INFY"])
	assert.Equal(t, 1, sel.Scores["WIPRO"])
	assert.Empty(t, sel.Headline)
}

func TestContentFallbackSingleMentionIsAmbiguous(t *testing.T) {
	reg, res := setup(t)
	sel := NewSelector(res).Select(context.Background(), reg, "Markets close flat", "Wipro was mentioned once in passing.")

	assert.Equal(t, OutcomeAmbiguous, sel.Outcome)
	assert.Empty(t, sel.Entities)
}

func TestContentFallbackNoEntity(t *testing.T) {
	reg, res := setup(t)
	sel := NewSelector(res).Select(context.Background(), reg, "Monsoon arrives early", "Rainfall is expected to be above normal.")

	assert.Equal(t, OutcomeNoEntity, sel.Outcome)
	assert.Equal(t, StageContent, sel.Stage)
	assert.Empty(t, sel.Entities)
}

func TestSubjectScoringTieGoesToFirstTicker(t *testing.T) {
	reg, res := setup(t)
	body := "Wipro and Infosys. Wipro and Infosys again."

	sel := NewSelector(res).Select(context.Background(), reg, "Weekly roundup", body)
	require.Equal(t, OutcomeSelected, sel.Outcome)
	assert.Equal(t, "INFY", sel.Entities[0].Ticker)
}

func TestEmptyRegistryYieldsNoEntity(t *testing.T) {
	_, res := setup(t)
	sel := NewSelector(res).Select(context.Background(), registry.Empty(nil), "Infosys soars", "Infosys Infosys Infosys")
	assert.Equal(t, OutcomeNoEntity, sel.Outcome)
}

func TestMentionCount(t *testing.T) {
	assert.Equal(t, 3, MentionCount("infosys, infosys and infosys", "INFOSYS"))
	assert.Equal(t, 0, MentionCount("anything", "  "))
	assert.Equal(t, 1, MentionCount("ola rides on as coca-cola and olam slip", "Ola"))
	assert.Equal(t, 2, MentionCount("infosys's deal: infosys.", "Infosys"))
}

func TestSubjectScoringIgnoresShortNameInsideLongerOne(t *testing.T) {
	reg, err := registry.New([]registry.TickerRecord{
		{OfficialName: "Tata Motors Limited", Ticker: "TATAMOTORS"},
		{OfficialName: "Tata Steel Limited", Ticker: "TATASTEEL"},
	}, config.DefaultBlocklist)
	require.NoError(t, err)
	res := entity.NewResolver(
		entity.NewExtractor(nil, config.DefaultIgnoreWords, zerolog.Nop()),
		entity.NewValidator(entity.DefaultThreshold),
	)

	sel := NewSelector(res).Select(context.Background(), reg,
		"Auto stocks rally",
		"Tata Motors rose. Tata Motors said Tata was upbeat.")

	assert.Equal(t, OutcomeSelected, sel.Outcome)
	assert.Equal(t, StageSubjectScoring, sel.Stage)
	assert.Equal(t, map[string]int{"TATAMOTORS": 2, "TATASTEEL": 1}, sel.Scores)
	require.Len(t, sel.Entities, 1)
	assert.Equal(t, "TATAMOTORS", sel.Entities[0].Ticker)
}
