package graph

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"newsinsight/internal/registry"
)

func sampleRecords() []registry.TickerRecord {
	return []registry.TickerRecord{
		{OfficialName: "Infosys Limited", Ticker: "INFY", Sector: "Information Technology"},
		{OfficialName: "Wipro Limited", Ticker: "WIPRO", Sector: "information technology"},
		{OfficialName: "Tata Consultancy Services Limited", Ticker: "TCS", Sector: "Information Technology"},
		{OfficialName: "HDFC Bank Limited", Ticker: "HDFCBANK", Sector: "Banking"},
		{OfficialName: "Unknown Holdings Limited", Ticker: "UNK"},
	}
}

func TestRegistryGraphCompetitors(t *testing.T) {
	reg, err := registry.New(sampleRecords(), nil)
	require.NoError(t, err)
	g := NewRegistryGraph(registry.NewHolder(reg))

	peers, err := g.Competitors(context.Background(), "INFY")
	require.NoError(t, err)
	assert.Equal(t, []string{"TCS", "WIPRO"}, peers)

	peers, err = g.Competitors(context.Background(), "HDFCBANK")
	require.NoError(t, err)
	assert.Empty(t, peers)

	peers, err = g.Competitors(context.Background(), "UNK")
	require.NoError(t, err)
	assert.Empty(t, peers, "无行业信息时没有同业")

	peers, err = g.Competitors(context.Background(), "NOPE")
	require.NoError(t, err)
	assert.Empty(t, peers)
}

func TestBatchesSkipsSectorless(t *testing.T) {
	batches := Batches(sampleRecords(), 2)
	require.Len(t, batches, 2)
	assert.Len(t, batches[0], 2)
	assert.Len(t, batches[1], 2)
	for _, b := range batches {
		for _, rec := range b {
			assert.NotEqual(t, "UNK", rec.Ticker)
		}
	}
	assert.Len(t, Batches(sampleRecords(), 0), 1)
}
