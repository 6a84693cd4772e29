// Package graph answers same-sector peer queries for the competitive rule.
package graph

import (
	"context"
	"sort"
	"strings"

	"newsinsight/internal/registry"
)

// RegistryGraph derives sector peers from the Sector column of the loaded
// registry snapshot.
type RegistryGraph struct {
	holder *registry.Holder
}

// NewRegistryGraph reads the current snapshot on every query.
func NewRegistryGraph(holder *registry.Holder) *RegistryGraph {
	return &RegistryGraph{holder: holder}
}

// Competitors lists tickers sharing ticker's sector, sorted, ticker excluded.
func (g *RegistryGraph) Competitors(_ context.Context, ticker string) ([]string, error) {
	reg := g.holder.Load()
	self, ok := reg.ByTicker(ticker)
	if !ok || strings.TrimSpace(self.Sector) == "" {
		return nil, nil
	}

	var peers []string
	for _, rec := range reg.Records() {
		if rec.Ticker != self.Ticker && strings.EqualFold(rec.Sector, self.Sector) {
			peers = append(peers, rec.Ticker)
		}
	}
	sort.Strings(peers)
	return peers, nil
}
