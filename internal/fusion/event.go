// Package fusion combines sentiment, event type, source weight and market data
// into impact scores and trading signals.
package fusion

import (
	"context"
	"strings"

	"github.com/shopspring/decimal"
)

// EventType is one of a closed set of news categories.
type EventType string

const (
	EventEarnings    EventType = "Earnings Report"
	EventMerger      EventType = "Merger or Acquisition"
	EventAnalyst     EventType = "Analyst Update"
	EventProduct     EventType = "Product Launch"
	EventLegal       EventType = "Legal or Regulatory Issue"
	EventPartnership EventType = "Partnership"
	EventExecutive   EventType = "Executive Change"
	EventGeneral     EventType = "General News"
)

// EventTypes lists every category in classifier prompt order.
var EventTypes = []EventType{
	EventEarnings,
	EventMerger,
	EventAnalyst,
	EventProduct,
	EventLegal,
	EventPartnership,
	EventExecutive,
	EventGeneral,
}

// EventClassifier names the news category of a headline. Its output is
// passed through CanonicalEvent.
type EventClassifier interface {
	ClassifyEvent(ctx context.Context, title string) (string, error)
}

// CanonicalEvent maps classifier output onto the closed set. Exact
// case-insensitive matches win; otherwise the first category named inside the
// text is used; anything else is General News.
func CanonicalEvent(raw string) EventType {
	cleaned := strings.Trim(strings.TrimSpace(raw), " .\"'`*")
	for _, et := range EventTypes {
		if strings.EqualFold(cleaned, string(et)) {
			return et
		}
	}
	lowered := strings.ToLower(cleaned)
	for _, et := range EventTypes {
		if strings.Contains(lowered, strings.ToLower(string(et))) {
			return et
		}
	}
	return EventGeneral
}

// EventTable holds per-category impact multipliers. Missing categories use 1.
type EventTable struct {
	multipliers map[EventType]decimal.Decimal
}

// DefaultEventMultipliers are the stock multipliers.
func DefaultEventMultipliers() map[string]float64 {
	return map[string]float64{
		string(EventMerger):   1.5,
		string(EventEarnings): 1.4,
		string(EventLegal):    1.3,
	}
}

// NewEventTable builds a table. Keys are matched case-insensitively; keys that
// do not name a category and non-positive values are ignored.
func NewEventTable(multipliers map[string]float64) EventTable {
	table := EventTable{multipliers: make(map[EventType]decimal.Decimal, len(multipliers))}
	for name, m := range multipliers {
		if m <= 0 {
			continue
		}
		for _, et := range EventTypes {
			if strings.EqualFold(strings.TrimSpace(name), string(et)) {
				table.multipliers[et] = decimal.NewFromFloat(m)
			}
		}
	}
	return table
}

// Multiplier returns the multiplier for event.
func (t EventTable) Multiplier(event EventType) decimal.Decimal {
	if m, ok := t.multipliers[event]; ok {
		return m
	}
	return decimal.NewFromInt(1)
}
