package storage

import (
	"encoding/json"
	"time"

	"github.com/shopspring/decimal"
)

// StockRecord is one row of the ticker registry table.
type StockRecord struct {
	Name   string
	Ticker string
	Sector string
}

// InsightRecord is an append-only, per-company outcome of one article.
type InsightRecord struct {
	ID           int64
	Timestamp    time.Time
	ArticleTitle string
	Link         string
	CompanyName  string
	Ticker       string
	Sentiment    string
	Confidence   float64
	EventType    string
	ImpactScore  decimal.Decimal
	KeyFigures   json.RawMessage
	CreatedAt    time.Time
}

// SignalRecord is the fused trading signal computed for an insight.
type SignalRecord struct {
	ID             int64
	InsightID      *int64
	Ticker         string
	Overall        decimal.Decimal
	Strength       decimal.Decimal
	Confidence     decimal.Decimal
	Recommendation string
	SubSignals     json.RawMessage
	ChangePct      *float64
	Volume         *int64
	CreatedAt      time.Time
}

// ProcessedArticle gates re-processing of the same link across cycles.
type ProcessedArticle struct {
	Link        string
	Feed        string
	Title       string
	Status      string
	ProcessedAt time.Time
}

// AlertRecord captures an emitted alert for cooldown/auditing.
type AlertRecord struct {
	ID             int64
	Ticker         string
	Recommendation string
	Overall        decimal.Decimal
	Link           string
	Channels       []string
	CreatedAt      time.Time
}
