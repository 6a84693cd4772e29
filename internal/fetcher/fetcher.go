package fetcher

import (
	"context"
	"time"
)

// Item is one article pulled from a feed, with its body text resolved.
type Item struct {
	Feed        string
	Title       string
	Link        string
	Content     string
	PublishedAt *time.Time
}

// FeedSpec describes one RSS source.
type FeedSpec struct {
	Name             string
	URL              string
	Limit            int
	ContentSelectors []string
}

// ArticleFetcher retrieves the latest articles of a feed.
type ArticleFetcher interface {
	FetchFeed(ctx context.Context, spec FeedSpec) ([]Item, error)
}

// Snapshot is the latest market picture for a ticker. Nil fields are unknown.
type Snapshot struct {
	Ticker        string
	Price         *float64
	ChangePercent *float64
	Volume        *int64
	RSI           *float64
	MA20          *float64
	MA50          *float64
	AsOf          time.Time
}

// Candle is one daily OHLCV bar.
type Candle struct {
	Time   time.Time
	Open   float64
	High   float64
	Low    float64
	Close  float64
	Volume int64
}

// MarketDataFetcher retrieves quotes and daily history.
type MarketDataFetcher interface {
	Snapshot(ctx context.Context, ticker string) (Snapshot, error)
	DailyCandles(ctx context.Context, ticker string, from, to time.Time) ([]Candle, error)
}
