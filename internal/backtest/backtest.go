// Package backtest checks stored directional sentiment against the next
// trading session's open-to-close move.
package backtest

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/rs/zerolog"

	"newsinsight/internal/fetcher"
	"newsinsight/internal/sentiment"
	"newsinsight/internal/storage"
)

// candleWindow is how far past the insight date bars are requested; it
// covers a long weekend plus a holiday.
const candleWindow = 5 * 24 * time.Hour

// Prediction is one directional insight under test.
type Prediction struct {
	Ticker    string
	Timestamp time.Time
	Sentiment sentiment.Label
}

// Outcome is the evaluated prediction.
type Outcome struct {
	Prediction
	TradeDate time.Time
	Open      float64
	Close     float64
	ReturnPct float64
	Actual    sentiment.Label
	Correct   bool
}

// Report aggregates outcomes.
type Report struct {
	Outcomes []Outcome
	Skipped  int
}

// Correct counts matching predictions.
func (r Report) Correct() int {
	n := 0
	for _, o := range r.Outcomes {
		if o.Correct {
			n++
		}
	}
	return n
}

// Accuracy is the share of correct predictions in percent; zero when nothing
// was evaluated.
func (r Report) Accuracy() float64 {
	if len(r.Outcomes) == 0 {
		return 0
	}
	return float64(r.Correct()) / float64(len(r.Outcomes)) * 100
}

// Evaluate scores p against daily candles. The session used is the first bar
// dated after the prediction's calendar day (UTC). ok is false for Neutral
// predictions and when no usable bar exists.
func Evaluate(p Prediction, candles []fetcher.Candle) (Outcome, bool) {
	if p.Sentiment != sentiment.Positive && p.Sentiment != sentiment.Negative {
		return Outcome{}, false
	}

	day := civilDay(p.Timestamp)
	sorted := append([]fetcher.Candle(nil), candles...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Time.Before(sorted[j].Time) })

	for _, c := range sorted {
		if !civilDay(c.Time).After(day) {
			continue
		}
		if c.Open == 0 || c.Open != c.Open || c.Close != c.Close {
			return Outcome{}, false
		}
		ret := (c.Close - c.Open) / c.Open * 100
		// 收平视为下跌
		actual := sentiment.Negative
		if ret > 0 {
			actual = sentiment.Positive
		}
		return Outcome{
			Prediction: p,
			TradeDate:  civilDay(c.Time),
			Open:       c.Open,
			Close:      c.Close,
			ReturnPct:  ret,
			Actual:     actual,
			Correct:    actual == p.Sentiment,
		}, true
	}
	return Outcome{}, false
}

func civilDay(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// Runner loads insights from storage and price history from the market API.
type Runner struct {
	insights storage.InsightStore
	market   fetcher.MarketDataFetcher
	logger   zerolog.Logger
}

// NewRunner wires a backtest runner.
func NewRunner(insights storage.InsightStore, market fetcher.MarketDataFetcher, logger zerolog.Logger) *Runner {
	return &Runner{
		insights: insights,
		market:   market,
		logger:   logger.With().Str("component", "backtest").Logger(),
	}
}

// Run evaluates directional insights stamped within [from, to). A ticker whose
// history cannot be fetched is skipped, not fatal.
func (r *Runner) Run(ctx context.Context, from, to time.Time) (Report, error) {
	if r.insights == nil || r.market == nil {
		return Report{}, fmt.Errorf("backtest requires storage and market data")
	}
	rows, err := r.insights.ListDirectionalInsights(ctx, from, to)
	if err != nil {
		return Report{}, fmt.Errorf("load insights: %w", err)
	}
	r.logger.Info().Int("insights", len(rows)).Msg("loaded insights for backtesting")

	type key struct {
		ticker string
		day    time.Time
	}
	cache := make(map[key][]fetcher.Candle)

	var report Report
	for _, row := range rows {
		if err := ctx.Err(); err != nil {
			return report, err
		}
		p := Prediction{Ticker: row.Ticker, Timestamp: row.Timestamp, Sentiment: sentiment.ParseLabel(row.Sentiment)}
		k := key{ticker: row.Ticker, day: civilDay(row.Timestamp)}

		candles, ok := cache[k]
		if !ok {
			candles, err = r.market.DailyCandles(ctx, row.Ticker, k.day, k.day.Add(candleWindow))
			if err != nil {
				r.logger.Warn().Err(err).Str("ticker", row.Ticker).Time("date", k.day).Msg("price history unavailable")
				candles = nil
			}
			cache[k] = candles
		}

		outcome, ok := Evaluate(p, candles)
		if !ok {
			report.Skipped++
			continue
		}
		report.Outcomes = append(report.Outcomes, outcome)
	}
	return report, nil
}
