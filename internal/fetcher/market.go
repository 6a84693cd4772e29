package fetcher

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/cinar/indicator"
	"github.com/dgraph-io/ristretto/v2"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"
)

const chartPath = "/v8/finance/chart/"

// ErrNoMarketData means the chart API answered without usable bars.
var ErrNoMarketData = errors.New("no market data")

// MarketOptions parameterise the Yahoo chart fetcher.
type MarketOptions struct {
	BaseURL           string
	SymbolSuffix      string
	Range             string
	Timeout           time.Duration
	CacheTTL          time.Duration
	RequestsPerSecond float64
	Burst             int
	UserAgent         string
}

// Market fetches daily bars from the Yahoo chart API and derives momentum,
// volume and technical indicators from them.
type Market struct {
	opts    MarketOptions
	logger  zerolog.Logger
	client  *http.Client
	baseURL string
	limiter *rate.Limiter
	cache   *ristretto.Cache[string, Snapshot]
	now     func() time.Time
}

// NewMarket constructs a market fetcher.
func NewMarket(opts MarketOptions, logger zerolog.Logger) (*Market, error) {
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	baseURL := strings.TrimRight(opts.BaseURL, "/")
	if baseURL == "" {
		baseURL = "https://query1.finance.yahoo.com"
	}
	if opts.Range == "" {
		opts.Range = "6mo"
	}

	limit := rate.Inf
	if opts.RequestsPerSecond > 0 {
		limit = rate.Limit(opts.RequestsPerSecond)
	}
	burst := opts.Burst
	if burst <= 0 {
		burst = 1
	}

	var cache *ristretto.Cache[string, Snapshot]
	if opts.CacheTTL > 0 {
		var err error
		cache, err = ristretto.NewCache(&ristretto.Config[string, Snapshot]{
			NumCounters: 10_000,
			MaxCost:     1_000,
			BufferItems: 64,
		})
		if err != nil {
			return nil, fmt.Errorf("create market cache: %w", err)
		}
	}

	return &Market{
		opts:    opts,
		logger:  logger.With().Str("component", "market_fetcher").Logger(),
		client:  &http.Client{Timeout: timeout},
		baseURL: baseURL,
		limiter: rate.NewLimiter(limit, burst),
		cache:   cache,
		now:     time.Now,
	}, nil
}

// Close releases the snapshot cache.
func (m *Market) Close() {
	if m != nil && m.cache != nil {
		m.cache.Close()
	}
}

// Snapshot returns price change, volume and indicators for ticker. Results are
// cached for CacheTTL.
func (m *Market) Snapshot(ctx context.Context, ticker string) (Snapshot, error) {
	symbol := m.symbol(ticker)
	if m.cache != nil {
		if snap, ok := m.cache.Get(symbol); ok {
			return snap, nil
		}
	}

	query := url.Values{}
	query.Set("range", m.opts.Range)
	query.Set("interval", "1d")
	candles, err := m.chart(ctx, symbol, query)
	if err != nil {
		return Snapshot{}, err
	}

	snap := buildSnapshot(ticker, candles, m.now().UTC())
	if m.cache != nil {
		m.cache.SetWithTTL(symbol, snap, 1, m.opts.CacheTTL)
		m.cache.Wait()
	}
	return snap, nil
}

// DailyCandles returns daily bars covering [from, to].
func (m *Market) DailyCandles(ctx context.Context, ticker string, from, to time.Time) ([]Candle, error) {
	query := url.Values{}
	query.Set("period1", strconv.FormatInt(from.Unix(), 10))
	query.Set("period2", strconv.FormatInt(to.Unix(), 10))
	query.Set("interval", "1d")
	return m.chart(ctx, m.symbol(ticker), query)
}

func (m *Market) symbol(ticker string) string {
	ticker = strings.ToUpper(strings.TrimSpace(ticker))
	if m.opts.SymbolSuffix == "" || strings.Contains(ticker, ".") {
		return ticker
	}
	return ticker + m.opts.SymbolSuffix
}

func (m *Market) chart(ctx context.Context, symbol string, query url.Values) ([]Candle, error) {
	if err := m.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	endpoint := m.baseURL + chartPath + url.PathEscape(symbol) + "?" + query.Encode()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")
	if ua := strings.TrimSpace(m.opts.UserAgent); ua != "" {
		req.Header.Set("User-Agent", ua)
	} else {
		req.Header.Set("User-Agent", "newsinsight/1.0")
	}

	resp, err := m.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	payload, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}

	var chartRes chartResponse
	decodeErr := json.Unmarshal(payload, &chartRes)
	if resp.StatusCode != http.StatusOK {
		return nil, parseHTTPError(resp.StatusCode, chartRes, payload)
	}
	if decodeErr != nil {
		return nil, fmt.Errorf("decode chart %s: %w", symbol, decodeErr)
	}
	if chartRes.Chart.Error != nil && chartRes.Chart.Error.Description != "" {
		return nil, fmt.Errorf("chart api error %s: %s", symbol, chartRes.Chart.Error.Description)
	}
	if len(chartRes.Chart.Result) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrNoMarketData, symbol)
	}

	candles := parseCandles(chartRes.Chart.Result[0])
	if len(candles) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrNoMarketData, symbol)
	}
	m.logger.Debug().Str("symbol", symbol).Int("bars", len(candles)).Msg("chart fetched")
	return candles, nil
}

// parseCandles drops bars without a close price.
func parseCandles(result chartResult) []Candle {
	if len(result.Indicators.Quote) == 0 {
		return nil
	}
	q := result.Indicators.Quote[0]
	out := make([]Candle, 0, len(result.Timestamp))
	for i, ts := range result.Timestamp {
		if i >= len(q.Close) || q.Close[i] == nil {
			continue
		}
		c := Candle{Time: time.Unix(ts, 0).UTC(), Close: *q.Close[i]}
		if i < len(q.Open) && q.Open[i] != nil {
			c.Open = *q.Open[i]
		}
		if i < len(q.High) && q.High[i] != nil {
			c.High = *q.High[i]
		}
		if i < len(q.Low) && q.Low[i] != nil {
			c.Low = *q.Low[i]
		}
		if i < len(q.Volume) && q.Volume[i] != nil {
			c.Volume = *q.Volume[i]
		}
		out = append(out, c)
	}
	return out
}

// buildSnapshot derives the latest change, volume, RSI(14), SMA20 and SMA50.
// Indicators needing more history than available stay nil.
func buildSnapshot(ticker string, candles []Candle, asOf time.Time) Snapshot {
	snap := Snapshot{Ticker: ticker, AsOf: asOf}
	if len(candles) == 0 {
		return snap
	}

	closes := make([]float64, len(candles))
	for i, c := range candles {
		closes[i] = c.Close
	}
	last := candles[len(candles)-1]
	snap.Price = floatPtr(last.Close)
	snap.Volume = int64Ptr(last.Volume)

	if n := len(closes); n >= 2 && closes[n-2] != 0 {
		snap.ChangePercent = floatPtr((closes[n-1] - closes[n-2]) / closes[n-2] * 100)
	}
	if len(closes) > 14 {
		_, rsi := indicator.Rsi(closes)
		snap.RSI = floatPtr(rsi[len(rsi)-1])
	}
	if len(closes) >= 20 {
		sma := indicator.Sma(20, closes)
		snap.MA20 = floatPtr(sma[len(sma)-1])
	}
	if len(closes) >= 50 {
		sma := indicator.Sma(50, closes)
		snap.MA50 = floatPtr(sma[len(sma)-1])
	}
	return snap
}

func floatPtr(v float64) *float64 { return &v }

func int64Ptr(v int64) *int64 { return &v }

type chartResponse struct {
	Chart struct {
		Result []chartResult `json:"result"`
		Error  *chartError   `json:"error"`
	} `json:"chart"`
}

type chartResult struct {
	Meta struct {
		Symbol   string `json:"symbol"`
		Currency string `json:"currency"`
	} `json:"meta"`
	Timestamp  []int64 `json:"timestamp"`
	Indicators struct {
		Quote []chartQuote `json:"quote"`
	} `json:"indicators"`
}

type chartQuote struct {
	Open   []*float64 `json:"open"`
	High   []*float64 `json:"high"`
	Low    []*float64 `json:"low"`
	Close  []*float64 `json:"close"`
	Volume []*int64   `json:"volume"`
}

type chartError struct {
	Code        string `json:"code"`
	Description string `json:"description"`
}

func parseHTTPError(status int, res chartResponse, payload []byte) error {
	if res.Chart.Error != nil {
		if res.Chart.Error.Description != "" {
			return fmt.Errorf("chart api error (%d): %s", status, res.Chart.Error.Description)
		}
		if res.Chart.Error.Code != "" {
			return fmt.Errorf("chart api error (%d): %s", status, res.Chart.Error.Code)
		}
	}
	if len(payload) > 0 {
		return fmt.Errorf("chart api error (%d): %s", status, strings.TrimSpace(string(payload)))
	}
	return fmt.Errorf("chart api error (%d)", status)
}

var _ MarketDataFetcher = (*Market)(nil)
