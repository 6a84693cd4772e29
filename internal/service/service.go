package service

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"

	"newsinsight/internal/alerting"
	"newsinsight/internal/config"
	"newsinsight/internal/fetcher"
	"newsinsight/internal/fusion"
	"newsinsight/internal/pipeline"
	"newsinsight/internal/registry"
	"newsinsight/internal/scheduler"
	"newsinsight/internal/sentiment"
	"newsinsight/internal/storage"
)

// Deps 汇总服务依赖。Market、Signals、Alerts、Notifier、Ledger、Registry 均可为空。
type Deps struct {
	Scheduler *scheduler.Scheduler
	Pipeline  *pipeline.Pipeline
	Feeds     fetcher.ArticleFetcher
	Market    fetcher.MarketDataFetcher
	Insights  storage.InsightStore
	Signals   storage.SignalStore
	Ledger    storage.ArticleLedger
	Alerts    storage.AlertStore
	Notifier  alerting.Notifier
	Registry  registry.Source
}

// CycleReport summarises one feed cycle.
type CycleReport struct {
	Feeds      int
	FeedErrors int
	Articles   int
	Skipped    int
	Insights   int
	Signals    int
	Alerts     int
	Failures   int
}

type cycleCounters struct {
	feedErrors atomic.Int64
	articles   atomic.Int64
	skipped    atomic.Int64
	insights   atomic.Int64
	signals    atomic.Int64
	alerts     atomic.Int64
	failures   atomic.Int64
}

func (c *cycleCounters) report(feeds int) CycleReport {
	return CycleReport{
		Feeds:      feeds,
		FeedErrors: int(c.feedErrors.Load()),
		Articles:   int(c.articles.Load()),
		Skipped:    int(c.skipped.Load()),
		Insights:   int(c.insights.Load()),
		Signals:    int(c.signals.Load()),
		Alerts:     int(c.alerts.Load()),
		Failures:   int(c.failures.Load()),
	}
}

// Service orchestrates fetching, scoring, persistence, and alerting.
type Service struct {
	deps   Deps
	logger zerolog.Logger

	feeds     []config.FeedConfig
	workers   int
	blocklist []string

	alertsOn        bool
	recommendations map[fusion.Recommendation]struct{}
	cooldown        time.Duration
	channels        []string

	locker  storage.AdvisoryLocker
	lockKey int64
	now     func() time.Time
}

// New constructs the feed service.
func New(cfg *config.Config, deps Deps, logger zerolog.Logger) *Service {
	recs := make(map[fusion.Recommendation]struct{}, len(cfg.Alerting.Recommendations))
	for _, r := range cfg.Alerting.Recommendations {
		recs[fusion.Recommendation(strings.TrimSpace(r))] = struct{}{}
	}

	var locker storage.AdvisoryLocker
	if l, ok := deps.Insights.(storage.AdvisoryLocker); ok {
		locker = l
	}

	workers := cfg.Scheduler.FeedWorkers
	if workers <= 0 {
		workers = 1
	}

	return &Service{
		deps:            deps,
		logger:          logger.With().Str("component", "service").Logger(),
		feeds:           cfg.Feeds,
		workers:         workers,
		blocklist:       cfg.Pipeline.Blocklist,
		alertsOn:        cfg.Alerting.Enabled,
		recommendations: recs,
		cooldown:        cfg.Alerting.Cooldown,
		channels:        cfg.Alerting.Channels,
		locker:          locker,
		lockKey:         cfg.Scheduler.AdvisoryLockKey,
		now:             func() time.Time { return time.Now().UTC() },
	}
}

// Run begins the scheduled feed loop.
func (s *Service) Run(ctx context.Context) error {
	if s.deps.Scheduler == nil {
		return fmt.Errorf("scheduler not configured")
	}
	return s.deps.Scheduler.Run(ctx, func(ctx context.Context, cycle time.Time) error {
		_, err := s.RunCycle(ctx, cycle)
		return err
	})
}

// RunCycle 执行一次完整的抓取与分析周期。
func (s *Service) RunCycle(ctx context.Context, cycle time.Time) (CycleReport, error) {
	if s.deps.Pipeline == nil || s.deps.Feeds == nil {
		return CycleReport{}, fmt.Errorf("pipeline or feed fetcher not configured")
	}

	unlock, proceed, err := s.acquireLock(ctx)
	if err != nil {
		return CycleReport{}, err
	}
	if !proceed {
		s.logger.Debug().Time("cycle", cycle).Msg("skip cycle because advisory lock held elsewhere")
		return CycleReport{}, nil
	}
	if unlock != nil {
		defer unlock()
	}

	s.ReloadRegistry(ctx)

	var counters cycleCounters
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.workers)
	for _, feed := range s.feeds {
		feed := feed
		g.Go(func() error {
			s.processFeed(gctx, feed, &counters)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return counters.report(len(s.feeds)), err
	}

	report := counters.report(len(s.feeds))
	s.logger.Info().Time("cycle", cycle).
		Int("feeds", report.Feeds).
		Int("feed_errors", report.FeedErrors).
		Int("articles", report.Articles).
		Int("skipped", report.Skipped).
		Int("insights", report.Insights).
		Int("signals", report.Signals).
		Int("alerts", report.Alerts).
		Int("failures", report.Failures).
		Msg("cycle complete")
	return report, ctx.Err()
}

// ReloadRegistry replaces the pipeline's registry snapshot. On failure the
// previous snapshot stays in place.
func (s *Service) ReloadRegistry(ctx context.Context) {
	if s.deps.Registry == nil {
		return
	}
	reg, err := registry.Load(ctx, s.deps.Registry, s.blocklist)
	if err != nil {
		s.logger.Warn().Err(err).Msg("registry reload failed, keeping previous snapshot")
		return
	}
	s.deps.Pipeline.Registry().Replace(reg)
	s.logger.Debug().Int("records", reg.Len()).Msg("registry reloaded")
}

func (s *Service) processFeed(ctx context.Context, feed config.FeedConfig, counters *cycleCounters) {
	items, err := s.deps.Feeds.FetchFeed(ctx, fetcher.FeedSpec{
		Name:             feed.Name,
		URL:              feed.URL,
		Limit:            feed.Limit,
		ContentSelectors: feed.ContentSelectors,
	})
	if err != nil {
		counters.feedErrors.Add(1)
		s.logger.Warn().Err(err).Str("feed", feed.Name).Msg("fetch feed failed")
		return
	}

	// 同一来源内按顺序处理
	for _, item := range items {
		if ctx.Err() != nil {
			return
		}
		s.processItem(ctx, feed, item, counters)
	}
}

func (s *Service) processItem(ctx context.Context, feed config.FeedConfig, item fetcher.Item, counters *cycleCounters) {
	if s.deps.Ledger != nil && item.Link != "" {
		fresh, err := s.deps.Ledger.ClaimArticle(ctx, item.Link, feed.Name, item.Title)
		if err != nil {
			s.logger.Warn().Err(err).Str("link", item.Link).Msg("article ledger unavailable, processing anyway")
		} else if !fresh {
			counters.skipped.Add(1)
			return
		}
	}
	counters.articles.Add(1)

	res := s.deps.Pipeline.Process(ctx, pipeline.Article{
		Title:        item.Title,
		Content:      item.Content,
		Link:         item.Link,
		Feed:         feed.Name,
		SourceWeight: feed.Weight,
		PublishedAt:  item.PublishedAt,
	})
	if len(res.Degraded) > 0 {
		s.logger.Warn().Str("link", item.Link).Strs("degraded", res.Degraded).Msg("article scored with degraded stages")
	}

	written, failed := 0, 0
	for _, ins := range res.Insights {
		id, ok := s.persistInsight(ctx, ins)
		if !ok {
			failed++
			continue
		}
		written++
		if s.emitSignal(ctx, ins, id, counters) {
			counters.signals.Add(1)
		}
	}
	counters.insights.Add(int64(written))
	counters.failures.Add(int64(failed))

	if s.deps.Ledger == nil || item.Link == "" {
		return
	}
	if failed > 0 && written == 0 {
		// 全部写入失败，释放链接以便下个周期重试
		if err := s.deps.Ledger.ReleaseArticle(ctx, item.Link); err != nil {
			s.logger.Error().Err(err).Str("link", item.Link).Msg("failed to release article")
		}
		return
	}
	if err := s.deps.Ledger.SetArticleStatus(ctx, item.Link, string(res.Status)); err != nil {
		s.logger.Error().Err(err).Str("link", item.Link).Msg("failed to record article status")
	}
}

func (s *Service) persistInsight(ctx context.Context, ins fusion.Insight) (*int64, bool) {
	if s.deps.Insights == nil {
		return nil, true
	}
	rec := storage.InsightRecord{
		Timestamp:    ins.Timestamp,
		ArticleTitle: ins.ArticleTitle,
		Link:         ins.Link,
		CompanyName:  ins.CompanyName,
		Ticker:       ins.Ticker,
		Sentiment:    string(ins.Sentiment),
		Confidence:   ins.Confidence,
		EventType:    string(ins.EventType),
		ImpactScore:  ins.ImpactScore,
	}
	if !ins.KeyFigures.IsEmpty() {
		raw, err := json.Marshal(ins.KeyFigures)
		if err != nil {
			s.logger.Warn().Err(err).Str("ticker", ins.Ticker).Msg("failed to encode key figures")
		} else {
			rec.KeyFigures = raw
		}
	}

	saved, err := s.deps.Insights.InsertInsight(ctx, rec)
	if err != nil {
		s.logger.Error().Err(err).Str("ticker", ins.Ticker).Str("link", ins.Link).Msg("failed to persist insight")
		return nil, false
	}
	s.logger.Info().Str("ticker", ins.Ticker).
		Str("sentiment", string(ins.Sentiment)).
		Str("event", string(ins.EventType)).
		Str("impact", ins.ImpactScore.String()).
		Msg("insight recorded")
	if saved.ID == 0 {
		return nil, true
	}
	id := saved.ID
	return &id, true
}

// emitSignal fuses sentiment with market data. Without a market fetcher no
// signal is produced; a failed snapshot leaves the market sub-signals out.
func (s *Service) emitSignal(ctx context.Context, ins fusion.Insight, insightID *int64, counters *cycleCounters) bool {
	if s.deps.Market == nil {
		return false
	}

	inputs := fusion.SignalInputs{
		Sentiment: sentiment.Verdict{Label: ins.Sentiment, Confidence: ins.Confidence},
	}
	snap, err := s.deps.Market.Snapshot(ctx, ins.Ticker)
	if err != nil {
		s.logger.Warn().Err(err).Str("ticker", ins.Ticker).Msg("market data unavailable")
	} else {
		inputs.ChangePercent = snap.ChangePercent
		inputs.Volume = snap.Volume
		inputs.Technicals = &fusion.Technicals{RSI: snap.RSI, Close: snap.Price, MA20: snap.MA20, MA50: snap.MA50}
	}
	sig := fusion.GenerateSignal(inputs)

	if s.deps.Signals != nil {
		rec, err := signalRecord(ins.Ticker, insightID, inputs, sig)
		if err != nil {
			s.logger.Error().Err(err).Str("ticker", ins.Ticker).Msg("failed to encode trading signal")
		} else if _, err := s.deps.Signals.InsertSignal(ctx, rec); err != nil {
			s.logger.Error().Err(err).Str("ticker", ins.Ticker).Msg("failed to persist trading signal")
		}
	}

	if s.maybeAlert(ctx, ins, sig) {
		counters.alerts.Add(1)
	}
	return true
}

func signalRecord(ticker string, insightID *int64, inputs fusion.SignalInputs, sig fusion.TradingSignal) (storage.SignalRecord, error) {
	subs, err := json.Marshal(sig.Signals)
	if err != nil {
		return storage.SignalRecord{}, fmt.Errorf("encode sub-signals: %w", err)
	}
	return storage.SignalRecord{
		InsightID:      insightID,
		Ticker:         ticker,
		Overall:        decimal.NewFromFloat(sig.Overall).Round(6),
		Strength:       decimal.NewFromFloat(sig.Strength).Round(6),
		Confidence:     decimal.NewFromFloat(sig.Confidence).Round(6),
		Recommendation: string(sig.Recommendation),
		SubSignals:     subs,
		ChangePct:      inputs.ChangePercent,
		Volume:         inputs.Volume,
	}, nil
}

func (s *Service) maybeAlert(ctx context.Context, ins fusion.Insight, sig fusion.TradingSignal) bool {
	if !s.alertsOn || s.deps.Notifier == nil {
		return false
	}
	if _, ok := s.recommendations[sig.Recommendation]; !ok {
		return false
	}

	now := s.now()
	if s.deps.Alerts != nil && s.cooldown > 0 {
		last, found, err := s.deps.Alerts.LastAlert(ctx, ins.Ticker)
		if err != nil {
			s.logger.Warn().Err(err).Str("ticker", ins.Ticker).Msg("failed to read last alert")
		} else if found && now.Sub(last.CreatedAt) < s.cooldown {
			s.logger.Debug().Str("ticker", ins.Ticker).Time("last_alert", last.CreatedAt).Msg("alert suppressed by cooldown")
			return false
		}
	}

	overall := decimal.NewFromFloat(sig.Overall).Round(4)
	if s.deps.Alerts != nil {
		record := storage.AlertRecord{
			Ticker:         ins.Ticker,
			Recommendation: string(sig.Recommendation),
			Overall:        overall,
			Link:           ins.Link,
			Channels:       s.channels,
		}
		if _, err := s.deps.Alerts.InsertAlert(ctx, record); err != nil {
			s.logger.Error().Err(err).Str("ticker", ins.Ticker).Msg("failed to persist alert record")
		}
	}

	note := alerting.Notification{
		Time:           now,
		Ticker:         ins.Ticker,
		CompanyName:    ins.CompanyName,
		Recommendation: string(sig.Recommendation),
		Overall:        overall,
		Confidence:     decimal.NewFromFloat(sig.Confidence).Round(2),
		Sentiment:      string(ins.Sentiment),
		EventType:      string(ins.EventType),
		ImpactScore:    ins.ImpactScore,
		ArticleTitle:   ins.ArticleTitle,
		Link:           ins.Link,
		Channels:       s.channels,
	}
	if err := s.deps.Notifier.Notify(ctx, note); err != nil {
		s.logger.Error().Err(err).Str("ticker", ins.Ticker).Msg("failed to dispatch alert")
		return false
	}
	return true
}

func (s *Service) acquireLock(ctx context.Context) (func(), bool, error) {
	if s.lockKey == 0 || s.locker == nil {
		return nil, true, nil
	}
	unlock, acquired, err := s.locker.TryAdvisoryLock(ctx, s.lockKey)
	if err != nil {
		return nil, false, fmt.Errorf("acquire advisory lock: %w", err)
	}
	if !acquired {
		return nil, false, nil
	}
	return unlock, true, nil
}
