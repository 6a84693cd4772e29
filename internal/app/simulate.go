package app

import (
	"context"
	"errors"
	"time"

	"newsinsight/internal/config"
	"newsinsight/internal/fetcher"
	"newsinsight/internal/service"
)

// SimulateOptions describe a synthetic article and market move.
type SimulateOptions struct {
	Title         string
	Content       string
	ChangePercent float64
	Volume        int64
}

// SimulateAlert 用给定文章与行情跑一遍完整流程并触发告警，不写数据库。
func (a *App) SimulateAlert(ctx context.Context, opts SimulateOptions) error {
	if !a.Config.Alerting.Enabled {
		return errors.New("alerting 未启用")
	}

	notifier := a.newNotifier()
	if notifier == nil {
		return errors.New("未配置任何告警通道")
	}

	p, cleanup, err := a.newPipeline(ctx, nil)
	if err != nil {
		return err
	}
	defer cleanup()

	const simulatedURL = "simulate://article"
	cfg := *a.Config
	cfg.Feeds = []config.FeedConfig{{Name: "simulated", URL: simulatedURL, Weight: 1.0}}
	cfg.Scheduler.AdvisoryLockKey = 0

	svc := service.New(&cfg, service.Deps{
		Pipeline: p,
		Feeds: &staticFeedFetcher{items: []fetcher.Item{{
			Feed:    "simulated",
			Title:   opts.Title,
			Content: opts.Content,
			Link:    simulatedURL,
		}}},
		Market:   &staticMarketFetcher{change: opts.ChangePercent, volume: opts.Volume},
		Notifier: notifier,
	}, a.Logger)

	report, err := svc.RunCycle(ctx, time.Now().UTC())
	if err != nil {
		return err
	}
	if report.Alerts == 0 {
		return errors.New("模拟信号未达到告警条件")
	}
	return nil
}

type staticFeedFetcher struct {
	items []fetcher.Item
}

func (s *staticFeedFetcher) FetchFeed(context.Context, fetcher.FeedSpec) ([]fetcher.Item, error) {
	return s.items, nil
}

type staticMarketFetcher struct {
	change float64
	volume int64
}

func (s *staticMarketFetcher) Snapshot(_ context.Context, ticker string) (fetcher.Snapshot, error) {
	change := s.change
	volume := s.volume
	return fetcher.Snapshot{Ticker: ticker, ChangePercent: &change, Volume: &volume, AsOf: time.Now().UTC()}, nil
}

func (s *staticMarketFetcher) DailyCandles(context.Context, string, time.Time, time.Time) ([]fetcher.Candle, error) {
	return nil, nil
}

var _ fetcher.ArticleFetcher = (*staticFeedFetcher)(nil)
var _ fetcher.MarketDataFetcher = (*staticMarketFetcher)(nil)
