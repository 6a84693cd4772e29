package app

import (
	"context"
	"errors"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"newsinsight/internal/alerting"
	"newsinsight/internal/competitive"
	"newsinsight/internal/config"
	"newsinsight/internal/entity"
	"newsinsight/internal/fetcher"
	"newsinsight/internal/fusion"
	"newsinsight/internal/graph"
	"newsinsight/internal/llm"
	"newsinsight/internal/ner"
	"newsinsight/internal/pipeline"
	"newsinsight/internal/registry"
	"newsinsight/internal/relevance"
	"newsinsight/internal/scheduler"
	"newsinsight/internal/sentiment"
	"newsinsight/internal/service"
	"newsinsight/internal/storage"
	"newsinsight/internal/version"
)

// App aggregates configuration and shared dependencies for the CLI commands.
type App struct {
	Config *config.Config
	Logger zerolog.Logger
}

// NewApp constructs a new application handle.
func NewApp(cfg *config.Config, logger zerolog.Logger) *App {
	return &App{Config: cfg, Logger: logger.With().Str("component", "app").Logger()}
}

func (a *App) openStore(ctx context.Context) (*storage.Store, func(), error) {
	if a.Config.Database.DSN == "" {
		return nil, nil, nil
	}

	pool, err := storage.NewPool(ctx, a.Config.Database)
	if err != nil {
		return nil, nil, err
	}

	if a.Config.Database.AutoMigrate {
		if _, err := storage.Migrate(pool, a.Logger); err != nil {
			pool.Close()
			return nil, nil, err
		}
	}

	store := storage.NewStore(pool)
	closer := func() {
		store.Close()
	}
	return store, closer, nil
}

func (a *App) registrySource(store *storage.Store) registry.Source {
	switch strings.ToLower(a.Config.Registry.Source) {
	case "database":
		if store == nil {
			return nil
		}
		return storage.RegistrySource{Stocks: store}
	default:
		return registry.CSVSource{Path: a.Config.Registry.CSVPath}
	}
}

// loadRegistry never fails: an unreadable source yields an empty snapshot and
// every article then reports no_entity.
func (a *App) loadRegistry(ctx context.Context, src registry.Source) *registry.Registry {
	if src == nil {
		a.Logger.Warn().Str("source", a.Config.Registry.Source).Msg("registry source unavailable; using empty registry")
		return registry.Empty(a.Config.Pipeline.Blocklist)
	}
	reg, err := registry.Load(ctx, src, a.Config.Pipeline.Blocklist)
	if err != nil {
		a.Logger.Error().Err(err).Msg("failed to load ticker registry; using empty registry")
		return registry.Empty(a.Config.Pipeline.Blocklist)
	}
	a.Logger.Info().Int("records", reg.Len()).Str("source", a.Config.Registry.Source).Msg("ticker registry loaded")
	return reg
}

func (a *App) newSectorGraph(ctx context.Context, store *storage.Store, holder *registry.Holder) (competitive.SectorGraph, func()) {
	cfg := a.Config.Graph
	switch strings.ToLower(cfg.Backend) {
	case "neo4j":
		g, err := graph.NewNeo4j(ctx, graph.Neo4jOptions{
			URI:       cfg.URI,
			Username:  cfg.Username,
			Password:  cfg.Password,
			Database:  cfg.Database,
			BatchSize: cfg.BatchSize,
		}, a.Logger)
		if err != nil {
			a.Logger.Warn().Err(err).Msg("neo4j unavailable; competitive override disabled")
			return nil, nil
		}
		return g, func() {
			closeCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = g.Close(closeCtx)
		}
	case "postgres":
		if store == nil {
			a.Logger.Warn().Msg("graph.backend=postgres requires database.dsn; competitive override disabled")
			return nil, nil
		}
		return store, nil
	case "registry":
		return graph.NewRegistryGraph(holder), nil
	default:
		return nil, nil
	}
}

// newPipeline wires the per-article pipeline. The returned cleanup releases
// the sector graph driver.
func (a *App) newPipeline(ctx context.Context, store *storage.Store) (*pipeline.Pipeline, func(), error) {
	cfg := a.Config
	holder := registry.NewHolder(a.loadRegistry(ctx, a.registrySource(store)))

	var labeler entity.Labeler
	if strings.TrimSpace(cfg.NER.URL) != "" {
		labeler = ner.New(cfg.NER.URL, cfg.NER.Timeout)
	}
	extractor := entity.NewExtractor(labeler, cfg.Pipeline.IgnoreWords, a.Logger)
	resolver := entity.NewResolver(extractor, entity.NewValidator(cfg.Pipeline.FuzzyThreshold))

	splitter, err := sentiment.NewPunktSplitter()
	if err != nil {
		return nil, nil, err
	}

	classifier := llm.New(llm.Options{
		BaseURL:    cfg.LLM.BaseURL,
		APIKey:     cfg.LLM.APIKey,
		Model:      cfg.LLM.Model,
		Timeout:    cfg.LLM.Timeout,
		MaxChars:   cfg.LLM.MaxChars,
		Confidence: cfg.LLM.Confidence,
	})
	if cfg.LLM.APIKey == "" {
		a.Logger.Warn().Msg("llm.api_key not configured; sentiment defaults to Neutral")
	}

	sectorGraph, closeGraph := a.newSectorGraph(ctx, store, holder)
	engine := competitive.NewEngine(cfg.Pipeline.CompetitiveKeywords, cfg.Pipeline.OverrideConfidence, sectorGraph, a.Logger)

	multipliers := cfg.Pipeline.EventMultipliers
	if len(multipliers) == 0 {
		multipliers = fusion.DefaultEventMultipliers()
	}

	p := pipeline.New(pipeline.Options{
		Registry:   holder,
		Selector:   relevance.NewSelector(resolver),
		Attributor: sentiment.NewAttributor(splitter, classifier, a.Logger),
		Engine:     engine,
		Events:     classifier,
		EventTable: fusion.NewEventTable(multipliers),
		KeyFigures: cfg.Pipeline.KeyFigures,
	}, a.Logger)
	cleanup := func() {
		if closeGraph != nil {
			closeGraph()
		}
	}
	return p, cleanup, nil
}

func (a *App) newFeedFetcher() *fetcher.Feed {
	return fetcher.NewFeed(fetcher.FeedOptions{
		Timeout:           a.Config.Fetch.Timeout,
		UserAgent:         a.Config.Fetch.UserAgent,
		RequestsPerSecond: a.Config.Fetch.RequestsPerSecond,
		ContentSelectors:  a.Config.Fetch.ContentSelectors,
	}, a.Logger)
}

// newMarket returns nil when market data is disabled.
func (a *App) newMarket() (*fetcher.Market, error) {
	cfg := a.Config.Market
	if !cfg.Enabled {
		return nil, nil
	}
	return fetcher.NewMarket(fetcher.MarketOptions{
		BaseURL:           cfg.BaseURL,
		SymbolSuffix:      cfg.SymbolSuffix,
		Range:             cfg.Range,
		Timeout:           cfg.RequestTimeout,
		CacheTTL:          cfg.CacheTTL,
		RequestsPerSecond: cfg.RequestsPerSecond,
		Burst:             cfg.Burst,
		UserAgent:         cfg.UserAgent,
	}, a.Logger)
}

func (a *App) newNotifier() alerting.Notifier {
	if a.Config.Alerting.Telegram.Enabled {
		cfg := a.Config.Alerting.Telegram
		return alerting.NewTelegramNotifier(cfg.BotToken, cfg.ChatID, cfg.APIBase, 10*time.Second, a.Logger)
	}
	return nil
}

// serviceDeps wires every collaborator of the feed service. With a nil store
// the service runs without persistence or deduplication.
func (a *App) serviceDeps(ctx context.Context, store *storage.Store) (service.Deps, func(), error) {
	p, cleanupPipeline, err := a.newPipeline(ctx, store)
	if err != nil {
		return service.Deps{}, nil, err
	}
	market, err := a.newMarket()
	if err != nil {
		cleanupPipeline()
		return service.Deps{}, nil, err
	}

	deps := service.Deps{
		Pipeline: p,
		Feeds:    a.newFeedFetcher(),
		Registry: a.registrySource(store),
	}
	if market != nil {
		deps.Market = market
	}
	if notifier := a.newNotifier(); notifier != nil {
		deps.Notifier = notifier
	}
	if store != nil {
		deps.Insights = store
		deps.Signals = store
		deps.Ledger = store
		deps.Alerts = store
	}

	cleanup := func() {
		if market != nil {
			market.Close()
		}
		cleanupPipeline()
	}
	return deps, cleanup, nil
}

// Run executes the long-running feed service.
func (a *App) Run(ctx context.Context) error {
	ctx, cancel := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	store, closeStore, err := a.openStore(ctx)
	if err != nil {
		return err
	}
	if store == nil {
		a.Logger.Warn().Msg("database.dsn not configured; persistence disabled")
	}
	if closeStore != nil {
		defer closeStore()
	}

	deps, cleanup, err := a.serviceDeps(ctx, store)
	if err != nil {
		return err
	}
	defer cleanup()

	deps.Scheduler = scheduler.New(scheduler.Options{
		Interval:     a.Config.Scheduler.Interval,
		AlignToStart: a.Config.Scheduler.AlignToBucket,
		RunOnStart:   a.Config.Scheduler.RunOnStart,
		StartupDelay: a.Config.Scheduler.StartupDelay,
	}, a.Logger)

	svc := service.New(a.Config, deps, a.Logger)

	a.Logger.Info().Str("build", version.String()).
		Int("feeds", len(a.Config.Feeds)).
		Dur("interval", a.Config.Scheduler.Interval).
		Msg("starting news service")
	err = svc.Run(ctx)
	if err != nil && !errors.Is(err, context.Canceled) {
		a.Logger.Error().Err(err).Msg("service terminated with error")
		return err
	}

	a.Logger.Info().Msg("news service stopped")
	return nil
}

// ExportOptions hold parameters for exporting stored insights.
type ExportOptions struct {
	From    *time.Time
	To      *time.Time
	PNGPath string
	CSVPath string
	MaxRows int
}

// ShowOptions configure the show command.
type ShowOptions struct {
	Limit  int
	Ticker string
}

// OnceOptions configure a single manual feed cycle.
type OnceOptions struct {
	DryRun bool
}

// BacktestOptions bound the insights under evaluation.
type BacktestOptions struct {
	From *time.Time
	To   *time.Time
}

// AnalyzeOptions describe one article scored without persistence.
type AnalyzeOptions struct {
	Title        string
	Content      string
	Link         string
	SourceWeight float64
}
