package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/go-viper/mapstructure/v2"
	"github.com/spf13/viper"

	"newsinsight/internal/logging"
)

// Config materialises application configuration.
type Config struct {
	App       AppConfig       `mapstructure:"app"`
	Logging   logging.Config  `mapstructure:"logging"`
	Database  DatabaseConfig  `mapstructure:"database"`
	Scheduler SchedulerConfig `mapstructure:"scheduler"`
	Feeds     []FeedConfig    `mapstructure:"feeds"`
	Fetch     FetchConfig     `mapstructure:"fetch"`
	Registry  RegistryConfig  `mapstructure:"registry"`
	Pipeline  PipelineConfig  `mapstructure:"pipeline"`
	NER       NERConfig       `mapstructure:"ner"`
	LLM       LLMConfig       `mapstructure:"llm"`
	Graph     GraphConfig     `mapstructure:"graph"`
	Market    MarketConfig    `mapstructure:"market"`
	Alerting  AlertingConfig  `mapstructure:"alerting"`
	Export    ExportConfig    `mapstructure:"export"`
	Backtest  BacktestConfig  `mapstructure:"backtest"`
}

// AppConfig general metadata.
type AppConfig struct {
	Name        string `mapstructure:"name"`
	Environment string `mapstructure:"environment"`
}

// DatabaseConfig encapsulates PostgreSQL connectivity.
type DatabaseConfig struct {
	DSN             string        `mapstructure:"dsn"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
	AutoMigrate     bool          `mapstructure:"auto_migrate"`
}

// SchedulerConfig governs the feed cycle cadence.
type SchedulerConfig struct {
	Interval        time.Duration `mapstructure:"interval"`
	AlignToBucket   bool          `mapstructure:"align_to_bucket"`
	RunOnStart      bool          `mapstructure:"run_on_start"`
	AdvisoryLockKey int64         `mapstructure:"advisory_lock_key"`
	StartupDelay    time.Duration `mapstructure:"startup_delay"`
	FeedWorkers     int           `mapstructure:"feed_workers"`
}

// FeedConfig describes one RSS source and its credibility weight.
type FeedConfig struct {
	Name             string   `mapstructure:"name"`
	URL              string   `mapstructure:"url"`
	Weight           float64  `mapstructure:"weight"`
	Limit            int      `mapstructure:"limit"`
	ContentSelectors []string `mapstructure:"content_selectors"`
}

// FetchConfig tunes RSS and article page retrieval.
type FetchConfig struct {
	Timeout           time.Duration `mapstructure:"timeout"`
	UserAgent         string        `mapstructure:"user_agent"`
	RequestsPerSecond float64       `mapstructure:"requests_per_second"`
	ContentSelectors  []string      `mapstructure:"content_selectors"`
}

// RegistryConfig selects where ticker records are loaded from.
type RegistryConfig struct {
	Source  string `mapstructure:"source"`
	CSVPath string `mapstructure:"csv_path"`
}

// PipelineConfig tunes entity resolution and scoring.
type PipelineConfig struct {
	FuzzyThreshold      int                `mapstructure:"fuzzy_threshold"`
	Blocklist           []string           `mapstructure:"blocklist"`
	IgnoreWords         []string           `mapstructure:"ignore_words"`
	CompetitiveKeywords []string           `mapstructure:"competitive_keywords"`
	EventMultipliers    map[string]float64 `mapstructure:"event_multipliers"`
	OverrideConfidence  float64            `mapstructure:"override_confidence"`
	KeyFigures          bool               `mapstructure:"key_figures"`
}

// NERConfig points at an HTTP entity recognition service.
type NERConfig struct {
	URL     string        `mapstructure:"url"`
	Timeout time.Duration `mapstructure:"timeout"`
}

// LLMConfig covers the OpenAI-compatible classifier endpoint.
type LLMConfig struct {
	BaseURL    string        `mapstructure:"base_url"`
	APIKey     string        `mapstructure:"api_key"`
	Model      string        `mapstructure:"model"`
	Timeout    time.Duration `mapstructure:"timeout"`
	MaxChars   int           `mapstructure:"max_chars"`
	Confidence float64       `mapstructure:"confidence"`
}

// GraphConfig selects the sector graph backend.
type GraphConfig struct {
	Backend   string `mapstructure:"backend"`
	URI       string `mapstructure:"uri"`
	Username  string `mapstructure:"username"`
	Password  string `mapstructure:"password"`
	Database  string `mapstructure:"database"`
	BatchSize int    `mapstructure:"batch_size"`
}

// MarketConfig covers the Yahoo chart API used for momentum and technicals.
type MarketConfig struct {
	Enabled           bool          `mapstructure:"enabled"`
	BaseURL           string        `mapstructure:"base_url"`
	SymbolSuffix      string        `mapstructure:"symbol_suffix"`
	Range             string        `mapstructure:"range"`
	RequestTimeout    time.Duration `mapstructure:"request_timeout"`
	CacheTTL          time.Duration `mapstructure:"cache_ttl"`
	RequestsPerSecond float64       `mapstructure:"requests_per_second"`
	Burst             int           `mapstructure:"burst"`
	UserAgent         string        `mapstructure:"user_agent"`
}

// AlertingConfig defines alert routing for trading signals.
type AlertingConfig struct {
	Enabled         bool           `mapstructure:"enabled"`
	Recommendations []string       `mapstructure:"recommendations"`
	Cooldown        time.Duration  `mapstructure:"cooldown"`
	Channels        []string       `mapstructure:"channels"`
	Telegram        TelegramConfig `mapstructure:"telegram"`
}

// TelegramConfig 描述 Telegram 告警参数。
type TelegramConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	BotToken string `mapstructure:"bot_token"`
	ChatID   string `mapstructure:"chat_id"`
	APIBase  string `mapstructure:"api_base"`
}

// ExportConfig sets CLI export behaviour.
type ExportConfig struct {
	MaxRows int           `mapstructure:"max_rows"`
	Window  time.Duration `mapstructure:"window"`
}

// BacktestConfig controls the sentiment-vs-price evaluation.
type BacktestConfig struct {
	MinAge   time.Duration `mapstructure:"min_age"`
	Lookback time.Duration `mapstructure:"lookback"`
}

// Load builds configuration from file, environment, and defaults.
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetEnvPrefix("NEWSINSIGHT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
	}

	if err := readConfig(v); err != nil {
		return nil, err
	}

	var cfg Config
	if err := v.Unmarshal(&cfg, decodeHook()); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func readConfig(v *viper.Viper) error {
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			return nil
		}
		return fmt.Errorf("read config: %w", err)
	}
	return nil
}

// DefaultFeeds mirrors the sources the service was first deployed with.
func DefaultFeeds() []map[string]any {
	return []map[string]any{
		{"name": "Moneycontrol", "url": "https://www.moneycontrol.com/rss/business.xml", "weight": 1.0, "limit": 10},
		{"name": "ET Markets", "url": "https://economictimes.indiatimes.com/markets/rssfeeds/1977021501.cms", "weight": 1.0, "limit": 10},
		{"name": "Livemint", "url": "https://www.livemint.com/rss/markets", "weight": 0.9, "limit": 10},
	}
}

// DefaultBlocklist lists private companies and regulators that have no listed ticker.
var DefaultBlocklist = []string{
	"swiggy", "zerodha", "byju's", "razorpay", "cred", "phonepe", "ola", "oyo",
	"reserve bank of india", "rbi", "sebi", "ministry of finance", "flipkart",
}

// DefaultIgnoreWords are capitalised tokens that never name a company on their own.
var DefaultIgnoreWords = []string{
	"the", "a", "an", "and", "or", "of", "in", "on", "at", "for", "to", "by", "with", "from",
	"is", "are", "was", "were", "it", "its", "this", "that", "as", "but", "after", "before",
	"india", "indian", "nse", "bse", "sensex", "nifty", "market", "markets", "stock", "stocks",
	"shares", "share", "rs", "crore", "lakh", "q1", "q2", "q3", "q4", "fy", "ceo", "ipo",
	"monday", "tuesday", "wednesday", "thursday", "friday", "saturday", "sunday",
	"january", "february", "march", "april", "may", "june", "july", "august",
	"september", "october", "november", "december",
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("app.name", "newsinsight")
	v.SetDefault("app.environment", "development")

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")

	v.SetDefault("scheduler.interval", "15m")
	v.SetDefault("scheduler.align_to_bucket", false)
	v.SetDefault("scheduler.run_on_start", true)
	v.SetDefault("scheduler.advisory_lock_key", int64(0x6e657773))
	v.SetDefault("scheduler.startup_delay", "0s")
	v.SetDefault("scheduler.feed_workers", 3)

	v.SetDefault("feeds", DefaultFeeds())

	v.SetDefault("fetch.timeout", "15s")
	v.SetDefault("fetch.user_agent", "Mozilla/5.0 (compatible; newsinsight/1.0)")
	v.SetDefault("fetch.requests_per_second", 2.0)
	v.SetDefault("fetch.content_selectors", []string{"div.content_wrapper", "div.artText", "div.storyPage_storyContent", "div.Normal", "article"})

	v.SetDefault("registry.source", "csv")
	v.SetDefault("registry.csv_path", "data/EQUITY_L.csv")

	v.SetDefault("pipeline.fuzzy_threshold", 90)
	v.SetDefault("pipeline.blocklist", DefaultBlocklist)
	v.SetDefault("pipeline.ignore_words", DefaultIgnoreWords)
	v.SetDefault("pipeline.competitive_keywords", []string{"beats", "wins", "outperforms", "loses to", "rival"})
	v.SetDefault("pipeline.event_multipliers", map[string]float64{
		"Merger or Acquisition":     1.5,
		"Earnings Report":           1.4,
		"Legal or Regulatory Issue": 1.3,
	})
	v.SetDefault("pipeline.override_confidence", 0.98)
	v.SetDefault("pipeline.key_figures", true)

	v.SetDefault("ner.timeout", "10s")

	v.SetDefault("llm.base_url", "https://api.groq.com/openai/v1")
	v.SetDefault("llm.model", "llama-3.1-8b-instant")
	v.SetDefault("llm.timeout", "20s")
	v.SetDefault("llm.max_chars", 1500)
	v.SetDefault("llm.confidence", 0.9)

	v.SetDefault("graph.backend", "registry")
	v.SetDefault("graph.uri", "neo4j://localhost:7687")
	v.SetDefault("graph.username", "neo4j")
	v.SetDefault("graph.database", "neo4j")
	v.SetDefault("graph.batch_size", 500)

	v.SetDefault("market.enabled", true)
	v.SetDefault("market.base_url", "https://query1.finance.yahoo.com")
	v.SetDefault("market.symbol_suffix", ".NS")
	v.SetDefault("market.range", "6mo")
	v.SetDefault("market.request_timeout", "10s")
	v.SetDefault("market.cache_ttl", "5m")
	v.SetDefault("market.requests_per_second", 2.0)
	v.SetDefault("market.burst", 2)
	v.SetDefault("market.user_agent", "newsinsight/1.0")

	v.SetDefault("alerting.enabled", false)
	v.SetDefault("alerting.recommendations", []string{"Strong Buy", "Strong Sell"})
	v.SetDefault("alerting.cooldown", "6h")
	v.SetDefault("alerting.channels", []string{"telegram"})
	v.SetDefault("alerting.telegram.enabled", false)
	v.SetDefault("alerting.telegram.api_base", "https://api.telegram.org")

	v.SetDefault("export.max_rows", 100000)
	v.SetDefault("export.window", "168h")

	v.SetDefault("backtest.min_age", "24h")
	v.SetDefault("backtest.lookback", "720h")

	v.SetDefault("database.max_open_conns", 10)
	v.SetDefault("database.max_idle_conns", 2)
	v.SetDefault("database.conn_max_lifetime", "30m")
	v.SetDefault("database.auto_migrate", false)
}

func decodeHook() viper.DecoderConfigOption {
	return func(dc *mapstructure.DecoderConfig) {
		dc.TagName = "mapstructure"
		dc.DecodeHook = mapstructure.ComposeDecodeHookFunc(
			mapstructure.StringToTimeDurationHookFunc(),
			mapstructure.StringToSliceHookFunc(","),
		)
	}
}

// Validate performs basic sanity checks on the configuration values.
func (c *Config) Validate() error {
	if c.Export.MaxRows <= 0 {
		return fmt.Errorf("export.max_rows must be greater than zero")
	}
	if c.Scheduler.Interval <= 0 {
		return fmt.Errorf("scheduler.interval must be greater than zero")
	}
	if c.Pipeline.FuzzyThreshold < 0 || c.Pipeline.FuzzyThreshold > 100 {
		return fmt.Errorf("pipeline.fuzzy_threshold must be within [0,100]")
	}
	if c.Pipeline.OverrideConfidence < 0 || c.Pipeline.OverrideConfidence > 1 {
		return fmt.Errorf("pipeline.override_confidence must be within [0,1]")
	}
	for name, m := range c.Pipeline.EventMultipliers {
		if m <= 0 {
			return fmt.Errorf("pipeline.event_multipliers[%s] must be greater than zero", name)
		}
	}
	for i, feed := range c.Feeds {
		if strings.TrimSpace(feed.URL) == "" {
			return fmt.Errorf("feeds[%d].url is required", i)
		}
		if feed.Weight < 0 {
			return fmt.Errorf("feeds[%d].weight cannot be negative", i)
		}
	}
	switch strings.ToLower(c.Registry.Source) {
	case "csv", "database":
	default:
		return fmt.Errorf("registry.source must be csv or database, got %q", c.Registry.Source)
	}
	switch strings.ToLower(c.Graph.Backend) {
	case "neo4j", "postgres", "registry", "none":
	default:
		return fmt.Errorf("graph.backend must be neo4j, postgres, registry or none, got %q", c.Graph.Backend)
	}
	if c.Alerting.Telegram.Enabled {
		if c.Alerting.Telegram.BotToken == "" {
			return fmt.Errorf("alerting.telegram.bot_token 必须配置")
		}
		if c.Alerting.Telegram.ChatID == "" {
			return fmt.Errorf("alerting.telegram.chat_id 必须配置")
		}
	}
	return nil
}

// ResolveMaxRows returns either the CLI override or config default.
func (c *Config) ResolveMaxRows(override int) int {
	if override > 0 {
		return override
	}
	return c.Export.MaxRows
}

// FeedWeight returns the credibility weight of the named feed, defaulting to 1.
func (c *Config) FeedWeight(name string) float64 {
	for _, feed := range c.Feeds {
		if strings.EqualFold(feed.Name, name) {
			return feed.Weight
		}
	}
	return 1.0
}
