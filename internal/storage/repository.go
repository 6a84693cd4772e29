package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"newsinsight/internal/registry"
)

var (
	// ErrNotConfigured indicates the storage pool was not initialised.
	ErrNotConfigured = errors.New("storage: pool not configured")
)

const (
	insightColumns = `id,
        ts,
        article_title,
        link,
        company_name,
        ticker,
        sentiment,
        confidence,
        event_type,
        impact_score::text,
        key_figures,
        created_at`

	insertInsightSQL = `INSERT INTO insights (
        ts,
        article_title,
        link,
        company_name,
        ticker,
        sentiment,
        confidence,
        event_type,
        impact_score,
        key_figures
    ) VALUES (
        $1,$2,$3,$4,$5,$6,$7,$8,$9,$10
    )
    RETURNING id, created_at;`

	listRecentInsightsSQL = `SELECT ` + insightColumns + `
    FROM insights
    ORDER BY ts DESC, id DESC
    LIMIT $1;`

	listInsightsBetweenSQL = `SELECT ` + insightColumns + `
    FROM insights
    WHERE ts >= $1
      AND ts < $2
    ORDER BY ts, id;`

	listDirectionalInsightsSQL = `SELECT ` + insightColumns + `
    FROM insights
    WHERE ts >= $1
      AND ts < $2
      AND sentiment IN ('Positive', 'Negative')
    ORDER BY ts, id;`

	listTickerInsightsSQL = `SELECT ` + insightColumns + `
    FROM insights
    WHERE ticker = $1
    ORDER BY ts DESC, id DESC
    LIMIT $2;`

	countInsightsSQL = `SELECT COUNT(*) FROM insights;`

	insertSignalSQL = `INSERT INTO trading_signals (
        insight_id,
        ticker,
        overall,
        strength,
        confidence,
        recommendation,
        sub_signals,
        change_pct,
        volume
    ) VALUES (
        $1,$2,$3,$4,$5,$6,$7,$8,$9
    )
    RETURNING id, created_at;`

	claimArticleSQL = `INSERT INTO processed_articles (link, feed, title)
    VALUES ($1,$2,$3)
    ON CONFLICT (link) DO NOTHING;`

	setArticleStatusSQL = `UPDATE processed_articles
    SET status = $2, processed_at = now()
    WHERE link = $1;`

	releaseArticleSQL = `DELETE FROM processed_articles WHERE link = $1;`

	listStocksSQL = `SELECT name, ticker, sector FROM stocks ORDER BY name;`

	upsertStockSQL = `INSERT INTO stocks (ticker, name, sector)
    VALUES ($1,$2,$3)
    ON CONFLICT (ticker) DO UPDATE
    SET name       = EXCLUDED.name,
        sector     = EXCLUDED.sector,
        updated_at = now();`

	sectorCompetitorsSQL = `SELECT peer.ticker
    FROM stocks AS self
    JOIN stocks AS peer
      ON peer.sector = self.sector
     AND peer.ticker <> self.ticker
    WHERE self.ticker = $1
      AND self.sector <> ''
    ORDER BY peer.ticker;`

	insertAlertSQL = `INSERT INTO alerts (
        ticker,
        recommendation,
        overall,
        link,
        channels
    ) VALUES (
        $1,$2,$3,$4,$5
    )
    RETURNING id, created_at;`

	lastAlertSQL = `SELECT
        id,
        ticker,
        recommendation,
        overall::text,
        link,
        channels,
        created_at
    FROM alerts
    WHERE ticker = $1
    ORDER BY created_at DESC
    LIMIT 1;`

	tryAdvisoryLockSQL = `SELECT pg_try_advisory_lock($1);`
	advisoryUnlockSQL  = `SELECT pg_advisory_unlock($1);`
)

// InsightStore persists and reads insights. Writes are append-only.
type InsightStore interface {
	InsertInsight(ctx context.Context, rec InsightRecord) (InsightRecord, error)
	ListRecentInsights(ctx context.Context, limit int) ([]InsightRecord, error)
	ListInsightsBetween(ctx context.Context, from, to time.Time) ([]InsightRecord, error)
	ListDirectionalInsights(ctx context.Context, from, to time.Time) ([]InsightRecord, error)
	ListTickerInsights(ctx context.Context, ticker string, limit int) ([]InsightRecord, error)
	CountInsights(ctx context.Context) (int64, error)
}

// SignalStore persists fused trading signals.
type SignalStore interface {
	InsertSignal(ctx context.Context, rec SignalRecord) (SignalRecord, error)
}

// ArticleLedger remembers which links were already scored.
type ArticleLedger interface {
	// ClaimArticle returns true the first time a link is seen.
	ClaimArticle(ctx context.Context, link, feed, title string) (bool, error)
	SetArticleStatus(ctx context.Context, link, status string) error
	ReleaseArticle(ctx context.Context, link string) error
}

// StockStore reads and writes the ticker registry table.
type StockStore interface {
	ListStocks(ctx context.Context) ([]StockRecord, error)
	UpsertStocks(ctx context.Context, stocks []StockRecord) (int, error)
}

// AlertStore defines operations for alert auditing.
type AlertStore interface {
	InsertAlert(ctx context.Context, alert AlertRecord) (AlertRecord, error)
	LastAlert(ctx context.Context, ticker string) (AlertRecord, bool, error)
}

// AdvisoryLocker exposes advisory lock helpers.
type AdvisoryLocker interface {
	TryAdvisoryLock(ctx context.Context, key int64) (unlock func(), acquired bool, err error)
}

// Store aggregates access to every table.
type Store struct {
	pool *pgxpool.Pool
}

// NewStore wires a pgx pool into a Store.
func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

// Close releases the underlying pool resources.
func (s *Store) Close() {
	if s == nil || s.pool == nil {
		return
	}
	s.pool.Close()
}

// TryAdvisoryLock attempts to acquire a postgres advisory lock and returns a release func.
func (s *Store) TryAdvisoryLock(ctx context.Context, key int64) (func(), bool, error) {
	pool, err := s.getPool()
	if err != nil {
		return nil, false, err
	}

	conn, err := pool.Acquire(ctx)
	if err != nil {
		return nil, false, fmt.Errorf("acquire connection: %w", err)
	}

	var acquired bool
	if err := conn.QueryRow(ctx, tryAdvisoryLockSQL, key).Scan(&acquired); err != nil {
		conn.Release()
		return nil, false, fmt.Errorf("try advisory lock: %w", err)
	}
	if !acquired {
		conn.Release()
		return nil, false, nil
	}

	unlock := func() {
		ctxUnlock, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		// 解锁失败时连接会被释放，锁随会话结束
		_, _ = conn.Exec(ctxUnlock, advisoryUnlockSQL, key)
		conn.Release()
	}
	return unlock, true, nil
}

func (s *Store) getPool() (*pgxpool.Pool, error) {
	if s == nil || s.pool == nil {
		return nil, ErrNotConfigured
	}
	return s.pool, nil
}

// InsertInsight appends an insight row.
func (s *Store) InsertInsight(ctx context.Context, rec InsightRecord) (InsightRecord, error) {
	pool, err := s.getPool()
	if err != nil {
		return InsightRecord{}, err
	}

	var figures interface{}
	if len(rec.KeyFigures) > 0 {
		figures = []byte(rec.KeyFigures)
	}

	if scanErr := pool.QueryRow(ctx, insertInsightSQL,
		rec.Timestamp,
		rec.ArticleTitle,
		rec.Link,
		rec.CompanyName,
		rec.Ticker,
		rec.Sentiment,
		rec.Confidence,
		rec.EventType,
		rec.ImpactScore.String(),
		figures,
	).Scan(&rec.ID, &rec.CreatedAt); scanErr != nil {
		return InsightRecord{}, fmt.Errorf("insert insight: %w", scanErr)
	}
	return rec, nil
}

// ListRecentInsights lists the newest insights first.
func (s *Store) ListRecentInsights(ctx context.Context, limit int) ([]InsightRecord, error) {
	return s.queryInsights(ctx, "list recent insights", listRecentInsightsSQL, limit)
}

// ListInsightsBetween lists insights within [from, to) in time order.
func (s *Store) ListInsightsBetween(ctx context.Context, from, to time.Time) ([]InsightRecord, error) {
	return s.queryInsights(ctx, "list insights between", listInsightsBetweenSQL, from, to)
}

// ListDirectionalInsights lists Positive/Negative insights within [from, to).
func (s *Store) ListDirectionalInsights(ctx context.Context, from, to time.Time) ([]InsightRecord, error) {
	return s.queryInsights(ctx, "list directional insights", listDirectionalInsightsSQL, from, to)
}

// ListTickerInsights returns the sentiment history of one ticker, newest first.
func (s *Store) ListTickerInsights(ctx context.Context, ticker string, limit int) ([]InsightRecord, error) {
	return s.queryInsights(ctx, "list ticker insights", listTickerInsightsSQL, ticker, limit)
}

// CountInsights counts stored insights.
func (s *Store) CountInsights(ctx context.Context) (int64, error) {
	pool, err := s.getPool()
	if err != nil {
		return 0, err
	}
	var count int64
	if scanErr := pool.QueryRow(ctx, countInsightsSQL).Scan(&count); scanErr != nil {
		return 0, fmt.Errorf("count insights: %w", scanErr)
	}
	return count, nil
}

func (s *Store) queryInsights(ctx context.Context, op, query string, args ...interface{}) ([]InsightRecord, error) {
	pool, err := s.getPool()
	if err != nil {
		return nil, err
	}

	rows, queryErr := pool.Query(ctx, query, args...)
	if queryErr != nil {
		return nil, fmt.Errorf("%s: %w", op, queryErr)
	}
	defer rows.Close()

	out := make([]InsightRecord, 0)
	for rows.Next() {
		rec, scanErr := scanInsight(rows)
		if scanErr != nil {
			return nil, fmt.Errorf("%s: %w", op, scanErr)
		}
		out = append(out, rec)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return out, nil
}

// InsertSignal persists a trading signal.
func (s *Store) InsertSignal(ctx context.Context, rec SignalRecord) (SignalRecord, error) {
	pool, err := s.getPool()
	if err != nil {
		return SignalRecord{}, err
	}

	subSignals := rec.SubSignals
	if len(subSignals) == 0 {
		subSignals = json.RawMessage("{}")
	}

	if scanErr := pool.QueryRow(ctx, insertSignalSQL,
		rec.InsightID,
		rec.Ticker,
		rec.Overall.String(),
		rec.Strength.String(),
		rec.Confidence.String(),
		rec.Recommendation,
		[]byte(subSignals),
		rec.ChangePct,
		rec.Volume,
	).Scan(&rec.ID, &rec.CreatedAt); scanErr != nil {
		return SignalRecord{}, fmt.Errorf("insert signal: %w", scanErr)
	}
	return rec, nil
}

// ClaimArticle records a link; it reports false when the link was seen before.
func (s *Store) ClaimArticle(ctx context.Context, link, feed, title string) (bool, error) {
	pool, err := s.getPool()
	if err != nil {
		return false, err
	}
	tag, execErr := pool.Exec(ctx, claimArticleSQL, link, feed, title)
	if execErr != nil {
		return false, fmt.Errorf("claim article: %w", execErr)
	}
	return tag.RowsAffected() == 1, nil
}

// SetArticleStatus stores the terminal pipeline status of a link.
func (s *Store) SetArticleStatus(ctx context.Context, link, status string) error {
	pool, err := s.getPool()
	if err != nil {
		return err
	}
	tag, execErr := pool.Exec(ctx, setArticleStatusSQL, link, status)
	if execErr != nil {
		return fmt.Errorf("set article status: %w", execErr)
	}
	if tag.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

// ReleaseArticle forgets a link so the next cycle retries it.
func (s *Store) ReleaseArticle(ctx context.Context, link string) error {
	pool, err := s.getPool()
	if err != nil {
		return err
	}
	if _, execErr := pool.Exec(ctx, releaseArticleSQL, link); execErr != nil {
		return fmt.Errorf("release article: %w", execErr)
	}
	return nil
}

// ListStocks loads the registry table ordered by name.
func (s *Store) ListStocks(ctx context.Context) ([]StockRecord, error) {
	pool, err := s.getPool()
	if err != nil {
		return nil, err
	}

	rows, queryErr := pool.Query(ctx, listStocksSQL)
	if queryErr != nil {
		return nil, fmt.Errorf("list stocks: %w", queryErr)
	}
	defer rows.Close()

	out := make([]StockRecord, 0)
	for rows.Next() {
		var rec StockRecord
		if err := rows.Scan(&rec.Name, &rec.Ticker, &rec.Sector); err != nil {
			return nil, fmt.Errorf("scan stock: %w", err)
		}
		out = append(out, rec)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return out, nil
}

// UpsertStocks writes all rows in one transaction and returns the count written.
func (s *Store) UpsertStocks(ctx context.Context, stocks []StockRecord) (int, error) {
	pool, err := s.getPool()
	if err != nil {
		return 0, err
	}
	if len(stocks) == 0 {
		return 0, nil
	}

	tx, err := pool.Begin(ctx)
	if err != nil {
		return 0, fmt.Errorf("begin upsert stocks: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	batch := &pgx.Batch{}
	for _, st := range stocks {
		batch.Queue(upsertStockSQL, st.Ticker, st.Name, st.Sector)
	}
	results := tx.SendBatch(ctx, batch)
	for i := range stocks {
		if _, execErr := results.Exec(); execErr != nil {
			_ = results.Close()
			return 0, fmt.Errorf("upsert stock %s: %w", stocks[i].Ticker, execErr)
		}
	}
	if err := results.Close(); err != nil {
		return 0, fmt.Errorf("close stock batch: %w", err)
	}
	if err := tx.Commit(ctx); err != nil {
		return 0, fmt.Errorf("commit upsert stocks: %w", err)
	}
	return len(stocks), nil
}

// Competitors returns same-sector peers from the stocks table.
func (s *Store) Competitors(ctx context.Context, ticker string) ([]string, error) {
	pool, err := s.getPool()
	if err != nil {
		return nil, err
	}

	rows, queryErr := pool.Query(ctx, sectorCompetitorsSQL, ticker)
	if queryErr != nil {
		return nil, fmt.Errorf("sector competitors: %w", queryErr)
	}
	defer rows.Close()

	peers := make([]string, 0)
	for rows.Next() {
		var peer string
		if err := rows.Scan(&peer); err != nil {
			return nil, err
		}
		peers = append(peers, peer)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return peers, nil
}

// InsertAlert persists an alert emission.
func (s *Store) InsertAlert(ctx context.Context, alert AlertRecord) (AlertRecord, error) {
	pool, err := s.getPool()
	if err != nil {
		return AlertRecord{}, err
	}

	channels := alert.Channels
	if channels == nil {
		channels = []string{}
	}

	if scanErr := pool.QueryRow(ctx, insertAlertSQL,
		alert.Ticker,
		alert.Recommendation,
		alert.Overall.String(),
		alert.Link,
		channels,
	).Scan(&alert.ID, &alert.CreatedAt); scanErr != nil {
		return AlertRecord{}, fmt.Errorf("insert alert: %w", scanErr)
	}
	return alert, nil
}

// LastAlert returns the newest alert for ticker; ok is false when none exists.
func (s *Store) LastAlert(ctx context.Context, ticker string) (AlertRecord, bool, error) {
	pool, err := s.getPool()
	if err != nil {
		return AlertRecord{}, false, err
	}

	var rec AlertRecord
	var overallStr string
	scanErr := pool.QueryRow(ctx, lastAlertSQL, ticker).Scan(
		&rec.ID,
		&rec.Ticker,
		&rec.Recommendation,
		&overallStr,
		&rec.Link,
		&rec.Channels,
		&rec.CreatedAt,
	)
	if errors.Is(scanErr, pgx.ErrNoRows) {
		return AlertRecord{}, false, nil
	}
	if scanErr != nil {
		return AlertRecord{}, false, fmt.Errorf("last alert: %w", scanErr)
	}

	rec.Overall, err = decimal.NewFromString(overallStr)
	if err != nil {
		return AlertRecord{}, false, fmt.Errorf("parse alert overall: %w", err)
	}
	return rec, true, nil
}

func scanInsight(rows pgx.Rows) (InsightRecord, error) {
	var (
		rec       InsightRecord
		impactStr string
		figures   []byte
	)
	if err := rows.Scan(
		&rec.ID,
		&rec.Timestamp,
		&rec.ArticleTitle,
		&rec.Link,
		&rec.CompanyName,
		&rec.Ticker,
		&rec.Sentiment,
		&rec.Confidence,
		&rec.EventType,
		&impactStr,
		&figures,
		&rec.CreatedAt,
	); err != nil {
		return InsightRecord{}, err
	}

	impact, err := decimal.NewFromString(impactStr)
	if err != nil {
		return InsightRecord{}, fmt.Errorf("parse impact score: %w", err)
	}
	rec.ImpactScore = impact
	if len(figures) > 0 {
		rec.KeyFigures = json.RawMessage(figures)
	}
	return rec, nil
}

// RegistrySource adapts the stocks table to registry.Source.
type RegistrySource struct {
	Stocks StockStore
}

// Records implements registry.Source.
func (r RegistrySource) Records(ctx context.Context) ([]registry.TickerRecord, error) {
	if r.Stocks == nil {
		return nil, ErrNotConfigured
	}
	stocks, err := r.Stocks.ListStocks(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]registry.TickerRecord, 0, len(stocks))
	for _, st := range stocks {
		out = append(out, registry.TickerRecord{OfficialName: st.Name, Ticker: st.Ticker, Sector: st.Sector})
	}
	return out, nil
}
