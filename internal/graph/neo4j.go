package graph

import (
	"context"
	"fmt"
	"strings"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
	"github.com/rs/zerolog"

	"newsinsight/internal/registry"
)

const (
	competitorsCypher = `MATCH (:Company {ticker: $ticker})-[:IN_SECTOR]->()<-[:IN_SECTOR]-(c:Company)
RETURN DISTINCT c.ticker AS competitor
ORDER BY competitor`

	ingestCypher = `UNWIND $rows AS row
MERGE (s:Sector {name: row.sector})
MERGE (c:Company {ticker: row.ticker})
SET c.name = row.name
MERGE (c)-[:IN_SECTOR]->(s)`

	defaultBatchSize = 500
)

// Neo4jOptions configure the driver.
type Neo4jOptions struct {
	URI       string
	Username  string
	Password  string
	Database  string
	BatchSize int
}

// Neo4j queries a Company-[:IN_SECTOR]->Sector graph.
type Neo4j struct {
	driver    neo4j.DriverWithContext
	database  string
	batchSize int
	logger    zerolog.Logger
}

// NewNeo4j opens a driver and verifies connectivity.
func NewNeo4j(ctx context.Context, opts Neo4jOptions, logger zerolog.Logger) (*Neo4j, error) {
	if strings.TrimSpace(opts.URI) == "" {
		return nil, fmt.Errorf("graph.uri is required")
	}
	driver, err := neo4j.NewDriverWithContext(opts.URI, neo4j.BasicAuth(opts.Username, opts.Password, ""))
	if err != nil {
		return nil, fmt.Errorf("create neo4j driver: %w", err)
	}
	if err := driver.VerifyConnectivity(ctx); err != nil {
		_ = driver.Close(ctx)
		return nil, fmt.Errorf("verify neo4j connectivity: %w", err)
	}

	batch := opts.BatchSize
	if batch <= 0 {
		batch = defaultBatchSize
	}
	return &Neo4j{
		driver:    driver,
		database:  opts.Database,
		batchSize: batch,
		logger:    logger.With().Str("component", "neo4j").Logger(),
	}, nil
}

// Close shuts the driver down.
func (g *Neo4j) Close(ctx context.Context) error {
	if g == nil || g.driver == nil {
		return nil
	}
	return g.driver.Close(ctx)
}

// Competitors returns companies sharing a sector node with ticker.
func (g *Neo4j) Competitors(ctx context.Context, ticker string) ([]string, error) {
	res, err := neo4j.ExecuteQuery(ctx, g.driver, competitorsCypher,
		map[string]any{"ticker": ticker},
		neo4j.EagerResultTransformer,
		neo4j.ExecuteQueryWithDatabase(g.database),
		neo4j.ExecuteQueryWithReadersRouting(),
	)
	if err != nil {
		return nil, fmt.Errorf("query competitors of %s: %w", ticker, err)
	}

	peers := make([]string, 0, len(res.Records))
	for _, rec := range res.Records {
		value, ok := rec.Get("competitor")
		if !ok {
			continue
		}
		if peer, ok := value.(string); ok && peer != "" && peer != ticker {
			peers = append(peers, peer)
		}
	}
	return peers, nil
}

// Ingest merges companies and their sectors in batches. Records without a
// sector are skipped. It returns the number of companies written.
func (g *Neo4j) Ingest(ctx context.Context, records []registry.TickerRecord) (int, error) {
	written := 0
	for _, batch := range Batches(records, g.batchSize) {
		rows := make([]map[string]any, 0, len(batch))
		for _, rec := range batch {
			rows = append(rows, map[string]any{
				"ticker": rec.Ticker,
				"name":   rec.OfficialName,
				"sector": rec.Sector,
			})
		}
		if _, err := neo4j.ExecuteQuery(ctx, g.driver, ingestCypher,
			map[string]any{"rows": rows},
			neo4j.EagerResultTransformer,
			neo4j.ExecuteQueryWithDatabase(g.database),
		); err != nil {
			return written, fmt.Errorf("ingest batch at %d: %w", written, err)
		}
		written += len(rows)
		g.logger.Info().Int("written", written).Msg("sector graph batch merged")
	}
	return written, nil
}

// Batches splits the records that carry a sector into chunks of at most size.
func Batches(records []registry.TickerRecord, size int) [][]registry.TickerRecord {
	if size <= 0 {
		size = defaultBatchSize
	}
	var (
		out     [][]registry.TickerRecord
		current []registry.TickerRecord
	)
	for _, rec := range records {
		if strings.TrimSpace(rec.Sector) == "" {
			continue
		}
		current = append(current, rec)
		if len(current) == size {
			out = append(out, current)
			current = nil
		}
	}
	if len(current) > 0 {
		out = append(out, current)
	}
	return out
}
