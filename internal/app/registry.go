package app

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"newsinsight/internal/graph"
	"newsinsight/internal/registry"
	"newsinsight/internal/storage"
)

// loadCSVRecords reads and validates an exchange listing. Validation runs the
// same uniqueness checks the pipeline applies at startup.
func (a *App) loadCSVRecords(path string) ([]registry.TickerRecord, error) {
	if strings.TrimSpace(path) == "" {
		path = a.Config.Registry.CSVPath
	}
	records, err := registry.LoadCSVFile(path)
	if err != nil {
		return nil, err
	}
	if _, err := registry.New(records, a.Config.Pipeline.Blocklist); err != nil {
		return nil, err
	}
	return records, nil
}

// ImportRegistry upserts a CSV listing into the stocks table.
func (a *App) ImportRegistry(ctx context.Context, path string) error {
	records, err := a.loadCSVRecords(path)
	if err != nil {
		return err
	}

	store, closeStore, err := a.openStore(ctx)
	if err != nil {
		return err
	}
	if store == nil {
		return errors.New("database not configured; cannot import registry")
	}
	if closeStore != nil {
		defer closeStore()
	}

	stocks := make([]storage.StockRecord, 0, len(records))
	for _, rec := range records {
		stocks = append(stocks, storage.StockRecord{Name: rec.OfficialName, Ticker: rec.Ticker, Sector: rec.Sector})
	}
	n, err := store.UpsertStocks(ctx, stocks)
	if err != nil {
		return err
	}
	a.Logger.Info().Int("stocks", n).Msg("registry imported")
	fmt.Fprintf(os.Stdout, "imported %d stocks\n", n)
	return nil
}

// IngestGraph merges a CSV listing into the Neo4j sector graph.
func (a *App) IngestGraph(ctx context.Context, path string) error {
	records, err := a.loadCSVRecords(path)
	if err != nil {
		return err
	}

	cfg := a.Config.Graph
	g, err := graph.NewNeo4j(ctx, graph.Neo4jOptions{
		URI:       cfg.URI,
		Username:  cfg.Username,
		Password:  cfg.Password,
		Database:  cfg.Database,
		BatchSize: cfg.BatchSize,
	}, a.Logger)
	if err != nil {
		return err
	}
	defer func() { _ = g.Close(context.Background()) }()

	n, err := g.Ingest(ctx, records)
	if err != nil {
		return err
	}
	fmt.Fprintf(os.Stdout, "merged %d companies (%d without sector skipped)\n", n, len(records)-n)
	return nil
}

// Migrate applies the embedded schema migrations.
func (a *App) Migrate(ctx context.Context) error {
	if a.Config.Database.DSN == "" {
		return errors.New("database.dsn not configured")
	}
	pool, err := storage.NewPool(ctx, a.Config.Database)
	if err != nil {
		return err
	}
	defer pool.Close()

	res, err := storage.Migrate(pool, a.Logger)
	if err != nil {
		return err
	}
	fmt.Fprintf(os.Stdout, "schema version %d (dirty=%t, changed=%t)\n", res.Version, res.Dirty, res.Changed)
	return nil
}
