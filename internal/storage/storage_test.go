package storage

import (
	"context"
	"errors"
	"io/fs"
	"strings"
	"testing"

	"github.com/rs/zerolog"
)

func TestStoreWithoutPool(t *testing.T) {
	var s *Store
	ctx := context.Background()

	if _, err := s.InsertInsight(ctx, InsightRecord{}); !errors.Is(err, ErrNotConfigured) {
		t.Fatalf("期望 ErrNotConfigured，得到 %v", err)
	}
	if _, err := s.Competitors(ctx, "INFY"); !errors.Is(err, ErrNotConfigured) {
		t.Fatalf("期望 ErrNotConfigured，得到 %v", err)
	}
	if _, _, err := s.LastAlert(ctx, "INFY"); !errors.Is(err, ErrNotConfigured) {
		t.Fatalf("期望 ErrNotConfigured，得到 %v", err)
	}
	if _, err := Migrate(nil, zerolog.Nop()); !errors.Is(err, ErrNotConfigured) {
		t.Fatalf("期望 ErrNotConfigured，得到 %v", err)
	}
	s.Close()
}

func TestEmbeddedMigrationsArePaired(t *testing.T) {
	entries, err := fs.ReadDir(migrationFS, "migrations")
	if err != nil {
		t.Fatalf("读取迁移目录失败: %v", err)
	}
	ups, downs := 0, 0
	for _, e := range entries {
		switch {
		case strings.HasSuffix(e.Name(), ".up.sql"):
			ups++
		case strings.HasSuffix(e.Name(), ".down.sql"):
			downs++
		}
	}
	if ups == 0 || ups != downs {
		t.Fatalf("迁移文件不成对: up=%d down=%d", ups, downs)
	}
}

type stubStocks struct {
	stocks []StockRecord
}

func (s stubStocks) ListStocks(context.Context) ([]StockRecord, error) { return s.stocks, nil }

func (s stubStocks) UpsertStocks(context.Context, []StockRecord) (int, error) { return 0, nil }

func TestRegistrySourceMapsRows(t *testing.T) {
	src := RegistrySource{Stocks: stubStocks{stocks: []StockRecord{{Name: "Infosys Limited", Ticker: "INFY", Sector: "IT"}}}}
	records, err := src.Records(context.Background())
	if err != nil {
		t.Fatalf("读取失败: %v", err)
	}
	if len(records) != 1 || records[0].OfficialName != "Infosys Limited" || records[0].Sector != "IT" {
		t.Fatalf("映射结果不正确: %+v", records)
	}

	if _, err := (RegistrySource{}).Records(context.Background()); !errors.Is(err, ErrNotConfigured) {
		t.Fatalf("期望 ErrNotConfigured，得到 %v", err)
	}
}
