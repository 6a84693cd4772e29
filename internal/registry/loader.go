package registry

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
)

// Source yields ticker records from some backing store.
type Source interface {
	Records(ctx context.Context) ([]TickerRecord, error)
}

// CSVSource reads an exchange listing from disk on every call.
type CSVSource struct {
	Path string
}

// Records implements Source.
func (c CSVSource) Records(context.Context) ([]TickerRecord, error) {
	return LoadCSVFile(c.Path)
}

// Load fetches records from src and builds a snapshot.
func Load(ctx context.Context, src Source, blocklist []string) (*Registry, error) {
	records, err := src.Records(ctx)
	if err != nil {
		return nil, fmt.Errorf("load registry records: %w", err)
	}
	return New(records, blocklist)
}

var (
	tickerColumns = []string{"symbol", "ticker"}
	nameColumns   = []string{"name of company", "official_name", "company_name", "name"}
	sectorColumns = []string{"sector", "industry"}
)

// ReadCSV parses an exchange listing. The header must carry a ticker column and
// a name column; a sector column is optional.
func ReadCSV(r io.Reader) ([]TickerRecord, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, nil
		}
		return nil, fmt.Errorf("read csv header: %w", err)
	}

	tickerIdx := findColumn(header, tickerColumns)
	nameIdx := findColumn(header, nameColumns)
	sectorIdx := findColumn(header, sectorColumns)
	if tickerIdx < 0 || nameIdx < 0 {
		return nil, fmt.Errorf("csv header missing ticker or name column: %v", header)
	}

	records := make([]TickerRecord, 0, 2048)
	for {
		row, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read csv row: %w", err)
		}
		rec := TickerRecord{
			Ticker:       field(row, tickerIdx),
			OfficialName: field(row, nameIdx),
			Sector:       field(row, sectorIdx),
		}
		if rec.Ticker == "" || rec.OfficialName == "" {
			continue
		}
		records = append(records, rec)
	}
	return records, nil
}

// LoadCSVFile opens path and parses it with ReadCSV.
func LoadCSVFile(path string) ([]TickerRecord, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open registry csv: %w", err)
	}
	defer file.Close()
	return ReadCSV(file)
}

func findColumn(header []string, names []string) int {
	for _, want := range names {
		for i, col := range header {
			if strings.EqualFold(strings.TrimSpace(col), want) {
				return i
			}
		}
	}
	return -1
}

func field(row []string, idx int) string {
	if idx < 0 || idx >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[idx])
}
