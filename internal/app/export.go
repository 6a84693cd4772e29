package app

import (
	"context"
	"encoding/csv"
	"errors"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"time"

	chart "github.com/wcharczuk/go-chart/v2"

	"newsinsight/internal/sentiment"
	"newsinsight/internal/storage"
)

// Export renders stored insights as CSV and/or PNG.
func (a *App) Export(ctx context.Context, opts ExportOptions) error {
	if opts.CSVPath == "" && opts.PNGPath == "" {
		return errors.New("at least one of --csv or --png must be provided")
	}

	opts.MaxRows = a.Config.ResolveMaxRows(opts.MaxRows)

	store, closeStore, err := a.openStore(ctx)
	if err != nil {
		return err
	}
	if store == nil {
		return errors.New("database not configured; cannot export")
	}
	if closeStore != nil {
		defer closeStore()
	}

	to := time.Now().UTC()
	if opts.To != nil {
		to = opts.To.UTC()
	}

	window := a.Config.Export.Window
	if window <= 0 {
		window = 7 * 24 * time.Hour
	}
	from := to.Add(-window)
	if opts.From != nil {
		from = opts.From.UTC()
	}

	if !from.Before(to) {
		return errors.New("from must be before to")
	}

	insights, err := store.ListInsightsBetween(ctx, from, to)
	if err != nil {
		return err
	}
	if len(insights) == 0 {
		a.Logger.Info().Msg("no insights found for export window")
		return nil
	}

	downsampled := downsampleInsights(insights, opts.MaxRows)
	a.Logger.Info().Int("total", len(insights)).Int("exported", len(downsampled)).Msg("exporting insights")

	if opts.CSVPath != "" {
		if err := writeInsightsCSV(opts.CSVPath, downsampled); err != nil {
			return err
		}
	}

	if opts.PNGPath != "" {
		if len(downsampled) < 2 {
			a.Logger.Warn().Msg("need at least two insights to draw a chart; skipping png")
			return nil
		}
		if err := writeInsightsPNG(opts.PNGPath, downsampled); err != nil {
			return err
		}
	}

	return nil
}

func downsampleInsights(insights []storage.InsightRecord, max int) []storage.InsightRecord {
	if max <= 0 || len(insights) <= max {
		return insights
	}
	if max == 1 {
		return insights[len(insights)-1:]
	}

	result := make([]storage.InsightRecord, 0, max)
	step := float64(len(insights)-1) / float64(max-1)
	for i := 0; i < max; i++ {
		idx := int(math.Round(step * float64(i)))
		if idx >= len(insights) {
			idx = len(insights) - 1
		}
		result = append(result, insights[idx])
	}
	return result
}

func writeInsightsCSV(path string, insights []storage.InsightRecord) error {
	if err := ensureDir(path); err != nil {
		return err
	}

	file, err := os.Create(path)
	if err != nil {
		return err
	}
	defer file.Close()

	writer := csv.NewWriter(file)
	defer writer.Flush()

	header := []string{"timestamp", "article_title", "link", "company_name", "ticker", "sentiment", "confidence", "event_type", "impact_score", "key_figures"}
	if err := writer.Write(header); err != nil {
		return err
	}

	for _, ins := range insights {
		record := []string{
			ins.Timestamp.UTC().Format(time.RFC3339),
			ins.ArticleTitle,
			ins.Link,
			ins.CompanyName,
			ins.Ticker,
			ins.Sentiment,
			strconv.FormatFloat(ins.Confidence, 'f', -1, 64),
			ins.EventType,
			ins.ImpactScore.String(),
			string(ins.KeyFigures),
		}
		if err := writer.Write(record); err != nil {
			return err
		}
	}

	writer.Flush()
	return writer.Error()
}

// signedSentiment maps an insight onto [-1,1] for plotting.
func signedSentiment(ins storage.InsightRecord) float64 {
	v := sentiment.Verdict{Label: sentiment.ParseLabel(ins.Sentiment), Confidence: ins.Confidence}
	return v.Clamp().Signed()
}

func writeInsightsPNG(path string, insights []storage.InsightRecord) error {
	if err := ensureDir(path); err != nil {
		return err
	}

	x := make([]time.Time, len(insights))
	impact := make([]float64, len(insights))
	signed := make([]float64, len(insights))

	for i, ins := range insights {
		x[i] = ins.Timestamp
		impact[i] = ins.ImpactScore.InexactFloat64()
		signed[i] = signedSentiment(ins)
	}

	valueFormatter := func(v interface{}) string {
		return chart.FloatValueFormatterWithFormat(v, "%.2f")
	}
	graph := chart.Chart{
		Width:  1280,
		Height: 720,
		XAxis: chart.XAxis{
			ValueFormatter: chart.TimeValueFormatter,
		},
		YAxis: chart.YAxis{
			Name:           "Impact score",
			ValueFormatter: valueFormatter,
		},
		YAxisSecondary: chart.YAxis{
			Name:           "Signed sentiment",
			ValueFormatter: valueFormatter,
			Range:          &chart.ContinuousRange{Min: -1, Max: 1},
		},
		Series: []chart.Series{
			chart.TimeSeries{
				Name:    "Impact",
				XValues: x,
				YValues: impact,
			},
			chart.TimeSeries{
				Name:    "Sentiment",
				XValues: x,
				YValues: signed,
				YAxis:   chart.YAxisSecondary,
			},
		},
	}
	graph.Elements = []chart.Renderable{chart.Legend(&graph)}

	file, err := os.Create(path)
	if err != nil {
		return err
	}
	defer file.Close()

	return graph.Render(chart.PNG, file)
}

func ensureDir(path string) error {
	dir := filepath.Dir(path)
	if dir == "." || dir == "" {
		return nil
	}
	return os.MkdirAll(dir, 0o755)
}
