package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"newsinsight/internal/storage"
)

// Show prints recent insights, optionally for one ticker.
func (a *App) Show(ctx context.Context, opts ShowOptions) error {
	store, closeStore, err := a.openStore(ctx)
	if err != nil {
		return err
	}
	if store == nil {
		return errors.New("database not configured; cannot show insights")
	}
	if closeStore != nil {
		defer closeStore()
	}

	ticker := strings.ToUpper(strings.TrimSpace(opts.Ticker))
	var insights []storage.InsightRecord
	if ticker != "" {
		insights, err = store.ListTickerInsights(ctx, ticker, opts.Limit)
	} else {
		insights, err = store.ListRecentInsights(ctx, opts.Limit)
	}
	if err != nil {
		return err
	}
	if err := writeInsightTable(os.Stdout, insights); err != nil {
		return err
	}
	if ticker != "" || len(insights) == 0 {
		return nil
	}

	total, err := store.CountInsights(ctx)
	if err != nil {
		a.Logger.Warn().Err(err).Msg("failed to count stored insights")
		return nil
	}
	writeShowSummary(os.Stdout, len(insights), total)
	return nil
}

func writeShowSummary(out io.Writer, shown int, total int64) {
	fmt.Fprintf(out, "\nshowing %d of %d stored insights\n", shown, total)
}

func writeInsightTable(out io.Writer, insights []storage.InsightRecord) error {
	if len(insights) == 0 {
		fmt.Fprintln(out, "no insights found")
		return nil
	}

	writer := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(writer, "Time (UTC)\tTicker\tSentiment\tConf\tEvent\tImpact\tTitle")

	for _, ins := range insights {
		fmt.Fprintf(
			writer,
			"%s\t%s\t%s\t%.2f\t%s\t%s\t%s\n",
			ins.Timestamp.UTC().Format(time.RFC3339),
			ins.Ticker,
			ins.Sentiment,
			ins.Confidence,
			ins.EventType,
			ins.ImpactScore.StringFixed(3),
			truncate(sanitizeInline(ins.ArticleTitle), 80),
		)
	}

	return writer.Flush()
}

func sanitizeInline(v string) string {
	cleaned := strings.ReplaceAll(v, "\n", " ")
	cleaned = strings.ReplaceAll(cleaned, "\r", " ")
	cleaned = strings.ReplaceAll(cleaned, "\t", " ")
	return cleaned
}

func truncate(v string, max int) string {
	runes := []rune(v)
	if len(runes) <= max {
		return v
	}
	return string(runes[:max-1]) + "…"
}
