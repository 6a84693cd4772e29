package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"text/tabwriter"
	"time"

	"newsinsight/internal/backtest"
)

// Backtest compares stored directional sentiment with the next session's move.
func (a *App) Backtest(ctx context.Context, opts BacktestOptions) error {
	store, closeStore, err := a.openStore(ctx)
	if err != nil {
		return err
	}
	if store == nil {
		return errors.New("database not configured; cannot backtest")
	}
	if closeStore != nil {
		defer closeStore()
	}

	market, err := a.newMarket()
	if err != nil {
		return err
	}
	if market == nil {
		return errors.New("market.enabled is false; cannot fetch price history")
	}
	defer market.Close()

	now := time.Now().UTC()
	to := now.Add(-a.Config.Backtest.MinAge)
	if opts.To != nil {
		to = opts.To.UTC()
	}
	from := to.Add(-a.Config.Backtest.Lookback)
	if opts.From != nil {
		from = opts.From.UTC()
	}
	if !from.Before(to) {
		return errors.New("from must be before to")
	}

	report, err := backtest.NewRunner(store, market, a.Logger).Run(ctx, from, to)
	if err != nil {
		return err
	}
	return writeBacktestReport(os.Stdout, report)
}

func writeBacktestReport(out io.Writer, report backtest.Report) error {
	if len(report.Outcomes) == 0 {
		fmt.Fprintf(out, "no actionable insights to evaluate (skipped %d)\n", report.Skipped)
		return nil
	}

	writer := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(writer, "Ticker\tDate\tPrediction\tNext Day Return\tCorrect")
	for _, o := range report.Outcomes {
		fmt.Fprintf(writer, "%s\t%s\t%s\t%.2f%%\t%t\n",
			o.Ticker,
			o.Timestamp.UTC().Format("2006-01-02"),
			o.Sentiment,
			o.ReturnPct,
			o.Correct,
		)
	}
	if err := writer.Flush(); err != nil {
		return err
	}

	fmt.Fprintf(out, "\nOverall accuracy: %.2f%% (%d correct out of %d, %d skipped)\n",
		report.Accuracy(), report.Correct(), len(report.Outcomes), report.Skipped)
	return nil
}
