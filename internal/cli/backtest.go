package cli

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"newsinsight/internal/app"
)

var (
	backtestFrom string
	backtestTo   string
)

var backtestCmd = &cobra.Command{
	Use:   "backtest",
	Short: "Compare stored sentiment with the next trading day's price move",
	RunE: func(cmd *cobra.Command, args []string) error {
		var opts app.BacktestOptions
		var err error
		if opts.From, err = parseTimeFlag("from", backtestFrom); err != nil {
			return err
		}
		if opts.To, err = parseTimeFlag("to", backtestTo); err != nil {
			return err
		}
		return getApp().Backtest(cmd.Context(), opts)
	},
}

func init() {
	backtestCmd.Flags().StringVar(&backtestFrom, "from", "", "Oldest insight timestamp (RFC3339, defaults to to - backtest.lookback)")
	backtestCmd.Flags().StringVar(&backtestTo, "to", "", "Newest insight timestamp (RFC3339, defaults to now - backtest.min_age)")
}

func parseTimeFlag(name, value string) (*time.Time, error) {
	if value == "" {
		return nil, nil
	}
	t, err := time.Parse(time.RFC3339, value)
	if err != nil {
		return nil, fmt.Errorf("invalid --%s value: %w", name, err)
	}
	return &t, nil
}
