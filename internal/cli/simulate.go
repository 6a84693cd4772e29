package cli

import (
	"errors"

	"github.com/spf13/cobra"

	"newsinsight/internal/app"
)

var (
	simulateTitle   string
	simulateContent string
	simulateChange  float64
	simulateVolume  int64
)

var simulateCmd = &cobra.Command{
	Use:   "simulate-alert",
	Short: "用给定文章与行情模拟一次交易信号告警",
	RunE: func(cmd *cobra.Command, args []string) error {
		if simulateTitle == "" {
			return errors.New("--title 必须提供")
		}
		if simulateVolume < 0 {
			return errors.New("--volume 不能为负")
		}

		return getApp().SimulateAlert(cmd.Context(), app.SimulateOptions{
			Title:         simulateTitle,
			Content:       simulateContent,
			ChangePercent: simulateChange,
			Volume:        simulateVolume,
		})
	},
}

func init() {
	simulateCmd.Flags().StringVar(&simulateTitle, "title", "", "模拟文章标题")
	simulateCmd.Flags().StringVar(&simulateContent, "content", "", "模拟文章正文")
	simulateCmd.Flags().Float64Var(&simulateChange, "change", 3.0, "模拟涨跌幅（%）")
	simulateCmd.Flags().Int64Var(&simulateVolume, "volume", 2_000_000, "模拟成交量")
}
