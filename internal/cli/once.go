package cli

import (
	"github.com/spf13/cobra"

	"newsinsight/internal/app"
)

var onceDryRun bool

var onceCmd = &cobra.Command{
	Use:   "once",
	Short: "Run a single feed cycle and exit",
	RunE: func(cmd *cobra.Command, args []string) error {
		return getApp().RunOnce(cmd.Context(), app.OnceOptions{DryRun: onceDryRun})
	},
}

func init() {
	onceCmd.Flags().BoolVar(&onceDryRun, "dry-run", false, "Run without writing to storage or sending alerts")
}
