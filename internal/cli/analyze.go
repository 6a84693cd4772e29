package cli

import (
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"newsinsight/internal/app"
)

var (
	analyzeTitle   string
	analyzeContent string
	analyzeLink    string
	analyzeWeight  float64
)

var analyzeCmd = &cobra.Command{
	Use:   "analyze",
	Short: "Score one article without persisting it",
	Long:  "Score one article without persisting it. Use --content - to read the body from stdin.",
	RunE: func(cmd *cobra.Command, args []string) error {
		content := analyzeContent
		if content == "-" {
			raw, err := io.ReadAll(cmd.InOrStdin())
			if err != nil {
				return fmt.Errorf("read content from stdin: %w", err)
			}
			content = strings.TrimSpace(string(raw))
		}

		return getApp().Analyze(cmd.Context(), app.AnalyzeOptions{
			Title:        analyzeTitle,
			Content:      content,
			Link:         analyzeLink,
			SourceWeight: analyzeWeight,
		})
	},
}

func init() {
	analyzeCmd.Flags().StringVar(&analyzeTitle, "title", "", "Article headline")
	analyzeCmd.Flags().StringVar(&analyzeContent, "content", "", "Article body, or - for stdin")
	analyzeCmd.Flags().StringVar(&analyzeLink, "link", "", "Article URL")
	analyzeCmd.Flags().Float64Var(&analyzeWeight, "weight", 1.0, "Source credibility weight")
	_ = analyzeCmd.MarkFlagRequired("title")
}
