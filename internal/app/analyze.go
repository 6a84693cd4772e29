package app

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
	"text/tabwriter"

	"newsinsight/internal/pipeline"
)

// Analyze scores one article and prints the result without persisting it.
func (a *App) Analyze(ctx context.Context, opts AnalyzeOptions) error {
	if strings.TrimSpace(opts.Title) == "" {
		return errors.New("article title is required")
	}

	store, closeStore, err := a.openStore(ctx)
	if err != nil {
		return err
	}
	if closeStore != nil {
		defer closeStore()
	}

	p, cleanup, err := a.newPipeline(ctx, store)
	if err != nil {
		return err
	}
	defer cleanup()

	weight := opts.SourceWeight
	if weight <= 0 {
		weight = 1.0
	}
	res := p.Process(ctx, pipeline.Article{
		Title:        opts.Title,
		Content:      opts.Content,
		Link:         opts.Link,
		Feed:         "manual",
		SourceWeight: weight,
	})
	return writeResult(os.Stdout, res)
}

func writeResult(out io.Writer, res pipeline.Result) error {
	fmt.Fprintf(out, "status:   %s\n", res.Status)
	if res.Stage != "" {
		fmt.Fprintf(out, "stage:    %s\n", res.Stage)
	}
	for _, ent := range res.Selected {
		fmt.Fprintf(out, "entity:   %s (%s) via %q score=%d\n", ent.OfficialName, ent.Ticker, ent.MatchedText, ent.Score)
	}
	if res.Override.Applied {
		fmt.Fprintf(out, "override: %s beats %s\n", res.Override.Winner, res.Override.Loser)
	}
	if len(res.Degraded) > 0 {
		fmt.Fprintf(out, "degraded: %s\n", strings.Join(res.Degraded, ","))
	}
	if len(res.Insights) == 0 {
		return nil
	}

	fmt.Fprintf(out, "event:    %s\n\n", res.Event)
	writer := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(writer, "Ticker\tCompany\tSentiment\tConf\tImpact")
	insights := append(res.Insights[:0:0], res.Insights...)
	sort.SliceStable(insights, func(i, j int) bool { return insights[i].Ticker < insights[j].Ticker })
	for _, ins := range insights {
		fmt.Fprintf(writer, "%s\t%s\t%s\t%.2f\t%s\n", ins.Ticker, ins.CompanyName, ins.Sentiment, ins.Confidence, ins.ImpactScore.String())
	}
	if err := writer.Flush(); err != nil {
		return err
	}

	if !insights[0].KeyFigures.IsEmpty() {
		raw, err := json.MarshalIndent(insights[0].KeyFigures, "", "  ")
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "\nkey figures:\n%s\n", raw)
	}
	return nil
}
