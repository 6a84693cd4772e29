package fetcher

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/mmcdole/gofeed"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"
)

// FeedOptions parameterise RSS and article page retrieval.
type FeedOptions struct {
	Timeout           time.Duration
	UserAgent         string
	RequestsPerSecond float64
	ContentSelectors  []string
}

// Feed reads RSS feeds with gofeed and pulls article bodies with goquery.
type Feed struct {
	opts    FeedOptions
	parser  *gofeed.Parser
	client  *http.Client
	limiter *rate.Limiter
	logger  zerolog.Logger
}

// NewFeed constructs a feed fetcher.
func NewFeed(opts FeedOptions, logger zerolog.Logger) *Feed {
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	if strings.TrimSpace(opts.UserAgent) == "" {
		opts.UserAgent = "Mozilla/5.0 (compatible; newsinsight/1.0)"
	}
	limit := rate.Inf
	if opts.RequestsPerSecond > 0 {
		limit = rate.Limit(opts.RequestsPerSecond)
	}

	client := &http.Client{Timeout: timeout}
	parser := gofeed.NewParser()
	parser.Client = client

	return &Feed{
		opts:    opts,
		parser:  parser,
		client:  client,
		limiter: rate.NewLimiter(limit, 1),
		logger:  logger.With().Str("component", "feed_fetcher").Logger(),
	}
}

// FetchFeed parses spec.URL and resolves up to spec.Limit article bodies. An
// article whose page cannot be read falls back to the feed description.
func (f *Feed) FetchFeed(ctx context.Context, spec FeedSpec) ([]Item, error) {
	if err := f.limiter.Wait(ctx); err != nil {
		return nil, err
	}
	parsed, err := f.parser.ParseURLWithContext(spec.URL, ctx)
	if err != nil {
		return nil, fmt.Errorf("parse RSS %s: %w", spec.Name, err)
	}

	selectors := spec.ContentSelectors
	if len(selectors) == 0 {
		selectors = f.opts.ContentSelectors
	}

	entries := parsed.Items
	if spec.Limit > 0 && len(entries) > spec.Limit {
		entries = entries[:spec.Limit]
	}

	items := make([]Item, 0, len(entries))
	for _, entry := range entries {
		title := strings.TrimSpace(entry.Title)
		link := strings.TrimSpace(entry.Link)
		if title == "" || link == "" {
			continue
		}

		item := Item{
			Feed:        spec.Name,
			Title:       title,
			Link:        link,
			PublishedAt: entry.PublishedParsed,
		}

		body, bodyErr := f.fetchBody(ctx, link, selectors)
		if bodyErr != nil {
			f.logger.Debug().Err(bodyErr).Str("link", link).Msg("article body unavailable, using feed summary")
		}
		if body == "" {
			body = cleanHTML(coalesce(entry.Content, entry.Description))
		}
		item.Content = body
		items = append(items, item)
	}
	return items, nil
}

func (f *Feed) fetchBody(ctx context.Context, link string, selectors []string) (string, error) {
	if len(selectors) == 0 {
		return "", nil
	}
	if err := f.limiter.Wait(ctx); err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, link, nil)
	if err != nil {
		return "", err
	}
	req.Header.Set("User-Agent", f.opts.UserAgent)
	req.Header.Set("Accept", "text/html")

	resp, err := f.client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("article page status %d", resp.StatusCode)
	}

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return "", fmt.Errorf("parse article page: %w", err)
	}
	return extractBody(doc, selectors), nil
}

// extractBody returns the paragraphs of the first selector that matches, or
// its whole text when it has no <p> children.
func extractBody(doc *goquery.Document, selectors []string) string {
	for _, selector := range selectors {
		sel := doc.Find(selector).First()
		if sel.Length() == 0 {
			continue
		}
		sel.Find("script, style").Remove()

		var parts []string
		sel.Find("p").Each(func(_ int, p *goquery.Selection) {
			if text := collapseSpace(p.Text()); text != "" {
				parts = append(parts, text)
			}
		})
		if len(parts) == 0 {
			if text := collapseSpace(sel.Text()); text != "" {
				parts = append(parts, text)
			}
		}
		if len(parts) > 0 {
			return strings.Join(parts, "\n")
		}
	}
	return ""
}

// cleanHTML strips HTML tags from a feed description.
func cleanHTML(s string) string {
	if s == "" {
		return ""
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader("<body>" + s + "</body>"))
	if err != nil {
		return s
	}
	return collapseSpace(doc.Text())
}

func collapseSpace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

func coalesce(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}

var _ ArticleFetcher = (*Feed)(nil)
