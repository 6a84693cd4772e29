// Package llm classifies sentiment and news events through an
// OpenAI-compatible chat completion endpoint.
package llm

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/sashabaranov/go-openai"

	"newsinsight/internal/fusion"
	"newsinsight/internal/sentiment"
)

// ErrNotConfigured is returned when no API key is set.
var ErrNotConfigured = errors.New("llm: api key not configured")

const (
	defaultMaxChars   = 1500
	defaultConfidence = 0.9
)

// Options configure the client.
type Options struct {
	BaseURL    string
	APIKey     string
	Model      string
	Timeout    time.Duration
	MaxChars   int
	Confidence float64
}

// Client implements sentiment.Classifier and fusion.EventClassifier.
type Client struct {
	api        *openai.Client
	model      string
	timeout    time.Duration
	maxChars   int
	confidence float64
}

// New builds a client. Without an API key every call returns ErrNotConfigured.
func New(opts Options) *Client {
	c := &Client{
		model:      opts.Model,
		timeout:    opts.Timeout,
		maxChars:   opts.MaxChars,
		confidence: opts.Confidence,
	}
	if c.maxChars <= 0 {
		c.maxChars = defaultMaxChars
	}
	if c.confidence <= 0 || c.confidence > 1 {
		c.confidence = defaultConfidence
	}
	if c.timeout <= 0 {
		c.timeout = 20 * time.Second
	}
	if strings.TrimSpace(opts.APIKey) == "" {
		return c
	}

	cfg := openai.DefaultConfig(opts.APIKey)
	if base := strings.TrimRight(opts.BaseURL, "/"); base != "" {
		cfg.BaseURL = base
	}
	c.api = openai.NewClientWithConfig(cfg)
	return c
}

// ClassifySentiment asks for a one-word label. The model gives no
// probability, so a fixed confidence is attached.
func (c *Client) ClassifySentiment(ctx context.Context, text string) (sentiment.Verdict, error) {
	prompt := "Analyze the sentiment of the following financial news text. " +
		"Respond with only one word: Positive, Negative, or Neutral.\n\nText: " + truncate(text, c.maxChars)

	answer, err := c.complete(ctx, prompt)
	if err != nil {
		return sentiment.Verdict{}, err
	}
	return sentiment.Verdict{Label: sentiment.ParseLabel(answer), Confidence: c.confidence}, nil
}

// ClassifyEvent asks for one of the fixed categories; the raw answer is
// returned for fusion.CanonicalEvent to map.
func (c *Client) ClassifyEvent(ctx context.Context, title string) (string, error) {
	names := make([]string, len(fusion.EventTypes))
	for i, et := range fusion.EventTypes {
		names[i] = string(et)
	}
	prompt := "Classify the following financial news headline into exactly one of these categories: " +
		strings.Join(names, ", ") + ". Respond with only the category name.\n\nHeadline: " + title

	return c.complete(ctx, prompt)
}

func (c *Client) complete(ctx context.Context, prompt string) (string, error) {
	if c == nil || c.api == nil {
		return "", ErrNotConfigured
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	resp, err := c.api.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: c.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleUser, Content: prompt},
		},
		MaxTokens: 16,
	})
	if err != nil {
		return "", fmt.Errorf("chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", errors.New("chat completion returned no choices")
	}
	return strings.TrimSpace(resp.Choices[0].Message.Content), nil
}

// truncate cuts text to at most n runes.
func truncate(text string, n int) string {
	runes := []rune(text)
	if len(runes) <= n {
		return text
	}
	return string(runes[:n])
}

var (
	_ sentiment.Classifier   = (*Client)(nil)
	_ fusion.EventClassifier = (*Client)(nil)
)
