// Package ner talks to an HTTP named-entity recognition service.
package ner

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"newsinsight/internal/entity"
)

// ErrNotConfigured is returned when no service URL is set.
var ErrNotConfigured = errors.New("ner: service url not configured")

// Client posts text to the service and reads labelled spans back.
//
// Request:  {"text": "..."}
// Response: {"ents": [{"text": "Infosys", "label": "ORG"}, ...]}
type Client struct {
	url    string
	client *http.Client
}

// New builds a client; an empty url yields a client that always fails.
func New(url string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Client{
		url:    strings.TrimSpace(url),
		client: &http.Client{Timeout: timeout},
	}
}

type request struct {
	Text string `json:"text"`
}

type response struct {
	Ents []entity.Span `json:"ents"`
}

// LabelOrganizations returns every span the service tagged, in service order.
func (c *Client) LabelOrganizations(ctx context.Context, text string) ([]entity.Span, error) {
	if c == nil || c.url == "" {
		return nil, ErrNotConfigured
	}

	body, err := json.Marshal(request{Text: text})
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("ner request: %w", err)
	}
	defer resp.Body.Close()

	payload, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("ner service error (%d): %s", resp.StatusCode, strings.TrimSpace(string(payload)))
	}

	var parsed response
	if err := json.Unmarshal(payload, &parsed); err != nil {
		return nil, fmt.Errorf("decode ner response: %w", err)
	}
	return parsed.Ents, nil
}

var _ entity.Labeler = (*Client)(nil)
