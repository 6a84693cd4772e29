package llm

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"newsinsight/internal/sentiment"
)

type chatRequest struct {
	Model    string `json:"model"`
	Messages []struct {
		Role    string `json:"role"`
		Content string `json:"content"`
	} `json:"messages"`
}

func chatServer(t *testing.T, answer string, seen *[]chatRequest) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.True(t, strings.HasSuffix(r.URL.Path, "/chat/completions"), "路径 %s", r.URL.Path)
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))

		var req chatRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		*seen = append(*seen, req)

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"id":      "chatcmpl-1",
			"object":  "chat.completion",
			"created": 1700000000,
			"model":   req.Model,
			"choices": []any{map[string]any{
				"index":         0,
				"message":       map[string]string{"role": "assistant", "content": answer},
				"finish_reason": "stop",
			}},
		})
	}))
}

func TestClassifySentiment(t *testing.T) {
	var seen []chatRequest
	srv := chatServer(t, " Negative.\n", &seen)
	defer srv.Close()

	c := New(Options{BaseURL: srv.URL, APIKey: "test-key", Model: "llama-3.1-8b-instant", MaxChars: 10, Timeout: time.Second})
	got, err := c.ClassifySentiment(context.Background(), "Wipro shares slumped after weak guidance")
	require.NoError(t, err)
	assert.Equal(t, sentiment.Verdict{Label: sentiment.Negative, Confidence: 0.9}, got)

	require.Len(t, seen, 1)
	assert.Equal(t, "llama-3.1-8b-instant", seen[0].Model)
	assert.True(t, strings.HasSuffix(seen[0].Messages[0].Content, "Text: Wipro shar"), "内容 %q", seen[0].Messages[0].Content)
}

func TestClassifyEvent(t *testing.T) {
	var seen []chatRequest
	srv := chatServer(t, "Merger or Acquisition", &seen)
	defer srv.Close()

	c := New(Options{BaseURL: srv.URL, APIKey: "test-key", Model: "m"})
	got, err := c.ClassifyEvent(context.Background(), "Tata Steel to acquire rival")
	require.NoError(t, err)
	assert.Equal(t, "Merger or Acquisition", got)
	assert.Contains(t, seen[0].Messages[0].Content, "Executive Change")
	assert.Contains(t, seen[0].Messages[0].Content, "Headline: Tata Steel to acquire rival")
}

func TestClientWithoutKey(t *testing.T) {
	c := New(Options{})
	_, err := c.ClassifySentiment(context.Background(), "x")
	assert.True(t, errors.Is(err, ErrNotConfigured))
	_, err = c.ClassifyEvent(context.Background(), "x")
	assert.True(t, errors.Is(err, ErrNotConfigured))
}

func TestTruncateCountsRunes(t *testing.T) {
	assert.Equal(t, "₹50", truncate("₹500 crore", 3))
	assert.Equal(t, "short", truncate("short", 10))
}
