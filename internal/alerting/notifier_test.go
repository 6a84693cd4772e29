package alerting

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

func TestTelegramNotifierSuccess(t *testing.T) {
	received := make(map[string]string)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.Contains(r.URL.Path, "sendMessage") {
			t.Fatalf("路径应包含 sendMessage, 实际 %s", r.URL.Path)
		}
		if err := json.NewDecoder(r.Body).Decode(&received); err != nil {
			t.Fatalf("解析请求体失败: %v", err)
		}
		_ = json.NewEncoder(w).Encode(map[string]any{"ok": true})
	}))
	defer srv.Close()

	notifier := NewTelegramNotifier("token", "chat", srv.URL, time.Second, testLogger())
	note := sampleNotification()

	if err := notifier.Notify(context.Background(), note); err != nil {
		t.Fatalf("Telegram Notify 应成功: %v", err)
	}

	if received["chat_id"] != "chat" {
		t.Fatalf("chat_id 不正确: %#v", received)
	}
	if !strings.Contains(received["text"], "[Strong Buy] INFY (Infosys Limited)") {
		t.Fatalf("text 内容不正确: %q", received["text"])
	}
	if !strings.Contains(received["text"], "Signal: 0.716") {
		t.Fatalf("text 应包含信号值: %q", received["text"])
	}
}

func TestTelegramNotifierError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_ = json.NewEncoder(w).Encode(map[string]any{"ok": false})
	}))
	defer srv.Close()

	notifier := NewTelegramNotifier("token", "chat", srv.URL, time.Second, testLogger())
	note := sampleNotification()

	if err := notifier.Notify(context.Background(), note); err == nil {
		t.Fatal("ok=false 应报错")
	}
}

func sampleNotification() Notification {
	return Notification{
		Time:           time.Date(2024, 3, 1, 4, 0, 0, 0, time.UTC),
		Ticker:         "INFY",
		CompanyName:    "Infosys Limited",
		Recommendation: "Strong Buy",
		Overall:        decimal.RequireFromString("0.71623"),
		Confidence:     decimal.RequireFromString("0.55"),
		Sentiment:      "Positive",
		EventType:      "Partnership",
		ImpactScore:    decimal.RequireFromString("0.8"),
		ArticleTitle:   "Infosys wins multi-billion dollar AI deal",
		Link:           "https://example.com/a",
		Channels:       []string{"telegram"},
	}
}

func testLogger() zerolog.Logger {
	return zerolog.Nop()
}
