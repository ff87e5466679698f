package notifier

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/slack-go/slack"

	"boardwatch/internal/storage"
	logx "boardwatch/pkg/logx"
)

type memJournal struct {
	mu      sync.Mutex
	entries []storage.Entry
}

func (j *memJournal) Append(_ context.Context, e storage.Entry) error {
	j.mu.Lock()
	j.entries = append(j.entries, e)
	j.mu.Unlock()
	return nil
}

func (j *memJournal) Close() error { return nil }

type funcSink struct {
	name string
	fn   func(ctx context.Context, n Notification) error
}

func (s funcSink) Name() string { return s.name }
func (s funcSink) Send(ctx context.Context, n Notification) error {
	return s.fn(ctx, n)
}

var sample = Notification{Team: "WASP", Board: "Stories", ItemID: 102, Title: "Login fails", URL: "https://x/102"}

func TestSlackSinkPostsPayload(t *testing.T) {
	t.Parallel()
	var (
		mu  sync.Mutex
		got struct {
			Text      string `json:"text"`
			IconEmoji string `json:"icon_emoji"`
		}
		ct string
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		defer mu.Unlock()
		ct = r.Header.Get("Content-Type")
		_ = json.NewDecoder(r.Body).Decode(&got)
		_, _ = io.WriteString(w, "ok")
	}))
	defer srv.Close()

	svc := New(Config{Timeout: time.Second, RatePerSec: 10}, logx.Nop(), nil,
		NewSlackSink(srv.URL, "", Template{}, srv.Client()))
	if err := svc.Notify(context.Background(), sample); err != nil {
		t.Fatalf("Notify error: %v", err)
	}

	mu.Lock()
	defer mu.Unlock()
	if ct != "application/json" {
		t.Fatalf("Content-Type = %q", ct)
	}
	if got.IconEmoji != ":robot_face:" {
		t.Fatalf("icon_emoji = %q", got.IconEmoji)
	}
	if !strings.Contains(got.Text, "<https://x/102|#102 – Login fails>") {
		t.Fatalf("text = %q", got.Text)
	}
}

func TestSlackSinkNon2xxIsDeliveryError(t *testing.T) {
	t.Parallel()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
		_, _ = io.WriteString(w, "invalid_token")
	}))
	defer srv.Close()

	j := &memJournal{}
	svc := New(Config{Timeout: time.Second}, logx.Nop(), j, NewSlackSink(srv.URL, "", Template{}, srv.Client()))
	err := svc.Notify(context.Background(), sample)

	var de *DeliveryError
	if !errors.As(err, &de) {
		t.Fatalf("expected DeliveryError, got %v", err)
	}
	var sce slack.StatusCodeError
	if de.Sink != "slack" || de.ItemID != 102 || !errors.As(err, &sce) || sce.Code != http.StatusForbidden {
		t.Fatalf("unexpected error: %v", de)
	}
	if len(j.entries) != 1 || j.entries[0].OK || j.entries[0].Sink != "slack" {
		t.Fatalf("journal = %+v", j.entries)
	}
}

func TestNotifyTimeoutDoesNotPanicOrHang(t *testing.T) {
	t.Parallel()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	}))
	defer srv.Close()

	svc := New(Config{Timeout: 50 * time.Millisecond}, logx.Nop(), nil, NewSlackSink(srv.URL, "", Template{}, srv.Client()))
	start := time.Now()
	err := svc.Notify(context.Background(), sample)
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline exceeded, got %v", err)
	}
	if time.Since(start) > time.Second {
		t.Fatal("send was not bounded by the timeout")
	}
}

func TestNotifyContinuesAfterFailingSink(t *testing.T) {
	t.Parallel()
	var delivered []string
	failing := funcSink{name: "first", fn: func(context.Context, Notification) error {
		return errors.New("boom")
	}}
	ok := funcSink{name: "second", fn: func(_ context.Context, n Notification) error {
		delivered = append(delivered, fmt.Sprint(n.ItemID))
		return nil
	}}

	j := &memJournal{}
	svc := New(Config{RatePerSec: 100}, logx.Nop(), j, failing, nil, ok)
	if got := svc.Sinks(); len(got) != 2 || got[0] != "first" || got[1] != "second" {
		t.Fatalf("Sinks = %v", got)
	}

	err := svc.Notify(context.Background(), sample)
	if err == nil {
		t.Fatal("expected error from first sink")
	}
	if len(delivered) != 1 || delivered[0] != "102" {
		t.Fatalf("second sink deliveries = %v", delivered)
	}
	if len(j.entries) != 2 || j.entries[0].OK || !j.entries[1].OK {
		t.Fatalf("journal = %+v", j.entries)
	}

	hist := svc.Snapshot()
	if len(hist) != 2 || hist[0].Error != "boom" || !hist[1].OK {
		t.Fatalf("history = %+v", hist)
	}
}

func TestNotifyWithoutSinks(t *testing.T) {
	t.Parallel()
	svc := New(Config{}, logx.Nop(), nil)
	if err := svc.Notify(context.Background(), sample); !errors.Is(err, ErrNoSinks) {
		t.Fatalf("Notify = %v, want ErrNoSinks", err)
	}
}

func TestNotifyCanceledContext(t *testing.T) {
	t.Parallel()
	called := false
	sink := funcSink{name: "s", fn: func(context.Context, Notification) error {
		called = true
		return nil
	}}
	svc := New(Config{}, logx.Nop(), nil, sink)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	var de *DeliveryError
	if err := svc.Notify(ctx, sample); !errors.As(err, &de) {
		t.Fatalf("expected DeliveryError, got %v", err)
	}
	if called {
		t.Fatal("sink must not be called with a canceled context")
	}
}

func TestTelegramSinkSendsPlainText(t *testing.T) {
	t.Parallel()
	var (
		mu     sync.Mutex
		path   string
		params map[string]any
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		path = r.URL.Path
		_ = json.NewDecoder(r.Body).Decode(&params)
		mu.Unlock()
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `{"ok":true,"result":{"message_id":5,"date":0,"chat":{"id":42,"type":"group"},"text":"x"}}`)
	}))
	defer srv.Close()

	sink, err := NewTelegramSink(TelegramConfig{Token: "123:abc", ChatID: 42, APIURL: srv.URL}, Template{})
	if err != nil {
		t.Fatalf("NewTelegramSink error: %v", err)
	}
	if err := sink.Send(context.Background(), sample); err != nil {
		t.Fatalf("Send error: %v", err)
	}

	mu.Lock()
	defer mu.Unlock()
	if path != "/bot123:abc/sendMessage" {
		t.Fatalf("path = %q", path)
	}
	if fmt.Sprint(params["chat_id"]) != "42" {
		t.Fatalf("chat_id = %v", params["chat_id"])
	}
	if text, _ := params["text"].(string); !strings.HasPrefix(text, "[WASP · Stories] Ticket ready for testing: #102") {
		t.Fatalf("text = %q", text)
	}
}

func TestNewTelegramSinkValidates(t *testing.T) {
	t.Parallel()
	if _, err := NewTelegramSink(TelegramConfig{ChatID: 1}, Template{}); err == nil {
		t.Fatal("expected error for empty token")
	}
	if _, err := NewTelegramSink(TelegramConfig{Token: "t"}, Template{}); err == nil {
		t.Fatal("expected error for empty chat id")
	}
}

func TestSlackSinkErrorsHideWebhookPath(t *testing.T) {
	t.Parallel()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	}))
	defer srv.Close()

	hook := srv.URL + "/services/T000/B000/SECRETTOKEN"
	j := &memJournal{}
	svc := New(Config{Timeout: 50 * time.Millisecond}, logx.Nop(), j, NewSlackSink(hook, "", Template{}, srv.Client()))

	err := svc.Notify(context.Background(), sample)
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline exceeded, got %v", err)
	}
	if strings.Contains(err.Error(), "SECRETTOKEN") {
		t.Fatalf("error leaks webhook path: %v", err)
	}

	hist := svc.Snapshot()
	if len(hist) != 1 || hist[0].Error == "" || strings.Contains(hist[0].Error, "SECRETTOKEN") {
		t.Fatalf("history = %+v", hist)
	}
	if len(j.entries) != 1 || strings.Contains(j.entries[0].Error, "/services/") {
		t.Fatalf("journal = %+v", j.entries)
	}
	if !strings.Contains(hist[0].Error, srv.URL+"/...") {
		t.Fatalf("history error should keep the host: %q", hist[0].Error)
	}
}

func TestSlackSinkBadWebhookURLIsRedacted(t *testing.T) {
	t.Parallel()
	sink := NewSlackSink("://bad/services/T000/B000/SECRETTOKEN", "", Template{}, nil)
	err := sink.Send(context.Background(), sample)
	if err == nil {
		t.Fatal("expected error for malformed webhook URL")
	}
	if strings.Contains(err.Error(), "SECRETTOKEN") {
		t.Fatalf("error leaks webhook path: %v", err)
	}
}

func TestSlackSinkRateLimited(t *testing.T) {
	t.Parallel()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Retry-After", "3")
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()

	err := NewSlackSink(srv.URL, "", Template{}, srv.Client()).Send(context.Background(), sample)
	var rle *slack.RateLimitedError
	if !errors.As(err, &rle) {
		t.Fatalf("expected RateLimitedError, got %v", err)
	}
	if rle.RetryAfter != 3*time.Second {
		t.Fatalf("RetryAfter = %v", rle.RetryAfter)
	}
}
