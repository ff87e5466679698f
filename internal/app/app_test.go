package app

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"boardwatch/internal/ado"
	"boardwatch/internal/config"
	"boardwatch/internal/observability/pprof"
	logx "boardwatch/pkg/logx"
)

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}

type fakeADO struct {
	mu      sync.Mutex
	boards  []map[string]any
	queries int
}

func (f *fakeADO) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if _, pass, _ := r.BasicAuth(); pass != "pat-123" {
		w.WriteHeader(http.StatusUnauthorized)
		return
	}
	switch {
	case r.Method == http.MethodGet && r.URL.Path == "/acme/Proj/WASP/_apis/work/boards":
		writeJSON(w, map[string]any{"count": len(f.boards), "value": f.boards})
	case r.Method == http.MethodGet && r.URL.Path == "/acme/Proj/WASP/_apis/work/boards/3/columns":
		writeJSON(w, map[string]any{"count": 2, "value": []map[string]any{
			{"id": "c-1", "name": "Active"},
			{"id": "c-2", "name": "Ready for QA"},
		}})
	case r.Method == http.MethodGet && r.URL.Path == "/acme/Proj/WASP/_apis/work/teamsettings/teamfieldvalues":
		writeJSON(w, map[string]any{
			"field":        map[string]any{"referenceName": "System.AreaPath"},
			"defaultValue": `Proj\WASP`,
			"values":       []map[string]any{{"value": `Proj\WASP`, "includeChildren": true}},
		})
	case r.Method == http.MethodPost && r.URL.Path == "/acme/Proj/_apis/wit/wiql":
		f.mu.Lock()
		f.queries++
		f.mu.Unlock()
		writeJSON(w, map[string]any{"workItems": []map[string]any{{"id": 101}, {"id": 102}}})
	case r.Method == http.MethodGet && strings.HasPrefix(r.URL.Path, "/acme/Proj/_apis/wit/workitems/"):
		id := strings.TrimPrefix(r.URL.Path, "/acme/Proj/_apis/wit/workitems/")
		n, _ := strconv.Atoi(id)
		writeJSON(w, map[string]any{
			"id":     n,
			"fields": map[string]any{"System.Title": "Item " + id},
			"_links": map[string]any{"html": map[string]any{"href": "https://dev.azure.com/acme/Proj/_workitems/edit/" + id}},
		})
	default:
		http.NotFound(w, r)
	}
}

type fakeSlack struct {
	mu    sync.Mutex
	texts []string
	got   chan struct{}
}

func newFakeSlack() *fakeSlack { return &fakeSlack{got: make(chan struct{}, 16)} }

func (s *fakeSlack) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	var p struct {
		Text string `json:"text"`
	}
	_ = json.NewDecoder(r.Body).Decode(&p)
	s.mu.Lock()
	s.texts = append(s.texts, p.Text)
	s.mu.Unlock()
	s.got <- struct{}{}
}

func writeConfig(t *testing.T, adoURL, extra string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "boardwatch.yaml")
	body := `
azure:
  organization: acme
  project: Proj
  team: WASP
  board: Stories
  column: Ready for QA
  base_url: ` + adoURL + `
  request_timeout: 2s
poll:
  interval: 1h
notifier:
  timeout: 2s
  rate_per_sec: 50
logging:
  level: error
` + extra
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func envLookup(m map[string]string) config.LookupFunc {
	return func(k string) (string, bool) {
		v, ok := m[k]
		return v, ok
	}
}

var goodEnv = map[string]string{
	config.EnvAzurePAT:     "pat-123",
	config.EnvSlackWebhook: "", // filled per test
}

func envWith(webhook string) config.LookupFunc {
	m := map[string]string{}
	for k, v := range goodEnv {
		m[k] = v
	}
	m[config.EnvSlackWebhook] = webhook
	return envLookup(m)
}

func TestAppResolvesAndNotifiesOnce(t *testing.T) {
	adoSrv := httptest.NewServer(&fakeADO{boards: []map[string]any{{"name": "Stories", "id": 3}}})
	defer adoSrv.Close()
	slack := newFakeSlack()
	slackSrv := httptest.NewServer(slack)
	defer slackSrv.Close()

	journalDir := t.TempDir()
	cfgPath := writeConfig(t, adoSrv.URL, `
storage:
  driver: file
  path: `+filepath.Join(journalDir, "journal")+`
`)

	a, err := New(context.Background(), Options{
		ConfigPath:   cfgPath,
		LookupEnv:    envWith(slackSrv.URL),
		HTTPClient:   slackSrv.Client(),
		DisableWatch: true,
	})
	if err != nil {
		t.Fatalf("New error: %v", err)
	}

	tgt := a.Target()
	if tgt.Board.ID != "3" || tgt.Column.ID != "c-2" {
		t.Fatalf("target = %+v", tgt)
	}
	if tgt.AreaPredicate != `([System.AreaPath] UNDER 'Proj\WASP')` {
		t.Fatalf("predicate = %q", tgt.AreaPredicate)
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- a.Run(ctx) }()

	for i := 0; i < 2; i++ {
		select {
		case <-slack.got:
		case <-time.After(5 * time.Second):
			t.Fatal("no slack message")
		}
	}
	cancel()
	if err := <-done; err != nil {
		t.Fatalf("Run error: %v", err)
	}

	slack.mu.Lock()
	texts := append([]string(nil), slack.texts...)
	slack.mu.Unlock()
	if len(texts) != 2 {
		t.Fatalf("slack messages = %d, want 2", len(texts))
	}
	want := ":excitedstar: *[WASP · Stories] Ticket ready for testing:* <https://dev.azure.com/acme/Proj/_workitems/edit/101|#101 – Item 101>"
	if texts[0] != want {
		t.Fatalf("text = %q\nwant  %q", texts[0], want)
	}

	f, err := os.Open(filepath.Join(journalDir, "journal.deliveries.jsonl"))
	if err != nil {
		t.Fatalf("journal not written: %v", err)
	}
	defer f.Close()
	lines := 0
	for sc := bufio.NewScanner(f); sc.Scan(); {
		lines++
	}
	if lines != 2 {
		t.Fatalf("journal lines = %d, want 2", lines)
	}
}

func TestNewFailsOnUnknownBoard(t *testing.T) {
	adoSrv := httptest.NewServer(&fakeADO{boards: []map[string]any{{"name": "Features", "id": 9}}})
	defer adoSrv.Close()

	_, err := New(context.Background(), Options{
		ConfigPath:   writeConfig(t, adoSrv.URL, ""),
		LookupEnv:    envWith("http://127.0.0.1:1/hook"),
		DisableWatch: true,
	})
	var nf *ado.NotFoundError
	if !errors.As(err, &nf) {
		t.Fatalf("expected NotFoundError, got %v", err)
	}
	if nf.Kind != "board" || nf.Name != "Stories" || len(nf.Available) != 1 || nf.Available[0] != "Features" {
		t.Fatalf("error = %+v", nf)
	}
}

func TestNewFailsWithoutSecrets(t *testing.T) {
	_, err := New(context.Background(), Options{
		ConfigPath: writeConfig(t, "http://127.0.0.1:1", ""),
		LookupEnv:  envLookup(map[string]string{config.EnvSlackWebhook: "http://x"}),
	})
	var ce *config.ConfigError
	if !errors.As(err, &ce) || ce.Field != config.EnvAzurePAT {
		t.Fatalf("expected ConfigError for %s, got %v", config.EnvAzurePAT, err)
	}
}

func TestNewFailsOnBadCredentials(t *testing.T) {
	adoSrv := httptest.NewServer(&fakeADO{})
	defer adoSrv.Close()

	_, err := New(context.Background(), Options{
		ConfigPath: writeConfig(t, adoSrv.URL, ""),
		LookupEnv: envLookup(map[string]string{
			config.EnvAzurePAT:     "wrong",
			config.EnvSlackWebhook: "http://x",
		}),
		DisableWatch: true,
	})
	var re *ado.RequestError
	if !errors.As(err, &re) || re.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected 401 RequestError, got %v", err)
	}
}

func TestMapStorageConfig(t *testing.T) {
	tests := []struct {
		name    string
		in      *config.StorageConfig
		enabled bool
		wantErr bool
	}{
		{name: "nil", in: nil},
		{name: "none", in: &config.StorageConfig{Driver: "none"}},
		{name: "file", in: &config.StorageConfig{Driver: "file", Path: "./j"}, enabled: true},
		{name: "sqlite without path", in: &config.StorageConfig{Driver: "sqlite"}, wantErr: true},
		{name: "sqlite", in: &config.StorageConfig{Driver: "SQLite", Path: "./j.db", BusyTimeout: "2s"}, enabled: true},
		{name: "unknown", in: &config.StorageConfig{Driver: "redis"}, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sc, enabled, err := mapStorageConfig(&config.Config{Storage: tt.in})
			if (err != nil) != tt.wantErr {
				t.Fatalf("err = %v, wantErr %v", err, tt.wantErr)
			}
			if enabled != tt.enabled {
				t.Fatalf("enabled = %v, want %v", enabled, tt.enabled)
			}
			if tt.name == "sqlite" && (sc.Driver != "sqlite" || sc.BusyTimeout != 2*time.Second) {
				t.Fatalf("sqlite config = %+v", sc)
			}
		})
	}
}

func TestGuardRecoversPanic(t *testing.T) {
	err := guard(logx.Nop(), "x", func() error { panic("boom") })
	if err == nil || !strings.Contains(err.Error(), "boom") {
		t.Fatalf("guard = %v", err)
	}
}

func TestAppServesStatus(t *testing.T) {
	adoSrv := httptest.NewServer(&fakeADO{boards: []map[string]any{{"name": "Stories", "id": 3}}})
	defer adoSrv.Close()
	slack := newFakeSlack()
	slackSrv := httptest.NewServer(slack)
	defer slackSrv.Close()

	a, err := New(context.Background(), Options{
		ConfigPath: writeConfig(t, adoSrv.URL, `
debug:
  enabled: true
  addr: 127.0.0.1:0
`),
		LookupEnv:    envWith(slackSrv.URL),
		HTTPClient:   slackSrv.Client(),
		DisableWatch: true,
	})
	if err != nil {
		t.Fatalf("New error: %v", err)
	}
	addr := a.debug.Addr()
	if addr == "" {
		t.Fatal("debug server not bound")
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- a.Run(ctx) }()
	defer func() {
		cancel()
		<-done
	}()

	for i := 0; i < 2; i++ {
		select {
		case <-slack.got:
		case <-time.After(5 * time.Second):
			t.Fatal("no slack message")
		}
	}

	var st struct {
		Sinks []string `json:"sinks"`
		Poll  struct {
			Cycles int `json:"cycles"`
			Last   struct {
				Seen int `json:"seen"`
			} `json:"last"`
		} `json:"poll"`
	}
	deadline := time.Now().Add(3 * time.Second)
	for {
		resp, err := http.Get("http://" + addr + "/status")
		if err == nil {
			_ = json.NewDecoder(resp.Body).Decode(&st)
			_ = resp.Body.Close()
			if st.Poll.Cycles >= 1 {
				break
			}
		}
		if time.Now().After(deadline) {
			t.Fatalf("status never reported a cycle: %+v (err %v)", st, err)
		}
		time.Sleep(20 * time.Millisecond)
	}
	if st.Poll.Last.Seen != 2 || len(st.Sinks) != 1 || st.Sinks[0] != "slack" {
		t.Fatalf("status = %+v", st)
	}
}

func TestDiagnosticsFailureDoesNotStopPolling(t *testing.T) {
	adoSrv := httptest.NewServer(&fakeADO{boards: []map[string]any{{"name": "Stories", "id": 3}}})
	defer adoSrv.Close()
	slack := newFakeSlack()
	slackSrv := httptest.NewServer(slack)
	defer slackSrv.Close()

	a, err := New(context.Background(), Options{
		ConfigPath:   writeConfig(t, adoSrv.URL, ""),
		LookupEnv:    envWith(slackSrv.URL),
		HTTPClient:   slackSrv.Client(),
		DisableWatch: true,
	})
	if err != nil {
		t.Fatalf("New error: %v", err)
	}
	// A public bind without a token is refused when Serve starts.
	a.debug = pprof.New(pprof.Config{Addr: "0.0.0.0:0"}, logx.Nop(), nil, nil)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- a.Run(ctx) }()

	for i := 0; i < 2; i++ {
		select {
		case <-slack.got:
		case err := <-done:
			t.Fatalf("Run returned early: %v", err)
		case <-time.After(5 * time.Second):
			t.Fatal("no slack message")
		}
	}
	select {
	case err := <-done:
		t.Fatalf("Run returned while polling: %v", err)
	case <-time.After(100 * time.Millisecond):
	}
	cancel()
	if err := <-done; err != nil {
		t.Fatalf("Run error: %v", err)
	}
}

func TestCloseReleasesDebugListener(t *testing.T) {
	adoSrv := httptest.NewServer(&fakeADO{boards: []map[string]any{{"name": "Stories", "id": 3}}})
	defer adoSrv.Close()

	a, err := New(context.Background(), Options{
		ConfigPath: writeConfig(t, adoSrv.URL, `
debug:
  enabled: true
  addr: 127.0.0.1:0
`),
		LookupEnv:    envWith("http://127.0.0.1:1/hook"),
		DisableWatch: true,
	})
	if err != nil {
		t.Fatalf("New error: %v", err)
	}
	addr := a.debug.Addr()
	a.close()

	ln, err := net.Listen("tcp", addr)
	if err != nil {
		t.Fatalf("debug port still held after close: %v", err)
	}
	_ = ln.Close()
}
