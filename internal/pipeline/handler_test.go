package pipeline

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"tabsentry/internal/broadcast"
	"tabsentry/internal/classify"
	"tabsentry/internal/codec"
	"tabsentry/internal/dedup"
	"tabsentry/internal/safety"
	"tabsentry/internal/storage"
	"tabsentry/pkg/model"
)

type emitted struct {
	channel string
	payload any
}

type recWindow struct {
	mu  sync.Mutex
	got []emitted
}

func (w *recWindow) ID() string        { return "main" }
func (w *recWindow) IsDestroyed() bool { return false }

func (w *recWindow) Emit(channel string, payload any) {
	w.mu.Lock()
	w.got = append(w.got, emitted{channel, payload})
	w.mu.Unlock()
}

func (w *recWindow) on(channel string) []any {
	w.mu.Lock()
	defer w.mu.Unlock()
	var out []any
	for _, e := range w.got {
		if e.channel == channel {
			out = append(out, e.payload)
		}
	}
	return out
}

func TestDexscreenerLineRunsTokenPathOnly(t *testing.T) {
	var phishingHits, evmHits atomic.Int32
	mux := http.NewServeMux()
	mux.HandleFunc("/phishing", func(w http.ResponseWriter, r *http.Request) {
		phishingHits.Add(1)
		_, _ = w.Write([]byte(`{"is_phishing":0}`))
	})
	mux.HandleFunc("/evm/", func(w http.ResponseWriter, r *http.Request) {
		evmHits.Add(1)
		_, _ = w.Write([]byte(`{"code":1,"result":{"0xabc":{"selfdestruct":"0","is_honeypot":"0","is_open_source":"1"}}}`))
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	dir := t.TempDir()
	tokens := storage.NewStore[model.TokenAnalysis](dir, "token-safety-cache", nil)
	svc := safety.New(safety.Options{
		PhishingURL:    srv.URL + "/phishing",
		EVMTokenURL:    srv.URL + "/evm",
		SolanaTokenURL: srv.URL + "/solana",
		TwitterURL:     srv.URL + "/twitter",
		MetadataURL:    srv.URL + "/metadata",
		Timeout:        2 * time.Second,
	}, storage.NewStore[model.URLSafetyResult](dir, "url-safety-cache", nil), tokens, nil)

	router := broadcast.NewRouter(nil)
	win := &recWindow{}
	router.Register(win)

	h := New(Config{
		Classifier: classify.New(),
		Gate:       dedup.New(1000, time.Hour),
		URLs:       svc,
		Tokens:     svc,
		Router:     router,
		Workers:    2,
		QueueSize:  8,
	})
	defer h.Close()

	dec := codec.NewDecoder(0, nil)
	for _, ev := range dec.Feed([]byte(`{"url":"https://dexscreener.com/ethereum/0xabc","active":true}` + "\n")) {
		h.Handle(ev)
	}
	h.Wait()

	data := win.on(model.ChannelMonitorData)
	if len(data) != 1 {
		t.Fatalf("monitor data broadcasts = %d, want 1", len(data))
	}
	if ev, ok := data[0].(model.BrowserTabEvent); !ok || ev.URL != "https://dexscreener.com/ethereum/0xabc" {
		t.Fatalf("raw event not forwarded: %#v", data[0])
	}
	if tokens.Len() != 1 || !tokens.Has("https://dexscreener.com/ethereum/0xabc") {
		t.Fatalf("expected one token cache entry, got %v", tokens.GetAll())
	}
	if n := len(win.on(model.ChannelUnsafeURL)); n != 0 {
		t.Fatalf("unsafe broadcasts = %d, want 0", n)
	}
	if phishingHits.Load() != 0 {
		t.Fatalf("phishing endpoint must not be called for token hosts")
	}
	if evmHits.Load() != 1 {
		t.Fatalf("evm hits = %d, want 1", evmHits.Load())
	}
	results := win.on(model.ChannelTokenSafety)
	if len(results) != 1 {
		t.Fatalf("token results = %d, want 1", len(results))
	}
	res := results[0].(model.TokenAnalysisResult)
	if !res.Success || res.Analysis == nil || res.Analysis.Twitter != nil {
		t.Fatalf("unexpected token result: %+v", res)
	}
}

type stubURLs struct {
	mu      sync.Mutex
	calls   []string
	verdict model.Verdict
	block   chan struct{}
}

func (s *stubURLs) CheckURLSafety(_ context.Context, url string, _ bool) model.URLSafetyResult {
	if s.block != nil {
		<-s.block
	}
	s.mu.Lock()
	s.calls = append(s.calls, url)
	s.mu.Unlock()
	return model.NewURLSafetyResult(url, s.verdict, time.Now().UnixMilli())
}

func (s *stubURLs) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.calls)
}

type stubRecorder struct {
	mu   sync.Mutex
	urls int
}

func (r *stubRecorder) RecordURL(context.Context, model.URLSafetyResult) error {
	r.mu.Lock()
	r.urls++
	r.mu.Unlock()
	return nil
}

func (r *stubRecorder) RecordToken(context.Context, model.TokenAnalysis) error { return nil }

func newStubHandler(urls *stubURLs, workers, queue int) (*Handler, *recWindow, *dedup.Gate, *stubRecorder) {
	router := broadcast.NewRouter(nil)
	win := &recWindow{}
	router.Register(win)
	gate := dedup.New(100, time.Hour)
	rec := &stubRecorder{}
	h := New(Config{
		Gate:      gate,
		URLs:      urls,
		History:   rec,
		Router:    router,
		Workers:   workers,
		QueueSize: queue,
	})
	return h, win, gate, rec
}

func TestPhishingResultBroadcastsUnsafe(t *testing.T) {
	urls := &stubURLs{verdict: model.VerdictPhishing}
	h, win, _, rec := newStubHandler(urls, 1, 4)
	defer h.Close()

	h.Handle(model.BrowserTabEvent{URL: "https://evil.example/login", Active: true})
	h.Handle(model.BrowserTabEvent{URL: "https://evil.example/login#again", Active: true})
	h.Wait()

	if urls.count() != 1 {
		t.Fatalf("duplicate url analyzed %d times", urls.count())
	}
	if len(win.on(model.ChannelURLSafetyResult)) != 1 || len(win.on(model.ChannelUnsafeURL)) != 1 {
		t.Fatalf("expected one result and one unsafe broadcast")
	}
	if len(win.on(model.ChannelMonitorData)) != 2 {
		t.Fatalf("every event must be forwarded")
	}
	if rec.urls != 1 {
		t.Fatalf("history records = %d, want 1", rec.urls)
	}
}

func TestNonActiveAndSpecialEventsAreNotAnalyzed(t *testing.T) {
	urls := &stubURLs{verdict: model.VerdictSafe}
	h, win, _, _ := newStubHandler(urls, 1, 4)
	defer h.Close()

	h.Handle(model.BrowserTabEvent{URL: "https://background.example/", Active: false})
	h.Handle(model.BrowserTabEvent{URL: "chrome://settings", Active: true})
	h.Handle(model.StoppedEvent(0))
	h.Handle(model.ErrorEvent("boom"))
	h.Handle(model.BrowserTabEvent{URL: "https://x.com/someone", Active: true})
	h.Wait()

	if urls.count() != 0 {
		t.Fatalf("no event should be analyzed, got %d", urls.count())
	}
	if n := len(win.on(model.ChannelMonitorData)); n != 5 {
		t.Fatalf("monitor data broadcasts = %d, want 5", n)
	}
	if n := len(win.on(model.ChannelURLSafetyResult)); n != 0 {
		t.Fatalf("unexpected safe results: %d", n)
	}
}

func TestFullQueueDropsAndUnmarks(t *testing.T) {
	block := make(chan struct{})
	urls := &stubURLs{verdict: model.VerdictSafe, block: block}
	h, _, gate, _ := newStubHandler(urls, 1, 1)
	defer h.Close()

	h.Handle(model.BrowserTabEvent{URL: "https://a.example/", Active: true})
	// 等待第一个任务被工作协程取走
	deadline := time.Now().Add(2 * time.Second)
	for len(h.pool.jobs) != 0 && time.Now().Before(deadline) {
		time.Sleep(time.Millisecond)
	}
	h.Handle(model.BrowserTabEvent{URL: "https://b.example/", Active: true})
	h.Handle(model.BrowserTabEvent{URL: "https://c.example/", Active: true})

	if gate.ShouldAnalyze("https://b.example/") {
		t.Fatalf("queued url should stay marked")
	}
	if !gate.ShouldAnalyze("https://c.example/") {
		t.Fatalf("dropped url must be unmarked")
	}

	close(block)
	h.Wait()
	got := strings.Join(urls.calls, ",")
	if urls.count() != 2 || strings.Contains(got, "c.example") {
		t.Fatalf("unexpected analyzed urls: %s", got)
	}
}
