package broadcast

import (
	"sync"
	"testing"
)

type fakeWindow struct {
	id        string
	mu        sync.Mutex
	destroyed bool
	got       []string
	onEmit    func()
}

func (w *fakeWindow) ID() string { return w.id }

func (w *fakeWindow) IsDestroyed() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.destroyed
}

func (w *fakeWindow) Emit(channel string, payload any) {
	w.mu.Lock()
	if w.destroyed {
		w.mu.Unlock()
		panic("object has been destroyed")
	}
	w.got = append(w.got, channel)
	w.mu.Unlock()
	if w.onEmit != nil {
		w.onEmit()
	}
}

func (w *fakeWindow) destroy() {
	w.mu.Lock()
	w.destroyed = true
	w.mu.Unlock()
}

func (w *fakeWindow) count() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return len(w.got)
}

func TestBroadcastSkipsWindowDestroyedMidSend(t *testing.T) {
	r := NewRouter(nil)
	a := &fakeWindow{id: "a"}
	b := &fakeWindow{id: "b"}
	c := &fakeWindow{id: "c"}
	// a 发送时关闭 b，b 在枚举之后、发送之前被销毁
	a.onEmit = b.destroy
	r.Register(a)
	r.Register(b)
	r.Register(c)

	sent := r.Broadcast("browser-monitor-data", map[string]any{"url": "https://x"})
	if sent != 2 {
		t.Fatalf("sent = %d, want 2", sent)
	}
	if a.count() != 1 || b.count() != 0 || c.count() != 1 {
		t.Fatalf("unexpected deliveries a=%d b=%d c=%d", a.count(), b.count(), c.count())
	}
}

type panickyWindow struct{ fakeWindow }

func (w *panickyWindow) IsDestroyed() bool { return false }

func (w *panickyWindow) Emit(string, any) { panic("renderer gone") }

func TestBroadcastRecoversFromPanickingEmit(t *testing.T) {
	r := NewRouter(nil)
	bad := &panickyWindow{fakeWindow{id: "a"}}
	good := &fakeWindow{id: "b"}
	r.Register(bad)
	r.Register(good)

	if sent := r.Broadcast("x", nil); sent != 1 {
		t.Fatalf("sent = %d, want 1", sent)
	}
	if good.count() != 1 {
		t.Fatalf("live window missed the event")
	}
}

func TestSendToWindowAndMain(t *testing.T) {
	r := NewRouter(nil)
	main := &fakeWindow{id: "main"}
	popup := &fakeWindow{id: "popup"}
	r.Register(main)
	r.Register(popup)

	if !r.SendToMain("unsafe-url-detected", nil) {
		t.Fatalf("SendToMain failed")
	}
	if main.count() != 1 || popup.count() != 0 {
		t.Fatalf("main routing wrong")
	}
	if !r.SendToWindow("popup", "x", nil) || popup.count() != 1 {
		t.Fatalf("SendToWindow failed")
	}
	if r.SendToWindow("missing", "x", nil) {
		t.Fatalf("SendToWindow to unknown id should be false")
	}

	popup.destroy()
	if r.SendToWindow("popup", "x", nil) {
		t.Fatalf("destroyed window should be skipped")
	}

	r.Unregister("main")
	if r.SendToMain("x", nil) {
		t.Fatalf("no main window after unregister")
	}
	r.SetMain("popup")
	if len(r.Windows()) != 1 {
		t.Fatalf("windows = %d, want 1", len(r.Windows()))
	}
}
