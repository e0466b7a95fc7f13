package observer

import (
	"context"
	"encoding/json"
	"io"
	"sync"
	"time"

	cdpadapter "tabsentry/internal/adapter/cdp"
	"tabsentry/internal/logger"
	"tabsentry/pkg/model"

	"github.com/mafredri/cdp/devtool"
)

// DevTools 浏览器调试端点
type DevTools interface {
	List(ctx context.Context) ([]*devtool.Target, error)
	Version(ctx context.Context) (*devtool.Version, error)
}

// Watcher 轮询 DevTools 目标列表，活动标签页变化时输出一行 JSON
type Watcher struct {
	dt       DevTools
	interval time.Duration
	timeout  time.Duration
	now      func() time.Time
	log      logger.Logger

	mu      sync.Mutex
	enc     *json.Encoder
	process string
	lastURL string
	lastTit string
	lastErr string
}

// New 创建观察器
func New(dt DevTools, interval time.Duration, out io.Writer, l logger.Logger) *Watcher {
	if l == nil {
		l = logger.NewNop()
	}
	if interval <= 0 {
		interval = time.Second
	}
	return &Watcher{
		dt:       dt,
		interval: interval,
		timeout:  3 * time.Second,
		now:      time.Now,
		log:      l,
		enc:      json.NewEncoder(out),
	}
}

// Poll 执行一次轮询，返回是否输出了事件
func (w *Watcher) Poll(ctx context.Context) bool {
	ctx, cancel := context.WithTimeout(ctx, w.timeout)
	defer cancel()

	targets, err := w.dt.List(ctx)
	if err != nil {
		return w.reportError(err)
	}
	w.mu.Lock()
	w.lastErr = ""
	needVersion := w.process == ""
	w.mu.Unlock()

	if needVersion {
		if v, err := w.dt.Version(ctx); err == nil {
			w.mu.Lock()
			w.process = cdpadapter.BrowserName(v)
			w.mu.Unlock()
		} else {
			w.log.Debug("获取浏览器版本失败", "error", err)
		}
	}

	page := cdpadapter.ActivePage(targets)
	if page == nil {
		return false
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	if page.URL == w.lastURL && page.Title == w.lastTit {
		return false
	}
	w.lastURL, w.lastTit = page.URL, page.Title
	return w.emitLocked(cdpadapter.ToTabEvent(page, w.process, true, w.now().UnixMilli()))
}

// reportError 同一错误只输出一次，恢复后再次出错会重新输出
func (w *Watcher) reportError(err error) bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	msg := err.Error()
	if msg == w.lastErr {
		return false
	}
	w.lastErr = msg
	// 错误已作为事件写到标准输出，标准错误上只留调试日志，避免父进程重复上报
	w.log.Debug("读取 DevTools 目标失败", "error", err)
	return w.emitLocked(model.ErrorEvent(msg))
}

func (w *Watcher) emitLocked(ev model.BrowserTabEvent) bool {
	if err := w.enc.Encode(ev); err != nil {
		w.log.Err(err, "写出事件失败")
		return false
	}
	return true
}

// Run 按间隔轮询直到 ctx 结束，结束时输出停止事件
func (w *Watcher) Run(ctx context.Context) {
	w.Poll(ctx)
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			w.mu.Lock()
			w.emitLocked(model.BrowserTabEvent{Status: model.StatusStopped})
			w.mu.Unlock()
			return
		case <-ticker.C:
			w.Poll(ctx)
		}
	}
}
