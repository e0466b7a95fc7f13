package broadcast

import (
	"sort"
	"sync"

	"tabsentry/internal/logger"
)

// Window 可接收事件的渲染窗口
type Window interface {
	ID() string
	IsDestroyed() bool
	Emit(channel string, payload any)
}

// Router 将事件广播到所有存活窗口，或发送到指定窗口
type Router struct {
	mu      sync.RWMutex
	windows map[string]Window
	mainID  string
	log     logger.Logger
}

// NewRouter 创建广播路由
func NewRouter(l logger.Logger) *Router {
	if l == nil {
		l = logger.NewNop()
	}
	return &Router{
		windows: make(map[string]Window),
		log:     l,
	}
}

// Register 注册窗口，首个注册的窗口默认作为主窗口
func (r *Router) Register(w Window) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.windows[w.ID()] = w
	if r.mainID == "" {
		r.mainID = w.ID()
	}
	r.log.Info("注册窗口", "windowID", w.ID())
}

// Unregister 注销窗口
func (r *Router) Unregister(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.windows, id)
	if r.mainID == id {
		r.mainID = ""
	}
	r.log.Info("注销窗口", "windowID", id)
}

// SetMain 指定主窗口
func (r *Router) SetMain(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.mainID = id
}

// Windows 返回所有已注册窗口，按 ID 排序
func (r *Router) Windows() []Window {
	r.mu.RLock()
	defer r.mu.RUnlock()
	list := make([]Window, 0, len(r.windows))
	for _, w := range r.windows {
		list = append(list, w)
	}
	sort.Slice(list, func(i, j int) bool { return list[i].ID() < list[j].ID() })
	return list
}

// Broadcast 发送到所有存活窗口，返回成功发送的窗口数
func (r *Router) Broadcast(channel string, payload any) int {
	sent := 0
	for _, w := range r.Windows() {
		if r.emit(w, channel, payload) {
			sent++
		}
	}
	return sent
}

// SendToWindow 发送到指定窗口
func (r *Router) SendToWindow(id, channel string, payload any) bool {
	r.mu.RLock()
	w, ok := r.windows[id]
	r.mu.RUnlock()
	if !ok {
		return false
	}
	return r.emit(w, channel, payload)
}

// SendToMain 发送到主窗口
func (r *Router) SendToMain(channel string, payload any) bool {
	r.mu.RLock()
	id := r.mainID
	r.mu.RUnlock()
	if id == "" {
		return false
	}
	return r.SendToWindow(id, channel, payload)
}

// emit 发送前检查窗口存活，发送过程中的 panic 视为窗口已销毁
func (r *Router) emit(w Window, channel string, payload any) (ok bool) {
	if w.IsDestroyed() {
		return false
	}
	defer func() {
		if p := recover(); p != nil {
			r.log.Warn("窗口发送失败，已跳过", "windowID", w.ID(), "channel", channel, "panic", p)
			ok = false
		}
	}()
	w.Emit(channel, payload)
	return true
}
