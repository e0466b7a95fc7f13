package dedup

import (
	"container/list"
	"sync"
	"time"
)

const (
	DefaultCapacity = 1000
	DefaultCooldown = time.Hour
)

type entry struct {
	url    string
	marked time.Time
}

// Gate 分析触发去重闸门：按插入顺序保存已分析网址，超出容量时淘汰最早的条目，
// 冷却时间到期后条目自动失效
type Gate struct {
	mu       sync.Mutex
	capacity int
	cooldown time.Duration
	order    *list.List
	index    map[string]*list.Element
	now      func() time.Time
}

// Option 闸门可选配置
type Option func(*Gate)

// WithClock 注入时钟，用于测试
func WithClock(now func() time.Time) Option {
	return func(g *Gate) { g.now = now }
}

// New 创建去重闸门
func New(capacity int, cooldown time.Duration, opts ...Option) *Gate {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	if cooldown <= 0 {
		cooldown = DefaultCooldown
	}
	g := &Gate{
		capacity: capacity,
		cooldown: cooldown,
		order:    list.New(),
		index:    make(map[string]*list.Element),
		now:      time.Now,
	}
	for _, o := range opts {
		o(g)
	}
	return g
}

// ShouldAnalyze 网址不在冷却期内时返回 true
func (g *Gate) ShouldAnalyze(url string) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	el, ok := g.index[url]
	if !ok {
		return true
	}
	if g.expired(el.Value.(*entry)) {
		g.remove(el)
		return true
	}
	return false
}

// MarkAnalyzed 记录网址，超过容量时淘汰最早插入的一条
func (g *Gate) MarkAnalyzed(url string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if el, ok := g.index[url]; ok {
		g.remove(el)
	}
	g.index[url] = g.order.PushBack(&entry{url: url, marked: g.now()})
	if g.order.Len() > g.capacity {
		g.remove(g.order.Front())
	}
}

// Forget 移除网址，分析任务未能提交时调用
func (g *Gate) Forget(url string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if el, ok := g.index[url]; ok {
		g.remove(el)
	}
}

// Clear 清空闸门
func (g *Gate) Clear() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.order.Init()
	g.index = make(map[string]*list.Element)
}

// Len 当前条目数（包含尚未清理的过期条目）
func (g *Gate) Len() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.order.Len()
}

func (g *Gate) expired(e *entry) bool {
	return g.now().Sub(e.marked) >= g.cooldown
}

func (g *Gate) remove(el *list.Element) {
	e := g.order.Remove(el).(*entry)
	delete(g.index, e.url)
}
