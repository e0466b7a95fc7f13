package pipeline

import (
	"sync"

	"tabsentry/internal/logger"
)

// workerPool 固定数量的工作协程加有界队列，队列满时 submit 立即返回 false
type workerPool struct {
	jobs    chan func()
	mu      sync.RWMutex
	closed  bool
	pending sync.WaitGroup
	workers sync.WaitGroup
	log     logger.Logger
}

func newWorkerPool(workers, queue int, l logger.Logger) *workerPool {
	if l == nil {
		l = logger.NewNop()
	}
	if workers <= 0 {
		workers = 1
	}
	if queue < 0 {
		queue = 0
	}
	p := &workerPool{jobs: make(chan func(), queue), log: l}
	p.workers.Add(workers)
	for i := 0; i < workers; i++ {
		go p.run()
	}
	return p
}

func (p *workerPool) run() {
	defer p.workers.Done()
	for fn := range p.jobs {
		p.exec(fn)
	}
}

// exec 单个任务 panic 时记录并继续，不影响工作协程
func (p *workerPool) exec(fn func()) {
	defer p.pending.Done()
	defer func() {
		if r := recover(); r != nil {
			p.log.Error("分析任务异常，已跳过", "panic", r)
		}
	}()
	fn()
}

// submit 非阻塞提交任务
func (p *workerPool) submit(fn func()) bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.closed {
		return false
	}
	p.pending.Add(1)
	select {
	case p.jobs <- fn:
		return true
	default:
		p.pending.Done()
		return false
	}
}

// wait 等待已提交的任务全部完成
func (p *workerPool) wait() {
	p.pending.Wait()
}

// close 拒绝新任务，等待队列中的任务执行完毕
func (p *workerPool) close() {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return
	}
	p.closed = true
	close(p.jobs)
	p.mu.Unlock()
	p.workers.Wait()
}
