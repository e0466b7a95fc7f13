package monitor

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"tabsentry/internal/codec"
	"tabsentry/internal/logger"
	"tabsentry/pkg/model"

	"github.com/google/uuid"
)

var ErrStillStopping = errors.New("previous monitor process is still stopping")

// State 监控生命周期状态
type State string

const (
	StateStopped  State = "stopped"
	StateStarting State = "starting"
	StateRunning  State = "running"
	StateStopping State = "stopping"
)

// Spawner 启动监控子进程
type Spawner interface {
	Start(h Hooks) (Handle, error)
}

// EventHandler 接收解码后的标签页事件
type EventHandler interface {
	Handle(ev model.BrowserTabEvent)
}

// Resetter 每次启动时清空的去重状态
type Resetter interface {
	Clear()
}

// Service 管理监控子进程的启停与输出解码
type Service struct {
	mu        sync.Mutex
	spawner   Spawner
	decoder   *codec.Decoder
	gate      Resetter
	handler   EventHandler
	grace     time.Duration
	state     State
	proc      Handle
	gen       uint64
	session   model.SessionID
	startedAt int64
	log       logger.Logger
}

// NewService 创建监控服务
func NewService(sp Spawner, dec *codec.Decoder, gate Resetter, h EventHandler, grace time.Duration, l logger.Logger) *Service {
	if l == nil {
		l = logger.NewNop()
	}
	if grace <= 0 {
		grace = 2 * time.Second
	}
	return &Service{
		spawner: sp,
		decoder: dec,
		gate:    gate,
		handler: h,
		grace:   grace,
		state:   StateStopped,
		log:     l.With("component", "monitor"),
	}
}

// Start 启动监控，已在运行时直接返回成功；上一个进程仍在退出时先等待其结束
func (s *Service) Start(ctx context.Context) model.OperationResult {
	s.mu.Lock()
	for s.state == StateStopping {
		old := s.proc
		s.mu.Unlock()
		select {
		case <-old.Done():
		case <-time.After(s.grace + time.Second):
			s.log.Warn("等待旧监控进程退出超时", "pid", old.Pid())
			return model.OperationResult{Success: false, Message: ErrStillStopping.Error()}
		case <-ctx.Done():
			return model.OperationResult{Success: false, Message: ctx.Err().Error()}
		}
		s.mu.Lock()
	}
	defer s.mu.Unlock()

	if s.state == StateRunning || s.state == StateStarting {
		return model.OperationResult{Success: true, Message: "browser monitoring already running"}
	}

	s.state = StateStarting
	s.gate.Clear()
	s.decoder.Reset()
	s.gen++
	gen := s.gen

	h, err := s.spawner.Start(Hooks{
		Stdout: func(chunk []byte) { s.onStdout(gen, chunk) },
		Stderr: func(chunk []byte) { s.onStderr(gen, chunk) },
		Exit:   func(code int, err error) { s.onExit(gen, code, err) },
	})
	if err != nil {
		s.state = StateStopped
		s.log.Err(err, "启动监控进程失败")
		return model.OperationResult{Success: false, Message: err.Error()}
	}

	s.proc = h
	s.session = model.SessionID(uuid.New().String())
	s.startedAt = time.Now().UnixMilli()
	s.state = StateRunning
	s.log.Info("监控进程已启动", "pid", h.Pid(), "session", s.session)
	return model.OperationResult{Success: true, Message: "browser monitoring started"}
}

// Stop 请求停止监控，不等待进程退出
func (s *Service) Stop() model.OperationResult {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch s.state {
	case StateStopped:
		return model.OperationResult{Success: true, Message: "browser monitoring is not running"}
	case StateStopping:
		return model.OperationResult{Success: true, Message: "browser monitoring is stopping"}
	}
	s.state = StateStopping
	s.proc.Stop()
	s.log.Info("已请求停止监控进程", "pid", s.proc.Pid())
	return model.OperationResult{Success: true, Message: "browser monitoring stopped"}
}

// Shutdown 停止监控并等待进程退出或 ctx 结束
func (s *Service) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	p := s.proc
	s.mu.Unlock()
	if p == nil {
		return nil
	}
	s.Stop()
	select {
	case <-p.Done():
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Status 返回当前监控状态
func (s *Service) Status() model.MonitorStatus {
	s.mu.Lock()
	defer s.mu.Unlock()
	st := model.MonitorStatus{
		IsRunning: s.state == StateRunning,
		State:     string(s.state),
		SessionID: s.session,
		StartedAt: s.startedAt,
	}
	if s.proc != nil {
		st.PID = s.proc.Pid()
	}
	return st
}

func (s *Service) onStdout(gen uint64, chunk []byte) {
	s.mu.Lock()
	if gen != s.gen {
		s.mu.Unlock()
		return
	}
	events := s.decoder.Feed(chunk)
	s.mu.Unlock()
	for _, ev := range events {
		s.handler.Handle(ev)
	}
}

func (s *Service) onStderr(gen uint64, chunk []byte) {
	msg := strings.TrimSpace(string(chunk))
	if msg == "" {
		return
	}
	s.mu.Lock()
	stale := gen != s.gen
	s.mu.Unlock()
	if stale {
		return
	}
	s.log.Warn("监控进程错误输出", "stderr", msg)
	s.handler.Handle(model.ErrorEvent(msg))
}

func (s *Service) onExit(gen uint64, code int, err error) {
	s.mu.Lock()
	if gen != s.gen {
		s.mu.Unlock()
		return
	}
	prev := s.state
	s.state = StateStopped
	s.proc = nil
	s.session = ""
	s.startedAt = 0
	s.mu.Unlock()

	if prev == StateRunning {
		s.log.Warn("监控进程意外退出", "code", code, "error", err)
	} else {
		s.log.Info("监控进程已退出", "code", code)
	}
	s.handler.Handle(model.StoppedEvent(code))
}
