package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"tabsentry/internal/broadcast"
	"tabsentry/internal/classify"
	"tabsentry/internal/codec"
	"tabsentry/internal/config"
	"tabsentry/internal/dedup"
	"tabsentry/internal/logger"
	"tabsentry/internal/monitor"
	"tabsentry/internal/pipeline"
	"tabsentry/internal/safety"
	"tabsentry/internal/storage"
	"tabsentry/pkg/model"
)

// Service 组装监控、分析与广播组件
type Service struct {
	cfg      *config.Config
	log      logger.Logger
	router   *broadcast.Router
	gate     *dedup.Gate
	safety   *safety.Service
	history  *storage.History
	pipeline *pipeline.Handler
	monitor  *monitor.Service
}

// Options 构造选项，字段为空时使用配置生成的默认实现
type Options struct {
	Spawner monitor.Spawner
	Safety  *safety.Service
}

// New 按配置创建服务实例
func New(cfg *config.Config, l logger.Logger, opts ...Options) (*Service, error) {
	if l == nil {
		l = logger.NewNop()
	}
	var o Options
	if len(opts) > 0 {
		o = opts[0]
	}

	history, err := storage.OpenHistory(cfg.Sqlite.Dsn, cfg.Sqlite.Prefix, l)
	if err != nil {
		return nil, err
	}

	sf := o.Safety
	if sf == nil {
		sf = safety.New(
			safety.OptionsFromConfig(cfg.Safety),
			storage.NewStore[model.URLSafetyResult](cfg.Cache.Dir, cfg.Cache.URLStore, l),
			storage.NewStore[model.TokenAnalysis](cfg.Cache.Dir, cfg.Cache.TokenStore, l),
			l,
		)
	}

	var mon *monitor.Service
	router := broadcast.NewRouter(l)
	gate := dedup.New(cfg.Dedup.Capacity, cfg.CooldownDuration())
	handler := pipeline.New(pipeline.Config{
		Classifier: classify.New(cfg.Classifier.TokenHosts...),
		Gate:       gate,
		URLs:       sf,
		Tokens:     sf,
		History:    history,
		Router:     router,
		Workers:    cfg.Safety.Workers,
		QueueSize:  cfg.Safety.QueueSize,
		JobTimeout: jobTimeout(cfg),
		SessionID:  func() string { return string(mon.Status().SessionID) },
		Logger:     l,
	})

	spawner := o.Spawner
	if spawner == nil {
		spawner = &monitor.Launcher{
			BinDir:      cfg.Monitor.BinDir,
			ScriptPath:  cfg.Monitor.ScriptPath,
			Interpreter: cfg.Monitor.Interpreter,
			DevToolsURL: cfg.Monitor.DevToolsURL,
			Interval:    time.Duration(cfg.Monitor.PollIntervalMS) * time.Millisecond,
			Grace:       cfg.StopGrace(),
		}
	}
	mon = monitor.NewService(spawner, codec.NewDecoder(cfg.Monitor.MaxLineBytes, l), gate, handler, cfg.StopGrace(), l)

	return &Service{
		cfg:      cfg,
		log:      l,
		router:   router,
		gate:     gate,
		safety:   sf,
		history:  history,
		pipeline: handler,
		monitor:  mon,
	}, nil
}

// jobTimeout 单个分析任务的上限，覆盖全部重试与退避
func jobTimeout(cfg *config.Config) time.Duration {
	per := time.Duration(cfg.Safety.TimeoutMS) * time.Millisecond
	attempts := cfg.Safety.RetryAttempts + 1
	backoff := time.Duration(cfg.Safety.RetryBackoffMS) * time.Millisecond
	return per*time.Duration(attempts) + backoff*time.Duration(attempts*attempts) + time.Second
}

// recordContext 写历史时附带当前监控会话
func (s *Service) recordContext(ctx context.Context) context.Context {
	return storage.WithSessionID(ctx, string(s.monitor.Status().SessionID))
}

// Router 返回广播路由，供界面层注册窗口
func (s *Service) Router() *broadcast.Router {
	return s.router
}

// StartBrowserMonitoring 启动浏览器监控
func (s *Service) StartBrowserMonitoring(ctx context.Context) model.OperationResult {
	return s.monitor.Start(ctx)
}

// StopBrowserMonitoring 停止浏览器监控
func (s *Service) StopBrowserMonitoring() model.OperationResult {
	return s.monitor.Stop()
}

// GetBrowserMonitoringStatus 获取监控状态
func (s *Service) GetBrowserMonitoringStatus() model.MonitorStatus {
	return s.monitor.Status()
}

// CheckURLSafety 手动检测网址
func (s *Service) CheckURLSafety(ctx context.Context, url string, force bool) model.URLSafetyResult {
	r := s.safety.CheckURLSafety(ctx, url, force)
	if err := s.history.RecordURL(s.recordContext(ctx), r); err != nil {
		s.log.Err(err, "记录网址历史失败", "url", r.URL)
	}
	return r
}

// ClearURLSafetyCache 清空网址缓存，同时重置去重记录以便立即重新检测
func (s *Service) ClearURLSafetyCache() model.ClearResult {
	if err := s.safety.ClearURLCache(); err != nil {
		s.log.Err(err, "清空网址缓存失败")
		return model.ClearResult{Success: false}
	}
	s.gate.Clear()
	return model.ClearResult{Success: true}
}

// CheckTokenSafety 检测代币合约
func (s *Service) CheckTokenSafety(ctx context.Context, ca, chain string) (model.TokenSafety, error) {
	return s.safety.CheckTokenSafety(ctx, ca, chain)
}

// TokenAnalysisByToken 代币综合分析
func (s *Service) TokenAnalysisByToken(ctx context.Context, ca, chain string) model.TokenAnalysisResult {
	a, err := s.safety.TokenAnalysisByToken(ctx, ca, chain)
	if err != nil {
		if !errors.Is(err, model.ErrUnknownChain) {
			s.log.Err(err, "代币分析失败", "ca", ca, "chain", chain)
		}
		return model.TokenAnalysisResult{Success: false, Message: err.Error()}
	}
	if err := s.history.RecordToken(s.recordContext(ctx), a); err != nil {
		s.log.Err(err, "记录代币历史失败", "ca", ca)
	}
	return model.TokenAnalysisResult{Success: true, Analysis: &a}
}

// GetAnalysisHistory 查询最近的分析记录
func (s *Service) GetAnalysisHistory(ctx context.Context, limit int) ([]model.HistoryEntry, error) {
	return s.history.Recent(ctx, limit)
}

// Close 停止监控、等待分析任务并关闭数据库
func (s *Service) Close(ctx context.Context) error {
	var errs []error
	if err := s.monitor.Shutdown(ctx); err != nil {
		errs = append(errs, fmt.Errorf("stop monitor: %w", err))
	}
	s.pipeline.Close()
	if err := s.history.Close(); err != nil {
		errs = append(errs, fmt.Errorf("close history: %w", err))
	}
	return errors.Join(errs...)
}
