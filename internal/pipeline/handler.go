package pipeline

import (
	"context"
	"time"

	"tabsentry/internal/classify"
	"tabsentry/internal/logger"
	"tabsentry/internal/safety"
	"tabsentry/internal/storage"
	"tabsentry/pkg/model"
)

// URLChecker 网址钓鱼检测
type URLChecker interface {
	CheckURLSafety(ctx context.Context, url string, force bool) model.URLSafetyResult
}

// TokenAnalyzer 代币页面综合分析
type TokenAnalyzer interface {
	AnalyzeTokenPage(ctx context.Context, pageURL, chain, ca string) (model.TokenAnalysis, error)
}

// Recorder 分析历史记录
type Recorder interface {
	RecordURL(ctx context.Context, r model.URLSafetyResult) error
	RecordToken(ctx context.Context, a model.TokenAnalysis) error
}

// Broadcaster 事件广播
type Broadcaster interface {
	Broadcast(channel string, payload any) int
}

// Gate 分析去重
type Gate interface {
	ShouldAnalyze(url string) bool
	MarkAnalyzed(url string)
	Forget(url string)
}

// Handler 标签页事件处理器，负责分类、去重、调度分析和结果广播
type Handler struct {
	classifier *classify.Engine
	gate       Gate
	urls       URLChecker
	tokens     TokenAnalyzer
	history    Recorder
	router     Broadcaster
	pool       *workerPool
	timeout    time.Duration
	session    func() string
	log        logger.Logger
}

// Config 配置选项
type Config struct {
	Classifier *classify.Engine
	Gate       Gate
	URLs       URLChecker
	Tokens     TokenAnalyzer
	History    Recorder
	Router     Broadcaster
	Workers    int
	QueueSize  int
	JobTimeout time.Duration
	// SessionID 返回当前监控会话，写入历史时附带在上下文中
	SessionID func() string
	Logger    logger.Logger
}

// New 创建事件处理器
func New(cfg Config) *Handler {
	l := cfg.Logger
	if l == nil {
		l = logger.NewNop()
	}
	if cfg.Classifier == nil {
		cfg.Classifier = classify.New()
	}
	if cfg.JobTimeout <= 0 {
		cfg.JobTimeout = time.Minute
	}
	if cfg.SessionID == nil {
		cfg.SessionID = func() string { return "" }
	}
	return &Handler{
		classifier: cfg.Classifier,
		gate:       cfg.Gate,
		urls:       cfg.URLs,
		tokens:     cfg.Tokens,
		history:    cfg.History,
		router:     cfg.Router,
		pool:       newWorkerPool(cfg.Workers, cfg.QueueSize, l),
		timeout:    cfg.JobTimeout,
		session:    cfg.SessionID,
		log:        l.With("component", "pipeline"),
	}
}

// Handle 处理一条解码后的事件：先原样广播，再对活动标签页触发分析
func (h *Handler) Handle(ev model.BrowserTabEvent) {
	h.router.Broadcast(model.ChannelMonitorData, ev)

	if ev.Kind() != model.KindTab || !ev.Active || ev.URL == "" {
		return
	}

	switch cat := h.classifier.Classify(ev.URL); cat {
	case classify.PhishingCandidate:
		h.dispatch(ev.URL, func(ctx context.Context) { h.checkURL(ctx, ev.URL) })
	case classify.TokenCandidate:
		target, err := classify.ExtractTokenTarget(ev.URL)
		if err != nil {
			h.log.Debug("代币页面未识别出合约", "url", ev.URL)
			return
		}
		h.dispatch(ev.URL, func(ctx context.Context) { h.analyzeToken(ctx, ev.URL, target) })
	default:
		h.log.Debug("跳过网址", "url", ev.URL, "category", cat.String())
	}
}

// gateKey 去重键使用规范化网址，无法规范化时使用原始值
func gateKey(raw string) string {
	if k, err := safety.NormalizeURL(raw); err == nil {
		return k
	}
	return raw
}

// dispatch 去重后提交到工作池，队列满时降级丢弃并撤销标记
func (h *Handler) dispatch(rawURL string, job func(ctx context.Context)) {
	key := gateKey(rawURL)
	if !h.gate.ShouldAnalyze(key) {
		return
	}
	h.gate.MarkAnalyzed(key)

	session := h.session()
	submitted := h.pool.submit(func() {
		ctx, cancel := context.WithTimeout(storage.WithSessionID(context.Background(), session), h.timeout)
		defer cancel()
		job(ctx)
	})
	if !submitted {
		h.gate.Forget(key)
		h.log.Warn("执行降级策略：分析队列已满，丢弃任务", "url", key)
	}
}

func (h *Handler) checkURL(ctx context.Context, rawURL string) {
	r := h.urls.CheckURLSafety(ctx, rawURL, false)
	h.router.Broadcast(model.ChannelURLSafetyResult, r)
	if r.IsPhishing {
		h.log.Warn("检测到钓鱼网址", "url", r.URL, "riskLevel", r.RiskLevel)
		h.router.Broadcast(model.ChannelUnsafeURL, r)
	}
	if h.history != nil {
		if err := h.history.RecordURL(ctx, r); err != nil {
			h.log.Err(err, "记录网址历史失败", "url", r.URL)
		}
	}
}

func (h *Handler) analyzeToken(ctx context.Context, pageURL string, t classify.TokenTarget) {
	a, err := h.tokens.AnalyzeTokenPage(ctx, pageURL, t.Chain, t.CA)
	if err != nil {
		h.log.Err(err, "代币分析失败", "url", pageURL, "chain", t.Chain, "ca", t.CA)
		h.router.Broadcast(model.ChannelTokenSafety, model.TokenAnalysisResult{Success: false, Message: err.Error()})
		return
	}
	h.router.Broadcast(model.ChannelTokenSafety, model.TokenAnalysisResult{Success: true, Analysis: &a})
	if h.history != nil {
		if err := h.history.RecordToken(ctx, a); err != nil {
			h.log.Err(err, "记录代币历史失败", "url", a.PageURL)
		}
	}
}

// Wait 等待已调度的分析任务完成
func (h *Handler) Wait() {
	h.pool.wait()
}

// Close 停止接收新任务并等待队列清空
func (h *Handler) Close() {
	h.pool.close()
}
