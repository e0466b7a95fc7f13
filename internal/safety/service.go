package safety

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"tabsentry/internal/config"
	"tabsentry/internal/logger"
	"tabsentry/internal/storage"
	"tabsentry/pkg/model"

	"github.com/tidwall/sjson"
)

// Options 安全分析后端参数
type Options struct {
	PhishingURL    string
	EVMTokenURL    string
	SolanaTokenURL string
	TwitterURL     string
	MetadataURL    string
	Lang           string
	Timeout        time.Duration
	TTL            time.Duration
	RetryAttempts  int
	RetryBackoff   time.Duration
}

// OptionsFromConfig 从配置构造后端参数
func OptionsFromConfig(c config.SafetyConfig) Options {
	return Options{
		PhishingURL:    c.PhishingURL,
		EVMTokenURL:    c.EVMTokenURL,
		SolanaTokenURL: c.SolanaTokenURL,
		TwitterURL:     c.TwitterURL,
		MetadataURL:    c.MetadataURL,
		Lang:           c.Lang,
		Timeout:        time.Duration(c.TimeoutMS) * time.Millisecond,
		TTL:            time.Duration(c.CacheTTLHours) * time.Hour,
		RetryAttempts:  c.RetryAttempts,
		RetryBackoff:   time.Duration(c.RetryBackoffMS) * time.Millisecond,
	}
}

// Option 服务可选项
type Option func(*Service)

// WithClock 替换时间源
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// WithHTTPClient 替换 HTTP 客户端
func WithHTTPClient(c *http.Client) Option {
	return func(s *Service) { s.client = c }
}

// Service 网址钓鱼检测与代币安全分析
type Service struct {
	opts   Options
	client *http.Client
	urls   *storage.Store[model.URLSafetyResult]
	tokens *storage.Store[model.TokenAnalysis]
	now    func() time.Time
	log    logger.Logger
}

// New 创建安全分析服务
func New(opts Options, urls *storage.Store[model.URLSafetyResult], tokens *storage.Store[model.TokenAnalysis], l logger.Logger, o ...Option) *Service {
	if l == nil {
		l = logger.NewNop()
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 10 * time.Second
	}
	if opts.TTL <= 0 {
		opts.TTL = 24 * time.Hour
	}
	if opts.Lang == "" {
		opts.Lang = "en"
	}
	s := &Service{
		opts:   opts,
		client: &http.Client{},
		urls:   urls,
		tokens: tokens,
		now:    time.Now,
		log:    l.With("component", "safety"),
	}
	for _, fn := range o {
		fn(s)
	}
	return s
}

// fresh 判断缓存条目是否仍在有效期内，有效期从条目创建时间算起
func (s *Service) fresh(ts int64) bool {
	return s.now().Sub(time.UnixMilli(ts)) < s.opts.TTL
}

// CheckURLSafety 检测网址是否为钓鱼网站，从不返回错误，失败时给出 unknown 结论
func (s *Service) CheckURLSafety(ctx context.Context, rawURL string, force bool) model.URLSafetyResult {
	key, err := NormalizeURL(rawURL)
	if err != nil {
		r := model.NewURLSafetyResult(rawURL, model.VerdictUnknown, s.now().UnixMilli())
		r.Message = err.Error()
		return r
	}

	if !force {
		if cached, ok := s.urls.Get(key); ok && s.fresh(cached.Timestamp) {
			s.log.Debug("命中网址缓存", "url", key, "verdict", cached.Verdict)
			return cached
		}
	}

	r, err := s.fetchPhishing(ctx, key)
	if err != nil {
		s.log.Warn("网址检测失败", "url", key, "error", err)
		r = model.NewURLSafetyResult(key, model.VerdictUnknown, s.now().UnixMilli())
		r.Message = err.Error()
	}
	if err := s.urls.Set(key, r); err != nil {
		s.log.Err(err, "写入网址缓存失败", "url", key)
	}
	return r
}

// fetchPhishing 调用钓鱼检测接口
func (s *Service) fetchPhishing(ctx context.Context, key string) (model.URLSafetyResult, error) {
	body, _ := sjson.SetBytes([]byte(`{}`), "url", key)
	body, _ = sjson.SetBytes(body, "lang", s.opts.Lang)

	res, err := s.doJSON(ctx, http.MethodPost, s.opts.PhishingURL, body)
	if err != nil {
		return model.URLSafetyResult{}, err
	}

	flag := pick(res, "data.is_phishing", "is_phishing", "data.isPhishing", "isPhishing")
	if !flag.Exists() {
		return model.URLSafetyResult{}, fmt.Errorf("%w: response has no is_phishing field", ErrBackend)
	}
	verdict := model.VerdictSafe
	if truthy(flag) {
		verdict = model.VerdictPhishing
	}
	r := model.NewURLSafetyResult(key, verdict, s.now().UnixMilli())
	r.RiskLevel = pick(res, "data.risk_level", "risk_level", "data.riskLevel").String()
	r.Message = pick(res, "data.message", "message").String()
	if score := pick(res, "data.risk_score", "risk_score", "data.riskScore"); score.Exists() {
		v := int(score.Int())
		r.RiskScore = &v
	}
	return r, nil
}

// ClearURLCache 清空网址检测缓存
func (s *Service) ClearURLCache() error {
	if err := s.urls.Clear(); err != nil {
		return fmt.Errorf("clear url cache: %w", err)
	}
	s.log.Info("网址缓存已清空")
	return nil
}
