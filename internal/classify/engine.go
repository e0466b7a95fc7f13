package classify

import (
	"net/url"
	"strings"
)

// Category 网址分类结果
type Category int

const (
	Skip Category = iota
	PhishingCandidate
	TokenCandidate
)

func (c Category) String() string {
	switch c {
	case PhishingCandidate:
		return "phishing"
	case TokenCandidate:
		return "token"
	default:
		return "skip"
	}
}

// CondType 条件类型
type CondType string

const (
	CondScheme CondType = "scheme"
	CondHost   CondType = "host"
	CondAny    CondType = "any"
)

// Condition 单条匹配条件
type Condition struct {
	Type    CondType
	Pattern string
}

// Rule 有序规则，首个命中的规则决定分类
type Rule struct {
	Name     string
	Category Category
	Cond     Condition
}

// 浏览器内部页面协议
var internalSchemes = []string{"about:", "chrome:", "edge:", "file:", "devtools:"}

// DefaultTokenHosts 代币浏览器与社交站点白名单
var DefaultTokenHosts = []string{
	"dexscreener.com",
	"gmgn.ai",
	"birdeye.so",
	"dextools.io",
	"pump.fun",
	"etherscan.io",
	"bscscan.com",
	"basescan.org",
	"solscan.io",
	"x.com",
	"twitter.com",
}

// Engine 网址分类引擎
type Engine struct {
	rules []Rule
}

// New 创建分类引擎，extraTokenHosts 追加在默认白名单之后
func New(extraTokenHosts ...string) *Engine {
	rules := make([]Rule, 0, len(internalSchemes)+len(DefaultTokenHosts)+len(extraTokenHosts)+1)
	for _, s := range internalSchemes {
		rules = append(rules, Rule{Name: "internal:" + s, Category: Skip, Cond: Condition{Type: CondScheme, Pattern: s}})
	}
	for _, h := range append(append([]string{}, DefaultTokenHosts...), extraTokenHosts...) {
		h = strings.ToLower(strings.TrimSpace(h))
		if h == "" {
			continue
		}
		rules = append(rules, Rule{Name: "token:" + h, Category: TokenCandidate, Cond: Condition{Type: CondHost, Pattern: h}})
	}
	rules = append(rules, Rule{Name: "default", Category: PhishingCandidate, Cond: Condition{Type: CondAny}})
	return &Engine{rules: rules}
}

// Classify 按规则顺序对网址分类
func (e *Engine) Classify(raw string) Category {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return Skip
	}
	lower := strings.ToLower(raw)
	host := hostOf(lower)
	for i := range e.rules {
		if cond(lower, host, e.rules[i].Cond) {
			return e.rules[i].Category
		}
	}
	return Skip
}

// Rules 返回当前规则列表副本
func (e *Engine) Rules() []Rule {
	out := make([]Rule, len(e.rules))
	copy(out, e.rules)
	return out
}

func cond(lower, host string, c Condition) bool {
	switch c.Type {
	case CondScheme:
		return strings.HasPrefix(lower, c.Pattern)
	case CondHost:
		return matchHost(host, c.Pattern)
	case CondAny:
		return true
	default:
		return false
	}
}

// matchHost 精确匹配或子域名后缀匹配
func matchHost(host, pattern string) bool {
	if host == "" {
		return false
	}
	return host == pattern || strings.HasSuffix(host, "."+pattern)
}

func hostOf(lower string) string {
	u, err := url.Parse(lower)
	if err == nil && u.Host != "" {
		return strings.TrimSuffix(u.Hostname(), ".")
	}
	// 无协议的网址按 host/path 处理
	s := lower
	if idx := strings.Index(s, "://"); idx != -1 {
		s = s[idx+3:]
	}
	if idx := strings.IndexAny(s, "/?#"); idx != -1 {
		s = s[:idx]
	}
	if idx := strings.LastIndex(s, "@"); idx != -1 {
		s = s[idx+1:]
	}
	if idx := strings.Index(s, ":"); idx != -1 {
		s = s[:idx]
	}
	return strings.TrimSuffix(s, ".")
}
