package model

import (
	"errors"
	"strings"
)

type SessionID string

// IPC 通道名称
const (
	ChannelMonitorData     = "browser-monitor-data"
	ChannelUnsafeURL       = "unsafe-url-detected"
	ChannelURLSafetyResult = "url-safety-result"
	ChannelTokenSafety     = "token-safety-result"
)

// EventKind 标签页事件的判别类型
type EventKind int

const (
	KindInvalid EventKind = iota
	KindTab
	KindStatus
	KindError
)

func (k EventKind) String() string {
	switch k {
	case KindTab:
		return "tab"
	case KindStatus:
		return "status"
	case KindError:
		return "error"
	default:
		return "invalid"
	}
}

// StatusStopped 监控进程退出时的状态标记
const StatusStopped = "stopped"

// BrowserTabEvent 浏览器标签页的一次观测
type BrowserTabEvent struct {
	URL       string `json:"url,omitempty"`
	Title     string `json:"title,omitempty"`
	Process   string `json:"process,omitempty"`
	Active    bool   `json:"active"`
	Timestamp int64  `json:"timestamp,omitempty"`
	Status    string `json:"status,omitempty"`
	Code      *int   `json:"code,omitempty"`
	Error     bool   `json:"error,omitempty"`
	Message   string `json:"message,omitempty"`
}

// Kind 判断事件类型：状态、错误或普通标签页数据
func (e BrowserTabEvent) Kind() EventKind {
	switch {
	case e.Error:
		if e.URL != "" {
			return KindInvalid
		}
		return KindError
	case e.Status != "":
		if e.URL != "" {
			return KindInvalid
		}
		return KindStatus
	case e.URL != "" || e.Title != "":
		return KindTab
	default:
		return KindInvalid
	}
}

var ErrInvalidEvent = errors.New("invalid tab event")

// Validate 校验事件满足三选一约束
func (e BrowserTabEvent) Validate() error {
	if e.Kind() == KindInvalid {
		return ErrInvalidEvent
	}
	return nil
}

// StoppedEvent 构造进程停止事件
func StoppedEvent(code int) BrowserTabEvent {
	return BrowserTabEvent{Status: StatusStopped, Code: &code}
}

// ErrorEvent 构造错误事件
func ErrorEvent(msg string) BrowserTabEvent {
	return BrowserTabEvent{Error: true, Message: strings.TrimSpace(msg)}
}

// Verdict 网址安全结论
type Verdict string

const (
	VerdictSafe     Verdict = "safe"
	VerdictPhishing Verdict = "phishing"
	VerdictUnknown  Verdict = "unknown"
)

// URLSafetyResult 单个网址的钓鱼检测结果
type URLSafetyResult struct {
	URL        string  `json:"url"`
	Verdict    Verdict `json:"verdict"`
	IsPhishing bool    `json:"isPhishing"`
	IsSafe     bool    `json:"isSafe"`
	RiskLevel  string  `json:"riskLevel,omitempty"`
	RiskScore  *int    `json:"riskScore,omitempty"`
	Message    string  `json:"message,omitempty"`
	Timestamp  int64   `json:"timestamp"`
}

// NewURLSafetyResult 根据结论填充两套兼容字段
func NewURLSafetyResult(url string, v Verdict, ts int64) URLSafetyResult {
	return URLSafetyResult{
		URL:        url,
		Verdict:    v,
		IsPhishing: v == VerdictPhishing,
		IsSafe:     v == VerdictSafe,
		Timestamp:  ts,
	}
}

// TwitterReputation 代币关联推特账号的声誉信息
type TwitterReputation struct {
	Username       string   `json:"username"`
	InfluenceLevel string   `json:"influenceLevel,omitempty"`
	RenameCount    int      `json:"renameCount"`
	PreviousNames  []string `json:"previousNames,omitempty"`
	Followers      int64    `json:"followers"`
	Mentions       int64    `json:"mentions"`
}

// TokenMetadata 代币基本信息
type TokenMetadata struct {
	Name        string `json:"name,omitempty"`
	Symbol      string `json:"symbol,omitempty"`
	Description string `json:"description,omitempty"`
}

// TokenSafety 代币合约安全检测结果
type TokenSafety struct {
	Chain string `json:"chain"`
	CA    string `json:"ca"`
	Risks Risks  `json:"risks"`
	TokenMetadata
}

// TokenAnalysis 代币综合分析结果
type TokenAnalysis struct {
	TokenSafety
	PageURL   string             `json:"pageUrl,omitempty"`
	Risky     []string           `json:"risky"`
	Twitter   *TwitterReputation `json:"twitter"`
	Timestamp int64              `json:"timestamp"`
}

// OperationResult 启停等操作的返回结构
type OperationResult struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

// ClearResult 清空缓存的返回结构
type ClearResult struct {
	Success bool `json:"success"`
}

// TokenAnalysisResult 代币分析的返回结构
type TokenAnalysisResult struct {
	Success  bool           `json:"success"`
	Message  string         `json:"message,omitempty"`
	Analysis *TokenAnalysis `json:"analysis,omitempty"`
}

// MonitorStatus 监控状态
type MonitorStatus struct {
	IsRunning bool      `json:"isRunning"`
	State     string    `json:"state"`
	PID       int       `json:"pid,omitempty"`
	SessionID SessionID `json:"sessionId,omitempty"`
	StartedAt int64     `json:"startedAt,omitempty"`
}

// HistoryEntry 分析历史条目
type HistoryEntry struct {
	ID        string `json:"id"`
	Kind      string `json:"kind"`
	URL       string `json:"url"`
	Chain     string `json:"chain,omitempty"`
	CA        string `json:"ca,omitempty"`
	Verdict   string `json:"verdict"`
	Detail    string `json:"detail"`
	CreatedAt int64  `json:"createdAt"`
}
