package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// Config 配置文件结构体
type Config struct {
	Version string `yaml:"version"`

	Sqlite     SqliteConfig     `yaml:"sqlite"`
	Log        LogConfig        `yaml:"log"`
	Monitor    MonitorConfig    `yaml:"monitor"`
	Dedup      DedupConfig      `yaml:"dedup"`
	Safety     SafetyConfig     `yaml:"safety"`
	Cache      CacheConfig      `yaml:"cache"`
	Classifier ClassifierConfig `yaml:"classifier"`
}

type SqliteConfig struct {
	Dsn    string `yaml:"dsn"`
	Prefix string `yaml:"prefix"`
}

type LogConfig struct {
	Level      string   `yaml:"level"`
	Writer     []string `yaml:"writer"`
	File       string   `yaml:"file"`
	MaxSizeMB  int      `yaml:"maxSizeMB"`
	MaxBackups int      `yaml:"maxBackups"`
	MaxAgeDays int      `yaml:"maxAgeDays"`
}

// MonitorConfig 外部标签页监控进程配置
type MonitorConfig struct {
	BinDir         string `yaml:"binDir"`
	ScriptPath     string `yaml:"scriptPath"`
	Interpreter    string `yaml:"interpreter"`
	DevToolsURL    string `yaml:"devToolsURL"`
	PollIntervalMS int    `yaml:"pollIntervalMS"`
	StopGraceMS    int    `yaml:"stopGraceMS"`
	MaxLineBytes   int    `yaml:"maxLineBytes"`
}

// DedupConfig 去重闸门配置
type DedupConfig struct {
	Capacity   int   `yaml:"capacity"`
	CooldownMS int64 `yaml:"cooldownMS"`
}

// SafetyConfig 安全分析后端配置
type SafetyConfig struct {
	PhishingURL    string `yaml:"phishingURL"`
	EVMTokenURL    string `yaml:"evmTokenURL"`
	SolanaTokenURL string `yaml:"solanaTokenURL"`
	TwitterURL     string `yaml:"twitterURL"`
	MetadataURL    string `yaml:"metadataURL"`
	Lang           string `yaml:"lang"`
	TimeoutMS      int    `yaml:"timeoutMS"`
	CacheTTLHours  int    `yaml:"cacheTTLHours"`
	RetryAttempts  int    `yaml:"retryAttempts"`
	RetryBackoffMS int    `yaml:"retryBackoffMS"`
	Workers        int    `yaml:"workers"`
	QueueSize      int    `yaml:"queueSize"`
}

// CacheConfig 结果缓存配置
type CacheConfig struct {
	Dir        string `yaml:"dir"`
	URLStore   string `yaml:"urlStore"`
	TokenStore string `yaml:"tokenStore"`
}

// ClassifierConfig 网址分类额外规则
type ClassifierConfig struct {
	TokenHosts []string `yaml:"tokenHosts"`
}

// NewConfig 创建默认配置
func NewConfig() *Config {
	dataDir := DefaultDataDir()
	return &Config{
		Version: "1.0.0",
		Sqlite: SqliteConfig{
			Dsn:    filepath.Join(dataDir, "history.sqlite3"),
			Prefix: "tabsentry_",
		},
		Log: LogConfig{
			Level:      "info",
			Writer:     []string{"console", "file"},
			File:       filepath.Join(dataDir, "logs", "tabsentry.log"),
			MaxSizeMB:  10,
			MaxBackups: 5,
			MaxAgeDays: 14,
		},
		Monitor: MonitorConfig{
			BinDir:         defaultBinDir(),
			DevToolsURL:    "http://127.0.0.1:9222",
			PollIntervalMS: 1000,
			StopGraceMS:    2000,
			MaxLineBytes:   1 << 20,
		},
		Dedup: DedupConfig{
			Capacity:   1000,
			CooldownMS: int64(time.Hour / time.Millisecond),
		},
		Safety: SafetyConfig{
			PhishingURL:    "https://api.tabsentry.app/v1/phishing/check",
			EVMTokenURL:    "https://api.gopluslabs.io/api/v1/token_security",
			SolanaTokenURL: "https://api.gopluslabs.io/api/v1/solana/token_security",
			TwitterURL:     "https://api.tabsentry.app/v1/token/twitter",
			MetadataURL:    "https://api.tabsentry.app/v1/token/metadata",
			Lang:           "en",
			TimeoutMS:      10000,
			CacheTTLHours:  24,
			RetryAttempts:  2,
			RetryBackoffMS: 500,
			Workers:        4,
			QueueSize:      64,
		},
		Cache: CacheConfig{
			Dir:        filepath.Join(dataDir, "cache"),
			URLStore:   "url-safety-cache",
			TokenStore: "token-safety-cache",
		},
	}
}

// Load 读取 YAML 配置并覆盖默认值，文件不存在时返回默认配置
func Load(path string) (*Config, error) {
	cfg := NewConfig()
	if path == "" {
		return cfg, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return cfg, nil
		}
		return nil, fmt.Errorf("read config: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config yaml: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate 校验配置取值
func (c *Config) Validate() error {
	if c.Dedup.Capacity <= 0 {
		return errors.New("dedup.capacity must be > 0")
	}
	if c.Dedup.CooldownMS <= 0 {
		return errors.New("dedup.cooldownMS must be > 0")
	}
	if c.Safety.CacheTTLHours <= 0 {
		return errors.New("safety.cacheTTLHours must be > 0")
	}
	if c.Safety.TimeoutMS <= 0 {
		return errors.New("safety.timeoutMS must be > 0")
	}
	if c.Safety.RetryAttempts < 0 {
		return errors.New("safety.retryAttempts must be >= 0")
	}
	if c.Safety.Workers <= 0 || c.Safety.QueueSize <= 0 {
		return errors.New("safety.workers and safety.queueSize must be > 0")
	}
	if c.Monitor.StopGraceMS < 0 {
		return errors.New("monitor.stopGraceMS must be >= 0")
	}
	if c.Monitor.MaxLineBytes <= 0 {
		return errors.New("monitor.maxLineBytes must be > 0")
	}
	if c.Cache.URLStore == "" || c.Cache.TokenStore == "" {
		return errors.New("cache store names are required")
	}
	return nil
}

// CooldownDuration 去重冷却时间
func (c *Config) CooldownDuration() time.Duration {
	return time.Duration(c.Dedup.CooldownMS) * time.Millisecond
}

// StopGrace 停止进程的宽限时间
func (c *Config) StopGrace() time.Duration {
	return time.Duration(c.Monitor.StopGraceMS) * time.Millisecond
}

// defaultBinDir 监控程序与桌面端放在同一目录，取不到可执行文件路径时使用 ./bin
func defaultBinDir() string {
	exe, err := os.Executable()
	if err != nil {
		return "bin"
	}
	return filepath.Dir(exe)
}

// DefaultDataDir 应用数据目录
func DefaultDataDir() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return ".tabsentry"
	}
	return filepath.Join(dir, "tabsentry")
}
