package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"tabsentry/internal/logger"
	"tabsentry/pkg/model"

	"github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/schema"
)

const (
	KindURL   = "url"
	KindToken = "token"
)

// AnalysisRecord 分析历史表记录
type AnalysisRecord struct {
	ID        string `gorm:"primaryKey;size:36"`
	Kind      string `gorm:"size:16;index"`
	URL       string `gorm:"index"`
	Chain     string `gorm:"size:32"`
	CA        string `gorm:"size:128"`
	Verdict   string `gorm:"size:32"`
	Detail    string
	CreatedAt time.Time `gorm:"index"`
}

// History 基于 SQLite 的分析历史
type History struct {
	db  *gorm.DB
	log logger.Logger
}

// OpenHistory 打开（必要时创建）历史数据库
func OpenHistory(dsn, prefix string, l logger.Logger) (*History, error) {
	if l == nil {
		l = logger.NewNop()
	}
	if dsn != ":memory:" && !strings.HasPrefix(dsn, "file:") {
		if err := os.MkdirAll(filepath.Dir(dsn), 0o755); err != nil {
			return nil, fmt.Errorf("ensure history directory: %w", err)
		}
	}
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger:         NewGormLogger(l),
		NamingStrategy: schema.NamingStrategy{TablePrefix: prefix},
	})
	if err != nil {
		return nil, fmt.Errorf("open history db: %w", err)
	}
	if err := db.AutoMigrate(&AnalysisRecord{}); err != nil {
		return nil, fmt.Errorf("migrate history db: %w", err)
	}
	return &History{db: db, log: l}, nil
}

// RecordURL 记录一次网址检测结果
func (h *History) RecordURL(ctx context.Context, r model.URLSafetyResult) error {
	detail, _ := json.Marshal(r)
	rec := AnalysisRecord{
		ID:        uuid.NewString(),
		Kind:      KindURL,
		URL:       r.URL,
		Verdict:   string(r.Verdict),
		Detail:    string(detail),
		CreatedAt: time.UnixMilli(r.Timestamp),
	}
	if err := h.db.WithContext(ctx).Create(&rec).Error; err != nil {
		return fmt.Errorf("insert url record: %w", err)
	}
	return nil
}

// RecordToken 记录一次代币分析结果
func (h *History) RecordToken(ctx context.Context, a model.TokenAnalysis) error {
	detail, _ := json.Marshal(a)
	verdict := "clean"
	if len(a.Risky) > 0 {
		verdict = "risky"
	}
	rec := AnalysisRecord{
		ID:        uuid.NewString(),
		Kind:      KindToken,
		URL:       a.PageURL,
		Chain:     a.Chain,
		CA:        a.CA,
		Verdict:   verdict,
		Detail:    string(detail),
		CreatedAt: time.UnixMilli(a.Timestamp),
	}
	if err := h.db.WithContext(ctx).Create(&rec).Error; err != nil {
		return fmt.Errorf("insert token record: %w", err)
	}
	return nil
}

// Recent 按时间倒序返回最近的记录
func (h *History) Recent(ctx context.Context, limit int) ([]model.HistoryEntry, error) {
	if limit <= 0 {
		limit = 50
	}
	var recs []AnalysisRecord
	if err := h.db.WithContext(ctx).Order("created_at desc").Limit(limit).Find(&recs).Error; err != nil {
		return nil, fmt.Errorf("query history: %w", err)
	}
	out := make([]model.HistoryEntry, 0, len(recs))
	for _, r := range recs {
		out = append(out, model.HistoryEntry{
			ID:        r.ID,
			Kind:      r.Kind,
			URL:       r.URL,
			Chain:     r.Chain,
			CA:        r.CA,
			Verdict:   r.Verdict,
			Detail:    r.Detail,
			CreatedAt: r.CreatedAt.UnixMilli(),
		})
	}
	return out, nil
}

// Close 关闭数据库连接
func (h *History) Close() error {
	sqlDB, err := h.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
