package api

import (
	"context"

	"tabsentry/internal/broadcast"
	"tabsentry/internal/config"
	"tabsentry/internal/logger"
	"tabsentry/internal/service"
	"tabsentry/pkg/model"
)

// Service 服务接口
type Service interface {
	// Router 窗口广播路由
	Router() *broadcast.Router

	// StartBrowserMonitoring 启动浏览器监控
	StartBrowserMonitoring(ctx context.Context) model.OperationResult

	// StopBrowserMonitoring 停止浏览器监控
	StopBrowserMonitoring() model.OperationResult

	// GetBrowserMonitoringStatus 获取监控状态
	GetBrowserMonitoringStatus() model.MonitorStatus

	// CheckURLSafety 检测网址是否为钓鱼网站
	CheckURLSafety(ctx context.Context, url string, force bool) model.URLSafetyResult

	// ClearURLSafetyCache 清空网址检测缓存
	ClearURLSafetyCache() model.ClearResult

	// CheckTokenSafety 检测代币合约风险
	CheckTokenSafety(ctx context.Context, ca, chain string) (model.TokenSafety, error)

	// TokenAnalysisByToken 代币综合分析
	TokenAnalysisByToken(ctx context.Context, ca, chain string) model.TokenAnalysisResult

	// GetAnalysisHistory 查询分析历史
	GetAnalysisHistory(ctx context.Context, limit int) ([]model.HistoryEntry, error)

	// Close 释放资源
	Close(ctx context.Context) error
}

// NewService 创建并返回服务接口实现
func NewService(cfg *config.Config, l logger.Logger) (Service, error) {
	return service.New(cfg, l)
}
