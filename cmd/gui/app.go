package main

import (
	"context"
	"time"

	"tabsentry/internal/logger"
	"tabsentry/pkg/api"
	"tabsentry/pkg/model"
)

// App 绑定到前端的方法集合，每个方法对应一个请求/响应通道
type App struct {
	ctx context.Context
	svc api.Service
	log logger.Logger
}

// NewApp 创建应用实例
func NewApp(svc api.Service, l logger.Logger) *App {
	return &App{ctx: context.Background(), svc: svc, log: l}
}

// Startup 窗口就绪后注册为主窗口
func (a *App) Startup(ctx context.Context) {
	a.ctx = ctx
	a.svc.Router().Register(newWindow(ctx, mainWindowID))
	a.log.Info("主窗口已就绪")
}

// Shutdown 停止监控并释放资源
func (a *App) Shutdown(_ context.Context) {
	a.svc.Router().Unregister(mainWindowID)
	sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := a.svc.Close(sctx); err != nil {
		a.log.Err(err, "关闭服务失败")
	}
}

// StartBrowserMonitoring 启动浏览器监控
func (a *App) StartBrowserMonitoring() model.OperationResult {
	return a.svc.StartBrowserMonitoring(a.ctx)
}

// StopBrowserMonitoring 停止浏览器监控
func (a *App) StopBrowserMonitoring() model.OperationResult {
	return a.svc.StopBrowserMonitoring()
}

// GetBrowserMonitoringStatus 获取监控状态
func (a *App) GetBrowserMonitoringStatus() model.MonitorStatus {
	return a.svc.GetBrowserMonitoringStatus()
}

// CheckURLSafety 检测网址
func (a *App) CheckURLSafety(url string, force bool) model.URLSafetyResult {
	return a.svc.CheckURLSafety(a.ctx, url, force)
}

// ClearURLSafetyCache 清空网址缓存
func (a *App) ClearURLSafetyCache() model.ClearResult {
	return a.svc.ClearURLSafetyCache()
}

// CheckTokenSafety 检测代币合约
func (a *App) CheckTokenSafety(ca, chain string) (model.TokenSafety, error) {
	return a.svc.CheckTokenSafety(a.ctx, ca, chain)
}

// TokenAnalysisByToken 代币综合分析
func (a *App) TokenAnalysisByToken(ca, chain string) model.TokenAnalysisResult {
	return a.svc.TokenAnalysisByToken(a.ctx, ca, chain)
}

// GetAnalysisHistory 最近的分析记录
func (a *App) GetAnalysisHistory(limit int) ([]model.HistoryEntry, error) {
	return a.svc.GetAnalysisHistory(a.ctx, limit)
}
