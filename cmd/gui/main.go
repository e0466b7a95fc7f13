package main

import (
	"embed"
	"os"
	"path/filepath"

	"github.com/wailsapp/wails/v2"
	"github.com/wailsapp/wails/v2/pkg/options"
	"github.com/wailsapp/wails/v2/pkg/options/assetserver"

	"tabsentry/internal/config"
	"tabsentry/internal/logger"
	"tabsentry/pkg/api"
)

//go:embed all:frontend/dist
var assets embed.FS

// configPath 配置文件位置，可通过 TABSENTRY_CONFIG 覆盖
func configPath() string {
	if p := os.Getenv("TABSENTRY_CONFIG"); p != "" {
		return p
	}
	return filepath.Join(config.DefaultDataDir(), "config.yaml")
}

// main 是 GUI 应用入口
func main() {
	cfg, err := config.Load(configPath())
	if err != nil {
		logger.NewWriter(os.Stderr, "error").Err(err, "加载配置失败")
		os.Exit(1)
	}

	l := logger.New(logger.Options{
		Level:      cfg.Log.Level,
		Writers:    cfg.Log.Writer,
		File:       cfg.Log.File,
		MaxSizeMB:  cfg.Log.MaxSizeMB,
		MaxBackups: cfg.Log.MaxBackups,
		MaxAgeDays: cfg.Log.MaxAgeDays,
	})

	svc, err := api.NewService(cfg, l)
	if err != nil {
		l.Err(err, "初始化服务失败")
		os.Exit(1)
	}
	app := NewApp(svc, l)

	err = wails.Run(&options.App{
		Title:     "TabSentry",
		Width:     1100,
		Height:    760,
		MinWidth:  800,
		MinHeight: 560,

		AssetServer: &assetserver.Options{
			Assets: assets,
		},

		BackgroundColour: &options.RGBA{R: 18, G: 18, B: 24, A: 1},

		OnStartup:  app.Startup,
		OnShutdown: app.Shutdown,

		Bind: []interface{}{
			app,
		},
	})
	if err != nil {
		l.Err(err, "窗口运行失败")
		os.Exit(1)
	}
}
