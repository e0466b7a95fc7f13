package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"
	"time"

	"tabsentry/internal/logger"
	"tabsentry/internal/observer"

	"github.com/mafredri/cdp/devtool"
)

// tabwatch 通过 DevTools 观察浏览器活动标签页，事件以 NDJSON 写到标准输出，日志写到标准错误
func main() {
	defURL := os.Getenv("TABSENTRY_DEVTOOLS_URL")
	if defURL == "" {
		defURL = "http://127.0.0.1:9222"
	}
	defInterval := time.Second
	if d, err := time.ParseDuration(os.Getenv("TABSENTRY_POLL_INTERVAL")); err == nil && d > 0 {
		defInterval = d
	}
	devtoolsURL := flag.String("devtools", defURL, "DevTools HTTP endpoint")
	interval := flag.Duration("interval", defInterval, "poll interval")
	level := flag.String("log-level", "error", "log level written to stderr; the parent treats every stderr line as an error event")
	flag.Parse()

	l := logger.NewWriter(os.Stderr, *level)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	w := observer.New(devtool.New(*devtoolsURL), *interval, os.Stdout, l)
	l.Info("开始观察浏览器标签页", "devtools", *devtoolsURL, "interval", interval.String())
	w.Run(ctx)
}
