package main

import (
	"context"

	"github.com/wailsapp/wails/v2/pkg/runtime"
)

const mainWindowID = "main"

// wailsWindow 将 Wails 运行时上下文适配为广播窗口
type wailsWindow struct {
	id  string
	ctx context.Context
}

func newWindow(ctx context.Context, id string) *wailsWindow {
	return &wailsWindow{id: id, ctx: ctx}
}

func (w *wailsWindow) ID() string { return w.id }

// IsDestroyed 运行时上下文结束即视为窗口已关闭
func (w *wailsWindow) IsDestroyed() bool {
	select {
	case <-w.ctx.Done():
		return true
	default:
		return false
	}
}

func (w *wailsWindow) Emit(channel string, payload any) {
	runtime.EventsEmit(w.ctx, channel, payload)
}
