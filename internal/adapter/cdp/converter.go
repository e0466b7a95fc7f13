package cdp

import (
	"strings"

	"tabsentry/pkg/model"

	"github.com/mafredri/cdp/devtool"
)

// ActivePage 返回第一个页面类型的目标，DevTools 列表按最近激活排序
func ActivePage(targets []*devtool.Target) *devtool.Target {
	for _, t := range targets {
		if t != nil && t.Type == devtool.Page {
			return t
		}
	}
	return nil
}

// ToTabEvent 将 DevTools 页面目标转换为标签页事件
func ToTabEvent(t *devtool.Target, process string, active bool, ts int64) model.BrowserTabEvent {
	return model.BrowserTabEvent{
		URL:       t.URL,
		Title:     t.Title,
		Process:   process,
		Active:    active,
		Timestamp: ts,
	}
}

// BrowserName 从版本信息中取浏览器名称，如 "HeadlessChrome/120.0" -> "HeadlessChrome"
func BrowserName(v *devtool.Version) string {
	if v == nil || v.Browser == "" {
		return ""
	}
	name, _, _ := strings.Cut(v.Browser, "/")
	return name
}
