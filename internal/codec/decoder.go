package codec

import (
	"bytes"
	"encoding/json"
	"errors"

	"tabsentry/internal/logger"
	"tabsentry/pkg/model"
)

// DefaultMaxLineBytes 单行最大缓冲字节数
const DefaultMaxLineBytes = 1 << 20

var ErrLineTooLong = errors.New("line exceeds buffer limit")

// Decoder 按换行切分 JSON 记录，未结束的半行保留到下次 Feed
type Decoder struct {
	buf     []byte
	maxLine int
	// discarding 为 true 时丢弃字节直到下一个换行
	discarding bool
	log        logger.Logger
}

// NewDecoder 创建解码器
func NewDecoder(maxLine int, l logger.Logger) *Decoder {
	if maxLine <= 0 {
		maxLine = DefaultMaxLineBytes
	}
	if l == nil {
		l = logger.NewNop()
	}
	return &Decoder{maxLine: maxLine, log: l}
}

// Feed 追加数据块并返回其中完整行解出的事件，不会返回错误
func (d *Decoder) Feed(chunk []byte) []model.BrowserTabEvent {
	var out []model.BrowserTabEvent
	data := chunk
	for len(data) > 0 {
		idx := bytes.IndexByte(data, '\n')
		if idx < 0 {
			d.carry(data)
			break
		}
		part := data[:idx]
		data = data[idx+1:]

		if d.discarding {
			d.discarding = false
			continue
		}
		var line []byte
		if len(d.buf) > 0 {
			line = append(d.buf, part...)
			d.buf = nil
		} else {
			line = part
		}
		if ev, ok := d.decodeLine(line); ok {
			out = append(out, ev)
		}
	}
	return out
}

// carry 保存未结束的半行，超过上限时丢弃并进入重同步状态
func (d *Decoder) carry(part []byte) {
	if d.discarding {
		return
	}
	if len(d.buf)+len(part) > d.maxLine {
		d.log.Err(ErrLineTooLong, "丢弃超长行，等待下一个换行重新同步", "buffered", len(d.buf)+len(part), "limit", d.maxLine)
		d.buf = nil
		d.discarding = true
		return
	}
	d.buf = append(d.buf, part...)
}

func (d *Decoder) decodeLine(line []byte) (model.BrowserTabEvent, bool) {
	line = bytes.TrimSpace(line)
	if len(line) == 0 {
		return model.BrowserTabEvent{}, false
	}
	var ev model.BrowserTabEvent
	if err := json.Unmarshal(line, &ev); err != nil {
		d.log.Err(err, "解析监控输出失败，跳过该行", "line", truncate(line, 200))
		return model.BrowserTabEvent{}, false
	}
	if err := ev.Validate(); err != nil {
		d.log.Warn("监控事件格式不合法，跳过该行", "line", truncate(line, 200))
		return model.BrowserTabEvent{}, false
	}
	return ev, true
}

// Reset 清空缓冲区，新会话开始时调用
func (d *Decoder) Reset() {
	d.buf = nil
	d.discarding = false
}

// Buffered 当前缓冲的字节数
func (d *Decoder) Buffered() int {
	return len(d.buf)
}

func truncate(b []byte, n int) string {
	if len(b) <= n {
		return string(b)
	}
	return string(b[:n]) + "..."
}
