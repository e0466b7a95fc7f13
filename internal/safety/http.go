package safety

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/tidwall/gjson"
)

var ErrBackend = errors.New("safety backend error")

// statusError 非 2xx 响应
type statusError struct {
	code int
	body string
}

func (e *statusError) Error() string {
	return fmt.Sprintf("%v: status %d: %s", ErrBackend, e.code, e.body)
}

func (e *statusError) Unwrap() error { return ErrBackend }

// isRetryable 判断是否为可重试的错误：传输错误、限流或服务端错误
func isRetryable(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) {
		return false
	}
	var se *statusError
	if errors.As(err, &se) {
		return se.code == http.StatusTooManyRequests || se.code >= 500
	}
	return !errors.Is(err, ErrBackend)
}

// retryWithBackoff 带线性退避的重试
func retryWithBackoff(ctx context.Context, attempts int, backoff time.Duration, fn func() (gjson.Result, error)) (gjson.Result, error) {
	var lastErr error
	for attempt := 0; attempt <= attempts; attempt++ {
		res, err := fn()
		if err == nil {
			return res, nil
		}
		lastErr = err
		if !isRetryable(err) || attempt == attempts {
			break
		}
		select {
		case <-ctx.Done():
			return gjson.Result{}, ctx.Err()
		case <-time.After(time.Duration(attempt+1) * backoff):
		}
	}
	return gjson.Result{}, lastErr
}

// doJSON 发送请求并解析 JSON 响应，每次请求单独计时
func (s *Service) doJSON(ctx context.Context, method, url string, body []byte) (gjson.Result, error) {
	return retryWithBackoff(ctx, s.opts.RetryAttempts, s.opts.RetryBackoff, func() (gjson.Result, error) {
		reqCtx, cancel := context.WithTimeout(ctx, s.opts.Timeout)
		defer cancel()

		var rd io.Reader
		if body != nil {
			rd = bytes.NewReader(body)
		}
		req, err := http.NewRequestWithContext(reqCtx, method, url, rd)
		if err != nil {
			return gjson.Result{}, fmt.Errorf("%w: build request: %v", ErrBackend, err)
		}
		req.Header.Set("Accept", "application/json")
		if body != nil {
			req.Header.Set("Content-Type", "application/json")
		}

		resp, err := s.client.Do(req)
		if err != nil {
			return gjson.Result{}, fmt.Errorf("http request failed: %w", err)
		}
		defer resp.Body.Close()

		raw, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
		if err != nil {
			return gjson.Result{}, fmt.Errorf("read response failed: %w", err)
		}
		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			return gjson.Result{}, &statusError{code: resp.StatusCode, body: snippet(raw)}
		}
		if !gjson.ValidBytes(raw) {
			return gjson.Result{}, fmt.Errorf("%w: invalid json: %s", ErrBackend, snippet(raw))
		}
		res := gjson.ParseBytes(raw)
		// 兼容 {code, message} 包装格式，code 非 1/0/200 视为后端错误
		if code := res.Get("code"); code.Exists() && code.Type == gjson.Number {
			switch code.Int() {
			case 0, 1, 200:
			default:
				return gjson.Result{}, fmt.Errorf("%w: code %d: %s", ErrBackend, code.Int(), res.Get("message").String())
			}
		}
		return res, nil
	})
}

func snippet(b []byte) string {
	if len(b) > 200 {
		return string(b[:200]) + "..."
	}
	return string(b)
}

// pick 返回第一个存在的路径
func pick(res gjson.Result, paths ...string) gjson.Result {
	for _, p := range paths {
		if v := res.Get(p); v.Exists() {
			return v
		}
	}
	return gjson.Result{}
}

// truthy 兼容 true/"1"/1/{"status":"1"} 等多种写法
func truthy(v gjson.Result) bool {
	switch v.Type {
	case gjson.True:
		return true
	case gjson.Number:
		return v.Num != 0
	case gjson.String:
		switch v.Str {
		case "1", "true", "True", "TRUE", "yes":
			return true
		}
		return false
	case gjson.JSON:
		if v.IsObject() {
			return truthy(v.Get("status"))
		}
		return false
	default:
		return false
	}
}
