package storage

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"tabsentry/internal/logger"
)

// Store 持久化到单个 JSON 文档的键值存储
//
// 首次访问时加载，之后常驻内存；每次修改都会整体重写文件。
type Store[V any] struct {
	path   string
	mu     sync.Mutex
	loaded bool
	data   map[string]V
	log    logger.Logger
}

// NewStore 在 dir 下创建名为 name 的存储
func NewStore[V any](dir, name string, l logger.Logger) *Store[V] {
	if l == nil {
		l = logger.NewNop()
	}
	return &Store[V]{
		path: filepath.Join(dir, name+".json"),
		log:  l.With("store", name),
	}
}

// Path 文档路径
func (s *Store[V]) Path() string { return s.path }

// Get 读取键值
func (s *Store[V]) Get(key string) (V, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ensureLoaded()
	v, ok := s.data[key]
	return v, ok
}

// Has 判断键是否存在
func (s *Store[V]) Has(key string) bool {
	_, ok := s.Get(key)
	return ok
}

// Set 写入键值并落盘
func (s *Store[V]) Set(key string, v V) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ensureLoaded()
	s.data[key] = v
	return s.flush()
}

// Delete 删除键并落盘
func (s *Store[V]) Delete(key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ensureLoaded()
	if _, ok := s.data[key]; !ok {
		return nil
	}
	delete(s.data, key)
	return s.flush()
}

// Clear 清空并落盘
func (s *Store[V]) Clear() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.loaded = true
	s.data = make(map[string]V)
	return s.flush()
}

// GetAll 返回全部键值的副本
func (s *Store[V]) GetAll() map[string]V {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ensureLoaded()
	out := make(map[string]V, len(s.data))
	for k, v := range s.data {
		out[k] = v
	}
	return out
}

// Len 条目数量
func (s *Store[V]) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ensureLoaded()
	return len(s.data)
}

// ensureLoaded 延迟加载，文件缺失或损坏时视为空
func (s *Store[V]) ensureLoaded() {
	if s.loaded {
		return
	}
	s.loaded = true
	s.data = make(map[string]V)

	b, err := os.ReadFile(s.path)
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			s.log.Err(err, "读取缓存文件失败，按空缓存处理", "path", s.path)
		}
		return
	}
	var m map[string]V
	if err := json.Unmarshal(b, &m); err != nil {
		s.log.Warn("缓存文件损坏，按空缓存处理", "path", s.path, "error", err.Error())
		return
	}
	if m == nil {
		m = make(map[string]V)
	}
	s.data = m
}

// flush 先写临时文件再重命名，避免留下写了一半的文档
func (s *Store[V]) flush() error {
	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("ensure cache directory: %w", err)
	}
	b, err := json.Marshal(s.data)
	if err != nil {
		return fmt.Errorf("marshal cache: %w", err)
	}

	tmp, err := os.CreateTemp(dir, filepath.Base(s.path)+"-*.tmp")
	if err != nil {
		return fmt.Errorf("create temp cache file: %w", err)
	}
	tmpPath := tmp.Name()
	success := false
	defer func() {
		_ = tmp.Close()
		if !success {
			_ = os.Remove(tmpPath)
		}
	}()

	if _, err := tmp.Write(b); err != nil {
		return fmt.Errorf("write temp cache file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close temp cache file: %w", err)
	}
	if err := os.Rename(tmpPath, s.path); err != nil {
		return fmt.Errorf("replace cache file: %w", err)
	}
	success = true
	return nil
}
