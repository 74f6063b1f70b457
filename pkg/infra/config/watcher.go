// Package config 监听配置文件变化并通知订阅者。
package config

import (
	"sort"
	"sync"

	"github.com/fsnotify/fsnotify"
	"github.com/kart-io/logger"
	"github.com/spf13/viper"
)

// ChangeHandler 配置变化回调，返回错误只记录日志。
type ChangeHandler func(v *viper.Viper) error

// Watcher 基于 viper.WatchConfig 的配置监听器。
type Watcher struct {
	viper    *viper.Viper
	mu       sync.RWMutex
	handlers map[string]ChangeHandler
	watching bool
}

// NewWatcher 创建监听器，v 需已读取配置文件。
func NewWatcher(v *viper.Viper) *Watcher {
	return &Watcher{viper: v, handlers: make(map[string]ChangeHandler)}
}

// Subscribe 注册回调，同名回调被替换。
func (w *Watcher) Subscribe(id string, h ChangeHandler) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.handlers[id] = h
}

// Unsubscribe 移除回调。
func (w *Watcher) Unsubscribe(id string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	delete(w.handlers, id)
}

// Start 开始监听，重复调用无效果。未使用配置文件时不监听。
func (w *Watcher) Start() {
	w.mu.Lock()
	if w.watching || w.viper.ConfigFileUsed() == "" {
		w.mu.Unlock()
		return
	}
	w.watching = true
	w.mu.Unlock()

	w.viper.OnConfigChange(func(e fsnotify.Event) {
		logger.Infow("config file changed", "file", e.Name, "op", e.Op.String())
		w.Notify()
	})
	w.viper.WatchConfig()
	logger.Infow("watching config file", "file", w.viper.ConfigFileUsed())
}

// Notify 按 id 顺序依次调用全部回调。
func (w *Watcher) Notify() {
	w.mu.RLock()
	ids := make([]string, 0, len(w.handlers))
	for id := range w.handlers {
		ids = append(ids, id)
	}
	handlers := make(map[string]ChangeHandler, len(w.handlers))
	for id, h := range w.handlers {
		handlers[id] = h
	}
	w.mu.RUnlock()

	sort.Strings(ids)
	for _, id := range ids {
		if err := handlers[id](w.viper); err != nil {
			logger.Errorw("config change handler failed", "handler", id, "error", err.Error())
		}
	}
}

// IsWatching 是否已开始监听。
func (w *Watcher) IsWatching() bool {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.watching
}
