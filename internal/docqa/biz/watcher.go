package biz

import (
	"context"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/kart-io/logger"
)

// DefaultWatchDebounce 语料变更后的静默等待时间。
const DefaultWatchDebounce = 2 * time.Second

// CorpusWatcher 监听语料目录，变更静默 debounce 后触发一次重建。
type CorpusWatcher struct {
	dir        string
	extensions map[string]struct{}
	debounce   time.Duration
	rebuild    func(ctx context.Context) error
	watcher    *fsnotify.Watcher
}

// NewCorpusWatcher 递归监听 dir 下的全部子目录。
func NewCorpusWatcher(dir string, extensions []string, debounce time.Duration, rebuild func(ctx context.Context) error) (*CorpusWatcher, error) {
	if debounce <= 0 {
		debounce = DefaultWatchDebounce
	}
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	exts := make(map[string]struct{}, len(extensions))
	for _, e := range extensions {
		e = strings.ToLower(e)
		if !strings.HasPrefix(e, ".") {
			e = "." + e
		}
		exts[e] = struct{}{}
	}

	w := &CorpusWatcher{dir: dir, extensions: exts, debounce: debounce, rebuild: rebuild, watcher: fw}
	if err := w.addTree(dir); err != nil {
		_ = fw.Close()
		return nil, err
	}
	return w, nil
}

func (w *CorpusWatcher) addTree(root string) error {
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			return nil
		}
		if path != root && strings.HasPrefix(d.Name(), ".") {
			return filepath.SkipDir
		}
		return w.watcher.Add(path)
	})
}

// relevant 目录变化与匹配扩展名的文件变化才触发重建。
func (w *CorpusWatcher) relevant(ev fsnotify.Event) bool {
	if strings.HasPrefix(filepath.Base(ev.Name), ".") {
		return false
	}
	if ev.Has(fsnotify.Chmod) && !ev.Has(fsnotify.Write) {
		return false
	}
	if len(w.extensions) == 0 {
		return true
	}
	if _, ok := w.extensions[strings.ToLower(filepath.Ext(ev.Name))]; ok {
		return true
	}
	// 删除或重命名时无法判断是否为目录，按扩展名为空处理
	return filepath.Ext(ev.Name) == "" && (ev.Has(fsnotify.Remove) || ev.Has(fsnotify.Rename) || ev.Has(fsnotify.Create))
}

// Run 阻塞直到 ctx 结束。重建被拒绝时只记录日志，不重试。
func (w *CorpusWatcher) Run(ctx context.Context) error {
	defer w.watcher.Close()

	timer := time.NewTimer(w.debounce)
	if !timer.Stop() {
		<-timer.C
	}
	pending := false

	logger.Infow("Watching corpus for changes", "docs_dir", w.dir, "debounce", w.debounce.String())
	for {
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil

		case ev, ok := <-w.watcher.Events:
			if !ok {
				return nil
			}
			if ev.Has(fsnotify.Create) {
				if info, err := os.Stat(ev.Name); err == nil && info.IsDir() {
					if err := w.addTree(ev.Name); err != nil {
						logger.Warnw("Failed to watch new directory", "path", ev.Name, "error", err.Error())
					}
				}
			}
			if !w.relevant(ev) {
				continue
			}
			logger.Debugw("Corpus changed", "path", ev.Name, "op", ev.Op.String())
			if pending && !timer.Stop() {
				select {
				case <-timer.C:
				default:
				}
			}
			timer.Reset(w.debounce)
			pending = true

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return nil
			}
			logger.Warnw("Corpus watcher error", "error", err.Error())

		case <-timer.C:
			pending = false
			if err := w.rebuild(ctx); err != nil {
				if errors.Is(err, ErrRebuildInProgress) {
					logger.Infow("Corpus changed during a running rebuild, skipped")
				} else {
					logger.Errorw("Rebuild after corpus change failed", "error", err.Error())
				}
			}
		}
	}
}
