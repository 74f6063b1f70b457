package biz

import (
	"context"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCorpusWatcher_Relevant(t *testing.T) {
	w := &CorpusWatcher{extensions: map[string]struct{}{".md": {}, ".txt": {}}}

	assert.True(t, w.relevant(fsnotify.Event{Name: "/docs/a.md", Op: fsnotify.Write}))
	assert.True(t, w.relevant(fsnotify.Event{Name: "/docs/B.TXT", Op: fsnotify.Create}))
	assert.False(t, w.relevant(fsnotify.Event{Name: "/docs/a.pdf", Op: fsnotify.Write}))
	assert.False(t, w.relevant(fsnotify.Event{Name: "/docs/.a.md.swp", Op: fsnotify.Write}))
	assert.False(t, w.relevant(fsnotify.Event{Name: "/docs/a.md", Op: fsnotify.Chmod}))
	assert.True(t, w.relevant(fsnotify.Event{Name: "/docs/policies", Op: fsnotify.Remove}))
}

func TestCorpusWatcher_DebouncedRebuild(t *testing.T) {
	dir := t.TempDir()
	var rebuilds atomic.Int32
	w, err := NewCorpusWatcher(dir, []string{"md"}, 100*time.Millisecond, func(context.Context) error {
		rebuilds.Add(1)
		return nil
	})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- w.Run(ctx) }()

	// 连续写入只触发一次重建
	for i := 0; i < 3; i++ {
		require.NoError(t, os.WriteFile(filepath.Join(dir, "policy.md"), []byte("v"+string(rune('0'+i))), 0o644))
		time.Sleep(10 * time.Millisecond)
	}
	require.Eventually(t, func() bool { return rebuilds.Load() == 1 }, 3*time.Second, 10*time.Millisecond)

	// 不相关的文件不触发
	require.NoError(t, os.WriteFile(filepath.Join(dir, "scan.pdf"), []byte("x"), 0o644))
	time.Sleep(300 * time.Millisecond)
	assert.Equal(t, int32(1), rebuilds.Load())

	// 新建子目录后其中的文件也被监听
	sub := filepath.Join(dir, "benefits")
	require.NoError(t, os.Mkdir(sub, 0o755))
	require.Eventually(t, func() bool { return rebuilds.Load() == 2 }, 3*time.Second, 10*time.Millisecond)
	require.NoError(t, os.WriteFile(filepath.Join(sub, "dental.md"), []byte("dental"), 0o644))
	require.Eventually(t, func() bool { return rebuilds.Load() == 3 }, 3*time.Second, 10*time.Millisecond)

	cancel()
	require.NoError(t, <-done)
}
