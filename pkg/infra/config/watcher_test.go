package config

import (
	"errors"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNotifyCallsHandlersInOrder(t *testing.T) {
	w := NewWatcher(viper.New())
	var order []string
	w.Subscribe("b", func(*viper.Viper) error { order = append(order, "b"); return nil })
	w.Subscribe("a", func(*viper.Viper) error { order = append(order, "a"); return errors.New("rejected") })
	w.Subscribe("c", func(*viper.Viper) error { order = append(order, "c"); return nil })
	w.Unsubscribe("c")

	w.Notify()
	assert.Equal(t, []string{"a", "b"}, order)
}

func TestStartWithoutConfigFileIsNoop(t *testing.T) {
	w := NewWatcher(viper.New())
	w.Start()
	assert.False(t, w.IsWatching())
}

func TestFileChangeTriggersHandler(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "docqa.yaml")
	require.NoError(t, os.WriteFile(path, []byte("log:\n  level: info\n"), 0o600))

	v := viper.New()
	v.SetConfigFile(path)
	require.NoError(t, v.ReadInConfig())

	w := NewWatcher(v)
	var level atomic.Value
	w.Subscribe("log", func(v *viper.Viper) error {
		level.Store(v.GetString("log.level"))
		return nil
	})
	w.Start()
	require.True(t, w.IsWatching())

	require.NoError(t, os.WriteFile(path, []byte("log:\n  level: debug\n"), 0o600))
	assert.Eventually(t, func() bool {
		l, _ := level.Load().(string)
		return l == "debug"
	}, 5*time.Second, 50*time.Millisecond)
}
