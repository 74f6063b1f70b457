package biz

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemory_Capacity(t *testing.T) {
	m := NewMemory(3)
	for i := 0; i < 5; i++ {
		m.Add(fmt.Sprintf("q%d", i), fmt.Sprintf("a%d", i))
	}
	turns := m.Turns()
	assert.Len(t, turns, 3)
	assert.Equal(t, "q2", turns[0].Question)
	assert.Equal(t, "q4", turns[2].Question)

	assert.Equal(t, DefaultMemorySize, NewMemory(0).capacity)
}

func TestRenderHistory(t *testing.T) {
	assert.Equal(t, FirstQuestionSentinel, RenderHistory(nil))

	got := RenderHistory([]Turn{
		{Question: "How many vacation days?", Answer: "Twenty."},
		{Question: "And sick days?", Answer: "Ten."},
	})
	want := "Previous conversation:\n" +
		"User: How many vacation days?\nAssistant: Twenty.\n" +
		"User: And sick days?\nAssistant: Ten.\n"
	assert.Equal(t, want, got)
}

func TestMemory_Hydrate(t *testing.T) {
	t.Run("只回填一次", func(t *testing.T) {
		m := NewMemory(8)
		assert.False(t, m.Hydrated())
		m.Hydrate([]Turn{{Question: "q0", Answer: "a0"}})
		m.Hydrate([]Turn{{Question: "ignored", Answer: "x"}})
		assert.True(t, m.Hydrated())
		assert.Equal(t, []Turn{{Question: "q0", Answer: "a0"}}, m.Turns())
	})

	t.Run("超出容量保留最近的", func(t *testing.T) {
		m := NewMemory(2)
		m.Hydrate([]Turn{{Question: "q0"}, {Question: "q1"}, {Question: "q2"}})
		turns := m.Turns()
		assert.Len(t, turns, 2)
		assert.Equal(t, "q1", turns[0].Question)
	})

	t.Run("清空后不再回填", func(t *testing.T) {
		m := NewMemory(8)
		m.Add("q", "a")
		m.Clear()
		m.Hydrate([]Turn{{Question: "old"}})
		assert.Equal(t, 0, m.Len())
		assert.Equal(t, FirstQuestionSentinel, m.Render())
	})
}

func TestMemoryRegistry(t *testing.T) {
	r := NewMemoryRegistry(4, 2)
	a := r.Get("a")
	a.Add("qa", "aa")
	assert.Same(t, a, r.Get("a"))

	r.Get("b")
	r.Get("a") // a 变为最近使用
	r.Get("c") // 淘汰 b
	assert.Equal(t, 2, r.Len())
	assert.Equal(t, 1, r.Get("a").Len())

	at := time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)
	r.Clear("a", at)
	assert.Equal(t, 0, r.Get("a").Len())
	assert.True(t, r.Get("a").Hydrated())

	r.Clear("unknown", at)
	assert.True(t, r.Get("unknown").Hydrated())
}

func TestMemoryRegistry_ClearSurvivesEviction(t *testing.T) {
	r := NewMemoryRegistry(4, 1)
	at := time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)
	r.Clear("a", at)

	r.Get("b") // 淘汰 a 的缓冲
	assert.False(t, r.Get("a").Hydrated())
	got, ok := r.ClearedAt("a")
	require.True(t, ok)
	assert.Equal(t, at, got)

	_, ok = r.ClearedAt("b")
	assert.False(t, ok)

	// 清空记录同样有上限
	r.Clear("b", at.Add(time.Minute))
	_, ok = r.ClearedAt("a")
	assert.False(t, ok)
}
