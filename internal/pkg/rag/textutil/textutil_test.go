package textutil_test

import (
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kart-io/docqa/internal/pkg/rag/textutil"
)

func TestCosineSimilarity(t *testing.T) {
	tests := []struct {
		name     string
		a, b     []float32
		expected float64
	}{
		{"相同向量", []float32{1, 0, 0}, []float32{1, 0, 0}, 1},
		{"正交向量", []float32{1, 0, 0}, []float32{0, 1, 0}, 0},
		{"相反向量", []float32{1, 0, 0}, []float32{-1, 0, 0}, -1},
		{"空向量", []float32{}, []float32{}, 0},
		{"零向量", []float32{0, 0}, []float32{1, 1}, 0},
		{"长度不匹配", []float32{1, 2}, []float32{1}, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.expected, textutil.CosineSimilarity(tt.a, tt.b), 1e-4)
		})
	}
}

func TestTruncateString(t *testing.T) {
	assert.Equal(t, "你好", textutil.TruncateString("你好世界", 2))
	assert.Equal(t, "abc", textutil.TruncateString("abc", 10))
}

func TestNewSplitterValidation(t *testing.T) {
	_, err := textutil.NewSplitter(0, 0, "\n\n")
	assert.Error(t, err)
	_, err = textutil.NewSplitter(10, 10, "\n\n")
	assert.Error(t, err)
	_, err = textutil.NewSplitter(10, -1, "\n\n")
	assert.Error(t, err)
	_, err = textutil.NewSplitter(10, 2, "")
	assert.NoError(t, err)
}

func TestSplitMergesParagraphs(t *testing.T) {
	s, err := textutil.NewSplitter(12, 5, "\n\n")
	require.NoError(t, err)

	segs := s.Split("aaaa\n\nbbbb\n\ncccc\n\n   \n\ndddd")
	texts := make([]string, len(segs))
	for i, seg := range segs {
		texts[i] = seg.Text
	}
	// "aaaa\n\nbbbb" 长度 10，再加入 "cccc" 会超过 12
	assert.Equal(t, []string{"aaaa\n\nbbbb", "bbbb\n\ncccc", "cccc\n\ndddd"}, texts)
	assert.Equal(t, 0, segs[0].Offset)
	assert.Equal(t, 6, segs[1].Offset)
	assert.Equal(t, 12, segs[2].Offset)
}

func TestSplitHardSplitsLongPiece(t *testing.T) {
	s, err := textutil.NewSplitter(10, 3, "\n\n")
	require.NoError(t, err)

	long := strings.Repeat("x", 25)
	segs := s.Split("head\n\n" + long)
	var joined strings.Builder
	for _, seg := range segs {
		assert.LessOrEqual(t, utf8.RuneCountInString(seg.Text), 10)
		joined.WriteString(seg.Text)
	}
	assert.Equal(t, "head", segs[0].Text)
	assert.GreaterOrEqual(t, strings.Count(joined.String(), "x"), 25, "no content dropped")
}

func TestSplitEmptySeparatorUsesWindows(t *testing.T) {
	s, err := textutil.NewSplitter(4, 1, "")
	require.NoError(t, err)

	segs := s.Split("abcdefghij")
	require.Len(t, segs, 3)
	assert.Equal(t, textutil.Segment{Text: "abcd", Offset: 0}, segs[0])
	assert.Equal(t, textutil.Segment{Text: "defg", Offset: 3}, segs[1])
	assert.Equal(t, textutil.Segment{Text: "ghij", Offset: 6}, segs[2])
}

func TestSplitTrimsAndOffsetsRunes(t *testing.T) {
	s, err := textutil.NewSplitter(100, 0, "\n\n")
	require.NoError(t, err)

	segs := s.Split("政策\n\n  员工手册  ")
	require.Len(t, segs, 1)
	assert.Equal(t, "政策\n\n员工手册", segs[0].Text)

	s, err = textutil.NewSplitter(3, 0, "\n\n")
	require.NoError(t, err)
	segs = s.Split("政策\n\n  员工手册")
	require.Len(t, segs, 3)
	assert.Equal(t, textutil.Segment{Text: "员工手", Offset: 6}, segs[1])
}

func TestSplitWhitespaceOnly(t *testing.T) {
	s, err := textutil.NewSplitter(10, 2, "\n\n")
	require.NoError(t, err)
	assert.Empty(t, s.Split(" \n\n\t\n\n"))
	assert.Empty(t, s.Split(""))
}

func TestSplitDeterministicAcrossSeparators(t *testing.T) {
	text := strings.Repeat("Employees accrue leave monthly. ", 12) + "\n\n" +
		"假期申请需经主管批准。\n" + strings.Repeat("Remote work is allowed twice a week.\n", 6) + "\n\n" +
		strings.Repeat("y", 70) + "\n\n   \n\n" + "Dental: two cleanings."

	tests := []struct {
		name      string
		separator string
		size      int
		overlap   int
	}{
		{"段落分隔", "\n\n", 60, 10},
		{"换行分隔", "\n", 50, 8},
		{"空格分隔", " ", 40, 5},
		{"固定窗口", "", 30, 6},
		{"分隔符不存在", "###", 45, 0},
	}
	runes := []rune(text)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, err := textutil.NewSplitter(tt.size, tt.overlap, tt.separator)
			require.NoError(t, err)

			first := s.Split(text)
			second := s.Split(text)
			require.NotEmpty(t, first)
			assert.Equal(t, first, second)

			for _, seg := range first {
				assert.LessOrEqual(t, utf8.RuneCountInString(seg.Text), tt.size)
				assert.NotEmpty(t, strings.TrimSpace(seg.Text))
				require.Less(t, seg.Offset, len(runes))
				// 偏移指向块的首字符
				assert.Equal(t, []rune(seg.Text)[0], runes[seg.Offset])
			}
		})
	}
}
