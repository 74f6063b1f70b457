// Package textutil 提供文本切分与向量相似度等 RAG 工具函数。
package textutil

import (
	"fmt"
	"math"
	"strings"
	"unicode"
	"unicode/utf8"
)

// CosineSimilarity 计算两个向量的余弦相似度，范围 [-1, 1]。
// 长度不一致、空向量或零向量返回 0。
func CosineSimilarity(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}

	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}

// TruncateString 截断到最多 maxLen 个字符。
func TruncateString(s string, maxLen int) string {
	if utf8.RuneCountInString(s) <= maxLen {
		return s
	}
	return string([]rune(s)[:maxLen])
}

// Segment 切分结果，Offset 为片段在原文中的字符（rune）偏移。
type Segment struct {
	Text   string
	Offset int
}

// Splitter 按分隔符切分后合并为不超过 ChunkSize 个字符的块，
// 相邻块之间携带不超过 ChunkOverlap 个字符的尾部片段。
type Splitter struct {
	ChunkSize    int
	ChunkOverlap int
	Separator    string
}

// NewSplitter 校验参数并创建 Splitter。
func NewSplitter(chunkSize, chunkOverlap int, separator string) (*Splitter, error) {
	if chunkSize <= 0 {
		return nil, fmt.Errorf("chunk size must be positive, got %d", chunkSize)
	}
	if chunkOverlap < 0 || chunkOverlap >= chunkSize {
		return nil, fmt.Errorf("chunk overlap must be within [0, %d), got %d", chunkSize, chunkOverlap)
	}
	return &Splitter{ChunkSize: chunkSize, ChunkOverlap: chunkOverlap, Separator: separator}, nil
}

// Split 切分文本。空白片段被丢弃，每个块长度不超过 ChunkSize。
// 分隔符为空时按固定窗口切分。
func (s *Splitter) Split(text string) []Segment {
	if s.Separator == "" {
		return trimAll(s.windows(Segment{Text: text}))
	}

	var pieces []Segment
	for _, p := range s.splitOnSeparator(text) {
		if utf8.RuneCountInString(p.Text) > s.ChunkSize {
			pieces = append(pieces, trimAll(s.windows(p))...)
			continue
		}
		pieces = append(pieces, p)
	}
	return s.merge(pieces)
}

func (s *Splitter) splitOnSeparator(text string) []Segment {
	var out []Segment
	runeOff := 0
	for {
		idx := strings.Index(text, s.Separator)
		part := text
		if idx >= 0 {
			part = text[:idx]
		}
		if seg, ok := trim(Segment{Text: part, Offset: runeOff}); ok {
			out = append(out, seg)
		}
		if idx < 0 {
			return out
		}
		runeOff += utf8.RuneCountInString(part) + utf8.RuneCountInString(s.Separator)
		text = text[idx+len(s.Separator):]
	}
}

// windows 以 ChunkSize 为窗口、ChunkSize-ChunkOverlap 为步长切分，保证内容不丢失。
func (s *Splitter) windows(seg Segment) []Segment {
	runes := []rune(seg.Text)
	step := s.ChunkSize - s.ChunkOverlap
	var out []Segment
	for i := 0; i < len(runes); i += step {
		end := i + s.ChunkSize
		if end > len(runes) {
			end = len(runes)
		}
		out = append(out, Segment{Text: string(runes[i:end]), Offset: seg.Offset + i})
		if end == len(runes) {
			break
		}
	}
	return out
}

func (s *Splitter) merge(pieces []Segment) []Segment {
	sepLen := utf8.RuneCountInString(s.Separator)
	var (
		out     []Segment
		current []Segment
		lens    []int
		total   int
	)
	joinLen := func(extra int) int {
		if len(current) == 0 {
			return extra
		}
		return total + sepLen + extra
	}
	emit := func() {
		texts := make([]string, len(current))
		for i, c := range current {
			texts[i] = c.Text
		}
		if seg, ok := trim(Segment{Text: strings.Join(texts, s.Separator), Offset: current[0].Offset}); ok {
			out = append(out, seg)
		}
	}
	popFront := func() {
		total -= lens[0]
		if len(current) > 1 {
			total -= sepLen
		}
		current, lens = current[1:], lens[1:]
	}

	for _, p := range pieces {
		l := utf8.RuneCountInString(p.Text)
		if len(current) > 0 && joinLen(l) > s.ChunkSize {
			emit()
			// 只保留不超过 overlap 的尾部，并为新片段腾出空间
			for len(current) > 0 && (total > s.ChunkOverlap || joinLen(l) > s.ChunkSize) {
				popFront()
			}
		}
		total = joinLen(l)
		current = append(current, p)
		lens = append(lens, l)
	}
	if len(current) > 0 {
		emit()
	}
	return out
}

func trimAll(segs []Segment) []Segment {
	out := segs[:0]
	for _, s := range segs {
		if t, ok := trim(s); ok {
			out = append(out, t)
		}
	}
	return out
}

// trim 去掉首尾空白并修正偏移，全空白时返回 false。
func trim(seg Segment) (Segment, bool) {
	left := strings.TrimLeftFunc(seg.Text, unicode.IsSpace)
	if left == "" {
		return Segment{}, false
	}
	offset := seg.Offset + utf8.RuneCountInString(seg.Text[:len(seg.Text)-len(left)])
	return Segment{Text: strings.TrimRightFunc(left, unicode.IsSpace), Offset: offset}, true
}
