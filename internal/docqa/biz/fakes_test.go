package biz

import (
	"context"
	"errors"
	"hash/fnv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/kart-io/docqa/internal/docqa/store"
	"github.com/kart-io/docqa/pkg/llm"
)

const fakeDim = 256

// hashEmbedder 词袋哈希向量，相同词汇的文本相似度高。
type hashEmbedder struct {
	calls atomic.Int32
	err   error
	block chan struct{}
}

func (e *hashEmbedder) Name() string { return "hash" }

func (e *hashEmbedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	e.calls.Add(1)
	if e.block != nil {
		select {
		case <-e.block:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if e.err != nil {
		return nil, e.err
	}
	out := make([][]float32, len(texts))
	for i, t := range texts {
		out[i] = hashVector(t)
	}
	return out, nil
}

func (e *hashEmbedder) EmbedSingle(ctx context.Context, text string) ([]float32, error) {
	v, err := e.Embed(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return v[0], nil
}

func hashVector(text string) []float32 {
	v := make([]float32, fakeDim)
	for _, w := range strings.Fields(strings.ToLower(text)) {
		h := fnv.New32a()
		_, _ = h.Write([]byte(strings.Trim(w, ".,?!")))
		v[h.Sum32()%fakeDim]++
	}
	return v
}

// fakeChat 按调用顺序记录提示词，回答由 fn 决定。
type fakeChat struct {
	mu      sync.Mutex
	prompts []string
	systems []string
	fn      func(ctx context.Context, prompt, system string) (string, error)
}

func (c *fakeChat) Name() string { return "fake" }

func (c *fakeChat) Generate(ctx context.Context, prompt, system string) (string, error) {
	c.mu.Lock()
	c.prompts = append(c.prompts, prompt)
	c.systems = append(c.systems, system)
	c.mu.Unlock()
	if c.fn == nil {
		return "generated answer", nil
	}
	return c.fn(ctx, prompt, system)
}

func (c *fakeChat) Chat(ctx context.Context, messages []llm.Message) (string, error) {
	if len(messages) == 0 {
		return "", errors.New("no messages")
	}
	return c.Generate(ctx, messages[len(messages)-1].Content, "")
}

func (c *fakeChat) calls() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.prompts)
}

func (c *fakeChat) lastPrompt() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.prompts) == 0 {
		return ""
	}
	return c.prompts[len(c.prompts)-1]
}

// fakeRetriever 返回固定结果并记录查询。
type fakeRetriever struct {
	mu      sync.Mutex
	chunks  []store.ScoredChunk
	err     error
	queries []string
	ks      []int
}

func (r *fakeRetriever) Query(_ context.Context, question string, k int) ([]store.ScoredChunk, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.queries = append(r.queries, question)
	r.ks = append(r.ks, k)
	if r.err != nil {
		return nil, r.err
	}
	return r.chunks, nil
}

// stubAgent 可控的能力体。
type stubAgent struct {
	name   string
	text   string
	status StatusCode
	err    error
	wait   bool
	panics bool
	// sleep 忽略 ctx 的阻塞时长。
	sleep time.Duration
	calls atomic.Int32
}

func (a *stubAgent) Name() string { return a.name }

func (a *stubAgent) Invoke(ctx context.Context, _ string, _ []Turn) (string, Status) {
	a.calls.Add(1)
	if a.panics {
		panic("agent exploded")
	}
	if a.sleep > 0 {
		time.Sleep(a.sleep)
	}
	if a.wait {
		<-ctx.Done()
		return "", statusFor(ctx, ctx.Err())
	}
	return a.text, Status{Code: a.status, Err: a.err}
}

// failingSessionStore 写入与读取都失败。
type failingSessionStore struct{}

func (failingSessionStore) Name() string { return "failing" }

func (failingSessionStore) Append(context.Context, string, string, string) (*store.Exchange, error) {
	return nil, errors.New("store down")
}

func (failingSessionStore) Query(context.Context, string, int) ([]store.Exchange, error) {
	return nil, errors.New("store down")
}
