// Package ollama 提供本地 Ollama 服务的供应商实现。
package ollama

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/kart-io/docqa/pkg/llm"
	"github.com/kart-io/docqa/pkg/utils/httpclient"
)

const ProviderName = "ollama"

func init() {
	llm.RegisterProvider(ProviderName, NewProvider)
}

// Config Ollama 供应商配置。
type Config struct {
	BaseURL     string
	EmbedModel  string
	ChatModel   string
	Temperature float64
	// MaxTokens 对应 Ollama 的 num_predict，0 表示不限制。
	MaxTokens  int
	Timeout    time.Duration
	MaxRetries int
}

// DefaultConfig 返回默认配置。
func DefaultConfig() *Config {
	return &Config{
		BaseURL:     "http://localhost:11434",
		EmbedModel:  "nomic-embed-text",
		ChatModel:   "llama3.1",
		Temperature: 0.1,
		MaxTokens:   2000,
		Timeout:     120 * time.Second,
		MaxRetries:  1,
	}
}

// Provider Ollama 供应商实现。
type Provider struct {
	config *Config
	client *httpclient.Client
}

// NewProvider 从配置 map 创建 Ollama 供应商。
func NewProvider(m map[string]any) (llm.Provider, error) {
	cfg := DefaultConfig()
	cfg.BaseURL = llm.ConfigString(m, "base_url", cfg.BaseURL)
	cfg.EmbedModel = llm.ConfigString(m, "embed_model", cfg.EmbedModel)
	cfg.ChatModel = llm.ConfigString(m, "chat_model", cfg.ChatModel)
	cfg.Temperature = llm.ConfigFloat(m, "temperature", cfg.Temperature)
	cfg.MaxTokens = llm.ConfigInt(m, "max_tokens", cfg.MaxTokens)
	cfg.Timeout = llm.ConfigDuration(m, "timeout", cfg.Timeout)
	cfg.MaxRetries = llm.ConfigInt(m, "max_retries", cfg.MaxRetries)
	return NewProviderWithConfig(cfg), nil
}

// NewProviderWithConfig 使用结构化配置创建 Ollama 供应商。
func NewProviderWithConfig(cfg *Config) *Provider {
	return &Provider{
		config: cfg,
		client: httpclient.NewClient(cfg.Timeout, cfg.MaxRetries),
	}
}

func (p *Provider) Name() string { return ProviderName }

type embedRequest struct {
	Model string   `json:"model"`
	Input []string `json:"input"`
}

type embedResponse struct {
	Embeddings [][]float32 `json:"embeddings"`
}

// Embed 调用 /api/embed 批量生成向量。
func (p *Provider) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}
	var resp embedResponse
	if err := p.client.PostJSON(ctx, p.config.BaseURL+"/api/embed", nil,
		embedRequest{Model: p.config.EmbedModel, Input: texts}, &resp); err != nil {
		return nil, fmt.Errorf("ollama embed: %w", err)
	}
	if len(resp.Embeddings) != len(texts) {
		return nil, fmt.Errorf("ollama embed: got %d vectors for %d inputs", len(resp.Embeddings), len(texts))
	}
	return resp.Embeddings, nil
}

func (p *Provider) EmbedSingle(ctx context.Context, text string) ([]float32, error) {
	out, err := p.Embed(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return out[0], nil
}

type options struct {
	Temperature float64 `json:"temperature"`
	NumPredict  int     `json:"num_predict,omitempty"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model    string        `json:"model"`
	Messages []chatMessage `json:"messages"`
	Stream   bool          `json:"stream"`
	Options  options       `json:"options"`
}

type chatResponse struct {
	Message chatMessage `json:"message"`
	Done    bool        `json:"done"`
}

func (p *Provider) options() options {
	return options{Temperature: p.config.Temperature, NumPredict: p.config.MaxTokens}
}

// Chat 调用 /api/chat 进行多轮对话。
func (p *Provider) Chat(ctx context.Context, messages []llm.Message) (string, error) {
	req := chatRequest{
		Model:    p.config.ChatModel,
		Messages: make([]chatMessage, len(messages)),
		Options:  p.options(),
	}
	for i, m := range messages {
		req.Messages[i] = chatMessage{Role: string(m.Role), Content: m.Content}
	}

	var resp chatResponse
	if err := p.client.PostJSON(ctx, p.config.BaseURL+"/api/chat", nil, req, &resp); err != nil {
		return "", fmt.Errorf("ollama chat: %w", err)
	}
	return resp.Message.Content, nil
}

type generateRequest struct {
	Model   string  `json:"model"`
	Prompt  string  `json:"prompt"`
	System  string  `json:"system,omitempty"`
	Stream  bool    `json:"stream"`
	Options options `json:"options"`
}

type generateResponse struct {
	Response string `json:"response"`
}

// Generate 调用 /api/generate 单轮生成。
func (p *Provider) Generate(ctx context.Context, prompt, systemPrompt string) (string, error) {
	var resp generateResponse
	err := p.client.PostJSON(ctx, p.config.BaseURL+"/api/generate", nil, generateRequest{
		Model:   p.config.ChatModel,
		Prompt:  prompt,
		System:  systemPrompt,
		Options: p.options(),
	}, &resp)
	if err != nil {
		return "", fmt.Errorf("ollama generate: %w", err)
	}
	return resp.Response, nil
}

// Ping 检查 Ollama 服务是否可用。
func (p *Provider) Ping(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.config.BaseURL+"/api/tags", nil)
	if err != nil {
		return err
	}
	if err := p.client.DoJSON(req, nil); err != nil {
		return errors.Join(errors.New("ollama unreachable"), err)
	}
	return nil
}

var (
	_ llm.Provider = (*Provider)(nil)
	_ llm.Pinger   = (*Provider)(nil)
)
