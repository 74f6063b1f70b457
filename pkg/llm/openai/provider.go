// Package openai 基于 go-openai 实现 OpenAI 及兼容 API 的供应商。
//
//	import _ "github.com/kart-io/docqa/pkg/llm/openai"
//
//	p, err := llm.NewChatProvider("openai", map[string]any{
//	    "api_key":     os.Getenv("OPENAI_API_KEY"),
//	    "chat_model":  "gpt-4o-mini",
//	    "temperature": 0.1,
//	})
package openai

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	goopenai "github.com/sashabaranov/go-openai"

	"github.com/kart-io/docqa/pkg/llm"
)

// ProviderName 供应商名称。
const ProviderName = "openai"

func init() {
	llm.RegisterProvider(ProviderName, NewProvider)
}

// Config OpenAI 供应商配置。
type Config struct {
	BaseURL      string
	APIKey       string
	Organization string
	EmbedModel   string
	ChatModel    string
	Temperature  float64
	MaxTokens    int
	Timeout      time.Duration
}

// DefaultConfig 返回默认配置。
func DefaultConfig() *Config {
	return &Config{
		BaseURL:     "https://api.openai.com/v1",
		EmbedModel:  string(goopenai.SmallEmbedding3),
		ChatModel:   goopenai.GPT4oMini,
		Temperature: 0.1,
		MaxTokens:   2000,
		Timeout:     120 * time.Second,
	}
}

// Provider OpenAI 供应商。
type Provider struct {
	config *Config
	client *goopenai.Client
}

// NewProvider 从配置 map 创建供应商，api_key 必填。
func NewProvider(m map[string]any) (llm.Provider, error) {
	cfg := DefaultConfig()
	cfg.BaseURL = llm.ConfigString(m, "base_url", cfg.BaseURL)
	cfg.APIKey = llm.ConfigString(m, "api_key", "")
	cfg.Organization = llm.ConfigString(m, "organization", "")
	cfg.EmbedModel = llm.ConfigString(m, "embed_model", cfg.EmbedModel)
	cfg.ChatModel = llm.ConfigString(m, "chat_model", cfg.ChatModel)
	cfg.Temperature = llm.ConfigFloat(m, "temperature", cfg.Temperature)
	cfg.MaxTokens = llm.ConfigInt(m, "max_tokens", cfg.MaxTokens)
	cfg.Timeout = llm.ConfigDuration(m, "timeout", cfg.Timeout)

	if cfg.APIKey == "" {
		return nil, errors.New("openai: api_key is required")
	}
	return NewProviderWithConfig(cfg), nil
}

// NewProviderWithConfig 使用结构化配置创建供应商。
func NewProviderWithConfig(cfg *Config) *Provider {
	cc := goopenai.DefaultConfig(cfg.APIKey)
	cc.BaseURL = cfg.BaseURL
	cc.OrgID = cfg.Organization
	cc.HTTPClient = &http.Client{Timeout: cfg.Timeout}
	return &Provider{config: cfg, client: goopenai.NewClientWithConfig(cc)}
}

func (p *Provider) Name() string { return ProviderName }

// Embed 批量生成向量，按返回的 index 对齐输入顺序。
func (p *Provider) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}
	resp, err := p.client.CreateEmbeddings(ctx, goopenai.EmbeddingRequest{
		Input: texts,
		Model: goopenai.EmbeddingModel(p.config.EmbedModel),
	})
	if err != nil {
		return nil, wrapError(err)
	}

	out := make([][]float32, len(texts))
	for _, d := range resp.Data {
		if d.Index < 0 || d.Index >= len(out) {
			continue
		}
		vec := make([]float32, len(d.Embedding))
		for i, x := range d.Embedding {
			vec[i] = float32(x)
		}
		out[d.Index] = vec
	}
	for i, v := range out {
		if v == nil {
			return nil, fmt.Errorf("openai: missing embedding for input %d", i)
		}
	}
	return out, nil
}

func (p *Provider) EmbedSingle(ctx context.Context, text string) ([]float32, error) {
	out, err := p.Embed(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return out[0], nil
}

func (p *Provider) Chat(ctx context.Context, messages []llm.Message) (string, error) {
	req := goopenai.ChatCompletionRequest{
		Model:       p.config.ChatModel,
		Temperature: float32(p.config.Temperature),
		MaxTokens:   p.config.MaxTokens,
		Messages:    make([]goopenai.ChatCompletionMessage, 0, len(messages)),
	}
	for _, m := range messages {
		req.Messages = append(req.Messages, goopenai.ChatCompletionMessage{Role: string(m.Role), Content: m.Content})
	}

	resp, err := p.client.CreateChatCompletion(ctx, req)
	if err != nil {
		return "", wrapError(err)
	}
	if len(resp.Choices) == 0 {
		return "", errors.New("openai: empty choices")
	}
	return resp.Choices[0].Message.Content, nil
}

func (p *Provider) Generate(ctx context.Context, prompt, systemPrompt string) (string, error) {
	var msgs []llm.Message
	if systemPrompt != "" {
		msgs = append(msgs, llm.Message{Role: llm.RoleSystem, Content: systemPrompt})
	}
	msgs = append(msgs, llm.Message{Role: llm.RoleUser, Content: prompt})
	return p.Chat(ctx, msgs)
}

// Ping 通过列出模型检查连通性。
func (p *Provider) Ping(ctx context.Context) error {
	if _, err := p.client.ListModels(ctx); err != nil {
		return wrapError(err)
	}
	return nil
}

// wrapError 把 HTTP 状态码放进错误文本，供重试判断使用。
func wrapError(err error) error {
	var apiErr *goopenai.APIError
	if errors.As(err, &apiErr) {
		return fmt.Errorf("openai: request failed with status code %d: %w", apiErr.HTTPStatusCode, err)
	}
	var reqErr *goopenai.RequestError
	if errors.As(err, &reqErr) {
		return fmt.Errorf("openai: request failed with status code %d: %w", reqErr.HTTPStatusCode, err)
	}
	return fmt.Errorf("openai: %w", err)
}

var (
	_ llm.Provider = (*Provider)(nil)
	_ llm.Pinger   = (*Provider)(nil)
)

// RegisterCompatible 以 name 注册一个兼容 OpenAI API 的供应商，defaults 提供其默认地址和模型。
func RegisterCompatible(name string, defaults Config) {
	llm.RegisterProvider(name, func(m map[string]any) (llm.Provider, error) {
		cfg := defaults
		cfg.BaseURL = llm.ConfigString(m, "base_url", cfg.BaseURL)
		cfg.APIKey = llm.ConfigString(m, "api_key", "")
		cfg.EmbedModel = llm.ConfigString(m, "embed_model", cfg.EmbedModel)
		cfg.ChatModel = llm.ConfigString(m, "chat_model", cfg.ChatModel)
		cfg.Temperature = llm.ConfigFloat(m, "temperature", cfg.Temperature)
		cfg.MaxTokens = llm.ConfigInt(m, "max_tokens", cfg.MaxTokens)
		cfg.Timeout = llm.ConfigDuration(m, "timeout", cfg.Timeout)
		if cfg.APIKey == "" {
			return nil, fmt.Errorf("%s: api_key is required", name)
		}
		return &compatible{Provider: NewProviderWithConfig(&cfg), name: name}, nil
	})
}

type compatible struct {
	*Provider
	name string
}

func (c *compatible) Name() string { return c.name }
