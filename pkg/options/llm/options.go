// Package llm 提供 LLM 供应商配置。
package llm

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/pflag"

	"github.com/kart-io/docqa/pkg/options"
)

var _ options.IOptions = (*ProviderOptions)(nil)

// ProviderOptions 单个 LLM 供应商的配置，embedding 与 chat 各一份。
type ProviderOptions struct {
	Provider     string        `json:"provider" mapstructure:"provider"`
	BaseURL      string        `json:"base-url" mapstructure:"base-url"`
	APIKey       string        `json:"-" mapstructure:"api-key"`
	Model        string        `json:"model" mapstructure:"model"`
	Organization string        `json:"organization" mapstructure:"organization"`
	Timeout      time.Duration `json:"timeout" mapstructure:"timeout"`
	MaxRetries   int           `json:"max-retries" mapstructure:"max-retries"`
	Temperature  float64       `json:"temperature" mapstructure:"temperature"`
	MaxTokens    int           `json:"max-tokens" mapstructure:"max-tokens"`
}

// NewEmbeddingOptions 返回 embedding 默认配置。
func NewEmbeddingOptions() *ProviderOptions {
	return &ProviderOptions{
		Provider:   "openai",
		Model:      "text-embedding-3-small",
		Timeout:    60 * time.Second,
		MaxRetries: 2,
	}
}

// NewChatOptions 返回 chat 默认配置，温度 0.1。
func NewChatOptions() *ProviderOptions {
	return &ProviderOptions{
		Provider:    "openai",
		Model:       "gpt-4o-mini",
		Timeout:     60 * time.Second,
		MaxRetries:  2,
		Temperature: 0.1,
		MaxTokens:   2000,
	}
}

// ToConfigMap 转换为 llm.NewProvider 使用的配置。
func (o *ProviderOptions) ToConfigMap() map[string]any {
	m := map[string]any{
		"api_key":      o.APIKey,
		"embed_model":  o.Model,
		"chat_model":   o.Model,
		"timeout":      o.Timeout,
		"max_retries":  o.MaxRetries,
		"organization": o.Organization,
		"temperature":  o.Temperature,
		"max_tokens":   o.MaxTokens,
	}
	// 空值交给各供应商使用自身默认地址
	if o.BaseURL != "" {
		m["base_url"] = o.BaseURL
	}
	return m
}

// AddFlags 注册 <prefix>.* 参数，prefix 通常为 embedding 或 chat。
func (o *ProviderOptions) AddFlags(fs *pflag.FlagSet, prefixes ...string) {
	p := options.Join(prefixes...)
	fs.StringVar(&o.Provider, p+"provider", o.Provider, "LLM provider (openai, ollama, deepseek, siliconflow).")
	fs.StringVar(&o.BaseURL, p+"base-url", o.BaseURL, "LLM API base URL, empty for the provider default.")
	fs.StringVar(&o.APIKey, p+"api-key", o.APIKey, "LLM API key (defaults to OPENAI_API_KEY for openai).")
	fs.StringVar(&o.Model, p+"model", o.Model, "Model name.")
	fs.StringVar(&o.Organization, p+"organization", o.Organization, "Organization id (optional).")
	fs.DurationVar(&o.Timeout, p+"timeout", o.Timeout, "Timeout of a single request attempt.")
	fs.IntVar(&o.MaxRetries, p+"max-retries", o.MaxRetries, "Retries after the first attempt.")
	fs.Float64Var(&o.Temperature, p+"temperature", o.Temperature, "Sampling temperature.")
	fs.IntVar(&o.MaxTokens, p+"max-tokens", o.MaxTokens, "Maximum tokens to generate.")
}

// Complete 从环境变量补全 API key。
func (o *ProviderOptions) Complete() error {
	o.Provider = strings.ToLower(o.Provider)
	if o.APIKey == "" {
		switch o.Provider {
		case "openai":
			o.APIKey = os.Getenv("OPENAI_API_KEY")
		case "deepseek":
			o.APIKey = os.Getenv("DEEPSEEK_API_KEY")
		case "siliconflow":
			o.APIKey = os.Getenv("SILICONFLOW_API_KEY")
		}
	}
	if o.MaxRetries < 0 {
		o.MaxRetries = 0
	}
	return nil
}

// Validate 校验配置。
func (o *ProviderOptions) Validate() []error {
	if o == nil {
		return nil
	}
	var errs []error
	if o.Provider == "" {
		errs = append(errs, fmt.Errorf("provider is required"))
	}
	if o.Model == "" {
		errs = append(errs, fmt.Errorf("model is required"))
	}
	if o.Provider != "ollama" && o.APIKey == "" {
		errs = append(errs, fmt.Errorf("api-key is required for %s provider", o.Provider))
	}
	if o.Timeout <= 0 {
		errs = append(errs, fmt.Errorf("timeout must be positive"))
	}
	if o.Temperature < 0 || o.Temperature > 2 {
		errs = append(errs, fmt.Errorf("temperature must be within [0, 2]"))
	}
	return errs
}
