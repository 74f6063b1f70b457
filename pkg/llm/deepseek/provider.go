// Package deepseek 注册 DeepSeek 供应商（OpenAI 兼容接口，仅支持 Chat）。
package deepseek

import (
	"time"

	"github.com/kart-io/docqa/pkg/llm/openai"
)

const ProviderName = "deepseek"

func init() {
	openai.RegisterCompatible(ProviderName, openai.Config{
		BaseURL:     "https://api.deepseek.com",
		ChatModel:   "deepseek-chat",
		Temperature: 0.1,
		MaxTokens:   2000,
		Timeout:     120 * time.Second,
	})
}
