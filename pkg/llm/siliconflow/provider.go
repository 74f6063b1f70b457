// Package siliconflow 注册硅基流动供应商（OpenAI 兼容接口）。
package siliconflow

import (
	"time"

	"github.com/kart-io/docqa/pkg/llm/openai"
)

const ProviderName = "siliconflow"

func init() {
	openai.RegisterCompatible(ProviderName, openai.Config{
		BaseURL:     "https://api.siliconflow.cn/v1",
		EmbedModel:  "BAAI/bge-m3",
		ChatModel:   "Qwen/Qwen2.5-7B-Instruct",
		Temperature: 0.1,
		MaxTokens:   2000,
		Timeout:     120 * time.Second,
	})
}
