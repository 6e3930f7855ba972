// Package llm 封装文档生成与资料建议所用的大模型。
package llm

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"jobgenie/internal/config"
)

// 配置中可用的 provider 名称。
const (
	ProviderGemini = "gemini"
	ProviderOpenAI = "openai"
)

// ErrEmptyResponse 表示模型没有返回任何文本。
var ErrEmptyResponse = errors.New("llm: empty response")

// Options 调整单次生成，零值使用客户端默认值。
type Options struct {
	Temperature float32
	MaxTokens   int
	// JSON 要求模型只输出 JSON 对象。
	JSON bool
}

// Client 根据提示词生成文本。
type Client interface {
	Generate(ctx context.Context, prompt string, opts Options) (string, error)
	Close() error
}

// NewClient 按 cfg.Provider 构造客户端。
func NewClient(ctx context.Context, cfg config.AIConfig) (Client, error) {
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, fmt.Errorf("ai api key is required")
	}
	defaults := Options{Temperature: cfg.Temperature, MaxTokens: cfg.MaxTokens}

	switch cfg.Provider {
	case ProviderOpenAI:
		return NewOpenAIClient(cfg.APIKey, cfg.BaseURL, cfg.Model, defaults), nil
	case ProviderGemini, "":
		return NewGeminiClient(ctx, cfg.APIKey, cfg.Model, defaults)
	default:
		return nil, fmt.Errorf("unsupported ai provider %q", cfg.Provider)
	}
}

func merge(opts, defaults Options) Options {
	if opts.Temperature == 0 {
		opts.Temperature = defaults.Temperature
	}
	if opts.MaxTokens == 0 {
		opts.MaxTokens = defaults.MaxTokens
	}
	return opts
}
