package llm

import (
	"context"
	"fmt"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
)

const (
	defaultOpenAIModel = "gpt-4o-mini"
	jsonInstruction    = "Respond with a single JSON object and nothing else."
)

// OpenAIClient 是 OpenAI 及兼容接口的 Client 实现。
type OpenAIClient struct {
	client   *openai.Client
	model    string
	defaults Options
}

// NewOpenAIClient 创建 chat-completions 客户端，baseURL 可为空。
func NewOpenAIClient(apiKey, baseURL, model string, defaults Options) *OpenAIClient {
	opts := []option.RequestOption{option.WithAPIKey(apiKey)}
	if baseURL != "" {
		opts = append(opts, option.WithBaseURL(baseURL))
	}
	if model == "" {
		model = defaultOpenAIModel
	}
	return &OpenAIClient{
		client:   openai.NewClient(opts...),
		model:    model,
		defaults: defaults,
	}
}

func (c *OpenAIClient) Generate(ctx context.Context, prompt string, opts Options) (string, error) {
	opts = merge(opts, c.defaults)

	messages := make([]openai.ChatCompletionMessageParamUnion, 0, 2)
	if opts.JSON {
		messages = append(messages, openai.SystemMessage(jsonInstruction))
	}
	messages = append(messages, openai.UserMessage(prompt))

	params := openai.ChatCompletionNewParams{
		Messages: openai.F(messages),
		Model:    openai.F(c.model),
	}
	if opts.Temperature > 0 {
		params.Temperature = openai.F(float64(opts.Temperature))
	}
	if opts.MaxTokens > 0 {
		params.MaxTokens = openai.F(int64(opts.MaxTokens))
	}

	resp, err := c.client.Chat.Completions.New(ctx, params)
	if err != nil {
		return "", fmt.Errorf("openai generate: %w", err)
	}
	if len(resp.Choices) == 0 || resp.Choices[0].Message.Content == "" {
		return "", ErrEmptyResponse
	}
	return resp.Choices[0].Message.Content, nil
}

func (c *OpenAIClient) Close() error { return nil }
