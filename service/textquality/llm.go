/*
 * @module service/textquality/llm
 * @description 流式 LLM 客户端，对接 OpenAI 兼容的对话补全接口
 * @architecture 基础设施层 - LLM 接入
 * @stateFlow 构造请求 -> SSE 流式接收 -> 增量内容拼接
 * @rules temperature 0.01 / top_p 0.01 / max_tokens 4096，输出确定性优先
 * @dependencies github.com/sashabaranov/go-openai
 * @refs service.go
 */

package textquality

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	openai "github.com/sashabaranov/go-openai"
)

const (
	llmTemperature = 0.01
	llmTopP        = 0.01
	llmMaxTokens   = 4096
	llmTimeout     = 120 * time.Second
)

// Completer LLM 补全接口，便于测试替换
type Completer interface {
	Complete(ctx context.Context, prompt string) (string, error)
}

// LLMClient 基于 go-openai 的流式客户端
type LLMClient struct {
	client *openai.Client
	model  string
}

// NewLLMClientFromEnv 按环境变量创建客户端
// LLM_BASE_URL 缺省指向 DeepSeek 兼容端点
func NewLLMClientFromEnv() *LLMClient {
	apiKey := os.Getenv("LLM_API_KEY")
	baseURL := os.Getenv("LLM_BASE_URL")
	if baseURL == "" {
		baseURL = "https://api.deepseek.com/v1"
	}
	model := os.Getenv("LLM_MODEL_NAME")
	if model == "" {
		model = "deepseek-chat"
	}
	cfg := openai.DefaultConfig(apiKey)
	cfg.BaseURL = baseURL
	return &LLMClient{
		client: openai.NewClientWithConfig(cfg),
		model:  model,
	}
}

// Complete 流式补全，聚合增量内容后整体返回
func (c *LLMClient) Complete(ctx context.Context, prompt string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, llmTimeout)
	defer cancel()

	stream, err := c.client.CreateChatCompletionStream(ctx, openai.ChatCompletionRequest{
		Model: c.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleUser, Content: prompt},
		},
		Temperature: llmTemperature,
		TopP:        llmTopP,
		MaxTokens:   llmMaxTokens,
		Stream:      true,
	})
	if err != nil {
		return "", fmt.Errorf("创建LLM流式请求失败: %w", err)
	}
	defer stream.Close()

	var sb strings.Builder
	for {
		chunk, err := stream.Recv()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return "", fmt.Errorf("接收LLM流式响应失败: %w", err)
		}
		if len(chunk.Choices) > 0 {
			sb.WriteString(chunk.Choices[0].Delta.Content)
		}
	}
	return sb.String(), nil
}
