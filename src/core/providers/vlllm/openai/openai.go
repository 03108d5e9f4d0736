package openai

import (
	"context"
	"errors"
	"math"
	"net/http"
	"strings"

	"mealchat-server-go/src/core/providers"
	"mealchat-server-go/src/core/providers/vlllm"
	"mealchat-server-go/src/core/types"
	"mealchat-server-go/src/core/utils"

	"github.com/sashabaranov/go-openai"
)

// Provider OpenAI兼容接口的视觉模型提供者
type Provider struct {
	*vlllm.BaseProvider
	client *openai.Client
}

// 注册提供者
func init() {
	vlllm.Register("openai", NewProvider)
}

// NewProvider 创建OpenAI VLLLM提供者
func NewProvider(config *vlllm.Config, logger *utils.Logger) (providers.VisionProvider, error) {
	return &Provider{BaseProvider: vlllm.NewBaseProvider(config, logger)}, nil
}

// Initialize 解析密钥并创建客户端
func (p *Provider) Initialize() error {
	config := p.Config()
	apiKey, err := p.ResolveAPIKey()
	if err != nil {
		return err
	}

	clientConfig := openai.DefaultConfig(apiKey)
	if config.BaseURL != "" {
		clientConfig.BaseURL = config.BaseURL
	}
	clientConfig.HTTPClient = &http.Client{Timeout: config.Timeout}

	p.client = openai.NewClientWithConfig(clientConfig)
	return nil
}

// Invoke 非流式调用 chat completions，返回完整回复和令牌用量
func (p *Provider) Invoke(ctx context.Context, messages []types.Message) (*types.ModelReply, error) {
	config := p.Config()

	resp, err := p.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       config.ModelName,
		Messages:    toChatMessages(messages, config.Detail),
		MaxTokens:   config.MaxTokens,
		Temperature: temperature(config.Temperature),
	})
	if err != nil {
		// 接口返回的错误信息可能带有部分密钥，只写日志不向上返回
		var apiErr *openai.APIError
		if errors.As(err, &apiErr) {
			p.Logger().Warn("OpenAI接口返回错误", map[string]interface{}{
				"status":  apiErr.HTTPStatusCode,
				"type":    apiErr.Type,
				"message": apiErr.Message,
			})
			return nil, vlllm.RemoteError("OpenAI接口返回错误(status=%d, type=%s)", apiErr.HTTPStatusCode, apiErr.Type)
		}
		var reqErr *openai.RequestError
		if errors.As(err, &reqErr) {
			p.Logger().Warn("OpenAI请求失败", map[string]interface{}{
				"status": reqErr.HTTPStatusCode,
				"error":  reqErr.Error(),
			})
			return nil, vlllm.RemoteError("OpenAI请求失败(status=%d)", reqErr.HTTPStatusCode)
		}
		return nil, vlllm.RemoteError("请求OpenAI失败: %v", err)
	}

	if len(resp.Choices) == 0 {
		return nil, vlllm.RemoteError("OpenAI返回空的choices")
	}
	content := resp.Choices[0].Message.Content
	if strings.TrimSpace(content) == "" {
		return nil, vlllm.RemoteError("OpenAI返回空内容(finish_reason=%s)", resp.Choices[0].FinishReason)
	}

	return &types.ModelReply{
		Content: content,
		Model:   resp.Model,
		Usage: types.Usage{
			PromptTokens:     resp.Usage.PromptTokens,
			CompletionTokens: resp.Usage.CompletionTokens,
			TotalTokens:      resp.Usage.TotalTokens,
		},
	}, nil
}

// temperature 请求字段带 omitempty，0 会被省略，用最小正数代替以显式发送
func temperature(t float64) float32 {
	if t <= 0 {
		return math.SmallestNonzeroFloat32
	}
	return float32(t)
}

func toChatMessages(messages []types.Message, detail string) []openai.ChatCompletionMessage {
	chatMessages := make([]openai.ChatCompletionMessage, 0, len(messages))
	for _, msg := range messages {
		if len(msg.Images()) == 0 {
			chatMessages = append(chatMessages, openai.ChatCompletionMessage{
				Role:    msg.Role,
				Content: msg.Text(),
			})
			continue
		}

		parts := make([]openai.ChatMessagePart, 0, len(msg.Parts))
		for _, part := range msg.Parts {
			switch part.Type {
			case types.PartTypeText:
				parts = append(parts, openai.ChatMessagePart{
					Type: openai.ChatMessagePartTypeText,
					Text: part.Text,
				})
			case types.PartTypeImageURL:
				d := part.Detail
				if d == "" {
					d = detail
				}
				parts = append(parts, openai.ChatMessagePart{
					Type: openai.ChatMessagePartTypeImageURL,
					ImageURL: &openai.ChatMessageImageURL{
						URL:    part.ImageURL,
						Detail: openai.ImageURLDetail(d),
					},
				})
			}
		}
		chatMessages = append(chatMessages, openai.ChatCompletionMessage{
			Role:         msg.Role,
			MultiContent: parts,
		})
	}
	return chatMessages
}
