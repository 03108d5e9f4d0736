package ollama

import (
	"context"
	"strings"

	"mealchat-server-go/src/core/image"
	"mealchat-server-go/src/core/providers"
	"mealchat-server-go/src/core/providers/vlllm"
	"mealchat-server-go/src/core/types"
	"mealchat-server-go/src/core/utils"

	"github.com/go-resty/resty/v2"
)

const defaultBaseURL = "http://localhost:11434"

// Provider Ollama本地视觉模型提供者，调用 /api/chat
type Provider struct {
	*vlllm.BaseProvider
	client *resty.Client
}

type chatMessage struct {
	Role    string   `json:"role"`
	Content string   `json:"content"`
	Images  []string `json:"images,omitempty"` // 不带前缀的base64
}

type chatRequest struct {
	Model    string                 `json:"model"`
	Messages []chatMessage          `json:"messages"`
	Stream   bool                   `json:"stream"`
	Options  map[string]interface{} `json:"options,omitempty"`
}

type chatResponse struct {
	Model           string      `json:"model"`
	Message         chatMessage `json:"message"`
	Done            bool        `json:"done"`
	PromptEvalCount int         `json:"prompt_eval_count"`
	EvalCount       int         `json:"eval_count"`
}

type errorResponse struct {
	Error string `json:"error"`
}

// 注册提供者
func init() {
	vlllm.Register("ollama", NewProvider)
}

// NewProvider 创建Ollama VLLLM提供者
func NewProvider(config *vlllm.Config, logger *utils.Logger) (providers.VisionProvider, error) {
	return &Provider{BaseProvider: vlllm.NewBaseProvider(config, logger)}, nil
}

// Initialize 创建HTTP客户端，本地服务不需要密钥
func (p *Provider) Initialize() error {
	config := p.Config()
	baseURL := strings.TrimSuffix(config.BaseURL, "/")
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	baseURL = strings.TrimSuffix(baseURL, "/v1")

	p.client = resty.New().
		SetBaseURL(baseURL).
		SetTimeout(config.Timeout).
		SetHeader("Content-Type", "application/json")
	return nil
}

// Invoke 发送非流式对话请求
func (p *Provider) Invoke(ctx context.Context, messages []types.Message) (*types.ModelReply, error) {
	config := p.Config()

	req := chatRequest{
		Model:  config.ModelName,
		Stream: false,
		Options: map[string]interface{}{
			"temperature": config.Temperature,
			"num_predict": config.MaxTokens,
		},
	}
	for _, msg := range messages {
		m := chatMessage{Role: msg.Role, Content: msg.Text()}
		for _, uri := range msg.Images() {
			_, encoded, err := image.SplitDataURI(uri)
			if err != nil {
				return nil, err
			}
			m.Images = append(m.Images, encoded)
		}
		req.Messages = append(req.Messages, m)
	}

	var result chatResponse
	var apiErr errorResponse
	resp, err := p.client.R().
		SetContext(ctx).
		SetBody(req).
		SetResult(&result).
		SetError(&apiErr).
		Post("/api/chat")
	if err != nil {
		return nil, vlllm.RemoteError("请求Ollama失败: %v", err)
	}
	if resp.IsError() {
		msg := apiErr.Error
		if msg == "" {
			msg = utils.Truncate(resp.String(), 200)
		}
		return nil, vlllm.RemoteError("Ollama返回错误(status=%d): %s", resp.StatusCode(), msg)
	}
	if strings.TrimSpace(result.Message.Content) == "" {
		return nil, vlllm.RemoteError("Ollama返回空内容")
	}

	return &types.ModelReply{
		Content: result.Message.Content,
		Model:   result.Model,
		Usage: types.Usage{
			PromptTokens:     result.PromptEvalCount,
			CompletionTokens: result.EvalCount,
			TotalTokens:      result.PromptEvalCount + result.EvalCount,
		},
	}, nil
}
