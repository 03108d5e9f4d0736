package types

import (
	"context"
)

// 消息角色
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// PartType 多模态消息片段类型
type PartType string

const (
	PartTypeText     PartType = "text"
	PartTypeImageURL PartType = "image_url"
)

// ContentPart 多模态消息片段，文本或图片二选一
type ContentPart struct {
	Type     PartType `json:"type"`
	Text     string   `json:"text,omitempty"`
	ImageURL string   `json:"image_url,omitempty"` // data URI
	Detail   string   `json:"detail,omitempty"`    // low, high, auto
}

// Message 发送给模型的一条消息
type Message struct {
	Role  string        `json:"role"`
	Parts []ContentPart `json:"parts"`
}

// TextMessage 构建只有一段文本的消息
func TextMessage(role, text string) Message {
	return Message{
		Role:  role,
		Parts: []ContentPart{{Type: PartTypeText, Text: text}},
	}
}

// Text 拼接消息中所有文本片段
func (m Message) Text() string {
	var text string
	for _, p := range m.Parts {
		if p.Type != PartTypeText {
			continue
		}
		if text != "" {
			text += "\n"
		}
		text += p.Text
	}
	return text
}

// Images 返回消息中所有图片的 data URI
func (m Message) Images() []string {
	var images []string
	for _, p := range m.Parts {
		if p.Type == PartTypeImageURL {
			images = append(images, p.ImageURL)
		}
	}
	return images
}

// Usage 令牌用量
type Usage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// ModelReply 模型返回的原始文本
type ModelReply struct {
	Content string `json:"content"`
	Model   string `json:"model,omitempty"`
	Usage   Usage  `json:"usage"`
}

// Provider 基础提供者接口
type Provider interface {
	Initialize() error
	Cleanup() error
}

// VisionInvoker 多模态模型调用接口，一次请求一次回复
type VisionInvoker interface {
	Invoke(ctx context.Context, messages []Message) (*ModelReply, error)
}
