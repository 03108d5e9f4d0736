package stub

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strings"

	"mealchat-server-go/src/core/providers"
	"mealchat-server-go/src/core/providers/vlllm"
	"mealchat-server-go/src/core/types"
	"mealchat-server-go/src/core/utils"
)

const questionPrefix = "Question:"

// Provider 不访问网络的确定性模型，用于CI和本地端到端测试
// 提取请求返回符合结构的JSON，问答请求返回固定格式的回答
type Provider struct {
	*vlllm.BaseProvider
	reply  string
	answer string
}

// 注册提供者
func init() {
	vlllm.Register("stub", NewProvider)
}

// NewProvider 创建stub提供者，配置项 reply/answer 可覆盖默认回复
func NewProvider(config *vlllm.Config, logger *utils.Logger) (providers.VisionProvider, error) {
	p := &Provider{BaseProvider: vlllm.NewBaseProvider(config, logger)}
	if v, ok := config.Data["reply"].(string); ok {
		p.reply = v
	}
	if v, ok := config.Data["answer"].(string); ok {
		p.answer = v
	}
	return p, nil
}

// Invoke 按消息内容生成确定性回复
func (p *Provider) Invoke(ctx context.Context, messages []types.Message) (*types.ModelReply, error) {
	if err := ctx.Err(); err != nil {
		return nil, vlllm.RemoteError("%v", err)
	}
	if len(messages) == 0 {
		return nil, vlllm.RemoteError("消息为空")
	}

	user := messages[len(messages)-1]
	var sb strings.Builder
	for _, m := range messages {
		sb.WriteString(m.Text())
		for _, img := range m.Images() {
			sb.WriteString(img)
		}
	}
	sum := sha256.Sum256([]byte(sb.String()))
	short := hex.EncodeToString(sum[:4])

	content, err := p.respond(user, short)
	if err != nil {
		return nil, err
	}

	prompt := utils.WordCount(sb.String())
	completion := utils.WordCount(content)
	return &types.ModelReply{
		Content: content,
		Model:   "stub-" + p.Config().ModelName,
		Usage: types.Usage{
			PromptTokens:     prompt,
			CompletionTokens: completion,
			TotalTokens:      prompt + completion,
		},
	}, nil
}

func (p *Provider) respond(user types.Message, short string) (string, error) {
	for _, part := range user.Parts {
		if part.Type != types.PartTypeText || !strings.HasPrefix(part.Text, questionPrefix) {
			continue
		}
		if p.answer != "" {
			return p.answer, nil
		}
		question := strings.TrimSpace(strings.TrimPrefix(part.Text, questionPrefix))
		return fmt.Sprintf("Stub answer (%s): %s", short, utils.Truncate(question, 80)), nil
	}

	if p.reply != "" {
		return p.reply, nil
	}
	b, err := json.Marshal(map[string]string{
		"Name":        "Pad Thai",
		"Origin":      "Thailand",
		"Where":       "Bangkok, Chiang Mai",
		"Information": fmt.Sprintf("Stir-fried rice noodles with egg, tofu and peanuts (%s).", short),
	})
	if err != nil {
		return "", vlllm.RemoteError("%v", err)
	}
	return string(b), nil
}
