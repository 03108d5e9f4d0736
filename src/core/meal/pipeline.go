package meal

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"mealchat-server-go/src/core/image"
	"mealchat-server-go/src/core/metrics"
	"mealchat-server-go/src/core/types"
	"mealchat-server-go/src/core/utils"
)

// ErrEmptyQuestion 问答模式下问题为空
var ErrEmptyQuestion = errors.New("question is empty")

// ImagePreparer 读取并编码本地图片
type ImagePreparer interface {
	Prepare(ctx context.Context, path string) (*image.EncodedImage, error)
}

// Pipeline 读取 -> 编码 -> 构建提示 -> 调用模型 -> 解析（仅提取模式）
type Pipeline struct {
	images  ImagePreparer
	invoker types.VisionInvoker
	detail  string
	logger  *utils.TaggedLogger
}

// NewPipeline 创建流水线，detail 为图片细节级别（low/high/auto）
func NewPipeline(images ImagePreparer, invoker types.VisionInvoker, detail string, logger *utils.Logger) *Pipeline {
	return &Pipeline{
		images:  images,
		invoker: invoker,
		detail:  detail,
		logger:  logger.WithTag("meal"),
	}
}

// Extract 识别图片中的餐食并返回结构化信息
func (p *Pipeline) Extract(ctx context.Context, path string) (record *MealRecord, err error) {
	defer func() {
		metrics.PipelineRequestsTotal.WithLabelValues(string(ModeExtraction), metrics.Result(err)).Inc()
	}()

	img, err := p.images.Prepare(ctx, path)
	if err != nil {
		return nil, err
	}

	reply, err := p.invoke(ctx, ExtractionRequest{Image: p.imageRef(img)})
	if err != nil {
		return nil, err
	}

	record, err = ParseMealRecord(reply.Content)
	if err != nil {
		p.logger.Warn("模型回复不符合输出格式", map[string]interface{}{
			"reply": utils.Truncate(reply.Content, 200),
		})
		return nil, err
	}

	if n := utils.WordCount(record.Information); n > 20 {
		p.logger.Debug(fmt.Sprintf("Information 超过20个单词: %d", n))
	}
	p.logger.Info("餐食信息提取完成", map[string]interface{}{
		"name":  record.Name,
		"known": record.Known(),
	})
	return record, nil
}

// Ask 针对图片回答问题，回复不做解析
func (p *Pipeline) Ask(ctx context.Context, path, question string) (answer string, err error) {
	defer func() {
		metrics.PipelineRequestsTotal.WithLabelValues(string(ModeQuestion), metrics.Result(err)).Inc()
	}()

	if question == "" {
		return "", ErrEmptyQuestion
	}

	img, err := p.images.Prepare(ctx, path)
	if err != nil {
		return "", err
	}

	reply, err := p.invoke(ctx, QuestionRequest{Image: p.imageRef(img), Question: question})
	if err != nil {
		return "", err
	}

	p.logger.Info("问答完成", map[string]interface{}{
		"question": utils.Truncate(question, 100),
	})
	return strings.TrimSpace(reply.Content), nil
}

func (p *Pipeline) imageRef(img *image.EncodedImage) ImageRef {
	return ImageRef{DataURI: img.DataURI, Detail: p.detail}
}

func (p *Pipeline) invoke(ctx context.Context, req Request) (*types.ModelReply, error) {
	p.logger.Debug("调用多模态模型", map[string]interface{}{"mode": req.Mode()})

	reply, err := p.invoker.Invoke(ctx, BuildMessages(req))
	if err != nil {
		p.logger.Error("模型调用失败", err)
		return nil, err
	}

	metrics.ModelTokensTotal.WithLabelValues("prompt").Add(float64(reply.Usage.PromptTokens))
	metrics.ModelTokensTotal.WithLabelValues("completion").Add(float64(reply.Usage.CompletionTokens))
	return reply, nil
}
