package vlllm

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"mealchat-server-go/src/configs"
	"mealchat-server-go/src/core/metrics"
	"mealchat-server-go/src/core/providers"
	"mealchat-server-go/src/core/types"
	"mealchat-server-go/src/core/utils"
)

// Factory VLLLM工厂函数类型
type Factory func(config *Config, logger *utils.Logger) (providers.VisionProvider, error)

var (
	factories = make(map[string]Factory)
	mu        sync.RWMutex
)

// Register 注册VLLLM提供者工厂
func Register(name string, factory Factory) {
	mu.Lock()
	defer mu.Unlock()
	factories[name] = factory
}

// Create 按类型创建并初始化VLLLM提供者
func Create(name string, vlllmConfig *configs.VLLMConfig, logger *utils.Logger) (providers.VisionProvider, error) {
	mu.RLock()
	factory, ok := factories[strings.ToLower(name)]
	mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("未知的VLLLM提供者: %s", name)
	}

	config := NewConfig(vlllmConfig)

	provider, err := factory(config, logger)
	if err != nil {
		return nil, fmt.Errorf("创建VLLLM提供者失败: %w", err)
	}

	if err := provider.Initialize(); err != nil {
		return nil, fmt.Errorf("初始化VLLLM提供者失败: %w", err)
	}

	logger.Debug("VLLLM提供者创建成功", map[string]interface{}{
		"type":       name,
		"model_name": config.ModelName,
	})

	return &instrumented{VisionProvider: provider, name: strings.ToLower(name), logger: logger}, nil
}

// GetRegisteredProviders 获取已注册的提供者列表
func GetRegisteredProviders() []string {
	mu.RLock()
	defer mu.RUnlock()
	var names []string
	for name := range factories {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// instrumented 记录每次调用的耗时与结果
type instrumented struct {
	providers.VisionProvider
	name   string
	logger *utils.Logger
}

func (i *instrumented) Invoke(ctx context.Context, messages []types.Message) (*types.ModelReply, error) {
	start := time.Now()
	reply, err := i.VisionProvider.Invoke(ctx, messages)
	metrics.ObserveInvocation(i.name, start, err)

	if err != nil {
		return nil, err
	}
	i.logger.Debug("模型调用完成", map[string]interface{}{
		"provider":          i.name,
		"model":             reply.Model,
		"elapsed_ms":        time.Since(start).Milliseconds(),
		"prompt_tokens":     reply.Usage.PromptTokens,
		"completion_tokens": reply.Usage.CompletionTokens,
	})
	return reply, nil
}
