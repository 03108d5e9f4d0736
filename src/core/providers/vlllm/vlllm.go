package vlllm

import (
	"fmt"
	"os"
	"strings"
	"time"

	"mealchat-server-go/src/configs"
	"mealchat-server-go/src/core/types"
	"mealchat-server-go/src/core/utils"
)

// Config VLLLM配置结构，构造时一次性确定，调用时不再读取全局状态
type Config struct {
	Type        string
	ModelName   string
	BaseURL     string
	APIKey      string
	APIKeyFile  string
	Temperature float64
	MaxTokens   int
	Detail      string
	Timeout     time.Duration
	Data        map[string]interface{}
}

// NewConfig 从配置文件中的VLLLM段构建
func NewConfig(v *configs.VLLMConfig) *Config {
	return &Config{
		Type:        v.Type,
		ModelName:   v.ModelName,
		BaseURL:     v.BaseURL,
		APIKey:      v.APIKey,
		APIKeyFile:  v.APIKeyFile,
		Temperature: v.Temperature,
		MaxTokens:   v.MaxTokens,
		Detail:      v.Detail,
		Timeout:     v.ParseTimeout(),
		Data:        v.Extra,
	}
}

// BaseProvider VLLLM基础实现
type BaseProvider struct {
	config *Config
	logger *utils.Logger
}

// NewBaseProvider 创建VLLLM基础提供者
func NewBaseProvider(config *Config, logger *utils.Logger) *BaseProvider {
	return &BaseProvider{config: config, logger: logger}
}

// Config 获取配置
func (p *BaseProvider) Config() *Config {
	return p.config
}

// Logger 获取日志记录器
func (p *BaseProvider) Logger() *utils.Logger {
	return p.logger
}

// Initialize 初始化提供者
func (p *BaseProvider) Initialize() error {
	return nil
}

// Cleanup 清理资源
func (p *BaseProvider) Cleanup() error {
	return nil
}

// ResolveAPIKey 返回API密钥：api_key 优先，否则读取 api_key_file
// 文件缺失或内容为空时返回 ErrCredential
func (p *BaseProvider) ResolveAPIKey() (string, error) {
	if key := strings.TrimSpace(p.config.APIKey); key != "" {
		return key, nil
	}
	if p.config.APIKeyFile == "" {
		return "", fmt.Errorf("%w: 未配置 api_key 或 api_key_file", types.ErrCredential)
	}

	path := utils.ResolvePath(p.config.APIKeyFile)
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("%w: 读取密钥文件 %s 失败: %v", types.ErrCredential, p.config.APIKeyFile, err)
	}
	key := strings.TrimSpace(string(data))
	if key == "" {
		return "", fmt.Errorf("%w: 密钥文件 %s 为空", types.ErrCredential, p.config.APIKeyFile)
	}
	return key, nil
}

// RemoteError 把调用错误归类为 ErrRemoteInvocation
func RemoteError(format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", types.ErrRemoteInvocation, fmt.Sprintf(format, args...))
}
