package health

import (
	"context"
	"fmt"
	"strings"
	"time"

	"mealchat-server-go/src/configs"
	"mealchat-server-go/src/core/meal"
	"mealchat-server-go/src/core/providers/vlllm"
	"mealchat-server-go/src/core/utils"
)

// CheckMode 检查模式
type CheckMode int

const (
	// BasicCheck 基础连通性检查（只创建提供者，验证配置与密钥）
	BasicCheck CheckMode = iota
	// FunctionalCheck 功能性检查（发送一次真实的图片问答请求）
	FunctionalCheck
)

func (m CheckMode) String() string {
	if m == FunctionalCheck {
		return "功能性"
	}
	return "基础"
}

// CheckResult 检查结果
type CheckResult struct {
	ProviderType string                 `json:"provider_type"`
	Success      bool                   `json:"success"`
	Error        error                  `json:"error,omitempty"`
	Details      map[string]interface{} `json:"details"`
	Duration     time.Duration          `json:"duration"`
	Timestamp    time.Time              `json:"timestamp"`
	CheckMode    CheckMode              `json:"check_mode"`
}

// ConnectivityConfig 连通性检查配置
type ConnectivityConfig struct {
	Enabled  bool
	Mode     CheckMode
	Timeout  time.Duration
	Question string
}

// ConfigFromYAML 从YAML配置创建连通性检查配置
func ConfigFromYAML(yamlConfig *configs.ConnectivityCheckConfig) *ConnectivityConfig {
	if yamlConfig == nil {
		return DefaultConnectivityConfig()
	}

	connConfig := DefaultConnectivityConfig()
	connConfig.Enabled = yamlConfig.Enabled
	if strings.EqualFold(yamlConfig.Mode, "functional") {
		connConfig.Mode = FunctionalCheck
	}
	if t, err := time.ParseDuration(yamlConfig.Timeout); err == nil && t > 0 {
		connConfig.Timeout = t
	}
	if yamlConfig.Question != "" {
		connConfig.Question = yamlConfig.Question
	}
	return connConfig
}

// DefaultConnectivityConfig 默认连通性检查配置
func DefaultConnectivityConfig() *ConnectivityConfig {
	return &ConnectivityConfig{
		Enabled:  false,
		Mode:     BasicCheck,
		Timeout:  30 * time.Second,
		Question: "What color is this image?",
	}
}

// HealthChecker 模型连通性检查
type HealthChecker struct {
	config     *configs.Config
	connConfig *ConnectivityConfig
	logger     *utils.Logger
	results    map[string]*CheckResult
}

// NewHealthChecker 创建健康检查器
func NewHealthChecker(config *configs.Config, connConfig *ConnectivityConfig, logger *utils.Logger) *HealthChecker {
	return &HealthChecker{
		config:     config,
		connConfig: connConfig,
		logger:     logger,
		results:    make(map[string]*CheckResult),
	}
}

// CheckVLLLM 检查 selected_module 中选中的视觉模型
func (hc *HealthChecker) CheckVLLLM(ctx context.Context) error {
	mode := hc.connConfig.Mode
	start := time.Now()
	result := &CheckResult{
		ProviderType: "VLLLM",
		Timestamp:    start,
		CheckMode:    mode,
		Details:      make(map[string]interface{}),
	}
	fail := func(err error) error {
		result.Success = false
		result.Error = err
		result.Duration = time.Since(start)
		hc.results["VLLLM"] = result
		return err
	}

	name, v, err := hc.config.SelectedVLLM()
	if err != nil {
		return fail(err)
	}
	result.Details["config_name"] = name
	result.Details["model_name"] = v.ModelName

	provider, err := vlllm.Create(v.Type, &v, hc.logger)
	if err != nil {
		return fail(fmt.Errorf("创建VLLLM提供者失败: %w", err))
	}
	defer provider.Cleanup()

	if mode == FunctionalCheck {
		hc.logger.Info("执行VLLLM功能性测试...")

		probe, err := ProbeImage()
		if err != nil {
			return fail(fmt.Errorf("生成测试图片失败: %w", err))
		}

		testCtx, cancel := context.WithTimeout(ctx, hc.connConfig.Timeout)
		defer cancel()

		messages := meal.BuildMessages(meal.QuestionRequest{
			Image:    meal.ImageRef{DataURI: probe.DataURI, Detail: v.Detail},
			Question: hc.connConfig.Question,
		})
		reply, err := provider.Invoke(testCtx, messages)
		if err != nil {
			return fail(fmt.Errorf("VLLLM图片问答测试失败: %w", err))
		}
		if !ValidateResponse(reply.Content) {
			return fail(fmt.Errorf("VLLLM响应验证失败: 响应内容不合理"))
		}

		result.Details["functional_test"] = "passed"
		result.Details["test_response_length"] = len(reply.Content)
		result.Details["total_tokens"] = reply.Usage.TotalTokens
	}

	result.Success = true
	result.Duration = time.Since(start)
	hc.results["VLLLM"] = result
	hc.logger.Info(fmt.Sprintf("VLLLM提供者 %s %s检查通过", name, mode))
	return nil
}

// GetResults 获取所有检查结果
func (hc *HealthChecker) GetResults() map[string]*CheckResult {
	return hc.results
}

// PrintReport 打印检查报告
func (hc *HealthChecker) PrintReport() {
	hc.logger.Info("=== 连通性检查报告 ===")

	for providerType, result := range hc.results {
		status := "通过"
		if !result.Success {
			status = "失败"
		}
		hc.logger.Info(fmt.Sprintf("%s (%s): %s (耗时: %v)", providerType, result.CheckMode, status, result.Duration), result.Details)

		if result.Error != nil {
			hc.logger.Error("  错误", result.Error)
		}
	}

	hc.logger.Info("=== 检查报告结束 ===")
}
