package configs

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config 主配置结构
type Config struct {
	Server struct {
		IP   string `yaml:"ip"`
		Port int    `yaml:"port"`
		Auth struct {
			Enabled  bool   `yaml:"enabled"`
			Secret   string `yaml:"secret"`
			TokenTTL string `yaml:"token_ttl"`
		} `yaml:"auth"`
	} `yaml:"server"`

	Log struct {
		LogLevel string `yaml:"log_level"`
		LogDir   string `yaml:"log_dir"`
		LogFile  string `yaml:"log_file"`
	} `yaml:"log"`

	Web struct {
		StaticDir string `yaml:"static_dir"`
	} `yaml:"web"`

	Upload UploadConfig `yaml:"upload"`

	Database struct {
		DSN string `yaml:"dsn"`
	} `yaml:"database"`

	ConnectivityCheck ConnectivityCheckConfig `yaml:"connectivity_check"`

	SelectedModule map[string]string `yaml:"selected_module"`

	VLLLM map[string]VLLMConfig `yaml:"VLLLM"`
}

// UploadConfig 上传图片的存储配置
type UploadConfig struct {
	Dir         string `yaml:"dir"`
	MaxFileSize int64  `yaml:"max_file_size"`
	TTL         string `yaml:"ttl"` // 过期时间，例如 "1h"
}

// ConnectivityCheckConfig 启动时的模型连通性检查配置
type ConnectivityCheckConfig struct {
	Enabled  bool   `yaml:"enabled"`
	Mode     string `yaml:"mode"`     // basic 只创建提供者，functional 会发送一次真实请求
	Timeout  string `yaml:"timeout"`  // 例如 "30s"
	Question string `yaml:"question"` // functional 模式下的测试问题
}

// SecurityConfig 图片安全配置结构
type SecurityConfig struct {
	MaxFileSize    int64    `yaml:"max_file_size"`    // 最大文件大小（字节）
	MaxPixels      int64    `yaml:"max_pixels"`       // 最大像素数量
	MaxWidth       int      `yaml:"max_width"`        // 最大宽度
	MaxHeight      int      `yaml:"max_height"`       // 最大高度
	AllowedFormats []string `yaml:"allowed_formats"`  // 允许的图片格式
	EnableDeepScan bool     `yaml:"enable_deep_scan"` // 启用深度安全扫描
}

// VLLMConfig 视觉语言大模型配置
type VLLMConfig struct {
	Type        string                 `yaml:"type"`         // openai, ollama, stub
	ModelName   string                 `yaml:"model_name"`   // 模型名称，必须支持图片输入
	BaseURL     string                 `yaml:"url"`          // API地址
	APIKey      string                 `yaml:"api_key"`      // API密钥，优先于 api_key_file
	APIKeyFile  string                 `yaml:"api_key_file"` // 存放API密钥的文本文件
	Temperature float64                `yaml:"temperature"`  // 温度参数，默认0
	MaxTokens   int                    `yaml:"max_tokens"`   // 最大输出令牌数
	Detail      string                 `yaml:"detail"`       // 图片细节：low, high, auto
	Timeout     string                 `yaml:"timeout"`      // 请求超时，例如 "60s"
	Security    SecurityConfig         `yaml:"security"`     // 图片安全配置
	Extra       map[string]interface{} `yaml:",inline"`      // 额外配置
}

const (
	DefaultModelName  = "gpt-4o-mini"
	DefaultMaxTokens  = 1024
	DefaultDetail     = "low"
	DefaultAPIKeyFile = "key.txt"
)

// LoadConfig 从文件加载配置
func LoadConfig() (*Config, string, error) {
	path := ".config.yaml"
	if _, err := os.Stat(path); os.IsNotExist(err) {
		path = "config.yaml"
	}
	config, err := LoadConfigFile(path)
	return config, path, err
}

// LoadConfigFile 从指定路径加载配置并补全默认值
func LoadConfigFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	config := &Config{}
	if err := yaml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("解析配置文件 %s 失败: %w", path, err)
	}
	config.ApplyDefaults()

	return config, nil
}

// ApplyDefaults 补全未配置的默认值
func (c *Config) ApplyDefaults() {
	if c.Server.Port == 0 {
		c.Server.Port = 8003
	}
	if c.Server.Auth.TokenTTL == "" {
		c.Server.Auth.TokenTTL = "1h"
	}
	if c.Log.LogLevel == "" {
		c.Log.LogLevel = "INFO"
	}
	if c.Log.LogDir == "" {
		c.Log.LogDir = "logs"
	}
	if c.Log.LogFile == "" {
		c.Log.LogFile = "server.log"
	}
	if c.Upload.Dir == "" {
		c.Upload.Dir = "uploads"
	}
	if c.Upload.MaxFileSize <= 0 {
		c.Upload.MaxFileSize = 5 * 1024 * 1024
	}
	if c.Upload.TTL == "" {
		c.Upload.TTL = "1h"
	}
	if c.Database.DSN == "" {
		c.Database.DSN = "sqlite://tmp/mealchat.db"
	}

	for name, v := range c.VLLLM {
		v.ApplyDefaults()
		c.VLLLM[name] = v
	}
}

// ApplyDefaults 补全模型调用的默认参数
func (v *VLLMConfig) ApplyDefaults() {
	if v.ModelName == "" {
		v.ModelName = DefaultModelName
	}
	if v.MaxTokens <= 0 {
		v.MaxTokens = DefaultMaxTokens
	}
	if v.Detail == "" {
		v.Detail = DefaultDetail
	}
	if v.APIKeyFile == "" {
		v.APIKeyFile = DefaultAPIKeyFile
	}
	if v.Timeout == "" {
		v.Timeout = "60s"
	}

	s := &v.Security
	if s.MaxFileSize <= 0 {
		s.MaxFileSize = 5 * 1024 * 1024
	}
	if s.MaxWidth <= 0 {
		s.MaxWidth = 4096
	}
	if s.MaxHeight <= 0 {
		s.MaxHeight = 4096
	}
	if s.MaxPixels <= 0 {
		s.MaxPixels = 16777216
	}
	if len(s.AllowedFormats) == 0 {
		s.AllowedFormats = []string{"jpeg", "jpg"}
	}
}

// SelectedVLLM 返回 selected_module 中选中的视觉模型配置
func (c *Config) SelectedVLLM() (string, VLLMConfig, error) {
	name := c.SelectedModule["VLLLM"]
	if name == "" {
		return "", VLLMConfig{}, fmt.Errorf("请在 selected_module 中设置 VLLLM")
	}
	v, ok := c.VLLLM[name]
	if !ok {
		return name, VLLMConfig{}, fmt.Errorf("未找到VLLLM配置: %s", name)
	}
	return name, v, nil
}

// UploadTTL 解析上传文件的保留时间
func (c *Config) UploadTTL() time.Duration {
	return parseDuration(c.Upload.TTL, time.Hour)
}

// TokenTTL 解析会话token的有效期
func (c *Config) TokenTTL() time.Duration {
	return parseDuration(c.Server.Auth.TokenTTL, time.Hour)
}

// ParseTimeout 解析模型请求超时
func (v *VLLMConfig) ParseTimeout() time.Duration {
	return parseDuration(v.Timeout, 60*time.Second)
}

func parseDuration(s string, fallback time.Duration) time.Duration {
	d, err := time.ParseDuration(s)
	if err != nil || d <= 0 {
		return fallback
	}
	return d
}
