package server

import (
	"context"
	"net/http"

	"mealchat-server-go/src/configs"
	"mealchat-server-go/src/core/utils"

	"github.com/gin-gonic/gin"
)

// ModelView 当前模型配置的公开部分，不包含密钥
type ModelView struct {
	Name           string   `json:"name"`
	Type           string   `json:"type"`
	ModelName      string   `json:"model_name"`
	Temperature    float64  `json:"temperature"`
	MaxTokens      int      `json:"max_tokens"`
	Detail         string   `json:"detail"`
	AllowedFormats []string `json:"allowed_formats"`
}

// CfgView 对外展示的运行配置
type CfgView struct {
	Model         ModelView `json:"model"`
	MaxUploadSize int64     `json:"max_upload_size"`
	UploadTTL     string    `json:"upload_ttl"`
	AuthEnabled   bool      `json:"auth_enabled"`
}

type DefaultCfgService struct {
	logger *utils.Logger
	config *configs.Config
}

// NewDefaultCfgService 构造函数
func NewDefaultCfgService(config *configs.Config, logger *utils.Logger) (*DefaultCfgService, error) {
	service := &DefaultCfgService{
		logger: logger,
		config: config,
	}

	return service, nil
}

// Start 注册 Cfg 相关路由
func (s *DefaultCfgService) Start(ctx context.Context, engine *gin.Engine, apiGroup *gin.RouterGroup) error {
	apiGroup.GET("/cfg", s.handleGet)
	apiGroup.OPTIONS("/cfg", s.handleOptions)

	s.logger.Info("Cfg HTTP服务路由注册完成")
	return nil
}

// View 返回脱敏后的配置
func (s *DefaultCfgService) View() CfgView {
	name, v, _ := s.config.SelectedVLLM()
	return CfgView{
		Model: ModelView{
			Name:           name,
			Type:           v.Type,
			ModelName:      v.ModelName,
			Temperature:    v.Temperature,
			MaxTokens:      v.MaxTokens,
			Detail:         v.Detail,
			AllowedFormats: v.Security.AllowedFormats,
		},
		MaxUploadSize: s.config.Upload.MaxFileSize,
		UploadTTL:     s.config.UploadTTL().String(),
		AuthEnabled:   s.config.Server.Auth.Enabled,
	}
}

func (s *DefaultCfgService) handleGet(c *gin.Context) {
	c.Header("Access-Control-Allow-Origin", "*")
	c.JSON(http.StatusOK, s.View())
}

func (s *DefaultCfgService) handleOptions(c *gin.Context) {
	c.Header("Access-Control-Allow-Origin", "*")
	c.Header("Access-Control-Allow-Methods", "GET, OPTIONS")
	c.Header("Access-Control-Allow-Headers", "Content-Type")
	c.Status(http.StatusNoContent)
}
