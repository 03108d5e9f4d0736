package mealchat

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"mealchat-server-go/src/configs"
	"mealchat-server-go/src/core/auth"
	"mealchat-server-go/src/core/meal"
	"mealchat-server-go/src/core/types"
	"mealchat-server-go/src/core/utils"
	"mealchat-server-go/src/models"

	"github.com/gin-gonic/gin"
)

// 表单中除文件外其余字段的额外空间
const formOverhead = 1 << 20

type DefaultMealService struct {
	logger      *utils.Logger
	config      *configs.Config
	analyzer    Analyzer
	images      ImageStore
	uploads     UploadStore
	authToken   *auth.AuthToken // 认证开启时不为空
	maxFileSize int64
}

// NewDefaultMealService 构造函数
func NewDefaultMealService(config *configs.Config, analyzer Analyzer, images ImageStore, uploads UploadStore, logger *utils.Logger) (*DefaultMealService, error) {
	service := &DefaultMealService{
		logger:      logger,
		config:      config,
		analyzer:    analyzer,
		images:      images,
		uploads:     uploads,
		maxFileSize: config.Upload.MaxFileSize,
	}

	if config.Server.Auth.Enabled {
		authToken, err := auth.NewAuthToken(config.Server.Auth.Secret, config.TokenTTL())
		if err != nil {
			return nil, fmt.Errorf("初始化认证失败: %w", err)
		}
		service.authToken = authToken
	}

	return service, nil
}

// Start 注册餐食识别相关路由
func (s *DefaultMealService) Start(ctx context.Context, engine *gin.Engine, apiGroup *gin.RouterGroup) error {
	// GET用于状态检查，POST上传图片并提取餐食信息
	apiGroup.GET("/meal", s.handleGet)
	apiGroup.POST("/meal", s.handlePost)
	apiGroup.OPTIONS("/meal", s.handleOptions)

	// 针对已上传图片提问
	apiGroup.POST("/meal/:id/question", s.handleQuestion)
	apiGroup.OPTIONS("/meal/:id/question", s.handleOptions)

	s.logger.Info("Meal HTTP服务路由注册完成")
	return nil
}

// handleOptions 处理OPTIONS请求（CORS）
func (s *DefaultMealService) handleOptions(c *gin.Context) {
	s.addCORSHeaders(c)
	c.Status(http.StatusOK)
}

// handleGet 处理GET请求（状态检查）
func (s *DefaultMealService) handleGet(c *gin.Context) {
	s.addCORSHeaders(c)
	_, selected, _ := s.config.SelectedVLLM()
	m := s.images.GetMetrics()
	c.String(http.StatusOK, fmt.Sprintf("Meal 接口运行正常，当前模型: %s，已处理图片 %d 张，验证失败 %d 次",
		selected.ModelName, m.TotalProcessed, m.FailedValidations))
}

// handlePost 上传图片并提取餐食信息
func (s *DefaultMealService) handlePost(c *gin.Context) {
	s.addCORSHeaders(c)

	data, format, err := s.readUpload(c)
	if err != nil {
		s.logger.Warn(fmt.Sprintf("上传图片无效: %v", err))
		s.respondError(c, http.StatusBadRequest, err.Error())
		return
	}

	id, path, err := s.images.Save(data, format)
	if err != nil {
		s.respondErr(c, err)
		return
	}
	if err := s.uploads.Save(c.Request.Context(), &models.Upload{ID: id, Path: path, Format: format, Size: int64(len(data))}); err != nil {
		_ = s.images.Remove(path)
		s.respondErr(c, err)
		return
	}

	record, err := s.analyzer.Extract(c.Request.Context(), path)
	if err != nil {
		s.respondErr(c, err)
		return
	}

	response := MealResponse{
		Success: true,
		ImageID: id,
		Result:  record,
	}
	if s.authToken != nil {
		token, err := s.authToken.GenerateToken(id)
		if err != nil {
			s.respondErr(c, err)
			return
		}
		response.Token = token
	}

	s.logger.Info("Meal提取结果", map[string]interface{}{
		"image_id": id,
		"name":     record.Name,
	})
	c.JSON(http.StatusOK, response)
}

// handleQuestion 针对已上传的图片回答问题
func (s *DefaultMealService) handleQuestion(c *gin.Context) {
	s.addCORSHeaders(c)
	id := c.Param("id")

	if s.authToken != nil {
		if err := s.verifyAuth(c, id); err != nil {
			s.logger.Warn(fmt.Sprintf("Meal认证失败: %v", err))
			s.respondError(c, http.StatusUnauthorized, "无效的认证token或token与图片不匹配")
			return
		}
	}

	var req QuestionRequest
	if err := c.ShouldBind(&req); err != nil {
		s.respondError(c, http.StatusBadRequest, fmt.Sprintf("解析请求失败: %v", err))
		return
	}
	if req.Question == "" {
		s.respondErr(c, meal.ErrEmptyQuestion)
		return
	}

	upload, err := s.uploads.Get(c.Request.Context(), id)
	if err != nil {
		s.respondErr(c, err)
		return
	}

	answer, err := s.analyzer.Ask(c.Request.Context(), upload.Path, req.Question)
	if err != nil {
		s.respondErr(c, err)
		return
	}

	c.JSON(http.StatusOK, MealResponse{Success: true, ImageID: id, Answer: answer})
}

// verifyAuth 验证 Bearer token 属于该图片
func (s *DefaultMealService) verifyAuth(c *gin.Context, imageID string) error {
	authHeader := c.GetHeader("Authorization")
	if !strings.HasPrefix(authHeader, "Bearer ") {
		return auth.ErrInvalidToken
	}
	return s.authToken.VerifyForImage(strings.TrimPrefix(authHeader, "Bearer "), imageID)
}

// readUpload 读取 multipart 中的 file 字段并校验
func (s *DefaultMealService) readUpload(c *gin.Context) ([]byte, string, error) {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, s.maxFileSize+formOverhead)

	file, header, err := c.Request.FormFile("file")
	if err != nil {
		return nil, "", fmt.Errorf("缺少图片文件: %v", err)
	}
	defer file.Close()

	if header.Size > s.maxFileSize {
		return nil, "", fmt.Errorf("图片大小超过限制，最大允许%dMB", s.maxFileSize/1024/1024)
	}

	data, err := io.ReadAll(file)
	if err != nil {
		return nil, "", fmt.Errorf("读取图片数据失败: %v", err)
	}
	if len(data) == 0 {
		return nil, "", fmt.Errorf("图片数据为空")
	}

	result := s.images.Validate(data)
	if !result.IsValid {
		return nil, "", result.Error
	}
	return data, result.Format, nil
}

// statusFor 错误类型到HTTP状态码
func statusFor(err error) int {
	switch {
	case errors.Is(err, meal.ErrEmptyQuestion), errors.Is(err, types.ErrEncoding):
		return http.StatusBadRequest
	case errors.Is(err, auth.ErrInvalidToken):
		return http.StatusUnauthorized
	case errors.Is(err, types.ErrFileAccess):
		return http.StatusNotFound
	case errors.Is(err, types.ErrRemoteInvocation), errors.Is(err, types.ErrSchemaParse):
		return http.StatusBadGateway
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

// respondErr 按错误类型返回
func (s *DefaultMealService) respondErr(c *gin.Context, err error) {
	status := statusFor(err)
	if status < http.StatusInternalServerError {
		s.respondError(c, status, err.Error())
		return
	}
	// 5xx 的详细原因只写日志
	s.logger.Error(fmt.Sprintf("Meal请求处理失败(%s)", types.ErrorKind(err)), err)
	s.respondError(c, status, publicMessage(err))
}

// publicMessage 返回给客户端的概要错误信息
func publicMessage(err error) string {
	switch {
	case errors.Is(err, types.ErrSchemaParse):
		return "模型回复格式无法解析"
	case errors.Is(err, types.ErrRemoteInvocation):
		return "模型调用失败"
	case errors.Is(err, context.DeadlineExceeded):
		return "模型调用超时"
	default:
		return "服务内部错误"
	}
}

// addCORSHeaders 添加CORS头
func (s *DefaultMealService) addCORSHeaders(c *gin.Context) {
	c.Header("Access-Control-Allow-Headers", "content-type, authorization")
	c.Header("Access-Control-Allow-Credentials", "true")
	c.Header("Access-Control-Allow-Origin", "*")
	c.Header("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
}

// respondError 返回错误响应
func (s *DefaultMealService) respondError(c *gin.Context, statusCode int, message string) {
	c.JSON(statusCode, MealResponse{
		Success: false,
		Message: message,
	})
}

// Cleanup 清理资源
func (s *DefaultMealService) Cleanup() error {
	s.logger.Info("Meal服务清理完成")
	return nil
}
