package mealchat

import (
	"context"

	"mealchat-server-go/src/core/image"
	"mealchat-server-go/src/core/meal"
	"mealchat-server-go/src/models"

	"github.com/gin-gonic/gin"
)

// MealService 定义餐食识别服务接口
type MealService interface {
	// 将路由注册到 engine 与 apiGroup
	Start(ctx context.Context, engine *gin.Engine, apiGroup *gin.RouterGroup) error
	Cleanup() error
}

// Analyzer 提取与问答流水线
type Analyzer interface {
	Extract(ctx context.Context, path string) (*meal.MealRecord, error)
	Ask(ctx context.Context, path, question string) (string, error)
}

// ImageStore 上传图片的验证与落盘
type ImageStore interface {
	Validate(data []byte) image.ValidationResult
	Save(data []byte, format string) (string, string, error)
	Remove(path string) error
	GetMetrics() image.ImageMetrics
}

// UploadStore 上传图片的元数据登记
type UploadStore interface {
	Save(ctx context.Context, upload *models.Upload) error
	Get(ctx context.Context, id string) (*models.Upload, error)
}
