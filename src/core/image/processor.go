package image

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync/atomic"
	"time"

	"mealchat-server-go/src/configs"
	"mealchat-server-go/src/core/metrics"
	"mealchat-server-go/src/core/types"
	"mealchat-server-go/src/core/utils"

	"github.com/google/uuid"
)

// ImageProcessor 图片处理器：读取、验证、编码，以及上传文件的落盘与清理
type ImageProcessor struct {
	config    *configs.SecurityConfig
	validator *ImageSecurityValidator
	logger    *utils.Logger
	uploadDir string
	metrics   *ImageMetrics
}

// NewImageProcessor 创建新的图片处理器
func NewImageProcessor(config *configs.SecurityConfig, uploadDir string, logger *utils.Logger) (*ImageProcessor, error) {
	if uploadDir == "" {
		uploadDir = filepath.Join("tmp", "images")
	}
	if err := os.MkdirAll(uploadDir, 0755); err != nil {
		return nil, fmt.Errorf("创建上传目录失败: %v", err)
	}

	return &ImageProcessor{
		config:    config,
		validator: NewImageSecurityValidator(config, logger),
		logger:    logger,
		uploadDir: uploadDir,
		metrics:   &ImageMetrics{},
	}, nil
}

// Prepare 读取本地图片并编码为 data URI
func (p *ImageProcessor) Prepare(ctx context.Context, path string) (*EncodedImage, error) {
	atomic.AddInt64(&p.metrics.TotalProcessed, 1)

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	data, err := LoadImage(path)
	if err != nil {
		atomic.AddInt64(&p.metrics.LoadFailures, 1)
		metrics.ImagesProcessedTotal.WithLabelValues("load_error").Inc()
		return nil, err
	}

	validation := p.validator.ValidateImage(data, "")
	if !validation.IsValid {
		atomic.AddInt64(&p.metrics.FailedValidations, 1)
		if validation.SecurityRisk != "" {
			atomic.AddInt64(&p.metrics.SecurityIncidents, 1)
		}
		metrics.ImagesProcessedTotal.WithLabelValues("invalid").Inc()
		return nil, fmt.Errorf("%w: %v", types.ErrEncoding, validation.Error)
	}

	encoded := Encode(data)
	metrics.ImagesProcessedTotal.WithLabelValues("ok").Inc()

	p.logger.Debug("图片编码完成", map[string]interface{}{
		"path":        path,
		"format":      validation.Format,
		"file_size":   len(data),
		"base64_size": len(encoded),
	})

	return &EncodedImage{
		Data:    encoded,
		Format:  validation.Format,
		DataURI: DataURI(validation.Format, encoded),
		Size:    len(data),
	}, nil
}

// Validate 验证上传的图片字节
func (p *ImageProcessor) Validate(data []byte) ValidationResult {
	result := p.validator.ValidateImage(data, "")
	if !result.IsValid {
		atomic.AddInt64(&p.metrics.FailedValidations, 1)
		if result.SecurityRisk != "" {
			atomic.AddInt64(&p.metrics.SecurityIncidents, 1)
			p.logger.Warn("检测到安全威胁", map[string]interface{}{
				"error":         result.Error.Error(),
				"security_risk": result.SecurityRisk,
			})
		}
	}
	return result
}

// Save 以唯一文件名保存上传图片，返回ID与路径
func (p *ImageProcessor) Save(data []byte, format string) (string, string, error) {
	id := uuid.New().String()
	if format == "" {
		format = "jpeg"
	}
	path := filepath.Join(p.uploadDir, id+"."+format)

	if err := os.WriteFile(path, data, 0644); err != nil {
		return "", "", fmt.Errorf("%w: 保存图片文件失败: %v", types.ErrFileAccess, err)
	}

	p.logger.Info("图片已保存", map[string]interface{}{
		"id":   id,
		"path": path,
		"size": len(data),
	})
	return id, path, nil
}

// Remove 删除上传文件，文件不存在不算错误
func (p *ImageProcessor) Remove(path string) error {
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}

// GetMetrics 获取处理统计信息
func (p *ImageProcessor) GetMetrics() ImageMetrics {
	return ImageMetrics{
		TotalProcessed:    atomic.LoadInt64(&p.metrics.TotalProcessed),
		LoadFailures:      atomic.LoadInt64(&p.metrics.LoadFailures),
		FailedValidations: atomic.LoadInt64(&p.metrics.FailedValidations),
		SecurityIncidents: atomic.LoadInt64(&p.metrics.SecurityIncidents),
	}
}

// Cleanup 删除上传目录中超过 ttl 的文件，返回删除数量
func (p *ImageProcessor) Cleanup(ttl time.Duration) (int, error) {
	entries, err := os.ReadDir(p.uploadDir)
	if err != nil {
		return 0, fmt.Errorf("读取上传目录失败: %v", err)
	}

	now := time.Now()
	cleanedCount := 0

	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}

		filePath := filepath.Join(p.uploadDir, entry.Name())
		info, err := entry.Info()
		if err != nil {
			continue
		}

		if now.Sub(info.ModTime()) > ttl {
			if err := os.Remove(filePath); err != nil {
				p.logger.Warn("删除过期图片失败", map[string]interface{}{
					"path":  filePath,
					"error": err.Error(),
				})
			} else {
				cleanedCount++
			}
		}
	}

	if cleanedCount > 0 {
		p.logger.Info("清理过期图片完成", map[string]interface{}{
			"cleaned_count": cleanedCount,
		})
	}

	return cleanedCount, nil
}
