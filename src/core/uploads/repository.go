package uploads

import (
	"context"
	"errors"
	"fmt"
	"time"

	"mealchat-server-go/src/core/types"
	"mealchat-server-go/src/models"

	"gorm.io/gorm"
)

// Repository 上传图片的元数据登记，问答接口凭图片ID找回文件
type Repository struct {
	db *gorm.DB
}

// NewRepository 创建仓库
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// Save 登记一张已写入磁盘的图片
func (r *Repository) Save(ctx context.Context, upload *models.Upload) error {
	if upload.CreatedAt.IsZero() {
		upload.CreatedAt = time.Now()
	}
	if err := r.db.WithContext(ctx).Create(upload).Error; err != nil {
		return fmt.Errorf("登记上传图片失败: %w", err)
	}
	return nil
}

// Get 按ID查找，不存在时返回 ErrFileAccess
func (r *Repository) Get(ctx context.Context, id string) (*models.Upload, error) {
	var upload models.Upload
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&upload).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("%w: 图片 %s 不存在或已过期", types.ErrFileAccess, id)
	}
	if err != nil {
		return nil, fmt.Errorf("查询上传图片失败: %w", err)
	}
	return &upload, nil
}

// DeleteOlderThan 删除早于 t 的登记，返回被删除的记录
func (r *Repository) DeleteOlderThan(ctx context.Context, t time.Time) ([]models.Upload, error) {
	var expired []models.Upload
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("created_at < ?", t).Find(&expired).Error; err != nil {
			return err
		}
		if len(expired) == 0 {
			return nil
		}
		ids := make([]string, 0, len(expired))
		for _, u := range expired {
			ids = append(ids, u.ID)
		}
		return tx.Where("id IN ?", ids).Delete(&models.Upload{}).Error
	})
	if err != nil {
		return nil, fmt.Errorf("清理过期登记失败: %w", err)
	}
	return expired, nil
}
