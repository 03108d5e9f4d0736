package models

import "time"

// Upload 用户上传的餐食图片（仅保存元数据，图片文件在 upload.dir 下）
type Upload struct {
	ID        string    `gorm:"primaryKey;size:36"`
	Path      string    `gorm:"not null"`
	Format    string    `gorm:"size:16"`
	Size      int64
	CreatedAt time.Time `gorm:"index"`
}
