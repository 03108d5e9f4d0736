package uploads

import (
	"context"
	"time"

	"mealchat-server-go/src/core/metrics"
	"mealchat-server-go/src/core/utils"
)

// FileStore 上传文件的删除与目录清理
type FileStore interface {
	Remove(path string) error
	Cleanup(ttl time.Duration) (int, error)
}

// Janitor 定期清理过期的上传图片及其登记
type Janitor struct {
	repo   *Repository
	files  FileStore
	ttl    time.Duration
	logger *utils.TaggedLogger
}

// NewJanitor 创建清理器
func NewJanitor(repo *Repository, files FileStore, ttl time.Duration, logger *utils.Logger) *Janitor {
	if ttl <= 0 {
		ttl = time.Hour
	}
	return &Janitor{repo: repo, files: files, ttl: ttl, logger: logger.WithTag("janitor")}
}

// Sweep 执行一次清理：先删过期登记对应的文件，再删目录中没有登记的过期文件
func (j *Janitor) Sweep(ctx context.Context) (int, error) {
	expired, err := j.repo.DeleteOlderThan(ctx, time.Now().Add(-j.ttl))
	if err != nil {
		return 0, err
	}
	for _, u := range expired {
		if err := j.files.Remove(u.Path); err != nil {
			j.logger.Warn("删除过期图片失败", map[string]interface{}{
				"id":    u.ID,
				"error": err.Error(),
			})
		}
	}

	orphans, err := j.files.Cleanup(j.ttl)
	if err != nil {
		return len(expired), err
	}

	// 登记对应的文件已在上面删除，这里只会剩下未登记的文件
	total := len(expired) + orphans
	metrics.UploadsExpiredTotal.Add(float64(total))
	if total > 0 {
		j.logger.Info("过期上传清理完成", map[string]interface{}{
			"records": len(expired),
			"orphans": orphans,
		})
	}
	return total, nil
}

// Run 每隔 ttl/2 清理一次，直到 ctx 结束
func (j *Janitor) Run(ctx context.Context) error {
	ticker := time.NewTicker(j.ttl / 2)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if _, err := j.Sweep(ctx); err != nil && ctx.Err() == nil {
				j.logger.Error("清理过期上传失败", err)
			}
		}
	}
}
