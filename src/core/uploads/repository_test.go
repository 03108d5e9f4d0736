package uploads

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"mealchat-server-go/src/configs/database"
	"mealchat-server-go/src/core/types"
	"mealchat-server-go/src/models"
)

func newTestRepository(t *testing.T) *Repository {
	t.Helper()
	t.Setenv("DATABASE_URL", "")
	db, _, err := database.InitDB("sqlite://" + filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("InitDB() error = %v", err)
	}
	return NewRepository(db)
}

func TestRepository_SaveGet(t *testing.T) {
	repo := newTestRepository(t)
	ctx := context.Background()

	upload := &models.Upload{ID: "a1", Path: "/tmp/a1.jpg", Format: "jpeg", Size: 42}
	if err := repo.Save(ctx, upload); err != nil {
		t.Fatalf("Save() error = %v", err)
	}
	if upload.CreatedAt.IsZero() {
		t.Error("CreatedAt 未设置")
	}

	got, err := repo.Get(ctx, "a1")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if got.Path != upload.Path || got.Size != 42 {
		t.Errorf("Get() = %+v", got)
	}

	if _, err := repo.Get(ctx, "missing"); !errors.Is(err, types.ErrFileAccess) {
		t.Errorf("不存在的图片应返回 ErrFileAccess, err = %v", err)
	}
}

func TestRepository_DeleteOlderThan(t *testing.T) {
	repo := newTestRepository(t)
	ctx := context.Background()
	now := time.Now()

	for _, u := range []*models.Upload{
		{ID: "old", Path: "old.jpg", CreatedAt: now.Add(-2 * time.Hour)},
		{ID: "new", Path: "new.jpg", CreatedAt: now},
	} {
		if err := repo.Save(ctx, u); err != nil {
			t.Fatalf("Save() error = %v", err)
		}
	}

	expired, err := repo.DeleteOlderThan(ctx, now.Add(-time.Hour))
	if err != nil {
		t.Fatalf("DeleteOlderThan() error = %v", err)
	}
	if len(expired) != 1 || expired[0].ID != "old" {
		t.Errorf("expired = %+v", expired)
	}
	if _, err := repo.Get(ctx, "old"); !errors.Is(err, types.ErrFileAccess) {
		t.Errorf("过期记录应已删除")
	}
	if _, err := repo.Get(ctx, "new"); err != nil {
		t.Errorf("新记录不应删除: %v", err)
	}

	expired, err = repo.DeleteOlderThan(ctx, now.Add(-time.Hour))
	if err != nil || len(expired) != 0 {
		t.Errorf("第二次清理 = %v, %v", expired, err)
	}
}
