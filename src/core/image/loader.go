package image

import (
	"fmt"
	"os"

	"mealchat-server-go/src/core/types"
)

// LoadImage 读取整个图片文件，不做任何转换
// 路径不存在或不可读时返回 ErrFileAccess，且不返回部分数据
func LoadImage(path string) ([]byte, error) {
	if path == "" {
		return nil, fmt.Errorf("%w: 图片路径为空", types.ErrFileAccess)
	}

	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", types.ErrFileAccess, err)
	}
	if info.IsDir() {
		return nil, fmt.Errorf("%w: %s 是目录", types.ErrFileAccess, path)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", types.ErrFileAccess, err)
	}
	return data, nil
}
