package utils

import (
	"os"
	"path/filepath"
)

// GetProjectDir 获取项目根目录（进程工作目录）
func GetProjectDir() string {
	dir, err := os.Getwd()
	if err != nil {
		return ""
	}
	return dir
}

// ResolvePath 相对路径按项目根目录解析
func ResolvePath(path string) string {
	if path == "" || filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(GetProjectDir(), path)
}
