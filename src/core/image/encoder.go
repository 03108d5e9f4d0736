package image

import (
	"encoding/base64"
	"fmt"
	"strings"

	"mealchat-server-go/src/core/types"
)

// Encode 标准base64编码
func Encode(data []byte) string {
	return base64.StdEncoding.EncodeToString(data)
}

// Decode 解码标准base64，输入损坏时返回 ErrEncoding
func Decode(encoded string) ([]byte, error) {
	data, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", types.ErrEncoding, err)
	}
	return data, nil
}

// DataURI 构建可内联到请求中的 data URI
func DataURI(format, encoded string) string {
	if format == "" || format == "jpg" {
		format = "jpeg"
	}
	return fmt.Sprintf("data:image/%s;base64,%s", format, encoded)
}

// SplitDataURI 拆分 data URI，返回格式和base64数据
func SplitDataURI(uri string) (format string, encoded string, err error) {
	const prefix = "data:image/"
	if !strings.HasPrefix(uri, prefix) {
		return "", "", fmt.Errorf("%w: 不是图片 data URI", types.ErrEncoding)
	}
	meta, data, ok := strings.Cut(strings.TrimPrefix(uri, prefix), ",")
	if !ok || !strings.HasSuffix(meta, ";base64") {
		return "", "", fmt.Errorf("%w: data URI 缺少base64数据", types.ErrEncoding)
	}
	return strings.TrimSuffix(meta, ";base64"), data, nil
}
