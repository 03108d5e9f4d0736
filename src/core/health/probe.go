package health

import (
	"bytes"
	stdimage "image"
	"image/color"
	"image/jpeg"
	"unicode/utf8"

	"mealchat-server-go/src/core/image"
)

// ProbeImage 生成一张 8x8 的纯色 JPEG，用于功能性检查
func ProbeImage() (*image.EncodedImage, error) {
	img := stdimage.NewRGBA(stdimage.Rect(0, 0, 8, 8))
	for x := 0; x < 8; x++ {
		for y := 0; y < 8; y++ {
			img.Set(x, y, color.RGBA{R: 200, G: 40, B: 40, A: 255})
		}
	}

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, nil); err != nil {
		return nil, err
	}
	encoded := image.Encode(buf.Bytes())
	return &image.EncodedImage{
		Data:    encoded,
		Format:  "jpeg",
		DataURI: image.DataURI("jpeg", encoded),
		Size:    buf.Len(),
	}, nil
}

// ValidateResponse 验证模型响应是否合理
func ValidateResponse(response string) bool {
	n := utf8.RuneCountInString(response)
	return n > 0 && n <= 10000
}
