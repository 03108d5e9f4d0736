package image

import (
	"bytes"
	"fmt"
	"image"
	"strings"

	"mealchat-server-go/src/configs"
	"mealchat-server-go/src/core/utils"

	_ "image/gif"  // 注册GIF解码器
	_ "image/jpeg" // 注册JPEG解码器
	_ "image/png"  // 注册PNG解码器

	_ "golang.org/x/image/bmp"  // 注册BMP解码器
	_ "golang.org/x/image/webp" // 注册WEBP解码器
)

// ImageSecurityValidator 图片安全验证器
type ImageSecurityValidator struct {
	config *configs.SecurityConfig
	logger *utils.Logger
}

// NewImageSecurityValidator 创建新的图片安全验证器
func NewImageSecurityValidator(config *configs.SecurityConfig, logger *utils.Logger) *ImageSecurityValidator {
	return &ImageSecurityValidator{
		config: config,
		logger: logger,
	}
}

// 图片格式魔数签名
var imageSignatures = map[string][]byte{
	"jpeg": {0xFF, 0xD8}, // JPEG文件只需要前两个字节
	"jpg":  {0xFF, 0xD8},
	"png":  {0x89, 0x50, 0x4E, 0x47, 0x0D, 0x0A, 0x1A, 0x0A},
	"gif":  {0x47, 0x49, 0x46, 0x38},
	"webp": {0x52, 0x49, 0x46, 0x46}, // RIFF，需要进一步检查WEBP标识
	"bmp":  {0x42, 0x4D},
}

// 文件开头出现即视为可疑的签名
var suspiciousSignatures = []struct {
	name      string
	signature []byte
}{
	{"PE", []byte{0x4D, 0x5A}},
	{"ELF", []byte{0x7F, 0x45, 0x4C, 0x46}},
	{"Mach-O", []byte{0xCA, 0xFE, 0xBA, 0xBE}},
	{"ZIP", []byte{0x50, 0x4B, 0x03, 0x04}},
	{"GZIP", []byte{0x1F, 0x8B, 0x08}},
}

// DetectFormat 根据文件头检测图片格式，无法识别时返回空字符串
func DetectFormat(data []byte) string {
	for _, format := range []string{"jpeg", "png", "gif", "bmp"} {
		if hasSignature(data, format) {
			return format
		}
	}
	if hasSignature(data, "webp") {
		return "webp"
	}
	return ""
}

func hasSignature(data []byte, format string) bool {
	signature, exists := imageSignatures[strings.ToLower(format)]
	if !exists || len(data) < len(signature) {
		return false
	}
	if !bytes.HasPrefix(data, signature) {
		return false
	}
	// WEBP需要额外验证
	if strings.ToLower(format) == "webp" {
		return len(data) >= 12 && bytes.Equal(data[8:12], []byte("WEBP"))
	}
	return true
}

// ValidateImage 验证图片字节，declaredFormat 为空时按文件头检测
func (v *ImageSecurityValidator) ValidateImage(data []byte, declaredFormat string) ValidationResult {
	result := ValidationResult{IsValid: false, FileSize: int64(len(data))}

	if len(data) == 0 {
		result.Error = fmt.Errorf("图片数据为空")
		return result
	}

	// 1. 基础大小检查
	if int64(len(data)) > v.config.MaxFileSize {
		result.Error = fmt.Errorf("文件大小超限: %d bytes，最大允许: %d bytes", len(data), v.config.MaxFileSize)
		result.SecurityRisk = "文件过大，可能是DoS攻击"
		v.logger.Warn("检测到超大文件", map[string]interface{}{
			"size":     len(data),
			"max_size": v.config.MaxFileSize,
		})
		return result
	}

	if declaredFormat == "" {
		declaredFormat = DetectFormat(data)
	}

	// 2. 格式支持检查
	if !v.isFormatAllowed(declaredFormat) {
		result.Error = fmt.Errorf("不支持的格式: %q，允许的格式: %s", declaredFormat, strings.Join(v.config.AllowedFormats, ", "))
		return result
	}

	// 3. 恶意内容检测
	if v.config.EnableDeepScan {
		if risk := v.scanForMaliciousContent(data); risk != "" {
			result.Error = fmt.Errorf("检测到潜在恶意内容")
			result.SecurityRisk = risk
			v.logger.Warn("检测到可疑内容", map[string]interface{}{
				"format": declaredFormat,
				"risk":   risk,
			})
			return result
		}
	}

	// 4. 解码验证
	decodeResult := v.validateImageDecoding(data, declaredFormat)
	if !decodeResult.IsValid && !hasSignature(data, declaredFormat) {
		v.logger.Warn("文件头与声明格式不符", map[string]interface{}{
			"declared_format": declaredFormat,
			"actual_header":   fmt.Sprintf("%x", data[:min(len(data), 16)]),
		})
	}
	return decodeResult
}

// isFormatAllowed 检查格式是否被允许
func (v *ImageSecurityValidator) isFormatAllowed(format string) bool {
	if format == "" {
		return false
	}
	for _, allowedFormat := range v.config.AllowedFormats {
		if strings.EqualFold(allowedFormat, format) {
			return true
		}
	}
	return false
}

// scanForMaliciousContent 返回风险描述，安全时返回空字符串
func (v *ImageSecurityValidator) scanForMaliciousContent(data []byte) string {
	for _, s := range suspiciousSignatures {
		if bytes.HasPrefix(data, s.signature) {
			return fmt.Sprintf("文件开头检测到%s签名", s.name)
		}
	}

	lower := strings.ToLower(string(data))
	if strings.Contains(lower, "<svg") {
		for _, suspicious := range []string{"<script", "javascript:", "onload=", "onerror=", "<iframe"} {
			if strings.Contains(lower, suspicious) {
				return "SVG中包含脚本内容: " + suspicious
			}
		}
	}
	return ""
}

// validateImageDecoding 解码图片头并检查尺寸
func (v *ImageSecurityValidator) validateImageDecoding(data []byte, format string) ValidationResult {
	result := ValidationResult{Format: format, FileSize: int64(len(data))}

	config, actualFormat, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		result.Error = fmt.Errorf("图片解码失败: %v", err)
		result.SecurityRisk = "可能包含恶意载荷或损坏的图片数据"
		return result
	}

	if actualFormat != "" {
		result.Format = actualFormat
	}
	if !v.isFormatAllowed(result.Format) {
		result.Error = fmt.Errorf("实际格式 %s 不被允许", result.Format)
		return result
	}

	// 检查尺寸限制
	if config.Width > v.config.MaxWidth || config.Height > v.config.MaxHeight {
		result.Error = fmt.Errorf("图片尺寸超限: %dx%d，最大允许: %dx%d",
			config.Width, config.Height, v.config.MaxWidth, v.config.MaxHeight)
		result.SecurityRisk = "图片过大，可能消耗过多资源"
		return result
	}

	// 检查像素总数
	totalPixels := int64(config.Width) * int64(config.Height)
	if totalPixels > v.config.MaxPixels {
		result.Error = fmt.Errorf("像素总数超限: %d，最大允许: %d", totalPixels, v.config.MaxPixels)
		result.SecurityRisk = "像素过多，可能导致内存耗尽"
		return result
	}

	result.IsValid = true
	result.Width = config.Width
	result.Height = config.Height

	v.logger.Debug("图片验证成功", map[string]interface{}{
		"format": result.Format,
		"width":  result.Width,
		"height": result.Height,
		"size":   result.FileSize,
	})

	return result
}
