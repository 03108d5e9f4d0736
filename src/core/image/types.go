package image

// EncodedImage 编码后可直接放入请求体的图片
type EncodedImage struct {
	Data    string // 标准base64
	Format  string
	DataURI string // data:image/<format>;base64,<data>
	Size    int    // 原始字节数
}

// ValidationResult 图片验证结果
type ValidationResult struct {
	IsValid      bool   // 是否有效
	Format       string // 实际格式
	Width        int    // 图片宽度
	Height       int    // 图片高度
	FileSize     int64  // 文件大小
	Error        error  // 错误信息
	SecurityRisk string // 安全风险描述
}

// ImageMetrics 图片处理统计信息
type ImageMetrics struct {
	TotalProcessed    int64 // 总处理数量
	LoadFailures      int64 // 读取失败次数
	FailedValidations int64 // 验证失败次数
	SecurityIncidents int64 // 安全事件次数
}
