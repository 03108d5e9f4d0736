package mealchat

import "mealchat-server-go/src/core/meal"

// MealResponse 标准响应结构
type MealResponse struct {
	Success bool             `json:"success"`            // 是否成功
	ImageID string           `json:"image_id,omitempty"` // 上传图片ID，问答时使用
	Token   string           `json:"token,omitempty"`    // 会话token（开启认证时）
	Result  *meal.MealRecord `json:"result,omitempty"`   // 提取结果
	Answer  string           `json:"answer,omitempty"`   // 问答结果
	Message string           `json:"message,omitempty"`  // 错误信息（失败时）
}

// QuestionRequest 问答请求，支持表单与JSON
type QuestionRequest struct {
	Question string `form:"question" json:"question"`
}
