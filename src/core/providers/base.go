package providers

import (
	"mealchat-server-go/src/core/types"
)

// VisionProvider 多模态模型提供者接口
type VisionProvider interface {
	types.Provider
	types.VisionInvoker
}
