package finance

import "github.com/fanzfinance/internal/provider"

// Handler 资金核心接口处理器入口
// 说明：调用方均为内部服务，鉴权在路由层完成。
type Handler struct {
	*provider.Container
}

// New 创建资金接口处理器
func New(c *provider.Container) *Handler {
	return &Handler{Container: c}
}
