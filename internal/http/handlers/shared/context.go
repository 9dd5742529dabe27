package shared

import "github.com/gin-gonic/gin"

// ServiceNameKey 鉴权后写入上下文的调用方服务名
const ServiceNameKey = "caller_service"

// ServiceName 读取调用方服务名，未鉴权时为空。
func ServiceName(c *gin.Context) string {
	if c == nil {
		return ""
	}
	value, ok := c.Get(ServiceNameKey)
	if !ok {
		return ""
	}
	name, _ := value.(string)
	return name
}
