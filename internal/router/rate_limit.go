package router

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	handlershared "github.com/fanzfinance/internal/http/handlers/shared"
	"github.com/fanzfinance/internal/http/response"
	"github.com/fanzfinance/internal/logger"

	"github.com/gin-gonic/gin"
)

// RateLimitKeyFunc 生成限流 key 的函数
type RateLimitKeyFunc func(*gin.Context) string

// WindowCounter 固定窗口计数器，返回窗口内次数与剩余秒数
type WindowCounter func(ctx context.Context, key string, windowSeconds int) (int64, int64, error)

// RateLimitRule 限流规则
type RateLimitRule struct {
	Prefix        string
	WindowSeconds int
	MaxRequests   int
}

// RateLimitMiddleware 频率限制中间件，计数器不可用时放行
func RateLimitMiddleware(counter WindowCounter, rule RateLimitRule, keyFunc RateLimitKeyFunc) gin.HandlerFunc {
	return func(c *gin.Context) {
		if counter == nil || rule.WindowSeconds <= 0 || rule.MaxRequests <= 0 {
			c.Next()
			return
		}

		key := ""
		if keyFunc != nil {
			key = strings.TrimSpace(keyFunc(c))
		}
		if key == "" {
			key = c.ClientIP()
		}
		if rule.Prefix != "" {
			key = fmt.Sprintf("%s:%s", rule.Prefix, key)
		}

		count, ttlSeconds, err := counter(c.Request.Context(), key, rule.WindowSeconds)
		if err != nil {
			// 限流依赖故障不阻断资金请求
			logger.Warnw("rate_limit_counter_failed", "key", key, "error", err)
			c.Next()
			return
		}
		if count > int64(rule.MaxRequests) {
			waitSeconds := int(ttlSeconds)
			if waitSeconds < 1 {
				waitSeconds = rule.WindowSeconds
			}
			response.ErrorWithData(c, response.CodeTooManyRequests, "too many requests", gin.H{"retry_after_seconds": waitSeconds})
			c.Abort()
			return
		}

		c.Next()
	}
}

// KeyByIP 使用 IP 作为限流 key
func KeyByIP(c *gin.Context) string {
	return c.ClientIP()
}

// KeyByServiceAndJSONField 使用调用方服务 + JSON 字段作为限流 key
func KeyByServiceAndJSONField(field string) RateLimitKeyFunc {
	return func(c *gin.Context) string {
		caller := handlershared.ServiceName(c)
		if caller == "" {
			caller = c.ClientIP()
		}
		value := strings.ToLower(strings.TrimSpace(readJSONField(c, field)))
		if value == "" {
			return caller
		}
		return fmt.Sprintf("%s|%s", caller, value)
	}
}

func readJSONField(c *gin.Context, field string) string {
	if c == nil || c.Request == nil || c.Request.Body == nil {
		return ""
	}
	body, err := io.ReadAll(c.Request.Body)
	if err != nil {
		return ""
	}
	c.Request.Body = io.NopCloser(bytes.NewBuffer(body))
	if len(body) == 0 {
		return ""
	}
	var payload map[string]interface{}
	if err := json.Unmarshal(body, &payload); err != nil {
		return ""
	}
	value, ok := payload[field]
	if !ok {
		return ""
	}
	if text, ok := value.(string); ok {
		return strings.TrimSpace(text)
	}
	return ""
}
