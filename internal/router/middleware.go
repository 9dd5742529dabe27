package router

import (
	"strings"
	"time"

	"github.com/fanzfinance/internal/authz"
	"github.com/fanzfinance/internal/config"
	handlershared "github.com/fanzfinance/internal/http/handlers/shared"
	"github.com/fanzfinance/internal/http/response"
	"github.com/fanzfinance/internal/logger"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const requestIDKey = "request_id"
const requestIDHeader = "X-Request-ID"

// RequestIDMiddleware 请求 ID 中间件
func RequestIDMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		requestID := strings.TrimSpace(c.GetHeader(requestIDHeader))
		if requestID == "" {
			requestID = uuid.NewString()
		}
		c.Set(requestIDKey, requestID)
		c.Writer.Header().Set(requestIDHeader, requestID)
		c.Next()
	}
}

// LoggerMiddleware 结构化请求日志中间件
func LoggerMiddleware(logger *zap.Logger) gin.HandlerFunc {
	if logger == nil {
		logger = zap.L()
	}
	sugar := logger.Sugar()
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		log := sugar.With(
			"request_id", getRequestID(c),
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"status", c.Writer.Status(),
			"latency_ms", time.Since(start).Milliseconds(),
			"client_ip", c.ClientIP(),
			"caller_service", handlershared.ServiceName(c),
		)
		if len(c.Errors) > 0 {
			log.Errorw("request", "errors", c.Errors.String())
			return
		}
		log.Infow("request")
	}
}

// RecoveryMiddleware 捕获 panic 并返回统一错误响应
func RecoveryMiddleware() gin.HandlerFunc {
	return gin.CustomRecovery(func(c *gin.Context, recovered interface{}) {
		logger.Errorw("request_panic_recovered",
			"request_id", getRequestID(c),
			"path", c.Request.URL.Path,
			"panic", recovered,
		)
		response.Error(c, response.CodeInternal, "internal error")
		c.Abort()
	})
}

func getRequestID(c *gin.Context) string {
	value, ok := c.Get(requestIDKey)
	if !ok {
		return ""
	}
	if requestID, ok := value.(string); ok {
		return requestID
	}
	return ""
}

// ServiceJWTAuthMiddleware 服务间 JWT 鉴权中间件，令牌必须携带 service 声明
func ServiceJWTAuthMiddleware(cfg config.JWTConfig) gin.HandlerFunc {
	return func(c *gin.Context) {
		if cfg.SecretKey == "" {
			response.Unauthorized(c, "jwt secret is not configured")
			c.Abort()
			return
		}
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			response.Unauthorized(c, "authorization header is missing")
			c.Abort()
			return
		}

		parts := strings.SplitN(authHeader, " ", 2)
		if !(len(parts) == 2 && parts[0] == "Bearer") {
			response.Unauthorized(c, "authorization header must be a bearer token")
			c.Abort()
			return
		}

		claims, err := authz.ParseServiceToken(cfg.SecretKey, cfg.Issuer, strings.TrimSpace(parts[1]))
		if err != nil {
			logger.Debugw("service_token_rejected", "request_id", getRequestID(c), "error", err)
			response.Unauthorized(c, "invalid service token")
			c.Abort()
			return
		}

		c.Set(handlershared.ServiceNameKey, strings.ToLower(strings.TrimSpace(claims.Service)))
		c.Next()
	}
}

// ServiceRBACMiddleware 调用方服务授权中间件，未启用授权时放行
func ServiceRBACMiddleware(authzService *authz.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		if authzService == nil {
			c.Next()
			return
		}
		serviceName := handlershared.ServiceName(c)
		if serviceName == "" {
			response.Unauthorized(c, "unauthorized")
			c.Abort()
			return
		}

		resource := c.FullPath()
		if strings.TrimSpace(resource) == "" {
			resource = c.Request.URL.Path
		}

		allowed, err := authzService.EnforceService(serviceName, resource, c.Request.Method)
		if err != nil {
			logger.Errorw("service_rbac_enforce_failed",
				"caller_service", serviceName,
				"method", c.Request.Method,
				"path", c.Request.URL.Path,
				"error", err,
			)
			response.Unauthorized(c, "unauthorized")
			c.Abort()
			return
		}
		if !allowed {
			logger.Warnw("service_rbac_permission_denied",
				"caller_service", serviceName,
				"method", c.Request.Method,
				"path", c.Request.URL.Path,
				"resource", authz.NormalizeObject(resource),
			)
			response.Forbidden(c, "forbidden")
			c.Abort()
			return
		}

		c.Next()
	}
}
