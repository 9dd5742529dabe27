package shared

import (
	"github.com/fanzfinance/internal/http/response"
	"github.com/fanzfinance/internal/logger"
	"github.com/fanzfinance/internal/service"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// RequestLog 提供携带 request_id 与调用方服务的日志实例。
func RequestLog(c *gin.Context) *zap.SugaredLogger {
	if c == nil {
		return logger.S()
	}
	kv := make([]interface{}, 0, 4)
	if requestID, ok := c.Get("request_id"); ok {
		if id, ok := requestID.(string); ok && id != "" {
			kv = append(kv, "request_id", id)
		}
	}
	if name := ServiceName(c); name != "" {
		kv = append(kv, "caller_service", name)
	}
	if len(kv) == 0 {
		return logger.S()
	}
	return logger.SW(kv...)
}

// RespondError 返回错误响应，并在有原始错误时记录日志。
func RespondError(c *gin.Context, code int, msg string, err error) {
	respondAppError(c, response.WrapError(code, msg, err))
}

// RespondInvalidRequest 请求参数不合法，附带 INVALID_REQUEST 错误码。
func RespondInvalidRequest(c *gin.Context, msg string, err error) {
	respondAppError(c, response.WrapCodedError(response.CodeBadRequest, string(service.CodeInvalidRequest), msg, err))
}

func respondAppError(c *gin.Context, appErr *response.AppError) {
	if appErr.Err != nil {
		log := RequestLog(c)
		logFn := log.Errorw
		if appErr.Code < response.CodeInternal {
			logFn = log.Warnw
		}
		logFn("handler_error",
			"code", appErr.Code,
			"error_code", appErr.ErrorCode,
			"message", appErr.Message,
			"error", appErr.Err,
		)
	}
	if data := appErr.Data(); data != nil {
		response.ErrorWithData(c, appErr.Code, appErr.Message, data)
		return
	}
	response.Error(c, appErr.Code, appErr.Message)
}

// RespondServiceError 按业务错误码返回响应，内部错误记录日志且不外露细节。
func RespondServiceError(c *gin.Context, err error) {
	code := service.CodeOf(err)
	status := StatusForCode(code)
	if status == response.CodeInternal {
		RespondError(c, status, string(service.CodeInternalError), err)
		return
	}
	respondAppError(c, response.WrapCodedError(status, string(code), err.Error(), nil))
}

// StatusForCode 业务错误码到响应状态码的映射。
func StatusForCode(code service.ErrorCode) int {
	switch code {
	case "":
		return response.CodeOK
	case service.CodeInvalidRequest:
		return response.CodeBadRequest
	case service.CodeAccountNotFound, service.CodeTransactionNotFound:
		return response.CodeNotFound
	case service.CodeIdempotencyKeyReused, service.CodeIdempotencyConflict, service.CodeInvalidStateTransition:
		return response.CodeConflict
	case service.CodeRiskBlocked, service.CodeGatewayDeclined, service.CodeInsufficientFunds,
		service.CodeAccountSuspended, service.CodeRefundNotSupported:
		return response.CodeUnprocessable
	case service.CodeNoGatewayAvailable:
		return response.CodeServiceUnavailable
	case service.CodeGatewayTimeout:
		return response.CodeGatewayTimeout
	default:
		return response.CodeInternal
	}
}
