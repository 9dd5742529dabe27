package finance

import (
	handlershared "github.com/fanzfinance/internal/http/handlers/shared"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

func requestLog(c *gin.Context) *zap.SugaredLogger {
	return handlershared.RequestLog(c)
}

func respondError(c *gin.Context, code int, msg string, err error) {
	handlershared.RespondError(c, code, msg, err)
}

func respondServiceError(c *gin.Context, err error) {
	handlershared.RespondServiceError(c, err)
}

func respondInvalidRequest(c *gin.Context, msg string, err error) {
	handlershared.RespondInvalidRequest(c, msg, err)
}
