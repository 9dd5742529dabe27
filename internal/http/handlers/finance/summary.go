package finance

import (
	"context"
	"time"

	"github.com/fanzfinance/internal/cache"
	"github.com/fanzfinance/internal/http/response"

	"github.com/gin-gonic/gin"
)

const healthCheckTimeout = 2 * time.Second

// GetSummary 平台资金汇总
func (h *Handler) GetSummary(c *gin.Context) {
	summary, err := h.SummaryService.GetFinancialSummary(c.Request.Context())
	if err != nil {
		respondServiceError(c, err)
		return
	}
	response.Success(c, summary)
}

// Health 健康检查，数据库不可用时返回 503
func (h *Handler) Health(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), healthCheckTimeout)
	defer cancel()

	status := gin.H{"database": "ok", "cache": "disabled", "active_gateways": h.Registry.ActiveCount()}
	sqlDB, err := h.DB.DB()
	if err == nil {
		err = sqlDB.PingContext(ctx)
	}
	if err != nil {
		status["database"] = "unavailable"
		requestLog(c).Warnw("health_database_unavailable", "error", err)
		response.ErrorWithData(c, response.CodeServiceUnavailable, "database unavailable", status)
		return
	}
	if cache.Enabled() {
		status["cache"] = "ok"
		if err := cache.Ping(ctx); err != nil {
			status["cache"] = "unavailable"
		}
	}
	response.Success(c, status)
}
