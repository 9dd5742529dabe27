package finance

import (
	"github.com/fanzfinance/internal/http/response"
	"github.com/fanzfinance/internal/logger"
	"github.com/fanzfinance/internal/models"
	"github.com/fanzfinance/internal/service"

	"github.com/gin-gonic/gin"
)

// PayoutDestinationRequest 提现目的地
type PayoutDestinationRequest struct {
	Type    string                 `json:"type"`
	Details map[string]interface{} `json:"details"`
}

// PayoutRequest 提现请求
type PayoutRequest struct {
	CreatorID   string                   `json:"creator_id"`
	Amount      models.Money             `json:"amount"`
	Currency    string                   `json:"currency"`
	Destination PayoutDestinationRequest `json:"destination"`
}

// RequestPayout 受理创作者提现
func (h *Handler) RequestPayout(c *gin.Context) {
	var req PayoutRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondInvalidRequest(c, "invalid request body", err)
		return
	}
	ctx := logger.WithContext(c.Request.Context(), requestLog(c))
	result, err := h.PayoutService.RequestPayout(ctx, service.PayoutInput{
		CreatorID: req.CreatorID,
		Amount:    req.Amount,
		Currency:  req.Currency,
		Destination: service.PayoutDestination{
			Type:    req.Destination.Type,
			Details: req.Destination.Details,
		},
	})
	if err != nil {
		respondError(c, response.CodeInternal, string(service.CodeOf(err)), err)
		return
	}
	respondResult(c, result.Success, result.ErrorCode, result.Message, result)
}
