package finance

import (
	"strings"

	"github.com/fanzfinance/internal/http/response"

	"github.com/gin-gonic/gin"
)

// VerificationRequest KYC 回写请求
type VerificationRequest struct {
	VerificationStatus string `json:"verification_status"`
	KYCLevel           int    `json:"kyc_level"`
}

// GetAccount 查询资金账户
func (h *Handler) GetAccount(c *gin.Context) {
	account, err := h.AccountService.GetAccount(c.Request.Context(), strings.TrimSpace(c.Param("user_id")))
	if err != nil {
		respondServiceError(c, err)
		return
	}
	response.Success(c, account)
}

// UpdateVerification 回写账户认证状态
func (h *Handler) UpdateVerification(c *gin.Context) {
	var req VerificationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondInvalidRequest(c, "invalid request body", err)
		return
	}
	userID := strings.TrimSpace(c.Param("user_id"))
	account, err := h.AccountService.SetVerification(c.Request.Context(), userID, strings.TrimSpace(req.VerificationStatus), req.KYCLevel)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	requestLog(c).Infow("account_verification_updated", "user_id", userID, "status", account.VerificationStatus, "kyc_level", account.KYCLevel)
	response.Success(c, account)
}
