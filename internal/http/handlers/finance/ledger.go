package finance

import (
	"github.com/fanzfinance/internal/http/response"
	"github.com/fanzfinance/internal/logger"

	"github.com/gin-gonic/gin"
)

// ReconcileRequest 对账请求，EntryNos 为空表示整笔交易
type ReconcileRequest struct {
	EntryNos []string `json:"entry_nos"`
}

// ReconcileTransactionLedger 标记交易分录已对账
func (h *Handler) ReconcileTransactionLedger(c *gin.Context) {
	var req ReconcileRequest
	if err := bindOptionalJSON(c, &req); err != nil {
		respondInvalidRequest(c, "invalid request body", err)
		return
	}
	ctx := logger.WithContext(c.Request.Context(), requestLog(c))
	result, err := h.TransactionService.ReconcileEntries(ctx, c.Param("transaction_no"), req.EntryNos)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	response.Success(c, result)
}

// ListLedgerEntries 按处理方引用查询分录
func (h *Handler) ListLedgerEntries(c *gin.Context) {
	entries, err := h.TransactionService.ListLedgerEntriesByReference(c.Request.Context(), c.Query("reference"))
	if err != nil {
		respondServiceError(c, err)
		return
	}
	response.Success(c, entries)
}
