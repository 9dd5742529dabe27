package finance

import (
	"strings"
	"time"

	handlershared "github.com/fanzfinance/internal/http/handlers/shared"
	"github.com/fanzfinance/internal/http/response"
	"github.com/fanzfinance/internal/logger"
	"github.com/fanzfinance/internal/models"
	"github.com/fanzfinance/internal/repository"
	"github.com/fanzfinance/internal/service"

	"github.com/gin-gonic/gin"
)

// IdempotencyKeyHeader 支付幂等键请求头
const IdempotencyKeyHeader = "Idempotency-Key"

// ProcessPaymentRequest 支付请求
type ProcessPaymentRequest struct {
	Amount         models.Money           `json:"amount"`
	Currency       string                 `json:"currency"`
	PayerID        string                 `json:"payer_id"`
	PayeeID        string                 `json:"payee_id"`
	PaymentMethod  string                 `json:"payment_method"`
	Country        string                 `json:"country"`
	Metadata       map[string]interface{} `json:"metadata"`
	IdempotencyKey string                 `json:"idempotency_key"`
}

// ReasonRequest 争议与退款原因
type ReasonRequest struct {
	Reason string `json:"reason"`
}

// ProcessPayment 受理支付
func (h *Handler) ProcessPayment(c *gin.Context) {
	var req ProcessPaymentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondInvalidRequest(c, "invalid request body", err)
		return
	}
	key := strings.TrimSpace(c.GetHeader(IdempotencyKeyHeader))
	if key == "" {
		key = strings.TrimSpace(req.IdempotencyKey)
	}

	ctx := logger.WithContext(c.Request.Context(), requestLog(c))
	result, err := h.TransactionService.ProcessPayment(ctx, service.ProcessPaymentInput{
		Amount:         req.Amount,
		Currency:       req.Currency,
		PayerID:        req.PayerID,
		PayeeID:        req.PayeeID,
		PaymentMethod:  req.PaymentMethod,
		Country:        req.Country,
		Metadata:       req.Metadata,
		IdempotencyKey: key,
	})
	if err != nil {
		respondError(c, response.CodeInternal, string(service.CodeOf(err)), err)
		return
	}
	respondResult(c, result.Success, result.ErrorCode, result.Message, result)
}

// GetTransaction 查询交易
func (h *Handler) GetTransaction(c *gin.Context) {
	txn, err := h.TransactionService.GetTransaction(c.Request.Context(), c.Param("transaction_no"))
	if err != nil {
		respondServiceError(c, err)
		return
	}
	response.Success(c, txn)
}

// GetTransactionLedger 查询交易分录
func (h *Handler) GetTransactionLedger(c *gin.Context) {
	entries, err := h.TransactionService.ListLedgerEntries(c.Request.Context(), c.Param("transaction_no"))
	if err != nil {
		respondServiceError(c, err)
		return
	}
	response.Success(c, entries)
}

// ListTransactions 分页查询交易
func (h *Handler) ListTransactions(c *gin.Context) {
	page, pageSize := handlershared.ParsePagination(c)

	filter := repository.TransactionListFilter{
		Page:      page,
		PageSize:  pageSize,
		Kind:      strings.TrimSpace(c.Query("kind")),
		Status:    strings.TrimSpace(c.Query("status")),
		PayerID:   strings.TrimSpace(c.Query("payer_id")),
		PayeeID:   strings.TrimSpace(c.Query("payee_id")),
		GatewayID: strings.TrimSpace(c.Query("gateway_id")),
	}
	var err error
	if filter.CreatedFrom, err = parseTimeQuery(c, "created_from"); err != nil {
		respondInvalidRequest(c, "created_from must be RFC3339", nil)
		return
	}
	if filter.CreatedTo, err = parseTimeQuery(c, "created_to"); err != nil {
		respondInvalidRequest(c, "created_to must be RFC3339", nil)
		return
	}

	txns, total, err := h.TransactionService.ListTransactions(c.Request.Context(), filter)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	response.SuccessWithPage(c, txns, response.BuildPagination(page, pageSize, total))
}

// CancelTransaction 取消处理中的支付
func (h *Handler) CancelTransaction(c *gin.Context) {
	ctx := logger.WithContext(c.Request.Context(), requestLog(c))
	txn, err := h.TransactionService.CancelTransaction(ctx, c.Param("transaction_no"))
	if err != nil {
		respondServiceError(c, err)
		return
	}
	response.Success(c, txn)
}

// DisputeTransaction 对已完成支付发起争议
func (h *Handler) DisputeTransaction(c *gin.Context) {
	var req ReasonRequest
	if err := bindOptionalJSON(c, &req); err != nil {
		respondInvalidRequest(c, "invalid request body", err)
		return
	}
	ctx := logger.WithContext(c.Request.Context(), requestLog(c))
	txn, err := h.TransactionService.DisputeTransaction(ctx, c.Param("transaction_no"), req.Reason)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	response.Success(c, txn)
}

// RefundTransaction 退款已完成支付
func (h *Handler) RefundTransaction(c *gin.Context) {
	var req ReasonRequest
	if err := bindOptionalJSON(c, &req); err != nil {
		respondInvalidRequest(c, "invalid request body", err)
		return
	}
	ctx := logger.WithContext(c.Request.Context(), requestLog(c))
	refund, err := h.TransactionService.RefundPayment(ctx, c.Param("transaction_no"), req.Reason)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	response.Success(c, refund)
}

// ListGateways 网关目录
func (h *Handler) ListGateways(c *gin.Context) {
	gateways, err := h.TransactionService.ListGateways(c.Request.Context())
	if err != nil {
		respondServiceError(c, err)
		return
	}
	response.Success(c, gateways)
}

// respondResult 受理类接口统一输出，拒绝时携带完整结果
func respondResult(c *gin.Context, success bool, code service.ErrorCode, msg string, result interface{}) {
	if success {
		response.Success(c, result)
		return
	}
	if msg == "" {
		msg = string(code)
	}
	response.ErrorWithData(c, handlershared.StatusForCode(code), msg, gin.H{"result": result})
}

func bindOptionalJSON(c *gin.Context, dest interface{}) error {
	if c.Request.Body == nil || c.Request.ContentLength == 0 {
		return nil
	}
	return c.ShouldBindJSON(dest)
}

func parseTimeQuery(c *gin.Context, key string) (*time.Time, error) {
	raw := strings.TrimSpace(c.Query(key))
	if raw == "" {
		return nil, nil
	}
	parsed, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return nil, err
	}
	return &parsed, nil
}
