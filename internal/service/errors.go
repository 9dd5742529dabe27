package service

import (
	"errors"

	"github.com/fanzfinance/internal/ledger"
	"github.com/fanzfinance/internal/repository"
)

// ErrorCode 稳定的业务错误码
type ErrorCode string

// 业务错误码常量
const (
	CodeInvalidRequest         ErrorCode = "INVALID_REQUEST"
	CodeNoGatewayAvailable     ErrorCode = "NO_GATEWAY_AVAILABLE"
	CodeRiskBlocked            ErrorCode = "RISK_BLOCKED"
	CodeGatewayDeclined        ErrorCode = "GATEWAY_DECLINED"
	CodeGatewayTimeout         ErrorCode = "GATEWAY_TIMEOUT"
	CodeInternalError          ErrorCode = "INTERNAL_ERROR"
	CodeAccountNotFound        ErrorCode = "ACCOUNT_NOT_FOUND"
	CodeInsufficientFunds      ErrorCode = "INSUFFICIENT_FUNDS"
	CodeAccountSuspended       ErrorCode = "ACCOUNT_SUSPENDED"
	CodeIdempotencyKeyReused   ErrorCode = "IDEMPOTENCY_KEY_REUSED"
	CodeIdempotencyConflict    ErrorCode = "IDEMPOTENCY_CONFLICT"
	CodeTransactionNotFound    ErrorCode = "TRANSACTION_NOT_FOUND"
	CodeInvalidStateTransition ErrorCode = "INVALID_STATE_TRANSITION"
	CodeUnbalancedPosting      ErrorCode = "UNBALANCED_POSTING"
	CodeRefundNotSupported     ErrorCode = "REFUND_NOT_SUPPORTED"
)

var (
	ErrInvalidRequest         = errors.New("invalid request")
	ErrNoGatewayAvailable     = errors.New("no gateway available")
	ErrRiskBlocked            = errors.New("risk blocked")
	ErrGatewayDeclined        = errors.New("gateway declined")
	ErrGatewayTimeout         = errors.New("gateway timeout")
	ErrAccountNotFound        = errors.New("account not found")
	ErrInsufficientFunds      = errors.New("insufficient funds")
	ErrAccountSuspended       = errors.New("account suspended")
	ErrIdempotencyKeyReused   = errors.New("idempotency key reused with different request")
	ErrIdempotencyConflict    = errors.New("idempotency key conflict")
	ErrTransactionNotFound    = errors.New("transaction not found")
	ErrInvalidStateTransition = errors.New("invalid state transition")
	ErrRefundNotSupported     = errors.New("refund not supported by gateway")
	ErrUnbalancedPosting      = ledger.ErrUnbalancedPosting
)

var codeBySentinel = []struct {
	err  error
	code ErrorCode
}{
	{ErrInvalidRequest, CodeInvalidRequest},
	{repository.ErrUnknownBucket, CodeInvalidRequest},
	{ErrNoGatewayAvailable, CodeNoGatewayAvailable},
	{ErrRiskBlocked, CodeRiskBlocked},
	{ErrGatewayDeclined, CodeGatewayDeclined},
	{ErrGatewayTimeout, CodeGatewayTimeout},
	{ErrAccountNotFound, CodeAccountNotFound},
	{ErrInsufficientFunds, CodeInsufficientFunds},
	{ErrAccountSuspended, CodeAccountSuspended},
	{ErrIdempotencyKeyReused, CodeIdempotencyKeyReused},
	{ErrIdempotencyConflict, CodeIdempotencyConflict},
	{ErrTransactionNotFound, CodeTransactionNotFound},
	{ErrInvalidStateTransition, CodeInvalidStateTransition},
	{ErrRefundNotSupported, CodeRefundNotSupported},
	{ErrSettlementNotDue, CodeInvalidStateTransition},
	{ErrUnbalancedPosting, CodeUnbalancedPosting},
	{ledger.ErrUnsupportedKind, CodeInternalError},
}

// CodeOf 把错误映射为业务错误码，未知错误视为内部错误
func CodeOf(err error) ErrorCode {
	if err == nil {
		return ""
	}
	for _, item := range codeBySentinel {
		if errors.Is(err, item.err) {
			return item.code
		}
	}
	return CodeInternalError
}

// IsFatal 判断是否为不变量被破坏的致命错误
func IsFatal(err error) bool {
	return errors.Is(err, ErrUnbalancedPosting)
}
