package payment

import (
	"context"
	"errors"
	"time"

	"github.com/fanzfinance/internal/models"
)

// ErrExecutorUnavailable 支付执行器不可用
var ErrExecutorUnavailable = errors.New("payment executor unavailable")

// ExecuteRequest 网关授权请求
type ExecuteRequest struct {
	TransactionNo string
	GatewayID     string
	Amount        models.Money
	Currency      string
	PaymentMethod string
	Reference     string
	// Latency 网关目录中的典型授权耗时，模拟实现据此等待
	Latency time.Duration
}

// ExecuteResult 网关授权结果
type ExecuteResult struct {
	Approved      bool
	GatewayTxnID  string
	DeclineReason string
}

// Executor 网关授权执行接口，调用方通过 ctx 控制超时
type Executor interface {
	Execute(ctx context.Context, req ExecuteRequest) (*ExecuteResult, error)
}

// DisburseRequest 提现打款请求
type DisburseRequest struct {
	TransactionNo   string
	PayeeID         string
	Amount          models.Money
	Currency        string
	DestinationType string
	Destination     models.JSON
}

// DisburseResult 打款结果
type DisburseResult struct {
	Succeeded     bool
	ProviderRef   string
	FailureReason string
}

// Disburser 打款执行接口
type Disburser interface {
	Disburse(ctx context.Context, req DisburseRequest) (*DisburseResult, error)
}

// ExecutorFunc 函数适配 Executor
type ExecutorFunc func(ctx context.Context, req ExecuteRequest) (*ExecuteResult, error)

// Execute 调用函数本身
func (f ExecutorFunc) Execute(ctx context.Context, req ExecuteRequest) (*ExecuteResult, error) {
	if f == nil {
		return nil, ErrExecutorUnavailable
	}
	return f(ctx, req)
}

// DisburserFunc 函数适配 Disburser
type DisburserFunc func(ctx context.Context, req DisburseRequest) (*DisburseResult, error)

// Disburse 调用函数本身
func (f DisburserFunc) Disburse(ctx context.Context, req DisburseRequest) (*DisburseResult, error) {
	if f == nil {
		return nil, ErrExecutorUnavailable
	}
	return f(ctx, req)
}
