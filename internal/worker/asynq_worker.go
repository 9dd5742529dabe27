package worker

import (
	"context"
	"errors"

	"github.com/fanzfinance/internal/logger"
	"github.com/fanzfinance/internal/provider"
	"github.com/fanzfinance/internal/queue"
	"github.com/fanzfinance/internal/service"

	"github.com/hibiken/asynq"
)

// Consumer 异步任务消费者
type Consumer struct {
	*provider.Container
}

// NewConsumer 创建消费者
func NewConsumer(c *provider.Container) *Consumer {
	return &Consumer{
		Container: c,
	}
}

// Register 注册消费者
func (c *Consumer) Register(mux *asynq.ServeMux) {
	if c == nil || mux == nil {
		logger.Debugw("worker_register_skip_nil", "consumer_nil", c == nil, "mux_nil", mux == nil)
		return
	}
	mux.HandleFunc(queue.TaskPaymentAuthorize, c.handlePaymentAuthorize)
	mux.HandleFunc(queue.TaskPaymentAuthTimeout, c.handlePaymentAuthTimeout)
	mux.HandleFunc(queue.TaskSettlementRelease, c.handleSettlementRelease)
	mux.HandleFunc(queue.TaskPayoutDisburse, c.handlePayoutDisburse)
}

func (c *Consumer) handlePaymentAuthorize(ctx context.Context, task *asynq.Task) error {
	payload, err := queue.ParseTransactionPayload(task)
	if err != nil {
		logger.Warnw("worker_payment_authorize_invalid_payload", "error", err)
		return skipRetry(err)
	}
	err = c.TransactionService.AuthorizePayment(ctx, payload.TransactionNo)
	return c.settle("payment_authorize", payload.TransactionNo, err)
}

func (c *Consumer) handlePaymentAuthTimeout(ctx context.Context, task *asynq.Task) error {
	payload, err := queue.ParseTransactionPayload(task)
	if err != nil {
		logger.Warnw("worker_payment_auth_timeout_invalid_payload", "error", err)
		return skipRetry(err)
	}
	err = c.TransactionService.ExpireAuthorization(ctx, payload.TransactionNo)
	return c.settle("payment_auth_timeout", payload.TransactionNo, err)
}

func (c *Consumer) handleSettlementRelease(ctx context.Context, task *asynq.Task) error {
	payload, err := queue.ParseTransactionPayload(task)
	if err != nil {
		logger.Warnw("worker_settlement_release_invalid_payload", "error", err)
		return skipRetry(err)
	}
	err = c.TransactionService.ReleaseSettlement(ctx, payload.TransactionNo)
	if errors.Is(err, service.ErrSettlementNotDue) {
		// 提前投递时交给扫描兜底
		logger.Debugw("worker_settlement_release_not_due", "transaction_no", payload.TransactionNo)
		return nil
	}
	return c.settle("settlement_release", payload.TransactionNo, err)
}

func (c *Consumer) handlePayoutDisburse(ctx context.Context, task *asynq.Task) error {
	payload, err := queue.ParseTransactionPayload(task)
	if err != nil {
		logger.Warnw("worker_payout_disburse_invalid_payload", "error", err)
		return skipRetry(err)
	}
	err = c.PayoutService.DisbursePayout(ctx, payload.TransactionNo)
	return c.settle("payout_disburse", payload.TransactionNo, err)
}

// settle 统一处理任务结果，业务上不可重试的错误不再重试
func (c *Consumer) settle(task, transactionNo string, err error) error {
	if err == nil {
		return nil
	}
	switch {
	case errors.Is(err, service.ErrTransactionNotFound):
		logger.Debugw("worker_task_skip_not_found", "task", task, "transaction_no", transactionNo)
		return nil
	case errors.Is(err, service.ErrInvalidStateTransition):
		logger.Debugw("worker_task_skip_terminal", "task", task, "transaction_no", transactionNo, "error", err)
		return nil
	case service.IsFatal(err):
		logger.Errorw("worker_task_invariant_violation", "task", task, "transaction_no", transactionNo, "error", err)
		return skipRetry(err)
	default:
		logger.Warnw("worker_task_failed", "task", task, "transaction_no", transactionNo, "error", err)
		return err
	}
}

func skipRetry(err error) error {
	return errors.Join(err, asynq.SkipRetry)
}
