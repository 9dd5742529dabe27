package service

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/fanzfinance/internal/logger"
)

// TaskDispatcher 异步任务投递接口，队列启用时由 queue.Client 实现
type TaskDispatcher interface {
	EnqueuePaymentAuthorize(transactionNo string) error
	EnqueuePaymentAuthTimeout(transactionNo string, delay time.Duration) error
	EnqueueSettlementRelease(transactionNo string, delay time.Duration) error
	EnqueuePayoutDisburse(transactionNo string) error
}

// ErrDispatcherStopped 进程内调度器已停止
var ErrDispatcherStopped = errors.New("inline dispatcher stopped")

// InlineDispatcher 队列未启用时在进程内执行同样的任务
type InlineDispatcher struct {
	mu      sync.Mutex
	txns    *TransactionService
	payouts *PayoutService
	timers  map[*time.Timer]struct{}
	wg      sync.WaitGroup
	ctx     context.Context
	cancel  context.CancelFunc
	stopped bool
}

// NewInlineDispatcher 创建进程内调度器，需要 Bind 后使用
func NewInlineDispatcher() *InlineDispatcher {
	ctx, cancel := context.WithCancel(context.Background())
	return &InlineDispatcher{
		timers: make(map[*time.Timer]struct{}),
		ctx:    ctx,
		cancel: cancel,
	}
}

// Bind 绑定任务处理服务
func (d *InlineDispatcher) Bind(txns *TransactionService, payouts *PayoutService) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.txns = txns
	d.payouts = payouts
}

// EnqueuePaymentAuthorize 异步发起网关授权
func (d *InlineDispatcher) EnqueuePaymentAuthorize(transactionNo string) error {
	return d.schedule("payment_authorize", transactionNo, 0, func(ctx context.Context) error {
		return d.txns.AuthorizePayment(ctx, transactionNo)
	})
}

// EnqueuePaymentAuthTimeout 延迟检查授权超时
func (d *InlineDispatcher) EnqueuePaymentAuthTimeout(transactionNo string, delay time.Duration) error {
	return d.schedule("payment_auth_timeout", transactionNo, delay, func(ctx context.Context) error {
		return d.txns.ExpireAuthorization(ctx, transactionNo)
	})
}

// EnqueueSettlementRelease 延迟释放结算资金
func (d *InlineDispatcher) EnqueueSettlementRelease(transactionNo string, delay time.Duration) error {
	return d.schedule("settlement_release", transactionNo, delay, func(ctx context.Context) error {
		return d.txns.ReleaseSettlement(ctx, transactionNo)
	})
}

// EnqueuePayoutDisburse 异步执行提现打款
func (d *InlineDispatcher) EnqueuePayoutDisburse(transactionNo string) error {
	return d.schedule("payout_disburse", transactionNo, 0, func(ctx context.Context) error {
		return d.payouts.DisbursePayout(ctx, transactionNo)
	})
}

// Stop 取消未触发的定时任务并等待执行中的任务结束
func (d *InlineDispatcher) Stop() {
	d.mu.Lock()
	if d.stopped {
		d.mu.Unlock()
		return
	}
	d.stopped = true
	for timer := range d.timers {
		if timer.Stop() {
			d.wg.Done()
		}
	}
	d.timers = map[*time.Timer]struct{}{}
	d.mu.Unlock()
	d.cancel()
	d.wg.Wait()
}

func (d *InlineDispatcher) schedule(task, transactionNo string, delay time.Duration, fn func(ctx context.Context) error) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.stopped {
		return ErrDispatcherStopped
	}
	if d.txns == nil || d.payouts == nil {
		return errors.New("inline dispatcher not bound")
	}
	run := func() {
		defer d.wg.Done()
		if err := fn(d.ctx); err != nil && !errors.Is(err, context.Canceled) {
			logger.Warnw("inline_task_failed", "task", task, "transaction_no", transactionNo, "error", err)
		}
	}
	d.wg.Add(1)
	if delay <= 0 {
		go run()
		return nil
	}
	var timer *time.Timer
	timer = time.AfterFunc(delay, func() {
		d.mu.Lock()
		delete(d.timers, timer)
		d.mu.Unlock()
		run()
	})
	d.timers[timer] = struct{}{}
	return nil
}
