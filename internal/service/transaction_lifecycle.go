package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/fanzfinance/internal/constants"
	"github.com/fanzfinance/internal/logger"
	"github.com/fanzfinance/internal/models"
	"github.com/fanzfinance/internal/payment"

	"gorm.io/gorm"
)

// ErrSettlementNotDue 结算时间未到
var ErrSettlementNotDue = errors.New("settlement not due")

const sweepBatchSize = 100

// AuthorizePayment 调用网关授权，这是支付流程中唯一等待外部的步骤，不在数据库事务内执行
func (s *TransactionService) AuthorizePayment(ctx context.Context, transactionNo string) error {
	log := logger.FromContext(ctx)
	txn, err := s.txnRepo.WithTx(s.db.WithContext(ctx)).GetByNo(transactionNo)
	if err != nil {
		return err
	}
	if txn == nil {
		return ErrTransactionNotFound
	}
	if txn.Kind != constants.TransactionKindPayment || txn.Status != constants.TransactionStatusProcessing {
		log.Debugw("payment_authorize_skip", "transaction_no", transactionNo, "status", txn.Status)
		return nil
	}
	if s.executor == nil {
		return payment.ErrExecutorUnavailable
	}

	remaining := txn.CreatedAt.Add(s.cfg.AuthorizationTimeout()).Sub(s.clock.now())
	if remaining <= 0 {
		return s.failIgnoringRace(ctx, transactionNo, CodeGatewayTimeout, "authorization window elapsed")
	}
	execCtx, cancel := context.WithTimeout(ctx, remaining)
	defer cancel()

	gw, _ := s.registry.Get(txn.GatewayID)
	started := time.Now()
	result, err := s.executor.Execute(execCtx, payment.ExecuteRequest{
		TransactionNo: txn.TransactionNo,
		GatewayID:     txn.GatewayID,
		Amount:        txn.OriginalAmount,
		Currency:      txn.Currency,
		PaymentMethod: txn.PaymentMethod,
		Reference:     txn.Reference,
		Latency:       time.Duration(gw.AuthorizationMS) * time.Millisecond,
	})
	elapsed := time.Since(started).Seconds()

	switch {
	case err != nil && ctx.Err() != nil:
		// 调用方取消，交易保持 processing，由超时任务收尾
		return ctx.Err()
	case err != nil && errors.Is(execCtx.Err(), context.DeadlineExceeded):
		authorizationSeconds.WithLabelValues(txn.GatewayID, "timeout").Observe(elapsed)
		log.Warnw("payment_authorize_timeout", "transaction_no", transactionNo, "gateway_id", txn.GatewayID)
		return s.failIgnoringRace(ctx, transactionNo, CodeGatewayTimeout, "gateway did not respond in time")
	case err != nil:
		authorizationSeconds.WithLabelValues(txn.GatewayID, "error").Observe(elapsed)
		log.Warnw("payment_authorize_error", "transaction_no", transactionNo, "gateway_id", txn.GatewayID, "error", err)
		return s.failIgnoringRace(ctx, transactionNo, CodeGatewayDeclined, err.Error())
	case result == nil || !result.Approved:
		authorizationSeconds.WithLabelValues(txn.GatewayID, "declined").Observe(elapsed)
		reason := "declined"
		if result != nil && result.DeclineReason != "" {
			reason = result.DeclineReason
		}
		log.Infow("payment_authorize_declined", "transaction_no", transactionNo, "gateway_id", txn.GatewayID, "reason", reason)
		return s.failIgnoringRace(ctx, transactionNo, CodeGatewayDeclined, reason)
	}

	authorizationSeconds.WithLabelValues(txn.GatewayID, "approved").Observe(elapsed)
	if err := s.CompletePayment(ctx, transactionNo, result.GatewayTxnID); err != nil {
		if errors.Is(err, ErrInvalidStateTransition) {
			log.Infow("payment_authorize_late_approval", "transaction_no", transactionNo, "gateway_txn_id", result.GatewayTxnID)
			return nil
		}
		return err
	}
	return nil
}

// CompletePayment 授权成功：processing -> completed，净额计入收款方待结算余额
func (s *TransactionService) CompletePayment(ctx context.Context, transactionNo, gatewayTxnID string) error {
	now := s.clock.now()
	var completed models.Transaction
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		txn, err := s.loadForUpdate(tx, transactionNo, constants.TransactionKindPayment)
		if err != nil {
			return err
		}
		settleAt := now.Add(s.settlementDelay(txn.GatewayID))
		if err := s.transition(tx, txn, constants.TransactionStatusCompleted, map[string]interface{}{
			"gateway_txn_id":    gatewayTxnID,
			"authorized_at":     now,
			"completed_at":      now,
			"estimated_arrival": settleAt,
		}); err != nil {
			return err
		}
		if err := s.accounts.CreditTx(tx, txn.PayeeID, constants.BucketPending, txn.NetAmount); err != nil {
			return err
		}
		if err := writeOutboxEvent(tx, s.outboxRepo, constants.EventPaymentCompleted, txn, now); err != nil {
			return err
		}
		completed = *txn
		return nil
	})
	if err != nil {
		return err
	}
	logger.FromContext(ctx).Infow("payment_completed",
		"transaction_no", transactionNo,
		"payee_id", completed.PayeeID,
		"net", completed.NetAmount.String(),
	)
	if s.dispatcher != nil && completed.EstimatedArrival != nil {
		if err := s.dispatcher.EnqueueSettlementRelease(transactionNo, completed.EstimatedArrival.Sub(now)); err != nil {
			logger.FromContext(ctx).Warnw("settlement_release_enqueue_failed", "transaction_no", transactionNo, "error", err)
		}
	}
	return nil
}

// FailPayment 授权失败：processing -> failed，写入冲正分录并释放网关额度
func (s *TransactionService) FailPayment(ctx context.Context, transactionNo string, code ErrorCode, detail string) error {
	reason := string(code)
	if detail != "" {
		reason = fmt.Sprintf("%s: %s", code, detail)
	}
	now := s.clock.now()
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		txn, err := s.loadForUpdate(tx, transactionNo, constants.TransactionKindPayment)
		if err != nil {
			return err
		}
		if err := s.transition(tx, txn, constants.TransactionStatusFailed, map[string]interface{}{
			"failure_reason": truncate(reason, 255),
			"failed_at":      now,
		}); err != nil {
			return err
		}
		if err := s.compensate(tx, txn); err != nil {
			return err
		}
		return writeOutboxEvent(tx, s.outboxRepo, constants.EventPaymentFailed, txn, now)
	})
	if err != nil {
		return err
	}
	logger.FromContext(ctx).Infow("payment_failed", "transaction_no", transactionNo, "reason", reason)
	return nil
}

// ExpireAuthorization 授权超时检查，到期仍在 processing 时置为失败，不自动重试
func (s *TransactionService) ExpireAuthorization(ctx context.Context, transactionNo string) error {
	txn, err := s.txnRepo.WithTx(s.db.WithContext(ctx)).GetByNo(transactionNo)
	if err != nil {
		return err
	}
	if txn == nil {
		return ErrTransactionNotFound
	}
	if txn.Kind != constants.TransactionKindPayment || txn.Status != constants.TransactionStatusProcessing {
		return nil
	}
	if s.clock.now().Before(txn.CreatedAt.Add(s.cfg.AuthorizationTimeout())) {
		return nil
	}
	logger.FromContext(ctx).Warnw("payment_authorization_expired", "transaction_no", transactionNo)
	return s.failIgnoringRace(ctx, transactionNo, CodeGatewayTimeout, "authorization timed out")
}

// ExpireStaleAuthorizations 批量处理超时未授权的支付，返回处理数量
func (s *TransactionService) ExpireStaleAuthorizations(ctx context.Context) (int, error) {
	before := s.clock.now().Add(-s.cfg.AuthorizationTimeout())
	stale, err := s.txnRepo.WithTx(s.db.WithContext(ctx)).ListStaleProcessing(constants.TransactionKindPayment, before, sweepBatchSize)
	if err != nil {
		return 0, err
	}
	expired := 0
	for _, txn := range stale {
		if err := s.ExpireAuthorization(ctx, txn.TransactionNo); err != nil {
			logger.FromContext(ctx).Warnw("payment_authorization_expire_failed", "transaction_no", txn.TransactionNo, "error", err)
			continue
		}
		expired++
	}
	return expired, nil
}

// CancelTransaction 外部取消：pending/processing -> cancelled，写入冲正分录
func (s *TransactionService) CancelTransaction(ctx context.Context, transactionNo string) (*models.Transaction, error) {
	now := s.clock.now()
	var cancelled models.Transaction
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		txn, err := s.loadForUpdate(tx, transactionNo, constants.TransactionKindPayment)
		if err != nil {
			return err
		}
		if err := s.transition(tx, txn, constants.TransactionStatusCancelled, map[string]interface{}{
			"cancelled_at": now,
		}); err != nil {
			return err
		}
		if err := s.compensate(tx, txn); err != nil {
			return err
		}
		if err := writeOutboxEvent(tx, s.outboxRepo, constants.EventPaymentCancelled, txn, now); err != nil {
			return err
		}
		cancelled = *txn
		return nil
	})
	if err != nil {
		return nil, err
	}
	logger.FromContext(ctx).Infow("payment_cancelled", "transaction_no", transactionNo)
	return &cancelled, nil
}

// DisputeTransaction 已完成支付进入争议，不改动分录
func (s *TransactionService) DisputeTransaction(ctx context.Context, transactionNo, reason string) (*models.Transaction, error) {
	now := s.clock.now()
	var disputed models.Transaction
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		txn, err := s.loadForUpdate(tx, transactionNo, constants.TransactionKindPayment)
		if err != nil {
			return err
		}
		flags := append(models.StringArray{}, txn.ComplianceFlags...)
		if !flags.Contains(constants.ComplianceFlagDisputed) {
			flags = append(flags, constants.ComplianceFlagDisputed)
		}
		metadata := models.JSON{}
		for key, value := range txn.Metadata {
			metadata[key] = value
		}
		if reason != "" {
			metadata["dispute_reason"] = reason
		}
		if err := s.transition(tx, txn, constants.TransactionStatusDisputed, map[string]interface{}{
			"disputed_at":      now,
			"compliance_flags": flags,
			"metadata":         metadata,
		}); err != nil {
			return err
		}
		if err := writeOutboxEvent(tx, s.outboxRepo, constants.EventPaymentDisputed, txn, now); err != nil {
			return err
		}
		disputed = *txn
		return nil
	})
	if err != nil {
		return nil, err
	}
	logger.FromContext(ctx).Infow("payment_disputed", "transaction_no", transactionNo, "reason", reason)
	return &disputed, nil
}

// ReleaseSettlement 结算到期：收款方 pending -> available，重复调用无副作用
func (s *TransactionService) ReleaseSettlement(ctx context.Context, transactionNo string) error {
	now := s.clock.now()
	released := false
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		txnRepo := s.txnRepo.WithTx(tx)
		txn, err := txnRepo.GetByNo(transactionNo)
		if err != nil {
			return err
		}
		if txn == nil || txn.Kind != constants.TransactionKindPayment {
			return ErrTransactionNotFound
		}
		if txn.SettledAt != nil {
			return nil
		}
		if txn.Status != constants.TransactionStatusCompleted {
			return fmt.Errorf("%w: cannot settle %s transaction", ErrInvalidStateTransition, txn.Status)
		}
		if txn.EstimatedArrival != nil && now.Before(*txn.EstimatedArrival) {
			return ErrSettlementNotDue
		}
		refund, err := txnRepo.GetByParentNo(transactionNo, constants.TransactionKindRefund)
		if err != nil {
			return err
		}
		marked, err := txnRepo.MarkSettled(transactionNo, now)
		if err != nil {
			return err
		}
		if !marked || refund != nil {
			// 退款已从 pending 扣回净额
			return nil
		}
		released = true
		return s.accounts.MoveBucketTx(tx, txn.PayeeID, txn.NetAmount, constants.BucketPending, constants.BucketAvailable)
	})
	if err != nil {
		return err
	}
	if released {
		logger.FromContext(ctx).Infow("settlement_released", "transaction_no", transactionNo)
	}
	return nil
}

// ReleaseDueSettlements 批量释放到期结算，作为延迟任务丢失时的兜底
func (s *TransactionService) ReleaseDueSettlements(ctx context.Context) (int, error) {
	due, err := s.txnRepo.WithTx(s.db.WithContext(ctx)).ListDueSettlements(s.clock.now(), sweepBatchSize)
	if err != nil {
		return 0, err
	}
	released := 0
	for _, txn := range due {
		if err := s.ReleaseSettlement(ctx, txn.TransactionNo); err != nil {
			logger.FromContext(ctx).Warnw("settlement_release_failed", "transaction_no", txn.TransactionNo, "error", err)
			continue
		}
		released++
	}
	return released, nil
}

// compensate 为已入账的支付写入冲正分录并释放当日网关额度
func (s *TransactionService) compensate(tx *gorm.DB, txn *models.Transaction) error {
	ledgerRepo := s.ledgerRepo.WithTx(tx)
	entries, err := ledgerRepo.ListByTransactionNo(txn.TransactionNo)
	if err != nil {
		return err
	}
	if len(entries) > 0 {
		reversed, err := s.engine.Reverse(txn, entries)
		if err != nil {
			return err
		}
		if err := postEntries(tx, s.ledgerRepo, reversed, txn.Kind, true); err != nil {
			return err
		}
	}
	gw, ok := s.registry.Get(txn.GatewayID)
	if ok && gw.DailyLimit.IsPositive() {
		return s.gatewayRepo.WithTx(tx).ReleaseUsage(txn.GatewayID, usageDay(txn.CreatedAt), txn.OriginalAmount)
	}
	return nil
}

func (s *TransactionService) loadForUpdate(tx *gorm.DB, transactionNo, kind string) (*models.Transaction, error) {
	txn, err := s.txnRepo.WithTx(tx).GetByNo(transactionNo)
	if err != nil {
		return nil, err
	}
	if txn == nil || (kind != "" && txn.Kind != kind) {
		return nil, ErrTransactionNotFound
	}
	return txn, nil
}

// failIgnoringRace 失败处理时交易已被其他流程终结视为成功
func (s *TransactionService) failIgnoringRace(ctx context.Context, transactionNo string, code ErrorCode, detail string) error {
	err := s.FailPayment(ctx, transactionNo, code, detail)
	if errors.Is(err, ErrInvalidStateTransition) {
		logger.FromContext(ctx).Debugw("payment_fail_skip_terminal", "transaction_no", transactionNo, "code", code)
		return nil
	}
	return err
}

func (s *TransactionService) settlementDelay(gatewayID string) time.Duration {
	if gw, ok := s.registry.Get(gatewayID); ok && gw.SettlementHours > 0 {
		return time.Duration(gw.SettlementHours) * time.Hour
	}
	return 0
}

func truncate(value string, limit int) string {
	if len(value) <= limit {
		return value
	}
	return value[:limit]
}
