package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/fanzfinance/internal/constants"
	"github.com/fanzfinance/internal/gateway"
	"github.com/fanzfinance/internal/logger"
	"github.com/fanzfinance/internal/models"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// RefundPayment 全额退款已完成的支付，生成 refund 交易与镜像分录
// 未结算时从收款方 pending 扣回净额，已结算时从 available 扣回
func (s *TransactionService) RefundPayment(ctx context.Context, transactionNo, reason string) (*models.Transaction, error) {
	now := s.clock.now()
	var refund *models.Transaction
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		txnRepo := s.txnRepo.WithTx(tx)
		original, err := s.loadForUpdate(tx, transactionNo, constants.TransactionKindPayment)
		if err != nil {
			return err
		}
		if original.Status != constants.TransactionStatusCompleted {
			return fmt.Errorf("%w: cannot refund %s payment", ErrInvalidStateTransition, original.Status)
		}
		gw, ok := s.registry.Get(original.GatewayID)
		if !ok || !gateway.HasFeature(gw, constants.GatewayFeatureRefunds) {
			return ErrRefundNotSupported
		}
		existing, err := txnRepo.GetByParentNo(original.TransactionNo, constants.TransactionKindRefund)
		if err != nil {
			return err
		}
		if existing != nil {
			return fmt.Errorf("%w: payment already refunded by %s", ErrInvalidStateTransition, existing.TransactionNo)
		}

		bucket := constants.BucketAvailable
		if original.SettledAt == nil {
			bucket = constants.BucketPending
		}
		if err := s.accounts.DebitTx(tx, original.PayeeID, bucket, original.NetAmount); err != nil {
			return err
		}

		refund = &models.Transaction{
			TransactionNo:  newTransactionNo(constants.TransactionNoPrefix),
			Kind:           constants.TransactionKindRefund,
			Status:         constants.TransactionStatusCompleted,
			OriginalAmount: original.OriginalAmount,
			NetAmount:      original.NetAmount,
			FeeAmount:      original.FeeAmount,
			Currency:       original.Currency,
			PayerID:        original.PayerID,
			PayeeID:        original.PayeeID,
			PlatformID:     original.PlatformID,
			GatewayID:      original.GatewayID,
			Reference:      constants.TransactionRefPrefix + uuid.NewString(),
			ParentNo:       original.TransactionNo,
			Metadata: models.JSON{
				"refund_reason":  strings.TrimSpace(reason),
				"refunded_from":  bucket,
				"parent_gateway": original.GatewayTxnID,
			},
			PaymentMethod: original.PaymentMethod,
			Country:       original.Country,
			CreatedAt:     now,
			UpdatedAt:     now,
			CompletedAt:   &now,
			Version:       1,
		}
		if err := txnRepo.Create(refund); err != nil {
			return err
		}
		entries, err := s.engine.Post(refund)
		if err != nil {
			return err
		}
		if err := postEntries(tx, s.ledgerRepo, entries, refund.Kind, false); err != nil {
			return err
		}
		return writeOutboxEvent(tx, s.outboxRepo, constants.EventRefundCompleted, refund, now)
	})
	if err != nil {
		if IsFatal(err) {
			logger.FromContext(ctx).Errorw("payment_refund_unbalanced_posting", "transaction_no", transactionNo, "error", err)
		}
		return nil, err
	}
	logger.FromContext(ctx).Infow("payment_refunded",
		"transaction_no", transactionNo,
		"refund_no", refund.TransactionNo,
		"amount", refund.OriginalAmount.String(),
	)
	return refund, nil
}
