package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/fanzfinance/internal/constants"
	"github.com/fanzfinance/internal/logger"
	"github.com/fanzfinance/internal/models"

	"gorm.io/gorm"
)

// ReconcileResult 对账结果
type ReconcileResult struct {
	TransactionNo string               `json:"transaction_no"`
	Marked        int64                `json:"marked"`
	Entries       []models.LedgerEntry `json:"entries"`
}

// ReconcileEntries 标记交易分录已与处理方对账，entryNos 为空时标记全部分录
// 处理中的交易不可对账；已对账分录重复提交不计入 Marked
func (s *TransactionService) ReconcileEntries(ctx context.Context, transactionNo string, entryNos []string) (*ReconcileResult, error) {
	result := &ReconcileResult{TransactionNo: strings.TrimSpace(transactionNo)}
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		txn, err := s.txnRepo.WithTx(tx).GetByNo(result.TransactionNo)
		if err != nil {
			return err
		}
		if txn == nil {
			return ErrTransactionNotFound
		}
		if txn.Status == constants.TransactionStatusPending || txn.Status == constants.TransactionStatusProcessing {
			return fmt.Errorf("%w: cannot reconcile %s transaction", ErrInvalidStateTransition, txn.Status)
		}

		ledgerRepo := s.ledgerRepo.WithTx(tx)
		entries, err := ledgerRepo.ListByTransactionNo(txn.TransactionNo)
		if err != nil {
			return err
		}
		targets, err := selectEntryNos(entries, entryNos)
		if err != nil {
			return err
		}
		marked, err := ledgerRepo.MarkReconciled(targets)
		if err != nil {
			return err
		}
		result.Marked = marked
		result.Entries, err = ledgerRepo.ListByTransactionNo(txn.TransactionNo)
		return err
	})
	if err != nil {
		return nil, err
	}
	logger.FromContext(ctx).Infow("ledger_entries_reconciled",
		"transaction_no", result.TransactionNo,
		"marked", result.Marked,
	)
	return result, nil
}

// ListLedgerEntriesByReference 按引用查询分录，用于与处理方对账单核对
func (s *TransactionService) ListLedgerEntriesByReference(ctx context.Context, reference string) ([]models.LedgerEntry, error) {
	reference = strings.TrimSpace(reference)
	if reference == "" {
		return nil, fmt.Errorf("%w: reference is required", ErrInvalidRequest)
	}
	return s.ledgerRepo.WithTx(s.db.WithContext(ctx)).ListByReference(reference)
}

func selectEntryNos(entries []models.LedgerEntry, requested []string) ([]string, error) {
	known := make(map[string]struct{}, len(entries))
	all := make([]string, 0, len(entries))
	for _, entry := range entries {
		known[entry.EntryNo] = struct{}{}
		all = append(all, entry.EntryNo)
	}
	if len(requested) == 0 {
		return all, nil
	}
	selected := make([]string, 0, len(requested))
	for _, entryNo := range requested {
		entryNo = strings.TrimSpace(entryNo)
		if _, ok := known[entryNo]; !ok {
			return nil, fmt.Errorf("%w: entry %q does not belong to the transaction", ErrInvalidRequest, entryNo)
		}
		selected = append(selected, entryNo)
	}
	return selected, nil
}
