package service

import (
	"time"

	"github.com/fanzfinance/internal/constants"
	"github.com/fanzfinance/internal/events"
	"github.com/fanzfinance/internal/models"
	"github.com/fanzfinance/internal/repository"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

const eventIDPrefix = "evt_"

// writeOutboxEvent 在业务事务内写入交易事件
func writeOutboxEvent(tx *gorm.DB, repo repository.OutboxRepository, eventType string, txn *models.Transaction, at time.Time) error {
	payload, err := events.Snapshot(txn)
	if err != nil {
		return err
	}
	return repo.WithTx(tx).Create(&models.OutboxEvent{
		EventID:       eventIDPrefix + uuid.NewString(),
		Type:          eventType,
		TransactionNo: txn.TransactionNo,
		Payload:       payload,
		CreatedAt:     at,
	})
}

// postEntries 生成、校验并写入分录
func postEntries(tx *gorm.DB, repo repository.LedgerRepository, entries []models.LedgerEntry, kind string, reversal bool) error {
	if len(entries) == 0 {
		return nil
	}
	if err := repo.WithTx(tx).CreateEntries(entries); err != nil {
		return err
	}
	observeLedger(kind, reversal, len(entries))
	return nil
}

func usageDay(at time.Time) string {
	return at.UTC().Format("2006-01-02")
}

func newTransactionNo(prefix string) string {
	if prefix == "" {
		prefix = constants.TransactionNoPrefix
	}
	return prefix + uuid.NewString()
}
