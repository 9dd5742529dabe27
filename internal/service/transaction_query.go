package service

import (
	"context"

	"github.com/fanzfinance/internal/models"
	"github.com/fanzfinance/internal/repository"
)

// GetTransaction 按编号查询交易
func (s *TransactionService) GetTransaction(ctx context.Context, transactionNo string) (*models.Transaction, error) {
	txn, err := s.txnRepo.WithTx(s.db.WithContext(ctx)).GetByNo(transactionNo)
	if err != nil {
		return nil, err
	}
	if txn == nil {
		return nil, ErrTransactionNotFound
	}
	return txn, nil
}

// ListLedgerEntries 查询交易的全部分录，含冲正分录
func (s *TransactionService) ListLedgerEntries(ctx context.Context, transactionNo string) ([]models.LedgerEntry, error) {
	if _, err := s.GetTransaction(ctx, transactionNo); err != nil {
		return nil, err
	}
	return s.ledgerRepo.WithTx(s.db.WithContext(ctx)).ListByTransactionNo(transactionNo)
}

// ListTransactions 分页查询交易
func (s *TransactionService) ListTransactions(ctx context.Context, filter repository.TransactionListFilter) ([]models.Transaction, int64, error) {
	return s.txnRepo.WithTx(s.db.WithContext(ctx)).List(filter)
}

// ListGateways 返回网关目录及当日已用额度
func (s *TransactionService) ListGateways(ctx context.Context) ([]GatewayView, error) {
	usage, err := s.gatewayRepo.WithTx(s.db.WithContext(ctx)).UsageByDay(usageDay(s.clock.now()))
	if err != nil {
		return nil, err
	}
	all := s.registry.All()
	views := make([]GatewayView, 0, len(all))
	for _, gw := range all {
		views = append(views, GatewayView{PaymentGateway: gw, UsedToday: usage[gw.GatewayID]})
	}
	return views, nil
}

// GatewayView 网关目录展示
type GatewayView struct {
	models.PaymentGateway
	UsedToday models.Money `json:"used_today"`
}
