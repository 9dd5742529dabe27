package repository

import (
	"time"

	"github.com/fanzfinance/internal/models"
)

// TransactionListFilter 查询交易列表的过滤条件
type TransactionListFilter struct {
	Page        int
	PageSize    int
	Kind        string
	Status      string
	PayerID     string
	PayeeID     string
	GatewayID   string
	CreatedFrom *time.Time
	CreatedTo   *time.Time
}

// PayerHistoryRow 付款方风控历史统计
type PayerHistoryRow struct {
	RecentPayments int64
	RecentFailures int64
	Chargebacks    int64
}

// FinanceSummaryRow 资金汇总原始统计结果
type FinanceSummaryRow struct {
	PaymentFees     models.Money
	RefundedFees    models.Money
	FeeRevenue      models.Money
	CompletedPayout models.Money
	PendingBalance  models.Money
	Volume24h       models.Money
	ActiveGateways  int64
}
