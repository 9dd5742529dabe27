package repository

import (
	"time"

	"github.com/fanzfinance/internal/constants"
	"github.com/fanzfinance/internal/models"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// SummaryRepository 资金汇总聚合查询接口
// 说明：仅聚合统计数据，不承载业务规则。
type SummaryRepository interface {
	GetOverview(since time.Time) (FinanceSummaryRow, error)
}

// GormSummaryRepository GORM 资金汇总实现
type GormSummaryRepository struct {
	db *gorm.DB
}

// NewSummaryRepository 创建资金汇总仓储
func NewSummaryRepository(db *gorm.DB) *GormSummaryRepository {
	return &GormSummaryRepository{db: db}
}

// volumeKinds 计入交易量的交易类型，手续费子交易不重复计入
func volumeKinds() []string {
	return []string{
		constants.TransactionKindPayment,
		constants.TransactionKindPayout,
		constants.TransactionKindRefund,
		constants.TransactionKindChargeback,
		constants.TransactionKindCommission,
	}
}

// GetOverview 获取资金总览
func (r *GormSummaryRepository) GetOverview(since time.Time) (FinanceSummaryRow, error) {
	result := FinanceSummaryRow{}
	completed := func(kind string) *gorm.DB {
		return r.db.Model(&models.Transaction{}).
			Where("kind = ? AND status = ?", kind, constants.TransactionStatusCompleted)
	}

	var paymentFees, refundedFees, feeRevenue, payouts, volume float64
	if err := completed(constants.TransactionKindPayment).
		Select("COALESCE(SUM(fee_amount), 0)").
		Scan(&paymentFees).Error; err != nil {
		return result, err
	}
	if err := completed(constants.TransactionKindRefund).
		Select("COALESCE(SUM(fee_amount), 0)").
		Scan(&refundedFees).Error; err != nil {
		return result, err
	}
	failedPayouts := r.db.Model(&models.Transaction{}).
		Select("transaction_no").
		Where("kind = ? AND status = ?", constants.TransactionKindPayout, constants.TransactionStatusFailed)
	if err := completed(constants.TransactionKindFee).
		Where("parent_no NOT IN (?)", failedPayouts).
		Select("COALESCE(SUM(original_amount), 0)").
		Scan(&feeRevenue).Error; err != nil {
		return result, err
	}
	if err := completed(constants.TransactionKindPayout).
		Select("COALESCE(SUM(original_amount), 0)").
		Scan(&payouts).Error; err != nil {
		return result, err
	}
	pending, err := NewAccountRepository(r.db).SumBucket(constants.BucketPending)
	if err != nil {
		return result, err
	}
	if err := r.db.Model(&models.Transaction{}).
		Where("status = ? AND kind IN ? AND completed_at IS NOT NULL AND completed_at > ?",
			constants.TransactionStatusCompleted, volumeKinds(), since).
		Select("COALESCE(SUM(original_amount), 0)").
		Scan(&volume).Error; err != nil {
		return result, err
	}
	activeGateways, err := NewGatewayRepository(r.db).CountActive()
	if err != nil {
		return result, err
	}
	result.ActiveGateways = activeGateways

	result.PaymentFees = moneyFromFloat(paymentFees)
	result.RefundedFees = moneyFromFloat(refundedFees)
	result.FeeRevenue = moneyFromFloat(feeRevenue)
	result.CompletedPayout = moneyFromFloat(payouts)
	result.PendingBalance = pending
	result.Volume24h = moneyFromFloat(volume)
	return result, nil
}

func moneyFromFloat(value float64) models.Money {
	return models.NewMoneyFromDecimal(decimal.NewFromFloat(value))
}
