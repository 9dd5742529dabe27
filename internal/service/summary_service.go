package service

import (
	"context"
	"time"

	"github.com/fanzfinance/internal/cache"
	"github.com/fanzfinance/internal/logger"
	"github.com/fanzfinance/internal/models"
	"github.com/fanzfinance/internal/repository"

	"github.com/shopspring/decimal"
)

const summaryCacheKey = "finance:summary"

// processingFeeRate 处理费估算比例
var processingFeeRate = decimal.NewFromFloat(0.10)

// FinancialSummary 资金汇总
type FinancialSummary struct {
	TotalRevenue         models.Money `json:"total_revenue"`
	TotalPayouts         models.Money `json:"total_payouts"`
	PendingBalance       models.Money `json:"pending_balance"`
	ProcessingFees       models.Money `json:"processing_fees"`
	ActiveGateways       int64        `json:"active_gateways"`
	TransactionVolume24h models.Money `json:"transaction_volume_24h"`
	GeneratedAt          time.Time    `json:"generated_at"`
}

// SummaryService 资金汇总服务
type SummaryService struct {
	repo     repository.SummaryRepository
	cacheTTL time.Duration
	clock    Clock
}

// NewSummaryService 创建资金汇总服务，ttl 为 0 时不使用缓存
func NewSummaryService(repo repository.SummaryRepository, ttl time.Duration, clock Clock) *SummaryService {
	return &SummaryService{repo: repo, cacheTTL: ttl, clock: clock}
}

// GetFinancialSummary 获取资金汇总，缓存命中时可能滞后于最新状态
func (s *SummaryService) GetFinancialSummary(ctx context.Context) (*FinancialSummary, error) {
	log := logger.FromContext(ctx)
	if s.cacheTTL > 0 {
		var cached FinancialSummary
		hit, err := cache.GetJSON(ctx, summaryCacheKey, &cached)
		if err != nil {
			log.Warnw("finance_summary_cache_get_failed", "error", err)
		} else if hit {
			return &cached, nil
		}
	}

	now := s.clock.now()
	row, err := s.repo.GetOverview(now.Add(-24 * time.Hour))
	if err != nil {
		return nil, err
	}
	revenue := row.PaymentFees.Sub(row.RefundedFees).Add(row.FeeRevenue)
	summary := &FinancialSummary{
		TotalRevenue:         revenue,
		TotalPayouts:         row.CompletedPayout,
		PendingBalance:       row.PendingBalance,
		ProcessingFees:       models.NewMoneyFromDecimal(revenue.Mul(processingFeeRate)),
		ActiveGateways:       row.ActiveGateways,
		TransactionVolume24h: row.Volume24h,
		GeneratedAt:          now,
	}

	if s.cacheTTL > 0 {
		if err := cache.SetJSON(ctx, summaryCacheKey, summary, s.cacheTTL); err != nil {
			log.Warnw("finance_summary_cache_set_failed", "error", err)
		}
	}
	return summary, nil
}

// Invalidate 清除汇总缓存
func (s *SummaryService) Invalidate(ctx context.Context) error {
	return cache.Del(ctx, summaryCacheKey)
}
