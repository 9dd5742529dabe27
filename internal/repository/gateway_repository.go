package repository

import (
	"fmt"
	"strings"
	"time"

	"github.com/fanzfinance/internal/constants"
	"github.com/fanzfinance/internal/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// GatewayRepository 网关目录与每日额度数据访问接口
type GatewayRepository interface {
	SyncCatalog(gateways []models.PaymentGateway) error
	List() ([]models.PaymentGateway, error)
	CountActive() (int64, error)
	UsageByDay(day string) (map[string]models.Money, error)
	ReserveUsage(gatewayID, day string, amount, limit models.Money) (bool, error)
	ReleaseUsage(gatewayID, day string, amount models.Money) error
	WithTx(tx *gorm.DB) *GormGatewayRepository
}

// GormGatewayRepository GORM 网关仓储实现
type GormGatewayRepository struct {
	db *gorm.DB
}

// NewGatewayRepository 创建网关仓储
func NewGatewayRepository(db *gorm.DB) *GormGatewayRepository {
	return &GormGatewayRepository{db: db}
}

// WithTx 绑定事务
func (r *GormGatewayRepository) WithTx(tx *gorm.DB) *GormGatewayRepository {
	if tx == nil {
		return r
	}
	return &GormGatewayRepository{db: tx}
}

// SyncCatalog 按 gateway_id 同步网关目录
func (r *GormGatewayRepository) SyncCatalog(gateways []models.PaymentGateway) error {
	if len(gateways) == 0 {
		return nil
	}
	return r.db.Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "gateway_id"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"name", "type", "status", "supported_currencies", "supported_countries",
			"fee_percent", "fee_fixed", "fee_currency", "min_amount", "max_amount",
			"daily_limit", "authorization_ms", "settlement_hours", "features", "sort_order", "updated_at",
		}),
	}).Create(&gateways).Error
}

// List 按注册顺序查询网关目录
func (r *GormGatewayRepository) List() ([]models.PaymentGateway, error) {
	var gateways []models.PaymentGateway
	if err := r.db.Order("sort_order asc, id asc").Find(&gateways).Error; err != nil {
		return nil, err
	}
	return gateways, nil
}

// CountActive 统计启用中的网关
func (r *GormGatewayRepository) CountActive() (int64, error) {
	var total int64
	if err := r.db.Model(&models.PaymentGateway{}).
		Where("status = ?", constants.GatewayStatusActive).
		Count(&total).Error; err != nil {
		return 0, err
	}
	return total, nil
}

// UsageByDay 查询指定日期的各网关已用额度
func (r *GormGatewayRepository) UsageByDay(day string) (map[string]models.Money, error) {
	var rows []models.GatewayDailyUsage
	if err := r.db.Where("day = ?", strings.TrimSpace(day)).Find(&rows).Error; err != nil {
		return nil, err
	}
	usage := make(map[string]models.Money, len(rows))
	for _, row := range rows {
		usage[row.GatewayID] = row.UsedAmount
	}
	return usage, nil
}

// ReserveUsage 占用每日额度，占用后超出限额时不命中
func (r *GormGatewayRepository) ReserveUsage(gatewayID, day string, amount, limit models.Money) (bool, error) {
	if limit.Sub(amount).IsNegative() {
		return false, nil
	}
	if err := r.ensureUsageRow(gatewayID, day); err != nil {
		return false, err
	}
	row, err := r.lockUsageRow(gatewayID, day)
	if err != nil || row == nil {
		return false, err
	}
	used := row.UsedAmount.Add(amount)
	if used.GreaterThan(limit.Decimal) {
		return false, nil
	}
	return true, r.saveUsage(row, used)
}

// ReleaseUsage 释放已占用额度，已用额度不足时不变更
func (r *GormGatewayRepository) ReleaseUsage(gatewayID, day string, amount models.Money) error {
	row, err := r.lockUsageRow(gatewayID, day)
	if err != nil || row == nil {
		return err
	}
	if row.UsedAmount.LessThan(amount.Decimal) {
		return nil
	}
	return r.saveUsage(row, row.UsedAmount.Sub(amount))
}

func (r *GormGatewayRepository) lockUsageRow(gatewayID, day string) (*models.GatewayDailyUsage, error) {
	var rows []models.GatewayDailyUsage
	if err := r.db.Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("gateway_id = ? AND day = ?", gatewayID, day).
		Limit(1).
		Find(&rows).Error; err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, nil
	}
	return &rows[0], nil
}

func (r *GormGatewayRepository) saveUsage(row *models.GatewayDailyUsage, used models.Money) error {
	result := r.db.Model(&models.GatewayDailyUsage{}).
		Where("id = ? AND version = ?", row.ID, row.Version).
		Updates(map[string]interface{}{
			"used_amount": used,
			"version":     row.Version + 1,
			"updated_at":  time.Now().UTC(),
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return fmt.Errorf("%w: gateway usage %s/%s", ErrVersionConflict, row.GatewayID, row.Day)
	}
	return nil
}

func (r *GormGatewayRepository) ensureUsageRow(gatewayID, day string) error {
	var count int64
	if err := r.db.Model(&models.GatewayDailyUsage{}).
		Where("gateway_id = ? AND day = ?", gatewayID, day).
		Count(&count).Error; err != nil {
		return err
	}
	if count > 0 {
		return nil
	}
	row := models.GatewayDailyUsage{GatewayID: gatewayID, Day: day, Version: 1}
	return r.db.Clauses(clause.OnConflict{DoNothing: true}).Create(&row).Error
}
