package repository

import (
	"time"

	"github.com/fanzfinance/internal/models"

	"gorm.io/gorm"
)

// OutboxRepository 出站事件数据访问接口
type OutboxRepository interface {
	Create(event *models.OutboxEvent) error
	ListPending(maxAttempts, limit int) ([]models.OutboxEvent, error)
	MarkDispatched(id uint, at time.Time) error
	MarkFailed(id uint, reason string) error
	WithTx(tx *gorm.DB) *GormOutboxRepository
}

// GormOutboxRepository GORM 出站事件仓储实现
type GormOutboxRepository struct {
	db *gorm.DB
}

// NewOutboxRepository 创建出站事件仓储
func NewOutboxRepository(db *gorm.DB) *GormOutboxRepository {
	return &GormOutboxRepository{db: db}
}

// WithTx 绑定事务
func (r *GormOutboxRepository) WithTx(tx *gorm.DB) *GormOutboxRepository {
	if tx == nil {
		return r
	}
	return &GormOutboxRepository{db: tx}
}

// Create 写入出站事件
func (r *GormOutboxRepository) Create(event *models.OutboxEvent) error {
	return r.db.Create(event).Error
}

// ListPending 按写入顺序查询未投递事件
func (r *GormOutboxRepository) ListPending(maxAttempts, limit int) ([]models.OutboxEvent, error) {
	if limit <= 0 {
		limit = 100
	}
	query := r.db.Where("dispatched_at IS NULL")
	if maxAttempts > 0 {
		query = query.Where("attempts < ?", maxAttempts)
	}
	var events []models.OutboxEvent
	if err := query.Order("id asc").Limit(limit).Find(&events).Error; err != nil {
		return nil, err
	}
	return events, nil
}

// MarkDispatched 标记事件已投递
func (r *GormOutboxRepository) MarkDispatched(id uint, at time.Time) error {
	return r.db.Model(&models.OutboxEvent{}).
		Where("id = ? AND dispatched_at IS NULL", id).
		Updates(map[string]interface{}{
			"dispatched_at": at,
			"attempts":      gorm.Expr("attempts + ?", 1),
		}).Error
}

// MarkFailed 记录投递失败
func (r *GormOutboxRepository) MarkFailed(id uint, reason string) error {
	return r.db.Model(&models.OutboxEvent{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"last_error": reason,
			"attempts":   gorm.Expr("attempts + ?", 1),
		}).Error
}
