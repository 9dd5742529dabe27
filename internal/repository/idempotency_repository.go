package repository

import (
	"strings"

	"github.com/fanzfinance/internal/models"

	"gorm.io/gorm"
)

// IdempotencyRepository 幂等键数据访问接口
type IdempotencyRepository interface {
	Get(key string) (*models.IdempotencyKey, error)
	Create(record *models.IdempotencyKey) error
	CreateIfAbsent(record *models.IdempotencyKey) (bool, error)
	WithTx(tx *gorm.DB) *GormIdempotencyRepository
}

// GormIdempotencyRepository GORM 幂等键仓储实现
type GormIdempotencyRepository struct {
	db *gorm.DB
}

// NewIdempotencyRepository 创建幂等键仓储
func NewIdempotencyRepository(db *gorm.DB) *GormIdempotencyRepository {
	return &GormIdempotencyRepository{db: db}
}

// WithTx 绑定事务
func (r *GormIdempotencyRepository) WithTx(tx *gorm.DB) *GormIdempotencyRepository {
	if tx == nil {
		return r
	}
	return &GormIdempotencyRepository{db: tx}
}

// Get 按幂等键查询
func (r *GormIdempotencyRepository) Get(key string) (*models.IdempotencyKey, error) {
	key = strings.TrimSpace(key)
	if key == "" {
		return nil, nil
	}
	var records []models.IdempotencyKey
	if err := r.db.Where("idempotency_key = ?", key).Limit(1).Find(&records).Error; err != nil {
		return nil, err
	}
	if len(records) == 0 {
		return nil, nil
	}
	return &records[0], nil
}

// Create 写入幂等键，重复时返回唯一键冲突错误
func (r *GormIdempotencyRepository) Create(record *models.IdempotencyKey) error {
	return r.db.Create(record).Error
}

// CreateIfAbsent 幂等键不存在时写入，返回是否写入成功
// 插入在保存点内执行，唯一键冲突只回滚保存点，外层事务可以继续或回滚后重读
func (r *GormIdempotencyRepository) CreateIfAbsent(record *models.IdempotencyKey) (bool, error) {
	err := r.db.Transaction(func(tx *gorm.DB) error {
		return tx.Create(record).Error
	})
	if err == nil {
		return true, nil
	}
	if IsDuplicateKey(err) {
		return false, nil
	}
	return false, err
}
