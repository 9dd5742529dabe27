package repository

import (
	"strings"

	"github.com/fanzfinance/internal/models"

	"gorm.io/gorm"
)

// LedgerRepository 分录数据访问接口（只追加）
type LedgerRepository interface {
	CreateEntries(entries []models.LedgerEntry) error
	ListByTransactionNo(transactionNo string) ([]models.LedgerEntry, error)
	ListByReference(reference string) ([]models.LedgerEntry, error)
	MarkReconciled(entryNos []string) (int64, error)
	WithTx(tx *gorm.DB) *GormLedgerRepository
}

// GormLedgerRepository GORM 分录仓储实现
type GormLedgerRepository struct {
	db *gorm.DB
}

// NewLedgerRepository 创建分录仓储
func NewLedgerRepository(db *gorm.DB) *GormLedgerRepository {
	return &GormLedgerRepository{db: db}
}

// WithTx 绑定事务
func (r *GormLedgerRepository) WithTx(tx *gorm.DB) *GormLedgerRepository {
	if tx == nil {
		return r
	}
	return &GormLedgerRepository{db: tx}
}

// CreateEntries 批量写入分录
func (r *GormLedgerRepository) CreateEntries(entries []models.LedgerEntry) error {
	if len(entries) == 0 {
		return nil
	}
	return r.db.Create(&entries).Error
}

// ListByTransactionNo 按交易编号查询分录（按写入顺序）
func (r *GormLedgerRepository) ListByTransactionNo(transactionNo string) ([]models.LedgerEntry, error) {
	transactionNo = strings.TrimSpace(transactionNo)
	if transactionNo == "" {
		return []models.LedgerEntry{}, nil
	}
	var entries []models.LedgerEntry
	if err := r.db.Where("transaction_no = ?", transactionNo).Order("id asc").Find(&entries).Error; err != nil {
		return nil, err
	}
	return entries, nil
}

// ListByReference 按引用查询分录
func (r *GormLedgerRepository) ListByReference(reference string) ([]models.LedgerEntry, error) {
	reference = strings.TrimSpace(reference)
	if reference == "" {
		return []models.LedgerEntry{}, nil
	}
	var entries []models.LedgerEntry
	if err := r.db.Where("reference = ?", reference).Order("id asc").Find(&entries).Error; err != nil {
		return nil, err
	}
	return entries, nil
}

// MarkReconciled 标记分录已对账，分录上唯一允许变更的字段
func (r *GormLedgerRepository) MarkReconciled(entryNos []string) (int64, error) {
	if len(entryNos) == 0 {
		return 0, nil
	}
	result := r.db.Model(&models.LedgerEntry{}).
		Where("entry_no IN ? AND reconciled = ?", entryNos, false).
		Update("reconciled", true)
	return result.RowsAffected, result.Error
}
