package repository

import (
	"errors"
	"strings"
	"time"

	"github.com/fanzfinance/internal/constants"
	"github.com/fanzfinance/internal/models"

	"gorm.io/gorm"
)

// TransactionRepository 交易数据访问接口
type TransactionRepository interface {
	Create(txn *models.Transaction) error
	GetByNo(transactionNo string) (*models.Transaction, error)
	GetByParentNo(parentNo, kind string) (*models.Transaction, error)
	Transition(txn *models.Transaction, toStatus string, updates map[string]interface{}) (bool, error)
	MarkSettled(transactionNo string, at time.Time) (bool, error)
	List(filter TransactionListFilter) ([]models.Transaction, int64, error)
	ListStaleProcessing(kind string, before time.Time, limit int) ([]models.Transaction, error)
	ListDueSettlements(now time.Time, limit int) ([]models.Transaction, error)
	PayerHistory(payerID string, since time.Time) (PayerHistoryRow, error)
	WithTx(tx *gorm.DB) *GormTransactionRepository
}

// GormTransactionRepository GORM 交易仓储实现
type GormTransactionRepository struct {
	db *gorm.DB
}

// NewTransactionRepository 创建交易仓储
func NewTransactionRepository(db *gorm.DB) *GormTransactionRepository {
	return &GormTransactionRepository{db: db}
}

// WithTx 绑定事务
func (r *GormTransactionRepository) WithTx(tx *gorm.DB) *GormTransactionRepository {
	if tx == nil {
		return r
	}
	return &GormTransactionRepository{db: tx}
}

// Create 创建交易
func (r *GormTransactionRepository) Create(txn *models.Transaction) error {
	if txn.Version <= 0 {
		txn.Version = 1
	}
	return r.db.Create(txn).Error
}

// GetByNo 按交易编号获取交易
func (r *GormTransactionRepository) GetByNo(transactionNo string) (*models.Transaction, error) {
	transactionNo = strings.TrimSpace(transactionNo)
	if transactionNo == "" {
		return nil, nil
	}
	var txn models.Transaction
	if err := r.db.Where("transaction_no = ?", transactionNo).First(&txn).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &txn, nil
}

// GetByParentNo 按关联交易编号与类型获取交易
func (r *GormTransactionRepository) GetByParentNo(parentNo, kind string) (*models.Transaction, error) {
	parentNo = strings.TrimSpace(parentNo)
	if parentNo == "" {
		return nil, nil
	}
	var txn models.Transaction
	if err := r.db.Where("parent_no = ? AND kind = ?", parentNo, kind).Order("id asc").First(&txn).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &txn, nil
}

// Transition 按当前状态与版本号条件更新交易状态，返回是否命中
// 命中后同步更新传入对象的状态、版本号与字段
func (r *GormTransactionRepository) Transition(txn *models.Transaction, toStatus string, updates map[string]interface{}) (bool, error) {
	if txn == nil {
		return false, nil
	}
	values := map[string]interface{}{}
	for key, value := range updates {
		values[key] = value
	}
	values["status"] = toStatus
	values["version"] = gorm.Expr("version + ?", 1)
	if _, ok := values["updated_at"]; !ok {
		values["updated_at"] = time.Now().UTC()
	}

	result := r.db.Model(&models.Transaction{}).
		Where("transaction_no = ? AND status = ? AND version = ?", txn.TransactionNo, txn.Status, txn.Version).
		Updates(values)
	if result.Error != nil {
		return false, result.Error
	}
	if result.RowsAffected == 0 {
		return false, nil
	}
	fresh, err := r.GetByNo(txn.TransactionNo)
	if err != nil {
		return true, err
	}
	if fresh != nil {
		*txn = *fresh
	}
	return true, nil
}

// MarkSettled 仅在未结算时写入结算时间
func (r *GormTransactionRepository) MarkSettled(transactionNo string, at time.Time) (bool, error) {
	result := r.db.Model(&models.Transaction{}).
		Where("transaction_no = ? AND settled_at IS NULL", transactionNo).
		Updates(map[string]interface{}{
			"settled_at": at,
			"version":    gorm.Expr("version + ?", 1),
			"updated_at": at,
		})
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

// List 分页查询交易
func (r *GormTransactionRepository) List(filter TransactionListFilter) ([]models.Transaction, int64, error) {
	query := r.db.Model(&models.Transaction{})
	if filter.Kind != "" {
		query = query.Where("kind = ?", filter.Kind)
	}
	if filter.Status != "" {
		query = query.Where("status = ?", filter.Status)
	}
	if filter.PayerID != "" {
		query = query.Where("payer_id = ?", filter.PayerID)
	}
	if filter.PayeeID != "" {
		query = query.Where("payee_id = ?", filter.PayeeID)
	}
	if filter.GatewayID != "" {
		query = query.Where("gateway_id = ?", filter.GatewayID)
	}
	if filter.CreatedFrom != nil {
		query = query.Where("created_at >= ?", *filter.CreatedFrom)
	}
	if filter.CreatedTo != nil {
		query = query.Where("created_at <= ?", *filter.CreatedTo)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	query = applyPagination(query, filter.Page, filter.PageSize)

	var txns []models.Transaction
	if err := query.Order("id desc").Find(&txns).Error; err != nil {
		return nil, 0, err
	}
	return txns, total, nil
}

// ListStaleProcessing 查询创建时间早于 before 且仍在处理中的交易
func (r *GormTransactionRepository) ListStaleProcessing(kind string, before time.Time, limit int) ([]models.Transaction, error) {
	if limit <= 0 {
		limit = 100
	}
	var txns []models.Transaction
	if err := r.db.Where("kind = ? AND status = ? AND created_at < ?", kind, constants.TransactionStatusProcessing, before).
		Order("id asc").
		Limit(limit).
		Find(&txns).Error; err != nil {
		return nil, err
	}
	return txns, nil
}

// ListDueSettlements 查询已到结算时间但尚未结算的支付
func (r *GormTransactionRepository) ListDueSettlements(now time.Time, limit int) ([]models.Transaction, error) {
	if limit <= 0 {
		limit = 100
	}
	var txns []models.Transaction
	if err := r.db.Where("kind = ? AND status = ? AND settled_at IS NULL AND estimated_arrival IS NOT NULL AND estimated_arrival <= ?",
		constants.TransactionKindPayment, constants.TransactionStatusCompleted, now).
		Order("id asc").
		Limit(limit).
		Find(&txns).Error; err != nil {
		return nil, err
	}
	return txns, nil
}

// PayerHistory 统计付款方在窗口内的支付次数、失败次数与历史争议次数
func (r *GormTransactionRepository) PayerHistory(payerID string, since time.Time) (PayerHistoryRow, error) {
	row := PayerHistoryRow{}
	payerID = strings.TrimSpace(payerID)
	if payerID == "" {
		return row, nil
	}
	base := func() *gorm.DB {
		return r.db.Model(&models.Transaction{}).Where("payer_id = ?", payerID)
	}
	if err := base().
		Where("kind = ? AND created_at >= ?", constants.TransactionKindPayment, since).
		Count(&row.RecentPayments).Error; err != nil {
		return row, err
	}
	if err := base().
		Where("kind = ? AND status = ? AND created_at >= ?", constants.TransactionKindPayment, constants.TransactionStatusFailed, since).
		Count(&row.RecentFailures).Error; err != nil {
		return row, err
	}
	if err := base().
		Where("(kind = ? OR status = ?)", constants.TransactionKindChargeback, constants.TransactionStatusDisputed).
		Count(&row.Chargebacks).Error; err != nil {
		return row, err
	}
	return row, nil
}
