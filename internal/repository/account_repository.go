package repository

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/fanzfinance/internal/constants"
	"github.com/fanzfinance/internal/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var (
	// ErrUnknownBucket 未知余额桶
	ErrUnknownBucket = errors.New("unknown balance bucket")
	// ErrVersionConflict 回写时版本号已变化
	ErrVersionConflict = errors.New("row version changed concurrently")
)

var bucketColumns = map[string]string{
	constants.BucketAvailable: "available",
	constants.BucketPending:   "pending",
	constants.BucketReserved:  "reserved",
}

// AccountRepository 资金账户数据访问接口
type AccountRepository interface {
	GetByUserID(userID string) (*models.FinancialAccount, error)
	Create(account *models.FinancialAccount) error
	CreateIfAbsent(account *models.FinancialAccount) (bool, error)
	Credit(userID, bucket string, amount models.Money, at time.Time) (bool, error)
	Debit(userID, bucket string, amount models.Money, at time.Time) (bool, error)
	Move(userID, from, to string, amount models.Money, at time.Time) (bool, error)
	UpdateVerification(userID, status string, kycLevel int, at time.Time) (bool, error)
	SumBucket(bucket string) (models.Money, error)
	WithTx(tx *gorm.DB) *GormAccountRepository
}

// GormAccountRepository GORM 资金账户仓储实现
type GormAccountRepository struct {
	db *gorm.DB
}

// NewAccountRepository 创建资金账户仓储
func NewAccountRepository(db *gorm.DB) *GormAccountRepository {
	return &GormAccountRepository{db: db}
}

// WithTx 绑定事务
func (r *GormAccountRepository) WithTx(tx *gorm.DB) *GormAccountRepository {
	if tx == nil {
		return r
	}
	return &GormAccountRepository{db: tx}
}

// GetByUserID 按用户标识获取账户
func (r *GormAccountRepository) GetByUserID(userID string) (*models.FinancialAccount, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return nil, nil
	}
	var accounts []models.FinancialAccount
	if err := r.db.Where("user_id = ?", userID).Limit(1).Find(&accounts).Error; err != nil {
		return nil, err
	}
	if len(accounts) == 0 {
		return nil, nil
	}
	return &accounts[0], nil
}

// Create 创建账户
func (r *GormAccountRepository) Create(account *models.FinancialAccount) error {
	if account.Version <= 0 {
		account.Version = 1
	}
	return r.db.Create(account).Error
}

// CreateIfAbsent 按 user_id 幂等创建账户，返回是否新建
func (r *GormAccountRepository) CreateIfAbsent(account *models.FinancialAccount) (bool, error) {
	if account.Version <= 0 {
		account.Version = 1
	}
	result := r.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "user_id"}},
		DoNothing: true,
	}).Create(account)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

// Credit 余额桶加款，账户不存在时不命中
func (r *GormAccountRepository) Credit(userID, bucket string, amount models.Money, at time.Time) (bool, error) {
	if _, ok := bucketColumns[bucket]; !ok {
		return false, fmt.Errorf("%w: %s", ErrUnknownBucket, bucket)
	}
	account, err := r.lockByUserID(userID)
	if err != nil || account == nil {
		return false, err
	}
	field := bucketField(account, bucket)
	*field = field.Add(amount)
	return true, r.saveBuckets(account, at)
}

// Debit 余额桶扣款，余额不足时不命中
func (r *GormAccountRepository) Debit(userID, bucket string, amount models.Money, at time.Time) (bool, error) {
	if _, ok := bucketColumns[bucket]; !ok {
		return false, fmt.Errorf("%w: %s", ErrUnknownBucket, bucket)
	}
	account, err := r.lockByUserID(userID)
	if err != nil || account == nil {
		return false, err
	}
	field := bucketField(account, bucket)
	if field.LessThan(amount.Decimal) {
		return false, nil
	}
	*field = field.Sub(amount)
	return true, r.saveBuckets(account, at)
}

// Move 在两个余额桶之间划转，来源余额不足时不命中
func (r *GormAccountRepository) Move(userID, from, to string, amount models.Money, at time.Time) (bool, error) {
	if _, ok := bucketColumns[from]; !ok {
		return false, fmt.Errorf("%w: %s", ErrUnknownBucket, from)
	}
	if _, ok := bucketColumns[to]; !ok {
		return false, fmt.Errorf("%w: %s", ErrUnknownBucket, to)
	}
	if from == to {
		return false, fmt.Errorf("%w: same bucket %s", ErrUnknownBucket, from)
	}
	account, err := r.lockByUserID(userID)
	if err != nil || account == nil {
		return false, err
	}
	source := bucketField(account, from)
	if source.LessThan(amount.Decimal) {
		return false, nil
	}
	target := bucketField(account, to)
	*source = source.Sub(amount)
	*target = target.Add(amount)
	return true, r.saveBuckets(account, at)
}

// lockByUserID 行锁读取账户，金额在内存中按 decimal 计算后回写
func (r *GormAccountRepository) lockByUserID(userID string) (*models.FinancialAccount, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return nil, nil
	}
	var accounts []models.FinancialAccount
	if err := r.db.Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("user_id = ?", userID).
		Limit(1).
		Find(&accounts).Error; err != nil {
		return nil, err
	}
	if len(accounts) == 0 {
		return nil, nil
	}
	return &accounts[0], nil
}

// saveBuckets 按读取时的版本号回写三个余额桶
func (r *GormAccountRepository) saveBuckets(account *models.FinancialAccount, at time.Time) error {
	result := r.db.Model(&models.FinancialAccount{}).
		Where("id = ? AND version = ?", account.ID, account.Version).
		Updates(map[string]interface{}{
			"available":  account.Available,
			"pending":    account.Pending,
			"reserved":   account.Reserved,
			"version":    account.Version + 1,
			"updated_at": at,
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return fmt.Errorf("%w: account %s", ErrVersionConflict, account.UserID)
	}
	account.Version++
	return nil
}

func bucketField(account *models.FinancialAccount, bucket string) *models.Money {
	switch bucket {
	case constants.BucketPending:
		return &account.Pending
	case constants.BucketReserved:
		return &account.Reserved
	default:
		return &account.Available
	}
}

// UpdateVerification 更新认证状态与 KYC 等级
func (r *GormAccountRepository) UpdateVerification(userID, status string, kycLevel int, at time.Time) (bool, error) {
	result := r.db.Model(&models.FinancialAccount{}).
		Where("user_id = ?", userID).
		Updates(map[string]interface{}{
			"verification_status": status,
			"kyc_level":           kycLevel,
			"version":             gorm.Expr("version + ?", 1),
			"updated_at":          at,
		})
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

// SumBucket 汇总全部账户的指定余额桶
func (r *GormAccountRepository) SumBucket(bucket string) (models.Money, error) {
	column, ok := bucketColumns[bucket]
	if !ok {
		return models.Money{}, fmt.Errorf("%w: %s", ErrUnknownBucket, bucket)
	}
	var total float64
	if err := r.db.Model(&models.FinancialAccount{}).
		Select("COALESCE(SUM(" + column + "), 0)").
		Scan(&total).Error; err != nil {
		return models.Money{}, err
	}
	return moneyFromFloat(total), nil
}
