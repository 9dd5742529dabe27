package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/fanzfinance/internal/config"
	"github.com/fanzfinance/internal/constants"
	"github.com/fanzfinance/internal/models"
	"github.com/fanzfinance/internal/repository"

	"gorm.io/gorm"
)

// accountLimits 账户默认限额：每日消费、每月消费、提现
type accountLimits struct {
	daily      string
	monthly    string
	withdrawal string
}

var defaultAccountLimits = map[string]accountLimits{
	constants.AccountTypeCreator: {daily: "50000", monthly: "500000", withdrawal: "25000"},
	constants.AccountTypeFan:     {daily: "2500", monthly: "25000", withdrawal: "10000"},
}

// AccountService 资金账户服务，余额只通过条件更新修改
type AccountService struct {
	db          *gorm.DB
	accountRepo repository.AccountRepository
	cfg         config.FinanceConfig
	clock       Clock
}

// NewAccountService 创建资金账户服务
func NewAccountService(db *gorm.DB, accountRepo repository.AccountRepository, cfg config.FinanceConfig, clock Clock) *AccountService {
	return &AccountService{
		db:          db,
		accountRepo: accountRepo,
		cfg:         cfg,
		clock:       clock,
	}
}

func (s *AccountService) repo(ctx context.Context, tx *gorm.DB) *repository.GormAccountRepository {
	if tx != nil {
		return s.accountRepo.WithTx(tx)
	}
	return s.accountRepo.WithTx(s.db.WithContext(ctx))
}

// GetAccount 查询账户
func (s *AccountService) GetAccount(ctx context.Context, userID string) (*models.FinancialAccount, error) {
	return s.GetAccountTx(s.db.WithContext(ctx), userID)
}

// GetAccountTx 事务内查询账户
func (s *AccountService) GetAccountTx(tx *gorm.DB, userID string) (*models.FinancialAccount, error) {
	account, err := s.repo(context.Background(), tx).GetByUserID(userID)
	if err != nil {
		return nil, err
	}
	if account == nil {
		return nil, ErrAccountNotFound
	}
	return account, nil
}

// CreateAccountIfAbsent 幂等创建账户
func (s *AccountService) CreateAccountIfAbsent(ctx context.Context, userID, accountType string) (*models.FinancialAccount, error) {
	return s.CreateAccountIfAbsentTx(s.db.WithContext(ctx), userID, accountType)
}

// CreateAccountIfAbsentTx 事务内幂等创建账户
func (s *AccountService) CreateAccountIfAbsentTx(tx *gorm.DB, userID, accountType string) (*models.FinancialAccount, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return nil, fmt.Errorf("%w: user_id is required", ErrInvalidRequest)
	}
	if !isAccountType(accountType) {
		return nil, fmt.Errorf("%w: unknown account type %s", ErrInvalidRequest, accountType)
	}
	repo := s.repo(context.Background(), tx)
	existing, err := repo.GetByUserID(userID)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return existing, nil
	}
	if _, err := repo.CreateIfAbsent(s.newAccount(userID, accountType)); err != nil {
		return nil, err
	}
	account, err := repo.GetByUserID(userID)
	if err != nil {
		return nil, err
	}
	if account == nil {
		return nil, ErrAccountNotFound
	}
	return account, nil
}

// ProvisionSystemAccounts 创建平台、托管与税费储备账户
func (s *AccountService) ProvisionSystemAccounts(ctx context.Context) error {
	system := []struct {
		userID      string
		accountType string
	}{
		{s.platformUserID(), constants.AccountTypePlatform},
		{s.escrowUserID(), constants.AccountTypeEscrow},
		{s.taxReserveUserID(), constants.AccountTypeTaxReserve},
	}
	for _, item := range system {
		if _, err := s.CreateAccountIfAbsent(ctx, item.userID, item.accountType); err != nil {
			return fmt.Errorf("provision %s account: %w", item.accountType, err)
		}
	}
	return nil
}

// Credit 余额桶加款
func (s *AccountService) Credit(ctx context.Context, userID, bucket string, amount models.Money) error {
	return s.CreditTx(s.db.WithContext(ctx), userID, bucket, amount)
}

// CreditTx 事务内余额桶加款
func (s *AccountService) CreditTx(tx *gorm.DB, userID, bucket string, amount models.Money) error {
	if err := validateAmount(amount); err != nil {
		return err
	}
	ok, err := s.repo(context.Background(), tx).Credit(userID, bucket, amount, s.clock.now())
	if err != nil {
		return err
	}
	if !ok {
		return ErrAccountNotFound
	}
	return nil
}

// Debit 余额桶扣款，余额不足返回 ErrInsufficientFunds
func (s *AccountService) Debit(ctx context.Context, userID, bucket string, amount models.Money) error {
	return s.DebitTx(s.db.WithContext(ctx), userID, bucket, amount)
}

// DebitTx 事务内余额桶扣款
func (s *AccountService) DebitTx(tx *gorm.DB, userID, bucket string, amount models.Money) error {
	if err := validateAmount(amount); err != nil {
		return err
	}
	repo := s.repo(context.Background(), tx)
	ok, err := repo.Debit(userID, bucket, amount, s.clock.now())
	if err != nil {
		return err
	}
	if ok {
		return nil
	}
	return s.missOrInsufficient(repo, userID)
}

// MoveBucket 在余额桶之间划转
func (s *AccountService) MoveBucket(ctx context.Context, userID string, amount models.Money, from, to string) error {
	return s.MoveBucketTx(s.db.WithContext(ctx), userID, amount, from, to)
}

// MoveBucketTx 事务内余额桶划转
func (s *AccountService) MoveBucketTx(tx *gorm.DB, userID string, amount models.Money, from, to string) error {
	if err := validateAmount(amount); err != nil {
		return err
	}
	repo := s.repo(context.Background(), tx)
	ok, err := repo.Move(userID, from, to, amount, s.clock.now())
	if err != nil {
		return err
	}
	if ok {
		return nil
	}
	return s.missOrInsufficient(repo, userID)
}

// SetVerification 由外部 KYC 服务回写认证状态
func (s *AccountService) SetVerification(ctx context.Context, userID, status string, kycLevel int) (*models.FinancialAccount, error) {
	if !isVerificationStatus(status) {
		return nil, fmt.Errorf("%w: unknown verification status %s", ErrInvalidRequest, status)
	}
	if kycLevel < 1 || kycLevel > 3 {
		return nil, fmt.Errorf("%w: kyc_level must be between 1 and 3", ErrInvalidRequest)
	}
	repo := s.repo(ctx, nil)
	ok, err := repo.UpdateVerification(userID, status, kycLevel, s.clock.now())
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrAccountNotFound
	}
	return s.GetAccount(ctx, userID)
}

// IsSystemUser 判断是否为系统账户
func (s *AccountService) IsSystemUser(userID string) bool {
	switch strings.TrimSpace(userID) {
	case s.platformUserID(), s.escrowUserID(), s.taxReserveUserID():
		return true
	}
	return false
}

func (s *AccountService) missOrInsufficient(repo *repository.GormAccountRepository, userID string) error {
	account, err := repo.GetByUserID(userID)
	if err != nil {
		return err
	}
	if account == nil {
		return ErrAccountNotFound
	}
	return ErrInsufficientFunds
}

func (s *AccountService) newAccount(userID, accountType string) *models.FinancialAccount {
	now := s.clock.now()
	account := &models.FinancialAccount{
		AccountNo:          constants.AccountNoPrefix + userID,
		UserID:             userID,
		Type:               accountType,
		Currency:           s.defaultCurrency(),
		VerificationStatus: constants.VerificationUnverified,
		KYCLevel:           1,
		TaxFormStatus:      constants.TaxFormPending,
		Version:            1,
		CreatedAt:          now,
		UpdatedAt:          now,
	}
	if limits, ok := defaultAccountLimits[accountType]; ok {
		account.DailySpendLimit = models.MustMoney(limits.daily)
		account.MonthlySpendLimit = models.MustMoney(limits.monthly)
		account.WithdrawalLimit = models.MustMoney(limits.withdrawal)
	}
	if isSystemAccountType(accountType) {
		account.VerificationStatus = constants.VerificationVerified
		account.KYCLevel = 3
		account.TaxFormStatus = constants.TaxFormApproved
	}
	return account
}

func (s *AccountService) defaultCurrency() string {
	if currency := strings.ToUpper(strings.TrimSpace(s.cfg.DefaultCurrency)); currency != "" {
		return currency
	}
	return constants.DefaultSettlementCurrency
}

func (s *AccountService) platformUserID() string {
	return firstNonEmpty(s.cfg.PlatformUserID, constants.DefaultPlatformUserID)
}

func (s *AccountService) escrowUserID() string {
	return firstNonEmpty(s.cfg.EscrowUserID, constants.DefaultEscrowUserID)
}

func (s *AccountService) taxReserveUserID() string {
	return firstNonEmpty(s.cfg.TaxReserveUserID, constants.DefaultTaxReserveUserID)
}

func validateAmount(amount models.Money) error {
	if !amount.IsPositive() {
		return fmt.Errorf("%w: amount must be positive", ErrInvalidRequest)
	}
	return nil
}

func isAccountType(accountType string) bool {
	switch accountType {
	case constants.AccountTypeCreator, constants.AccountTypeFan:
		return true
	}
	return isSystemAccountType(accountType)
}

func isSystemAccountType(accountType string) bool {
	switch accountType {
	case constants.AccountTypePlatform, constants.AccountTypeEscrow, constants.AccountTypeTaxReserve:
		return true
	}
	return false
}

func isVerificationStatus(status string) bool {
	switch status {
	case constants.VerificationUnverified, constants.VerificationPartial, constants.VerificationVerified, constants.VerificationSuspended:
		return true
	}
	return false
}

func firstNonEmpty(values ...string) string {
	for _, value := range values {
		if trimmed := strings.TrimSpace(value); trimmed != "" {
			return trimmed
		}
	}
	return ""
}
