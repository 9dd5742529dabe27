package service

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/fanzfinance/internal/config"
	"github.com/fanzfinance/internal/constants"
	"github.com/fanzfinance/internal/gateway"
	"github.com/fanzfinance/internal/ledger"
	"github.com/fanzfinance/internal/models"
	"github.com/fanzfinance/internal/payment"
	"github.com/fanzfinance/internal/repository"

	"github.com/glebarez/sqlite"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func newTestClock() *testClock {
	return &testClock{now: time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)}
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// financeHarness 组装一套基于内存 sqlite 的资金服务
type financeHarness struct {
	db       *gorm.DB
	clock    *testClock
	cfg      config.FinanceConfig
	registry *gateway.Registry
	accounts *AccountService
	txns     *TransactionService
	payouts  *PayoutService
	summary  *SummaryService
}

type harnessOption func(*harnessSetup)

type harnessSetup struct {
	gateways  []models.PaymentGateway
	cfg       config.FinanceConfig
	executor  payment.Executor
	disburser payment.Disburser
}

func withGateways(gateways ...models.PaymentGateway) harnessOption {
	return func(s *harnessSetup) { s.gateways = gateways }
}

func withExecutor(executor payment.Executor) harnessOption {
	return func(s *harnessSetup) { s.executor = executor }
}

func withDisburser(disburser payment.Disburser) harnessOption {
	return func(s *harnessSetup) { s.disburser = disburser }
}

func testFinanceGateway(id, percent, min, max, limit string) models.PaymentGateway {
	return models.PaymentGateway{
		GatewayID:           id,
		Name:                id,
		Type:                constants.GatewayTypeCard,
		Status:              constants.GatewayStatusActive,
		SupportedCurrencies: models.StringArray{"USD"},
		SupportedCountries:  models.StringArray{constants.GatewayCountryWildcard},
		FeePercent:          models.MustMoney(percent),
		MinAmount:           models.MustMoney(min),
		MaxAmount:           models.MustMoney(max),
		DailyLimit:          models.MustMoney(limit),
		AuthorizationMS:     10,
		SettlementHours:     24,
		Features:            models.StringArray{constants.GatewayFeatureRefunds},
	}
}

func approveAll(ctx context.Context, req payment.ExecuteRequest) (*payment.ExecuteResult, error) {
	return &payment.ExecuteResult{Approved: true, GatewayTxnID: "gw_" + req.TransactionNo}, nil
}

func setupFinanceTest(t *testing.T, opts ...harnessOption) *financeHarness {
	t.Helper()
	setup := &harnessSetup{
		gateways: []models.PaymentGateway{testFinanceGateway("two_percent_gateway", "2", "1", "10000", "0")},
		cfg: config.FinanceConfig{
			DefaultCurrency:             "USD",
			RiskBlockThreshold:          85,
			AuthorizationTimeoutSeconds: 60,
			VelocityWindowMinutes:       60,
			Payout: config.PayoutConfig{
				FeePercent: 2,
				SettlementHours: map[string]int{
					constants.PayoutDestinationBank:   72,
					constants.PayoutDestinationCrypto: 1,
					constants.PayoutDestinationPaypal: 24,
				},
			},
		},
		executor: payment.ExecutorFunc(approveAll),
		disburser: payment.DisburserFunc(func(ctx context.Context, req payment.DisburseRequest) (*payment.DisburseResult, error) {
			return &payment.DisburseResult{Succeeded: true, ProviderRef: "bank_" + req.TransactionNo}, nil
		}),
	}
	for _, opt := range opts {
		opt(setup)
	}

	dsn := fmt.Sprintf("file:finance_service_test_%d?mode=memory&cache=shared", time.Now().UnixNano())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{TranslateError: true})
	if err != nil {
		t.Fatalf("open sqlite failed: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("get sql db failed: %v", err)
	}
	// 共享缓存内存库并发写会直接返回锁错误，串行化连接
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })
	if err := models.Migrate(db); err != nil {
		t.Fatalf("auto migrate failed: %v", err)
	}

	registry, err := gateway.NewRegistry(setup.gateways)
	if err != nil {
		t.Fatalf("new registry failed: %v", err)
	}
	gatewayRepo := repository.NewGatewayRepository(db)
	if err := gatewayRepo.SyncCatalog(registry.All()); err != nil {
		t.Fatalf("sync catalog failed: %v", err)
	}

	clock := newTestClock()
	engine := ledger.NewEngine(clock.Now)
	accounts := NewAccountService(db, repository.NewAccountRepository(db), setup.cfg, clock.Now)
	if err := accounts.ProvisionSystemAccounts(context.Background()); err != nil {
		t.Fatalf("provision system accounts failed: %v", err)
	}
	txns := NewTransactionService(TransactionServiceOptions{
		DB:          db,
		TxnRepo:     repository.NewTransactionRepository(db),
		LedgerRepo:  repository.NewLedgerRepository(db),
		GatewayRepo: gatewayRepo,
		IdemRepo:    repository.NewIdempotencyRepository(db),
		OutboxRepo:  repository.NewOutboxRepository(db),
		Accounts:    accounts,
		Registry:    registry,
		Engine:      engine,
		Executor:    setup.executor,
		Config:      setup.cfg,
		Clock:       clock.Now,
	})
	payouts := NewPayoutService(PayoutServiceOptions{
		DB:         db,
		TxnRepo:    repository.NewTransactionRepository(db),
		LedgerRepo: repository.NewLedgerRepository(db),
		OutboxRepo: repository.NewOutboxRepository(db),
		Accounts:   accounts,
		Registry:   registry,
		Engine:     engine,
		Disburser:  setup.disburser,
		Config:     setup.cfg,
		Clock:      clock.Now,
	})
	return &financeHarness{
		db:       db,
		clock:    clock,
		cfg:      setup.cfg,
		registry: registry,
		accounts: accounts,
		txns:     txns,
		payouts:  payouts,
		summary:  NewSummaryService(repository.NewSummaryRepository(db), 0, clock.Now),
	}
}

func paymentInput(key, amount string) ProcessPaymentInput {
	return ProcessPaymentInput{
		Amount:         models.MustMoney(amount),
		Currency:       "usd",
		PayerID:        "fan_1",
		PayeeID:        "creator_1",
		PaymentMethod:  "card",
		Country:        "us",
		Metadata:       map[string]interface{}{"content_id": "post_1"},
		IdempotencyKey: key,
	}
}

func (h *financeHarness) mustProcess(t *testing.T, input ProcessPaymentInput) *PaymentResult {
	t.Helper()
	result, err := h.txns.ProcessPayment(context.Background(), input)
	if err != nil {
		t.Fatalf("process payment failed: %v", err)
	}
	if !result.Success {
		t.Fatalf("expected accepted payment, got %s: %s", result.ErrorCode, result.Message)
	}
	return result
}

func (h *financeHarness) mustTxn(t *testing.T, transactionNo string) *models.Transaction {
	t.Helper()
	txn, err := h.txns.GetTransaction(context.Background(), transactionNo)
	if err != nil {
		t.Fatalf("get transaction %s failed: %v", transactionNo, err)
	}
	return txn
}

func (h *financeHarness) mustAccount(t *testing.T, userID string) *models.FinancialAccount {
	t.Helper()
	account, err := h.accounts.GetAccount(context.Background(), userID)
	if err != nil {
		t.Fatalf("get account %s failed: %v", userID, err)
	}
	return account
}

func (h *financeHarness) fundCreator(t *testing.T, userID, available string) {
	t.Helper()
	ctx := context.Background()
	if _, err := h.accounts.CreateAccountIfAbsent(ctx, userID, constants.AccountTypeCreator); err != nil {
		t.Fatalf("create creator failed: %v", err)
	}
	if err := h.accounts.Credit(ctx, userID, constants.BucketAvailable, models.MustMoney(available)); err != nil {
		t.Fatalf("credit creator failed: %v", err)
	}
}

func (h *financeHarness) count(t *testing.T, model interface{}, query string, args ...interface{}) int64 {
	t.Helper()
	var total int64
	if err := h.db.Model(model).Where(query, args...).Count(&total).Error; err != nil {
		t.Fatalf("count failed: %v", err)
	}
	return total
}

// assertBalanced 校验交易的全部分录借贷相等
func assertBalanced(t *testing.T, h *financeHarness, transactionNo string) []models.LedgerEntry {
	t.Helper()
	entries, err := h.txns.ListLedgerEntries(context.Background(), transactionNo)
	if err != nil {
		t.Fatalf("list entries failed: %v", err)
	}
	debit, credit := decimal.Zero, decimal.Zero
	for _, entry := range entries {
		debit = debit.Add(entry.DebitAmount.Decimal)
		credit = credit.Add(entry.CreditAmount.Decimal)
	}
	if !debit.Equal(credit) {
		t.Fatalf("transaction %s unbalanced: debit %s credit %s", transactionNo, debit, credit)
	}
	return entries
}

func assertMoney(t *testing.T, label string, got models.Money, want string) {
	t.Helper()
	if !got.Equal(models.MustMoney(want)) {
		t.Fatalf("%s: expected %s, got %s", label, want, got.String())
	}
}
