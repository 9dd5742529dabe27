package service

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/fanzfinance/internal/config"
	"github.com/fanzfinance/internal/constants"
	"github.com/fanzfinance/internal/gateway"
	"github.com/fanzfinance/internal/ledger"
	"github.com/fanzfinance/internal/logger"
	"github.com/fanzfinance/internal/models"
	"github.com/fanzfinance/internal/payment"
	"github.com/fanzfinance/internal/repository"
	"github.com/fanzfinance/internal/risk"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

const (
	idempotencyScopePayment = "payment"
	highRiskScore           = 50
)

// errIdempotencyRace 并发请求已写入同一幂等键，回滚后重读
var errIdempotencyRace = errors.New("idempotency key inserted concurrently")

// TransactionServiceOptions 交易服务依赖
type TransactionServiceOptions struct {
	DB          *gorm.DB
	TxnRepo     repository.TransactionRepository
	LedgerRepo  repository.LedgerRepository
	GatewayRepo repository.GatewayRepository
	IdemRepo    repository.IdempotencyRepository
	OutboxRepo  repository.OutboxRepository
	Accounts    *AccountService
	Registry    *gateway.Registry
	Assessor    *risk.Assessor
	Engine      *ledger.Engine
	Executor    payment.Executor
	Dispatcher  TaskDispatcher
	Config      config.FinanceConfig
	Clock       Clock
}

// TransactionService 支付交易编排与状态机
type TransactionService struct {
	db          *gorm.DB
	txnRepo     repository.TransactionRepository
	ledgerRepo  repository.LedgerRepository
	gatewayRepo repository.GatewayRepository
	idemRepo    repository.IdempotencyRepository
	outboxRepo  repository.OutboxRepository
	accounts    *AccountService
	registry    *gateway.Registry
	selector    *gateway.Selector
	assessor    *risk.Assessor
	engine      *ledger.Engine
	executor    payment.Executor
	dispatcher  TaskDispatcher
	cfg         config.FinanceConfig
	clock       Clock
}

// ProcessPaymentInput 支付请求
type ProcessPaymentInput struct {
	Amount         models.Money
	Currency       string
	PayerID        string
	PayeeID        string
	PaymentMethod  string
	Country        string
	Metadata       map[string]interface{}
	IdempotencyKey string
}

// PaymentResult 支付受理结果，拒绝时 Success 为 false 并携带错误码
type PaymentResult struct {
	Success       bool         `json:"success"`
	TransactionNo string       `json:"transaction_id,omitempty"`
	Status        string       `json:"status,omitempty"`
	GatewayID     string       `json:"gateway_id,omitempty"`
	Amount        models.Money `json:"amount"`
	FeeAmount     models.Money `json:"fee_amount"`
	NetAmount     models.Money `json:"net_amount"`
	Currency      string       `json:"currency,omitempty"`
	RiskScore     int          `json:"risk_score"`
	Replayed      bool         `json:"replayed,omitempty"`
	ErrorCode     ErrorCode    `json:"error_code,omitempty"`
	Message       string       `json:"message,omitempty"`
}

// NewTransactionService 创建交易服务
func NewTransactionService(opts TransactionServiceOptions) *TransactionService {
	engine := opts.Engine
	if engine == nil {
		engine = ledger.NewEngine(opts.Clock.now)
	}
	assessor := opts.Assessor
	if assessor == nil {
		assessor = risk.NewAssessor(opts.Config.RiskBlockThreshold, 0)
	}
	return &TransactionService{
		db:          opts.DB,
		txnRepo:     opts.TxnRepo,
		ledgerRepo:  opts.LedgerRepo,
		gatewayRepo: opts.GatewayRepo,
		idemRepo:    opts.IdemRepo,
		outboxRepo:  opts.OutboxRepo,
		accounts:    opts.Accounts,
		registry:    opts.Registry,
		selector:    gateway.NewSelector(opts.Registry),
		assessor:    assessor,
		engine:      engine,
		executor:    opts.Executor,
		dispatcher:  opts.Dispatcher,
		cfg:         opts.Config,
		clock:       opts.Clock,
	}
}

// SetDispatcher 设置异步任务投递器
func (s *TransactionService) SetDispatcher(dispatcher TaskDispatcher) {
	s.dispatcher = dispatcher
}

// ProcessPayment 受理支付：选网关、风控、记账并进入 processing，授权异步进行
// 只有记账不平衡这类不变量错误会以 error 返回，其余拒绝都体现在结果中
func (s *TransactionService) ProcessPayment(ctx context.Context, input ProcessPaymentInput) (*PaymentResult, error) {
	log := logger.FromContext(ctx)
	input = normalizePaymentInput(input)
	if err := s.validatePaymentInput(input); err != nil {
		return declinedPayment(CodeInvalidRequest, err.Error()), nil
	}
	requestHash, err := hashPaymentRequest(input)
	if err != nil {
		return declinedPayment(CodeInvalidRequest, err.Error()), nil
	}

	if result, done := s.replayIfKnown(ctx, input.IdempotencyKey, requestHash); done {
		return result, nil
	}

	now := s.clock.now()
	day := usageDay(now)
	usage, err := s.gatewayRepo.WithTx(s.db.WithContext(ctx)).UsageByDay(day)
	if err != nil {
		log.Errorw("payment_process_usage_load_failed", "error", err)
		return declinedPayment(CodeInternalError, "load gateway usage failed"), nil
	}
	candidate, ok := s.selector.Select(gateway.Request{
		Amount:   input.Amount,
		Currency: input.Currency,
		Country:  input.Country,
	}, gateway.UsageSnapshot(usage))
	if !ok {
		log.Infow("payment_process_no_gateway", "amount", input.Amount.String(), "currency", input.Currency, "country", input.Country)
		return declinedPayment(CodeNoGatewayAvailable, "no gateway admits the request"), nil
	}

	score, err := s.assessRisk(ctx, input, now)
	if err != nil {
		log.Errorw("payment_process_risk_history_failed", "payer_id", input.PayerID, "error", err)
		return declinedPayment(CodeInternalError, "load payer history failed"), nil
	}
	if s.assessor.Blocked(score) {
		log.Warnw("payment_process_risk_blocked", "payer_id", input.PayerID, "risk_score", score)
		result := declinedPayment(CodeRiskBlocked, "risk score exceeds block threshold")
		result.RiskScore = score
		return result, nil
	}

	txn := s.buildPayment(input, candidate, score, now)
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		created, err := s.idemRepo.WithTx(tx).CreateIfAbsent(&models.IdempotencyKey{
			Key:           input.IdempotencyKey,
			Scope:         idempotencyScopePayment,
			RequestHash:   requestHash,
			TransactionNo: txn.TransactionNo,
			CreatedAt:     now,
		})
		if err != nil {
			return err
		}
		if !created {
			return errIdempotencyRace
		}
		if candidate.Gateway.DailyLimit.IsPositive() {
			reserved, err := s.gatewayRepo.WithTx(tx).ReserveUsage(candidate.Gateway.GatewayID, day, input.Amount, candidate.Gateway.DailyLimit)
			if err != nil {
				return err
			}
			if !reserved {
				return ErrNoGatewayAvailable
			}
		}
		if _, err := s.accounts.CreateAccountIfAbsentTx(tx, input.PayerID, constants.AccountTypeFan); err != nil {
			return err
		}
		if _, err := s.accounts.CreateAccountIfAbsentTx(tx, input.PayeeID, constants.AccountTypeCreator); err != nil {
			return err
		}
		txnRepo := s.txnRepo.WithTx(tx)
		if err := txnRepo.Create(txn); err != nil {
			return err
		}
		entries, err := s.engine.Post(txn)
		if err != nil {
			return err
		}
		if err := postEntries(tx, s.ledgerRepo, entries, txn.Kind, false); err != nil {
			return err
		}
		if err := s.transition(tx, txn, constants.TransactionStatusProcessing, nil); err != nil {
			return err
		}
		return writeOutboxEvent(tx, s.outboxRepo, constants.EventPaymentInitiated, txn, now)
	})
	if err != nil {
		switch {
		case errors.Is(err, errIdempotencyRace):
			return s.replayAfterRace(ctx, input.IdempotencyKey, requestHash), nil
		case errors.Is(err, ErrNoGatewayAvailable):
			log.Infow("payment_process_daily_limit_exhausted", "gateway_id", candidate.Gateway.GatewayID)
			return declinedPayment(CodeNoGatewayAvailable, "gateway daily limit exhausted"), nil
		case IsFatal(err):
			log.Errorw("payment_process_unbalanced_posting", "transaction_no", txn.TransactionNo, "error", err)
			observePayment(CodeUnbalancedPosting)
			return &PaymentResult{ErrorCode: CodeUnbalancedPosting, Message: err.Error()}, err
		default:
			log.Errorw("payment_process_failed", "transaction_no", txn.TransactionNo, "error", err)
			return declinedPayment(CodeInternalError, "payment could not be recorded"), nil
		}
	}

	observePayment("")
	paymentAmountTotal.WithLabelValues(txn.Currency).Add(txn.OriginalAmount.InexactFloat64())
	log.Infow("payment_process_accepted",
		"transaction_no", txn.TransactionNo,
		"gateway_id", txn.GatewayID,
		"amount", txn.OriginalAmount.String(),
		"fee", txn.FeeAmount.String(),
		"risk_score", score,
	)
	s.dispatchAuthorization(ctx, txn.TransactionNo)
	return paymentResultFrom(txn, false), nil
}

func (s *TransactionService) dispatchAuthorization(ctx context.Context, transactionNo string) {
	if s.dispatcher == nil {
		return
	}
	log := logger.FromContext(ctx)
	if err := s.dispatcher.EnqueuePaymentAuthorize(transactionNo); err != nil {
		log.Warnw("payment_authorize_enqueue_failed", "transaction_no", transactionNo, "error", err)
	}
	if err := s.dispatcher.EnqueuePaymentAuthTimeout(transactionNo, s.cfg.AuthorizationTimeout()); err != nil {
		log.Warnw("payment_auth_timeout_enqueue_failed", "transaction_no", transactionNo, "error", err)
	}
}

func (s *TransactionService) validatePaymentInput(input ProcessPaymentInput) error {
	if !input.Amount.IsPositive() {
		return fmt.Errorf("%w: amount must be positive", ErrInvalidRequest)
	}
	if !s.registry.SupportsCurrency(input.Currency) {
		return fmt.Errorf("%w: unsupported currency %q", ErrInvalidRequest, input.Currency)
	}
	if input.PayerID == "" || input.PayeeID == "" {
		return fmt.Errorf("%w: payer_id and payee_id are required", ErrInvalidRequest)
	}
	if input.PayerID == input.PayeeID {
		return fmt.Errorf("%w: payer and payee must differ", ErrInvalidRequest)
	}
	if s.accounts.IsSystemUser(input.PayerID) || s.accounts.IsSystemUser(input.PayeeID) {
		return fmt.Errorf("%w: system accounts cannot take part in payments", ErrInvalidRequest)
	}
	if input.IdempotencyKey == "" {
		return fmt.Errorf("%w: idempotency key is required", ErrInvalidRequest)
	}
	if len(input.IdempotencyKey) > 128 {
		return fmt.Errorf("%w: idempotency key is too long", ErrInvalidRequest)
	}
	return nil
}

func (s *TransactionService) assessRisk(ctx context.Context, input ProcessPaymentInput, now time.Time) (int, error) {
	repo := s.txnRepo.WithTx(s.db.WithContext(ctx))
	row, err := repo.PayerHistory(input.PayerID, now.Add(-s.cfg.VelocityWindow()))
	if err != nil {
		return 0, err
	}
	history := risk.History{
		RecentPayments:     row.RecentPayments,
		RecentFailures:     row.RecentFailures,
		Chargebacks:        row.Chargebacks,
		VerificationStatus: constants.VerificationUnverified,
	}
	account, err := s.accounts.GetAccount(ctx, input.PayerID)
	if err != nil && !errors.Is(err, ErrAccountNotFound) {
		return 0, err
	}
	if account != nil {
		history.VerificationStatus = account.VerificationStatus
		history.TaxCountry = account.TaxCountry
	}
	return s.assessor.Assess(risk.Request{Amount: input.Amount, Country: input.Country}, history), nil
}

func (s *TransactionService) buildPayment(input ProcessPaymentInput, candidate *gateway.Candidate, score int, now time.Time) *models.Transaction {
	metadata := models.JSON{}
	for key, value := range input.Metadata {
		metadata[key] = value
	}
	flags := models.StringArray{}
	if score >= highRiskScore {
		flags = append(flags, constants.ComplianceFlagHighRisk)
	}
	if taxApplicable, ok := metadata["tax_applicable"].(bool); ok && taxApplicable {
		flags = append(flags, constants.ComplianceFlagTax)
	}
	return &models.Transaction{
		TransactionNo:   newTransactionNo(constants.TransactionNoPrefix),
		Kind:            constants.TransactionKindPayment,
		Status:          constants.TransactionStatusPending,
		OriginalAmount:  input.Amount,
		NetAmount:       candidate.Net,
		FeeAmount:       candidate.Fee,
		Currency:        input.Currency,
		PayerID:         input.PayerID,
		PayeeID:         input.PayeeID,
		PlatformID:      s.accounts.platformUserID(),
		GatewayID:       candidate.Gateway.GatewayID,
		Reference:       constants.TransactionRefPrefix + uuid.NewString(),
		Metadata:        metadata,
		PaymentMethod:   input.PaymentMethod,
		Country:         input.Country,
		RiskScore:       score,
		ComplianceFlags: flags,
		CreatedAt:       now,
		UpdatedAt:       now,
		Version:         1,
	}
}

// replayIfKnown 幂等键已存在时返回重放结果
func (s *TransactionService) replayIfKnown(ctx context.Context, key, requestHash string) (*PaymentResult, bool) {
	record, err := s.idemRepo.WithTx(s.db.WithContext(ctx)).Get(key)
	if err != nil {
		logger.FromContext(ctx).Errorw("payment_process_idempotency_lookup_failed", "error", err)
		return declinedPayment(CodeInternalError, "idempotency lookup failed"), true
	}
	if record == nil {
		return nil, false
	}
	return s.replay(ctx, record, requestHash), true
}

func (s *TransactionService) replayAfterRace(ctx context.Context, key, requestHash string) *PaymentResult {
	record, err := s.idemRepo.WithTx(s.db.WithContext(ctx)).Get(key)
	if err != nil || record == nil {
		return declinedPayment(CodeIdempotencyConflict, "idempotency key is being processed")
	}
	return s.replay(ctx, record, requestHash)
}

func (s *TransactionService) replay(ctx context.Context, record *models.IdempotencyKey, requestHash string) *PaymentResult {
	if record.RequestHash != requestHash {
		return declinedPayment(CodeIdempotencyKeyReused, "idempotency key was used with a different request")
	}
	txn, err := s.txnRepo.WithTx(s.db.WithContext(ctx)).GetByNo(record.TransactionNo)
	if err != nil || txn == nil {
		return declinedPayment(CodeIdempotencyConflict, "idempotent transaction not readable")
	}
	logger.FromContext(ctx).Debugw("payment_process_replayed", "transaction_no", txn.TransactionNo)
	return paymentResultFrom(txn, true)
}

// transition 校验状态机后按版本号更新交易状态
func (s *TransactionService) transition(tx *gorm.DB, txn *models.Transaction, to string, updates map[string]interface{}) error {
	return transitionTxn(s.txnRepo.WithTx(tx), txn, to, updates, s.clock.now())
}

func transitionTxn(repo repository.TransactionRepository, txn *models.Transaction, to string, updates map[string]interface{}, now time.Time) error {
	if !transitionAllowed(txn.Status, to) {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidStateTransition, txn.Status, to)
	}
	values := map[string]interface{}{"updated_at": now}
	for key, value := range updates {
		values[key] = value
	}
	ok, err := repo.Transition(txn, to, values)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("%w: %s changed concurrently", ErrInvalidStateTransition, txn.TransactionNo)
	}
	return nil
}

func normalizePaymentInput(input ProcessPaymentInput) ProcessPaymentInput {
	input.Currency = gateway.NormalizeCurrency(input.Currency)
	input.PayerID = strings.TrimSpace(input.PayerID)
	input.PayeeID = strings.TrimSpace(input.PayeeID)
	input.PaymentMethod = strings.TrimSpace(input.PaymentMethod)
	input.Country = strings.ToUpper(strings.TrimSpace(input.Country))
	input.IdempotencyKey = strings.TrimSpace(input.IdempotencyKey)
	return input
}

// hashPaymentRequest 计算请求摘要，map 序列化时键有序
func hashPaymentRequest(input ProcessPaymentInput) (string, error) {
	canonical := map[string]interface{}{
		"amount":         input.Amount.String(),
		"currency":       input.Currency,
		"payer_id":       input.PayerID,
		"payee_id":       input.PayeeID,
		"payment_method": input.PaymentMethod,
		"country":        input.Country,
		"metadata":       input.Metadata,
	}
	data, err := json.Marshal(canonical)
	if err != nil {
		return "", fmt.Errorf("%w: metadata is not serializable", ErrInvalidRequest)
	}
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:]), nil
}

func declinedPayment(code ErrorCode, message string) *PaymentResult {
	observePayment(code)
	return &PaymentResult{ErrorCode: code, Message: message}
}

func paymentResultFrom(txn *models.Transaction, replayed bool) *PaymentResult {
	return &PaymentResult{
		Success:       true,
		TransactionNo: txn.TransactionNo,
		Status:        txn.Status,
		GatewayID:     txn.GatewayID,
		Amount:        txn.OriginalAmount,
		FeeAmount:     txn.FeeAmount,
		NetAmount:     txn.NetAmount,
		Currency:      txn.Currency,
		RiskScore:     txn.RiskScore,
		Replayed:      replayed,
	}
}
