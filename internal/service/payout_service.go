package service

import (
	"context"
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

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

const (
	payoutReferencePrefix = "payout_ref_"
	payoutFeeSuffix       = ":fee"
	payoutRiskScore       = 10
)

// payoutGateways 提现目标对应的出款网关
var payoutGateways = map[string]string{
	constants.PayoutDestinationBank:   "bank_transfer_gateway",
	constants.PayoutDestinationCrypto: "crypto_gateway",
}

// PayoutServiceOptions 提现服务依赖
type PayoutServiceOptions struct {
	DB         *gorm.DB
	TxnRepo    repository.TransactionRepository
	LedgerRepo repository.LedgerRepository
	OutboxRepo repository.OutboxRepository
	Accounts   *AccountService
	Registry   *gateway.Registry
	Engine     *ledger.Engine
	Disburser  payment.Disburser
	Dispatcher TaskDispatcher
	Config     config.FinanceConfig
	Clock      Clock
}

// PayoutService 提现服务
type PayoutService struct {
	db         *gorm.DB
	txnRepo    repository.TransactionRepository
	ledgerRepo repository.LedgerRepository
	outboxRepo repository.OutboxRepository
	accounts   *AccountService
	registry   *gateway.Registry
	engine     *ledger.Engine
	disburser  payment.Disburser
	dispatcher TaskDispatcher
	cfg        config.FinanceConfig
	clock      Clock
}

// PayoutDestination 提现目标
type PayoutDestination struct {
	Type    string                 `json:"type"`
	Details map[string]interface{} `json:"details"`
}

// PayoutInput 提现请求
type PayoutInput struct {
	CreatorID   string
	Amount      models.Money
	Currency    string
	Destination PayoutDestination
}

// PayoutResult 提现受理结果
type PayoutResult struct {
	Success          bool         `json:"success"`
	PayoutID         string       `json:"payout_id,omitempty"`
	Status           string       `json:"status,omitempty"`
	Amount           models.Money `json:"amount"`
	FeeAmount        models.Money `json:"fee_amount"`
	NetAmount        models.Money `json:"net_amount"`
	Currency         string       `json:"currency,omitempty"`
	EstimatedArrival *time.Time   `json:"estimated_arrival,omitempty"`
	ErrorCode        ErrorCode    `json:"error_code,omitempty"`
	Message          string       `json:"message,omitempty"`
}

// NewPayoutService 创建提现服务
func NewPayoutService(opts PayoutServiceOptions) *PayoutService {
	engine := opts.Engine
	if engine == nil {
		engine = ledger.NewEngine(opts.Clock.now)
	}
	return &PayoutService{
		db:         opts.DB,
		txnRepo:    opts.TxnRepo,
		ledgerRepo: opts.LedgerRepo,
		outboxRepo: opts.OutboxRepo,
		accounts:   opts.Accounts,
		registry:   opts.Registry,
		engine:     engine,
		disburser:  opts.Disburser,
		dispatcher: opts.Dispatcher,
		cfg:        opts.Config,
		clock:      opts.Clock,
	}
}

// SetDispatcher 设置异步任务投递器
func (s *PayoutService) SetDispatcher(dispatcher TaskDispatcher) {
	s.dispatcher = dispatcher
}

// RequestPayout 扣减可用余额并登记提现义务，打款由外部执行
// 任何失败都不修改余额也不创建交易
func (s *PayoutService) RequestPayout(ctx context.Context, input PayoutInput) (*PayoutResult, error) {
	log := logger.FromContext(ctx)
	input.CreatorID = strings.TrimSpace(input.CreatorID)
	input.Currency = gateway.NormalizeCurrency(input.Currency)
	input.Destination.Type = strings.ToLower(strings.TrimSpace(input.Destination.Type))
	if err := s.validate(input); err != nil {
		return declinedPayout(CodeInvalidRequest, err.Error()), nil
	}

	now := s.clock.now()
	fee, net := s.payoutFee(input.Amount)
	arrival := now.Add(s.cfg.PayoutSettlementDelay(input.Destination.Type))
	var payout *models.Transaction
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		account, err := s.accounts.GetAccountTx(tx, input.CreatorID)
		if err != nil {
			return err
		}
		if account.VerificationStatus == constants.VerificationSuspended {
			return ErrAccountSuspended
		}
		if !strings.EqualFold(account.Currency, input.Currency) {
			return fmt.Errorf("%w: account currency is %s", ErrInvalidRequest, account.Currency)
		}
		if err := s.accounts.DebitTx(tx, input.CreatorID, constants.BucketAvailable, input.Amount); err != nil {
			return err
		}

		txnRepo := s.txnRepo.WithTx(tx)
		reference := payoutReferencePrefix + uuid.NewString()
		payout = &models.Transaction{
			TransactionNo:  newTransactionNo(constants.PayoutNoPrefix),
			Kind:           constants.TransactionKindPayout,
			Status:         constants.TransactionStatusPending,
			OriginalAmount: input.Amount,
			NetAmount:      net,
			FeeAmount:      fee,
			Currency:       input.Currency,
			PayerID:        s.accounts.platformUserID(),
			PayeeID:        input.CreatorID,
			PlatformID:     s.accounts.platformUserID(),
			GatewayID:      payoutGateways[input.Destination.Type],
			Reference:      reference,
			Metadata: models.JSON{
				"payout_destination":  input.Destination.Type,
				"destination_details": input.Destination.Details,
			},
			RiskScore:        payoutRiskScore,
			ComplianceFlags:  models.StringArray{},
			EstimatedArrival: &arrival,
			CreatedAt:        now,
			UpdatedAt:        now,
			Version:          1,
		}
		if err := txnRepo.Create(payout); err != nil {
			return err
		}
		entries, err := s.engine.Post(payout)
		if err != nil {
			return err
		}
		if err := postEntries(tx, s.ledgerRepo, entries, payout.Kind, false); err != nil {
			return err
		}
		if fee.IsPositive() {
			if err := s.recordFee(tx, payout, now); err != nil {
				return err
			}
		}
		if err := transitionTxn(txnRepo, payout, constants.TransactionStatusProcessing, nil, now); err != nil {
			return err
		}
		return writeOutboxEvent(tx, s.outboxRepo, constants.EventPayoutInitiated, payout, now)
	})
	if err != nil {
		code := CodeOf(err)
		switch code {
		case CodeAccountNotFound, CodeAccountSuspended, CodeInsufficientFunds, CodeInvalidRequest:
			log.Infow("payout_request_rejected", "creator_id", input.CreatorID, "amount", input.Amount.String(), "code", code)
			return declinedPayout(code, err.Error()), nil
		case CodeUnbalancedPosting:
			log.Errorw("payout_request_unbalanced_posting", "creator_id", input.CreatorID, "error", err)
			observePayout(string(code))
			return &PayoutResult{ErrorCode: code, Message: err.Error()}, err
		default:
			log.Errorw("payout_request_failed", "creator_id", input.CreatorID, "error", err)
			return declinedPayout(CodeInternalError, "payout could not be recorded"), nil
		}
	}

	observePayout("initiated")
	log.Infow("payout_request_accepted",
		"payout_id", payout.TransactionNo,
		"creator_id", payout.PayeeID,
		"amount", payout.OriginalAmount.String(),
		"destination", input.Destination.Type,
	)
	if s.dispatcher != nil {
		if err := s.dispatcher.EnqueuePayoutDisburse(payout.TransactionNo); err != nil {
			log.Warnw("payout_disburse_enqueue_failed", "payout_id", payout.TransactionNo, "error", err)
		}
	}
	return &PayoutResult{
		Success:          true,
		PayoutID:         payout.TransactionNo,
		Status:           payout.Status,
		Amount:           payout.OriginalAmount,
		FeeAmount:        payout.FeeAmount,
		NetAmount:        payout.NetAmount,
		Currency:         payout.Currency,
		EstimatedArrival: payout.EstimatedArrival,
	}, nil
}

// DisbursePayout 调用外部打款，成功置为 completed，失败冲正并退回可用余额
func (s *PayoutService) DisbursePayout(ctx context.Context, payoutNo string) error {
	log := logger.FromContext(ctx)
	txn, err := s.txnRepo.WithTx(s.db.WithContext(ctx)).GetByNo(payoutNo)
	if err != nil {
		return err
	}
	if txn == nil || txn.Kind != constants.TransactionKindPayout {
		return ErrTransactionNotFound
	}
	if txn.Status != constants.TransactionStatusProcessing {
		log.Debugw("payout_disburse_skip", "payout_id", payoutNo, "status", txn.Status)
		return nil
	}
	if s.disburser == nil {
		return payment.ErrExecutorUnavailable
	}
	destinationType, _ := txn.Metadata["payout_destination"].(string)
	details, _ := txn.Metadata["destination_details"].(map[string]interface{})
	result, err := s.disburser.Disburse(ctx, payment.DisburseRequest{
		TransactionNo:   txn.TransactionNo,
		PayeeID:         txn.PayeeID,
		Amount:          txn.NetAmount,
		Currency:        txn.Currency,
		DestinationType: destinationType,
		Destination:     models.JSON(details),
	})
	if err != nil {
		// 打款通道异常时保持 processing，由任务重试
		log.Warnw("payout_disburse_error", "payout_id", payoutNo, "error", err)
		return err
	}
	if result != nil && result.Succeeded {
		return s.completePayout(ctx, payoutNo, result.ProviderRef)
	}
	reason := "disbursement rejected"
	if result != nil && result.FailureReason != "" {
		reason = result.FailureReason
	}
	return s.failPayout(ctx, payoutNo, reason)
}

func (s *PayoutService) completePayout(ctx context.Context, payoutNo, providerRef string) error {
	now := s.clock.now()
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		txnRepo := s.txnRepo.WithTx(tx)
		txn, err := txnRepo.GetByNo(payoutNo)
		if err != nil {
			return err
		}
		if txn == nil {
			return ErrTransactionNotFound
		}
		if err := transitionTxn(txnRepo, txn, constants.TransactionStatusCompleted, map[string]interface{}{
			"gateway_txn_id": providerRef,
			"completed_at":   now,
		}, now); err != nil {
			return err
		}
		return writeOutboxEvent(tx, s.outboxRepo, constants.EventPayoutCompleted, txn, now)
	})
	if err != nil {
		if errors.Is(err, ErrInvalidStateTransition) {
			return nil
		}
		return err
	}
	observePayout("completed")
	logger.FromContext(ctx).Infow("payout_completed", "payout_id", payoutNo, "provider_ref", providerRef)
	return nil
}

func (s *PayoutService) failPayout(ctx context.Context, payoutNo, reason string) error {
	now := s.clock.now()
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		txnRepo := s.txnRepo.WithTx(tx)
		ledgerRepo := s.ledgerRepo.WithTx(tx)
		txn, err := txnRepo.GetByNo(payoutNo)
		if err != nil {
			return err
		}
		if txn == nil {
			return ErrTransactionNotFound
		}
		if err := transitionTxn(txnRepo, txn, constants.TransactionStatusFailed, map[string]interface{}{
			"failure_reason": truncate(reason, 255),
			"failed_at":      now,
		}, now); err != nil {
			return err
		}

		related := []*models.Transaction{txn}
		feeTxn, err := txnRepo.GetByParentNo(txn.TransactionNo, constants.TransactionKindFee)
		if err != nil {
			return err
		}
		if feeTxn != nil {
			related = append(related, feeTxn)
		}
		for _, item := range related {
			entries, err := ledgerRepo.ListByTransactionNo(item.TransactionNo)
			if err != nil {
				return err
			}
			reversed, err := s.engine.Reverse(item, entries)
			if err != nil {
				return err
			}
			if err := postEntries(tx, s.ledgerRepo, reversed, item.Kind, true); err != nil {
				return err
			}
		}
		if err := s.accounts.CreditTx(tx, txn.PayeeID, constants.BucketAvailable, txn.OriginalAmount); err != nil {
			return err
		}
		return writeOutboxEvent(tx, s.outboxRepo, constants.EventPayoutFailed, txn, now)
	})
	if err != nil {
		if errors.Is(err, ErrInvalidStateTransition) {
			return nil
		}
		return err
	}
	observePayout("failed")
	logger.FromContext(ctx).Warnw("payout_failed", "payout_id", payoutNo, "reason", reason)
	return nil
}

// recordFee 登记提现手续费子交易
func (s *PayoutService) recordFee(tx *gorm.DB, payout *models.Transaction, now time.Time) error {
	feeTxn := &models.Transaction{
		TransactionNo:  newTransactionNo(constants.TransactionNoPrefix),
		Kind:           constants.TransactionKindFee,
		Status:         constants.TransactionStatusCompleted,
		OriginalAmount: payout.FeeAmount,
		NetAmount:      payout.FeeAmount,
		Currency:       payout.Currency,
		PayerID:        payout.PayeeID,
		PayeeID:        payout.PayeeID,
		PlatformID:     payout.PlatformID,
		Reference:      payout.Reference + payoutFeeSuffix,
		ParentNo:       payout.TransactionNo,
		Metadata:       models.JSON{"fee_type": "payout"},
		CreatedAt:      now,
		UpdatedAt:      now,
		CompletedAt:    &now,
		Version:        1,
	}
	if err := s.txnRepo.WithTx(tx).Create(feeTxn); err != nil {
		return err
	}
	entries, err := s.engine.Post(feeTxn)
	if err != nil {
		return err
	}
	return postEntries(tx, s.ledgerRepo, entries, feeTxn.Kind, false)
}

func (s *PayoutService) validate(input PayoutInput) error {
	if input.CreatorID == "" {
		return fmt.Errorf("%w: creator_id is required", ErrInvalidRequest)
	}
	if s.accounts.IsSystemUser(input.CreatorID) {
		return fmt.Errorf("%w: system accounts cannot request payouts", ErrInvalidRequest)
	}
	if !input.Amount.IsPositive() {
		return fmt.Errorf("%w: amount must be positive", ErrInvalidRequest)
	}
	if !s.registry.SupportsCurrency(input.Currency) {
		return fmt.Errorf("%w: unsupported currency %q", ErrInvalidRequest, input.Currency)
	}
	switch input.Destination.Type {
	case constants.PayoutDestinationBank, constants.PayoutDestinationCrypto, constants.PayoutDestinationPaypal:
	default:
		return fmt.Errorf("%w: unsupported destination type %q", ErrInvalidRequest, input.Destination.Type)
	}
	return nil
}

// payoutFee 按配置费率计算提现手续费
func (s *PayoutService) payoutFee(amount models.Money) (models.Money, models.Money) {
	percent := decimal.NewFromFloat(s.cfg.Payout.FeePercent)
	if percent.IsNegative() {
		percent = decimal.Zero
	}
	fee := models.NewMoneyFromDecimal(amount.Mul(percent).Div(decimal.NewFromInt(100)))
	if fee.GreaterThan(amount.Decimal) {
		fee = amount
	}
	return fee, amount.Sub(fee)
}

func declinedPayout(code ErrorCode, message string) *PayoutResult {
	observePayout(string(code))
	return &PayoutResult{ErrorCode: code, Message: message}
}
