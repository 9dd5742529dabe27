package ledger

import (
	"errors"
	"fmt"
	"time"

	"github.com/fanzfinance/internal/constants"
	"github.com/fanzfinance/internal/models"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

var (
	// ErrUnbalancedPosting 借贷不平衡或分录金额不合法
	ErrUnbalancedPosting = errors.New("unbalanced posting")
	// ErrUnsupportedKind 交易类型不支持记账
	ErrUnsupportedKind = errors.New("unsupported transaction kind for posting")
)

// Engine 复式记账引擎，只生成分录，不负责持久化
type Engine struct {
	now   func() time.Time
	newID func() string
}

// NewEngine 创建记账引擎
func NewEngine(now func() time.Time) *Engine {
	if now == nil {
		now = func() time.Time { return time.Now().UTC() }
	}
	return &Engine{
		now:   now,
		newID: func() string { return constants.LedgerEntryNoPrefix + uuid.NewString() },
	}
}

type leg struct {
	code        string
	debit       bool
	amount      models.Money
	description string
}

// Post 按交易类型生成分录并校验借贷平衡
func (e *Engine) Post(txn *models.Transaction) ([]models.LedgerEntry, error) {
	if txn == nil {
		return nil, fmt.Errorf("%w: nil transaction", ErrUnsupportedKind)
	}
	var legs []leg
	switch txn.Kind {
	case constants.TransactionKindPayment:
		legs = []leg{
			{code: constants.AccountCodeCash, debit: true, amount: txn.OriginalAmount, description: "Payment received from " + txn.PayerID},
			{code: constants.AccountCodeCreatorEscrow, amount: txn.NetAmount, description: "Escrow for creator " + txn.PayeeID},
			{code: constants.AccountCodeCommissionRevenue, amount: txn.FeeAmount, description: "Platform commission on transaction"},
		}
	case constants.TransactionKindPayout:
		legs = []leg{
			{code: constants.AccountCodeCreatorEscrow, debit: true, amount: txn.NetAmount, description: "Payout to creator " + txn.PayeeID},
			{code: constants.AccountCodeCash, amount: txn.NetAmount, description: "Cash disbursed to creator " + txn.PayeeID},
		}
	case constants.TransactionKindFee:
		legs = []leg{
			{code: constants.AccountCodeCreatorEscrow, debit: true, amount: txn.OriginalAmount, description: "Fee charged to " + txn.PayeeID},
			{code: constants.AccountCodeTransactionFee, amount: txn.OriginalAmount, description: "Transaction fee revenue"},
		}
	case constants.TransactionKindRefund, constants.TransactionKindChargeback:
		legs = []leg{
			{code: constants.AccountCodeCreatorEscrow, debit: true, amount: txn.NetAmount, description: "Escrow returned for " + txn.Kind},
			{code: constants.AccountCodeCommissionRevenue, debit: true, amount: txn.FeeAmount, description: "Commission returned for " + txn.Kind},
			{code: constants.AccountCodeCash, amount: txn.OriginalAmount, description: "Cash returned to " + txn.PayerID},
		}
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedKind, txn.Kind)
	}

	entries := make([]models.LedgerEntry, 0, len(legs))
	createdAt := e.now()
	for _, l := range legs {
		if l.amount.IsZero() {
			continue
		}
		entry, err := e.newEntry(txn, l, createdAt)
		if err != nil {
			return nil, err
		}
		entries = append(entries, entry)
	}
	if err := Validate(entries); err != nil {
		return nil, err
	}
	return entries, nil
}

// Reverse 生成借贷对调的冲正分录，引用原交易
func (e *Engine) Reverse(txn *models.Transaction, original []models.LedgerEntry) ([]models.LedgerEntry, error) {
	reversed := make([]models.LedgerEntry, 0, len(original))
	createdAt := e.now()
	for _, entry := range original {
		if entry.Reversal {
			continue
		}
		reversed = append(reversed, models.LedgerEntry{
			EntryNo:       e.newID(),
			TransactionNo: txn.TransactionNo,
			AccountType:   entry.AccountType,
			AccountCode:   entry.AccountCode,
			AccountName:   entry.AccountName,
			DebitAmount:   entry.CreditAmount,
			CreditAmount:  entry.DebitAmount,
			Currency:      entry.Currency,
			Description:   "Reversal: " + entry.Description,
			Reference:     txn.Reference + constants.ReversalReferenceSuffix,
			Reversal:      true,
			CreatedAt:     createdAt,
		})
	}
	if err := Validate(reversed); err != nil {
		return nil, err
	}
	return reversed, nil
}

// Validate 校验每条分录只有一侧非零且非负，且借贷总额相等
func Validate(entries []models.LedgerEntry) error {
	if len(entries) == 0 {
		return fmt.Errorf("%w: empty entry set", ErrUnbalancedPosting)
	}
	debit := decimal.Zero
	credit := decimal.Zero
	for _, entry := range entries {
		if entry.DebitAmount.IsNegative() || entry.CreditAmount.IsNegative() {
			return fmt.Errorf("%w: negative amount on %s", ErrUnbalancedPosting, entry.EntryNo)
		}
		if entry.DebitAmount.IsZero() == entry.CreditAmount.IsZero() {
			return fmt.Errorf("%w: entry %s must have exactly one side", ErrUnbalancedPosting, entry.EntryNo)
		}
		debit = debit.Add(entry.DebitAmount.Decimal)
		credit = credit.Add(entry.CreditAmount.Decimal)
	}
	if !debit.Equal(credit) {
		return fmt.Errorf("%w: debit %s != credit %s", ErrUnbalancedPosting, debit.StringFixed(2), credit.StringFixed(2))
	}
	return nil
}

func (e *Engine) newEntry(txn *models.Transaction, l leg, createdAt time.Time) (models.LedgerEntry, error) {
	account, ok := LookupAccount(l.code)
	if !ok {
		return models.LedgerEntry{}, fmt.Errorf("%w: unknown account %s", ErrUnbalancedPosting, l.code)
	}
	entry := models.LedgerEntry{
		EntryNo:       e.newID(),
		TransactionNo: txn.TransactionNo,
		AccountType:   account.Type,
		AccountCode:   account.Code,
		AccountName:   account.Name,
		Currency:      txn.Currency,
		Description:   l.description,
		Reference:     txn.Reference,
		CreatedAt:     createdAt,
	}
	if l.debit {
		entry.DebitAmount = l.amount
	} else {
		entry.CreditAmount = l.amount
	}
	return entry, nil
}
