package ledger

import "github.com/fanzfinance/internal/constants"

// ChartAccount 会计科目
type ChartAccount struct {
	Code string
	Name string
	Type string
}

// chartOfAccounts 科目表，托管账户在记账中按负债处理
var chartOfAccounts = map[string]ChartAccount{
	constants.AccountCodeCash:               {Code: constants.AccountCodeCash, Name: "Cash and Cash Equivalents", Type: constants.LedgerAccountAsset},
	constants.AccountCodeReceivable:         {Code: constants.AccountCodeReceivable, Name: "Accounts Receivable", Type: constants.LedgerAccountAsset},
	constants.AccountCodeCreatorEscrow:      {Code: constants.AccountCodeCreatorEscrow, Name: "Creator Escrow Accounts", Type: constants.LedgerAccountLiability},
	constants.AccountCodePayable:            {Code: constants.AccountCodePayable, Name: "Accounts Payable", Type: constants.LedgerAccountLiability},
	constants.AccountCodeAccruedLiabilities: {Code: constants.AccountCodeAccruedLiabilities, Name: "Accrued Liabilities", Type: constants.LedgerAccountLiability},
	constants.AccountCodeTaxWithholdings:    {Code: constants.AccountCodeTaxWithholdings, Name: "Tax Withholdings", Type: constants.LedgerAccountLiability},
	constants.AccountCodeRetainedEarnings:   {Code: constants.AccountCodeRetainedEarnings, Name: "Retained Earnings", Type: constants.LedgerAccountEquity},
	constants.AccountCodePlatformRevenue:    {Code: constants.AccountCodePlatformRevenue, Name: "Platform Revenue", Type: constants.LedgerAccountRevenue},
	constants.AccountCodeCommissionRevenue:  {Code: constants.AccountCodeCommissionRevenue, Name: "Commission Revenue", Type: constants.LedgerAccountRevenue},
	constants.AccountCodeTransactionFee:     {Code: constants.AccountCodeTransactionFee, Name: "Transaction Fee Revenue", Type: constants.LedgerAccountRevenue},
	constants.AccountCodeProcessingCosts:    {Code: constants.AccountCodeProcessingCosts, Name: "Payment Processing Costs", Type: constants.LedgerAccountExpense},
	constants.AccountCodeOperationalExpense: {Code: constants.AccountCodeOperationalExpense, Name: "Operational Expenses", Type: constants.LedgerAccountExpense},
	constants.AccountCodeTaxExpense:         {Code: constants.AccountCodeTaxExpense, Name: "Tax Expenses", Type: constants.LedgerAccountExpense},
}

// LookupAccount 按科目编码查询科目
func LookupAccount(code string) (ChartAccount, bool) {
	account, ok := chartOfAccounts[code]
	return account, ok
}
