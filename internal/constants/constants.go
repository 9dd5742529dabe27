package constants

// 交易类型常量
const (
	TransactionKindPayment    = "payment"
	TransactionKindRefund     = "refund"
	TransactionKindChargeback = "chargeback"
	TransactionKindFee        = "fee"
	TransactionKindPayout     = "payout"
	TransactionKindCommission = "commission"
)

// 交易状态常量
const (
	TransactionStatusPending    = "pending"
	TransactionStatusProcessing = "processing"
	TransactionStatusCompleted  = "completed"
	TransactionStatusFailed     = "failed"
	TransactionStatusCancelled  = "cancelled"
	TransactionStatusDisputed   = "disputed"
)

// 网关类型常量
const (
	GatewayTypeCard        = "card"
	GatewayTypeCrypto      = "crypto"
	GatewayTypeBank        = "bank"
	GatewayTypeWallet      = "wallet"
	GatewayTypeAlternative = "alternative"
)

// 网关状态常量
const (
	GatewayStatusActive      = "active"
	GatewayStatusMaintenance = "maintenance"
	GatewayStatusDisabled    = "disabled"
)

// 网关能力常量
const (
	GatewayFeatureRecurring       = "recurring"
	GatewayFeatureRefunds         = "refunds"
	GatewayFeatureDisputes        = "disputes"
	GatewayFeatureFraudProtection = "fraud_protection"
)

// GatewayCountryWildcard 支持全部国家
const GatewayCountryWildcard = "*"

// 会计科目类型常量
const (
	LedgerAccountAsset     = "asset"
	LedgerAccountLiability = "liability"
	LedgerAccountEquity    = "equity"
	LedgerAccountRevenue   = "revenue"
	LedgerAccountExpense   = "expense"
)

// 科目编码常量
const (
	AccountCodeCash               = "1000"
	AccountCodeReceivable         = "1100"
	AccountCodeCreatorEscrow      = "1200"
	AccountCodePayable            = "2000"
	AccountCodeAccruedLiabilities = "2100"
	AccountCodeTaxWithholdings    = "2200"
	AccountCodeRetainedEarnings   = "3000"
	AccountCodePlatformRevenue    = "4000"
	AccountCodeCommissionRevenue  = "4100"
	AccountCodeTransactionFee     = "4200"
	AccountCodeProcessingCosts    = "5000"
	AccountCodeOperationalExpense = "5100"
	AccountCodeTaxExpense         = "5200"
)

// 资金账户类型常量
const (
	AccountTypeCreator    = "creator"
	AccountTypeFan        = "fan"
	AccountTypePlatform   = "platform"
	AccountTypeEscrow     = "escrow"
	AccountTypeTaxReserve = "tax_reserve"
)

// 余额桶常量
const (
	BucketAvailable = "available"
	BucketPending   = "pending"
	BucketReserved  = "reserved"
)

// 认证状态常量
const (
	VerificationUnverified = "unverified"
	VerificationPartial    = "partial"
	VerificationVerified   = "verified"
	VerificationSuspended  = "suspended"
)

// 税表状态常量
const (
	TaxFormPending   = "pending"
	TaxFormSubmitted = "submitted"
	TaxFormApproved  = "approved"
	TaxFormRejected  = "rejected"
)

// 提现目标类型常量
const (
	PayoutDestinationBank   = "bank_account"
	PayoutDestinationCrypto = "crypto_wallet"
	PayoutDestinationPaypal = "paypal"
)

// 事件类型常量
const (
	EventPaymentInitiated = "payment:initiated"
	EventPaymentCompleted = "payment:completed"
	EventPaymentFailed    = "payment:failed"
	EventPaymentCancelled = "payment:cancelled"
	EventPaymentDisputed  = "payment:disputed"
	EventRefundCompleted  = "refund:completed"
	EventPayoutInitiated  = "payout:initiated"
	EventPayoutCompleted  = "payout:completed"
	EventPayoutFailed     = "payout:failed"
)

// 合规标记常量
const (
	ComplianceFlagHighRisk = "high_risk"
	ComplianceFlagDisputed = "disputed"
	ComplianceFlagTax      = "tax_applicable"
)

// 队列名称常量
const (
	QueueDefault  = "default"
	QueueCritical = "critical"
)

// 异步任务类型常量
const (
	TaskPaymentAuthorize   = "payment:authorize"
	TaskPaymentAuthTimeout = "payment:authorization_timeout"
	TaskSettlementRelease  = "settlement:release"
	TaskPayoutDisburse     = "payout:disburse"
)

// 编号前缀与系统账户常量
const (
	TransactionNoPrefix       = "txn_"
	PayoutNoPrefix            = "payout_"
	LedgerEntryNoPrefix       = "le_"
	AccountNoPrefix           = "acc_"
	TransactionRefPrefix      = "ref_"
	ReversalReferenceSuffix   = ":reversal"
	DefaultPlatformUserID     = "fanz_platform"
	DefaultEscrowUserID       = "fanz_escrow"
	DefaultTaxReserveUserID   = "fanz_tax_reserve"
	DefaultSettlementCurrency = "USD"
)
