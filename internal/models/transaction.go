package models

import (
	"time"
)

// Transaction 资金交易
type Transaction struct {
	ID               uint        `gorm:"primarykey" json:"-"`                                          // 主键
	TransactionNo    string      `gorm:"type:varchar(64);uniqueIndex;not null" json:"transaction_no"`  // 交易编号
	Kind             string      `gorm:"type:varchar(32);index;not null" json:"kind"`                  // 交易类型
	Status           string      `gorm:"type:varchar(32);index;not null" json:"status"`                // 交易状态
	OriginalAmount   Money       `gorm:"type:decimal(20,2);not null;default:0" json:"original_amount"` // 原始金额
	NetAmount        Money       `gorm:"type:decimal(20,2);not null;default:0" json:"net_amount"`      // 净额
	FeeAmount        Money       `gorm:"type:decimal(20,2);not null;default:0" json:"fee_amount"`      // 手续费
	Currency         string      `gorm:"type:varchar(16);not null" json:"currency"`                    // 币种
	PayerID          string      `gorm:"type:varchar(64);index" json:"payer_id"`                       // 付款方
	PayeeID          string      `gorm:"type:varchar(64);index" json:"payee_id"`                       // 收款方
	PlatformID       string      `gorm:"type:varchar(64)" json:"platform_id"`                          // 平台账户
	GatewayID        string      `gorm:"type:varchar(64);index" json:"gateway_id"`                     // 网关标识
	GatewayTxnID     string      `gorm:"type:varchar(128)" json:"gateway_transaction_id"`              // 网关流水号
	Reference        string      `gorm:"type:varchar(128);index;not null" json:"reference"`            // 分录共享引用
	ParentNo         string      `gorm:"type:varchar(64);index" json:"parent_no,omitempty"`            // 关联交易编号
	Metadata         JSON        `gorm:"type:json" json:"metadata"`                                    // 业务元数据
	PaymentMethod    string      `gorm:"type:varchar(64)" json:"payment_method"`                       // 支付方式
	Country          string      `gorm:"type:varchar(8)" json:"country"`                               // 国家
	RiskScore        int         `gorm:"not null;default:0" json:"risk_score"`                         // 风险评分
	ComplianceFlags  StringArray `gorm:"type:json" json:"compliance_flags"`                            // 合规标记
	FailureReason    string      `gorm:"type:varchar(255)" json:"failure_reason,omitempty"`            // 失败原因
	CreatedAt        time.Time   `gorm:"index" json:"created_at"`                                      // 创建时间
	UpdatedAt        time.Time   `json:"updated_at"`                                                   // 更新时间
	AuthorizedAt     *time.Time  `json:"authorized_at,omitempty"`                                      // 授权时间
	CompletedAt      *time.Time  `gorm:"index" json:"completed_at,omitempty"`                          // 完成时间
	FailedAt         *time.Time  `json:"failed_at,omitempty"`                                          // 失败时间
	CancelledAt      *time.Time  `json:"cancelled_at,omitempty"`                                       // 取消时间
	DisputedAt       *time.Time  `json:"disputed_at,omitempty"`                                        // 争议时间
	SettledAt        *time.Time  `json:"settled_at,omitempty"`                                         // 结算时间
	EstimatedArrival *time.Time  `json:"estimated_arrival,omitempty"`                                  // 预计到账时间
	Version          int         `gorm:"not null;default:1" json:"version"`                            // 乐观锁版本
}

// TableName 指定表名
func (Transaction) TableName() string {
	return "transactions"
}
