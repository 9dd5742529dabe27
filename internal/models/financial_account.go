package models

import (
	"time"
)

// FinancialAccount 用户资金账户
type FinancialAccount struct {
	ID                 uint      `gorm:"primarykey" json:"-"`                                              // 主键
	AccountNo          string    `gorm:"type:varchar(96);uniqueIndex;not null" json:"account_no"`          // 账户编号
	UserID             string    `gorm:"type:varchar(64);uniqueIndex;not null" json:"user_id"`             // 用户标识
	Type               string    `gorm:"type:varchar(32);index;not null" json:"type"`                      // 账户类型
	Available          Money     `gorm:"type:decimal(20,2);not null;default:0" json:"available"`           // 可用余额
	Pending            Money     `gorm:"type:decimal(20,2);not null;default:0" json:"pending"`             // 待结算余额
	Reserved           Money     `gorm:"type:decimal(20,2);not null;default:0" json:"reserved"`            // 冻结余额
	Currency           string    `gorm:"type:varchar(16);not null" json:"currency"`                        // 币种
	DailySpendLimit    Money     `gorm:"type:decimal(20,2);not null;default:0" json:"daily_spend_limit"`   // 每日消费限额
	MonthlySpendLimit  Money     `gorm:"type:decimal(20,2);not null;default:0" json:"monthly_spend_limit"` // 每月消费限额
	WithdrawalLimit    Money     `gorm:"type:decimal(20,2);not null;default:0" json:"withdrawal_limit"`    // 提现限额
	VerificationStatus string    `gorm:"type:varchar(32);not null" json:"verification_status"`             // 认证状态
	KYCLevel           int       `gorm:"not null;default:1" json:"kyc_level"`                              // KYC 等级
	TaxID              string    `gorm:"type:varchar(64)" json:"tax_id,omitempty"`                         // 税号
	TaxCountry         string    `gorm:"type:varchar(8)" json:"tax_country,omitempty"`                     // 税务国家
	TaxFormStatus      string    `gorm:"type:varchar(32);not null" json:"tax_form_status"`                 // 税表状态
	Version            int       `gorm:"not null;default:1" json:"version"`                                // 版本号
	CreatedAt          time.Time `json:"created_at"`                                                       // 创建时间
	UpdatedAt          time.Time `json:"updated_at"`                                                       // 更新时间
}

// TableName 指定表名
func (FinancialAccount) TableName() string {
	return "financial_accounts"
}
