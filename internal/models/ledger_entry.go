package models

import (
	"time"
)

// LedgerEntry 复式记账分录（只追加）
type LedgerEntry struct {
	ID            uint      `gorm:"primarykey" json:"-"`                                        // 主键
	EntryNo       string    `gorm:"type:varchar(64);uniqueIndex;not null" json:"entry_no"`      // 分录编号
	TransactionNo string    `gorm:"type:varchar(64);index;not null" json:"transaction_no"`      // 交易编号
	AccountType   string    `gorm:"type:varchar(32);not null" json:"account_type"`              // 科目类型
	AccountCode   string    `gorm:"type:varchar(16);index;not null" json:"account_code"`        // 科目编码
	AccountName   string    `gorm:"type:varchar(128);not null" json:"account_name"`             // 科目名称
	DebitAmount   Money     `gorm:"type:decimal(20,2);not null;default:0" json:"debit_amount"`  // 借方金额
	CreditAmount  Money     `gorm:"type:decimal(20,2);not null;default:0" json:"credit_amount"` // 贷方金额
	Currency      string    `gorm:"type:varchar(16);not null" json:"currency"`                  // 币种
	Description   string    `gorm:"type:varchar(255)" json:"description"`                       // 描述
	Reference     string    `gorm:"type:varchar(128);index;not null" json:"reference"`          // 引用
	Reversal      bool      `gorm:"not null;default:false" json:"reversal"`                     // 是否冲正分录
	Reconciled    bool      `gorm:"not null;default:false" json:"reconciled"`                   // 是否已对账
	CreatedAt     time.Time `gorm:"index" json:"created_at"`                                    // 创建时间
}

// TableName 指定表名
func (LedgerEntry) TableName() string {
	return "ledger_entries"
}
