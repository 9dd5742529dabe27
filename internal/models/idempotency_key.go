package models

import (
	"time"
)

// IdempotencyKey 请求幂等键
type IdempotencyKey struct {
	ID            uint      `gorm:"primarykey" json:"-"`                                                      // 主键
	Key           string    `gorm:"column:idempotency_key;type:varchar(128);uniqueIndex;not null" json:"key"` // 幂等键
	Scope         string    `gorm:"type:varchar(32);not null" json:"scope"`                                   // 使用场景
	RequestHash   string    `gorm:"type:varchar(64);not null" json:"request_hash"`                            // 请求摘要
	TransactionNo string    `gorm:"type:varchar(64);not null" json:"transaction_no"`                          // 关联交易编号
	CreatedAt     time.Time `json:"created_at"`                                                               // 创建时间
}

// TableName 指定表名
func (IdempotencyKey) TableName() string {
	return "idempotency_keys"
}
