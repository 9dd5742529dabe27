package models

import (
	"time"
)

// OutboxEvent 事务内写入的待投递事件
type OutboxEvent struct {
	ID            uint       `gorm:"primarykey" json:"id"`                                  // 主键
	EventID       string     `gorm:"type:varchar(64);uniqueIndex;not null" json:"event_id"` // 事件标识
	Type          string     `gorm:"type:varchar(64);index;not null" json:"type"`           // 事件类型
	TransactionNo string     `gorm:"type:varchar(64);index" json:"transaction_no"`          // 交易编号
	Payload       JSON       `gorm:"type:json" json:"payload"`                              // 交易快照
	Attempts      int        `gorm:"not null;default:0" json:"attempts"`                    // 投递次数
	LastError     string     `gorm:"type:text" json:"last_error,omitempty"`                 // 最近一次投递错误
	CreatedAt     time.Time  `gorm:"index" json:"created_at"`                               // 创建时间
	DispatchedAt  *time.Time `gorm:"index" json:"dispatched_at,omitempty"`                  // 投递时间
}

// TableName 指定表名
func (OutboxEvent) TableName() string {
	return "outbox_events"
}
