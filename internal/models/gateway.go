package models

import (
	"time"
)

// PaymentGateway 支付网关目录
type PaymentGateway struct {
	ID                  uint        `gorm:"primarykey" json:"-"`                                      // 主键
	GatewayID           string      `gorm:"type:varchar(64);uniqueIndex;not null" json:"gateway_id"`  // 网关标识
	Name                string      `gorm:"type:varchar(128);not null" json:"name"`                   // 网关名称
	Type                string      `gorm:"type:varchar(32);not null" json:"type"`                    // 网关类型
	Status              string      `gorm:"type:varchar(32);index;not null" json:"status"`            // 网关状态
	SupportedCurrencies StringArray `gorm:"type:json" json:"supported_currencies"`                    // 支持币种
	SupportedCountries  StringArray `gorm:"type:json" json:"supported_countries"`                     // 支持国家（* 为全部）
	FeePercent          Money       `gorm:"type:decimal(6,2);not null;default:0" json:"fee_percent"`  // 费率（百分比）
	FeeFixed            Money       `gorm:"type:decimal(20,2);not null;default:0" json:"fee_fixed"`   // 固定手续费
	FeeCurrency         string      `gorm:"type:varchar(16)" json:"fee_currency"`                     // 手续费币种
	MinAmount           Money       `gorm:"type:decimal(20,2);not null;default:0" json:"min_amount"`  // 单笔最小金额
	MaxAmount           Money       `gorm:"type:decimal(20,2);not null;default:0" json:"max_amount"`  // 单笔最大金额
	DailyLimit          Money       `gorm:"type:decimal(20,2);not null;default:0" json:"daily_limit"` // 每日限额
	AuthorizationMS     int         `gorm:"not null;default:0" json:"authorization_ms"`               // 授权耗时（毫秒）
	SettlementHours     int         `gorm:"not null;default:0" json:"settlement_hours"`               // 结算周期（小时）
	Features            StringArray `gorm:"type:json" json:"features"`                                // 网关能力
	SortOrder           int         `gorm:"not null;default:0;index" json:"sort_order"`               // 注册顺序
	CreatedAt           time.Time   `json:"created_at"`                                               // 创建时间
	UpdatedAt           time.Time   `json:"updated_at"`                                               // 更新时间
}

// TableName 指定表名
func (PaymentGateway) TableName() string {
	return "payment_gateways"
}

// GatewayDailyUsage 网关每日已用额度
type GatewayDailyUsage struct {
	ID         uint      `gorm:"primarykey" json:"-"`                                                           // 主键
	GatewayID  string    `gorm:"type:varchar(64);not null;uniqueIndex:idx_gateway_usage_day" json:"gateway_id"` // 网关标识
	Day        string    `gorm:"type:varchar(10);not null;uniqueIndex:idx_gateway_usage_day" json:"day"`        // 日期（UTC，YYYY-MM-DD）
	UsedAmount Money     `gorm:"type:decimal(20,2);not null;default:0" json:"used_amount"`                      // 已用额度
	Version    int       `gorm:"not null;default:1" json:"-"`                                                   // 版本号
	CreatedAt  time.Time `json:"created_at"`                                                                    // 创建时间
	UpdatedAt  time.Time `json:"updated_at"`                                                                    // 更新时间
}

// TableName 指定表名
func (GatewayDailyUsage) TableName() string {
	return "gateway_daily_usages"
}
