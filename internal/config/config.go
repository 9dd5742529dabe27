package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/fanzfinance/internal/constants"
	"github.com/fanzfinance/internal/logger"

	"github.com/spf13/viper"
)

// Config 应用配置结构
type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Log      LogConfig      `mapstructure:"log"`
	Database DatabaseConfig `mapstructure:"database"`
	JWT      JWTConfig      `mapstructure:"jwt"`
	Redis    RedisConfig    `mapstructure:"redis"`
	Queue    QueueConfig    `mapstructure:"queue"`
	Authz    AuthzConfig    `mapstructure:"authz"`
	Finance  FinanceConfig  `mapstructure:"finance"`
}

// ServerConfig 服务器配置
type ServerConfig struct {
	Host      string          `mapstructure:"host"`
	Port      string          `mapstructure:"port"`
	Mode      string          `mapstructure:"mode"` // debug / release
	RateLimit RateLimitConfig `mapstructure:"rate_limit"`
}

// RateLimitConfig 写接口频率限制，依赖 Redis
type RateLimitConfig struct {
	WindowSeconds int `mapstructure:"window_seconds"`
	MaxRequests   int `mapstructure:"max_requests"`
}

// LogConfig 日志配置
type LogConfig struct {
	Dir        string `mapstructure:"dir"`
	Filename   string `mapstructure:"filename"`
	MaxSizeMB  int    `mapstructure:"max_size_mb"`
	MaxBackups int    `mapstructure:"max_backups"`
	MaxAgeDays int    `mapstructure:"max_age_days"`
	Compress   bool   `mapstructure:"compress"`
}

// ToLoggerOptions 转换为 logger 配置
func (c LogConfig) ToLoggerOptions() logger.Options {
	return logger.Options{
		Dir:        c.Dir,
		Filename:   c.Filename,
		MaxSizeMB:  c.MaxSizeMB,
		MaxBackups: c.MaxBackups,
		MaxAgeDays: c.MaxAgeDays,
		Compress:   c.Compress,
	}
}

// DatabasePoolConfig 数据库连接池配置
type DatabasePoolConfig struct {
	MaxOpenConns           int `mapstructure:"max_open_conns"`
	MaxIdleConns           int `mapstructure:"max_idle_conns"`
	ConnMaxLifetimeSeconds int `mapstructure:"conn_max_lifetime_seconds"`
	ConnMaxIdleTimeSeconds int `mapstructure:"conn_max_idle_time_seconds"`
}

// DatabaseConfig 数据库配置
type DatabaseConfig struct {
	Driver string             `mapstructure:"driver"` // sqlite / postgres
	DSN    string             `mapstructure:"dsn"`
	Pool   DatabasePoolConfig `mapstructure:"pool"`
}

// JWTConfig 服务间访问令牌配置
type JWTConfig struct {
	SecretKey     string `mapstructure:"secret"`
	Issuer        string `mapstructure:"issuer"`
	TokenTTLHours int    `mapstructure:"token_ttl_hours"`
}

// TokenTTL 签发令牌的有效期，0 表示不过期
func (c JWTConfig) TokenTTL() time.Duration {
	if c.TokenTTLHours <= 0 {
		return 0
	}
	return time.Duration(c.TokenTTLHours) * time.Hour
}

// AuthzConfig 调用方服务授权配置，ServiceRoles 为服务名到角色的绑定
type AuthzConfig struct {
	Enabled      bool                `mapstructure:"enabled"`
	ServiceRoles map[string][]string `mapstructure:"service_roles"`
}

// RedisConfig Redis 配置
type RedisConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
	Prefix   string `mapstructure:"prefix"`
}

// QueueConfig 异步队列配置
type QueueConfig struct {
	Enabled     bool           `mapstructure:"enabled"`
	Host        string         `mapstructure:"host"`
	Port        int            `mapstructure:"port"`
	Password    string         `mapstructure:"password"`
	DB          int            `mapstructure:"db"`
	Concurrency int            `mapstructure:"concurrency"`
	Queues      map[string]int `mapstructure:"queues"`
}

// FinanceConfig 资金核心配置
type FinanceConfig struct {
	PlatformUserID              string          `mapstructure:"platform_user_id"`
	EscrowUserID                string          `mapstructure:"escrow_user_id"`
	TaxReserveUserID            string          `mapstructure:"tax_reserve_user_id"`
	DefaultCurrency             string          `mapstructure:"default_currency"`
	RiskBlockThreshold          int             `mapstructure:"risk_block_threshold"`
	AuthorizationTimeoutSeconds int             `mapstructure:"authorization_timeout_seconds"`
	VelocityWindowMinutes       int             `mapstructure:"velocity_window_minutes"`
	SummaryCacheSeconds         int             `mapstructure:"summary_cache_seconds"`
	OutboxRelayIntervalSeconds  int             `mapstructure:"outbox_relay_interval_seconds"`
	Payout                      PayoutConfig    `mapstructure:"payout"`
	Gateways                    []GatewayConfig `mapstructure:"gateways"`
	// Simulator 模拟网关执行器配置，结构见 payment/simulated.Config
	Simulator map[string]interface{} `mapstructure:"simulator"`
}

// PayoutConfig 提现配置
type PayoutConfig struct {
	FeePercent      float64        `mapstructure:"fee_percent"`
	SettlementHours map[string]int `mapstructure:"settlement_hours"`
}

// GatewayConfig 支付网关目录项
type GatewayConfig struct {
	ID                  string   `mapstructure:"id"`
	Name                string   `mapstructure:"name"`
	Type                string   `mapstructure:"type"`
	Status              string   `mapstructure:"status"`
	SupportedCurrencies []string `mapstructure:"supported_currencies"`
	SupportedCountries  []string `mapstructure:"supported_countries"`
	FeePercent          string   `mapstructure:"fee_percent"`
	FeeFixed            string   `mapstructure:"fee_fixed"`
	FeeCurrency         string   `mapstructure:"fee_currency"`
	MinAmount           string   `mapstructure:"min_amount"`
	MaxAmount           string   `mapstructure:"max_amount"`
	DailyLimit          string   `mapstructure:"daily_limit"`
	AuthorizationMS     int      `mapstructure:"authorization_ms"`
	SettlementHours     int      `mapstructure:"settlement_hours"`
	Features            []string `mapstructure:"features"`
}

// AuthorizationTimeout 网关授权超时
func (c FinanceConfig) AuthorizationTimeout() time.Duration {
	if c.AuthorizationTimeoutSeconds <= 0 {
		return 60 * time.Second
	}
	return time.Duration(c.AuthorizationTimeoutSeconds) * time.Second
}

// VelocityWindow 风控频次统计窗口
func (c FinanceConfig) VelocityWindow() time.Duration {
	if c.VelocityWindowMinutes <= 0 {
		return time.Hour
	}
	return time.Duration(c.VelocityWindowMinutes) * time.Minute
}

// SummaryCacheTTL 汇总缓存时长
func (c FinanceConfig) SummaryCacheTTL() time.Duration {
	if c.SummaryCacheSeconds <= 0 {
		return 0
	}
	return time.Duration(c.SummaryCacheSeconds) * time.Second
}

// OutboxRelayInterval 事件出站轮询间隔
func (c FinanceConfig) OutboxRelayInterval() time.Duration {
	if c.OutboxRelayIntervalSeconds <= 0 {
		return 5 * time.Second
	}
	return time.Duration(c.OutboxRelayIntervalSeconds) * time.Second
}

// PayoutSettlementDelay 按提现目标返回预计到账时长
func (c FinanceConfig) PayoutSettlementDelay(destinationType string) time.Duration {
	if hours, ok := c.Payout.SettlementHours[destinationType]; ok && hours > 0 {
		return time.Duration(hours) * time.Hour
	}
	return 72 * time.Hour
}

// DefaultGateways 默认网关目录
func DefaultGateways() []GatewayConfig {
	return []GatewayConfig{
		{
			ID:                  "epoch_gateway",
			Name:                "Epoch Payment Solutions",
			Type:                constants.GatewayTypeCard,
			Status:              constants.GatewayStatusActive,
			SupportedCurrencies: []string{"USD", "EUR", "GBP", "CAD", "AUD"},
			SupportedCountries:  []string{"US", "CA", "GB", "AU", "DE", "FR", "NL"},
			FeePercent:          "8.5",
			FeeFixed:            "0",
			FeeCurrency:         "USD",
			MinAmount:           "1",
			MaxAmount:           "2500",
			DailyLimit:          "10000",
			AuthorizationMS:     3000,
			SettlementHours:     24,
			Features: []string{
				constants.GatewayFeatureRecurring,
				constants.GatewayFeatureRefunds,
				constants.GatewayFeatureDisputes,
				constants.GatewayFeatureFraudProtection,
			},
		},
		{
			ID:                  "ccbill_gateway",
			Name:                "CCBill Payment Processing",
			Type:                constants.GatewayTypeCard,
			Status:              constants.GatewayStatusActive,
			SupportedCurrencies: []string{"USD", "EUR", "GBP", "CAD"},
			SupportedCountries:  []string{"US", "CA", "GB", "DE", "FR", "ES", "IT"},
			FeePercent:          "9.8",
			FeeFixed:            "0",
			FeeCurrency:         "USD",
			MinAmount:           "2.95",
			MaxAmount:           "5000",
			DailyLimit:          "25000",
			AuthorizationMS:     2500,
			SettlementHours:     48,
			Features: []string{
				constants.GatewayFeatureRecurring,
				constants.GatewayFeatureRefunds,
				constants.GatewayFeatureFraudProtection,
			},
		},
		{
			ID:                  "crypto_gateway",
			Name:                "Crypto Payment Processor",
			Type:                constants.GatewayTypeCrypto,
			Status:              constants.GatewayStatusActive,
			SupportedCurrencies: []string{"BTC", "ETH", "USDT", "USDC", "LTC"},
			SupportedCountries:  []string{constants.GatewayCountryWildcard},
			FeePercent:          "2.5",
			FeeFixed:            "0",
			FeeCurrency:         "USD",
			MinAmount:           "10",
			MaxAmount:           "50000",
			DailyLimit:          "100000",
			AuthorizationMS:     30000,
			SettlementHours:     1,
			Features: []string{
				constants.GatewayFeatureRefunds,
				constants.GatewayFeatureFraudProtection,
			},
		},
		{
			ID:                  "bank_transfer_gateway",
			Name:                "ACH/SEPA Bank Transfers",
			Type:                constants.GatewayTypeBank,
			Status:              constants.GatewayStatusActive,
			SupportedCurrencies: []string{"USD", "EUR"},
			SupportedCountries:  []string{"US", "CA", "EU"},
			FeePercent:          "1.2",
			FeeFixed:            "0.30",
			FeeCurrency:         "USD",
			MinAmount:           "25",
			MaxAmount:           "25000",
			DailyLimit:          "50000",
			AuthorizationMS:     1000,
			SettlementHours:     72,
			Features: []string{
				constants.GatewayFeatureRecurring,
				constants.GatewayFeatureRefunds,
			},
		},
	}
}

// Load 从 config.yml 加载配置
func Load() *Config {
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(".")
	viper.AddConfigPath("./")
	viper.AddConfigPath("../")
	viper.AddConfigPath("./etc")

	setDefaults(viper.GetViper())

	// 环境变量支持（例如 server.port -> SERVER_PORT）
	viper.AutomaticEnv()
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	if err := viper.ReadInConfig(); err != nil {
		logger.Warnw("config_file_read_failed",
			"error", err,
			"fallback", "env_or_defaults",
		)
	} else {
		logger.Infow("config_file_loaded", "file", viper.ConfigFileUsed())
	}

	cfg, err := unmarshal(viper.GetViper())
	if err != nil {
		logger.Errorw("config_unmarshal_failed", "error", err)
		panic(fmt.Errorf("配置解析失败: %w", err))
	}
	return cfg
}

func unmarshal(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}
	if len(cfg.Finance.Gateways) == 0 {
		cfg.Finance.Gateways = DefaultGateways()
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", "8080")
	v.SetDefault("server.mode", "debug")
	v.SetDefault("server.rate_limit.window_seconds", 60)
	v.SetDefault("server.rate_limit.max_requests", 120)
	v.SetDefault("log.dir", "")
	v.SetDefault("log.filename", "finance.log")
	v.SetDefault("log.max_size_mb", 100)
	v.SetDefault("log.max_backups", 7)
	v.SetDefault("log.max_age_days", 30)
	v.SetDefault("log.compress", true)
	v.SetDefault("database.driver", "sqlite")
	v.SetDefault("database.dsn", "./db/finance.db")
	v.SetDefault("database.pool.max_open_conns", 1)
	v.SetDefault("database.pool.max_idle_conns", 1)
	v.SetDefault("database.pool.conn_max_lifetime_seconds", 0)
	v.SetDefault("database.pool.conn_max_idle_time_seconds", 0)
	v.SetDefault("jwt.secret", "change-me-in-production")
	v.SetDefault("jwt.issuer", "fanzfinance")
	v.SetDefault("jwt.token_ttl_hours", 0)
	v.SetDefault("authz.enabled", false)
	v.SetDefault("redis.enabled", false)
	v.SetDefault("redis.host", "127.0.0.1")
	v.SetDefault("redis.port", 6379)
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.prefix", "ff")
	v.SetDefault("queue.enabled", false)
	v.SetDefault("queue.host", "127.0.0.1")
	v.SetDefault("queue.port", 6379)
	v.SetDefault("queue.password", "")
	v.SetDefault("queue.db", 1)
	v.SetDefault("queue.concurrency", 10)
	v.SetDefault("queue.queues", map[string]int{
		constants.QueueCritical: 6,
		constants.QueueDefault:  3,
	})
	v.SetDefault("finance.platform_user_id", constants.DefaultPlatformUserID)
	v.SetDefault("finance.escrow_user_id", constants.DefaultEscrowUserID)
	v.SetDefault("finance.tax_reserve_user_id", constants.DefaultTaxReserveUserID)
	v.SetDefault("finance.default_currency", constants.DefaultSettlementCurrency)
	v.SetDefault("finance.risk_block_threshold", 85)
	v.SetDefault("finance.authorization_timeout_seconds", 60)
	v.SetDefault("finance.velocity_window_minutes", 60)
	v.SetDefault("finance.summary_cache_seconds", 30)
	v.SetDefault("finance.outbox_relay_interval_seconds", 5)
	v.SetDefault("finance.payout.fee_percent", 2.0)
	v.SetDefault("finance.payout.settlement_hours", map[string]int{
		constants.PayoutDestinationBank:   72,
		constants.PayoutDestinationCrypto: 1,
		constants.PayoutDestinationPaypal: 24,
	})
}
