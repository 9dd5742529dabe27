package simulated

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/fanzfinance/internal/payment"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

var (
	// ErrConfigInvalid 配置无效
	ErrConfigInvalid = errors.New("simulated config invalid")
	// ErrRequestInvalid 请求参数无效
	ErrRequestInvalid = errors.New("simulated request invalid")
)

// 拒绝原因常量
const (
	DeclineAmountLimit   = "amount_above_limit"
	DeclineMethodBlocked = "payment_method_blocked"
	DeclineDestination   = "destination_rejected"
)

const (
	defaultTxnIDPrefix  = "sim_"
	maxLatencyMS        = 60000
	defaultLatencyScale = 1.0
)

// Config 模拟网关配置
type Config struct {
	// DeclineAbove 超过该金额的授权被拒绝，为空表示不限制
	DeclineAbove string `json:"decline_above"`
	// DeclineMethods 被拒绝的支付方式
	DeclineMethods []string `json:"decline_methods"`
	// FailDestinations 打款失败的提现目标类型
	FailDestinations []string `json:"fail_destinations"`
	// LatencyScale 网关授权耗时的缩放系数，0 表示不等待
	LatencyScale float64 `json:"latency_scale"`
	// FixedLatencyMS 固定等待时长，优先于网关耗时
	FixedLatencyMS int    `json:"fixed_latency_ms"`
	TxnIDPrefix    string `json:"txn_id_prefix"`

	declineAbove decimal.Decimal
	hasLimit     bool
}

// Processor 模拟网关，按配置规则确定性地批准或拒绝
type Processor struct {
	cfg   *Config
	sleep func(ctx context.Context, d time.Duration) error
}

// ParseConfig 解析配置
func ParseConfig(raw map[string]interface{}) (*Config, error) {
	cfg := &Config{LatencyScale: defaultLatencyScale}
	if len(raw) > 0 {
		data, err := json.Marshal(raw)
		if err != nil {
			return nil, fmt.Errorf("%w: marshal config failed", ErrConfigInvalid)
		}
		if err := json.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("%w: unmarshal config failed", ErrConfigInvalid)
		}
	}
	cfg.normalize()
	return cfg, nil
}

// ValidateConfig 校验配置
func ValidateConfig(cfg *Config) error {
	if cfg == nil {
		return fmt.Errorf("%w: config is nil", ErrConfigInvalid)
	}
	if cfg.LatencyScale < 0 {
		return fmt.Errorf("%w: latency_scale must not be negative", ErrConfigInvalid)
	}
	if cfg.FixedLatencyMS < 0 || cfg.FixedLatencyMS > maxLatencyMS {
		return fmt.Errorf("%w: fixed_latency_ms out of range", ErrConfigInvalid)
	}
	if cfg.DeclineAbove != "" {
		limit, err := decimal.NewFromString(cfg.DeclineAbove)
		if err != nil || !limit.IsPositive() {
			return fmt.Errorf("%w: decline_above is invalid", ErrConfigInvalid)
		}
		cfg.declineAbove = limit
		cfg.hasLimit = true
	}
	return nil
}

func (c *Config) normalize() {
	c.DeclineAbove = strings.TrimSpace(c.DeclineAbove)
	c.TxnIDPrefix = strings.TrimSpace(c.TxnIDPrefix)
	if c.TxnIDPrefix == "" {
		c.TxnIDPrefix = defaultTxnIDPrefix
	}
	c.DeclineMethods = normalizeList(c.DeclineMethods)
	c.FailDestinations = normalizeList(c.FailDestinations)
}

// New 创建模拟网关
func New(cfg *Config) (*Processor, error) {
	if err := ValidateConfig(cfg); err != nil {
		return nil, err
	}
	return &Processor{cfg: cfg, sleep: sleepContext}, nil
}

// Execute 模拟网关授权，等待期间尊重 ctx 截止时间
func (p *Processor) Execute(ctx context.Context, req payment.ExecuteRequest) (*payment.ExecuteResult, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	if strings.TrimSpace(req.TransactionNo) == "" {
		return nil, fmt.Errorf("%w: transaction_no is required", ErrRequestInvalid)
	}
	if !req.Amount.IsPositive() {
		return nil, fmt.Errorf("%w: amount must be positive", ErrRequestInvalid)
	}
	if err := p.sleep(ctx, p.latency(req.Latency)); err != nil {
		return nil, err
	}

	if p.cfg.hasLimit && req.Amount.GreaterThan(p.cfg.declineAbove) {
		return &payment.ExecuteResult{DeclineReason: DeclineAmountLimit}, nil
	}
	if contains(p.cfg.DeclineMethods, req.PaymentMethod) {
		return &payment.ExecuteResult{DeclineReason: DeclineMethodBlocked}, nil
	}
	return &payment.ExecuteResult{
		Approved:     true,
		GatewayTxnID: p.cfg.TxnIDPrefix + uuid.NewString(),
	}, nil
}

// Disburse 模拟打款
func (p *Processor) Disburse(ctx context.Context, req payment.DisburseRequest) (*payment.DisburseResult, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	if strings.TrimSpace(req.TransactionNo) == "" {
		return nil, fmt.Errorf("%w: transaction_no is required", ErrRequestInvalid)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if contains(p.cfg.FailDestinations, req.DestinationType) {
		return &payment.DisburseResult{FailureReason: DeclineDestination}, nil
	}
	return &payment.DisburseResult{
		Succeeded:   true,
		ProviderRef: p.cfg.TxnIDPrefix + "payout_" + uuid.NewString(),
	}, nil
}

func (p *Processor) latency(gatewayLatency time.Duration) time.Duration {
	if p.cfg.FixedLatencyMS > 0 {
		return time.Duration(p.cfg.FixedLatencyMS) * time.Millisecond
	}
	if gatewayLatency <= 0 || p.cfg.LatencyScale == 0 {
		return 0
	}
	return time.Duration(float64(gatewayLatency) * p.cfg.LatencyScale)
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

func normalizeList(values []string) []string {
	result := make([]string, 0, len(values))
	for _, value := range values {
		value = strings.ToLower(strings.TrimSpace(value))
		if value != "" {
			result = append(result, value)
		}
	}
	return result
}

func contains(values []string, target string) bool {
	target = strings.ToLower(strings.TrimSpace(target))
	if target == "" {
		return false
	}
	for _, value := range values {
		if value == target {
			return true
		}
	}
	return false
}

var (
	_ payment.Executor  = (*Processor)(nil)
	_ payment.Disburser = (*Processor)(nil)
)
