package gateway

import (
	"errors"
	"fmt"
	"strings"

	"github.com/fanzfinance/internal/config"
	"github.com/fanzfinance/internal/constants"
	"github.com/fanzfinance/internal/models"
)

var (
	// ErrInvalidGateway 网关配置不合法
	ErrInvalidGateway = errors.New("invalid gateway config")
	// ErrDuplicateGateway 网关标识重复
	ErrDuplicateGateway = errors.New("duplicate gateway id")
)

// Registry 网关目录，启动时加载后只读
type Registry struct {
	gateways []models.PaymentGateway
	index    map[string]int
}

// NewRegistry 按注册顺序创建网关目录
func NewRegistry(gateways []models.PaymentGateway) (*Registry, error) {
	r := &Registry{
		gateways: make([]models.PaymentGateway, 0, len(gateways)),
		index:    make(map[string]int, len(gateways)),
	}
	for i := range gateways {
		gw := gateways[i]
		if err := validateGateway(&gw); err != nil {
			return nil, err
		}
		if _, exists := r.index[gw.GatewayID]; exists {
			return nil, fmt.Errorf("%w: %s", ErrDuplicateGateway, gw.GatewayID)
		}
		gw.SortOrder = len(r.gateways)
		r.index[gw.GatewayID] = len(r.gateways)
		r.gateways = append(r.gateways, gw)
	}
	return r, nil
}

// NewRegistryFromConfig 从配置目录创建网关目录
func NewRegistryFromConfig(items []config.GatewayConfig) (*Registry, error) {
	gateways := make([]models.PaymentGateway, 0, len(items))
	for _, item := range items {
		gw, err := gatewayFromConfig(item)
		if err != nil {
			return nil, err
		}
		gateways = append(gateways, gw)
	}
	return NewRegistry(gateways)
}

// All 返回网关目录副本（按注册顺序）
func (r *Registry) All() []models.PaymentGateway {
	if r == nil {
		return nil
	}
	out := make([]models.PaymentGateway, len(r.gateways))
	copy(out, r.gateways)
	return out
}

// Get 按网关标识获取网关
func (r *Registry) Get(gatewayID string) (models.PaymentGateway, bool) {
	if r == nil {
		return models.PaymentGateway{}, false
	}
	idx, ok := r.index[strings.TrimSpace(gatewayID)]
	if !ok {
		return models.PaymentGateway{}, false
	}
	return r.gateways[idx], true
}

// ActiveCount 统计启用中的网关
func (r *Registry) ActiveCount() int {
	if r == nil {
		return 0
	}
	count := 0
	for _, gw := range r.gateways {
		if gw.Status == constants.GatewayStatusActive {
			count++
		}
	}
	return count
}

// SupportsCurrency 判断币种是否被识别（ISO 法币或目录中的加密币种）
func (r *Registry) SupportsCurrency(currency string) bool {
	currency = NormalizeCurrency(currency)
	if currency == "" {
		return false
	}
	if IsFiatCurrency(currency) {
		return true
	}
	if r == nil {
		return false
	}
	for _, gw := range r.gateways {
		if gw.SupportedCurrencies.Contains(currency) {
			return true
		}
	}
	return false
}

// HasFeature 判断网关是否具备指定能力
func HasFeature(gw models.PaymentGateway, feature string) bool {
	return gw.Features.Contains(feature)
}

func gatewayFromConfig(item config.GatewayConfig) (models.PaymentGateway, error) {
	parse := func(field, raw string) (models.Money, error) {
		m, err := models.ParseMoney(raw)
		if err != nil {
			return models.Money{}, fmt.Errorf("%w: %s %s=%q", ErrInvalidGateway, item.ID, field, raw)
		}
		return m, nil
	}
	feePercent, err := parse("fee_percent", item.FeePercent)
	if err != nil {
		return models.PaymentGateway{}, err
	}
	feeFixed, err := parse("fee_fixed", item.FeeFixed)
	if err != nil {
		return models.PaymentGateway{}, err
	}
	minAmount, err := parse("min_amount", item.MinAmount)
	if err != nil {
		return models.PaymentGateway{}, err
	}
	maxAmount, err := parse("max_amount", item.MaxAmount)
	if err != nil {
		return models.PaymentGateway{}, err
	}
	dailyLimit, err := parse("daily_limit", item.DailyLimit)
	if err != nil {
		return models.PaymentGateway{}, err
	}

	status := strings.ToLower(strings.TrimSpace(item.Status))
	if status == "" {
		status = constants.GatewayStatusActive
	}
	currencies := make(models.StringArray, 0, len(item.SupportedCurrencies))
	for _, cur := range item.SupportedCurrencies {
		if normalized := NormalizeCurrency(cur); normalized != "" {
			currencies = append(currencies, normalized)
		}
	}
	countries := make(models.StringArray, 0, len(item.SupportedCountries))
	for _, country := range item.SupportedCountries {
		if normalized := strings.ToUpper(strings.TrimSpace(country)); normalized != "" {
			countries = append(countries, normalized)
		}
	}

	return models.PaymentGateway{
		GatewayID:           strings.TrimSpace(item.ID),
		Name:                strings.TrimSpace(item.Name),
		Type:                strings.ToLower(strings.TrimSpace(item.Type)),
		Status:              status,
		SupportedCurrencies: currencies,
		SupportedCountries:  countries,
		FeePercent:          feePercent,
		FeeFixed:            feeFixed,
		FeeCurrency:         NormalizeCurrency(item.FeeCurrency),
		MinAmount:           minAmount,
		MaxAmount:           maxAmount,
		DailyLimit:          dailyLimit,
		AuthorizationMS:     item.AuthorizationMS,
		SettlementHours:     item.SettlementHours,
		Features:            models.StringArray(item.Features),
	}, nil
}

func validateGateway(gw *models.PaymentGateway) error {
	if gw.GatewayID == "" {
		return fmt.Errorf("%w: empty id", ErrInvalidGateway)
	}
	switch gw.Type {
	case constants.GatewayTypeCard, constants.GatewayTypeCrypto, constants.GatewayTypeBank,
		constants.GatewayTypeWallet, constants.GatewayTypeAlternative:
	default:
		return fmt.Errorf("%w: %s type=%q", ErrInvalidGateway, gw.GatewayID, gw.Type)
	}
	switch gw.Status {
	case constants.GatewayStatusActive, constants.GatewayStatusMaintenance, constants.GatewayStatusDisabled:
	default:
		return fmt.Errorf("%w: %s status=%q", ErrInvalidGateway, gw.GatewayID, gw.Status)
	}
	if gw.FeePercent.IsNegative() || gw.FeeFixed.IsNegative() || gw.MinAmount.IsNegative() || gw.DailyLimit.IsNegative() {
		return fmt.Errorf("%w: %s negative amounts", ErrInvalidGateway, gw.GatewayID)
	}
	if gw.MaxAmount.IsPositive() && gw.MaxAmount.LessThan(gw.MinAmount.Decimal) {
		return fmt.Errorf("%w: %s max_amount below min_amount", ErrInvalidGateway, gw.GatewayID)
	}
	if len(gw.SupportedCurrencies) == 0 {
		return fmt.Errorf("%w: %s no currencies", ErrInvalidGateway, gw.GatewayID)
	}
	if gw.Features == nil {
		gw.Features = models.StringArray{}
	}
	if gw.SupportedCountries == nil {
		gw.SupportedCountries = models.StringArray{}
	}
	return nil
}
