package gateway

import (
	"sort"
	"strings"

	"github.com/fanzfinance/internal/constants"
	"github.com/fanzfinance/internal/models"
)

// Request 网关选择请求
type Request struct {
	Amount   models.Money
	Currency string
	Country  string
}

// UsageSnapshot 当日各网关已用额度快照
type UsageSnapshot map[string]models.Money

// Candidate 可用网关及其报价
type Candidate struct {
	Gateway models.PaymentGateway
	Fee     models.Money
	Net     models.Money
}

// Selector 网关选择器（纯函数，无副作用）
type Selector struct {
	registry *Registry
}

// NewSelector 创建网关选择器
func NewSelector(registry *Registry) *Selector {
	return &Selector{registry: registry}
}

// Admissible 返回全部可用网关，按手续费升序、注册顺序排序
func (s *Selector) Admissible(req Request, usage UsageSnapshot) []Candidate {
	if s == nil || s.registry == nil || !req.Amount.IsPositive() {
		return nil
	}
	currency := NormalizeCurrency(req.Currency)
	country := strings.ToUpper(strings.TrimSpace(req.Country))

	candidates := make([]Candidate, 0, len(s.registry.gateways))
	for _, gw := range s.registry.gateways {
		if !admissible(gw, req.Amount, currency, country, usage[gw.GatewayID]) {
			continue
		}
		fee, net := CalculateFee(gw, req.Amount)
		if !fee.LessThan(req.Amount.Decimal) {
			continue
		}
		candidates = append(candidates, Candidate{Gateway: gw, Fee: fee, Net: net})
	}
	sort.SliceStable(candidates, func(i, j int) bool {
		if cmp := candidates[i].Fee.Cmp(candidates[j].Fee.Decimal); cmp != 0 {
			return cmp < 0
		}
		return candidates[i].Gateway.SortOrder < candidates[j].Gateway.SortOrder
	})
	return candidates
}

// Select 选择手续费最低的可用网关，同费率按注册顺序
func (s *Selector) Select(req Request, usage UsageSnapshot) (*Candidate, bool) {
	candidates := s.Admissible(req, usage)
	if len(candidates) == 0 {
		return nil, false
	}
	best := candidates[0]
	return &best, true
}

func admissible(gw models.PaymentGateway, amount models.Money, currency, country string, used models.Money) bool {
	if gw.Status != constants.GatewayStatusActive {
		return false
	}
	if !gw.SupportedCurrencies.Contains(currency) {
		return false
	}
	if country != "" && !countryMatches(gw.SupportedCountries, country) {
		return false
	}
	if amount.LessThan(gw.MinAmount.Decimal) {
		return false
	}
	if gw.MaxAmount.IsPositive() && amount.GreaterThan(gw.MaxAmount.Decimal) {
		return false
	}
	if gw.DailyLimit.IsPositive() && used.Add(amount).GreaterThan(gw.DailyLimit.Decimal) {
		return false
	}
	return true
}
