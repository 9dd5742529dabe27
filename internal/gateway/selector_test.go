package gateway

import (
	"errors"
	"testing"

	"github.com/fanzfinance/internal/config"
	"github.com/fanzfinance/internal/constants"
	"github.com/fanzfinance/internal/models"
)

func testGateway(id, percent, min, max, limit string) models.PaymentGateway {
	return models.PaymentGateway{
		GatewayID:           id,
		Name:                id,
		Type:                constants.GatewayTypeCard,
		Status:              constants.GatewayStatusActive,
		SupportedCurrencies: models.StringArray{"USD"},
		SupportedCountries:  models.StringArray{constants.GatewayCountryWildcard},
		FeePercent:          models.MustMoney(percent),
		MinAmount:           models.MustMoney(min),
		MaxAmount:           models.MustMoney(max),
		DailyLimit:          models.MustMoney(limit),
		Features:            models.StringArray{constants.GatewayFeatureRefunds},
	}
}

func mustRegistry(t *testing.T, gateways ...models.PaymentGateway) *Registry {
	t.Helper()
	registry, err := NewRegistry(gateways)
	if err != nil {
		t.Fatalf("new registry failed: %v", err)
	}
	return registry
}

func TestSelectPicksCheapestGateway(t *testing.T) {
	registry := mustRegistry(t,
		testGateway("gw_a", "8.5", "1", "2500", "10000"),
		testGateway("gw_b", "2.5", "10", "50000", "100000"),
	)
	selector := NewSelector(registry)

	best, ok := selector.Select(Request{Amount: models.MustMoney("100"), Currency: "usd"}, nil)
	if !ok {
		t.Fatalf("expected gateway to be selected")
	}
	if best.Gateway.GatewayID != "gw_b" {
		t.Fatalf("expected gw_b, got %s", best.Gateway.GatewayID)
	}
	if best.Fee.String() != "2.50" || best.Net.String() != "97.50" {
		t.Fatalf("unexpected quote: fee=%s net=%s", best.Fee.String(), best.Net.String())
	}
}

func TestSelectFallsBackWhenBelowMinimum(t *testing.T) {
	registry := mustRegistry(t,
		testGateway("gw_a", "8.5", "1", "2500", "10000"),
		testGateway("gw_b", "2.5", "10", "50000", "100000"),
	)
	best, ok := NewSelector(registry).Select(Request{Amount: models.MustMoney("5"), Currency: "USD"}, nil)
	if !ok || best.Gateway.GatewayID != "gw_a" {
		t.Fatalf("expected gw_a for amount below gw_b minimum, got %+v", best)
	}
}

func TestSelectTieBreaksByRegistrationOrder(t *testing.T) {
	registry := mustRegistry(t,
		testGateway("gw_first", "3", "1", "1000", "0"),
		testGateway("gw_second", "3", "1", "1000", "0"),
	)
	best, ok := NewSelector(registry).Select(Request{Amount: models.MustMoney("50"), Currency: "USD"}, nil)
	if !ok || best.Gateway.GatewayID != "gw_first" {
		t.Fatalf("expected first registered gateway, got %+v", best)
	}
}

func TestSelectHonorsDailyLimitAndStatus(t *testing.T) {
	maintenance := testGateway("gw_cheap", "1", "1", "5000", "10000")
	maintenance.Status = constants.GatewayStatusMaintenance
	registry := mustRegistry(t,
		maintenance,
		testGateway("gw_capped", "2", "1", "5000", "1000"),
		testGateway("gw_open", "5", "1", "5000", "0"),
	)
	selector := NewSelector(registry)

	usage := UsageSnapshot{"gw_capped": models.MustMoney("950")}
	best, ok := selector.Select(Request{Amount: models.MustMoney("100"), Currency: "USD"}, usage)
	if !ok || best.Gateway.GatewayID != "gw_open" {
		t.Fatalf("expected gw_open once gw_capped is exhausted, got %+v", best)
	}

	usage = UsageSnapshot{"gw_capped": models.MustMoney("900")}
	best, ok = selector.Select(Request{Amount: models.MustMoney("100"), Currency: "USD"}, usage)
	if !ok || best.Gateway.GatewayID != "gw_capped" {
		t.Fatalf("expected gw_capped exactly at limit, got %+v", best)
	}
}

func TestSelectFiltersCurrencyAndCountry(t *testing.T) {
	card := testGateway("gw_card", "2", "1", "5000", "0")
	card.SupportedCountries = models.StringArray{"US", "CA"}
	bank := testGateway("gw_bank", "1", "1", "5000", "0")
	bank.SupportedCurrencies = models.StringArray{"EUR"}
	bank.SupportedCountries = models.StringArray{"EU"}
	registry := mustRegistry(t, card, bank)
	selector := NewSelector(registry)

	if _, ok := selector.Select(Request{Amount: models.MustMoney("10"), Currency: "USD", Country: "GB"}, nil); ok {
		t.Fatalf("expected no gateway for unsupported country")
	}
	best, ok := selector.Select(Request{Amount: models.MustMoney("10"), Currency: "EUR", Country: "DE"}, nil)
	if !ok || best.Gateway.GatewayID != "gw_bank" {
		t.Fatalf("expected EU region to match DE, got %+v", best)
	}
	if _, ok := selector.Select(Request{Amount: models.MustMoney("10"), Currency: "JPY"}, nil); ok {
		t.Fatalf("expected no gateway for unsupported currency")
	}
}

func TestSelectRejectsFeeNotBelowAmount(t *testing.T) {
	gw := testGateway("gw_fixed", "0", "0.01", "100", "0")
	gw.FeeFixed = models.MustMoney("0.30")
	registry := mustRegistry(t, gw)
	if _, ok := NewSelector(registry).Select(Request{Amount: models.MustMoney("0.30"), Currency: "USD"}, nil); ok {
		t.Fatalf("expected gateway to be rejected when fee consumes the amount")
	}
}

func TestCalculateFeeWithFixedComponent(t *testing.T) {
	gw := testGateway("gw_bank", "1.2", "25", "25000", "50000")
	gw.FeeFixed = models.MustMoney("0.30")
	fee, net := CalculateFee(gw, models.MustMoney("100"))
	if fee.String() != "1.50" || net.String() != "98.50" {
		t.Fatalf("unexpected fee/net: %s/%s", fee.String(), net.String())
	}
	if !fee.Add(net).Equal(models.MustMoney("100")) {
		t.Fatalf("fee + net must equal amount")
	}
}

func TestRegistryFromDefaultConfig(t *testing.T) {
	registry, err := NewRegistryFromConfig(config.DefaultGateways())
	if err != nil {
		t.Fatalf("registry from config failed: %v", err)
	}
	if len(registry.All()) != 4 || registry.ActiveCount() != 4 {
		t.Fatalf("unexpected registry size: %d", len(registry.All()))
	}
	crypto, ok := registry.Get("crypto_gateway")
	if !ok || crypto.SortOrder != 2 {
		t.Fatalf("unexpected crypto gateway: %+v", crypto)
	}
	if !registry.SupportsCurrency("btc") || !registry.SupportsCurrency("JPY") || registry.SupportsCurrency("XYZ") {
		t.Fatalf("unexpected currency recognition")
	}

	best, ok := NewSelector(registry).Select(Request{Amount: models.MustMoney("100"), Currency: "USD", Country: "US"}, nil)
	if !ok || best.Gateway.GatewayID != "bank_transfer_gateway" {
		t.Fatalf("expected bank transfer to win for 100 USD in US, got %+v", best)
	}
}

func TestRegistryRejectsInvalidCatalog(t *testing.T) {
	dup := testGateway("gw_dup", "1", "1", "10", "0")
	if _, err := NewRegistry([]models.PaymentGateway{dup, dup}); !errors.Is(err, ErrDuplicateGateway) {
		t.Fatalf("expected duplicate gateway error, got %v", err)
	}
	bad := testGateway("gw_bad", "1", "100", "10", "0")
	if _, err := NewRegistry([]models.PaymentGateway{bad}); !errors.Is(err, ErrInvalidGateway) {
		t.Fatalf("expected invalid gateway error, got %v", err)
	}
}
