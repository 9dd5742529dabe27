package gateway

import (
	"strings"

	"github.com/fanzfinance/internal/constants"
)

// 常见 ISO 4217 法币
var fiatCurrencies = map[string]struct{}{
	"USD": {}, "EUR": {}, "GBP": {}, "CAD": {}, "AUD": {}, "NZD": {}, "JPY": {}, "CHF": {},
	"SEK": {}, "NOK": {}, "DKK": {}, "PLN": {}, "CZK": {}, "HUF": {}, "RON": {}, "BGN": {},
	"MXN": {}, "BRL": {}, "ARS": {}, "CLP": {}, "COP": {}, "INR": {}, "SGD": {}, "HKD": {},
	"CNY": {}, "KRW": {}, "ZAR": {}, "ILS": {}, "TRY": {}, "AED": {},
}

// 欧盟成员国，用于匹配网关目录中的 EU 区域
var euCountries = map[string]struct{}{
	"AT": {}, "BE": {}, "BG": {}, "HR": {}, "CY": {}, "CZ": {}, "DK": {}, "EE": {}, "FI": {},
	"FR": {}, "DE": {}, "GR": {}, "HU": {}, "IE": {}, "IT": {}, "LV": {}, "LT": {}, "LU": {},
	"MT": {}, "NL": {}, "PL": {}, "PT": {}, "RO": {}, "SK": {}, "SI": {}, "ES": {}, "SE": {},
}

// NormalizeCurrency 统一币种格式
func NormalizeCurrency(currency string) string {
	return strings.ToUpper(strings.TrimSpace(currency))
}

// IsFiatCurrency 判断是否为已知法币
func IsFiatCurrency(currency string) bool {
	_, ok := fiatCurrencies[NormalizeCurrency(currency)]
	return ok
}

func countryMatches(supported []string, country string) bool {
	for _, item := range supported {
		switch item {
		case constants.GatewayCountryWildcard, country:
			return true
		case "EU":
			if _, ok := euCountries[country]; ok {
				return true
			}
		}
	}
	return false
}
