package gateway

import (
	"github.com/fanzfinance/internal/models"

	"github.com/shopspring/decimal"
)

var hundred = decimal.NewFromInt(100)

// CalculateFee 计算手续费与净额：fee = amount * percent / 100 + fixed，保留 2 位小数
func CalculateFee(gw models.PaymentGateway, amount models.Money) (fee models.Money, net models.Money) {
	raw := amount.Decimal.Mul(gw.FeePercent.Decimal).Div(hundred).Add(gw.FeeFixed.Decimal)
	fee = models.NewMoneyFromDecimal(raw)
	net = amount.Sub(fee)
	return fee, net
}
