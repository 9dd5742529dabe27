package risk

import (
	"strings"

	"github.com/fanzfinance/internal/constants"
	"github.com/fanzfinance/internal/models"

	"github.com/shopspring/decimal"
)

// 评分规则常量
const (
	MaxScore              = 100
	DefaultBlockThreshold = 85
	DefaultVelocityLimit  = 5

	largeAmountScore     = 20
	veryLargeAmountScore = 30
	velocityScore        = 10
	chargebackScore      = 15
	chargebackScoreCap   = 45
	failureScore         = 5
	failureScoreCap      = 15
	geoMismatchScore     = 15
	unverifiedScore      = 10
)

var (
	largeAmount      = decimal.NewFromInt(1000)
	veryLargeAmount  = decimal.NewFromInt(5000)
	unverifiedAmount = decimal.NewFromInt(500)
)

// Request 风控评估请求
type Request struct {
	Amount  models.Money
	Country string
}

// History 付款方历史，由调用方按请求时刻的窗口计算
type History struct {
	RecentPayments     int64
	RecentFailures     int64
	Chargebacks        int64
	VerificationStatus string
	TaxCountry         string
}

// Assessor 风险评估器，结果只依赖入参
type Assessor struct {
	blockThreshold int
	velocityLimit  int64
}

// NewAssessor 创建风险评估器
func NewAssessor(blockThreshold int, velocityLimit int) *Assessor {
	if blockThreshold <= 0 || blockThreshold > MaxScore {
		blockThreshold = DefaultBlockThreshold
	}
	if velocityLimit <= 0 {
		velocityLimit = DefaultVelocityLimit
	}
	return &Assessor{blockThreshold: blockThreshold, velocityLimit: int64(velocityLimit)}
}

// BlockThreshold 拦截阈值
func (a *Assessor) BlockThreshold() int {
	return a.blockThreshold
}

// Blocked 判断评分是否达到拦截阈值
func (a *Assessor) Blocked(score int) bool {
	return score >= a.blockThreshold
}

// Assess 计算 0..100 的风险评分
func (a *Assessor) Assess(req Request, history History) int {
	if history.VerificationStatus == constants.VerificationSuspended {
		return MaxScore
	}

	score := 0
	amount := req.Amount.Decimal
	if amount.GreaterThan(largeAmount) {
		score += largeAmountScore
	}
	if amount.GreaterThan(veryLargeAmount) {
		score += veryLargeAmountScore
	}

	if history.RecentPayments >= a.velocityLimit {
		score += velocityScore
	}
	if history.RecentPayments >= 2*a.velocityLimit {
		score += velocityScore
	}

	score += capped(history.Chargebacks*chargebackScore, chargebackScoreCap)
	score += capped(history.RecentFailures*failureScore, failureScoreCap)

	country := strings.ToUpper(strings.TrimSpace(req.Country))
	taxCountry := strings.ToUpper(strings.TrimSpace(history.TaxCountry))
	if country != "" && taxCountry != "" && country != taxCountry {
		score += geoMismatchScore
	}

	if history.VerificationStatus == constants.VerificationUnverified && amount.GreaterThan(unverifiedAmount) {
		score += unverifiedScore
	}

	if score > MaxScore {
		return MaxScore
	}
	if score < 0 {
		return 0
	}
	return score
}

func capped(value int64, limit int) int {
	if value <= 0 {
		return 0
	}
	if value > int64(limit) {
		return limit
	}
	return int(value)
}
