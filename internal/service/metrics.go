package service

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	paymentsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "fanz_finance",
		Name:      "payments_total",
		Help:      "Payment requests by outcome code.",
	}, []string{"result"})

	paymentAmountTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "fanz_finance",
		Name:      "payment_amount_total",
		Help:      "Sum of accepted payment amounts by currency.",
	}, []string{"currency"})

	authorizationSeconds = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "fanz_finance",
		Name:      "authorization_duration_seconds",
		Help:      "Gateway authorization latency.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"gateway_id", "result"})

	payoutsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "fanz_finance",
		Name:      "payouts_total",
		Help:      "Payout requests and disbursements by outcome.",
	}, []string{"result"})

	ledgerEntriesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "fanz_finance",
		Name:      "ledger_entries_total",
		Help:      "Ledger entries posted by transaction kind.",
	}, []string{"kind", "reversal"})
)

func observePayment(code ErrorCode) {
	result := "success"
	if code != "" {
		result = string(code)
	}
	paymentsTotal.WithLabelValues(result).Inc()
}

func observePayout(result string) {
	payoutsTotal.WithLabelValues(result).Inc()
}

func observeLedger(kind string, reversal bool, count int) {
	label := "false"
	if reversal {
		label = "true"
	}
	ledgerEntriesTotal.WithLabelValues(kind, label).Add(float64(count))
}
