package service

import (
	"context"
	"testing"
)

func TestFinancialSummary(t *testing.T) {
	h := setupFinanceTest(t)
	ctx := context.Background()

	paid := h.mustProcess(t, paymentInput("idem_summary_1", "100"))
	if err := h.txns.AuthorizePayment(ctx, paid.TransactionNo); err != nil {
		t.Fatalf("authorize failed: %v", err)
	}
	refunded := h.mustProcess(t, paymentInput("idem_summary_2", "50"))
	if err := h.txns.AuthorizePayment(ctx, refunded.TransactionNo); err != nil {
		t.Fatalf("authorize failed: %v", err)
	}
	if _, err := h.txns.RefundPayment(ctx, refunded.TransactionNo, "chargeback risk"); err != nil {
		t.Fatalf("refund failed: %v", err)
	}
	h.mustProcess(t, paymentInput("idem_summary_3", "30"))

	h.fundCreator(t, "creator_2", "200")
	payout, err := h.payouts.RequestPayout(ctx, payoutInput("creator_2", "100"))
	if err != nil || !payout.Success {
		t.Fatalf("request payout failed: %+v %v", payout, err)
	}
	if err := h.payouts.DisbursePayout(ctx, payout.PayoutID); err != nil {
		t.Fatalf("disburse failed: %v", err)
	}

	summary, err := h.summary.GetFinancialSummary(ctx)
	if err != nil {
		t.Fatalf("summary failed: %v", err)
	}
	// 2 (payment fee) + 1 - 1 (refunded fee) + 2 (payout fee)
	assertMoney(t, "total revenue", summary.TotalRevenue, "4")
	assertMoney(t, "processing fees", summary.ProcessingFees, "0.40")
	assertMoney(t, "total payouts", summary.TotalPayouts, "100")
	assertMoney(t, "pending balance", summary.PendingBalance, "98")
	if summary.ActiveGateways != 1 {
		t.Fatalf("expected 1 active gateway, got %d", summary.ActiveGateways)
	}
	// 100 + 50 (payments) + 50 (refund) + 100 (payout)
	assertMoney(t, "volume 24h", summary.TransactionVolume24h, "300")
}
