package service

import (
	"errors"
	"testing"
	"time"

	"github.com/fanzfinance/internal/constants"
)

func waitForStatus(t *testing.T, h *financeHarness, transactionNo, status string) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		if h.mustTxn(t, transactionNo).Status == status {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("transaction %s did not reach %s", transactionNo, status)
}

func TestInlineDispatcherRunsPaymentAndPayoutTasks(t *testing.T) {
	h := setupFinanceTest(t)
	dispatcher := NewInlineDispatcher()
	dispatcher.Bind(h.txns, h.payouts)
	h.txns.SetDispatcher(dispatcher)
	h.payouts.SetDispatcher(dispatcher)
	defer dispatcher.Stop()

	result := h.mustProcess(t, paymentInput("idem_inline", "100"))
	waitForStatus(t, h, result.TransactionNo, constants.TransactionStatusCompleted)

	h.fundCreator(t, "creator_2", "100")
	payout, err := h.payouts.RequestPayout(t.Context(), payoutInput("creator_2", "50"))
	if err != nil || !payout.Success {
		t.Fatalf("request payout failed: %+v %v", payout, err)
	}
	waitForStatus(t, h, payout.PayoutID, constants.TransactionStatusCompleted)
}

func TestInlineDispatcherStop(t *testing.T) {
	dispatcher := NewInlineDispatcher()
	if err := dispatcher.EnqueuePaymentAuthorize("txn_unbound"); err == nil {
		t.Fatalf("expected unbound dispatcher to reject tasks")
	}
	h := setupFinanceTest(t)
	dispatcher.Bind(h.txns, h.payouts)
	if err := dispatcher.EnqueueSettlementRelease("txn_later", time.Hour); err != nil {
		t.Fatalf("schedule failed: %v", err)
	}
	done := make(chan struct{})
	go func() {
		dispatcher.Stop()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatalf("stop must cancel pending timers")
	}
	if err := dispatcher.EnqueuePayoutDisburse("payout_x"); !errors.Is(err, ErrDispatcherStopped) {
		t.Fatalf("expected stopped dispatcher error, got %v", err)
	}
}
