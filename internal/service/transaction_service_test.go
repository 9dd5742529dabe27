package service

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/fanzfinance/internal/constants"
	"github.com/fanzfinance/internal/models"
	"github.com/fanzfinance/internal/payment"
	"github.com/fanzfinance/internal/repository"
)

func TestProcessPaymentPostsThreeBalancedEntries(t *testing.T) {
	h := setupFinanceTest(t)
	result := h.mustProcess(t, paymentInput("idem_scenario_4", "100"))
	if result.Status != constants.TransactionStatusProcessing {
		t.Fatalf("expected processing, got %s", result.Status)
	}
	assertMoney(t, "fee", result.FeeAmount, "2")
	assertMoney(t, "net", result.NetAmount, "98")
	if result.Currency != "USD" || result.GatewayID != "two_percent_gateway" {
		t.Fatalf("unexpected result: %+v", result)
	}

	entries := assertBalanced(t, h, result.TransactionNo)
	if len(entries) != 3 {
		t.Fatalf("expected 3 entries, got %d", len(entries))
	}
	byCode := map[string]models.LedgerEntry{}
	for _, entry := range entries {
		byCode[entry.AccountCode] = entry
	}
	assertMoney(t, "cash debit", byCode[constants.AccountCodeCash].DebitAmount, "100")
	assertMoney(t, "escrow credit", byCode[constants.AccountCodeCreatorEscrow].CreditAmount, "98")
	assertMoney(t, "revenue credit", byCode[constants.AccountCodeCommissionRevenue].CreditAmount, "2")

	txn := h.mustTxn(t, result.TransactionNo)
	if txn.Metadata["content_id"] != "post_1" || txn.Country != "US" {
		t.Fatalf("expected metadata and normalized country, got %+v", txn)
	}
	if h.count(t, &models.OutboxEvent{}, "event_type = ? AND transaction_no = ?", constants.EventPaymentInitiated, txn.TransactionNo) != 1 {
		t.Fatalf("expected payment:initiated outbox event")
	}
	fan := h.mustAccount(t, "fan_1")
	if fan.Type != constants.AccountTypeFan || fan.VerificationStatus != constants.VerificationUnverified {
		t.Fatalf("unexpected lazily created payer: %+v", fan)
	}
}

func TestProcessPaymentPicksCheapestGateway(t *testing.T) {
	h := setupFinanceTest(t, withGateways(
		testFinanceGateway("gateway_a", "8.5", "1", "2500", "0"),
		testFinanceGateway("gateway_b", "2.5", "10", "50000", "0"),
	))
	result := h.mustProcess(t, paymentInput("idem_cheapest", "100"))
	if result.GatewayID != "gateway_b" {
		t.Fatalf("expected gateway_b, got %s", result.GatewayID)
	}
	assertMoney(t, "fee", result.FeeAmount, "2.50")
	assertMoney(t, "net", result.NetAmount, "97.50")
	if !result.NetAmount.Add(result.FeeAmount).Equal(result.Amount) {
		t.Fatalf("net plus fee must equal original")
	}
}

func TestProcessPaymentLargeAmountProceeds(t *testing.T) {
	h := setupFinanceTest(t)
	if _, err := h.accounts.CreateAccountIfAbsent(context.Background(), "fan_1", constants.AccountTypeFan); err != nil {
		t.Fatalf("create payer failed: %v", err)
	}
	if _, err := h.accounts.SetVerification(context.Background(), "fan_1", constants.VerificationVerified, 2); err != nil {
		t.Fatalf("verify payer failed: %v", err)
	}
	result := h.mustProcess(t, paymentInput("idem_large", "6000"))
	if result.RiskScore != 50 {
		t.Fatalf("expected risk score 50, got %d", result.RiskScore)
	}
	txn := h.mustTxn(t, result.TransactionNo)
	if !txn.ComplianceFlags.Contains(constants.ComplianceFlagHighRisk) {
		t.Fatalf("expected high risk flag, got %v", txn.ComplianceFlags)
	}
}

func TestProcessPaymentRejectsInvalidInput(t *testing.T) {
	h := setupFinanceTest(t)
	cases := []struct {
		name   string
		mutate func(in *ProcessPaymentInput)
	}{
		{name: "zero amount", mutate: func(in *ProcessPaymentInput) { in.Amount = models.MustMoney("0") }},
		{name: "missing key", mutate: func(in *ProcessPaymentInput) { in.IdempotencyKey = "" }},
		{name: "same parties", mutate: func(in *ProcessPaymentInput) { in.PayeeID = in.PayerID }},
		{name: "bad currency", mutate: func(in *ProcessPaymentInput) { in.Currency = "XYZ" }},
		{name: "system payee", mutate: func(in *ProcessPaymentInput) { in.PayeeID = constants.DefaultPlatformUserID }},
		{name: "unserializable", mutate: func(in *ProcessPaymentInput) { in.Metadata = map[string]interface{}{"bad": make(chan int)} }},
	}
	for _, tc := range cases {
		input := paymentInput("idem_invalid_"+strings.ReplaceAll(tc.name, " ", "_"), "10")
		tc.mutate(&input)
		result, err := h.txns.ProcessPayment(context.Background(), input)
		if err != nil {
			t.Fatalf("%s: unexpected error %v", tc.name, err)
		}
		if result.Success || result.ErrorCode != CodeInvalidRequest {
			t.Fatalf("%s: expected INVALID_REQUEST, got %+v", tc.name, result)
		}
	}
	if h.count(t, &models.Transaction{}, "1 = 1") != 0 {
		t.Fatalf("rejected requests must not create transactions")
	}
}

func TestProcessPaymentNoGatewayAvailable(t *testing.T) {
	h := setupFinanceTest(t, withGateways(testFinanceGateway("small_gateway", "2", "1", "50", "0")))
	result, err := h.txns.ProcessPayment(context.Background(), paymentInput("idem_none", "100"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Success || result.ErrorCode != CodeNoGatewayAvailable {
		t.Fatalf("expected NO_GATEWAY_AVAILABLE, got %+v", result)
	}
}

func TestProcessPaymentHonorsDailyLimit(t *testing.T) {
	h := setupFinanceTest(t, withGateways(testFinanceGateway("limited_gateway", "2", "1", "1000", "150")))
	h.mustProcess(t, paymentInput("idem_limit_1", "100"))
	result, err := h.txns.ProcessPayment(context.Background(), paymentInput("idem_limit_2", "100"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.ErrorCode != CodeNoGatewayAvailable {
		t.Fatalf("expected daily limit rejection, got %+v", result)
	}
	views, err := h.txns.ListGateways(context.Background())
	if err != nil {
		t.Fatalf("list gateways failed: %v", err)
	}
	if len(views) != 1 {
		t.Fatalf("expected 1 gateway view, got %d", len(views))
	}
	assertMoney(t, "used today", views[0].UsedToday, "100")
}

func TestProcessPaymentIdempotentReplay(t *testing.T) {
	h := setupFinanceTest(t)
	first := h.mustProcess(t, paymentInput("idem_replay", "100"))
	second := h.mustProcess(t, paymentInput("idem_replay", "100"))
	if !second.Replayed || second.TransactionNo != first.TransactionNo {
		t.Fatalf("expected replay of %s, got %+v", first.TransactionNo, second)
	}
	if h.count(t, &models.Transaction{}, "kind = ?", constants.TransactionKindPayment) != 1 {
		t.Fatalf("expected exactly one transaction")
	}
	if h.count(t, &models.LedgerEntry{}, "transaction_no = ?", first.TransactionNo) != 3 {
		t.Fatalf("expected exactly one set of postings")
	}

	reused, err := h.txns.ProcessPayment(context.Background(), paymentInput("idem_replay", "101"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if reused.Success || reused.ErrorCode != CodeIdempotencyKeyReused {
		t.Fatalf("expected IDEMPOTENCY_KEY_REUSED, got %+v", reused)
	}
}

func TestProcessPaymentConcurrentSameKey(t *testing.T) {
	h := setupFinanceTest(t)
	var wg sync.WaitGroup
	results := make([]*PaymentResult, 4)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			result, err := h.txns.ProcessPayment(context.Background(), paymentInput("idem_concurrent", "40"))
			if err != nil {
				t.Errorf("process payment failed: %v", err)
				return
			}
			results[i] = result
		}(i)
	}
	wg.Wait()
	for _, result := range results {
		if result == nil || !result.Success {
			t.Fatalf("expected every request to succeed or replay, got %+v", result)
		}
		if result.TransactionNo != results[0].TransactionNo {
			t.Fatalf("expected one transaction, got %s and %s", result.TransactionNo, results[0].TransactionNo)
		}
	}
	if h.count(t, &models.Transaction{}, "1 = 1") != 1 {
		t.Fatalf("expected one transaction row")
	}
}

func TestAuthorizeCompletesAndSettles(t *testing.T) {
	h := setupFinanceTest(t)
	ctx := context.Background()
	result := h.mustProcess(t, paymentInput("idem_auth", "100"))
	if err := h.txns.AuthorizePayment(ctx, result.TransactionNo); err != nil {
		t.Fatalf("authorize failed: %v", err)
	}
	txn := h.mustTxn(t, result.TransactionNo)
	if txn.Status != constants.TransactionStatusCompleted || txn.GatewayTxnID != "gw_"+txn.TransactionNo {
		t.Fatalf("expected completed with gateway txn id, got %+v", txn)
	}
	if txn.CompletedAt == nil || txn.EstimatedArrival == nil {
		t.Fatalf("expected completion and settlement timestamps")
	}
	creator := h.mustAccount(t, "creator_1")
	assertMoney(t, "pending after completion", creator.Pending, "98")
	assertMoney(t, "available after completion", creator.Available, "0")

	if err := h.txns.ReleaseSettlement(ctx, txn.TransactionNo); !errors.Is(err, ErrSettlementNotDue) {
		t.Fatalf("expected settlement not due, got %v", err)
	}
	h.clock.Advance(25 * time.Hour)
	released, err := h.txns.ReleaseDueSettlements(ctx)
	if err != nil {
		t.Fatalf("release due settlements failed: %v", err)
	}
	if released != 1 {
		t.Fatalf("expected 1 released settlement, got %d", released)
	}
	if err := h.txns.ReleaseSettlement(ctx, txn.TransactionNo); err != nil {
		t.Fatalf("repeated release must be a no-op: %v", err)
	}
	creator = h.mustAccount(t, "creator_1")
	assertMoney(t, "pending after settlement", creator.Pending, "0")
	assertMoney(t, "available after settlement", creator.Available, "98")

	// 已完成交易再次授权不产生副作用
	if err := h.txns.AuthorizePayment(ctx, txn.TransactionNo); err != nil {
		t.Fatalf("authorize on completed must be a no-op: %v", err)
	}
	assertMoney(t, "pending unchanged", h.mustAccount(t, "creator_1").Pending, "0")
}

func TestAuthorizeDeclineReversesPostings(t *testing.T) {
	decline := payment.ExecutorFunc(func(ctx context.Context, req payment.ExecuteRequest) (*payment.ExecuteResult, error) {
		return &payment.ExecuteResult{Approved: false, DeclineReason: "card_declined"}, nil
	})
	h := setupFinanceTest(t,
		withExecutor(decline),
		withGateways(testFinanceGateway("limited_gateway", "2", "1", "1000", "500")),
	)
	ctx := context.Background()
	result := h.mustProcess(t, paymentInput("idem_decline", "100"))
	if err := h.txns.AuthorizePayment(ctx, result.TransactionNo); err != nil {
		t.Fatalf("authorize failed: %v", err)
	}
	txn := h.mustTxn(t, result.TransactionNo)
	if txn.Status != constants.TransactionStatusFailed || !strings.HasPrefix(txn.FailureReason, string(CodeGatewayDeclined)) {
		t.Fatalf("expected declined failure, got %+v", txn)
	}
	entries := assertBalanced(t, h, txn.TransactionNo)
	reversals := 0
	for _, entry := range entries {
		if entry.Reversal {
			reversals++
		}
	}
	if len(entries) != 6 || reversals != 3 {
		t.Fatalf("expected 3 originals and 3 reversals, got %d entries %d reversals", len(entries), reversals)
	}
	assertMoney(t, "creator pending", h.mustAccount(t, "creator_1").Pending, "0")
	views, err := h.txns.ListGateways(ctx)
	if err != nil {
		t.Fatalf("list gateways failed: %v", err)
	}
	assertMoney(t, "released usage", views[0].UsedToday, "0")
	if h.count(t, &models.OutboxEvent{}, "event_type = ?", constants.EventPaymentFailed) != 1 {
		t.Fatalf("expected payment:failed event")
	}
}

func TestAuthorizeTimeoutFailsPayment(t *testing.T) {
	hang := payment.ExecutorFunc(func(ctx context.Context, req payment.ExecuteRequest) (*payment.ExecuteResult, error) {
		<-ctx.Done()
		return nil, ctx.Err()
	})
	h := setupFinanceTest(t, withExecutor(hang))
	ctx := context.Background()
	result := h.mustProcess(t, paymentInput("idem_timeout", "100"))
	h.clock.Advance(59*time.Second + 950*time.Millisecond)
	if err := h.txns.AuthorizePayment(ctx, result.TransactionNo); err != nil {
		t.Fatalf("authorize failed: %v", err)
	}
	txn := h.mustTxn(t, result.TransactionNo)
	if txn.Status != constants.TransactionStatusFailed || !strings.HasPrefix(txn.FailureReason, string(CodeGatewayTimeout)) {
		t.Fatalf("expected timeout failure, got %+v", txn)
	}
	assertBalanced(t, h, txn.TransactionNo)
}

func TestAuthorizeCallerCancelKeepsProcessing(t *testing.T) {
	hang := payment.ExecutorFunc(func(ctx context.Context, req payment.ExecuteRequest) (*payment.ExecuteResult, error) {
		<-ctx.Done()
		return nil, ctx.Err()
	})
	h := setupFinanceTest(t, withExecutor(hang))
	result := h.mustProcess(t, paymentInput("idem_cancel_ctx", "100"))
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := h.txns.AuthorizePayment(ctx, result.TransactionNo); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context canceled, got %v", err)
	}
	if status := h.mustTxn(t, result.TransactionNo).Status; status != constants.TransactionStatusProcessing {
		t.Fatalf("expected processing, got %s", status)
	}
}

func TestExpireStaleAuthorizations(t *testing.T) {
	h := setupFinanceTest(t)
	ctx := context.Background()
	result := h.mustProcess(t, paymentInput("idem_stale", "100"))
	if expired, err := h.txns.ExpireStaleAuthorizations(ctx); err != nil || expired != 0 {
		t.Fatalf("expected nothing to expire yet, got %d %v", expired, err)
	}
	h.clock.Advance(61 * time.Second)
	expired, err := h.txns.ExpireStaleAuthorizations(ctx)
	if err != nil {
		t.Fatalf("expire failed: %v", err)
	}
	if expired != 1 {
		t.Fatalf("expected 1 expired, got %d", expired)
	}
	txn := h.mustTxn(t, result.TransactionNo)
	if txn.Status != constants.TransactionStatusFailed || !strings.HasPrefix(txn.FailureReason, string(CodeGatewayTimeout)) {
		t.Fatalf("expected timeout failure, got %+v", txn)
	}

	// 超时后迟到的授权结果被忽略
	if err := h.txns.CompletePayment(ctx, txn.TransactionNo, "late"); !errors.Is(err, ErrInvalidStateTransition) {
		t.Fatalf("expected invalid transition for late approval, got %v", err)
	}
}

func TestCancelTransaction(t *testing.T) {
	h := setupFinanceTest(t)
	ctx := context.Background()
	result := h.mustProcess(t, paymentInput("idem_cancel", "100"))
	cancelled, err := h.txns.CancelTransaction(ctx, result.TransactionNo)
	if err != nil {
		t.Fatalf("cancel failed: %v", err)
	}
	if cancelled.Status != constants.TransactionStatusCancelled || cancelled.CancelledAt == nil {
		t.Fatalf("unexpected cancelled transaction: %+v", cancelled)
	}
	if entries := assertBalanced(t, h, result.TransactionNo); len(entries) != 6 {
		t.Fatalf("expected reversal entries, got %d", len(entries))
	}
	if _, err := h.txns.CancelTransaction(ctx, result.TransactionNo); !errors.Is(err, ErrInvalidStateTransition) {
		t.Fatalf("expected invalid transition on second cancel, got %v", err)
	}
	if _, err := h.txns.CancelTransaction(ctx, "txn_missing"); !errors.Is(err, ErrTransactionNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
	if CodeOf(ErrInvalidStateTransition) != CodeInvalidStateTransition {
		t.Fatalf("unexpected code mapping")
	}
}

func TestDisputeCompletedPayment(t *testing.T) {
	h := setupFinanceTest(t)
	ctx := context.Background()
	result := h.mustProcess(t, paymentInput("idem_dispute", "100"))
	if _, err := h.txns.DisputeTransaction(ctx, result.TransactionNo, "not received"); !errors.Is(err, ErrInvalidStateTransition) {
		t.Fatalf("processing payment cannot be disputed, got %v", err)
	}
	if err := h.txns.AuthorizePayment(ctx, result.TransactionNo); err != nil {
		t.Fatalf("authorize failed: %v", err)
	}
	disputed, err := h.txns.DisputeTransaction(ctx, result.TransactionNo, "not received")
	if err != nil {
		t.Fatalf("dispute failed: %v", err)
	}
	if disputed.Status != constants.TransactionStatusDisputed || !disputed.ComplianceFlags.Contains(constants.ComplianceFlagDisputed) {
		t.Fatalf("unexpected disputed transaction: %+v", disputed)
	}
	if disputed.Metadata["dispute_reason"] != "not received" || disputed.Metadata["content_id"] != "post_1" {
		t.Fatalf("unexpected dispute metadata: %v", disputed.Metadata)
	}
	if entries := assertBalanced(t, h, result.TransactionNo); len(entries) != 3 {
		t.Fatalf("dispute must not post entries, got %d", len(entries))
	}
}

func TestRefundUnsettledPayment(t *testing.T) {
	h := setupFinanceTest(t)
	ctx := context.Background()
	result := h.mustProcess(t, paymentInput("idem_refund", "100"))
	if _, err := h.txns.RefundPayment(ctx, result.TransactionNo, "duplicate"); !errors.Is(err, ErrInvalidStateTransition) {
		t.Fatalf("processing payment cannot be refunded, got %v", err)
	}
	if err := h.txns.AuthorizePayment(ctx, result.TransactionNo); err != nil {
		t.Fatalf("authorize failed: %v", err)
	}
	refund, err := h.txns.RefundPayment(ctx, result.TransactionNo, "duplicate")
	if err != nil {
		t.Fatalf("refund failed: %v", err)
	}
	if refund.Kind != constants.TransactionKindRefund || refund.Status != constants.TransactionStatusCompleted || refund.ParentNo != result.TransactionNo {
		t.Fatalf("unexpected refund: %+v", refund)
	}
	if entries := assertBalanced(t, h, refund.TransactionNo); len(entries) != 3 {
		t.Fatalf("expected 3 refund entries, got %d", len(entries))
	}
	assertMoney(t, "pending after refund", h.mustAccount(t, "creator_1").Pending, "0")
	if _, err := h.txns.RefundPayment(ctx, result.TransactionNo, "again"); !errors.Is(err, ErrInvalidStateTransition) {
		t.Fatalf("expected second refund rejected, got %v", err)
	}

	h.clock.Advance(25 * time.Hour)
	if err := h.txns.ReleaseSettlement(ctx, result.TransactionNo); err != nil {
		t.Fatalf("release after refund failed: %v", err)
	}
	creator := h.mustAccount(t, "creator_1")
	assertMoney(t, "available after refunded settlement", creator.Available, "0")
	assertMoney(t, "pending after refunded settlement", creator.Pending, "0")
	if h.mustTxn(t, result.TransactionNo).SettledAt == nil {
		t.Fatalf("expected refunded payment marked settled")
	}
}

func TestRefundRequiresGatewayFeature(t *testing.T) {
	gw := testFinanceGateway("no_refund_gateway", "2", "1", "1000", "0")
	gw.Features = models.StringArray{}
	h := setupFinanceTest(t, withGateways(gw))
	ctx := context.Background()
	result := h.mustProcess(t, paymentInput("idem_no_refund", "100"))
	if err := h.txns.AuthorizePayment(ctx, result.TransactionNo); err != nil {
		t.Fatalf("authorize failed: %v", err)
	}
	_, err := h.txns.RefundPayment(ctx, result.TransactionNo, "")
	if !errors.Is(err, ErrRefundNotSupported) || CodeOf(err) != CodeRefundNotSupported {
		t.Fatalf("expected refund not supported, got %v", err)
	}
}

func TestListTransactionsFilters(t *testing.T) {
	h := setupFinanceTest(t)
	ctx := context.Background()
	h.mustProcess(t, paymentInput("idem_list_1", "10"))
	second := h.mustProcess(t, paymentInput("idem_list_2", "20"))
	if _, err := h.txns.CancelTransaction(ctx, second.TransactionNo); err != nil {
		t.Fatalf("cancel failed: %v", err)
	}
	items, total, err := h.txns.ListTransactions(ctx, repository.TransactionListFilter{
		Page:     1,
		PageSize: 10,
		Status:   constants.TransactionStatusCancelled,
	})
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}
	if total != 1 || len(items) != 1 || items[0].TransactionNo != second.TransactionNo {
		t.Fatalf("unexpected list result: total=%d items=%+v", total, items)
	}
	if _, err := h.txns.ListLedgerEntries(ctx, "txn_missing"); !errors.Is(err, ErrTransactionNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestProcessPaymentRollsBackWhenPostingFails(t *testing.T) {
	h := setupFinanceTest(t, withGateways(testFinanceGateway("limited_gateway", "2", "1", "10000", "1000")))
	if err := h.db.Migrator().DropTable(&models.LedgerEntry{}); err != nil {
		t.Fatalf("drop ledger table failed: %v", err)
	}
	result, err := h.txns.ProcessPayment(context.Background(), paymentInput("idem_rollback", "100"))
	if err != nil {
		t.Fatalf("storage failure must be reported in the result, got %v", err)
	}
	if result.Success || result.ErrorCode != CodeInternalError {
		t.Fatalf("expected INTERNAL_ERROR, got %+v", result)
	}
	if n := h.count(t, &models.Transaction{}, "1 = 1"); n != 0 {
		t.Fatalf("expected no transactions after rollback, got %d", n)
	}
	if n := h.count(t, &models.IdempotencyKey{}, "1 = 1"); n != 0 {
		t.Fatalf("expected no idempotency keys after rollback, got %d", n)
	}
	if n := h.count(t, &models.OutboxEvent{}, "1 = 1"); n != 0 {
		t.Fatalf("expected no outbox events after rollback, got %d", n)
	}
	if n := h.count(t, &models.GatewayDailyUsage{}, "1 = 1"); n != 0 {
		t.Fatalf("expected no gateway usage after rollback, got %d", n)
	}
	if n := h.count(t, &models.FinancialAccount{}, "user_id IN ?", []string{"fan_1", "creator_1"}); n != 0 {
		t.Fatalf("expected lazily created accounts rolled back, got %d", n)
	}
}

func TestProcessPaymentFractionalAmount(t *testing.T) {
	h := setupFinanceTest(t, withGateways(testFinanceGateway("fractional_gateway", "2.9", "0.01", "10000", "0.30")))
	ctx := context.Background()

	first := h.mustProcess(t, paymentInput("idem_fraction_1", "0.10"))
	second := h.mustProcess(t, paymentInput("idem_fraction_2", "0.20"))
	assertMoney(t, "fee", second.FeeAmount, "0.01")
	assertMoney(t, "net", second.NetAmount, "0.19")
	for _, no := range []string{first.TransactionNo, second.TransactionNo} {
		assertBalanced(t, h, no)
		if err := h.txns.AuthorizePayment(ctx, no); err != nil {
			t.Fatalf("authorize %s failed: %v", no, err)
		}
	}
	// 0.10 + 0.20 恰好用满 0.30 的日限额
	exhausted, err := h.txns.ProcessPayment(ctx, paymentInput("idem_fraction_3", "0.01"))
	if err != nil {
		t.Fatalf("process payment failed: %v", err)
	}
	if exhausted.Success || exhausted.ErrorCode != CodeNoGatewayAvailable {
		t.Fatalf("expected daily limit exhausted, got %+v", exhausted)
	}
	creator := h.mustAccount(t, "creator_1")
	assertMoney(t, "pending", creator.Pending, first.NetAmount.Add(second.NetAmount).String())
}

func TestRefundSettledPaymentDebitsAvailable(t *testing.T) {
	h := setupFinanceTest(t)
	ctx := context.Background()
	result := h.mustProcess(t, paymentInput("idem_refund_settled", "100"))
	if err := h.txns.AuthorizePayment(ctx, result.TransactionNo); err != nil {
		t.Fatalf("authorize failed: %v", err)
	}
	h.clock.Advance(25 * time.Hour)
	if err := h.txns.ReleaseSettlement(ctx, result.TransactionNo); err != nil {
		t.Fatalf("release settlement failed: %v", err)
	}
	h.fundCreator(t, "creator_1", "5")
	creator := h.mustAccount(t, "creator_1")
	assertMoney(t, "available before refund", creator.Available, "103")
	assertMoney(t, "pending before refund", creator.Pending, "0")

	refund, err := h.txns.RefundPayment(ctx, result.TransactionNo, "chargeback avoided")
	if err != nil {
		t.Fatalf("refund failed: %v", err)
	}
	if refund.Metadata["refunded_from"] != constants.BucketAvailable {
		t.Fatalf("settled refund must draw from available, got %v", refund.Metadata["refunded_from"])
	}
	assertBalanced(t, h, refund.TransactionNo)
	creator = h.mustAccount(t, "creator_1")
	assertMoney(t, "available after refund", creator.Available, "5")
	assertMoney(t, "pending after refund", creator.Pending, "0")
}

func TestRefundSettledPaymentNeedsAvailableFunds(t *testing.T) {
	h := setupFinanceTest(t)
	ctx := context.Background()
	result := h.mustProcess(t, paymentInput("idem_refund_spent", "100"))
	if err := h.txns.AuthorizePayment(ctx, result.TransactionNo); err != nil {
		t.Fatalf("authorize failed: %v", err)
	}
	h.clock.Advance(25 * time.Hour)
	if err := h.txns.ReleaseSettlement(ctx, result.TransactionNo); err != nil {
		t.Fatalf("release settlement failed: %v", err)
	}
	if err := h.accounts.Debit(ctx, "creator_1", constants.BucketAvailable, models.MustMoney("50")); err != nil {
		t.Fatalf("debit failed: %v", err)
	}
	if _, err := h.txns.RefundPayment(ctx, result.TransactionNo, ""); !errors.Is(err, ErrInsufficientFunds) {
		t.Fatalf("expected insufficient funds, got %v", err)
	}
	assertMoney(t, "available unchanged", h.mustAccount(t, "creator_1").Available, "48")
	if h.count(t, &models.Transaction{}, "kind = ?", constants.TransactionKindRefund) != 0 {
		t.Fatalf("failed refund must not create a transaction")
	}
}
