package service

import (
	"context"
	"errors"
	"testing"
)

func TestReconcileEntriesMarksCompletedPayment(t *testing.T) {
	h := setupFinanceTest(t)
	ctx := context.Background()
	result := h.mustProcess(t, paymentInput("idem_reconcile", "100"))
	if _, err := h.txns.ReconcileEntries(ctx, result.TransactionNo, nil); !errors.Is(err, ErrInvalidStateTransition) {
		t.Fatalf("processing payment must not reconcile, got %v", err)
	}
	if err := h.txns.AuthorizePayment(ctx, result.TransactionNo); err != nil {
		t.Fatalf("authorize failed: %v", err)
	}

	entries := assertBalanced(t, h, result.TransactionNo)
	partial, err := h.txns.ReconcileEntries(ctx, result.TransactionNo, []string{entries[0].EntryNo})
	if err != nil {
		t.Fatalf("reconcile single entry failed: %v", err)
	}
	if partial.Marked != 1 || !partial.Entries[0].Reconciled || partial.Entries[1].Reconciled {
		t.Fatalf("expected only the first entry reconciled, got %+v", partial)
	}

	full, err := h.txns.ReconcileEntries(ctx, result.TransactionNo, nil)
	if err != nil {
		t.Fatalf("reconcile all failed: %v", err)
	}
	if full.Marked != int64(len(entries)-1) {
		t.Fatalf("expected %d newly reconciled entries, got %d", len(entries)-1, full.Marked)
	}
	for _, entry := range full.Entries {
		if !entry.Reconciled {
			t.Fatalf("entry %s must be reconciled", entry.EntryNo)
		}
	}
	again, err := h.txns.ReconcileEntries(ctx, result.TransactionNo, nil)
	if err != nil || again.Marked != 0 {
		t.Fatalf("repeated reconcile must be a no-op, got %+v err=%v", again, err)
	}

	txn := h.mustTxn(t, result.TransactionNo)
	byRef, err := h.txns.ListLedgerEntriesByReference(ctx, txn.Reference)
	if err != nil || len(byRef) != len(entries) {
		t.Fatalf("expected %d entries by reference, got %d err=%v", len(entries), len(byRef), err)
	}
}

func TestReconcileEntriesRejectsForeignEntries(t *testing.T) {
	h := setupFinanceTest(t)
	ctx := context.Background()
	first := h.mustProcess(t, paymentInput("idem_reconcile_a", "10"))
	second := h.mustProcess(t, paymentInput("idem_reconcile_b", "20"))
	for _, no := range []string{first.TransactionNo, second.TransactionNo} {
		if err := h.txns.AuthorizePayment(ctx, no); err != nil {
			t.Fatalf("authorize %s failed: %v", no, err)
		}
	}
	foreign := assertBalanced(t, h, second.TransactionNo)[0].EntryNo
	_, err := h.txns.ReconcileEntries(ctx, first.TransactionNo, []string{foreign})
	if !errors.Is(err, ErrInvalidRequest) || CodeOf(err) != CodeInvalidRequest {
		t.Fatalf("expected invalid request for foreign entry, got %v", err)
	}
	for _, entry := range assertBalanced(t, h, second.TransactionNo) {
		if entry.Reconciled {
			t.Fatalf("foreign entry %s must stay unreconciled", entry.EntryNo)
		}
	}

	if _, err := h.txns.ReconcileEntries(ctx, "txn_missing", nil); !errors.Is(err, ErrTransactionNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
	if _, err := h.txns.ListLedgerEntriesByReference(ctx, " "); !errors.Is(err, ErrInvalidRequest) {
		t.Fatalf("expected blank reference rejected, got %v", err)
	}
}
