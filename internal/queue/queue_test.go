package queue

import (
	"testing"
	"time"

	"github.com/fanzfinance/internal/config"
)

func TestTransactionTaskRoundTrip(t *testing.T) {
	task, err := NewTransactionTask(TaskPaymentAuthorize, TransactionPayload{TransactionNo: "txn_1"})
	if err != nil {
		t.Fatalf("new task failed: %v", err)
	}
	if task.Type() != TaskPaymentAuthorize {
		t.Fatalf("unexpected task type: %s", task.Type())
	}
	payload, err := ParseTransactionPayload(task)
	if err != nil {
		t.Fatalf("parse payload failed: %v", err)
	}
	if payload.TransactionNo != "txn_1" {
		t.Fatalf("unexpected payload: %+v", payload)
	}
	if _, err := NewTransactionTask(TaskPayoutDisburse, TransactionPayload{}); err == nil {
		t.Fatalf("expected empty transaction_no rejected")
	}
}

func TestDisabledClientIsNoop(t *testing.T) {
	client, err := NewClient(&config.QueueConfig{Enabled: false})
	if err != nil {
		t.Fatalf("new client failed: %v", err)
	}
	if client.Enabled() {
		t.Fatalf("expected disabled client")
	}
	if err := client.EnqueuePaymentAuthorize("txn_1"); err != nil {
		t.Fatalf("disabled enqueue must be noop: %v", err)
	}
	if err := client.EnqueueSettlementRelease("txn_1", time.Hour); err != nil {
		t.Fatalf("disabled enqueue must be noop: %v", err)
	}
	if err := client.Close(); err != nil {
		t.Fatalf("close failed: %v", err)
	}
}

func TestBuildServerConfigDefaults(t *testing.T) {
	opt, cfg := BuildServerConfig(&config.QueueConfig{Host: "redis", Port: 6380})
	if opt.Addr != "redis:6380" {
		t.Fatalf("unexpected addr: %s", opt.Addr)
	}
	if cfg.Concurrency != 10 || cfg.Queues[CriticalQueue] != 6 || cfg.Queues[DefaultQueue] != 3 {
		t.Fatalf("unexpected server config: %+v", cfg)
	}
}
