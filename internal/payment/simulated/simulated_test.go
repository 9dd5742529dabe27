package simulated

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/fanzfinance/internal/models"
	"github.com/fanzfinance/internal/payment"
)

func TestParseAndValidateConfig(t *testing.T) {
	cfg, err := ParseConfig(map[string]interface{}{
		"decline_above":   " 5000 ",
		"decline_methods": []interface{}{" Prepaid_Card "},
		"latency_scale":   0,
	})
	if err != nil {
		t.Fatalf("parse config failed: %v", err)
	}
	if cfg.TxnIDPrefix != defaultTxnIDPrefix {
		t.Fatalf("unexpected default prefix: %s", cfg.TxnIDPrefix)
	}
	if len(cfg.DeclineMethods) != 1 || cfg.DeclineMethods[0] != "prepaid_card" {
		t.Fatalf("unexpected decline methods: %v", cfg.DeclineMethods)
	}
	if err := ValidateConfig(cfg); err != nil {
		t.Fatalf("validate config failed: %v", err)
	}

	bad, _ := ParseConfig(map[string]interface{}{"decline_above": "abc"})
	if err := ValidateConfig(bad); !errors.Is(err, ErrConfigInvalid) {
		t.Fatalf("expected invalid config, got %v", err)
	}
	if err := ValidateConfig(nil); !errors.Is(err, ErrConfigInvalid) {
		t.Fatalf("expected invalid config for nil, got %v", err)
	}
}

func TestExecuteApprovesAndDeclines(t *testing.T) {
	cfg, _ := ParseConfig(map[string]interface{}{
		"decline_above":   "5000",
		"decline_methods": []interface{}{"prepaid_card"},
		"latency_scale":   0,
	})
	processor, err := New(cfg)
	if err != nil {
		t.Fatalf("new processor failed: %v", err)
	}

	result, err := processor.Execute(context.Background(), payment.ExecuteRequest{
		TransactionNo: "txn_1",
		Amount:        models.MustMoney("100"),
		PaymentMethod: "card",
	})
	if err != nil {
		t.Fatalf("execute failed: %v", err)
	}
	if !result.Approved || !strings.HasPrefix(result.GatewayTxnID, defaultTxnIDPrefix) {
		t.Fatalf("expected approval, got %+v", result)
	}

	result, err = processor.Execute(context.Background(), payment.ExecuteRequest{
		TransactionNo: "txn_2",
		Amount:        models.MustMoney("5000.01"),
	})
	if err != nil {
		t.Fatalf("execute failed: %v", err)
	}
	if result.Approved || result.DeclineReason != DeclineAmountLimit {
		t.Fatalf("expected amount decline, got %+v", result)
	}

	result, _ = processor.Execute(context.Background(), payment.ExecuteRequest{
		TransactionNo: "txn_3",
		Amount:        models.MustMoney("10"),
		PaymentMethod: "PREPAID_CARD",
	})
	if result.Approved || result.DeclineReason != DeclineMethodBlocked {
		t.Fatalf("expected method decline, got %+v", result)
	}

	if _, err := processor.Execute(context.Background(), payment.ExecuteRequest{Amount: models.MustMoney("1")}); !errors.Is(err, ErrRequestInvalid) {
		t.Fatalf("expected invalid request, got %v", err)
	}
}

func TestExecuteHonorsDeadline(t *testing.T) {
	processor, err := New(&Config{FixedLatencyMS: 200, TxnIDPrefix: "sim_"})
	if err != nil {
		t.Fatalf("new processor failed: %v", err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	_, err = processor.Execute(ctx, payment.ExecuteRequest{TransactionNo: "txn_slow", Amount: models.MustMoney("1")})
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline exceeded, got %v", err)
	}
}

func TestLatencyScalesGatewayLatency(t *testing.T) {
	processor, _ := New(&Config{LatencyScale: 0.5})
	if got := processor.latency(2 * time.Second); got != time.Second {
		t.Fatalf("unexpected scaled latency: %s", got)
	}
	processor, _ = New(&Config{FixedLatencyMS: 30, LatencyScale: 2})
	if got := processor.latency(2 * time.Second); got != 30*time.Millisecond {
		t.Fatalf("fixed latency must win, got %s", got)
	}
}

func TestDisburse(t *testing.T) {
	cfg, _ := ParseConfig(map[string]interface{}{"fail_destinations": []interface{}{"paypal"}})
	processor, _ := New(cfg)

	result, err := processor.Disburse(context.Background(), payment.DisburseRequest{
		TransactionNo:   "payout_1",
		Amount:          models.MustMoney("98"),
		DestinationType: "bank_account",
	})
	if err != nil || !result.Succeeded || result.ProviderRef == "" {
		t.Fatalf("expected disbursement success, got %+v err=%v", result, err)
	}

	result, err = processor.Disburse(context.Background(), payment.DisburseRequest{
		TransactionNo:   "payout_2",
		Amount:          models.MustMoney("98"),
		DestinationType: "paypal",
	})
	if err != nil || result.Succeeded || result.FailureReason != DeclineDestination {
		t.Fatalf("expected disbursement failure, got %+v err=%v", result, err)
	}
}
