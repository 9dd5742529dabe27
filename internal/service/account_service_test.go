package service

import (
	"context"
	"errors"
	"testing"

	"github.com/fanzfinance/internal/constants"
	"github.com/fanzfinance/internal/models"
)

func TestProvisionSystemAccountsIsIdempotent(t *testing.T) {
	h := setupFinanceTest(t)
	if err := h.accounts.ProvisionSystemAccounts(context.Background()); err != nil {
		t.Fatalf("second provision failed: %v", err)
	}
	platform := h.mustAccount(t, constants.DefaultPlatformUserID)
	if platform.Type != constants.AccountTypePlatform || platform.VerificationStatus != constants.VerificationVerified || platform.KYCLevel != 3 {
		t.Fatalf("unexpected platform account: %+v", platform)
	}
	if h.count(t, &models.FinancialAccount{}, "1 = 1") != 3 {
		t.Fatalf("expected 3 system accounts")
	}
	if !h.accounts.IsSystemUser(constants.DefaultEscrowUserID) || h.accounts.IsSystemUser("creator_1") {
		t.Fatalf("unexpected system user detection")
	}
}

func TestAccountBucketsNeverGoNegative(t *testing.T) {
	h := setupFinanceTest(t)
	ctx := context.Background()
	h.fundCreator(t, "creator_1", "100")

	if err := h.accounts.Debit(ctx, "creator_1", constants.BucketAvailable, models.MustMoney("100.01")); !errors.Is(err, ErrInsufficientFunds) {
		t.Fatalf("expected insufficient funds, got %v", err)
	}
	if err := h.accounts.MoveBucket(ctx, "creator_1", models.MustMoney("40"), constants.BucketAvailable, constants.BucketReserved); err != nil {
		t.Fatalf("move bucket failed: %v", err)
	}
	if err := h.accounts.MoveBucket(ctx, "creator_1", models.MustMoney("61"), constants.BucketAvailable, constants.BucketReserved); !errors.Is(err, ErrInsufficientFunds) {
		t.Fatalf("expected insufficient funds on move, got %v", err)
	}
	account := h.mustAccount(t, "creator_1")
	assertMoney(t, "available", account.Available, "60")
	assertMoney(t, "reserved", account.Reserved, "40")

	if err := h.accounts.Credit(ctx, "nobody", constants.BucketAvailable, models.MustMoney("1")); !errors.Is(err, ErrAccountNotFound) {
		t.Fatalf("expected account not found, got %v", err)
	}
	if err := h.accounts.Debit(ctx, "nobody", constants.BucketAvailable, models.MustMoney("1")); !errors.Is(err, ErrAccountNotFound) {
		t.Fatalf("expected account not found on debit, got %v", err)
	}
	if err := h.accounts.Credit(ctx, "creator_1", constants.BucketAvailable, models.MustMoney("-1")); !errors.Is(err, ErrInvalidRequest) {
		t.Fatalf("expected invalid request for negative amount, got %v", err)
	}
}

func TestSetVerification(t *testing.T) {
	h := setupFinanceTest(t)
	ctx := context.Background()
	if _, err := h.accounts.CreateAccountIfAbsent(ctx, "creator_1", constants.AccountTypeCreator); err != nil {
		t.Fatalf("create account failed: %v", err)
	}
	account, err := h.accounts.SetVerification(ctx, "creator_1", constants.VerificationPartial, 2)
	if err != nil {
		t.Fatalf("set verification failed: %v", err)
	}
	if account.VerificationStatus != constants.VerificationPartial || account.KYCLevel != 2 {
		t.Fatalf("unexpected account: %+v", account)
	}
	if _, err := h.accounts.SetVerification(ctx, "creator_1", "pending_review", 2); !errors.Is(err, ErrInvalidRequest) {
		t.Fatalf("expected invalid status rejected, got %v", err)
	}
	if _, err := h.accounts.SetVerification(ctx, "creator_1", constants.VerificationVerified, 4); !errors.Is(err, ErrInvalidRequest) {
		t.Fatalf("expected invalid kyc level rejected, got %v", err)
	}
	if _, err := h.accounts.SetVerification(ctx, "nobody", constants.VerificationVerified, 2); !errors.Is(err, ErrAccountNotFound) {
		t.Fatalf("expected account not found, got %v", err)
	}
}
