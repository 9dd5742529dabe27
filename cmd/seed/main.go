package main

import (
	"context"
	"flag"

	"github.com/fanzfinance/internal/config"
	"github.com/fanzfinance/internal/constants"
	"github.com/fanzfinance/internal/logger"
	"github.com/fanzfinance/internal/models"
	"github.com/fanzfinance/internal/provider"
)

type demoAccount struct {
	userID       string
	accountType  string
	verification string
	kycLevel     int
	available    string
}

var demoAccounts = []demoAccount{
	{userID: "creator_demo", accountType: constants.AccountTypeCreator, verification: constants.VerificationVerified, kycLevel: 2, available: "250.00"},
	{userID: "creator_unverified", accountType: constants.AccountTypeCreator, verification: constants.VerificationUnverified},
	{userID: "fan_demo", accountType: constants.AccountTypeFan, verification: constants.VerificationVerified, kycLevel: 1},
}

func main() {
	var withDemo bool
	flag.BoolVar(&withDemo, "demo", false, "同时创建演示账户")
	flag.Parse()

	// 连接数据库
	cfg := config.Load()
	logger.Init(cfg.Server.Mode, cfg.Log.ToLoggerOptions())
	stdLog := logger.StdLogger()
	if err := models.InitDB(cfg.Database.Driver, cfg.Database.DSN, models.DBPoolConfig{
		MaxOpenConns:           cfg.Database.Pool.MaxOpenConns,
		MaxIdleConns:           cfg.Database.Pool.MaxIdleConns,
		ConnMaxLifetimeSeconds: cfg.Database.Pool.ConnMaxLifetimeSeconds,
		ConnMaxIdleTimeSeconds: cfg.Database.Pool.ConnMaxIdleTimeSeconds,
	}); err != nil {
		stdLog.Fatalf("Failed to connect database: %v", err)
	}

	// 自动迁移
	if err := models.AutoMigrate(); err != nil {
		stdLog.Fatalf("Failed to migrate database: %v", err)
	}

	container, err := provider.NewContainer(cfg, nil)
	if err != nil {
		stdLog.Fatalf("Failed to build container: %v", err)
	}
	defer func() { _ = container.Close() }()

	// 网关目录、系统账户与预置角色
	ctx := context.Background()
	if err := container.Bootstrap(ctx); err != nil {
		stdLog.Fatalf("Failed to bootstrap: %v", err)
	}
	stdLog.Printf("Synced %d gateways", len(container.Registry.All()))

	if !withDemo {
		stdLog.Println("Seed completed")
		return
	}

	for _, item := range demoAccounts {
		account, err := container.AccountService.CreateAccountIfAbsent(ctx, item.userID, item.accountType)
		if err != nil {
			stdLog.Printf("Failed to create account %s: %v", item.userID, err)
			continue
		}
		if account.VerificationStatus != item.verification {
			if _, err := container.AccountService.SetVerification(ctx, item.userID, item.verification, item.kycLevel); err != nil {
				stdLog.Printf("Failed to set verification for %s: %v", item.userID, err)
			}
		}
		// 仅对空账户注入演示余额，重复执行不会叠加
		if item.available != "" && account.Available.IsZero() {
			if err := container.AccountService.Credit(ctx, item.userID, constants.BucketAvailable, models.MustMoney(item.available)); err != nil {
				stdLog.Printf("Failed to credit %s: %v", item.userID, err)
				continue
			}
		}
		stdLog.Printf("Account ready: %s", item.userID)
	}
	stdLog.Println("Seed completed")
}
