package app

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"github.com/fanzfinance/internal/config"
	"github.com/fanzfinance/internal/models"

	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
)

type fakeService struct {
	name     string
	startErr error
	block    bool
	stopped  atomic.Int32
}

func (f *fakeService) Name() string { return f.name }

func (f *fakeService) Start(ctx context.Context) error {
	if f.block {
		<-ctx.Done()
		return nil
	}
	return f.startErr
}

func (f *fakeService) Stop(ctx context.Context) error {
	f.stopped.Add(1)
	return nil
}

func TestRunnerStopsAllServicesOnCancel(t *testing.T) {
	first := &fakeService{name: "first", block: true}
	second := &fakeService{name: "second", block: true}
	runner := NewRunner(first, second)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- runner.Run(ctx, time.Second, nil) }()
	cancel()

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("expected nil error on cancel, got %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("runner did not stop")
	}
	if first.stopped.Load() != 1 || second.stopped.Load() != 1 {
		t.Fatalf("expected every service to be stopped once")
	}
}

func TestRunnerReturnsFirstServiceError(t *testing.T) {
	boom := errors.New("listen failed")
	failing := &fakeService{name: "failing", startErr: boom}
	blocking := &fakeService{name: "blocking", block: true}

	err := NewRunner(failing, blocking).Run(context.Background(), time.Second, nil)
	if !errors.Is(err, boom) {
		t.Fatalf("expected start error, got %v", err)
	}
	if blocking.stopped.Load() != 1 {
		t.Fatalf("expected sibling service to be stopped")
	}
}

func TestRunnerRequiresServices(t *testing.T) {
	if err := NewRunner().Run(context.Background(), time.Second, nil); err == nil {
		t.Fatalf("expected error for empty runner")
	}
	if err := RunWithOptions(nil, Options{}); err == nil {
		t.Fatalf("expected error for nil runner")
	}
}

func TestNormalizeOptionsDefaults(t *testing.T) {
	opts := normalizeOptions(Options{})
	if opts.Mode != ModeAll || opts.ShutdownTimeout != 15*time.Second || opts.Logger == nil {
		t.Fatalf("unexpected defaults: %+v", opts)
	}
}

func TestBuildRunnerModes(t *testing.T) {
	dsn := fmt.Sprintf("file:finance_app_test_%d?mode=memory&cache=shared", time.Now().UnixNano())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{TranslateError: true})
	if err != nil {
		t.Fatalf("open sqlite failed: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("get sql db failed: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)
	if err := models.Migrate(db); err != nil {
		t.Fatalf("auto migrate failed: %v", err)
	}
	previous := models.DB
	models.DB = db
	t.Cleanup(func() {
		models.DB = previous
		_ = sqlDB.Close()
	})

	cfg := &config.Config{
		Server: config.ServerConfig{Host: "127.0.0.1", Port: "0", Mode: "debug"},
		Finance: config.FinanceConfig{
			DefaultCurrency:             "USD",
			RiskBlockThreshold:          85,
			AuthorizationTimeoutSeconds: 60,
			Payout:                      config.PayoutConfig{FeePercent: 2},
			Gateways:                    config.DefaultGateways(),
			Simulator:                   map[string]interface{}{"latency_scale": 0},
		},
	}

	cases := []struct {
		mode     string
		services []string
	}{
		{mode: ModeAPI, services: []string{"http"}},
		{mode: ModeWorker, services: []string{"worker"}},
		{mode: ModeAll, services: []string{"http", "worker"}},
	}
	for _, tc := range cases {
		runner, container, err := BuildRunner(context.Background(), cfg, tc.mode)
		if err != nil {
			t.Fatalf("build runner %s failed: %v", tc.mode, err)
		}
		if len(runner.services) != len(tc.services) {
			t.Fatalf("mode %s: expected %d services, got %d", tc.mode, len(tc.services), len(runner.services))
		}
		for i, name := range tc.services {
			if runner.services[i].Name() != name {
				t.Fatalf("mode %s: expected service %s, got %s", tc.mode, name, runner.services[i].Name())
			}
		}
		_ = container.Close()
	}

	if _, _, err := BuildRunner(context.Background(), cfg, "batch"); err == nil {
		t.Fatalf("expected error for unknown mode")
	}
}

type failingStopService struct {
	fakeService
	stopErr error
}

func (f *failingStopService) Stop(ctx context.Context) error {
	f.stopped.Add(1)
	return f.stopErr
}

func TestRunnerReportsStopErrors(t *testing.T) {
	stopErr := errors.New("drain timeout")
	svc := &failingStopService{fakeService: fakeService{name: "http", block: true}, stopErr: stopErr}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := NewRunner(svc).Run(ctx, time.Second, nil)
	if !errors.Is(err, stopErr) {
		t.Fatalf("expected stop error, got %v", err)
	}
}

func TestHTTPServiceStopWithoutStart(t *testing.T) {
	svc := NewHTTPService("127.0.0.1:0", nil)
	if svc.Name() != "http" {
		t.Fatalf("unexpected name: %s", svc.Name())
	}
	if err := svc.Stop(context.Background()); err != nil {
		t.Fatalf("stop before start must succeed: %v", err)
	}
}
