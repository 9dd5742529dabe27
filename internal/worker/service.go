package worker

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/fanzfinance/internal/config"
	"github.com/fanzfinance/internal/logger"
	"github.com/fanzfinance/internal/queue"

	"github.com/hibiken/asynq"
)

const (
	authorizationSweepInterval = 15 * time.Second
	settlementSweepInterval    = time.Minute
)

// Service 异步任务与周期扫描服务，队列未启用时只运行扫描
type Service struct {
	name          string
	server        *asynq.Server
	mux           *asynq.ServeMux
	consumer      *Consumer
	relayInterval time.Duration
	done          chan struct{}
	stopOnce      sync.Once
}

// NewService 创建异步任务服务
func NewService(cfg *config.Config, consumer *Consumer) (*Service, error) {
	if cfg == nil {
		return nil, errors.New("config is nil")
	}
	if consumer == nil || consumer.Container == nil {
		return nil, errors.New("consumer is nil")
	}
	svc := &Service{
		name:          "worker",
		consumer:      consumer,
		relayInterval: cfg.Finance.OutboxRelayInterval(),
		done:          make(chan struct{}),
	}
	if cfg.Queue.Enabled {
		opt, serverCfg := queue.BuildServerConfig(&cfg.Queue)
		svc.server = asynq.NewServer(opt, serverCfg)
		svc.mux = asynq.NewServeMux()
		consumer.Register(svc.mux)
	}
	return svc, nil
}

// Name 服务名称
func (s *Service) Name() string {
	if s == nil || s.name == "" {
		return "worker"
	}
	return s.name
}

// Start 启动服务
func (s *Service) Start(ctx context.Context) error {
	if s == nil || s.consumer == nil {
		return errors.New("worker not initialized")
	}
	go s.runLoop(ctx, "outbox_relay", s.relayInterval, s.relayOnce)
	go s.runLoop(ctx, "authorization_sweep", authorizationSweepInterval, s.sweepAuthorizations)
	go s.runLoop(ctx, "settlement_sweep", settlementSweepInterval, s.sweepSettlements)
	if s.server == nil {
		select {
		case <-ctx.Done():
		case <-s.done:
		}
		return nil
	}
	return s.server.Run(s.mux)
}

// Stop 停止服务
func (s *Service) Stop(ctx context.Context) error {
	if s == nil {
		return nil
	}
	_ = ctx
	s.stopOnce.Do(func() { close(s.done) })
	if s.server != nil {
		s.server.Shutdown()
	}
	return nil
}

func (s *Service) runLoop(ctx context.Context, name string, interval time.Duration, fn func(ctx context.Context)) {
	if interval <= 0 {
		logger.Warnw("worker_loop_disabled", "loop", name)
		return
	}
	fn(ctx)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-s.done:
			return
		case <-ticker.C:
			fn(ctx)
		}
	}
}

func (s *Service) relayOnce(ctx context.Context) {
	if s.consumer.Relay == nil {
		return
	}
	delivered, err := s.consumer.Relay.RunOnce(ctx)
	if err != nil {
		logger.Warnw("worker_outbox_relay_failed", "error", err)
		return
	}
	if delivered > 0 {
		logger.Debugw("worker_outbox_relay_delivered", "count", delivered)
	}
}

func (s *Service) sweepAuthorizations(ctx context.Context) {
	expired, err := s.consumer.TransactionService.ExpireStaleAuthorizations(ctx)
	if err != nil {
		logger.Warnw("worker_authorization_sweep_failed", "error", err)
		return
	}
	if expired > 0 {
		logger.Infow("worker_authorization_sweep_expired", "count", expired)
	}
}

func (s *Service) sweepSettlements(ctx context.Context) {
	released, err := s.consumer.TransactionService.ReleaseDueSettlements(ctx)
	if err != nil {
		logger.Warnw("worker_settlement_sweep_failed", "error", err)
		return
	}
	if released > 0 {
		logger.Infow("worker_settlement_sweep_released", "count", released)
	}
}
