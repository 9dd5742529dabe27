package provider

import (
	"context"
	"errors"
	"fmt"

	"github.com/fanzfinance/internal/authz"
	"github.com/fanzfinance/internal/cache"
	"github.com/fanzfinance/internal/config"
	"github.com/fanzfinance/internal/events"
	"github.com/fanzfinance/internal/gateway"
	"github.com/fanzfinance/internal/ledger"
	"github.com/fanzfinance/internal/logger"
	"github.com/fanzfinance/internal/models"
	"github.com/fanzfinance/internal/payment/simulated"
	"github.com/fanzfinance/internal/queue"
	"github.com/fanzfinance/internal/repository"
	"github.com/fanzfinance/internal/risk"
	"github.com/fanzfinance/internal/service"

	"gorm.io/gorm"
)

// Container 依赖注入容器
type Container struct {
	Config      *config.Config
	DB          *gorm.DB
	QueueClient *queue.Client
	Dispatcher  service.TaskDispatcher
	Inline      *service.InlineDispatcher
	Registry    *gateway.Registry
	Processor   *simulated.Processor
	EventBus    *events.Bus
	Relay       *events.Relay
	Authz       *authz.Service

	// Repositories
	AccountRepo     repository.AccountRepository
	TransactionRepo repository.TransactionRepository
	LedgerRepo      repository.LedgerRepository
	GatewayRepo     repository.GatewayRepository
	IdempotencyRepo repository.IdempotencyRepository
	OutboxRepo      repository.OutboxRepository
	SummaryRepo     repository.SummaryRepository

	// Services
	AccountService     *service.AccountService
	TransactionService *service.TransactionService
	PayoutService      *service.PayoutService
	SummaryService     *service.SummaryService
}

// NewContainer 初始化容器，db 为空时使用 models.DB
func NewContainer(cfg *config.Config, db *gorm.DB) (*Container, error) {
	if cfg == nil {
		return nil, errors.New("config is nil")
	}
	if db == nil {
		db = models.DB
	}
	if db == nil {
		return nil, errors.New("database is not initialized")
	}

	// 初始化缓存
	if err := cache.InitRedis(&cfg.Redis); err != nil {
		logger.Warnw("provider_init_redis_failed", "error", err)
	}

	// 初始化队列客户端
	var queueClient *queue.Client
	if cfg.Queue.Enabled {
		qc, err := queue.NewClient(&cfg.Queue)
		if err != nil {
			logger.Errorw("provider_init_queue_client_failed", "error", err)
		} else {
			queueClient = qc
		}
	}

	c := &Container{
		Config:      cfg,
		DB:          db,
		QueueClient: queueClient,
	}

	// 1. 初始化 Repositories
	c.initRepositories()

	// 2. 初始化网关目录与执行器
	if err := c.initGateways(); err != nil {
		return nil, err
	}

	// 3. 初始化 Services
	c.initServices()

	// 4. 初始化事件出站
	c.initEvents()

	// 5. 初始化调用方授权
	if cfg.Authz.Enabled {
		authzService, err := authz.NewService(db)
		if err != nil {
			return nil, err
		}
		c.Authz = authzService
	}
	return c, nil
}

func (c *Container) initRepositories() {
	db := c.DB
	c.AccountRepo = repository.NewAccountRepository(db)
	c.TransactionRepo = repository.NewTransactionRepository(db)
	c.LedgerRepo = repository.NewLedgerRepository(db)
	c.GatewayRepo = repository.NewGatewayRepository(db)
	c.IdempotencyRepo = repository.NewIdempotencyRepository(db)
	c.OutboxRepo = repository.NewOutboxRepository(db)
	c.SummaryRepo = repository.NewSummaryRepository(db)
}

func (c *Container) initGateways() error {
	registry, err := gateway.NewRegistryFromConfig(c.Config.Finance.Gateways)
	if err != nil {
		return fmt.Errorf("load gateway catalog: %w", err)
	}
	c.Registry = registry

	simCfg, err := simulated.ParseConfig(c.Config.Finance.Simulator)
	if err != nil {
		return fmt.Errorf("load simulator config: %w", err)
	}
	processor, err := simulated.New(simCfg)
	if err != nil {
		return err
	}
	c.Processor = processor
	return nil
}

func (c *Container) initServices() {
	finance := c.Config.Finance
	engine := ledger.NewEngine(nil)
	c.AccountService = service.NewAccountService(c.DB, c.AccountRepo, finance, nil)
	c.TransactionService = service.NewTransactionService(service.TransactionServiceOptions{
		DB:          c.DB,
		TxnRepo:     c.TransactionRepo,
		LedgerRepo:  c.LedgerRepo,
		GatewayRepo: c.GatewayRepo,
		IdemRepo:    c.IdempotencyRepo,
		OutboxRepo:  c.OutboxRepo,
		Accounts:    c.AccountService,
		Registry:    c.Registry,
		Assessor:    risk.NewAssessor(finance.RiskBlockThreshold, 0),
		Engine:      engine,
		Executor:    c.Processor,
		Config:      finance,
	})
	c.PayoutService = service.NewPayoutService(service.PayoutServiceOptions{
		DB:         c.DB,
		TxnRepo:    c.TransactionRepo,
		LedgerRepo: c.LedgerRepo,
		OutboxRepo: c.OutboxRepo,
		Accounts:   c.AccountService,
		Registry:   c.Registry,
		Engine:     engine,
		Disburser:  c.Processor,
		Config:     finance,
	})
	c.SummaryService = service.NewSummaryService(c.SummaryRepo, finance.SummaryCacheTTL(), nil)

	// 队列启用时任务交给 asynq，否则在进程内执行
	if c.QueueClient != nil && c.QueueClient.Enabled() {
		c.Dispatcher = c.QueueClient
	} else {
		c.Inline = service.NewInlineDispatcher()
		c.Inline.Bind(c.TransactionService, c.PayoutService)
		c.Dispatcher = c.Inline
	}
	c.TransactionService.SetDispatcher(c.Dispatcher)
	c.PayoutService.SetDispatcher(c.Dispatcher)
}

func (c *Container) initEvents() {
	c.EventBus = events.NewBus()
	c.Relay = events.NewRelay(c.OutboxRepo, events.MultiSink{events.LogSink{}, c.EventBus}, events.RelayOptions{})
}

// Bootstrap 同步网关目录、创建系统账户并写入预置授权策略
func (c *Container) Bootstrap(ctx context.Context) error {
	if err := c.GatewayRepo.SyncCatalog(c.Registry.All()); err != nil {
		return fmt.Errorf("sync gateway catalog: %w", err)
	}
	if err := c.AccountService.ProvisionSystemAccounts(ctx); err != nil {
		return err
	}
	if c.Authz != nil {
		if err := c.Authz.BootstrapBuiltinRoles(); err != nil {
			return err
		}
		if err := c.Authz.BindServices(c.Config.Authz.ServiceRoles); err != nil {
			return err
		}
	}
	if err := c.SummaryService.Invalidate(ctx); err != nil {
		logger.Warnw("provider_summary_cache_invalidate_failed", "error", err)
	}
	return nil
}

// Close 释放容器持有的资源
func (c *Container) Close() error {
	if c == nil {
		return nil
	}
	if c.Inline != nil {
		c.Inline.Stop()
	}
	var errs []error
	if c.QueueClient != nil {
		errs = append(errs, c.QueueClient.Close())
	}
	errs = append(errs, cache.Close())
	return errors.Join(errs...)
}
