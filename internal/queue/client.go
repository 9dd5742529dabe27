package queue

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/fanzfinance/internal/config"
	"github.com/fanzfinance/internal/constants"

	"github.com/hibiken/asynq"
)

const (
	// DefaultQueue 默认队列名称
	DefaultQueue = constants.QueueDefault
	// CriticalQueue 资金关键路径队列
	CriticalQueue = constants.QueueCritical
)

// Client 队列客户端封装
type Client struct {
	client       *asynq.Client
	enabled      bool
	defaultQueue string
}

// NewClient 创建队列客户端
func NewClient(cfg *config.QueueConfig) (*Client, error) {
	if cfg == nil || !cfg.Enabled {
		return &Client{enabled: false, defaultQueue: DefaultQueue}, nil
	}
	opt := buildRedisOpt(cfg)
	client := asynq.NewClient(opt)
	return &Client{
		client:       client,
		enabled:      true,
		defaultQueue: DefaultQueue,
	}, nil
}

// Enabled 判断是否启用
func (c *Client) Enabled() bool {
	return c != nil && c.enabled && c.client != nil
}

// Close 关闭客户端
func (c *Client) Close() error {
	if c == nil || c.client == nil {
		return nil
	}
	return c.client.Close()
}

// EnqueuePaymentAuthorize 推送网关授权任务
func (c *Client) EnqueuePaymentAuthorize(transactionNo string) error {
	return c.enqueue(TaskPaymentAuthorize, transactionNo,
		asynq.Queue(CriticalQueue),
		asynq.MaxRetry(3),
	)
}

// EnqueuePaymentAuthTimeout 推送授权超时检查任务
func (c *Client) EnqueuePaymentAuthTimeout(transactionNo string, delay time.Duration) error {
	return c.enqueue(TaskPaymentAuthTimeout, transactionNo,
		asynq.Queue(CriticalQueue),
		asynq.ProcessIn(nonNegative(delay)),
	)
}

// EnqueueSettlementRelease 推送结算释放任务
func (c *Client) EnqueueSettlementRelease(transactionNo string, delay time.Duration) error {
	return c.enqueue(TaskSettlementRelease, transactionNo,
		asynq.Queue(c.defaultQueue),
		asynq.ProcessIn(nonNegative(delay)),
	)
}

// EnqueuePayoutDisburse 推送提现打款任务
func (c *Client) EnqueuePayoutDisburse(transactionNo string) error {
	return c.enqueue(TaskPayoutDisburse, transactionNo,
		asynq.Queue(c.defaultQueue),
		asynq.MaxRetry(10),
	)
}

func (c *Client) enqueue(taskType, transactionNo string, opts ...asynq.Option) error {
	if !c.Enabled() {
		return nil
	}
	task, err := NewTransactionTask(taskType, TransactionPayload{TransactionNo: transactionNo})
	if err != nil {
		return err
	}
	options := append([]asynq.Option{asynq.TaskID(taskID(taskType, transactionNo))}, opts...)
	_, err = c.client.Enqueue(task, options...)
	if errors.Is(err, asynq.ErrTaskIDConflict) {
		return nil
	}
	return err
}

// BuildServerConfig 生成队列服务配置
func BuildServerConfig(cfg *config.QueueConfig) (asynq.RedisClientOpt, asynq.Config) {
	opt := buildRedisOpt(cfg)
	concurrency := 10
	if cfg != nil && cfg.Concurrency > 0 {
		concurrency = cfg.Concurrency
	}
	queues := map[string]int{CriticalQueue: 6, DefaultQueue: 3}
	if cfg != nil && len(cfg.Queues) > 0 {
		queues = cfg.Queues
	}
	return opt, asynq.Config{
		Concurrency: concurrency,
		Queues:      queues,
	}
}

func buildRedisOpt(cfg *config.QueueConfig) asynq.RedisClientOpt {
	host := "127.0.0.1"
	port := 6379
	password := ""
	db := 0
	if cfg != nil {
		if strings.TrimSpace(cfg.Host) != "" {
			host = strings.TrimSpace(cfg.Host)
		}
		if cfg.Port > 0 {
			port = cfg.Port
		}
		password = cfg.Password
		db = cfg.DB
	}
	return asynq.RedisClientOpt{
		Addr:     fmt.Sprintf("%s:%d", host, port),
		Password: password,
		DB:       db,
	}
}

func nonNegative(delay time.Duration) time.Duration {
	if delay < 0 {
		return 0
	}
	return delay
}
