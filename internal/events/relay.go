package events

import (
	"context"
	"errors"
	"time"

	"github.com/fanzfinance/internal/logger"
	"github.com/fanzfinance/internal/repository"
)

const (
	defaultRelayBatch       = 100
	defaultRelayMaxAttempts = 10
)

// Relay 轮询 outbox 并把事件投递到 Sink
// 同一交易的事件按写入顺序投递，前序事件失败时本轮跳过该交易的后续事件
type Relay struct {
	repo        repository.OutboxRepository
	sink        Sink
	batch       int
	maxAttempts int
	now         func() time.Time
}

// RelayOptions 投递参数
type RelayOptions struct {
	Batch       int
	MaxAttempts int
	Now         func() time.Time
}

// NewRelay 创建 outbox 投递器
func NewRelay(repo repository.OutboxRepository, sink Sink, opts RelayOptions) *Relay {
	if opts.Batch <= 0 {
		opts.Batch = defaultRelayBatch
	}
	if opts.MaxAttempts <= 0 {
		opts.MaxAttempts = defaultRelayMaxAttempts
	}
	if opts.Now == nil {
		opts.Now = func() time.Time { return time.Now().UTC() }
	}
	if sink == nil {
		sink = LogSink{}
	}
	return &Relay{
		repo:        repo,
		sink:        sink,
		batch:       opts.Batch,
		maxAttempts: opts.MaxAttempts,
		now:         opts.Now,
	}
}

// RunOnce 投递一批待投递事件，返回成功投递数量
func (r *Relay) RunOnce(ctx context.Context) (int, error) {
	if r == nil || r.repo == nil {
		return 0, errors.New("outbox relay not initialized")
	}
	pending, err := r.repo.ListPending(r.maxAttempts, r.batch)
	if err != nil {
		return 0, err
	}
	blocked := make(map[string]struct{})
	delivered := 0
	for i := range pending {
		if err := ctx.Err(); err != nil {
			return delivered, err
		}
		record := &pending[i]
		if _, ok := blocked[record.TransactionNo]; ok && record.TransactionNo != "" {
			continue
		}
		event, err := FromOutbox(record)
		if err == nil {
			err = r.sink.Publish(ctx, event)
		}
		if err != nil {
			blocked[record.TransactionNo] = struct{}{}
			logger.Warnw("outbox_relay_publish_failed",
				"event_id", record.EventID,
				"type", record.Type,
				"transaction_no", record.TransactionNo,
				"attempts", record.Attempts+1,
				"error", err,
			)
			if markErr := r.repo.MarkFailed(record.ID, err.Error()); markErr != nil {
				return delivered, markErr
			}
			continue
		}
		if err := r.repo.MarkDispatched(record.ID, r.now()); err != nil {
			return delivered, err
		}
		delivered++
	}
	return delivered, nil
}
