package events

import (
	"context"
	"errors"

	"github.com/fanzfinance/internal/logger"
)

// LogSink 把事件写入结构化日志
type LogSink struct{}

// Publish 记录事件
func (LogSink) Publish(ctx context.Context, event Event) error {
	logger.FromContext(ctx).Infow("finance_event_published",
		"event_id", event.ID,
		"type", event.Type,
		"transaction_no", event.TransactionNo,
		"kind", event.Transaction.Kind,
		"status", event.Transaction.Status,
		"amount", event.Transaction.OriginalAmount.String(),
		"currency", event.Transaction.Currency,
	)
	return nil
}

// MultiSink 依次投递到多个目标，全部成功才算成功
type MultiSink []Sink

// Publish 投递事件
func (m MultiSink) Publish(ctx context.Context, event Event) error {
	var errs []error
	for _, sink := range m {
		if sink == nil {
			continue
		}
		if err := sink.Publish(ctx, event); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
