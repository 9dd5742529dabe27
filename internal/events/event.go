package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/fanzfinance/internal/models"
)

// Event 对外投递的交易事件，携带完整交易快照
type Event struct {
	ID            string             `json:"event_id"`
	Type          string             `json:"type"`
	TransactionNo string             `json:"transaction_no"`
	Transaction   models.Transaction `json:"transaction"`
	OccurredAt    time.Time          `json:"occurred_at"`
}

// Sink 事件投递目标
type Sink interface {
	Publish(ctx context.Context, event Event) error
}

// SinkFunc 函数适配 Sink
type SinkFunc func(ctx context.Context, event Event) error

// Publish 调用函数本身
func (f SinkFunc) Publish(ctx context.Context, event Event) error {
	return f(ctx, event)
}

// Snapshot 把交易序列化为 outbox 载荷
func Snapshot(txn *models.Transaction) (models.JSON, error) {
	if txn == nil {
		return models.JSON{}, nil
	}
	data, err := json.Marshal(txn)
	if err != nil {
		return nil, fmt.Errorf("marshal transaction snapshot: %w", err)
	}
	payload := models.JSON{}
	if err := json.Unmarshal(data, &payload); err != nil {
		return nil, fmt.Errorf("unmarshal transaction snapshot: %w", err)
	}
	return payload, nil
}

// FromOutbox 把 outbox 记录还原为事件
func FromOutbox(record *models.OutboxEvent) (Event, error) {
	event := Event{
		ID:            record.EventID,
		Type:          record.Type,
		TransactionNo: record.TransactionNo,
		OccurredAt:    record.CreatedAt,
	}
	if len(record.Payload) == 0 {
		return event, nil
	}
	data, err := json.Marshal(record.Payload)
	if err != nil {
		return event, fmt.Errorf("marshal outbox payload: %w", err)
	}
	if err := json.Unmarshal(data, &event.Transaction); err != nil {
		return event, fmt.Errorf("decode outbox payload: %w", err)
	}
	return event, nil
}
