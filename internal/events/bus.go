package events

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/fanzfinance/internal/logger"
)

// AllTypes 订阅全部事件类型
const AllTypes = "*"

const defaultSubscriberBuffer = 64

type subscriber struct {
	id        uint64
	eventType string
	ch        chan Event
}

// Bus 进程内事件总线，订阅者通过带缓冲的通道接收事件
// 订阅者缓冲已满时丢弃该订阅者的本次事件，不阻塞投递方
type Bus struct {
	mu      sync.RWMutex
	nextID  uint64
	subs    map[uint64]*subscriber
	dropped atomic.Uint64
}

// NewBus 创建事件总线
func NewBus() *Bus {
	return &Bus{subs: make(map[uint64]*subscriber)}
}

// Subscribe 订阅指定类型事件，返回接收通道与取消函数
func (b *Bus) Subscribe(eventType string, buffer int) (<-chan Event, func()) {
	if buffer <= 0 {
		buffer = defaultSubscriberBuffer
	}
	if eventType == "" {
		eventType = AllTypes
	}
	b.mu.Lock()
	b.nextID++
	sub := &subscriber{id: b.nextID, eventType: eventType, ch: make(chan Event, buffer)}
	b.subs[sub.id] = sub
	b.mu.Unlock()

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			b.mu.Lock()
			delete(b.subs, sub.id)
			b.mu.Unlock()
			close(sub.ch)
		})
	}
	return sub.ch, cancel
}

// Publish 投递事件，实现 Sink
func (b *Bus) Publish(ctx context.Context, event Event) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	b.mu.RLock()
	defer b.mu.RUnlock()
	for _, sub := range b.subs {
		if sub.eventType != AllTypes && sub.eventType != event.Type {
			continue
		}
		select {
		case sub.ch <- event:
		default:
			b.dropped.Add(1)
			logger.Warnw("event_bus_subscriber_full", "event_id", event.ID, "type", event.Type, "subscriber", sub.id)
		}
	}
	return nil
}

// Dropped 因订阅者缓冲满而丢弃的事件数
func (b *Bus) Dropped() uint64 {
	return b.dropped.Load()
}
