package permit

import (
	"sync"
	"time"
)

// EventKind 许可证领域事件类型
type EventKind string

const (
	EventSubmitted         EventKind = "permit.submitted"
	EventApproved          EventKind = "permit.approved"
	EventRejected          EventKind = "permit.rejected"
	EventActivated         EventKind = "permit.activated"
	EventClosed            EventKind = "permit.closed"
	EventCancelled         EventKind = "permit.cancelled"
	EventSuspended         EventKind = "permit.suspended" // 停工令联锁强制挂起
	EventResumed           EventKind = "permit.resumed"   // 停工令关闭后恢复
	EventExtensionApproved EventKind = "permit.extension_approved"
	EventStopWorkRaised    EventKind = "stopwork.raised"
	EventStopWorkResolved  EventKind = "stopwork.resolved"
	EventStopWorkClosed    EventKind = "stopwork.closed"
)

// Event 描述一次许可证 / 停工令状态变化。联锁产生的强制挂起与恢复
// 也通过这里显式发布，而非隐藏在行内更新中。
type Event struct {
	Kind       EventKind    `json:"kind"`
	PermitID   string       `json:"permitId,omitempty"`
	PermitCode string       `json:"permitCode,omitempty"`
	Status     PermitStatus `json:"status,omitempty"`
	StopWorkID string       `json:"stopWorkId,omitempty"`
	Actor      string       `json:"actor,omitempty"`
	OccurredAt time.Time    `json:"occurredAt"`
}

// EventBusConfig 控制事件总线行为
type EventBusConfig struct {
	BufferSize int
}

// EventBus 简单本地事件总线。支持按许可证订阅，以及订阅全部事件
// （供实时事件推送使用）。
type EventBus struct {
	mu     sync.RWMutex
	subs   map[string]map[uint64]chan Event
	all    map[uint64]chan Event
	seq    uint64
	buffer int
}

// NewEventBus 创建事件总线
func NewEventBus(cfg *EventBusConfig) *EventBus {
	buffer := 8
	if cfg != nil && cfg.BufferSize > 0 {
		buffer = cfg.BufferSize
	}
	return &EventBus{
		subs:   make(map[string]map[uint64]chan Event),
		all:    make(map[uint64]chan Event),
		buffer: buffer,
	}
}

// Publish 发布事件。接收方处理慢则丢弃，保持非阻塞。
// 发送在读锁内完成；removeListener 只在写锁内 close，send 与 close 不会交错。
func (b *EventBus) Publish(evt Event) {
	if b == nil {
		return
	}
	b.mu.RLock()
	defer b.mu.RUnlock()
	for _, ch := range b.all {
		select {
		case ch <- evt:
		default:
		}
	}
	if evt.PermitID != "" {
		for _, ch := range b.subs[evt.PermitID] {
			select {
			case ch <- evt:
			default:
			}
		}
	}
}

// Subscribe 订阅指定许可证的事件
func (b *EventBus) Subscribe(permitID string) (<-chan Event, func()) {
	if b == nil {
		return nil, nil
	}
	ch := make(chan Event, b.buffer)
	b.mu.Lock()
	b.seq++
	id := b.seq
	if _, ok := b.subs[permitID]; !ok {
		b.subs[permitID] = make(map[uint64]chan Event)
	}
	b.subs[permitID][id] = ch
	b.mu.Unlock()

	return ch, func() { b.removeListener(permitID, id) }
}

// SubscribeAll 订阅全部事件
func (b *EventBus) SubscribeAll() (<-chan Event, func()) {
	if b == nil {
		return nil, nil
	}
	ch := make(chan Event, b.buffer)
	b.mu.Lock()
	b.seq++
	id := b.seq
	b.all[id] = ch
	b.mu.Unlock()

	return ch, func() { b.removeAllListener(id) }
}

func (b *EventBus) removeListener(permitID string, id uint64) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if listeners, ok := b.subs[permitID]; ok {
		if ch, exists := listeners[id]; exists {
			delete(listeners, id)
			close(ch)
		}
		if len(listeners) == 0 {
			delete(b.subs, permitID)
		}
	}
}

func (b *EventBus) removeAllListener(id uint64) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if ch, exists := b.all[id]; exists {
		delete(b.all, id)
		close(ch)
	}
}
