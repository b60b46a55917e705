package eventbus

import (
	"sync"
	"sync/atomic"
	"time"
)

// Topic names published by the notification center.
const (
	TopicDeliverySent          = "delivery.sent"
	TopicDeliveryFailed        = "delivery.failed"
	TopicDeliverySkipped       = "delivery.skipped"
	TopicAlarmArmed            = "alarm.armed"
	TopicAlarmRepeated         = "alarm.repeated"
	TopicAlarmConfirmed        = "alarm.confirmed"
	TopicAlarmExhausted        = "alarm.exhausted"
	TopicMaintenanceSuppressed = "maintenance.suppressed"
)

// Event is a lightweight, in-memory signal used to decouple components.
//
// Contract:
//   - Publish MUST be non-blocking.
//   - Subscribers MUST use buffered channels.
//   - Slow subscribers may drop events.
type Event struct {
	Type string
	Time time.Time
	Data any
}

// DeliveryEvent is the payload of delivery.* events.
type DeliveryEvent struct {
	Channel     string `json:"channel"`
	Recipient   string `json:"recipient"`
	MessageType string `json:"message_type"`
	Diagnostic  string `json:"diagnostic,omitempty"`
}

// AlarmEvent is the payload of alarm.* events.
type AlarmEvent struct {
	Title   string `json:"title,omitempty"`
	Attempt int    `json:"attempt"`
	Limit   int    `json:"limit"`
}

// SuppressedEvent is the payload of maintenance.suppressed.
type SuppressedEvent struct {
	Operation string `json:"operation"`
}

type Bus interface {
	Publish(e Event)
	Subscribe(buffer int) (ch <-chan Event, unsubscribe func())
}

// New returns an in-memory fanout bus. It owns no goroutines.
func New() Bus {
	return &memBus{subs: map[uint64]chan Event{}}
}

// Nop returns a bus that drops every event.
func Nop() Bus { return nopBus{} }

type nopBus struct{}

func (nopBus) Publish(Event) {}
func (nopBus) Subscribe(int) (<-chan Event, func()) {
	ch := make(chan Event)
	var once sync.Once
	return ch, func() { once.Do(func() { close(ch) }) }
}

type memBus struct {
	mu   sync.RWMutex
	subs map[uint64]chan Event
	seq  atomic.Uint64
}

func (b *memBus) Publish(e Event) {
	if e.Time.IsZero() {
		e.Time = time.Now()
	}
	b.mu.RLock()
	chs := make([]chan Event, 0, len(b.subs))
	for _, ch := range b.subs {
		chs = append(chs, ch)
	}
	b.mu.RUnlock()

	for _, ch := range chs {
		// A concurrent unsubscribe may close ch; recover from the send panic.
		func() {
			defer func() { _ = recover() }()
			select {
			case ch <- e:
			default:
			}
		}()
	}
}

func (b *memBus) Subscribe(buffer int) (<-chan Event, func()) {
	if buffer <= 0 {
		buffer = 8
	}
	ch := make(chan Event, buffer)
	id := b.seq.Add(1)

	b.mu.Lock()
	b.subs[id] = ch
	b.mu.Unlock()

	var once sync.Once
	unsub := func() {
		once.Do(func() {
			b.mu.Lock()
			delete(b.subs, id)
			b.mu.Unlock()
			close(ch)
		})
	}
	return ch, unsub
}
