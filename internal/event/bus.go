package event

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/shopspring/decimal"
)

// TickEvent is published once per symbol per simulator step.
type TickEvent struct {
	Seq           uint64          `json:"seq"`
	Symbol        string          `json:"symbol"`
	Price         decimal.Decimal `json:"price"`
	Change        decimal.Decimal `json:"change"`
	ChangePercent decimal.Decimal `json:"changePercent"`
	Volume        int64           `json:"volume"`
	Timestamp     time.Time       `json:"timestamp"`
}

// Bus fans tick events out to subscribers.
// Publishing never blocks: a subscriber whose buffer is full misses the event.
type Bus struct {
	mu      sync.RWMutex
	subs    map[uint64]chan TickEvent
	nextID  uint64
	seq     atomic.Uint64
	dropped atomic.Uint64
}

// NewBus creates an empty bus.
func NewBus() *Bus {
	return &Bus{subs: make(map[uint64]chan TickEvent)}
}

// Subscribe registers a subscriber with the given buffer size.
// The returned cancel func unregisters it and closes the channel.
func (b *Bus) Subscribe(buffer int) (<-chan TickEvent, func()) {
	ch := make(chan TickEvent, buffer)

	b.mu.Lock()
	id := b.nextID
	b.nextID++
	b.subs[id] = ch
	b.mu.Unlock()

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			b.mu.Lock()
			delete(b.subs, id)
			b.mu.Unlock()
			close(ch)
		})
	}
	return ch, cancel
}

// Publish stamps the event with the next sequence number and delivers it.
func (b *Bus) Publish(ev TickEvent) {
	ev.Seq = b.seq.Add(1)

	b.mu.RLock()
	defer b.mu.RUnlock()
	for _, ch := range b.subs {
		select {
		case ch <- ev:
		default: // DROP
			b.dropped.Add(1)
		}
	}
}

// Subscribers returns the number of active subscribers.
func (b *Bus) Subscribers() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs)
}

// Dropped returns how many deliveries were skipped due to full buffers.
func (b *Bus) Dropped() uint64 {
	return b.dropped.Load()
}
