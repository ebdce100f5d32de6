// Package events fans out change notifications to connected clients.
// Delivery is fire-and-forget; a slow subscriber drops events rather than
// blocking publishers.
package events

import (
	"context"
	"sync"
	"time"

	"github.com/shopspring/decimal"
)

const (
	BudgetChanged  = "budget.changed"
	UploadsChanged = "uploads.changed"
	VisaChanged    = "visa.changed"
)

type Event struct {
	Type         string           `json:"type"`
	Code         string           `json:"code"`
	Remaining    *decimal.Decimal `json:"remaining,omitempty"`
	AttachmentID string           `json:"attachment_id,omitempty"`
	Status       string           `json:"status,omitempty"`
	At           time.Time        `json:"at"`
}

type Publisher interface {
	Publish(ctx context.Context, ev Event) error
}

type Subscriber interface {
	Subscribe() (<-chan Event, func())
}

// subscriberBuffer is how many events a subscriber may lag before drops.
const subscriberBuffer = 16

// Hub is an in-process broadcaster.
type Hub struct {
	mu     sync.RWMutex
	nextID int
	subs   map[int]chan Event
}

func NewHub() *Hub {
	return &Hub{subs: make(map[int]chan Event)}
}

// Publish delivers ev to every current subscriber without blocking.
func (h *Hub) Publish(_ context.Context, ev Event) error {
	if ev.At.IsZero() {
		ev.At = time.Now().UTC()
	}
	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, ch := range h.subs {
		select {
		case ch <- ev:
		default:
		}
	}
	return nil
}

// Subscribe registers a listener. The returned func unsubscribes and closes the channel.
func (h *Hub) Subscribe() (<-chan Event, func()) {
	ch := make(chan Event, subscriberBuffer)
	h.mu.Lock()
	id := h.nextID
	h.nextID++
	h.subs[id] = ch
	h.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			h.mu.Lock()
			delete(h.subs, id)
			h.mu.Unlock()
			close(ch)
		})
	}
}

func (h *Hub) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs)
}
