// Package events is the observer contract between the core aggregates and whatever renders or
// ships their state changes.
package events

import (
	"sync"
	"time"
)

type Type string

const (
	CartUpdated       Type = "cart.updated"
	SessionChanged    Type = "session.changed"
	CheckoutStep      Type = "checkout.step"
	CheckoutConfirmed Type = "checkout.confirmed"
)

// Event is delivered to subscribers after the state change it describes is applied and persisted.
// Payloads never carry tokens or card data.
type Event struct {
	Type    Type      `json:"type"`
	Key     string    `json:"key,omitempty"`
	Payload any       `json:"payload,omitempty"`
	At      time.Time `json:"at"`
}

type Handler func(Event)

// Bus fans events out to subscribers synchronously, in subscription order.
// A nil *Bus drops everything.
type Bus struct {
	mu     sync.RWMutex
	nextID int
	subs   map[int]Handler
	order  []int
}

func NewBus() *Bus {
	return &Bus{subs: make(map[int]Handler)}
}

// Subscribe registers h and returns a function that removes it.
func (b *Bus) Subscribe(h Handler) func() {
	b.mu.Lock()
	defer b.mu.Unlock()

	id := b.nextID
	b.nextID++
	b.subs[id] = h
	b.order = append(b.order, id)

	var once sync.Once
	return func() {
		once.Do(func() { b.unsubscribe(id) })
	}
}

func (b *Bus) unsubscribe(id int) {
	b.mu.Lock()
	defer b.mu.Unlock()

	delete(b.subs, id)
	for i, v := range b.order {
		if v == id {
			b.order = append(b.order[:i], b.order[i+1:]...)
			break
		}
	}
}

// Publish delivers e to every current subscriber. Handlers run outside the bus lock, so they may
// subscribe, unsubscribe or call back into the publisher.
func (b *Bus) Publish(e Event) {
	if b == nil {
		return
	}
	if e.At.IsZero() {
		e.At = time.Now().UTC()
	}

	b.mu.RLock()
	handlers := make([]Handler, 0, len(b.order))
	for _, id := range b.order {
		handlers = append(handlers, b.subs[id])
	}
	b.mu.RUnlock()

	for _, h := range handlers {
		h(e)
	}
}
