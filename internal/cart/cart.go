// Package cart is the cart aggregate: an ordered list of lines mirrored to the store after every
// mutation. The cart belongs to the device, not to a signed-in user.
package cart

import (
	"context"
	"errors"
	"math"
	"slices"
	"sync"

	"github.com/tvdermeer/3dprint-website/domain"
	"github.com/tvdermeer/3dprint-website/internal/apierr"
	"github.com/tvdermeer/3dprint-website/internal/events"
	"github.com/tvdermeer/3dprint-website/internal/metrics"
	"github.com/tvdermeer/3dprint-website/internal/store"
	"github.com/tvdermeer/3dprint-website/pkg/logger"
)

// Cart is safe for concurrent use. Every mutation is persisted before the lock is released.
type Cart struct {
	mu      sync.Mutex
	store   store.Store
	items   []domain.CartItem
	lastErr error

	log     *logger.Logger
	bus     *events.Bus
	metrics *metrics.Metrics
}

// Option configures a Cart.
type Option func(*Cart)

// WithLogger sets the logger; the default discards everything.
func WithLogger(l *logger.Logger) Option { return func(c *Cart) { c.log = l } }

// WithBus publishes a CartUpdated event with the new totals after every mutation.
func WithBus(b *events.Bus) Option { return func(c *Cart) { c.bus = b } }

// WithMetrics counts snapshot writes and failures.
func WithMetrics(m *metrics.Metrics) Option { return func(c *Cart) { c.metrics = m } }

// New restores the cart from the store. An absent or malformed snapshot gives an empty cart;
// a store failure is logged and kept in LastError.
func New(ctx context.Context, s store.Store, opts ...Option) *Cart {
	c := &Cart{store: s}
	for _, opt := range opts {
		opt(c)
	}
	c.log = logger.OrNop(c.log)

	c.mu.Lock()
	c.lastErr = c.restoreLocked(ctx)
	c.mu.Unlock()
	return c
}

// Reload replaces the in-memory lines with the persisted snapshot.
func (c *Cart) Reload(ctx context.Context) error {
	c.mu.Lock()
	err := c.restoreLocked(ctx)
	c.lastErr = err
	totals := domain.ComputeTotals(c.items)
	c.mu.Unlock()

	c.publish(totals)
	return err
}

func (c *Cart) restoreLocked(ctx context.Context) error {
	var items []domain.CartItem
	found, err := store.GetJSON(ctx, c.store, store.KeyCart, &items)
	if errors.Is(err, store.ErrMalformed) {
		c.log.Warn("discarding malformed cart snapshot", "error", err)
		c.items = nil
		return nil
	}
	if err != nil {
		c.log.Error("failed to restore cart", "error", err)
		return err
	}
	if !found {
		c.items = nil
		return nil
	}

	c.items = items[:0]
	for _, item := range items {
		if item.Quantity <= 0 || item.ID == "" {
			continue
		}
		c.items = append(c.items, item)
	}
	return nil
}

// AddItem increments the line with item.ID by quantity, or appends a new line.
// quantity must be at least 1.
func (c *Cart) AddItem(ctx context.Context, item domain.CartItem, quantity int) error {
	if err := validateAdd(item, quantity); err != nil {
		c.setErr(err)
		return err
	}

	var overflow error
	err := c.mutate(ctx, func() bool {
		if i := c.indexLocked(item.ID); i >= 0 {
			if c.items[i].Quantity > math.MaxInt-quantity {
				overflow = apierr.InvalidField("quantity", "Quantity is too large")
				return false
			}
			c.items[i].Quantity += quantity
			return true
		}
		item.Quantity = quantity
		c.items = append(c.items, item)
		return true
	})
	if overflow != nil {
		c.setErr(overflow)
		return overflow
	}
	return err
}

func validateAdd(item domain.CartItem, quantity int) error {
	fields := map[string]string{}
	if item.ID == "" {
		fields["id"] = "Item id is required"
	}
	if quantity < 1 {
		fields["quantity"] = "Quantity must be at least 1"
	}
	if item.UnitPrice.IsNegative() {
		fields["price"] = "Price cannot be negative"
	}
	if len(fields) > 0 {
		return &apierr.ValidationError{Fields: fields}
	}
	return nil
}

// RemoveItem deletes the line with id. Removing an absent id changes nothing.
func (c *Cart) RemoveItem(ctx context.Context, id string) error {
	return c.mutate(ctx, func() bool {
		i := c.indexLocked(id)
		if i < 0 {
			return false
		}
		c.items = slices.Delete(c.items, i, i+1)
		return true
	})
}

// SetQuantity updates a line's quantity; quantity <= 0 removes the line.
func (c *Cart) SetQuantity(ctx context.Context, id string, quantity int) error {
	if quantity <= 0 {
		return c.RemoveItem(ctx, id)
	}
	return c.mutate(ctx, func() bool {
		i := c.indexLocked(id)
		if i < 0 {
			return false
		}
		if c.items[i].Quantity == quantity {
			return false
		}
		c.items[i].Quantity = quantity
		return true
	})
}

// Subtract takes the quantities of lines off the cart, dropping lines that reach zero. Lines
// that are no longer in the cart are skipped, so items added since lines was read survive.
func (c *Cart) Subtract(ctx context.Context, lines []domain.CartItem) error {
	return c.mutate(ctx, func() bool {
		changed := false
		for _, line := range lines {
			i := c.indexLocked(line.ID)
			if i < 0 || line.Quantity <= 0 {
				continue
			}
			changed = true
			if c.items[i].Quantity <= line.Quantity {
				c.items = slices.Delete(c.items, i, i+1)
				continue
			}
			c.items[i].Quantity -= line.Quantity
		}
		return changed
	})
}

// Clear empties the cart and persists the empty snapshot.
func (c *Cart) Clear(ctx context.Context) error {
	return c.mutate(ctx, func() bool {
		c.items = nil
		return true
	})
}

// Totals is recomputed from the current lines on every call.
func (c *Cart) Totals() domain.Totals {
	c.mu.Lock()
	defer c.mu.Unlock()
	return domain.ComputeTotals(c.items)
}

// Items returns a copy of the lines in insertion order.
func (c *Cart) Items() []domain.CartItem {
	c.mu.Lock()
	defer c.mu.Unlock()
	return slices.Clone(c.items)
}

// IsEmpty reports whether the cart has no lines.
func (c *Cart) IsEmpty() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.items) == 0
}

// LastError is the most recent failure, cleared by the next successful operation.
func (c *Cart) LastError() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastErr
}

// mutate applies fn and, when it reports a change, writes the snapshot before releasing the lock.
// A failed write keeps the in-memory change.
func (c *Cart) mutate(ctx context.Context, fn func() bool) error {
	c.mu.Lock()
	if !fn() {
		c.lastErr = nil
		c.mu.Unlock()
		return nil
	}

	err := store.SetJSON(ctx, c.store, store.KeyCart, c.snapshotLocked())
	c.metrics.CartPersist(err == nil)
	if err != nil {
		c.log.Error("failed to persist cart", "error", err)
	}
	c.lastErr = err
	totals := domain.ComputeTotals(c.items)
	c.mu.Unlock()

	c.publish(totals)
	return err
}

func (c *Cart) snapshotLocked() []domain.CartItem {
	if c.items == nil {
		return []domain.CartItem{}
	}
	return c.items
}

func (c *Cart) indexLocked(id string) int {
	return slices.IndexFunc(c.items, func(item domain.CartItem) bool { return item.ID == id })
}

func (c *Cart) setErr(err error) {
	c.mu.Lock()
	c.lastErr = err
	c.mu.Unlock()
}

func (c *Cart) publish(totals domain.Totals) {
	c.bus.Publish(events.Event{
		Type:    events.CartUpdated,
		Key:     store.KeyCart,
		Payload: totals,
	})
}
