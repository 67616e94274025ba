// Package ledger holds the authoritative in-process stock counters. Each item
// gets exactly one admission slot; the read-check-increment sequence for a
// given item runs under that slot, items never serialize against each other.
package ledger

import (
	"context"
	"errors"
	"sort"
	"sync"

	"github.com/AndyAnh174/banthuoc-flashsale/internal/core/domain"
)

type entry struct {
	// sem is the admission slot: capacity 1, acquired with a context so a
	// queued caller can time out or cancel. Once admitted a caller runs to
	// completion.
	sem chan struct{}

	// mu guards the fields below. It is held only for the instant of a read
	// or write so snapshot readers never wait behind a critical section.
	mu      sync.Mutex
	item    domain.FlashSaleItem
	perUser map[string]int
	removed bool
}

// Ledger is a keyed registry of item entries.
type Ledger struct {
	mu      sync.RWMutex
	entries map[string]*entry
}

func New() *Ledger {
	return &Ledger{entries: make(map[string]*entry)}
}

// Register installs an item with its per-user totals (empty for a fresh item,
// reloaded sums after a restart). Replaces any existing entry for the id.
func (l *Ledger) Register(item domain.FlashSaleItem, perUser map[string]int) {
	if perUser == nil {
		perUser = make(map[string]int)
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	l.entries[item.ID] = &entry{
		sem:     make(chan struct{}, 1),
		item:    item,
		perUser: perUser,
	}
}

// Acquire admits the caller into the item's critical section. The wait is
// bounded by ctx; a deadline maps to ErrLockTimeout since no state was
// touched, a cancellation while queued is surfaced as the context error.
func (l *Ledger) Acquire(ctx context.Context, itemID string) (*Guard, error) {
	l.mu.RLock()
	e, ok := l.entries[itemID]
	l.mu.RUnlock()
	if !ok {
		return nil, domain.ErrItemNotFound
	}

	select {
	case e.sem <- struct{}{}:
	case <-ctx.Done():
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return nil, domain.ErrLockTimeout
		}
		return nil, ctx.Err()
	}

	e.mu.Lock()
	removed := e.removed
	e.mu.Unlock()
	if removed {
		// Deleted while we were queued.
		<-e.sem
		return nil, domain.ErrItemNotFound
	}

	return &Guard{e: e}, nil
}

// Snapshot returns a copy of the item without touching the admission slot.
func (l *Ledger) Snapshot(itemID string) (domain.FlashSaleItem, bool) {
	l.mu.RLock()
	e, ok := l.entries[itemID]
	l.mu.RUnlock()
	if !ok {
		return domain.FlashSaleItem{}, false
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.removed {
		return domain.FlashSaleItem{}, false
	}
	return e.item, true
}

// SessionItems returns copies of a session's items ordered by SortOrder.
func (l *Ledger) SessionItems(sessionID string) []domain.FlashSaleItem {
	l.mu.RLock()
	entries := make([]*entry, 0, len(l.entries))
	for _, e := range l.entries {
		entries = append(entries, e)
	}
	l.mu.RUnlock()

	items := make([]domain.FlashSaleItem, 0)
	for _, e := range entries {
		e.mu.Lock()
		if !e.removed && e.item.SessionID == sessionID {
			items = append(items, e.item)
		}
		e.mu.Unlock()
	}
	sort.Slice(items, func(a, b int) bool {
		if items[a].SortOrder != items[b].SortOrder {
			return items[a].SortOrder < items[b].SortOrder
		}
		return items[a].CreatedAt.After(items[b].CreatedAt)
	})
	return items
}

// Guard is a held admission slot. All methods require the guard to still be
// held; Unlock must be called exactly once.
type Guard struct {
	e    *entry
	done bool
}

func (g *Guard) Unlock() {
	if g.done {
		return
	}
	g.done = true
	<-g.e.sem
}

// Item returns a copy of the guarded item.
func (g *Guard) Item() domain.FlashSaleItem {
	g.e.mu.Lock()
	defer g.e.mu.Unlock()
	return g.e.item
}

// UserTotal returns the user's cumulative reserved quantity for this item.
func (g *Guard) UserTotal(userID string) int {
	g.e.mu.Lock()
	defer g.e.mu.Unlock()
	return g.e.perUser[userID]
}

// ApplyReserve increments the sold counter and the user's running total.
// Callers must have verified headroom and the per-user cap first.
func (g *Guard) ApplyReserve(userID string, quantity int) domain.FlashSaleItem {
	g.e.mu.Lock()
	defer g.e.mu.Unlock()
	g.e.item.SoldQuantity += quantity
	g.e.perUser[userID] += quantity
	return g.e.item
}

// ApplyRelease returns quantity to headroom and decrements the user total.
func (g *Guard) ApplyRelease(userID string, quantity int) domain.FlashSaleItem {
	g.e.mu.Lock()
	defer g.e.mu.Unlock()
	g.e.item.SoldQuantity -= quantity
	if g.e.item.SoldQuantity < 0 {
		g.e.item.SoldQuantity = 0
	}
	g.e.perUser[userID] -= quantity
	if g.e.perUser[userID] <= 0 {
		delete(g.e.perUser, userID)
	}
	return g.e.item
}

// Update mutates item metadata in place under the guard.
func (g *Guard) Update(fn func(*domain.FlashSaleItem)) domain.FlashSaleItem {
	g.e.mu.Lock()
	defer g.e.mu.Unlock()
	fn(&g.e.item)
	return g.e.item
}

// Remove marks the entry deleted and drops it from the registry. Queued
// acquirers observe the removal on admission.
func (l *Ledger) Remove(g *Guard) {
	g.e.mu.Lock()
	g.e.removed = true
	id := g.e.item.ID
	g.e.mu.Unlock()

	l.mu.Lock()
	delete(l.entries, id)
	l.mu.Unlock()
}
