package service

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/AndyAnh174/banthuoc-flashsale/internal/clock"
	"github.com/AndyAnh174/banthuoc-flashsale/internal/core/domain"
	"github.com/AndyAnh174/banthuoc-flashsale/internal/core/ledger"
)

// fakeStore is an in-memory DatabaseRepository for service tests.
type fakeStore struct {
	mu           sync.Mutex
	sessions     map[string]domain.FlashSaleSession
	items        map[string]domain.FlashSaleItem
	reservations map[string]domain.Reservation

	failCreateReservation bool
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		sessions:     make(map[string]domain.FlashSaleSession),
		items:        make(map[string]domain.FlashSaleItem),
		reservations: make(map[string]domain.Reservation),
	}
}

func (f *fakeStore) CreateSession(_ context.Context, s domain.FlashSaleSession) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sessions[s.ID] = s
	return nil
}

func (f *fakeStore) UpdateSession(_ context.Context, s domain.FlashSaleSession) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sessions[s.ID] = s
	return nil
}

func (f *fakeStore) DeleteSession(_ context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.sessions, id)
	for itemID, item := range f.items {
		if item.SessionID == id {
			delete(f.items, itemID)
		}
	}
	return nil
}

func (f *fakeStore) ListSessions(_ context.Context) ([]domain.FlashSaleSession, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]domain.FlashSaleSession, 0, len(f.sessions))
	for _, s := range f.sessions {
		out = append(out, s)
	}
	return out, nil
}

func (f *fakeStore) CreateItem(_ context.Context, item domain.FlashSaleItem) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.items[item.ID] = item
	return nil
}

func (f *fakeStore) UpdateItem(_ context.Context, item domain.FlashSaleItem) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	// The durable counter is owned by the reservation writes; an item edit
	// never carries it.
	item.SoldQuantity = f.items[item.ID].SoldQuantity
	f.items[item.ID] = item
	return nil
}

func (f *fakeStore) DeleteItem(_ context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.items, id)
	return nil
}

func (f *fakeStore) ListItems(_ context.Context) ([]domain.FlashSaleItem, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]domain.FlashSaleItem, 0, len(f.items))
	for _, item := range f.items {
		out = append(out, item)
	}
	return out, nil
}

func (f *fakeStore) CreateReservation(_ context.Context, r domain.Reservation) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failCreateReservation {
		return errors.New("store unavailable")
	}
	f.reservations[r.ID] = r
	if item, ok := f.items[r.ItemID]; ok {
		item.SoldQuantity += r.Quantity
		f.items[r.ItemID] = item
	}
	return nil
}

func (f *fakeStore) UpdateReservation(_ context.Context, r domain.Reservation) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	prev, existed := f.reservations[r.ID]
	f.reservations[r.ID] = r
	if existed && prev.Status == domain.ReservationReserved && r.Status == domain.ReservationReleased {
		if item, ok := f.items[r.ItemID]; ok {
			item.SoldQuantity -= r.Quantity
			if item.SoldQuantity < 0 {
				item.SoldQuantity = 0
			}
			f.items[r.ItemID] = item
		}
	}
	return nil
}

func (f *fakeStore) ListReservations(_ context.Context) ([]domain.Reservation, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]domain.Reservation, 0, len(f.reservations))
	for _, r := range f.reservations {
		out = append(out, r)
	}
	return out, nil
}

func (f *fakeStore) UserTotals(_ context.Context, itemID string) (map[string]int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	totals := make(map[string]int)
	for _, r := range f.reservations {
		if r.ItemID == itemID && r.Status == domain.ReservationReserved {
			totals[r.UserID] += r.Quantity
		}
	}
	return totals, nil
}

func (f *fakeStore) itemOf(id string) domain.FlashSaleItem {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.items[id]
}

// fakeCatalog serves fixed products.
type fakeCatalog struct {
	products map[string]domain.Product
}

func newFakeCatalog(products ...domain.Product) *fakeCatalog {
	f := &fakeCatalog{products: make(map[string]domain.Product)}
	for _, p := range products {
		f.products[p.ID] = p
	}
	return f
}

func (f *fakeCatalog) GetProduct(_ context.Context, productID string) (domain.Product, error) {
	p, ok := f.products[productID]
	if !ok {
		return domain.Product{}, domain.ErrProductNotFound
	}
	return p, nil
}

// fakeCache tracks stock counters and idempotency keys in memory.
type fakeCache struct {
	mu    sync.Mutex
	stock map[string]int
	keys  map[string]struct{}
}

func newFakeCache() *fakeCache {
	return &fakeCache{
		stock: make(map[string]int),
		keys:  make(map[string]struct{}),
	}
}

func (f *fakeCache) SetStock(_ context.Context, itemID string, remaining int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.stock[itemID] = remaining
	return nil
}

func (f *fakeCache) DecrStock(_ context.Context, itemID string, quantity int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	next := f.stock[itemID] - quantity
	if next < 0 {
		next = 0
	}
	f.stock[itemID] = next
	return nil
}

func (f *fakeCache) IncrStock(_ context.Context, itemID string, quantity int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.stock[itemID] += quantity
	return nil
}

func (f *fakeCache) DeleteStock(_ context.Context, itemID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.stock, itemID)
	return nil
}

func (f *fakeCache) SetIdempotency(_ context.Context, key string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, exists := f.keys[key]; exists {
		return false, nil
	}
	f.keys[key] = struct{}{}
	return true, nil
}

func (f *fakeCache) DeleteIdempotency(_ context.Context, key string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.keys, key)
	return nil
}

func (f *fakeCache) stockOf(itemID string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.stock[itemID]
}

// fakePublisher records every published event.
type fakePublisher struct {
	mu     sync.Mutex
	events []domain.SaleEvent
}

func (f *fakePublisher) PublishSaleEvent(_ context.Context, event domain.SaleEvent) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = append(f.events, event)
	return nil
}

func (f *fakePublisher) Close() error { return nil }

func (f *fakePublisher) published() []domain.SaleEvent {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]domain.SaleEvent, len(f.events))
	copy(out, f.events)
	return out
}

// fixture wires the full service stack against in-memory fakes around a
// fixed clock.
type fixture struct {
	store        *fakeStore
	catalog      *fakeCatalog
	cache        *fakeCache
	events       *fakePublisher
	clk          *clock.Fixed
	ledger       *ledger.Ledger
	sessions     *SessionService
	reservations *ReservationService
	admin        *AdminService
}

func newFixture(now time.Time) *fixture {
	f := &fixture{
		store:   newFakeStore(),
		catalog: newFakeCatalog(domain.Product{ID: "product-1", Name: "Paracetamol 500mg", Price: 50000}),
		cache:   newFakeCache(),
		events:  &fakePublisher{},
		clk:     clock.NewFixed(now),
		ledger:  ledger.New(),
	}
	log := zap.NewNop()
	f.sessions = NewSessionService(f.store, f.clk, log)
	f.reservations = NewReservationService(f.sessions, f.ledger, f.cache, f.events, f.clk, log, 256)
	f.admin = NewAdminService(f.sessions, f.ledger, f.store, f.catalog, f.cache, f.events, f.clk, log, time.Second)
	return f
}

// openSession installs a session that is ACTIVE at the fixture clock.
func (f *fixture) openSession(maxPerUser int) domain.FlashSaleSession {
	now := f.clk.Now()
	session := domain.FlashSaleSession{
		ID:         "session-1",
		Name:       "Evening Sale",
		StartTime:  now.Add(-time.Hour),
		EndTime:    now.Add(time.Hour),
		MaxPerUser: maxPerUser,
		IsActive:   true,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	f.sessions.Restore(session)
	return session
}

// openItem registers an item in the open session.
func (f *fixture) openItem(id string, total, maxPerUser int) domain.FlashSaleItem {
	now := f.clk.Now()
	item := domain.FlashSaleItem{
		ID:             id,
		SessionID:      "session-1",
		ProductID:      "product-1",
		ProductName:    "Paracetamol 500mg",
		OriginalPrice:  50000,
		FlashSalePrice: 35000,
		TotalQuantity:  total,
		MaxPerUser:     maxPerUser,
		IsActive:       true,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	f.ledger.Register(item, nil)
	return item
}

// drainJobs consumes everything currently queued on the persistence channel.
func (f *fixture) drainJobs() []Job {
	var jobs []Job
	for {
		select {
		case job := <-f.reservations.Jobs():
			jobs = append(jobs, job)
		default:
			return jobs
		}
	}
}
