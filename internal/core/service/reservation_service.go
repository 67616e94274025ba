package service

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/AndyAnh174/banthuoc-flashsale/internal/clock"
	"github.com/AndyAnh174/banthuoc-flashsale/internal/core/domain"
	"github.com/AndyAnh174/banthuoc-flashsale/internal/core/ledger"
	"github.com/AndyAnh174/banthuoc-flashsale/internal/port"
)

const defaultLockTimeout = 2 * time.Second

// JobKind tags an entry on the persistence queue.
type JobKind int

const (
	// JobPersistReservation stores a fresh reservation and the item counters.
	JobPersistReservation JobKind = iota
	// JobPersistRelease marks a reservation released and stores the counters.
	JobPersistRelease
)

// Job is the unit of asynchronous durable work drained by the worker pool.
type Job struct {
	Kind        JobKind
	Reservation domain.Reservation
	Item        domain.FlashSaleItem
}

// ReservationService is the reservation coordinator: it serializes
// purchase/cancel requests against a single item's ledger entry and owns the
// reservation records.
type ReservationService struct {
	sessions *SessionService
	ledger   *ledger.Ledger
	cache    port.CacheRepository
	events   port.EventPublisher
	clk      clock.Clock
	log      *zap.Logger

	lockTimeout time.Duration
	jobs        chan Job

	mu           sync.RWMutex
	reservations map[string]*domain.Reservation
}

type ReservationOption func(*ReservationService)

// WithLockTimeout bounds how long a reserve/release call may wait for an
// item's admission slot.
func WithLockTimeout(d time.Duration) ReservationOption {
	return func(s *ReservationService) {
		if d > 0 {
			s.lockTimeout = d
		}
	}
}

func NewReservationService(
	sessions *SessionService,
	lg *ledger.Ledger,
	cache port.CacheRepository,
	events port.EventPublisher,
	clk clock.Clock,
	log *zap.Logger,
	queueSize int,
	opts ...ReservationOption,
) *ReservationService {
	s := &ReservationService{
		sessions:     sessions,
		ledger:       lg,
		cache:        cache,
		events:       events,
		clk:          clk,
		log:          log,
		lockTimeout:  defaultLockTimeout,
		jobs:         make(chan Job, queueSize),
		reservations: make(map[string]*domain.Reservation),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Restore installs a reservation loaded from the durable store at boot.
func (s *ReservationService) Restore(r domain.Reservation) {
	s.mu.Lock()
	defer s.mu.Unlock()
	copied := r
	s.reservations[r.ID] = &copied
}

type ReserveInput struct {
	RequestID string
	SessionID string
	ItemID    string
	UserID    string
	Quantity  int
}

// Reserve is the hot path. As one indivisible step under the item's admission
// slot it verifies purchasability, stock headroom and the per-user cap, then
// increments both counters. No caller observes a half-applied state.
func (s *ReservationService) Reserve(ctx context.Context, in ReserveInput) (domain.Reservation, error) {
	if in.Quantity <= 0 {
		return domain.Reservation{}, domain.ErrInvalidQuantity
	}
	if in.UserID == "" || in.ItemID == "" || in.SessionID == "" {
		return domain.Reservation{}, domain.ErrMissingField
	}

	idempotencyKey := ""
	if in.RequestID != "" {
		idempotencyKey = fmt.Sprintf("purchase:%s", in.RequestID)
		ok, err := s.cache.SetIdempotency(ctx, idempotencyKey)
		if err != nil {
			return domain.Reservation{}, fmt.Errorf("idempotency check failed: %w", err)
		}
		if !ok {
			return domain.Reservation{}, domain.ErrDuplicateRequest
		}
	}

	r, err := s.reserve(ctx, in)
	if err != nil && idempotencyKey != "" {
		// A rejected attempt must not burn its request id.
		if delErr := s.cache.DeleteIdempotency(context.WithoutCancel(ctx), idempotencyKey); delErr != nil {
			s.log.Warn("failed to clear idempotency key",
				zap.String("key", idempotencyKey), zap.Error(delErr))
		}
	}
	return r, err
}

func (s *ReservationService) reserve(ctx context.Context, in ReserveInput) (domain.Reservation, error) {
	session, err := s.sessions.Get(in.SessionID)
	if err != nil {
		return domain.Reservation{}, err
	}
	if !session.Purchasable(s.clk.Now()) {
		return domain.Reservation{}, domain.ErrSessionNotActive
	}

	lockCtx, cancel := context.WithTimeout(ctx, s.lockTimeout)
	defer cancel()
	guard, err := s.ledger.Acquire(lockCtx, in.ItemID)
	if err != nil {
		return domain.Reservation{}, err
	}
	defer guard.Unlock()

	item := guard.Item()
	if item.SessionID != in.SessionID {
		return domain.Reservation{}, domain.ErrItemNotFound
	}

	// Re-check the window inside the critical section: the end boundary may
	// have been crossed while queued for the slot.
	if !session.Purchasable(s.clk.Now()) || !item.IsActive {
		return domain.Reservation{}, domain.ErrSessionNotActive
	}
	if item.SoldQuantity+in.Quantity > item.TotalQuantity {
		return domain.Reservation{}, domain.ErrOutOfStock
	}
	if guard.UserTotal(in.UserID)+in.Quantity > item.EffectiveMaxPerUser(&session) {
		return domain.Reservation{}, domain.ErrUserLimitExceeded
	}

	item = guard.ApplyReserve(in.UserID, in.Quantity)

	now := s.clk.Now()
	reservation := domain.Reservation{
		ID:        uuid.NewString(),
		SessionID: in.SessionID,
		ItemID:    in.ItemID,
		UserID:    in.UserID,
		Quantity:  in.Quantity,
		UnitPrice: item.FlashSalePrice,
		Status:    domain.ReservationReserved,
		CreatedAt: now,
	}

	s.mu.Lock()
	stored := reservation
	s.reservations[reservation.ID] = &stored
	s.mu.Unlock()

	s.jobs <- Job{Kind: JobPersistReservation, Reservation: reservation, Item: item}

	bg := context.WithoutCancel(ctx)
	if err := s.cache.DecrStock(bg, item.ID, in.Quantity); err != nil {
		s.log.Warn("failed to update stock cache", zap.String("item_id", item.ID), zap.Error(err))
	}
	s.publish(bg, domain.SaleEvent{
		Type:          domain.EventReservationCreated,
		SessionID:     in.SessionID,
		ItemID:        in.ItemID,
		ReservationID: reservation.ID,
		UserID:        in.UserID,
		Quantity:      in.Quantity,
		Remaining:     item.RemainingQuantity(),
		Timestamp:     now,
	})

	return reservation, nil
}

// Release is the compensating action for a downstream failure. It is
// idempotent: a second call returns ErrAlreadyReleased and never
// double-credits stock.
func (s *ReservationService) Release(ctx context.Context, reservationID string) (domain.Reservation, error) {
	s.mu.RLock()
	existing, ok := s.reservations[reservationID]
	var snapshot domain.Reservation
	if ok {
		snapshot = *existing
	}
	s.mu.RUnlock()
	if !ok {
		return domain.Reservation{}, domain.ErrReservationNotFound
	}
	if snapshot.Status == domain.ReservationReleased {
		return domain.Reservation{}, domain.ErrAlreadyReleased
	}

	lockCtx, cancel := context.WithTimeout(ctx, s.lockTimeout)
	defer cancel()

	var item domain.FlashSaleItem
	itemLive := true
	guard, err := s.ledger.Acquire(lockCtx, snapshot.ItemID)
	switch err {
	case nil:
		defer guard.Unlock()
	case domain.ErrItemNotFound:
		// Item was force-deleted; the reservation record is still closed out.
		itemLive = false
	default:
		return domain.Reservation{}, err
	}

	s.mu.Lock()
	record, ok := s.reservations[reservationID]
	if !ok {
		s.mu.Unlock()
		return domain.Reservation{}, domain.ErrReservationNotFound
	}
	if record.Status == domain.ReservationReleased {
		s.mu.Unlock()
		return domain.Reservation{}, domain.ErrAlreadyReleased
	}
	now := s.clk.Now()
	record.Status = domain.ReservationReleased
	record.ReleasedAt = &now
	released := *record
	s.mu.Unlock()

	if itemLive {
		item = guard.ApplyRelease(released.UserID, released.Quantity)
	}

	s.jobs <- Job{Kind: JobPersistRelease, Reservation: released, Item: item}

	bg := context.WithoutCancel(ctx)
	if itemLive {
		if err := s.cache.IncrStock(bg, released.ItemID, released.Quantity); err != nil {
			s.log.Warn("failed to restore stock cache", zap.String("item_id", released.ItemID), zap.Error(err))
		}
	}
	s.publish(bg, domain.SaleEvent{
		Type:          domain.EventReservationReleased,
		SessionID:     released.SessionID,
		ItemID:        released.ItemID,
		ReservationID: released.ID,
		UserID:        released.UserID,
		Quantity:      released.Quantity,
		Remaining:     item.RemainingQuantity(),
		Timestamp:     now,
	})

	return released, nil
}

// Get returns a copy of the reservation record.
func (s *ReservationService) Get(reservationID string) (domain.Reservation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.reservations[reservationID]
	if !ok {
		return domain.Reservation{}, domain.ErrReservationNotFound
	}
	return *r, nil
}

// Rollback undoes a reservation whose durable write failed: the in-memory
// counters and the cache are restored and the record is dropped, mirroring a
// stock rollback rather than a user-visible release.
func (s *ReservationService) Rollback(ctx context.Context, r domain.Reservation) {
	guard, err := s.ledger.Acquire(ctx, r.ItemID)
	if err == nil {
		guard.ApplyRelease(r.UserID, r.Quantity)
		guard.Unlock()
		if cacheErr := s.cache.IncrStock(ctx, r.ItemID, r.Quantity); cacheErr != nil {
			s.log.Error("CRITICAL: rollback cache restore failed",
				zap.String("reservation_id", r.ID), zap.Error(cacheErr))
		}
	} else {
		s.log.Error("CRITICAL: rollback could not reach item ledger",
			zap.String("reservation_id", r.ID), zap.Error(err))
	}

	s.mu.Lock()
	delete(s.reservations, r.ID)
	s.mu.Unlock()
}

func (s *ReservationService) publish(ctx context.Context, event domain.SaleEvent) {
	if s.events == nil {
		return
	}
	if err := s.events.PublishSaleEvent(ctx, event); err != nil {
		s.log.Warn("failed to publish sale event", zap.String("type", string(event.Type)), zap.Error(err))
	}
}

// Jobs exposes the persistence queue for the worker pool.
func (s *ReservationService) Jobs() <-chan Job {
	return s.jobs
}

// Close shuts the persistence queue after all producers have stopped.
func (s *ReservationService) Close() {
	close(s.jobs)
}
