package service

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/AndyAnh174/banthuoc-flashsale/internal/clock"
	"github.com/AndyAnh174/banthuoc-flashsale/internal/core/domain"
	"github.com/AndyAnh174/banthuoc-flashsale/internal/core/ledger"
	"github.com/AndyAnh174/banthuoc-flashsale/internal/port"
)

// AdminService applies administrator edits without corrupting live counters.
// Every mutation that touches TotalQuantity goes through the same per-item
// admission slot as the reservation path.
type AdminService struct {
	sessions *SessionService
	ledger   *ledger.Ledger
	store    port.DatabaseRepository
	catalog  port.CatalogRepository
	cache    port.CacheRepository
	events   port.EventPublisher
	clk      clock.Clock
	log      *zap.Logger

	lockTimeout time.Duration
}

func NewAdminService(
	sessions *SessionService,
	lg *ledger.Ledger,
	store port.DatabaseRepository,
	catalog port.CatalogRepository,
	cache port.CacheRepository,
	events port.EventPublisher,
	clk clock.Clock,
	log *zap.Logger,
	lockTimeout time.Duration,
) *AdminService {
	if lockTimeout <= 0 {
		lockTimeout = defaultLockTimeout
	}
	return &AdminService{
		sessions:    sessions,
		ledger:      lg,
		store:       store,
		catalog:     catalog,
		cache:       cache,
		events:      events,
		clk:         clk,
		log:         log,
		lockTimeout: lockTimeout,
	}
}

type AddItemInput struct {
	SessionID      string
	ProductID      string
	FlashSalePrice int64
	TotalQuantity  int
	MaxPerUser     int
	SortOrder      int

	// OriginalPrice, when zero, is snapshotted from the catalog.
	OriginalPrice int64
}

// AddItem is always safe: a new item starts at SoldQuantity zero.
func (s *AdminService) AddItem(ctx context.Context, in AddItemInput) (domain.FlashSaleItem, error) {
	session, err := s.sessions.Get(in.SessionID)
	if err != nil {
		return domain.FlashSaleItem{}, err
	}
	for _, existing := range s.ledger.SessionItems(session.ID) {
		if existing.ProductID == in.ProductID {
			return domain.FlashSaleItem{}, domain.ErrDuplicateProduct
		}
	}

	product, err := s.catalog.GetProduct(ctx, in.ProductID)
	if err != nil {
		return domain.FlashSaleItem{}, err
	}
	if in.OriginalPrice == 0 {
		in.OriginalPrice = product.Price
	}

	now := s.clk.Now()
	item := domain.FlashSaleItem{
		ID:             uuid.NewString(),
		SessionID:      in.SessionID,
		ProductID:      in.ProductID,
		ProductName:    product.Name,
		OriginalPrice:  in.OriginalPrice,
		FlashSalePrice: in.FlashSalePrice,
		TotalQuantity:  in.TotalQuantity,
		MaxPerUser:     in.MaxPerUser,
		IsActive:       true,
		SortOrder:      in.SortOrder,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if err := item.Validate(); err != nil {
		return domain.FlashSaleItem{}, err
	}
	if item.FlashSalePrice >= item.OriginalPrice {
		// A warning, not a hard rule.
		s.log.Warn("flash sale price not below original price",
			zap.String("product_id", item.ProductID),
			zap.Int64("flash_sale_price", item.FlashSalePrice),
			zap.Int64("original_price", item.OriginalPrice),
		)
	}

	if err := s.store.CreateItem(ctx, item); err != nil {
		return domain.FlashSaleItem{}, fmt.Errorf("persist item: %w", err)
	}
	s.ledger.Register(item, nil)

	if err := s.cache.SetStock(ctx, item.ID, item.TotalQuantity); err != nil {
		s.log.Warn("failed to seed stock cache", zap.String("item_id", item.ID), zap.Error(err))
	}

	s.log.Info("item added to session",
		zap.String("session_id", in.SessionID),
		zap.String("item_id", item.ID),
		zap.String("product_id", item.ProductID),
		zap.Int("total_quantity", item.TotalQuantity),
	)
	return item, nil
}

type UpdateItemInput struct {
	FlashSalePrice *int64
	TotalQuantity  *int
	MaxPerUser     *int
	IsActive       *bool
	SortOrder      *int
}

// UpdateItem applies edits under the item's admission slot. Raising
// TotalQuantity is always safe; lowering it below SoldQuantity is rejected so
// the ledger never reads as oversold.
func (s *AdminService) UpdateItem(ctx context.Context, itemID string, in UpdateItemInput) (domain.FlashSaleItem, error) {
	lockCtx, cancel := context.WithTimeout(ctx, s.lockTimeout)
	defer cancel()
	guard, err := s.ledger.Acquire(lockCtx, itemID)
	if err != nil {
		return domain.FlashSaleItem{}, err
	}
	defer guard.Unlock()

	current := guard.Item()
	if in.TotalQuantity != nil && *in.TotalQuantity < current.SoldQuantity {
		return domain.FlashSaleItem{}, domain.ErrQuantityBelowSold
	}
	if in.FlashSalePrice != nil && *in.FlashSalePrice <= 0 {
		return domain.FlashSaleItem{}, domain.ErrInvalidPrice
	}
	if in.MaxPerUser != nil && *in.MaxPerUser < 1 {
		return domain.FlashSaleItem{}, domain.ErrInvalidMaxPerUser
	}

	updated := guard.Update(func(item *domain.FlashSaleItem) {
		if in.FlashSalePrice != nil {
			item.FlashSalePrice = *in.FlashSalePrice
		}
		if in.TotalQuantity != nil {
			item.TotalQuantity = *in.TotalQuantity
		}
		if in.MaxPerUser != nil {
			item.MaxPerUser = *in.MaxPerUser
		}
		if in.IsActive != nil {
			item.IsActive = *in.IsActive
		}
		if in.SortOrder != nil {
			item.SortOrder = *in.SortOrder
		}
		item.UpdatedAt = s.clk.Now()
	})

	if err := s.store.UpdateItem(ctx, updated); err != nil {
		return domain.FlashSaleItem{}, fmt.Errorf("persist item: %w", err)
	}
	if in.TotalQuantity != nil {
		if err := s.cache.SetStock(ctx, itemID, updated.RemainingQuantity()); err != nil {
			s.log.Warn("failed to refresh stock cache", zap.String("item_id", itemID), zap.Error(err))
		}
	}
	return updated, nil
}

// ResnapshotOriginalPrice re-reads the catalog price into the item. This is
// the only way OriginalPrice changes once sales exist.
func (s *AdminService) ResnapshotOriginalPrice(ctx context.Context, itemID string) (domain.FlashSaleItem, error) {
	snapshot, ok := s.ledger.Snapshot(itemID)
	if !ok {
		return domain.FlashSaleItem{}, domain.ErrItemNotFound
	}
	product, err := s.catalog.GetProduct(ctx, snapshot.ProductID)
	if err != nil {
		return domain.FlashSaleItem{}, err
	}

	lockCtx, cancel := context.WithTimeout(ctx, s.lockTimeout)
	defer cancel()
	guard, err := s.ledger.Acquire(lockCtx, itemID)
	if err != nil {
		return domain.FlashSaleItem{}, err
	}
	defer guard.Unlock()

	updated := guard.Update(func(item *domain.FlashSaleItem) {
		item.OriginalPrice = product.Price
		item.ProductName = product.Name
		item.UpdatedAt = s.clk.Now()
	})
	if err := s.store.UpdateItem(ctx, updated); err != nil {
		return domain.FlashSaleItem{}, fmt.Errorf("persist item: %w", err)
	}

	s.log.Info("original price re-snapshotted",
		zap.String("item_id", itemID), zap.Int64("original_price", product.Price))
	return updated, nil
}

// DeleteItem refuses to drop sales history unless force is set; a forced
// delete is an audited administrative action.
func (s *AdminService) DeleteItem(ctx context.Context, itemID string, force bool) error {
	lockCtx, cancel := context.WithTimeout(ctx, s.lockTimeout)
	defer cancel()
	guard, err := s.ledger.Acquire(lockCtx, itemID)
	if err != nil {
		return err
	}
	defer guard.Unlock()

	item := guard.Item()
	if item.SoldQuantity > 0 && !force {
		return domain.ErrCannotDeleteWithSales
	}

	if err := s.store.DeleteItem(ctx, itemID); err != nil {
		return fmt.Errorf("delete item: %w", err)
	}
	s.ledger.Remove(guard)

	if err := s.cache.DeleteStock(ctx, itemID); err != nil {
		s.log.Warn("failed to drop stock cache", zap.String("item_id", itemID), zap.Error(err))
	}

	if item.SoldQuantity > 0 {
		s.log.Warn("item force-deleted with recorded sales",
			zap.String("item_id", itemID),
			zap.String("session_id", item.SessionID),
			zap.Int("sold_quantity", item.SoldQuantity),
		)
		s.publish(ctx, domain.SaleEvent{
			Type:      domain.EventItemForceDeleted,
			SessionID: item.SessionID,
			ItemID:    itemID,
			Quantity:  item.SoldQuantity,
			Timestamp: s.clk.Now(),
		})
	}
	return nil
}

// DeleteSession removes a session and all its items. Any item with sales
// makes the whole delete refuse unless force is set.
func (s *AdminService) DeleteSession(ctx context.Context, sessionID string, force bool) error {
	session, err := s.sessions.Get(sessionID)
	if err != nil {
		return err
	}

	items := s.ledger.SessionItems(sessionID)
	sold := 0
	for _, item := range items {
		sold += item.SoldQuantity
	}
	if sold > 0 && !force {
		return domain.ErrCannotDeleteWithSales
	}

	// Take each item out from under concurrent reservers before the cascade.
	for _, item := range items {
		lockCtx, cancel := context.WithTimeout(ctx, s.lockTimeout)
		guard, err := s.ledger.Acquire(lockCtx, item.ID)
		cancel()
		if err != nil {
			if err == domain.ErrItemNotFound {
				continue
			}
			return err
		}
		s.ledger.Remove(guard)
		guard.Unlock()
		if err := s.cache.DeleteStock(ctx, item.ID); err != nil {
			s.log.Warn("failed to drop stock cache", zap.String("item_id", item.ID), zap.Error(err))
		}
	}

	if err := s.store.DeleteSession(ctx, sessionID); err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	s.sessions.Forget(sessionID)

	if sold > 0 {
		s.log.Warn("session force-deleted with recorded sales",
			zap.String("session_id", sessionID),
			zap.String("name", session.Name),
			zap.Int("sold_quantity", sold),
		)
		s.publish(ctx, domain.SaleEvent{
			Type:      domain.EventSessionForceDeleted,
			SessionID: sessionID,
			Quantity:  sold,
			Timestamp: s.clk.Now(),
		})
	}
	return nil
}

func (s *AdminService) publish(ctx context.Context, event domain.SaleEvent) {
	if s.events == nil {
		return
	}
	if err := s.events.PublishSaleEvent(ctx, event); err != nil {
		s.log.Warn("failed to publish sale event", zap.String("type", string(event.Type)), zap.Error(err))
	}
}
