package port

import (
	"context"

	"github.com/AndyAnh174/banthuoc-flashsale/internal/core/domain"
)

// DatabaseRepository is the durable store for sessions, items and
// reservations. List methods run once at boot to rebuild the in-process
// ledger; writes flow through the persistence worker pool.
type DatabaseRepository interface {
	CreateSession(ctx context.Context, session domain.FlashSaleSession) error
	UpdateSession(ctx context.Context, session domain.FlashSaleSession) error
	// DeleteSession removes the session and, by cascade, its items.
	DeleteSession(ctx context.Context, id string) error
	ListSessions(ctx context.Context) ([]domain.FlashSaleSession, error)

	CreateItem(ctx context.Context, item domain.FlashSaleItem) error
	UpdateItem(ctx context.Context, item domain.FlashSaleItem) error
	DeleteItem(ctx context.Context, id string) error
	ListItems(ctx context.Context) ([]domain.FlashSaleItem, error)

	CreateReservation(ctx context.Context, r domain.Reservation) error
	UpdateReservation(ctx context.Context, r domain.Reservation) error
	ListReservations(ctx context.Context) ([]domain.Reservation, error)

	// UserTotals sums open reservation quantities per user for one item,
	// used to rebuild the ledger counters after a restart.
	UserTotals(ctx context.Context, itemID string) (map[string]int, error)
}

// CatalogRepository is the upstream product catalog the engine snapshots
// prices from at item-add time. It is never polled afterwards.
type CatalogRepository interface {
	GetProduct(ctx context.Context, productID string) (domain.Product, error)
}
