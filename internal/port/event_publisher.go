package port

import (
	"context"

	"github.com/AndyAnh174/banthuoc-flashsale/internal/core/domain"
)

// EventPublisher emits advisory sale events (session transitions, reservation
// lifecycle, audited admin actions). Correctness never depends on delivery.
type EventPublisher interface {
	PublishSaleEvent(ctx context.Context, event domain.SaleEvent) error
	Close() error
}
