package port

import "context"

// CacheRepository is the display-stock snapshot cache plus the idempotency
// key store. The cached remaining counter is advisory: the storefront reads
// it, reservation decisions never do.
type CacheRepository interface {
	// SetStock publishes the remaining quantity for an item.
	SetStock(ctx context.Context, itemID string, remaining int) error

	// DecrStock decreases the published remaining counter, clamped at zero.
	DecrStock(ctx context.Context, itemID string, quantity int) error

	// IncrStock restores headroom after a release or rollback.
	IncrStock(ctx context.Context, itemID string, quantity int) error

	// DeleteStock drops the counter when an item is removed.
	DeleteStock(ctx context.Context, itemID string) error

	// SetIdempotency sets a key for idempotency check, returns false if already exists.
	SetIdempotency(ctx context.Context, key string) (bool, error)

	// DeleteIdempotency clears a key so a rejected attempt does not burn its
	// request id.
	DeleteIdempotency(ctx context.Context, key string) error
}
