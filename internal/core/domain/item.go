package domain

import "time"

// FlashSaleItem is a product entry within a session carrying its own stock
// ceiling and discount price. SoldQuantity is owned by the reservation path;
// nothing else may write it.
type FlashSaleItem struct {
	ID        string
	SessionID string
	ProductID string

	// ProductName is snapshotted from the catalog at add time, display only.
	ProductName string

	// OriginalPrice is the catalog price snapshot taken at add time.
	OriginalPrice  int64
	FlashSalePrice int64

	TotalQuantity int
	SoldQuantity  int

	// MaxPerUser overrides the session default when > 0.
	MaxPerUser int

	IsActive  bool
	SortOrder int

	CreatedAt time.Time
	UpdatedAt time.Time
}

// RemainingQuantity never goes negative; the reservation path guarantees
// SoldQuantity <= TotalQuantity, the clamp is for display of admin-edited rows.
func (i *FlashSaleItem) RemainingQuantity() int {
	remaining := i.TotalQuantity - i.SoldQuantity
	if remaining < 0 {
		return 0
	}
	return remaining
}

func (i *FlashSaleItem) IsSoldOut() bool {
	return i.RemainingQuantity() <= 0
}

// EffectiveMaxPerUser resolves the per-user cap against the session default.
func (i *FlashSaleItem) EffectiveMaxPerUser(session *FlashSaleSession) int {
	if i.MaxPerUser > 0 {
		return i.MaxPerUser
	}
	if session != nil && session.MaxPerUser > 0 {
		return session.MaxPerUser
	}
	return 1
}

// DiscountPercent is the storefront badge value.
func (i *FlashSaleItem) DiscountPercent() int {
	if i.OriginalPrice <= 0 {
		return 0
	}
	return int((1 - float64(i.FlashSalePrice)/float64(i.OriginalPrice)) * 100)
}

// SoldPercent feeds the storefront progress bar.
func (i *FlashSaleItem) SoldPercent() int {
	if i.TotalQuantity <= 0 {
		return 0
	}
	return i.SoldQuantity * 100 / i.TotalQuantity
}

// Validate checks an item draft before it reaches storage.
func (i *FlashSaleItem) Validate() error {
	if i.FlashSalePrice <= 0 {
		return ErrInvalidPrice
	}
	if i.TotalQuantity <= 0 {
		return ErrInvalidQuantity
	}
	if i.MaxPerUser < 0 {
		return ErrInvalidMaxPerUser
	}
	return nil
}
