package domain

import "errors"

var (
	// Validation failures, rejected before the ledger is touched.
	ErrNameRequired      = errors.New("session name required")
	ErrInvalidTimeRange  = errors.New("start time must be before end time")
	ErrSessionOverlap    = errors.New("time range overlaps an existing session")
	ErrInvalidQuantity   = errors.New("quantity must be positive")
	ErrInvalidPrice      = errors.New("flash sale price must be positive")
	ErrInvalidMaxPerUser = errors.New("max per user must be at least 1")
	ErrMissingField      = errors.New("required field missing")

	// Lookup failures.
	ErrSessionNotFound     = errors.New("session not found")
	ErrItemNotFound        = errors.New("item not found")
	ErrProductNotFound     = errors.New("product not found")
	ErrReservationNotFound = errors.New("reservation not found")

	// Business rejections from the reservation path.
	ErrSessionNotActive  = errors.New("session not active")
	ErrOutOfStock        = errors.New("out of stock")
	ErrUserLimitExceeded = errors.New("user purchase limit exceeded")
	ErrDuplicateRequest  = errors.New("duplicate request")
	ErrLockTimeout       = errors.New("timed out waiting for item lock")

	// Admin rejections.
	ErrQuantityBelowSold     = errors.New("total quantity cannot drop below sold quantity")
	ErrCannotDeleteWithSales = errors.New("cannot delete with recorded sales")
	ErrNotCancellable        = errors.New("session can no longer be cancelled")
	ErrDuplicateProduct      = errors.New("product already in session")

	// Release path.
	ErrAlreadyReleased = errors.New("reservation already released")
)
