package domain

import "time"

type ReservationStatus string

const (
	// ReservationReserved is the terminal success state: a reservation stays
	// reserved unless the order subsystem releases it.
	ReservationReserved ReservationStatus = "reserved"
	ReservationReleased ReservationStatus = "released"
)

// Reservation is a claim on an item's stock made by one user. Releasing it is
// the compensating action for downstream payment failure.
type Reservation struct {
	ID        string
	SessionID string
	ItemID    string
	UserID    string
	Quantity  int

	// UnitPrice snapshots the flash sale price at reservation time so later
	// admin price edits do not change what the user committed to.
	UnitPrice int64

	Status     ReservationStatus
	CreatedAt  time.Time
	ReleasedAt *time.Time
}

// Product is the slice of the external catalog the engine snapshots from.
type Product struct {
	ID    string
	Name  string
	Price int64
}
