package domain

import "time"

type SaleEventType string

const (
	EventSessionActivated    SaleEventType = "session.activated"
	EventSessionEnded        SaleEventType = "session.ended"
	EventSessionCancelled    SaleEventType = "session.cancelled"
	EventReservationCreated  SaleEventType = "reservation.created"
	EventReservationReleased SaleEventType = "reservation.released"
	EventItemForceDeleted    SaleEventType = "item.force_deleted"
	EventSessionForceDeleted SaleEventType = "session.force_deleted"
)

// SaleEvent is the advisory payload published to the event stream.
type SaleEvent struct {
	Type          SaleEventType `json:"type"`
	SessionID     string        `json:"session_id"`
	ItemID        string        `json:"item_id,omitempty"`
	ReservationID string        `json:"reservation_id,omitempty"`
	UserID        string        `json:"user_id,omitempty"`
	Quantity      int           `json:"quantity,omitempty"`
	Remaining     int           `json:"remaining,omitempty"`
	Status        string        `json:"status,omitempty"`
	Timestamp     time.Time     `json:"timestamp"`
}
