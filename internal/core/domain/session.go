package domain

import (
	"strings"
	"time"
)

type SessionStatus string

const (
	SessionScheduled SessionStatus = "SCHEDULED"
	SessionActive    SessionStatus = "ACTIVE"
	SessionEnded     SessionStatus = "ENDED"
	SessionCancelled SessionStatus = "CANCELLED"
)

// FlashSaleSession is a time-boxed sale grouping discounted items. Status is
// never stored; only the Cancelled override persists, everything else is
// derived from the clock on read.
type FlashSaleSession struct {
	ID          string
	Name        string
	Description string
	StartTime   time.Time
	EndTime     time.Time

	// MaxPerUser is the session-wide default per-user cap; an item with its
	// own cap overrides it.
	MaxPerUser int

	// IsActive is the administrator kill-switch, independent of the window.
	IsActive  bool
	Cancelled bool

	CreatedAt time.Time
	UpdatedAt time.Time
}

// ComputeStatus derives a session status from wall-clock time. The window is
// start-inclusive, end-exclusive. A session inside its window with the
// kill-switch off presents as SCHEDULED rather than ACTIVE.
func ComputeStatus(now, start, end time.Time, isActive, cancelled bool) SessionStatus {
	if cancelled {
		return SessionCancelled
	}
	if now.Before(start) {
		return SessionScheduled
	}
	if !now.Before(end) {
		return SessionEnded
	}
	if !isActive {
		return SessionScheduled
	}
	return SessionActive
}

// Status returns the derived status at now.
func (s *FlashSaleSession) Status(now time.Time) SessionStatus {
	return ComputeStatus(now, s.StartTime, s.EndTime, s.IsActive, s.Cancelled)
}

// Purchasable reports whether a reservation may be admitted at now.
func (s *FlashSaleSession) Purchasable(now time.Time) bool {
	return s.Status(now) == SessionActive
}

// TimeRemaining returns seconds until end while the session is active, else 0.
func (s *FlashSaleSession) TimeRemaining(now time.Time) int64 {
	if s.Status(now) != SessionActive {
		return 0
	}
	return int64(s.EndTime.Sub(now).Seconds())
}

// Validate checks the session draft before it reaches storage.
func (s *FlashSaleSession) Validate() error {
	if strings.TrimSpace(s.Name) == "" {
		return ErrNameRequired
	}
	if !s.StartTime.Before(s.EndTime) {
		return ErrInvalidTimeRange
	}
	if s.MaxPerUser < 1 {
		return ErrInvalidMaxPerUser
	}
	return nil
}

// Overlaps reports whether two sessions share any instant of their windows.
func (s *FlashSaleSession) Overlaps(other *FlashSaleSession) bool {
	return s.StartTime.Before(other.EndTime) && other.StartTime.Before(s.EndTime)
}
