package service

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/AndyAnh174/banthuoc-flashsale/internal/core/domain"
	"github.com/AndyAnh174/banthuoc-flashsale/internal/port"
)

// Sweeper is the optional background status sweep. It only observes: status
// is always recomputed on read, so the engine stays correct if the sweep
// never runs. Its value is the advisory transition events.
type Sweeper struct {
	sessions *SessionService
	events   port.EventPublisher
	log      *zap.Logger
	interval time.Duration

	last map[string]domain.SessionStatus
}

func NewSweeper(sessions *SessionService, events port.EventPublisher, log *zap.Logger, interval time.Duration) *Sweeper {
	if interval <= 0 {
		interval = time.Second
	}
	return &Sweeper{
		sessions: sessions,
		events:   events,
		log:      log,
		interval: interval,
		last:     make(map[string]domain.SessionStatus),
	}
}

// Run blocks until ctx is done, sweeping once per interval.
func (w *Sweeper) Run(ctx context.Context) {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	w.sweep(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			w.sweep(ctx)
		}
	}
}

func (w *Sweeper) sweep(ctx context.Context) {
	now := w.sessions.Now()
	seen := make(map[string]bool)

	for _, session := range w.sessions.List() {
		seen[session.ID] = true
		status := session.Status(now)
		prev, known := w.last[session.ID]
		w.last[session.ID] = status
		if !known || prev == status {
			continue
		}

		w.log.Info("session transition",
			zap.String("session_id", session.ID),
			zap.String("name", session.Name),
			zap.String("from", string(prev)),
			zap.String("to", string(status)),
		)

		eventType := transitionEvent(status)
		if eventType == "" || w.events == nil {
			continue
		}
		if err := w.events.PublishSaleEvent(ctx, domain.SaleEvent{
			Type:      eventType,
			SessionID: session.ID,
			Status:    string(status),
			Timestamp: now,
		}); err != nil {
			w.log.Warn("failed to publish transition event",
				zap.String("session_id", session.ID), zap.Error(err))
		}
	}

	for id := range w.last {
		if !seen[id] {
			delete(w.last, id)
		}
	}
}

func transitionEvent(status domain.SessionStatus) domain.SaleEventType {
	switch status {
	case domain.SessionActive:
		return domain.EventSessionActivated
	case domain.SessionEnded:
		return domain.EventSessionEnded
	case domain.SessionCancelled:
		return domain.EventSessionCancelled
	default:
		return ""
	}
}
