package service

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/AndyAnh174/banthuoc-flashsale/internal/clock"
	"github.com/AndyAnh174/banthuoc-flashsale/internal/core/domain"
	"github.com/AndyAnh174/banthuoc-flashsale/internal/port"
)

// SessionService is the session registry. It owns the in-memory session
// records; status is recomputed from the clock on every read so there is no
// stored status field to go stale.
type SessionService struct {
	store port.DatabaseRepository
	clk   clock.Clock
	log   *zap.Logger

	mu       sync.RWMutex
	sessions map[string]*domain.FlashSaleSession
}

func NewSessionService(store port.DatabaseRepository, clk clock.Clock, log *zap.Logger) *SessionService {
	return &SessionService{
		store:    store,
		clk:      clk,
		log:      log,
		sessions: make(map[string]*domain.FlashSaleSession),
	}
}

// Restore installs a session loaded from the durable store at boot.
func (s *SessionService) Restore(session domain.FlashSaleSession) {
	s.mu.Lock()
	defer s.mu.Unlock()
	copied := session
	s.sessions[session.ID] = &copied
}

type CreateSessionInput struct {
	Name        string
	Description string
	StartTime   time.Time
	EndTime     time.Time
	MaxPerUser  int
}

func (s *SessionService) Create(ctx context.Context, in CreateSessionInput) (domain.FlashSaleSession, error) {
	now := s.clk.Now()
	if in.MaxPerUser == 0 {
		in.MaxPerUser = 1
	}

	session := domain.FlashSaleSession{
		ID:          uuid.NewString(),
		Name:        in.Name,
		Description: in.Description,
		StartTime:   in.StartTime.UTC(),
		EndTime:     in.EndTime.UTC(),
		MaxPerUser:  in.MaxPerUser,
		IsActive:    true,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := session.Validate(); err != nil {
		return domain.FlashSaleSession{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.checkOverlapLocked(&session); err != nil {
		return domain.FlashSaleSession{}, err
	}
	if err := s.store.CreateSession(ctx, session); err != nil {
		return domain.FlashSaleSession{}, fmt.Errorf("persist session: %w", err)
	}
	stored := session
	s.sessions[session.ID] = &stored

	s.log.Info("session created",
		zap.String("session_id", session.ID),
		zap.String("name", session.Name),
		zap.Time("start_time", session.StartTime),
		zap.Time("end_time", session.EndTime),
	)
	return session, nil
}

// checkOverlapLocked enforces that two live sessions never share a window.
// Cancelled and kill-switched sessions do not count.
func (s *SessionService) checkOverlapLocked(candidate *domain.FlashSaleSession) error {
	for _, existing := range s.sessions {
		if existing.ID == candidate.ID || existing.Cancelled || !existing.IsActive {
			continue
		}
		if existing.Status(s.clk.Now()) == domain.SessionEnded {
			continue
		}
		if existing.Overlaps(candidate) {
			return domain.ErrSessionOverlap
		}
	}
	return nil
}

// Get returns a copy of the session; callers derive status via Status(now).
func (s *SessionService) Get(id string) (domain.FlashSaleSession, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	session, ok := s.sessions[id]
	if !ok {
		return domain.FlashSaleSession{}, domain.ErrSessionNotFound
	}
	return *session, nil
}

// List returns all sessions ordered by start time, newest first.
func (s *SessionService) List() []domain.FlashSaleSession {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.FlashSaleSession, 0, len(s.sessions))
	for _, session := range s.sessions {
		out = append(out, *session)
	}
	sort.Slice(out, func(a, b int) bool {
		return out[a].StartTime.After(out[b].StartTime)
	})
	return out
}

// Current returns the running session if any, otherwise the next upcoming
// one. Both may be nil.
func (s *SessionService) Current() (current, upcoming *domain.FlashSaleSession) {
	now := s.clk.Now()
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, session := range s.sessions {
		switch session.Status(now) {
		case domain.SessionActive:
			copied := *session
			current = &copied
		case domain.SessionScheduled:
			if session.IsActive && now.Before(session.StartTime) {
				if upcoming == nil || session.StartTime.Before(upcoming.StartTime) {
					copied := *session
					upcoming = &copied
				}
			}
		}
	}
	if current != nil {
		upcoming = nil
	}
	return current, upcoming
}

type UpdateSessionInput struct {
	Name        *string
	Description *string
	StartTime   *time.Time
	EndTime     *time.Time
	MaxPerUser  *int
	IsActive    *bool
}

func (s *SessionService) Update(ctx context.Context, id string, in UpdateSessionInput) (domain.FlashSaleSession, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	session, ok := s.sessions[id]
	if !ok {
		return domain.FlashSaleSession{}, domain.ErrSessionNotFound
	}

	updated := *session
	if in.Name != nil {
		updated.Name = *in.Name
	}
	if in.Description != nil {
		updated.Description = *in.Description
	}
	if in.StartTime != nil {
		updated.StartTime = in.StartTime.UTC()
	}
	if in.EndTime != nil {
		updated.EndTime = in.EndTime.UTC()
	}
	if in.MaxPerUser != nil {
		updated.MaxPerUser = *in.MaxPerUser
	}
	if in.IsActive != nil {
		updated.IsActive = *in.IsActive
	}
	updated.UpdatedAt = s.clk.Now()

	if err := updated.Validate(); err != nil {
		return domain.FlashSaleSession{}, err
	}
	if in.StartTime != nil || in.EndTime != nil || (in.IsActive != nil && *in.IsActive && !session.IsActive) {
		if err := s.checkOverlapLocked(&updated); err != nil {
			return domain.FlashSaleSession{}, err
		}
	}
	if err := s.store.UpdateSession(ctx, updated); err != nil {
		return domain.FlashSaleSession{}, fmt.Errorf("persist session: %w", err)
	}
	*session = updated
	return updated, nil
}

// Cancel is the terminal override, reachable from SCHEDULED or ACTIVE only.
func (s *SessionService) Cancel(ctx context.Context, id string) (domain.FlashSaleSession, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	session, ok := s.sessions[id]
	if !ok {
		return domain.FlashSaleSession{}, domain.ErrSessionNotFound
	}

	switch session.Status(s.clk.Now()) {
	case domain.SessionScheduled, domain.SessionActive:
	default:
		return domain.FlashSaleSession{}, domain.ErrNotCancellable
	}

	updated := *session
	updated.Cancelled = true
	updated.UpdatedAt = s.clk.Now()
	if err := s.store.UpdateSession(ctx, updated); err != nil {
		return domain.FlashSaleSession{}, fmt.Errorf("persist session: %w", err)
	}
	*session = updated

	s.log.Info("session cancelled", zap.String("session_id", id))
	return updated, nil
}

// Forget drops a session from the registry after it was deleted from the
// durable store.
func (s *SessionService) Forget(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, id)
}

// Now exposes the registry clock for read-model assembly.
func (s *SessionService) Now() time.Time {
	return s.clk.Now()
}
