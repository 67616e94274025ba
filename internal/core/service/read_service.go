package service

import (
	"time"

	"github.com/AndyAnh174/banthuoc-flashsale/internal/core/domain"
	"github.com/AndyAnh174/banthuoc-flashsale/internal/core/ledger"
)

// ReadService assembles point-in-time snapshots for the storefront. It reads
// session copies and item snapshots only; it never takes an admission slot.
type ReadService struct {
	sessions *SessionService
	ledger   *ledger.Ledger
}

func NewReadService(sessions *SessionService, lg *ledger.Ledger) *ReadService {
	return &ReadService{sessions: sessions, ledger: lg}
}

// SessionView is the storefront projection of a session.
type SessionView struct {
	ID            string               `json:"id"`
	Name          string               `json:"name"`
	Description   string               `json:"description"`
	StartTime     time.Time            `json:"start_time"`
	EndTime       time.Time            `json:"end_time"`
	Status        domain.SessionStatus `json:"status"`
	IsActive      bool                 `json:"is_active"`
	MaxPerUser    int                  `json:"max_per_user"`
	TimeRemaining int64                `json:"time_remaining_seconds"`
	Items         []ItemView           `json:"items,omitempty"`
}

// ItemView carries the live counters plus the display projections.
type ItemView struct {
	ID                string `json:"id"`
	SessionID         string `json:"session_id"`
	ProductID         string `json:"product_id"`
	ProductName       string `json:"product_name"`
	OriginalPrice     int64  `json:"original_price"`
	FlashSalePrice    int64  `json:"flash_sale_price"`
	TotalQuantity     int    `json:"total_quantity"`
	SoldQuantity      int    `json:"sold_quantity"`
	RemainingQuantity int    `json:"remaining_quantity"`
	MaxPerUser        int    `json:"max_per_user"`
	IsActive          bool   `json:"is_active"`
	IsSoldOut         bool   `json:"is_sold_out"`
	DiscountPercent   int    `json:"discount_percent"`
	SoldPercent       int    `json:"sold_percent"`
	SortOrder         int    `json:"sort_order"`
}

// CurrentView answers the storefront's home-page query: the running session,
// or the next upcoming one, with the server time for countdown sync.
type CurrentView struct {
	Current    *SessionView `json:"current_session"`
	Upcoming   *SessionView `json:"upcoming_session"`
	ServerTime time.Time    `json:"server_time"`
}

// ListSessions returns visible sessions (not cancelled, kill-switch on) that
// are scheduled or active.
func (r *ReadService) ListSessions() []SessionView {
	now := r.sessions.Now()
	views := make([]SessionView, 0)
	for _, session := range r.sessions.List() {
		if session.Cancelled || !session.IsActive {
			continue
		}
		status := session.Status(now)
		if status != domain.SessionScheduled && status != domain.SessionActive {
			continue
		}
		views = append(views, r.sessionView(session, now, false))
	}
	return views
}

// GetSession returns the full detail of one session, items included.
func (r *ReadService) GetSession(id string) (SessionView, error) {
	session, err := r.sessions.Get(id)
	if err != nil {
		return SessionView{}, err
	}
	return r.sessionView(session, r.sessions.Now(), true), nil
}

// Current implements the home-page endpoint.
func (r *ReadService) Current() CurrentView {
	now := r.sessions.Now()
	current, upcoming := r.sessions.Current()

	view := CurrentView{ServerTime: now}
	if current != nil {
		v := r.sessionView(*current, now, true)
		view.Current = &v
	}
	if upcoming != nil {
		v := r.sessionView(*upcoming, now, true)
		view.Upcoming = &v
	}
	return view
}

// GetItem returns a single item's live snapshot.
func (r *ReadService) GetItem(itemID string) (ItemView, error) {
	item, ok := r.ledger.Snapshot(itemID)
	if !ok {
		return ItemView{}, domain.ErrItemNotFound
	}
	session, err := r.sessions.Get(item.SessionID)
	if err != nil {
		return ItemView{}, err
	}
	return itemView(item, &session), nil
}

func (r *ReadService) sessionView(session domain.FlashSaleSession, now time.Time, withItems bool) SessionView {
	view := SessionView{
		ID:            session.ID,
		Name:          session.Name,
		Description:   session.Description,
		StartTime:     session.StartTime,
		EndTime:       session.EndTime,
		Status:        session.Status(now),
		IsActive:      session.IsActive,
		MaxPerUser:    session.MaxPerUser,
		TimeRemaining: session.TimeRemaining(now),
	}
	if withItems {
		items := r.ledger.SessionItems(session.ID)
		view.Items = make([]ItemView, 0, len(items))
		for _, item := range items {
			if !item.IsActive {
				continue
			}
			view.Items = append(view.Items, itemView(item, &session))
		}
	}
	return view
}

func itemView(item domain.FlashSaleItem, session *domain.FlashSaleSession) ItemView {
	return ItemView{
		ID:                item.ID,
		SessionID:         item.SessionID,
		ProductID:         item.ProductID,
		ProductName:       item.ProductName,
		OriginalPrice:     item.OriginalPrice,
		FlashSalePrice:    item.FlashSalePrice,
		TotalQuantity:     item.TotalQuantity,
		SoldQuantity:      item.SoldQuantity,
		RemainingQuantity: item.RemainingQuantity(),
		MaxPerUser:        item.EffectiveMaxPerUser(session),
		IsActive:          item.IsActive,
		IsSoldOut:         item.IsSoldOut(),
		DiscountPercent:   item.DiscountPercent(),
		SoldPercent:       item.SoldPercent(),
		SortOrder:         item.SortOrder,
	}
}
