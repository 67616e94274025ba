package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/AndyAnh174/banthuoc-flashsale/internal/clock"
	"github.com/AndyAnh174/banthuoc-flashsale/internal/core/domain"
	"github.com/AndyAnh174/banthuoc-flashsale/internal/core/ledger"
	"github.com/AndyAnh174/banthuoc-flashsale/internal/core/service"
)

const testSecret = "test-secret"

var handlerNow = time.Date(2025, 6, 15, 12, 0, 0, 0, time.UTC)

func init() {
	gin.SetMode(gin.TestMode)
}

// noopStore accepts every write; handler tests assert HTTP behavior, not
// persistence.
type noopStore struct{}

func (noopStore) CreateSession(context.Context, domain.FlashSaleSession) error { return nil }
func (noopStore) UpdateSession(context.Context, domain.FlashSaleSession) error { return nil }
func (noopStore) DeleteSession(context.Context, string) error                  { return nil }
func (noopStore) ListSessions(context.Context) ([]domain.FlashSaleSession, error) {
	return nil, nil
}
func (noopStore) CreateItem(context.Context, domain.FlashSaleItem) error { return nil }
func (noopStore) UpdateItem(context.Context, domain.FlashSaleItem) error { return nil }
func (noopStore) DeleteItem(context.Context, string) error               { return nil }
func (noopStore) ListItems(context.Context) ([]domain.FlashSaleItem, error) {
	return nil, nil
}
func (noopStore) CreateReservation(context.Context, domain.Reservation) error { return nil }
func (noopStore) UpdateReservation(context.Context, domain.Reservation) error { return nil }
func (noopStore) ListReservations(context.Context) ([]domain.Reservation, error) {
	return nil, nil
}
func (noopStore) UserTotals(context.Context, string) (map[string]int, error) {
	return nil, nil
}

type staticCatalog struct{}

func (staticCatalog) GetProduct(_ context.Context, productID string) (domain.Product, error) {
	if productID != "product-1" {
		return domain.Product{}, domain.ErrProductNotFound
	}
	return domain.Product{ID: productID, Name: "Vitamin C 1000mg", Price: 120000}, nil
}

type memCache struct {
	mu    sync.Mutex
	stock map[string]int
	keys  map[string]struct{}
}

func newMemCache() *memCache {
	return &memCache{stock: make(map[string]int), keys: make(map[string]struct{})}
}

func (m *memCache) SetStock(_ context.Context, itemID string, remaining int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.stock[itemID] = remaining
	return nil
}

func (m *memCache) DecrStock(_ context.Context, itemID string, quantity int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if next := m.stock[itemID] - quantity; next > 0 {
		m.stock[itemID] = next
	} else {
		m.stock[itemID] = 0
	}
	return nil
}

func (m *memCache) IncrStock(_ context.Context, itemID string, quantity int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.stock[itemID] += quantity
	return nil
}

func (m *memCache) DeleteStock(_ context.Context, itemID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.stock, itemID)
	return nil
}

func (m *memCache) SetIdempotency(_ context.Context, key string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.keys[key]; exists {
		return false, nil
	}
	m.keys[key] = struct{}{}
	return true, nil
}

func (m *memCache) DeleteIdempotency(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.keys, key)
	return nil
}

type testServer struct {
	router       *gin.Engine
	clk          *clock.Fixed
	sessions     *service.SessionService
	ledger       *ledger.Ledger
	reservations *service.ReservationService
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	log := zap.NewNop()
	clk := clock.NewFixed(handlerNow)
	lg := ledger.New()
	store := noopStore{}
	cache := newMemCache()

	sessions := service.NewSessionService(store, clk, log)
	reservations := service.NewReservationService(sessions, lg, cache, nil, clk, log, 256)
	admin := service.NewAdminService(sessions, lg, store, staticCatalog{}, cache, nil, clk, log, time.Second)
	read := service.NewReadService(sessions, lg)

	router := NewRouter(
		NewStorefrontHandler(read, reservations, log),
		NewAdminHandler(sessions, admin, read, log),
		log,
		RouterConfig{
			JWTSecret:     testSecret,
			AllowOrigins:  []string{"*"},
			PurchaseRPS:   1000,
			PurchaseBurst: 1000,
		},
	)
	return &testServer{
		router:       router,
		clk:          clk,
		sessions:     sessions,
		ledger:       lg,
		reservations: reservations,
	}
}

func (s *testServer) seedActiveSale() {
	s.sessions.Restore(domain.FlashSaleSession{
		ID: "session-1", Name: "Live Sale", IsActive: true, MaxPerUser: 5,
		StartTime: handlerNow.Add(-time.Hour), EndTime: handlerNow.Add(time.Hour),
	})
	s.ledger.Register(domain.FlashSaleItem{
		ID: "item-1", SessionID: "session-1", ProductID: "product-1",
		ProductName: "Vitamin C 1000mg", OriginalPrice: 120000, FlashSalePrice: 90000,
		TotalQuantity: 10, IsActive: true,
	}, nil)
}

func (s *testServer) do(method, path string, body any, headers map[string]string) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		_ = json.NewEncoder(&buf).Encode(body)
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)
	return rec
}

func adminToken(t *testing.T, role string) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub":  "ops@example.com",
		"role": role,
		"exp":  time.Now().Add(time.Hour).Unix(),
	})
	signed, err := token.SignedString([]byte(testSecret))
	require.NoError(t, err)
	return signed
}

func authHeader(t *testing.T) map[string]string {
	return map[string]string{"Authorization": "Bearer " + adminToken(t, "admin")}
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	return out
}

func TestHealth(t *testing.T) {
	s := newTestServer(t)
	rec := s.do(http.MethodGet, "/health", nil, nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestPurchase_Success(t *testing.T) {
	s := newTestServer(t)
	s.seedActiveSale()

	rec := s.do(http.MethodPost, "/api/purchase", gin.H{
		"session_id": "session-1",
		"item_id":    "item-1",
		"user_id":    "user-1",
		"quantity":   2,
	}, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	body := decodeBody(t, rec)
	assert.Equal(t, true, body["success"])
	assert.NotEmpty(t, body["reservation_id"])
	assert.Equal(t, float64(8), body["remaining_quantity"])
}

// The item can be force-deleted between a successful reserve and the snapshot
// read that fills the response: the purchase still succeeds and the counter is
// omitted rather than reported as an authoritative zero.
func TestPurchase_SnapshotGoneAfterReserve(t *testing.T) {
	log := zap.NewNop()
	clk := clock.NewFixed(handlerNow)
	sessions := service.NewSessionService(noopStore{}, clk, log)
	sessions.Restore(domain.FlashSaleSession{
		ID: "session-1", Name: "Live Sale", IsActive: true, MaxPerUser: 5,
		StartTime: handlerNow.Add(-time.Hour), EndTime: handlerNow.Add(time.Hour),
	})

	saleLedger := ledger.New()
	saleLedger.Register(domain.FlashSaleItem{
		ID: "item-1", SessionID: "session-1", ProductID: "product-1",
		ProductName: "Vitamin C 1000mg", OriginalPrice: 120000, FlashSalePrice: 90000,
		TotalQuantity: 10, IsActive: true,
	}, nil)
	reservations := service.NewReservationService(sessions, saleLedger, newMemCache(), nil, clk, log, 16)

	// The read side watches a ledger the item has already left.
	read := service.NewReadService(sessions, ledger.New())
	storefront := NewStorefrontHandler(read, reservations, log)

	router := gin.New()
	router.POST("/api/purchase", storefront.Purchase)

	var buf bytes.Buffer
	require.NoError(t, json.NewEncoder(&buf).Encode(gin.H{
		"session_id": "session-1", "item_id": "item-1", "user_id": "user-1", "quantity": 1,
	}))
	req := httptest.NewRequest(http.MethodPost, "/api/purchase", &buf)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	payload := decodeBody(t, rec)
	assert.Equal(t, true, payload["success"])
	assert.NotEmpty(t, payload["reservation_id"])
	_, present := payload["remaining_quantity"]
	assert.False(t, present)
}

func TestPurchase_MissingFields(t *testing.T) {
	s := newTestServer(t)
	rec := s.do(http.MethodPost, "/api/purchase", gin.H{"session_id": "session-1"}, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "VALIDATION_ERROR", decodeBody(t, rec)["code"])
}

func TestPurchase_ErrorCodes(t *testing.T) {
	s := newTestServer(t)
	s.seedActiveSale()

	buy := func(user string, quantity int) *httptest.ResponseRecorder {
		return s.do(http.MethodPost, "/api/purchase", gin.H{
			"session_id": "session-1",
			"item_id":    "item-1",
			"user_id":    user,
			"quantity":   quantity,
		}, nil)
	}

	// Per-user cap (session cap 5).
	rec := buy("hoarder", 6)
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "USER_LIMIT_EXCEEDED", decodeBody(t, rec)["code"])

	// Sell the item out, next buyer sees 410.
	for i := 0; i < 2; i++ {
		require.Equal(t, http.StatusOK, buy(fmt.Sprintf("buyer-%d", i), 5).Code)
	}
	rec = buy("late", 1)
	assert.Equal(t, http.StatusGone, rec.Code)
	assert.Equal(t, "OUT_OF_STOCK", decodeBody(t, rec)["code"])

	// Unknown item.
	rec = s.do(http.MethodPost, "/api/purchase", gin.H{
		"session_id": "session-1", "item_id": "ghost", "user_id": "u", "quantity": 1,
	}, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestPurchase_OutsideWindow(t *testing.T) {
	s := newTestServer(t)
	s.seedActiveSale()
	s.clk.Advance(2 * time.Hour)

	rec := s.do(http.MethodPost, "/api/purchase", gin.H{
		"session_id": "session-1", "item_id": "item-1", "user_id": "user-1", "quantity": 1,
	}, nil)
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "SESSION_NOT_ACTIVE", decodeBody(t, rec)["code"])
}

func TestPurchase_DuplicateRequestID(t *testing.T) {
	s := newTestServer(t)
	s.seedActiveSale()

	body := gin.H{
		"request_id": "req-1",
		"session_id": "session-1",
		"item_id":    "item-1",
		"user_id":    "user-1",
		"quantity":   1,
	}
	require.Equal(t, http.StatusOK, s.do(http.MethodPost, "/api/purchase", body, nil).Code)

	rec := s.do(http.MethodPost, "/api/purchase", body, nil)
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "DUPLICATE_REQUEST", decodeBody(t, rec)["code"])
}

func TestRelease_Flow(t *testing.T) {
	s := newTestServer(t)
	s.seedActiveSale()

	rec := s.do(http.MethodPost, "/api/purchase", gin.H{
		"session_id": "session-1", "item_id": "item-1", "user_id": "user-1", "quantity": 1,
	}, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	reservationID := decodeBody(t, rec)["reservation_id"].(string)

	rec = s.do(http.MethodPost, "/api/release", gin.H{"reservation_id": reservationID}, nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = s.do(http.MethodPost, "/api/release", gin.H{"reservation_id": reservationID}, nil)
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "ALREADY_RELEASED", decodeBody(t, rec)["code"])

	rec = s.do(http.MethodPost, "/api/release", gin.H{"reservation_id": "ghost"}, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestStorefront_Reads(t *testing.T) {
	s := newTestServer(t)
	s.seedActiveSale()

	rec := s.do(http.MethodGet, "/api/flash-sales", nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = s.do(http.MethodGet, "/api/flash-sales/current", nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	body := decodeBody(t, rec)
	require.NotNil(t, body["current_session"])
	assert.NotEmpty(t, body["server_time"])

	rec = s.do(http.MethodGet, "/api/flash-sales/session-1", nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ACTIVE", decodeBody(t, rec)["status"])

	rec = s.do(http.MethodGet, "/api/flash-sales/ghost", nil, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestAdmin_RequiresAuth(t *testing.T) {
	s := newTestServer(t)

	rec := s.do(http.MethodGet, "/admin/flash-sales", nil, nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = s.do(http.MethodGet, "/admin/flash-sales", nil, map[string]string{
		"Authorization": "Bearer not-a-token",
	})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = s.do(http.MethodGet, "/admin/flash-sales", nil, map[string]string{
		"Authorization": "Bearer " + adminToken(t, "customer"),
	})
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestAdmin_SessionLifecycle(t *testing.T) {
	s := newTestServer(t)
	headers := authHeader(t)

	rec := s.do(http.MethodPost, "/admin/flash-sales", gin.H{
		"name":       "9PM Sale",
		"start_time": handlerNow.Add(time.Hour).Format(time.RFC3339),
		"end_time":   handlerNow.Add(2 * time.Hour).Format(time.RFC3339),
	}, headers)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	created := decodeBody(t, rec)
	sessionID := created["id"].(string)
	assert.Equal(t, "SCHEDULED", created["status"])

	// Overlapping window is refused.
	rec = s.do(http.MethodPost, "/admin/flash-sales", gin.H{
		"name":       "Clash",
		"start_time": handlerNow.Add(90 * time.Minute).Format(time.RFC3339),
		"end_time":   handlerNow.Add(3 * time.Hour).Format(time.RFC3339),
	}, headers)
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "SESSION_OVERLAP", decodeBody(t, rec)["code"])

	rec = s.do(http.MethodPatch, "/admin/flash-sales/"+sessionID, gin.H{
		"name": "9PM Mega Sale",
	}, headers)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "9PM Mega Sale", decodeBody(t, rec)["name"])

	rec = s.do(http.MethodPost, "/admin/flash-sales/"+sessionID+"/cancel", nil, headers)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "CANCELLED", decodeBody(t, rec)["status"])

	rec = s.do(http.MethodPost, "/admin/flash-sales/"+sessionID+"/cancel", nil, headers)
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "NOT_CANCELLABLE", decodeBody(t, rec)["code"])

	rec = s.do(http.MethodDelete, "/admin/flash-sales/"+sessionID, nil, headers)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestAdmin_ItemLifecycle(t *testing.T) {
	s := newTestServer(t)
	s.seedActiveSale()
	headers := authHeader(t)

	// product-1 already listed in the seeded sale.
	rec := s.do(http.MethodPost, "/admin/flash-sales/session-1/items", gin.H{
		"product_id":       "product-1",
		"flash_sale_price": 90000,
		"total_quantity":   5,
	}, headers)
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "DUPLICATE_PRODUCT", decodeBody(t, rec)["code"])

	rec = s.do(http.MethodPatch, "/admin/items/item-1", gin.H{
		"total_quantity": 3,
	}, headers)
	require.Equal(t, http.StatusOK, rec.Code)

	// Sell one, then lowering below sold is refused.
	rec = s.do(http.MethodPost, "/api/purchase", gin.H{
		"session_id": "session-1", "item_id": "item-1", "user_id": "user-1", "quantity": 2,
	}, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = s.do(http.MethodPatch, "/admin/items/item-1", gin.H{
		"total_quantity": 1,
	}, headers)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "INVALID_QUANTITY", decodeBody(t, rec)["code"])

	// Delete refuses without force, succeeds with it.
	rec = s.do(http.MethodDelete, "/admin/items/item-1", nil, headers)
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "CANNOT_DELETE_WITH_SALES", decodeBody(t, rec)["code"])

	rec = s.do(http.MethodDelete, "/admin/items/item-1?force=true", nil, headers)
	assert.Equal(t, http.StatusOK, rec.Code)
}
