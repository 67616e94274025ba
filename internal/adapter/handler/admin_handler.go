package handler

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/AndyAnh174/banthuoc-flashsale/internal/core/domain"
	"github.com/AndyAnh174/banthuoc-flashsale/internal/core/service"
)

// AdminHandler serves the administration console endpoints. All routes sit
// behind the admin auth middleware.
type AdminHandler struct {
	sessions *service.SessionService
	admin    *service.AdminService
	read     *service.ReadService
	log      *zap.Logger
}

func NewAdminHandler(sessions *service.SessionService, admin *service.AdminService, read *service.ReadService, log *zap.Logger) *AdminHandler {
	return &AdminHandler{sessions: sessions, admin: admin, read: read, log: log}
}

type sessionResponse struct {
	ID          string               `json:"id"`
	Name        string               `json:"name"`
	Description string               `json:"description"`
	StartTime   time.Time            `json:"start_time"`
	EndTime     time.Time            `json:"end_time"`
	MaxPerUser  int                  `json:"max_per_user"`
	IsActive    bool                 `json:"is_active"`
	Status      domain.SessionStatus `json:"status"`
	CreatedAt   time.Time            `json:"created_at"`
	UpdatedAt   time.Time            `json:"updated_at"`
}

func (h *AdminHandler) sessionResponse(s domain.FlashSaleSession) sessionResponse {
	return sessionResponse{
		ID:          s.ID,
		Name:        s.Name,
		Description: s.Description,
		StartTime:   s.StartTime,
		EndTime:     s.EndTime,
		MaxPerUser:  s.MaxPerUser,
		IsActive:    s.IsActive,
		Status:      s.Status(h.sessions.Now()),
		CreatedAt:   s.CreatedAt,
		UpdatedAt:   s.UpdatedAt,
	}
}

type createSessionRequest struct {
	Name        string    `json:"name" binding:"required"`
	Description string    `json:"description"`
	StartTime   time.Time `json:"start_time" binding:"required"`
	EndTime     time.Time `json:"end_time" binding:"required"`
	MaxPerUser  int       `json:"max_per_user"`
}

// CreateSession handles POST /admin/flash-sales.
func (h *AdminHandler) CreateSession(c *gin.Context) {
	var req createSessionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body", "code": codeValidationError})
		return
	}

	session, err := h.sessions.Create(c.Request.Context(), service.CreateSessionInput{
		Name:        req.Name,
		Description: req.Description,
		StartTime:   req.StartTime,
		EndTime:     req.EndTime,
		MaxPerUser:  req.MaxPerUser,
	})
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, h.sessionResponse(session))
}

// ListSessions handles GET /admin/flash-sales: every session, cancelled and
// ended included.
func (h *AdminHandler) ListSessions(c *gin.Context) {
	sessions := h.sessions.List()
	out := make([]sessionResponse, 0, len(sessions))
	for _, s := range sessions {
		out = append(out, h.sessionResponse(s))
	}
	c.JSON(http.StatusOK, gin.H{"sessions": out})
}

// GetSession handles GET /admin/flash-sales/:id with the live item views.
func (h *AdminHandler) GetSession(c *gin.Context) {
	session, err := h.sessions.Get(c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	view, err := h.read.GetSession(session.ID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"session": h.sessionResponse(session),
		"items":   view.Items,
	})
}

type updateSessionRequest struct {
	Name        *string    `json:"name"`
	Description *string    `json:"description"`
	StartTime   *time.Time `json:"start_time"`
	EndTime     *time.Time `json:"end_time"`
	MaxPerUser  *int       `json:"max_per_user"`
	IsActive    *bool      `json:"is_active"`
}

// UpdateSession handles PATCH /admin/flash-sales/:id.
func (h *AdminHandler) UpdateSession(c *gin.Context) {
	var req updateSessionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body", "code": codeValidationError})
		return
	}

	session, err := h.sessions.Update(c.Request.Context(), c.Param("id"), service.UpdateSessionInput{
		Name:        req.Name,
		Description: req.Description,
		StartTime:   req.StartTime,
		EndTime:     req.EndTime,
		MaxPerUser:  req.MaxPerUser,
		IsActive:    req.IsActive,
	})
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, h.sessionResponse(session))
}

// CancelSession handles POST /admin/flash-sales/:id/cancel. Irreversible.
func (h *AdminHandler) CancelSession(c *gin.Context) {
	session, err := h.sessions.Cancel(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, h.sessionResponse(session))
}

// DeleteSession handles DELETE /admin/flash-sales/:id; force=true is the
// audited override when sales exist.
func (h *AdminHandler) DeleteSession(c *gin.Context) {
	force := c.Query("force") == "true"
	if err := h.admin.DeleteSession(c.Request.Context(), c.Param("id"), force); err != nil {
		respondError(c, err)
		return
	}
	if force {
		h.log.Info("forced session delete",
			zap.String("session_id", c.Param("id")),
			zap.String("admin", adminSubject(c)),
		)
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}

type addItemRequest struct {
	ProductID      string `json:"product_id" binding:"required"`
	FlashSalePrice int64  `json:"flash_sale_price" binding:"required,min=1"`
	TotalQuantity  int    `json:"total_quantity" binding:"required,min=1"`
	MaxPerUser     int    `json:"max_per_user"`
	SortOrder      int    `json:"sort_order"`
	OriginalPrice  int64  `json:"original_price"`
}

// AddItem handles POST /admin/flash-sales/:id/items.
func (h *AdminHandler) AddItem(c *gin.Context) {
	var req addItemRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body", "code": codeValidationError})
		return
	}

	item, err := h.admin.AddItem(c.Request.Context(), service.AddItemInput{
		SessionID:      c.Param("id"),
		ProductID:      req.ProductID,
		FlashSalePrice: req.FlashSalePrice,
		TotalQuantity:  req.TotalQuantity,
		MaxPerUser:     req.MaxPerUser,
		SortOrder:      req.SortOrder,
		OriginalPrice:  req.OriginalPrice,
	})
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, item)
}

type updateItemRequest struct {
	FlashSalePrice *int64 `json:"flash_sale_price"`
	TotalQuantity  *int   `json:"total_quantity"`
	MaxPerUser     *int   `json:"max_per_user"`
	IsActive       *bool  `json:"is_active"`
	SortOrder      *int   `json:"sort_order"`
}

// UpdateItem handles PATCH /admin/items/:id.
func (h *AdminHandler) UpdateItem(c *gin.Context) {
	var req updateItemRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body", "code": codeValidationError})
		return
	}

	item, err := h.admin.UpdateItem(c.Request.Context(), c.Param("id"), service.UpdateItemInput{
		FlashSalePrice: req.FlashSalePrice,
		TotalQuantity:  req.TotalQuantity,
		MaxPerUser:     req.MaxPerUser,
		IsActive:       req.IsActive,
		SortOrder:      req.SortOrder,
	})
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, item)
}

// ResnapshotPrice handles POST /admin/items/:id/resnapshot-price.
func (h *AdminHandler) ResnapshotPrice(c *gin.Context) {
	item, err := h.admin.ResnapshotOriginalPrice(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, item)
}

// DeleteItem handles DELETE /admin/items/:id; force=true is audited.
func (h *AdminHandler) DeleteItem(c *gin.Context) {
	force := c.Query("force") == "true"
	if err := h.admin.DeleteItem(c.Request.Context(), c.Param("id"), force); err != nil {
		respondError(c, err)
		return
	}
	if force {
		h.log.Info("forced item delete",
			zap.String("item_id", c.Param("id")),
			zap.String("admin", adminSubject(c)),
		)
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}
