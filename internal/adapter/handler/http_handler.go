package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/AndyAnh174/banthuoc-flashsale/internal/core/service"
)

// StorefrontHandler serves the public read API and the purchase intent
// endpoints.
type StorefrontHandler struct {
	read         *service.ReadService
	reservations *service.ReservationService
	log          *zap.Logger
}

func NewStorefrontHandler(read *service.ReadService, reservations *service.ReservationService, log *zap.Logger) *StorefrontHandler {
	return &StorefrontHandler{read: read, reservations: reservations, log: log}
}

// ListSessions handles GET /api/flash-sales.
func (h *StorefrontHandler) ListSessions(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"sessions": h.read.ListSessions()})
}

// Current handles GET /api/flash-sales/current: the running session, else the
// next upcoming one, with server time for countdown sync.
func (h *StorefrontHandler) Current(c *gin.Context) {
	c.JSON(http.StatusOK, h.read.Current())
}

// GetSession handles GET /api/flash-sales/:id.
func (h *StorefrontHandler) GetSession(c *gin.Context) {
	view, err := h.read.GetSession(c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, view)
}

type purchaseRequest struct {
	RequestID string `json:"request_id"`
	SessionID string `json:"session_id" binding:"required"`
	ItemID    string `json:"item_id" binding:"required"`
	UserID    string `json:"user_id" binding:"required"`
	Quantity  int    `json:"quantity" binding:"required,min=1"`
}

type purchaseResponse struct {
	Success       bool   `json:"success"`
	ReservationID string `json:"reservation_id,omitempty"`
	Remaining     *int   `json:"remaining_quantity,omitempty"`
	Message       string `json:"message"`
}

// Purchase handles POST /api/purchase.
func (h *StorefrontHandler) Purchase(c *gin.Context) {
	var req purchaseRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body", "code": codeValidationError})
		return
	}

	reservation, err := h.reservations.Reserve(c.Request.Context(), service.ReserveInput{
		RequestID: req.RequestID,
		SessionID: req.SessionID,
		ItemID:    req.ItemID,
		UserID:    req.UserID,
		Quantity:  req.Quantity,
	})
	if err != nil {
		respondError(c, err)
		return
	}

	resp := purchaseResponse{
		Success:       true,
		ReservationID: reservation.ID,
		Message:       "reservation placed successfully",
	}
	if item, err := h.read.GetItem(req.ItemID); err == nil {
		resp.Remaining = &item.RemainingQuantity
	} else {
		// The item can be force-deleted between the reserve and this read;
		// the reservation stands, the counter is simply gone.
		h.log.Warn("item snapshot unavailable after reserve",
			zap.String("item_id", req.ItemID), zap.Error(err))
	}
	c.JSON(http.StatusOK, resp)
}

type releaseRequest struct {
	ReservationID string `json:"reservation_id" binding:"required"`
}

// Release handles POST /api/release: the order subsystem's compensating call
// on payment failure or checkout abandonment.
func (h *StorefrontHandler) Release(c *gin.Context) {
	var req releaseRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body", "code": codeValidationError})
		return
	}

	reservation, err := h.reservations.Release(c.Request.Context(), req.ReservationID)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success":        true,
		"reservation_id": reservation.ID,
		"status":         reservation.Status,
	})
}

// HealthCheck handles GET /health.
func (h *StorefrontHandler) HealthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}
