package handler

import (
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// RouterConfig carries the transport-level knobs.
type RouterConfig struct {
	JWTSecret     string
	AllowOrigins  []string
	PurchaseRPS   float64
	PurchaseBurst int
}

// NewRouter wires the public and admin route groups.
func NewRouter(storefront *StorefrontHandler, admin *AdminHandler, log *zap.Logger, cfg RouterConfig) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery(), RequestLogger(log))
	router.Use(cors.New(cors.Config{
		AllowOrigins: cfg.AllowOrigins,
		AllowMethods: []string{"GET", "POST", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders: []string{"Origin", "Content-Type", "Authorization"},
	}))

	router.GET("/health", storefront.HealthCheck)

	api := router.Group("/api")
	{
		api.GET("/flash-sales", storefront.ListSessions)
		api.GET("/flash-sales/current", storefront.Current)
		api.GET("/flash-sales/:id", storefront.GetSession)
		api.POST("/purchase", PurchaseRateLimit(cfg.PurchaseRPS, cfg.PurchaseBurst), storefront.Purchase)
		api.POST("/release", storefront.Release)
	}

	adminGroup := router.Group("/admin", AdminAuth(cfg.JWTSecret))
	{
		adminGroup.POST("/flash-sales", admin.CreateSession)
		adminGroup.GET("/flash-sales", admin.ListSessions)
		adminGroup.GET("/flash-sales/:id", admin.GetSession)
		adminGroup.PATCH("/flash-sales/:id", admin.UpdateSession)
		adminGroup.POST("/flash-sales/:id/cancel", admin.CancelSession)
		adminGroup.DELETE("/flash-sales/:id", admin.DeleteSession)
		adminGroup.POST("/flash-sales/:id/items", admin.AddItem)
		adminGroup.PATCH("/items/:id", admin.UpdateItem)
		adminGroup.POST("/items/:id/resnapshot-price", admin.ResnapshotPrice)
		adminGroup.DELETE("/items/:id", admin.DeleteItem)
	}

	return router
}
