// Package v1 provides HTTP API version 1.
package v1

import (
	"github.com/gin-gonic/gin"

	"vintrack/internal/domain/count"
	"vintrack/internal/domain/label"
	"vintrack/internal/domain/movement"
	"vintrack/internal/domain/pallet"
	"vintrack/internal/domain/picking"
	"vintrack/internal/domain/repack"
	"vintrack/internal/domain/stock"
	"vintrack/internal/infrastructure/http/v1/handlers"
	"vintrack/internal/infrastructure/http/v1/middleware"
	"vintrack/internal/infrastructure/storage/postgres"
	"vintrack/pkg/logger"
)

// RouterConfig holds everything the router needs wired.
type RouterConfig struct {
	Pool   *postgres.Pool
	Logger *logger.Logger

	// TokenValidator guards all API routes; health endpoints stay open.
	TokenValidator middleware.TokenValidator

	Stock     *stock.Service
	Labels    *label.Service
	Movements *movement.Service
	Pallets   *pallet.Service
	Picking   *picking.Service
	Repack    *repack.Service
	Counts    *count.Service
}

// NewRouter creates and configures the Gin router.
func NewRouter(cfg RouterConfig) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)

	router := gin.New()

	// Global middleware (order matters)
	router.Use(middleware.Recovery())
	router.Use(middleware.Trace())
	router.Use(middleware.Logger(cfg.Logger))
	router.Use(middleware.ErrorHandler())

	// Health endpoints, no auth
	healthHandler := handlers.NewHealthHandler(cfg.Pool)
	health := router.Group("/health")
	{
		health.GET("/live", healthHandler.Live)
		health.GET("/ready", healthHandler.Ready)
		health.GET("/info", healthHandler.Info)
	}

	base := handlers.NewBaseHandler()

	api := router.Group("/api/v1")
	api.Use(middleware.Auth(cfg.TokenValidator))

	stockHandler := handlers.NewStockHandler(base, cfg.Stock)
	stockGroup := api.Group("/stock")
	{
		stockGroup.GET("", stockHandler.List)
		stockGroup.GET("/:stockId", stockHandler.Get)
		stockGroup.POST("/receive", stockHandler.Receive)
		stockGroup.POST("/receive/bulk", stockHandler.BulkReceive)
		stockGroup.POST("/merge-duplicates", stockHandler.MergeDuplicates)
		stockGroup.POST("/:stockId/adjust", stockHandler.Adjust)
		stockGroup.POST("/:stockId/transfer-location", stockHandler.TransferLocation)
		stockGroup.POST("/:stockId/transfer-ownership", stockHandler.TransferOwnership)
	}

	labelHandler := handlers.NewLabelHandler(base, cfg.Labels)
	labelGroup := api.Group("/labels")
	{
		labelGroup.GET("/:barcode", labelHandler.GetByBarcode)
		labelGroup.GET("/:barcode/print", labelHandler.Print)
		labelGroup.POST("/:barcode/relocate", labelHandler.Relocate)
	}

	movementHandler := handlers.NewMovementHandler(base, cfg.Movements, cfg.Stock)
	movementGroup := api.Group("/movements")
	{
		movementGroup.GET("", movementHandler.List)
		movementGroup.GET("/reconciliation", movementHandler.Reconcile)
		movementGroup.GET("/:movementNumber", movementHandler.GetByNumber)
	}

	palletHandler := handlers.NewPalletHandler(base, cfg.Pallets)
	palletGroup := api.Group("/pallets")
	{
		palletGroup.POST("", palletHandler.Create)
		palletGroup.GET("/:palletId", palletHandler.Get)
		palletGroup.GET("/code/:palletCode", palletHandler.GetByCode)
		palletGroup.GET("/:palletId/cases", palletHandler.Contents)
		palletGroup.POST("/:palletId/cases", palletHandler.AddCase)
		palletGroup.POST("/:palletId/cases/remove", palletHandler.RemoveCase)
		palletGroup.POST("/:palletId/seal", palletHandler.Seal)
		palletGroup.POST("/:palletId/unseal", palletHandler.Unseal)
		palletGroup.POST("/:palletId/move", palletHandler.Move)
		palletGroup.POST("/:palletId/dispatch", palletHandler.Dispatch)
		palletGroup.POST("/:palletId/dissolve", palletHandler.Dissolve)
	}

	pickingHandler := handlers.NewPickingHandler(base, cfg.Picking)
	pickingGroup := api.Group("/picking")
	{
		pickingGroup.POST("/reserve", pickingHandler.Reserve)
		pickingGroup.POST("/release", pickingHandler.Release)
		pickingGroup.POST("/pick", pickingHandler.Pick)
		pickingGroup.GET("/orders/:orderId", pickingHandler.ListByOrder)
		pickingGroup.GET("/stock/:stockId", pickingHandler.ListByStock)
	}

	repackHandler := handlers.NewRepackHandler(base, cfg.Repack)
	repackGroup := api.Group("/repacks")
	{
		repackGroup.POST("", repackHandler.Repack)
		repackGroup.GET("", repackHandler.History)
		repackGroup.GET("/:repackId", repackHandler.Get)
	}

	countHandler := handlers.NewCountHandler(base, cfg.Counts)
	countGroup := api.Group("/counts")
	{
		countGroup.POST("", countHandler.Create)
		countGroup.GET("", countHandler.ListByLocation)
		countGroup.GET("/:countId", countHandler.Get)
		countGroup.GET("/:countId/items", countHandler.Items)
		countGroup.POST("/:countId/start", countHandler.Start)
		countGroup.POST("/:countId/items/:itemId", countHandler.RecordItem)
		countGroup.POST("/:countId/complete", countHandler.Complete)
		countGroup.GET("/:countId/auto-approvals", countHandler.AutoApprovals)
		countGroup.POST("/:countId/reconcile", countHandler.Reconcile)
	}

	return router
}
