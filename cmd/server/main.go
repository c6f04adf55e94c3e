// Package main is the entry point for the vintrack API server.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"vintrack/internal/domain/auth"
	"vintrack/internal/domain/count"
	"vintrack/internal/domain/label"
	"vintrack/internal/domain/movement"
	"vintrack/internal/domain/pallet"
	"vintrack/internal/domain/picking"
	"vintrack/internal/domain/repack"
	"vintrack/internal/domain/stock"
	v1 "vintrack/internal/infrastructure/http/v1"
	"vintrack/internal/infrastructure/storage/postgres"
	"vintrack/pkg/labelprint"
	"vintrack/pkg/logger"
	"vintrack/pkg/sequence"
)

func main() {
	log, err := logger.New(logger.Config{
		Level:       getEnv("LOG_LEVEL", "info"),
		Development: getEnv("APP_ENV", "development") == "development",
	})
	if err != nil {
		fmt.Printf("failed to initialize logger: %v\n", err)
		os.Exit(1)
	}

	ctx := context.Background()
	log.Info("starting vintrack server")

	// --- Database ---
	poolCfg := postgres.DefaultPoolConfig(mustEnv("DATABASE_URL"))
	pool, err := postgres.NewPool(ctx, poolCfg)
	if err != nil {
		log.Fatalw("failed to connect to database", "error", err)
	}
	defer pool.Close()
	log.Info("database connection established")

	txManager := postgres.NewTxManager(pool)

	// --- Repositories ---
	stockRepo := postgres.NewStockRepo(txManager)
	movementRepo, err := postgres.NewMovementRepo(txManager)
	if err != nil {
		log.Fatalw("failed to create movement repository", "error", err)
	}
	labelRepo := postgres.NewLabelRepo(txManager)
	palletRepo := postgres.NewPalletRepo(txManager)
	pickingRepo := postgres.NewPickingRepo(txManager)
	repackRepo := postgres.NewRepackRepo(txManager)
	countRepo := postgres.NewCountRepo(txManager)
	ownerRepo := postgres.NewOwnerRepo(txManager)

	// --- Domain services ---
	seqService := sequence.New(postgres.NewSequenceSource(txManager))
	movementService := movement.NewService(movementRepo, seqService)
	labelService := label.NewService(labelRepo, seqService)

	stockService := stock.NewService(
		stockRepo, labelService, movementService, ownerRepo, seqService, txManager,
	)

	noteWriter := labelprint.NewNoteWriter(os.Stdout)
	palletService := pallet.NewService(
		palletRepo, stockRepo, labelService, movementService, ownerRepo, seqService, txManager, noteWriter,
	)

	pickingService := picking.NewService(pickingRepo, stockRepo, movementService, txManager)
	repackService := repack.NewService(repackRepo, stockRepo, labelService, movementService, txManager)

	// Discrepancies matching the policy expression are pre-approved for
	// reconciliation; everything else needs an explicit decision.
	var approvalPolicy *count.ApprovalPolicy
	if expr := getEnv("COUNT_APPROVAL_POLICY", ""); expr != "" {
		approvalPolicy, err = count.NewApprovalPolicy(expr)
		if err != nil {
			log.Fatalw("invalid count approval policy", "error", err, "expression", expr)
		}
		log.Infow("count approval policy loaded", "expression", expr)
	}
	countService := count.NewService(countRepo, stockRepo, movementService, txManager, approvalPolicy)

	// --- JWT ---
	jwtConfig := auth.DefaultJWTConfig(mustEnv("JWT_SECRET"))
	jwtService := auth.NewJWTService(jwtConfig)

	// --- Router ---
	router := v1.NewRouter(v1.RouterConfig{
		Pool:           pool,
		Logger:         log,
		TokenValidator: jwtService,
		Stock:          stockService,
		Labels:         labelService,
		Movements:      movementService,
		Pallets:        palletService,
		Picking:        pickingService,
		Repack:         repackService,
		Counts:         countService,
	})

	// --- HTTP server ---
	port := getEnv("APP_PORT", "8080")
	server := &http.Server{
		Addr:         ":" + port,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Infow("server starting", "port", port)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalw("server failed", "error", err)
		}
	}()

	// --- Graceful shutdown ---
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Fatalw("server forced to shutdown", "error", err)
	}

	log.Info("server stopped")
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func mustEnv(key string) string {
	value := os.Getenv(key)
	if value == "" {
		fmt.Printf("required environment variable %s not set\n", key)
		os.Exit(1)
	}
	return value
}
