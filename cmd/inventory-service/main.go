package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/jumak/jumak-backend/internal/inventory/events"
	"github.com/jumak/jumak-backend/internal/inventory/handler"
	"github.com/jumak/jumak-backend/internal/inventory/repository"
	"github.com/jumak/jumak-backend/internal/inventory/service"
	"github.com/jumak/jumak-backend/pkg/config"
	"github.com/jumak/jumak-backend/pkg/database"
	"github.com/jumak/jumak-backend/pkg/httputil"
	"github.com/jumak/jumak-backend/pkg/logger"
	"github.com/jumak/jumak-backend/pkg/messaging"
)

func main() {
	// Load configuration with validation (fails fast in production if required config is missing)
	cfg, err := config.LoadWithValidation("inventory-service")
	if err != nil {
		fmt.Fprintf(os.Stderr, "configuration error: %v\n", err)
		os.Exit(1)
	}

	// Initialize logger
	log := logger.New("inventory-service", cfg.Server.Environment)
	log.Info().Msg("starting Inventory Service")

	// Connect to database
	db, err := database.New(&cfg.Database, log)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to database")
	}
	defer db.Close()

	// Apply schema migrations
	if cfg.Database.AutoMigrate {
		if err := db.Migrate(cfg.Database.MigrationsPath, log); err != nil {
			log.Fatal().Err(err).Msg("failed to run migrations")
		}
	}

	// Connect to RabbitMQ. In development a missing broker is tolerated:
	// the nil publisher drops events and the service stays usable.
	var publisher *events.InventoryEventPublisher
	rmq, err := messaging.New(&cfg.RabbitMQ, log)
	if err != nil {
		if cfg.Server.Environment != "development" {
			log.Fatal().Err(err).Msg("failed to connect to RabbitMQ")
		}
		log.Warn().Err(err).Msg("RabbitMQ unavailable, events disabled")
	} else {
		defer rmq.Close()
		publisher, err = events.NewInventoryEventPublisher(rmq, log)
		if err != nil {
			log.Fatal().Err(err).Msg("failed to create event publisher")
		}
	}

	// Initialize repositories
	itemRepo := repository.NewItemRepository(db)
	batchRepo := repository.NewBatchRepository(db)
	consumptionRepo := repository.NewConsumptionRepository(db)
	alertRepo := repository.NewAlertRepository(db)

	// Initialize services
	inventoryService := service.NewInventoryService(db, itemRepo, batchRepo, consumptionRepo, publisher, log)
	scanner := service.NewAlertScanner(itemRepo, batchRepo, alertRepo, publisher, cfg.Alerts.ExpiryHorizonDays, log)
	scheduler := service.NewAlertScheduler(scanner, alertRepo, cfg.Alerts.ScanInterval, cfg.Alerts.RetentionDays, log)

	// Initialize handlers
	itemHandler := handler.NewItemHandler(inventoryService, log)
	inventoryHandler := handler.NewInventoryHandler(inventoryService, scanner, log)
	alertHandler := handler.NewAlertHandler(alertRepo, log)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Start background alert scanning
	scheduler.Start(ctx)

	// Create router
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.RealIP)
	r.Use(httputil.RequestID)
	r.Use(httputil.Logger(log))
	r.Use(httputil.Recoverer(log))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type", "X-Request-ID"},
		MaxAge:         300,
	}))

	// Health check
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		health := map[string]interface{}{
			"status":   "healthy",
			"service":  "inventory-service",
			"database": db.Health(r.Context()),
		}
		if rmq != nil {
			health["rabbitmq"] = rmq.Health()
		}
		httputil.JSON(w, http.StatusOK, health)
	})

	// API routes
	r.Route("/api/v1/inventory", func(r chi.Router) {
		// Item catalog
		r.Route("/items", func(r chi.Router) {
			r.Get("/", itemHandler.List)
			r.Post("/", itemHandler.Create)
			r.Get("/{name}", itemHandler.Get)
			r.Put("/{name}", itemHandler.Update)
			r.Delete("/{name}", itemHandler.Deactivate)
			r.Get("/{name}/status", inventoryHandler.Status)
			r.Get("/{name}/usage", inventoryHandler.Usage)
		})

		// Ledger operations
		r.Post("/receipts", inventoryHandler.Register)
		r.Post("/consumptions", inventoryHandler.Consume)

		// Condition checks
		r.Route("/checks", func(r chi.Router) {
			r.Get("/low-stock", inventoryHandler.CheckLowStock)
			r.Get("/expiring", inventoryHandler.CheckExpiring)
			r.Get("/expired", inventoryHandler.CheckExpired)
			r.Post("/scan", inventoryHandler.Scan)
		})

		// Alerts
		r.Get("/alerts", alertHandler.List)
		r.Put("/alerts/{id}/acknowledge", alertHandler.Acknowledge)
	})

	// Create server
	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      r,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	// Start server
	go func() {
		log.Info().Str("addr", addr).Msg("server listening")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("server error")
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("shutting down server")

	// Stop the scheduler before the server drains
	scheduler.Stop()
	cancel()

	// Graceful shutdown
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("server forced to shutdown")
	}

	log.Info().Msg("server stopped")
}
