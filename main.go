package main

import (
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	fiberlogger "github.com/gofiber/fiber/v2/middleware/logger"
	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"fynd/internal/config"
	"fynd/internal/handlers"
	"fynd/internal/middleware"
	"fynd/internal/models"
	"fynd/internal/repositories"
	"fynd/internal/services"
	"fynd/pkg/logger"
	"fynd/pkg/metrics"
	"fynd/pkg/rabbitmq"
)

const serviceName = "fynd-catalog"

// NewApp wires the Fiber app from its dependencies so tests can build one
// over their own repository and broker.
func NewApp(cfg *config.Config, repo repositories.CatalogRepository, mqClient *rabbitmq.Client, httpMetrics *metrics.HTTPMetrics) (*fiber.App, *services.PricingAggregator) {
	// --- Initialize Services ---
	catalogService := services.NewCatalogService(repo, mqClient)
	pricingAggregator := services.NewPricingAggregator(repo, cfg.PricingFlushDelay)

	// --- Initialize Handlers ---
	productHandler := handlers.NewProductHandler(catalogService, pricingAggregator)
	metaHandler := handlers.NewMetaHandler(catalogService)
	adminHandler := handlers.NewAdminHandler(catalogService, pricingAggregator)

	// --- Initialize Fiber App ---
	app := fiber.New()

	// --- Middleware ---
	app.Use(middleware.RequestID())
	app.Use(fiberlogger.New()) // Request logger
	if httpMetrics != nil {
		app.Use(httpMetrics.Middleware())
	}

	// --- API Routes ---
	apiV1 := app.Group("/api/v1")
	productHandler.RegisterRoutes(apiV1)
	metaHandler.RegisterRoutes(apiV1)

	// Operator routes sit behind the admin JWT guard.
	adminRoutes := apiV1.Group("/admin", middleware.AdminRequired(cfg.JWTSecret))
	adminHandler.RegisterRoutes(adminRoutes)

	// --- Health Check Endpoint ---
	app.Get("/health", func(c *fiber.Ctx) error {
		return c.Status(fiber.StatusOK).JSON(fiber.Map{
			"status": "healthy",
			"time":   time.Now().Format(time.RFC3339),
		})
	})

	// --- Metrics Endpoint ---
	app.Get("/metrics", metrics.Handler())

	return app, pricingAggregator
}

// openRepository builds the catalog repository for the configured driver.
// The memory driver runs the API without any database, for demos and tests.
func openRepository(cfg *config.Config) (repositories.CatalogRepository, error) {
	var dialector gorm.Dialector
	switch cfg.DatabaseDriver {
	case "memory":
		return repositories.NewMockCatalogRepository(), nil
	case "sqlite":
		dialector = sqlite.Open(cfg.DatabaseDSN)
	default:
		dialector = postgres.Open(cfg.DatabaseDSN)
	}

	db, err := gorm.Open(dialector, &gorm.Config{})
	if err != nil {
		return nil, err
	}
	if cfg.DatabaseDriver == "sqlite" {
		// Local development convenience; the Postgres schema is owned by the
		// ingestion pipeline's migrations.
		if err := db.AutoMigrate(&models.Listing{}, &models.Variant{}, &models.Offer{}); err != nil {
			return nil, err
		}
	}
	return repositories.NewGORMCatalogRepository(db), nil
}

func main() {
	// --- Configuration ---
	cfg := config.Load()

	if err := logger.Init(logger.Config{
		Level:       cfg.LogLevel,
		Environment: cfg.Environment,
		ServiceName: serviceName,
	}); err != nil {
		panic(err)
	}
	defer zap.L().Sync() //nolint:errcheck

	// --- Initialize Repository ---
	repo, err := openRepository(cfg)
	if err != nil {
		zap.L().Fatal("failed to open catalog store", zap.Error(err))
	}

	// --- Initialize RabbitMQ Client ---
	// The broker feeds the catalog from the shop scrapers. Without it the
	// service still serves the API, it just stops receiving updates.
	var mqClient *rabbitmq.Client
	if cfg.RabbitMQURL != "" {
		mqClient, err = rabbitmq.NewClient(rabbitmq.Config{URL: cfg.RabbitMQURL})
		if err != nil {
			zap.L().Warn("RabbitMQ unavailable, running without catalog ingestion", zap.Error(err))
			mqClient = nil
		} else {
			defer mqClient.Close()
		}
	}

	// --- Initialize App ---
	httpMetrics := metrics.New(serviceName)
	app, pricingAggregator := NewApp(cfg, repo, mqClient, httpMetrics)
	defer pricingAggregator.Stop()

	// --- Start Catalog Event Consumer ---
	if mqClient != nil {
		ingestService := services.NewIngestService(repo)
		if err := mqClient.ConsumeCatalogEvents(ingestService.HandleDelivery); err != nil {
			zap.L().Error("failed to start catalog event consumer", zap.Error(err))
		}
	}

	// --- Start HTTP Server ---
	zap.L().Info("starting server", zap.String("port", cfg.AppPort))

	// Graceful shutdown handling
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		if err := app.Listen(cfg.AppPort); err != nil {
			zap.L().Fatal("server failed to start", zap.Error(err))
		}
	}()

	// Wait for interrupt signal to gracefully shut down the server
	<-quit
	zap.L().Info("shutting down server")

	if err := app.Shutdown(); err != nil {
		zap.L().Error("error during Fiber shutdown", zap.Error(err))
	}
	zap.L().Info("server gracefully stopped")
}
