package main

import (
	"log"
	"os"
	"os/signal"
	"syscall"

	"proaluno-library/internal/adapters/http/middleware"
	"proaluno-library/internal/adapters/http/routes"
	"proaluno-library/internal/adapters/persistence/models"
	"proaluno-library/internal/adapters/persistence/repositories"
	"proaluno-library/internal/config"
	"proaluno-library/internal/core/services"

	"github.com/gofiber/fiber/v2"

	_ "proaluno-library/docs" // Swagger docs
)

// @title ProAluno Library API
// @version 1.0
// @description Sistema de circulação da biblioteca do ProAluno
// @termsOfService http://swagger.io/terms/

// @contact.name API Support
// @contact.email biblioteca@proaluno.usp.br

// @license.name Apache 2.0
// @license.url http://www.apache.org/licenses/LICENSE-2.0.html

// @host biblioteca.proaluno.usp.br
// @BasePath /api/v1
// @schemes https

// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
// @description Type "Bearer" followed by a space and JWT token.

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("❌ Failed to load configuration: %v", err)
	}

	// Connect to database
	db, err := config.ConnectDatabase(cfg)
	if err != nil {
		log.Fatalf("❌ Failed to connect to database: %v", err)
	}
	defer config.CloseDatabase()

	// Auto migrate (creates tables if not exist)
	if err := models.AutoMigrate(db); err != nil {
		log.Fatalf("❌ Failed to auto migrate: %v", err)
	}
	log.Println("✅ Database migration completed")

	// Seed circulation policy and bootstrap admin
	if err := config.SeedDefaults(db); err != nil {
		log.Printf("⚠️ Warning: Failed to seed defaults: %v", err)
	}

	// Overdue sweep service (shared by the scheduler and the admin
	// endpoint)
	overdueService := services.NewOverdueService(
		repositories.NewLoanRepository(db),
		repositories.NewUserRepository(db),
		repositories.NewNotificationRepository(db),
		services.NewPolicyService(repositories.NewPolicyRepository(db)),
		services.NewMailerService(cfg),
	)

	// Start the daily overdue sweep scheduler
	cronService := services.NewCronService(overdueService, cfg.Sweep.CronSpec)
	if err := cronService.Start(); err != nil {
		log.Fatalf("❌ Failed to start cron scheduler: %v", err)
	}
	defer cronService.Stop()

	// Create Fiber app
	app := fiber.New(fiber.Config{
		AppName:      "ProAluno Library API v1.0",
		ErrorHandler: middleware.CustomErrorHandler,
	})

	// Setup middlewares
	middleware.Setup(app, cfg)

	// Setup routes (pass db and cfg for dependency injection)
	routes.Setup(app, db, cfg, overdueService)

	// Graceful shutdown
	go gracefulShutdown(app)

	// Start server
	log.Printf("🚀 Server starting on port %s [MODE: %s]", cfg.Port, cfg.AppMode)
	if err := app.Listen(":" + cfg.Port); err != nil {
		log.Fatalf("❌ Failed to start server: %v", err)
	}
}

// gracefulShutdown handles graceful shutdown
func gracefulShutdown(app *fiber.App) {
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("🛑 Shutting down server...")
	if err := app.Shutdown(); err != nil {
		log.Printf("❌ Error during shutdown: %v", err)
	}
	log.Println("✅ Server stopped gracefully")
}
