package routes

import (
	"proaluno-library/internal/adapters/http/handlers"
	"proaluno-library/internal/adapters/http/middleware"
	"proaluno-library/internal/adapters/persistence/repositories"
	"proaluno-library/internal/config"
	"proaluno-library/internal/core/services"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/swagger"
	"gorm.io/gorm"
)

// Setup configures all routes for the application
func Setup(app *fiber.App, db *gorm.DB, cfg *config.Config, overdueService *services.OverdueService) {
	// Initialize repositories
	userRepo := repositories.NewUserRepository(db)
	refreshTokenRepo := repositories.NewRefreshTokenRepository(db)
	bookRepo := repositories.NewBookRepository(db)
	loanRepo := repositories.NewLoanRepository(db)
	policyRepo := repositories.NewPolicyRepository(db)
	notificationRepo := repositories.NewNotificationRepository(db)

	// Initialize services
	authService := services.NewAuthService(userRepo, refreshTokenRepo, cfg)
	userService := services.NewUserService(userRepo)
	policyService := services.NewPolicyService(policyRepo)
	catalogService := services.NewCatalogService(bookRepo, loanRepo)
	mailerService := services.NewMailerService(cfg)
	circulationService := services.NewCirculationService(loanRepo, bookRepo, userRepo, policyService, mailerService)
	notificationService := services.NewNotificationService(notificationRepo)
	nudgeService := services.NewNudgeService(circulationService, userRepo, notificationRepo, mailerService)

	// Initialize handlers
	healthHandler := handlers.NewHealthHandler()
	authHandler := handlers.NewAuthHandler(authService, cfg)
	userHandler := handlers.NewUserHandler(userService)
	bookHandler := handlers.NewBookHandler(catalogService)
	loanHandler := handlers.NewLoanHandler(circulationService)
	notificationHandler := handlers.NewNotificationHandler(notificationService, nudgeService)
	adminHandler := handlers.NewAdminHandler(policyService, overdueService)

	// Health check & root routes
	app.Get("/", healthHandler.Root)
	app.Get("/health", healthHandler.HealthCheck)

	// Swagger documentation
	app.Get("/swagger/*", swagger.HandlerDefault)

	// API v1 group
	apiV1 := app.Group("/api/v1")
	setupAPIV1Routes(apiV1, healthHandler, authHandler, userHandler, bookHandler,
		loanHandler, notificationHandler, adminHandler, cfg)
}

// setupAPIV1Routes configures API v1 routes
func setupAPIV1Routes(
	router fiber.Router,
	healthHandler *handlers.HealthHandler,
	authHandler *handlers.AuthHandler,
	userHandler *handlers.UserHandler,
	bookHandler *handlers.BookHandler,
	loanHandler *handlers.LoanHandler,
	notificationHandler *handlers.NotificationHandler,
	adminHandler *handlers.AdminHandler,
	cfg *config.Config,
) {
	// API Info
	router.Get("/", healthHandler.APIInfo)

	// Auth routes (public)
	authRoutes := router.Group("/auth")
	setupAuthRoutes(authRoutes, authHandler, cfg)

	// User management routes (Admin only)
	userRoutes := router.Group("/users")
	userRoutes.Use(middleware.AuthMiddleware(cfg))
	userRoutes.Use(middleware.AdminOnly())
	setupUserRoutes(userRoutes, userHandler)

	// Profile routes (Authenticated users)
	profileRoutes := router.Group("/profile")
	profileRoutes.Use(middleware.AuthMiddleware(cfg))
	setupProfileRoutes(profileRoutes, userHandler)

	// Catalog routes (browse is public, changes are Admin only)
	bookRoutes := router.Group("/books")
	setupBookRoutes(bookRoutes, bookHandler, cfg)

	// Circulation routes (Authenticated users)
	loanRoutes := router.Group("/loans")
	loanRoutes.Use(middleware.AuthMiddleware(cfg))
	setupLoanRoutes(loanRoutes, loanHandler)

	// Notification routes (Authenticated users)
	notificationRoutes := router.Group("/notifications")
	notificationRoutes.Use(middleware.AuthMiddleware(cfg))
	notificationRoutes.Use(middleware.NoCacheHeaders())
	setupNotificationRoutes(notificationRoutes, notificationHandler)

	// Nudge route (Authenticated users)
	router.Post("/nudges", middleware.AuthMiddleware(cfg), notificationHandler.Nudge)

	// Admin routes (Admin only)
	adminRoutes := router.Group("/admin")
	adminRoutes.Use(middleware.AuthMiddleware(cfg))
	adminRoutes.Use(middleware.AdminOnly())
	setupAdminRoutes(adminRoutes, adminHandler)
}

// setupAuthRoutes configures authentication routes
func setupAuthRoutes(router fiber.Router, handler *handlers.AuthHandler, cfg *config.Config) {
	// Public routes (rate-limited against brute force)
	router.Post("/register", middleware.AuthRateLimiter(), handler.Register)
	router.Post("/login", middleware.AuthRateLimiter(), handler.Login)
	router.Post("/refresh", handler.RefreshToken)
	router.Post("/logout", handler.Logout)

	// Protected routes
	router.Get("/me", middleware.AuthMiddleware(cfg), handler.Me)
	router.Post("/logout-all", middleware.AuthMiddleware(cfg), handler.LogoutAll)
}

// setupUserRoutes configures user management routes (Admin only)
func setupUserRoutes(router fiber.Router, handler *handlers.UserHandler) {
	router.Get("/", handler.ListUsers)
	router.Get("/:id", handler.GetUser)
	router.Put("/:id", handler.UpdateUser)
}

// setupProfileRoutes configures profile routes (Authenticated)
func setupProfileRoutes(router fiber.Router, handler *handlers.UserHandler) {
	router.Get("/", handler.GetProfile)
	router.Put("/", handler.UpdateProfile)
	router.Put("/password", middleware.StrictRateLimiter(), handler.ChangePassword)
}

// setupBookRoutes configures catalog routes
func setupBookRoutes(router fiber.Router, handler *handlers.BookHandler, cfg *config.Config) {
	// Public browsing
	router.Get("/", middleware.CatalogCache(), handler.ListBooks)
	router.Get("/:id", handler.GetBook)

	// Admin only changes
	router.Post("/", middleware.AuthMiddleware(cfg), middleware.AdminOnly(), handler.CreateBook)
	router.Put("/:id", middleware.AuthMiddleware(cfg), middleware.AdminOnly(), handler.UpdateBook)
}

// setupLoanRoutes configures circulation routes (Authenticated)
func setupLoanRoutes(router fiber.Router, handler *handlers.LoanHandler) {
	// Borrow & listings
	router.Post("/", handler.Borrow)
	router.Get("/", middleware.AdminOnly(), handler.ListLoans)
	router.Get("/me", handler.ListMyLoans)

	// Counter operations (Admin only)
	router.Post("/return-by-book", middleware.AdminOnly(), handler.ReturnByBook)
	router.Post("/internal-use", middleware.AdminOnly(), handler.RegisterInternalUse)

	// Per-loan operations
	router.Get("/:id", handler.GetLoan)
	router.Post("/:id/return", handler.Return)
	router.Post("/:id/renew", handler.Renew)
	router.Get("/:id/renew/preview", handler.PreviewRenew)
	router.Post("/:id/extend", handler.RequestExtension)
	router.Get("/:id/extend/preview", handler.PreviewExtension)
}

// setupNotificationRoutes configures notification feed routes
func setupNotificationRoutes(router fiber.Router, handler *handlers.NotificationHandler) {
	router.Get("/", handler.ListMine)
	router.Put("/:id/read", handler.MarkRead)
}

// setupAdminRoutes configures policy and sweep administration routes
func setupAdminRoutes(router fiber.Router, handler *handlers.AdminHandler) {
	router.Get("/policy", handler.GetPolicy)
	router.Put("/policy", handler.UpdatePolicy)
	router.Post("/overdue-sweep", handler.RunOverdueSweep)
}
