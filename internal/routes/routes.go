package routes

import (
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/example/telephony/internal/config"
	"github.com/example/telephony/internal/handlers"
	"github.com/example/telephony/internal/middleware"
	"github.com/example/telephony/internal/services"
)

// NewApp builds the fiber application with error handling, recovery, request
// logging and every route registered.
func NewApp(db *gorm.DB, cfg *config.Config, log *zap.Logger) (*fiber.App, error) {
	app := fiber.New(fiber.Config{
		AppName:      "Cloud Telephony",
		ErrorHandler: handlers.ErrorHandler(log),
	})

	app.Use(recover.New())
	app.Use(middleware.RequestLogger(log))

	if err := Register(app, db, cfg, log); err != nil {
		return nil, err
	}
	return app, nil
}

// Register wires up all HTTP routes.
func Register(app *fiber.App, db *gorm.DB, cfg *config.Config, log *zap.Logger) error {
	authService, err := services.NewAuthService(db, cfg, log)
	if err != nil {
		return err
	}
	numberService := services.NewNumberService(db, log)

	authHandler := handlers.NewAuthHandler(authService)
	numberHandler := handlers.NewNumberHandler(numberService)
	healthHandler := handlers.NewHealthHandler(db)

	app.Get("/healthz", healthHandler.Health)

	api := app.Group("/api")

	// Auth routes
	api.Post("/register", authHandler.Register)
	api.Post("/login", authHandler.Login)
	api.Post("/token/refresh", authHandler.Refresh)

	// Protected routes
	protected := api.Group("", middleware.AuthMiddleware(cfg))

	protected.Post("/logout", authHandler.Logout)
	protected.Get("/me", authHandler.Me)

	protected.Get("/numbers", numberHandler.ListNumbers)
	protected.Post("/numbers", numberHandler.CreateNumber)
	protected.Get("/numbers/:id", numberHandler.GetNumber)
	protected.Put("/numbers/:id", numberHandler.UpdateNumber)
	protected.Patch("/numbers/:id", numberHandler.PatchNumber)
	protected.Delete("/numbers/:id", numberHandler.DeleteNumber)

	return nil
}
