package api

import (
	"github.com/labstack/echo-contrib/echoprometheus"
	"github.com/labstack/echo/v4"
	echomiddleware "github.com/labstack/echo/v4/middleware"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/taskapp/taskstream/internal/api/handler"
	"github.com/taskapp/taskstream/internal/api/middleware"
	"github.com/taskapp/taskstream/internal/core/ports"
	"github.com/taskapp/taskstream/internal/core/service"
	"github.com/taskapp/taskstream/internal/infrastructure/config"
	mongodb "github.com/taskapp/taskstream/internal/infrastructure/db/mongo"
	"github.com/taskapp/taskstream/internal/infrastructure/stream"
)

// NewRouter builds and returns the Echo instance with all routes registered.
// The hub and notifier are shared with the bus subscriber owned by main.
func NewRouter(
	db *mongo.Database,
	rdb *redis.Client,
	hub *stream.Hub,
	notifier ports.NotificationService,
	cfg *config.Config,
	log zerolog.Logger,
) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.Validator = handler.NewValidator()
	e.HTTPErrorHandler = NewHTTPErrorHandler(log)

	// --- Global middleware ---
	e.Use(echomiddleware.Recover())
	e.Use(echomiddleware.RequestID())
	e.Use(echomiddleware.Logger())
	e.Use(echoprometheus.NewMiddleware("taskstream"))

	// --- Dependencies ---
	userRepo := mongodb.NewUserRepository(db)
	taskRepo := mongodb.NewTaskRepository(db)
	authService := service.NewAuthService(userRepo, cfg.JWTSecret, cfg.TokenTTL)
	taskService := service.NewTaskService(taskRepo, userRepo, notifier, log)

	authHandler := handler.NewAuthHandler(authService)
	taskHandler := handler.NewTaskHandler(taskService)
	userHandler := handler.NewUserHandler(userRepo)
	notificationHandler := handler.NewNotificationHandler(hub, notifier, cfg.JWTSecret, cfg.Notify.HeartbeatInterval, log)

	authMiddleware := middleware.Auth(cfg.JWTSecret)

	// --- Auth routes ---
	e.POST("/auth/register", authHandler.Register)
	e.POST("/auth/login", authHandler.Login)
	e.POST("/auth/refresh", authHandler.Refresh, authMiddleware)

	// --- Task routes ---
	tasks := e.Group("/tasks", authMiddleware)
	tasks.GET("", taskHandler.List)
	tasks.POST("", taskHandler.Create)
	tasks.PUT("/:id", taskHandler.Update)
	tasks.DELETE("/:id", taskHandler.Delete)

	// --- User routes ---
	e.GET("/users", userHandler.List, authMiddleware)

	// --- Notification routes ---
	// The stream endpoint authenticates itself: EventSource clients pass the
	// token as a query parameter, which the Auth middleware cannot see.
	e.GET("/notifications/stream", notificationHandler.Stream)
	e.GET("/notifications/status", notificationHandler.Status, authMiddleware)

	// --- Health probes and metrics (no auth required) ---
	healthHandler := handler.NewHealthHandler()
	readinessHandler := handler.NewReadinessHandler(db, rdb)

	e.GET("/health", healthHandler.Liveness)
	e.GET("/health/ready", readinessHandler.Readiness)
	e.GET("/metrics", echoprometheus.NewHandler())

	return e
}
