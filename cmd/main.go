package main

import (
	"account-service/internal/handler"
	"account-service/internal/middleware"
	"account-service/internal/service"
	"account-service/pkg/cognito"
	"account-service/pkg/config"
	"account-service/pkg/database"
	"account-service/pkg/jwtutil"
	"account-service/pkg/logger"
	"account-service/prometheus"

	"github.com/labstack/echo/v4"
	echomiddleware "github.com/labstack/echo/v4/middleware"
	"go.uber.org/zap"
)

func main() {
	// Load configuration from .env file and environment variables
	cfg, err := config.Load()
	if err != nil {
		panic("Failed to load configuration: " + err.Error())
	}

	// Initialize logger with config
	logger.InitLogger(cfg)
	log := logger.GetLogger()
	log.Info("Starting account service...", zap.String("environment", cfg.Server.Env))

	// Initialize database
	if err := database.InitDB(cfg); err != nil {
		log.Fatal("Failed to initialize database", zap.Error(err))
	}
	log.Info("Database connection established")

	// Initialize JWT utility
	jwtutil.Initialize(&cfg.JWT)
	log.Info("JWT utility initialized")

	// Construct the identity provider client once and inject it explicitly
	idp := cognito.NewClient(&cfg.Cognito, log)
	log.Info("Identity provider client initialized",
		zap.String("endpoint", idp.Endpoint),
		zap.String("user_pool_id", cfg.Cognito.UserPoolID))

	// Wire the provisioning workflows and handlers
	svc := service.NewProvisionService(database.GetDB(), idp, log)
	authHandler := handler.NewAuthHandler(svc, idp)
	userHandler := handler.NewUserHandler(svc)

	// Initialize Echo framework
	e := echo.New()

	// Apply global middleware - order matters
	e.Use(echomiddleware.Recover())
	e.Use(echomiddleware.CORS())
	e.Use(middleware.RequestIDMiddleware)
	e.Use(logger.Middleware(log))
	e.Use(prometheus.MetricsMiddleware())

	// Public routes - no authentication required
	e.GET("/health", handler.HealthCheck)
	e.GET("/metrics", handler.MetricsHandler)

	// Authentication routes - these don't require a bearer token
	auth := e.Group("/auth")
	auth.POST("/signup", authHandler.Signup)
	auth.POST("/login", authHandler.Login)
	auth.POST("/register", authHandler.Register)
	auth.POST("/confirmation-email", authHandler.ConfirmationEmail)
	auth.POST("/change-password", authHandler.ChangePassword)
	auth.POST("/forgot-password", authHandler.ForgotPassword)
	auth.POST("/confirm-password", authHandler.ConfirmPassword)
	auth.GET("/google/redirect", authHandler.GoogleRedirect)

	// User management - all require authentication
	users := e.Group("/users")
	users.Use(middleware.AuthMiddleware)
	users.GET("/user", userHandler.GetUser)
	users.GET("/all", userHandler.GetAll)
	users.POST("/create", userHandler.Create)
	users.PATCH("/update", userHandler.Update)
	users.PATCH("/updatePermission", userHandler.UpdatePermission)
	users.DELETE("/deletePermission", userHandler.DeletePermission)

	// Get server port from configuration
	port := cfg.Server.Port

	// Start server
	log.Info("Starting server", zap.String("port", port))
	if err := e.Start(":" + port); err != nil {
		log.Fatal("Failed to start server", zap.Error(err))
	}
}
