package main

import (
	"log"

	_ "backend/api/swagger" // swagger docs
	"backend/internal/config"
	"backend/internal/currency"
	"backend/internal/database"
	"backend/internal/handler"
	"backend/internal/logger"
	"backend/internal/middleware"
	"backend/internal/repository"
	"backend/internal/service"
	"backend/internal/websocket"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"
)

// @title           Expense Approval API
// @version         1.0
// @description     Multi-tenant expense management backend with configurable approval workflows.
// @host            localhost:8080
// @BasePath        /api
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Configuration error: %v", err)
	}

	zapLogger, err := logger.New(cfg.LogLevel, cfg.GinMode == "release")
	if err != nil {
		log.Fatalf("Logger setup failed: %v", err)
	}
	defer func() { _ = zapLogger.Sync() }()

	gin.SetMode(cfg.GinMode)

	db, err := database.NewConnection(cfg.DSN())
	if err != nil {
		zapLogger.Fatal("database connection failed", zap.Error(err))
	}
	zapLogger.Info("connected to PostgreSQL")

	// Set up WebSocket Hub
	wsHub := websocket.NewHub(zapLogger.Named("ws"))
	go wsHub.Run()

	// External currency clients
	converter := currency.NewClient(cfg.ExchangeRateAPI)
	countries := currency.NewCountriesClient(cfg.CountriesAPI)

	// Set up dependencies (Repository -> Service -> Handler)
	txManager := repository.NewTransactionManager(db)
	userRepo := repository.NewUserRepository(db)
	companyRepo := repository.NewCompanyRepository(db)
	teamRepo := repository.NewTeamRepository(db)
	expenseRepo := repository.NewExpenseRepository(db)
	flowRepo := repository.NewApprovalFlowRepository(db)
	auditRepo := repository.NewAuditRepository(db)

	userService := service.NewUserService(userRepo, companyRepo, auditRepo, txManager, countries, cfg.JWTSecret, zapLogger.Named("user"))
	companyService := service.NewCompanyService(companyRepo, userRepo, auditRepo, txManager)
	teamService := service.NewTeamService(teamRepo, userRepo, auditRepo, txManager)
	expenseService := service.NewExpenseService(expenseRepo, flowRepo, userRepo, companyRepo, teamRepo, auditRepo, txManager, converter, zapLogger.Named("expense"))
	approvalService := service.NewApprovalService(flowRepo, expenseRepo, auditRepo, txManager, wsHub, zapLogger.Named("approval"))
	statisticsService := service.NewStatisticsService(expenseRepo)
	auditService := service.NewAuditService(auditRepo)

	// Initialize Handlers
	userHandler := handler.NewUserHandler(userService, userRepo)
	companyHandler := handler.NewCompanyHandler(companyService, userRepo)
	teamHandler := handler.NewTeamHandler(teamService, userRepo)
	expenseHandler := handler.NewExpenseHandler(expenseService, approvalService, statisticsService, userRepo)
	approvalHandler := handler.NewApprovalHandler(approvalService, userRepo)
	utilsHandler := handler.NewUtilsHandler(converter, countries, userRepo)
	auditHandler := handler.NewAuditHandler(auditService, userRepo)

	// Set up Gin Router
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.RequestLogger(zapLogger.Named("http")))

	// CORS configuration
	corsConfig := cors.DefaultConfig()
	corsConfig.AllowOrigins = cfg.CORSOrigin
	corsConfig.AllowCredentials = true
	corsConfig.AllowHeaders = []string{"Origin", "Content-Length", "Content-Type", "Authorization", "Accept"}
	corsConfig.AllowMethods = []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"}
	router.Use(cors.New(corsConfig))

	// Swagger route
	router.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	// Health check
	router.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "OK"})
	})

	// WebSocket endpoint
	router.GET("/ws", func(c *gin.Context) {
		websocket.ServeWs(wsHub, c, middleware.GetJWTSecret())
	})

	// Register API Routes
	api := router.Group("/api")
	userHandler.RegisterRoutes(api)
	companyHandler.RegisterRoutes(api)
	teamHandler.RegisterRoutes(api)
	expenseHandler.RegisterRoutes(api)
	approvalHandler.RegisterRoutes(api)
	utilsHandler.RegisterRoutes(api)
	auditHandler.RegisterRoutes(api)

	zapLogger.Info("server listening", zap.String("port", cfg.Port))
	if err := router.Run(":" + cfg.Port); err != nil {
		zapLogger.Fatal("server failed", zap.Error(err))
	}
}
