package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	_ "pharmatrack/api/swagger" // swagger docs
	"pharmatrack/internal/database"
	"pharmatrack/internal/handler"
	"pharmatrack/internal/middleware"
	"pharmatrack/internal/notify"
	"pharmatrack/internal/repository"
	"pharmatrack/internal/service"
	"pharmatrack/internal/websocket"
	"pharmatrack/internal/worker"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
)

// @title           PharmaTrack API
// @version         1.0
// @description     Batch-level pharmacy inventory ledger with earliest-expiration-first dispensing.
// @host            localhost:8080
// @BasePath        /
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
func main() {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	if os.Getenv("GIN_MODE") != "release" {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	}

	if err := godotenv.Load("configs/.env"); err != nil {
		log.Info().Msg("no configs/.env file found, using environment")
	}

	dbHost := envOr("DB_HOST", "localhost")
	dbPort := envOr("DB_PORT", "5432")
	dbUser := envOr("DB_USER", "postgres")
	dbPassword := envOr("DB_PASSWORD", "postgres")
	dbName := envOr("DB_NAME", "pharmatrack")
	dbSslMode := envOr("DB_SSLMODE", "disable")

	dsn := "postgres://" + dbUser + ":" + dbPassword + "@" + dbHost + ":" + dbPort + "/" + dbName + "?sslmode=" + dbSslMode

	db, err := database.NewConnection(dsn)
	if err != nil {
		log.Fatal().Err(err).Msg("database connection failed")
	}
	log.Info().Msg("connected to PostgreSQL")

	// Set up WebSocket Hub
	wsHub := websocket.NewHub()
	go wsHub.Run()

	// Set up dependencies (Repository -> Service -> Handler)
	txManager := repository.NewTransactionManager(db)
	userRepo := repository.NewUserRepository(db)
	supplierRepo := repository.NewSupplierRepository(db)
	medicineRepo := repository.NewMedicineRepository(db)
	batchRepo := repository.NewBatchRepository(db)
	stockTxRepo := repository.NewStockTransactionRepository(db)
	orderRepo := repository.NewOrderRepository(db)
	auditRepo := repository.NewAuditRepository(db)
	statsRepo := repository.NewStatisticsRepository(db)

	userService := service.NewUserService(userRepo)
	supplierService := service.NewSupplierService(supplierRepo, auditRepo, txManager)
	medicineService := service.NewMedicineService(medicineRepo, batchRepo, supplierRepo, auditRepo, txManager)
	stockService := service.NewStockService(medicineRepo, batchRepo, stockTxRepo, orderRepo, auditRepo, txManager, wsHub)
	orderService := service.NewOrderService(orderRepo, medicineRepo, supplierRepo, auditRepo, txManager)
	auditService := service.NewAuditService(auditRepo)
	statisticsService := service.NewStatisticsService(statsRepo, medicineRepo, batchRepo)
	reportService := service.NewReportService(medicineRepo, stockTxRepo)

	// Initialize Handlers
	userHandler := handler.NewUserHandler(userService)
	supplierHandler := handler.NewSupplierHandler(supplierService)
	medicineHandler := handler.NewMedicineHandler(medicineService)
	stockHandler := handler.NewStockHandler(stockService)
	orderHandler := handler.NewOrderHandler(orderService, stockService)
	auditHandler := handler.NewAuditHandler(auditService)
	statisticsHandler := handler.NewStatisticsHandler(statisticsService)
	reportHandler := handler.NewReportHandler(reportService)

	// Background expiry digest
	workerCtx, stopWorker := context.WithCancel(context.Background())
	defer stopWorker()
	worker.StartExpiryNotifier(workerCtx, worker.ExpiryNotifierConfig{
		BatchRepo: batchRepo,
		UserRepo:  userRepo,
		Mailer:    notify.NewMailerFromEnv(),
	})

	// Set up Gin Router
	router := gin.Default()

	// CORS configuration
	corsConfig := cors.DefaultConfig()
	corsConfig.AllowOrigins = []string{"http://localhost:5173", "http://127.0.0.1:5173", "http://localhost:5174"} // Frontend URL
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
	userHandler.RegisterRoutes(router.Group(""))
	supplierHandler.RegisterRoutes(router.Group(""))
	medicineHandler.RegisterRoutes(router.Group(""))
	stockHandler.RegisterRoutes(router.Group(""))
	orderHandler.RegisterRoutes(router.Group(""))
	auditHandler.RegisterRoutes(router.Group(""))
	statisticsHandler.RegisterRoutes(router.Group(""))
	reportHandler.RegisterRoutes(router.Group(""))

	// Stop the notifier on SIGINT/SIGTERM before the process exits
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		stopWorker()
		os.Exit(0)
	}()

	port := envOr("PORT", "8080")

	log.Info().Str("port", port).Msg("server listening")
	if err := router.Run(":" + port); err != nil {
		log.Fatal().Err(err).Msg("server failed")
	}
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
