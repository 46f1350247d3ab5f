package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "procurement/api/swagger" // swagger docs
	"procurement/internal/config"
	"procurement/internal/database"
	"procurement/internal/handler"
	"procurement/internal/logger"
	"procurement/internal/metrics"
	"procurement/internal/middleware"
	"procurement/internal/notification"
	"procurement/internal/printing"
	"procurement/internal/repository"
	"procurement/internal/service"
	"procurement/internal/storage"
	"procurement/internal/websocket"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/hibiken/asynq"
	"github.com/redis/go-redis/v9"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"
)

// @title           Procurement API
// @version         1.0
// @description     Requests, orders, canvasses, purchase orders, disbursement vouchers and petty cash.
// @host            localhost:8080
// @BasePath        /api
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
func main() {
	cfg, err := config.Load()
	if err != nil {
		// the logger is configured from cfg, so this one goes to a default logger
		zap.NewExample().Fatal("config", zap.Error(err))
	}

	log := logger.New(logger.Config{Level: cfg.LogLevel, Format: cfg.LogFormat, Output: "stdout"})
	defer log.Sync()

	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := database.NewConnection(cfg.DSN(), logger.NewGormLogger(log, logger.MapGormLogLevel(cfg.DB.LogLevel)), log)
	if err != nil {
		log.Fatal("Database connection failed", zap.Error(err))
	}
	log.Info("Connected to PostgreSQL successfully")

	files, err := storage.New(ctx, cfg.Storage, log)
	if err != nil {
		log.Fatal("File storage setup failed", zap.Error(err))
	}

	// Redis backs the shared permission cache and the mail queue. Without it the API
	// still runs with a per-process cache and no outgoing mail.
	var (
		permCache middleware.PermissionCache = middleware.NewMemoryCache(0)
		notifier  notification.Notifier      = notification.NopNotifier{}
	)
	redisClient := redis.NewClient(&redis.Options{Addr: cfg.Redis.Addr, Password: cfg.Redis.Password, DB: cfg.Redis.DB})
	defer redisClient.Close()
	if err := redisClient.Ping(ctx).Err(); err != nil {
		log.Warn("redis unavailable: permissions cached in memory, mail disabled", zap.Error(err))
	} else {
		permCache = middleware.NewRedisCache(redisClient, 0, log)
		queue := asynq.NewClient(asynq.RedisClientOpt{Addr: cfg.Redis.Addr, Password: cfg.Redis.Password, DB: cfg.Redis.DB})
		defer queue.Close()
		notifier = notification.NewQueueNotifier(queue)
	}

	renderer := printing.NewChromedpRenderer(printing.ChromedpConfig{
		DefaultTimeout: cfg.Printing.Timeout,
		RemoteURL:      cfg.Printing.ChromeURL,
		NoSandbox:      cfg.Printing.NoSandbox,
		Logger:         log,
	})
	defer renderer.Close()

	wsHub := websocket.NewHub(log)
	go wsHub.Run(ctx)

	m := metrics.New()

	// Repositories
	tx := repository.NewTransactionManager(db)
	userRepo := repository.NewUserRepository(db)
	roleRepo := repository.NewRoleRepository(db)
	deptRepo := repository.NewDepartmentRepository(db)
	supplierRepo := repository.NewSupplierRepository(db)
	accountRepo := repository.NewAccountRepository(db)
	requestRepo := repository.NewRequestRepository(db)
	orderRepo := repository.NewOrderRepository(db)
	canvasRepo := repository.NewCanvasRepository(db)
	poRepo := repository.NewPurchaseOrderRepository(db)
	voucherRepo := repository.NewVoucherRepository(db)
	pettyCashRepo := repository.NewPettyCashRepository(db)
	fundRepo := repository.NewFundRepository(db)

	// Services
	roleService := service.NewRoleService(roleRepo, tx)
	if err := roleService.SeedDefaultRolesAndPermissions(ctx); err != nil {
		log.Warn("failed to seed roles and permissions", zap.Error(err))
	}
	userService := service.NewUserService(userRepo, roleRepo, []byte(cfg.JWT.Secret), cfg.JWT.AccessTTL)
	auditService := service.NewAuditService(repository.NewAuditRepository(db))
	numberer := service.NewNumberer(repository.NewSequenceRepository(db), tx)
	events := service.NewEvents(wsHub, m, notifier, log)
	engine := service.NewEngine(tx, repository.NewApprovalRepository(db), auditService, userService, events)

	requestService := service.NewRequestService(requestRepo, userRepo, deptRepo, numberer, engine)
	orderService := service.NewOrderService(orderRepo, requestRepo, numberer, engine)
	releaseService := service.NewReleaseService(orderRepo, engine)
	canvasService := service.NewCanvasService(canvasRepo, orderRepo, supplierRepo, files, engine, log)
	poService := service.NewPurchaseOrderService(poRepo, canvasRepo, orderRepo, supplierRepo, numberer, engine)
	voucherService := service.NewVoucherService(voucherRepo, poRepo, accountRepo, supplierRepo, numberer, engine, renderer, files, log)
	pettyCashService := service.NewPettyCashService(pettyCashRepo, fundRepo, accountRepo, userRepo, files, numberer, engine, log)
	masterDataService := service.NewMasterDataService(deptRepo, supplierRepo, accountRepo, auditService)
	dashboardService := service.NewDashboardService(repository.NewDashboardRepository(db))

	auth := middleware.NewAuth([]byte(cfg.JWT.Secret), roleService, permCache, log)
	handler.RegisterValidators()

	router := gin.New()
	router.Use(logger.GinMiddleware(log), logger.Recovery(log), m.GinMiddleware())

	corsConfig := cors.DefaultConfig()
	corsConfig.AllowOrigins = cfg.CORSOrigins
	corsConfig.AllowCredentials = true
	corsConfig.AllowHeaders = []string{"Origin", "Content-Length", "Content-Type", "Authorization", "Accept"}
	corsConfig.AllowMethods = []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"}
	router.Use(cors.New(corsConfig))

	router.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	router.GET("/metrics", gin.WrapH(m.Handler()))
	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "OK"})
	})
	router.GET("/ws", func(c *gin.Context) {
		websocket.ServeWs(wsHub, c, []byte(cfg.JWT.Secret))
	})

	api := router.Group("/api")
	handler.NewUserHandler(userService, cfg.JWT.AccessTTL, cfg.IsProduction()).RegisterRoutes(api, auth)
	handler.NewRoleHandler(roleService, auth).RegisterRoutes(api, auth)
	handler.NewAuditHandler(auditService).RegisterRoutes(api, auth)
	handler.NewDashboardHandler(dashboardService).RegisterRoutes(api, auth)
	handler.NewMasterDataHandler(masterDataService).RegisterRoutes(api, auth)
	handler.NewRequestHandler(requestService).RegisterRoutes(api, auth)
	handler.NewOrderHandler(orderService, releaseService).RegisterRoutes(api, auth)
	handler.NewCanvasHandler(canvasService).RegisterRoutes(api, auth)
	handler.NewPurchaseOrderHandler(poService).RegisterRoutes(api, auth)
	handler.NewVoucherHandler(voucherService).RegisterRoutes(api, auth)
	handler.NewPettyCashHandler(pettyCashService).RegisterRoutes(api, auth)

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		log.Info("Server listening", zap.String("port", cfg.Port))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("Server failed", zap.Error(err))
		}
	}()

	<-ctx.Done()
	log.Info("Shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("graceful shutdown failed", zap.Error(err))
	}
}
