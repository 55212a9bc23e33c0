package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"
	_ "time/tzdata"

	_ "requisiciones/api/swagger" // swagger docs
	"requisiciones/internal/config"
	"requisiciones/internal/database"
	"requisiciones/internal/handler"
	"requisiciones/internal/middleware"
	"requisiciones/internal/repository"
	"requisiciones/internal/service"
	"requisiciones/internal/storage"
	"requisiciones/internal/websocket"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
)

// @title           Requisiciones API
// @version         1.0
// @description     Purchase requisition workflow: committee approval, payment, inventory and delivery with a full trace history.
// @host            localhost:8080
// @BasePath        /
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load config")
	}

	if !cfg.LogJSON {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})
	}
	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	db, err := database.NewConnection(cfg.DSN(), !cfg.IsProduction())
	if err != nil {
		log.Fatal().Err(err).Msg("database connection failed")
	}
	log.Info().Msg("connected to PostgreSQL")

	sequences := repository.NewSequenceStore(db)
	if cfg.SequenceBackend == config.BackendRedis {
		rdb, err := database.NewRedis(ctx, cfg.RedisURL)
		if err != nil {
			log.Fatal().Err(err).Msg("failed to connect to redis")
		}
		defer rdb.Close()
		sequences = repository.NewRedisSequenceStore(rdb, "requisiciones:seq:")
		log.Info().Msg("display-number counters kept in redis")
	}

	var blobs storage.BlobStore
	if cfg.Storage().Enabled() {
		blobs, err = storage.NewMinIOStore(ctx, cfg.Storage())
		if err != nil {
			log.Fatal().Err(err).Msg("failed to connect to object storage")
		}
		log.Info().Str("bucket", cfg.MinioBucket).Msg("support documents stored in MinIO")
	}

	wsHub := websocket.NewHub(cfg.AllowedOrigins())
	go wsHub.Run(ctx)

	// Set up dependencies (Repository -> Service -> Handler)
	txManager := repository.NewTransactionManager(db)
	reqRepo := repository.NewRequisitionRepository(db)
	userRepo := repository.NewUserRepository(db)

	numberingService := service.NewNumberingService(
		sequences, repository.NewCommitteeStore(db), reqRepo, txManager, cfg.Location(), cfg.SequenceBackend,
	)
	auditService := service.NewAuditService(
		repository.NewAuditRepository(db), repository.NewSupportRepository(db), reqRepo, txManager, blobs,
	)
	requisitionService := service.NewRequisitionService(
		reqRepo, repository.NewPaymentRepository(db), txManager, numberingService, auditService, wsHub,
	)
	secret := []byte(cfg.JWTSecret)
	userService := service.NewUserService(userRepo, secret, cfg.TokenTTL())
	if cfg.SeedsAdmin() {
		admin, err := userService.SeedAdmin(ctx, service.CreateUserRequest{
			Username: cfg.AdminUsername,
			FullName: "Administrador",
			Email:    cfg.AdminEmail,
			Password: cfg.AdminPassword,
		})
		if err != nil {
			log.Fatal().Err(err).Msg("failed to seed admin account")
		}
		if admin != nil {
			log.Info().Str("email", admin.Email).Msg("initial admin account created")
		}
	}
	statisticsService := service.NewStatisticsService(repository.NewStatisticsRepository(db))

	router := gin.New()
	router.Use(middleware.RequestID(), middleware.Logger(), middleware.Recovery())

	corsConfig := cors.DefaultConfig()
	corsConfig.AllowOrigins = cfg.AllowedOrigins()
	corsConfig.AllowCredentials = true
	corsConfig.AllowHeaders = []string{"Origin", "Content-Length", "Content-Type", "Authorization", "Accept", "X-Request-ID"}
	corsConfig.AllowMethods = []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"}
	router.Use(cors.New(corsConfig))

	router.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "OK"})
	})
	if cfg.MetricsEnabled {
		router.GET("/metrics", gin.WrapH(promhttp.Handler()))
	}
	router.GET("/ws", func(c *gin.Context) {
		wsHub.ServeWs(c, secret)
	})

	auth := middleware.Auth(secret)
	api := router.Group("")
	handler.NewUserHandler(userService, cfg.TokenTTL()).RegisterRoutes(api, auth)
	handler.NewRequisitionHandler(requisitionService).RegisterRoutes(api, auth)
	handler.NewAuditHandler(auditService).RegisterRoutes(api, auth)
	handler.NewNumberingHandler(numberingService, cfg.Location()).RegisterRoutes(api, auth)
	handler.NewStatisticsHandler(statisticsService, cfg.Location()).RegisterRoutes(api, auth)

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Info().Msgf("server listening on :%d", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("server error")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("shutting down server")
	cancel()
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("forced shutdown")
	}
	log.Info().Msg("server exited")
}
