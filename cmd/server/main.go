package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel"
	"go.uber.org/zap"

	appcredential "github.com/finsight/backend/internal/application/credential"
	appsync "github.com/finsight/backend/internal/application/sync"
	"github.com/finsight/backend/internal/domain/credential"
	"github.com/finsight/backend/internal/domain/exchange"
	"github.com/finsight/backend/internal/domain/platform"
	"github.com/finsight/backend/internal/infrastructure/archive"
	"github.com/finsight/backend/internal/infrastructure/cache"
	"github.com/finsight/backend/internal/infrastructure/config"
	"github.com/finsight/backend/internal/infrastructure/crypto"
	"github.com/finsight/backend/internal/infrastructure/logger"
	"github.com/finsight/backend/internal/infrastructure/normalizer"
	"github.com/finsight/backend/internal/infrastructure/persistence"
	"github.com/finsight/backend/internal/infrastructure/platforms"
	"github.com/finsight/backend/internal/interfaces/http/handler"
	"github.com/finsight/backend/internal/interfaces/http/middleware"
	"github.com/finsight/backend/internal/interfaces/http/router"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		panic("Failed to load configuration: " + err.Error())
	}

	// Initialize logger
	log, err := logger.New(&logger.Config{
		Level:      cfg.Log.Level,
		Format:     cfg.Log.Format,
		Output:     cfg.Log.Output,
		TimeFormat: "2006-01-02T15:04:05.000Z07:00",
	})
	if err != nil {
		panic("Failed to initialize logger: " + err.Error())
	}
	defer func() {
		_ = log.Sync()
	}()

	log.Info("Starting Finsight Backend",
		zap.String("app", cfg.App.Name),
		zap.String("env", cfg.App.Env),
		zap.String("port", cfg.App.Port),
	)

	// Initialize database connection
	db, err := persistence.NewDatabase(&cfg.Database)
	if err != nil {
		log.Fatal("Failed to connect to database", zap.Error(err))
	}
	defer func() {
		if err := db.Close(); err != nil {
			log.Error("Error closing database", zap.Error(err))
		}
	}()
	log.Info("Database connected successfully")

	// Token encryption. Development falls back to an ephemeral key so
	// stored credentials do not survive a restart; production requires a
	// configured key (enforced by config validation).
	encryptionKey := cfg.Credential.EncryptionKey
	if encryptionKey == "" {
		encryptionKey, err = crypto.GenerateKey()
		if err != nil {
			log.Fatal("Failed to generate encryption key", zap.Error(err))
		}
		log.Warn("No encryption key configured, using ephemeral key; stored credentials will not survive restart")
	}
	encryptor, err := crypto.NewTokenEncryptor(encryptionKey)
	if err != nil {
		log.Fatal("Failed to initialize token encryptor", zap.Error(err))
	}

	// Initialize repositories
	users := persistence.NewGormUserDirectory(db.DB)
	credentialRepo := persistence.NewGormCredentialRepository(db.DB, encryptor)
	transactionRepo := persistence.NewGormTransactionRepository(db.DB)
	campaignRepo := persistence.NewGormCampaignRepository(db.DB)
	productRepo := persistence.NewGormProductRepository(db.DB)

	// Platform token refreshers
	refreshers := map[platform.Platform]credential.Refresher{
		platform.Shopify: platforms.NewShopifyRefresher(),
		platform.Meta:    platforms.NewMetaRefresher(cfg.Meta.AppID, cfg.Meta.AppSecret, cfg.Sync.FetchTimeout, log),
		platform.Google:  platforms.NewGoogleRefresher(cfg.Google.ClientID, cfg.Google.ClientSecret, cfg.Sync.FetchTimeout, log),
	}

	// Credential store, optionally guarded by Redis for multi-instance
	// deployments
	storeOpts := []appcredential.Option{
		appcredential.WithExpiryBuffer(cfg.Credential.ExpiryBuffer),
	}
	if cfg.Redis.Enabled {
		guard, err := cache.NewRedisRefreshGuard(cache.RedisConfig{
			Host:     cfg.Redis.Host,
			Port:     cfg.Redis.Port,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err != nil {
			log.Fatal("Failed to connect to Redis", zap.Error(err))
		}
		defer func() {
			_ = guard.Close()
		}()
		storeOpts = append(storeOpts, appcredential.WithRefreshGuard(guard))
		log.Info("Redis refresh guard enabled")
	}
	credentialStore := appcredential.NewStore(credentialRepo, refreshers, log, storeOpts...)

	// Platform API clients
	shopifyClient := platforms.NewShopifyClient(cfg.Shopify.APIVersion, cfg.Sync.FetchTimeout, cfg.Sync.MaxRetries, log)
	metaClient := platforms.NewMetaClient(cfg.Sync.FetchTimeout, cfg.Sync.MaxRetries, log)
	googleClient := platforms.NewGoogleClient(cfg.Google.DeveloperToken, cfg.Sync.FetchTimeout, cfg.Sync.MaxRetries, log)

	// Raw payload archive (best effort, optional)
	var archiver appsync.RawArchiver
	if cfg.Archive.Enabled {
		archiver, err = archive.NewS3Archiver(&cfg.Archive, archive.WithLogger(log))
		if err != nil {
			log.Fatal("Failed to initialize archive", zap.Error(err))
		}
		log.Info("Raw payload archive enabled", zap.String("bucket", cfg.Archive.Bucket))
	}

	// Sync pipeline
	registry := normalizer.NewRegistry(exchange.NewConverter(nil))
	syncService := appsync.NewService(appsync.Config{
		Credentials:  credentialStore,
		Registry:     registry,
		Users:        users,
		Transactions: transactionRepo,
		Products:     productRepo,
		Campaigns:    campaignRepo,
		Shopify:      shopifyClient,
		Meta:         metaClient,
		Google:       googleClient,
		Archiver:     archiver,
		Logger:       log,
		Tracer:       otel.Tracer("finsight/sync"),
		WindowDays:   cfg.Sync.WindowDays,
	})

	// Set Gin mode based on environment
	if cfg.App.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	middleware.SetupValidator()

	engine := gin.New()
	engine.Use(middleware.RequestID())
	engine.Use(logger.Recovery(log))
	engine.Use(logger.GinMiddleware(log))

	r := router.NewRouter(engine)
	r.Register(handler.NewSystemHandler(db))
	r.Register(handler.NewConnectionHandler(credentialStore))
	r.Register(handler.NewSyncHandler(syncService))
	r.Register(handler.NewTransactionHandler(transactionRepo, users))
	r.Setup()

	// Create HTTP server with config
	srv := &http.Server{
		Addr:           ":" + cfg.App.Port,
		Handler:        engine,
		ReadTimeout:    cfg.HTTP.ReadTimeout,
		WriteTimeout:   cfg.HTTP.WriteTimeout,
		IdleTimeout:    cfg.HTTP.IdleTimeout,
		MaxHeaderBytes: cfg.HTTP.MaxHeaderBytes,
	}

	// Start server in goroutine
	go func() {
		log.Info("Server starting", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("Failed to start server", zap.Error(err))
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Fatal("Server forced to shutdown", zap.Error(err))
	}

	log.Info("Server exited gracefully")
}
