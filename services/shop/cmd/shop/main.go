package main

import (
	"context"
	"errors"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"bookshop/internal/usertoken"
	"bookshop/internal/util"
	"bookshop/pkg/payment"
	"bookshop/pkg/queue"
	"bookshop/pkg/storage"
	"bookshop/pkg/store"
	"bookshop/services/shop/internal/app"
	"bookshop/services/shop/internal/config"
	"bookshop/services/shop/internal/server"
	"github.com/redis/go-redis/v9"
)

func main() {
	cfg, err := config.Load(config.ConfigPath)
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	logger := util.InitLogger(cfg.LogLevel)

	timeout, err := cfg.Timeout()
	if err != nil {
		log.Fatalf("failed to parse request timeout: %v", err)
	}
	trusted, err := util.NewTrustedProxies(cfg.TrustedProxyCIDRs)
	if err != nil {
		log.Fatalf("failed to parse trusted proxies: %v", err)
	}

	startCtx, cancelStart := context.WithTimeout(context.Background(), 30*time.Second)
	dataStore, err := openStore(startCtx, cfg)
	cancelStart()
	if err != nil {
		log.Fatalf("failed to init store: %v", err)
	}

	tokens, err := usertoken.NewService(cfg.AccessTokenSecret)
	if err != nil {
		log.Fatalf("failed to init token service: %v", err)
	}
	stripeBackend, err := payment.NewStripeBackend(cfg.StripeSecretKey)
	if err != nil {
		log.Fatalf("failed to init payment backend: %v", err)
	}
	processor, err := payment.NewProcessor(stripeBackend, payment.BreakerSettings{})
	if err != nil {
		log.Fatalf("failed to init payment processor: %v", err)
	}

	appCfg := app.Config{
		Store:    dataStore,
		Tokens:   tokens,
		Payments: processor,
	}

	var redisClient *redis.Client
	var cleanupQueue *queue.CartCleanupQueue
	if cfg.RedisEnabled() {
		redisClient = redis.NewClient(&redis.Options{Addr: cfg.RedisAddr, Password: cfg.RedisPassword})
		pingCtx, cancelPing := context.WithTimeout(context.Background(), 5*time.Second)
		err := redisClient.Ping(pingCtx).Err()
		cancelPing()
		if err != nil {
			log.Fatalf("failed to reach redis: %v", err)
		}
		if cfg.CartCleanupQueue != "" {
			cleanupQueue, err = queue.NewCartCleanupQueue(redisClient, queue.Config{Stream: cfg.CartCleanupQueue})
			if err != nil {
				log.Fatalf("failed to init cart cleanup queue: %v", err)
			}
			appCfg.Cleanup = cleanupQueue
		}
	}

	if cfg.CoversEnabled() {
		coverCtx, cancelCover := context.WithTimeout(context.Background(), 10*time.Second)
		covers, err := storage.NewMinioCoverStore(coverCtx, storage.MinioConfig{
			Endpoint:  cfg.MinioEndpoint,
			AccessKey: cfg.MinioAccessKey,
			SecretKey: cfg.MinioSecretKey,
			Bucket:    cfg.MinioBucket,
			UseSSL:    cfg.MinioUseSSL,
			BaseURL:   cfg.CoverBaseURL,
		})
		cancelCover()
		if err != nil {
			log.Fatalf("failed to init cover storage: %v", err)
		}
		appCfg.Covers = covers
	}

	appCore, err := app.New(appCfg)
	if err != nil {
		log.Fatalf("failed to init app: %v", err)
	}

	httpServer, err := server.New(server.Config{
		App:                appCore,
		Redis:              redisClient,
		RateLimitPerMinute: cfg.RateLimitPerMinute,
		RequestTimeout:     timeout,
		TrustedProxies:     trusted,
	})
	if err != nil {
		log.Fatalf("failed to init server: %v", err)
	}

	workerCtx, stopWorker := context.WithCancel(context.Background())
	workerDone := make(chan struct{})
	if cleanupQueue != nil {
		go func() {
			defer close(workerDone)
			if err := cleanupQueue.Run(workerCtx, 2, appCore.CleanupCart); err != nil && !errors.Is(err, context.Canceled) {
				logger.Error("cart cleanup worker stopped", "err", err)
			}
		}()
		slog.Info("cart cleanup worker started", "stream", cfg.CartCleanupQueue)
	} else {
		close(workerDone)
	}

	addr := ":" + cfg.Port
	srv := &http.Server{
		Addr:         addr,
		Handler:      httpServer.Router(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		slog.Info("server listening", "addr", addr, "store", cfg.StoreDriver)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server error", "err", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	slog.Info("shutting down")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		logger.Error("http shutdown", "err", err)
	}
	stopWorker()
	<-workerDone
	if err := dataStore.Close(ctx); err != nil {
		logger.Error("close store", "err", err)
	}
	if redisClient != nil {
		_ = redisClient.Close()
	}
	slog.Info("server stopped")
}

func openStore(ctx context.Context, cfg config.FileConfig) (store.Store, error) {
	switch cfg.StoreDriver {
	case config.DriverPostgres:
		return store.NewGormStore(ctx, cfg.DatabaseURL)
	case config.DriverMemory:
		slog.Warn("using in-memory store; data is lost on restart")
		return store.NewMemoryStore(), nil
	default:
		dbName := cfg.DBName
		if dbName == "" {
			dbName = store.DefaultMongoDatabase
		}
		db, err := store.ConnectMongoDB(ctx, cfg.MongoConnectionURI(), dbName)
		if err != nil {
			return nil, err
		}
		mongoStore := store.NewMongoStore(db)
		if err := mongoStore.CreateIndexes(ctx); err != nil {
			_ = mongoStore.Close(context.Background())
			return nil, err
		}
		return mongoStore, nil
	}
}
