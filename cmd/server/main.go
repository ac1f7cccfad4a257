package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"storefront/internal/cache"
	"storefront/internal/config"
	"storefront/internal/db"
	"storefront/internal/handlers"
	"storefront/internal/logging"
	loggingmw "storefront/internal/middleware/logging"
	"storefront/internal/notify"
	"storefront/internal/payment"
	"storefront/internal/repo"
	"storefront/internal/service"
	"storefront/internal/transport"
	httpserver "storefront/internal/transport/http"
)

func main() {
	cfg := config.Load()
	config.MustNonEmpty(cfg.DatabaseURL, "DATABASE_URL")
	config.MustNonEmptyBytes(cfg.JWTAccessSecret, "JWT_SECRET")

	logger := logging.New(cfg.LogLevel)

	ctx := context.Background()
	gdb, err := db.Open(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("database init: %v", err)
	}
	if err := db.Migrate(gdb); err != nil {
		log.Fatalf("database migrate: %v", err)
	}

	rdb, err := cache.NewRedis(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
	if err != nil {
		log.Fatalf("redis init: %v", err)
	}

	var publisher notify.Publisher
	var producer *notify.Producer
	if len(cfg.KafkaBrokers) > 0 {
		producer = notify.NewProducer(cfg.KafkaBrokers, cfg.NotificationTopic)
		publisher = producer
	} else {
		logger.Warn("notifications disabled: no kafka brokers configured")
	}

	if cfg.WebhookSigningSecret == "" {
		logger.Warn("webhook secret not configured: all gateway events will be rejected")
	}

	repository := repo.New(gdb)
	gateway := payment.NewClient(cfg.GatewayURL, cfg.GatewaySecretKey)

	orderSvc := &service.OrderService{
		Repo:          repository,
		Cache:         rdb,
		Gateway:       gateway,
		Publisher:     publisher,
		WebhookSecret: []byte(cfg.WebhookSigningSecret),
		BaseURL:       cfg.BaseURL,
	}
	authSvc := &service.AuthService{
		Repo:      repository,
		Cache:     rdb,
		Publisher: publisher,
		JWTSecret: cfg.JWTAccessSecret,
	}
	catalogSvc := &service.CatalogService{Repo: repository, Cache: rdb}

	push := &notify.PushSender{
		VAPIDPublicKey:  cfg.VAPIDPublicKey,
		VAPIDPrivateKey: cfg.VAPIDPrivateKey,
		Subscriber:      cfg.PushSubscriber,
		Cache:           rdb,
	}

	e := echo.New()
	e.HideBanner = true
	e.Pre(middleware.RemoveTrailingSlash())
	e.Use(middleware.Recover(), middleware.RequestID())
	e.Use(loggingmw.RequestLogger(logger))
	e.Validator = transport.NewValidator()

	httpserver.Register(e, &httpserver.Deps{
		OrderHandler:   &handlers.OrderHandler{Svc: orderSvc},
		AuthHandler:    &handlers.AuthHandler{Svc: authSvc, Push: push, SecureCookie: cfg.Env == "production"},
		AdminHandler:   &handlers.AdminHandler{Orders: orderSvc, Catalog: catalogSvc, Auth: authSvc},
		CatalogHandler: &handlers.CatalogHandler{Svc: catalogSvc},
		WebhookHandler: &handlers.WebhookHandler{Svc: orderSvc},
		JWTSecret:      cfg.JWTAccessSecret,
		Limiter:        rdb,
		RateLimit:      cfg.RateLimitPerMinute,
		SecureCookie:   cfg.Env == "production",
	})

	workerCtx, stopWorker := context.WithCancel(ctx)
	defer stopWorker()

	var worker *notify.Worker
	if len(cfg.KafkaBrokers) > 0 {
		email := notify.NewEmailClient(cfg.EmailAPIURL, cfg.EmailAPIKey, cfg.EmailFrom)
		worker = notify.NewWorker(cfg.KafkaBrokers, cfg.NotificationTopic, cfg.ServiceName+"-notify", email, push, logger)
		go func() {
			if err := worker.Start(workerCtx); err != nil && !errors.Is(err, context.Canceled) {
				logger.Error("notification worker stopped", "error", err)
			}
		}()
	}

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.ServerPort),
		Handler:      e,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server error", "error", err)
		}
	}()
	logger.Info("server started", "port", cfg.ServerPort, "env", cfg.Env)

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down")
	stopWorker()

	shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown error", "error", err)
	}

	if worker != nil {
		if err := worker.Close(); err != nil {
			logger.Error("worker close error", "error", err)
		}
	}
	if producer != nil {
		if err := producer.Close(); err != nil {
			logger.Error("kafka close error", "error", err)
		}
	}
	if err := rdb.Close(); err != nil {
		logger.Error("redis close error", "error", err)
	}
	if sqlDB, err := gdb.DB(); err == nil {
		if err := sqlDB.Close(); err != nil {
			logger.Error("db close error", "error", err)
		}
	}

	logger.Info("shutdown complete")
}
