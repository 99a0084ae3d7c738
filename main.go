package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"thriftstore/internal/checkout"
	"thriftstore/internal/config"
	"thriftstore/internal/database"
	"thriftstore/internal/events"
	"thriftstore/internal/handlers"
	"thriftstore/internal/lock"
	"thriftstore/internal/logging"
	"thriftstore/internal/middleware"
	"thriftstore/internal/payment"
	"thriftstore/internal/store"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal(err)
	}

	logger, err := logging.New(cfg.Log.Level, cfg.Log.Encoding)
	if err != nil {
		log.Fatal(err)
	}
	defer func() { _ = logger.Sync() }()

	if err := run(cfg, logger); err != nil {
		logger.Fatal("server stopped", zap.Error(err))
	}
}

func run(cfg *config.Config, logger *zap.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	client, err := database.Connect(ctx, cfg.MongoURI)
	if err != nil {
		return err
	}
	defer func() {
		disconnectCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = client.Disconnect(disconnectCtx)
	}()

	db := client.Database(cfg.DBName)
	logger.Info("mongodb connected", zap.String("db", db.Name()))

	if err := database.EnsureOrderIndexes(db, logger); err != nil {
		logger.Warn("order index warning", zap.Error(err))
	}
	if err := database.EnsureCartIndexes(db, logger); err != nil {
		logger.Warn("cart index warning", zap.Error(err))
	}

	checks := map[string]handlers.HealthCheck{
		"mongo": func(ctx context.Context) error { return database.Ping(ctx, client) },
	}

	deps := checkout.Deps{
		Orders:  store.NewOrderRepository(db),
		Carts:   store.NewCartRepository(db),
		Gateway: payment.NewClient(cfg.Razorpay.BaseURL, cfg.Razorpay.KeyID, cfg.Razorpay.KeySecret, cfg.Razorpay.Timeout),
		Tx:      store.NewTransactor(client, cfg.MongoTransactions),
		Logger:  logger,
	}

	if cfg.Redis.Addr != "" {
		rdb := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		defer rdb.Close()

		deps.Lock = lock.NewRedisLock(rdb, "payment-lock", cfg.Redis.PaymentLockTTL, logger)
		checks["redis"] = func(ctx context.Context) error { return rdb.Ping(ctx).Err() }
		logger.Info("payment lock enabled", zap.String("addr", cfg.Redis.Addr))
	} else {
		logger.Warn("REDIS_ADDR not set, payment lock disabled")
	}

	if cfg.AMQP.URL != "" {
		publisher, err := events.NewPublisher(cfg.AMQP.URL, cfg.AMQP.Exchange, logger)
		if err != nil {
			logger.Warn("event publisher unavailable", zap.Error(err))
		} else {
			defer publisher.Close()
			deps.Events = publisher
		}
	}

	svc := checkout.NewService(deps, checkout.Settings{
		KeySecret:       cfg.Razorpay.KeySecret,
		Currency:        cfg.Razorpay.Currency,
		MinorUnitFactor: cfg.Razorpay.MinorUnitFactor,
	})

	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(middleware.RequestLogger(logger), gin.Recovery())

	handlers.RegisterRoutes(r, &handlers.Env{
		Orders:    svc,
		Carts:     store.NewCartRepository(db),
		Checks:    checks,
		JWTSecret: cfg.JWTSecret,
		Timeout:   cfg.RequestTimeout,
		Logger:    logger,
	})

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           r,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("http server listening", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	return g.Wait()
}
