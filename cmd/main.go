/**
 * @description
 * This is the main entry point for the backoffice-service. It wires the
 * identifier generator, repositories and services together, then serves the
 * admin and customer HTTP API, consumes provisioning events and runs the
 * nightly maintenance jobs.
 *
 * Key features:
 * - Loads application configuration from .env and environment variables.
 * - Establishes and manages a connection pool to the PostgreSQL database.
 * - Connects to Redis for the shared failed-PIN counter.
 * - Publishes domain events to RabbitMQ, degrading to a no-op publisher when
 *   the broker is unreachable at startup.
 * - Starts the message consumer, the cron scheduler and the HTTP server, and
 *   implements graceful shutdown.
 *
 * @dependencies
 * - pgxpool for database connection, godotenv for local config, go-redis for
 *   the attempt counter, and rabbitmq for messaging.
 */
package main

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hometown/backoffice-service/internal/api"
	"github.com/hometown/backoffice-service/internal/app"
	"github.com/hometown/backoffice-service/internal/config"
	"github.com/hometown/backoffice-service/internal/idgen"
	"github.com/hometown/backoffice-service/internal/store"
	"github.com/hometown/backoffice-service/pkg/middleware"
	"github.com/hometown/backoffice-service/pkg/rabbitmq"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
)

const (
	customerEventsExchange = "customer_events"
	customerRegisteredKey  = "customer.registered"
	provisioningQueue      = "backoffice_customer_registered"
)

func main() {
	// Load .env file for local development.
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using environment variables")
	}

	cfg, err := config.LoadConfig(".")
	if err != nil {
		log.Fatalf("cannot load config: %v", err)
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	dbConfig, err := pgxpool.ParseConfig(cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("Unable to parse database URL: %v\n", err)
	}
	dbConfig.MaxConns = 20
	dbConfig.MinConns = 2
	dbConfig.MaxConnLifetime = 30 * time.Minute
	dbConfig.MaxConnIdleTime = 5 * time.Minute

	dbpool, err := pgxpool.NewWithConfig(context.Background(), dbConfig)
	if err != nil {
		log.Fatalf("Unable to connect to database: %v\n", err)
	}
	defer dbpool.Close()
	logger.Info("database connection established")

	redisOpts, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		log.Fatalf("Unable to parse Redis URL: %v", err)
	}
	redisClient := redis.NewClient(redisOpts)
	defer redisClient.Close()
	pingCtx, pingCancel := context.WithTimeout(context.Background(), 5*time.Second)
	if err := redisClient.Ping(pingCtx).Err(); err != nil {
		logger.Warn("redis ping failed; PIN attempt counting will error until it recovers", "error", err)
	}
	pingCancel()

	var publisher rabbitmq.Publisher
	producer, err := rabbitmq.NewEventProducer(cfg.RabbitMQURL)
	if err != nil {
		logger.Warn("rabbitmq producer unavailable, events will be dropped", "error", err)
		publisher = &rabbitmq.EventProducerFallback{}
	} else {
		publisher = producer
	}
	defer publisher.Close()

	generator, err := idgen.New(
		idgen.WithSortCodePrefix(cfg.SortCodePrefix),
		idgen.WithLogger(logger),
	)
	if err != nil {
		log.Fatalf("cannot create identifier generator: %v", err)
	}

	// Set up dependencies.
	repo := store.NewPostgresRepository(dbpool)
	attemptLimiter := app.NewRedisAttemptLimiter(redisClient, cfg.RedisKeyPrefix)

	accountService := app.NewAccountService(repo, generator, publisher, logger, *cfg)
	userService := app.NewUserService(repo, accountService, generator, publisher, logger)
	cardService := app.NewCardService(repo, generator, attemptLimiter, logger, *cfg)
	depositService := app.NewDepositService(repo, publisher, logger)
	transactionService := app.NewTransactionService(repo, logger)

	rootCtx, stop := context.WithCancel(context.Background())
	defer stop()

	// Start consuming provisioning events in a goroutine. A broker outage
	// only disables provisioning; the API keeps serving.
	eventHandler := app.NewCustomerEventHandler(accountService, repo, logger)
	consumer, err := rabbitmq.NewConsumer(cfg.RabbitMQURL)
	if err != nil {
		logger.Warn("rabbitmq consumer unavailable, provisioning events disabled", "error", err)
	} else {
		defer consumer.Close()
		go func() {
			logger.Info("starting consumer", "routing_key", customerRegisteredKey)
			if err := consumer.Consume(rootCtx, customerEventsExchange, provisioningQueue, customerRegisteredKey, eventHandler.HandleCustomerRegisteredEvent); err != nil {
				logger.Error("consumer stopped", "error", err)
			}
		}()
	}

	jobs := app.NewJobs(depositService, repo, logger, *cfg)
	scheduler := app.NewScheduler(jobs, logger, *cfg)
	if err := scheduler.Start(); err != nil {
		log.Fatalf("cannot start scheduler: %v", err)
	}

	rateLimiter := middleware.NewRateLimiter(cfg.RateLimitPerMinute, cfg.RateLimitPerMinute/4+1)
	defer rateLimiter.Stop()
	if err := rateLimiter.TrustProxies(cfg.TrustedProxyList()); err != nil {
		log.Fatalf("invalid TRUSTED_PROXIES: %v", err)
	}

	router := api.NewRouter(cfg, api.Services{
		Users:        userService,
		Accounts:     accountService,
		Cards:        cardService,
		Deposits:     depositService,
		Transactions: transactionService,
	}, rateLimiter, logger)
	server := &http.Server{
		Addr:              fmt.Sprintf(":%s", cfg.ServerPort),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logger.Info("starting HTTP server", "port", cfg.ServerPort)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Could not start server: %s\n", err)
		}
	}()

	// Wait for termination signal for graceful shutdown.
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down backoffice-service")
	stop()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		logger.Error("server shutdown failed", "error", err)
	}

	select {
	case <-scheduler.Stop().Done():
	case <-ctx.Done():
		logger.Warn("timed out waiting for running jobs")
	}

	logger.Info("server gracefully stopped")
}
