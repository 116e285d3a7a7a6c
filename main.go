package main

import (
	"context"
	"errors"
	"io"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	sdkaws "github.com/aws/aws-sdk-go-v2/aws"
	"github.com/gin-gonic/gin"
	"github.com/yashrajoria/checkout-service/config"
	"github.com/yashrajoria/checkout-service/controllers"
	"github.com/yashrajoria/checkout-service/database"
	"github.com/yashrajoria/checkout-service/events"
	"github.com/yashrajoria/checkout-service/logger"
	"github.com/yashrajoria/checkout-service/middleware"
	"github.com/yashrajoria/checkout-service/models"
	aws_pkg "github.com/yashrajoria/checkout-service/pkg/aws"
	"github.com/yashrajoria/checkout-service/repository"
	"github.com/yashrajoria/checkout-service/routes"
	"github.com/yashrajoria/checkout-service/services"
	"go.uber.org/zap"
)

const serviceName = "checkout-service"

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatal("[CheckoutService] Failed to load config: ", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	awsCfg, err := aws_pkg.LoadAWSConfig(ctx)
	if err != nil {
		log.Fatal("[CheckoutService] Failed to load AWS config: ", err)
	}

	var shipper io.Writer
	if cfg.CloudWatchEnabled {
		cwLogs, err := aws_pkg.NewCloudWatchLogsClient(ctx, awsCfg, cfg.CloudWatchLogGroup, serviceName)
		if err != nil {
			log.Println("[CheckoutService] CloudWatch Logs unavailable, logging to stdout only:", err)
		} else {
			shipper = cwLogs
		}
	}

	zapLogger, err := logger.New(cfg.AppEnv, shipper)
	if err != nil {
		log.Fatal("[CheckoutService] Failed to initialize logger: ", err)
	}
	defer zapLogger.Sync()
	zap.ReplaceGlobals(zapLogger)

	var closers []func()
	defer func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}()

	// --- Storage ---
	orderRepo, closeStore, err := openOrderStore(ctx, cfg, awsCfg, zapLogger)
	if err != nil {
		zapLogger.Fatal("Failed to open order store", zap.String("store", cfg.OrderStore), zap.Error(err))
	}
	if closeStore != nil {
		closers = append(closers, closeStore)
	}

	var ledger repository.EventLedger
	if cfg.RedisURL != "" {
		rdb, err := database.NewRedisClient(ctx, cfg.RedisURL, zapLogger)
		if err != nil {
			zapLogger.Warn("Redis unavailable, using in-process webhook ledger", zap.Error(err))
		} else {
			ledger = repository.NewRedisEventLedger(rdb, cfg.WebhookEventTTL)
			closers = append(closers, func() {
				if err := rdb.Close(); err != nil {
					zapLogger.Error("Failed to close Redis", zap.Error(err))
				}
			})
		}
	}
	if ledger == nil {
		ledger = repository.NewMemoryEventLedger(10000, cfg.WebhookEventTTL)
	}

	// --- Events and metrics ---
	var publisher services.EventPublisher
	switch cfg.EventBus {
	case config.BusSNS:
		publisher = services.NewSNSEventPublisher(aws_pkg.NewSNSClient(awsCfg), cfg.OrderSNSTopicARN)
	case config.BusKafka:
		producer := events.NewOrderEventProducer(cfg.KafkaBrokers, cfg.KafkaOrderTopic, zapLogger)
		publisher = producer
		closers = append(closers, func() {
			if err := producer.Close(); err != nil {
				zapLogger.Error("Failed to close Kafka writer", zap.Error(err))
			}
		})
	}

	metrics := aws_pkg.NewMetricsClient(awsCfg, cfg.CloudWatchNamespace, cfg.CloudWatchEnabled)

	// --- Services ---
	scheduler := services.NewCompletionScheduler(cfg.SimulatedCompletionDelay, zapLogger)
	closers = append(closers, scheduler.Stop)
	if scheduler.Enabled() {
		zapLogger.Warn("Simulated order completion enabled", zap.Duration("delay", cfg.SimulatedCompletionDelay))
	}

	stripeSvc := services.NewStripeService(cfg.StripeSecretKey, cfg.StripeWebhookSecret)
	if !stripeSvc.WebhookConfigured() {
		zapLogger.Warn("STRIPE_WEBHOOK_SECRET not set, webhook deliveries will be rejected")
	}
	orderSvc := services.NewOrderService(orderRepo, publisher, metrics, scheduler, zapLogger)
	webhookSvc := services.NewWebhookService(stripeSvc, orderSvc, ledger, metrics, zapLogger)

	handlers := routes.Controllers{
		Orders: controllers.NewOrderController(orderSvc, zapLogger),
		Checkout: controllers.NewCheckoutController(stripeSvc, orderSvc, metrics, controllers.CheckoutURLs{
			Success: cfg.SuccessURL,
			Cancel:  cfg.CancelURL,
		}, zapLogger),
		Webhook: controllers.NewWebhookController(webhookSvc, zapLogger),
	}

	// --- HTTP ---
	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}
	limiter := middleware.NewRateLimiter(cfg.RateLimitPerMinute, cfg.RateLimitPerMinute, 10*time.Minute)
	go limiter.Run(ctx)

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(middleware.RequestID())
	r.Use(middleware.RequestLogger(zapLogger))
	r.Use(middleware.SecurityHeaders())
	r.Use(middleware.CORS(cfg.ClientURLs))
	r.Use(middleware.RateLimit(limiter))
	r.Use(middleware.Metrics(metrics, serviceName))
	routes.RegisterRoutes(r, handlers, cfg.ClientURL())

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		zapLogger.Info("Checkout service starting",
			zap.String("port", cfg.Port),
			zap.String("env", cfg.AppEnv),
			zap.String("store", cfg.OrderStore),
			zap.String("event_bus", cfg.EventBus),
			zap.Bool("shared_webhook_ledger", cfg.RedisURL != ""),
		)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			zapLogger.Fatal("Failed to start server", zap.Error(err))
		}
	}()

	<-ctx.Done()
	zapLogger.Info("Shutting down checkout service...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		zapLogger.Error("Server forced to shutdown", zap.Error(err))
	}
	zapLogger.Info("Checkout service stopped gracefully")
}

// openOrderStore builds the repository selected by ORDER_STORE. The returned
// close func may be nil.
func openOrderStore(ctx context.Context, cfg *config.Config, awsCfg sdkaws.Config, logger *zap.Logger) (repository.OrderRepository, func(), error) {
	switch cfg.OrderStore {
	case config.StoreMongo:
		client, db, err := database.ConnectMongo(ctx, cfg.MongoURL, cfg.MongoDB, logger)
		if err != nil {
			return nil, nil, err
		}
		repo := repository.NewMongoOrderRepository(db)
		if err := repo.EnsureIndexes(ctx); err != nil {
			logger.Warn("Failed to ensure order indexes", zap.Error(err))
		}
		return repo, func() {
			disconnectCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := client.Disconnect(disconnectCtx); err != nil {
				logger.Error("Failed to disconnect MongoDB", zap.Error(err))
			}
		}, nil

	case config.StorePostgres:
		db, err := database.ConnectPostgres(cfg.Postgres.DSN(), logger, &models.Order{})
		if err != nil {
			return nil, nil, err
		}
		return repository.NewGormOrderRepository(db), func() {
			if err := database.ClosePostgres(db); err != nil {
				logger.Error("Failed to close Postgres", zap.Error(err))
			}
		}, nil

	case config.StoreDynamoDB:
		client := aws_pkg.NewDynamoDBClient(awsCfg)
		return repository.NewDynamoOrderRepository(client, cfg.DynamoTable), nil, nil

	default:
		repo, err := repository.NewFileOrderRepository(cfg.OrdersFile)
		if err != nil {
			return nil, nil, err
		}
		logger.Info("Using file order store", zap.String("path", cfg.OrdersFile))
		return repo, nil, nil
	}
}
