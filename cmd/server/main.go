package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/eventhon/eventhon/internal/config"
	"github.com/eventhon/eventhon/internal/handlers"
	"github.com/eventhon/eventhon/internal/metrics"
	"github.com/eventhon/eventhon/internal/middleware"
	"github.com/eventhon/eventhon/internal/notify"
	"github.com/eventhon/eventhon/internal/repository"
	"github.com/eventhon/eventhon/internal/service"
	"github.com/eventhon/eventhon/internal/telemetry"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

type stores struct {
	users        service.UserStore
	events       service.EventStore
	scholarships service.ScholarshipStore
	otps         service.OTPStore
	denylist     service.TokenDenylist
}

func main() {
	logger := logrus.New()
	logger.SetFormatter(&logrus.JSONFormatter{})
	logger.SetLevel(logrus.InfoLevel)

	cfg, err := config.Load()
	if err != nil {
		logger.WithError(err).Fatal("Failed to load configuration")
	}

	if level, err := logrus.ParseLevel(cfg.LogLevel); err == nil {
		logger.SetLevel(level)
	} else {
		logger.WithField("level", cfg.LogLevel).Warn("Unknown LOG_LEVEL, keeping info")
	}

	ctx := context.Background()

	shutdownTracer, err := telemetry.InitTracer(ctx, cfg.Telemetry, logger)
	if err != nil {
		logger.WithError(err).Fatal("Failed to initialize tracing")
	}

	var redisClient *redis.Client
	if cfg.Redis.Endpoint != "" {
		redisClient = initRedis(ctx, cfg, logger)
	}

	st, err := initStores(ctx, cfg, redisClient, logger)
	if err != nil {
		logger.WithError(err).Fatal("Failed to initialize stores")
	}

	sender, closeSender, err := initSender(cfg, logger)
	if err != nil {
		logger.WithError(err).Fatal("Failed to initialize notification sender")
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	recorder := metrics.NewCollector(reg)

	jwtService, err := service.NewJWTService(&cfg.JWT, logger)
	if err != nil {
		logger.WithError(err).Fatal("Failed to initialize JWT service")
	}

	authService := service.NewAuthService(st.users, st.otps, sender, jwtService, st.denylist, cfg, recorder, logger)
	eventService := service.NewEventService(st.events, st.users, sender, recorder, cfg.Server.Location, logger)
	scholarshipService := service.NewScholarshipService(st.scholarships, st.users, cfg.Server.Location, logger)

	router := handlers.NewRouter(handlers.RouterConfig{
		Auth:          handlers.NewAuthHandlers(authService, cfg.Session, logger),
		Events:        handlers.NewEventHandlers(eventService, cfg.Server.Location, logger),
		Scholarships:  handlers.NewScholarshipHandlers(scholarshipService, cfg.Server.Location, logger),
		AuthMW:        middleware.NewAuthMiddleware(authService, cfg.Session.CookieName, logger),
		Recorder:      recorder,
		Gatherer:      reg,
		AllowedOrigin: cfg.Server.AllowedOrigin,
		Logger:        logger,
	})

	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	go func() {
		logger.WithField("port", cfg.Server.Port).Info("Starting server")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.WithError(err).Fatal("Server failed to start")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down server...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.WithError(err).Error("Server forced to shutdown")
	}

	if n := authService.PendingSweeps(); n > 0 {
		logger.WithField("pending", n).Warn("Dropping pending OTP expiry sweeps")
	}
	authService.Shutdown()

	if err := closeSender(); err != nil {
		logger.WithError(err).Warn("Failed to close notification sender")
	}
	if redisClient != nil {
		redisClient.Close()
	}
	if err := shutdownTracer(shutdownCtx); err != nil {
		logger.WithError(err).Warn("Failed to flush traces")
	}

	logger.Info("Server exited")
}

func initStores(ctx context.Context, cfg *config.Config, redisClient *redis.Client, logger *logrus.Logger) (*stores, error) {
	st := &stores{}

	switch cfg.Store.Backend {
	case config.StoreBackendMemory:
		logger.Warn("Using in-memory stores, data is lost on restart")
		st.users = repository.NewMemoryUserRepository()
		st.events = repository.NewMemoryEventRepository()
		st.scholarships = repository.NewMemoryScholarshipRepository()
		st.denylist = repository.NewMemoryTokenDenylist()
	default:
		client, err := initDynamoDB(ctx, cfg, logger)
		if err != nil {
			return nil, err
		}
		if cfg.DynamoDB.CreateTable {
			if err := repository.EnsureTable(ctx, client, cfg.DynamoDB.TableName, logger); err != nil {
				return nil, err
			}
		}
		st.users = repository.NewUserRepository(client, cfg.DynamoDB.TableName, logger)
		st.events = repository.NewEventRepository(client, cfg.DynamoDB.TableName, logger)
		st.scholarships = repository.NewScholarshipRepository(client, cfg.DynamoDB.TableName, logger)
		st.denylist = repository.NewDynamoTokenDenylist(client, cfg.DynamoDB.TableName, logger)
	}

	if redisClient != nil {
		st.denylist = repository.NewRedisTokenDenylist(redisClient)
	}

	switch cfg.OTP.Store {
	case config.OTPStoreRedis:
		st.otps = repository.NewRedisOTPRepository(redisClient, logger)
	default:
		st.otps = repository.NewMemoryOTPRepository()
	}

	return st, nil
}

func initDynamoDB(ctx context.Context, cfg *config.Config, logger *logrus.Logger) (*dynamodb.Client, error) {
	var awsCfg aws.Config
	var err error

	if cfg.DynamoDB.Endpoint != "" {
		awsCfg, err = awsconfig.LoadDefaultConfig(ctx,
			awsconfig.WithRegion(cfg.DynamoDB.Region),
			awsconfig.WithEndpointResolverWithOptions(aws.EndpointResolverWithOptionsFunc(
				func(service, region string, options ...interface{}) (aws.Endpoint, error) {
					return aws.Endpoint{
						URL:           cfg.DynamoDB.Endpoint,
						SigningRegion: cfg.DynamoDB.Region,
					}, nil
				})),
		)
	} else {
		awsCfg, err = awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(cfg.DynamoDB.Region))
	}

	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	client := dynamodb.NewFromConfig(awsCfg)
	logger.WithField("table", cfg.DynamoDB.TableName).Info("DynamoDB client initialized")
	return client, nil
}

func initRedis(ctx context.Context, cfg *config.Config, logger *logrus.Logger) *redis.Client {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Endpoint,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		logger.WithError(err).Fatal("Failed to connect to Redis")
	}

	logger.WithField("endpoint", cfg.Redis.Endpoint).Info("Redis client initialized")
	return client
}

// initSender picks the notification backend. The returned func releases it.
func initSender(cfg *config.Config, logger *logrus.Logger) (notify.Sender, func() error, error) {
	noop := func() error { return nil }

	switch cfg.Notify.Backend {
	case config.NotifyBackendSMTP:
		sender, err := notify.NewSMTPSender(&cfg.Mail, logger)
		if err != nil {
			return nil, nil, err
		}
		return sender, noop, nil
	case config.NotifyBackendAMQP:
		sender, err := notify.NewAMQPSender(&cfg.AMQP, logger)
		if err != nil {
			return nil, nil, err
		}
		return sender, sender.Close, nil
	default:
		logger.Warn("Using log notification backend, mails are not delivered")
		return notify.NewLogSender(logger), noop, nil
	}
}
