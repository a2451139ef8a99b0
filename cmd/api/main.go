package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/azizikri/storefront/internal/auth"
	"github.com/azizikri/storefront/internal/cache"
	"github.com/azizikri/storefront/internal/config"
	httphandler "github.com/azizikri/storefront/internal/delivery/http"
	"github.com/azizikri/storefront/internal/delivery/kafka"
	"github.com/azizikri/storefront/internal/domain"
	"github.com/azizikri/storefront/internal/metrics"
	"github.com/azizikri/storefront/internal/repository"
	"github.com/azizikri/storefront/internal/tracing"
	"github.com/azizikri/storefront/internal/usecase"
	"github.com/go-chi/chi/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"
	zlog "github.com/rs/zerolog/log"
	"github.com/twmb/franz-go/pkg/kgo"
)

const serviceName = "storefront"

func main() {
	cfg := config.Load()

	level, err := zerolog.ParseLevel(cfg.LogLevel)
	if err != nil {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)
	zerolog.TimeFieldFormat = time.RFC3339Nano
	zlog.Logger = zlog.With().Str("service", serviceName).Logger()
	if !cfg.IsProduction() {
		zlog.Logger = zlog.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen})
	}
	logger := zlog.Logger

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx = logger.WithContext(ctx)

	shutdownTracing, err := tracing.Init(serviceName, cfg.JaegerEndpoint)
	if err != nil {
		logger.Fatal().Err(err).Msg("init tracing")
	}

	pool, err := initDB(ctx, cfg)
	if err != nil {
		logger.Fatal().Err(err).Msg("connect to database")
	}
	defer pool.Close()

	if err := repository.RunMigrations(ctx, pool, cfg.MigrationsDir); err != nil {
		logger.Fatal().Err(err).Msg("run migrations")
	}

	var cacheLayer usecase.Cache = cache.Nop{}
	if cfg.RedisAddr != "" {
		rdb, err := cache.Connect(ctx, cfg.RedisAddr, cfg.RedisPassword)
		if err != nil {
			logger.Fatal().Err(err).Msg("connect to redis")
		}
		defer rdb.Close()
		cacheLayer = cache.NewRedis(rdb, cfg.CacheExpiry())
	}

	store := repository.New(pool)
	issuer := auth.NewIssuer(cfg.JWTSecret, cfg.TokenTTL(), cfg.RefreshTokenTTL())
	couponService := usecase.NewCouponService(store, cacheLayer)
	direct := kafka.NewDirectGateway(couponService)

	var (
		claims  = direct
		events  usecase.OrderEvents = kafka.NopPublisher{}
		clients []*kgo.Client
		workers sync.WaitGroup
	)

	if cfg.EventDriven() {
		brokers := strings.Split(cfg.KafkaBrokers, ",")

		kafkaLogger := kafka.NewLogger(logger)
		producer, err := kgo.NewClient(
			kgo.SeedBrokers(brokers...),
			kgo.ClientID(cfg.KafkaClientID),
			kgo.RequiredAcks(kgo.AllISRAcks()),
			kgo.ProducerBatchCompression(kgo.SnappyCompression()),
			kgo.ProducerLinger(5*time.Millisecond),
			kgo.WithLogger(kafkaLogger),
		)
		if err != nil {
			logger.Fatal().Err(err).Msg("create kafka producer")
		}
		clients = append(clients, producer)

		if err := kafka.EnsureTopics(ctx, producer, cfg); err != nil {
			logger.Warn().Err(err).Msg("ensure kafka topics")
		}

		consumerClient, err := newConsumerClient(brokers, kafkaLogger, cfg.KafkaClientID+"-claims", cfg.KafkaGroupID, kafka.TopicClaimRequest)
		if err != nil {
			logger.Fatal().Err(err).Msg("create kafka consumer")
		}
		retryClient, err := newConsumerClient(brokers, kafkaLogger, cfg.KafkaClientID+"-retry", cfg.KafkaRetryGroupID, kafka.TopicClaimRetry)
		if err != nil {
			logger.Fatal().Err(err).Msg("create kafka retry consumer")
		}
		replyClient, err := newReplyClient(brokers, kafkaLogger, cfg.KafkaClientID+"-reply", kafka.ReplyTopic(cfg.KafkaInstanceID))
		if err != nil {
			logger.Fatal().Err(err).Msg("create kafka reply consumer")
		}
		clients = append(clients, consumerClient, retryClient, replyClient)

		gateway := kafka.NewGateway(producer, cfg.KafkaInstanceID)
		consumer := kafka.NewConsumer(consumerClient, direct)
		retryConsumer := kafka.NewConsumer(retryClient, direct)

		workers.Add(3)
		go func() { defer workers.Done(); consumer.Start(ctx) }()
		go func() { defer workers.Done(); retryConsumer.StartRetry(ctx) }()
		go func() { defer workers.Done(); gateway.PollReplies(ctx, replyClient) }()
		<-consumer.Ready()

		claims = gateway
		events = kafka.NewEventPublisher(producer)
		logger.Info().Strs("brokers", brokers).Msg("event-driven mode enabled")
	}

	orderService := usecase.NewOrderService(store, events, cacheLayer, usecase.OrderConfig{
		Shipping: domain.ShippingPolicy{
			FreeThreshold: cfg.FreeShippingThreshold(),
			FlatFee:       cfg.FlatShippingFee(),
		},
		OrderNoAttempts: cfg.OrderNumberAttempts(),
	})

	handler := httphandler.NewHandler(httphandler.Services{
		Auth:      usecase.NewAuthService(store, issuer),
		Catalog:   usecase.NewCatalogService(store, cacheLayer),
		Orders:    orderService,
		Addresses: usecase.NewAddressService(store),
		Coupons:   couponService,
		Claims:    claims,
	}, issuer, !cfg.IsProduction())

	r := chi.NewRouter()
	r.Use(handler.Middlewares(logger)...)
	r.Use(metrics.Middleware)
	handler.Routes(r)

	srv := &http.Server{
		Addr:              ":" + cfg.AppPort,
		Handler:           r,
		ReadHeaderTimeout: 5 * time.Second,
		BaseContext: func(net.Listener) context.Context {
			return logger.WithContext(context.Background())
		},
	}

	serveErr := make(chan error, 1)
	go func() {
		logger.Info().Str("port", cfg.AppPort).Msg("starting server")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	select {
	case <-ctx.Done():
	case err := <-serveErr:
		if err != nil {
			logger.Error().Err(err).Msg("server failed")
		}
	}
	logger.Info().Msg("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("http shutdown")
	}
	stop()
	for _, c := range clients {
		c.Close()
	}
	workers.Wait()
	if err := shutdownTracing(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("tracing shutdown")
	}
	logger.Info().Msg("shutdown complete")
}

func initDB(ctx context.Context, cfg *config.Config) (*pgxpool.Pool, error) {
	connStr := fmt.Sprintf(
		"postgresql://%s:%s@%s:%s/%s?sslmode=%s",
		cfg.DBUser,
		cfg.DBPassword,
		cfg.DBHost,
		cfg.DBPort,
		cfg.DBName,
		cfg.DBSSLMode,
	)

	pool, err := pgxpool.New(ctx, connStr)
	if err != nil {
		return nil, fmt.Errorf("create connection pool: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := pool.Ping(pingCtx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	return pool, nil
}

func newConsumerClient(brokers []string, logger kgo.Logger, clientID, groupID string, topics ...string) (*kgo.Client, error) {
	return kgo.NewClient(
		kgo.SeedBrokers(brokers...),
		kgo.ClientID(clientID),
		kgo.ConsumerGroup(groupID),
		kgo.ConsumeTopics(topics...),
		kgo.DisableAutoCommit(),
		kgo.SessionTimeout(30*time.Second),
		kgo.RebalanceTimeout(30*time.Second),
		kgo.WithLogger(logger),
	)
}

func newReplyClient(brokers []string, logger kgo.Logger, clientID, topic string) (*kgo.Client, error) {
	return kgo.NewClient(
		kgo.SeedBrokers(brokers...),
		kgo.ClientID(clientID),
		kgo.WithLogger(logger),
		kgo.ConsumeTopics(topic),
		kgo.ConsumeResetOffset(kgo.NewOffset().AtEnd()),
	)
}
