package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"golang.org/x/sync/errgroup"

	appoutbox "marketplace/internal/app/outbox"
	messagingapp "marketplace/internal/app/handlers/messaging"
	"marketplace/internal/app/middleware"
	authsvc "marketplace/internal/app/services/auth"
	listingsvc "marketplace/internal/app/services/listings"
	"marketplace/internal/app/uow"
	domainlistings "marketplace/internal/domain/listings"
	domainuser "marketplace/internal/domain/user"
	"marketplace/internal/infra/broker/kafka"
	"marketplace/internal/infra/config"
	mongodb "marketplace/internal/infra/db/mongo"
	"marketplace/internal/infra/directory"
	grpcserver "marketplace/internal/infra/grpc"
	ginserver "marketplace/internal/infra/http/gin"
	"marketplace/internal/infra/obs"
	outboxinfra "marketplace/internal/infra/outbox"
	"marketplace/internal/infra/security"
	"marketplace/internal/infra/storage/memory"
)

func main() {
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}
	logger := obs.NewLogger(cfg.Env)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger); err != nil {
		logger.Error("marketplace stopped with error", "error", err)
		os.Exit(1)
	}
	logger.Info("marketplace stopped")
}

func run(ctx context.Context, cfg config.Config, logger *slog.Logger) error {
	st, err := openStorage(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer st.close()

	tokens, err := security.NewJWTIssuer(cfg.JWTSecret, cfg.JWTTTL)
	if err != nil {
		return fmt.Errorf("jwt issuer: %w", err)
	}
	authService := &authsvc.Service{
		Users:     st.users,
		Passwords: security.BcryptHasher{},
		Tokens:    tokens,
		Logger:    logger,
	}
	listingService := &listingsvc.Service{
		Listings: st.listings,
		Users:    st.users,
		Logger:   logger,
	}
	if err := seedListings(ctx, cfg.ListingsFixtures, listingService, logger); err != nil {
		logger.Warn("listing fixtures load failed", "error", err, "path", cfg.ListingsFixtures)
	}

	commandBus, queryBus := messagingapp.NewBuses(messagingapp.BusOptions{
		Base: messagingapp.Base{
			UoWFactory:            st.factory,
			Outbox:                st.outbox,
			Encoder:               appoutbox.JSONEventEncoder{},
			Identities:            directory.Identities{Users: st.users},
			Listings:              directory.Listings{Repo: st.listings},
			Logger:                logger,
			SearchConversationCap: cfg.SearchConversationCap,
		},
		Idempotency:    st.idempotency,
		IdempotencyTTL: cfg.IdempotencyTTL,
	})

	producer, closeProducer, err := newProducer(cfg, logger)
	if err != nil {
		return err
	}
	defer closeProducer()

	worker := &outboxinfra.Worker{
		Store:       st.source,
		Producer:    producer,
		Logger:      logger,
		Interval:    cfg.OutboxPollInterval,
		TopicPrefix: cfg.KafkaTopicPrefix,
		Backoff:     cfg.RetryBackoff,
	}

	limiter := ginserver.NewLimiterStore(cfg.SendRatePerMinute, cfg.SendRateBurst, time.Minute)
	defer limiter.Stop()

	server := ginserver.NewServer(cfg, obs.Middleware{Logger: logger}, obs.HealthHandlers{Ready: st.ping}, ginserver.Handlers{
		Auth:           ginserver.AuthHandler{Service: authService, Logger: logger},
		Listing:        ginserver.ListingHandler{Service: listingService, Logger: logger},
		Chat:           ginserver.ChatHandler{Commands: commandBus, Queries: queryBus, Logger: logger},
		AuthMiddleware: ginserver.AuthMiddleware{Service: authService, Logger: logger}.Handle,
		SendLimiter:    ginserver.SendRateLimit(limiter),
	})

	health := grpcserver.NewHealthServer(st.ping, 5*time.Second, logger)
	lis, err := net.Listen("tcp", cfg.GRPCAddr)
	if err != nil {
		return fmt.Errorf("grpc listen %s: %w", cfg.GRPCAddr, err)
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		err := worker.Run(gctx)
		if errors.Is(err, context.Canceled) {
			return nil
		}
		return err
	})
	g.Go(func() error {
		logger.Info("gRPC health server starting", "addr", cfg.GRPCAddr)
		return health.Serve(gctx, lis)
	})
	g.Go(func() error {
		logger.Info("HTTP server starting", "addr", cfg.HTTPAddr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Error("http shutdown failed", "error", err)
		}
		return nil
	})
	return g.Wait()
}

type storage struct {
	factory     uow.UoWFactory
	outbox      appoutbox.Outbox
	source      outboxinfra.Source
	idempotency middleware.IdempotencyStore
	users       domainuser.Repository
	listings    domainlistings.Repository
	ping        func(ctx context.Context) error
	close       func()
}

func openStorage(ctx context.Context, cfg config.Config, logger *slog.Logger) (storage, error) {
	switch cfg.StorageDriver {
	case config.DriverMongo:
		client, err := mongodb.New(ctx, cfg.MongoURI, cfg.MongoDB)
		if err != nil {
			return storage{}, fmt.Errorf("mongo connect: %w", err)
		}
		if err := client.EnsureIndexes(ctx); err != nil {
			_ = client.Close(context.Background())
			return storage{}, fmt.Errorf("mongo indexes: %w", err)
		}
		box, err := outboxinfra.NewStore(ctx, client.DB)
		if err != nil {
			_ = client.Close(context.Background())
			return storage{}, fmt.Errorf("outbox store: %w", err)
		}
		logger.Info("storage ready", "driver", cfg.StorageDriver, "database", cfg.MongoDB, "transactions", cfg.MongoTransactions)
		return storage{
			factory:     mongodb.Factory{DB: client.DB, Transactions: cfg.MongoTransactions},
			outbox:      box,
			source:      box,
			idempotency: mongodb.NewIdempotencyStore(client.DB),
			users:       mongodb.NewUserRepository(client.DB),
			listings:    mongodb.NewListingRepository(client.DB),
			ping:        client.Ping,
			close: func() {
				closeCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				if err := client.Close(closeCtx); err != nil {
					logger.Warn("mongo disconnect failed", "error", err)
				}
			},
		}, nil
	default:
		box := memory.NewOutbox()
		logger.Info("storage ready", "driver", config.DriverMemory)
		return storage{
			factory:     memory.Factory{Store: memory.NewStore()},
			outbox:      box,
			source:      box,
			idempotency: memory.NewIdempotencyStore(),
			users:       memory.NewUserRepository(),
			listings:    memory.NewListingRepository(),
			ping:        func(context.Context) error { return nil },
			close:       func() {},
		}, nil
	}
}

func newProducer(cfg config.Config, logger *slog.Logger) (outboxinfra.Producer, func(), error) {
	if len(cfg.KafkaBrokers) == 0 {
		logger.Info("no kafka brokers configured, outbox events go to the log")
		return outboxinfra.LogProducer{Logger: logger}, func() {}, nil
	}
	producer, err := kafka.NewProducer(cfg.KafkaBrokers, kafka.NewConfig("marketplace"))
	if err != nil {
		return nil, nil, fmt.Errorf("kafka producer: %w", err)
	}
	return producer, func() {
		if err := producer.Close(); err != nil {
			logger.Warn("kafka producer close failed", "error", err)
		}
	}, nil
}

func seedListings(ctx context.Context, path string, svc *listingsvc.Service, logger *slog.Logger) error {
	if path == "" {
		return nil
	}
	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			logger.Info("listing fixtures file not found, skipping", "path", path)
			return nil
		}
		return fmt.Errorf("open fixtures: %w", err)
	}
	defer f.Close()
	items, err := listingsvc.DecodeFixtures(f, time.Now().UTC())
	if err != nil {
		return err
	}
	if err := svc.Seed(ctx, items); err != nil {
		return err
	}
	logger.Info("listing fixtures loaded", "count", len(items))
	return nil
}
