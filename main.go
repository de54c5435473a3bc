package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/go-redis/redis/v8"
	"github.com/joho/godotenv"
	"github.com/uptrace/bun"

	"ms-storefront/internal/admin"
	admindb "ms-storefront/internal/admin/db"
	adminredis "ms-storefront/internal/admin/redis"
	"ms-storefront/internal/chat"
	chatdb "ms-storefront/internal/chat/db"
	"ms-storefront/internal/config"
	"ms-storefront/internal/database"
	"ms-storefront/internal/database/migrations"
	"ms-storefront/internal/kafka"
	"ms-storefront/internal/logger"
	"ms-storefront/internal/order"
	orderdb "ms-storefront/internal/order/db"
	"ms-storefront/internal/payment"
	paymentdb "ms-storefront/internal/payment/db"
	paymentredis "ms-storefront/internal/payment/redis"
	"ms-storefront/internal/sse"
)

// services holds everything the router needs. Optional collaborators stay nil
// interfaces when their backing infrastructure is disabled.
type services struct {
	sessions *admin.Service
	orders   *order.OrderService
	payments *payment.Reconciler
	chat     *chat.Service
	events   *sse.RoomEventEmitter
}

func connectRedis(ctx context.Context, cfg config.RedisConfig, log *logger.Logger) *redis.Client {
	if !cfg.Enabled {
		log.Warn("REDIS", "Redis disabled, login throttling and payment locks are off")
		return nil
	}

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		log.Warn("REDIS", fmt.Sprintf("Redis unavailable at %s, continuing without it: %v", cfg.Addr, err))
		client.Close()
		return nil
	}

	log.Info("REDIS", fmt.Sprintf("✅ Redis connection successful to %s (DB: %d)", cfg.Addr, cfg.DB))
	return client
}

func connectKafka(cfg config.KafkaConfig, log *logger.Logger) *kafka.Producer {
	if !cfg.Enabled {
		log.Warn("KAFKA", "Kafka disabled, domain events will not be published")
		return nil
	}

	topics := []string{cfg.Topics.OrderUpdated, cfg.Topics.PaymentCompleted, cfg.Topics.PaymentFailed}
	if err := kafka.EnsureTopicsExist(cfg.Brokers, topics, log); err != nil {
		log.Warn("KAFKA", fmt.Sprintf("Topic creation might have failed: %v", err))
	}

	log.Info("KAFKA", fmt.Sprintf("Kafka producer initialized for %v", cfg.Brokers))
	return kafka.NewProducer(cfg.Brokers, log)
}

func buildServices(cfg *config.Config, bunDB *bun.DB, rdb *redis.Client, producer *kafka.Producer, log *logger.Logger) services {
	var (
		limiter   admin.AttemptLimiter
		lock      payment.TokenLock
		publisher payment.EventPublisher
		orderPub  order.KafkaPublisher
		confirmer payment.Confirmer
	)
	if rdb != nil {
		limiter = adminredis.NewLoginThrottle(rdb, cfg.Auth.LoginAttemptLimit, cfg.Auth.LoginAttemptWindow)
		lock = paymentredis.NewTokenLock(rdb, cfg.Payment.LockTTL)
	}
	if producer != nil {
		publisher = producer
		orderPub = producer
	}
	if cfg.Stripe.SecretKey != "" {
		stripeConfirmer, err := payment.NewStripeConfirmer(cfg.Stripe.SecretKey, log)
		if err != nil {
			log.Warn("PAYMENT", fmt.Sprintf("Stripe confirmation disabled: %v", err))
		} else {
			confirmer = stripeConfirmer
			log.Info("PAYMENT", "Stripe confirmation enabled for card payments")
		}
	}

	events := sse.NewRoomEventEmitter()

	return services{
		sessions: admin.NewService(
			&admindb.DB{Bun: bunDB},
			admin.BcryptHasher{Cost: cfg.Auth.BcryptCost},
			limiter,
			log,
			admin.Options{
				DefaultUsername:      cfg.Auth.DefaultUsername,
				DefaultPassword:      cfg.Auth.DefaultPassword,
				DefaultEmail:         cfg.Auth.DefaultEmail,
				SessionTTL:           cfg.Auth.SessionTTL,
				AllowDefaultRecovery: cfg.Auth.AllowDefaultRecovery,
			},
		),
		orders: order.NewOrderService(&orderdb.DB{Bun: bunDB}, orderPub, log, cfg.Kafka.Topics.OrderUpdated),
		payments: payment.NewReconciler(
			&paymentdb.DB{Bun: bunDB},
			lock,
			publisher,
			confirmer,
			log,
			payment.Topics{Completed: cfg.Kafka.Topics.PaymentCompleted, Failed: cfg.Kafka.Topics.PaymentFailed},
		),
		chat:   chat.NewService(&chatdb.DB{Bun: bunDB}, events, log),
		events: events,
	}
}

func main() {
	log := logger.NewLogger()

	if err := godotenv.Load(); err != nil {
		log.Warn("CONFIG", ".env file not found, using environment variables")
	} else {
		log.Info("CONFIG", "Loaded environment variables from .env file")
	}

	cfg := config.Load()
	log.Close()
	log = logger.New(logger.Options{Dir: cfg.Log.Dir, Name: cfg.Log.Name})
	defer log.Close()

	log.Info("APP", "Starting storefront service initialization")
	ctx := context.Background()

	bunDB, err := database.Connect(ctx, cfg.Database, log)
	if err != nil {
		log.Fatal("DATABASE", err.Error())
	}
	defer bunDB.Close()

	if cfg.Database.AutoMigrate {
		if err := migrations.NewRunner(bunDB.DB, log).Up(); err != nil {
			log.Fatal("DATABASE", err.Error())
		}
	}

	rdb := connectRedis(ctx, cfg.Redis, log)
	if rdb != nil {
		defer rdb.Close()
	}

	producer := connectKafka(cfg.Kafka, log)
	if producer != nil {
		defer producer.Close()
	}

	svc := buildServices(cfg, bunDB, rdb, producer, log)

	if cfg.Auth.BootstrapOnStartup {
		if _, err := svc.sessions.EnsureDefaultAdmin(ctx); err != nil {
			log.Error("AUTH", fmt.Sprintf("Default administrator bootstrap failed: %v", err))
		}
	}

	server := &http.Server{
		Addr:         cfg.Server.Port,
		Handler:      newRouter(cfg, svc, log),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	go func() {
		log.Info("HTTP", fmt.Sprintf("🚀 Storefront service running on %s", cfg.Server.Port))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("HTTP", fmt.Sprintf("HTTP server error: %v", err))
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	log.Info("APP", "Service started successfully, waiting for shutdown signal")
	<-stop

	log.Info("APP", "Shutdown signal received, initiating graceful shutdown")
	ctxShutdown, cancel := context.WithTimeout(ctx, cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := server.Shutdown(ctxShutdown); err != nil {
		log.Error("HTTP", fmt.Sprintf("Server Shutdown Failed: %v", err))
	} else {
		log.Info("HTTP", "✅ Storefront service shutdown complete")
	}
}
