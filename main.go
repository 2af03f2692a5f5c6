package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-redis/redis/v8"
	"github.com/joho/godotenv"

	"ticket-ledger/internal/auth"
	"ticket-ledger/internal/config"
	"ticket-ledger/internal/database"
	"ticket-ledger/internal/holds"
	"ticket-ledger/internal/kafka"
	"ticket-ledger/internal/ledger"
	ledgerdb "ticket-ledger/internal/ledger/db"
	"ticket-ledger/internal/ledger/ledger_api"
	"ticket-ledger/internal/logger"
	"ticket-ledger/internal/metrics"
	"ticket-ledger/internal/models"
	"ticket-ledger/internal/sse"
	qr "ticket-ledger/internal/tickets/qr_generator"
)

func newVerifier(ctx context.Context, cfg config.AuthConfig, log *logger.Logger) auth.Verifier {
	if cfg.OIDCIssuer != "" {
		v, err := auth.NewOIDCVerifier(ctx, cfg.OIDCIssuer, cfg.OIDCClientID)
		if err != nil {
			log.Fatal("AUTH", err.Error())
		}
		log.Info("AUTH", fmt.Sprintf("Verifying bearer tokens against OIDC issuer %s", cfg.OIDCIssuer))
		return v
	}

	v, err := auth.NewHMACVerifier(cfg.HMACSecret, cfg.Issuer)
	if err != nil {
		log.Fatal("AUTH", fmt.Sprintf("Either OIDC_ISSUER or JWT_SECRET must be set: %v", err))
	}
	log.Info("AUTH", "Verifying HS256 bearer tokens")
	return v
}

func connectRedis(ctx context.Context, cfg config.RedisConfig, log *logger.Logger) *redis.Client {
	client := redis.NewClient(&redis.Options{Addr: cfg.Addr})
	if err := client.Ping(ctx).Err(); err != nil {
		log.Fatal("REDIS", fmt.Sprintf("Redis connection error: %v", err))
	}
	log.Info("REDIS", fmt.Sprintf("Redis connection successful to %s (DB: %d)", cfg.Addr, client.Options().DB))
	return client
}

func main() {
	envErr := godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "invalid configuration: %v\n", err)
		os.Exit(1)
	}

	log := logger.NewLogger(cfg.Log.Dir)
	defer log.Close()
	log.SetLevel(logger.ParseLevel(cfg.Log.Level))

	if envErr != nil {
		log.Warn("CONFIG", ".env file not found, using environment variables")
	} else {
		log.Info("CONFIG", "Loaded environment variables from .env file")
	}
	log.Info("APP", "Starting ticket ledger initialization")

	ctx := context.Background()

	admin, err := models.ParseAddress(cfg.Ledger.Admin)
	if err != nil {
		log.Fatal("CONFIG", fmt.Sprintf("LEDGER_ADMIN: %v", err))
	}

	bunDB, err := database.Open(ctx, cfg.Database, log)
	if err != nil {
		log.Fatal("DATABASE", err.Error())
	}
	defer bunDB.Close()

	stream := sse.NewJournalEmitter()
	publishers := ledger.Publishers{stream}

	if cfg.Kafka.Enabled {
		topics := []string{cfg.Kafka.Topics.Entries, cfg.Kafka.Topics.Payouts}
		if err := kafka.EnsureTopicsExist(cfg.Kafka.Brokers, topics, log); err != nil {
			log.Warn("KAFKA", fmt.Sprintf("Topic creation might have failed: %v", err))
		}
		producer := kafka.NewProducer(cfg.Kafka.Brokers, cfg.Kafka.Topics.Entries, cfg.Kafka.Topics.Payouts, log)
		defer producer.Close()
		publishers = append(publishers, producer)
		log.Info("KAFKA", fmt.Sprintf("Publishing journal entries to %s", cfg.Kafka.Topics.Entries))
	} else {
		log.Warn("KAFKA", "Kafka disabled, journal entries are only stored in the database")
	}

	l, err := ledger.Open(ctx, ledger.Options{
		Admin:      admin,
		ListingFee: cfg.Ledger.ListingFee,
		Store:      &ledgerdb.DB{Bun: bunDB},
		Publisher:  publishers,
		Logger:     log,
	})
	if err != nil {
		log.Fatal("LEDGER", fmt.Sprintf("Failed to restore ledger: %v", err))
	}
	stats := l.Stats()
	log.Info("LEDGER", fmt.Sprintf("Ledger ready: %d events, %d tickets, journal at %d", stats.TotalEvents, stats.TotalTickets, stats.JournalSeq))

	var seatHolds *holds.Holds
	if cfg.Redis.Enabled {
		redisClient := connectRedis(ctx, cfg.Redis, log)
		defer redisClient.Close()
		seatHolds = holds.New(redisClient, cfg.Redis.HoldTTL, log)
	}

	var passes *qr.QRGenerator
	if cfg.Auth.QRSecret != "" {
		passes, err = qr.NewQRGenerator(cfg.Auth.QRSecret)
		if err != nil {
			log.Fatal("QR", err.Error())
		}
	} else {
		log.Warn("QR", "QR_SECRET not set, entry passes are disabled")
	}

	handler := ledger_api.NewHandler(l, seatHolds, passes, log)
	handler.Stream = stream

	log.Info("HTTP", "Setting up router and middleware")
	r := chi.NewRouter()
	r.Use(metrics.Middleware)
	r.Handle("/metrics", metrics.Handler())
	authMW := auth.Middleware(newVerifier(ctx, cfg.Auth, log), log)
	handler.RegisterRoutes(r, authMW)
	log.Info("ROUTER", "Ledger routes registered under /api/ledger")

	server := &http.Server{
		Addr:         cfg.Server.Port,
		Handler:      r,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	go func() {
		log.Info("HTTP", fmt.Sprintf("Ticket ledger running on %s", cfg.Server.Port))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("HTTP", fmt.Sprintf("HTTP server error: %v", err))
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	log.Info("APP", "Service started successfully, waiting for shutdown signal")
	<-stop

	log.Info("APP", "Shutdown signal received, initiating graceful shutdown")
	ctxShutdown, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := server.Shutdown(ctxShutdown); err != nil {
		log.Error("HTTP", fmt.Sprintf("Server Shutdown Failed: %v", err))
	} else {
		log.Info("HTTP", "Ticket ledger shutdown complete")
	}
}
