package main

import (
	"context"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill-redisstream/pkg/redisstream"
	"github.com/caarlos0/env/v11"
	"github.com/redis/go-redis/v9"

	"github.com/stevehere/ethdrop-relay/adapters/events"
	"github.com/stevehere/ethdrop-relay/adapters/registry"
	"github.com/stevehere/ethdrop-relay/adapters/verifier"
	"github.com/stevehere/ethdrop-relay/ports"
	"github.com/stevehere/ethdrop-relay/service"
	"github.com/stevehere/ethdrop-relay/transport/ws"
)

type config struct {
	ListenAddr  string        `env:"LISTEN_ADDR" envDefault:":44021"`
	RedisURL    string        `env:"REDIS_URL"`
	StaticDir   string        `env:"STATIC_DIR"`
	ChainID     int           `env:"CHAIN_ID" envDefault:"280"`
	Statement   string        `env:"SIWE_STATEMENT" envDefault:"ETH Airdrop App for ZkSync 2.0 Testnet"`
	Freshness   time.Duration `env:"SIWE_FRESHNESS" envDefault:"5m"`
	LoginGrace  time.Duration `env:"LOGIN_GRACE" envDefault:"7m"`
	Cooldown    time.Duration `env:"BROADCAST_COOLDOWN" envDefault:"5m"`
	SweepPeriod time.Duration `env:"SWEEP_PERIOD" envDefault:"30s"`
}

func main() {
	var cfg config
	if err := env.Parse(&cfg); err != nil {
		log.Fatalf("Failed to parse config: %v", err)
	}

	// Broadcast and eviction events go to a Redis stream when one is
	// configured; a single instance runs fine without.
	var eventPub ports.EventPublisher = events.NewNopPublisher()
	if cfg.RedisURL != "" {
		opts, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			log.Fatalf("Failed to parse Redis URL: %v", err)
		}
		redisClient := redis.NewClient(opts)

		logger := watermill.NewStdLogger(false, false)
		publisher, err := redisstream.NewPublisher(
			redisstream.PublisherConfig{
				Client: redisClient,
			},
			logger,
		)
		if err != nil {
			log.Fatalf("Failed to create Redis publisher: %v", err)
		}
		eventPub = events.NewWatermillPublisher(publisher)
	}

	svc := service.NewRelayService(
		registry.NewMemoryRegistry(),
		verifier.NewSIWEVerifier(),
		eventPub,
		service.Config{
			ChainID:     cfg.ChainID,
			Statement:   cfg.Statement,
			Freshness:   cfg.Freshness,
			LoginGrace:  cfg.LoginGrace,
			Cooldown:    cfg.Cooldown,
			SweepPeriod: cfg.SweepPeriod,
		},
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go svc.RunSweeper(ctx)

	router := ws.SetupRouter(svc, cfg.StaticDir)
	server := &http.Server{Addr: cfg.ListenAddr, Handler: router}

	go func() {
		log.Printf("relay listening on %s", cfg.ListenAddr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Failed to start server: %v", err)
		}
	}()

	<-ctx.Done()
	log.Println("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Printf("Shutdown error: %v", err)
	}
}
