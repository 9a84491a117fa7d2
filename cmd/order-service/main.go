package main

import (
	"context"
	"net/http"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/vserve/ordersync/internal/bus"
	"github.com/vserve/ordersync/internal/catalog"
	"github.com/vserve/ordersync/internal/clock"
	"github.com/vserve/ordersync/internal/config"
	"github.com/vserve/ordersync/internal/orders/application"
	orderhttp "github.com/vserve/ordersync/internal/orders/infrastructure/http"
	orderkafka "github.com/vserve/ordersync/internal/orders/infrastructure/kafka"
	orderpg "github.com/vserve/ordersync/internal/orders/infrastructure/postgres"
	"github.com/vserve/ordersync/pkg/idempotency"
	"github.com/vserve/ordersync/pkg/logging"
	"github.com/vserve/ordersync/pkg/outbox"
	"github.com/vserve/ordersync/pkg/shutdown"
	"github.com/vserve/ordersync/pkg/tracing"
)

func main() {
	log := logging.New("order-service")

	ctx, cancel := shutdown.WithSignals(context.Background())
	defer cancel()

	cfg := config.Load()

	tp, err := tracing.Init(ctx, "order-service", cfg.OTLPEndpoint, log)
	if err != nil {
		log.Error("otel init failed", "err", err)
		os.Exit(1)
	}
	defer func() { _ = tp.Shutdown(ctx) }()

	// Postgres
	pool, err := pgxpool.New(ctx, cfg.PostgresURL)
	if err != nil {
		log.Error("pg connect failed", "err", err)
		os.Exit(1)
	}
	defer pool.Close()

	if err := orderpg.Migrate(ctx, pool); err != nil {
		log.Error("migrate failed", "err", err)
		os.Exit(1)
	}

	// Kafka producer for the outbox relay
	writer := orderkafka.NewWriter(cfg.KafkaBrokers)
	defer writer.Close()

	// Redis-backed dedupe for the signal consumer
	rdb := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
	defer rdb.Close()
	idem := idempotency.NewStore(rdb, 24*time.Hour)

	// Change signal plane
	changeBus := bus.New()
	group := cfg.ConsumerGroup
	if group == "" {
		// Every process needs the full stream, so the group is per-instance.
		group = "order-service-signals-" + uuid.NewString()
	}
	signals := orderkafka.NewSignalConsumer(log, cfg.KafkaBrokers, cfg.EventsTopic, group, changeBus, idem)

	// Repository, outbox relay, service
	repo := orderpg.NewRepository(log, pool)
	store := orderpg.NewOutboxStore(log, pool)
	dispatch := outbox.NewDispatcher(log, writer, cfg.EventsTopic)
	relay := outbox.NewRelay(log, store, dispatch, "order-service-relay")

	menu := catalog.NewClient(log, cfg.CatalogURL)
	svc := application.NewService(log, repo, menu, changeBus, clock.NewSystem())
	handler := orderhttp.NewHandler(log, svc, changeBus)

	srv := &http.Server{
		Addr:        cfg.HTTPAddr,
		Handler:     handler.Routes(),
		ReadTimeout: 5 * time.Second,
		// No WriteTimeout: the SSE stream must stay open indefinitely.
	}

	go func() {
		if err := relay.Run(ctx); err != nil {
			log.Error("relay stopped with error", "err", err)
		}
	}()

	go func() {
		if err := signals.Run(ctx); err != nil && ctx.Err() == nil {
			log.Error("signal consumer stopped with error", "err", err)
		}
	}()

	go func() {
		log.Info("http listening", "addr", cfg.HTTPAddr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("http server error", "err", err)
			cancel()
		}
	}()

	<-ctx.Done()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	_ = srv.Shutdown(shutdownCtx)
	log.Info("order-service shutdown complete")
}
