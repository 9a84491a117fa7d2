package main

import (
	"context"
	"os"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/vserve/ordersync/internal/config"
	"github.com/vserve/ordersync/internal/notify"
	"github.com/vserve/ordersync/pkg/idempotency"
	"github.com/vserve/ordersync/pkg/logging"
	"github.com/vserve/ordersync/pkg/shutdown"
	"github.com/vserve/ordersync/pkg/tracing"
)

func main() {
	log := logging.New("notification-service")

	ctx, cancel := shutdown.WithSignals(context.Background())
	defer cancel()

	cfg := config.Load()

	tp, err := tracing.Init(ctx, "notification-service", cfg.OTLPEndpoint, log)
	if err != nil {
		log.Error("otel init failed", "err", err)
		os.Exit(1)
	}
	defer func() { _ = tp.Shutdown(ctx) }()

	rdb := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
	defer rdb.Close()
	idem := idempotency.NewStore(rdb, 24*time.Hour)

	gateway := notify.NewHTTPGateway(cfg.GatewayURL)
	dispatcher := notify.NewDispatcher(log, gateway)

	group := cfg.ConsumerGroup
	if group == "" {
		group = "notification-service"
	}
	consumer := notify.NewConsumer(log, cfg.KafkaBrokers, cfg.EventsTopic, group, dispatcher, idem)

	log.Info("notification consumer starting", "topic", cfg.EventsTopic, "group", group)
	if err := consumer.Run(ctx); err != nil && ctx.Err() == nil {
		log.Error("consumer stopped with error", "err", err)
		os.Exit(1)
	}
	log.Info("notification-service shutdown complete")
}
