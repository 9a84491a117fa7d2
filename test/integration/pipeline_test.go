package integration

import (
	"context"
	"io"
	"log/slog"
	"os"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/vserve/ordersync/internal/bus"
	"github.com/vserve/ordersync/internal/clock"
	"github.com/vserve/ordersync/internal/orders/application"
	"github.com/vserve/ordersync/internal/orders/domain"
	orderkafka "github.com/vserve/ordersync/internal/orders/infrastructure/kafka"
	orderpg "github.com/vserve/ordersync/internal/orders/infrastructure/postgres"
	"github.com/vserve/ordersync/pkg/idempotency"
	"github.com/vserve/ordersync/pkg/outbox"
)

type staticCatalog struct{}

func (staticCatalog) Item(_ context.Context, _, itemID string) (application.CatalogItem, error) {
	return application.CatalogItem{ID: itemID, Name: "Club Sandwich", UnitPriceCents: 5000}, nil
}

// TestOrderChangePipeline drives a mutation through the full plane: postgres
// write + outbox row, relay to kafka, consumer dedupe via redis, and finally
// a change signal on a subscribing process's bus. Needs docker, so it is
// opt-in.
func TestOrderChangePipeline(t *testing.T) {
	if os.Getenv("ORDERSYNC_E2E") == "" {
		t.Skip("set ORDERSYNC_E2E=1 to run the container pipeline test")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	env, err := Setup(ctx)
	if err != nil {
		t.Skipf("containers unavailable: %v", err)
	}
	defer env.Teardown(context.Background())

	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	const topic = "order.events"
	const property = "prop-e2e"

	pool, err := pgxpool.New(ctx, env.PGURL)
	if err != nil {
		t.Fatalf("pg connect: %v", err)
	}
	defer pool.Close()
	if err := orderpg.Migrate(ctx, pool); err != nil {
		t.Fatalf("migrate: %v", err)
	}

	opts, err := redis.ParseURL(env.RedisAddr)
	if err != nil {
		t.Fatalf("redis url: %v", err)
	}
	rdb := redis.NewClient(opts)
	defer rdb.Close()
	idem := idempotency.NewStore(rdb, time.Hour)

	// The "remote terminal" side: its bus is fed only by the kafka consumer,
	// never by the originating service.
	remoteBus := bus.New()
	consumer := orderkafka.NewSignalConsumer(log, env.Brokers, topic, "pipeline-signals", remoteBus, idem)
	go func() { _ = consumer.Run(ctx) }()

	writer := orderkafka.NewWriter(env.Brokers)
	defer writer.Close()
	repo := orderpg.NewRepository(log, pool)
	store := orderpg.NewOutboxStore(log, pool)
	relay := outbox.NewRelay(log, store, outbox.NewDispatcher(log, writer, topic), "pipeline-relay")
	go func() { _ = relay.Run(ctx) }()

	sub := remoteBus.Subscribe(property)
	defer sub.Unsubscribe()

	svc := application.NewService(log, repo, staticCatalog{}, bus.New(), clock.NewSystem())
	o, err := svc.CreateOrder(ctx, application.CreateOrderInput{
		PropertyID: property,
		Channel:    domain.ChannelFood,
		Guest:      domain.Guest{Name: "Ana", Locator: "room-412"},
		Items:      []application.ItemRequest{{CatalogItemID: "cat-sandwich", Quantity: 1}},
	})
	if err != nil {
		t.Fatalf("create order: %v", err)
	}

	select {
	case sig := <-sub.Signals():
		if sig.PropertyID != property {
			t.Fatalf("signal for wrong property: %+v", sig)
		}
	case <-time.After(90 * time.Second):
		t.Fatal("no change signal reached the remote bus")
	}

	got, err := repo.Get(ctx, o.ID)
	if err != nil {
		t.Fatalf("get after signal: %v", err)
	}
	if got.Status != domain.StatusPending {
		t.Fatalf("expected pending, got %s", got.Status)
	}
}
