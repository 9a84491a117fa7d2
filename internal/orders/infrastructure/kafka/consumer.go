package kafka

import (
	"context"
	"log/slog"

	"github.com/segmentio/kafka-go"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	"github.com/vserve/ordersync/internal/bus"
	"github.com/vserve/ordersync/internal/orders/domain"
	"github.com/vserve/ordersync/pkg/idempotency"
	"github.com/vserve/ordersync/pkg/tracing"
)

// SignalConsumer bridges the broker to the in-process bus: every order event
// from other processes becomes a local change signal, so terminals attached
// here reconcile no matter where the mutation happened. The group id is
// unique per process because every process needs the full stream.
type SignalConsumer struct {
	log    *slog.Logger
	reader *kafka.Reader
	bus    *bus.Bus
	idem   *idempotency.Store
	tracer trace.Tracer
}

func NewSignalConsumer(log *slog.Logger, brokers []string, topic, group string, b *bus.Bus, idem *idempotency.Store) *SignalConsumer {
	r := kafka.NewReader(kafka.ReaderConfig{
		Brokers: brokers,
		Topic:   topic,
		GroupID: group,
	})
	return &SignalConsumer{
		log:    log,
		reader: r,
		bus:    b,
		idem:   idem,
		tracer: otel.Tracer("signal-consumer"),
	}
}

func (c *SignalConsumer) Run(ctx context.Context) error {
	defer c.reader.Close()

	for {
		msg, err := c.reader.FetchMessage(ctx)
		if err != nil {
			return err
		}

		key := c.idem.Key(msg.Topic, msg.Partition, msg.Offset)
		seen, err := c.idem.Seen(ctx, key)
		if err != nil {
			c.log.Error("idempotency check failed", "err", err)
			continue
		}
		if seen {
			_ = c.reader.CommitMessages(ctx, msg)
			continue
		}

		msgCtx := tracing.ExtractKafkaHeaders(ctx, msg.Headers)
		_, span := c.tracer.Start(msgCtx, "RelayChangeSignal")

		sig, ok := signalFrom(msg)
		if ok {
			c.bus.Publish(sig)
		} else {
			c.log.Warn("unscoped order event skipped", "event_type", headerValue(msg.Headers, "event_type"))
		}
		span.End()
		_ = c.reader.CommitMessages(ctx, msg)
	}
}

// signalFrom rebuilds the change signal from message headers alone; the
// payload is never needed to cue a reconcile.
func signalFrom(msg kafka.Message) (domain.ChangeSignal, bool) {
	property := headerValue(msg.Headers, "property_id")
	if property == "" {
		return domain.ChangeSignal{}, false
	}
	sig := domain.ChangeSignal{
		PropertyID: property,
		Channel:    domain.Channel(headerValue(msg.Headers, "channel")),
	}
	switch headerValue(msg.Headers, "event_type") {
	case domain.EventTypeOrderCreated:
		sig.Kind = domain.EventOrderCreated
	case domain.EventTypeOrderDeleted:
		sig.Kind = domain.EventOrderDeleted
	case domain.EventTypeHistoryCleared:
		sig.Kind = domain.EventHistoryCleared
	default:
		sig.Kind = domain.EventOrderUpdated
	}
	return sig, true
}

func headerValue(h []kafka.Header, key string) string {
	for _, hh := range h {
		if hh.Key == key {
			return string(hh.Value)
		}
	}
	return ""
}
