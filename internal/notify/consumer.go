package notify

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/segmentio/kafka-go"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	"github.com/vserve/ordersync/internal/orders/domain"
	"github.com/vserve/ordersync/pkg/idempotency"
	"github.com/vserve/ordersync/pkg/tracing"
)

// Consumer feeds the dispatcher from the order event stream. Only
// OrderStatusChanged events are of interest; everything else is committed and
// skipped. Messages are committed regardless of gateway outcome: delivery is
// best-effort and a failed send must not be replayed forever.
type Consumer struct {
	log        *slog.Logger
	reader     *kafka.Reader
	dispatcher *Dispatcher
	idem       *idempotency.Store
	tracer     trace.Tracer
}

func NewConsumer(log *slog.Logger, brokers []string, topic, group string, dispatcher *Dispatcher, idem *idempotency.Store) *Consumer {
	r := kafka.NewReader(kafka.ReaderConfig{
		Brokers: brokers,
		Topic:   topic,
		GroupID: group,
	})
	return &Consumer{
		log:        log,
		reader:     r,
		dispatcher: dispatcher,
		idem:       idem,
		tracer:     otel.Tracer("notification-consumer"),
	}
}

func (c *Consumer) Run(ctx context.Context) error {
	defer c.reader.Close()

	for {
		msg, err := c.reader.FetchMessage(ctx)
		if err != nil {
			return err
		}
		if headerValue(msg.Headers, "event_type") != domain.EventTypeOrderStatusChanged {
			_ = c.reader.CommitMessages(ctx, msg)
			continue
		}

		key := c.idem.Key(msg.Topic, msg.Partition, msg.Offset)
		seen, err := c.idem.Seen(ctx, key)
		if err != nil {
			c.log.Error("idempotency check failed", "err", err)
			continue
		}
		if seen {
			c.log.Info("duplicate message skipped", "key", key)
			_ = c.reader.CommitMessages(ctx, msg)
			continue
		}

		msgCtx := tracing.ExtractKafkaHeaders(ctx, msg.Headers)
		msgCtx, span := c.tracer.Start(msgCtx, "DispatchStatusNotification")

		var ev domain.OrderStatusChanged
		if err := json.Unmarshal(msg.Value, &ev); err != nil {
			c.log.Error("unmarshal failed", "err", err)
			span.End()
			_ = c.reader.CommitMessages(ctx, msg)
			continue
		}

		c.dispatcher.Dispatch(msgCtx, ev)
		span.End()
		_ = c.reader.CommitMessages(ctx, msg)
	}
}

func headerValue(h []kafka.Header, key string) string {
	for _, hh := range h {
		if hh.Key == key {
			return string(hh.Value)
		}
	}
	return ""
}
