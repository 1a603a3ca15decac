package order

import (
	"context"
	"encoding/json"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/gcs-commerce/orderhub/internal/config"
	"github.com/gcs-commerce/orderhub/internal/messaging"
	ordersvc "github.com/gcs-commerce/orderhub/internal/service/order"
	"github.com/gcs-commerce/orderhub/internal/worker"
)

var workerTracer = otel.Tracer("github.com/gcs-commerce/orderhub/worker/order")

// Module registers order-related worker handlers.
var Module = fx.Module("worker_order",
	fx.Provide(
		fx.Annotate(
			NewOrderCreatedHandler,
			fx.ResultTags(`group:"worker.handlers"`),
		),
	),
)

// NewOrderCreatedHandler sets up the handler that turns created events into
// mail notifications. The event headers carry the producer's trace context,
// which is restored before processing.
func NewOrderCreatedHandler(logger *zap.Logger, cfg config.Config) worker.HandlerRegistration {
	handler := func(ctx context.Context, msg messaging.Message) error {
		ctx = messaging.ExtractTrace(ctx, msg.Headers)
		ctx, span := workerTracer.Start(ctx, "worker.orders.mail_notification", trace.WithAttributes(
			attribute.String("messaging.topic", msg.Topic),
		))
		defer span.End()

		var event ordersvc.OrderCreatedEvent
		if err := json.Unmarshal(msg.Value, &event); err != nil {
			logger.Error("failed to decode order created", zap.Error(err))

			span.RecordError(err)
			span.SetStatus(codes.Error, "decode error")
			return err
		}
		logger.Info("mail notification dispatched",
			zap.String("id", event.ID.String()),
			zap.String("number", event.Number),
			zap.String("username", event.Username),
			zap.String("total", event.TotalAmount.String()),
		)

		return nil
	}

	return worker.HandlerRegistration{
		Topic:   cfg.Messaging.Kafka.Topic,
		Handler: handler,
	}
}
