package observability

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// OrderMetrics counts the write-path outcomes worth alerting on: orders
// placed, number collisions burned against the retry budget, and optimistic
// lock conflicts surfaced to clients.
type OrderMetrics struct {
	created    metric.Int64Counter
	collisions metric.Int64Counter
	conflicts  metric.Int64Counter
}

// NewOrderMetrics registers the order counters on the global meter. The
// global provider delegates, so construction may run before the manager
// installs the real provider.
func NewOrderMetrics() (*OrderMetrics, error) {
	meter := otel.Meter("github.com/gcs-commerce/orderhub/observability")

	created, err := meter.Int64Counter("orders_created_total",
		metric.WithDescription("Orders successfully placed."))
	if err != nil {
		return nil, err
	}
	collisions, err := meter.Int64Counter("order_number_collisions_total",
		metric.WithDescription("Order number collisions retried during placement."))
	if err != nil {
		return nil, err
	}
	conflicts, err := meter.Int64Counter("order_version_conflicts_total",
		metric.WithDescription("Updates rejected because the order changed concurrently."))
	if err != nil {
		return nil, err
	}

	return &OrderMetrics{created: created, collisions: collisions, conflicts: conflicts}, nil
}

// OrderCreated records a placed order and the attempts it took.
func (m *OrderMetrics) OrderCreated(ctx context.Context, attempts int) {
	if m == nil {
		return
	}
	m.created.Add(ctx, 1, metric.WithAttributes(attribute.Int("attempts", attempts)))
}

// NumberCollision records one burned retry attempt.
func (m *OrderMetrics) NumberCollision(ctx context.Context) {
	if m == nil {
		return
	}
	m.collisions.Add(ctx, 1)
}

// VersionConflict records an update lost to a concurrent writer.
func (m *OrderMetrics) VersionConflict(ctx context.Context) {
	if m == nil {
		return
	}
	m.conflicts.Add(ctx, 1)
}
