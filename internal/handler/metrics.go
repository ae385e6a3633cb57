package handler

import (
	"context"

	"github.com/go-faster/errors"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Metrics holds the domain-level counters the handlers record alongside the
// transport-level instrumentation.
type Metrics struct {
	cartItemsAdded metric.Int64Counter
	ordersPlaced   metric.Int64Counter
}

// NewMetrics registers the handler counters on the given provider.
func NewMetrics(mp metric.MeterProvider) (*Metrics, error) {
	meter := mp.Meter("storefront-api/handler")

	cartItemsAdded, err := meter.Int64Counter("cart.items.added",
		metric.WithDescription("Cart item additions, including merges into existing lines"),
	)
	if err != nil {
		return nil, errors.Wrap(err, "create cart items counter")
	}

	ordersPlaced, err := meter.Int64Counter("orders.placed",
		metric.WithDescription("Orders created"),
	)
	if err != nil {
		return nil, errors.Wrap(err, "create orders counter")
	}

	return &Metrics{
		cartItemsAdded: cartItemsAdded,
		ordersPlaced:   ordersPlaced,
	}, nil
}

func (m *Metrics) recordCartAdd(ctx context.Context, ok bool) {
	m.cartItemsAdded.Add(ctx, 1, metric.WithAttributes(outcome(ok)))
}

func (m *Metrics) recordOrder(ctx context.Context, ok bool) {
	m.ordersPlaced.Add(ctx, 1, metric.WithAttributes(outcome(ok)))
}

func outcome(ok bool) attribute.KeyValue {
	if ok {
		return attribute.String("outcome", "ok")
	}
	return attribute.String("outcome", "error")
}
