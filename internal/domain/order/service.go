package order

import (
	"context"
	"time"

	"github.com/go-faster/sdk/zctx"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/nimbusmart/order-service/internal/inventory"
	"github.com/nimbusmart/order-service/internal/resilience"
	"github.com/nimbusmart/order-service/pkg/tracing"
)

// User-facing outcome messages. The degraded message deliberately carries no
// detail about the underlying failure.
const (
	msgPlaced     = "Order Placed Successfully"
	msgOutOfStock = "Product is not in stock, please try again later"
	msgDegraded   = "Oops! Something went wrong, please order after some time!"
)

// ReasonOutOfStock identifies the business rejection cause on a rejected
// outcome.
const ReasonOutOfStock = "out_of_stock"

// Status classifies a placement outcome.
type Status string

const (
	StatusPlaced   Status = "placed"
	StatusRejected Status = "rejected"
	StatusDegraded Status = "degraded"
)

// Outcome is the user-facing result of a placement attempt. Exactly three
// shapes exist: placed (with order number), rejected (with reason), and
// degraded (generic retry-later message).
type Outcome struct {
	Status      Status
	Message     string
	OrderNumber string
	Reason      string
}

// PlaceOrderRequest holds the input for placing an order.
type PlaceOrderRequest struct {
	Items []LineItem
}

// Service coordinates order placement: it verifies stock through the
// resilience policy, commits the order, and announces it. Concurrent
// placements share only the policy's breaker state and the underlying
// connection pools.
type Service struct {
	orders Repository
	stock  inventory.Checker
	events Publisher
	policy *resilience.Policy[inventory.Availability]
	tracer trace.Tracer
}

// NewService creates an order Service with the required collaborators.
func NewService(
	orders Repository,
	stock inventory.Checker,
	events Publisher,
	policy *resilience.Policy[inventory.Availability],
	tracer trace.Tracer,
) *Service {
	return &Service{
		orders: orders,
		stock:  stock,
		events: events,
		policy: policy,
		tracer: tracer,
	}
}

// PlaceOrder validates the request, checks stock for every line item through
// the resilience policy, saves the order when everything is available, and
// publishes the placed-order event after a successful save.
//
// A validation failure is returned as an error before any remote call. Every
// other path, including transient inventory failures and persistence
// failures, resolves to one of the three Outcome shapes without an error.
func (s *Service) PlaceOrder(ctx context.Context, req PlaceOrderRequest) (*Outcome, error) {
	if err := validate(req); err != nil {
		return nil, err
	}

	o := &Order{
		OrderNumber: uuid.New().String(),
		Items:       append([]LineItem(nil), req.Items...),
		CreatedAt:   time.Now().UTC(),
	}
	skus := o.SkuCodes()
	lg := zctx.From(ctx).With(zap.String("order_number", o.OrderNumber))

	// The span covers only the resilience-wrapped inventory lookup and is
	// closed on every exit path before the commit decision.
	avail, err := tracing.WithSpan(ctx, s.tracer, "inventory-lookup",
		func(ctx context.Context) (inventory.Availability, error) {
			return s.policy.Do(ctx, func(ctx context.Context) (inventory.Availability, error) {
				return s.stock.CheckStock(ctx, skus)
			})
		})
	if err != nil {
		// Fallback path: retries exhausted, circuit open, or deadline
		// exceeded. Nothing was persisted, nothing is published.
		lg.Warn("Inventory lookup failed, serving fallback", zap.Error(err))
		return &Outcome{Status: StatusDegraded, Message: msgDegraded}, nil
	}

	if !avail.AllInStock(skus) {
		lg.Info("Order rejected, items out of stock")
		return &Outcome{Status: StatusRejected, Message: msgOutOfStock, Reason: ReasonOutOfStock}, nil
	}

	if err := s.orders.Save(ctx, o); err != nil {
		lg.Error("Saving order failed", zap.Error(err))
		return &Outcome{Status: StatusDegraded, Message: msgDegraded}, nil
	}

	// The order is durable from here. Notification is at-least-once and
	// best-effort: a publish failure is logged, never rolled back.
	if err := s.events.Publish(ctx, PlacedEvent{OrderNumber: o.OrderNumber}); err != nil {
		lg.Error("Publishing placed-order event failed", zap.Error(err))
	}

	lg.Info("Order placed", zap.Int("line_items", len(o.Items)))
	return &Outcome{Status: StatusPlaced, Message: msgPlaced, OrderNumber: o.OrderNumber}, nil
}

func validate(req PlaceOrderRequest) error {
	if len(req.Items) == 0 {
		return ErrEmptyItems
	}
	for _, item := range req.Items {
		if item.Quantity <= 0 {
			return &InvalidQuantityError{SkuCode: item.SkuCode}
		}
		if item.UnitPrice.IsNegative() {
			return &InvalidPriceError{SkuCode: item.SkuCode}
		}
	}
	return nil
}
