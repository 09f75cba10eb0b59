package order

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// Sentinel errors for order validation.
var ErrEmptyItems = fmt.Errorf("line items required")

// InvalidQuantityError indicates a line item has a non-positive quantity.
type InvalidQuantityError struct {
	SkuCode string
}

func (e *InvalidQuantityError) Error() string {
	return fmt.Sprintf("quantity must be greater than 0 for sku %s", e.SkuCode)
}

// InvalidPriceError indicates a line item carries a negative unit price.
type InvalidPriceError struct {
	SkuCode string
}

func (e *InvalidPriceError) Error() string {
	return fmt.Sprintf("unit price must not be negative for sku %s", e.SkuCode)
}

// LineItem is a single position of an order. Immutable once constructed.
type LineItem struct {
	SkuCode   string          `json:"skuCode"`
	Quantity  int             `json:"quantity"`
	UnitPrice decimal.Decimal `json:"unitPrice"`
}

// Order is a customer order identified by a globally unique order number.
// It becomes durable only after Repository.Save succeeds and is never
// mutated afterwards.
type Order struct {
	OrderNumber string
	Items       []LineItem
	CreatedAt   time.Time
}

// SkuCodes returns the sku code of every line item, in item order.
// Duplicates are not collapsed; the inventory contract tolerates repeats.
func (o *Order) SkuCodes() []string {
	codes := make([]string, len(o.Items))
	for i, item := range o.Items {
		codes[i] = item.SkuCode
	}
	return codes
}

// PlacedEvent is the notification payload emitted after an order has been
// durably saved. The order number keys downstream deduplication.
type PlacedEvent struct {
	OrderNumber string `json:"orderNumber"`
}

// Repository defines persistence operations for orders. An order and its
// line items are saved as a single unit; there is no partial save.
type Repository interface {
	Save(ctx context.Context, order *Order) error
	Exists(ctx context.Context, orderNumber string) (bool, error)
}

// Publisher delivers placed-order notifications at least once. Publish must
// not block on broker acknowledgment; delivery failures are reported out of
// band and never affect an already-decided order outcome.
type Publisher interface {
	Publish(ctx context.Context, event PlacedEvent) error
}
