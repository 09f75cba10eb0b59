package inventory

import (
	"context"

	"github.com/go-faster/errors"
)

// Transient failure classes of the stock check. Both are eligible for retry
// under the resilience policy guarding the call.
var (
	// ErrUnavailable indicates a transport failure or a non-success status
	// from the inventory service.
	ErrUnavailable = errors.New("inventory service unavailable")

	// ErrMalformedResponse indicates the inventory service answered with a
	// body that could not be parsed into availability entries.
	ErrMalformedResponse = errors.New("malformed inventory response")
)

// Availability maps a sku code to whether it has positive stock.
type Availability map[string]bool

// AllInStock reports whether every given sku code is in stock. Codes absent
// from the map count as out of stock.
func (a Availability) AllInStock(skuCodes []string) bool {
	for _, code := range skuCodes {
		if !a[code] {
			return false
		}
	}
	return true
}

// Checker performs a remote stock check for a set of sku codes.
type Checker interface {
	CheckStock(ctx context.Context, skuCodes []string) (Availability, error)
}
