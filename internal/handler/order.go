package handler

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/nimbusmart/order-service/internal/domain/order"
)

type lineItemDTO struct {
	SkuCode   string          `json:"skuCode"`
	Quantity  int             `json:"quantity"`
	UnitPrice decimal.Decimal `json:"unitPrice"`
}

type placeOrderRequest struct {
	LineItems []lineItemDTO `json:"lineItems"`
}

type placeOrderResponse struct {
	Message     string `json:"message"`
	OrderNumber string `json:"orderNumber,omitempty"`
	Reason      string `json:"reason,omitempty"`
}

type errorResponse struct {
	Message string `json:"message"`
}

// placeOrder decodes the order request, delegates to the order service, and
// maps the outcome to a status code: 201 placed, 409 rejected, 503 degraded.
func (h *Handler) placeOrder(w http.ResponseWriter, r *http.Request) {
	var req placeOrderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, r, http.StatusBadRequest, errorResponse{Message: "invalid request body"})
		return
	}

	items := make([]order.LineItem, len(req.LineItems))
	for i, item := range req.LineItems {
		items[i] = order.LineItem{
			SkuCode:   item.SkuCode,
			Quantity:  item.Quantity,
			UnitPrice: item.UnitPrice,
		}
	}

	outcome, err := h.service.PlaceOrder(r.Context(), order.PlaceOrderRequest{Items: items})
	if err != nil {
		writeJSON(w, r, http.StatusBadRequest, errorResponse{Message: validationMessage(err)})
		return
	}

	resp := placeOrderResponse{
		Message:     outcome.Message,
		OrderNumber: outcome.OrderNumber,
		Reason:      outcome.Reason,
	}
	switch outcome.Status {
	case order.StatusPlaced:
		writeJSON(w, r, http.StatusCreated, resp)
	case order.StatusRejected:
		writeJSON(w, r, http.StatusConflict, resp)
	default:
		writeJSON(w, r, http.StatusServiceUnavailable, resp)
	}
}

// getOrder reports whether an order number refers to a saved order.
func (h *Handler) getOrder(w http.ResponseWriter, r *http.Request) {
	orderNumber := chi.URLParam(r, "orderNumber")

	exists, err := h.orders.Exists(r.Context(), orderNumber)
	if err != nil {
		zctx.From(r.Context()).Error("Order lookup failed", zap.Error(err))
		writeJSON(w, r, http.StatusInternalServerError, errorResponse{Message: "lookup failed"})
		return
	}
	if !exists {
		writeJSON(w, r, http.StatusNotFound, errorResponse{Message: "order not found"})
		return
	}
	writeJSON(w, r, http.StatusOK, map[string]string{"orderNumber": orderNumber})
}

// validationMessage returns the request-level error text for known
// validation failures without leaking anything else.
func validationMessage(err error) string {
	var iqErr *order.InvalidQuantityError
	var ipErr *order.InvalidPriceError
	switch {
	case errors.Is(err, order.ErrEmptyItems):
		return order.ErrEmptyItems.Error()
	case errors.As(err, &iqErr):
		return iqErr.Error()
	case errors.As(err, &ipErr):
		return ipErr.Error()
	default:
		return "invalid request"
	}
}
