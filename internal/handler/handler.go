// Package handler exposes the order placement HTTP API.
package handler

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"

	"github.com/nimbusmart/order-service/internal/domain/order"
)

// Handler serves the order endpoints, delegating placement to the order
// service and lookups to the order repository.
type Handler struct {
	service *order.Service
	orders  order.Repository
}

// New constructs a Handler with the required dependencies.
func New(service *order.Service, orders order.Repository) *Handler {
	return &Handler{
		service: service,
		orders:  orders,
	}
}

// Routes mounts the API endpoints on a fresh chi router.
func (h *Handler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Post("/order", h.placeOrder)
	r.Get("/order/{orderNumber}", h.getOrder)
	return r
}

func writeJSON(w http.ResponseWriter, r *http.Request, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		zctx.From(r.Context()).Error("Writing response failed", zap.Error(err))
	}
}
