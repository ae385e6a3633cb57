// Package handler exposes the cart, order, and catalog services over HTTP.
// Request and response bodies are encoded with go-faster/jx; prices and
// totals are written as exact fixed-point numbers, never floats.
package handler

import (
	"net/http"

	"github.com/xenking/storefront-api/internal/domain/cart"
	"github.com/xenking/storefront-api/internal/domain/order"
	"github.com/xenking/storefront-api/internal/domain/product"
)

// Handler routes API requests to the domain services.
type Handler struct {
	products product.Repository
	carts    *cart.Service
	orders   *order.Service
	metrics  *Metrics
}

// NewHandler constructs a Handler with the required domain dependencies.
func NewHandler(
	products product.Repository,
	carts *cart.Service,
	orders *order.Service,
	metrics *Metrics,
) *Handler {
	return &Handler{
		products: products,
		carts:    carts,
		orders:   orders,
		metrics:  metrics,
	}
}

// Routes returns the API mux. Catalog reads are public; cart and order
// operations require an authenticated identity, which sec resolves from the
// api_key header.
func (h *Handler) Routes(sec *SecurityHandler) *http.ServeMux {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /api/products", h.ListProducts)
	mux.HandleFunc("GET /api/products/{id}", h.GetProduct)

	mux.Handle("GET /api/cart", sec.Authenticate(http.HandlerFunc(h.GetCart)))
	mux.Handle("POST /api/cart/items", sec.Authenticate(http.HandlerFunc(h.AddCartItem)))
	mux.Handle("PATCH /api/cart/items/{id}", sec.Authenticate(http.HandlerFunc(h.UpdateCartItem)))
	mux.Handle("DELETE /api/cart/items/{id}", sec.Authenticate(http.HandlerFunc(h.RemoveCartItem)))

	mux.Handle("POST /api/orders", sec.Authenticate(http.HandlerFunc(h.PlaceOrder)))
	mux.Handle("GET /api/orders", sec.Authenticate(http.HandlerFunc(h.ListOrders)))

	return mux
}
