package handler

import (
	"net/http"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
	"github.com/go-faster/sdk/zctx"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/xenking/storefront-api/internal/domain/cart"
	"github.com/xenking/storefront-api/internal/domain/order"
	"github.com/xenking/storefront-api/internal/domain/product"
)

// writeJSON encodes a response body built by fn and writes it with the given
// status code.
func writeJSON(w http.ResponseWriter, status int, fn func(e *jx.Encoder)) {
	var e jx.Encoder
	fn(&e)

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(e.Bytes())
}

// writeError writes the standard {"code":...,"message":...} error body.
func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, func(e *jx.Encoder) {
		e.Obj(func(e *jx.Encoder) {
			e.Field("code", func(e *jx.Encoder) { e.Int(status) })
			e.Field("message", func(e *jx.Encoder) { e.Str(message) })
		})
	})
}

// respondDomainError maps domain errors to HTTP responses. Unknown errors are
// logged and reported as 500 without leaking internals.
func respondDomainError(w http.ResponseWriter, r *http.Request, err error) {
	var (
		cartQtyErr    *cart.InvalidQuantityError
		orderQtyErr   *order.InvalidQuantityError
		cartStockErr  *cart.InsufficientStockError
		orderStockErr *order.InsufficientStockError
	)

	switch {
	case errors.As(err, &cartQtyErr), errors.As(err, &orderQtyErr):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, product.ErrNotFound),
		errors.Is(err, cart.ErrNotFound),
		errors.Is(err, cart.ErrItemNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, cart.ErrForbidden):
		writeError(w, http.StatusForbidden, "forbidden")
	case errors.Is(err, cart.ErrConflict):
		writeError(w, http.StatusConflict, err.Error())
	case errors.As(err, &cartStockErr), errors.As(err, &orderStockErr):
		writeError(w, http.StatusUnprocessableEntity, err.Error())
	default:
		trace.SpanFromContext(r.Context()).RecordError(err)
		zctx.From(r.Context()).Error("request failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}
