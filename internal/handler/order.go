package handler

import (
	"net/http"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"

	"github.com/xenking/storefront-api/internal/domain/order"
)

type placeOrderRequest struct {
	ProductID string
	Quantity  int
}

func decodePlaceOrderRequest(r *http.Request) (req placeOrderRequest, err error) {
	d := jx.Decode(r.Body, 4096)
	err = d.Obj(func(d *jx.Decoder, key string) error {
		switch key {
		case "product_id":
			v, err := d.Str()
			req.ProductID = v
			return err
		case "quantity":
			v, err := d.Int()
			req.Quantity = v
			return err
		default:
			return d.Skip()
		}
	})
	if err != nil {
		return req, errors.Wrap(err, "decode body")
	}
	if req.ProductID == "" {
		return req, errors.New("product_id is required")
	}
	return req, nil
}

// PlaceOrder creates an immutable order with a server-computed total. The
// total is derived from the catalog price at this instant; it is not
// writable by the caller.
func (h *Handler) PlaceOrder(w http.ResponseWriter, r *http.Request) {
	req, err := decodePlaceOrderRequest(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	o, err := h.orders.PlaceOrder(r.Context(), req.ProductID, req.Quantity)
	h.metrics.recordOrder(r.Context(), err == nil)
	if err != nil {
		respondDomainError(w, r, err)
		return
	}

	writeJSON(w, http.StatusCreated, func(e *jx.Encoder) {
		encodeOrder(e, o)
	})
}

// ListOrders returns all orders, most recent first.
func (h *Handler) ListOrders(w http.ResponseWriter, r *http.Request) {
	orders, err := h.orders.ListOrders(r.Context())
	if err != nil {
		respondDomainError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, func(e *jx.Encoder) {
		e.Arr(func(e *jx.Encoder) {
			for i := range orders {
				encodeOrder(e, &orders[i])
			}
		})
	})
}

func encodeOrder(e *jx.Encoder, o *order.Order) {
	e.Obj(func(e *jx.Encoder) {
		e.Field("id", func(e *jx.Encoder) { e.Str(o.ID) })
		e.Field("product_id", func(e *jx.Encoder) { e.Str(o.ProductID) })
		e.Field("quantity", func(e *jx.Encoder) { e.Int(o.Quantity) })
		e.Field("total", func(e *jx.Encoder) { e.Num(jx.Num(o.Total.StringFixed(2))) })
		e.Field("created_at", func(e *jx.Encoder) { e.Str(o.CreatedAt.Format(time.RFC3339)) })
	})
}
