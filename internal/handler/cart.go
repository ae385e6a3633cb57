package handler

import (
	"net/http"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"

	"github.com/xenking/storefront-api/internal/domain/cart"
)

type addItemRequest struct {
	ProductID string
	Quantity  int
}

func decodeAddItemRequest(r *http.Request) (req addItemRequest, err error) {
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

// GetCart returns the caller's cart with items and recomputed totals.
func (h *Handler) GetCart(w http.ResponseWriter, r *http.Request) {
	c, err := h.carts.GetCart(r.Context(), identityFrom(r.Context()))
	if err != nil {
		respondDomainError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, func(e *jx.Encoder) {
		encodeCart(e, c)
	})
}

// AddCartItem adds a product to the caller's cart, merging with an existing
// line for the same product.
func (h *Handler) AddCartItem(w http.ResponseWriter, r *http.Request) {
	req, err := decodeAddItemRequest(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	item, err := h.carts.AddItem(r.Context(), identityFrom(r.Context()), req.ProductID, req.Quantity)
	h.metrics.recordCartAdd(r.Context(), err == nil)
	if err != nil {
		respondDomainError(w, r, err)
		return
	}

	writeJSON(w, http.StatusCreated, func(e *jx.Encoder) {
		encodeCartItem(e, item)
	})
}

// UpdateCartItem replaces a cart line's quantity.
func (h *Handler) UpdateCartItem(w http.ResponseWriter, r *http.Request) {
	var quantity int
	d := jx.Decode(r.Body, 4096)
	err := d.Obj(func(d *jx.Decoder, key string) error {
		if key != "quantity" {
			return d.Skip()
		}
		v, err := d.Int()
		quantity = v
		return err
	})
	if err != nil {
		writeError(w, http.StatusBadRequest, "decode body: "+err.Error())
		return
	}

	item, err := h.carts.UpdateItemQuantity(r.Context(), identityFrom(r.Context()), r.PathValue("id"), quantity)
	if err != nil {
		respondDomainError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, func(e *jx.Encoder) {
		encodeCartItem(e, item)
	})
}

// RemoveCartItem deletes a cart line.
func (h *Handler) RemoveCartItem(w http.ResponseWriter, r *http.Request) {
	err := h.carts.RemoveItem(r.Context(), identityFrom(r.Context()), r.PathValue("id"))
	if err != nil {
		respondDomainError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func encodeCart(e *jx.Encoder, c *cart.Cart) {
	e.Obj(func(e *jx.Encoder) {
		e.Field("id", func(e *jx.Encoder) { e.Str(c.ID) })
		e.Field("user_id", func(e *jx.Encoder) { e.Str(c.UserID) })
		e.Field("items", func(e *jx.Encoder) {
			e.Arr(func(e *jx.Encoder) {
				for i := range c.Items {
					encodeCartItem(e, &c.Items[i])
				}
			})
		})
		e.Field("total_items", func(e *jx.Encoder) { e.Int(c.TotalItems()) })
		e.Field("total_price", func(e *jx.Encoder) { e.Num(jx.Num(c.TotalPrice().StringFixed(2))) })
	})
}

func encodeCartItem(e *jx.Encoder, item *cart.Item) {
	e.Obj(func(e *jx.Encoder) {
		e.Field("id", func(e *jx.Encoder) { e.Str(item.ID) })
		e.Field("product_id", func(e *jx.Encoder) { e.Str(item.ProductID) })
		e.Field("quantity", func(e *jx.Encoder) { e.Int(item.Quantity) })
		e.Field("unit_price", func(e *jx.Encoder) { e.Num(jx.Num(item.UnitPrice.StringFixed(2))) })
		e.Field("subtotal", func(e *jx.Encoder) { e.Num(jx.Num(item.Subtotal().StringFixed(2))) })
	})
}
