package handler

import (
	"net/http"

	"github.com/go-faster/jx"
)

// CreateOrder handles POST /orders.
func (h *Handler) CreateOrder(w http.ResponseWriter, r *http.Request) {
	req, err := decodeCreateOrder(w, r)
	if err != nil {
		writeError(w, r, err)
		return
	}

	id, err := h.orders.Submit(r.Context(), req.AccountNumber, req.Lines)
	if err != nil {
		writeSubmitError(w, r, err)
		return
	}

	writeJSON(w, http.StatusCreated, func(e *jx.Encoder) {
		e.Obj(func(e *jx.Encoder) {
			e.Field("order_id", func(e *jx.Encoder) { e.Int64(id) })
		})
	})
}

// GetOrder handles GET /orders/{id}.
func (h *Handler) GetOrder(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, r, err)
		return
	}

	o, err := h.orders.Get(r.Context(), id)
	if err != nil {
		writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, func(e *jx.Encoder) { encodeOrder(e, o) })
}

// CompleteOrder handles POST /orders/{id}/complete. Line items that could not
// be fulfilled are listed under "failures"; the order is completed anyway.
func (h *Handler) CompleteOrder(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, r, err)
		return
	}

	report, err := h.orders.Complete(r.Context(), id)
	if err != nil {
		writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, func(e *jx.Encoder) {
		e.Obj(func(e *jx.Encoder) {
			e.Field("order", func(e *jx.Encoder) { encodeOrder(e, report.Order) })
			e.Field("failures", func(e *jx.Encoder) {
				e.Arr(func(e *jx.Encoder) {
					for _, f := range report.Failures {
						encodeFailure(e, f)
					}
				})
			})
		})
	})
}

// CancelOrder handles POST /orders/{id}/cancel.
func (h *Handler) CancelOrder(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, r, err)
		return
	}

	changed, err := h.orders.Cancel(r.Context(), id)
	if err != nil {
		writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, func(e *jx.Encoder) {
		e.Obj(func(e *jx.Encoder) {
			e.Field("order_id", func(e *jx.Encoder) { e.Int64(id) })
			e.Field("cancelled", func(e *jx.Encoder) { e.Bool(changed) })
		})
	})
}

// CancelOrders handles POST /orders/cancel: it cancels the active order of
// each listed account and reports how many were cancelled.
func (h *Handler) CancelOrders(w http.ResponseWriter, r *http.Request) {
	ids, err := decodeAccountIDs(w, r)
	if err != nil {
		writeError(w, r, err)
		return
	}

	n, err := h.orders.CancelActive(r.Context(), ids)
	if err != nil {
		writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, func(e *jx.Encoder) {
		e.Obj(func(e *jx.Encoder) {
			e.Field("cancelled_count", func(e *jx.Encoder) { e.Int(n) })
		})
	})
}
