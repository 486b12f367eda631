package handler

import (
	"net/http"

	"github.com/go-faster/jx"
)

// TopItems handles GET /items/top?n=N, ranking items by units sold.
func (h *Handler) TopItems(w http.ResponseWriter, r *http.Request) {
	n, err := queryInt(r, "n", h.topDefault)
	if err != nil {
		writeError(w, r, err)
		return
	}

	items, err := h.catalog.TopSelling(r.Context(), n)
	if err != nil {
		writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, func(e *jx.Encoder) {
		e.Arr(func(e *jx.Encoder) {
			for _, it := range items {
				encodeItemSummary(e, it)
			}
		})
	})
}

// ActiveUserCount handles GET /users/active-count?days=D.
func (h *Handler) ActiveUserCount(w http.ResponseWriter, r *http.Request) {
	days, err := queryInt(r, "days", h.activeDays)
	if err != nil {
		writeError(w, r, err)
		return
	}

	n, err := h.users.CountActiveInWindow(r.Context(), days)
	if err != nil {
		writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, func(e *jx.Encoder) {
		e.Obj(func(e *jx.Encoder) {
			e.Field("count", func(e *jx.Encoder) { e.Int(n) })
		})
	})
}

// UserOrders handles GET /users/{id}/orders.
func (h *Handler) UserOrders(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, r, err)
		return
	}

	u, err := h.users.Get(r.Context(), id)
	if err != nil {
		writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, func(e *jx.Encoder) { encodeUserOrders(e, u) })
}
