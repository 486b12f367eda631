package handler

import (
	"net/http"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"

	"github.com/xenking/shopkeep/internal/domain/item"
	"github.com/xenking/shopkeep/internal/domain/order"
	"github.com/xenking/shopkeep/internal/domain/user"
	"github.com/xenking/shopkeep/pkg/httpmiddleware"
)

// Machine-readable error kinds returned in error bodies.
const (
	kindInvalidRequest    = "invalid_request"
	kindInvalidOrder      = "invalid_order"
	kindDuplicateOrder    = "duplicate_order"
	kindNotFound          = "not_found"
	kindInvalidTransition = "invalid_transition"
	kindInternal          = "internal"
)

// writeError maps domain errors to client-visible responses. Anything it does
// not recognise is logged and reported as 500.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	var (
		reqErr     *requestError
		invalidErr *order.InvalidOrderError
		limitErr   *item.InvalidLimitError
		windowErr  *user.InvalidWindowError
	)
	switch {
	case errors.As(err, &reqErr):
		httpmiddleware.WriteError(w, http.StatusBadRequest, kindInvalidRequest, reqErr.Error())
	case errors.As(err, &invalidErr):
		httpmiddleware.WriteError(w, http.StatusBadRequest, kindInvalidOrder, invalidErr.Error())
	case errors.As(err, &limitErr):
		httpmiddleware.WriteError(w, http.StatusBadRequest, kindInvalidRequest, limitErr.Error())
	case errors.As(err, &windowErr):
		httpmiddleware.WriteError(w, http.StatusBadRequest, kindInvalidRequest, windowErr.Error())
	case errors.Is(err, order.ErrDuplicateOrder):
		httpmiddleware.WriteError(w, http.StatusConflict, kindDuplicateOrder,
			"an identical pending order already exists for this account")
	case errors.Is(err, order.ErrInvalidTransition):
		httpmiddleware.WriteError(w, http.StatusConflict, kindInvalidTransition, err.Error())
	case errors.Is(err, order.ErrNotFound),
		errors.Is(err, user.ErrNotFound),
		errors.Is(err, item.ErrNotFound):
		httpmiddleware.WriteError(w, http.StatusNotFound, kindNotFound, err.Error())
	default:
		zctx.From(r.Context()).Error("Request failed",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Error(err),
		)
		httpmiddleware.WriteError(w, http.StatusInternalServerError, kindInternal, "internal server error")
	}
}

// writeSubmitError is writeError for order submission, where a reference to
// an unknown user or item is a semantic error in the request body.
func writeSubmitError(w http.ResponseWriter, r *http.Request, err error) {
	if errors.Is(err, user.ErrNotFound) || errors.Is(err, item.ErrNotFound) {
		httpmiddleware.WriteError(w, http.StatusUnprocessableEntity, kindNotFound, err.Error())
		return
	}
	writeError(w, r, err)
}
