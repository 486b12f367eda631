// Package handler exposes the order, catalog and user operations over HTTP.
package handler

import (
	"context"

	"github.com/go-chi/chi/v5"

	"github.com/xenking/shopkeep/internal/domain/item"
	"github.com/xenking/shopkeep/internal/domain/order"
	"github.com/xenking/shopkeep/internal/domain/user"
)

// OrderService is the order lifecycle used by the handlers.
// Satisfied by *order.Service.
type OrderService interface {
	Submit(ctx context.Context, accountNumber int64, lines []order.Line) (int64, error)
	Get(ctx context.Context, id int64) (*order.Order, error)
	Complete(ctx context.Context, id int64) (*order.CompletionReport, error)
	Cancel(ctx context.Context, id int64) (bool, error)
	CancelActive(ctx context.Context, accountIDs []int64) (int, error)
}

// Catalog reports on catalog items. Satisfied by *item.Catalog.
type Catalog interface {
	TopSelling(ctx context.Context, n int) ([]item.Item, error)
}

// Directory reports on users. Satisfied by *user.Directory.
type Directory interface {
	Get(ctx context.Context, id int64) (*user.User, error)
	CountActiveInWindow(ctx context.Context, days int) (int, error)
}

// HandlerConfig holds non-dependency configuration for the Handler.
type HandlerConfig struct {
	// TopDefault is the report size of /items/top when n is omitted.
	TopDefault int
	// ActiveDays is the window of /users/active-count when days is omitted.
	ActiveDays int
}

// Handler serves the HTTP API, delegating business logic to the order
// service, the item catalog and the user directory.
type Handler struct {
	orders     OrderService
	catalog    Catalog
	users      Directory
	topDefault int
	activeDays int
}

// NewHandler constructs a Handler with the required domain dependencies.
func NewHandler(cfg HandlerConfig, orders OrderService, catalog Catalog, users Directory) *Handler {
	if cfg.TopDefault <= 0 {
		cfg.TopDefault = 3
	}
	if cfg.ActiveDays <= 0 {
		cfg.ActiveDays = 3
	}
	return &Handler{
		orders:     orders,
		catalog:    catalog,
		users:      users,
		topDefault: cfg.TopDefault,
		activeDays: cfg.ActiveDays,
	}
}

// RegisterRoutes registers every API endpoint on r.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/orders", func(r chi.Router) {
		r.Post("/", h.CreateOrder)
		r.Post("/cancel", h.CancelOrders)
		r.Get("/{id}", h.GetOrder)
		r.Post("/{id}/complete", h.CompleteOrder)
		r.Post("/{id}/cancel", h.CancelOrder)
	})
	r.Get("/items/top", h.TopItems)
	r.Route("/users", func(r chi.Router) {
		r.Get("/active-count", h.ActiveUserCount)
		r.Get("/{id}/orders", h.UserOrders)
	})
}
