package handler

import (
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-faster/errors"
	"github.com/go-faster/jx"

	"github.com/xenking/shopkeep/internal/domain/item"
	"github.com/xenking/shopkeep/internal/domain/order"
	"github.com/xenking/shopkeep/internal/domain/user"
)

const maxBodyBytes = 1 << 20

// requestError is a malformed request, reported as 400 invalid_request.
type requestError struct {
	msg string
}

func (e *requestError) Error() string { return e.msg }

func badRequest(format string, args ...any) error {
	return &requestError{msg: fmt.Sprintf(format, args...)}
}

type createOrderRequest struct {
	AccountNumber int64
	Lines         []order.Line
}

func decodeCreateOrder(w http.ResponseWriter, r *http.Request) (createOrderRequest, error) {
	var (
		req        createOrderRequest
		hasAccount bool
	)
	d := jx.Decode(http.MaxBytesReader(w, r.Body, maxBodyBytes), 512)
	err := d.Obj(func(d *jx.Decoder, key string) error {
		switch key {
		case "account_number":
			v, err := d.Int64()
			if err != nil {
				return errors.Wrap(err, "account_number")
			}
			req.AccountNumber, hasAccount = v, true
			return nil
		case "items":
			if d.Next() == jx.Null {
				return d.Null()
			}
			return d.Arr(func(d *jx.Decoder) error {
				l, err := decodeLine(d)
				if err != nil {
					return errors.Wrap(err, "items")
				}
				req.Lines = append(req.Lines, l)
				return nil
			})
		default:
			return d.Skip()
		}
	})
	if err != nil {
		return req, badRequest("decode request: %v", err)
	}
	if !hasAccount {
		return req, badRequest("account_number required")
	}
	return req, nil
}

func decodeLine(d *jx.Decoder) (order.Line, error) {
	var (
		l               order.Line
		hasItem, hasQty bool
	)
	err := d.Obj(func(d *jx.Decoder, key string) error {
		var err error
		switch key {
		case "item_id":
			l.ItemID, err = d.Int64()
			hasItem = true
		case "quantity":
			l.Quantity, err = d.Int()
			hasQty = true
		default:
			err = d.Skip()
		}
		return err
	})
	if err != nil {
		return l, err
	}
	if !hasItem || !hasQty {
		return l, errors.New("item_id and quantity required")
	}
	return l, nil
}

func decodeAccountIDs(w http.ResponseWriter, r *http.Request) ([]int64, error) {
	var (
		ids    []int64
		hasIDs bool
	)
	d := jx.Decode(http.MaxBytesReader(w, r.Body, maxBodyBytes), 512)
	err := d.Obj(func(d *jx.Decoder, key string) error {
		if key != "account_ids" {
			return d.Skip()
		}
		hasIDs = true
		return d.Arr(func(d *jx.Decoder) error {
			id, err := d.Int64()
			if err != nil {
				return errors.Wrap(err, "account_ids")
			}
			ids = append(ids, id)
			return nil
		})
	})
	if err != nil {
		return nil, badRequest("decode request: %v", err)
	}
	if !hasIDs {
		return nil, badRequest("account_ids required")
	}
	return ids, nil
}

// pathID parses the {id} URL parameter.
func pathID(r *http.Request) (int64, error) {
	raw := chi.URLParam(r, "id")
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, badRequest("invalid id %q", raw)
	}
	return id, nil
}

// queryInt returns the integer query parameter name, or def when absent.
func queryInt(r *http.Request, name string, def int) (int, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return def, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, badRequest("invalid %s %q", name, raw)
	}
	return v, nil
}

func writeJSON(w http.ResponseWriter, status int, fn func(e *jx.Encoder)) {
	e := jx.GetEncoder()
	defer jx.PutEncoder(e)
	fn(e)

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(e.Bytes())
}

func encodeTime(e *jx.Encoder, t time.Time) {
	e.Str(t.UTC().Format(time.RFC3339Nano))
}

func encodeOrder(e *jx.Encoder, o *order.Order) {
	e.Obj(func(e *jx.Encoder) {
		e.Field("id", func(e *jx.Encoder) { e.Int64(o.ID) })
		e.Field("account_number", func(e *jx.Encoder) { e.Int64(o.AccountNumber) })
		e.Field("status", func(e *jx.Encoder) { e.Str(o.Status.String()) })
		e.Field("placed_at", func(e *jx.Encoder) { encodeTime(e, o.PlacedAt) })
		e.Field("timestamp", func(e *jx.Encoder) { encodeTime(e, o.Timestamp) })
		e.Field("items", func(e *jx.Encoder) {
			e.Arr(func(e *jx.Encoder) {
				for _, l := range o.Lines {
					e.Obj(func(e *jx.Encoder) {
						e.Field("item_id", func(e *jx.Encoder) { e.Int64(l.ItemID) })
						e.Field("quantity", func(e *jx.Encoder) { e.Int(l.Quantity) })
					})
				}
			})
		})
	})
}

func encodeFailure(e *jx.Encoder, f order.FulfillmentFailure) {
	kind := "fulfillment_failed"
	var stockErr *item.InsufficientStockError
	switch {
	case errors.As(f.Err, &stockErr):
		kind = "insufficient_stock"
	case errors.Is(f.Err, item.ErrNotFound):
		kind = "not_found"
	}
	e.Obj(func(e *jx.Encoder) {
		e.Field("item_id", func(e *jx.Encoder) { e.Int64(f.ItemID) })
		e.Field("quantity", func(e *jx.Encoder) { e.Int(f.Quantity) })
		e.Field("kind", func(e *jx.Encoder) { e.Str(kind) })
		e.Field("message", func(e *jx.Encoder) { e.Str(f.Err.Error()) })
	})
}

func encodeItemSummary(e *jx.Encoder, it item.Item) {
	e.Obj(func(e *jx.Encoder) {
		e.Field("id", func(e *jx.Encoder) { e.Int64(it.ID) })
		e.Field("name", func(e *jx.Encoder) { e.Str(it.Name) })
		e.Field("price", func(e *jx.Encoder) { e.Num(jx.Num(it.Price.StringFixed(2))) })
		e.Field("sold", func(e *jx.Encoder) { e.Int(it.Sold) })
	})
}

func encodeUserOrders(e *jx.Encoder, u *user.User) {
	e.Obj(func(e *jx.Encoder) {
		e.Field("user_id", func(e *jx.Encoder) { e.Int64(u.ID) })
		e.Field("orders", func(e *jx.Encoder) {
			e.Arr(func(e *jx.Encoder) {
				for _, id := range u.Orders {
					e.Int64(id)
				}
			})
		})
		e.Field("active_order", func(e *jx.Encoder) {
			if u.ActiveOrder == nil {
				e.Null()
				return
			}
			e.Int64(*u.ActiveOrder)
		})
		e.Field("last_order_time", func(e *jx.Encoder) {
			if u.LastOrderTime == nil {
				e.Null()
				return
			}
			encodeTime(e, *u.LastOrderTime)
		})
	})
}
