package order

import (
	"context"
	"fmt"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/xenking/shopkeep/internal/domain/item"
	"github.com/xenking/shopkeep/internal/domain/user"
)

const instrumentationName = "github.com/xenking/shopkeep/internal/domain/order"

// Stores groups the repositories bound to a single unit of work.
type Stores interface {
	Orders() Repository
	Items() item.Repository
	Users() user.Repository
}

// Transactor runs fn inside a transaction. The transaction commits when fn
// returns nil and rolls back otherwise; either way it is released before
// InTx returns.
type Transactor interface {
	InTx(ctx context.Context, fn func(ctx context.Context, s Stores) error) error
}

// FulfillmentFailure describes a line item that could not be fulfilled while
// completing an order.
type FulfillmentFailure struct {
	ItemID   int64
	Quantity int
	Err      error
}

// CompletionReport is the outcome of completing an order. Failures lists
// every line that was skipped; the order is completed regardless.
type CompletionReport struct {
	Order    *Order
	Failures []FulfillmentFailure
}

// Options configures a Service. Zero values fall back to the global OTel
// providers and time.Now.
type Options struct {
	TracerProvider trace.TracerProvider
	MeterProvider  metric.MeterProvider
	Now            func() time.Time
}

// Service encapsulates the order lifecycle: submission with duplicate
// rejection, completion with catalog fulfillment, and cancellation.
type Service struct {
	tx     Transactor
	now    func() time.Time
	tracer trace.Tracer

	submitted   metric.Int64Counter
	duplicates  metric.Int64Counter
	completed   metric.Int64Counter
	cancelled   metric.Int64Counter
	unfulfilled metric.Int64Counter
}

// NewService creates an order Service running its operations through tx.
func NewService(tx Transactor, opts Options) (*Service, error) {
	if opts.TracerProvider == nil {
		opts.TracerProvider = otel.GetTracerProvider()
	}
	if opts.MeterProvider == nil {
		opts.MeterProvider = otel.GetMeterProvider()
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}

	s := &Service{
		tx:     tx,
		now:    opts.Now,
		tracer: opts.TracerProvider.Tracer(instrumentationName),
	}

	meter := opts.MeterProvider.Meter(instrumentationName)
	counters := []struct {
		name string
		desc string
		dst  *metric.Int64Counter
	}{
		{"orders.submitted", "Orders accepted", &s.submitted},
		{"orders.duplicates", "Submissions rejected as duplicates", &s.duplicates},
		{"orders.completed", "Orders completed", &s.completed},
		{"orders.cancelled", "Orders cancelled", &s.cancelled},
		{"orders.fulfillment_failures", "Line items skipped during completion", &s.unfulfilled},
	}
	for _, c := range counters {
		counter, err := meter.Int64Counter(c.name, metric.WithDescription(c.desc))
		if err != nil {
			return nil, errors.Wrapf(err, "create counter %s", c.name)
		}
		*c.dst = counter
	}

	return s, nil
}

// Submit validates lines and stores a new pending order for accountNumber,
// making it the account's active order. It returns ErrDuplicateOrder when the
// account already has a pending order with the same item-quantity mapping.
func (s *Service) Submit(ctx context.Context, accountNumber int64, lines []Line) (_ int64, rerr error) {
	ctx, span := s.tracer.Start(ctx, "order.Submit",
		trace.WithAttributes(attribute.Int64("order.account_number", accountNumber)),
	)
	defer func() { endSpan(span, rerr) }()

	o, err := New(accountNumber, lines, s.now())
	if err != nil {
		return 0, err
	}

	err = s.tx.InTx(ctx, func(ctx context.Context, st Stores) error {
		dir := user.NewDirectory(st.Users(), s.now)
		u, err := st.Users().GetForUpdate(ctx, accountNumber)
		if err != nil {
			return err
		}

		catalog := item.NewCatalog(st.Items())
		for _, l := range o.Lines {
			if _, err := catalog.Get(ctx, l.ItemID); err != nil {
				if errors.Is(err, item.ErrNotFound) {
					return &ItemNotFoundError{ItemID: l.ItemID}
				}
				return fmt.Errorf("get item %d: %w", l.ItemID, err)
			}
		}

		created, err := st.Orders().Create(ctx, o)
		if err != nil {
			return fmt.Errorf("create order: %w", err)
		}
		if !created {
			return ErrDuplicateOrder
		}

		return dir.SetActiveOrder(ctx, u, o.ID)
	})
	if err != nil {
		if errors.Is(err, ErrDuplicateOrder) {
			s.duplicates.Add(ctx, 1)
		}
		return 0, err
	}

	s.submitted.Add(ctx, 1)
	zctx.From(ctx).Debug("Order submitted",
		zap.Int64("order_id", o.ID),
		zap.Int64("account_number", accountNumber),
		zap.String("fingerprint", o.Fingerprint()),
	)
	return o.ID, nil
}

// Get returns a single order with its lines.
func (s *Service) Get(ctx context.Context, id int64) (*Order, error) {
	var o *Order
	err := s.tx.InTx(ctx, func(ctx context.Context, st Stores) error {
		var err error
		o, err = st.Orders().Get(ctx, id)
		return err
	})
	if err != nil {
		return nil, err
	}
	return o, nil
}

// Complete fulfills every line of a pending order against the catalog, marks
// it completed and appends it to the owner's history, all in one transaction.
// Lines that cannot be fulfilled are reported in the result instead of
// aborting the completion; any storage error rolls everything back.
func (s *Service) Complete(ctx context.Context, id int64) (_ *CompletionReport, rerr error) {
	ctx, span := s.tracer.Start(ctx, "order.Complete",
		trace.WithAttributes(attribute.Int64("order.id", id)),
	)
	defer func() { endSpan(span, rerr) }()

	var report CompletionReport
	err := s.tx.InTx(ctx, func(ctx context.Context, st Stores) error {
		report = CompletionReport{}

		o, err := st.Orders().GetForUpdate(ctx, id)
		if err != nil {
			return err
		}
		if !o.Status.CanTransition(StatusCompleted) {
			return &TransitionError{OrderID: o.ID, From: o.Status, To: StatusCompleted}
		}

		u, err := st.Users().GetForUpdate(ctx, o.AccountNumber)
		if err != nil {
			return fmt.Errorf("owner of order %d: %w", o.ID, err)
		}

		catalog := item.NewCatalog(st.Items())
		for _, l := range o.Lines {
			_, err := catalog.Fulfill(ctx, l.ItemID, l.Quantity)
			if err == nil {
				continue
			}
			var stockErr *item.InsufficientStockError
			if !errors.As(err, &stockErr) && !errors.Is(err, item.ErrNotFound) {
				return fmt.Errorf("fulfill item %d: %w", l.ItemID, err)
			}
			report.Failures = append(report.Failures, FulfillmentFailure{
				ItemID:   l.ItemID,
				Quantity: l.Quantity,
				Err:      err,
			})
		}

		if err := o.MarkCompleted(s.now()); err != nil {
			return err
		}
		if err := st.Orders().UpdateStatus(ctx, o); err != nil {
			return fmt.Errorf("update order %d: %w", o.ID, err)
		}

		dir := user.NewDirectory(st.Users(), s.now)
		if err := dir.RecordOrder(ctx, u, o.ID, o.Timestamp); err != nil {
			return err
		}
		if err := dir.ReleaseActiveOrder(ctx, u, o.ID); err != nil {
			return err
		}

		report.Order = o
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.completed.Add(ctx, 1)
	lg := zctx.From(ctx)
	if n := len(report.Failures); n > 0 {
		s.unfulfilled.Add(ctx, int64(n))
		for _, f := range report.Failures {
			lg.Warn("Line item not fulfilled",
				zap.Int64("order_id", id),
				zap.Int64("item_id", f.ItemID),
				zap.Int("quantity", f.Quantity),
				zap.Error(f.Err),
			)
		}
	}
	lg.Debug("Order completed", zap.Int64("order_id", id), zap.Int("failures", len(report.Failures)))
	return &report, nil
}

// Cancel cancels a pending order and releases it as its owner's active order.
// Cancelling an already cancelled order is a no-op reported as false;
// cancelling a completed order fails with a TransitionError.
func (s *Service) Cancel(ctx context.Context, id int64) (_ bool, rerr error) {
	ctx, span := s.tracer.Start(ctx, "order.Cancel",
		trace.WithAttributes(attribute.Int64("order.id", id)),
	)
	defer func() { endSpan(span, rerr) }()

	var changed bool
	err := s.tx.InTx(ctx, func(ctx context.Context, st Stores) error {
		o, err := st.Orders().GetForUpdate(ctx, id)
		if err != nil {
			return err
		}
		u, err := st.Users().GetForUpdate(ctx, o.AccountNumber)
		if err != nil {
			return fmt.Errorf("owner of order %d: %w", o.ID, err)
		}
		changed, err = s.cancel(ctx, st, u, o)
		return err
	})
	if err != nil {
		return false, err
	}
	if changed {
		s.cancelled.Add(ctx, 1)
	}
	return changed, nil
}

// CancelActive cancels the active order of every account in accountIDs and
// returns how many orders were cancelled. Unknown accounts and accounts
// without an active order are skipped. Every id is processed even when some
// fail; the failures are joined into the returned error.
func (s *Service) CancelActive(ctx context.Context, accountIDs []int64) (_ int, rerr error) {
	ctx, span := s.tracer.Start(ctx, "order.CancelActive",
		trace.WithAttributes(attribute.Int("order.accounts", len(accountIDs))),
	)
	defer func() { endSpan(span, rerr) }()

	lg := zctx.From(ctx)
	var (
		count int
		errs  []error
	)
	for _, accountID := range accountIDs {
		var changed bool
		err := s.tx.InTx(ctx, func(ctx context.Context, st Stores) error {
			// Rows are locked order first, then owner, as in Complete and Cancel.
			peek, err := st.Users().Get(ctx, accountID)
			if err != nil {
				return err
			}
			if peek.ActiveOrder == nil {
				return nil
			}
			o, err := st.Orders().GetForUpdate(ctx, *peek.ActiveOrder)
			if err != nil {
				return fmt.Errorf("active order of user %d: %w", accountID, err)
			}
			u, err := st.Users().GetForUpdate(ctx, accountID)
			if err != nil {
				return err
			}
			if !u.HasActiveOrder(o.ID) {
				lg.Debug("Active order changed concurrently", zap.Int64("account_id", accountID))
				return nil
			}
			changed, err = s.cancel(ctx, st, u, o)
			return err
		})
		switch {
		case err == nil:
		case errors.Is(err, user.ErrNotFound):
			lg.Debug("Skipping unknown account", zap.Int64("account_id", accountID))
			continue
		case errors.Is(err, ErrInvalidTransition):
			lg.Warn("Active order not cancellable", zap.Int64("account_id", accountID), zap.Error(err))
			continue
		default:
			errs = append(errs, errors.Wrapf(err, "cancel active order of account %d", accountID))
			continue
		}
		if changed {
			s.cancelled.Add(ctx, 1)
			count++
		}
	}
	return count, errors.Join(errs...)
}

// cancel applies the cancellation of o inside an open unit of work.
func (s *Service) cancel(ctx context.Context, st Stores, u *user.User, o *Order) (bool, error) {
	changed, err := o.MarkCancelled(s.now())
	if err != nil || !changed {
		return false, err
	}
	if err := st.Orders().UpdateStatus(ctx, o); err != nil {
		return false, fmt.Errorf("update order %d: %w", o.ID, err)
	}
	if err := user.NewDirectory(st.Users(), s.now).ReleaseActiveOrder(ctx, u, o.ID); err != nil {
		return false, err
	}

	zctx.From(ctx).Debug("Order cancelled", zap.Int64("order_id", o.ID), zap.Int64("account_number", u.ID))
	return true, nil
}

func endSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}
