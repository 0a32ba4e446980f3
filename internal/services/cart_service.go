package services

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"storefront/internal/domain"
	"storefront/internal/events"
	"storefront/internal/repos"
)

// GuestRegistry records guest ids that were merged into a user cart.
type GuestRegistry interface {
	Retire(ctx context.Context, guestID string) error
	Retired(ctx context.Context, guestID string) (bool, error)
}

// Result is the envelope every cart operation returns. Err keeps the cause for
// callers that need to branch on it; it is never serialized.
type Result struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	Err     error  `json:"-"`
}

type CartResult struct {
	Result
	Items []domain.CartLineView `json:"data"`
}

type MergeResult struct {
	Result
	Merged  int `json:"merged"`
	Expired int `json:"expired"`
}

const (
	MsgAdded     = "Item added to cart successfully"
	MsgIncreased = "Quantity increased successfully"
	MsgDecreased = "Quantity decreased successfully"
	MsgRemoved   = "Item removed from cart successfully"
	MsgMerged    = "Cart merged successfully"
	MsgCleared   = "Cart cleared successfully"
	MsgFetched   = "Cart fetched successfully"

	MsgEmptyUserCart  = "Cart is empty"
	MsgEmptyGuestCart = "Cart is empty or expired"
	MsgEmptyMerge     = "Guest cart is empty"

	MsgVariantNotFound = "variant not found!"
	MsgNoStock         = "No enough items!"
	MsgLineNotFound    = "Cart item not found!"
	MsgCannotDecrease  = "can not decrease the amount!"
	MsgGuestRetired    = "Guest cart was merged into an account, please log in"
)

const sweepBatch = 100

type CartService struct {
	DB      *sqlx.DB
	Carts   *repos.CartRepo
	Inv     *repos.InventoryRepo
	Prods   *repos.ProductRepo
	Journal *repos.JournalRepo
	Guests  GuestRegistry
	Events  events.Publisher
	Log     *zap.Logger

	now    func() time.Time
	tracer trace.Tracer
}

type CartOption func(*CartService)

func WithClock(now func() time.Time) CartOption { return func(s *CartService) { s.now = now } }

func WithGuestRegistry(g GuestRegistry) CartOption { return func(s *CartService) { s.Guests = g } }

func WithPublisher(p events.Publisher) CartOption { return func(s *CartService) { s.Events = p } }

func WithLogger(l *zap.Logger) CartOption { return func(s *CartService) { s.Log = l } }

func WithTracerProvider(tp trace.TracerProvider) CartOption {
	return func(s *CartService) { s.tracer = tp.Tracer("storefront/cart") }
}

func NewCartService(db *sqlx.DB, carts *repos.CartRepo, inv *repos.InventoryRepo, prods *repos.ProductRepo, journal *repos.JournalRepo, opts ...CartOption) *CartService {
	s := &CartService{DB: db, Carts: carts, Inv: inv, Prods: prods, Journal: journal, now: time.Now}
	for _, o := range opts {
		o(s)
	}
	if s.Log == nil {
		s.Log = zap.NewNop()
	}
	if s.Events == nil {
		s.Events = events.NopPublisher{}
	}
	if s.Guests == nil {
		s.Guests = repos.NewMemoryGuestRegistry(carts.TTL(), s.now)
	}
	if s.tracer == nil {
		s.tracer = otel.Tracer("storefront/cart")
	}
	return s
}

// movement is one Reserved change plus the line quantity it left behind.
type movement struct {
	entry   domain.ReservationEntry
	lineQty int
}

func (s *CartService) move(owner domain.Owner, variantID int64, delta int, reason domain.ReservationReason, lineQty int, now time.Time) movement {
	return movement{
		entry: domain.ReservationEntry{
			ID:        uuid.NewString(),
			VariantID: variantID,
			OwnerKind: owner.Kind,
			OwnerID:   owner.ID,
			Delta:     delta,
			Reason:    reason,
			CreatedAt: now,
		},
		lineQty: lineQty,
	}
}

type mutation func(ctx context.Context, q sqlx.ExtContext, now time.Time) ([]movement, error)

// mutate runs fn in its own unit of work, journals its movements in the same
// transaction and publishes them after commit. Guest ids are checked against
// the registry on both sides of fn so a merge that lands mid-operation rolls
// it back.
func (s *CartService) mutate(ctx context.Context, owner domain.Owner, fn mutation) error {
	now := s.now().UTC()
	var moves []movement
	err := repos.NewUnitOfWork(s.DB).Do(ctx, func(q sqlx.ExtContext) error {
		if err := s.checkGuest(ctx, owner); err != nil {
			return err
		}
		var err error
		if moves, err = fn(ctx, q, now); err != nil {
			return err
		}
		if err := s.checkGuest(ctx, owner); err != nil {
			return err
		}
		for i := range moves {
			if err := s.Journal.Append(ctx, q, &moves[i].entry); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return err
	}
	s.publish(ctx, moves)
	return nil
}

func (s *CartService) checkGuest(ctx context.Context, owner domain.Owner) error {
	if owner.Kind != domain.OwnerGuest {
		return nil
	}
	retired, err := s.Guests.Retired(ctx, owner.ID)
	if err != nil {
		return err
	}
	if retired {
		return domain.ErrGuestRetired
	}
	return nil
}

var eventTypes = map[domain.ReservationReason]string{
	domain.ReasonAdd:      events.TypeLineAdded,
	domain.ReasonIncrease: events.TypeLineIncreased,
	domain.ReasonDecrease: events.TypeLineDecreased,
	domain.ReasonRemove:   events.TypeLineRemoved,
	domain.ReasonMerge:    events.TypeCartMerged,
	domain.ReasonExpire:   events.TypeLineExpired,
}

func (s *CartService) publish(ctx context.Context, moves []movement) {
	if len(moves) == 0 {
		return
	}
	evs := make([]events.CartEvent, 0, len(moves))
	for _, m := range moves {
		evs = append(evs, events.CartEvent{
			ID:        m.entry.ID,
			Type:      eventTypes[m.entry.Reason],
			OwnerKind: string(m.entry.OwnerKind),
			OwnerID:   m.entry.OwnerID,
			VariantID: m.entry.VariantID,
			Delta:     m.entry.Delta,
			Quantity:  m.lineQty,
			At:        m.entry.CreatedAt,
		})
	}
	if err := s.Events.Publish(ctx, evs...); err != nil {
		s.Log.Warn("publish cart events", zap.Error(err), zap.Int("count", len(evs)))
	}
}

func (s *CartService) span(ctx context.Context, name string, owner domain.Owner, variantID int64) (context.Context, trace.Span) {
	attrs := []attribute.KeyValue{
		attribute.String("cart.owner_kind", string(owner.Kind)),
		attribute.String("cart.owner_id", owner.ID),
	}
	if variantID != 0 {
		attrs = append(attrs, attribute.Int64("cart.variant_id", variantID))
	}
	return s.tracer.Start(ctx, name, trace.WithAttributes(attrs...))
}

// failureMessage maps an error to the message shown to the shopper.
func failureMessage(err error, unexpected string) string {
	switch {
	case errors.Is(err, domain.ErrNotFound):
		return MsgVariantNotFound
	case errors.Is(err, domain.ErrInsufficientStock):
		return MsgNoStock
	case errors.Is(err, domain.ErrLineNotFound):
		return MsgLineNotFound
	case errors.Is(err, domain.ErrInvalidQuantity):
		return MsgCannotDecrease
	case errors.Is(err, domain.ErrGuestRetired):
		return MsgGuestRetired
	}
	return unexpected
}

func (s *CartService) finish(span trace.Span, op string, owner domain.Owner, variantID int64, err error, ok, unexpected string) Result {
	if err == nil {
		span.SetStatus(codes.Ok, "")
		s.Log.Debug("cart operation", zap.String("op", op), zap.Stringer("owner", owner), zap.Int64("variant_id", variantID))
		return Result{Success: true, Message: ok}
	}
	fields := []zap.Field{zap.String("op", op), zap.Stringer("owner", owner), zap.Int64("variant_id", variantID), zap.Error(err)}
	if domain.IsValidation(err) {
		span.SetAttributes(attribute.String("cart.rejected", err.Error()))
		s.Log.Info("cart operation rejected", fields...)
	} else {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		s.Log.Error("cart operation failed", fields...)
	}
	return Result{Success: false, Message: failureMessage(err, unexpected), Err: err}
}

// Add reserves qty units (clamped to at least 1) and adds them to the owner's line.
// A guest line found expired is treated as absent: its stale reservation is
// released and the line restarts at qty.
func (s *CartService) Add(ctx context.Context, owner domain.Owner, variantID int64, qty int) Result {
	ctx, span := s.span(ctx, "cart.add", owner, variantID)
	defer span.End()
	if qty < 1 {
		qty = 1
	}
	err := s.mutate(ctx, owner, func(ctx context.Context, q sqlx.ExtContext, now time.Time) ([]movement, error) {
		if _, err := s.Inv.Variant(ctx, q, variantID); err != nil {
			return nil, err
		}
		line, err := s.Carts.Find(ctx, q, owner, variantID)
		if err != nil {
			return nil, err
		}
		if line != nil && !line.Live(now) {
			stale := line.Quantity
			renewed, err := s.Carts.Renew(ctx, q, owner, variantID, stale, qty, now)
			if err != nil {
				return nil, err
			}
			if renewed {
				if err := s.Inv.AdjustReserved(ctx, q, variantID, qty-stale); err != nil {
					return nil, err
				}
				return []movement{
					s.move(owner, variantID, -stale, domain.ReasonExpire, 0, now),
					s.move(owner, variantID, qty, domain.ReasonAdd, qty, now),
				}, nil
			}
			// Someone else renewed or removed it; add on top of whatever is there now.
		}

		if err := s.Inv.AdjustReserved(ctx, q, variantID, qty); err != nil {
			return nil, err
		}
		if line, err = s.Carts.Upsert(ctx, q, owner, variantID, qty, now); err != nil {
			return nil, err
		}
		return []movement{s.move(owner, variantID, qty, domain.ReasonAdd, line.Quantity, now)}, nil
	})
	return s.finish(span, "add", owner, variantID, err, MsgAdded, "Something went wrong while adding item to cart")
}

func (s *CartService) Increase(ctx context.Context, owner domain.Owner, variantID int64) Result {
	ctx, span := s.span(ctx, "cart.increase", owner, variantID)
	defer span.End()
	err := s.mutate(ctx, owner, func(ctx context.Context, q sqlx.ExtContext, now time.Time) ([]movement, error) {
		line, err := s.Carts.Bump(ctx, q, owner, variantID, 1, now)
		if err != nil {
			return nil, err
		}
		if err := s.Inv.AdjustReserved(ctx, q, variantID, 1); err != nil {
			return nil, err
		}
		return []movement{s.move(owner, variantID, 1, domain.ReasonIncrease, line.Quantity, now)}, nil
	})
	return s.finish(span, "increase", owner, variantID, err, MsgIncreased, "Something went wrong while increasing quantity")
}

// Decrease lowers the line by one. A line at quantity 1 is rejected; use Remove.
func (s *CartService) Decrease(ctx context.Context, owner domain.Owner, variantID int64) Result {
	ctx, span := s.span(ctx, "cart.decrease", owner, variantID)
	defer span.End()
	err := s.mutate(ctx, owner, func(ctx context.Context, q sqlx.ExtContext, now time.Time) ([]movement, error) {
		line, err := s.Carts.Bump(ctx, q, owner, variantID, -1, now)
		if err != nil {
			return nil, err
		}
		if err := s.Inv.AdjustReserved(ctx, q, variantID, -1); err != nil {
			return nil, err
		}
		return []movement{s.move(owner, variantID, -1, domain.ReasonDecrease, line.Quantity, now)}, nil
	})
	return s.finish(span, "decrease", owner, variantID, err, MsgDecreased, "Something went wrong while decreasing quantity")
}

// removeAttempts bounds how often Remove re-reads a line that changed under it.
const removeAttempts = 3

// Remove deletes the line and releases its whole reservation. Expired guest
// lines are removable too, which also releases what they still hold.
func (s *CartService) Remove(ctx context.Context, owner domain.Owner, variantID int64) Result {
	ctx, span := s.span(ctx, "cart.remove", owner, variantID)
	defer span.End()
	err := s.mutate(ctx, owner, func(ctx context.Context, q sqlx.ExtContext, now time.Time) ([]movement, error) {
		for attempt := 1; ; attempt++ {
			line, err := s.Carts.Find(ctx, q, owner, variantID)
			if err != nil {
				return nil, err
			}
			if line == nil {
				return nil, domain.ErrLineNotFound
			}
			err = s.Carts.Remove(ctx, q, owner, variantID, line.Quantity)
			if errors.Is(err, domain.ErrLineNotFound) && attempt < removeAttempts {
				continue
			}
			if err != nil {
				return nil, err
			}
			if err := s.Inv.AdjustReserved(ctx, q, variantID, -line.Quantity); err != nil {
				return nil, err
			}
			return []movement{s.move(owner, variantID, -line.Quantity, domain.ReasonRemove, 0, now)}, nil
		}
	})
	return s.finish(span, "remove", owner, variantID, err, MsgRemoved, "Something went wrong while removing item from cart")
}

// Clear removes every line the owner has, releasing each reservation.
func (s *CartService) Clear(ctx context.Context, owner domain.Owner) Result {
	ctx, span := s.span(ctx, "cart.clear", owner, 0)
	defer span.End()
	err := s.mutate(ctx, owner, func(ctx context.Context, q sqlx.ExtContext, now time.Time) ([]movement, error) {
		lines, err := s.Carts.ListAll(ctx, q, owner)
		if err != nil {
			return nil, err
		}
		moves := make([]movement, 0, len(lines))
		for _, l := range lines {
			if err := s.Carts.Remove(ctx, q, owner, l.VariantID, l.Quantity); err != nil {
				return nil, err
			}
			if err := s.Inv.AdjustReserved(ctx, q, l.VariantID, -l.Quantity); err != nil {
				return nil, err
			}
			moves = append(moves, s.move(owner, l.VariantID, -l.Quantity, domain.ReasonRemove, 0, now))
		}
		return moves, nil
	})
	return s.finish(span, "clear", owner, 0, err, MsgCleared, "Something went wrong while clearing the cart")
}

// Merge moves every live guest line into the user's cart without touching
// Reserved and retires the guest id before committing. Expired guest lines
// are dropped and their reservations released. Merging an empty guest cart
// succeeds.
func (s *CartService) Merge(ctx context.Context, userID, guestID string) MergeResult {
	user, guest := domain.UserOwner(userID), domain.GuestOwner(guestID)
	ctx, span := s.span(ctx, "cart.merge", guest, 0)
	defer span.End()
	span.SetAttributes(attribute.String("cart.user_id", userID))

	var merged, expired int
	now := s.now().UTC()
	var moves []movement
	err := repos.NewUnitOfWork(s.DB).Do(ctx, func(q sqlx.ExtContext) error {
		lines, err := s.Carts.ListAll(ctx, q, guest)
		if err != nil {
			return err
		}
		for _, gl := range lines {
			if err := s.Carts.Remove(ctx, q, guest, gl.VariantID, gl.Quantity); err != nil {
				return err
			}
			if !gl.Live(now) {
				if err := s.Inv.AdjustReserved(ctx, q, gl.VariantID, -gl.Quantity); err != nil {
					return err
				}
				moves = append(moves, s.move(guest, gl.VariantID, -gl.Quantity, domain.ReasonExpire, 0, now))
				expired++
			} else {
				ul, err := s.Carts.Upsert(ctx, q, user, gl.VariantID, gl.Quantity, now)
				if err != nil {
					return err
				}
				moves = append(moves, s.move(user, gl.VariantID, 0, domain.ReasonMerge, ul.Quantity, now))
				merged++
			}
		}
		for i := range moves {
			if err := s.Journal.Append(ctx, q, &moves[i].entry); err != nil {
				return err
			}
		}
		return s.Guests.Retire(ctx, guestID)
	})
	if err == nil {
		s.publish(ctx, moves)
	}

	res := MergeResult{
		Result:  s.finish(span, "merge", guest, 0, err, MsgMerged, "Something went wrong while merging carts"),
		Merged:  merged,
		Expired: expired,
	}
	if err != nil {
		res.Merged, res.Expired = 0, 0
	} else if merged == 0 {
		res.Message = MsgEmptyMerge
	}
	return res
}

// GetCart lists the owner's live lines with catalog display data. An empty,
// fully expired or retired cart is a success with no items.
func (s *CartService) GetCart(ctx context.Context, owner domain.Owner, locale string) CartResult {
	ctx, span := s.span(ctx, "cart.get", owner, 0)
	defer span.End()
	span.SetAttributes(attribute.String("cart.locale", locale))

	empty := MsgEmptyUserCart
	if owner.Kind == domain.OwnerGuest {
		empty = MsgEmptyGuestCart
		retired, err := s.Guests.Retired(ctx, owner.ID)
		if err != nil {
			return CartResult{Result: s.finish(span, "get", owner, 0, err, "", "Something went wrong while fetching the cart")}
		}
		if retired {
			return CartResult{Result: Result{Success: true, Message: empty}, Items: []domain.CartLineView{}}
		}
	}

	lines, err := s.Carts.ListLive(ctx, s.DB, owner, s.now().UTC())
	if err != nil {
		return CartResult{Result: s.finish(span, "get", owner, 0, err, "", "Something went wrong while fetching the cart")}
	}
	if len(lines) == 0 {
		return CartResult{Result: Result{Success: true, Message: empty}, Items: []domain.CartLineView{}}
	}

	ids := make([]int64, 0, len(lines))
	for _, l := range lines {
		ids = append(ids, l.VariantID)
	}
	display, err := s.Prods.VariantDisplays(ctx, s.DB, ids, locale)
	if err != nil {
		return CartResult{Result: s.finish(span, "get", owner, 0, err, "", "Something went wrong while fetching the cart")}
	}

	items := make([]domain.CartLineView, 0, len(lines))
	for _, l := range lines {
		d := display[l.VariantID]
		items = append(items, domain.CartLineView{
			ID:          l.ID,
			ProductID:   d.ProductID,
			VariantID:   l.VariantID,
			Name:        d.Name,
			Description: d.Description,
			Price:       d.Price,
			Image:       d.Image,
			Color:       d.Color,
			HexCode:     d.HexCode,
			Size:        d.Size,
			Reserved:    d.Reserved,
			Quantity:    l.Quantity,
			ExpireAt:    l.ExpireAt,
		})
	}
	return CartResult{Result: s.finish(span, "get", owner, 0, nil, MsgFetched, ""), Items: items}
}

// ReclaimExpired deletes expired guest lines in batches and releases their
// reservations. It returns how many lines were reclaimed.
func (s *CartService) ReclaimExpired(ctx context.Context) (int, error) {
	ctx, span := s.tracer.Start(ctx, "cart.reclaim_expired")
	defer span.End()

	total := 0
	for {
		now := s.now().UTC()
		var moves []movement
		var batch int
		err := repos.NewUnitOfWork(s.DB).Do(ctx, func(q sqlx.ExtContext) error {
			lines, err := s.Carts.ListExpired(ctx, q, now, sweepBatch)
			if err != nil {
				return err
			}
			batch = len(lines)
			for _, l := range lines {
				gone, err := s.Carts.DeleteExpired(ctx, q, l.ID, now)
				if err != nil {
					return err
				}
				if !gone {
					continue
				}
				if err := s.Inv.AdjustReserved(ctx, q, l.VariantID, -l.Quantity); err != nil {
					return err
				}
				m := s.move(domain.GuestOwner(l.OwnerID), l.VariantID, -l.Quantity, domain.ReasonExpire, 0, now)
				if err := s.Journal.Append(ctx, q, &m.entry); err != nil {
					return err
				}
				moves = append(moves, m)
			}
			return nil
		})
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			return total, err
		}
		total += len(moves)
		s.publish(ctx, moves)
		if batch < sweepBatch {
			break
		}
	}
	span.SetAttributes(attribute.Int("cart.reclaimed", total))
	if total > 0 {
		s.Log.Info("reclaimed expired guest lines", zap.Int("count", total))
	}
	return total, nil
}

// RunSweeper calls ReclaimExpired every interval until ctx is done.
func (s *CartService) RunSweeper(ctx context.Context, interval time.Duration) {
	t := time.NewTicker(interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			if _, err := s.ReclaimExpired(ctx); err != nil && !errors.Is(err, context.Canceled) {
				s.Log.Error("sweep expired guest lines", zap.Error(err))
			}
		}
	}
}

func (s *CartService) GetUserCart(ctx context.Context, userID, locale string) CartResult {
	return s.GetCart(ctx, domain.UserOwner(userID), locale)
}

func (s *CartService) AddToUserCart(ctx context.Context, userID string, variantID int64, qty int) Result {
	return s.Add(ctx, domain.UserOwner(userID), variantID, qty)
}

func (s *CartService) IncreaseUserAmount(ctx context.Context, userID string, variantID int64) Result {
	return s.Increase(ctx, domain.UserOwner(userID), variantID)
}

func (s *CartService) DecreaseUserAmount(ctx context.Context, userID string, variantID int64) Result {
	return s.Decrease(ctx, domain.UserOwner(userID), variantID)
}

func (s *CartService) RemoveUserItem(ctx context.Context, userID string, variantID int64) Result {
	return s.Remove(ctx, domain.UserOwner(userID), variantID)
}

func (s *CartService) GetGuestCart(ctx context.Context, guestID, locale string) CartResult {
	return s.GetCart(ctx, domain.GuestOwner(guestID), locale)
}

func (s *CartService) AddToGuestCart(ctx context.Context, guestID string, variantID int64, qty int) Result {
	return s.Add(ctx, domain.GuestOwner(guestID), variantID, qty)
}

func (s *CartService) IncreaseGuestAmount(ctx context.Context, guestID string, variantID int64) Result {
	return s.Increase(ctx, domain.GuestOwner(guestID), variantID)
}

func (s *CartService) DecreaseGuestAmount(ctx context.Context, guestID string, variantID int64) Result {
	return s.Decrease(ctx, domain.GuestOwner(guestID), variantID)
}

func (s *CartService) RemoveGuestItem(ctx context.Context, guestID string, variantID int64) Result {
	return s.Remove(ctx, domain.GuestOwner(guestID), variantID)
}
