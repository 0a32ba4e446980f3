package repos

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"storefront/internal/domain"
)

// DefaultGuestTTL is how long a guest line lives after its last write.
const DefaultGuestTTL = 24 * time.Hour

type cartTable struct {
	name string
	cols string
}

var cartTables = map[domain.OwnerKind]cartTable{
	domain.OwnerUser: {
		name: "user_carts",
		cols: "id, owner_id, variant_id, quantity, created_at, updated_at, NULL AS expire_at",
	},
	domain.OwnerGuest: {
		name: "guest_carts",
		cols: "id, owner_id, variant_id, quantity, created_at, updated_at, expire_at",
	},
}

// CartRepo stores cart lines for both owner kinds. Guest lines get an expiry
// that slides forward on every write.
type CartRepo struct{ ttl time.Duration }

func NewCartRepo(guestTTL time.Duration) *CartRepo {
	if guestTTL <= 0 {
		guestTTL = DefaultGuestTTL
	}
	return &CartRepo{ttl: guestTTL}
}

func (r *CartRepo) TTL() time.Duration { return r.ttl }

func table(kind domain.OwnerKind) (cartTable, error) {
	t, ok := cartTables[kind]
	if !ok {
		return t, fmt.Errorf("unknown cart owner kind %q", kind)
	}
	return t, nil
}

// Find returns the line for (owner, variant) regardless of expiry, or nil.
func (r *CartRepo) Find(ctx context.Context, q sqlx.ExtContext, owner domain.Owner, variantID int64) (*domain.CartLine, error) {
	t, err := table(owner.Kind)
	if err != nil {
		return nil, err
	}
	var l domain.CartLine
	err = sqlx.GetContext(ctx, q, &l, q.Rebind(
		`SELECT `+t.cols+` FROM `+t.name+` WHERE owner_id = ? AND variant_id = ?`), owner.ID, variantID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &l, nil
}

// Upsert creates the line with quantity delta or adds delta to the existing
// one. Guest lines have their expiry pushed to now+TTL.
func (r *CartRepo) Upsert(ctx context.Context, q sqlx.ExtContext, owner domain.Owner, variantID int64, delta int, now time.Time) (*domain.CartLine, error) {
	t, err := table(owner.Kind)
	if err != nil {
		return nil, err
	}
	now = now.UTC()
	cur, err := r.Find(ctx, q, owner, variantID)
	if err != nil {
		return nil, err
	}

	if cur == nil {
		if delta < 1 {
			return nil, fmt.Errorf("%w: new line needs a positive quantity, got %d", domain.ErrInvalidQuantity, delta)
		}
		if owner.Kind == domain.OwnerGuest {
			_, err = q.ExecContext(ctx, q.Rebind(`
				INSERT INTO guest_carts(owner_id, variant_id, quantity, created_at, updated_at, expire_at)
				VALUES (?, ?, ?, ?, ?, ?)
			`), owner.ID, variantID, delta, now, now, now.Add(r.ttl))
		} else {
			_, err = q.ExecContext(ctx, q.Rebind(`
				INSERT INTO user_carts(owner_id, variant_id, quantity, created_at, updated_at)
				VALUES (?, ?, ?, ?, ?)
			`), owner.ID, variantID, delta, now, now)
		}
		if err != nil {
			return nil, err
		}
		return r.Find(ctx, q, owner, variantID)
	}

	if cur.Quantity+delta < 1 {
		return nil, fmt.Errorf("%w: quantity would become %d", domain.ErrInvalidQuantity, cur.Quantity+delta)
	}
	var res sql.Result
	if owner.Kind == domain.OwnerGuest {
		res, err = q.ExecContext(ctx, q.Rebind(`
			UPDATE guest_carts SET quantity = quantity + ?, updated_at = ?, expire_at = ?
			WHERE id = ?
		`), delta, now, now.Add(r.ttl), cur.ID)
	} else {
		res, err = q.ExecContext(ctx, q.Rebind(`UPDATE `+t.name+` SET quantity = quantity + ?, updated_at = ? WHERE id = ?`),
			delta, now, cur.ID)
	}
	if err != nil {
		return nil, err
	}
	// deleted since the read above
	if n, err := res.RowsAffected(); err != nil {
		return nil, err
	} else if n == 0 {
		return nil, domain.ErrLineNotFound
	}
	return r.Find(ctx, q, owner, variantID)
}

// Bump moves a live line's quantity by delta in one guarded statement. It
// never creates a line and never takes the quantity below 1. On a rejected
// update nothing was written: ErrLineNotFound when the line is absent or
// expired, ErrInvalidQuantity when the floor would be crossed.
func (r *CartRepo) Bump(ctx context.Context, q sqlx.ExtContext, owner domain.Owner, variantID int64, delta int, now time.Time) (*domain.CartLine, error) {
	t, err := table(owner.Kind)
	if err != nil {
		return nil, err
	}
	now = now.UTC()
	var res sql.Result
	if owner.Kind == domain.OwnerGuest {
		res, err = q.ExecContext(ctx, q.Rebind(`
			UPDATE guest_carts SET quantity = quantity + ?, updated_at = ?, expire_at = ?
			WHERE owner_id = ? AND variant_id = ? AND quantity + ? >= 1 AND expire_at > ?
		`), delta, now, now.Add(r.ttl), owner.ID, variantID, delta, now)
	} else {
		res, err = q.ExecContext(ctx, q.Rebind(`
			UPDATE `+t.name+` SET quantity = quantity + ?, updated_at = ?
			WHERE owner_id = ? AND variant_id = ? AND quantity + ? >= 1
		`), delta, now, owner.ID, variantID, delta)
	}
	if err != nil {
		return nil, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return nil, err
	}
	if n == 0 {
		cur, err := r.Find(ctx, q, owner, variantID)
		if err != nil {
			return nil, err
		}
		if cur == nil || !cur.Live(now) {
			return nil, domain.ErrLineNotFound
		}
		return nil, fmt.Errorf("%w: quantity would become %d", domain.ErrInvalidQuantity, cur.Quantity+delta)
	}
	return r.Find(ctx, q, owner, variantID)
}

// Renew restarts an expired guest line at qty with a fresh expiry. It only
// matches the line as the caller saw it (still expired, still holding stale),
// and reports false when a concurrent write got there first.
func (r *CartRepo) Renew(ctx context.Context, q sqlx.ExtContext, owner domain.Owner, variantID int64, stale, qty int, now time.Time) (bool, error) {
	if owner.Kind != domain.OwnerGuest {
		return false, fmt.Errorf("renew: %s lines do not expire", owner.Kind)
	}
	if qty < 1 {
		return false, fmt.Errorf("%w: %d", domain.ErrInvalidQuantity, qty)
	}
	now = now.UTC()
	res, err := q.ExecContext(ctx, q.Rebind(`
		UPDATE guest_carts SET quantity = ?, created_at = ?, updated_at = ?, expire_at = ?
		WHERE owner_id = ? AND variant_id = ? AND quantity = ? AND expire_at <= ?
	`), qty, now, now, now.Add(r.ttl), owner.ID, variantID, stale, now)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n > 0, err
}

// Remove deletes the (owner, variant) line, expired or not, provided it still
// holds qty. ErrLineNotFound means nothing was deleted.
func (r *CartRepo) Remove(ctx context.Context, q sqlx.ExtContext, owner domain.Owner, variantID int64, qty int) error {
	t, err := table(owner.Kind)
	if err != nil {
		return err
	}
	res, err := q.ExecContext(ctx, q.Rebind(`DELETE FROM `+t.name+` WHERE owner_id = ? AND variant_id = ? AND quantity = ?`),
		owner.ID, variantID, qty)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return domain.ErrLineNotFound
	}
	return nil
}

// ListLive returns the owner's lines visible at now, oldest first.
func (r *CartRepo) ListLive(ctx context.Context, q sqlx.ExtContext, owner domain.Owner, now time.Time) ([]domain.CartLine, error) {
	t, err := table(owner.Kind)
	if err != nil {
		return nil, err
	}
	query := `SELECT ` + t.cols + ` FROM ` + t.name + ` WHERE owner_id = ?`
	args := []any{owner.ID}
	if owner.Kind == domain.OwnerGuest {
		query += ` AND expire_at > ?`
		args = append(args, now.UTC())
	}
	query += ` ORDER BY created_at, id`

	out := []domain.CartLine{}
	err = sqlx.SelectContext(ctx, q, &out, q.Rebind(query), args...)
	return out, err
}

// ListAll returns every line the owner has, including expired guest lines.
func (r *CartRepo) ListAll(ctx context.Context, q sqlx.ExtContext, owner domain.Owner) ([]domain.CartLine, error) {
	t, err := table(owner.Kind)
	if err != nil {
		return nil, err
	}
	out := []domain.CartLine{}
	err = sqlx.SelectContext(ctx, q, &out, q.Rebind(
		`SELECT `+t.cols+` FROM `+t.name+` WHERE owner_id = ? ORDER BY created_at, id`), owner.ID)
	return out, err
}

// ListExpired returns up to limit guest lines whose expiry is at or before now.
func (r *CartRepo) ListExpired(ctx context.Context, q sqlx.ExtContext, now time.Time, limit int) ([]domain.CartLine, error) {
	t := cartTables[domain.OwnerGuest]
	out := []domain.CartLine{}
	err := sqlx.SelectContext(ctx, q, &out, q.Rebind(
		`SELECT `+t.cols+` FROM `+t.name+` WHERE expire_at <= ? ORDER BY expire_at, id LIMIT ?`), now.UTC(), limit)
	return out, err
}

// DeleteExpired removes a guest line by id only if it is still expired at now.
// It reports false when a concurrent write refreshed the line first.
func (r *CartRepo) DeleteExpired(ctx context.Context, q sqlx.ExtContext, id int64, now time.Time) (bool, error) {
	res, err := q.ExecContext(ctx, q.Rebind(`DELETE FROM guest_carts WHERE id = ? AND expire_at <= ?`), id, now.UTC())
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n > 0, err
}
