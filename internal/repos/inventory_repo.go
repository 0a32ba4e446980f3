package repos

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"

	"storefront/internal/domain"
)

// InventoryRepo is the stock ledger. Every method runs on the caller's
// queryer so reservations share the surrounding transaction.
type InventoryRepo struct{}

func NewInventoryRepo() *InventoryRepo { return &InventoryRepo{} }

var errReservedUnderflow = errors.New("reserved would drop below zero")

// Variant loads one sellable variant, returning domain.ErrNotFound if it is
// absent or its product was deleted.
func (r *InventoryRepo) Variant(ctx context.Context, q sqlx.ExtContext, id int64) (domain.Variant, error) {
	var v domain.Variant
	err := sqlx.GetContext(ctx, q, &v, q.Rebind(`
		SELECT v.id, v.product_id, v.color_id, v.size_id, v.quantity, v.reserved
		FROM variants v
		JOIN products p ON p.id = v.product_id
		WHERE v.id = ? AND p.deleted_at IS NULL
	`), id)
	if errors.Is(err, sql.ErrNoRows) {
		return v, domain.ErrNotFound
	}
	return v, err
}

// AdjustReserved atomically moves Reserved by delta. The guard keeps
// 0 <= reserved <= quantity; a rejected update is classified by re-reading
// the row.
func (r *InventoryRepo) AdjustReserved(ctx context.Context, q sqlx.ExtContext, id int64, delta int) error {
	if delta == 0 {
		return nil
	}
	res, err := q.ExecContext(ctx, q.Rebind(`
		UPDATE variants
		SET reserved = reserved + ?
		WHERE id = ? AND reserved + ? <= quantity AND reserved + ? >= 0
	`), delta, id, delta, delta)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n > 0 {
		return nil
	}

	v, err := r.Variant(ctx, q, id)
	if err != nil {
		return err
	}
	if delta > 0 {
		return fmt.Errorf("%w: variant %d has %d available, need %d",
			domain.ErrInsufficientStock, id, v.Available(), delta)
	}
	return fmt.Errorf("variant %d: %w (reserved %d, release %d)", id, errReservedUnderflow, v.Reserved, -delta)
}

// ListAll returns every variant with its ledger, for the admin inventory view.
func (r *InventoryRepo) ListAll(ctx context.Context, q sqlx.ExtContext) ([]domain.Variant, error) {
	out := []domain.Variant{}
	err := sqlx.SelectContext(ctx, q, &out, `
		SELECT id, product_id, color_id, size_id, quantity, reserved
		FROM variants
		ORDER BY product_id, id
	`)
	return out, err
}
