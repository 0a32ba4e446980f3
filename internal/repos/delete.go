package repos

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"storefront/internal/domain"
)

// Delete removes the row with the given id from E's table using E's deletion
// policy. It wraps sql.ErrNoRows when nothing (still live) matched.
func Delete[E domain.Deletable](ctx context.Context, q sqlx.ExtContext, id any, now time.Time) error {
	var e E
	var (
		res sql.Result
		err error
	)
	switch e.Deletion() {
	case domain.SoftDelete:
		res, err = q.ExecContext(ctx, q.Rebind(`UPDATE `+e.Table()+` SET deleted_at = ? WHERE id = ? AND deleted_at IS NULL`), now.UTC(), id)
	default:
		res, err = q.ExecContext(ctx, q.Rebind(`DELETE FROM `+e.Table()+` WHERE id = ?`), id)
	}
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("delete from %s id=%v: %w", e.Table(), id, sql.ErrNoRows)
	}
	return nil
}
