package repos

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/jmoiron/sqlx"

	"storefront/internal/domain"
)

// UnitOfWork scopes one atomic business operation. It holds at most one open
// transaction; repositories receive it through Q().
type UnitOfWork struct {
	db    *sqlx.DB
	tx    *sqlx.Tx
	dirty bool
}

// tracked is the open transaction as handed to repositories. It records
// whether any statement changed a row.
type tracked struct {
	*sqlx.Tx
	dirty *bool
}

func (t tracked) ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error) {
	res, err := t.Tx.ExecContext(ctx, query, args...)
	if err != nil {
		return res, err
	}
	if n, rerr := res.RowsAffected(); rerr != nil || n > 0 {
		*t.dirty = true
	}
	return res, nil
}

func NewUnitOfWork(db *sqlx.DB) *UnitOfWork { return &UnitOfWork{db: db} }

func (u *UnitOfWork) Begin(ctx context.Context) error {
	if u.tx != nil {
		return fmt.Errorf("%w: transaction already started", domain.ErrTxState)
	}
	tx, err := u.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	u.tx = tx
	u.dirty = false
	return nil
}

// SaveChanges flushes pending writes. Statements execute eagerly on the open
// transaction, so this only verifies that one is open.
func (u *UnitOfWork) SaveChanges(ctx context.Context) error {
	if u.tx == nil {
		return fmt.Errorf("%w: no active transaction", domain.ErrTxState)
	}
	return ctx.Err()
}

func (u *UnitOfWork) Commit() error {
	if u.tx == nil {
		return fmt.Errorf("%w: no active transaction to commit", domain.ErrTxState)
	}
	tx := u.tx
	u.tx = nil
	return tx.Commit()
}

func (u *UnitOfWork) Rollback() error {
	if u.tx == nil {
		return fmt.Errorf("%w: no active transaction to rollback", domain.ErrTxState)
	}
	tx := u.tx
	u.tx = nil
	return tx.Rollback()
}

func (u *UnitOfWork) Active() bool { return u.tx != nil }

// Dirty reports whether the open transaction has changed any row.
func (u *UnitOfWork) Dirty() bool { return u.dirty }

// Q returns the open transaction. Calling it outside Begin/Commit is a bug.
func (u *UnitOfWork) Q() sqlx.ExtContext {
	if u.tx == nil {
		panic("repos: UnitOfWork.Q called without an open transaction")
	}
	return tracked{Tx: u.tx, dirty: &u.dirty}
}

// Do runs fn inside a fresh transaction. A validation failure raised before
// any row changed commits the empty transaction and is returned as is. Every
// other failure, including a validation failure after a write, rolls back.
func (u *UnitOfWork) Do(ctx context.Context, fn func(q sqlx.ExtContext) error) error {
	if err := u.Begin(ctx); err != nil {
		return err
	}
	defer func() {
		// fn panicked
		if u.tx != nil {
			_ = u.Rollback()
		}
	}()

	if err := fn(u.Q()); err != nil {
		if domain.IsValidation(err) && !u.dirty {
			if cerr := u.Commit(); cerr != nil {
				return cerr
			}
			return err
		}
		_ = u.Rollback()
		return err
	}
	if err := u.SaveChanges(ctx); err != nil {
		_ = u.Rollback()
		return err
	}
	return u.Commit()
}
