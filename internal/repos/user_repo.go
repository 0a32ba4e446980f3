package repos

import (
	"context"
	"time"

	"github.com/jmoiron/sqlx"

	"storefront/internal/domain"
)

type UserRepo struct{ DB *sqlx.DB }

func NewUserRepo(db *sqlx.DB) *UserRepo { return &UserRepo{DB: db} }

func (r *UserRepo) ByEmail(ctx context.Context, email string) (*domain.User, error) {
	var u domain.User
	err := r.DB.GetContext(ctx, &u, r.DB.Rebind(
		`SELECT id,email,name,password_hash,role FROM users WHERE LOWER(email)=LOWER(?)`), email)
	if err != nil {
		return nil, err
	}
	return &u, nil
}

// BindSession links the session cookie to a user, creating the session row if needed.
func (r *UserRepo) BindSession(ctx context.Context, sid, userID string) error {
	now := time.Now().UTC()
	res, err := r.DB.ExecContext(ctx, r.DB.Rebind(`UPDATE sessions SET user_id=?, last_seen=? WHERE id=?`), userID, now, sid)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n > 0 {
		return nil
	}
	_, err = r.DB.ExecContext(ctx, r.DB.Rebind(`INSERT INTO sessions(id,user_id,last_seen) VALUES(?,?,?)`), sid, userID, now)
	return err
}

func (r *UserRepo) SessionUser(ctx context.Context, sid string) (*domain.User, error) {
	var u domain.User
	err := r.DB.GetContext(ctx, &u, r.DB.Rebind(`
      SELECT u.id,u.email,u.name,u.password_hash,u.role
      FROM sessions s
      JOIN users u ON u.id=s.user_id
      WHERE s.id=?`), sid)
	if err != nil {
		return nil, err
	}
	return &u, nil
}

func (r *UserRepo) UnbindSession(ctx context.Context, sid string) error {
	_, err := r.DB.ExecContext(ctx, r.DB.Rebind(`UPDATE sessions SET user_id=NULL,last_seen=? WHERE id=?`), time.Now().UTC(), sid)
	return err
}
