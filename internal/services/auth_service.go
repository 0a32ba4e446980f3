package services

import (
	"context"
	"errors"

	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"storefront/internal/domain"
	"storefront/internal/repos"
)

var ErrBadCreds = errors.New("invalid email or password")

type AuthService struct {
	Users *repos.UserRepo
	Carts *CartService
	Log   *zap.Logger
}

// Login verifies credentials and binds the session. When the client carried a
// guest cart, it is merged into the user's cart; a failed merge does not fail
// the login and is reported through the returned MergeResult.
func (s *AuthService) Login(ctx context.Context, sid, email, password, guestID string) (*domain.User, *MergeResult, error) {
	u, err := s.Users.ByEmail(ctx, email)
	if err != nil {
		return nil, nil, ErrBadCreds
	}
	if bcrypt.CompareHashAndPassword([]byte(u.Hash), []byte(password)) != nil {
		return nil, nil, ErrBadCreds
	}
	if err := s.Users.BindSession(ctx, sid, u.ID); err != nil {
		return nil, nil, err
	}
	if guestID == "" || s.Carts == nil {
		return u, nil, nil
	}

	res := s.Carts.Merge(ctx, u.ID, guestID)
	if !res.Success && s.Log != nil {
		s.Log.Warn("merge guest cart at login", zap.String("user_id", u.ID), zap.String("guest_id", guestID), zap.Error(res.Err))
	}
	return u, &res, nil
}

func (s *AuthService) Logout(ctx context.Context, sid string) error {
	return s.Users.UnbindSession(ctx, sid)
}

func (s *AuthService) CurrentUser(ctx context.Context, sid string) (*domain.User, error) {
	return s.Users.SessionUser(ctx, sid)
}
