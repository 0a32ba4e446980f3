package services

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"storefront/internal/domain"
	"storefront/internal/repos"
)

type AdminService struct {
	DB    *sqlx.DB
	Inv   *repos.InventoryRepo
	Carts *CartService
	Now   func() time.Time
}

func NewAdminService(db *sqlx.DB, inv *repos.InventoryRepo, carts *CartService) *AdminService {
	return &AdminService{DB: db, Inv: inv, Carts: carts, Now: time.Now}
}

func (s *AdminService) Inventory(ctx context.Context) ([]domain.Variant, error) {
	return s.Inv.ListAll(ctx, s.DB)
}

// DeleteProduct soft-deletes a product. Its variants can no longer be added
// to carts; lines already holding them can still be changed or removed.
func (s *AdminService) DeleteProduct(ctx context.Context, id int64) error {
	return repos.NewUnitOfWork(s.DB).Do(ctx, func(q sqlx.ExtContext) error {
		return repos.Delete[domain.Product](ctx, q, id, s.Now())
	})
}

// DeleteUser releases every reservation the user's cart holds, then removes
// the account. Sessions pointing at it are detached by the schema.
func (s *AdminService) DeleteUser(ctx context.Context, userID string) error {
	if res := s.Carts.Clear(ctx, domain.UserOwner(userID)); !res.Success {
		return fmt.Errorf("release cart of %s: %w", userID, res.Err)
	}
	return repos.NewUnitOfWork(s.DB).Do(ctx, func(q sqlx.ExtContext) error {
		return repos.Delete[domain.User](ctx, q, userID, s.Now())
	})
}
