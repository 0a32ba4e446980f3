package services

import (
	"context"
	"errors"

	"github.com/jmoiron/sqlx"

	"storefront/internal/domain"
	"storefront/internal/repos"
)

// LowStockThreshold is the available count below which a variant reads LOW_STOCK.
const LowStockThreshold = 5

type InventoryService struct {
	DB  *sqlx.DB
	Inv *repos.InventoryRepo
}

func NewInventoryService(db *sqlx.DB, inv *repos.InventoryRepo) *InventoryService {
	return &InventoryService{DB: db, Inv: inv}
}

// CheckAvailability converts unreserved stock to IN_STOCK / LOW_STOCK / OUT_OF_STOCK.
func (s *InventoryService) CheckAvailability(ctx context.Context, variantID int64) (domain.Availability, error) {
	v, err := s.Inv.Variant(ctx, s.DB, variantID)
	if err != nil {
		// Unknown or deleted variants are simply unavailable.
		if errors.Is(err, domain.ErrNotFound) {
			return domain.Availability{Status: "OUT_OF_STOCK", Qty: 0}, nil
		}
		return domain.Availability{}, err
	}

	qty := v.Available()
	status := "OUT_OF_STOCK"
	switch {
	case qty >= LowStockThreshold:
		status = "IN_STOCK"
	case qty > 0:
		status = "LOW_STOCK"
	}
	return domain.Availability{Status: status, Qty: qty}, nil
}
