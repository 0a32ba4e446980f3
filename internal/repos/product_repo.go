package repos

import (
	"context"

	"github.com/jmoiron/sqlx"

	"storefront/internal/domain"
)

type ProductRepo struct{}

func NewProductRepo() *ProductRepo { return &ProductRepo{} }

// VariantDisplays resolves localized display data for the given variants,
// keyed by variant id. Missing translations come back as empty strings.
func (r *ProductRepo) VariantDisplays(ctx context.Context, q sqlx.ExtContext, ids []int64, locale string) (map[int64]domain.VariantDisplay, error) {
	out := make(map[int64]domain.VariantDisplay, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	query, args, err := sqlx.In(`
		SELECT
		  v.id AS variant_id, v.product_id,
		  COALESCE(pt.name, '') AS name,
		  COALESCE(pt.description, '') AS description,
		  p.price,
		  COALESCE((SELECT vi.url FROM variant_images vi
		            WHERE vi.variant_id = v.id
		            ORDER BY vi.sort_order, vi.id LIMIT 1), '') AS image,
		  COALESCE(ct.name, '') AS color,
		  c.hex_code,
		  s.name AS size,
		  v.reserved
		FROM variants v
		JOIN products p ON p.id = v.product_id
		JOIN colors c ON c.id = v.color_id
		JOIN sizes s ON s.id = v.size_id
		LEFT JOIN product_translations pt ON pt.product_id = p.id AND pt.locale = ?
		LEFT JOIN color_translations ct ON ct.color_id = c.id AND ct.locale = ?
		WHERE v.id IN (?)
	`, locale, locale, ids)
	if err != nil {
		return nil, err
	}

	var rows []domain.VariantDisplay
	if err := sqlx.SelectContext(ctx, q, &rows, q.Rebind(query), args...); err != nil {
		return nil, err
	}
	for _, d := range rows {
		out[d.VariantID] = d
	}
	return out, nil
}
