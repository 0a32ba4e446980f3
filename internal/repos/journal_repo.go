package repos

import (
	"context"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"storefront/internal/domain"
)

// JournalRepo appends reservation movements. Rows are written in the same
// transaction as the Reserved change they describe.
type JournalRepo struct{}

func NewJournalRepo() *JournalRepo { return &JournalRepo{} }

func (r *JournalRepo) Append(ctx context.Context, q sqlx.ExtContext, e *domain.ReservationEntry) error {
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	e.CreatedAt = e.CreatedAt.UTC()
	_, err := q.ExecContext(ctx, q.Rebind(`
		INSERT INTO reservation_journal(id, variant_id, owner_kind, owner_id, delta, reason, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`), e.ID, e.VariantID, string(e.OwnerKind), e.OwnerID, e.Delta, string(e.Reason), e.CreatedAt)
	return err
}

// ByVariant lists a variant's movements in insertion order.
func (r *JournalRepo) ByVariant(ctx context.Context, q sqlx.ExtContext, variantID int64) ([]domain.ReservationEntry, error) {
	out := []domain.ReservationEntry{}
	err := sqlx.SelectContext(ctx, q, &out, q.Rebind(`
		SELECT id, variant_id, owner_kind, owner_id, delta, reason, created_at
		FROM reservation_journal
		WHERE variant_id = ?
		ORDER BY created_at, id
	`), variantID)
	return out, err
}

// NetReserved sums the deltas recorded for a variant.
func (r *JournalRepo) NetReserved(ctx context.Context, q sqlx.ExtContext, variantID int64) (int, error) {
	var n int
	err := sqlx.GetContext(ctx, q, &n, q.Rebind(
		`SELECT COALESCE(SUM(delta), 0) FROM reservation_journal WHERE variant_id = ?`), variantID)
	return n, err
}
