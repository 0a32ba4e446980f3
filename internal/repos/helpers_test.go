package repos_test

import (
	"testing"

	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/require"

	"storefront/internal/repos"
)

func memdb(t *testing.T) *sqlx.DB {
	t.Helper()
	db, err := repos.OpenDB("sqlite", ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return db
}

// addVariant inserts a variant of seeded product 1 with the given stock.
func addVariant(t *testing.T, db *sqlx.DB, id int64, qty, reserved int) {
	t.Helper()
	_, err := db.Exec(`INSERT INTO variants(id, product_id, color_id, size_id, quantity, reserved) VALUES (?, 1, 1, 1, ?, ?)`, id, qty, reserved)
	require.NoError(t, err)
}

func reservedOf(t *testing.T, db *sqlx.DB, id int64) int {
	t.Helper()
	var n int
	require.NoError(t, db.Get(&n, `SELECT reserved FROM variants WHERE id = ?`, id))
	return n
}
