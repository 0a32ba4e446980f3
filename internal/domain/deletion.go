package domain

import "time"

// Deletion is how an entity's rows are removed.
type Deletion int

const (
	HardDelete Deletion = iota
	SoftDelete // stamp deleted_at, keep the row
)

// Deletable is implemented on the value type of every entity that can be
// deleted, so the policy is fixed per type at compile time.
type Deletable interface {
	Table() string
	Deletion() Deletion
}

// Product is the catalog row that owns variants. Soft-deleted products keep
// their variants so existing reservations can still be released.
type Product struct {
	ID            int64      `db:"id"`
	Price         float64    `db:"price"`
	OriginalPrice float64    `db:"original_price"`
	DeletedAt     *time.Time `db:"deleted_at"`
}

func (Product) Table() string      { return "products" }
func (Product) Deletion() Deletion { return SoftDelete }

func (User) Table() string      { return "users" }
func (User) Deletion() Deletion { return HardDelete }
