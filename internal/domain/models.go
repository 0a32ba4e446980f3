package domain

import "time"

// Variant is a purchasable product variant. Reserved is the sum of every cart
// line quantity that points at it and never exceeds Quantity once committed.
type Variant struct {
	ID        int64 `db:"id"`
	ProductID int64 `db:"product_id"`
	ColorID   int64 `db:"color_id"`
	SizeID    int64 `db:"size_id"`
	Quantity  int   `db:"quantity"`
	Reserved  int   `db:"reserved"`
}

func (v Variant) Available() int { return v.Quantity - v.Reserved }

type OwnerKind string

const (
	OwnerUser  OwnerKind = "user"
	OwnerGuest OwnerKind = "guest"
)

// Owner identifies whose cart a line belongs to.
type Owner struct {
	Kind OwnerKind
	ID   string
}

func UserOwner(id string) Owner  { return Owner{Kind: OwnerUser, ID: id} }
func GuestOwner(id string) Owner { return Owner{Kind: OwnerGuest, ID: id} }

func (o Owner) String() string { return string(o.Kind) + ":" + o.ID }

// CartLine is one (owner, variant, quantity) reservation. ExpireAt is only set
// for guest lines.
type CartLine struct {
	ID        int64      `db:"id"`
	OwnerID   string     `db:"owner_id"`
	VariantID int64      `db:"variant_id"`
	Quantity  int        `db:"quantity"`
	CreatedAt time.Time  `db:"created_at"`
	UpdatedAt time.Time  `db:"updated_at"`
	ExpireAt  *time.Time `db:"expire_at"`
}

// Live reports whether the line is still visible at now.
func (l CartLine) Live(now time.Time) bool {
	return l.ExpireAt == nil || l.ExpireAt.After(now)
}

// CartLineView is a cart line enriched with catalog display data.
type CartLineView struct {
	ID          int64      `json:"id"`
	ProductID   int64      `json:"productId"`
	VariantID   int64      `json:"variantId"`
	Name        string     `json:"name"`
	Description string     `json:"description"`
	Price       float64    `json:"price"`
	Image       string     `json:"image,omitempty"`
	Color       string     `json:"color"`
	HexCode     string     `json:"hexCode"`
	Size        string     `json:"size"`
	Reserved    int        `json:"reserved"`
	Quantity    int        `json:"quantity"`
	ExpireAt    *time.Time `json:"expireAt,omitempty"`
}

// VariantDisplay is what the catalog knows about a variant in one locale.
type VariantDisplay struct {
	VariantID   int64   `db:"variant_id"`
	ProductID   int64   `db:"product_id"`
	Name        string  `db:"name"`
	Description string  `db:"description"`
	Price       float64 `db:"price"`
	Image       string  `db:"image"`
	Color       string  `db:"color"`
	HexCode     string  `db:"hex_code"`
	Size        string  `db:"size"`
	Reserved    int     `db:"reserved"`
}

type Availability struct {
	Status string `json:"status"` // IN_STOCK | LOW_STOCK | OUT_OF_STOCK
	Qty    int    `json:"qty"`
}

type ReservationReason string

const (
	ReasonAdd      ReservationReason = "add"
	ReasonIncrease ReservationReason = "increase"
	ReasonDecrease ReservationReason = "decrease"
	ReasonRemove   ReservationReason = "remove"
	ReasonMerge    ReservationReason = "merge"
	ReasonExpire   ReservationReason = "expire"
)

// ReservationEntry is one journal row describing a change to Variant.Reserved.
// Merge rows carry a zero delta: ownership moves, the reservation does not.
type ReservationEntry struct {
	ID        string            `db:"id"`
	VariantID int64             `db:"variant_id"`
	OwnerKind OwnerKind         `db:"owner_kind"`
	OwnerID   string            `db:"owner_id"`
	Delta     int               `db:"delta"`
	Reason    ReservationReason `db:"reason"`
	CreatedAt time.Time         `db:"created_at"`
}

type User struct {
	ID    string `db:"id"`
	Email string `db:"email"`
	Name  string `db:"name"`
	Hash  string `db:"password_hash"`
	Role  string `db:"role"`
}

// CartOwner is the owner key of the user's persistent cart.
func (u *User) CartOwner() Owner { return UserOwner(u.ID) }
