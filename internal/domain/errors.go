package domain

import "errors"

var (
	ErrNotFound          = errors.New("variant not found")
	ErrLineNotFound      = errors.New("cart item not found")
	ErrInsufficientStock = errors.New("insufficient stock")
	ErrInvalidQuantity   = errors.New("invalid quantity")
	ErrGuestRetired      = errors.New("guest cart already merged")
	ErrTxState           = errors.New("transaction state")
)

// IsValidation reports whether err is an expected rejection that leaves state
// untouched, as opposed to a failure that must roll the transaction back.
func IsValidation(err error) bool {
	return errors.Is(err, ErrNotFound) ||
		errors.Is(err, ErrLineNotFound) ||
		errors.Is(err, ErrInsufficientStock) ||
		errors.Is(err, ErrInvalidQuantity) ||
		errors.Is(err, ErrGuestRetired)
}
