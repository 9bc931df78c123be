package portfolio

import (
	"errors"

	"portfolio-sim-go/internal/market"
)

// Validation failures. They are user-input errors: reported to the caller,
// never retried and never fatal.
var (
	ErrInvalidAmount        = errors.New("invalid amount")
	ErrInsufficientFunds    = errors.New("insufficient funds")
	ErrNoPosition           = errors.New("no open position")
	ErrBelowMinimum         = errors.New("below minimum withdrawal")
	ErrWithdrawalRestricted = errors.New("withdrawal restricted to profits")

	// ErrUnknownSymbol is re-exported so callers need not import market.
	ErrUnknownSymbol = market.ErrUnknownSymbol
)

// IsValidation reports whether err is one of the user-input validation failures.
func IsValidation(err error) bool {
	for _, target := range []error{
		ErrInvalidAmount,
		ErrInsufficientFunds,
		ErrNoPosition,
		ErrBelowMinimum,
		ErrWithdrawalRestricted,
		ErrUnknownSymbol,
	} {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}
