package vault

import (
	"errors"

	"partnerledger/native/currency"
)

var (
	ErrZeroAmount               = errors.New("vault: zero amount")
	ErrTokenCurrencyNotAccepted = errors.New("vault: currency not accepted")
	ErrProjectNotRegistered     = errors.New("vault: project not registered")
	ErrInsufficientBudget       = errors.New("vault: insufficient budget")
	ErrNoRemovalApplication     = errors.New("vault: no budget removal application")
	ErrOutsideRemovalWindow     = errors.New("vault: outside budget removal window")
	ErrNotProjectAdmin          = errors.New("vault: caller is not the project admin")
	ErrNothingToClaim           = errors.New("vault: nothing to claim")

	// Shape errors surface unchanged from asset resolution.
	ErrInvalidCurrency = currency.ErrInvalidCurrency
	ErrLengthMismatch  = currency.ErrLengthMismatch
)
