package currency

import "errors"

var (
	ErrAlreadyAccepted     = errors.New("currency: already accepted")
	ErrNotAccepted         = errors.New("currency: not accepted")
	ErrInvalidLimit        = errors.New("currency: invalid limit")
	ErrInvalidCurrency     = errors.New("currency: invalid currency")
	ErrInvalidArgument     = errors.New("currency: invalid argument")
	ErrInvalidKind         = errors.New("currency: invalid kind")
	ErrKindMismatch        = errors.New("currency: kind mismatch")
	ErrInvalidAmount       = errors.New("currency: invalid amount")
	ErrAmountOverflow      = errors.New("currency: amount exceeds 256 bits")
	ErrZeroAmount          = errors.New("currency: zero amount")
	ErrLengthMismatch      = errors.New("currency: token ids and amounts length mismatch")
	ErrDuplicateToken      = errors.New("currency: duplicate token id")
	ErrInsufficientBalance = errors.New("currency: insufficient balance")
	ErrOverTheLimit        = errors.New("currency: over the limit")
)
