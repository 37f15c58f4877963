package events

import (
	"math/big"
	"strconv"

	"github.com/ethereum/go-ethereum/common"

	"partnerledger/core/types"
)

const (
	TypeCurrencyAdded        = "currency.added"
	TypeCurrencyRemoved      = "currency.removed"
	TypeCurrencyLimitChanged = "currency.limit_changed"
)

type CurrencyAdded struct {
	Currency    common.Address
	Kind        string
	Limit       *big.Int
	Reactivated bool
}

func (CurrencyAdded) EventType() string { return TypeCurrencyAdded }

func (e CurrencyAdded) Event() *types.Event {
	return &types.Event{
		Type: TypeCurrencyAdded,
		Attributes: map[string]string{
			"currency":    formatAddress(e.Currency),
			"kind":        e.Kind,
			"limit":       formatAmount(e.Limit),
			"reactivated": strconv.FormatBool(e.Reactivated),
		},
	}
}

type CurrencyRemoved struct {
	Currency common.Address
}

func (CurrencyRemoved) EventType() string { return TypeCurrencyRemoved }

func (e CurrencyRemoved) Event() *types.Event {
	return &types.Event{
		Type:       TypeCurrencyRemoved,
		Attributes: map[string]string{"currency": formatAddress(e.Currency)},
	}
}

type CurrencyLimitChanged struct {
	Currency common.Address
	Previous *big.Int
	Limit    *big.Int
}

func (CurrencyLimitChanged) EventType() string { return TypeCurrencyLimitChanged }

func (e CurrencyLimitChanged) Event() *types.Event {
	return &types.Event{
		Type: TypeCurrencyLimitChanged,
		Attributes: map[string]string{
			"currency": formatAddress(e.Currency),
			"previous": formatAmount(e.Previous),
			"limit":    formatAmount(e.Limit),
		},
	}
}
