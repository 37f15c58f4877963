package bank

import (
	"context"
	"errors"
	"fmt"

	"github.com/ethereum/go-ethereum/common"

	"partnerledger/core/state"
	"partnerledger/native/currency"
)

// Transfer moves asset of currency id from one account to another. Both
// sides are updated in the same transaction or not at all.
func (l *Ledger) Transfer(ctx context.Context, id, from, to common.Address, asset currency.Asset) error {
	if asset == nil || asset.IsZero() {
		return nil
	}
	if from == to {
		return ErrSelfTransfer
	}
	return l.run(ctx, func(kv state.KV) error {
		src, err := l.load(kv, from, id, asset)
		if err != nil {
			return err
		}
		if err := src.Sub(asset); err != nil {
			if errors.Is(err, currency.ErrInsufficientBalance) {
				return fmt.Errorf("%w: %s holds too little %s", ErrInsufficientFunds, from.Hex(), id.Hex())
			}
			return err
		}
		dst, err := l.load(kv, to, id, asset)
		if err != nil {
			return err
		}
		if err := dst.Add(asset); err != nil {
			return err
		}
		if err := currency.SaveHoldings(kv, balanceKey(from, id), src); err != nil {
			return err
		}
		return currency.SaveHoldings(kv, balanceKey(to, id), dst)
	})
}
