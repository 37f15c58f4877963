package bank

import (
	"context"
	"errors"
	"fmt"

	"github.com/ethereum/go-ethereum/common"

	"partnerledger/core/state"
	"partnerledger/native/currency"
)

var (
	ErrUnknownToken      = errors.New("bank: unknown token")
	ErrTokenExists       = errors.New("bank: token already registered")
	ErrSelfTransfer      = errors.New("bank: sender and recipient are identical")
	ErrInsufficientFunds = errors.New("bank: insufficient funds")
)

type tokenRecord struct {
	Kind uint8
}

// Ledger holds balances for every account and currency kind. It is the
// value-transfer primitive and token inspector the engines consume. Calls
// made with a transaction on the context join it; otherwise each call runs in
// its own transaction.
type Ledger struct {
	state *state.Manager
}

func NewLedger(mgr *state.Manager) *Ledger {
	return &Ledger{state: mgr}
}

func (l *Ledger) run(ctx context.Context, fn func(kv state.KV) error) error {
	if tx, ok := state.TxFromContext(ctx); ok {
		return fn(tx)
	}
	return l.state.Atomic(ctx, func(_ context.Context, tx *state.Tx) error {
		return fn(tx)
	})
}

// RegisterToken records a token contract of the given kind. The native
// currency is implicit and cannot be registered.
func (l *Ledger) RegisterToken(ctx context.Context, id common.Address, kind currency.Kind) error {
	if !kind.Valid() || kind == currency.KindNative {
		return fmt.Errorf("%w: %s", currency.ErrInvalidKind, kind)
	}
	if id == currency.NativeCurrency {
		return fmt.Errorf("%w: zero address is reserved for the native currency", currency.ErrInvalidCurrency)
	}
	return l.run(ctx, func(kv state.KV) error {
		ok, err := kv.KVGet(tokenKey(id), nil)
		if err != nil {
			return err
		}
		if ok {
			return ErrTokenExists
		}
		return kv.KVPut(tokenKey(id), tokenRecord{Kind: uint8(kind)})
	})
}

func tokenKind(kv state.KV, id common.Address) (currency.Kind, bool, error) {
	if id == currency.NativeCurrency {
		return currency.KindNative, true, nil
	}
	var rec tokenRecord
	ok, err := kv.KVGet(tokenKey(id), &rec)
	if err != nil || !ok {
		return currency.KindUnknown, false, err
	}
	return currency.Kind(rec.Kind), true, nil
}

// Supports reports whether id is a token of kind. It implements
// currency.Inspector.
func (l *Ledger) Supports(ctx context.Context, id common.Address, kind currency.Kind) bool {
	var supported bool
	err := l.state.View(ctx, func(kv state.KV) error {
		stored, ok, err := tokenKind(kv, id)
		supported = ok && stored == kind
		return err
	})
	return err == nil && supported
}

// Balance returns the holdings of account in currency id.
func (l *Ledger) Balance(ctx context.Context, account, id common.Address) (*currency.Holdings, error) {
	var out *currency.Holdings
	err := l.state.View(ctx, func(kv state.KV) error {
		kind, ok, err := tokenKind(kv, id)
		if err != nil {
			return err
		}
		if !ok {
			return fmt.Errorf("%w: %s", ErrUnknownToken, id.Hex())
		}
		out, err = currency.LoadHoldings(kv, balanceKey(account, id), kind)
		return err
	})
	return out, err
}

// Mint credits account with asset out of thin air. It backs faucet seeding
// and tests.
func (l *Ledger) Mint(ctx context.Context, account, id common.Address, asset currency.Asset) error {
	return l.run(ctx, func(kv state.KV) error {
		h, err := l.load(kv, account, id, asset)
		if err != nil {
			return err
		}
		if err := h.Add(asset); err != nil {
			return err
		}
		return currency.SaveHoldings(kv, balanceKey(account, id), h)
	})
}

func (l *Ledger) load(kv state.KV, account, id common.Address, asset currency.Asset) (*currency.Holdings, error) {
	if asset == nil {
		return nil, fmt.Errorf("%w: nil asset", currency.ErrInvalidAmount)
	}
	kind, ok, err := tokenKind(kv, id)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownToken, id.Hex())
	}
	if kind != asset.Kind() {
		return nil, fmt.Errorf("%w: %s is %s, asset is %s", currency.ErrKindMismatch, id.Hex(), kind, asset.Kind())
	}
	return currency.LoadHoldings(kv, balanceKey(account, id), kind)
}
