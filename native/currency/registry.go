package currency

import (
	"context"
	"fmt"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"partnerledger/core/events"
	"partnerledger/core/state"
	"partnerledger/native/access"
)

// Inspector reports whether an address behaves as a currency of the given
// kind (e.g. a deployed token contract rather than an externally owned
// account). Implementations may join the transaction carried by ctx.
type Inspector interface {
	Supports(ctx context.Context, id common.Address, kind Kind) bool
}

// Registry administers the accepted currency set. Mutations require the admin
// role and run atomically through the state manager.
type Registry struct {
	state     *state.Manager
	authority access.Authority
	inspector Inspector
	nowFn     func() int64
}

func NewRegistry(mgr *state.Manager, authority access.Authority, inspector Inspector) *Registry {
	return &Registry{
		state:     mgr,
		authority: authority,
		inspector: inspector,
		nowFn:     func() int64 { return time.Now().Unix() },
	}
}

// SetNowFunc overrides the time source used by the registry. Primarily
// intended for tests to provide deterministic timestamps.
func (r *Registry) SetNowFunc(now func() int64) {
	if now == nil {
		r.nowFn = func() int64 { return time.Now().Unix() }
		return
	}
	r.nowFn = now
}

func (r *Registry) behavesAs(ctx context.Context, id common.Address, kind Kind) bool {
	if kind == KindNative {
		return id == NativeCurrency
	}
	if id == NativeCurrency {
		return false
	}
	if r.inspector == nil {
		return true
	}
	return r.inspector.Supports(ctx, id, kind)
}

// AddCurrency accepts id as a currency of kind with the given claim limit per
// cooldown window. Re-adding a removed currency reactivates it with the new
// limit but keeps its window counters, so remove+add cannot reset a limit.
func (r *Registry) AddCurrency(ctx context.Context, caller, id common.Address, kind Kind, limit *big.Int) error {
	if err := access.Require(r.authority, caller, access.RoleAdmin); err != nil {
		return err
	}
	if !kind.Valid() {
		return fmt.Errorf("%w: %d", ErrInvalidKind, kind)
	}
	return r.state.Atomic(ctx, func(ctx context.Context, tx *state.Tx) error {
		store := NewStore(tx)
		existing, ok, err := store.Get(id)
		if err != nil {
			return err
		}
		if ok && existing.Active {
			return ErrAlreadyAccepted
		}
		if limit == nil || limit.Sign() <= 0 {
			return ErrInvalidLimit
		}
		if err := checkAmount(limit); err != nil {
			return err
		}
		if ok && existing.Kind != kind {
			return fmt.Errorf("%w: %s was registered as %s", ErrInvalidCurrency, id.Hex(), existing.Kind)
		}
		if !r.behavesAs(ctx, id, kind) {
			return fmt.Errorf("%w: %s does not behave as %s", ErrInvalidCurrency, id.Hex(), kind)
		}
		next := &Currency{
			ID:              id,
			Kind:            kind,
			Active:          true,
			ClaimLimit:      new(big.Int).Set(limit),
			ClaimedInWindow: new(big.Int),
			WindowStart:     r.nowFn(),
		}
		if ok {
			next.ClaimedInWindow = existing.ClaimedInWindow
			next.WindowStart = existing.WindowStart
		}
		if err := store.Put(next); err != nil {
			return err
		}
		tx.AppendEvent(events.CurrencyAdded{Currency: id, Kind: kind.String(), Limit: limit, Reactivated: ok})
		return nil
	})
}

// RemoveCurrency deactivates id. Limit and window state are retained.
func (r *Registry) RemoveCurrency(ctx context.Context, caller, id common.Address) error {
	if err := access.Require(r.authority, caller, access.RoleAdmin); err != nil {
		return err
	}
	return r.state.Atomic(ctx, func(ctx context.Context, tx *state.Tx) error {
		store := NewStore(tx)
		existing, ok, err := store.Get(id)
		if err != nil {
			return err
		}
		if !ok || !existing.Active {
			return ErrNotAccepted
		}
		existing.Active = false
		if err := store.Put(existing); err != nil {
			return err
		}
		tx.AppendEvent(events.CurrencyRemoved{Currency: id})
		return nil
	})
}

// SetLimit changes the claim limit per window. The new limit must be non-zero
// and differ from the current one.
func (r *Registry) SetLimit(ctx context.Context, caller, id common.Address, limit *big.Int) error {
	if err := access.Require(r.authority, caller, access.RoleAdmin); err != nil {
		return err
	}
	if limit == nil || limit.Sign() <= 0 {
		return fmt.Errorf("%w: limit must be positive", ErrInvalidArgument)
	}
	if err := checkAmount(limit); err != nil {
		return err
	}
	return r.state.Atomic(ctx, func(ctx context.Context, tx *state.Tx) error {
		store := NewStore(tx)
		existing, ok, err := store.Get(id)
		if err != nil {
			return err
		}
		if !ok {
			return ErrNotAccepted
		}
		if existing.ClaimLimit.Cmp(limit) == 0 {
			return fmt.Errorf("%w: limit unchanged", ErrInvalidArgument)
		}
		previous := existing.ClaimLimit
		existing.ClaimLimit = new(big.Int).Set(limit)
		if err := store.Put(existing); err != nil {
			return err
		}
		tx.AppendEvent(events.CurrencyLimitChanged{Currency: id, Previous: previous, Limit: limit})
		return nil
	})
}

// IsAccepted reports whether id is currently active.
func (r *Registry) IsAccepted(ctx context.Context, id common.Address) bool {
	c, err := r.Currency(ctx, id)
	return err == nil && c.Active
}

// Currency returns the stored record for id, or ErrNotAccepted when it was
// never added.
func (r *Registry) Currency(ctx context.Context, id common.Address) (*Currency, error) {
	var out *Currency
	err := r.state.View(ctx, func(kv state.KV) error {
		c, ok, err := NewStore(kv).Get(id)
		if err != nil {
			return err
		}
		if !ok {
			return ErrNotAccepted
		}
		out = c
		return nil
	})
	return out, err
}

// Currencies lists every currency ever added, active or not.
func (r *Registry) Currencies(ctx context.Context) ([]*Currency, error) {
	var out []*Currency
	err := r.state.View(ctx, func(kv state.KV) error {
		list, err := NewStore(kv).List()
		out = list
		return err
	})
	return out, err
}
