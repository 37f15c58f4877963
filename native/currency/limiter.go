package currency

import (
	"errors"
	"fmt"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"partnerledger/core/state"
	nativecommon "partnerledger/native/common"
)

// Limiter enforces the per-currency cumulative claim ceiling over fixed
// cooldown windows. Window state lives on the currency record, so the
// limiter itself holds configuration only.
type Limiter struct {
	cooldown int64
	nowFn    func() int64
}

// NewLimiter builds a limiter with the given cooldown period.
func NewLimiter(cooldown time.Duration) *Limiter {
	return &Limiter{
		cooldown: int64(cooldown / time.Second),
		nowFn:    func() int64 { return time.Now().Unix() },
	}
}

// SetNowFunc overrides the time source used by the limiter.
func (l *Limiter) SetNowFunc(now func() int64) {
	if now == nil {
		l.nowFn = func() int64 { return time.Now().Unix() }
		return
	}
	l.nowFn = now
}

// Cooldown returns the window length.
func (l *Limiter) Cooldown() time.Duration {
	return time.Duration(l.cooldown) * time.Second
}

// TryReserve counts units claimed by recipient against the currency window,
// rolling the window first when the cooldown has elapsed. It fails with
// ErrOverTheLimit without touching state when the ceiling would be exceeded.
// The all-time per-recipient counter is updated alongside for reporting.
func (l *Limiter) TryReserve(kv state.KV, recipient, id common.Address, units *big.Int) error {
	if units == nil || units.Sign() <= 0 {
		return nil
	}
	store := NewStore(kv)
	c, ok, err := store.Get(id)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("%w: %s", ErrNotAccepted, id.Hex())
	}
	window := nativecommon.Window{Start: c.WindowStart, Used: c.ClaimedInWindow, Limit: c.ClaimLimit}
	next, err := nativecommon.CheckWindow(window, l.nowFn(), l.cooldown, units)
	if err != nil {
		if errors.Is(err, nativecommon.ErrQuotaExceeded) {
			return fmt.Errorf("%w: %s claims %s in window, limit %s", ErrOverTheLimit, c, new(big.Int).Add(window.Used, units), c.ClaimLimit)
		}
		return err
	}
	c.WindowStart = next.Start
	c.ClaimedInWindow = next.Used
	if err := store.Put(c); err != nil {
		return err
	}
	return store.addUserClaims(recipient, id, units)
}
