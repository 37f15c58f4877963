package common

import (
	"errors"
	"math/big"

	"github.com/holiman/uint256"
)

var (
	ErrQuotaExceeded        = errors.New("quota exceeded")
	ErrQuotaCounterOverflow = errors.New("quota counter overflow")
)

// Window captures a fixed-window usage counter. The window starts at Start
// (unix seconds) and lasts one period; it is rolled lazily on the next check
// that observes it has elapsed.
type Window struct {
	Start int64
	Used  *big.Int
	Limit *big.Int
}

// CheckWindow verifies whether add fits within the window limit at time now.
// The returned Window reflects the updated counters when the quota is not
// exceeded; on denial the previous window is returned unchanged.
func CheckWindow(prev Window, now, period int64, add *big.Int) (Window, error) {
	next := Window{Start: prev.Start, Used: cloneOrZero(prev.Used), Limit: prev.Limit}
	if period > 0 && now >= prev.Start+period {
		next.Start = now
		next.Used = new(big.Int)
	}
	if add == nil || add.Sign() <= 0 {
		return next, nil
	}
	used := new(big.Int).Add(next.Used, add)
	if _, overflow := uint256.FromBig(used); overflow {
		return prev, ErrQuotaCounterOverflow
	}
	if prev.Limit != nil && used.Cmp(prev.Limit) > 0 {
		return prev, ErrQuotaExceeded
	}
	next.Used = used
	return next, nil
}

func cloneOrZero(v *big.Int) *big.Int {
	if v == nil {
		return new(big.Int)
	}
	return new(big.Int).Set(v)
}
