package pauses

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"partnerledger/core/events"
	"partnerledger/core/state"
	"partnerledger/native/access"
)

var (
	ErrUnknownModule = errors.New("pauses: unknown module")
	ErrNoChange      = errors.New("pauses: state unchanged")
)

// Controller toggles circuit breakers. Toggling requires the pauser role.
type Controller struct {
	state     *state.Manager
	authority access.Authority
	nowFn     func() int64
}

func NewController(mgr *state.Manager, authority access.Authority) *Controller {
	return &Controller{state: mgr, authority: authority, nowFn: func() int64 { return time.Now().Unix() }}
}

// SetNowFunc overrides the time source used for pause timestamps.
func (c *Controller) SetNowFunc(now func() int64) {
	if now == nil {
		c.nowFn = func() int64 { return time.Now().Unix() }
		return
	}
	c.nowFn = now
}

func (c *Controller) Pause(ctx context.Context, caller common.Address, module string) error {
	return c.toggle(ctx, caller, module, true)
}

func (c *Controller) Unpause(ctx context.Context, caller common.Address, module string) error {
	return c.toggle(ctx, caller, module, false)
}

func (c *Controller) toggle(ctx context.Context, caller common.Address, module string, paused bool) error {
	if err := access.Require(c.authority, caller, access.RolePauser); err != nil {
		return err
	}
	module = normaliseModule(module)
	if _, ok := knownModules[module]; !ok {
		return fmt.Errorf("%w: %q", ErrUnknownModule, module)
	}
	return c.state.Atomic(ctx, func(ctx context.Context, tx *state.Tx) error {
		store := NewStore(tx)
		current, err := store.Load(module)
		if err != nil {
			return err
		}
		if current.Paused == paused {
			return ErrNoChange
		}
		if err := store.Save(Status{Module: module, Paused: paused, By: caller, Since: c.nowFn()}); err != nil {
			return err
		}
		tx.AppendEvent(events.PauseToggled{Module: module, By: caller, Paused: paused})
		return nil
	})
}

// IsPaused reads committed breaker state, or the active transaction's view
// when called with one on ctx.
func (c *Controller) IsPaused(ctx context.Context, module string) bool {
	paused := true
	err := c.state.View(ctx, func(kv state.KV) error {
		paused = NewStore(kv).IsPaused(module)
		return nil
	})
	return err == nil && paused
}

// Statuses lists the breakers that were ever toggled.
func (c *Controller) Statuses(ctx context.Context) ([]Status, error) {
	var out []Status
	err := c.state.View(ctx, func(kv state.KV) error {
		list, err := NewStore(kv).List()
		out = list
		return err
	})
	return out, err
}
