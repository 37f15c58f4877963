package currency

import (
	"context"
	"errors"
	"math/big"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/require"

	"partnerledger/core/events"
	"partnerledger/core/state"
	"partnerledger/native/access"
	"partnerledger/storage"
)

type fakeInspector map[common.Address]Kind

func (f fakeInspector) Supports(_ context.Context, id common.Address, kind Kind) bool {
	return f[id] == kind
}

type captureEmitter struct{ events []events.Event }

func (c *captureEmitter) Emit(evt events.Event) { c.events = append(c.events, evt) }

var (
	admin    = common.HexToAddress("0xad")
	stranger = common.HexToAddress("0x57")
	usdc     = common.HexToAddress("0x1001")
	badge    = common.HexToAddress("0x1002")
	eoa      = common.HexToAddress("0x1003")
)

type fixture struct {
	mgr      *state.Manager
	registry *Registry
	limiter  *Limiter
	emitter  *captureEmitter
	now      int64
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{now: 1_000}
	f.mgr = state.NewManager(storage.NewMemDB())
	f.emitter = &captureEmitter{}
	f.mgr.SetEmitter(f.emitter)
	roles := access.NewRegistry()
	roles.Grant(access.RoleAdmin, admin)
	f.registry = NewRegistry(f.mgr, roles, fakeInspector{usdc: KindFungible, badge: KindNFT721})
	f.registry.SetNowFunc(func() int64 { return f.now })
	f.limiter = NewLimiter(time.Hour)
	f.limiter.SetNowFunc(func() int64 { return f.now })
	return f
}

func TestAddCurrencyValidation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	err := f.registry.AddCurrency(ctx, stranger, usdc, KindFungible, big.NewInt(10))
	require.ErrorIs(t, err, access.ErrUnauthorized)

	err = f.registry.AddCurrency(ctx, admin, usdc, KindFungible, big.NewInt(0))
	require.ErrorIs(t, err, ErrInvalidLimit)

	err = f.registry.AddCurrency(ctx, admin, eoa, KindFungible, big.NewInt(10))
	require.ErrorIs(t, err, ErrInvalidCurrency)

	err = f.registry.AddCurrency(ctx, admin, badge, KindFungible, big.NewInt(10))
	require.ErrorIs(t, err, ErrInvalidCurrency, "a 721 contract is not a fungible token")

	err = f.registry.AddCurrency(ctx, admin, usdc, KindNative, big.NewInt(10))
	require.ErrorIs(t, err, ErrInvalidCurrency, "native must be the zero address")

	require.NoError(t, f.registry.AddCurrency(ctx, admin, usdc, KindFungible, big.NewInt(10)))
	require.True(t, f.registry.IsAccepted(ctx, usdc))

	err = f.registry.AddCurrency(ctx, admin, usdc, KindFungible, big.NewInt(10))
	require.ErrorIs(t, err, ErrAlreadyAccepted)

	require.NoError(t, f.registry.AddCurrency(ctx, admin, NativeCurrency, KindNative, big.NewInt(5)))
	list, err := f.registry.Currencies(ctx)
	require.NoError(t, err)
	require.Len(t, list, 2)
	require.Equal(t, usdc, list[0].ID)
}

func TestAddActiveCurrencyReportsAlreadyAcceptedBeforeLimit(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	require.NoError(t, f.registry.AddCurrency(ctx, admin, usdc, KindFungible, big.NewInt(10)))

	err := f.registry.AddCurrency(ctx, admin, usdc, KindFungible, big.NewInt(0))
	require.ErrorIs(t, err, ErrAlreadyAccepted)
	err = f.registry.AddCurrency(ctx, admin, usdc, KindFungible, nil)
	require.ErrorIs(t, err, ErrAlreadyAccepted)

	require.NoError(t, f.registry.RemoveCurrency(ctx, admin, usdc))
	err = f.registry.AddCurrency(ctx, admin, usdc, KindFungible, big.NewInt(0))
	require.ErrorIs(t, err, ErrInvalidLimit)
}

func TestRemoveCurrencyKeepsWindowState(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	require.NoError(t, f.registry.AddCurrency(ctx, admin, usdc, KindFungible, big.NewInt(100)))

	require.NoError(t, f.mgr.Atomic(ctx, func(ctx context.Context, tx *state.Tx) error {
		return f.limiter.TryReserve(tx, stranger, usdc, big.NewInt(60))
	}))

	require.NoError(t, f.registry.RemoveCurrency(ctx, admin, usdc))
	require.False(t, f.registry.IsAccepted(ctx, usdc))
	require.ErrorIs(t, f.registry.RemoveCurrency(ctx, admin, usdc), ErrNotAccepted)

	f.now += 10
	require.NoError(t, f.registry.AddCurrency(ctx, admin, usdc, KindFungible, big.NewInt(100)))
	c, err := f.registry.Currency(ctx, usdc)
	require.NoError(t, err)
	require.Equal(t, int64(60), c.ClaimedInWindow.Int64(), "re-adding must not reset the window counter")
	require.Equal(t, int64(1_000), c.WindowStart)

	err = f.mgr.Atomic(ctx, func(ctx context.Context, tx *state.Tx) error {
		return f.limiter.TryReserve(tx, stranger, usdc, big.NewInt(41))
	})
	require.ErrorIs(t, err, ErrOverTheLimit)

	err = f.registry.AddCurrency(ctx, admin, usdc, KindFungible, big.NewInt(100))
	require.ErrorIs(t, err, ErrAlreadyAccepted)
}

func TestReaddWithDifferentKindFails(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	require.NoError(t, f.registry.AddCurrency(ctx, admin, usdc, KindFungible, big.NewInt(1)))
	require.NoError(t, f.registry.RemoveCurrency(ctx, admin, usdc))
	f.registry.inspector = fakeInspector{usdc: KindNFT1155}
	err := f.registry.AddCurrency(ctx, admin, usdc, KindNFT1155, big.NewInt(1))
	require.ErrorIs(t, err, ErrInvalidCurrency)
}

func TestSetLimit(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	require.ErrorIs(t, f.registry.SetLimit(ctx, admin, usdc, big.NewInt(5)), ErrNotAccepted)
	require.NoError(t, f.registry.AddCurrency(ctx, admin, usdc, KindFungible, big.NewInt(10)))

	require.ErrorIs(t, f.registry.SetLimit(ctx, admin, usdc, big.NewInt(10)), ErrInvalidArgument)
	require.ErrorIs(t, f.registry.SetLimit(ctx, admin, usdc, big.NewInt(0)), ErrInvalidArgument)
	require.NoError(t, f.registry.SetLimit(ctx, admin, usdc, big.NewInt(20)))

	c, err := f.registry.Currency(ctx, usdc)
	require.NoError(t, err)
	require.Equal(t, int64(20), c.ClaimLimit.Int64())

	last := f.emitter.events[len(f.emitter.events)-1]
	changed, ok := last.(events.CurrencyLimitChanged)
	require.True(t, ok)
	require.Equal(t, "10", changed.Event().Attributes["previous"])
}

func TestLimiterWindow(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	require.NoError(t, f.registry.AddCurrency(ctx, admin, usdc, KindFungible, big.NewInt(100)))
	reserve := func(units int64) error {
		return f.mgr.Atomic(ctx, func(ctx context.Context, tx *state.Tx) error {
			return f.limiter.TryReserve(tx, stranger, usdc, big.NewInt(units))
		})
	}

	require.NoError(t, reserve(100))
	err := reserve(1)
	require.True(t, errors.Is(err, ErrOverTheLimit))

	f.now += int64(time.Hour / time.Second)
	require.NoError(t, reserve(100))

	var claimed *big.Int
	require.NoError(t, f.mgr.View(ctx, func(kv state.KV) error {
		var err error
		claimed, err = NewStore(kv).UserClaims(stranger, usdc)
		return err
	}))
	require.Equal(t, int64(200), claimed.Int64())
}
