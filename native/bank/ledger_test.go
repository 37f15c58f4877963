package bank

import (
	"context"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/require"

	"partnerledger/core/state"
	"partnerledger/native/currency"
	"partnerledger/storage"
)

var (
	alice = common.HexToAddress("0xa1")
	bob   = common.HexToAddress("0xb0")
	token = common.HexToAddress("0x7001")
	nft   = common.HexToAddress("0x7002")
)

func newLedger(t *testing.T) (*Ledger, *state.Manager) {
	t.Helper()
	mgr := state.NewManager(storage.NewMemDB())
	return NewLedger(mgr), mgr
}

func coins(t *testing.T, kind currency.Kind, v int64) currency.Asset {
	t.Helper()
	c, err := currency.NewCoins(kind, big.NewInt(v))
	require.NoError(t, err)
	return c
}

func TestLedgerInspector(t *testing.T) {
	ledger, _ := newLedger(t)
	ctx := context.Background()
	require.NoError(t, ledger.RegisterToken(ctx, token, currency.KindFungible))
	require.ErrorIs(t, ledger.RegisterToken(ctx, token, currency.KindFungible), ErrTokenExists)
	require.ErrorIs(t, ledger.RegisterToken(ctx, currency.NativeCurrency, currency.KindFungible), currency.ErrInvalidCurrency)

	require.True(t, ledger.Supports(ctx, token, currency.KindFungible))
	require.False(t, ledger.Supports(ctx, token, currency.KindNFT721))
	require.True(t, ledger.Supports(ctx, currency.NativeCurrency, currency.KindNative))
	require.False(t, ledger.Supports(ctx, nft, currency.KindNFT721))
}

func TestLedgerTransferCoins(t *testing.T) {
	ledger, _ := newLedger(t)
	ctx := context.Background()
	require.NoError(t, ledger.Mint(ctx, alice, currency.NativeCurrency, coins(t, currency.KindNative, 100)))
	require.NoError(t, ledger.Transfer(ctx, currency.NativeCurrency, alice, bob, coins(t, currency.KindNative, 40)))

	a, err := ledger.Balance(ctx, alice, currency.NativeCurrency)
	require.NoError(t, err)
	b, err := ledger.Balance(ctx, bob, currency.NativeCurrency)
	require.NoError(t, err)
	require.Equal(t, int64(60), a.Units().Int64())
	require.Equal(t, int64(40), b.Units().Int64())

	err = ledger.Transfer(ctx, currency.NativeCurrency, bob, alice, coins(t, currency.KindNative, 41))
	require.ErrorIs(t, err, ErrInsufficientFunds)
	require.ErrorIs(t, ledger.Transfer(ctx, currency.NativeCurrency, bob, bob, coins(t, currency.KindNative, 1)), ErrSelfTransfer)

	err = ledger.Transfer(ctx, token, alice, bob, coins(t, currency.KindFungible, 1))
	require.ErrorIs(t, err, ErrUnknownToken)
}

func TestLedgerTransferNFT(t *testing.T) {
	ledger, _ := newLedger(t)
	ctx := context.Background()
	require.NoError(t, ledger.RegisterToken(ctx, nft, currency.KindNFT721))
	all, err := currency.Resolve(currency.KindNFT721, currency.Quantity{TokenIDs: []*big.Int{big.NewInt(1), big.NewInt(2)}})
	require.NoError(t, err)
	require.NoError(t, ledger.Mint(ctx, alice, nft, all))
	require.ErrorIs(t, ledger.Mint(ctx, bob, nft, coins(t, currency.KindFungible, 1)), currency.ErrKindMismatch)

	one, err := currency.Resolve(currency.KindNFT721, currency.Quantity{TokenIDs: []*big.Int{big.NewInt(2)}})
	require.NoError(t, err)
	require.NoError(t, ledger.Transfer(ctx, nft, alice, bob, one))
	require.ErrorIs(t, ledger.Transfer(ctx, nft, alice, bob, one), ErrInsufficientFunds)

	b, err := ledger.Balance(ctx, bob, nft)
	require.NoError(t, err)
	require.True(t, b.Covers(one))
}

func TestLedgerJoinsActiveTransaction(t *testing.T) {
	ledger, mgr := newLedger(t)
	ctx := context.Background()
	require.NoError(t, ledger.Mint(ctx, alice, currency.NativeCurrency, coins(t, currency.KindNative, 10)))

	err := mgr.Atomic(ctx, func(ctx context.Context, tx *state.Tx) error {
		if err := ledger.Transfer(ctx, currency.NativeCurrency, alice, bob, coins(t, currency.KindNative, 10)); err != nil {
			return err
		}
		return context.Canceled
	})
	require.ErrorIs(t, err, context.Canceled)

	a, err := ledger.Balance(ctx, alice, currency.NativeCurrency)
	require.NoError(t, err)
	require.Equal(t, int64(10), a.Units().Int64(), "transfer inside a discarded transaction must roll back")
}
