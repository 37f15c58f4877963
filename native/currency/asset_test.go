package currency

import (
	"errors"
	"math/big"
	"testing"

	"github.com/stretchr/testify/require"
)

func ints(vs ...int64) []*big.Int {
	out := make([]*big.Int, len(vs))
	for i, v := range vs {
		out[i] = big.NewInt(v)
	}
	return out
}

func TestResolveCoins(t *testing.T) {
	asset, err := Resolve(KindFungible, Quantity{Amount: big.NewInt(500)})
	require.NoError(t, err)
	require.Equal(t, KindFungible, asset.Kind())
	require.Equal(t, int64(500), asset.Units().Int64())

	_, err = Resolve(KindNative, Quantity{Amount: big.NewInt(-1)})
	require.ErrorIs(t, err, ErrInvalidAmount)

	_, err = Resolve(KindFungible, Quantity{Amount: big.NewInt(1), TokenIDs: ints(1)})
	require.ErrorIs(t, err, ErrInvalidCurrency)

	tooBig := new(big.Int).Lsh(big.NewInt(1), 256)
	_, err = Resolve(KindFungible, Quantity{Amount: tooBig})
	require.ErrorIs(t, err, ErrAmountOverflow)
}

func TestResolve721(t *testing.T) {
	asset, err := Resolve(KindNFT721, Quantity{TokenIDs: ints(9, 3, 5)})
	require.NoError(t, err)
	tokens := asset.(Tokens721)
	ids := tokens.IDs()
	require.Len(t, ids, 3)
	require.Equal(t, uint64(3), ids[0].Uint64())
	require.Equal(t, uint64(9), ids[2].Uint64())
	require.Equal(t, int64(3), asset.Units().Int64())

	_, err = Resolve(KindNFT721, Quantity{TokenIDs: ints(1), Amounts: ints(1)})
	require.ErrorIs(t, err, ErrLengthMismatch)

	_, err = Resolve(KindNFT721, Quantity{TokenIDs: ints(1, 1)})
	require.ErrorIs(t, err, ErrDuplicateToken)
}

func TestResolve1155(t *testing.T) {
	asset, err := Resolve(KindNFT1155, Quantity{TokenIDs: ints(2, 1), Amounts: ints(5, 7)})
	require.NoError(t, err)
	require.Equal(t, int64(12), asset.Units().Int64())
	items := asset.(Tokens1155).Items()
	require.Equal(t, uint64(1), items[0].ID.Uint64())
	require.Equal(t, int64(7), items[0].Amount.Int64())

	_, err = Resolve(KindNFT1155, Quantity{TokenIDs: ints(1, 2), Amounts: ints(1)})
	require.ErrorIs(t, err, ErrLengthMismatch)

	_, err = Resolve(KindNFT1155, Quantity{TokenIDs: ints(1), Amounts: ints(0)})
	require.ErrorIs(t, err, ErrZeroAmount)

	_, err = Resolve(KindUnknown, Quantity{})
	require.True(t, errors.Is(err, ErrInvalidKind))
}

func TestHoldingsAddSub721(t *testing.T) {
	h := NewHoldings(KindNFT721)
	four, err := Resolve(KindNFT721, Quantity{TokenIDs: ints(1, 2, 3, 4)})
	require.NoError(t, err)
	require.NoError(t, h.Add(four))

	again, _ := Resolve(KindNFT721, Quantity{TokenIDs: ints(4, 5)})
	require.ErrorIs(t, h.Add(again), ErrDuplicateToken)
	require.Equal(t, int64(4), h.Units().Int64(), "failed add must not partially apply")

	two, _ := Resolve(KindNFT721, Quantity{TokenIDs: ints(1, 2)})
	require.NoError(t, h.Sub(two))
	require.ErrorIs(t, h.Sub(two), ErrInsufficientBalance)
	require.Equal(t, int64(2), h.Units().Int64())
}

func TestHoldingsRecordRoundTrip1155(t *testing.T) {
	h := NewHoldings(KindNFT1155)
	batch, _ := Resolve(KindNFT1155, Quantity{TokenIDs: ints(10, 11), Amounts: ints(3, 4)})
	require.NoError(t, h.Add(batch))
	part, _ := Resolve(KindNFT1155, Quantity{TokenIDs: ints(10), Amounts: ints(3)})
	require.NoError(t, h.Sub(part))

	restored, err := HoldingsFromRecord(h.Record())
	require.NoError(t, err)
	require.Equal(t, int64(4), restored.Units().Int64())
	rest, _ := Resolve(KindNFT1155, Quantity{TokenIDs: ints(11), Amounts: ints(4)})
	require.True(t, restored.Covers(rest))
	require.False(t, restored.Covers(part))
}

func TestHoldingsKindMismatch(t *testing.T) {
	h := NewHoldings(KindFungible)
	coins, _ := NewCoins(KindNative, big.NewInt(1))
	require.ErrorIs(t, h.Add(coins), ErrKindMismatch)
}
