package currency

import (
	"fmt"
	"math/big"
	"sort"

	"github.com/holiman/uint256"

	"partnerledger/core/events"
)

// Asset is an amount of a single currency, resolved once from raw input
// according to the currency kind. The concrete types are Coins, Tokens721
// and Tokens1155.
type Asset interface {
	Kind() Kind
	IsZero() bool
	// Units is the quantity counted against claim limits: the coin amount,
	// the number of 721 tokens, or the sum of 1155 quantities.
	Units() *big.Int
	Value() events.AssetValue
}

// Quantity is the raw boundary form of an asset as supplied by callers.
type Quantity struct {
	Amount   *big.Int
	TokenIDs []*big.Int
	Amounts  []*big.Int
}

// Coins is an amount of a native or fungible currency.
type Coins struct {
	kind   Kind
	amount *big.Int
}

// NewCoins validates amount for a coin kind.
func NewCoins(kind Kind, amount *big.Int) (Coins, error) {
	if kind != KindNative && kind != KindFungible {
		return Coins{}, fmt.Errorf("%w: %s is not a coin", ErrKindMismatch, kind)
	}
	if err := checkAmount(amount); err != nil {
		return Coins{}, err
	}
	return Coins{kind: kind, amount: cloneAmount(amount)}, nil
}

func (c Coins) Kind() Kind { return c.kind }
func (c Coins) IsZero() bool { return c.amount == nil || c.amount.Sign() == 0 }
func (c Coins) Units() *big.Int { return cloneAmount(c.amount) }
func (c Coins) Amount() *big.Int { return cloneAmount(c.amount) }
func (c Coins) Value() events.AssetValue {
	return events.AssetValue{Kind: c.kind.String(), Amount: cloneAmount(c.amount)}
}

// Tokens721 is a set of unique ERC721 token ids.
type Tokens721 struct {
	ids []uint256.Int
}

func (t Tokens721) Kind() Kind { return KindNFT721 }
func (t Tokens721) IsZero() bool { return len(t.ids) == 0 }
func (t Tokens721) Units() *big.Int { return big.NewInt(int64(len(t.ids))) }

// IDs returns the token ids in ascending order.
func (t Tokens721) IDs() []uint256.Int { return append([]uint256.Int(nil), t.ids...) }

func (t Tokens721) Value() events.AssetValue {
	ids := make([]*big.Int, len(t.ids))
	for i := range t.ids {
		ids[i] = t.ids[i].ToBig()
	}
	return events.AssetValue{Kind: KindNFT721.String(), TokenIDs: ids}
}

// TokenAmount is a quantity of a single ERC1155 token id.
type TokenAmount struct {
	ID     uint256.Int
	Amount *big.Int
}

// Tokens1155 is a list of ERC1155 (id, quantity) pairs with unique ids.
type Tokens1155 struct {
	items []TokenAmount
}

func (t Tokens1155) Kind() Kind { return KindNFT1155 }
func (t Tokens1155) IsZero() bool { return len(t.items) == 0 }

func (t Tokens1155) Units() *big.Int {
	total := new(big.Int)
	for _, item := range t.items {
		total.Add(total, item.Amount)
	}
	return total
}

// Items returns the pairs in ascending id order.
func (t Tokens1155) Items() []TokenAmount {
	out := make([]TokenAmount, len(t.items))
	for i, item := range t.items {
		out[i] = TokenAmount{ID: item.ID, Amount: cloneAmount(item.Amount)}
	}
	return out
}

func (t Tokens1155) Value() events.AssetValue {
	ids := make([]*big.Int, len(t.items))
	qty := make([]*big.Int, len(t.items))
	for i, item := range t.items {
		ids[i] = item.ID.ToBig()
		qty[i] = cloneAmount(item.Amount)
	}
	return events.AssetValue{Kind: KindNFT1155.String(), TokenIDs: ids, Quantities: qty}
}

// Resolve turns raw input into the asset form dictated by kind. Kind-specific
// shape rules are enforced here so downstream code never re-inspects them.
func Resolve(kind Kind, q Quantity) (Asset, error) {
	switch kind {
	case KindNative, KindFungible:
		if len(q.TokenIDs) > 0 || len(q.Amounts) > 0 {
			return nil, fmt.Errorf("%w: token ids supplied for %s currency", ErrInvalidCurrency, kind)
		}
		return NewCoins(kind, q.Amount)
	case KindNFT721:
		if len(q.Amounts) > 0 {
			return nil, fmt.Errorf("%w: erc721 takes no amounts", ErrLengthMismatch)
		}
		if q.Amount != nil && q.Amount.Sign() != 0 {
			return nil, fmt.Errorf("%w: erc721 takes token ids, not an amount", ErrInvalidCurrency)
		}
		ids, err := tokenIDs(q.TokenIDs)
		if err != nil {
			return nil, err
		}
		return Tokens721{ids: ids}, nil
	case KindNFT1155:
		if len(q.Amounts) != len(q.TokenIDs) {
			return nil, ErrLengthMismatch
		}
		if q.Amount != nil && q.Amount.Sign() != 0 {
			return nil, fmt.Errorf("%w: erc1155 takes token ids and amounts", ErrInvalidCurrency)
		}
		ids, err := tokenIDs(q.TokenIDs)
		if err != nil {
			return nil, err
		}
		byID := make(map[uint256.Int]*big.Int, len(ids))
		for i, raw := range q.TokenIDs {
			id, _ := uint256.FromBig(raw)
			if err := checkAmount(q.Amounts[i]); err != nil {
				return nil, err
			}
			if q.Amounts[i] == nil || q.Amounts[i].Sign() == 0 {
				return nil, fmt.Errorf("%w: token %s", ErrZeroAmount, raw)
			}
			byID[*id] = cloneAmount(q.Amounts[i])
		}
		items := make([]TokenAmount, len(ids))
		for i, id := range ids {
			items[i] = TokenAmount{ID: id, Amount: byID[id]}
		}
		return Tokens1155{items: items}, nil
	default:
		return nil, fmt.Errorf("%w: %d", ErrInvalidKind, kind)
	}
}

func tokenIDs(raw []*big.Int) ([]uint256.Int, error) {
	ids := make([]uint256.Int, 0, len(raw))
	seen := make(map[uint256.Int]struct{}, len(raw))
	for _, v := range raw {
		if v == nil || v.Sign() < 0 {
			return nil, fmt.Errorf("%w: token id must be non-negative", ErrInvalidAmount)
		}
		id, overflow := uint256.FromBig(v)
		if overflow {
			return nil, ErrAmountOverflow
		}
		if _, dup := seen[*id]; dup {
			return nil, fmt.Errorf("%w: %s", ErrDuplicateToken, v)
		}
		seen[*id] = struct{}{}
		ids = append(ids, *id)
	}
	sortIDs(ids)
	return ids, nil
}

func sortIDs(ids []uint256.Int) {
	sort.Slice(ids, func(i, j int) bool { return ids[i].Lt(&ids[j]) })
}

func checkAmount(v *big.Int) error {
	if v == nil {
		return nil
	}
	if v.Sign() < 0 {
		return fmt.Errorf("%w: negative amount", ErrInvalidAmount)
	}
	if _, overflow := uint256.FromBig(v); overflow {
		return ErrAmountOverflow
	}
	return nil
}

func cloneAmount(v *big.Int) *big.Int {
	if v == nil {
		return big.NewInt(0)
	}
	return new(big.Int).Set(v)
}
