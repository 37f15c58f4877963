package currency

import (
	"fmt"
	"math/big"

	"github.com/holiman/uint256"

	"partnerledger/core/state"
)

// Holdings is the balance form of a currency: a scalar for coins, a token
// set for 721 and token quantities for 1155. The zero value is not usable;
// construct with NewHoldings.
type Holdings struct {
	kind   Kind
	amount *big.Int
	tokens map[uint256.Int]*big.Int
}

func NewHoldings(kind Kind) *Holdings {
	return &Holdings{kind: kind, amount: new(big.Int), tokens: make(map[uint256.Int]*big.Int)}
}

func (h *Holdings) Kind() Kind { return h.kind }

func (h *Holdings) IsZero() bool {
	if h == nil {
		return true
	}
	if h.kind.IsNFT() {
		return len(h.tokens) == 0
	}
	return h.amount.Sign() == 0
}

// Units mirrors Asset.Units for the whole balance.
func (h *Holdings) Units() *big.Int {
	if h == nil {
		return new(big.Int)
	}
	if !h.kind.IsNFT() {
		return new(big.Int).Set(h.amount)
	}
	total := new(big.Int)
	for _, qty := range h.tokens {
		total.Add(total, qty)
	}
	return total
}

// Add credits the asset. Crediting a 721 id already held fails with
// ErrDuplicateToken and leaves the holdings unchanged.
func (h *Holdings) Add(a Asset) error {
	if a == nil {
		return nil
	}
	if a.Kind() != h.kind {
		return fmt.Errorf("%w: holdings %s, asset %s", ErrKindMismatch, h.kind, a.Kind())
	}
	switch v := a.(type) {
	case Coins:
		sum := new(big.Int).Add(h.amount, v.amount)
		if err := checkAmount(sum); err != nil {
			return err
		}
		h.amount = sum
	case Tokens721:
		for _, id := range v.ids {
			if _, ok := h.tokens[id]; ok {
				return fmt.Errorf("%w: %s", ErrDuplicateToken, id.Dec())
			}
		}
		for _, id := range v.ids {
			h.tokens[id] = big.NewInt(1)
		}
	case Tokens1155:
		next := make(map[uint256.Int]*big.Int, len(v.items))
		for _, item := range v.items {
			sum := new(big.Int).Add(h.quantity(item.ID), item.Amount)
			if err := checkAmount(sum); err != nil {
				return err
			}
			next[item.ID] = sum
		}
		for id, qty := range next {
			h.tokens[id] = qty
		}
	default:
		return fmt.Errorf("%w: %T", ErrInvalidKind, a)
	}
	return nil
}

// Covers reports whether the asset can be subtracted without going negative.
func (h *Holdings) Covers(a Asset) bool {
	if a == nil {
		return true
	}
	if h == nil || a.Kind() != h.kind {
		return false
	}
	switch v := a.(type) {
	case Coins:
		return h.amount.Cmp(v.amount) >= 0
	case Tokens721:
		for _, id := range v.ids {
			if _, ok := h.tokens[id]; !ok {
				return false
			}
		}
		return true
	case Tokens1155:
		for _, item := range v.items {
			if h.quantity(item.ID).Cmp(item.Amount) < 0 {
				return false
			}
		}
		return true
	default:
		return false
	}
}

// Sub debits the asset, failing with ErrInsufficientBalance without any
// change when the holdings do not cover it.
func (h *Holdings) Sub(a Asset) error {
	if a == nil {
		return nil
	}
	if a.Kind() != h.kind {
		return fmt.Errorf("%w: holdings %s, asset %s", ErrKindMismatch, h.kind, a.Kind())
	}
	if !h.Covers(a) {
		return ErrInsufficientBalance
	}
	switch v := a.(type) {
	case Coins:
		h.amount = new(big.Int).Sub(h.amount, v.amount)
	case Tokens721:
		for _, id := range v.ids {
			delete(h.tokens, id)
		}
	case Tokens1155:
		for _, item := range v.items {
			rest := new(big.Int).Sub(h.quantity(item.ID), item.Amount)
			if rest.Sign() == 0 {
				delete(h.tokens, item.ID)
				continue
			}
			h.tokens[item.ID] = rest
		}
	}
	return nil
}

// Asset returns the entire balance as an asset.
func (h *Holdings) Asset() Asset {
	switch h.kind {
	case KindNFT721:
		ids := make([]uint256.Int, 0, len(h.tokens))
		for id := range h.tokens {
			ids = append(ids, id)
		}
		sortIDs(ids)
		return Tokens721{ids: ids}
	case KindNFT1155:
		ids := make([]uint256.Int, 0, len(h.tokens))
		for id := range h.tokens {
			ids = append(ids, id)
		}
		sortIDs(ids)
		items := make([]TokenAmount, len(ids))
		for i, id := range ids {
			items[i] = TokenAmount{ID: id, Amount: new(big.Int).Set(h.tokens[id])}
		}
		return Tokens1155{items: items}
	default:
		return Coins{kind: h.kind, amount: new(big.Int).Set(h.amount)}
	}
}

func (h *Holdings) quantity(id uint256.Int) *big.Int {
	if qty, ok := h.tokens[id]; ok {
		return qty
	}
	return new(big.Int)
}

// HoldingsRecord is the persisted form of Holdings.
type HoldingsRecord struct {
	Kind       uint8
	Amount     *big.Int
	TokenIDs   []*big.Int
	Quantities []*big.Int
}

// Record converts the holdings into their persisted form with ids sorted.
func (h *Holdings) Record() HoldingsRecord {
	rec := HoldingsRecord{Kind: uint8(h.kind), Amount: new(big.Int).Set(h.amount)}
	if !h.kind.IsNFT() {
		return rec
	}
	value := h.Asset().Value()
	rec.TokenIDs = value.TokenIDs
	if h.kind == KindNFT1155 {
		rec.Quantities = value.Quantities
	}
	return rec
}

// HoldingsFromRecord rebuilds holdings, validating the stored shape.
func HoldingsFromRecord(rec HoldingsRecord) (*Holdings, error) {
	kind := Kind(rec.Kind)
	if !kind.Valid() {
		return nil, fmt.Errorf("%w: stored kind %d", ErrInvalidKind, rec.Kind)
	}
	h := NewHoldings(kind)
	if rec.Amount != nil && !kind.IsNFT() {
		h.amount = new(big.Int).Set(rec.Amount)
	}
	if kind == KindNFT1155 && len(rec.Quantities) != len(rec.TokenIDs) {
		return nil, ErrLengthMismatch
	}
	for i, raw := range rec.TokenIDs {
		id, overflow := uint256.FromBig(raw)
		if overflow {
			return nil, ErrAmountOverflow
		}
		qty := big.NewInt(1)
		if kind == KindNFT1155 {
			qty = new(big.Int).Set(rec.Quantities[i])
		}
		h.tokens[*id] = qty
	}
	return h, nil
}

// LoadHoldings reads holdings stored under key, returning empty holdings of
// kind when the key is absent.
func LoadHoldings(kv state.KV, key []byte, kind Kind) (*Holdings, error) {
	var rec HoldingsRecord
	ok, err := kv.KVGet(key, &rec)
	if err != nil {
		return nil, err
	}
	if !ok {
		return NewHoldings(kind), nil
	}
	h, err := HoldingsFromRecord(rec)
	if err != nil {
		return nil, err
	}
	if h.kind != kind {
		return nil, fmt.Errorf("%w: stored %s, expected %s", ErrKindMismatch, h.kind, kind)
	}
	return h, nil
}

// SaveHoldings persists holdings under key; empty holdings delete the key.
func SaveHoldings(kv state.KV, key []byte, h *Holdings) error {
	if h.IsZero() {
		return kv.KVDelete(key)
	}
	return kv.KVPut(key, h.Record())
}
