package vault

import (
	"errors"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	"partnerledger/core/state"
	"partnerledger/native/currency"
)

// Totals are the cumulative flows through one (project, currency) pair.
// Deposited − Removed − Attributed always equals the budget, and
// FeeDeposited − FeeRemoved − FeeCharged equals the fee budget.
type Totals struct {
	Deposited    *big.Int
	Removed      *big.Int
	Attributed   *big.Int
	Claimed      *big.Int
	FeeDeposited *big.Int
	FeeRemoved   *big.Int
	FeeCharged   *big.Int
}

func newTotals() Totals {
	return Totals{
		Deposited:    new(big.Int),
		Removed:      new(big.Int),
		Attributed:   new(big.Int),
		Claimed:      new(big.Int),
		FeeDeposited: new(big.Int),
		FeeRemoved:   new(big.Int),
		FeeCharged:   new(big.Int),
	}
}

type totalsField int

const (
	fieldDeposited totalsField = iota
	fieldRemoved
	fieldAttributed
	fieldClaimed
	fieldFeeDeposited
	fieldFeeRemoved
	fieldFeeCharged
)

func (t *Totals) field(f totalsField) *big.Int {
	switch f {
	case fieldDeposited:
		return t.Deposited
	case fieldRemoved:
		return t.Removed
	case fieldAttributed:
		return t.Attributed
	case fieldClaimed:
		return t.Claimed
	case fieldFeeDeposited:
		return t.FeeDeposited
	case fieldFeeRemoved:
		return t.FeeRemoved
	default:
		return t.FeeCharged
	}
}

// Vault is the ledger of one project read and written through a state view.
// Callers obtain it inside a transaction; nothing it does is visible until
// that transaction commits.
type Vault struct {
	kv      state.KV
	project common.Address
}

// Open returns the vault of project over kv.
func Open(kv state.KV, project common.Address) *Vault {
	return &Vault{kv: kv, project: project}
}

func (v *Vault) Project() common.Address { return v.project }

// Account is the bank account holding this vault's value.
func (v *Vault) Account() common.Address { return AccountAddress(v.project) }

// kind resolves the stored kind of a currency. Currencies that were removed
// still resolve so their balances remain reachable.
func (v *Vault) kind(id common.Address) (currency.Kind, error) {
	c, ok, err := currency.NewStore(v.kv).Get(id)
	if err != nil {
		return currency.KindUnknown, err
	}
	if !ok {
		return currency.KindUnknown, fmt.Errorf("%w: %s", ErrTokenCurrencyNotAccepted, id.Hex())
	}
	return c.Kind, nil
}

func (v *Vault) load(key []byte, id common.Address) (*currency.Holdings, error) {
	kind, err := v.kind(id)
	if err != nil {
		return nil, err
	}
	return currency.LoadHoldings(v.kv, key, kind)
}

// Budget returns the attributable budget held for currency id.
func (v *Vault) Budget(id common.Address) (*currency.Holdings, error) {
	return v.load(budgetKey(v.project, id), id)
}

// FeeBudget returns the reserve paying fixed NFT fees in currency id.
func (v *Vault) FeeBudget(id common.Address) (*currency.Holdings, error) {
	return v.load(feeBudgetKey(v.project, id), id)
}

// AvailableToClaim returns the claimable balance of recipient.
func (v *Vault) AvailableToClaim(recipient, id common.Address) (*currency.Holdings, error) {
	return v.load(claimableKey(v.project, recipient, id), id)
}

func (v *Vault) credit(key []byte, id common.Address, asset currency.Asset) error {
	h, err := v.load(key, id)
	if err != nil {
		return err
	}
	if err := h.Add(asset); err != nil {
		return err
	}
	if err := currency.SaveHoldings(v.kv, key, h); err != nil {
		return err
	}
	return v.kv.KVAppend(currenciesKey(v.project), id.Bytes())
}

func (v *Vault) debit(key []byte, id common.Address, asset currency.Asset, shortfall error) error {
	h, err := v.load(key, id)
	if err != nil {
		return err
	}
	if err := h.Sub(asset); err != nil {
		if errors.Is(err, currency.ErrInsufficientBalance) {
			return fmt.Errorf("%w: %s needs %s units of %s", shortfall, v.project.Hex(), asset.Units(), id.Hex())
		}
		return err
	}
	return currency.SaveHoldings(v.kv, key, h)
}

// CreditBudget adds a deposit to the budget.
func (v *Vault) CreditBudget(id common.Address, asset currency.Asset) error {
	if err := v.credit(budgetKey(v.project, id), id, asset); err != nil {
		return err
	}
	return v.addTotals(id, fieldDeposited, asset.Units())
}

// DebitBudget takes an attribution out of the budget, failing with
// ErrInsufficientBudget when it does not cover the asset.
func (v *Vault) DebitBudget(id common.Address, asset currency.Asset) error {
	if err := v.debit(budgetKey(v.project, id), id, asset, ErrInsufficientBudget); err != nil {
		return err
	}
	return v.addTotals(id, fieldAttributed, asset.Units())
}

func (v *Vault) withdrawBudget(id common.Address, asset currency.Asset) error {
	if err := v.debit(budgetKey(v.project, id), id, asset, ErrInsufficientBudget); err != nil {
		return err
	}
	return v.addTotals(id, fieldRemoved, asset.Units())
}

// CreditFeeBudget adds to the fixed-fee reserve.
func (v *Vault) CreditFeeBudget(id common.Address, asset currency.Asset) error {
	if err := v.credit(feeBudgetKey(v.project, id), id, asset); err != nil {
		return err
	}
	return v.addTotals(id, fieldFeeDeposited, asset.Units())
}

// DebitFeeBudget charges a fixed fee against the reserve.
func (v *Vault) DebitFeeBudget(id common.Address, asset currency.Asset) error {
	if err := v.debit(feeBudgetKey(v.project, id), id, asset, ErrInsufficientBudget); err != nil {
		return err
	}
	return v.addTotals(id, fieldFeeCharged, asset.Units())
}

func (v *Vault) withdrawFeeBudget(id common.Address, asset currency.Asset) error {
	if err := v.debit(feeBudgetKey(v.project, id), id, asset, ErrInsufficientBudget); err != nil {
		return err
	}
	return v.addTotals(id, fieldFeeRemoved, asset.Units())
}

// CreditClaimable adds to the claimable balance of recipient. Zero assets are
// ignored.
func (v *Vault) CreditClaimable(recipient, id common.Address, asset currency.Asset) error {
	if asset == nil || asset.IsZero() {
		return nil
	}
	return v.credit(claimableKey(v.project, recipient, id), id, asset)
}

// ClearClaimable removes and returns the whole claimable balance of
// recipient. The returned asset is zero when nothing was claimable.
func (v *Vault) ClearClaimable(recipient, id common.Address) (currency.Asset, error) {
	key := claimableKey(v.project, recipient, id)
	h, err := v.load(key, id)
	if err != nil {
		return nil, err
	}
	asset := h.Asset()
	if asset.IsZero() {
		return asset, nil
	}
	if err := v.kv.KVDelete(key); err != nil {
		return nil, err
	}
	if err := v.addTotals(id, fieldClaimed, asset.Units()); err != nil {
		return nil, err
	}
	return asset, nil
}

// ReleaseClaimable removes part of the claimable balance, such as a subset
// of NFT ids.
func (v *Vault) ReleaseClaimable(recipient, id common.Address, asset currency.Asset) error {
	if asset == nil || asset.IsZero() {
		return nil
	}
	if err := v.debit(claimableKey(v.project, recipient, id), id, asset, ErrNothingToClaim); err != nil {
		return err
	}
	return v.addTotals(id, fieldClaimed, asset.Units())
}

// ConsumeProof marks proof as used. It returns false, leaving state
// untouched, when the proof was consumed before.
func (v *Vault) ConsumeProof(proof [32]byte) (bool, error) {
	used, err := v.ProofUsed(proof)
	if err != nil || used {
		return false, err
	}
	if err := v.kv.KVPut(proofKey(v.project, proof), true); err != nil {
		return false, err
	}
	return true, nil
}

func (v *Vault) ProofUsed(proof [32]byte) (bool, error) {
	return v.kv.KVGet(proofKey(v.project, proof), nil)
}

// RemovalAppliedAt returns the time of the last budget removal application.
func (v *Vault) RemovalAppliedAt() (int64, bool, error) {
	var at uint64
	ok, err := v.kv.KVGet(removalKey(v.project), &at)
	if err != nil || !ok {
		return 0, false, err
	}
	return int64(at), true, nil
}

func (v *Vault) setRemovalApplied(at int64) error {
	if at < 0 {
		return fmt.Errorf("vault: negative timestamp")
	}
	return v.kv.KVPut(removalKey(v.project), uint64(at))
}

type totalsRecord struct {
	Deposited    *big.Int
	Removed      *big.Int
	Attributed   *big.Int
	Claimed      *big.Int
	FeeDeposited *big.Int
	FeeRemoved   *big.Int
	FeeCharged   *big.Int
}

// Totals returns the cumulative flows for currency id.
func (v *Vault) Totals(id common.Address) (Totals, error) {
	var rec totalsRecord
	ok, err := v.kv.KVGet(totalsKey(v.project, id), &rec)
	if err != nil {
		return Totals{}, err
	}
	out := newTotals()
	if !ok {
		return out, nil
	}
	set := func(dst, src *big.Int) {
		if src != nil {
			dst.Set(src)
		}
	}
	set(out.Deposited, rec.Deposited)
	set(out.Removed, rec.Removed)
	set(out.Attributed, rec.Attributed)
	set(out.Claimed, rec.Claimed)
	set(out.FeeDeposited, rec.FeeDeposited)
	set(out.FeeRemoved, rec.FeeRemoved)
	set(out.FeeCharged, rec.FeeCharged)
	return out, nil
}

func (v *Vault) addTotals(id common.Address, f totalsField, units *big.Int) error {
	if units == nil || units.Sign() == 0 {
		return nil
	}
	totals, err := v.Totals(id)
	if err != nil {
		return err
	}
	target := totals.field(f)
	target.Add(target, units)
	rec := totalsRecord(totals)
	return v.kv.KVPut(totalsKey(v.project, id), rec)
}

// Currencies lists every currency this vault ever held, in first-use order.
func (v *Vault) Currencies() ([]common.Address, error) {
	var raw [][]byte
	if err := v.kv.KVGetList(currenciesKey(v.project), &raw); err != nil {
		return nil, err
	}
	out := make([]common.Address, len(raw))
	for i, b := range raw {
		out[i] = common.BytesToAddress(b)
	}
	return out, nil
}
