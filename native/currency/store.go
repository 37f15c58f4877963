package currency

import (
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/common"

	"partnerledger/core/state"
)

const currencyPrefix = "currency"

func currencyKey(id common.Address) []byte {
	return []byte(fmt.Sprintf("%s/%x", currencyPrefix, id.Bytes()))
}

func indexKey() []byte {
	return []byte(currencyPrefix + "/index")
}

func userClaimsKey(recipient, id common.Address) []byte {
	return []byte(fmt.Sprintf("%s/claims/%x/%x", currencyPrefix, recipient.Bytes(), id.Bytes()))
}

// Currency is an accepted (or previously accepted) currency together with
// its claim-rate-limit window.
type Currency struct {
	ID              common.Address
	Kind            Kind
	Active          bool
	ClaimLimit      *big.Int
	ClaimedInWindow *big.Int
	WindowStart     int64
}

// Clone returns a deep copy of the currency so callers can safely mutate the
// copy without affecting the stored instance.
func (c *Currency) Clone() *Currency {
	if c == nil {
		return nil
	}
	out := *c
	out.ClaimLimit = cloneAmount(c.ClaimLimit)
	out.ClaimedInWindow = cloneAmount(c.ClaimedInWindow)
	return &out
}

func (c *Currency) String() string {
	return fmt.Sprintf("%s(%s)", strings.ToLower(c.ID.Hex()), c.Kind)
}

type currencyRecord struct {
	ID              common.Address
	Kind            uint8
	Active          bool
	ClaimLimit      *big.Int
	ClaimedInWindow *big.Int
	WindowStart     uint64
}

// Store reads and writes currency records over a state view.
type Store struct {
	kv state.KV
}

func NewStore(kv state.KV) *Store {
	return &Store{kv: kv}
}

func (s *Store) withState() (state.KV, error) {
	if s == nil || s.kv == nil {
		return nil, fmt.Errorf("currency store not initialised")
	}
	return s.kv, nil
}

// Get loads the currency record. The boolean is false when the currency was
// never added.
func (s *Store) Get(id common.Address) (*Currency, bool, error) {
	kv, err := s.withState()
	if err != nil {
		return nil, false, err
	}
	var rec currencyRecord
	ok, err := kv.KVGet(currencyKey(id), &rec)
	if err != nil {
		return nil, false, fmt.Errorf("currency: load %s: %w", id.Hex(), err)
	}
	if !ok {
		return nil, false, nil
	}
	if rec.WindowStart > 1<<62 {
		return nil, false, fmt.Errorf("currency: corrupt window start for %s", id.Hex())
	}
	return &Currency{
		ID:              rec.ID,
		Kind:            Kind(rec.Kind),
		Active:          rec.Active,
		ClaimLimit:      cloneAmount(rec.ClaimLimit),
		ClaimedInWindow: cloneAmount(rec.ClaimedInWindow),
		WindowStart:     int64(rec.WindowStart),
	}, true, nil
}

// Put persists the currency and records it in the currency index.
func (s *Store) Put(c *Currency) error {
	kv, err := s.withState()
	if err != nil {
		return err
	}
	if c == nil {
		return fmt.Errorf("currency: nil record")
	}
	if c.WindowStart < 0 {
		return fmt.Errorf("currency: negative window start")
	}
	rec := currencyRecord{
		ID:              c.ID,
		Kind:            uint8(c.Kind),
		Active:          c.Active,
		ClaimLimit:      cloneAmount(c.ClaimLimit),
		ClaimedInWindow: cloneAmount(c.ClaimedInWindow),
		WindowStart:     uint64(c.WindowStart),
	}
	if err := kv.KVPut(currencyKey(c.ID), rec); err != nil {
		return fmt.Errorf("currency: persist %s: %w", c.ID.Hex(), err)
	}
	if err := kv.KVAppend(indexKey(), c.ID.Bytes()); err != nil {
		return fmt.Errorf("currency: update index: %w", err)
	}
	return nil
}

// List returns every currency ever added, in insertion order.
func (s *Store) List() ([]*Currency, error) {
	kv, err := s.withState()
	if err != nil {
		return nil, err
	}
	var ids [][]byte
	if err := kv.KVGetList(indexKey(), &ids); err != nil {
		return nil, fmt.Errorf("currency: load index: %w", err)
	}
	out := make([]*Currency, 0, len(ids))
	for _, raw := range ids {
		c, ok, err := s.Get(common.BytesToAddress(raw))
		if err != nil {
			return nil, err
		}
		if ok {
			out = append(out, c)
		}
	}
	return out, nil
}

// UserClaims returns the all-time units claimed by recipient in currency.
func (s *Store) UserClaims(recipient, id common.Address) (*big.Int, error) {
	kv, err := s.withState()
	if err != nil {
		return nil, err
	}
	total := new(big.Int)
	if _, err := kv.KVGet(userClaimsKey(recipient, id), total); err != nil {
		return nil, fmt.Errorf("currency: load user claims: %w", err)
	}
	return total, nil
}

func (s *Store) addUserClaims(recipient, id common.Address, units *big.Int) error {
	total, err := s.UserClaims(recipient, id)
	if err != nil {
		return err
	}
	total.Add(total, units)
	return s.kv.KVPut(userClaimsKey(recipient, id), total)
}
