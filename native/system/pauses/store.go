package pauses

import (
	"fmt"

	"github.com/ethereum/go-ethereum/common"

	"partnerledger/core/state"
)

type pauseRecord struct {
	Paused bool
	By     common.Address
	Since  uint64
}

// Status describes the breaker for one module.
type Status struct {
	Module string
	Paused bool
	By     common.Address
	Since  int64
}

// Store persists breaker state over a state view. It satisfies
// common.PauseView so engines can guard inside their transaction.
type Store struct {
	state state.KV
}

func NewStore(kv state.KV) *Store {
	return &Store{state: kv}
}

func (s *Store) withState() (state.KV, error) {
	if s == nil || s.state == nil {
		return nil, fmt.Errorf("pause store not initialised")
	}
	return s.state, nil
}

// Load returns the status of module. Modules never toggled are unpaused.
func (s *Store) Load(module string) (Status, error) {
	kv, err := s.withState()
	if err != nil {
		return Status{}, err
	}
	module = normaliseModule(module)
	var rec pauseRecord
	ok, err := kv.KVGet(pauseKey(module), &rec)
	if err != nil {
		return Status{}, fmt.Errorf("pauses: load %s: %w", module, err)
	}
	if !ok {
		return Status{Module: module}, nil
	}
	return Status{Module: module, Paused: rec.Paused, By: rec.By, Since: int64(rec.Since)}, nil
}

// Save writes the status and records the module in the index.
func (s *Store) Save(st Status) error {
	kv, err := s.withState()
	if err != nil {
		return err
	}
	if st.Since < 0 {
		return fmt.Errorf("pauses: negative timestamp")
	}
	module := normaliseModule(st.Module)
	rec := pauseRecord{Paused: st.Paused, By: st.By, Since: uint64(st.Since)}
	if err := kv.KVPut(pauseKey(module), rec); err != nil {
		return fmt.Errorf("pauses: persist %s: %w", module, err)
	}
	if err := kv.KVAppend(indexKey(), []byte(module)); err != nil {
		return fmt.Errorf("pauses: update index: %w", err)
	}
	return nil
}

// List returns every module that was ever toggled.
func (s *Store) List() ([]Status, error) {
	kv, err := s.withState()
	if err != nil {
		return nil, err
	}
	var modules [][]byte
	if err := kv.KVGetList(indexKey(), &modules); err != nil {
		return nil, fmt.Errorf("pauses: load index: %w", err)
	}
	out := make([]Status, 0, len(modules))
	for _, raw := range modules {
		st, err := s.Load(string(raw))
		if err != nil {
			return nil, err
		}
		out = append(out, st)
	}
	return out, nil
}

// IsPaused reports whether module is paused. Unreadable state counts as
// paused.
func (s *Store) IsPaused(module string) bool {
	st, err := s.Load(module)
	if err != nil {
		return true
	}
	return st.Paused
}
