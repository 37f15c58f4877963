package state

import (
	"bytes"
	"errors"
	"fmt"
	"reflect"

	ethcrypto "github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/rlp"

	"partnerledger/core/events"
	"partnerledger/storage"
)

var (
	// ErrReadOnly is returned when a view attempts to write.
	ErrReadOnly = errors.New("state: read-only view")
	// ErrTxClosed is returned when a committed or discarded transaction is used.
	ErrTxClosed = errors.New("state: transaction closed")
)

// KV is the storage surface native modules depend on. Values are RLP encoded.
type KV interface {
	KVGet(key []byte, out interface{}) (bool, error)
	KVPut(key []byte, value interface{}) error
	KVDelete(key []byte) error
	KVAppend(key []byte, value []byte) error
	KVGetList(key []byte, out interface{}) error
}

func kvKey(key []byte) []byte {
	return ethcrypto.Keccak256(key)
}

// Tx stages writes and events on top of the committed database. Nothing is
// visible outside the transaction until the manager commits it.
type Tx struct {
	db       storage.Database
	writes   map[string][]byte
	deleted  map[string]struct{}
	events   []events.Event
	readOnly bool
	closed   bool
}

func newTx(db storage.Database, readOnly bool) *Tx {
	return &Tx{
		db:       db,
		writes:   make(map[string][]byte),
		deleted:  make(map[string]struct{}),
		readOnly: readOnly,
	}
}

func (tx *Tx) raw(hashed []byte) ([]byte, error) {
	if tx.closed {
		return nil, ErrTxClosed
	}
	k := string(hashed)
	if _, ok := tx.deleted[k]; ok {
		return nil, nil
	}
	if v, ok := tx.writes[k]; ok {
		return v, nil
	}
	v, err := tx.db.Get(hashed)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, nil
	}
	return v, err
}

func (tx *Tx) set(hashed, encoded []byte) error {
	if tx.closed {
		return ErrTxClosed
	}
	if tx.readOnly {
		return ErrReadOnly
	}
	k := string(hashed)
	delete(tx.deleted, k)
	tx.writes[k] = encoded
	return nil
}

// KVPut encodes the value with RLP and stages it under the supplied key.
func (tx *Tx) KVPut(key []byte, value interface{}) error {
	if len(key) == 0 {
		return fmt.Errorf("kv: key must not be empty")
	}
	encoded, err := rlp.EncodeToBytes(value)
	if err != nil {
		return err
	}
	return tx.set(kvKey(key), encoded)
}

// KVGet retrieves the value stored under the supplied key and decodes it into
// the provided destination. The boolean return value indicates whether the key
// existed in state.
func (tx *Tx) KVGet(key []byte, out interface{}) (bool, error) {
	if len(key) == 0 {
		return false, fmt.Errorf("kv: key must not be empty")
	}
	data, err := tx.raw(kvKey(key))
	if err != nil {
		return false, err
	}
	if len(data) == 0 {
		return false, nil
	}
	if out == nil {
		return true, nil
	}
	if err := rlp.DecodeBytes(data, out); err != nil {
		return false, err
	}
	return true, nil
}

// KVDelete stages the removal of the supplied key.
func (tx *Tx) KVDelete(key []byte) error {
	if len(key) == 0 {
		return fmt.Errorf("kv: key must not be empty")
	}
	if tx.closed {
		return ErrTxClosed
	}
	if tx.readOnly {
		return ErrReadOnly
	}
	k := string(kvKey(key))
	delete(tx.writes, k)
	tx.deleted[k] = struct{}{}
	return nil
}

// KVAppend appends the provided value to the RLP-encoded byte slice list stored
// under the supplied key. Duplicate values are ignored to keep the index
// deterministic.
func (tx *Tx) KVAppend(key []byte, value []byte) error {
	if len(key) == 0 {
		return fmt.Errorf("kv: key must not be empty")
	}
	hashed := kvKey(key)
	data, err := tx.raw(hashed)
	if err != nil {
		return err
	}
	var list [][]byte
	if len(data) > 0 {
		if err := rlp.DecodeBytes(data, &list); err != nil {
			return err
		}
	}
	for _, existing := range list {
		if bytes.Equal(existing, value) {
			return nil
		}
	}
	list = append(list, append([]byte(nil), value...))
	encoded, err := rlp.EncodeToBytes(list)
	if err != nil {
		return err
	}
	return tx.set(hashed, encoded)
}

// KVGetList decodes the list stored under key into out, which must point to a
// slice. Missing keys yield an empty slice.
func (tx *Tx) KVGetList(key []byte, out interface{}) error {
	if len(key) == 0 {
		return fmt.Errorf("kv: key must not be empty")
	}
	data, err := tx.raw(kvKey(key))
	if err != nil {
		return err
	}
	if len(data) == 0 {
		val := reflect.ValueOf(out)
		if val.Kind() != reflect.Ptr || val.IsNil() {
			return fmt.Errorf("kv: destination must be a non-nil pointer")
		}
		elem := val.Elem()
		if elem.Kind() != reflect.Slice {
			return fmt.Errorf("kv: destination must point to a slice")
		}
		elem.Set(reflect.MakeSlice(elem.Type(), 0, 0))
		return nil
	}
	return rlp.DecodeBytes(data, out)
}

// AppendEvent buffers an event that is emitted only if the transaction
// commits.
func (tx *Tx) AppendEvent(evt events.Event) {
	if tx == nil || evt == nil || tx.readOnly {
		return
	}
	tx.events = append(tx.events, evt)
}

// Events returns the buffered events in emission order.
func (tx *Tx) Events() []events.Event {
	if tx == nil {
		return nil
	}
	return append([]events.Event(nil), tx.events...)
}

func (tx *Tx) batch() *storage.Batch {
	batch := storage.NewBatch()
	for k, v := range tx.writes {
		batch.Put([]byte(k), v)
	}
	for k := range tx.deleted {
		batch.Delete([]byte(k))
	}
	return batch
}

func (tx *Tx) close() {
	tx.closed = true
	tx.writes = nil
	tx.deleted = nil
}
