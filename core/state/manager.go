package state

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"partnerledger/core/events"
	"partnerledger/storage"
)

// ErrReentrantCall is returned when a mutating call is started from inside
// another one, e.g. by a transfer callback.
var ErrReentrantCall = errors.New("state: reentrant call")

type txContextKey struct{}

// TxFromContext returns the transaction carried by ctx, if any.
func TxFromContext(ctx context.Context) (*Tx, bool) {
	if ctx == nil {
		return nil, false
	}
	tx, ok := ctx.Value(txContextKey{}).(*Tx)
	return tx, ok && tx != nil
}

// Manager serialises state transitions over a storage backend. Every mutating
// call runs through Atomic, which either commits all staged writes in one
// batch or discards them.
type Manager struct {
	db      storage.Database
	emitter events.Emitter
	mu      sync.Mutex
}

// NewManager creates a state manager operating on the provided database.
func NewManager(db storage.Database) *Manager {
	return &Manager{db: db, emitter: events.NoopEmitter{}}
}

// SetEmitter configures the sink for committed events. Passing nil resets the
// emitter to a no-op implementation.
func (m *Manager) SetEmitter(emitter events.Emitter) {
	if emitter == nil {
		m.emitter = events.NoopEmitter{}
		return
	}
	m.emitter = emitter
}

// Atomic runs fn against a fresh transaction. When fn returns nil the staged
// writes are committed and the buffered events emitted in order; otherwise
// the transaction is discarded. The transaction travels on the context handed
// to fn so collaborators (transfer primitives) can join it. Calling Atomic
// with a context that already carries a transaction fails with
// ErrReentrantCall.
func (m *Manager) Atomic(ctx context.Context, fn func(ctx context.Context, tx *Tx) error) error {
	if m == nil || m.db == nil {
		return fmt.Errorf("state: manager not configured")
	}
	if ctx == nil {
		ctx = context.Background()
	}
	if _, ok := TxFromContext(ctx); ok {
		return ErrReentrantCall
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	tx := newTx(m.db, false)
	defer tx.close()
	if err := fn(context.WithValue(ctx, txContextKey{}, tx), tx); err != nil {
		return err
	}
	if err := m.db.Write(tx.batch()); err != nil {
		return fmt.Errorf("state: commit: %w", err)
	}
	for _, evt := range tx.events {
		m.emitter.Emit(evt)
	}
	return nil
}

// View runs fn against a read-only view. Inside an Atomic call the view reads
// through the active transaction so staged writes are visible.
func (m *Manager) View(ctx context.Context, fn func(kv KV) error) error {
	if tx, ok := TxFromContext(ctx); ok {
		return fn(tx)
	}
	if m == nil || m.db == nil {
		return fmt.Errorf("state: manager not configured")
	}
	tx := newTx(m.db, true)
	defer tx.close()
	return fn(tx)
}
