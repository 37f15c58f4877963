package events

import "partnerledger/core/types"

// Event represents a structured state change emitted by the ledger.
type Event interface {
	EventType() string
}

// Flattener is implemented by typed events that can render themselves into
// the generic attribute map consumed by indexers.
type Flattener interface {
	Event
	Event() *types.Event
}

// Emitter broadcasts events to downstream subscribers (e.g. RPC, indexers).
type Emitter interface {
	Emit(Event)
}

// NoopEmitter is a helper that satisfies the Emitter interface while discarding
// all events. It is useful when a component wants to optionally expose events.
type NoopEmitter struct{}

// Emit implements the Emitter interface.
func (NoopEmitter) Emit(Event) {}

// Flatten converts a typed event into its generic form. Events that do not
// implement Flattener are reported with their type only.
func Flatten(evt Event) *types.Event {
	if evt == nil {
		return nil
	}
	if f, ok := evt.(Flattener); ok {
		return f.Event()
	}
	return &types.Event{Type: evt.EventType(), Attributes: map[string]string{}}
}
