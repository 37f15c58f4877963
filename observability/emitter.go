package observability

import (
	"log/slog"
	"sync"

	"partnerledger/core/events"
	"partnerledger/core/types"
	"partnerledger/observability/logging"
)

// EventLog is an events.Emitter that logs every committed event, counts it
// and keeps a bounded in-memory tail for the gateway to serve.
type EventLog struct {
	logger *slog.Logger
	limit  int

	mu     sync.Mutex
	recent []*types.Event
}

// NewEventLog builds an emitter retaining up to limit events.
func NewEventLog(logger *slog.Logger, limit int) *EventLog {
	if logger == nil {
		logger = slog.Default()
	}
	if limit <= 0 {
		limit = 256
	}
	return &EventLog{logger: logger, limit: limit}
}

func (l *EventLog) Emit(evt events.Event) {
	flat := events.Flatten(evt)
	if flat == nil {
		return
	}
	Events().RecordEvent(flat.Type)
	attrs := make([]any, 0, len(flat.Attributes)+1)
	attrs = append(attrs, slog.String("type", flat.Type))
	for k, v := range flat.Attributes {
		attrs = append(attrs, logging.MaskField(k, v))
	}
	l.logger.Info("ledger event", attrs...)

	l.mu.Lock()
	defer l.mu.Unlock()
	l.recent = append(l.recent, flat.Clone())
	if over := len(l.recent) - l.limit; over > 0 {
		l.recent = append([]*types.Event(nil), l.recent[over:]...)
	}
}

// Recent returns copies of the retained events, oldest first.
func (l *EventLog) Recent() []*types.Event {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]*types.Event, len(l.recent))
	for i, evt := range l.recent {
		out[i] = evt.Clone()
	}
	return out
}
