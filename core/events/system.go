package events

import (
	"strings"

	"github.com/ethereum/go-ethereum/common"

	"partnerledger/core/types"
)

const (
	TypePaused   = "system.paused"
	TypeUnpaused = "system.unpaused"
)

// PauseToggled records a circuit breaker change for a module. The module
// "global" halts every mutating operation.
type PauseToggled struct {
	Module string
	By     common.Address
	Paused bool
}

func (e PauseToggled) EventType() string {
	if e.Paused {
		return TypePaused
	}
	return TypeUnpaused
}

func (e PauseToggled) Event() *types.Event {
	return &types.Event{
		Type: e.EventType(),
		Attributes: map[string]string{
			"module": strings.ToLower(strings.TrimSpace(e.Module)),
			"by":     formatAddress(e.By),
		},
	}
}
