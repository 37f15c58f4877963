package common

import (
	"errors"
	"strings"
)

// ModuleGlobal is the circuit breaker that halts every module at once.
const ModuleGlobal = "global"

var ErrModulePaused = errors.New("module paused")

type PauseView interface {
	IsPaused(module string) bool
}

// Guard fails with ErrModulePaused when either the module or the global
// breaker is engaged.
func Guard(p PauseView, module string) error {
	if p == nil {
		return nil
	}
	if p.IsPaused(ModuleGlobal) {
		return ErrModulePaused
	}
	module = strings.ToLower(strings.TrimSpace(module))
	if module == "" || module == ModuleGlobal {
		return nil
	}
	if p.IsPaused(module) {
		return ErrModulePaused
	}
	return nil
}
