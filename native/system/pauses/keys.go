package pauses

import (
	"fmt"
	"strings"
)

const (
	pausesPrefix      = "pauses"
	pausesIndexSuffix = "index"
)

// Modules that can be paused. ModuleGlobal halts all of them at once.
const (
	ModuleVault       = "vault"
	ModuleAttribution = "attribution"
	ModuleClaims      = "claims"
	ModuleGlobal      = "global"
)

var knownModules = map[string]struct{}{
	ModuleVault:       {},
	ModuleAttribution: {},
	ModuleClaims:      {},
	ModuleGlobal:      {},
}

func normaliseModule(module string) string {
	return strings.ToLower(strings.TrimSpace(module))
}

func pauseKey(module string) []byte {
	return []byte(fmt.Sprintf("%s/%s", pausesPrefix, normaliseModule(module)))
}

func indexKey() []byte {
	return []byte(fmt.Sprintf("%s/%s", pausesPrefix, pausesIndexSuffix))
}
