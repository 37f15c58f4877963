package access

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/ethereum/go-ethereum/common"
)

// Role names a capability checked by the ledger engines.
type Role string

const (
	RoleAdmin      Role = "admin"
	RoleAttributor Role = "attributor"
	RolePauser     Role = "pauser"
)

var ErrUnauthorized = errors.New("access: unauthorized")

// Authority answers capability checks. Role administration lives outside the
// ledger; engines only consume this view.
type Authority interface {
	HasRole(addr common.Address, role Role) bool
}

// ParseRole normalises a role name.
func ParseRole(raw string) (Role, error) {
	switch Role(strings.ToLower(strings.TrimSpace(raw))) {
	case RoleAdmin:
		return RoleAdmin, nil
	case RoleAttributor:
		return RoleAttributor, nil
	case RolePauser:
		return RolePauser, nil
	default:
		return "", fmt.Errorf("access: unknown role %q", raw)
	}
}

// Require returns ErrUnauthorized unless caller holds role.
func Require(a Authority, caller common.Address, role Role) error {
	if a == nil || !a.HasRole(caller, role) {
		return fmt.Errorf("%w: %s lacks %s", ErrUnauthorized, strings.ToLower(caller.Hex()), role)
	}
	return nil
}

// Registry is an in-memory Authority seeded at start-up.
type Registry struct {
	mu     sync.RWMutex
	grants map[Role]map[common.Address]struct{}
}

func NewRegistry() *Registry {
	return &Registry{grants: make(map[Role]map[common.Address]struct{})}
}

// Grant associates an address with the role. Duplicate grants are ignored.
func (r *Registry) Grant(role Role, addr common.Address) {
	r.mu.Lock()
	defer r.mu.Unlock()
	members, ok := r.grants[role]
	if !ok {
		members = make(map[common.Address]struct{})
		r.grants[role] = members
	}
	members[addr] = struct{}{}
}

func (r *Registry) Revoke(role Role, addr common.Address) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.grants[role], addr)
}

func (r *Registry) HasRole(addr common.Address, role Role) bool {
	if r == nil {
		return false
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.grants[role][addr]
	return ok
}

// Members returns the holders of role sorted by address.
func (r *Registry) Members(role Role) []common.Address {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]common.Address, 0, len(r.grants[role]))
	for addr := range r.grants[role] {
		out = append(out, addr)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Cmp(out[j]) < 0 })
	return out
}
