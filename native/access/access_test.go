package access

import (
	"errors"
	"testing"

	"github.com/ethereum/go-ethereum/common"
)

func TestRegistryGrantRevoke(t *testing.T) {
	reg := NewRegistry()
	alice := common.HexToAddress("0x01")
	bob := common.HexToAddress("0x02")

	reg.Grant(RoleAttributor, bob)
	reg.Grant(RoleAttributor, alice)
	reg.Grant(RoleAttributor, alice)

	if !reg.HasRole(alice, RoleAttributor) {
		t.Fatalf("expected alice to be an attributor")
	}
	if reg.HasRole(alice, RoleAdmin) {
		t.Fatalf("roles must not leak across names")
	}
	members := reg.Members(RoleAttributor)
	if len(members) != 2 || members[0] != alice || members[1] != bob {
		t.Fatalf("unexpected members: %v", members)
	}

	reg.Revoke(RoleAttributor, alice)
	if err := Require(reg, alice, RoleAttributor); !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("expected ErrUnauthorized, got %v", err)
	}
	if err := Require(reg, bob, RoleAttributor); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestParseRole(t *testing.T) {
	role, err := ParseRole(" Pauser ")
	if err != nil || role != RolePauser {
		t.Fatalf("unexpected parse result %q, %v", role, err)
	}
	if _, err := ParseRole("root"); err == nil {
		t.Fatalf("expected unknown role error")
	}
}
