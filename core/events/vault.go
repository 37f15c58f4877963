package events

import (
	"github.com/ethereum/go-ethereum/common"

	"partnerledger/core/types"
)

const (
	TypeVaultDeposited          = "vault.deposited"
	TypeVaultFeeBudgetDeposited = "vault.fee_budget_deposited"
	TypeVaultRemovalApplied     = "vault.removal_applied"
	TypeVaultRemoved            = "vault.removed"
	TypeVaultFeeBudgetRemoved   = "vault.fee_budget_removed"
)

// VaultDeposited records budget entering a project vault. FeeBudget marks
// deposits that replenish the fixed NFT fee reserve.
type VaultDeposited struct {
	Project   common.Address
	Currency  common.Address
	Depositor common.Address
	Asset     AssetValue
	FeeBudget bool
}

func (e VaultDeposited) EventType() string {
	if e.FeeBudget {
		return TypeVaultFeeBudgetDeposited
	}
	return TypeVaultDeposited
}

func (e VaultDeposited) Event() *types.Event {
	attrs := map[string]string{
		"project":   formatAddress(e.Project),
		"currency":  formatAddress(e.Currency),
		"depositor": formatAddress(e.Depositor),
	}
	e.Asset.apply(attrs, "")
	return &types.Event{Type: e.EventType(), Attributes: attrs}
}

// VaultRemovalApplied marks the start of a budget removal cooldown.
type VaultRemovalApplied struct {
	Project   common.Address
	Admin     common.Address
	AppliedAt int64
}

func (VaultRemovalApplied) EventType() string { return TypeVaultRemovalApplied }

func (e VaultRemovalApplied) Event() *types.Event {
	return &types.Event{
		Type: TypeVaultRemovalApplied,
		Attributes: map[string]string{
			"project":   formatAddress(e.Project),
			"admin":     formatAddress(e.Admin),
			"appliedAt": intToString(e.AppliedAt),
		},
	}
}

// VaultRemoved records budget leaving a vault back to its admin.
type VaultRemoved struct {
	Project   common.Address
	Currency  common.Address
	Recipient common.Address
	Asset     AssetValue
	FeeBudget bool
}

func (e VaultRemoved) EventType() string {
	if e.FeeBudget {
		return TypeVaultFeeBudgetRemoved
	}
	return TypeVaultRemoved
}

func (e VaultRemoved) Event() *types.Event {
	attrs := map[string]string{
		"project":   formatAddress(e.Project),
		"currency":  formatAddress(e.Currency),
		"recipient": formatAddress(e.Recipient),
	}
	e.Asset.apply(attrs, "")
	return &types.Event{Type: e.EventType(), Attributes: attrs}
}
