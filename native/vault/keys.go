package vault

import (
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	ethcrypto "github.com/ethereum/go-ethereum/crypto"
)

const vaultPrefix = "vault"

func budgetKey(project, id common.Address) []byte {
	return []byte(fmt.Sprintf("%s/%x/budget/%x", vaultPrefix, project.Bytes(), id.Bytes()))
}

func feeBudgetKey(project, id common.Address) []byte {
	return []byte(fmt.Sprintf("%s/%x/fee/%x", vaultPrefix, project.Bytes(), id.Bytes()))
}

func claimableKey(project, recipient, id common.Address) []byte {
	return []byte(fmt.Sprintf("%s/%x/claimable/%x/%x", vaultPrefix, project.Bytes(), recipient.Bytes(), id.Bytes()))
}

func proofKey(project common.Address, proof [32]byte) []byte {
	return []byte(fmt.Sprintf("%s/%x/proof/%x", vaultPrefix, project.Bytes(), proof))
}

func removalKey(project common.Address) []byte {
	return []byte(fmt.Sprintf("%s/%x/removal", vaultPrefix, project.Bytes()))
}

func totalsKey(project, id common.Address) []byte {
	return []byte(fmt.Sprintf("%s/%x/totals/%x", vaultPrefix, project.Bytes(), id.Bytes()))
}

func currenciesKey(project common.Address) []byte {
	return []byte(fmt.Sprintf("%s/%x/currencies", vaultPrefix, project.Bytes()))
}

// AccountAddress returns the bank account that holds a project's vault
// balances.
func AccountAddress(project common.Address) common.Address {
	hash := ethcrypto.Keccak256([]byte(vaultPrefix), project.Bytes())
	return common.BytesToAddress(hash[12:])
}
