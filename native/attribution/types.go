package attribution

import (
	"errors"

	"github.com/ethereum/go-ethereum/common"
	ethcrypto "github.com/ethereum/go-ethereum/crypto"

	"partnerledger/native/currency"
)

var (
	ErrEmptyBatch           = errors.New("attribution: empty batch")
	ErrProjectNotRegistered = errors.New("attribution: project not registered")
	ErrInvalidProof         = errors.New("attribution: invalid proof")
	ErrProofAlreadyUsed     = errors.New("attribution: proof already used")
	ErrInsufficientBudget   = errors.New("attribution: insufficient budget")
	ErrNoFeeCollector       = errors.New("attribution: protocol fee collector not configured")
)

// Entry is one attributed conversion. Coin currencies take amounts; NFT
// currencies take token ids (and quantities for ERC1155).
type Entry struct {
	Proof     [32]byte
	Currency  common.Address
	Partner   common.Address
	EndUser   common.Address
	ToPartner currency.Quantity
	ToEndUser currency.Quantity
}

// Request groups the entries attributed against one project's budget.
type Request struct {
	Project common.Address
	Entries []Entry
}

// Receipt summarises a committed batch.
type Receipt struct {
	BatchID  string
	Projects int
	Entries  int
}

// ProofHash derives the proof commitment for a conversion in project.
func ProofHash(project common.Address, conversionID string) [32]byte {
	var out [32]byte
	copy(out[:], ethcrypto.Keccak256(project.Bytes(), []byte(conversionID)))
	return out
}
