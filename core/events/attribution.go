package events

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	"partnerledger/core/types"
)

const (
	TypeAttributed = "attribution.attributed"
	TypeClaimed    = "claims.claimed"
)

// Attributed is emitted once per attribution entry. Fee shares are
// denominated in FeeCurrency, which equals Currency for coin attributions and
// the configured NFT fee currency otherwise.
type Attributed struct {
	BatchID           string
	Project           common.Address
	Currency          common.Address
	Proof             [32]byte
	Partner           common.Address
	EndUser           common.Address
	Attributor        common.Address
	ToPartner         AssetValue
	ToEndUser         AssetValue
	FeeCurrency       common.Address
	ProtocolCollector common.Address
	ClientCollector   common.Address
	ProtocolFee       *big.Int
	ClientFee         *big.Int
	AttributorFee     *big.Int
}

func (Attributed) EventType() string { return TypeAttributed }

func (e Attributed) Event() *types.Event {
	attrs := map[string]string{
		"project":           formatAddress(e.Project),
		"currency":          formatAddress(e.Currency),
		"proof":             formatHash(e.Proof),
		"partner":           formatAddress(e.Partner),
		"endUser":           formatAddress(e.EndUser),
		"attributor":        formatAddress(e.Attributor),
		"feeCurrency":       formatAddress(e.FeeCurrency),
		"protocolCollector": formatAddress(e.ProtocolCollector),
		"clientCollector":   formatAddress(e.ClientCollector),
		"protocolFee":       formatAmount(e.ProtocolFee),
		"clientFee":         formatAmount(e.ClientFee),
		"attributorFee":     formatAmount(e.AttributorFee),
	}
	if e.BatchID != "" {
		attrs["batchId"] = e.BatchID
	}
	if e.ToPartner.Kind != "" {
		attrs["kind"] = e.ToPartner.Kind
	}
	e.ToPartner.apply(attrs, "partner")
	e.ToEndUser.apply(attrs, "endUser")
	return &types.Event{Type: TypeAttributed, Attributes: attrs}
}

// Claimed records a claimable balance leaving a vault.
type Claimed struct {
	BatchID   string
	Project   common.Address
	Currency  common.Address
	Recipient common.Address
	Asset     AssetValue
}

func (Claimed) EventType() string { return TypeClaimed }

func (e Claimed) Event() *types.Event {
	attrs := map[string]string{
		"project":   formatAddress(e.Project),
		"currency":  formatAddress(e.Currency),
		"recipient": formatAddress(e.Recipient),
	}
	if e.BatchID != "" {
		attrs["batchId"] = e.BatchID
	}
	e.Asset.apply(attrs, "")
	return &types.Event{Type: TypeClaimed, Attributes: attrs}
}
