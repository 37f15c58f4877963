package events

import (
	"encoding/hex"
	"math/big"
	"strconv"
	"strings"

	"github.com/ethereum/go-ethereum/common"
)

// AssetValue is the event form of a moved asset. Coins populate Amount; NFT
// transfers populate TokenIDs and, for multi-token standards, Quantities.
type AssetValue struct {
	Kind       string
	Amount     *big.Int
	TokenIDs   []*big.Int
	Quantities []*big.Int
}

func (v AssetValue) apply(attrs map[string]string, prefix string) {
	if kind := strings.TrimSpace(v.Kind); kind != "" && prefix == "" {
		attrs["kind"] = kind
	}
	if v.Amount != nil {
		attrs[key(prefix, "amount")] = formatAmount(v.Amount)
	}
	if len(v.TokenIDs) > 0 {
		attrs[key(prefix, "tokenIds")] = joinInts(v.TokenIDs)
	}
	if len(v.Quantities) > 0 {
		attrs[key(prefix, "tokenAmounts")] = joinInts(v.Quantities)
	}
}

func key(prefix, name string) string {
	if prefix == "" {
		return name
	}
	return prefix + strings.ToUpper(name[:1]) + name[1:]
}

func joinInts(values []*big.Int) string {
	parts := make([]string, len(values))
	for i, v := range values {
		parts[i] = formatAmount(v)
	}
	return strings.Join(parts, ",")
}

func formatAmount(v *big.Int) string {
	if v == nil {
		return "0"
	}
	return v.String()
}

func formatAddress(addr common.Address) string {
	return strings.ToLower(addr.Hex())
}

func formatHash(h [32]byte) string {
	return "0x" + hex.EncodeToString(h[:])
}

func intToString(v int64) string {
	return strconv.FormatInt(v, 10)
}
