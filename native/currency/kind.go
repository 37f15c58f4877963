package currency

import (
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/common"
)

// NativeCurrency identifies the chain's native coin.
var NativeCurrency = common.Address{}

// Kind classifies how a currency's balances are represented and moved.
type Kind uint8

const (
	KindUnknown Kind = iota
	KindNative
	KindFungible
	KindNFT721
	KindNFT1155
)

// Valid reports whether the kind value is within the supported range.
func (k Kind) Valid() bool {
	switch k {
	case KindNative, KindFungible, KindNFT721, KindNFT1155:
		return true
	default:
		return false
	}
}

// IsNFT reports whether balances of this kind are token-id based.
func (k Kind) IsNFT() bool { return k == KindNFT721 || k == KindNFT1155 }

func (k Kind) String() string {
	switch k {
	case KindNative:
		return "native"
	case KindFungible:
		return "fungible"
	case KindNFT721:
		return "erc721"
	case KindNFT1155:
		return "erc1155"
	default:
		return "unknown"
	}
}

// ParseKind accepts the canonical names plus the common ERC aliases.
func ParseKind(raw string) (Kind, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "native":
		return KindNative, nil
	case "fungible", "erc20":
		return KindFungible, nil
	case "erc721", "nft721", "721":
		return KindNFT721, nil
	case "erc1155", "nft1155", "1155":
		return KindNFT1155, nil
	default:
		return KindUnknown, fmt.Errorf("%w: %q", ErrInvalidKind, raw)
	}
}
