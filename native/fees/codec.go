package fees

import (
	"encoding/json"
	"fmt"
	"strings"
)

// UnmarshalTOML performs a best-effort conversion from snake_case TOML keys
// into the camelCase JSON structure used by Params. Fixed fees may be given
// as integers or decimal strings so values beyond int64 survive.
func (p *Params) UnmarshalTOML(data interface{}) error {
	table, ok := data.(map[string]interface{})
	if !ok {
		return fmt.Errorf("fees: params must decode from a table")
	}
	normalized := normalizeParamsTable(table)

	type alias Params
	var decoded alias
	blob, err := json.Marshal(normalized)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(blob, &decoded); err != nil {
		return fmt.Errorf("fees: decode params: %w", err)
	}
	*p = Params(decoded)
	return nil
}

func normalizeParamsTable(in map[string]interface{}) map[string]interface{} {
	out := make(map[string]interface{}, len(in))
	for key, value := range in {
		switch {
		case strings.EqualFold(key, "protocol_fee_bps"):
			out["protocolFeeBps"] = value
		case strings.EqualFold(key, "client_fee_bps"):
			out["clientFeeBps"] = value
		case strings.EqualFold(key, "attributor_fee_bps"):
			out["attributorFeeBps"] = value
		case strings.EqualFold(key, "nft_fixed_fee"), strings.EqualFold(key, "nftFixedFee"):
			out["nftFixedFee"] = normalizeAmount(value)
		case strings.EqualFold(key, "nft_fee_currency"):
			out["nftFeeCurrency"] = value
		case strings.EqualFold(key, "protocol_fee_collector"):
			out["protocolFeeCollector"] = value
		default:
			out[key] = value
		}
	}
	return out
}

func normalizeAmount(value interface{}) interface{} {
	if s, ok := value.(string); ok {
		return json.Number(strings.TrimSpace(s))
	}
	return value
}
