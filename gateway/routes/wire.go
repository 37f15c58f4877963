package routes

import (
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/common"

	"partnerledger/core/events"
	"partnerledger/native/attribution"
	"partnerledger/native/claims"
	"partnerledger/native/currency"
	"partnerledger/native/vault"
)

// Amounts travel as decimal strings so values beyond 2^53 survive JSON.

type quantityJSON struct {
	Amount   string   `json:"amount,omitempty"`
	TokenIDs []string `json:"tokenIds,omitempty"`
	Amounts  []string `json:"amounts,omitempty"`
}

func (q quantityJSON) quantity() (currency.Quantity, error) {
	var out currency.Quantity
	var err error
	if strings.TrimSpace(q.Amount) != "" {
		if out.Amount, err = parseAmount(q.Amount); err != nil {
			return out, err
		}
	}
	if out.TokenIDs, err = parseAmounts(q.TokenIDs); err != nil {
		return out, fmt.Errorf("tokenIds: %w", err)
	}
	if out.Amounts, err = parseAmounts(q.Amounts); err != nil {
		return out, fmt.Errorf("amounts: %w", err)
	}
	return out, nil
}

type assetJSON struct {
	Kind       string   `json:"kind"`
	Amount     string   `json:"amount,omitempty"`
	TokenIDs   []string `json:"tokenIds,omitempty"`
	Quantities []string `json:"quantities,omitempty"`
}

func assetView(v events.AssetValue) assetJSON {
	out := assetJSON{Kind: v.Kind}
	if v.Amount != nil {
		out.Amount = v.Amount.String()
	}
	out.TokenIDs = formatAmounts(v.TokenIDs)
	out.Quantities = formatAmounts(v.Quantities)
	return out
}

func holdingsView(h *currency.Holdings) assetJSON {
	if h == nil {
		return assetJSON{}
	}
	view := assetView(h.Asset().Value())
	if !h.Kind().IsNFT() && view.Amount == "" {
		view.Amount = "0"
	}
	return view
}

type entryJSON struct {
	ConversionID string       `json:"conversionId,omitempty"`
	Proof        string       `json:"proof,omitempty"`
	Currency     string       `json:"currency"`
	Partner      string       `json:"partner"`
	EndUser      string       `json:"endUser"`
	ToPartner    quantityJSON `json:"toPartner"`
	ToEndUser    quantityJSON `json:"toEndUser"`
}

type attributionRequestJSON struct {
	Project string      `json:"project"`
	Entries []entryJSON `json:"entries"`
}

type attributeBody struct {
	Requests []attributionRequestJSON `json:"requests"`
}

func (b attributeBody) requests() ([]attribution.Request, error) {
	out := make([]attribution.Request, len(b.Requests))
	for i, req := range b.Requests {
		project, err := parseAddress(req.Project)
		if err != nil {
			return nil, fmt.Errorf("requests[%d].project: %w", i, err)
		}
		out[i].Project = project
		out[i].Entries = make([]attribution.Entry, len(req.Entries))
		for j, e := range req.Entries {
			entry, err := e.entry(project)
			if err != nil {
				return nil, fmt.Errorf("requests[%d].entries[%d]: %w", i, j, err)
			}
			out[i].Entries[j] = entry
		}
	}
	return out, nil
}

// entry resolves the proof either from an explicit 32 byte hex value or by
// hashing the conversion id under the project.
func (e entryJSON) entry(project common.Address) (attribution.Entry, error) {
	var out attribution.Entry
	switch {
	case strings.TrimSpace(e.Proof) != "":
		raw := common.FromHex(strings.TrimSpace(e.Proof))
		if len(raw) != 32 {
			return out, fmt.Errorf("%w: proof must be 32 bytes", attribution.ErrInvalidProof)
		}
		copy(out.Proof[:], raw)
	case strings.TrimSpace(e.ConversionID) != "":
		out.Proof = attribution.ProofHash(project, strings.TrimSpace(e.ConversionID))
	default:
		return out, fmt.Errorf("%w: proof or conversionId required", attribution.ErrInvalidProof)
	}
	var err error
	if out.Currency, err = parseCurrency(e.Currency); err != nil {
		return out, fmt.Errorf("currency: %w", err)
	}
	if out.Partner, err = parseAddress(e.Partner); err != nil {
		return out, fmt.Errorf("partner: %w", err)
	}
	if out.EndUser, err = parseAddress(e.EndUser); err != nil {
		return out, fmt.Errorf("endUser: %w", err)
	}
	if out.ToPartner, err = e.ToPartner.quantity(); err != nil {
		return out, fmt.Errorf("toPartner: %w", err)
	}
	if out.ToEndUser, err = e.ToEndUser.quantity(); err != nil {
		return out, fmt.Errorf("toEndUser: %w", err)
	}
	return out, nil
}

type attributeResponse struct {
	BatchID  string `json:"batchId"`
	Projects int    `json:"projects"`
	Entries  int    `json:"entries"`
}

type checkJSON struct {
	Project  string   `json:"project"`
	Currency string   `json:"currency"`
	TokenIDs []string `json:"tokenIds,omitempty"`
	Amounts  []string `json:"amounts,omitempty"`
}

type claimBody struct {
	Checks []checkJSON `json:"checks"`
}

func (b claimBody) checks() ([]claims.Check, error) {
	out := make([]claims.Check, len(b.Checks))
	for i, c := range b.Checks {
		var err error
		if out[i].Project, err = parseAddress(c.Project); err != nil {
			return nil, fmt.Errorf("checks[%d].project: %w", i, err)
		}
		if out[i].Currency, err = parseCurrency(c.Currency); err != nil {
			return nil, fmt.Errorf("checks[%d].currency: %w", i, err)
		}
		if out[i].TokenIDs, err = parseAmounts(c.TokenIDs); err != nil {
			return nil, fmt.Errorf("checks[%d].tokenIds: %w", i, err)
		}
		if out[i].Amounts, err = parseAmounts(c.Amounts); err != nil {
			return nil, fmt.Errorf("checks[%d].amounts: %w", i, err)
		}
	}
	return out, nil
}

type payoutJSON struct {
	Project  string    `json:"project"`
	Currency string    `json:"currency"`
	Asset    assetJSON `json:"asset"`
}

type claimResponse struct {
	BatchID string       `json:"batchId"`
	Payouts []payoutJSON `json:"payouts"`
}

type vaultMoveBody struct {
	Currency  string `json:"currency"`
	FeeBudget bool   `json:"feeBudget,omitempty"`
	quantityJSON
}

type currencyJSON struct {
	Address         string `json:"address"`
	Kind            string `json:"kind"`
	Active          bool   `json:"active"`
	ClaimLimit      string `json:"claimLimit"`
	ClaimedInWindow string `json:"claimedInWindow"`
	WindowStart     int64  `json:"windowStart"`
}

func currencyView(c *currency.Currency) currencyJSON {
	return currencyJSON{
		Address:         formatAddress(c.ID),
		Kind:            c.Kind.String(),
		Active:          c.Active,
		ClaimLimit:      formatAmount(c.ClaimLimit),
		ClaimedInWindow: formatAmount(c.ClaimedInWindow),
		WindowStart:     c.WindowStart,
	}
}

type addCurrencyBody struct {
	Address string `json:"address"`
	Kind    string `json:"kind"`
	Limit   string `json:"limit"`
}

type limitBody struct {
	Limit string `json:"limit"`
}

type totalsJSON struct {
	Deposited    string `json:"deposited"`
	Removed      string `json:"removed"`
	Attributed   string `json:"attributed"`
	Claimed      string `json:"claimed"`
	FeeDeposited string `json:"feeDeposited"`
	FeeRemoved   string `json:"feeRemoved"`
	FeeCharged   string `json:"feeCharged"`
}

func totalsView(t vault.Totals) totalsJSON {
	return totalsJSON{
		Deposited:    formatAmount(t.Deposited),
		Removed:      formatAmount(t.Removed),
		Attributed:   formatAmount(t.Attributed),
		Claimed:      formatAmount(t.Claimed),
		FeeDeposited: formatAmount(t.FeeDeposited),
		FeeRemoved:   formatAmount(t.FeeRemoved),
		FeeCharged:   formatAmount(t.FeeCharged),
	}
}

type projectJSON struct {
	ID              string `json:"id"`
	Admin           string `json:"admin"`
	ClientCollector string `json:"clientCollector,omitempty"`
}

type pauseBody struct {
	Paused bool `json:"paused"`
}

type pauseJSON struct {
	Module string `json:"module"`
	Paused bool   `json:"paused"`
	By     string `json:"by,omitempty"`
	Since  int64  `json:"since,omitempty"`
}

func parseAddress(raw string) (common.Address, error) {
	trimmed := strings.TrimSpace(raw)
	if !common.IsHexAddress(trimmed) {
		return common.Address{}, fmt.Errorf("invalid address %q", raw)
	}
	return common.HexToAddress(trimmed), nil
}

// parseCurrency accepts "native" for the native currency.
func parseCurrency(raw string) (common.Address, error) {
	if strings.EqualFold(strings.TrimSpace(raw), "native") {
		return currency.NativeCurrency, nil
	}
	return parseAddress(raw)
}

func parseAmount(raw string) (*big.Int, error) {
	v, ok := new(big.Int).SetString(strings.TrimSpace(raw), 10)
	if !ok || v.Sign() < 0 {
		return nil, fmt.Errorf("%w: %q", currency.ErrInvalidAmount, raw)
	}
	return v, nil
}

func parseAmounts(raw []string) ([]*big.Int, error) {
	if len(raw) == 0 {
		return nil, nil
	}
	out := make([]*big.Int, len(raw))
	for i, r := range raw {
		v, err := parseAmount(r)
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}

func formatAddress(addr common.Address) string {
	return strings.ToLower(addr.Hex())
}

func formatAmount(v *big.Int) string {
	if v == nil {
		return "0"
	}
	return v.String()
}

func formatAmounts(values []*big.Int) []string {
	if len(values) == 0 {
		return nil
	}
	out := make([]string, len(values))
	for i, v := range values {
		out[i] = formatAmount(v)
	}
	return out
}
