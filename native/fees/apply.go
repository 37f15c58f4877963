package fees

import (
	"errors"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

// BasisPoints is the denominator of every fee rate.
const BasisPoints = 10_000

var (
	ErrZeroAmount    = errors.New("fees: zero amount")
	ErrInvalidParams = errors.New("fees: invalid parameters")
)

// Params captures the fee configuration a project applies at the moment of
// attribution.
type Params struct {
	ProtocolFeeBps       uint32         `json:"protocolFeeBps" toml:"protocol_fee_bps"`
	ClientFeeBps         uint32         `json:"clientFeeBps" toml:"client_fee_bps"`
	AttributorFeeBps     uint32         `json:"attributorFeeBps" toml:"attributor_fee_bps"`
	NFTFixedFee          *big.Int       `json:"nftFixedFee" toml:"nft_fixed_fee"`
	NFTFeeCurrency       common.Address `json:"nftFeeCurrency" toml:"nft_fee_currency"`
	ProtocolFeeCollector common.Address `json:"protocolFeeCollector" toml:"protocol_fee_collector"`
}

// Clone returns a copy of the params with a duplicated fixed fee.
func (p Params) Clone() Params {
	clone := p
	if p.NFTFixedFee != nil {
		clone.NFTFixedFee = new(big.Int).Set(p.NFTFixedFee)
	}
	return clone
}

// TotalBps is the combined rate across all three fee receivers.
func (p Params) TotalBps() uint64 {
	return uint64(p.ProtocolFeeBps) + uint64(p.ClientFeeBps) + uint64(p.AttributorFeeBps)
}

// Validate rejects rate sums above 100% and negative fixed fees.
func (p Params) Validate() error {
	if p.TotalBps() > BasisPoints {
		return fmt.Errorf("%w: fee rates sum to %d bps", ErrInvalidParams, p.TotalBps())
	}
	if p.NFTFixedFee != nil && p.NFTFixedFee.Sign() < 0 {
		return fmt.Errorf("%w: negative nft fixed fee", ErrInvalidParams)
	}
	return nil
}

// FixedFee returns the configured NFT fee, zero when unset.
func (p Params) FixedFee() *big.Int {
	if p.NFTFixedFee == nil {
		return big.NewInt(0)
	}
	return new(big.Int).Set(p.NFTFixedFee)
}

// Shares is the outcome of a fee split. Every field is non-nil.
type Shares struct {
	Protocol   *big.Int
	Client     *big.Int
	Attributor *big.Int
	Partner    *big.Int
	EndUser    *big.Int
}

// Fees sums the three fee shares.
func (s Shares) Fees() *big.Int {
	total := new(big.Int).Add(s.Protocol, s.Client)
	return total.Add(total, s.Attributor)
}

// Total sums every share.
func (s Shares) Total() *big.Int {
	total := s.Fees()
	total.Add(total, s.Partner)
	return total.Add(total, s.EndUser)
}

func bps(amount *big.Int, rate uint32) *big.Int {
	if rate == 0 {
		return big.NewInt(0)
	}
	out := new(big.Int).Mul(amount, big.NewInt(int64(rate)))
	return out.Div(out, big.NewInt(BasisPoints))
}

// Split divides a fungible attribution between fee receivers and the two
// beneficiaries. Fees are computed on the total; the rest is divided
// pro rata to the gross amounts with truncation dust left to the end user.
// The shares always sum to the total.
func Split(grossToPartner, grossToEndUser *big.Int, params Params) (Shares, error) {
	if err := params.Validate(); err != nil {
		return Shares{}, err
	}
	partnerGross := zeroIfNil(grossToPartner)
	endUserGross := zeroIfNil(grossToEndUser)
	if partnerGross.Sign() < 0 || endUserGross.Sign() < 0 {
		return Shares{}, fmt.Errorf("%w: negative gross amount", ErrInvalidParams)
	}
	total := new(big.Int).Add(partnerGross, endUserGross)
	if total.Sign() == 0 {
		return Shares{}, ErrZeroAmount
	}
	shares := Shares{
		Protocol:   bps(total, params.ProtocolFeeBps),
		Client:     bps(total, params.ClientFeeBps),
		Attributor: bps(total, params.AttributorFeeBps),
	}
	remaining := new(big.Int).Sub(total, shares.Fees())
	shares.Partner = new(big.Int).Mul(remaining, partnerGross)
	shares.Partner.Div(shares.Partner, total)
	shares.EndUser = new(big.Int).Sub(remaining, shares.Partner)
	return shares, nil
}

// SplitFixed divides the NFT fixed fee among the fee receivers in proportion
// to their rates. Truncation remainder goes to the attributor; when every
// rate is zero the protocol takes the whole fee. Partner and EndUser are
// always zero because beneficiaries receive the NFT assets themselves.
func SplitFixed(params Params) (Shares, error) {
	if err := params.Validate(); err != nil {
		return Shares{}, err
	}
	fee := params.FixedFee()
	shares := Shares{
		Protocol:   big.NewInt(0),
		Client:     big.NewInt(0),
		Attributor: big.NewInt(0),
		Partner:    big.NewInt(0),
		EndUser:    big.NewInt(0),
	}
	if fee.Sign() == 0 {
		return shares, nil
	}
	weight := params.TotalBps()
	if weight == 0 {
		shares.Protocol = fee
		return shares, nil
	}
	denom := new(big.Int).SetUint64(weight)
	portion := func(rate uint32) *big.Int {
		out := new(big.Int).Mul(fee, big.NewInt(int64(rate)))
		return out.Div(out, denom)
	}
	shares.Protocol = portion(params.ProtocolFeeBps)
	shares.Client = portion(params.ClientFeeBps)
	shares.Attributor = new(big.Int).Sub(fee, shares.Protocol)
	shares.Attributor.Sub(shares.Attributor, shares.Client)
	return shares, nil
}

func zeroIfNil(v *big.Int) *big.Int {
	if v == nil {
		return big.NewInt(0)
	}
	return v
}
