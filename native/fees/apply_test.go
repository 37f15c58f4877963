package fees

import (
	"errors"
	"math/big"
	"testing"

	"github.com/BurntSushi/toml"
	"github.com/ethereum/go-ethereum/common"
)

func TestSplitConservesTotal(t *testing.T) {
	params := Params{ProtocolFeeBps: 100, ClientFeeBps: 200, AttributorFeeBps: 50}
	shares, err := Split(big.NewInt(500), big.NewInt(500), params)
	if err != nil {
		t.Fatalf("split: %v", err)
	}
	expect := map[string]int64{
		"protocol":   10,
		"client":     20,
		"attributor": 5,
		"partner":    482,
		"endUser":    483,
	}
	got := map[string]int64{
		"protocol":   shares.Protocol.Int64(),
		"client":     shares.Client.Int64(),
		"attributor": shares.Attributor.Int64(),
		"partner":    shares.Partner.Int64(),
		"endUser":    shares.EndUser.Int64(),
	}
	for k, v := range expect {
		if got[k] != v {
			t.Fatalf("%s: expected %d, got %d", k, v, got[k])
		}
	}
	if shares.Total().Int64() != 1000 {
		t.Fatalf("shares must sum to the total, got %s", shares.Total())
	}
}

func TestSplitUnevenGross(t *testing.T) {
	params := Params{ProtocolFeeBps: 333, ClientFeeBps: 17, AttributorFeeBps: 1}
	cases := [][2]int64{{1, 0}, {0, 7}, {3, 997}, {12345, 6789}, {1, 1}}
	for _, tc := range cases {
		shares, err := Split(big.NewInt(tc[0]), big.NewInt(tc[1]), params)
		if err != nil {
			t.Fatalf("split %v: %v", tc, err)
		}
		if shares.Total().Int64() != tc[0]+tc[1] {
			t.Fatalf("split %v leaked value: %s", tc, shares.Total())
		}
		if shares.Partner.Int64() > tc[0] || shares.EndUser.Sign() < 0 {
			t.Fatalf("split %v produced out of range shares: %+v", tc, shares)
		}
	}
}

func TestSplitRejectsInvalidInput(t *testing.T) {
	if _, err := Split(big.NewInt(0), nil, Params{}); !errors.Is(err, ErrZeroAmount) {
		t.Fatalf("expected ErrZeroAmount, got %v", err)
	}
	bad := Params{ProtocolFeeBps: 9_000, ClientFeeBps: 1_000, AttributorFeeBps: 1}
	if _, err := Split(big.NewInt(10), big.NewInt(10), bad); !errors.Is(err, ErrInvalidParams) {
		t.Fatalf("expected ErrInvalidParams, got %v", err)
	}
	full := Params{ProtocolFeeBps: 10_000}
	shares, err := Split(big.NewInt(10), big.NewInt(10), full)
	if err != nil {
		t.Fatalf("100%% fee should be allowed: %v", err)
	}
	if shares.Protocol.Int64() != 20 || shares.Partner.Sign() != 0 || shares.EndUser.Sign() != 0 {
		t.Fatalf("unexpected shares for full fee: %+v", shares)
	}
}

func TestSplitFixed(t *testing.T) {
	params := Params{ProtocolFeeBps: 100, ClientFeeBps: 200, AttributorFeeBps: 50, NFTFixedFee: big.NewInt(10)}
	shares, err := SplitFixed(params)
	if err != nil {
		t.Fatalf("split fixed: %v", err)
	}
	if shares.Protocol.Int64() != 2 || shares.Client.Int64() != 5 || shares.Attributor.Int64() != 3 {
		t.Fatalf("expected 2/5/3, got %s/%s/%s", shares.Protocol, shares.Client, shares.Attributor)
	}
	if shares.Partner.Sign() != 0 || shares.EndUser.Sign() != 0 {
		t.Fatalf("beneficiaries must not receive fee currency")
	}

	params.ProtocolFeeBps, params.ClientFeeBps, params.AttributorFeeBps = 0, 0, 0
	shares, err = SplitFixed(params)
	if err != nil {
		t.Fatalf("split fixed: %v", err)
	}
	if shares.Protocol.Int64() != 10 || shares.Fees().Int64() != 10 {
		t.Fatalf("zero rates should route the whole fee to protocol, got %+v", shares)
	}

	shares, err = SplitFixed(Params{ProtocolFeeBps: 100})
	if err != nil {
		t.Fatalf("split fixed: %v", err)
	}
	if shares.Fees().Sign() != 0 {
		t.Fatalf("unset fixed fee should charge nothing")
	}
}

func TestParamsUnmarshalTOML(t *testing.T) {
	var payload struct {
		Fees Params `toml:"fees"`
	}
	raw := `[fees]
protocol_fee_bps = 100
client_fee_bps = 200
attributor_fee_bps = 50
nft_fixed_fee = "100000000000000000000"
nft_fee_currency = "0x00000000000000000000000000000000000000f1"
protocol_fee_collector = "0x00000000000000000000000000000000000000c0"
`
	if _, err := toml.Decode(raw, &payload); err != nil {
		t.Fatalf("toml decode: %v", err)
	}
	p := payload.Fees
	if p.ProtocolFeeBps != 100 || p.ClientFeeBps != 200 || p.AttributorFeeBps != 50 {
		t.Fatalf("unexpected rates: %+v", p)
	}
	want, _ := new(big.Int).SetString("100000000000000000000", 10)
	if p.NFTFixedFee == nil || p.NFTFixedFee.Cmp(want) != 0 {
		t.Fatalf("unexpected fixed fee %v", p.NFTFixedFee)
	}
	if p.NFTFeeCurrency != common.HexToAddress("0xf1") || p.ProtocolFeeCollector != common.HexToAddress("0xc0") {
		t.Fatalf("unexpected addresses: %+v", p)
	}
}
