// Package nodetest builds a fully wired in-memory ledger node for tests.
package nodetest

import (
	"context"
	"math/big"
	"sync"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/require"

	"partnerledger/core"
	"partnerledger/core/events"
	"partnerledger/native/access"
	"partnerledger/native/currency"
	"partnerledger/native/fees"
	"partnerledger/storage"
)

var (
	Admin      = common.HexToAddress("0x00000000000000000000000000000000000000ad")
	Attributor = common.HexToAddress("0x00000000000000000000000000000000000000a7")
	Pauser     = common.HexToAddress("0x00000000000000000000000000000000000000a9")

	ProjectA        = common.HexToAddress("0x0000000000000000000000000000000000000001")
	ProjectB        = common.HexToAddress("0x0000000000000000000000000000000000000002")
	ProjectAdmin    = common.HexToAddress("0x00000000000000000000000000000000000000ab")
	ClientCollector = common.HexToAddress("0x00000000000000000000000000000000000000cc")
	ProtocolFees    = common.HexToAddress("0x00000000000000000000000000000000000000c0")

	Partner = common.HexToAddress("0x0000000000000000000000000000000000000b01")
	EndUser = common.HexToAddress("0x0000000000000000000000000000000000000e01")

	Fungible = common.HexToAddress("0x00000000000000000000000000000000000000e2")
	FeeToken = common.HexToAddress("0x00000000000000000000000000000000000000f1")
	NFT721   = common.HexToAddress("0x0000000000000000000000000000000000000721")
	NFT1155  = common.HexToAddress("0x0000000000000000000000000000000000001155")
)

const (
	StartTime       = int64(1_700_000_000)
	ClaimCooldown   = time.Hour
	RemovalCooldown = 7 * 24 * time.Hour
	RemovalWindow   = 2 * 24 * time.Hour
)

// DefaultFees is 1% protocol, 2% client and 0.5% attributor with a fixed NFT
// fee of 10 paid in FeeToken.
func DefaultFees() fees.Params {
	return fees.Params{
		ProtocolFeeBps:       100,
		ClientFeeBps:         200,
		AttributorFeeBps:     50,
		NFTFixedFee:          big.NewInt(10),
		NFTFeeCurrency:       FeeToken,
		ProtocolFeeCollector: ProtocolFees,
	}
}

// Recorder captures committed events.
type Recorder struct {
	mu     sync.Mutex
	events []events.Event
}

func (r *Recorder) Emit(evt events.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, evt)
}

// Types returns the event types seen so far in emission order.
func (r *Recorder) Types() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, len(r.events))
	for i, evt := range r.events {
		out[i] = evt.EventType()
	}
	return out
}

func (r *Recorder) Events() []events.Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]events.Event(nil), r.events...)
}

func (r *Recorder) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = nil
}

// Fixture is a node seeded with two projects and one currency of each kind.
// Every currency has a claim limit far above anything the tests move.
type Fixture struct {
	T      testing.TB
	Ctx    context.Context
	Node   *core.Node
	Events *Recorder
	now    int64
}

// New builds a fixture using DefaultFees.
func New(t testing.TB) *Fixture {
	return NewWithFees(t, DefaultFees())
}

func NewWithFees(t testing.TB, params fees.Params) *Fixture {
	t.Helper()
	node, err := core.NewNode(storage.NewMemDB(), core.NodeConfig{
		Fees:            params,
		ClaimCooldown:   ClaimCooldown,
		RemovalCooldown: RemovalCooldown,
		RemovalWindow:   RemovalWindow,
	})
	require.NoError(t, err)

	f := &Fixture{T: t, Ctx: context.Background(), Node: node, Events: &Recorder{}, now: StartTime}
	node.SetNowFunc(func() int64 { return f.now })
	node.SetEmitter(f.Events)

	node.Roles().Grant(access.RoleAdmin, Admin)
	node.Roles().Grant(access.RoleAttributor, Attributor)
	node.Roles().Grant(access.RolePauser, Pauser)

	bank := node.Bank()
	require.NoError(t, bank.RegisterToken(f.Ctx, Fungible, currency.KindFungible))
	require.NoError(t, bank.RegisterToken(f.Ctx, FeeToken, currency.KindFungible))
	require.NoError(t, bank.RegisterToken(f.Ctx, NFT721, currency.KindNFT721))
	require.NoError(t, bank.RegisterToken(f.Ctx, NFT1155, currency.KindNFT1155))

	limit := new(big.Int).Exp(big.NewInt(10), big.NewInt(30), nil)
	for id, kind := range map[common.Address]currency.Kind{
		currency.NativeCurrency: currency.KindNative,
		Fungible:                currency.KindFungible,
		FeeToken:                currency.KindFungible,
		NFT721:                  currency.KindNFT721,
		NFT1155:                 currency.KindNFT1155,
	} {
		require.NoError(t, node.Currencies().AddCurrency(f.Ctx, Admin, id, kind, limit))
	}

	require.NoError(t, node.Projects().Register(ProjectA, ProjectAdmin, ClientCollector))
	require.NoError(t, node.Projects().Register(ProjectB, ProjectAdmin, common.Address{}))
	f.Events.Reset()
	return f
}

// Now returns the fixture clock in unix seconds.
func (f *Fixture) Now() int64 { return f.now }

// Advance moves the fixture clock forward.
func (f *Fixture) Advance(d time.Duration) {
	f.now += int64(d / time.Second)
}

// Mint credits account with coins of id.
func (f *Fixture) Mint(account, id common.Address, amount int64) {
	f.T.Helper()
	kind := currency.KindFungible
	if id == currency.NativeCurrency {
		kind = currency.KindNative
	}
	asset, err := currency.NewCoins(kind, big.NewInt(amount))
	require.NoError(f.T, err)
	require.NoError(f.T, f.Node.Bank().Mint(f.Ctx, account, id, asset))
}

// MintNFT credits account with tokens of id. amounts is nil for ERC721.
func (f *Fixture) MintNFT(account, id common.Address, tokenIDs []int64, amounts []int64) {
	f.T.Helper()
	kind := currency.KindNFT721
	if amounts != nil {
		kind = currency.KindNFT1155
	}
	asset, err := currency.Resolve(kind, currency.Quantity{TokenIDs: Ints(tokenIDs...), Amounts: Ints(amounts...)})
	require.NoError(f.T, err)
	require.NoError(f.T, f.Node.Bank().Mint(f.Ctx, account, id, asset))
}

// Balance returns the bank units held by account.
func (f *Fixture) Balance(account, id common.Address) *big.Int {
	f.T.Helper()
	h, err := f.Node.Bank().Balance(f.Ctx, account, id)
	require.NoError(f.T, err)
	return h.Units()
}

// Claimable returns the claimable units recipient holds in project.
func (f *Fixture) Claimable(project, recipient, id common.Address) *big.Int {
	f.T.Helper()
	h, err := f.Node.Vault().Claimable(f.Ctx, project, recipient, id)
	require.NoError(f.T, err)
	return h.Units()
}

// Budget returns the budget units of project.
func (f *Fixture) Budget(project, id common.Address) *big.Int {
	f.T.Helper()
	h, err := f.Node.Vault().Budget(f.Ctx, project, id)
	require.NoError(f.T, err)
	return h.Units()
}

// Ints converts int64 values into big integers. No arguments yields nil.
func Ints(values ...int64) []*big.Int {
	if len(values) == 0 {
		return nil
	}
	out := make([]*big.Int, len(values))
	for i, v := range values {
		out[i] = big.NewInt(v)
	}
	return out
}
