package attribution_test

import (
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/require"

	"partnerledger/core/events"
	"partnerledger/core/nodetest"
	"partnerledger/native/access"
	"partnerledger/native/attribution"
	nativecommon "partnerledger/native/common"
	"partnerledger/native/currency"
	"partnerledger/native/system/pauses"
	"partnerledger/native/vault"
)

var depositor = common.HexToAddress("0x0000000000000000000000000000000000000d01")

func fund(t *testing.T, f *nodetest.Fixture, project common.Address, amount int64) {
	t.Helper()
	f.Mint(depositor, nodetest.Fungible, amount)
	require.NoError(t, f.Node.Vault().DepositFungible(f.Ctx, depositor, project, nodetest.Fungible, big.NewInt(amount)))
}

func coinEntry(project common.Address, conversion string, toPartner, toEndUser int64) attribution.Entry {
	return attribution.Entry{
		Proof:     attribution.ProofHash(project, conversion),
		Currency:  nodetest.Fungible,
		Partner:   nodetest.Partner,
		EndUser:   nodetest.EndUser,
		ToPartner: currency.Quantity{Amount: big.NewInt(toPartner)},
		ToEndUser: currency.Quantity{Amount: big.NewInt(toEndUser)},
	}
}

func TestAttributeFungibleSplitsFees(t *testing.T) {
	f := nodetest.New(t)
	fund(t, f, nodetest.ProjectA, 1_000)
	f.Events.Reset()

	receipt, err := f.Node.Attribution().Attribute(f.Ctx, nodetest.Attributor, []attribution.Request{{
		Project: nodetest.ProjectA,
		Entries: []attribution.Entry{coinEntry(nodetest.ProjectA, "conv-1", 500, 500)},
	}})
	require.NoError(t, err)
	require.NotEmpty(t, receipt.BatchID)
	require.Equal(t, 1, receipt.Projects)
	require.Equal(t, 1, receipt.Entries)

	claimable := func(who common.Address) int64 {
		return f.Claimable(nodetest.ProjectA, who, nodetest.Fungible).Int64()
	}
	require.Equal(t, int64(482), claimable(nodetest.Partner))
	require.Equal(t, int64(483), claimable(nodetest.EndUser))
	require.Equal(t, int64(10), claimable(nodetest.ProtocolFees))
	require.Equal(t, int64(20), claimable(nodetest.ClientCollector))
	require.Equal(t, int64(5), claimable(nodetest.Attributor))
	require.Equal(t, int64(0), f.Budget(nodetest.ProjectA, nodetest.Fungible).Int64())

	totals, err := f.Node.Vault().Totals(f.Ctx, nodetest.ProjectA, nodetest.Fungible)
	require.NoError(t, err)
	require.Equal(t, int64(1_000), totals.Attributed.Int64())

	evts := f.Events.Events()
	require.Len(t, evts, 1)
	attributed, ok := evts[0].(events.Attributed)
	require.True(t, ok)
	require.Equal(t, receipt.BatchID, attributed.BatchID)
	require.Equal(t, nodetest.ClientCollector, attributed.ClientCollector)
	require.Equal(t, int64(20), attributed.ClientFee.Int64())
}

func TestAttributeWithoutClientCollectorPaysProtocol(t *testing.T) {
	f := nodetest.New(t)
	fund(t, f, nodetest.ProjectB, 1_000)

	_, err := f.Node.Attribution().Attribute(f.Ctx, nodetest.Attributor, []attribution.Request{{
		Project: nodetest.ProjectB,
		Entries: []attribution.Entry{coinEntry(nodetest.ProjectB, "conv-1", 500, 500)},
	}})
	require.NoError(t, err)
	require.Equal(t, int64(30), f.Claimable(nodetest.ProjectB, nodetest.ProtocolFees, nodetest.Fungible).Int64())
}

func TestAttributeRequiresProtocolCollector(t *testing.T) {
	params := nodetest.DefaultFees()
	params.ProtocolFeeCollector = common.Address{}
	f := nodetest.NewWithFees(t, params)
	fund(t, f, nodetest.ProjectA, 1_000)

	_, err := f.Node.Attribution().Attribute(f.Ctx, nodetest.Attributor, []attribution.Request{{
		Project: nodetest.ProjectA,
		Entries: []attribution.Entry{coinEntry(nodetest.ProjectA, "conv-1", 500, 500)},
	}})
	require.ErrorIs(t, err, attribution.ErrNoFeeCollector)
	require.Equal(t, int64(1_000), f.Budget(nodetest.ProjectA, nodetest.Fungible).Int64())
}

func TestAttributeProofIsSingleUse(t *testing.T) {
	f := nodetest.New(t)
	fund(t, f, nodetest.ProjectA, 1_000)
	engine := f.Node.Attribution()
	entry := coinEntry(nodetest.ProjectA, "conv-1", 100, 100)

	_, err := engine.Attribute(f.Ctx, nodetest.Attributor, []attribution.Request{{Project: nodetest.ProjectA, Entries: []attribution.Entry{entry}}})
	require.NoError(t, err)
	used, err := f.Node.Vault().ProofUsed(f.Ctx, nodetest.ProjectA, entry.Proof)
	require.NoError(t, err)
	require.True(t, used)

	_, err = engine.Attribute(f.Ctx, nodetest.Attributor, []attribution.Request{{Project: nodetest.ProjectA, Entries: []attribution.Entry{entry}}})
	require.ErrorIs(t, err, attribution.ErrProofAlreadyUsed)
	require.Equal(t, int64(800), f.Budget(nodetest.ProjectA, nodetest.Fungible).Int64())
}

func TestAttributeDuplicateProofInBatchAbortsBatch(t *testing.T) {
	f := nodetest.New(t)
	fund(t, f, nodetest.ProjectA, 1_000)
	entry := coinEntry(nodetest.ProjectA, "conv-1", 100, 100)

	_, err := f.Node.Attribution().Attribute(f.Ctx, nodetest.Attributor, []attribution.Request{{
		Project: nodetest.ProjectA,
		Entries: []attribution.Entry{entry, entry},
	}})
	require.ErrorIs(t, err, attribution.ErrProofAlreadyUsed)
	require.Equal(t, int64(1_000), f.Budget(nodetest.ProjectA, nodetest.Fungible).Int64())

	used, err := f.Node.Vault().ProofUsed(f.Ctx, nodetest.ProjectA, entry.Proof)
	require.NoError(t, err)
	require.False(t, used)
}

func TestAttributeBatchIsAtomicAcrossProjects(t *testing.T) {
	f := nodetest.New(t)
	fund(t, f, nodetest.ProjectA, 1_000)
	fund(t, f, nodetest.ProjectB, 100)
	f.Events.Reset()

	_, err := f.Node.Attribution().Attribute(f.Ctx, nodetest.Attributor, []attribution.Request{
		{Project: nodetest.ProjectA, Entries: []attribution.Entry{coinEntry(nodetest.ProjectA, "a-1", 200, 200)}},
		{Project: nodetest.ProjectB, Entries: []attribution.Entry{coinEntry(nodetest.ProjectB, "b-1", 100, 1)}},
	})
	require.ErrorIs(t, err, attribution.ErrInsufficientBudget)
	require.ErrorIs(t, err, vault.ErrInsufficientBudget)

	require.Equal(t, int64(1_000), f.Budget(nodetest.ProjectA, nodetest.Fungible).Int64())
	require.Equal(t, int64(100), f.Budget(nodetest.ProjectB, nodetest.Fungible).Int64())
	require.Equal(t, int64(0), f.Claimable(nodetest.ProjectA, nodetest.Partner, nodetest.Fungible).Int64())
	require.Empty(t, f.Events.Types())
}

func TestAttributeNFTChargesFixedFee(t *testing.T) {
	f := nodetest.New(t)
	f.MintNFT(depositor, nodetest.NFT721, []int64{1, 2, 3, 4}, nil)
	f.Mint(depositor, nodetest.FeeToken, 100)
	engine := f.Node.Vault()
	require.NoError(t, engine.DepositNFT(f.Ctx, depositor, nodetest.ProjectA, nodetest.NFT721, nodetest.Ints(1, 2, 3, 4), nil))
	require.NoError(t, engine.DepositFeeBudget(f.Ctx, depositor, nodetest.ProjectA, big.NewInt(100)))

	nftEntry := func(conversion string, partnerID, endUserID int64) attribution.Entry {
		return attribution.Entry{
			Proof:     attribution.ProofHash(nodetest.ProjectA, conversion),
			Currency:  nodetest.NFT721,
			Partner:   nodetest.Partner,
			EndUser:   nodetest.EndUser,
			ToPartner: currency.Quantity{TokenIDs: nodetest.Ints(partnerID)},
			ToEndUser: currency.Quantity{TokenIDs: nodetest.Ints(endUserID)},
		}
	}
	_, err := f.Node.Attribution().Attribute(f.Ctx, nodetest.Attributor, []attribution.Request{{
		Project: nodetest.ProjectA,
		Entries: []attribution.Entry{nftEntry("n-1", 1, 2), nftEntry("n-2", 3, 4)},
	}})
	require.NoError(t, err)

	require.Equal(t, int64(0), f.Budget(nodetest.ProjectA, nodetest.NFT721).Int64())
	require.Equal(t, int64(2), f.Claimable(nodetest.ProjectA, nodetest.Partner, nodetest.NFT721).Int64())
	require.Equal(t, int64(2), f.Claimable(nodetest.ProjectA, nodetest.EndUser, nodetest.NFT721).Int64())

	require.Equal(t, int64(4), f.Claimable(nodetest.ProjectA, nodetest.ProtocolFees, nodetest.FeeToken).Int64())
	require.Equal(t, int64(10), f.Claimable(nodetest.ProjectA, nodetest.ClientCollector, nodetest.FeeToken).Int64())
	require.Equal(t, int64(6), f.Claimable(nodetest.ProjectA, nodetest.Attributor, nodetest.FeeToken).Int64())

	fee, err := engine.FeeBudget(f.Ctx, nodetest.ProjectA, nodetest.FeeToken)
	require.NoError(t, err)
	require.Equal(t, int64(80), fee.Units().Int64())
	totals, err := engine.Totals(f.Ctx, nodetest.ProjectA, nodetest.FeeToken)
	require.NoError(t, err)
	require.Equal(t, int64(20), totals.FeeCharged.Int64())
}

func TestAttributeNFTWithoutFeeBudgetFails(t *testing.T) {
	f := nodetest.New(t)
	f.MintNFT(depositor, nodetest.NFT721, []int64{1, 2}, nil)
	require.NoError(t, f.Node.Vault().DepositNFT(f.Ctx, depositor, nodetest.ProjectA, nodetest.NFT721, nodetest.Ints(1, 2), nil))

	_, err := f.Node.Attribution().Attribute(f.Ctx, nodetest.Attributor, []attribution.Request{{
		Project: nodetest.ProjectA,
		Entries: []attribution.Entry{{
			Proof:     attribution.ProofHash(nodetest.ProjectA, "n-1"),
			Currency:  nodetest.NFT721,
			Partner:   nodetest.Partner,
			EndUser:   nodetest.EndUser,
			ToPartner: currency.Quantity{TokenIDs: nodetest.Ints(1)},
			ToEndUser: currency.Quantity{TokenIDs: nodetest.Ints(2)},
		}},
	}})
	require.ErrorIs(t, err, attribution.ErrInsufficientBudget)
	require.Equal(t, int64(2), f.Budget(nodetest.ProjectA, nodetest.NFT721).Int64())
}

func TestAttributeRejections(t *testing.T) {
	f := nodetest.New(t)
	fund(t, f, nodetest.ProjectA, 1_000)
	engine := f.Node.Attribution()
	unknown := common.HexToAddress("0x0000000000000000000000000000000000000bad")

	_, err := engine.Attribute(f.Ctx, nodetest.Partner, []attribution.Request{{
		Project: nodetest.ProjectA,
		Entries: []attribution.Entry{coinEntry(nodetest.ProjectA, "c", 1, 1)},
	}})
	require.ErrorIs(t, err, access.ErrUnauthorized)

	_, err = engine.Attribute(f.Ctx, nodetest.Attributor, nil)
	require.ErrorIs(t, err, attribution.ErrEmptyBatch)

	_, err = engine.Attribute(f.Ctx, nodetest.Attributor, []attribution.Request{{Project: nodetest.ProjectA}})
	require.ErrorIs(t, err, attribution.ErrEmptyBatch)

	_, err = engine.Attribute(f.Ctx, nodetest.Attributor, []attribution.Request{{
		Project: unknown,
		Entries: []attribution.Entry{coinEntry(unknown, "c", 1, 1)},
	}})
	require.ErrorIs(t, err, attribution.ErrProjectNotRegistered)

	zeroProof := coinEntry(nodetest.ProjectA, "c", 1, 1)
	zeroProof.Proof = [32]byte{}
	_, err = engine.Attribute(f.Ctx, nodetest.Attributor, []attribution.Request{{Project: nodetest.ProjectA, Entries: []attribution.Entry{zeroProof}}})
	require.ErrorIs(t, err, attribution.ErrInvalidProof)

	require.NoError(t, f.Node.Pauses().Pause(f.Ctx, nodetest.Pauser, pauses.ModuleAttribution))
	_, err = engine.Attribute(f.Ctx, nodetest.Attributor, []attribution.Request{{
		Project: nodetest.ProjectA,
		Entries: []attribution.Entry{coinEntry(nodetest.ProjectA, "c", 1, 1)},
	}})
	require.ErrorIs(t, err, nativecommon.ErrModulePaused)
	require.Equal(t, int64(1_000), f.Budget(nodetest.ProjectA, nodetest.Fungible).Int64())
}
