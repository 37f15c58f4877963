package attribution

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/big"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"

	"partnerledger/core/events"
	"partnerledger/core/state"
	"partnerledger/native/access"
	nativecommon "partnerledger/native/common"
	"partnerledger/native/currency"
	"partnerledger/native/fees"
	"partnerledger/native/system/pauses"
	"partnerledger/native/vault"
	"partnerledger/observability"
)

// Engine attributes conversions in batches. A batch either applies in full
// across every project it touches or not at all.
type Engine struct {
	state     *state.Manager
	authority access.Authority
	factory   vault.Factory
	logger    *slog.Logger
}

func NewEngine(mgr *state.Manager, authority access.Authority, factory vault.Factory) *Engine {
	return &Engine{state: mgr, authority: authority, factory: factory, logger: slog.Default()}
}

func (e *Engine) SetLogger(logger *slog.Logger) {
	if logger == nil {
		logger = slog.Default()
	}
	e.logger = logger
}

// flow is value recorded in metrics once the batch commits.
type flow struct {
	currency common.Address
	units    *big.Int
	fees     fees.Shares
	feeCur   common.Address
}

// Attribute debits each request's project budget and credits the partner,
// end user and fee receivers. The caller must hold the attributor role and
// is credited the attributor fee.
func (e *Engine) Attribute(ctx context.Context, caller common.Address, requests []Request) (receipt Receipt, err error) {
	started := time.Now()
	receipt.BatchID = uuid.NewString()
	logger := e.logger.With(slog.String("batch", receipt.BatchID), slog.String("caller", strings.ToLower(caller.Hex())))
	var flows []flow
	defer func() {
		observability.Ledger().ObserveOperation(pauses.ModuleAttribution, "attribute", time.Since(started), err)
		if err != nil {
			logger.Warn("attribution batch rejected", slog.Any("error", err))
			return
		}
		for _, f := range flows {
			recordFlow(f)
		}
		logger.Info("attribution batch committed", slog.Int("entries", receipt.Entries))
	}()

	if err := access.Require(e.authority, caller, access.RoleAttributor); err != nil {
		return Receipt{BatchID: receipt.BatchID}, err
	}
	err = e.state.Atomic(ctx, func(ctx context.Context, tx *state.Tx) error {
		flows = flows[:0]
		if err := nativecommon.Guard(pauses.NewStore(tx), pauses.ModuleAttribution); err != nil {
			return err
		}
		if countEntries(requests) == 0 {
			return ErrEmptyBatch
		}
		params := e.factory.FeeParameters()
		if err := params.Validate(); err != nil {
			return err
		}
		seen := make(map[common.Address]struct{})
		for i, req := range requests {
			project, ok := e.factory.Project(req.Project)
			if !ok {
				return fmt.Errorf("%w: request %d, %s", ErrProjectNotRegistered, i, req.Project.Hex())
			}
			seen[req.Project] = struct{}{}
			b := batch{
				id:         receipt.BatchID,
				tx:         tx,
				vault:      vault.Open(tx, req.Project),
				params:     params,
				attributor: caller,
				client:     project.ClientCollector,
			}
			for j, entry := range req.Entries {
				f, err := b.apply(entry)
				if err != nil {
					return fmt.Errorf("request %d entry %d: %w", i, j, err)
				}
				flows = append(flows, f)
			}
		}
		receipt.Projects = len(seen)
		receipt.Entries = len(flows)
		return nil
	})
	if err != nil {
		return Receipt{BatchID: receipt.BatchID}, err
	}
	return receipt, nil
}

func countEntries(requests []Request) int {
	n := 0
	for _, req := range requests {
		n += len(req.Entries)
	}
	return n
}

func recordFlow(f flow) {
	metrics := observability.Ledger()
	cur := strings.ToLower(f.currency.Hex())
	metrics.RecordAttributed(cur, f.units)
	feeCur := strings.ToLower(f.feeCur.Hex())
	metrics.RecordFee(feeCur, "protocol", f.fees.Protocol)
	metrics.RecordFee(feeCur, "client", f.fees.Client)
	metrics.RecordFee(feeCur, "attributor", f.fees.Attributor)
}

// batch applies entries against one project inside the batch transaction.
type batch struct {
	id         string
	tx         *state.Tx
	vault      *vault.Vault
	params     fees.Params
	attributor common.Address
	client     common.Address
}

func (b *batch) apply(entry Entry) (flow, error) {
	if entry.Proof == ([32]byte{}) {
		return flow{}, ErrInvalidProof
	}
	fresh, err := b.vault.ConsumeProof(entry.Proof)
	if err != nil {
		return flow{}, err
	}
	if !fresh {
		return flow{}, fmt.Errorf("%w: %x", ErrProofAlreadyUsed, entry.Proof)
	}
	c, ok, err := currency.NewStore(b.tx).Get(entry.Currency)
	if err != nil {
		return flow{}, err
	}
	if !ok {
		return flow{}, fmt.Errorf("%w: %s", vault.ErrTokenCurrencyNotAccepted, entry.Currency.Hex())
	}
	toPartner, err := currency.Resolve(c.Kind, entry.ToPartner)
	if err != nil {
		return flow{}, fmt.Errorf("partner share: %w", err)
	}
	toEndUser, err := currency.Resolve(c.Kind, entry.ToEndUser)
	if err != nil {
		return flow{}, fmt.Errorf("end user share: %w", err)
	}
	if c.Kind.IsNFT() {
		return b.applyNFT(entry, c, toPartner, toEndUser)
	}
	return b.applyCoins(entry, c, toPartner, toEndUser)
}

func (b *batch) applyCoins(entry Entry, c *currency.Currency, toPartner, toEndUser currency.Asset) (flow, error) {
	shares, err := fees.Split(toPartner.Units(), toEndUser.Units(), b.params)
	if err != nil {
		return flow{}, err
	}
	gross, err := currency.NewCoins(c.Kind, shares.Total())
	if err != nil {
		return flow{}, err
	}
	if err := b.debit(func() error { return b.vault.DebitBudget(c.ID, gross) }); err != nil {
		return flow{}, err
	}
	partner, err := currency.NewCoins(c.Kind, shares.Partner)
	if err != nil {
		return flow{}, err
	}
	endUser, err := currency.NewCoins(c.Kind, shares.EndUser)
	if err != nil {
		return flow{}, err
	}
	if err := b.vault.CreditClaimable(entry.Partner, c.ID, partner); err != nil {
		return flow{}, err
	}
	if err := b.vault.CreditClaimable(entry.EndUser, c.ID, endUser); err != nil {
		return flow{}, err
	}
	if err := b.creditFees(c.ID, c.Kind, shares); err != nil {
		return flow{}, err
	}
	b.emit(entry, c.ID, partner, endUser, c.ID, shares)
	return flow{currency: c.ID, units: gross.Units(), fees: shares, feeCur: c.ID}, nil
}

func (b *batch) applyNFT(entry Entry, c *currency.Currency, toPartner, toEndUser currency.Asset) (flow, error) {
	if toPartner.IsZero() && toEndUser.IsZero() {
		return flow{}, fees.ErrZeroAmount
	}
	if err := b.debit(func() error { return b.vault.DebitBudget(c.ID, toPartner) }); err != nil {
		return flow{}, err
	}
	if err := b.debit(func() error { return b.vault.DebitBudget(c.ID, toEndUser) }); err != nil {
		return flow{}, err
	}
	shares, err := fees.SplitFixed(b.params)
	if err != nil {
		return flow{}, err
	}
	feeCur := b.params.NFTFeeCurrency
	if fee := shares.Fees(); fee.Sign() > 0 {
		fc, ok, err := currency.NewStore(b.tx).Get(feeCur)
		if err != nil {
			return flow{}, err
		}
		if !ok || fc.Kind.IsNFT() {
			return flow{}, fmt.Errorf("%w: fee currency %s", vault.ErrTokenCurrencyNotAccepted, feeCur.Hex())
		}
		charge, err := currency.NewCoins(fc.Kind, fee)
		if err != nil {
			return flow{}, err
		}
		if err := b.debit(func() error { return b.vault.DebitFeeBudget(feeCur, charge) }); err != nil {
			return flow{}, err
		}
		if err := b.creditFees(feeCur, fc.Kind, shares); err != nil {
			return flow{}, err
		}
	}
	if err := b.vault.CreditClaimable(entry.Partner, c.ID, toPartner); err != nil {
		return flow{}, err
	}
	if err := b.vault.CreditClaimable(entry.EndUser, c.ID, toEndUser); err != nil {
		return flow{}, err
	}
	b.emit(entry, c.ID, toPartner, toEndUser, feeCur, shares)
	units := new(big.Int).Add(toPartner.Units(), toEndUser.Units())
	return flow{currency: c.ID, units: units, fees: shares, feeCur: feeCur}, nil
}

func (b *batch) debit(fn func() error) error {
	err := fn()
	if errors.Is(err, vault.ErrInsufficientBudget) {
		return fmt.Errorf("%w: %w", ErrInsufficientBudget, err)
	}
	return err
}

// creditFees credits the three fee receivers. A project without a client
// collector routes its client share to the protocol collector.
func (b *batch) creditFees(id common.Address, kind currency.Kind, shares fees.Shares) error {
	if shares.Fees().Sign() == 0 {
		return nil
	}
	protocol := b.params.ProtocolFeeCollector
	client := b.client
	if client == (common.Address{}) {
		client = protocol
	}
	if protocol == (common.Address{}) {
		if shares.Protocol.Sign() > 0 || (client == protocol && shares.Client.Sign() > 0) {
			return ErrNoFeeCollector
		}
	}
	credits := []struct {
		to     common.Address
		amount *big.Int
	}{
		{protocol, shares.Protocol},
		{client, shares.Client},
		{b.attributor, shares.Attributor},
	}
	for _, credit := range credits {
		if credit.amount.Sign() == 0 {
			continue
		}
		coins, err := currency.NewCoins(kind, credit.amount)
		if err != nil {
			return err
		}
		if err := b.vault.CreditClaimable(credit.to, id, coins); err != nil {
			return err
		}
	}
	return nil
}

func (b *batch) emit(entry Entry, id common.Address, toPartner, toEndUser currency.Asset, feeCur common.Address, shares fees.Shares) {
	client := b.client
	if client == (common.Address{}) {
		client = b.params.ProtocolFeeCollector
	}
	b.tx.AppendEvent(events.Attributed{
		BatchID:           b.id,
		Project:           b.vault.Project(),
		Currency:          id,
		Proof:             entry.Proof,
		Partner:           entry.Partner,
		EndUser:           entry.EndUser,
		Attributor:        b.attributor,
		ToPartner:         toPartner.Value(),
		ToEndUser:         toEndUser.Value(),
		FeeCurrency:       feeCur,
		ProtocolCollector: b.params.ProtocolFeeCollector,
		ClientCollector:   client,
		ProtocolFee:       shares.Protocol,
		ClientFee:         shares.Client,
		AttributorFee:     shares.Attributor,
	})
}
