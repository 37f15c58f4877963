package claims

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
	nativecommon "partnerledger/native/common"
	"partnerledger/native/currency"
	"partnerledger/native/system/pauses"
	"partnerledger/native/vault"
	"partnerledger/observability"
)

var (
	ErrEmptyBatch = errors.New("claims: empty batch")
	ErrZeroAmount = errors.New("claims: nothing to claim")

	ErrOverTheLimit = currency.ErrOverTheLimit
)

// Check asks for the caller's claimable balance of one currency in one
// project. Leaving TokenIDs empty claims the whole balance; otherwise only
// the listed ids (with Amounts for ERC1155) are released.
type Check struct {
	Project  common.Address
	Currency common.Address
	TokenIDs []*big.Int
	Amounts  []*big.Int
}

func (c Check) partial() bool { return len(c.TokenIDs) > 0 }

// Payout is one non-empty claim paid out by a batch.
type Payout struct {
	Project  common.Address
	Currency common.Address
	Asset    events.AssetValue
}

type Receipt struct {
	BatchID string
	Payouts []Payout
}

// Engine pays out claimable balances subject to the per-currency window
// limit.
type Engine struct {
	state     *state.Manager
	limiter   *currency.Limiter
	transfers vault.Transferrer
	logger    *slog.Logger
}

func NewEngine(mgr *state.Manager, limiter *currency.Limiter, transfers vault.Transferrer) *Engine {
	return &Engine{state: mgr, limiter: limiter, transfers: transfers, logger: slog.Default()}
}

func (e *Engine) SetLogger(logger *slog.Logger) {
	if logger == nil {
		logger = slog.Default()
	}
	e.logger = logger
}

// Claim pays the caller every balance named by checks. Balances are cleared
// and counted against the window before any value moves; if any check fails
// nothing is paid.
func (e *Engine) Claim(ctx context.Context, caller common.Address, checks []Check) (receipt Receipt, err error) {
	started := time.Now()
	receipt.BatchID = uuid.NewString()
	logger := e.logger.With(slog.String("batch", receipt.BatchID), slog.String("caller", strings.ToLower(caller.Hex())))
	var limited common.Address
	defer func() {
		metrics := observability.Ledger()
		metrics.ObserveOperation(pauses.ModuleClaims, "claim", time.Since(started), err)
		if err != nil {
			if errors.Is(err, ErrOverTheLimit) {
				metrics.RecordRateLimited(strings.ToLower(limited.Hex()))
			}
			logger.Warn("claim batch rejected", slog.Any("error", err))
			return
		}
		for _, p := range receipt.Payouts {
			units := p.Asset.Amount
			if units == nil {
				units = sumUnits(p.Asset)
			}
			metrics.RecordClaimed(strings.ToLower(p.Currency.Hex()), units)
		}
		logger.Info("claim batch committed", slog.Int("payouts", len(receipt.Payouts)))
	}()

	var payouts []Payout
	err = e.state.Atomic(ctx, func(ctx context.Context, tx *state.Tx) error {
		payouts = payouts[:0]
		if err := nativecommon.Guard(pauses.NewStore(tx), pauses.ModuleClaims); err != nil {
			return err
		}
		if len(checks) == 0 {
			return ErrEmptyBatch
		}
		for i, check := range checks {
			asset, err := e.take(tx, caller, check)
			if err != nil {
				return fmt.Errorf("check %d: %w", i, err)
			}
			if asset.IsZero() {
				continue
			}
			if err := e.limiter.TryReserve(tx, caller, check.Currency, asset.Units()); err != nil {
				limited = check.Currency
				return fmt.Errorf("check %d: %w", i, err)
			}
			account := vault.AccountAddress(check.Project)
			if err := e.transfers.Transfer(ctx, check.Currency, account, caller, asset); err != nil {
				return fmt.Errorf("check %d: claim transfer: %w", i, err)
			}
			value := asset.Value()
			tx.AppendEvent(events.Claimed{
				BatchID:   receipt.BatchID,
				Project:   check.Project,
				Currency:  check.Currency,
				Recipient: caller,
				Asset:     value,
			})
			payouts = append(payouts, Payout{Project: check.Project, Currency: check.Currency, Asset: value})
		}
		if len(payouts) == 0 {
			return ErrZeroAmount
		}
		return nil
	})
	if err != nil {
		return Receipt{BatchID: receipt.BatchID}, err
	}
	receipt.Payouts = payouts
	return receipt, nil
}

// take removes the requested balance from the vault and returns it. Unknown
// currencies yield a zero asset so the check is skipped.
func (e *Engine) take(tx *state.Tx, caller common.Address, check Check) (currency.Asset, error) {
	c, ok, err := currency.NewStore(tx).Get(check.Currency)
	if err != nil {
		return nil, err
	}
	if !ok {
		// A currency never added cannot carry a balance.
		if !check.partial() {
			return currency.Coins{}, nil
		}
		return nil, fmt.Errorf("%w: %s", vault.ErrTokenCurrencyNotAccepted, check.Currency.Hex())
	}
	v := vault.Open(tx, check.Project)
	if !check.partial() {
		return v.ClearClaimable(caller, check.Currency)
	}
	if !c.Kind.IsNFT() {
		return nil, fmt.Errorf("%w: token ids given for %s currency", currency.ErrInvalidCurrency, c.Kind)
	}
	asset, err := currency.Resolve(c.Kind, currency.Quantity{TokenIDs: check.TokenIDs, Amounts: check.Amounts})
	if err != nil {
		return nil, err
	}
	if err := v.ReleaseClaimable(caller, check.Currency, asset); err != nil {
		return nil, err
	}
	return asset, nil
}

func sumUnits(v events.AssetValue) *big.Int {
	if len(v.Quantities) == 0 {
		return big.NewInt(int64(len(v.TokenIDs)))
	}
	total := new(big.Int)
	for _, q := range v.Quantities {
		total.Add(total, q)
	}
	return total
}
