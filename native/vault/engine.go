package vault

import (
	"context"
	"fmt"
	"log/slog"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"partnerledger/core/events"
	"partnerledger/core/state"
	"partnerledger/native/access"
	nativecommon "partnerledger/native/common"
	"partnerledger/native/currency"
	"partnerledger/native/fees"
	"partnerledger/native/projects"
	"partnerledger/native/system/pauses"
	"partnerledger/observability"
)

// Factory is the project registry the vault consults.
type Factory interface {
	Project(id common.Address) (projects.Project, bool)
	FeeParameters() fees.Params
	BudgetRemovalWindow() (cooldown, window time.Duration)
}

// Transferrer moves value between bank accounts. Implementations join the
// transaction carried by ctx.
type Transferrer interface {
	Transfer(ctx context.Context, id, from, to common.Address, asset currency.Asset) error
}

// Engine runs the public vault operations: deposits, fee budget top-ups and
// admin budget removal.
type Engine struct {
	state     *state.Manager
	factory   Factory
	transfers Transferrer
	logger    *slog.Logger
	nowFn     func() int64
}

func NewEngine(mgr *state.Manager, factory Factory, transfers Transferrer) *Engine {
	return &Engine{
		state:     mgr,
		factory:   factory,
		transfers: transfers,
		logger:    slog.Default(),
		nowFn:     func() int64 { return time.Now().Unix() },
	}
}

// SetNowFunc overrides the time source used by the engine. Primarily intended
// for tests to provide deterministic timestamps.
func (e *Engine) SetNowFunc(now func() int64) {
	if now == nil {
		e.nowFn = func() int64 { return time.Now().Unix() }
		return
	}
	e.nowFn = now
}

func (e *Engine) SetLogger(logger *slog.Logger) {
	if logger == nil {
		logger = slog.Default()
	}
	e.logger = logger
}

func (e *Engine) observe(operation string, started time.Time, err error) {
	observability.Ledger().ObserveOperation(pauses.ModuleVault, operation, time.Since(started), err)
	if err != nil {
		e.logger.Warn("vault operation failed", slog.String("operation", operation), slog.Any("error", err))
	}
}

// open checks the breaker and the project, returning the project's vault.
func (e *Engine) open(tx *state.Tx, project common.Address) (*Vault, projects.Project, error) {
	if err := nativecommon.Guard(pauses.NewStore(tx), pauses.ModuleVault); err != nil {
		return nil, projects.Project{}, err
	}
	p, ok := e.factory.Project(project)
	if !ok {
		return nil, projects.Project{}, fmt.Errorf("%w: %s", ErrProjectNotRegistered, project.Hex())
	}
	return Open(tx, project), p, nil
}

func activeCurrency(kv state.KV, id common.Address) (*currency.Currency, error) {
	c, ok, err := currency.NewStore(kv).Get(id)
	if err != nil {
		return nil, err
	}
	if !ok || !c.Active {
		return nil, fmt.Errorf("%w: %s", ErrTokenCurrencyNotAccepted, id.Hex())
	}
	return c, nil
}

type depositRequest struct {
	operation string
	caller    common.Address
	project   common.Address
	currency  common.Address
	quantity  currency.Quantity
	checkKind func(currency.Kind) error
	feeBudget bool
}

func (e *Engine) deposit(ctx context.Context, req depositRequest) (err error) {
	started := time.Now()
	defer func() { e.observe(req.operation, started, err) }()
	return e.state.Atomic(ctx, func(ctx context.Context, tx *state.Tx) error {
		v, _, err := e.open(tx, req.project)
		if err != nil {
			return err
		}
		c, err := activeCurrency(tx, req.currency)
		if err != nil {
			return err
		}
		if err := req.checkKind(c.Kind); err != nil {
			return err
		}
		asset, err := currency.Resolve(c.Kind, req.quantity)
		if err != nil {
			return err
		}
		if asset.IsZero() {
			return ErrZeroAmount
		}
		if req.feeBudget {
			err = v.CreditFeeBudget(req.currency, asset)
		} else {
			err = v.CreditBudget(req.currency, asset)
		}
		if err != nil {
			return err
		}
		if err := e.transfers.Transfer(ctx, req.currency, req.caller, v.Account(), asset); err != nil {
			return fmt.Errorf("vault: deposit transfer: %w", err)
		}
		tx.AppendEvent(events.VaultDeposited{
			Project:   req.project,
			Currency:  req.currency,
			Depositor: req.caller,
			Asset:     asset.Value(),
			FeeBudget: req.feeBudget,
		})
		return nil
	})
}

func requireKind(want currency.Kind) func(currency.Kind) error {
	return func(got currency.Kind) error {
		if got != want {
			return fmt.Errorf("%w: currency is %s, not %s", ErrTokenCurrencyNotAccepted, got, want)
		}
		return nil
	}
}

func requireCoin(got currency.Kind) error {
	if got.IsNFT() {
		return fmt.Errorf("%w: fee currency must be fungible or native, got %s", ErrInvalidCurrency, got)
	}
	return nil
}

func requireNFT(got currency.Kind) error {
	if !got.IsNFT() {
		return fmt.Errorf("%w: %s is not a non-fungible currency", ErrInvalidCurrency, got)
	}
	return nil
}

func positive(amount *big.Int) error {
	if amount == nil || amount.Sign() == 0 {
		return ErrZeroAmount
	}
	return nil
}

// DepositFungible moves amount of a fungible token from caller into the
// project budget.
func (e *Engine) DepositFungible(ctx context.Context, caller, project, id common.Address, amount *big.Int) error {
	if err := positive(amount); err != nil {
		return err
	}
	return e.deposit(ctx, depositRequest{
		operation: "deposit_fungible",
		caller:    caller,
		project:   project,
		currency:  id,
		quantity:  currency.Quantity{Amount: amount},
		checkKind: requireKind(currency.KindFungible),
	})
}

// DepositNative moves amount of the native currency from caller into the
// project budget.
func (e *Engine) DepositNative(ctx context.Context, caller, project common.Address, amount *big.Int) error {
	if err := positive(amount); err != nil {
		return err
	}
	return e.deposit(ctx, depositRequest{
		operation: "deposit_native",
		caller:    caller,
		project:   project,
		currency:  currency.NativeCurrency,
		quantity:  currency.Quantity{Amount: amount},
		checkKind: requireKind(currency.KindNative),
	})
}

// DepositNFT moves tokens into the project budget. ERC721 deposits pass no
// amounts; ERC1155 deposits pass one amount per id.
func (e *Engine) DepositNFT(ctx context.Context, caller, project, id common.Address, tokenIDs, amounts []*big.Int) error {
	if len(tokenIDs) == 0 {
		return ErrZeroAmount
	}
	return e.deposit(ctx, depositRequest{
		operation: "deposit_nft",
		caller:    caller,
		project:   project,
		currency:  id,
		quantity:  currency.Quantity{TokenIDs: tokenIDs, Amounts: amounts},
		checkKind: requireNFT,
	})
}

// DepositFeeBudget tops up the reserve paying fixed NFT fees, in the fee
// currency currently configured.
func (e *Engine) DepositFeeBudget(ctx context.Context, caller, project common.Address, amount *big.Int) error {
	if err := positive(amount); err != nil {
		return err
	}
	return e.deposit(ctx, depositRequest{
		operation: "deposit_fee_budget",
		caller:    caller,
		project:   project,
		currency:  e.factory.FeeParameters().NFTFeeCurrency,
		quantity:  currency.Quantity{Amount: amount},
		checkKind: requireCoin,
		feeBudget: true,
	})
}

func requireAdmin(p projects.Project, caller common.Address) error {
	if p.Admin != caller {
		return fmt.Errorf("%w: %w", access.ErrUnauthorized, ErrNotProjectAdmin)
	}
	return nil
}

// ApplyToRemoveBudget starts the removal cooldown for project. A new
// application replaces the previous one.
func (e *Engine) ApplyToRemoveBudget(ctx context.Context, caller, project common.Address) (err error) {
	started := time.Now()
	defer func() { e.observe("apply_remove_budget", started, err) }()
	return e.state.Atomic(ctx, func(ctx context.Context, tx *state.Tx) error {
		v, p, err := e.open(tx, project)
		if err != nil {
			return err
		}
		if err := requireAdmin(p, caller); err != nil {
			return err
		}
		now := e.nowFn()
		if err := v.setRemovalApplied(now); err != nil {
			return err
		}
		tx.AppendEvent(events.VaultRemovalApplied{Project: project, Admin: caller, AppliedAt: now})
		return nil
	})
}

// checkRemovalWindow allows removal from applied+cooldown through
// applied+cooldown+window inclusive.
func (e *Engine) checkRemovalWindow(v *Vault) error {
	applied, ok, err := v.RemovalAppliedAt()
	if err != nil {
		return err
	}
	if !ok {
		return ErrNoRemovalApplication
	}
	cooldown, window := e.factory.BudgetRemovalWindow()
	opens := applied + int64(cooldown/time.Second)
	closes := opens + int64(window/time.Second)
	now := e.nowFn()
	if now < opens || now > closes {
		return fmt.Errorf("%w: now %d, window [%d, %d]", ErrOutsideRemovalWindow, now, opens, closes)
	}
	return nil
}

type removalRequest struct {
	operation string
	caller    common.Address
	project   common.Address
	currency  common.Address
	quantity  currency.Quantity
	feeBudget bool
}

func (e *Engine) remove(ctx context.Context, req removalRequest) (err error) {
	started := time.Now()
	defer func() { e.observe(req.operation, started, err) }()
	return e.state.Atomic(ctx, func(ctx context.Context, tx *state.Tx) error {
		v, p, err := e.open(tx, req.project)
		if err != nil {
			return err
		}
		if err := requireAdmin(p, req.caller); err != nil {
			return err
		}
		if err := e.checkRemovalWindow(v); err != nil {
			return err
		}
		kind, err := v.kind(req.currency)
		if err != nil {
			return err
		}
		if req.feeBudget && kind.IsNFT() {
			return fmt.Errorf("%w: fee budgets hold coins only", ErrInvalidCurrency)
		}
		asset, err := currency.Resolve(kind, req.quantity)
		if err != nil {
			return err
		}
		if asset.IsZero() {
			return ErrZeroAmount
		}
		if req.feeBudget {
			err = v.withdrawFeeBudget(req.currency, asset)
		} else {
			err = v.withdrawBudget(req.currency, asset)
		}
		if err != nil {
			return err
		}
		if err := e.transfers.Transfer(ctx, req.currency, v.Account(), req.caller, asset); err != nil {
			return fmt.Errorf("vault: removal transfer: %w", err)
		}
		tx.AppendEvent(events.VaultRemoved{
			Project:   req.project,
			Currency:  req.currency,
			Recipient: req.caller,
			Asset:     asset.Value(),
			FeeBudget: req.feeBudget,
		})
		return nil
	})
}

// RemoveBudget returns part of the budget to the project admin. It requires
// a removal application whose window is open. The currency need not be
// accepted any more.
func (e *Engine) RemoveBudget(ctx context.Context, caller, project, id common.Address, quantity currency.Quantity) error {
	return e.remove(ctx, removalRequest{
		operation: "remove_budget",
		caller:    caller,
		project:   project,
		currency:  id,
		quantity:  quantity,
	})
}

// RemoveFeeBudget returns part of a fee reserve to the project admin under
// the same window rules as RemoveBudget.
func (e *Engine) RemoveFeeBudget(ctx context.Context, caller, project, id common.Address, amount *big.Int) error {
	if err := positive(amount); err != nil {
		return err
	}
	return e.remove(ctx, removalRequest{
		operation: "remove_fee_budget",
		caller:    caller,
		project:   project,
		currency:  id,
		quantity:  currency.Quantity{Amount: amount},
		feeBudget: true,
	})
}

func (e *Engine) view(ctx context.Context, project common.Address, fn func(v *Vault) error) error {
	return e.state.View(ctx, func(kv state.KV) error {
		return fn(Open(kv, project))
	})
}

// Budget returns the committed budget of project in currency id.
func (e *Engine) Budget(ctx context.Context, project, id common.Address) (*currency.Holdings, error) {
	var out *currency.Holdings
	err := e.view(ctx, project, func(v *Vault) (err error) {
		out, err = v.Budget(id)
		return err
	})
	return out, err
}

func (e *Engine) FeeBudget(ctx context.Context, project, id common.Address) (*currency.Holdings, error) {
	var out *currency.Holdings
	err := e.view(ctx, project, func(v *Vault) (err error) {
		out, err = v.FeeBudget(id)
		return err
	})
	return out, err
}

func (e *Engine) Claimable(ctx context.Context, project, recipient, id common.Address) (*currency.Holdings, error) {
	var out *currency.Holdings
	err := e.view(ctx, project, func(v *Vault) (err error) {
		out, err = v.AvailableToClaim(recipient, id)
		return err
	})
	return out, err
}

func (e *Engine) Totals(ctx context.Context, project, id common.Address) (Totals, error) {
	var out Totals
	err := e.view(ctx, project, func(v *Vault) (err error) {
		out, err = v.Totals(id)
		return err
	})
	return out, err
}

func (e *Engine) ProofUsed(ctx context.Context, project common.Address, proof [32]byte) (bool, error) {
	var used bool
	err := e.view(ctx, project, func(v *Vault) (err error) {
		used, err = v.ProofUsed(proof)
		return err
	})
	return used, err
}
