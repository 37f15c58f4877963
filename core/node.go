package core

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"partnerledger/config"
	"partnerledger/core/events"
	"partnerledger/core/state"
	"partnerledger/native/access"
	"partnerledger/native/attribution"
	"partnerledger/native/bank"
	"partnerledger/native/claims"
	"partnerledger/native/currency"
	"partnerledger/native/fees"
	"partnerledger/native/projects"
	"partnerledger/native/system/pauses"
	"partnerledger/native/vault"
	"partnerledger/storage"
)

// NodeConfig carries the engine settings taken from the daemon config.
type NodeConfig struct {
	Fees            fees.Params
	ClaimCooldown   time.Duration
	RemovalCooldown time.Duration
	RemovalWindow   time.Duration
}

// NodeConfigFrom extracts the engine settings from a loaded config file.
func NodeConfigFrom(cfg *config.Config) NodeConfig {
	return NodeConfig{
		Fees:            cfg.Fees.Clone(),
		ClaimCooldown:   cfg.Ledger.ClaimCooldown.Duration,
		RemovalCooldown: cfg.Ledger.RemovalCooldown.Duration,
		RemovalWindow:   cfg.Ledger.RemovalWindow.Duration,
	}
}

// Node is the central controller, wiring all components together.
type Node struct {
	db          storage.Database
	state       *state.Manager
	roles       *access.Registry
	bank        *bank.Ledger
	currencies  *currency.Registry
	limiter     *currency.Limiter
	projects    *projects.Factory
	pauses      *pauses.Controller
	vault       *vault.Engine
	attribution *attribution.Engine
	claims      *claims.Engine
}

func NewNode(db storage.Database, cfg NodeConfig) (*Node, error) {
	if db == nil {
		return nil, fmt.Errorf("core: database required")
	}
	if cfg.ClaimCooldown <= 0 {
		return nil, fmt.Errorf("core: claim cooldown must be positive")
	}
	factory, err := projects.NewFactory(cfg.Fees, cfg.RemovalCooldown, cfg.RemovalWindow)
	if err != nil {
		return nil, err
	}

	mgr := state.NewManager(db)
	roles := access.NewRegistry()
	ledger := bank.NewLedger(mgr)
	limiter := currency.NewLimiter(cfg.ClaimCooldown)

	return &Node{
		db:          db,
		state:       mgr,
		roles:       roles,
		bank:        ledger,
		currencies:  currency.NewRegistry(mgr, roles, ledger),
		limiter:     limiter,
		projects:    factory,
		pauses:      pauses.NewController(mgr, roles),
		vault:       vault.NewEngine(mgr, factory, ledger),
		attribution: attribution.NewEngine(mgr, roles, factory),
		claims:      claims.NewEngine(mgr, limiter, ledger),
	}, nil
}

func (n *Node) State() *state.Manager { return n.state }
func (n *Node) Roles() *access.Registry { return n.roles }
func (n *Node) Bank() *bank.Ledger { return n.bank }
func (n *Node) Currencies() *currency.Registry { return n.currencies }
func (n *Node) Limiter() *currency.Limiter { return n.limiter }
func (n *Node) Projects() *projects.Factory { return n.projects }
func (n *Node) Pauses() *pauses.Controller { return n.pauses }
func (n *Node) Vault() *vault.Engine { return n.vault }
func (n *Node) Attribution() *attribution.Engine { return n.attribution }
func (n *Node) Claims() *claims.Engine { return n.claims }

// SetEmitter routes committed events to emitter.
func (n *Node) SetEmitter(emitter events.Emitter) {
	n.state.SetEmitter(emitter)
}

// SetNowFunc overrides the clock of every time-aware component.
func (n *Node) SetNowFunc(now func() int64) {
	n.currencies.SetNowFunc(now)
	n.limiter.SetNowFunc(now)
	n.pauses.SetNowFunc(now)
	n.vault.SetNowFunc(now)
}

func (n *Node) SetLogger(logger *slog.Logger) {
	n.vault.SetLogger(logger)
	n.attribution.SetLogger(logger)
	n.claims.SetLogger(logger)
}

func (n *Node) Close() {
	n.db.Close()
}

// ApplySeed grants roles, registers tokens, currencies and projects, and
// mints opening balances. Currencies are added by the first seeded admin.
// Entries that already exist, and mints to accounts already holding the
// currency, are skipped so a restart can reapply the seed.
func (n *Node) ApplySeed(ctx context.Context, seed *config.Seed) error {
	if seed == nil {
		return nil
	}
	for rawRole, members := range seed.Roles {
		role, err := access.ParseRole(rawRole)
		if err != nil {
			return err
		}
		for _, m := range members {
			addr, err := config.ParseAddress(m)
			if err != nil {
				return err
			}
			n.roles.Grant(role, addr)
		}
	}

	kinds := map[common.Address]currency.Kind{currency.NativeCurrency: currency.KindNative}
	for _, t := range seed.Tokens {
		addr, kind, err := seedKind(t.Address, t.Kind)
		if err != nil {
			return err
		}
		kinds[addr] = kind
		if err := n.bank.RegisterToken(ctx, addr, kind); err != nil && !errors.Is(err, bank.ErrTokenExists) {
			return fmt.Errorf("seed token %s: %w", t.Address, err)
		}
	}

	if len(seed.Currencies) > 0 {
		admins := n.roles.Members(access.RoleAdmin)
		if len(admins) == 0 {
			return fmt.Errorf("seed: currencies require an admin role member")
		}
		for _, c := range seed.Currencies {
			addr, kind, err := seedKind(c.Address, c.Kind)
			if err != nil {
				return err
			}
			limit, err := config.ParseAmount(c.Limit)
			if err != nil {
				return err
			}
			if n.currencies.IsAccepted(ctx, addr) {
				continue
			}
			if err := n.currencies.AddCurrency(ctx, admins[0], addr, kind, limit); err != nil {
				return fmt.Errorf("seed currency %s: %w", c.Address, err)
			}
		}
	}

	for _, p := range seed.Projects {
		id, err := config.ParseAddress(p.ID)
		if err != nil {
			return err
		}
		admin, err := config.ParseAddress(p.Admin)
		if err != nil {
			return err
		}
		var collector common.Address
		if strings.TrimSpace(p.ClientCollector) != "" {
			if collector, err = config.ParseAddress(p.ClientCollector); err != nil {
				return err
			}
		}
		if n.projects.IsProjectRegistered(id) {
			continue
		}
		if err := n.projects.Register(id, admin, collector); err != nil {
			return fmt.Errorf("seed project %s: %w", p.ID, err)
		}
	}

	for _, m := range seed.Mints {
		account, err := config.ParseAddress(m.Account)
		if err != nil {
			return err
		}
		var id common.Address
		if strings.TrimSpace(m.Currency) != "" {
			if id, err = config.ParseAddress(m.Currency); err != nil {
				return err
			}
		}
		kind, ok := kinds[id]
		if !ok {
			return fmt.Errorf("seed mint: token %s not registered", id.Hex())
		}
		amount, err := config.ParseAmount(m.Amount)
		if err != nil {
			return err
		}
		tokenIDs, err := config.ParseAmounts(m.TokenIDs)
		if err != nil {
			return err
		}
		amounts, err := config.ParseAmounts(m.Amounts)
		if err != nil {
			return err
		}
		if held, err := n.bank.Balance(ctx, account, id); err == nil && !held.IsZero() {
			continue
		}
		asset, err := currency.Resolve(kind, currency.Quantity{Amount: amount, TokenIDs: tokenIDs, Amounts: amounts})
		if err != nil {
			return fmt.Errorf("seed mint %s: %w", m.Account, err)
		}
		if err := n.bank.Mint(ctx, account, id, asset); err != nil {
			return fmt.Errorf("seed mint %s: %w", m.Account, err)
		}
	}
	return nil
}

func seedKind(rawAddr, rawKind string) (common.Address, currency.Kind, error) {
	addr, err := config.ParseAddress(rawAddr)
	if err != nil {
		return common.Address{}, currency.KindUnknown, err
	}
	kind, err := currency.ParseKind(rawKind)
	if err != nil {
		return common.Address{}, currency.KindUnknown, err
	}
	return addr, kind, nil
}
