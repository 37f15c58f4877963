package config

import (
	"fmt"
	"math/big"
	"os"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"gopkg.in/yaml.v3"
)

// Seed is the bootstrap state applied to a fresh ledger: role grants, bank
// tokens, accepted currencies, registered projects and opening balances.
type Seed struct {
	Roles      map[string][]string `yaml:"roles"`
	Tokens     []SeedToken         `yaml:"tokens"`
	Currencies []SeedCurrency      `yaml:"currencies"`
	Projects   []SeedProject       `yaml:"projects"`
	Mints      []SeedMint          `yaml:"mints"`
}

// SeedToken registers a token contract with the bank.
type SeedToken struct {
	Address string `yaml:"address"`
	Kind    string `yaml:"kind"`
}

// SeedCurrency adds a currency to the registry with a claim limit.
type SeedCurrency struct {
	Address string `yaml:"address"`
	Kind    string `yaml:"kind"`
	Limit   string `yaml:"limit"`
}

type SeedProject struct {
	ID              string `yaml:"id"`
	Admin           string `yaml:"admin"`
	ClientCollector string `yaml:"client_collector"`
}

// SeedMint credits an opening balance. Amount applies to coins, TokenIDs and
// Amounts to NFTs.
type SeedMint struct {
	Account  string   `yaml:"account"`
	Currency string   `yaml:"currency"`
	Amount   string   `yaml:"amount"`
	TokenIDs []string `yaml:"token_ids"`
	Amounts  []string `yaml:"amounts"`
}

// LoadSeed reads the YAML seed file from disk.
func LoadSeed(path string) (*Seed, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var seed Seed
	if err := yaml.Unmarshal(data, &seed); err != nil {
		return nil, fmt.Errorf("decode seed: %w", err)
	}
	if err := seed.Validate(); err != nil {
		return nil, fmt.Errorf("seed %s: %w", path, err)
	}
	return &seed, nil
}

// Validate checks that every address and amount parses.
func (s *Seed) Validate() error {
	for role, members := range s.Roles {
		for _, m := range members {
			if _, err := ParseAddress(m); err != nil {
				return fmt.Errorf("roles.%s: %w", role, err)
			}
		}
	}
	for i, t := range s.Tokens {
		if _, err := ParseAddress(t.Address); err != nil {
			return fmt.Errorf("tokens[%d]: %w", i, err)
		}
	}
	for i, c := range s.Currencies {
		if _, err := ParseAddress(c.Address); err != nil {
			return fmt.Errorf("currencies[%d]: %w", i, err)
		}
		if _, err := ParseAmount(c.Limit); err != nil {
			return fmt.Errorf("currencies[%d].limit: %w", i, err)
		}
	}
	for i, p := range s.Projects {
		if _, err := ParseAddress(p.ID); err != nil {
			return fmt.Errorf("projects[%d].id: %w", i, err)
		}
		if _, err := ParseAddress(p.Admin); err != nil {
			return fmt.Errorf("projects[%d].admin: %w", i, err)
		}
		if strings.TrimSpace(p.ClientCollector) != "" {
			if _, err := ParseAddress(p.ClientCollector); err != nil {
				return fmt.Errorf("projects[%d].client_collector: %w", i, err)
			}
		}
	}
	for i, m := range s.Mints {
		if _, err := ParseAddress(m.Account); err != nil {
			return fmt.Errorf("mints[%d].account: %w", i, err)
		}
		if strings.TrimSpace(m.Currency) != "" {
			if _, err := ParseAddress(m.Currency); err != nil {
				return fmt.Errorf("mints[%d].currency: %w", i, err)
			}
		}
		if _, err := ParseAmounts(m.TokenIDs); err != nil {
			return fmt.Errorf("mints[%d].token_ids: %w", i, err)
		}
		if _, err := ParseAmounts(m.Amounts); err != nil {
			return fmt.Errorf("mints[%d].amounts: %w", i, err)
		}
	}
	return nil
}

// ParseAddress accepts a 0x-prefixed 20 byte hex address.
func ParseAddress(raw string) (common.Address, error) {
	trimmed := strings.TrimSpace(raw)
	if !common.IsHexAddress(trimmed) {
		return common.Address{}, fmt.Errorf("invalid address %q", raw)
	}
	return common.HexToAddress(trimmed), nil
}

// ParseAmount parses a non-negative base-10 integer. Empty input yields nil.
func ParseAmount(raw string) (*big.Int, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return nil, nil
	}
	v, ok := new(big.Int).SetString(trimmed, 10)
	if !ok || v.Sign() < 0 {
		return nil, fmt.Errorf("invalid amount %q", raw)
	}
	return v, nil
}

func ParseAmounts(raw []string) ([]*big.Int, error) {
	if len(raw) == 0 {
		return nil, nil
	}
	out := make([]*big.Int, len(raw))
	for i, r := range raw {
		v, err := ParseAmount(r)
		if err != nil {
			return nil, err
		}
		if v == nil {
			return nil, fmt.Errorf("empty amount at %d", i)
		}
		out[i] = v
	}
	return out, nil
}
