package config

import (
	"fmt"
	"strings"
)

func (c *Config) Validate() error {
	switch c.Storage {
	case StorageLevelDB, StorageBolt:
		if strings.TrimSpace(c.DataDir) == "" {
			return fmt.Errorf("storage: %s requires DataDir", c.Storage)
		}
	case StorageMemory:
	default:
		return fmt.Errorf("storage: unknown backend %q", c.Storage)
	}
	if err := c.Fees.Validate(); err != nil {
		return err
	}
	if c.Ledger.ClaimCooldown.Duration <= 0 {
		return fmt.Errorf("ledger: ClaimCooldown must be positive")
	}
	if c.Ledger.RemovalCooldown.Duration < 0 {
		return fmt.Errorf("ledger: RemovalCooldown must not be negative")
	}
	if c.Ledger.RemovalWindow.Duration <= 0 {
		return fmt.Errorf("ledger: RemovalWindow must be positive")
	}
	if c.Gateway.RatePerSecond < 0 || c.Gateway.Burst < 0 {
		return fmt.Errorf("gateway: rate limit must not be negative")
	}
	if c.Gateway.CORSMaxAge.Duration < 0 {
		return fmt.Errorf("gateway: CORSMaxAge must not be negative")
	}
	for _, origin := range c.Gateway.AllowedOrigins {
		origin = strings.TrimSpace(origin)
		switch {
		case origin == "":
			return fmt.Errorf("gateway: empty entry in AllowedOrigins")
		case origin == "*":
			if c.Gateway.AllowCredentials {
				return fmt.Errorf("gateway: AllowCredentials requires explicit AllowedOrigins")
			}
		case !strings.HasPrefix(origin, "http://") && !strings.HasPrefix(origin, "https://"):
			return fmt.Errorf("gateway: origin %q must include its scheme", origin)
		}
	}
	return nil
}
