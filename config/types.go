package config

import (
	"fmt"
	"time"

	"gopkg.in/yaml.v3"
)

// Duration wraps time.Duration so it can be written as "24h" in TOML and
// YAML files.
type Duration struct {
	time.Duration
}

func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.Duration.String()), nil
}

func (d *Duration) UnmarshalText(text []byte) error {
	raw := string(text)
	if raw == "" {
		d.Duration = 0
		return nil
	}
	parsed, err := time.ParseDuration(raw)
	if err != nil {
		return fmt.Errorf("parse duration %q: %w", raw, err)
	}
	d.Duration = parsed
	return nil
}

// UnmarshalYAML parses human readable duration strings.
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	if value == nil {
		return nil
	}
	if value.Kind != yaml.ScalarNode {
		return fmt.Errorf("duration must be string")
	}
	return d.UnmarshalText([]byte(value.Value))
}

// Ledger holds the engine timing knobs.
type Ledger struct {
	// ClaimCooldown is the length of each claim rate limit window.
	ClaimCooldown Duration `toml:"ClaimCooldown"`
	// RemovalCooldown is the wait between a removal application and the
	// opening of the removal window.
	RemovalCooldown Duration `toml:"RemovalCooldown"`
	RemovalWindow   Duration `toml:"RemovalWindow"`
}

// Gateway configures the HTTP surface.
type Gateway struct {
	Secret            string   `toml:"Secret"`
	SecretEnv         string   `toml:"SecretEnv"`
	Issuer            string   `toml:"Issuer"`
	Audience          string   `toml:"Audience"`
	ScopeClaim        string   `toml:"ScopeClaim"`
	RatePerSecond     float64  `toml:"RatePerSecond"`
	Burst             int      `toml:"Burst"`
	ReadHeaderTimeout Duration `toml:"ReadHeaderTimeout"`

	// AllowedOrigins lists the browser origins served CORS headers. "*"
	// admits any origin and cannot be combined with AllowCredentials.
	AllowedOrigins   []string `toml:"AllowedOrigins"`
	AllowedHeaders   []string `toml:"AllowedHeaders"`
	AllowCredentials bool     `toml:"AllowCredentials"`
	CORSMaxAge       Duration `toml:"CORSMaxAge"`
}

// Telemetry configures OpenTelemetry export.
type Telemetry struct {
	ServiceName string `toml:"ServiceName"`
	Endpoint    string `toml:"Endpoint"`
	Insecure    bool   `toml:"Insecure"`
	Headers     string `toml:"Headers"`
	Traces      bool   `toml:"Traces"`
	Metrics     bool   `toml:"Metrics"`
}
