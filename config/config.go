package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"

	"partnerledger/native/fees"
)

// Storage backends accepted in Config.Storage.
const (
	StorageLevelDB = "leveldb"
	StorageBolt    = "bolt"
	StorageMemory  = "memory"
)

type Config struct {
	ListenAddress string      `toml:"ListenAddress"`
	DataDir       string      `toml:"DataDir"`
	Storage       string      `toml:"Storage"`
	Environment   string      `toml:"Environment"`
	LogFile       string      `toml:"LogFile"`
	SeedFile      string      `toml:"SeedFile"`
	Ledger        Ledger      `toml:"ledger"`
	Fees          fees.Params `toml:"fees"`
	Gateway       Gateway     `toml:"gateway"`
	Telemetry     Telemetry   `toml:"telemetry"`
}

// Load loads the configuration from the given path. A missing file is
// created with defaults.
func Load(path string) (*Config, error) {
	cfg := &Config{}
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return createDefault(path)
	}

	if _, err := toml.DecodeFile(path, cfg); err != nil {
		return nil, err
	}

	applyDefaults(cfg)
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config %s: %w", path, err)
	}
	return cfg, nil
}

func applyDefaults(cfg *Config) {
	if strings.TrimSpace(cfg.ListenAddress) == "" {
		cfg.ListenAddress = ":8088"
	}
	if strings.TrimSpace(cfg.Storage) == "" {
		cfg.Storage = StorageLevelDB
	}
	cfg.Storage = strings.ToLower(strings.TrimSpace(cfg.Storage))
	if cfg.DataDir == "" && cfg.Storage != StorageMemory {
		cfg.DataDir = "./ledger-data"
	}
	if cfg.Environment == "" {
		cfg.Environment = "local"
	}
	if cfg.Ledger.ClaimCooldown.Duration == 0 {
		cfg.Ledger.ClaimCooldown = Duration{24 * time.Hour}
	}
	if cfg.Ledger.RemovalCooldown.Duration == 0 {
		cfg.Ledger.RemovalCooldown = Duration{7 * 24 * time.Hour}
	}
	if cfg.Ledger.RemovalWindow.Duration == 0 {
		cfg.Ledger.RemovalWindow = Duration{2 * 24 * time.Hour}
	}
	if cfg.Gateway.ScopeClaim == "" {
		cfg.Gateway.ScopeClaim = "scope"
	}
	if cfg.Gateway.RatePerSecond == 0 {
		cfg.Gateway.RatePerSecond = 20
	}
	if cfg.Gateway.Burst == 0 {
		cfg.Gateway.Burst = 40
	}
	if cfg.Gateway.ReadHeaderTimeout.Duration == 0 {
		cfg.Gateway.ReadHeaderTimeout = Duration{10 * time.Second}
	}
	if len(cfg.Gateway.AllowedOrigins) == 0 {
		cfg.Gateway.AllowedOrigins = []string{"*"}
	}
	if cfg.Gateway.CORSMaxAge.Duration == 0 {
		cfg.Gateway.CORSMaxAge = Duration{10 * time.Minute}
	}
	if cfg.Telemetry.ServiceName == "" {
		cfg.Telemetry.ServiceName = "ledgerd"
	}
}

// createDefault creates and saves a default configuration file.
func createDefault(path string) (*Config, error) {
	cfg := &Config{
		ListenAddress: ":8088",
		DataDir:       filepath.Join(filepath.Dir(path), "ledger-data"),
		Storage:       StorageLevelDB,
		Environment:   "local",
		Fees: fees.Params{
			ProtocolFeeBps:   100,
			ClientFeeBps:     200,
			AttributorFeeBps: 50,
		},
	}
	applyDefaults(cfg)
	if err := persist(path, cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func persist(path string, cfg *Config) error {
	dir := filepath.Dir(path)
	if dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_TRUNC|os.O_CREATE, 0o644)
	if err != nil {
		return err
	}
	defer f.Close()

	return toml.NewEncoder(f).Encode(cfg)
}

// JWTSecret resolves the gateway signing secret, preferring the environment
// variable named by SecretEnv.
func (g Gateway) JWTSecret() string {
	if env := strings.TrimSpace(g.SecretEnv); env != "" {
		if v := strings.TrimSpace(os.Getenv(env)); v != "" {
			return v
		}
	}
	return strings.TrimSpace(g.Secret)
}
