package config

import (
	"fmt"
	"math/big"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"

	"benevault/core/types"
)

// GenesisAccount seeds a ledger balance on first start.
type GenesisAccount struct {
	Address string `toml:"Address"`
	Balance string `toml:"Balance"`
}

type Config struct {
	RPCAddress  string           `toml:"RPCAddress"`
	DataDir     string           `toml:"DataDir"`
	Environment string           `toml:"Environment"`
	VaultCount  int              `toml:"VaultCount"`
	Owner       string           `toml:"Owner"`
	Treasury    string           `toml:"Treasury"`
	Genesis     []GenesisAccount `toml:"Genesis"`
}

const maxVaultCount = 1024

// Load loads the configuration from the given path, creating a default file
// when none exists yet.
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
		return nil, err
	}
	return cfg, nil
}

func applyDefaults(cfg *Config) {
	if strings.TrimSpace(cfg.RPCAddress) == "" {
		cfg.RPCAddress = ":8545"
	}
	if strings.TrimSpace(cfg.DataDir) == "" {
		cfg.DataDir = "./benevault-data"
	}
	if cfg.VaultCount == 0 {
		cfg.VaultCount = 2
	}
}

// Validate checks the configuration for structural problems before the
// service starts.
func (cfg *Config) Validate() error {
	if cfg.VaultCount <= 0 || cfg.VaultCount > maxVaultCount {
		return fmt.Errorf("config: VaultCount must be within [1, %d], got %d", maxVaultCount, cfg.VaultCount)
	}
	if strings.TrimSpace(cfg.Owner) == "" {
		return fmt.Errorf("config: Owner address is required")
	}
	if _, err := types.ParseAddress(cfg.Owner); err != nil {
		return fmt.Errorf("config: invalid Owner: %w", err)
	}
	if strings.TrimSpace(cfg.Treasury) == "" {
		return fmt.Errorf("config: Treasury address is required")
	}
	if _, err := types.ParseAddress(cfg.Treasury); err != nil {
		return fmt.Errorf("config: invalid Treasury: %w", err)
	}
	for i, acc := range cfg.Genesis {
		if _, err := types.ParseAddress(acc.Address); err != nil {
			return fmt.Errorf("config: invalid Genesis[%d].Address: %w", i, err)
		}
		balance, ok := new(big.Int).SetString(strings.TrimSpace(acc.Balance), 10)
		if !ok || balance.Sign() <= 0 {
			return fmt.Errorf("config: Genesis[%d].Balance must be a positive decimal integer", i)
		}
	}
	return nil
}

// OwnerAddress returns the parsed owner address. Validate must have passed.
func (cfg *Config) OwnerAddress() [20]byte {
	addr, _ := types.ParseAddress(cfg.Owner)
	return addr
}

// TreasuryAddress returns the parsed treasury address. Validate must have
// passed.
func (cfg *Config) TreasuryAddress() [20]byte {
	addr, _ := types.ParseAddress(cfg.Treasury)
	return addr
}

// createDefault creates and saves a default configuration file. The owner and
// treasury are left blank deliberately: the operator must fill them in before
// the service will start.
func createDefault(path string) (*Config, error) {
	cfg := &Config{
		RPCAddress:  ":8545",
		DataDir:     "./benevault-data",
		Environment: "local",
		VaultCount:  2,
	}
	if err := persist(path, cfg); err != nil {
		return nil, err
	}
	return nil, fmt.Errorf("config: wrote default config to %s; set Owner and Treasury before starting", path)
}

func persist(path string, cfg *Config) error {
	if dir := filepath.Dir(path); dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	file, err := os.Create(path)
	if err != nil {
		return err
	}
	defer file.Close()
	return toml.NewEncoder(file).Encode(cfg)
}
