package main

import (
	"flag"
	"fmt"
	"log/slog"
	"math/big"
	"os"
	"strings"

	"benevault/config"
	"benevault/core/events"
	"benevault/core/state"
	"benevault/core/types"
	"benevault/native/vaults"
	"benevault/observability/logging"
	"benevault/rpc"
	"benevault/storage"
)

// logEmitter forwards engine events to the structured logger so operators see
// every vault transition without an indexer.
type logEmitter struct {
	logger *slog.Logger
}

func (l logEmitter) Emit(event events.Event) {
	carrier, ok := event.(interface{ Event() *types.Event })
	if !ok || carrier.Event() == nil {
		return
	}
	payload := carrier.Event()
	attrs := make([]any, 0, len(payload.Attributes)+1)
	attrs = append(attrs, slog.String("event", payload.Type))
	for key, value := range payload.Attributes {
		attrs = append(attrs, slog.String(key, value))
	}
	l.logger.Info("vault event", attrs...)
}

func main() {
	configFile := flag.String("config", "./config.toml", "Path to the configuration file")
	flag.Parse()

	env := strings.TrimSpace(os.Getenv("BENEVAULT_ENV"))
	logger := logging.Setup("benevaultd", env)

	cfg, err := config.Load(*configFile)
	if err != nil {
		logger.Error("Failed to load config", slog.Any("error", err))
		os.Exit(1)
	}

	db, err := storage.NewLevelDB(cfg.DataDir)
	if err != nil {
		logger.Error("Failed to open database", slog.Any("error", err))
		os.Exit(1)
	}
	defer db.Close()

	manager, err := state.NewManager(db, cfg.VaultCount)
	if err != nil {
		logger.Error("Failed to open state", slog.Any("error", err))
		os.Exit(1)
	}

	if err := bootstrap(manager, cfg); err != nil {
		logger.Error("Failed to bootstrap state", slog.Any("error", err))
		os.Exit(1)
	}

	engine := vaults.NewEngine()
	engine.SetState(manager)
	engine.SetToken(manager)
	engine.SetRegistry(manager, state.RegistryAddress())
	engine.SetTreasury(cfg.TreasuryAddress())
	engine.SetEmitter(logEmitter{logger: logger})

	logger.Info("benevaultd starting",
		slog.Int("vaultCount", cfg.VaultCount),
		logging.Address("owner", cfg.OwnerAddress()),
		logging.Address("moduleAddress", vaults.ModuleAddress()),
	)

	server := rpc.NewServer(engine, manager, logger)
	if err := server.Start(cfg.RPCAddress); err != nil {
		logger.Error("RPC server stopped", slog.Any("error", err))
		os.Exit(1)
	}
}

// bootstrap seeds the owner and genesis balances exactly once.
func bootstrap(manager *state.Manager, cfg *config.Config) error {
	owner, err := manager.VaultOwner()
	if err != nil {
		return err
	}
	if owner == ([20]byte{}) {
		if err := manager.SetVaultOwner(cfg.OwnerAddress()); err != nil {
			return err
		}
	}
	applied, err := manager.GenesisApplied()
	if err != nil {
		return err
	}
	if applied {
		return nil
	}
	for _, account := range cfg.Genesis {
		addr, err := types.ParseAddress(account.Address)
		if err != nil {
			return err
		}
		balance, ok := new(big.Int).SetString(strings.TrimSpace(account.Balance), 10)
		if !ok {
			return fmt.Errorf("malformed genesis balance for %s", account.Address)
		}
		if err := manager.Mint(addr, balance); err != nil {
			return err
		}
	}
	return manager.SetGenesisApplied()
}
