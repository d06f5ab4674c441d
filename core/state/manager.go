package state

import (
	"errors"
	"fmt"
	"math/big"

	ethcrypto "github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/rlp"

	"benevault/core/types"
	"benevault/storage"
)

var (
	accountPrefix        = []byte("ledger/account/")
	vaultRecordPrefix    = []byte("vaults/record/")
	vaultClaimPrefix     = []byte("vaults/claimed/")
	registryMemberPrefix = []byte("registry/member/")
	vaultedBalanceKey    = []byte("vaults/meta/vaulted-balance")
	vaultOwnerKey        = []byte("vaults/meta/owner")
	pendingVaultOwnerKey = []byte("vaults/meta/pending-owner")
	vaultCountKey        = []byte("vaults/meta/count")
	genesisAppliedKey    = []byte("ledger/meta/genesis-applied")
	registryAddressSeed  = "benevault/core/state/registry"
)

// ErrInsufficientBalance is returned when a ledger transfer would overdraw
// the sender.
var ErrInsufficientBalance = errors.New("ledger: insufficient balance")

// Manager persists all vault service state in a key-value database: the token
// ledger, the vault records with their claim markers, the beneficiary
// registry membership set and the tracked vaulted balance. It satisfies the
// engine's EngineState, Token and BeneficiaryRegistry capabilities.
type Manager struct {
	db         storage.Database
	vaultCount int
}

// NewManager opens the state over the given database with a fixed vault
// count. The count is persisted on first use and must match on every
// subsequent open.
func NewManager(db storage.Database, vaultCount int) (*Manager, error) {
	if db == nil {
		return nil, fmt.Errorf("state: nil database")
	}
	if vaultCount <= 0 {
		return nil, fmt.Errorf("state: vault count must be positive")
	}
	m := &Manager{db: db, vaultCount: vaultCount}
	stored, ok, err := m.loadUint64(prefixedKey(vaultCountKey, nil))
	if err != nil {
		return nil, err
	}
	if !ok {
		if err := m.writeUint64(prefixedKey(vaultCountKey, nil), uint64(vaultCount)); err != nil {
			return nil, err
		}
		return m, nil
	}
	if stored != uint64(vaultCount) {
		return nil, fmt.Errorf("state: vault count mismatch: stored %d, configured %d", stored, vaultCount)
	}
	return m, nil
}

// RegistryAddress returns the identity of the state-backed beneficiary
// registry, used in registry-change events.
func RegistryAddress() [20]byte {
	hash := ethcrypto.Keccak256([]byte(registryAddressSeed))
	var addr [20]byte
	copy(addr[:], hash[12:])
	return addr
}

func prefixedKey(prefix, payload []byte) []byte {
	buf := make([]byte, 0, len(prefix)+len(payload))
	buf = append(buf, prefix...)
	buf = append(buf, payload...)
	return ethcrypto.Keccak256(buf)
}

func (m *Manager) loadBigInt(key []byte) (*big.Int, error) {
	data, err := m.db.Get(key)
	if errors.Is(err, storage.ErrNotFound) {
		return big.NewInt(0), nil
	}
	if err != nil {
		return nil, err
	}
	value := new(big.Int)
	if err := rlp.DecodeBytes(data, value); err != nil {
		return nil, err
	}
	return value, nil
}

func (m *Manager) writeBigInt(key []byte, value *big.Int) error {
	if value == nil {
		value = big.NewInt(0)
	}
	if value.Sign() < 0 {
		return fmt.Errorf("state: negative value")
	}
	encoded, err := rlp.EncodeToBytes(value)
	if err != nil {
		return err
	}
	return m.db.Put(key, encoded)
}

func (m *Manager) loadUint64(key []byte) (uint64, bool, error) {
	data, err := m.db.Get(key)
	if errors.Is(err, storage.ErrNotFound) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, err
	}
	var value uint64
	if err := rlp.DecodeBytes(data, &value); err != nil {
		return 0, false, err
	}
	return value, true, nil
}

func (m *Manager) writeUint64(key []byte, value uint64) error {
	encoded, err := rlp.EncodeToBytes(value)
	if err != nil {
		return err
	}
	return m.db.Put(key, encoded)
}

func (m *Manager) loadAddress(key []byte) ([20]byte, error) {
	var addr [20]byte
	data, err := m.db.Get(key)
	if errors.Is(err, storage.ErrNotFound) {
		return addr, nil
	}
	if err != nil {
		return addr, err
	}
	if len(data) != len(addr) {
		return addr, fmt.Errorf("state: malformed address record")
	}
	copy(addr[:], data)
	return addr, nil
}

func (m *Manager) writeAddress(key []byte, addr [20]byte) error {
	return m.db.Put(key, addr[:])
}

// --- Token ledger ---

type storedAccount struct {
	Nonce   uint64
	Balance *big.Int
}

func accountKey(addr [20]byte) []byte {
	return prefixedKey(accountPrefix, addr[:])
}

// GetAccount loads the ledger account for the address, returning a fresh
// zero-balance account when none is stored.
func (m *Manager) GetAccount(addr [20]byte) (*types.Account, error) {
	data, err := m.db.Get(accountKey(addr))
	if errors.Is(err, storage.ErrNotFound) {
		return types.NewAccount(), nil
	}
	if err != nil {
		return nil, err
	}
	stored := new(storedAccount)
	if err := rlp.DecodeBytes(data, stored); err != nil {
		return nil, err
	}
	account := &types.Account{Nonce: stored.Nonce, Balance: big.NewInt(0)}
	if stored.Balance != nil {
		account.Balance = new(big.Int).Set(stored.Balance)
	}
	return account, nil
}

// PutAccount persists the ledger account for the address.
func (m *Manager) PutAccount(addr [20]byte, account *types.Account) error {
	if account == nil {
		return fmt.Errorf("state: nil account")
	}
	balance := big.NewInt(0)
	if account.Balance != nil {
		if account.Balance.Sign() < 0 {
			return fmt.Errorf("state: negative balance")
		}
		balance = new(big.Int).Set(account.Balance)
	}
	encoded, err := rlp.EncodeToBytes(&storedAccount{Nonce: account.Nonce, Balance: balance})
	if err != nil {
		return err
	}
	return m.db.Put(accountKey(addr), encoded)
}

// Mint credits freshly issued tokens to the address. Used for genesis
// allocations configured at startup.
func (m *Manager) Mint(to [20]byte, amount *big.Int) error {
	if amount == nil || amount.Sign() <= 0 {
		return fmt.Errorf("state: mint amount must be positive")
	}
	account, err := m.GetAccount(to)
	if err != nil {
		return err
	}
	account.Balance = new(big.Int).Add(account.Balance, amount)
	return m.PutAccount(to, account)
}

// Transfer moves tokens between ledger accounts. It satisfies the engine's
// Token capability.
func (m *Manager) Transfer(from, to [20]byte, amount *big.Int) error {
	if amount == nil || amount.Sign() < 0 {
		return fmt.Errorf("state: negative transfer amount")
	}
	if amount.Sign() == 0 || from == to {
		return nil
	}
	fromAcc, err := m.GetAccount(from)
	if err != nil {
		return err
	}
	if fromAcc.Balance.Cmp(amount) < 0 {
		return ErrInsufficientBalance
	}
	toAcc, err := m.GetAccount(to)
	if err != nil {
		return err
	}
	fromAcc.Balance = new(big.Int).Sub(fromAcc.Balance, amount)
	toAcc.Balance = new(big.Int).Add(toAcc.Balance, amount)
	if err := m.PutAccount(from, fromAcc); err != nil {
		return err
	}
	if err := m.PutAccount(to, toAcc); err != nil {
		// Restore the sender so a failed write cannot burn tokens.
		fromAcc.Balance = new(big.Int).Add(fromAcc.Balance, amount)
		if restoreErr := m.PutAccount(from, fromAcc); restoreErr != nil {
			return errors.Join(err, fmt.Errorf("state: rollback sender: %w", restoreErr))
		}
		return err
	}
	return nil
}

// BalanceOf returns the ledger balance of the address.
func (m *Manager) BalanceOf(addr [20]byte) (*big.Int, error) {
	account, err := m.GetAccount(addr)
	if err != nil {
		return nil, err
	}
	return new(big.Int).Set(account.Balance), nil
}

// --- Owner and tracked balance ---

// VaultedBalance returns the tracked sum of tokens reserved for open vaults.
func (m *Manager) VaultedBalance() (*big.Int, error) {
	return m.loadBigInt(prefixedKey(vaultedBalanceKey, nil))
}

// SetVaultedBalance overwrites the tracked vaulted balance.
func (m *Manager) SetVaultedBalance(value *big.Int) error {
	return m.writeBigInt(prefixedKey(vaultedBalanceKey, nil), value)
}

// VaultOwner returns the current owner address, zero when unset.
func (m *Manager) VaultOwner() ([20]byte, error) {
	return m.loadAddress(prefixedKey(vaultOwnerKey, nil))
}

// SetVaultOwner persists the owner address.
func (m *Manager) SetVaultOwner(addr [20]byte) error {
	return m.writeAddress(prefixedKey(vaultOwnerKey, nil), addr)
}

// PendingVaultOwner returns the nominated successor, zero when none.
func (m *Manager) PendingVaultOwner() ([20]byte, error) {
	return m.loadAddress(prefixedKey(pendingVaultOwnerKey, nil))
}

// SetPendingVaultOwner persists the nominated successor; the zero address
// clears the nomination.
func (m *Manager) SetPendingVaultOwner(addr [20]byte) error {
	return m.writeAddress(prefixedKey(pendingVaultOwnerKey, nil), addr)
}

// GenesisApplied reports whether the configured genesis balances were already
// minted on a previous start.
func (m *Manager) GenesisApplied() (bool, error) {
	return m.db.Has(prefixedKey(genesisAppliedKey, nil))
}

// SetGenesisApplied marks the genesis balances as minted.
func (m *Manager) SetGenesisApplied() error {
	return m.db.Put(prefixedKey(genesisAppliedKey, nil), []byte{1})
}

// --- Beneficiary registry ---

func registryMemberKey(addr [20]byte) []byte {
	return prefixedKey(registryMemberPrefix, addr[:])
}

// RegistryAdd records the address as an eligible beneficiary.
func (m *Manager) RegistryAdd(addr [20]byte) error {
	return m.db.Put(registryMemberKey(addr), []byte{1})
}

// RegistryRemove revokes the address's eligibility.
func (m *Manager) RegistryRemove(addr [20]byte) error {
	return m.db.Delete(registryMemberKey(addr))
}

// BeneficiaryExists reports whether the address is an eligible beneficiary.
// It satisfies the engine's BeneficiaryRegistry capability.
func (m *Manager) BeneficiaryExists(addr [20]byte) (bool, error) {
	return m.db.Has(registryMemberKey(addr))
}
