package state

import (
	"errors"
	"math/big"
	"testing"

	"benevault/native/vaults"
	"benevault/storage"
)

func newTestManager(t *testing.T, count int) *Manager {
	t.Helper()
	manager, err := NewManager(storage.NewMemDB(), count)
	if err != nil {
		t.Fatalf("new manager: %v", err)
	}
	return manager
}

func testAddr(fill byte) [20]byte {
	var addr [20]byte
	for i := range addr {
		addr[i] = fill
	}
	return addr
}

func TestNewManagerValidation(t *testing.T) {
	if _, err := NewManager(nil, 2); err == nil {
		t.Fatal("nil database must be rejected")
	}
	if _, err := NewManager(storage.NewMemDB(), 0); err == nil {
		t.Fatal("zero vault count must be rejected")
	}

	db := storage.NewMemDB()
	if _, err := NewManager(db, 4); err != nil {
		t.Fatalf("first open: %v", err)
	}
	if _, err := NewManager(db, 4); err != nil {
		t.Fatalf("re-open with same count: %v", err)
	}
	if _, err := NewManager(db, 8); err == nil {
		t.Fatal("vault count mismatch must be rejected")
	}
}

func TestVaultRoundTrip(t *testing.T) {
	manager := newTestManager(t, 4)

	if _, ok, err := manager.VaultGet(1); err != nil || ok {
		t.Fatalf("empty slot should report absent: ok=%v err=%v", ok, err)
	}

	vault := &vaults.Vault{
		ID:             1,
		Generation:     2,
		Status:         vaults.VaultOpen,
		TotalAllocated: big.NewInt(1000),
		CurrentBalance: big.NewInt(250),
		UnclaimedShare: big.NewInt(60),
		MerkleRoot:     [32]byte{0xAB, 0xCD},
		EndTime:        123456789,
	}
	if err := manager.VaultPut(vault); err != nil {
		t.Fatalf("put: %v", err)
	}
	loaded, ok, err := manager.VaultGet(1)
	if err != nil || !ok {
		t.Fatalf("get: ok=%v err=%v", ok, err)
	}
	if loaded.ID != vault.ID || loaded.Generation != vault.Generation || loaded.Status != vault.Status {
		t.Fatalf("record identity wrong: %+v", loaded)
	}
	if loaded.TotalAllocated.Cmp(vault.TotalAllocated) != 0 ||
		loaded.CurrentBalance.Cmp(vault.CurrentBalance) != 0 ||
		loaded.UnclaimedShare.Cmp(vault.UnclaimedShare) != 0 {
		t.Fatalf("accounting fields wrong: %+v", loaded)
	}
	if loaded.MerkleRoot != vault.MerkleRoot || loaded.EndTime != vault.EndTime {
		t.Fatalf("commitment fields wrong: %+v", loaded)
	}

	vault.ID = 9
	if err := manager.VaultPut(vault); err == nil {
		t.Fatal("out-of-range id must be rejected")
	}
	if err := manager.VaultPut(nil); err == nil {
		t.Fatal("nil vault must be rejected")
	}
}

func TestClaimMarkersArePerGeneration(t *testing.T) {
	manager := newTestManager(t, 2)
	beneficiary := testAddr(0xA1)

	claimed, err := manager.ClaimedHas(0, 1, beneficiary)
	if err != nil || claimed {
		t.Fatalf("fresh marker should be absent: %v %v", claimed, err)
	}
	if err := manager.ClaimedSet(0, 1, beneficiary); err != nil {
		t.Fatalf("set: %v", err)
	}
	claimed, err = manager.ClaimedHas(0, 1, beneficiary)
	if err != nil || !claimed {
		t.Fatalf("marker should be present: %v %v", claimed, err)
	}
	// A new generation of the slot starts with a clean claim set.
	claimed, err = manager.ClaimedHas(0, 2, beneficiary)
	if err != nil || claimed {
		t.Fatalf("next generation should be clean: %v %v", claimed, err)
	}
	// Other slots are unaffected.
	claimed, err = manager.ClaimedHas(1, 1, beneficiary)
	if err != nil || claimed {
		t.Fatalf("other slot should be clean: %v %v", claimed, err)
	}
}

func TestLedgerTransfer(t *testing.T) {
	manager := newTestManager(t, 1)
	alice := testAddr(0x01)
	bob := testAddr(0x02)

	if err := manager.Mint(alice, big.NewInt(100)); err != nil {
		t.Fatalf("mint: %v", err)
	}
	if err := manager.Mint(alice, big.NewInt(0)); err == nil {
		t.Fatal("zero mint must be rejected")
	}

	if err := manager.Transfer(alice, bob, big.NewInt(150)); !errors.Is(err, ErrInsufficientBalance) {
		t.Fatalf("expected ErrInsufficientBalance, got %v", err)
	}
	if err := manager.Transfer(alice, bob, big.NewInt(40)); err != nil {
		t.Fatalf("transfer: %v", err)
	}
	aliceBal, err := manager.BalanceOf(alice)
	if err != nil || aliceBal.Cmp(big.NewInt(60)) != 0 {
		t.Fatalf("alice balance wrong: %s %v", aliceBal, err)
	}
	bobBal, err := manager.BalanceOf(bob)
	if err != nil || bobBal.Cmp(big.NewInt(40)) != 0 {
		t.Fatalf("bob balance wrong: %s %v", bobBal, err)
	}

	// Zero-amount and self transfers are no-ops.
	if err := manager.Transfer(alice, bob, big.NewInt(0)); err != nil {
		t.Fatalf("zero transfer: %v", err)
	}
	if err := manager.Transfer(alice, alice, big.NewInt(10)); err != nil {
		t.Fatalf("self transfer: %v", err)
	}
	aliceBal, _ = manager.BalanceOf(alice)
	if aliceBal.Cmp(big.NewInt(60)) != 0 {
		t.Fatalf("no-op transfers must not move funds: %s", aliceBal)
	}

	if err := manager.Transfer(alice, bob, big.NewInt(-1)); err == nil {
		t.Fatal("negative transfer must be rejected")
	}
}

func TestVaultedBalancePersistence(t *testing.T) {
	manager := newTestManager(t, 1)

	balance, err := manager.VaultedBalance()
	if err != nil || balance.Sign() != 0 {
		t.Fatalf("fresh vaulted balance should be zero: %s %v", balance, err)
	}
	if err := manager.SetVaultedBalance(big.NewInt(777)); err != nil {
		t.Fatalf("set: %v", err)
	}
	balance, err = manager.VaultedBalance()
	if err != nil || balance.Cmp(big.NewInt(777)) != 0 {
		t.Fatalf("vaulted balance wrong: %s %v", balance, err)
	}
	if err := manager.SetVaultedBalance(big.NewInt(-1)); err == nil {
		t.Fatal("negative vaulted balance must be rejected")
	}
}

func TestOwnerPersistence(t *testing.T) {
	manager := newTestManager(t, 1)

	owner, err := manager.VaultOwner()
	if err != nil || owner != ([20]byte{}) {
		t.Fatalf("fresh owner should be zero: %v %v", owner, err)
	}
	if err := manager.SetVaultOwner(testAddr(0x11)); err != nil {
		t.Fatalf("set owner: %v", err)
	}
	owner, err = manager.VaultOwner()
	if err != nil || owner != testAddr(0x11) {
		t.Fatalf("owner wrong: %v %v", owner, err)
	}

	if err := manager.SetPendingVaultOwner(testAddr(0x22)); err != nil {
		t.Fatalf("set pending: %v", err)
	}
	pending, err := manager.PendingVaultOwner()
	if err != nil || pending != testAddr(0x22) {
		t.Fatalf("pending wrong: %v %v", pending, err)
	}
}

func TestRegistryMembership(t *testing.T) {
	manager := newTestManager(t, 1)
	member := testAddr(0x33)

	exists, err := manager.BeneficiaryExists(member)
	if err != nil || exists {
		t.Fatalf("fresh member should be absent: %v %v", exists, err)
	}
	if err := manager.RegistryAdd(member); err != nil {
		t.Fatalf("add: %v", err)
	}
	exists, err = manager.BeneficiaryExists(member)
	if err != nil || !exists {
		t.Fatalf("member should exist: %v %v", exists, err)
	}
	if err := manager.RegistryRemove(member); err != nil {
		t.Fatalf("remove: %v", err)
	}
	exists, err = manager.BeneficiaryExists(member)
	if err != nil || exists {
		t.Fatalf("removed member should be absent: %v %v", exists, err)
	}
}

func TestGenesisAppliedFlag(t *testing.T) {
	manager := newTestManager(t, 1)

	applied, err := manager.GenesisApplied()
	if err != nil || applied {
		t.Fatalf("fresh flag should be false: %v %v", applied, err)
	}
	if err := manager.SetGenesisApplied(); err != nil {
		t.Fatalf("set: %v", err)
	}
	applied, err = manager.GenesisApplied()
	if err != nil || !applied {
		t.Fatalf("flag should be set: %v %v", applied, err)
	}
}
