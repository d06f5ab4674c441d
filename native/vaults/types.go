package vaults

import (
	"fmt"
	"math/big"
)

// VaultStatus represents the lifecycle states of a single vault slot. The
// lifecycle only moves forward: Uninitialized -> Initialized -> Open ->
// Closed. A slot that is not Open may be re-initialized, which starts a new
// generation of the same slot.
type VaultStatus uint8

const (
	VaultUninitialized VaultStatus = iota
	VaultInitialized
	VaultOpen
	VaultClosed
)

// Valid reports whether the status value is within the supported range.
func (s VaultStatus) Valid() bool {
	switch s {
	case VaultUninitialized, VaultInitialized, VaultOpen, VaultClosed:
		return true
	default:
		return false
	}
}

// String returns the canonical lowercase label for the status.
func (s VaultStatus) String() string {
	switch s {
	case VaultUninitialized:
		return "uninitialized"
	case VaultInitialized:
		return "initialized"
	case VaultOpen:
		return "open"
	case VaultClosed:
		return "closed"
	default:
		return fmt.Sprintf("unknown(%d)", uint8(s))
	}
}

// Vault captures the accounting record of one reward vault slot.
//
// TotalAllocated only ever grows within a generation; CurrentBalance shrinks
// as beneficiaries claim and is zeroed on close. UnclaimedShare starts at
// AllocationDenominator and shrinks by the exact share of every successful
// claim. Generation increments each time the slot is re-initialized, which
// retires every claim marker of the previous generation without iterating
// the claim set.
type Vault struct {
	ID             uint32
	Generation     uint64
	Status         VaultStatus
	TotalAllocated *big.Int
	CurrentBalance *big.Int
	UnclaimedShare *big.Int
	MerkleRoot     [32]byte
	EndTime        int64
}

// Clone returns a deep copy of the vault so callers can safely mutate the
// copy without affecting the stored instance.
func (v *Vault) Clone() *Vault {
	if v == nil {
		return nil
	}
	clone := *v
	clone.TotalAllocated = cloneBigInt(v.TotalAllocated)
	clone.CurrentBalance = cloneBigInt(v.CurrentBalance)
	clone.UnclaimedShare = cloneBigInt(v.UnclaimedShare)
	return &clone
}

// SanitizeVault validates the supplied record and returns a cloned instance
// with non-nil accounting fields. The original value is not mutated.
func SanitizeVault(v *Vault) (*Vault, error) {
	if v == nil {
		return nil, fmt.Errorf("vaults: nil vault")
	}
	if !v.Status.Valid() {
		return nil, fmt.Errorf("vaults: invalid status: %d", v.Status)
	}
	clone := v.Clone()
	if clone.TotalAllocated.Sign() < 0 || clone.CurrentBalance.Sign() < 0 || clone.UnclaimedShare.Sign() < 0 {
		return nil, fmt.Errorf("vaults: negative accounting field")
	}
	if clone.CurrentBalance.Cmp(clone.TotalAllocated) > 0 {
		return nil, fmt.Errorf("vaults: current balance exceeds total allocated")
	}
	if clone.UnclaimedShare.Cmp(AllocationDenominator()) > 0 {
		return nil, fmt.Errorf("vaults: unclaimed share exceeds denominator")
	}
	return clone, nil
}

func cloneBigInt(v *big.Int) *big.Int {
	if v == nil {
		return big.NewInt(0)
	}
	return new(big.Int).Set(v)
}
