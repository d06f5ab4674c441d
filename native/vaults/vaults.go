// Package vaults implements the beneficiary reward vault engine: a fixed set
// of reward vaults that accept token deposits, split them pro rata across the
// currently open vaults, and pay each beneficiary their proportional share
// exactly once against a Merkle-committed allocation set.
package vaults

import (
	"math/big"

	ethcrypto "github.com/ethereum/go-ethereum/crypto"
)

// moduleAddressSeed derives the ledger address that holds all vaulted tokens.
const moduleAddressSeed = "benevault/native/vaults/module"

// ModuleAddress returns the ledger address reserved for the vault module.
// Deposits land here and claims pay out from here.
func ModuleAddress() [20]byte {
	hash := ethcrypto.Keccak256([]byte(moduleAddressSeed))
	var addr [20]byte
	copy(addr[:], hash[12:])
	return addr
}

// AllocationDenominator returns the fixed-point total every allocation set
// sums to: 100 units scaled by 10^18. A fresh vault starts with this much
// unclaimed share.
func AllocationDenominator() *big.Int {
	denom := new(big.Int).Exp(big.NewInt(10), big.NewInt(18), nil)
	return denom.Mul(denom, big.NewInt(100))
}
