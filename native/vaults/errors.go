package vaults

import "errors"

// Reason strings are part of the external contract: RPC clients and the test
// harness match on them verbatim.
var (
	ErrNotOwner             = errors.New("Caller is not owner")
	ErrNotNominated         = errors.New("Caller is not nominated owner")
	ErrInvalidVaultID       = errors.New("Invalid vault id")
	ErrUninitializedVault   = errors.New("Uninitialized vault slot")
	ErrEndTimeNotFuture     = errors.New("End time must be in the future")
	ErrVaultOpen            = errors.New("Vault is open")
	ErrVaultNotInitialized  = errors.New("Vault must be initialized")
	ErrVaultNotOpen         = errors.New("Vault must be open")
	ErrVaultNotEnded        = errors.New("Vault has not ended")
	ErrNoOpenVaults         = errors.New("No open vaults")
	ErrNothingToDistribute  = errors.New("Nothing to distribute")
	ErrSenderNotBeneficiary = errors.New("Sender must be beneficiary")
	ErrNoReward             = errors.New("No reward")
	ErrBeneficiaryUnknown   = errors.New("Beneficiary does not exist")
	ErrInvalidClaim         = errors.New("Invalid claim")
	ErrAlreadyClaimed       = errors.New("Already claimed")
	ErrNilRegistry          = errors.New("vaults: registry not configured")
	ErrNilToken             = errors.New("vaults: token not configured")
	ErrNilState             = errors.New("vaults: state not configured")
)
