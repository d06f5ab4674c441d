package vaults

import (
	"encoding/hex"
	"math/big"
	"strconv"

	"benevault/core/types"
)

const (
	EventTypeVaultInitialized   = "vaults.initialized"
	EventTypeVaultOpened        = "vaults.opened"
	EventTypeVaultClosed        = "vaults.closed"
	EventTypeRewardAllocated    = "vaults.reward_allocated"
	EventTypeRewardsDistributed = "vaults.rewards_distributed"
	EventTypeRewardClaimed      = "vaults.reward_claimed"
	EventTypeRegistryChanged    = "vaults.registry_changed"
	EventTypeOwnerNominated     = "vaults.owner_nominated"
	EventTypeOwnerChanged       = "vaults.owner_changed"
)

// NewInitializedEvent returns the canonical payload emitted when a vault slot
// is (re-)initialized with a fresh allocation root.
func NewInitializedEvent(v *Vault) *types.Event {
	attrs := vaultAttributes(v)
	if v != nil {
		attrs["merkleRoot"] = hex.EncodeToString(v.MerkleRoot[:])
		attrs["endTime"] = strconv.FormatInt(v.EndTime, 10)
	}
	return &types.Event{Type: EventTypeVaultInitialized, Attributes: attrs}
}

// NewOpenedEvent returns the canonical payload emitted when a vault opens for
// distribution and claims.
func NewOpenedEvent(v *Vault) *types.Event {
	return &types.Event{Type: EventTypeVaultOpened, Attributes: vaultAttributes(v)}
}

// NewClosedEvent returns the canonical payload emitted when a vault closes.
// The remainder attribute records the balance redirected out of the vault and
// the target attribute where it went.
func NewClosedEvent(v *Vault, remainder *big.Int, target string) *types.Event {
	attrs := vaultAttributes(v)
	attrs["remainder"] = bigString(remainder)
	attrs["target"] = target
	return &types.Event{Type: EventTypeVaultClosed, Attributes: attrs}
}

// NewRewardAllocatedEvent returns the per-vault payload emitted during a
// distribution round.
func NewRewardAllocatedEvent(v *Vault, amount *big.Int) *types.Event {
	attrs := vaultAttributes(v)
	attrs["amount"] = bigString(amount)
	return &types.Event{Type: EventTypeRewardAllocated, Attributes: attrs}
}

// NewRewardsDistributedEvent returns the summary payload for one distribution
// round.
func NewRewardsDistributedEvent(total *big.Int, openVaults int) *types.Event {
	return &types.Event{Type: EventTypeRewardsDistributed, Attributes: map[string]string{
		"totalAmount": bigString(total),
		"openVaults":  strconv.Itoa(openVaults),
	}}
}

// NewRewardClaimedEvent returns the payload emitted when a beneficiary
// successfully claims their entitlement.
func NewRewardClaimedEvent(v *Vault, beneficiary [20]byte, amount, share *big.Int) *types.Event {
	attrs := vaultAttributes(v)
	attrs["beneficiary"] = hex.EncodeToString(beneficiary[:])
	attrs["amount"] = bigString(amount)
	attrs["share"] = bigString(share)
	return &types.Event{Type: EventTypeRewardClaimed, Attributes: attrs}
}

// NewRegistryChangedEvent returns the payload emitted when the beneficiary
// registry reference is swapped.
func NewRegistryChangedEvent(oldAddr, newAddr [20]byte) *types.Event {
	return &types.Event{Type: EventTypeRegistryChanged, Attributes: map[string]string{
		"old": hex.EncodeToString(oldAddr[:]),
		"new": hex.EncodeToString(newAddr[:]),
	}}
}

// NewOwnerNominatedEvent returns the payload emitted when the current owner
// nominates a successor.
func NewOwnerNominatedEvent(owner, nominee [20]byte) *types.Event {
	return &types.Event{Type: EventTypeOwnerNominated, Attributes: map[string]string{
		"owner":   hex.EncodeToString(owner[:]),
		"nominee": hex.EncodeToString(nominee[:]),
	}}
}

// NewOwnerChangedEvent returns the payload emitted once a nominated owner
// accepts ownership.
func NewOwnerChangedEvent(oldOwner, newOwner [20]byte) *types.Event {
	return &types.Event{Type: EventTypeOwnerChanged, Attributes: map[string]string{
		"old": hex.EncodeToString(oldOwner[:]),
		"new": hex.EncodeToString(newOwner[:]),
	}}
}

func vaultAttributes(v *Vault) map[string]string {
	attrs := make(map[string]string)
	if v == nil {
		return attrs
	}
	attrs["id"] = strconv.FormatUint(uint64(v.ID), 10)
	attrs["generation"] = strconv.FormatUint(v.Generation, 10)
	attrs["status"] = v.Status.String()
	attrs["totalAllocated"] = bigString(v.TotalAllocated)
	attrs["currentBalance"] = bigString(v.CurrentBalance)
	attrs["unclaimedShare"] = bigString(v.UnclaimedShare)
	return attrs
}

func bigString(v *big.Int) string {
	if v == nil {
		return "0"
	}
	return v.String()
}
