package vaults

import (
	"math/big"
	"strconv"
	"time"

	"benevault/core/events"
	"benevault/core/types"
)

// EngineState describes the persistence the vault engine needs from the
// surrounding state implementation. The claim markers are keyed by vault
// generation so re-initializing a slot retires every marker of the previous
// generation without an iteration.
type EngineState interface {
	VaultCount() int
	VaultGet(id uint32) (*Vault, bool, error)
	VaultPut(*Vault) error
	ClaimedHas(id uint32, generation uint64, beneficiary [20]byte) (bool, error)
	ClaimedSet(id uint32, generation uint64, beneficiary [20]byte) error
	VaultedBalance() (*big.Int, error)
	SetVaultedBalance(*big.Int) error
	VaultOwner() ([20]byte, error)
	SetVaultOwner([20]byte) error
	PendingVaultOwner() ([20]byte, error)
	SetPendingVaultOwner([20]byte) error
}

// Token is the narrow transfer capability the engine requires. Deposits are
// never pushed to the engine; it derives them by polling BalanceOf on the
// module address.
type Token interface {
	Transfer(from, to [20]byte, amount *big.Int) error
	BalanceOf(addr [20]byte) (*big.Int, error)
}

// BeneficiaryRegistry confirms claim eligibility at settlement time.
type BeneficiaryRegistry interface {
	BeneficiaryExists(addr [20]byte) (bool, error)
}

type vaultEvent struct {
	evt *types.Event
}

func (e vaultEvent) EventType() string {
	if e.evt == nil {
		return ""
	}
	return e.evt.Type
}

func (e vaultEvent) Event() *types.Event { return e.evt }

// Engine wires the vault accounting and claim settlement logic with external
// state, the token ledger, the beneficiary registry and an event emitter.
// Every mutating operation is atomic: it either fully applies or returns an
// error leaving the stored state untouched.
type Engine struct {
	state        EngineState
	token        Token
	registry     BeneficiaryRegistry
	registryAddr [20]byte
	emitter      events.Emitter
	treasury     [20]byte
	nowFn        func() int64
}

// NewEngine creates a vault engine with a no-op emitter. Callers can override
// the emitter via SetEmitter.
func NewEngine() *Engine {
	return &Engine{
		emitter: events.NoopEmitter{},
		nowFn:   func() int64 { return time.Now().Unix() },
	}
}

// SetState configures the state backend used by the engine.
func (e *Engine) SetState(state EngineState) { e.state = state }

// SetToken configures the token transfer capability.
func (e *Engine) SetToken(token Token) { e.token = token }

// SetTreasury configures the sink that receives the remainder of a closing
// vault when no other vault is open.
func (e *Engine) SetTreasury(addr [20]byte) { e.treasury = addr }

// SetRegistry configures the beneficiary registry capability. The address is
// recorded for registry-change events only.
func (e *Engine) SetRegistry(registry BeneficiaryRegistry, addr [20]byte) {
	e.registry = registry
	e.registryAddr = addr
}

// SetEmitter configures the event emitter used by the engine. Passing nil
// resets the emitter to a no-op implementation.
func (e *Engine) SetEmitter(emitter events.Emitter) {
	if emitter == nil {
		e.emitter = events.NoopEmitter{}
		return
	}
	e.emitter = emitter
}

// SetNowFunc overrides the time source used by the engine. Primarily intended
// for tests to provide deterministic timestamps.
func (e *Engine) SetNowFunc(now func() int64) {
	if now == nil {
		e.nowFn = func() int64 { return time.Now().Unix() }
		return
	}
	e.nowFn = now
}

func (e *Engine) emit(event *types.Event) {
	if e == nil || e.emitter == nil || event == nil {
		return
	}
	e.emitter.Emit(vaultEvent{evt: event})
}

func (e *Engine) now() int64 {
	if e == nil || e.nowFn == nil {
		return time.Now().Unix()
	}
	return e.nowFn()
}

// Owner returns the current vault owner address.
func (e *Engine) Owner() ([20]byte, error) {
	if e == nil || e.state == nil {
		return [20]byte{}, ErrNilState
	}
	return e.state.VaultOwner()
}

func (e *Engine) requireOwner(caller [20]byte) error {
	owner, err := e.Owner()
	if err != nil {
		return err
	}
	if owner == ([20]byte{}) || caller != owner {
		return ErrNotOwner
	}
	return nil
}

func (e *Engine) loadVault(id uint32) (*Vault, error) {
	if e == nil || e.state == nil {
		return nil, ErrNilState
	}
	if int(id) >= e.state.VaultCount() {
		return nil, ErrInvalidVaultID
	}
	vault, ok, err := e.state.VaultGet(id)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrUninitializedVault
	}
	return vault, nil
}

// GetVault returns a snapshot of the vault record at the given slot.
func (e *Engine) GetVault(id uint32) (*Vault, error) {
	vault, err := e.loadVault(id)
	if err != nil {
		return nil, err
	}
	return vault.Clone(), nil
}

// InitializeVault resets the slot with a fresh allocation root and end time,
// starting a new generation. The slot must not currently be open, and the end
// time must lie strictly in the future.
func (e *Engine) InitializeVault(caller [20]byte, id uint32, endTime int64, root [32]byte) (*Vault, error) {
	if e == nil || e.state == nil {
		return nil, ErrNilState
	}
	if err := e.requireOwner(caller); err != nil {
		return nil, err
	}
	if int(id) >= e.state.VaultCount() {
		return nil, ErrInvalidVaultID
	}
	if endTime <= e.now() {
		return nil, ErrEndTimeNotFuture
	}
	generation := uint64(0)
	existing, ok, err := e.state.VaultGet(id)
	if err != nil {
		return nil, err
	}
	if ok {
		if existing.Status == VaultOpen {
			return nil, ErrVaultOpen
		}
		generation = existing.Generation
	}
	vault := &Vault{
		ID:             id,
		Generation:     generation + 1,
		Status:         VaultInitialized,
		TotalAllocated: big.NewInt(0),
		CurrentBalance: big.NewInt(0),
		UnclaimedShare: AllocationDenominator(),
		MerkleRoot:     root,
		EndTime:        endTime,
	}
	if err := e.state.VaultPut(vault); err != nil {
		return nil, err
	}
	e.emit(NewInitializedEvent(vault))
	return vault.Clone(), nil
}

// OpenVault transitions an initialized vault into the open state, making it
// eligible for distribution rounds and claims.
func (e *Engine) OpenVault(caller [20]byte, id uint32) error {
	if err := e.requireOwner(caller); err != nil {
		return err
	}
	vault, err := e.loadVault(id)
	if err != nil {
		return err
	}
	if vault.Status != VaultInitialized {
		return ErrVaultNotInitialized
	}
	vault.Status = VaultOpen
	if err := e.state.VaultPut(vault); err != nil {
		return err
	}
	e.emit(NewOpenedEvent(vault))
	return nil
}

// CloseVault closes an open vault whose end time has passed. The remaining
// balance is redirected to the next open vault, scanning ascending slot
// indices from id+1 with wrap-around. When no other vault is open the
// remainder is transferred out to the treasury sink instead.
func (e *Engine) CloseVault(caller [20]byte, id uint32) error {
	if err := e.requireOwner(caller); err != nil {
		return err
	}
	vault, err := e.loadVault(id)
	if err != nil {
		return err
	}
	if vault.Status != VaultOpen {
		return ErrVaultNotOpen
	}
	if e.now() < vault.EndTime {
		return ErrVaultNotEnded
	}
	remainder := cloneBigInt(vault.CurrentBalance)
	target, err := e.nextOpenVault(id)
	if err != nil {
		return err
	}
	targetLabel := "none"
	if remainder.Sign() > 0 {
		switch {
		case target != nil:
			target.TotalAllocated = new(big.Int).Add(target.TotalAllocated, remainder)
			target.CurrentBalance = new(big.Int).Add(target.CurrentBalance, remainder)
			if err := e.state.VaultPut(target); err != nil {
				return err
			}
			targetLabel = "vault:" + strconv.FormatUint(uint64(target.ID), 10)
		default:
			if e.token == nil {
				return ErrNilToken
			}
			if err := e.token.Transfer(ModuleAddress(), e.treasury, remainder); err != nil {
				return err
			}
			tracked, err := e.state.VaultedBalance()
			if err != nil {
				return err
			}
			if err := e.state.SetVaultedBalance(new(big.Int).Sub(tracked, remainder)); err != nil {
				return err
			}
			targetLabel = "treasury"
		}
	}
	vault.Status = VaultClosed
	vault.CurrentBalance = big.NewInt(0)
	if err := e.state.VaultPut(vault); err != nil {
		return err
	}
	e.emit(NewClosedEvent(vault, remainder, targetLabel))
	return nil
}

func (e *Engine) nextOpenVault(from uint32) (*Vault, error) {
	count := uint32(e.state.VaultCount())
	for step := uint32(1); step < count; step++ {
		idx := (from + step) % count
		candidate, ok, err := e.state.VaultGet(idx)
		if err != nil {
			return nil, err
		}
		if ok && candidate.Status == VaultOpen {
			return candidate, nil
		}
	}
	return nil, nil
}

// DistributeRewards splits the tokens received since the last round across
// every open vault, weighted by each vault's remaining unclaimed share. The
// integer-division remainder goes to the open vault with the highest slot
// index, so a round always distributes the delta exactly. Returns the total
// amount distributed.
func (e *Engine) DistributeRewards() (*big.Int, error) {
	if e == nil || e.state == nil {
		return nil, ErrNilState
	}
	if e.token == nil {
		return nil, ErrNilToken
	}
	open := make([]*Vault, 0, e.state.VaultCount())
	for id := 0; id < e.state.VaultCount(); id++ {
		vault, ok, err := e.state.VaultGet(uint32(id))
		if err != nil {
			return nil, err
		}
		if ok && vault.Status == VaultOpen {
			open = append(open, vault)
		}
	}
	if len(open) == 0 {
		return nil, ErrNoOpenVaults
	}
	held, err := e.token.BalanceOf(ModuleAddress())
	if err != nil {
		return nil, err
	}
	tracked, err := e.state.VaultedBalance()
	if err != nil {
		return nil, err
	}
	delta := new(big.Int).Sub(held, tracked)
	if delta.Sign() <= 0 {
		return nil, ErrNothingToDistribute
	}
	totalWeight := big.NewInt(0)
	for _, vault := range open {
		totalWeight.Add(totalWeight, vault.UnclaimedShare)
	}
	if totalWeight.Sign() == 0 {
		return nil, ErrNothingToDistribute
	}
	portions := make([]*big.Int, len(open))
	assigned := big.NewInt(0)
	for i, vault := range open {
		portion := new(big.Int).Mul(delta, vault.UnclaimedShare)
		portion.Quo(portion, totalWeight)
		portions[i] = portion
		assigned.Add(assigned, portion)
	}
	// Flooring leaves a remainder smaller than the number of open vaults. It
	// lands on the highest-index open vault that still has unclaimed share, so
	// dust never parks in a fully claimed vault.
	remainderIdx := len(portions) - 1
	for i := len(open) - 1; i >= 0; i-- {
		if open[i].UnclaimedShare.Sign() > 0 {
			remainderIdx = i
			break
		}
	}
	portions[remainderIdx].Add(portions[remainderIdx], new(big.Int).Sub(delta, assigned))
	for i, vault := range open {
		vault.TotalAllocated = new(big.Int).Add(vault.TotalAllocated, portions[i])
		vault.CurrentBalance = new(big.Int).Add(vault.CurrentBalance, portions[i])
		if err := e.state.VaultPut(vault); err != nil {
			return nil, err
		}
		e.emit(NewRewardAllocatedEvent(vault, portions[i]))
	}
	if err := e.state.SetVaultedBalance(held); err != nil {
		return nil, err
	}
	e.emit(NewRewardsDistributedEvent(delta, len(open)))
	return delta, nil
}

// VerifyClaim recomputes the allocation leaf for (beneficiary, share) and
// walks the proof path against the vault's stored root. Read-only.
func (e *Engine) VerifyClaim(id uint32, proof [][32]byte, beneficiary [20]byte, share *big.Int) (bool, error) {
	vault, err := e.loadVault(id)
	if err != nil {
		return false, err
	}
	leaf, err := LeafHash(beneficiary, share)
	if err != nil {
		return false, nil
	}
	return VerifyProof(vault.MerkleRoot, leaf, proof), nil
}

// ClaimReward settles a beneficiary's proportional entitlement from the
// vault: entitlement = CurrentBalance * share / UnclaimedShare. Computing
// against the live balance and the live remaining share, rather than a
// snapshot, keeps payouts correct while new deposits keep arriving between
// claims.
func (e *Engine) ClaimReward(caller [20]byte, id uint32, proof [][32]byte, beneficiary [20]byte, share *big.Int) (*big.Int, error) {
	if e == nil || e.state == nil {
		return nil, ErrNilState
	}
	if e.token == nil {
		return nil, ErrNilToken
	}
	if e.registry == nil {
		return nil, ErrNilRegistry
	}
	vault, err := e.loadVault(id)
	if err != nil {
		return nil, err
	}
	if caller != beneficiary {
		return nil, ErrSenderNotBeneficiary
	}
	if vault.CurrentBalance.Sign() == 0 {
		return nil, ErrNoReward
	}
	exists, err := e.registry.BeneficiaryExists(beneficiary)
	if err != nil {
		return nil, err
	}
	if !exists {
		return nil, ErrBeneficiaryUnknown
	}
	if share == nil || share.Sign() <= 0 || share.Cmp(vault.UnclaimedShare) > 0 {
		return nil, ErrInvalidClaim
	}
	leaf, err := LeafHash(beneficiary, share)
	if err != nil {
		return nil, ErrInvalidClaim
	}
	if !VerifyProof(vault.MerkleRoot, leaf, proof) {
		return nil, ErrInvalidClaim
	}
	claimed, err := e.state.ClaimedHas(id, vault.Generation, beneficiary)
	if err != nil {
		return nil, err
	}
	if claimed {
		return nil, ErrAlreadyClaimed
	}
	entitlement := new(big.Int).Mul(vault.CurrentBalance, share)
	entitlement.Quo(entitlement, vault.UnclaimedShare)
	if err := e.state.ClaimedSet(id, vault.Generation, beneficiary); err != nil {
		return nil, err
	}
	vault.CurrentBalance = new(big.Int).Sub(vault.CurrentBalance, entitlement)
	vault.UnclaimedShare = new(big.Int).Sub(vault.UnclaimedShare, share)
	if err := e.state.VaultPut(vault); err != nil {
		return nil, err
	}
	tracked, err := e.state.VaultedBalance()
	if err != nil {
		return nil, err
	}
	if err := e.state.SetVaultedBalance(new(big.Int).Sub(tracked, entitlement)); err != nil {
		return nil, err
	}
	// Transfer last so a failed state write never moves tokens.
	if entitlement.Sign() > 0 {
		if err := e.token.Transfer(ModuleAddress(), beneficiary, entitlement); err != nil {
			return nil, err
		}
	}
	e.emit(NewRewardClaimedEvent(vault, beneficiary, entitlement, share))
	return entitlement, nil
}

// NominateOwner records a successor for the two-step ownership handshake.
func (e *Engine) NominateOwner(caller, nominee [20]byte) error {
	if err := e.requireOwner(caller); err != nil {
		return err
	}
	if err := e.state.SetPendingVaultOwner(nominee); err != nil {
		return err
	}
	e.emit(NewOwnerNominatedEvent(caller, nominee))
	return nil
}

// AcceptOwnership completes the handshake: only the nominated address may
// assume ownership, and the nomination is consumed.
func (e *Engine) AcceptOwnership(caller [20]byte) error {
	if e == nil || e.state == nil {
		return ErrNilState
	}
	pending, err := e.state.PendingVaultOwner()
	if err != nil {
		return err
	}
	if pending == ([20]byte{}) || caller != pending {
		return ErrNotNominated
	}
	old, err := e.state.VaultOwner()
	if err != nil {
		return err
	}
	if err := e.state.SetVaultOwner(caller); err != nil {
		return err
	}
	if err := e.state.SetPendingVaultOwner([20]byte{}); err != nil {
		return err
	}
	e.emit(NewOwnerChangedEvent(old, caller))
	return nil
}

// SetBeneficiaryRegistry swaps the registry capability used for claim
// eligibility checks.
func (e *Engine) SetBeneficiaryRegistry(caller [20]byte, registry BeneficiaryRegistry, addr [20]byte) error {
	if err := e.requireOwner(caller); err != nil {
		return err
	}
	if registry == nil {
		return ErrNilRegistry
	}
	old := e.registryAddr
	e.registry = registry
	e.registryAddr = addr
	e.emit(NewRegistryChangedEvent(old, addr))
	return nil
}
