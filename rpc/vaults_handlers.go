package rpc

import (
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"math/big"
	"net/http"
	"strings"

	"benevault/core/state"
	"benevault/core/types"
	"benevault/native/vaults"
)

const (
	codeVaultsInvalidParams = -32021
	codeVaultsNotFound      = -32022
	codeVaultsForbidden     = -32023
	codeVaultsConflict      = -32024
	codeVaultsInternal      = -32025
)

type vaultIDParams struct {
	ID uint32 `json:"id"`
}

type vaultActorParams struct {
	Caller string `json:"caller"`
	ID     uint32 `json:"id"`
}

type vaultInitializeParams struct {
	Caller  string `json:"caller"`
	ID      uint32 `json:"id"`
	EndTime int64  `json:"endTime"`
	Root    string `json:"merkleRoot"`
}

type vaultClaimParams struct {
	Caller      string   `json:"caller"`
	ID          uint32   `json:"id"`
	Beneficiary string   `json:"beneficiary"`
	Share       string   `json:"share"`
	Proof       []string `json:"proof"`
}

type vaultVerifyParams struct {
	ID          uint32   `json:"id"`
	Beneficiary string   `json:"beneficiary"`
	Share       string   `json:"share"`
	Proof       []string `json:"proof"`
}

type depositParams struct {
	From   string `json:"from"`
	Amount string `json:"amount"`
}

type registryMemberParams struct {
	Caller  string `json:"caller"`
	Address string `json:"address"`
}

type nominateOwnerParams struct {
	Caller  string `json:"caller"`
	Nominee string `json:"nominee"`
}

type acceptOwnershipParams struct {
	Caller string `json:"caller"`
}

type balanceParams struct {
	Address string `json:"address"`
}

type vaultJSON struct {
	ID             uint32 `json:"id"`
	Generation     uint64 `json:"generation"`
	Status         string `json:"status"`
	TotalAllocated string `json:"totalAllocated"`
	CurrentBalance string `json:"currentBalance"`
	UnclaimedShare string `json:"unclaimedShare"`
	MerkleRoot     string `json:"merkleRoot"`
	EndTime        int64  `json:"endTime"`
}

func vaultToJSON(v *vaults.Vault) *vaultJSON {
	if v == nil {
		return nil
	}
	return &vaultJSON{
		ID:             v.ID,
		Generation:     v.Generation,
		Status:         v.Status.String(),
		TotalAllocated: v.TotalAllocated.String(),
		CurrentBalance: v.CurrentBalance.String(),
		UnclaimedShare: v.UnclaimedShare.String(),
		MerkleRoot:     "0x" + hex.EncodeToString(v.MerkleRoot[:]),
		EndTime:        v.EndTime,
	}
}

func decodeParams(req *RPCRequest, out interface{}) error {
	if len(req.Params) != 1 {
		return fmt.Errorf("exactly one parameter object expected")
	}
	return json.Unmarshal(req.Params[0], out)
}

func parseHash(value string) ([32]byte, error) {
	var out [32]byte
	trimmed := strings.TrimSpace(value)
	trimmed = strings.TrimPrefix(strings.TrimPrefix(trimmed, "0x"), "0X")
	raw, err := hex.DecodeString(trimmed)
	if err != nil {
		return out, fmt.Errorf("malformed hash %q: %w", value, err)
	}
	if len(raw) != len(out) {
		return out, fmt.Errorf("hash must be 32 bytes, got %d", len(raw))
	}
	copy(out[:], raw)
	return out, nil
}

func parseProof(values []string) ([][32]byte, error) {
	proof := make([][32]byte, len(values))
	for i, value := range values {
		node, err := parseHash(value)
		if err != nil {
			return nil, fmt.Errorf("proof[%d]: %w", i, err)
		}
		proof[i] = node
	}
	return proof, nil
}

func parsePositiveBigInt(value string) (*big.Int, error) {
	parsed, ok := new(big.Int).SetString(strings.TrimSpace(value), 10)
	if !ok {
		return nil, fmt.Errorf("malformed integer %q", value)
	}
	if parsed.Sign() <= 0 {
		return nil, fmt.Errorf("value must be positive")
	}
	return parsed, nil
}

// vaultErrorStatus maps engine errors to an HTTP status and JSON-RPC code.
func vaultErrorStatus(err error) (int, int) {
	switch {
	case errors.Is(err, vaults.ErrNotOwner),
		errors.Is(err, vaults.ErrNotNominated),
		errors.Is(err, vaults.ErrSenderNotBeneficiary):
		return http.StatusForbidden, codeVaultsForbidden
	case errors.Is(err, vaults.ErrInvalidVaultID),
		errors.Is(err, vaults.ErrEndTimeNotFuture),
		errors.Is(err, vaults.ErrInvalidClaim):
		return http.StatusBadRequest, codeVaultsInvalidParams
	case errors.Is(err, vaults.ErrUninitializedVault):
		return http.StatusNotFound, codeVaultsNotFound
	case errors.Is(err, vaults.ErrVaultOpen),
		errors.Is(err, vaults.ErrVaultNotInitialized),
		errors.Is(err, vaults.ErrVaultNotOpen),
		errors.Is(err, vaults.ErrVaultNotEnded),
		errors.Is(err, vaults.ErrNoOpenVaults),
		errors.Is(err, vaults.ErrNothingToDistribute),
		errors.Is(err, vaults.ErrNoReward),
		errors.Is(err, vaults.ErrBeneficiaryUnknown),
		errors.Is(err, vaults.ErrAlreadyClaimed):
		return http.StatusConflict, codeVaultsConflict
	default:
		return http.StatusInternalServerError, codeVaultsInternal
	}
}

func (s *Server) writeVaultError(w http.ResponseWriter, id int, err error) string {
	status, code := vaultErrorStatus(err)
	writeError(w, status, id, code, err.Error(), nil)
	return "error"
}

func (s *Server) writeParamsError(w http.ResponseWriter, id int, err error) string {
	writeError(w, http.StatusBadRequest, id, codeVaultsInvalidParams, "invalid_params", err.Error())
	return "invalid_params"
}

func (s *Server) handleVaultGet(w http.ResponseWriter, req *RPCRequest) string {
	var params vaultIDParams
	if err := decodeParams(req, &params); err != nil {
		return s.writeParamsError(w, req.ID, err)
	}
	vault, err := s.engine.GetVault(params.ID)
	if err != nil {
		return s.writeVaultError(w, req.ID, err)
	}
	writeResult(w, req.ID, vaultToJSON(vault))
	return "ok"
}

func (s *Server) handleVaultOwner(w http.ResponseWriter, req *RPCRequest) string {
	owner, err := s.engine.Owner()
	if err != nil {
		return s.writeVaultError(w, req.ID, err)
	}
	writeResult(w, req.ID, map[string]string{"owner": types.FormatAddress(owner)})
	return "ok"
}

func (s *Server) handleVaultInitialize(w http.ResponseWriter, req *RPCRequest) string {
	var params vaultInitializeParams
	if err := decodeParams(req, &params); err != nil {
		return s.writeParamsError(w, req.ID, err)
	}
	caller, err := types.ParseAddress(params.Caller)
	if err != nil {
		return s.writeParamsError(w, req.ID, err)
	}
	root, err := parseHash(params.Root)
	if err != nil {
		return s.writeParamsError(w, req.ID, err)
	}
	vault, err := s.engine.InitializeVault(caller, params.ID, params.EndTime, root)
	if err != nil {
		return s.writeVaultError(w, req.ID, err)
	}
	writeResult(w, req.ID, vaultToJSON(vault))
	return "ok"
}

func (s *Server) handleVaultOpen(w http.ResponseWriter, req *RPCRequest) string {
	var params vaultActorParams
	if err := decodeParams(req, &params); err != nil {
		return s.writeParamsError(w, req.ID, err)
	}
	caller, err := types.ParseAddress(params.Caller)
	if err != nil {
		return s.writeParamsError(w, req.ID, err)
	}
	if err := s.engine.OpenVault(caller, params.ID); err != nil {
		return s.writeVaultError(w, req.ID, err)
	}
	writeResult(w, req.ID, map[string]string{"status": vaults.VaultOpen.String()})
	return "ok"
}

func (s *Server) handleVaultClose(w http.ResponseWriter, req *RPCRequest) string {
	var params vaultActorParams
	if err := decodeParams(req, &params); err != nil {
		return s.writeParamsError(w, req.ID, err)
	}
	caller, err := types.ParseAddress(params.Caller)
	if err != nil {
		return s.writeParamsError(w, req.ID, err)
	}
	if err := s.engine.CloseVault(caller, params.ID); err != nil {
		return s.writeVaultError(w, req.ID, err)
	}
	writeResult(w, req.ID, map[string]string{"status": vaults.VaultClosed.String()})
	return "ok"
}

func (s *Server) handleDistribute(w http.ResponseWriter, req *RPCRequest) string {
	total, err := s.engine.DistributeRewards()
	if err != nil {
		return s.writeVaultError(w, req.ID, err)
	}
	s.metrics.DistributionCompleted()
	writeResult(w, req.ID, map[string]string{"distributed": total.String()})
	return "ok"
}

func (s *Server) handleClaim(w http.ResponseWriter, req *RPCRequest) string {
	var params vaultClaimParams
	if err := decodeParams(req, &params); err != nil {
		return s.writeParamsError(w, req.ID, err)
	}
	caller, err := types.ParseAddress(params.Caller)
	if err != nil {
		return s.writeParamsError(w, req.ID, err)
	}
	beneficiary, err := types.ParseAddress(params.Beneficiary)
	if err != nil {
		return s.writeParamsError(w, req.ID, err)
	}
	share, err := parsePositiveBigInt(params.Share)
	if err != nil {
		return s.writeParamsError(w, req.ID, err)
	}
	proof, err := parseProof(params.Proof)
	if err != nil {
		return s.writeParamsError(w, req.ID, err)
	}
	entitlement, err := s.engine.ClaimReward(caller, params.ID, proof, beneficiary, share)
	if err != nil {
		return s.writeVaultError(w, req.ID, err)
	}
	s.metrics.ClaimSettled()
	writeResult(w, req.ID, map[string]string{
		"beneficiary": types.FormatAddress(beneficiary),
		"amount":      entitlement.String(),
	})
	return "ok"
}

func (s *Server) handleVaultVerify(w http.ResponseWriter, req *RPCRequest) string {
	var params vaultVerifyParams
	if err := decodeParams(req, &params); err != nil {
		return s.writeParamsError(w, req.ID, err)
	}
	beneficiary, err := types.ParseAddress(params.Beneficiary)
	if err != nil {
		return s.writeParamsError(w, req.ID, err)
	}
	share, err := parsePositiveBigInt(params.Share)
	if err != nil {
		return s.writeParamsError(w, req.ID, err)
	}
	proof, err := parseProof(params.Proof)
	if err != nil {
		return s.writeParamsError(w, req.ID, err)
	}
	valid, err := s.engine.VerifyClaim(params.ID, proof, beneficiary, share)
	if err != nil {
		return s.writeVaultError(w, req.ID, err)
	}
	writeResult(w, req.ID, map[string]bool{"valid": valid})
	return "ok"
}

func (s *Server) handleDeposit(w http.ResponseWriter, req *RPCRequest) string {
	var params depositParams
	if err := decodeParams(req, &params); err != nil {
		return s.writeParamsError(w, req.ID, err)
	}
	from, err := types.ParseAddress(params.From)
	if err != nil {
		return s.writeParamsError(w, req.ID, err)
	}
	amount, err := parsePositiveBigInt(params.Amount)
	if err != nil {
		return s.writeParamsError(w, req.ID, err)
	}
	if err := s.state.Transfer(from, vaults.ModuleAddress(), amount); err != nil {
		if errors.Is(err, state.ErrInsufficientBalance) {
			writeError(w, http.StatusConflict, req.ID, codeVaultsConflict, err.Error(), nil)
			return "error"
		}
		writeError(w, http.StatusInternalServerError, req.ID, codeVaultsInternal, err.Error(), nil)
		return "error"
	}
	writeResult(w, req.ID, map[string]string{"deposited": amount.String()})
	return "ok"
}

func (s *Server) handleTokenBalance(w http.ResponseWriter, req *RPCRequest) string {
	var params balanceParams
	if err := decodeParams(req, &params); err != nil {
		return s.writeParamsError(w, req.ID, err)
	}
	addr, err := types.ParseAddress(params.Address)
	if err != nil {
		return s.writeParamsError(w, req.ID, err)
	}
	balance, err := s.state.BalanceOf(addr)
	if err != nil {
		writeError(w, http.StatusInternalServerError, req.ID, codeVaultsInternal, err.Error(), nil)
		return "error"
	}
	writeResult(w, req.ID, map[string]string{
		"address": types.FormatAddress(addr),
		"balance": balance.String(),
	})
	return "ok"
}

func (s *Server) handleNominateOwner(w http.ResponseWriter, req *RPCRequest) string {
	var params nominateOwnerParams
	if err := decodeParams(req, &params); err != nil {
		return s.writeParamsError(w, req.ID, err)
	}
	caller, err := types.ParseAddress(params.Caller)
	if err != nil {
		return s.writeParamsError(w, req.ID, err)
	}
	nominee, err := types.ParseAddress(params.Nominee)
	if err != nil {
		return s.writeParamsError(w, req.ID, err)
	}
	if err := s.engine.NominateOwner(caller, nominee); err != nil {
		return s.writeVaultError(w, req.ID, err)
	}
	writeResult(w, req.ID, map[string]string{"nominee": types.FormatAddress(nominee)})
	return "ok"
}

func (s *Server) handleAcceptOwnership(w http.ResponseWriter, req *RPCRequest) string {
	var params acceptOwnershipParams
	if err := decodeParams(req, &params); err != nil {
		return s.writeParamsError(w, req.ID, err)
	}
	caller, err := types.ParseAddress(params.Caller)
	if err != nil {
		return s.writeParamsError(w, req.ID, err)
	}
	if err := s.engine.AcceptOwnership(caller); err != nil {
		return s.writeVaultError(w, req.ID, err)
	}
	writeResult(w, req.ID, map[string]string{"owner": types.FormatAddress(caller)})
	return "ok"
}

func (s *Server) handleSetRegistry(w http.ResponseWriter, req *RPCRequest) string {
	var params registryMemberParams
	if err := decodeParams(req, &params); err != nil {
		return s.writeParamsError(w, req.ID, err)
	}
	caller, err := types.ParseAddress(params.Caller)
	if err != nil {
		return s.writeParamsError(w, req.ID, err)
	}
	addr, err := types.ParseAddress(params.Address)
	if err != nil {
		return s.writeParamsError(w, req.ID, err)
	}
	if err := s.engine.SetBeneficiaryRegistry(caller, s.state, addr); err != nil {
		return s.writeVaultError(w, req.ID, err)
	}
	writeResult(w, req.ID, map[string]string{"registry": types.FormatAddress(addr)})
	return "ok"
}

func (s *Server) requireOwnerCaller(caller [20]byte) error {
	owner, err := s.engine.Owner()
	if err != nil {
		return err
	}
	if owner == ([20]byte{}) || caller != owner {
		return vaults.ErrNotOwner
	}
	return nil
}

func (s *Server) handleRegistryAdd(w http.ResponseWriter, req *RPCRequest) string {
	var params registryMemberParams
	if err := decodeParams(req, &params); err != nil {
		return s.writeParamsError(w, req.ID, err)
	}
	caller, err := types.ParseAddress(params.Caller)
	if err != nil {
		return s.writeParamsError(w, req.ID, err)
	}
	member, err := types.ParseAddress(params.Address)
	if err != nil {
		return s.writeParamsError(w, req.ID, err)
	}
	if err := s.requireOwnerCaller(caller); err != nil {
		return s.writeVaultError(w, req.ID, err)
	}
	if err := s.state.RegistryAdd(member); err != nil {
		writeError(w, http.StatusInternalServerError, req.ID, codeVaultsInternal, err.Error(), nil)
		return "error"
	}
	writeResult(w, req.ID, map[string]string{"added": types.FormatAddress(member)})
	return "ok"
}

func (s *Server) handleRegistryRemove(w http.ResponseWriter, req *RPCRequest) string {
	var params registryMemberParams
	if err := decodeParams(req, &params); err != nil {
		return s.writeParamsError(w, req.ID, err)
	}
	caller, err := types.ParseAddress(params.Caller)
	if err != nil {
		return s.writeParamsError(w, req.ID, err)
	}
	member, err := types.ParseAddress(params.Address)
	if err != nil {
		return s.writeParamsError(w, req.ID, err)
	}
	if err := s.requireOwnerCaller(caller); err != nil {
		return s.writeVaultError(w, req.ID, err)
	}
	if err := s.state.RegistryRemove(member); err != nil {
		writeError(w, http.StatusInternalServerError, req.ID, codeVaultsInternal, err.Error(), nil)
		return "error"
	}
	writeResult(w, req.ID, map[string]string{"removed": types.FormatAddress(member)})
	return "ok"
}
