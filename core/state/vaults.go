package state

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/rlp"

	"benevault/native/vaults"
	"benevault/storage"
)

type storedVault struct {
	ID             uint32
	Generation     uint64
	Status         uint8
	TotalAllocated *big.Int
	CurrentBalance *big.Int
	UnclaimedShare *big.Int
	MerkleRoot     [32]byte
	EndTime        *big.Int
}

func newStoredVault(v *vaults.Vault) *storedVault {
	if v == nil {
		return nil
	}
	clone := v.Clone()
	return &storedVault{
		ID:             clone.ID,
		Generation:     clone.Generation,
		Status:         uint8(clone.Status),
		TotalAllocated: clone.TotalAllocated,
		CurrentBalance: clone.CurrentBalance,
		UnclaimedShare: clone.UnclaimedShare,
		MerkleRoot:     clone.MerkleRoot,
		EndTime:        big.NewInt(clone.EndTime),
	}
}

func (s *storedVault) toVault() (*vaults.Vault, error) {
	if s == nil {
		return nil, fmt.Errorf("state: nil vault record")
	}
	out := &vaults.Vault{
		ID:             s.ID,
		Generation:     s.Generation,
		Status:         vaults.VaultStatus(s.Status),
		TotalAllocated: big.NewInt(0),
		CurrentBalance: big.NewInt(0),
		UnclaimedShare: big.NewInt(0),
		MerkleRoot:     s.MerkleRoot,
	}
	if s.TotalAllocated != nil {
		out.TotalAllocated = new(big.Int).Set(s.TotalAllocated)
	}
	if s.CurrentBalance != nil {
		out.CurrentBalance = new(big.Int).Set(s.CurrentBalance)
	}
	if s.UnclaimedShare != nil {
		out.UnclaimedShare = new(big.Int).Set(s.UnclaimedShare)
	}
	if s.EndTime != nil {
		out.EndTime = s.EndTime.Int64()
	}
	return vaults.SanitizeVault(out)
}

func vaultRecordKey(id uint32) []byte {
	buf := make([]byte, 4)
	binary.BigEndian.PutUint32(buf, id)
	return prefixedKey(vaultRecordPrefix, buf)
}

func vaultClaimKey(id uint32, generation uint64, beneficiary [20]byte) []byte {
	buf := make([]byte, 4+8+len(beneficiary))
	binary.BigEndian.PutUint32(buf[:4], id)
	binary.BigEndian.PutUint64(buf[4:12], generation)
	copy(buf[12:], beneficiary[:])
	return prefixedKey(vaultClaimPrefix, buf)
}

// VaultCount returns the fixed number of vault slots.
func (m *Manager) VaultCount() int {
	return m.vaultCount
}

// VaultGet loads the vault record at the slot. The boolean is false when the
// slot has never been initialized.
func (m *Manager) VaultGet(id uint32) (*vaults.Vault, bool, error) {
	data, err := m.db.Get(vaultRecordKey(id))
	if errors.Is(err, storage.ErrNotFound) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	stored := new(storedVault)
	if err := rlp.DecodeBytes(data, stored); err != nil {
		return nil, false, err
	}
	record, err := stored.toVault()
	if err != nil {
		return nil, false, err
	}
	return record, true, nil
}

// VaultPut persists the vault record after sanitizing it.
func (m *Manager) VaultPut(v *vaults.Vault) error {
	sanitized, err := vaults.SanitizeVault(v)
	if err != nil {
		return err
	}
	if int(sanitized.ID) >= m.vaultCount {
		return fmt.Errorf("state: vault id %d out of range", sanitized.ID)
	}
	encoded, err := rlp.EncodeToBytes(newStoredVault(sanitized))
	if err != nil {
		return err
	}
	return m.db.Put(vaultRecordKey(sanitized.ID), encoded)
}

// ClaimedHas reports whether the beneficiary already claimed from the vault
// generation.
func (m *Manager) ClaimedHas(id uint32, generation uint64, beneficiary [20]byte) (bool, error) {
	return m.db.Has(vaultClaimKey(id, generation, beneficiary))
}

// ClaimedSet marks the beneficiary as having claimed from the vault
// generation. The marker is write-once; re-initializing the slot bumps the
// generation instead of clearing markers.
func (m *Manager) ClaimedSet(id uint32, generation uint64, beneficiary [20]byte) error {
	return m.db.Put(vaultClaimKey(id, generation, beneficiary), []byte{1})
}
