package vaults

import (
	"bytes"
	"fmt"
	"math/big"

	ethcrypto "github.com/ethereum/go-ethereum/crypto"
)

// AllocationLeaf binds a beneficiary address to its fixed-point share of a
// vault's allocation set. Shares across all leaves of one set sum to
// AllocationDenominator.
type AllocationLeaf struct {
	Beneficiary [20]byte
	Share       *big.Int
}

// LeafHash computes the canonical leaf commitment for a (beneficiary, share)
// pair: keccak256 of the 20-byte address followed by the share as a 32-byte
// big-endian integer.
func LeafHash(beneficiary [20]byte, share *big.Int) ([32]byte, error) {
	var out [32]byte
	if share == nil || share.Sign() < 0 {
		return out, fmt.Errorf("vaults: share must be non-negative")
	}
	if share.BitLen() > 256 {
		return out, fmt.Errorf("vaults: share exceeds 256 bits")
	}
	buf := make([]byte, 52)
	copy(buf[:20], beneficiary[:])
	share.FillBytes(buf[20:])
	copy(out[:], ethcrypto.Keccak256(buf))
	return out, nil
}

// hashPair combines two nodes with sorted-pair hashing so a proof never needs
// to carry left/right orientation bits.
func hashPair(a, b [32]byte) [32]byte {
	var out [32]byte
	if bytes.Compare(a[:], b[:]) <= 0 {
		copy(out[:], ethcrypto.Keccak256(a[:], b[:]))
	} else {
		copy(out[:], ethcrypto.Keccak256(b[:], a[:]))
	}
	return out
}

// VerifyProof walks the proof path from the leaf, combining each sibling with
// sorted-pair hashing, and reports whether the computed root matches.
func VerifyProof(root, leaf [32]byte, proof [][32]byte) bool {
	node := leaf
	for _, sibling := range proof {
		node = hashPair(node, sibling)
	}
	return node == root
}

// AllocationTree is an in-memory Merkle tree over an allocation set. It is
// the operator-side counterpart of VerifyProof: the service only ever stores
// the root, while the tree produces roots and per-leaf proofs for
// distribution tooling and tests. Odd levels are padded by pairing the last
// node with itself, which keeps construction deterministic.
type AllocationTree struct {
	levels [][][32]byte
}

// NewAllocationTree builds the tree bottom-up from the given leaves in order.
func NewAllocationTree(leaves []AllocationLeaf) (*AllocationTree, error) {
	if len(leaves) == 0 {
		return nil, fmt.Errorf("vaults: allocation set is empty")
	}
	level := make([][32]byte, len(leaves))
	for i, leaf := range leaves {
		hash, err := LeafHash(leaf.Beneficiary, leaf.Share)
		if err != nil {
			return nil, err
		}
		level[i] = hash
	}
	levels := [][][32]byte{level}
	for len(level) > 1 {
		next := make([][32]byte, 0, (len(level)+1)/2)
		for i := 0; i < len(level); i += 2 {
			if i+1 < len(level) {
				next = append(next, hashPair(level[i], level[i+1]))
			} else {
				next = append(next, hashPair(level[i], level[i]))
			}
		}
		levels = append(levels, next)
		level = next
	}
	return &AllocationTree{levels: levels}, nil
}

// Root returns the tree's root commitment.
func (t *AllocationTree) Root() [32]byte {
	top := t.levels[len(t.levels)-1]
	return top[0]
}

// Proof returns the sibling path for the leaf at the given index.
func (t *AllocationTree) Proof(index int) ([][32]byte, error) {
	if index < 0 || index >= len(t.levels[0]) {
		return nil, fmt.Errorf("vaults: leaf index %d out of range", index)
	}
	proof := make([][32]byte, 0, len(t.levels)-1)
	for _, level := range t.levels[:len(t.levels)-1] {
		sibling := index ^ 1
		if sibling >= len(level) {
			sibling = index
		}
		proof = append(proof, level[sibling])
		index /= 2
	}
	return proof, nil
}
