package vaults

import (
	"math/big"
	"testing"
)

func testLeaves(n int) []AllocationLeaf {
	leaves := make([]AllocationLeaf, n)
	for i := range leaves {
		leaves[i] = AllocationLeaf{
			Beneficiary: newTestAddress(byte(0x10 + i)),
			Share:       big.NewInt(int64(i+1) * 1_000),
		}
	}
	return leaves
}

func TestAllocationTreeProofsVerify(t *testing.T) {
	for _, n := range []int{1, 2, 3, 4, 5, 8, 13} {
		leaves := testLeaves(n)
		tree, err := NewAllocationTree(leaves)
		if err != nil {
			t.Fatalf("n=%d: build: %v", n, err)
		}
		root := tree.Root()
		for i, leaf := range leaves {
			proof, err := tree.Proof(i)
			if err != nil {
				t.Fatalf("n=%d: proof %d: %v", n, i, err)
			}
			hash, err := LeafHash(leaf.Beneficiary, leaf.Share)
			if err != nil {
				t.Fatalf("n=%d: leaf hash %d: %v", n, i, err)
			}
			if !VerifyProof(root, hash, proof) {
				t.Fatalf("n=%d: proof %d did not verify", n, i)
			}
		}
	}
}

func TestVerifyProofRejectsTampering(t *testing.T) {
	leaves := testLeaves(4)
	tree, err := NewAllocationTree(leaves)
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	root := tree.Root()
	proof, err := tree.Proof(0)
	if err != nil {
		t.Fatalf("proof: %v", err)
	}

	// Inflated share.
	tampered, err := LeafHash(leaves[0].Beneficiary, new(big.Int).Add(leaves[0].Share, big.NewInt(1)))
	if err != nil {
		t.Fatalf("leaf hash: %v", err)
	}
	if VerifyProof(root, tampered, proof) {
		t.Fatal("tampered share must not verify")
	}

	// Substituted beneficiary.
	substituted, err := LeafHash(newTestAddress(0xEE), leaves[0].Share)
	if err != nil {
		t.Fatalf("leaf hash: %v", err)
	}
	if VerifyProof(root, substituted, proof) {
		t.Fatal("substituted beneficiary must not verify")
	}

	// Truncated proof.
	genuine, _ := LeafHash(leaves[0].Beneficiary, leaves[0].Share)
	if len(proof) > 0 && VerifyProof(root, genuine, proof[:len(proof)-1]) {
		t.Fatal("truncated proof must not verify")
	}
}

func TestAllocationTreeDeterministic(t *testing.T) {
	leaves := testLeaves(7)
	first, err := NewAllocationTree(leaves)
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	second, err := NewAllocationTree(leaves)
	if err != nil {
		t.Fatalf("rebuild: %v", err)
	}
	if first.Root() != second.Root() {
		t.Fatal("tree construction must be deterministic")
	}
}

func TestAllocationTreeValidation(t *testing.T) {
	if _, err := NewAllocationTree(nil); err == nil {
		t.Fatal("empty allocation set must be rejected")
	}
	if _, err := NewAllocationTree([]AllocationLeaf{{Beneficiary: newTestAddress(0x01), Share: big.NewInt(-1)}}); err == nil {
		t.Fatal("negative share must be rejected")
	}
	tree, err := NewAllocationTree(testLeaves(3))
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	if _, err := tree.Proof(3); err == nil {
		t.Fatal("out-of-range proof index must be rejected")
	}
	if _, err := tree.Proof(-1); err == nil {
		t.Fatal("negative proof index must be rejected")
	}
}

func TestLeafHashValidation(t *testing.T) {
	if _, err := LeafHash(newTestAddress(0x01), nil); err == nil {
		t.Fatal("nil share must be rejected")
	}
	if _, err := LeafHash(newTestAddress(0x01), big.NewInt(-5)); err == nil {
		t.Fatal("negative share must be rejected")
	}
	a, err := LeafHash(newTestAddress(0x01), big.NewInt(5))
	if err != nil {
		t.Fatalf("leaf hash: %v", err)
	}
	b, err := LeafHash(newTestAddress(0x01), big.NewInt(5))
	if err != nil {
		t.Fatalf("leaf hash: %v", err)
	}
	if a != b {
		t.Fatal("leaf hash must be deterministic")
	}
}

func TestHashPairOrderIndependent(t *testing.T) {
	a, _ := LeafHash(newTestAddress(0x01), big.NewInt(1))
	b, _ := LeafHash(newTestAddress(0x02), big.NewInt(2))
	if hashPair(a, b) != hashPair(b, a) {
		t.Fatal("sorted-pair hashing must be order independent")
	}
}
