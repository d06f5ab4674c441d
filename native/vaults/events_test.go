package vaults

import (
	"math/big"
	"testing"
)

func TestVaultEventAttributes(t *testing.T) {
	vault := &Vault{
		ID:             2,
		Generation:     1,
		Status:         VaultOpen,
		TotalAllocated: big.NewInt(500),
		CurrentBalance: big.NewInt(300),
		UnclaimedShare: shareUnits(70),
		MerkleRoot:     [32]byte{0xAA},
		EndTime:        999,
	}

	initialized := NewInitializedEvent(vault)
	if initialized.Type != EventTypeVaultInitialized {
		t.Fatalf("wrong type: %s", initialized.Type)
	}
	if initialized.Attributes["id"] != "2" || initialized.Attributes["endTime"] != "999" {
		t.Fatalf("initialized attributes wrong: %+v", initialized.Attributes)
	}
	if initialized.Attributes["merkleRoot"] == "" {
		t.Fatal("initialized event must carry the merkle root")
	}

	closed := NewClosedEvent(vault, big.NewInt(300), "vault:3")
	if closed.Attributes["remainder"] != "300" || closed.Attributes["target"] != "vault:3" {
		t.Fatalf("closed attributes wrong: %+v", closed.Attributes)
	}

	allocated := NewRewardAllocatedEvent(vault, big.NewInt(42))
	if allocated.Attributes["amount"] != "42" {
		t.Fatalf("allocated attributes wrong: %+v", allocated.Attributes)
	}

	summary := NewRewardsDistributedEvent(big.NewInt(100), 3)
	if summary.Attributes["totalAmount"] != "100" || summary.Attributes["openVaults"] != "3" {
		t.Fatalf("summary attributes wrong: %+v", summary.Attributes)
	}

	claimed := NewRewardClaimedEvent(vault, newTestAddress(0xA1), big.NewInt(40), shareUnits(40))
	if claimed.Attributes["amount"] != "40" || claimed.Attributes["beneficiary"] == "" {
		t.Fatalf("claimed attributes wrong: %+v", claimed.Attributes)
	}

	changed := NewOwnerChangedEvent(newTestAddress(0x01), newTestAddress(0x02))
	if changed.Attributes["old"] == changed.Attributes["new"] {
		t.Fatal("owner changed event must carry both addresses")
	}
}

func TestEventConstructorsTolerateNilVault(t *testing.T) {
	for _, evt := range []struct {
		name string
		typ  string
	}{
		{"initialized", NewInitializedEvent(nil).Type},
		{"opened", NewOpenedEvent(nil).Type},
		{"allocated", NewRewardAllocatedEvent(nil, nil).Type},
	} {
		if evt.typ == "" {
			t.Fatalf("%s event lost its type on nil vault", evt.name)
		}
	}
}
