package storage

import (
	"errors"
	"testing"
)

func exerciseDatabase(t *testing.T, db Database) {
	t.Helper()

	if _, err := db.Get([]byte("missing")); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	has, err := db.Has([]byte("missing"))
	if err != nil || has {
		t.Fatalf("missing key should be absent: %v %v", has, err)
	}

	if err := db.Put([]byte("key"), []byte("value")); err != nil {
		t.Fatalf("put: %v", err)
	}
	value, err := db.Get([]byte("key"))
	if err != nil || string(value) != "value" {
		t.Fatalf("get: %q %v", value, err)
	}
	has, err = db.Has([]byte("key"))
	if err != nil || !has {
		t.Fatalf("key should be present: %v %v", has, err)
	}

	if err := db.Delete([]byte("key")); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := db.Get([]byte("key")); !errors.Is(err, ErrNotFound) {
		t.Fatalf("deleted key should be gone, got %v", err)
	}
	// Deleting an absent key is not an error.
	if err := db.Delete([]byte("key")); err != nil {
		t.Fatalf("double delete: %v", err)
	}
}

func TestMemDB(t *testing.T) {
	exerciseDatabase(t, NewMemDB())
}

func TestMemDBCopiesValues(t *testing.T) {
	db := NewMemDB()
	value := []byte("original")
	if err := db.Put([]byte("key"), value); err != nil {
		t.Fatalf("put: %v", err)
	}
	value[0] = 'X'
	stored, err := db.Get([]byte("key"))
	if err != nil || string(stored) != "original" {
		t.Fatalf("stored value must not alias the caller's slice: %q %v", stored, err)
	}
}

func TestLevelDB(t *testing.T) {
	db, err := NewLevelDB(t.TempDir())
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer db.Close()
	exerciseDatabase(t, db)
}
