package storage

import (
	"path/filepath"
	"testing"
)

func openTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := Open(filepath.Join(t.TempDir(), DBFileName))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func TestKVStorageRoundTrip(t *testing.T) {
	kv := NewKVStorage(openTestDB(t))

	if _, ok, err := kv.Get("missing"); err != nil || ok {
		t.Fatalf("Get(missing) = ok %v, err %v; want absent", ok, err)
	}

	if err := kv.Set("smartproxyUsername", "alice"); err != nil {
		t.Fatalf("Set: %v", err)
	}
	if err := kv.Set("smartproxyUsername", "bob"); err != nil {
		t.Fatalf("Set overwrite: %v", err)
	}

	v, ok, err := kv.Get("smartproxyUsername")
	if err != nil || !ok || v != "bob" {
		t.Fatalf("Get = %q, %v, %v; want bob", v, ok, err)
	}

	keys, err := kv.Keys()
	if err != nil || len(keys) != 1 {
		t.Fatalf("Keys() = %v, %v", keys, err)
	}

	if err := kv.Delete("smartproxyUsername"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if err := kv.Delete("smartproxyUsername"); err != nil {
		t.Fatalf("Delete twice: %v", err)
	}
	if _, ok, _ := kv.Get("smartproxyUsername"); ok {
		t.Error("key still present after Delete")
	}
}

func TestKVStorageEmptyValue(t *testing.T) {
	kv := NewKVStorage(openTestDB(t))

	if err := kv.Set("k", ""); err != nil {
		t.Fatalf("Set: %v", err)
	}
	v, ok, err := kv.Get("k")
	if err != nil || !ok || v != "" {
		t.Errorf("Get = %q, %v, %v; want empty present value", v, ok, err)
	}
}
