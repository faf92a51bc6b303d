package kv_test

import (
	"context"
	"path/filepath"
	"testing"

	"cryptofolio/config"
	"cryptofolio/pkg/storage/kv"
)

func openTestStore(t *testing.T) *kv.Store {
	t.Helper()

	cfg := config.StorageConfig{
		Driver: "sqlite",
		Path:   filepath.Join(t.TempDir(), "kv_test.db"),
	}

	store, err := kv.Open(cfg, "dev")
	if err != nil {
		t.Fatalf("failed to open store: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })

	return store
}

// go test -v --run TestStoreRoundTrip
func TestStoreRoundTrip(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	if err := store.Set(ctx, "portfolio", `[{"coinId":"bitcoin"}]`); err != nil {
		t.Fatalf("set failed: %v", err)
	}

	value, ok, err := store.Get(ctx, "portfolio")
	if err != nil {
		t.Fatalf("get failed: %v", err)
	}
	if !ok {
		t.Fatal("expected key to exist")
	}
	if value != `[{"coinId":"bitcoin"}]` {
		t.Errorf("unexpected value: %s", value)
	}
}

// go test -v --run TestStoreOverwrite
func TestStoreOverwrite(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	if err := store.Set(ctx, "marketSummary", `{"v":1}`); err != nil {
		t.Fatalf("first set failed: %v", err)
	}
	if err := store.Set(ctx, "marketSummary", `{"v":2}`); err != nil {
		t.Fatalf("second set failed: %v", err)
	}

	value, ok, err := store.Get(ctx, "marketSummary")
	if err != nil || !ok {
		t.Fatalf("get failed: ok=%t err=%v", ok, err)
	}
	if value != `{"v":2}` {
		t.Errorf("expected last write to win, got %s", value)
	}
}

// go test -v --run TestStoreMissingKey
func TestStoreMissingKey(t *testing.T) {
	store := openTestStore(t)

	_, ok, err := store.Get(context.Background(), "no_such_key")
	if err != nil {
		t.Fatalf("get failed: %v", err)
	}
	if ok {
		t.Error("expected missing key to report absent")
	}
}

// go test -v --run TestStoreDelete
func TestStoreDelete(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	if err := store.Set(ctx, "darkMode", "true"); err != nil {
		t.Fatalf("set failed: %v", err)
	}
	if err := store.Delete(ctx, "darkMode"); err != nil {
		t.Fatalf("delete failed: %v", err)
	}
	if _, ok, _ := store.Get(ctx, "darkMode"); ok {
		t.Error("expected key to be gone after delete")
	}

	// Deleting again is a no-op
	if err := store.Delete(ctx, "darkMode"); err != nil {
		t.Errorf("second delete failed: %v", err)
	}
}
