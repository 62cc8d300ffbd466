package kv

import (
	"context"
	"path/filepath"
	"testing"
	"time"
)

func newTestSQLiteStore(t *testing.T) *SQLiteStore {
	t.Helper()
	store, err := NewSQLiteStore(filepath.Join(t.TempDir(), "cells.db"))
	if err != nil {
		t.Fatalf("NewSQLiteStore() error = %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

func TestSQLiteStore_RoundTrip(t *testing.T) {
	ctx := context.Background()
	store := newTestSQLiteStore(t)

	if ok, err := store.Has(ctx, "k"); err != nil || ok {
		t.Fatalf("Has() on fresh store = %v, %v", ok, err)
	}

	var b Batch
	b.Put("k", []byte("value"))
	b.Put("k2", []byte{0x00, 0xff})
	if err := store.Apply(ctx, &b); err != nil {
		t.Fatalf("Apply() error = %v", err)
	}

	got, ok, err := store.Get(ctx, "k")
	if err != nil || !ok {
		t.Fatalf("Get(k) = %q, %v, %v", got, ok, err)
	}
	if string(got) != "value" {
		t.Errorf("Get(k) = %q, want %q", got, "value")
	}

	// overwrite through a second batch
	var b2 Batch
	b2.Put("k", []byte("updated"))
	if err := store.Apply(ctx, &b2); err != nil {
		t.Fatal(err)
	}
	got, _, _ = store.Get(ctx, "k")
	if string(got) != "updated" {
		t.Errorf("Get(k) after overwrite = %q, want %q", got, "updated")
	}
}

func TestSQLiteStore_SurvivesReopen(t *testing.T) {
	ctx := context.Background()
	dbPath := filepath.Join(t.TempDir(), "cells.db")

	store, err := NewSQLiteStore(dbPath)
	if err != nil {
		t.Fatal(err)
	}
	var b Batch
	b.Put("persisted", []byte{7})
	if err := store.Apply(ctx, &b); err != nil {
		t.Fatal(err)
	}
	store.Close()

	reopened, err := NewSQLiteStore(dbPath)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer reopened.Close()

	got, ok, err := reopened.Get(ctx, "persisted")
	if err != nil || !ok || len(got) != 1 || got[0] != 7 {
		t.Errorf("Get(persisted) after reopen = %v, %v, %v", got, ok, err)
	}
}

func TestSQLiteStore_ExtendLease(t *testing.T) {
	ctx := context.Background()
	store := newTestSQLiteStore(t)

	expiry, err := store.LeaseExpiry(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if !expiry.IsZero() {
		t.Error("fresh store has a lease deadline")
	}

	before := time.Now()
	if err := store.ExtendLease(ctx, time.Hour); err != nil {
		t.Fatalf("ExtendLease() error = %v", err)
	}
	expiry, err = store.LeaseExpiry(ctx)
	if err != nil {
		t.Fatal(err)
	}
	// stored with second precision
	if expiry.Before(before.Add(time.Hour).Truncate(time.Second)) {
		t.Errorf("lease deadline %v not pushed out by the ttl", expiry)
	}
}
