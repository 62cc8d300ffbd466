package kv

import (
	"context"
	"testing"
	"time"
)

func TestMemStore_GetHasApply(t *testing.T) {
	ctx := context.Background()
	store := NewMemStore()

	if _, ok, _ := store.Get(ctx, "missing"); ok {
		t.Error("Get() found a cell in an empty store")
	}
	if ok, _ := store.Has(ctx, "missing"); ok {
		t.Error("Has() found a cell in an empty store")
	}

	var b Batch
	b.Put("a", []byte{1})
	b.Put("b", []byte{2})
	b.Put("a", []byte{3}) // later put wins
	if err := store.Apply(ctx, &b); err != nil {
		t.Fatalf("Apply() error = %v", err)
	}

	got, ok, err := store.Get(ctx, "a")
	if err != nil || !ok {
		t.Fatalf("Get(a) = %v, %v, %v", got, ok, err)
	}
	if len(got) != 1 || got[0] != 3 {
		t.Errorf("Get(a) = %v, want [3]", got)
	}
	if ok, _ := store.Has(ctx, "b"); !ok {
		t.Error("Has(b) = false after Apply")
	}
}

func TestMemStore_GetReturnsCopy(t *testing.T) {
	ctx := context.Background()
	store := NewMemStore()

	var b Batch
	b.Put("k", []byte{1, 2, 3})
	if err := store.Apply(ctx, &b); err != nil {
		t.Fatal(err)
	}

	got, _, _ := store.Get(ctx, "k")
	got[0] = 99

	again, _, _ := store.Get(ctx, "k")
	if again[0] != 1 {
		t.Error("mutating a Get result changed the stored cell")
	}
}

func TestMemStore_ExtendLease(t *testing.T) {
	ctx := context.Background()
	store := NewMemStore()

	if !store.LeaseExpiry().IsZero() {
		t.Error("fresh store has a lease deadline")
	}

	before := time.Now()
	if err := store.ExtendLease(ctx, time.Hour); err != nil {
		t.Fatalf("ExtendLease() error = %v", err)
	}
	if store.LeaseExpiry().Before(before.Add(time.Hour)) {
		t.Error("lease deadline not pushed out by the ttl")
	}
}

func TestMemStore_EmptyBatchIsNoop(t *testing.T) {
	ctx := context.Background()
	store := NewMemStore()

	if err := store.Apply(ctx, &Batch{}); err != nil {
		t.Fatalf("Apply(empty) error = %v", err)
	}
	if err := store.Apply(ctx, nil); err != nil {
		t.Fatalf("Apply(nil) error = %v", err)
	}
	if len(store.Snapshot()) != 0 {
		t.Error("empty batch created cells")
	}
}
