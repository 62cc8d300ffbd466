package allocator

import (
	"context"
	"errors"
	"reflect"
	"testing"

	"github.com/shopspring/decimal"

	"obligo/internal/core"
	"obligo/internal/events"
	"obligo/internal/kv"
)

func newTestAllocator(t *testing.T) (*Allocator, *kv.MemStore, *events.MemSink) {
	t.Helper()
	store := kv.NewMemStore()
	sink := events.NewMemSink()
	return New(store, sink), store, sink
}

func TestCurrent_DefaultBeforeConfigure(t *testing.T) {
	a, _, _ := newTestAllocator(t)

	cfg, err := a.Current(context.Background())
	if err != nil {
		t.Fatalf("Current() error = %v", err)
	}
	if cfg != core.DefaultSplitConfig() {
		t.Errorf("Current() = %+v, want default 50/30/15/5", cfg)
	}
}

func TestConfigure(t *testing.T) {
	ctx := context.Background()
	a, store, sink := newTestAllocator(t)

	tests := []struct {
		name    string
		cfg     core.SplitConfig
		wantErr bool
	}{
		{"sums to 99", core.SplitConfig{Spend: 50, Save: 30, Bills: 15, Insurance: 4}, true},
		{"sums to 101", core.SplitConfig{Spend: 50, Save: 30, Bills: 15, Insurance: 6}, true},
		{"sums to 100", core.SplitConfig{Spend: 50, Save: 30, Bills: 15, Insurance: 5}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := a.Configure(ctx, tt.cfg, "alice")
			if (err != nil) != tt.wantErr {
				t.Errorf("Configure() error = %v, wantErr %v", err, tt.wantErr)
			}
			if tt.wantErr && !errors.Is(err, core.ErrInvalidSplit) {
				t.Errorf("Configure() error = %v, want ErrInvalidSplit", err)
			}
		})
	}

	got := sink.Events()
	if len(got) != 1 || got[0].Operation != events.OpConfigured {
		t.Errorf("events = %+v, want one configured event", got)
	}
	if store.LeaseExpiry().IsZero() {
		t.Error("Configure() did not extend the lease")
	}
}

func TestConfigure_FailureLeavesStoreUntouched(t *testing.T) {
	ctx := context.Background()
	a, store, _ := newTestAllocator(t)

	if err := a.Configure(ctx, core.SplitConfig{Spend: 40, Save: 40, Bills: 10, Insurance: 10}, "alice"); err != nil {
		t.Fatal(err)
	}

	before := store.Snapshot()
	if err := a.Configure(ctx, core.SplitConfig{Spend: 99, Save: 0, Bills: 0, Insurance: 0}, "mallory"); err == nil {
		t.Fatal("Configure() accepted percentages summing to 99")
	}
	if !reflect.DeepEqual(before, store.Snapshot()) {
		t.Error("failed Configure() mutated the store")
	}

	cfg, _ := a.Current(ctx)
	want := core.SplitConfig{Spend: 40, Save: 40, Bills: 10, Insurance: 10}
	if cfg != want {
		t.Errorf("Current() = %+v, want %+v", cfg, want)
	}
	owner, ok, _ := a.Owner(ctx)
	if !ok || owner != "alice" {
		t.Errorf("Owner() = %q, %v, want alice, true", owner, ok)
	}
}

func TestConfigure_ReplacesPrevious(t *testing.T) {
	ctx := context.Background()
	a, _, _ := newTestAllocator(t)

	if err := a.Configure(ctx, core.SplitConfig{Spend: 40, Save: 40, Bills: 10, Insurance: 10}, "alice"); err != nil {
		t.Fatal(err)
	}
	if err := a.Configure(ctx, core.SplitConfig{Spend: 25, Save: 25, Bills: 25, Insurance: 25}, "bob"); err != nil {
		t.Fatal(err)
	}

	cfg, _ := a.Current(ctx)
	if (cfg != core.SplitConfig{Spend: 25, Save: 25, Bills: 25, Insurance: 25}) {
		t.Errorf("Current() = %+v after replacement", cfg)
	}
	owner, _, _ := a.Owner(ctx)
	if owner != "bob" {
		t.Errorf("Owner() = %q, want bob", owner)
	}
}

func TestSplit_UsesStoredConfig(t *testing.T) {
	ctx := context.Background()
	a, _, _ := newTestAllocator(t)

	if err := a.Configure(ctx, core.SplitConfig{Spend: 33, Save: 33, Bills: 33, Insurance: 1}, "alice"); err != nil {
		t.Fatal(err)
	}

	got, err := a.Split(ctx, decimal.NewFromInt(100))
	if err != nil {
		t.Fatalf("Split() error = %v", err)
	}
	want := [4]int64{33, 33, 33, 1}
	parts := [4]decimal.Decimal{got.Spend, got.Save, got.Bills, got.Insurance}
	for i, part := range parts {
		if !part.Equal(decimal.NewFromInt(want[i])) {
			t.Errorf("part %d = %s, want %d", i, part, want[i])
		}
	}
	if !got.Sum().Equal(decimal.NewFromInt(100)) {
		t.Errorf("parts sum to %s, want 100", got.Sum())
	}
}

func TestSplit_InvalidTotal(t *testing.T) {
	ctx := context.Background()
	a, _, sink := newTestAllocator(t)

	for _, total := range []int64{0, -7} {
		if _, err := a.Split(ctx, decimal.NewFromInt(total)); !errors.Is(err, core.ErrInvalidAmount) {
			t.Errorf("Split(%d) error = %v, want ErrInvalidAmount", total, err)
		}
	}
	if len(sink.Events()) != 0 {
		t.Error("failed Split() published events")
	}
}
