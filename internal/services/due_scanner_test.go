package services

import (
	"context"
	"errors"
	"testing"

	"github.com/shopspring/decimal"

	"obligo/internal/core"
	"obligo/internal/events"
	"obligo/internal/kv"
	"obligo/internal/ledger"
)

func TestScan_PublishesPastDueOnly(t *testing.T) {
	ctx := context.Background()
	store := kv.NewMemStore()
	sink := events.NewMemSink()

	bills := ledger.New(ledger.KindBills, store, nil, ledger.WithClock(testClock))
	policies := ledger.New(ledger.KindPolicies, store, nil, ledger.WithClock(testClock))
	for _, l := range []*ledger.Ledger{bills, policies} {
		if err := l.Initialize(ctx); err != nil {
			t.Fatal(err)
		}
	}

	now := uint64(testClock().Unix())
	drafts := []struct {
		l   *ledger.Ledger
		due uint64
	}{
		{bills, now - core.SecondsPerDay}, // overdue
		{bills, now},                      // due right now
		{bills, now + core.SecondsPerDay}, // not yet due
		{policies, now - 1},               // overdue
	}
	for i, d := range drafts {
		if _, err := d.l.Create(ctx, core.Draft{
			Name:   "obligation",
			Amount: decimal.NewFromInt(int64(i + 1)),
			Due:    d.due,
		}); err != nil {
			t.Fatal(err)
		}
	}

	scanner := NewDueScanner(sink, []*ledger.Ledger{bills, policies}, WithScannerClock(testClock))
	n, err := scanner.Scan(ctx)
	if err != nil {
		t.Fatalf("Scan() error = %v", err)
	}
	if n != 3 {
		t.Errorf("Scan() = %d, want 3", n)
	}

	byCategory := map[string]int{}
	for _, e := range sink.Events() {
		if e.Operation != events.OpDue {
			t.Errorf("unexpected operation %q", e.Operation)
		}
		byCategory[e.Category]++
	}
	if byCategory[ledger.KindBills] != 2 || byCategory[ledger.KindPolicies] != 1 {
		t.Errorf("events per category = %v, want bills:2 policies:1", byCategory)
	}
}

func TestScan_SkipsSettled(t *testing.T) {
	ctx := context.Background()
	store := kv.NewMemStore()
	sink := events.NewMemSink()

	bills := ledger.New(ledger.KindBills, store, nil, ledger.WithClock(testClock))
	if err := bills.Initialize(ctx); err != nil {
		t.Fatal(err)
	}

	due := uint64(testClock().Unix()) - 1
	id, err := bills.Create(ctx, core.Draft{Name: "rent", Amount: decimal.NewFromInt(10), Due: due})
	if err != nil {
		t.Fatal(err)
	}
	if _, err := bills.Settle(ctx, id); err != nil {
		t.Fatal(err)
	}

	scanner := NewDueScanner(sink, []*ledger.Ledger{bills}, WithScannerClock(testClock))
	n, err := scanner.Scan(ctx)
	if err != nil {
		t.Fatalf("Scan() error = %v", err)
	}
	if n != 0 || len(sink.Events()) != 0 {
		t.Errorf("Scan() = %d with %d events, want none", n, len(sink.Events()))
	}
}

func TestScan_UninitializedLedger(t *testing.T) {
	ctx := context.Background()
	bills := ledger.New(ledger.KindBills, kv.NewMemStore(), nil, ledger.WithClock(testClock))

	scanner := NewDueScanner(events.NewMemSink(), []*ledger.Ledger{bills}, WithScannerClock(testClock))
	if _, err := scanner.Scan(ctx); !errors.Is(err, ledger.ErrNotInitialized) {
		t.Errorf("Scan() error = %v, want ErrNotInitialized", err)
	}
}
