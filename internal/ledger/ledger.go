// Package ledger implements the obligation ledger: a counter-keyed record
// store with a settlement operation that flips state exactly once,
// optional renewal of recurring obligations, and aggregate figures kept
// consistent with the record map without full scans.
//
// The bill, insurance-policy and savings-goal ledgers are instances of the
// same engine distinguished by a key namespace.
package ledger

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/shopspring/decimal"

	"obligo/internal/core"
	"obligo/internal/events"
	"obligo/internal/kv"
)

// Ledger kinds. The kind doubles as the key namespace and the audit event
// category.
const (
	KindBills    = "bills"
	KindPolicies = "policies"
	KindGoals    = "goals"
)

// DefaultLeaseTTL mirrors the ~30 day retention bump of the original
// deployment target.
const DefaultLeaseTTL = 30 * 24 * time.Hour

var (
	ErrNotFound           = errors.New("record not found")
	ErrAlreadyInitialized = errors.New("ledger already initialized")
	ErrNotInitialized     = errors.New("ledger not initialized")
)

// Ledger owns one obligation namespace inside the cell store: the record
// cells, the id sequence and the two aggregate cells. Every mutating
// operation collects its writes into one batch, so the aggregate cells can
// never drift from the record cells through a partial apply.
type Ledger struct {
	kind             string
	store            kv.Store
	sink             events.Sink
	now              func() time.Time
	actor            string
	requireFutureDue bool
	leaseTTL         time.Duration
}

// Option configures a Ledger.
type Option func(*Ledger)

// WithClock overrides the ledger clock. Tests pin it.
func WithClock(now func() time.Time) Option {
	return func(l *Ledger) { l.now = now }
}

// WithFutureDueRequired makes Create reject due dates that are not
// strictly in the future. The savings ledger uses this; bills and policies
// accept past due dates (an overdue bill is still a bill).
func WithFutureDueRequired() Option {
	return func(l *Ledger) { l.requireFutureDue = true }
}

// WithActor tags audit events with the acting principal.
func WithActor(actor string) Option {
	return func(l *Ledger) { l.actor = actor }
}

// WithLeaseTTL overrides the retention budget renewed on every mutation.
func WithLeaseTTL(ttl time.Duration) Option {
	return func(l *Ledger) { l.leaseTTL = ttl }
}

func New(kind string, store kv.Store, sink events.Sink, opts ...Option) *Ledger {
	l := &Ledger{
		kind:     kind,
		store:    store,
		sink:     sink,
		now:      time.Now,
		leaseTTL: DefaultLeaseTTL,
	}
	if l.sink == nil {
		l.sink = events.NopSink{}
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Kind returns the ledger's namespace.
func (l *Ledger) Kind() string { return l.kind }

func (l *Ledger) recordKey(id uint64) string {
	return fmt.Sprintf("%s/record/%016x", l.kind, id)
}

func (l *Ledger) seqKey() string   { return l.kind + "/next_id" }
func (l *Ledger) countKey() string { return l.kind + "/open_count" }
func (l *Ledger) totalKey() string { return l.kind + "/total_open" }

// Initialize creates the sequence and aggregate cells, all zero, in one
// batch. Fails with ErrAlreadyInitialized when the ledger exists; every
// other operation fails with ErrNotInitialized until Initialize has run.
func (l *Ledger) Initialize(ctx context.Context) error {
	exists, err := l.store.Has(ctx, l.seqKey())
	if err != nil {
		return fmt.Errorf("probe sequence: %w", err)
	}
	if exists {
		return ErrAlreadyInitialized
	}

	var b kv.Batch
	b.Put(l.seqKey(), encodeU64(0))
	b.Put(l.countKey(), encodeU64(0))
	b.Put(l.totalKey(), encodeAmount(decimal.Zero))
	if err := l.store.Apply(ctx, &b); err != nil {
		return fmt.Errorf("initialize %s ledger: %w", l.kind, err)
	}

	l.extendLease(ctx)
	slog.InfoContext(ctx, "Ledger initialized", "kind", l.kind)
	return nil
}

// Create validates the draft, assigns the next id and inserts an Open
// record, updating the sequence and aggregate cells in the same batch.
// Validation failures leave every cell untouched.
func (l *Ledger) Create(ctx context.Context, draft core.Draft) (uint64, error) {
	if err := draft.Validate(); err != nil {
		return 0, err
	}
	if l.requireFutureDue && draft.Due <= uint64(l.now().Unix()) {
		return 0, core.ErrInvalidDate
	}

	seq, err := l.sequence(ctx)
	if err != nil {
		return 0, err
	}
	agg, err := l.Aggregates(ctx)
	if err != nil {
		return 0, err
	}

	id := seq + 1
	rec := core.Record{
		ID:         id,
		Name:       draft.Name,
		Category:   draft.Category,
		Amount:     draft.Amount,
		Due:        draft.Due,
		Recurrence: draft.Recurrence,
		State:      core.Open,
	}

	var b kv.Batch
	b.Put(l.recordKey(id), encodeRecord(rec))
	b.Put(l.seqKey(), encodeU64(id))
	b.Put(l.countKey(), encodeU64(agg.OpenCount+1))
	b.Put(l.totalKey(), encodeAmount(agg.TotalOpen.Add(rec.Amount)))
	if err := l.store.Apply(ctx, &b); err != nil {
		return 0, fmt.Errorf("create record: %w", err)
	}

	l.emit(ctx, events.OpCreated, id)
	l.extendLease(ctx)

	slog.InfoContext(ctx, "Record created",
		"kind", l.kind,
		"id", id,
		"name", rec.Name,
		"amount", rec.Amount.String(),
		"due", rec.Due,
		"recurring", rec.Recurrence != nil)

	return id, nil
}

// Settle flips a record from Open to Settled. Returns ErrNotFound for an
// unknown id and (false, nil) when the record was already settled; double
// settlement is an expected outcome, not an error. A recurring record
// spawns its successor in the same batch: the settlement decrements the
// aggregates and the successor increments them again as separate steps.
func (l *Ledger) Settle(ctx context.Context, id uint64) (bool, error) {
	seq, err := l.sequence(ctx)
	if err != nil {
		return false, err
	}

	rec, err := l.load(ctx, id)
	if err != nil {
		return false, err
	}
	if rec == nil {
		return false, ErrNotFound
	}
	if rec.State == core.Settled {
		return false, nil
	}

	agg, err := l.Aggregates(ctx)
	if err != nil {
		return false, err
	}

	rec.State = core.Settled
	count := agg.OpenCount - 1
	total := agg.TotalOpen.Sub(rec.Amount)

	var b kv.Batch
	b.Put(l.recordKey(id), encodeRecord(*rec))

	var renewedID uint64
	if next, ok := core.Renew(*rec, seq+1); ok {
		count++
		total = total.Add(next.Amount)
		b.Put(l.recordKey(next.ID), encodeRecord(next))
		b.Put(l.seqKey(), encodeU64(next.ID))
		renewedID = next.ID
	}

	b.Put(l.countKey(), encodeU64(count))
	b.Put(l.totalKey(), encodeAmount(total))
	if err := l.store.Apply(ctx, &b); err != nil {
		return false, fmt.Errorf("settle record %d: %w", id, err)
	}

	l.emit(ctx, events.OpSettled, id)
	if renewedID != 0 {
		l.emit(ctx, events.OpRenewed, renewedID)
	}
	l.extendLease(ctx)

	slog.InfoContext(ctx, "Record settled",
		"kind", l.kind,
		"id", id,
		"amount", rec.Amount.String(),
		"renewed_id", renewedID)

	return true, nil
}

// Get returns the record, or nil when no record carries the id. Unknown
// ids are not an error.
func (l *Ledger) Get(ctx context.Context, id uint64) (*core.Record, error) {
	return l.load(ctx, id)
}

// ListOpen returns every Open record in ascending id order.
func (l *Ledger) ListOpen(ctx context.Context) ([]core.Record, error) {
	seq, err := l.sequence(ctx)
	if err != nil {
		return nil, err
	}

	var open []core.Record
	for id := uint64(1); id <= seq; id++ {
		rec, err := l.load(ctx, id)
		if err != nil {
			return nil, err
		}
		if rec != nil && rec.State == core.Open {
			open = append(open, *rec)
		}
	}
	return open, nil
}

// TotalOpen returns the cached sum of all Open amounts. O(1).
func (l *Ledger) TotalOpen(ctx context.Context) (decimal.Decimal, error) {
	agg, err := l.Aggregates(ctx)
	if err != nil {
		return decimal.Zero, err
	}
	return agg.TotalOpen, nil
}

// OpenCount returns the cached number of Open records. O(1).
func (l *Ledger) OpenCount(ctx context.Context) (uint64, error) {
	agg, err := l.Aggregates(ctx)
	if err != nil {
		return 0, err
	}
	return agg.OpenCount, nil
}

// Aggregates reads both aggregate cells.
func (l *Ledger) Aggregates(ctx context.Context) (core.Aggregates, error) {
	countRaw, ok, err := l.store.Get(ctx, l.countKey())
	if err != nil {
		return core.Aggregates{}, fmt.Errorf("read open count: %w", err)
	}
	if !ok {
		return core.Aggregates{}, ErrNotInitialized
	}
	count, err := decodeU64(countRaw)
	if err != nil {
		return core.Aggregates{}, fmt.Errorf("decode open count: %w", err)
	}

	totalRaw, ok, err := l.store.Get(ctx, l.totalKey())
	if err != nil {
		return core.Aggregates{}, fmt.Errorf("read open total: %w", err)
	}
	if !ok {
		return core.Aggregates{}, ErrNotInitialized
	}
	total, err := decodeAmount(totalRaw)
	if err != nil {
		return core.Aggregates{}, fmt.Errorf("decode open total: %w", err)
	}

	return core.Aggregates{OpenCount: count, TotalOpen: total}, nil
}

func (l *Ledger) sequence(ctx context.Context) (uint64, error) {
	raw, ok, err := l.store.Get(ctx, l.seqKey())
	if err != nil {
		return 0, fmt.Errorf("read sequence: %w", err)
	}
	if !ok {
		return 0, ErrNotInitialized
	}
	seq, err := decodeU64(raw)
	if err != nil {
		return 0, fmt.Errorf("decode sequence: %w", err)
	}
	return seq, nil
}

func (l *Ledger) load(ctx context.Context, id uint64) (*core.Record, error) {
	raw, ok, err := l.store.Get(ctx, l.recordKey(id))
	if err != nil {
		return nil, fmt.Errorf("read record %d: %w", id, err)
	}
	if !ok {
		return nil, nil
	}
	rec, err := decodeRecord(raw)
	if err != nil {
		return nil, fmt.Errorf("decode record %d: %w", id, err)
	}
	return &rec, nil
}

// emit publishes an audit event. Publish failures are logged and never
// propagated; the state change already committed.
func (l *Ledger) emit(ctx context.Context, operation string, id uint64) {
	e := events.Event{
		Category:  l.kind,
		Operation: operation,
		SubjectID: id,
		Actor:     l.actor,
		Timestamp: l.now(),
	}
	if err := l.sink.Publish(ctx, e); err != nil {
		slog.WarnContext(ctx, "Failed to publish audit event",
			"kind", l.kind, "operation", operation, "id", id, "error", err)
	}
}

// extendLease renews the retention budget after a successful mutation.
func (l *Ledger) extendLease(ctx context.Context) {
	if err := l.store.ExtendLease(ctx, l.leaseTTL); err != nil {
		slog.WarnContext(ctx, "Failed to extend storage lease",
			"kind", l.kind, "error", err)
	}
}
