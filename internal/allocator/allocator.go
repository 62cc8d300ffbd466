// Package allocator persists the four-way percentage configuration and
// splits lump amounts into category amounts that sum exactly to the input.
package allocator

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/shopspring/decimal"

	"obligo/internal/core"
	"obligo/internal/events"
	"obligo/internal/kv"
)

const (
	configKey = "split/config"
	ownerKey  = "split/owner"

	// event category for the audit trail
	category = "split"
)

// DefaultLeaseTTL matches the ledger default.
const DefaultLeaseTTL = 30 * 24 * time.Hour

var errShortCell = errors.New("cell too short")

// Allocator owns the split configuration cells. The split percentages are
// validated when written, never when read; a missing configuration reads
// as the documented default.
type Allocator struct {
	store    kv.Store
	sink     events.Sink
	now      func() time.Time
	leaseTTL time.Duration
}

type Option func(*Allocator)

func WithClock(now func() time.Time) Option {
	return func(a *Allocator) { a.now = now }
}

func WithLeaseTTL(ttl time.Duration) Option {
	return func(a *Allocator) { a.leaseTTL = ttl }
}

func New(store kv.Store, sink events.Sink, opts ...Option) *Allocator {
	a := &Allocator{
		store:    store,
		sink:     sink,
		now:      time.Now,
		leaseTTL: DefaultLeaseTTL,
	}
	if a.sink == nil {
		a.sink = events.NopSink{}
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Configure validates and persists a split configuration, replacing any
// previous one. The owner is recorded alongside; whether the caller is
// allowed to replace an existing owner's configuration is the caller's
// capability check, not enforced here.
func (a *Allocator) Configure(ctx context.Context, cfg core.SplitConfig, owner string) error {
	if err := cfg.Validate(); err != nil {
		return err
	}

	var b kv.Batch
	b.Put(configKey, encodeConfig(cfg))
	b.Put(ownerKey, []byte(owner))
	if err := a.store.Apply(ctx, &b); err != nil {
		return fmt.Errorf("store split config: %w", err)
	}

	a.emit(ctx, events.OpConfigured, owner)
	if err := a.store.ExtendLease(ctx, a.leaseTTL); err != nil {
		slog.WarnContext(ctx, "Failed to extend storage lease", "error", err)
	}

	slog.InfoContext(ctx, "Split configuration updated",
		"spend", cfg.Spend,
		"save", cfg.Save,
		"bills", cfg.Bills,
		"insurance", cfg.Insurance,
		"owner", owner)

	return nil
}

// Current returns the stored configuration, or the 50/30/15/5 default when
// none was ever configured.
func (a *Allocator) Current(ctx context.Context) (core.SplitConfig, error) {
	raw, ok, err := a.store.Get(ctx, configKey)
	if err != nil {
		return core.SplitConfig{}, fmt.Errorf("read split config: %w", err)
	}
	if !ok {
		return core.DefaultSplitConfig(), nil
	}
	cfg, err := decodeConfig(raw)
	if err != nil {
		return core.SplitConfig{}, fmt.Errorf("decode split config: %w", err)
	}
	return cfg, nil
}

// Owner returns the recorded configuration owner, if any.
func (a *Allocator) Owner(ctx context.Context) (string, bool, error) {
	raw, ok, err := a.store.Get(ctx, ownerKey)
	if err != nil {
		return "", false, fmt.Errorf("read split owner: %w", err)
	}
	if !ok {
		return "", false, nil
	}
	return string(raw), true, nil
}

// Split divides total by the current configuration. The parts always sum
// exactly to total; see core.SplitConfig.Split for the remainder rule.
func (a *Allocator) Split(ctx context.Context, total decimal.Decimal) (core.SplitAmounts, error) {
	cfg, err := a.Current(ctx)
	if err != nil {
		return core.SplitAmounts{}, err
	}
	amounts, err := cfg.Split(total)
	if err != nil {
		return core.SplitAmounts{}, err
	}

	a.emit(ctx, events.OpCalculated, "")
	return amounts, nil
}

func (a *Allocator) emit(ctx context.Context, operation, actor string) {
	e := events.Event{
		Category:  category,
		Operation: operation,
		Actor:     actor,
		Timestamp: a.now(),
	}
	if err := a.sink.Publish(ctx, e); err != nil {
		slog.WarnContext(ctx, "Failed to publish audit event",
			"category", category, "operation", operation, "error", err)
	}
}

// Config cells are four fixed-width big-endian u32 percentages in
// spend, save, bills, insurance order.

func encodeConfig(cfg core.SplitConfig) []byte {
	buf := make([]byte, 0, 16)
	buf = binary.BigEndian.AppendUint32(buf, cfg.Spend)
	buf = binary.BigEndian.AppendUint32(buf, cfg.Save)
	buf = binary.BigEndian.AppendUint32(buf, cfg.Bills)
	buf = binary.BigEndian.AppendUint32(buf, cfg.Insurance)
	return buf
}

func decodeConfig(data []byte) (core.SplitConfig, error) {
	if len(data) != 16 {
		return core.SplitConfig{}, errShortCell
	}
	return core.SplitConfig{
		Spend:     binary.BigEndian.Uint32(data),
		Save:      binary.BigEndian.Uint32(data[4:]),
		Bills:     binary.BigEndian.Uint32(data[8:]),
		Insurance: binary.BigEndian.Uint32(data[12:]),
	}, nil
}
