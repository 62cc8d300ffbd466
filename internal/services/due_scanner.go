package services

import (
	"context"
	"log/slog"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"obligo/internal/events"
	"obligo/internal/ledger"
)

// DueScanner walks the open records of a set of ledgers and publishes a
// reminder event for each one past due. It never mutates ledger state;
// settlement stays with the caller.
type DueScanner struct {
	ledgers []*ledger.Ledger
	sink    events.Sink
	now     func() time.Time
}

type ScannerOption func(*DueScanner)

func WithScannerClock(now func() time.Time) ScannerOption {
	return func(s *DueScanner) { s.now = now }
}

func NewDueScanner(sink events.Sink, ledgers []*ledger.Ledger, opts ...ScannerOption) *DueScanner {
	s := &DueScanner{
		ledgers: ledgers,
		sink:    sink,
		now:     time.Now,
	}
	if s.sink == nil {
		s.sink = events.NopSink{}
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Scan lists the ledgers concurrently and publishes one due event per
// past-due open record. Returns the number of events published.
func (s *DueScanner) Scan(ctx context.Context) (int, error) {
	cutoff := uint64(s.now().Unix())
	var published atomic.Int64

	g, ctx := errgroup.WithContext(ctx)
	for _, l := range s.ledgers {
		g.Go(func() error {
			open, err := l.ListOpen(ctx)
			if err != nil {
				return err
			}
			for _, rec := range open {
				if rec.Due > cutoff {
					continue
				}
				e := events.Event{
					Category:  l.Kind(),
					Operation: events.OpDue,
					SubjectID: rec.ID,
					Timestamp: s.now(),
				}
				if err := s.sink.Publish(ctx, e); err != nil {
					slog.WarnContext(ctx, "Failed to publish due event",
						"kind", l.Kind(), "id", rec.ID, "error", err)
					continue
				}
				published.Add(1)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return int(published.Load()), err
	}

	slog.InfoContext(ctx, "Due scan complete",
		"ledgers", len(s.ledgers),
		"due", published.Load())

	return int(published.Load()), nil
}
