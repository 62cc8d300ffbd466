// Package services wires the allocator, the ledgers and the member
// registry into the household-facing flows: allocating a remittance across
// the category ledgers, and scanning for obligations that came due.
package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/shopspring/decimal"

	"obligo/internal/allocator"
	"obligo/internal/core"
	"obligo/internal/ledger"
	"obligo/internal/members"
)

// ErrOverSpendingLimit rejects an allocation whose total exceeds the
// sender's registered spending limit.
var ErrOverSpendingLimit = errors.New("amount exceeds sender spending limit")

// Allocation is the outcome of one remittance allocation: the four split
// amounts and the ids of the obligations opened from them. The spend share
// stays with the sender, so it opens no obligation.
type Allocation struct {
	Amounts  core.SplitAmounts
	BillID   uint64 // 0 when the bills share was zero
	PolicyID uint64 // 0 when the insurance share was zero
	GoalID   uint64 // 0 when the savings share was zero
}

// WalletService chains the allocator's split output into create calls on
// the category ledgers.
type WalletService struct {
	allocator *allocator.Allocator
	bills     *ledger.Ledger
	policies  *ledger.Ledger
	goals     *ledger.Ledger
	registry  *members.Registry // optional; nil disables the limit check
	now       func() time.Time
}

type WalletOption func(*WalletService)

func WithClock(now func() time.Time) WalletOption {
	return func(s *WalletService) { s.now = now }
}

// WithRegistry enables the sender spending-limit check.
func WithRegistry(registry *members.Registry) WalletOption {
	return func(s *WalletService) { s.registry = registry }
}

func NewWalletService(a *allocator.Allocator, bills, policies, goals *ledger.Ledger, opts ...WalletOption) *WalletService {
	s := &WalletService{
		allocator: a,
		bills:     bills,
		policies:  policies,
		goals:     goals,
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// AllocateRemittance splits total by the current configuration and opens
// one obligation per non-zero share: a one-time bills obligation, a
// recurring insurance premium, and a savings target, all due 30 days out.
// The split itself guarantees the four shares sum exactly to total.
func (s *WalletService) AllocateRemittance(ctx context.Context, sender string, total decimal.Decimal) (*Allocation, error) {
	if s.registry != nil && sender != "" {
		ok, err := s.registry.CheckSpendingLimit(ctx, sender, total)
		if err != nil {
			return nil, fmt.Errorf("check spending limit: %w", err)
		}
		if !ok {
			return nil, ErrOverSpendingLimit
		}
	}

	amounts, err := s.allocator.Split(ctx, total)
	if err != nil {
		return nil, err
	}

	due := uint64(s.now().Unix()) + 30*core.SecondsPerDay
	out := &Allocation{Amounts: amounts}

	if amounts.Bills.Sign() > 0 {
		out.BillID, err = s.bills.Create(ctx, core.Draft{
			Name:   "Remittance bills share",
			Amount: amounts.Bills,
			Due:    due,
		})
		if err != nil {
			return nil, fmt.Errorf("open bills obligation: %w", err)
		}
	}

	if amounts.Insurance.Sign() > 0 {
		out.PolicyID, err = s.policies.Create(ctx, core.Draft{
			Name:       "Remittance insurance premium",
			Amount:     amounts.Insurance,
			Due:        due,
			Recurrence: &core.Recurrence{FrequencyDays: 30},
		})
		if err != nil {
			return nil, fmt.Errorf("open premium obligation: %w", err)
		}
	}

	if amounts.Save.Sign() > 0 {
		out.GoalID, err = s.goals.Create(ctx, core.Draft{
			Name:   "Remittance savings share",
			Amount: amounts.Save,
			Due:    due,
		})
		if err != nil {
			return nil, fmt.Errorf("open savings obligation: %w", err)
		}
	}

	slog.InfoContext(ctx, "Remittance allocated",
		"sender", sender,
		"total", total.String(),
		"spend", amounts.Spend.String(),
		"save", amounts.Save.String(),
		"bills", amounts.Bills.String(),
		"insurance", amounts.Insurance.String())

	return out, nil
}
