package core

import (
	"errors"
	"strings"

	"github.com/shopspring/decimal"
)

// SecondsPerDay is the day length used for recurrence date arithmetic.
const SecondsPerDay = 86400

type (
	// State is the settlement state of an obligation. The transition
	// Open -> Settled happens at most once and is never reversed.
	State uint8

	// Recurrence makes settlement spawn a successor obligation offset
	// by a fixed number of days.
	Recurrence struct {
		FrequencyDays uint32
	}

	// Record is one obligation instance. Immutable after creation except
	// for State; renewal creates a fresh sibling record instead of
	// mutating the original further.
	Record struct {
		ID         uint64
		Name       string
		Category   string
		Amount     decimal.Decimal
		Due        uint64 // Unix timestamp, seconds
		Recurrence *Recurrence
		State      State
	}

	// Draft holds the caller-supplied fields of a record before an id
	// and state are assigned.
	Draft struct {
		Name       string
		Category   string
		Amount     decimal.Decimal
		Due        uint64
		Recurrence *Recurrence
	}

	// Aggregates are the incrementally maintained figures derived from
	// the record map: count and amount sum of all Open records.
	Aggregates struct {
		OpenCount uint64
		TotalOpen decimal.Decimal
	}
)

const (
	Open State = iota
	Settled
)

func (s State) String() string {
	switch s {
	case Open:
		return "open"
	case Settled:
		return "settled"
	default:
		return "unknown"
	}
}

var (
	ErrInvalidAmount = errors.New("invalid amount")
	ErrInvalidDate   = errors.New("invalid date")
	ErrEmptyName     = errors.New("empty name")
	ErrInvalidSplit  = errors.New("percentages must be non-negative and sum to 100")
)

// Validate checks the caller-supplied fields of a draft. It never touches
// storage, so a failed validation cannot leave partial state behind.
func (d Draft) Validate() error {
	if len(strings.TrimSpace(d.Name)) == 0 {
		return ErrEmptyName
	}
	if len(d.Name) > 200 {
		return errors.New("name too long (max 200 characters)")
	}
	return ValidateAmount(d.Amount)
}

// Renew computes the successor record spawned by settling rec, using id as
// the fresh identifier. The successor keeps the name, category, amount and
// recurrence, and is due FrequencyDays after the settled record's due date.
// Returns false when rec carries no recurrence.
func Renew(rec Record, id uint64) (Record, bool) {
	if rec.Recurrence == nil {
		return Record{}, false
	}
	next := Record{
		ID:         id,
		Name:       rec.Name,
		Category:   rec.Category,
		Amount:     rec.Amount,
		Due:        rec.Due + uint64(rec.Recurrence.FrequencyDays)*SecondsPerDay,
		Recurrence: &Recurrence{FrequencyDays: rec.Recurrence.FrequencyDays},
		State:      Open,
	}
	return next, true
}

func (a Aggregates) IsZero() bool {
	return a.OpenCount == 0 && a.TotalOpen.IsZero()
}
