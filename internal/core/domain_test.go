package core

import (
	"strings"
	"testing"

	"github.com/shopspring/decimal"
)

func TestDraftValidate(t *testing.T) {
	tests := []struct {
		name    string
		draft   Draft
		wantErr error
	}{
		{
			name:  "valid one-time draft",
			draft: Draft{Name: "Electricity", Amount: decimal.NewFromInt(100_000_000), Due: 1704067200},
		},
		{
			name:    "empty name",
			draft:   Draft{Name: "   ", Amount: decimal.NewFromInt(10)},
			wantErr: ErrEmptyName,
		},
		{
			name:    "zero amount",
			draft:   Draft{Name: "Rent", Amount: decimal.Zero},
			wantErr: ErrInvalidAmount,
		},
		{
			name:    "negative amount",
			draft:   Draft{Name: "Rent", Amount: decimal.NewFromInt(-5)},
			wantErr: ErrInvalidAmount,
		},
		{
			name:    "fractional amount",
			draft:   Draft{Name: "Rent", Amount: decimal.RequireFromString("12.5")},
			wantErr: ErrInvalidAmount,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.draft.Validate()
			if err != tt.wantErr {
				t.Errorf("Validate() error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestDraftValidate_NameTooLong(t *testing.T) {
	d := Draft{Name: strings.Repeat("x", 201), Amount: decimal.NewFromInt(1)}
	if err := d.Validate(); err == nil {
		t.Error("Validate() accepted a 201-character name")
	}
}

func TestRenew(t *testing.T) {
	rec := Record{
		ID:         3,
		Name:       "Electricity",
		Category:   "utilities",
		Amount:     decimal.NewFromInt(100_000_000),
		Due:        1704067200, // 2024-01-01
		Recurrence: &Recurrence{FrequencyDays: 30},
		State:      Settled,
	}

	next, ok := Renew(rec, 4)
	if !ok {
		t.Fatal("Renew() = false for a recurring record")
	}
	if next.ID != 4 {
		t.Errorf("successor id = %d, want 4", next.ID)
	}
	if next.Due != 1706659200 {
		t.Errorf("successor due = %d, want 1706659200", next.Due)
	}
	if !next.Amount.Equal(rec.Amount) {
		t.Errorf("successor amount = %s, want %s", next.Amount, rec.Amount)
	}
	if next.State != Open {
		t.Errorf("successor state = %s, want open", next.State)
	}
	if next.Recurrence == nil || next.Recurrence.FrequencyDays != 30 {
		t.Errorf("successor recurrence = %+v, want 30 days", next.Recurrence)
	}
}

func TestRenew_NonRecurring(t *testing.T) {
	rec := Record{ID: 1, Name: "One-off", Amount: decimal.NewFromInt(10), Due: 1704067200}
	if _, ok := Renew(rec, 2); ok {
		t.Error("Renew() = true for a record without recurrence")
	}
}

func TestRenew_DoesNotAliasRecurrence(t *testing.T) {
	rec := Record{
		ID:         1,
		Name:       "Premium",
		Amount:     decimal.NewFromInt(500),
		Due:        1704067200,
		Recurrence: &Recurrence{FrequencyDays: 30},
	}
	next, _ := Renew(rec, 2)
	next.Recurrence.FrequencyDays = 7
	if rec.Recurrence.FrequencyDays != 30 {
		t.Error("Renew() shared the recurrence pointer with the source record")
	}
}
