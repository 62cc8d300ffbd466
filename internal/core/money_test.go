package core

import (
	"math/big"
	"testing"

	"github.com/shopspring/decimal"
)

func TestParseAmount(t *testing.T) {
	tests := []struct {
		in      string
		want    int64
		wantErr bool
	}{
		{"1", 1, false},
		{"100000000", 100_000_000, false},
		{" 42 ", 42, false},
		{"", 0, true},
		{"0", 0, true},
		{"-5", 0, true},
		{"+5", 0, true},
		{"12.50", 0, true},
		{"12,50", 0, true},
		{"abc", 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseAmount(tt.in)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseAmount(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			}
			if !tt.wantErr && !got.Equal(decimal.NewFromInt(tt.want)) {
				t.Errorf("ParseAmount(%q) = %s, want %d", tt.in, got, tt.want)
			}
		})
	}
}

func TestParseLimit_AdmitsZero(t *testing.T) {
	got, err := ParseLimit("0")
	if err != nil {
		t.Fatalf("ParseLimit(\"0\") error = %v", err)
	}
	if !got.IsZero() {
		t.Errorf("ParseLimit(\"0\") = %s, want 0", got)
	}

	if _, err := ParseLimit("-1"); err != ErrInvalidAmount {
		t.Errorf("ParseLimit(\"-1\") error = %v, want ErrInvalidAmount", err)
	}
}

func TestValidateAmount_Int128Bounds(t *testing.T) {
	max := new(big.Int).Sub(new(big.Int).Lsh(big.NewInt(1), 127), big.NewInt(1))

	if err := ValidateAmount(decimal.NewFromBigInt(max, 0)); err != nil {
		t.Errorf("ValidateAmount(2^127-1) = %v, want nil", err)
	}

	over := new(big.Int).Add(max, big.NewInt(1))
	if err := ValidateAmount(decimal.NewFromBigInt(over, 0)); err != ErrInvalidAmount {
		t.Errorf("ValidateAmount(2^127) = %v, want ErrInvalidAmount", err)
	}
}
