package core

import "github.com/shopspring/decimal"

// SplitConfig is the four-way percentage configuration of the allocator.
// The four values must sum to exactly 100; this is enforced when a config
// is written, never when it is read.
type SplitConfig struct {
	Spend     uint32
	Save      uint32
	Bills     uint32
	Insurance uint32
}

// SplitAmounts is the result of splitting a lump amount. The four parts
// always sum exactly to the input amount.
type SplitAmounts struct {
	Spend     decimal.Decimal
	Save      decimal.Decimal
	Bills     decimal.Decimal
	Insurance decimal.Decimal
}

// DefaultSplitConfig is the configuration observed before any Configure
// call: 50% spending, 30% savings, 15% bills, 5% insurance.
func DefaultSplitConfig() SplitConfig {
	return SplitConfig{Spend: 50, Save: 30, Bills: 15, Insurance: 5}
}

func (c SplitConfig) Validate() error {
	// uint32 addition could wrap on adversarial inputs; widen first.
	sum := uint64(c.Spend) + uint64(c.Save) + uint64(c.Bills) + uint64(c.Insurance)
	if sum != 100 {
		return ErrInvalidSplit
	}
	return nil
}

// Split divides total into the four category amounts. The first three
// categories get floor(total*pct/100) computed with exact integer
// arithmetic; the insurance part is the remainder. Truncating all four
// independently can drift from the input by up to 3 units, so the
// remainder assignment is what guarantees the parts sum exactly to total.
func (c SplitConfig) Split(total decimal.Decimal) (SplitAmounts, error) {
	if err := ValidateAmount(total); err != nil {
		return SplitAmounts{}, err
	}
	spend := share(total, c.Spend)
	save := share(total, c.Save)
	bills := share(total, c.Bills)
	insurance := total.Sub(spend).Sub(save).Sub(bills)
	return SplitAmounts{
		Spend:     spend,
		Save:      save,
		Bills:     bills,
		Insurance: insurance,
	}, nil
}

// share computes floor(total*pct/100). Shift(-2) divides by 100 exactly, so
// no rounding happens before the floor.
func share(total decimal.Decimal, pct uint32) decimal.Decimal {
	return total.Mul(decimal.NewFromInt(int64(pct))).Shift(-2).Floor()
}

// Sum returns the total of the four parts.
func (a SplitAmounts) Sum() decimal.Decimal {
	return a.Spend.Add(a.Save).Add(a.Bills).Add(a.Insurance)
}
