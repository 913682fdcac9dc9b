package reconciliation

import (
	"github.com/shopspring/decimal"
)

const (
	// DefaultToleranceDays is the default date window around the reference date
	DefaultToleranceDays = 7
)

// DefaultToleranceValue is the default accepted value difference (one currency unit)
var DefaultToleranceValue = decimal.NewFromInt(1)

// Tolerance bounds a candidate's distance from an installment. Both bounds are inclusive.
type Tolerance struct {
	Value decimal.Decimal
	Days  int
}

// DefaultTolerance returns 1.0 currency unit and 7 days
func DefaultTolerance() Tolerance {
	return Tolerance{
		Value: DefaultToleranceValue,
		Days:  DefaultToleranceDays,
	}
}

// Validate rejects negative bounds
func (t Tolerance) Validate() error {
	if t.Value.IsNegative() || t.Days < 0 {
		return ErrInvalidTolerance
	}
	return nil
}

// AcceptsValue returns true when diff is within the value bound
func (t Tolerance) AcceptsValue(diff decimal.Decimal) bool {
	return diff.LessThanOrEqual(t.Value)
}

// AcceptsDays returns true when diff is within the date bound
func (t Tolerance) AcceptsDays(diff int) bool {
	return diff <= t.Days
}
