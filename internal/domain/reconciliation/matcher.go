package reconciliation

import (
	"sort"
	"time"

	"github.com/shopspring/decimal"
)

// MatchOutcome classifies the result of matching one installment
type MatchOutcome string

const (
	OutcomeUnique    MatchOutcome = "unique"
	OutcomeAmbiguous MatchOutcome = "ambiguous"
	OutcomeNotFound  MatchOutcome = "not_found"
)

// NotFoundReason explains why no candidate was accepted
type NotFoundReason string

const (
	ReasonMissingCustomer     NotFoundReason = "missing_customer"
	ReasonNoOrdersForCustomer NotFoundReason = "no_orders_for_customer"
	ReasonNoMatchingValue     NotFoundReason = "no_matching_value"
	ReasonNoMatchingDate      NotFoundReason = "no_matching_date"
)

// RejectionReason names the tolerance bound a candidate exceeded
type RejectionReason string

const (
	RejectionNone         RejectionReason = ""
	RejectionValue        RejectionReason = "valor_fora_da_tolerancia"
	RejectionDate         RejectionReason = "data_fora_da_tolerancia"
	RejectionValueAndDate RejectionReason = "valor_e_data_fora_da_tolerancia"
)

// MatchCandidate is an (installment, order) pair scored during one run. Never persisted.
type MatchCandidate struct {
	Order     SalesOrder
	DiffValue decimal.Decimal
	DiffDays  int
	Rejection RejectionReason
}

// Accepted returns true when the candidate satisfied both bounds
func (c MatchCandidate) Accepted() bool {
	return c.Rejection == RejectionNone
}

// MatchResult is the classification of one installment
type MatchResult struct {
	Outcome MatchOutcome
	// Match is set only for OutcomeUnique
	Match *MatchCandidate
	// Reason is set only for OutcomeNotFound
	Reason NotFoundReason
	// Candidates holds every candidate considered, closest first
	Candidates []MatchCandidate
}

// Matcher classifies installments against candidate sales orders
type Matcher struct {
	tolerance Tolerance
}

// NewMatcher creates a matcher with the given tolerance
func NewMatcher(tolerance Tolerance) *Matcher {
	return &Matcher{tolerance: tolerance}
}

// Tolerance returns the bounds the matcher applies
func (m *Matcher) Tolerance() Tolerance {
	return m.tolerance
}

// Resolve classifies an installment against the orders of its customer.
// Orders without an ERP identifier are not eligible targets and are ignored.
// Resolve never selects among several accepted candidates.
func (m *Matcher) Resolve(subject InstallmentContext, orders []SalesOrder) MatchResult {
	if subject.CustomerID() == nil {
		return MatchResult{Outcome: OutcomeNotFound, Reason: ReasonMissingCustomer}
	}

	referenceDate := subject.ReferenceDate()
	amount := subject.Installment.Amount

	candidates := make([]MatchCandidate, 0, len(orders))
	for _, order := range orders {
		if !order.HasERPID() {
			continue
		}
		candidates = append(candidates, m.score(amount, referenceDate, order))
	}

	if len(candidates) == 0 {
		return MatchResult{Outcome: OutcomeNotFound, Reason: ReasonNoOrdersForCustomer}
	}

	sortCandidates(candidates)

	accepted := make([]MatchCandidate, 0, len(candidates))
	valueMatched := false
	for _, c := range candidates {
		if c.Accepted() {
			accepted = append(accepted, c)
		}
		if m.tolerance.AcceptsValue(c.DiffValue) {
			valueMatched = true
		}
	}

	switch len(accepted) {
	case 0:
		reason := ReasonNoMatchingValue
		if valueMatched {
			reason = ReasonNoMatchingDate
		}
		return MatchResult{Outcome: OutcomeNotFound, Reason: reason, Candidates: candidates}
	case 1:
		match := accepted[0]
		return MatchResult{Outcome: OutcomeUnique, Match: &match, Candidates: accepted}
	default:
		return MatchResult{Outcome: OutcomeAmbiguous, Candidates: accepted}
	}
}

func (m *Matcher) score(amount decimal.Decimal, referenceDate time.Time, order SalesOrder) MatchCandidate {
	diffValue := amount.Sub(order.Total).Abs()
	diffDays := DaysBetween(referenceDate, order.OrderDate)

	valueOK := m.tolerance.AcceptsValue(diffValue)
	daysOK := m.tolerance.AcceptsDays(diffDays)

	rejection := RejectionNone
	switch {
	case !valueOK && !daysOK:
		rejection = RejectionValueAndDate
	case !valueOK:
		rejection = RejectionValue
	case !daysOK:
		rejection = RejectionDate
	}

	return MatchCandidate{
		Order:     order,
		DiffValue: diffValue,
		DiffDays:  diffDays,
		Rejection: rejection,
	}
}

// sortCandidates orders by (diffDays asc, diffValue asc), then order number for a stable tie.
func sortCandidates(candidates []MatchCandidate) {
	sort.SliceStable(candidates, func(i, j int) bool {
		a, b := candidates[i], candidates[j]
		if a.DiffDays != b.DiffDays {
			return a.DiffDays < b.DiffDays
		}
		if cmp := a.DiffValue.Cmp(b.DiffValue); cmp != 0 {
			return cmp < 0
		}
		return a.Order.Number < b.Order.Number
	})
}

// DaysBetween returns the absolute number of calendar days between a and b, in UTC.
func DaysBetween(a, b time.Time) int {
	days := dayNumber(b) - dayNumber(a)
	if days < 0 {
		return -days
	}
	return days
}

// dayNumber counts days from the Unix epoch. Day numbers do not saturate the
// way time.Duration does for dates centuries apart.
func dayNumber(t time.Time) int {
	u := t.UTC()
	return int(time.Date(u.Year(), u.Month(), u.Day(), 0, 0, 0, 0, time.UTC).Unix() / secondsPerDay)
}

const secondsPerDay = 24 * 60 * 60
