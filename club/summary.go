/*
summary.go - Derived fee status and dashboard aggregation

PURPOSE:
  Pure read-side derivation over fees. Status is never stored; it is
  recomputed from value and amountPaid every time so it cannot drift.

RULES:
  paid     amountPaid >= value
  partial  0 < amountPaid < value
  pending  amountPaid == 0
  overdue  billing month strictly before the current month AND not paid

SEE ALSO:
  - billing/sequencer.go: uses the same not-fully-paid predicate
  - api/handlers.go: exposes summaries over HTTP
*/
package club

import (
	"time"

	"github.com/shopspring/decimal"
)

// =============================================================================
// FEE STATUS
// =============================================================================

type FeeStatus string

const (
	StatusPending FeeStatus = "pending"
	StatusPartial FeeStatus = "partial"
	StatusPaid    FeeStatus = "paid"
)

// Status classifies the fee from its amounts.
func (f Fee) Status() FeeStatus {
	switch {
	case f.AmountPaid.GreaterThanOrEqual(f.Value):
		return StatusPaid
	case f.AmountPaid.IsPositive():
		return StatusPartial
	default:
		return StatusPending
	}
}

// IsPaid reports whether the fee is fully settled.
func (f Fee) IsPaid() bool { return f.Status() == StatusPaid }

// Remaining returns the outstanding balance, clamped at zero.
func (f Fee) Remaining() decimal.Decimal {
	r := f.Value.Sub(f.AmountPaid)
	if r.IsNegative() {
		return decimal.Zero
	}
	return r
}

// IsOverdue reports whether the fee's billing month has passed without
// full payment, relative to now.
func (f Fee) IsOverdue(now time.Time) bool {
	return f.BillingMonth().Before(BillingMonthOf(now)) && !f.IsPaid()
}

// =============================================================================
// SUMMARY - Dashboard aggregate over a student's fees
// =============================================================================

// FeeSummary aggregates a student's fees for the dashboard view.
type FeeSummary struct {
	Total   int
	Paid    int
	Partial int
	Pending int
	Overdue int

	TotalDue decimal.Decimal // sum of remaining balances

	OverdueFees []Fee
	NextPayable *Fee // earliest not-fully-paid fee, nil when up to date
}

// Summarize classifies each fee and aggregates counts. Fees must belong to
// a single student; they are scanned in period-start order, so the first
// not-fully-paid fee encountered is the next payable one.
func Summarize(fees []Fee, now time.Time) FeeSummary {
	s := FeeSummary{Total: len(fees), TotalDue: decimal.Zero}

	for i := range fees {
		f := fees[i]
		switch f.Status() {
		case StatusPaid:
			s.Paid++
		case StatusPartial:
			s.Partial++
		case StatusPending:
			s.Pending++
		}

		if f.IsOverdue(now) {
			s.Overdue++
			s.OverdueFees = append(s.OverdueFees, f)
		}

		if !f.IsPaid() {
			s.TotalDue = s.TotalDue.Add(f.Remaining())
			if s.NextPayable == nil {
				s.NextPayable = &fees[i]
			}
		}
	}
	return s
}
