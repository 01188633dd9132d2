package club

import "time"

// =============================================================================
// BILLING MONTH - The unit of fee generation
// =============================================================================

// BillingMonth identifies a calendar month being billed. Fees are unique
// per (student, billing month); the generator walks months forward from a
// reference date with year rollover handled by time.Date normalization.
type BillingMonth struct {
	Year  int
	Month time.Month
}

// BillingMonthOf returns the billing month containing t.
func BillingMonthOf(t time.Time) BillingMonth {
	return BillingMonth{Year: t.Year(), Month: t.Month()}
}

// AddMonths returns the billing month n months after m.
// time.Date normalizes month 13 into January of the next year.
func (m BillingMonth) AddMonths(n int) BillingMonth {
	t := time.Date(m.Year, m.Month+time.Month(n), 1, 0, 0, 0, 0, time.UTC)
	return BillingMonth{Year: t.Year(), Month: t.Month()}
}

// StartDate returns the first calendar day of the month.
func (m BillingMonth) StartDate() time.Time {
	return time.Date(m.Year, m.Month, 1, 0, 0, 0, 0, time.UTC)
}

// EndDate returns the last calendar day of the month.
func (m BillingMonth) EndDate() time.Time {
	return time.Date(m.Year, m.Month+1, 1, 0, 0, 0, 0, time.UTC).AddDate(0, 0, -1)
}

// Before reports whether m is strictly earlier than other.
func (m BillingMonth) Before(other BillingMonth) bool {
	if m.Year != other.Year {
		return m.Year < other.Year
	}
	return m.Month < other.Month
}

func (m BillingMonth) Equal(other BillingMonth) bool {
	return m.Year == other.Year && m.Month == other.Month
}

func (m BillingMonth) String() string {
	return m.StartDate().Format("2006-01")
}

// UpcomingMonths returns the next n billing months strictly after the
// month containing ref: ref+1, ref+2, ..., ref+n.
func UpcomingMonths(ref time.Time, n int) []BillingMonth {
	base := BillingMonthOf(ref)
	months := make([]BillingMonth, 0, n)
	for i := 1; i <= n; i++ {
		months = append(months, base.AddMonths(i))
	}
	return months
}
