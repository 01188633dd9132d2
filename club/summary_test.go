package club_test

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/clubworks/club-backoffice/club"
)

func fee(year int, month time.Month, value, paid string) club.Fee {
	bm := club.BillingMonth{Year: year, Month: month}
	return club.Fee{
		StartDate:  bm.StartDate(),
		EndDate:    bm.EndDate(),
		Month:      month,
		Year:       year,
		Value:      decimal.RequireFromString(value),
		AmountPaid: decimal.RequireFromString(paid),
	}
}

func TestFeeStatus_Classification(t *testing.T) {
	assert.Equal(t, club.StatusPending, fee(2025, time.January, "100", "0").Status())
	assert.Equal(t, club.StatusPartial, fee(2025, time.January, "100", "0.01").Status())
	assert.Equal(t, club.StatusPartial, fee(2025, time.January, "100", "99.99").Status())
	assert.Equal(t, club.StatusPaid, fee(2025, time.January, "100", "100").Status())
	// Overshoot still counts as paid, never stored but tolerated on read
	assert.Equal(t, club.StatusPaid, fee(2025, time.January, "100", "120").Status())
}

func TestFeeRemaining_ClampedAtZero(t *testing.T) {
	assert.True(t, fee(2025, time.January, "100", "40").Remaining().Equal(decimal.RequireFromString("60")))
	assert.True(t, fee(2025, time.January, "100", "120").Remaining().IsZero())
}

func TestFeeIsOverdue(t *testing.T) {
	now := time.Date(2025, time.March, 15, 0, 0, 0, 0, time.UTC)

	assert.True(t, fee(2025, time.February, "100", "0").IsOverdue(now))
	assert.True(t, fee(2025, time.February, "100", "50").IsOverdue(now))
	assert.False(t, fee(2025, time.February, "100", "100").IsOverdue(now))
	// Current and future months are never overdue
	assert.False(t, fee(2025, time.March, "100", "0").IsOverdue(now))
	assert.False(t, fee(2025, time.April, "100", "0").IsOverdue(now))
}

func TestSummarize(t *testing.T) {
	// GIVEN: Jan paid, Feb half paid, Mar and Apr pending, today mid-March
	// THEN: Feb is overdue and next payable, total due sums the balances

	now := time.Date(2025, time.March, 15, 0, 0, 0, 0, time.UTC)
	fees := []club.Fee{
		fee(2025, time.January, "100", "100"),
		fee(2025, time.February, "100", "50"),
		fee(2025, time.March, "100", "0"),
		fee(2025, time.April, "100", "0"),
	}

	s := club.Summarize(fees, now)

	assert.Equal(t, 4, s.Total)
	assert.Equal(t, 1, s.Paid)
	assert.Equal(t, 1, s.Partial)
	assert.Equal(t, 2, s.Pending)
	assert.Equal(t, 1, s.Overdue)
	require.Len(t, s.OverdueFees, 1)
	assert.Equal(t, time.February, s.OverdueFees[0].Month)

	assert.True(t, s.TotalDue.Equal(decimal.RequireFromString("250")))
	require.NotNil(t, s.NextPayable)
	assert.Equal(t, time.February, s.NextPayable.Month)
}

func TestSummarize_AllPaid(t *testing.T) {
	now := time.Date(2025, time.May, 1, 0, 0, 0, 0, time.UTC)
	fees := []club.Fee{
		fee(2025, time.January, "100", "100"),
		fee(2025, time.February, "100", "100"),
	}

	s := club.Summarize(fees, now)

	assert.Equal(t, 2, s.Paid)
	assert.Zero(t, s.Overdue)
	assert.True(t, s.TotalDue.IsZero())
	assert.Nil(t, s.NextPayable)
}

func TestSummarize_Empty(t *testing.T) {
	s := club.Summarize(nil, time.Now())
	assert.Zero(t, s.Total)
	assert.Nil(t, s.NextPayable)
	assert.True(t, s.TotalDue.IsZero())
}
