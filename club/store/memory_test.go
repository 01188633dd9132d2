package store

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/clubworks/club-backoffice/club"
)

// =============================================================================
// HELPERS
// =============================================================================

func newFee(studentID club.StudentID, month, year int, value string) *club.Fee {
	bm := club.BillingMonth{Year: year, Month: time.Month(month)}
	start, end := bm.StartDate(), bm.EndDate()
	v, _ := decimal.NewFromString(value)
	return &club.Fee{
		StudentID:  studentID,
		Month:      time.Month(month),
		Year:       year,
		Value:      v,
		AmountPaid: decimal.Zero,
		StartDate:  start,
		EndDate:    end,
	}
}

// =============================================================================
// TRANSACTIONS
// =============================================================================

func TestMemory_WithTx_RollbackRestoresState(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()

	// GIVEN: one student before the transaction
	require.NoError(t, m.CreateStudent(ctx, &club.Student{FirstName: "Ana", Document: "100"}))

	// WHEN: a transaction creates a student and a fee, then fails
	boom := errors.New("boom")
	err := m.WithTx(ctx, func(s club.Store) error {
		if err := s.CreateStudent(ctx, &club.Student{FirstName: "Bruno", Document: "200"}); err != nil {
			return err
		}
		if err := s.CreateFee(ctx, newFee(2, 3, 2025, "80")); err != nil {
			return err
		}
		return boom
	})
	require.ErrorIs(t, err, boom)

	// THEN: none of the writes survived
	students, err := m.ListStudents(ctx, club.StudentFilter{})
	require.NoError(t, err)
	assert.Len(t, students, 1)

	fee, err := m.GetFee(ctx, 1)
	require.NoError(t, err)
	assert.Nil(t, fee)

	// AND: ID allocation rewound, so the next create reuses the ID
	require.NoError(t, m.CreateStudent(ctx, &club.Student{FirstName: "Carla", Document: "300"}))
	got, err := m.GetStudent(ctx, 2)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "Carla", got.FirstName)
}

func TestMemory_WithTx_CommitKeepsWrites(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()

	err := m.WithTx(ctx, func(s club.Store) error {
		return s.CreateStudent(ctx, &club.Student{FirstName: "Ana", Document: "100"})
	})
	require.NoError(t, err)

	got, err := m.GetStudent(ctx, 1)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "Ana", got.FirstName)
}

// =============================================================================
// OPTIMISTIC GUARD
// =============================================================================

func TestMemory_UpdateFeeAmountPaid_Guard(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()

	fee := newFee(1, 1, 2025, "100")
	require.NoError(t, m.CreateFee(ctx, fee))

	// WHEN: updating with the correct observed value
	err := m.UpdateFeeAmountPaid(ctx, fee.ID, decimal.Zero, decimal.NewFromInt(40))
	require.NoError(t, err)

	// THEN: a second update using the stale observed value is rejected
	err = m.UpdateFeeAmountPaid(ctx, fee.ID, decimal.Zero, decimal.NewFromInt(60))
	assert.ErrorIs(t, err, club.ErrConflict)

	// AND: an update on a missing fee reports not found
	err = m.UpdateFeeAmountPaid(ctx, 999, decimal.Zero, decimal.NewFromInt(10))
	assert.ErrorIs(t, err, club.ErrFeeNotFound)

	got, err := m.GetFee(ctx, fee.ID)
	require.NoError(t, err)
	assert.True(t, got.AmountPaid.Equal(decimal.NewFromInt(40)))
}

// =============================================================================
// QUERIES
// =============================================================================

func TestMemory_ListUnpaidFeesBefore(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()

	jan := newFee(1, 1, 2025, "100")
	feb := newFee(1, 2, 2025, "100")
	mar := newFee(1, 3, 2025, "100")
	require.NoError(t, m.CreateFee(ctx, jan))
	require.NoError(t, m.CreateFee(ctx, feb))
	require.NoError(t, m.CreateFee(ctx, mar))

	// GIVEN: January fully paid
	require.NoError(t, m.UpdateFeeAmountPaid(ctx, jan.ID, decimal.Zero, decimal.NewFromInt(100)))

	// WHEN: listing unpaid fees before March
	unpaid, err := m.ListUnpaidFeesBefore(ctx, 1, mar.StartDate)
	require.NoError(t, err)

	// THEN: only February remains
	require.Len(t, unpaid, 1)
	assert.Equal(t, feb.ID, unpaid[0].ID)
}

func TestMemory_FindStudentsByName_CaseInsensitive(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()

	require.NoError(t, m.CreateStudent(ctx, &club.Student{FirstName: "Mariana", LastName: "Silva", Document: "100"}))
	require.NoError(t, m.CreateStudent(ctx, &club.Student{FirstName: "Pedro", LastName: "Marinho", Document: "200"}))
	require.NoError(t, m.CreateStudent(ctx, &club.Student{FirstName: "Lucas", LastName: "Costa", Document: "300"}))

	found, err := m.FindStudentsByName(ctx, "mari")
	require.NoError(t, err)
	assert.Len(t, found, 2)
}

func TestMemory_ListStudents_FilterAndPagination(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()

	for i, doc := range []string{"100", "200", "300"} {
		s := &club.Student{FirstName: "S", Document: doc, IsActive: i != 2}
		require.NoError(t, m.CreateStudent(ctx, s))
	}

	active := true
	got, err := m.ListStudents(ctx, club.StudentFilter{Active: &active})
	require.NoError(t, err)
	assert.Len(t, got, 2)

	got, err = m.ListStudents(ctx, club.StudentFilter{Limit: 1, Offset: 1})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, club.StudentID(2), got[0].ID)

	got, err = m.ListStudents(ctx, club.StudentFilter{Offset: 10})
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestMemory_BillingRuns_NewestFirst(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()

	for i, id := range []string{"run-1", "run-2", "run-3"} {
		require.NoError(t, m.CreateBillingRun(ctx, &club.BillingRun{
			ID:     id,
			Year:   2025,
			Month:  time.Month(i + 1),
			Status: club.RunStatusCompleted,
		}))
	}

	runs, err := m.ListBillingRuns(ctx, 2)
	require.NoError(t, err)
	require.Len(t, runs, 2)
	assert.Equal(t, "run-3", runs[0].ID)
	assert.Equal(t, "run-2", runs[1].ID)

	done, err := m.HasCompletedRun(ctx, club.BillingMonth{Year: 2025, Month: time.February})
	require.NoError(t, err)
	assert.True(t, done)

	done, err = m.HasCompletedRun(ctx, club.BillingMonth{Year: 2025, Month: time.December})
	require.NoError(t, err)
	assert.False(t, done)
}
