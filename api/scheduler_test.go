package api

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/clubworks/club-backoffice/billing"
	"github.com/clubworks/club-backoffice/club"
	"github.com/clubworks/club-backoffice/club/store"
)

func TestScheduler_GeneratesOncePerMonth(t *testing.T) {
	// GIVEN: A student without fees
	// WHEN: The scheduler check runs twice in the same month
	// THEN: Fees are generated once, one completed run is recorded

	ctx := context.Background()
	mem := store.NewMemory()
	engine := billing.NewEngine(mem)

	sport := club.Sport{Name: "Swimming", MonthlyFee: decimal.RequireFromString("100")}
	require.NoError(t, mem.CreateSport(ctx, &sport))
	student := club.Student{
		FirstName: "Lia", LastName: "Nunes", Document: "010203",
		IsActive: true, SportID: sport.ID, StartDate: time.Now().UTC(),
	}
	require.NoError(t, mem.CreateStudent(ctx, &student))

	scheduler := NewBillingScheduler(mem, engine)

	scheduler.checkAndGenerate()
	scheduler.checkAndGenerate()

	fees, err := mem.ListStudentFees(ctx, student.ID)
	require.NoError(t, err)
	assert.Len(t, fees, 3)

	runs, err := mem.ListBillingRuns(ctx, 10)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, club.RunStatusCompleted, runs[0].Status)
	assert.Equal(t, 1, runs[0].StudentsProcessed)
	assert.Equal(t, 3, runs[0].FeesCreated)

	done, err := mem.HasCompletedRun(ctx, club.BillingMonthOf(time.Now().UTC()))
	require.NoError(t, err)
	assert.True(t, done)
}

func TestScheduler_StartStop_Disabled(t *testing.T) {
	mem := store.NewMemory()
	scheduler := NewBillingScheduler(mem, billing.NewEngine(mem))
	scheduler.Enabled = false

	// Start on a disabled scheduler is a no-op, Stop must not block.
	scheduler.Start()
	scheduler.Stop()
}
