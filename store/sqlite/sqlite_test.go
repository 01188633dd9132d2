package sqlite_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/clubworks/club-backoffice/club"
	"github.com/clubworks/club-backoffice/store/sqlite"
)

// =============================================================================
// TEST SETUP
// =============================================================================

func newTestStore(t *testing.T) *sqlite.Store {
	t.Helper()
	store, err := sqlite.New(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func createSport(t *testing.T, s club.Store, name, fee string) club.Sport {
	t.Helper()
	sport := club.Sport{Name: name, MonthlyFee: decimal.RequireFromString(fee)}
	require.NoError(t, s.CreateSport(context.Background(), &sport))
	return sport
}

func createStudent(t *testing.T, s club.Store, doc string, sportID club.SportID) club.Student {
	t.Helper()
	student := club.Student{
		FirstName: "Maria",
		LastName:  "Gomes",
		Document:  doc,
		Phone:     "555-0100",
		IsActive:  true,
		SportID:   sportID,
		StartDate: time.Date(2025, time.February, 3, 0, 0, 0, 0, time.UTC),
	}
	require.NoError(t, s.CreateStudent(context.Background(), &student))
	return student
}

func createFee(t *testing.T, s club.Store, studentID club.StudentID, sportID club.SportID, year int, month time.Month, value string) club.Fee {
	t.Helper()
	bm := club.BillingMonth{Year: year, Month: month}
	fee := club.Fee{
		StudentID:  studentID,
		SportID:    sportID,
		StartDate:  bm.StartDate(),
		EndDate:    bm.EndDate(),
		Month:      month,
		Year:       year,
		Value:      decimal.RequireFromString(value),
		AmountPaid: decimal.Zero,
	}
	require.NoError(t, s.CreateFee(context.Background(), &fee))
	return fee
}

// =============================================================================
// SPORT & STUDENT TESTS
// =============================================================================

func TestSqlite_SportRoundtrip(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	created := createSport(t, store, "Swimming", "120.50")
	require.NotZero(t, created.ID)

	got, err := store.GetSport(ctx, created.ID)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "Swimming", got.Name)
	assert.True(t, got.MonthlyFee.Equal(decimal.RequireFromString("120.50")))

	byName, err := store.GetSportByName(ctx, "swimming")
	require.NoError(t, err)
	require.NotNil(t, byName)
	assert.Equal(t, created.ID, byName.ID)

	missing, err := store.GetSport(ctx, club.SportID(999))
	require.NoError(t, err)
	assert.Nil(t, missing)
}

func TestSqlite_DuplicateSportName_Conflict(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	createSport(t, store, "Judo", "80")
	dup := club.Sport{Name: "judo", MonthlyFee: decimal.RequireFromString("90")}
	err := store.CreateSport(ctx, &dup)
	assert.ErrorIs(t, err, club.ErrConflict)
}

func TestSqlite_UpdateSportRate(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	sport := createSport(t, store, "Tennis", "200")
	sport.MonthlyFee = decimal.RequireFromString("220")
	require.NoError(t, store.UpdateSport(ctx, &sport))

	got, err := store.GetSport(ctx, sport.ID)
	require.NoError(t, err)
	assert.True(t, got.MonthlyFee.Equal(decimal.RequireFromString("220")))
}

func TestSqlite_DuplicateDocument_Rejected(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	sport := createSport(t, store, "Futsal", "90")
	createStudent(t, store, "12345678", sport.ID)

	dup := club.Student{
		FirstName: "Joana", LastName: "Lima", Document: "12345678",
		IsActive: true, SportID: sport.ID,
		StartDate: time.Now().UTC(),
	}
	err := store.CreateStudent(ctx, &dup)
	assert.ErrorIs(t, err, club.ErrDuplicateDocument)
}

func TestSqlite_FindStudentsByName_CaseInsensitive(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	sport := createSport(t, store, "Volleyball", "75")
	createStudent(t, store, "doc-a", sport.ID) // Maria Gomes

	found, err := store.FindStudentsByName(ctx, "gom")
	require.NoError(t, err)
	require.Len(t, found, 1)
	assert.Equal(t, "Maria", found[0].FirstName)

	none, err := store.FindStudentsByName(ctx, "xyz")
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestSqlite_ListStudents_FilterAndPagination(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	sport := createSport(t, store, "Basketball", "100")
	a := createStudent(t, store, "doc-1", sport.ID)
	b := createStudent(t, store, "doc-2", sport.ID)
	createStudent(t, store, "doc-3", sport.ID)

	b.IsActive = false
	require.NoError(t, store.UpdateStudent(ctx, &b))

	active := true
	got, err := store.ListStudents(ctx, club.StudentFilter{Active: &active})
	require.NoError(t, err)
	assert.Len(t, got, 2)

	page, err := store.ListStudents(ctx, club.StudentFilter{Limit: 1, Offset: 0})
	require.NoError(t, err)
	require.Len(t, page, 1)
	assert.Equal(t, a.ID, page[0].ID)
}

// =============================================================================
// FEE TESTS
// =============================================================================

func TestSqlite_FeeUniquePerMonth(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	sport := createSport(t, store, "Swimming", "100")
	student := createStudent(t, store, "doc-f1", sport.ID)
	createFee(t, store, student.ID, sport.ID, 2025, time.March, "100")

	dup := club.Fee{
		StudentID: student.ID, SportID: sport.ID,
		StartDate: time.Date(2025, time.March, 1, 0, 0, 0, 0, time.UTC),
		EndDate:   time.Date(2025, time.March, 31, 0, 0, 0, 0, time.UTC),
		Month:     time.March, Year: 2025,
		Value: decimal.RequireFromString("100"), AmountPaid: decimal.Zero,
	}
	err := store.CreateFee(ctx, &dup)
	assert.ErrorIs(t, err, club.ErrConflict)

	exists, err := store.FeeExists(ctx, student.ID, club.BillingMonth{Year: 2025, Month: time.March})
	require.NoError(t, err)
	assert.True(t, exists)

	exists, err = store.FeeExists(ctx, student.ID, club.BillingMonth{Year: 2025, Month: time.April})
	require.NoError(t, err)
	assert.False(t, exists)
}

func TestSqlite_ListUnpaidFeesBefore(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	sport := createSport(t, store, "Swimming", "100")
	student := createStudent(t, store, "doc-f2", sport.ID)
	jan := createFee(t, store, student.ID, sport.ID, 2025, time.January, "100")
	feb := createFee(t, store, student.ID, sport.ID, 2025, time.February, "100")
	mar := createFee(t, store, student.ID, sport.ID, 2025, time.March, "100")

	// Settle February
	require.NoError(t, store.UpdateFeeAmountPaid(ctx, feb.ID, decimal.Zero, decimal.RequireFromString("100")))

	unpaid, err := store.ListUnpaidFeesBefore(ctx, student.ID, mar.StartDate)
	require.NoError(t, err)
	require.Len(t, unpaid, 1)
	assert.Equal(t, jan.ID, unpaid[0].ID)
}

func TestSqlite_UpdateFeeAmountPaid_Guard(t *testing.T) {
	// GIVEN: A fee with amountPaid 0
	// WHEN: Updating with a stale observed value
	// THEN: ErrConflict, stored balance untouched

	store := newTestStore(t)
	ctx := context.Background()

	sport := createSport(t, store, "Swimming", "100")
	student := createStudent(t, store, "doc-f3", sport.ID)
	fee := createFee(t, store, student.ID, sport.ID, 2025, time.May, "100")

	require.NoError(t, store.UpdateFeeAmountPaid(ctx, fee.ID, decimal.Zero, decimal.RequireFromString("40")))

	err := store.UpdateFeeAmountPaid(ctx, fee.ID, decimal.Zero, decimal.RequireFromString("70"))
	assert.ErrorIs(t, err, club.ErrConflict)

	err = store.UpdateFeeAmountPaid(ctx, club.FeeID(999), decimal.Zero, decimal.RequireFromString("10"))
	assert.ErrorIs(t, err, club.ErrFeeNotFound)

	got, err := store.GetFee(ctx, fee.ID)
	require.NoError(t, err)
	assert.True(t, got.AmountPaid.Equal(decimal.RequireFromString("40")))
}

// =============================================================================
// TRANSACTION TESTS
// =============================================================================

func TestSqlite_WithTx_RollsBackOnError(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	sport := createSport(t, store, "Swimming", "100")
	student := createStudent(t, store, "doc-t1", sport.ID)
	fee := createFee(t, store, student.ID, sport.ID, 2025, time.June, "100")

	boom := errors.New("boom")
	err := store.WithTx(ctx, func(s club.Store) error {
		if err := s.UpdateFeeAmountPaid(ctx, fee.ID, decimal.Zero, decimal.RequireFromString("100")); err != nil {
			return err
		}
		return boom
	})
	require.ErrorIs(t, err, boom)

	got, err := store.GetFee(ctx, fee.ID)
	require.NoError(t, err)
	assert.True(t, got.AmountPaid.IsZero(), "rolled-back update must not persist")
}

func TestSqlite_WithTx_CommitsOnSuccess(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	sport := createSport(t, store, "Swimming", "100")
	student := createStudent(t, store, "doc-t2", sport.ID)
	fee := createFee(t, store, student.ID, sport.ID, 2025, time.July, "100")

	err := store.WithTx(ctx, func(s club.Store) error {
		if err := s.UpdateFeeAmountPaid(ctx, fee.ID, decimal.Zero, decimal.RequireFromString("100")); err != nil {
			return err
		}
		return s.CreatePayment(ctx, &club.Payment{
			Receipt: "rcpt-1", StudentID: student.ID, FeeID: fee.ID,
			Amount:      decimal.RequireFromString("100"),
			PaymentDate: time.Now().UTC(), Method: "cash",
		})
	})
	require.NoError(t, err)

	payments, err := store.ListFeePayments(ctx, fee.ID)
	require.NoError(t, err)
	assert.Len(t, payments, 1)
}

// =============================================================================
// USER & BILLING RUN TESTS
// =============================================================================

func TestSqlite_UserRolesRoundtrip(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	user := club.User{
		Email:        "Admin@Club.test",
		FullName:     "Club Admin",
		PasswordHash: "hash",
		IsActive:     true,
		Roles:        []string{club.RoleAdmin, club.RoleUser},
	}
	require.NoError(t, store.CreateUser(ctx, &user))

	got, err := store.GetUserByEmail(ctx, "admin@club.test")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.ElementsMatch(t, []string{club.RoleAdmin, club.RoleUser}, got.Roles)
	assert.True(t, got.IsAdmin())

	dup := club.User{Email: "admin@club.test", FullName: "x", PasswordHash: "y", IsActive: true}
	assert.ErrorIs(t, store.CreateUser(ctx, &dup), club.ErrConflict)
}

func TestSqlite_BillingRuns(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	march := club.BillingMonth{Year: 2025, Month: time.March}
	done, err := store.HasCompletedRun(ctx, march)
	require.NoError(t, err)
	assert.False(t, done)

	run := club.BillingRun{
		ID: "run-1", Month: time.March, Year: 2025,
		Status: club.RunStatusCompleted, StudentsProcessed: 10, FeesCreated: 30,
		StartedAt: time.Now().UTC(), CompletedAt: time.Now().UTC(),
	}
	require.NoError(t, store.CreateBillingRun(ctx, &run))

	done, err = store.HasCompletedRun(ctx, march)
	require.NoError(t, err)
	assert.True(t, done)

	// A failed run does not mark the month as done
	fail := club.BillingRun{
		ID: "run-2", Month: time.April, Year: 2025,
		Status: club.RunStatusFailed, Error: "db unavailable",
		StartedAt: time.Now().UTC(),
	}
	require.NoError(t, store.CreateBillingRun(ctx, &fail))

	done, err = store.HasCompletedRun(ctx, club.BillingMonth{Year: 2025, Month: time.April})
	require.NoError(t, err)
	assert.False(t, done)

	runs, err := store.ListBillingRuns(ctx, 10)
	require.NoError(t, err)
	assert.Len(t, runs, 2)
}
