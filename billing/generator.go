/*
generator.go - Rolling fee horizon generation

PURPOSE:
  Keeps every student funded with fee records for the next three billing
  months after a reference date. Runs at student creation (so a new
  member has fees ready immediately) and from the monthly scheduler.

RULES:
  - Months generated: ref+1, ref+2, ref+3 with year rollover
  - Fee value is copied from the student's sport rate AT GENERATION TIME;
    later rate changes never touch existing fees
  - startDate/endDate are the first/last calendar day of the month
  - Idempotent: at most one fee per (student, month, year); re-running
    creates nothing new
  - Batch isolation: a student whose sport cannot be resolved fails alone,
    the rest of the batch still proceeds

SEE ALSO:
  - club/month.go: UpcomingMonths / BillingMonth arithmetic
  - api/scheduler.go: the monthly trigger
*/
package billing

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/clubworks/club-backoffice/club"
)

// =============================================================================
// BATCH RESULT
// =============================================================================

// StudentFailure records why one student's generation failed inside a batch.
type StudentFailure struct {
	StudentID club.StudentID
	Err       error
}

// BatchResult summarizes one batch generation run.
type BatchResult struct {
	StudentsProcessed int
	FeesCreated       int
	Failures          []StudentFailure
}

// =============================================================================
// GENERATION
// =============================================================================

// EnsureUpcomingFeesFor generates the missing upcoming fees for a single
// student, inside one transaction. Returns the fees it created (possibly
// none). Fails with ErrStudentNotFound / ErrSportNotFound when the student
// or its sport cannot be resolved.
func (e *Engine) EnsureUpcomingFeesFor(ctx context.Context, studentID club.StudentID) ([]club.Fee, error) {
	return e.EnsureUpcomingFeesForAt(ctx, studentID, time.Now().UTC())
}

// EnsureUpcomingFeesForAt is EnsureUpcomingFeesFor with an explicit
// reference date.
func (e *Engine) EnsureUpcomingFeesForAt(ctx context.Context, studentID club.StudentID, ref time.Time) ([]club.Fee, error) {
	var created []club.Fee
	err := e.store.WithTx(ctx, func(s club.Store) error {
		student, err := s.GetStudent(ctx, studentID)
		if err != nil {
			return err
		}
		if student == nil {
			return fmt.Errorf("student %d: %w", studentID, club.ErrStudentNotFound)
		}

		created, err = generateFees(ctx, s, student, ref)
		return err
	})
	if err != nil {
		return nil, err
	}
	return created, nil
}

// EnrollStudent creates a student together with their first fee window in
// one transaction. When account is non-nil it is created in the same
// transaction, so a failed enrollment leaves no orphan login.
func (e *Engine) EnrollStudent(ctx context.Context, account *club.User, student *club.Student) ([]club.Fee, error) {
	ref := time.Now().UTC()

	var created []club.Fee
	err := e.store.WithTx(ctx, func(s club.Store) error {
		sport, err := s.GetSport(ctx, student.SportID)
		if err != nil {
			return err
		}
		if sport == nil {
			return fmt.Errorf("sport %d: %w", student.SportID, club.ErrSportNotFound)
		}

		if account != nil {
			if err := s.CreateUser(ctx, account); err != nil {
				return err
			}
		}
		if err := s.CreateStudent(ctx, student); err != nil {
			return err
		}

		created, err = generateFees(ctx, s, student, ref)
		return err
	})
	if err != nil {
		return nil, err
	}
	return created, nil
}

// EnsureUpcomingFees generates missing upcoming fees for every student,
// relative to referenceDate. Each student runs in its own transaction so
// one failure cannot poison the batch; failures are collected in the
// result rather than aborting it.
func (e *Engine) EnsureUpcomingFees(ctx context.Context, referenceDate time.Time) (BatchResult, error) {
	students, err := e.store.ListStudents(ctx, club.StudentFilter{})
	if err != nil {
		return BatchResult{}, fmt.Errorf("listing students: %w", err)
	}

	var result BatchResult
	for i := range students {
		student := students[i]

		var created []club.Fee
		err := e.store.WithTx(ctx, func(s club.Store) error {
			var genErr error
			created, genErr = generateFees(ctx, s, &student, referenceDate)
			return genErr
		})
		if err != nil {
			result.Failures = append(result.Failures, StudentFailure{StudentID: student.ID, Err: err})
			continue
		}

		result.StudentsProcessed++
		result.FeesCreated += len(created)
	}
	return result, nil
}

// generateFees creates the missing fees for one student within the
// caller's transaction. The existence check makes re-runs no-ops.
func generateFees(ctx context.Context, s club.Store, student *club.Student, ref time.Time) ([]club.Fee, error) {
	sport, err := s.GetSport(ctx, student.SportID)
	if err != nil {
		return nil, err
	}
	if sport == nil {
		return nil, fmt.Errorf("student %d sport %d: %w", student.ID, student.SportID, club.ErrSportNotFound)
	}

	var created []club.Fee
	for _, bm := range club.UpcomingMonths(ref, FeeHorizonMonths) {
		exists, err := s.FeeExists(ctx, student.ID, bm)
		if err != nil {
			return nil, err
		}
		if exists {
			continue
		}

		fee := club.Fee{
			StudentID:  student.ID,
			SportID:    sport.ID,
			StartDate:  bm.StartDate(),
			EndDate:    bm.EndDate(),
			Month:      bm.Month,
			Year:       bm.Year,
			Value:      sport.MonthlyFee,
			AmountPaid: decimal.Zero,
		}
		if err := s.CreateFee(ctx, &fee); err != nil {
			return nil, fmt.Errorf("creating fee %s for student %d: %w", bm, student.ID, err)
		}
		created = append(created, fee)
	}
	return created, nil
}
