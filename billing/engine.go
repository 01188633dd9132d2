/*
Package billing implements the membership fee lifecycle.

PURPOSE:
  Everything between "a student exists" and "a month is paid for" lives
  here: generating the rolling three-month fee horizon, enforcing the
  chronological payment order, applying payments against fee balances,
  and deriving per-student summaries.

COMPONENTS:
  generator.go  EnsureUpcomingFees / EnsureUpcomingFeesFor
  sequencer.go  ValidateSequentialPayment (chronological order rule)
  payments.go   RecordPayment (atomic balance update + payment insert)

THE SEQUENTIAL PAYMENT RULE:
  A fee may only be paid once every fee with an earlier period start date
  is fully paid. This holds regardless of the current calendar date: a
  student cannot pay March while January is outstanding, even in June.

ATOMICITY:
  Each operation runs inside one store transaction (club.TxStore.WithTx).
  A payment either updates the fee balance AND inserts the payment row,
  or does neither.

USAGE:
  engine := billing.NewEngine(store)
  fees, err := engine.EnsureUpcomingFeesFor(ctx, studentID)
  payment, err := engine.RecordPayment(ctx, billing.RecordPaymentInput{...})

SEE ALSO:
  - club/summary.go: status derivation used by the summary endpoints
  - api/scheduler.go: monthly trigger calling EnsureUpcomingFees
*/
package billing

import (
	"context"
	"time"

	"github.com/clubworks/club-backoffice/club"
)

// FeeHorizonMonths is how many upcoming billing months the generator
// keeps funded ahead of the reference date.
const FeeHorizonMonths = 3

// Engine executes fee lifecycle operations against a transactional store.
type Engine struct {
	store club.TxStore
}

// NewEngine creates an engine bound to the given store.
func NewEngine(store club.TxStore) *Engine {
	return &Engine{store: store}
}

// StudentSummary returns the dashboard aggregate for one student's fees.
// Fails with ErrStudentNotFound when the student does not exist.
func (e *Engine) StudentSummary(ctx context.Context, studentID club.StudentID, now time.Time) (club.FeeSummary, error) {
	student, err := e.store.GetStudent(ctx, studentID)
	if err != nil {
		return club.FeeSummary{}, err
	}
	if student == nil {
		return club.FeeSummary{}, club.ErrStudentNotFound
	}

	fees, err := e.store.ListStudentFees(ctx, studentID)
	if err != nil {
		return club.FeeSummary{}, err
	}
	return club.Summarize(fees, now), nil
}
