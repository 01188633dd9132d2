/*
payments.go - Payment recording

PURPOSE:
  Records a payment against a fee after every business check has passed:
  positive amount, student exists, fee exists and belongs to the student,
  no earlier unpaid fee, and the amount fits within the fee's remaining
  balance. The fee balance update and the payment row are committed in a
  single transaction.

CONCURRENCY:
  The fee update is guarded by the amountPaid value observed inside the
  transaction. Two racing payments on the same fee cannot both apply; the
  loser sees ErrConflict and the caller retries.
*/
package billing

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/clubworks/club-backoffice/club"
)

// =============================================================================
// INPUT
// =============================================================================

// RecordPaymentInput carries everything needed to record one payment.
type RecordPaymentInput struct {
	StudentID   club.StudentID
	FeeID       club.FeeID
	Amount      decimal.Decimal
	PaymentDate time.Time
	Method      string
}

// =============================================================================
// RECORDING
// =============================================================================

// RecordPayment validates and applies a payment. On success the returned
// payment carries its generated receipt number and the fee's balance has
// been advanced by the paid amount.
func (e *Engine) RecordPayment(ctx context.Context, in RecordPaymentInput) (*club.Payment, error) {
	if in.Amount.LessThanOrEqual(decimal.Zero) {
		return nil, fmt.Errorf("payment amount %s: %w", in.Amount, club.ErrInvalidAmount)
	}

	var payment *club.Payment
	err := e.store.WithTx(ctx, func(s club.Store) error {
		student, err := s.GetStudent(ctx, in.StudentID)
		if err != nil {
			return err
		}
		if student == nil {
			return fmt.Errorf("student %d: %w", in.StudentID, club.ErrStudentNotFound)
		}

		fee, err := s.GetFee(ctx, in.FeeID)
		if err != nil {
			return err
		}
		if fee == nil {
			return fmt.Errorf("fee %d: %w", in.FeeID, club.ErrFeeNotFound)
		}
		if fee.StudentID != in.StudentID {
			return fmt.Errorf("fee %d, student %d: %w", in.FeeID, in.StudentID, club.ErrFeeMismatch)
		}
		if fee.IsPaid() {
			return fmt.Errorf("fee %d: %w", in.FeeID, club.ErrFeeAlreadyPaid)
		}

		blocking, err := s.ListUnpaidFeesBefore(ctx, in.StudentID, fee.StartDate)
		if err != nil {
			return err
		}
		if len(blocking) > 0 {
			return &club.SequenceError{StudentID: in.StudentID, FeeID: in.FeeID, Blocking: blocking}
		}

		remaining := fee.Remaining()
		if in.Amount.GreaterThan(remaining) {
			return &club.OverpaymentError{FeeID: in.FeeID, Requested: in.Amount, Remaining: remaining}
		}

		newPaid := fee.AmountPaid.Add(in.Amount)
		if err := s.UpdateFeeAmountPaid(ctx, in.FeeID, fee.AmountPaid, newPaid); err != nil {
			return err
		}

		when := in.PaymentDate
		if when.IsZero() {
			when = time.Now().UTC()
		}
		payment = &club.Payment{
			Receipt:     uuid.NewString(),
			StudentID:   in.StudentID,
			FeeID:       in.FeeID,
			Amount:      in.Amount,
			PaymentDate: when,
			Method:      in.Method,
		}
		return s.CreatePayment(ctx, payment)
	})
	if err != nil {
		return nil, err
	}
	return payment, nil
}
