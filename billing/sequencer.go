/*
sequencer.go - Chronological payment ordering

PURPOSE:
  Enforces that a student's fees are paid strictly oldest-first. A fee
  becomes payable only when every fee with an earlier billing period is
  fully paid. Partial payments on the oldest unpaid fee are fine; what is
  forbidden is touching a later fee while an earlier one still has a
  balance.

DESIGN:
  Business rejections (wrong student, already paid, blocked by earlier
  fees) come back as a ValidationResult value, not an error. Errors are
  reserved for missing fees and storage faults. RecordPayment reuses the
  same check inside its transaction so the rule cannot be bypassed
  between validation and write.
*/
package billing

import (
	"context"
	"fmt"

	"github.com/clubworks/club-backoffice/club"
)

// =============================================================================
// VALIDATION RESULT
// =============================================================================

// ValidationResult reports whether a fee is currently payable by a student.
type ValidationResult struct {
	Valid        bool       `json:"valid"`
	Message      string     `json:"message,omitempty"`
	BlockingFees []club.Fee `json:"blockingFees,omitempty"`
}

func validResult() ValidationResult {
	return ValidationResult{Valid: true}
}

func invalidResult(msg string, blocking []club.Fee) ValidationResult {
	return ValidationResult{Valid: false, Message: msg, BlockingFees: blocking}
}

// =============================================================================
// SEQUENCE CHECK
// =============================================================================

// ValidateSequentialPayment checks whether feeID is payable by studentID
// right now. The fee must belong to the student, must not already be
// fully paid, and every fee with an earlier period start must be settled.
func (e *Engine) ValidateSequentialPayment(ctx context.Context, studentID club.StudentID, feeID club.FeeID) (ValidationResult, error) {
	return validateSequence(ctx, e.store, studentID, feeID)
}

// validateSequence is the transaction-safe core shared with RecordPayment.
func validateSequence(ctx context.Context, s club.Store, studentID club.StudentID, feeID club.FeeID) (ValidationResult, error) {
	fee, err := s.GetFee(ctx, feeID)
	if err != nil {
		return ValidationResult{}, err
	}
	if fee == nil {
		return ValidationResult{}, fmt.Errorf("fee %d: %w", feeID, club.ErrFeeNotFound)
	}

	if fee.StudentID != studentID {
		return invalidResult(fmt.Sprintf("fee %d does not belong to student %d", feeID, studentID), nil), nil
	}
	if fee.IsPaid() {
		return invalidResult(fmt.Sprintf("fee %d is already fully paid", feeID), nil), nil
	}

	blocking, err := s.ListUnpaidFeesBefore(ctx, studentID, fee.StartDate)
	if err != nil {
		return ValidationResult{}, err
	}
	if len(blocking) > 0 {
		msg := fmt.Sprintf("%d earlier unpaid fee(s) must be settled first, oldest is %s",
			len(blocking), blocking[0].BillingMonth())
		return invalidResult(msg, blocking), nil
	}

	return validResult(), nil
}
