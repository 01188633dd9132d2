/*
errors.go - Centralized error types for the club domain

PURPOSE:
  All domain error types in one place. The store and api packages wrap
  these with additional context; handlers map them onto HTTP statuses.

ERROR CATEGORIES:
  1. Not-Found errors - missing student/fee/sport/user
  2. Validation errors - business rule violations (sequencing, overpayment)
  3. Conflict errors - duplicate keys, concurrent modification

USAGE:
  Callers check categories with errors.Is, or the IsNotFound /
  IsClientError / IsConflict helpers:

    if errors.Is(err, club.ErrFeeNotFound) { ... }
    if club.IsClientError(err) { // -> 400 }

SEE ALSO:
  - billing/payments.go: produces SequenceError and OverpaymentError
  - store/sqlite/sqlite.go: translates UNIQUE failures to ErrConflict
  - api/handlers.go: maps categories to HTTP statuses
*/
package club

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

// =============================================================================
// SENTINEL ERRORS - Use with errors.Is()
// =============================================================================

var (
	// ErrStudentNotFound is returned when a referenced student doesn't exist.
	ErrStudentNotFound = errors.New("student not found")

	// ErrSportNotFound is returned when a referenced sport doesn't exist.
	ErrSportNotFound = errors.New("sport not found")

	// ErrFeeNotFound is returned when a referenced fee doesn't exist.
	ErrFeeNotFound = errors.New("fee not found")

	// ErrUserNotFound is returned when a user lookup misses.
	ErrUserNotFound = errors.New("user not found")

	// ErrFeeAlreadyPaid is returned when a payment targets a fully paid fee.
	ErrFeeAlreadyPaid = errors.New("fee already fully paid")

	// ErrOutOfSequence is returned when an earlier unpaid fee blocks payment.
	ErrOutOfSequence = errors.New("earlier unpaid fees block this payment")

	// ErrOverpayment is returned when an amount exceeds the remaining balance.
	ErrOverpayment = errors.New("amount exceeds remaining balance")

	// ErrFeeMismatch is returned when a fee does not belong to the student.
	ErrFeeMismatch = errors.New("fee does not belong to student")

	// ErrDuplicateDocument is returned when a student document already exists.
	ErrDuplicateDocument = errors.New("document already registered")

	// ErrConflict is returned on duplicate unique keys or when a concurrent
	// update to the same fee is detected during payment acceptance.
	ErrConflict = errors.New("conflicting update")

	// ErrInvalidAmount is returned for zero or negative payment amounts.
	ErrInvalidAmount = errors.New("amount must be positive")
)

// =============================================================================
// STRUCTURED ERRORS - Carry additional context
// =============================================================================

// SequenceError reports which earlier billing months block a payment.
// Carries the full list of blocking fees so callers can resolve them.
type SequenceError struct {
	StudentID StudentID
	FeeID     FeeID
	Blocking  []Fee
}

func (e *SequenceError) Error() string {
	if len(e.Blocking) == 0 {
		return ErrOutOfSequence.Error()
	}
	first := e.Blocking[0]
	return fmt.Sprintf("fee %d cannot be paid: %d earlier unpaid fee(s), starting with %s",
		e.FeeID, len(e.Blocking), first.BillingMonth())
}

func (e *SequenceError) Unwrap() error { return ErrOutOfSequence }

// OverpaymentError reports how much of the fee remains payable.
type OverpaymentError struct {
	FeeID     FeeID
	Requested decimal.Decimal
	Remaining decimal.Decimal
}

func (e *OverpaymentError) Error() string {
	return fmt.Sprintf("payment of %s exceeds remaining balance %s on fee %d",
		e.Requested, e.Remaining, e.FeeID)
}

func (e *OverpaymentError) Unwrap() error { return ErrOverpayment }

// =============================================================================
// ERROR HELPERS
// =============================================================================

// IsNotFound returns true if the error indicates a missing record.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrStudentNotFound) ||
		errors.Is(err, ErrSportNotFound) ||
		errors.Is(err, ErrFeeNotFound) ||
		errors.Is(err, ErrUserNotFound)
}

// IsClientError returns true if the error is correctable by the caller.
func IsClientError(err error) bool {
	return errors.Is(err, ErrFeeAlreadyPaid) ||
		errors.Is(err, ErrOutOfSequence) ||
		errors.Is(err, ErrOverpayment) ||
		errors.Is(err, ErrFeeMismatch) ||
		errors.Is(err, ErrDuplicateDocument) ||
		errors.Is(err, ErrInvalidAmount)
}

// IsConflict returns true for duplicate-key and concurrent-update errors.
func IsConflict(err error) bool {
	return errors.Is(err, ErrConflict)
}
