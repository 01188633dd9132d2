/*
store.go - Persistence interfaces for the club domain

PURPOSE:
  Defines the interface between domain logic and the database. The billing
  engine depends only on these interfaces; store/sqlite provides the
  production implementation and club/store an in-memory one for tests.

KEY INTERFACES:
  Store:    all entity persistence (sports, students, fees, payments, users)
  TxStore:  Store plus WithTx for atomic multi-write operations

ATOMICITY:
  Payment acceptance and user+student registration write multiple rows
  that must land together. Callers use TxStore.WithTx: the closure gets a
  Store bound to one database transaction; returning an error rolls the
  whole unit of work back.

CONCURRENT PAYMENTS:
  UpdateFeeAmountPaid carries the previously observed amount as a guard.
  Implementations must make the update conditional on that value and
  return ErrConflict when it no longer matches, so two simultaneous
  payments cannot jointly exceed a fee's balance.

SEE ALSO:
  - store/sqlite/sqlite.go: production implementation
  - club/store/memory.go: in-memory implementation for tests
*/
package club

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

// =============================================================================
// STORE - Entity persistence
// =============================================================================

// SportStore persists the sport catalog.
type SportStore interface {
	CreateSport(ctx context.Context, s *Sport) error
	GetSport(ctx context.Context, id SportID) (*Sport, error)
	GetSportByName(ctx context.Context, name string) (*Sport, error)
	ListSports(ctx context.Context) ([]Sport, error)
	UpdateSport(ctx context.Context, s *Sport) error
}

// StudentStore persists the student registry.
type StudentStore interface {
	CreateStudent(ctx context.Context, s *Student) error
	GetStudent(ctx context.Context, id StudentID) (*Student, error)
	// FindStudentsByName matches first or last name case-insensitively.
	FindStudentsByName(ctx context.Context, term string) ([]Student, error)
	ListStudents(ctx context.Context, f StudentFilter) ([]Student, error)
	UpdateStudent(ctx context.Context, s *Student) error
}

// FeeStore persists fees. Fees are created by the generator and their
// amountPaid is mutated only through UpdateFeeAmountPaid; no delete exists.
type FeeStore interface {
	CreateFee(ctx context.Context, f *Fee) error
	GetFee(ctx context.Context, id FeeID) (*Fee, error)
	// FeeExists reports whether the student already has a fee for the month.
	FeeExists(ctx context.Context, studentID StudentID, m BillingMonth) (bool, error)
	// ListStudentFees returns all fees for a student ordered by start date.
	ListStudentFees(ctx context.Context, studentID StudentID) ([]Fee, error)
	// ListUnpaidFeesBefore returns the student's not-fully-paid fees whose
	// period starts strictly before the given date, ordered by start date.
	ListUnpaidFeesBefore(ctx context.Context, studentID StudentID, before time.Time) ([]Fee, error)
	ListFees(ctx context.Context, f FeeFilter) ([]Fee, error)
	// UpdateFeeAmountPaid sets the fee's amountPaid to newPaid, guarded by
	// the previously observed value. Returns ErrConflict when the guard
	// no longer matches.
	UpdateFeeAmountPaid(ctx context.Context, id FeeID, observed, newPaid decimal.Decimal) error
}

// PaymentStore persists payments. Append-only: no update or delete.
type PaymentStore interface {
	CreatePayment(ctx context.Context, p *Payment) error
	ListFeePayments(ctx context.Context, feeID FeeID) ([]Payment, error)
	ListStudentPayments(ctx context.Context, studentID StudentID) ([]Payment, error)
}

// UserStore persists back-office accounts and their roles.
type UserStore interface {
	CreateUser(ctx context.Context, u *User) error
	// GetUserByEmail returns the user with roles populated.
	GetUserByEmail(ctx context.Context, email string) (*User, error)
	// EnsureRole creates the role if it does not exist yet.
	EnsureRole(ctx context.Context, name string) error
}

// BillingRunStore persists scheduler execution records.
type BillingRunStore interface {
	CreateBillingRun(ctx context.Context, r *BillingRun) error
	// HasCompletedRun reports whether a completed run exists for the month.
	HasCompletedRun(ctx context.Context, bm BillingMonth) (bool, error)
	ListBillingRuns(ctx context.Context, limit int) ([]BillingRun, error)
}

// Store bundles all entity stores.
type Store interface {
	SportStore
	StudentStore
	FeeStore
	PaymentStore
	UserStore
	BillingRunStore
}

// =============================================================================
// TRANSACTIONAL STORE
// =============================================================================

// TxStore wraps Store with transaction support.
type TxStore interface {
	Store

	// WithTx executes fn within one transaction. If fn returns an error
	// the transaction is rolled back, otherwise it is committed.
	WithTx(ctx context.Context, fn func(Store) error) error
}
