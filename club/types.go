/*
Package club contains the core domain model for the club back-office.

PURPOSE:
  This package defines the entities the back-office manages (sports,
  students, membership fees, and payments) together with the pure rules
  that can be computed from them (fee status, remaining balance, overdue
  detection). It has no persistence or HTTP concerns: those live in
  store/sqlite and api respectively, behind the interfaces in store.go.

KEY CONCEPTS IN THIS FILE (types.go):
  - Sport: a catalog entry with a monthly fee rate
  - Student: a club member, enrolled in exactly one sport
  - Fee: one billing month's membership charge for a student
  - Payment: an immutable record of money applied against a fee
  - User/Role: back-office accounts for authentication

DESIGN PRINCIPLES:
  1. Precision: all money values are decimal.Decimal, never float
  2. Derivation over storage: a fee's status is computed from its
     amounts, it is never persisted where it could drift
  3. Immutability: payments are created once and never modified;
     a fee's amountPaid is the only mutable money field
  4. Type safety: distinct ID types prevent mixing student/fee/sport IDs

SEE ALSO:
  - summary.go: fee status and dashboard derivation
  - month.go: billing month arithmetic
  - store.go: persistence interfaces
  - errors.go: domain error taxonomy
*/
package club

import (
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/crypto/bcrypt"
)

// =============================================================================
// IDENTIFIERS
// =============================================================================

type (
	SportID   int64
	StudentID int64
	FeeID     int64
	PaymentID int64
	UserID    int64
)

// =============================================================================
// SPORT - Catalog entry with its monthly rate
// =============================================================================

// Sport is a catalog entry. MonthlyFee is the rate copied onto each Fee
// at generation time; changing it later never touches existing fees.
type Sport struct {
	ID         SportID
	Name       string
	MonthlyFee decimal.Decimal
	CreatedAt  time.Time
}

// =============================================================================
// STUDENT - A club member enrolled in one sport
// =============================================================================

type Student struct {
	ID        StudentID
	FirstName string
	LastName  string
	Document  string // unique identity document
	Phone     string
	BirthDate time.Time
	StartDate time.Time // enrollment date
	IsActive  bool
	SportID   SportID
	CreatedAt time.Time
}

// FullName returns "Last, First" the way the back-office displays members.
func (s Student) FullName() string {
	return s.LastName + ", " + s.FirstName
}

// StudentFilter narrows student listings.
type StudentFilter struct {
	Active *bool
	Limit  int
	Offset int
}

// =============================================================================
// FEE - One billing month's membership charge
// =============================================================================

// Fee is a single billing month's charge for a student. Value is fixed at
// creation from the student's sport rate; AmountPaid accumulates via
// payment acceptance and never exceeds Value.
type Fee struct {
	ID         FeeID
	StudentID  StudentID
	SportID    SportID
	StartDate  time.Time // first calendar day of the billing month
	EndDate    time.Time // last calendar day of the billing month
	Month      time.Month
	Year       int
	Value      decimal.Decimal
	AmountPaid decimal.Decimal
	CreatedAt  time.Time
}

// BillingMonth returns the (year, month) pair this fee bills.
func (f Fee) BillingMonth() BillingMonth {
	return BillingMonth{Year: f.Year, Month: f.Month}
}

// FeeFilter narrows fee listings.
type FeeFilter struct {
	StudentID *StudentID
	Month     *time.Month
	Year      *int
}

// =============================================================================
// PAYMENT - Immutable record of money applied against a fee
// =============================================================================

type Payment struct {
	ID          PaymentID
	Receipt     string // uuid, unique per payment
	StudentID   StudentID
	FeeID       FeeID
	Amount      decimal.Decimal
	PaymentDate time.Time
	Method      string // "cash", "transfer", "card", ...
	CreatedAt   time.Time
}

// =============================================================================
// USERS & ROLES - Back-office accounts
// =============================================================================

const (
	RoleUser       = "user"
	RoleAdmin      = "admin"
	RoleSuperAdmin = "super-admin"
)

type User struct {
	ID           UserID
	Email        string
	FullName     string
	PasswordHash string
	IsActive     bool
	Roles        []string
	CreatedAt    time.Time
}

// SetPassword replaces the stored hash with a bcrypt hash of plain.
func (u *User) SetPassword(plain string) error {
	hash, err := bcrypt.GenerateFromPassword([]byte(plain), bcrypt.DefaultCost)
	if err != nil {
		return err
	}
	u.PasswordHash = string(hash)
	return nil
}

// CheckPassword reports whether plain matches the stored hash.
func (u User) CheckPassword(plain string) error {
	return bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(plain))
}

// HasRole reports whether the user carries the named role.
func (u User) HasRole(name string) bool {
	for _, r := range u.Roles {
		if r == name {
			return true
		}
	}
	return false
}

// IsAdmin reports whether the user may use the admin surface.
func (u User) IsAdmin() bool {
	return u.HasRole(RoleAdmin) || u.HasRole(RoleSuperAdmin)
}

// =============================================================================
// BILLING RUNS - Scheduler execution records
// =============================================================================

const (
	RunStatusCompleted = "completed"
	RunStatusFailed    = "failed"
)

// BillingRun records one execution of the monthly fee generation job.
// A completed run per (month, year) makes later triggers in the same
// month no-ops.
type BillingRun struct {
	ID                string // uuid
	Month             time.Month
	Year              int
	Status            string
	StudentsProcessed int
	FeesCreated       int
	Error             string
	StartedAt         time.Time
	CompletedAt       time.Time
}
