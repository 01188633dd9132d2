/*
dto.go - Data Transfer Objects for API requests and responses

PURPOSE:
  Defines the JSON structures for API communication, decoupling the
  internal domain model from the external contract. Money crosses the
  wire as decimal strings ("120.50"), dates as YYYY-MM-DD.

NAMING CONVENTION:
  - *DTO: Response types returned to clients
  - *Request: Request body types from clients

VALIDATION:
  Request types carry go-playground/validator tags; handlers run the
  shared validator before touching domain logic.

SEE ALSO:
  - handlers.go: Uses these types
  - club/types.go: Domain types these mirror
*/
package api

import (
	"time"

	"github.com/clubworks/club-backoffice/billing"
	"github.com/clubworks/club-backoffice/club"
)

const dateLayout = "2006-01-02"

// =============================================================================
// SPORTS
// =============================================================================

// SportDTO represents a sport in API responses.
type SportDTO struct {
	ID         int64  `json:"id"`
	Name       string `json:"name"`
	MonthlyFee string `json:"monthly_fee"`
	CreatedAt  string `json:"created_at,omitempty"`
}

// CreateSportRequest is the request to add a sport to the catalog.
type CreateSportRequest struct {
	Name       string `json:"name" validate:"required,min=2,max=64"`
	MonthlyFee string `json:"monthly_fee" validate:"required"`
}

// UpdateSportRequest changes a sport's name or monthly rate.
type UpdateSportRequest struct {
	Name       string `json:"name" validate:"required,min=2,max=64"`
	MonthlyFee string `json:"monthly_fee" validate:"required"`
}

func toSportDTO(s club.Sport) SportDTO {
	return SportDTO{
		ID:         int64(s.ID),
		Name:       s.Name,
		MonthlyFee: s.MonthlyFee.String(),
		CreatedAt:  s.CreatedAt.Format(time.RFC3339),
	}
}

// =============================================================================
// STUDENTS
// =============================================================================

// StudentDTO represents a student in API responses.
type StudentDTO struct {
	ID        int64  `json:"id"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Document  string `json:"document"`
	Phone     string `json:"phone,omitempty"`
	BirthDate string `json:"birth_date,omitempty"`
	StartDate string `json:"start_date"`
	IsActive  bool   `json:"is_active"`
	SportID   int64  `json:"sport_id"`
	CreatedAt string `json:"created_at,omitempty"`
}

// CreateStudentRequest enrolls a new student.
type CreateStudentRequest struct {
	FirstName string `json:"first_name" validate:"required,min=1,max=64"`
	LastName  string `json:"last_name" validate:"required,min=1,max=64"`
	Document  string `json:"document" validate:"required,min=4,max=32"`
	Phone     string `json:"phone" validate:"omitempty,max=32"`
	BirthDate string `json:"birth_date" validate:"omitempty"`
	StartDate string `json:"start_date" validate:"omitempty"`
	SportID   int64  `json:"sport_id" validate:"required,gt=0"`
}

// UpdateStudentRequest modifies an existing student.
type UpdateStudentRequest struct {
	FirstName string `json:"first_name" validate:"required,min=1,max=64"`
	LastName  string `json:"last_name" validate:"required,min=1,max=64"`
	Document  string `json:"document" validate:"required,min=4,max=32"`
	Phone     string `json:"phone" validate:"omitempty,max=32"`
	BirthDate string `json:"birth_date" validate:"omitempty"`
	IsActive  *bool  `json:"is_active" validate:"required"`
	SportID   int64  `json:"sport_id" validate:"required,gt=0"`
}

func toStudentDTO(s club.Student) StudentDTO {
	dto := StudentDTO{
		ID:        int64(s.ID),
		FirstName: s.FirstName,
		LastName:  s.LastName,
		Document:  s.Document,
		Phone:     s.Phone,
		StartDate: s.StartDate.Format(dateLayout),
		IsActive:  s.IsActive,
		SportID:   int64(s.SportID),
		CreatedAt: s.CreatedAt.Format(time.RFC3339),
	}
	if !s.BirthDate.IsZero() {
		dto.BirthDate = s.BirthDate.Format(dateLayout)
	}
	return dto
}

// =============================================================================
// FEES
// =============================================================================

// FeeDTO represents a fee with its derived status.
type FeeDTO struct {
	ID         int64  `json:"id"`
	StudentID  int64  `json:"student_id"`
	SportID    int64  `json:"sport_id"`
	StartDate  string `json:"start_date"`
	EndDate    string `json:"end_date"`
	Month      int    `json:"month"`
	Year       int    `json:"year"`
	Value      string `json:"value"`
	AmountPaid string `json:"amount_paid"`
	Remaining  string `json:"remaining"`
	Status     string `json:"status"`
	Overdue    bool   `json:"overdue"`
}

func toFeeDTO(f club.Fee, now time.Time) FeeDTO {
	return FeeDTO{
		ID:         int64(f.ID),
		StudentID:  int64(f.StudentID),
		SportID:    int64(f.SportID),
		StartDate:  f.StartDate.Format(dateLayout),
		EndDate:    f.EndDate.Format(dateLayout),
		Month:      int(f.Month),
		Year:       f.Year,
		Value:      f.Value.String(),
		AmountPaid: f.AmountPaid.String(),
		Remaining:  f.Remaining().String(),
		Status:     string(f.Status()),
		Overdue:    f.IsOverdue(now),
	}
}

func toFeeDTOs(fees []club.Fee, now time.Time) []FeeDTO {
	dtos := make([]FeeDTO, len(fees))
	for i, f := range fees {
		dtos[i] = toFeeDTO(f, now)
	}
	return dtos
}

// FeeSummaryDTO is the dashboard aggregate for one student.
type FeeSummaryDTO struct {
	Total       int      `json:"total"`
	Paid        int      `json:"paid"`
	Partial     int      `json:"partial"`
	Pending     int      `json:"pending"`
	Overdue     int      `json:"overdue"`
	TotalDue    string   `json:"total_due"`
	OverdueFees []FeeDTO `json:"overdue_fees"`
	NextPayable *FeeDTO  `json:"next_payable,omitempty"`
}

func toFeeSummaryDTO(s club.FeeSummary, now time.Time) FeeSummaryDTO {
	dto := FeeSummaryDTO{
		Total:       s.Total,
		Paid:        s.Paid,
		Partial:     s.Partial,
		Pending:     s.Pending,
		Overdue:     s.Overdue,
		TotalDue:    s.TotalDue.String(),
		OverdueFees: toFeeDTOs(s.OverdueFees, now),
	}
	if s.NextPayable != nil {
		next := toFeeDTO(*s.NextPayable, now)
		dto.NextPayable = &next
	}
	return dto
}

// =============================================================================
// PAYMENTS
// =============================================================================

// PaymentDTO represents a recorded payment.
type PaymentDTO struct {
	ID          int64  `json:"id"`
	Receipt     string `json:"receipt"`
	StudentID   int64  `json:"student_id"`
	FeeID       int64  `json:"fee_id"`
	Amount      string `json:"amount"`
	PaymentDate string `json:"payment_date"`
	Method      string `json:"method,omitempty"`
}

// RecordPaymentRequest applies a payment to a fee.
type RecordPaymentRequest struct {
	FeeID       int64  `json:"fee_id" validate:"required,gt=0"`
	Amount      string `json:"amount" validate:"required"`
	PaymentDate string `json:"payment_date" validate:"omitempty"`
	Method      string `json:"method" validate:"omitempty,max=32"`
}

func toPaymentDTO(p club.Payment) PaymentDTO {
	return PaymentDTO{
		ID:          int64(p.ID),
		Receipt:     p.Receipt,
		StudentID:   int64(p.StudentID),
		FeeID:       int64(p.FeeID),
		Amount:      p.Amount.String(),
		PaymentDate: p.PaymentDate.Format(dateLayout),
		Method:      p.Method,
	}
}

// ValidationDTO reports whether a fee is currently payable.
type ValidationDTO struct {
	Valid        bool     `json:"valid"`
	Message      string   `json:"message,omitempty"`
	BlockingFees []FeeDTO `json:"blocking_fees,omitempty"`
}

func toValidationDTO(v billing.ValidationResult, now time.Time) ValidationDTO {
	return ValidationDTO{
		Valid:        v.Valid,
		Message:      v.Message,
		BlockingFees: toFeeDTOs(v.BlockingFees, now),
	}
}

// =============================================================================
// AUTH
// =============================================================================

// LoginRequest carries login credentials.
type LoginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=6"`
}

// UserDTO represents an authenticated account.
type UserDTO struct {
	ID       int64    `json:"id"`
	Email    string   `json:"email"`
	FullName string   `json:"full_name"`
	Roles    []string `json:"roles"`
}

// LoginResponse returns the signed token and the account it represents.
type LoginResponse struct {
	Token string  `json:"token"`
	User  UserDTO `json:"user"`
}

// RegisterRequest creates an account plus its student record in one call.
type RegisterRequest struct {
	Email     string `json:"email" validate:"required,email"`
	Password  string `json:"password" validate:"required,min=6"`
	FirstName string `json:"first_name" validate:"required,min=1,max=64"`
	LastName  string `json:"last_name" validate:"required,min=1,max=64"`
	Document  string `json:"document" validate:"required,min=4,max=32"`
	Phone     string `json:"phone" validate:"omitempty,max=32"`
	BirthDate string `json:"birth_date" validate:"omitempty"`
	SportID   int64  `json:"sport_id" validate:"required,gt=0"`
}

// RegisterResponse returns the created account, student, and first fees.
type RegisterResponse struct {
	Token   string     `json:"token"`
	User    UserDTO    `json:"user"`
	Student StudentDTO `json:"student"`
	Fees    []FeeDTO   `json:"fees"`
}

func toUserDTO(u club.User) UserDTO {
	return UserDTO{
		ID:       int64(u.ID),
		Email:    u.Email,
		FullName: u.FullName,
		Roles:    u.Roles,
	}
}

// =============================================================================
// BILLING ADMIN
// =============================================================================

// BatchResultDTO summarizes a batch fee generation.
type BatchResultDTO struct {
	StudentsProcessed int      `json:"students_processed"`
	FeesCreated       int      `json:"fees_created"`
	Failures          []string `json:"failures,omitempty"`
}

func toBatchResultDTO(r billing.BatchResult) BatchResultDTO {
	dto := BatchResultDTO{
		StudentsProcessed: r.StudentsProcessed,
		FeesCreated:       r.FeesCreated,
	}
	for _, f := range r.Failures {
		dto.Failures = append(dto.Failures, f.Err.Error())
	}
	return dto
}

// BillingRunDTO represents one scheduler execution.
type BillingRunDTO struct {
	ID                string `json:"id"`
	Month             int    `json:"month"`
	Year              int    `json:"year"`
	Status            string `json:"status"`
	StudentsProcessed int    `json:"students_processed"`
	FeesCreated       int    `json:"fees_created"`
	Error             string `json:"error,omitempty"`
	StartedAt         string `json:"started_at"`
	CompletedAt       string `json:"completed_at,omitempty"`
}

func toBillingRunDTO(r club.BillingRun) BillingRunDTO {
	dto := BillingRunDTO{
		ID:                r.ID,
		Month:             int(r.Month),
		Year:              r.Year,
		Status:            r.Status,
		StudentsProcessed: r.StudentsProcessed,
		FeesCreated:       r.FeesCreated,
		Error:             r.Error,
		StartedAt:         r.StartedAt.Format(time.RFC3339),
	}
	if !r.CompletedAt.IsZero() {
		dto.CompletedAt = r.CompletedAt.Format(time.RFC3339)
	}
	return dto
}

// DashboardDTO is the club-wide admin aggregate.
type DashboardDTO struct {
	ActiveStudents  int    `json:"active_students"`
	TotalStudents   int    `json:"total_students"`
	Sports          int    `json:"sports"`
	FeesThisMonth   int    `json:"fees_this_month"`
	PaidThisMonth   int    `json:"paid_this_month"`
	OutstandingDue  string `json:"outstanding_due"`
	OverdueStudents int    `json:"overdue_students"`
}

// ErrorResponse is the JSON error envelope.
type ErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}
