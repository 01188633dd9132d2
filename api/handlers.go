/*
handlers.go - HTTP API handlers for the club back-office

PURPOSE:
  Exposes the fee engine and registries via REST. Handles HTTP
  request/response, JSON serialization and validation, and delegates to
  domain logic.

ENDPOINTS:
  Auth:
    POST   /api/auth/login               Authenticate, returns JWT
    POST   /api/auth/register            Self-service account + student

  Sports:
    GET    /api/sports                   List catalog
    POST   /api/sports                   Create sport (admin)
    GET    /api/sports/{id}              Get sport
    PUT    /api/sports/{id}              Update name/rate (admin)

  Students:
    GET    /api/students                 List with filters (admin)
    POST   /api/students                 Enroll student + first fees (admin)
    GET    /api/students/{term}          Lookup by id or name fragment
    PUT    /api/students/{id}            Update (admin)
    GET    /api/students/{id}/fees       Fee list with statuses
    GET    /api/students/{id}/fees/summary   Dashboard aggregate
    GET    /api/students/{id}/fees/unpaid    Outstanding fees only
    GET    /api/students/{id}/payments   Payment history
    POST   /api/students/{id}/payments   Record a payment

  Fees & payments:
    GET    /api/fees                     List with month/year filters (admin)
    GET    /api/fees/{id}                Get one fee
    GET    /api/payments/validate        Check payability (?student_id&fee_id)

  Admin:
    POST   /api/admin/billing/generate   Manual batch fee generation
    GET    /api/admin/billing/runs       Scheduler run history
    GET    /api/admin/dashboard          Club-wide stats

ERROR HANDLING:
  Domain errors map onto HTTP statuses:
  - 400: validation failures, business rule rejections
  - 404: missing student/sport/fee
  - 409: duplicate keys, lost concurrent updates
  - 500: storage faults

SEE ALSO:
  - dto.go: Request/response data structures
  - auth.go: Token middleware
  - server.go: Router setup
*/
package api

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"

	"github.com/clubworks/club-backoffice/billing"
	"github.com/clubworks/club-backoffice/club"
)

// =============================================================================
// HANDLER CONTEXT
// =============================================================================

// Handler holds all dependencies for HTTP handlers.
type Handler struct {
	Store  club.TxStore
	Engine *billing.Engine
	Auth   *Auth

	validate *validator.Validate
}

// NewHandler creates a handler wired to the given store and auth layer.
func NewHandler(store club.TxStore, engine *billing.Engine, auth *Auth) *Handler {
	return &Handler{
		Store:    store,
		Engine:   engine,
		Auth:     auth,
		validate: validator.New(),
	}
}

// decodeAndValidate parses the JSON body into dst and runs struct validation.
func (h *Handler) decodeAndValidate(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return false
	}
	if err := h.validate.Struct(dst); err != nil {
		writeError(w, http.StatusBadRequest, "Validation failed", err)
		return false
	}
	return true
}

// =============================================================================
// AUTH HANDLERS
// =============================================================================

// Login authenticates a user and returns a signed token.
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if !h.decodeAndValidate(w, r, &req) {
		return
	}

	user, err := h.Auth.Authenticate(r.Context(), req.Email, req.Password)
	if err != nil {
		writeError(w, http.StatusUnauthorized, "Invalid email or password", nil)
		return
	}

	token, err := h.Auth.GenerateToken(user)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to sign token", err)
		return
	}

	writeJSON(w, http.StatusOK, LoginResponse{Token: token, User: toUserDTO(*user)})
}

// Register creates an account, its student record, and the first fee
// window in one transaction.
func (h *Handler) Register(w http.ResponseWriter, r *http.Request) {
	var req RegisterRequest
	if !h.decodeAndValidate(w, r, &req) {
		return
	}

	birth, ok := parseOptionalDate(w, req.BirthDate, "birth_date")
	if !ok {
		return
	}

	account := &club.User{
		Email:    req.Email,
		FullName: req.FirstName + " " + req.LastName,
		IsActive: true,
		Roles:    []string{club.RoleUser},
	}
	if err := account.SetPassword(req.Password); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to hash password", err)
		return
	}

	student := &club.Student{
		FirstName: req.FirstName,
		LastName:  req.LastName,
		Document:  req.Document,
		Phone:     req.Phone,
		BirthDate: birth,
		StartDate: time.Now().UTC(),
		IsActive:  true,
		SportID:   club.SportID(req.SportID),
	}

	fees, err := h.Engine.EnrollStudent(r.Context(), account, student)
	if err != nil {
		writeDomainError(w, err, "Failed to register")
		return
	}

	token, err := h.Auth.GenerateToken(account)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to sign token", err)
		return
	}

	writeJSON(w, http.StatusCreated, RegisterResponse{
		Token:   token,
		User:    toUserDTO(*account),
		Student: toStudentDTO(*student),
		Fees:    toFeeDTOs(fees, time.Now().UTC()),
	})
}

// =============================================================================
// SPORT HANDLERS
// =============================================================================

// ListSports returns the sport catalog.
func (h *Handler) ListSports(w http.ResponseWriter, r *http.Request) {
	sports, err := h.Store.ListSports(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list sports", err)
		return
	}

	dtos := make([]SportDTO, len(sports))
	for i, s := range sports {
		dtos[i] = toSportDTO(s)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// CreateSport adds a sport to the catalog.
func (h *Handler) CreateSport(w http.ResponseWriter, r *http.Request) {
	var req CreateSportRequest
	if !h.decodeAndValidate(w, r, &req) {
		return
	}

	fee, ok := parseAmount(w, req.MonthlyFee, "monthly_fee")
	if !ok {
		return
	}

	sport := club.Sport{Name: req.Name, MonthlyFee: fee}
	if err := h.Store.CreateSport(r.Context(), &sport); err != nil {
		writeDomainError(w, err, "Failed to create sport")
		return
	}
	writeJSON(w, http.StatusCreated, toSportDTO(sport))
}

// GetSport returns one sport.
func (h *Handler) GetSport(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(w, chi.URLParam(r, "id"))
	if !ok {
		return
	}

	sport, err := h.Store.GetSport(r.Context(), club.SportID(id))
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to get sport", err)
		return
	}
	if sport == nil {
		writeError(w, http.StatusNotFound, "Sport not found", nil)
		return
	}
	writeJSON(w, http.StatusOK, toSportDTO(*sport))
}

// UpdateSport changes a sport's name or monthly rate. Existing fees keep
// the value they were generated with.
func (h *Handler) UpdateSport(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(w, chi.URLParam(r, "id"))
	if !ok {
		return
	}

	var req UpdateSportRequest
	if !h.decodeAndValidate(w, r, &req) {
		return
	}
	fee, ok := parseAmount(w, req.MonthlyFee, "monthly_fee")
	if !ok {
		return
	}

	sport := club.Sport{ID: club.SportID(id), Name: req.Name, MonthlyFee: fee}
	if err := h.Store.UpdateSport(r.Context(), &sport); err != nil {
		writeDomainError(w, err, "Failed to update sport")
		return
	}
	writeJSON(w, http.StatusOK, toSportDTO(sport))
}

// =============================================================================
// STUDENT HANDLERS
// =============================================================================

// ListStudents returns students with optional active/pagination filters.
func (h *Handler) ListStudents(w http.ResponseWriter, r *http.Request) {
	var filter club.StudentFilter
	if v := r.URL.Query().Get("active"); v != "" {
		active, err := strconv.ParseBool(v)
		if err != nil {
			writeError(w, http.StatusBadRequest, "Invalid active filter", err)
			return
		}
		filter.Active = &active
	}
	if v := r.URL.Query().Get("limit"); v != "" {
		limit, err := strconv.Atoi(v)
		if err != nil || limit < 0 {
			writeError(w, http.StatusBadRequest, "Invalid limit", err)
			return
		}
		filter.Limit = limit
	}
	if v := r.URL.Query().Get("offset"); v != "" {
		offset, err := strconv.Atoi(v)
		if err != nil || offset < 0 {
			writeError(w, http.StatusBadRequest, "Invalid offset", err)
			return
		}
		filter.Offset = offset
	}

	students, err := h.Store.ListStudents(r.Context(), filter)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list students", err)
		return
	}

	dtos := make([]StudentDTO, len(students))
	for i, s := range students {
		dtos[i] = toStudentDTO(s)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// CreateStudent enrolls a student and generates their first fee window.
func (h *Handler) CreateStudent(w http.ResponseWriter, r *http.Request) {
	var req CreateStudentRequest
	if !h.decodeAndValidate(w, r, &req) {
		return
	}

	birth, ok := parseOptionalDate(w, req.BirthDate, "birth_date")
	if !ok {
		return
	}
	start, ok := parseOptionalDate(w, req.StartDate, "start_date")
	if !ok {
		return
	}
	if start.IsZero() {
		start = time.Now().UTC()
	}

	student := &club.Student{
		FirstName: req.FirstName,
		LastName:  req.LastName,
		Document:  req.Document,
		Phone:     req.Phone,
		BirthDate: birth,
		StartDate: start,
		IsActive:  true,
		SportID:   club.SportID(req.SportID),
	}

	fees, err := h.Engine.EnrollStudent(r.Context(), nil, student)
	if err != nil {
		writeDomainError(w, err, "Failed to create student")
		return
	}

	writeJSON(w, http.StatusCreated, struct {
		Student StudentDTO `json:"student"`
		Fees    []FeeDTO   `json:"fees"`
	}{toStudentDTO(*student), toFeeDTOs(fees, time.Now().UTC())})
}

// FindStudent looks a student up by numeric id or by a name fragment.
func (h *Handler) FindStudent(w http.ResponseWriter, r *http.Request) {
	term := chi.URLParam(r, "student")

	if id, err := strconv.ParseInt(term, 10, 64); err == nil {
		student, err := h.Store.GetStudent(r.Context(), club.StudentID(id))
		if err != nil {
			writeError(w, http.StatusInternalServerError, "Failed to get student", err)
			return
		}
		if student == nil {
			writeError(w, http.StatusNotFound, "Student not found", nil)
			return
		}
		writeJSON(w, http.StatusOK, []StudentDTO{toStudentDTO(*student)})
		return
	}

	students, err := h.Store.FindStudentsByName(r.Context(), term)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to search students", err)
		return
	}
	dtos := make([]StudentDTO, len(students))
	for i, s := range students {
		dtos[i] = toStudentDTO(s)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// UpdateStudent modifies a student record.
func (h *Handler) UpdateStudent(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(w, chi.URLParam(r, "student"))
	if !ok {
		return
	}

	var req UpdateStudentRequest
	if !h.decodeAndValidate(w, r, &req) {
		return
	}
	birth, ok := parseOptionalDate(w, req.BirthDate, "birth_date")
	if !ok {
		return
	}

	current, err := h.Store.GetStudent(r.Context(), club.StudentID(id))
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to get student", err)
		return
	}
	if current == nil {
		writeError(w, http.StatusNotFound, "Student not found", nil)
		return
	}

	current.FirstName = req.FirstName
	current.LastName = req.LastName
	current.Document = req.Document
	current.Phone = req.Phone
	current.BirthDate = birth
	current.IsActive = *req.IsActive
	current.SportID = club.SportID(req.SportID)

	if err := h.Store.UpdateStudent(r.Context(), current); err != nil {
		writeDomainError(w, err, "Failed to update student")
		return
	}
	writeJSON(w, http.StatusOK, toStudentDTO(*current))
}

// =============================================================================
// FEE HANDLERS
// =============================================================================

// GetStudentFees returns all fees for a student, oldest first.
func (h *Handler) GetStudentFees(w http.ResponseWriter, r *http.Request) {
	student, ok := h.loadStudent(w, r)
	if !ok {
		return
	}

	fees, err := h.Store.ListStudentFees(r.Context(), student.ID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list fees", err)
		return
	}
	writeJSON(w, http.StatusOK, toFeeDTOs(fees, time.Now().UTC()))
}

// GetStudentFeeSummary returns the dashboard aggregate for one student.
func (h *Handler) GetStudentFeeSummary(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(w, chi.URLParam(r, "student"))
	if !ok {
		return
	}

	now := time.Now().UTC()
	summary, err := h.Engine.StudentSummary(r.Context(), club.StudentID(id), now)
	if err != nil {
		writeDomainError(w, err, "Failed to build summary")
		return
	}
	writeJSON(w, http.StatusOK, toFeeSummaryDTO(summary, now))
}

// GetStudentUnpaidFees returns only the fees that still carry a balance.
func (h *Handler) GetStudentUnpaidFees(w http.ResponseWriter, r *http.Request) {
	student, ok := h.loadStudent(w, r)
	if !ok {
		return
	}

	fees, err := h.Store.ListStudentFees(r.Context(), student.ID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list fees", err)
		return
	}

	now := time.Now().UTC()
	unpaid := make([]FeeDTO, 0)
	for _, f := range fees {
		if !f.IsPaid() {
			unpaid = append(unpaid, toFeeDTO(f, now))
		}
	}
	writeJSON(w, http.StatusOK, unpaid)
}

// ListFees returns fees across students with month/year/student filters.
func (h *Handler) ListFees(w http.ResponseWriter, r *http.Request) {
	var filter club.FeeFilter
	if v := r.URL.Query().Get("month"); v != "" {
		m, err := strconv.Atoi(v)
		if err != nil || m < 1 || m > 12 {
			writeError(w, http.StatusBadRequest, "Invalid month filter", err)
			return
		}
		month := time.Month(m)
		filter.Month = &month
	}
	if v := r.URL.Query().Get("year"); v != "" {
		y, err := strconv.Atoi(v)
		if err != nil {
			writeError(w, http.StatusBadRequest, "Invalid year filter", err)
			return
		}
		filter.Year = &y
	}
	if v := r.URL.Query().Get("student_id"); v != "" {
		id, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			writeError(w, http.StatusBadRequest, "Invalid student_id filter", err)
			return
		}
		sid := club.StudentID(id)
		filter.StudentID = &sid
	}

	fees, err := h.Store.ListFees(r.Context(), filter)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list fees", err)
		return
	}
	writeJSON(w, http.StatusOK, toFeeDTOs(fees, time.Now().UTC()))
}

// GetFee returns one fee with its derived status.
func (h *Handler) GetFee(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(w, chi.URLParam(r, "id"))
	if !ok {
		return
	}

	fee, err := h.Store.GetFee(r.Context(), club.FeeID(id))
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to get fee", err)
		return
	}
	if fee == nil {
		writeError(w, http.StatusNotFound, "Fee not found", nil)
		return
	}
	writeJSON(w, http.StatusOK, toFeeDTO(*fee, time.Now().UTC()))
}

// =============================================================================
// PAYMENT HANDLERS
// =============================================================================

// RecordPayment applies a payment to one of the student's fees.
func (h *Handler) RecordPayment(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(w, chi.URLParam(r, "student"))
	if !ok {
		return
	}

	var req RecordPaymentRequest
	if !h.decodeAndValidate(w, r, &req) {
		return
	}
	amount, ok := parseAmount(w, req.Amount, "amount")
	if !ok {
		return
	}
	paymentDate, ok := parseOptionalDate(w, req.PaymentDate, "payment_date")
	if !ok {
		return
	}

	payment, err := h.Engine.RecordPayment(r.Context(), billing.RecordPaymentInput{
		StudentID:   club.StudentID(id),
		FeeID:       club.FeeID(req.FeeID),
		Amount:      amount,
		PaymentDate: paymentDate,
		Method:      req.Method,
	})
	if err != nil {
		writeDomainError(w, err, "Failed to record payment")
		return
	}
	writeJSON(w, http.StatusCreated, toPaymentDTO(*payment))
}

// ListStudentPayments returns a student's payment history.
func (h *Handler) ListStudentPayments(w http.ResponseWriter, r *http.Request) {
	student, ok := h.loadStudent(w, r)
	if !ok {
		return
	}

	payments, err := h.Store.ListStudentPayments(r.Context(), student.ID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list payments", err)
		return
	}
	dtos := make([]PaymentDTO, len(payments))
	for i, p := range payments {
		dtos[i] = toPaymentDTO(p)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// ValidatePayment reports whether a fee is currently payable by a student.
func (h *Handler) ValidatePayment(w http.ResponseWriter, r *http.Request) {
	studentID, err := strconv.ParseInt(r.URL.Query().Get("student_id"), 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid or missing student_id", err)
		return
	}
	feeID, err := strconv.ParseInt(r.URL.Query().Get("fee_id"), 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid or missing fee_id", err)
		return
	}

	result, err := h.Engine.ValidateSequentialPayment(r.Context(),
		club.StudentID(studentID), club.FeeID(feeID))
	if err != nil {
		writeDomainError(w, err, "Failed to validate payment")
		return
	}
	writeJSON(w, http.StatusOK, toValidationDTO(result, time.Now().UTC()))
}

// =============================================================================
// ADMIN HANDLERS
// =============================================================================

// GenerateFees triggers a batch fee generation for every student.
func (h *Handler) GenerateFees(w http.ResponseWriter, r *http.Request) {
	result, err := h.Engine.EnsureUpcomingFees(r.Context(), time.Now().UTC())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to generate fees", err)
		return
	}
	writeJSON(w, http.StatusOK, toBatchResultDTO(result))
}

// ListBillingRuns returns the scheduler's run history, newest first.
func (h *Handler) ListBillingRuns(w http.ResponseWriter, r *http.Request) {
	runs, err := h.Store.ListBillingRuns(r.Context(), 50)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list billing runs", err)
		return
	}
	dtos := make([]BillingRunDTO, len(runs))
	for i, run := range runs {
		dtos[i] = toBillingRunDTO(run)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// Dashboard returns club-wide stats for the admin landing page.
func (h *Handler) Dashboard(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	now := time.Now().UTC()

	students, err := h.Store.ListStudents(ctx, club.StudentFilter{})
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list students", err)
		return
	}
	sports, err := h.Store.ListSports(ctx)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list sports", err)
		return
	}

	current := club.BillingMonthOf(now)
	month := current.Month
	year := current.Year
	monthFees, err := h.Store.ListFees(ctx, club.FeeFilter{Month: &month, Year: &year})
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list fees", err)
		return
	}

	dto := DashboardDTO{
		TotalStudents: len(students),
		Sports:        len(sports),
		FeesThisMonth: len(monthFees),
	}
	for _, s := range students {
		if s.IsActive {
			dto.ActiveStudents++
		}
	}
	for _, f := range monthFees {
		if f.IsPaid() {
			dto.PaidThisMonth++
		}
	}

	outstanding := decimal.Zero
	overdueStudents := make(map[club.StudentID]bool)
	for _, s := range students {
		fees, err := h.Store.ListStudentFees(ctx, s.ID)
		if err != nil {
			writeError(w, http.StatusInternalServerError, "Failed to list fees", err)
			return
		}
		summary := club.Summarize(fees, now)
		outstanding = outstanding.Add(summary.TotalDue)
		if summary.Overdue > 0 {
			overdueStudents[s.ID] = true
		}
	}
	dto.OutstandingDue = outstanding.String()
	dto.OverdueStudents = len(overdueStudents)

	writeJSON(w, http.StatusOK, dto)
}

// Health is the liveness probe.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// =============================================================================
// HELPERS
// =============================================================================

// loadStudent resolves the {student} URL parameter or writes the error.
func (h *Handler) loadStudent(w http.ResponseWriter, r *http.Request) (*club.Student, bool) {
	id, ok := parseID(w, chi.URLParam(r, "student"))
	if !ok {
		return nil, false
	}

	student, err := h.Store.GetStudent(r.Context(), club.StudentID(id))
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to get student", err)
		return nil, false
	}
	if student == nil {
		writeError(w, http.StatusNotFound, "Student not found", nil)
		return nil, false
	}
	return student, true
}

func parseID(w http.ResponseWriter, raw string) (int64, bool) {
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		writeError(w, http.StatusBadRequest, "Invalid id", err)
		return 0, false
	}
	return id, true
}

func parseAmount(w http.ResponseWriter, raw, field string) (decimal.Decimal, bool) {
	d, err := decimal.NewFromString(raw)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid "+field+" (use a decimal string)", err)
		return decimal.Zero, false
	}
	return d, true
}

func parseOptionalDate(w http.ResponseWriter, raw, field string) (time.Time, bool) {
	if raw == "" {
		return time.Time{}, true
	}
	t, err := time.Parse(dateLayout, raw)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid "+field+" format (use YYYY-MM-DD)", err)
		return time.Time{}, false
	}
	return t, true
}

// writeDomainError maps domain errors onto HTTP statuses.
func writeDomainError(w http.ResponseWriter, err error, message string) {
	switch {
	case club.IsNotFound(err):
		writeError(w, http.StatusNotFound, message, err)
	case club.IsConflict(err):
		writeError(w, http.StatusConflict, message, err)
	case club.IsClientError(err):
		writeError(w, http.StatusBadRequest, message, err)
	default:
		writeError(w, http.StatusInternalServerError, message, err)
	}
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string, err error) {
	resp := ErrorResponse{Error: message}
	if err != nil {
		resp.Details = err.Error()
	}
	writeJSON(w, status, resp)
}
