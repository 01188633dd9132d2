/*
handlers_test.go - HTTP-level tests for the API surface

Tests for:
- Authentication and role enforcement
- Sport and student creation (with fee generation)
- Payment recording and sequence validation over HTTP
*/
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/clubworks/club-backoffice/billing"
	"github.com/clubworks/club-backoffice/club"
	"github.com/clubworks/club-backoffice/club/store"
)

// =============================================================================
// TEST SETUP
// =============================================================================

type testEnv struct {
	handler    *Handler
	router     http.Handler
	store      *store.Memory
	adminToken string
	userToken  string
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	ctx := context.Background()

	mem := store.NewMemory()
	engine := billing.NewEngine(mem)
	auth := NewAuth([]byte("test-secret"), mem)
	handler := NewHandler(mem, engine, auth)

	admin := club.User{
		Email: "admin@club.test", FullName: "Admin", IsActive: true,
		Roles: []string{club.RoleAdmin},
	}
	require.NoError(t, admin.SetPassword("admin-pass"))
	require.NoError(t, mem.CreateUser(ctx, &admin))

	member := club.User{
		Email: "member@club.test", FullName: "Member", IsActive: true,
		Roles: []string{club.RoleUser},
	}
	require.NoError(t, member.SetPassword("member-pass"))
	require.NoError(t, mem.CreateUser(ctx, &member))

	adminToken, err := auth.GenerateToken(&admin)
	require.NoError(t, err)
	userToken, err := auth.GenerateToken(&member)
	require.NoError(t, err)

	return &testEnv{
		handler:    handler,
		router:     NewRouter(handler),
		store:      mem,
		adminToken: adminToken,
		userToken:  userToken,
	}
}

func (e *testEnv) do(t *testing.T, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	req.Header.Set("Content-Type", "application/json")

	rec := httptest.NewRecorder()
	e.router.ServeHTTP(rec, req)
	return rec
}

func decodeBody[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&v), "body: %s", rec.Body.String())
	return v
}

func (e *testEnv) seedSport(t *testing.T, name, fee string) club.Sport {
	t.Helper()
	sport := club.Sport{Name: name, MonthlyFee: decimal.RequireFromString(fee)}
	require.NoError(t, e.store.CreateSport(context.Background(), &sport))
	return sport
}

// =============================================================================
// AUTH TESTS
// =============================================================================

func TestLogin(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodPost, "/api/auth/login", "", LoginRequest{
		Email: "admin@club.test", Password: "admin-pass",
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	resp := decodeBody[LoginResponse](t, rec)
	assert.NotEmpty(t, resp.Token)
	assert.Equal(t, "admin@club.test", resp.User.Email)
	assert.Contains(t, resp.User.Roles, club.RoleAdmin)
}

func TestLogin_WrongPassword(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodPost, "/api/auth/login", "", LoginRequest{
		Email: "admin@club.test", Password: "nope-nope",
	})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestAuth_MissingToken(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodGet, "/api/sports", "", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestAuth_AdminRouteRejectsRegularUser(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodPost, "/api/sports", env.userToken, CreateSportRequest{
		Name: "Swimming", MonthlyFee: "100",
	})
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestRegister_CreatesAccountStudentAndFees(t *testing.T) {
	env := newTestEnv(t)
	sport := env.seedSport(t, "Swimming", "120")

	rec := env.do(t, http.MethodPost, "/api/auth/register", "", RegisterRequest{
		Email: "ana@club.test", Password: "secret-1",
		FirstName: "Ana", LastName: "Silva",
		Document: "998877", SportID: int64(sport.ID),
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	resp := decodeBody[RegisterResponse](t, rec)
	assert.NotEmpty(t, resp.Token)
	assert.Equal(t, []string{club.RoleUser}, resp.User.Roles)
	assert.Len(t, resp.Fees, 3)

	// Duplicate document is rejected
	rec = env.do(t, http.MethodPost, "/api/auth/register", "", RegisterRequest{
		Email: "other@club.test", Password: "secret-2",
		FirstName: "Bia", LastName: "Souza",
		Document: "998877", SportID: int64(sport.ID),
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

// =============================================================================
// SPORT & STUDENT TESTS
// =============================================================================

func TestCreateSport_Admin(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodPost, "/api/sports", env.adminToken, CreateSportRequest{
		Name: "Judo", MonthlyFee: "85.50",
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	dto := decodeBody[SportDTO](t, rec)
	assert.Equal(t, "Judo", dto.Name)
	assert.Equal(t, "85.5", dto.MonthlyFee)

	rec = env.do(t, http.MethodGet, fmt.Sprintf("/api/sports/%d", dto.ID), env.userToken, nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestCreateStudent_GeneratesFirstFees(t *testing.T) {
	env := newTestEnv(t)
	sport := env.seedSport(t, "Tennis", "200")

	rec := env.do(t, http.MethodPost, "/api/students", env.adminToken, CreateStudentRequest{
		FirstName: "Carla", LastName: "Mendes",
		Document: "443322", SportID: int64(sport.ID),
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	resp := decodeBody[struct {
		Student StudentDTO `json:"student"`
		Fees    []FeeDTO   `json:"fees"`
	}](t, rec)
	assert.NotZero(t, resp.Student.ID)
	require.Len(t, resp.Fees, 3)
	for _, f := range resp.Fees {
		assert.Equal(t, "200", f.Value)
		assert.Equal(t, "pending", f.Status)
	}
}

func TestCreateStudent_UnknownSport(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodPost, "/api/students", env.adminToken, CreateStudentRequest{
		FirstName: "Rui", LastName: "Alves",
		Document: "112233", SportID: 999,
	})
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestFindStudent_ByIDAndName(t *testing.T) {
	env := newTestEnv(t)
	sport := env.seedSport(t, "Futsal", "90")

	student := club.Student{
		FirstName: "Diego", LastName: "Torres", Document: "556677",
		IsActive: true, SportID: sport.ID, StartDate: time.Now().UTC(),
	}
	require.NoError(t, env.store.CreateStudent(context.Background(), &student))

	rec := env.do(t, http.MethodGet, fmt.Sprintf("/api/students/%d", student.ID), env.userToken, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	byID := decodeBody[[]StudentDTO](t, rec)
	require.Len(t, byID, 1)
	assert.Equal(t, "Diego", byID[0].FirstName)

	rec = env.do(t, http.MethodGet, "/api/students/torr", env.userToken, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	byName := decodeBody[[]StudentDTO](t, rec)
	require.Len(t, byName, 1)
	assert.Equal(t, int64(student.ID), byName[0].ID)
}

// =============================================================================
// PAYMENT FLOW TESTS
// =============================================================================

// paymentFixture enrolls a student with three future fees via the engine.
func paymentFixture(t *testing.T, env *testEnv) (club.Student, []FeeDTO) {
	t.Helper()
	sport := env.seedSport(t, "Swimming", "100")

	rec := env.do(t, http.MethodPost, "/api/students", env.adminToken, CreateStudentRequest{
		FirstName: "Eva", LastName: "Rocha",
		Document: "778899", SportID: int64(sport.ID),
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	resp := decodeBody[struct {
		Student StudentDTO `json:"student"`
		Fees    []FeeDTO   `json:"fees"`
	}](t, rec)

	student, err := env.store.GetStudent(context.Background(), club.StudentID(resp.Student.ID))
	require.NoError(t, err)
	return *student, resp.Fees
}

func TestRecordPayment_HTTPFlow(t *testing.T) {
	// GIVEN: A student with three generated fees
	// WHEN: Paying the second fee before the first
	// THEN: 400 with the sequence message; paying the first succeeds

	env := newTestEnv(t)
	student, fees := paymentFixture(t, env)
	require.Len(t, fees, 3)

	path := fmt.Sprintf("/api/students/%d/payments", student.ID)

	rec := env.do(t, http.MethodPost, path, env.userToken, RecordPaymentRequest{
		FeeID: fees[1].ID, Amount: "100", Method: "cash",
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code, rec.Body.String())

	rec = env.do(t, http.MethodPost, path, env.userToken, RecordPaymentRequest{
		FeeID: fees[0].ID, Amount: "100", Method: "cash",
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	payment := decodeBody[PaymentDTO](t, rec)
	assert.NotEmpty(t, payment.Receipt)
	assert.Equal(t, "100", payment.Amount)

	// Second fee is now payable
	rec = env.do(t, http.MethodGet,
		fmt.Sprintf("/api/payments/validate?student_id=%d&fee_id=%d", student.ID, fees[1].ID),
		env.userToken, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	validation := decodeBody[ValidationDTO](t, rec)
	assert.True(t, validation.Valid)
}

func TestValidatePayment_ReportsBlockingFees(t *testing.T) {
	env := newTestEnv(t)
	student, fees := paymentFixture(t, env)

	rec := env.do(t, http.MethodGet,
		fmt.Sprintf("/api/payments/validate?student_id=%d&fee_id=%d", student.ID, fees[2].ID),
		env.userToken, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	validation := decodeBody[ValidationDTO](t, rec)
	assert.False(t, validation.Valid)
	assert.Len(t, validation.BlockingFees, 2)
	assert.NotEmpty(t, validation.Message)
}

func TestStudentFeeSummary_HTTP(t *testing.T) {
	env := newTestEnv(t)
	student, fees := paymentFixture(t, env)

	path := fmt.Sprintf("/api/students/%d/payments", student.ID)
	rec := env.do(t, http.MethodPost, path, env.userToken, RecordPaymentRequest{
		FeeID: fees[0].ID, Amount: "40", Method: "pix",
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	rec = env.do(t, http.MethodGet,
		fmt.Sprintf("/api/students/%d/fees/summary", student.ID), env.userToken, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	summary := decodeBody[FeeSummaryDTO](t, rec)
	assert.Equal(t, 3, summary.Total)
	assert.Equal(t, 1, summary.Partial)
	assert.Equal(t, 2, summary.Pending)
	assert.Equal(t, "260", summary.TotalDue)
	require.NotNil(t, summary.NextPayable)
	assert.Equal(t, fees[0].ID, summary.NextPayable.ID)
}

func TestGenerateFees_AdminEndpoint(t *testing.T) {
	env := newTestEnv(t)
	_, _ = paymentFixture(t, env)

	// Fees already exist for the next three months, so a manual batch
	// creates nothing new.
	rec := env.do(t, http.MethodPost, "/api/admin/billing/generate", env.adminToken, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	result := decodeBody[BatchResultDTO](t, rec)
	assert.Equal(t, 1, result.StudentsProcessed)
	assert.Equal(t, 0, result.FeesCreated)
}
